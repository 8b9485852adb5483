// Package regtest drives CP2K's bundled regression-test harness and
// judges its text summary.
package regtest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/hpcbuild/cp2kbuild/internal/driver"
	"github.com/hpcbuild/cp2kbuild/internal/errs"
	"github.com/hpcbuild/cp2kbuild/internal/textpatch"
)

// ConfigFileName is the harness configuration file written next to the
// build before the harness runs.
const ConfigFileName = "cp2k_regtest.cfg"

// refDirPrefix marks an unpacked reference-output directory.
const refDirPrefix = "LAST-"

// dirLastRe matches the harness-script line selecting the reference
// directory.
var dirLastRe = regexp.MustCompile(`^(dir_last\s*=\$\{dir_base\})/.*$`)

// Driver runs the regression harness for a finished build.
type Driver struct {
	Runner *driver.Runner

	// Enabled mirrors the runtest setting; when false Run does
	// nothing at all.
	Enabled bool

	// BuildDir is the unpack root; the harness script, the reference
	// directories and the result directories all live below it.
	BuildDir string

	Type       string // build variant under test
	PlatformID string
	MaxTasks   int

	// F90 is the Fortran compiler name the harness records.
	F90 string

	// IgnoreFails downgrades fatal test verdicts to warnings.
	IgnoreFails bool
}

// Script returns the path of the bundled harness script.
func (d *Driver) Script() string {
	return filepath.Join(d.BuildDir, "cp2k", "tools", "do_regtest")
}

// FindRefDir looks for an unpacked reference-output directory in the
// build dir; it returns "" if none exists.
func FindRefDir(buildDir string) (string, error) {
	entries, err := os.ReadDir(buildDir)
	if err != nil {
		return "", fmt.Errorf("scan %s for reference output: %w", buildDir, err)
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), refDirPrefix) {
			return e.Name(), nil
		}
	}
	return "", nil
}

// Run points the harness at the reference output (if any), writes its
// configuration file, executes it and evaluates the summary. It is a
// no-op when the driver is disabled.
func (d *Driver) Run() error {
	if !d.Enabled {
		return nil
	}

	refdir, err := FindRefDir(d.BuildDir)
	if err != nil {
		return err
	}
	script := d.Script()
	if refdir != "" {
		log.Infof("using reference output available in %s", refdir)
		if _, err := textpatch.File(script, dirLastRe, "${1}/"+refdir, ".orig.refout"); err != nil {
			return errs.Config("failed to modify %s: %v", script, err)
		}
	} else {
		log.Infof("no reference output found for regression test, continuing without it")
	}

	cfgPath := filepath.Join(d.BuildDir, ConfigFileName)
	if err := d.writeConfig(cfgPath); err != nil {
		return err
	}

	out, err := d.Runner.Run(d.BuildDir, script, "-nocvs", "-quick", "-nocompile", "-config", cfgPath)
	if err != nil {
		return errs.Process("regression test failed (non-zero exit code): %v\n%s", err, out)
	}
	log.Debugf("regression test output:\n%s", out)

	rep, err := ParseReport(out)
	if err != nil {
		return err
	}
	return rep.Evaluate(d.IgnoreFails)
}

// writeConfig writes the small key=value file the harness reads.
func (d *Driver) writeConfig(path string) error {
	txt := fmt.Sprintf(`FORT_C_NAME="%s"
dir_base=%s
cp2k_version=%s
dir_triplet=%s
leakcheck="YES"
maxtasks=%d
`, d.F90, d.BuildDir, d.Type, d.PlatformID, d.MaxTasks)

	if err := os.WriteFile(path, []byte(txt), 0o644); err != nil {
		return fmt.Errorf("failed to create config file %s: %w", path, err)
	}
	return nil
}
