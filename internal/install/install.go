// Package install copies built CP2K artifacts into the install prefix
// and verifies the result.
package install

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/qiniu/x/log"
	"github.com/schollz/progressbar/v3"
)

// Installer copies executables, the test tree and regression-test
// results into the install prefix. Any copy failure is fatal.
type Installer struct {
	StartFrom  string
	BuildDir   string
	InstallDir string
	PlatformID string
	Type       string

	// RegtestRan selects whether regression-test result directories
	// are looked for.
	RegtestRan bool
}

// Install performs all three copies.
func (ins *Installer) Install() error {
	if err := ins.copyExecutables(); err != nil {
		return err
	}
	if err := ins.copyTests(); err != nil {
		return err
	}
	if ins.RegtestRan {
		return ins.copyRegtestResults()
	}
	return nil
}

// copyExecutables copies the regular files from exe/<platform-id> into
// <install>/bin.
func (ins *Installer) copyExecutables() error {
	exeDir := filepath.Join(ins.StartFrom, "exe", ins.PlatformID)
	binDir := filepath.Join(ins.InstallDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", binDir, err)
	}
	entries, err := os.ReadDir(exeDir)
	if err != nil {
		return fmt.Errorf("copying executables from %s to %s failed: %w", exeDir, binDir, err)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		src := filepath.Join(exeDir, e.Name())
		dst := filepath.Join(binDir, e.Name())
		if err := copyFile(src, dst); err != nil {
			return fmt.Errorf("copying executables from %s to %s failed: %w", exeDir, binDir, err)
		}
	}
	return nil
}

// copyTests copies the package's test tree into <install>/tests. An
// already-present destination is skipped, not an error.
func (ins *Installer) copyTests() error {
	src := filepath.Join(ins.StartFrom, "tests")
	dst := filepath.Join(ins.InstallDir, "tests")
	if _, err := os.Stat(dst); err == nil {
		log.Infof("won't copy tests, destination directory %s already exists", dst)
		return nil
	}
	if err := copyTree(src, dst, true); err != nil {
		return fmt.Errorf("copying tests from %s to %s failed: %w", src, dst, err)
	}
	return nil
}

// copyRegtestResults copies the first regression-result directory
// (TEST-<platform-id>-<type>*) from the build dir into the install root.
func (ins *Installer) copyRegtestResults() error {
	prefix := fmt.Sprintf("TEST-%s-%s", ins.PlatformID, ins.Type)
	entries, err := os.ReadDir(ins.BuildDir)
	if err != nil {
		return fmt.Errorf("failed to copy regression test results dir: %w", err)
	}
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		src := filepath.Join(ins.BuildDir, e.Name())
		dst := filepath.Join(ins.InstallDir, e.Name())
		if err := copyTree(src, dst, false); err != nil {
			return fmt.Errorf("failed to copy regression test results dir: %w", err)
		}
		log.Infof("regression test results dir %s copied to %s", e.Name(), ins.InstallDir)
		break
	}
	return nil
}

// copyTree copies a directory recursively. The CP2K test tree holds
// thousands of small files, so withProgress shows a file-count bar.
func copyTree(src, dst string, withProgress bool) error {
	var bar *progressbar.ProgressBar
	if withProgress {
		total := 0
		filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err == nil && d.Type().IsRegular() {
				total++
			}
			return nil
		})
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("copying "+filepath.Base(src)),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		switch {
		case d.IsDir():
			return os.MkdirAll(target, 0o755)
		case d.Type().IsRegular():
			if err := copyFile(path, target); err != nil {
				return err
			}
			if bar != nil {
				bar.Add(1)
			}
		}
		return nil
	})
	if bar != nil {
		bar.Finish()
	}
	return err
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
