package driver

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/qiniu/x/log"

	"github.com/hpcbuild/cp2kbuild/internal/errs"
	"github.com/hpcbuild/cp2kbuild/internal/textpatch"
)

// pmakeRe matches the Makefile line controlling sub-make parallelism.
var pmakeRe = regexp.MustCompile(`^PMAKE\s*=.*$`)

// MakeStep drives the external make build of CP2K.
type MakeStep struct {
	Runner *Runner

	// StartFrom is the CP2K source root; the build runs in its
	// makefiles/ subdirectory.
	StartFrom string

	PlatformID string // selects the arch file (ARCH=)
	Type       string // build variant (VERSION=)

	// Parallel is the make -j degree. When positive, the Makefile's
	// PMAKE line is rewritten in place (with a backup) before building.
	Parallel int
}

// Options returns the accumulated make command-line options. The
// sub-make override is only emitted for parallel builds; $(MAKE)
// rejects "-j 0".
func (s *MakeStep) Options() []string {
	var opts []string
	if s.Parallel > 0 {
		opts = append(opts, fmt.Sprintf("MAKE=make -j %d", s.Parallel))
	}
	return append(opts, "all", "ARCH="+s.PlatformID, "VERSION="+s.Type)
}

// Run patches the Makefile for parallelism, then invokes make clean
// followed by make. A failing clean is logged but does not gate the
// build; a failing make does.
func (s *MakeStep) Run() error {
	makefiles := filepath.Join(s.StartFrom, "makefiles")
	if fi, err := os.Stat(makefiles); err != nil || !fi.IsDir() {
		return errs.Config("makefiles dir %s not found", makefiles)
	}

	if s.Parallel > 0 {
		repl := fmt.Sprintf("PMAKE\t= $(SMAKE) -j %d", s.Parallel)
		n, err := textpatch.File(filepath.Join(makefiles, "Makefile"), pmakeRe, repl, ".orig")
		if err != nil {
			return errs.Config("can't modify Makefile in %s: %v", makefiles, err)
		}
		log.Debugf("patched %d PMAKE line(s) for -j %d", n, s.Parallel)
	}

	opts := s.Options()

	if out, err := s.Runner.Run(makefiles, "make", append(opts, "clean")...); err != nil {
		log.Warnf("make clean failed (ignored): %v\n%s", err, tail(out, 20))
	}

	out, err := s.Runner.Run(makefiles, "make", opts...)
	if err != nil {
		return errs.Process("build failed: %v\n%s", err, tail(out, 50))
	}
	log.Infof("build finished (ARCH=%s VERSION=%s)", s.PlatformID, s.Type)
	return nil
}
