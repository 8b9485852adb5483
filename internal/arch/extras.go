package arch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/qiniu/x/log"

	"github.com/hpcbuild/cp2kbuild/internal/errs"
)

// probeLibSMM looks for the small-matrix-multiply library and, when
// present, records its archives and the matching -D__HAS_* defines.
func (b *Builder) probeLibSMM() {
	root := b.Env.Root("LIBSMM")
	if root == "" {
		return
	}
	archives, err := filepath.Glob(filepath.Join(root, "lib", "libsmm_*nn.a"))
	if err != nil || len(archives) == 0 {
		return
	}
	for _, a := range archives {
		base := strings.TrimSuffix(filepath.Base(a), ".a")
		b.extraDFlags += " -D__HAS_" + strings.TrimPrefix(base, "lib")
	}
	b.libsmm = strings.Join(archives, " ")
	log.Debugf("using libsmm %s (extra dflags %s)", b.libsmm, b.extraDFlags)
}

// prepModInc precompiles the configured interface sources (*.f90) into
// a module-include directory under the build dir and returns its path.
// Only IMKL installs ship such sources, and only ifort/gfortran/mpif77
// spellings of F77 are understood.
func (b *Builder) prepModInc() (string, error) {
	imkl := b.Env.Root("IMKL")
	if imkl == "" {
		return "", errs.Config("don't know how to prepare modinc, IMKL not found")
	}

	modincPath := filepath.Join(b.Cfg.BuildDir, "modinc")
	log.Debugf("preparing module files in %s", modincPath)
	if err := os.MkdirAll(modincPath, 0o755); err != nil {
		return "", fmt.Errorf("create modinc dir: %w", err)
	}

	modincDir := filepath.Join(imkl, b.Cfg.ModIncPrefix, "include")
	var files []string
	if b.Cfg.ModIncAll {
		matches, err := filepath.Glob(filepath.Join(modincDir, "*.f90"))
		if err != nil {
			return "", fmt.Errorf("glob modinc sources: %w", err)
		}
		files = matches
	} else {
		for _, f := range b.Cfg.ModInc {
			files = append(files, filepath.Join(modincDir, f))
		}
	}

	f77 := b.Env.Get("F77")
	if f77 == "" {
		return "", errs.Config("F77 environment variable not set, can't continue")
	}

	for _, f := range files {
		var args []string
		switch {
		case strings.HasSuffix(f77, "ifort"):
			args = []string{"-module", modincPath, "-c", f}
		case f77 == "gfortran" || f77 == "mpif77":
			args = []string{"-J" + modincPath, "-c", f}
		default:
			return "", errs.Config("prepmodinc: unknown value specified for F77 (%s)", f77)
		}
		if out, err := b.Runner.Run(modincPath, f77, args...); err != nil {
			return "", errs.Process("compiling module include %s failed: %v\n%s", filepath.Base(f), err, out)
		}
	}
	return modincPath, nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
