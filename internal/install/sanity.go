package install

import (
	"os"
	"path/filepath"

	"github.com/qiniu/x/log"

	"github.com/hpcbuild/cp2kbuild/internal/errs"
)

// SanityCheck lists paths, relative to the install dir, whose presence
// proves the install produced what it should.
type SanityCheck struct {
	Files []string
	Dirs  []string
}

// DefaultSanityCheck returns the paths every CP2K install must provide
// for the given build variant.
func DefaultSanityCheck(typ string) SanityCheck {
	var files []string
	for _, exe := range []string{"cp2k", "cp2k_shell", "fes"} {
		files = append(files, filepath.Join("bin", exe+"."+typ))
	}
	return SanityCheck{
		Files: files,
		Dirs:  []string{"tests"},
	}
}

// Check verifies every listed file and directory exists under
// installDir.
func (s SanityCheck) Check(installDir string) error {
	for _, f := range s.Files {
		path := filepath.Join(installDir, f)
		fi, err := os.Stat(path)
		if err != nil || fi.IsDir() {
			return errs.Config("sanity check failed: file %s missing", path)
		}
		log.Debugf("sanity check: file %s ok", path)
	}
	for _, d := range s.Dirs {
		path := filepath.Join(installDir, d)
		fi, err := os.Stat(path)
		if err != nil || !fi.IsDir() {
			return errs.Config("sanity check failed: dir %s missing", path)
		}
		log.Debugf("sanity check: dir %s ok", path)
	}
	log.Infof("sanity check passed")
	return nil
}
