package install

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hpcbuild/cp2kbuild/internal/errs"
)

const platformID = "Linux-x86-64-ictce"

// newBuild lays out a finished build: executables under
// exe/<platform-id>, a small test tree and a regression-result dir.
func newBuild(t *testing.T) *Installer {
	t.Helper()
	buildDir := t.TempDir()
	startFrom := filepath.Join(buildDir, "cp2k")

	exeDir := filepath.Join(startFrom, "exe", platformID)
	if err := os.MkdirAll(exeDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, exe := range []string{"cp2k.popt", "cp2k_shell.popt", "fes.popt"} {
		if err := os.WriteFile(filepath.Join(exeDir, exe), []byte("ELF"), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	testsDir := filepath.Join(startFrom, "tests", "QS")
	if err := os.MkdirAll(testsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(testsDir, "H2O.inp"), []byte("&GLOBAL\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	resultDir := filepath.Join(buildDir, "TEST-"+platformID+"-popt-2026-08-26")
	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(resultDir, "regtest.log"), []byte("ok\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	return &Installer{
		StartFrom:  startFrom,
		BuildDir:   buildDir,
		InstallDir: t.TempDir(),
		PlatformID: platformID,
		Type:       "popt",
		RegtestRan: true,
	}
}

func TestInstall(t *testing.T) {
	ins := newBuild(t)
	if err := ins.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}

	for _, exe := range []string{"cp2k.popt", "cp2k_shell.popt", "fes.popt"} {
		path := filepath.Join(ins.InstallDir, "bin", exe)
		fi, err := os.Stat(path)
		if err != nil {
			t.Errorf("%s not installed: %v", exe, err)
			continue
		}
		if fi.Mode().Perm()&0o100 == 0 {
			t.Errorf("%s lost its execute bit: %v", exe, fi.Mode())
		}
	}
	if _, err := os.Stat(filepath.Join(ins.InstallDir, "tests", "QS", "H2O.inp")); err != nil {
		t.Errorf("test tree not installed: %v", err)
	}
	results := filepath.Join(ins.InstallDir, "TEST-"+platformID+"-popt-2026-08-26", "regtest.log")
	if _, err := os.Stat(results); err != nil {
		t.Errorf("regression results not installed: %v", err)
	}
}

func TestInstallSkipsExistingTests(t *testing.T) {
	ins := newBuild(t)
	dst := filepath.Join(ins.InstallDir, "tests")
	if err := os.MkdirAll(dst, 0o755); err != nil {
		t.Fatal(err)
	}
	marker := filepath.Join(dst, "keep.me")
	if err := os.WriteFile(marker, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ins.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if _, err := os.Stat(marker); err != nil {
		t.Error("preexisting tests dir was replaced")
	}
	if _, err := os.Stat(filepath.Join(dst, "QS")); !errors.Is(err, os.ErrNotExist) {
		t.Error("tests were copied into a preexisting destination")
	}
}

func TestInstallWithoutRegtest(t *testing.T) {
	ins := newBuild(t)
	ins.RegtestRan = false
	if err := ins.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	entries, err := os.ReadDir(ins.InstallDir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "bin" && e.Name() != "tests" {
			t.Errorf("unexpected install entry %s", e.Name())
		}
	}
}

func TestInstallMissingExeDir(t *testing.T) {
	ins := newBuild(t)
	ins.PlatformID = "Linux-x86-64-nosuch"
	if err := ins.Install(); err == nil {
		t.Fatal("Install succeeded without an exe dir")
	}
}

func TestDefaultSanityCheck(t *testing.T) {
	sc := DefaultSanityCheck("psmp")
	want := []string{
		filepath.Join("bin", "cp2k.psmp"),
		filepath.Join("bin", "cp2k_shell.psmp"),
		filepath.Join("bin", "fes.psmp"),
	}
	if len(sc.Files) != len(want) {
		t.Fatalf("Files = %v, want %v", sc.Files, want)
	}
	for i := range want {
		if sc.Files[i] != want[i] {
			t.Errorf("Files[%d] = %q, want %q", i, sc.Files[i], want[i])
		}
	}
	if len(sc.Dirs) != 1 || sc.Dirs[0] != "tests" {
		t.Errorf("Dirs = %v, want [tests]", sc.Dirs)
	}
}

func TestSanityCheckPass(t *testing.T) {
	ins := newBuild(t)
	if err := ins.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := DefaultSanityCheck("popt").Check(ins.InstallDir); err != nil {
		t.Errorf("Check: %v", err)
	}
}

func TestSanityCheckMissingFile(t *testing.T) {
	ins := newBuild(t)
	if err := ins.Install(); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if err := os.Remove(filepath.Join(ins.InstallDir, "bin", "fes.popt")); err != nil {
		t.Fatal(err)
	}
	if err := DefaultSanityCheck("popt").Check(ins.InstallDir); !errors.Is(err, errs.ErrConfig) {
		t.Fatalf("Check: error = %v, want ErrConfig", err)
	}
}

func TestSanityCheckMissingDir(t *testing.T) {
	dir := t.TempDir()
	sc := SanityCheck{Dirs: []string{"tests"}}
	if err := sc.Check(dir); !errors.Is(err, errs.ErrConfig) {
		t.Fatalf("Check: error = %v, want ErrConfig", err)
	}
}

func TestSanityCheckFileIsDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "bin", "cp2k.popt"), 0o755); err != nil {
		t.Fatal(err)
	}
	sc := SanityCheck{Files: []string{filepath.Join("bin", "cp2k.popt")}}
	if err := sc.Check(dir); !errors.Is(err, errs.ErrConfig) {
		t.Fatalf("Check: error = %v, want ErrConfig", err)
	}
}
