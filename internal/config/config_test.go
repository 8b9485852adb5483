package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hpcbuild/cp2kbuild/internal/errs"
	"github.com/hpcbuild/cp2kbuild/internal/toolchain"
)

func writeConfig(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cp2kbuild.yaml")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
start_from: /build/cp2k-2.4.0
toolchain:
  name: ictce
  family: Intel
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Type != "popt" {
		t.Errorf("Type = %q, want popt", cfg.Type)
	}
	if !cfg.TypeOpt || !cfg.LibInt || !cfg.RunTest {
		t.Errorf("TypeOpt/LibInt/RunTest = %v/%v/%v, want all true",
			cfg.TypeOpt, cfg.LibInt, cfg.RunTest)
	}
	if cfg.MaxTasks != 3 {
		t.Errorf("MaxTasks = %d, want 3", cfg.MaxTasks)
	}
	if !cfg.Toolchain.ISOCBinding {
		t.Error("ISOCBinding default should be true")
	}
	if cfg.BuildDir != "/build" {
		t.Errorf("BuildDir = %q, want parent of start_from", cfg.BuildDir)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
start_from: /build/cp2k-2.4.0
build_dir: /scratch
install_dir: /apps/cp2k/2.4.0
type: psmp
typeopt: false
libint: false
runtest: false
maxtasks: 8
extra_dflags: " -D__MYDEF"
modinc: [mkl_dfti.f90]
toolchain:
  name: gmvapich2
  family: GCC
  openmp_flag: -fopenmp
  iso_c_binding: false
sanity_check:
  files: [bin/cp2k.psmp]
  dirs: [tests]
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Type != "psmp" || cfg.TypeOpt || cfg.LibInt || cfg.RunTest {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.BuildDir != "/scratch" {
		t.Errorf("BuildDir = %q, want /scratch", cfg.BuildDir)
	}
	if cfg.MaxTasks != 8 {
		t.Errorf("MaxTasks = %d, want 8", cfg.MaxTasks)
	}
	if cfg.Toolchain.Family != toolchain.GCC || cfg.Toolchain.ISOCBinding {
		t.Errorf("toolchain override not applied: %+v", cfg.Toolchain)
	}
	if len(cfg.ModInc) != 1 || cfg.ModInc[0] != "mkl_dfti.f90" {
		t.Errorf("ModInc = %v", cfg.ModInc)
	}
	if len(cfg.SanityCheck.Files) != 1 || cfg.SanityCheck.Files[0] != "bin/cp2k.psmp" {
		t.Errorf("SanityCheck = %+v", cfg.SanityCheck)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load of missing file succeeded")
	}
}

func TestLoadMalformed(t *testing.T) {
	if _, err := Load(writeConfig(t, "start_from: [\n")); err == nil {
		t.Fatal("Load of malformed YAML succeeded")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad type", func(c *Config) { c.Type = "sopt" }},
		{"no start_from", func(c *Config) { c.StartFrom = "" }},
		{"zero maxtasks", func(c *Config) { c.MaxTasks = 0 }},
		{"no toolchain name", func(c *Config) { c.Toolchain.Name = "" }},
		{"bad family", func(c *Config) { c.Toolchain.Family = "PGI" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.StartFrom = "/build/cp2k"
			cfg.Toolchain.Name = "ictce"
			cfg.Toolchain.Family = toolchain.Intel
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, errs.ErrConfig) {
				t.Errorf("Validate: error = %v, want ErrConfig", err)
			}
		})
	}
}
