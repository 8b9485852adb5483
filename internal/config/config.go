// Package config loads the build configuration for a cp2kbuild run.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/hpcbuild/cp2kbuild/internal/errs"
	"github.com/hpcbuild/cp2kbuild/internal/toolchain"
)

// SanityPaths lists artifacts whose existence proves an install worked.
// Entries are relative to the install directory.
type SanityPaths struct {
	Files []string `yaml:"files"`
	Dirs  []string `yaml:"dirs"`
}

// Config holds the user-supplied build settings. Zero values are
// replaced by Default before the YAML file is applied, so absent keys
// keep their documented defaults.
type Config struct {
	// StartFrom is the root of the unpacked CP2K source tree; it must
	// contain the arch/, makefiles/, exe/ and tests/ subdirectories.
	StartFrom string `yaml:"start_from"`
	// BuildDir is the directory the sources were unpacked into. The
	// regression harness and its reference/result directories live here.
	BuildDir string `yaml:"build_dir"`
	// InstallDir is the prefix built artifacts are copied into.
	InstallDir string `yaml:"install_dir"`

	// Type is the build variant: "popt" (plain MPI) or "psmp" (MPI+OpenMP).
	Type string `yaml:"type"`
	// TypeOpt selects optimized compiler flags.
	TypeOpt bool `yaml:"typeopt"`
	// LibInt enables Hartree-Fock exchange support via LibInt.
	LibInt bool `yaml:"libint"`

	// ModIncPrefix is the IMKL subdirectory holding modinc sources.
	ModIncPrefix string `yaml:"modinc_prefix"`
	// ModInc lists interface source files (*.f90) to precompile into
	// module includes.
	ModInc []string `yaml:"modinc"`
	// ModIncAll compiles every *.f90 found at the modinc prefix.
	ModIncAll bool `yaml:"modinc_all"`

	ExtraCFlags string `yaml:"extra_cflags"`
	ExtraDFlags string `yaml:"extra_dflags"`

	// Parallel is the make -j degree; 0 builds serially, leaving the
	// Makefile and the sub-make invocation untouched.
	Parallel int `yaml:"parallel"`

	// RunTest runs the bundled regression-test harness after the build.
	RunTest bool `yaml:"runtest"`
	// IgnoreRegtestFails downgrades fatal regression-test verdicts to
	// warnings. Use with care.
	IgnoreRegtestFails bool `yaml:"ignore_regtest_fails"`
	// MaxTasks caps how many CP2K instances the harness runs at once.
	MaxTasks int `yaml:"maxtasks"`

	Toolchain toolchain.Descriptor `yaml:"toolchain"`

	// SanityCheck overrides the default post-install existence checks.
	SanityCheck SanityPaths `yaml:"sanity_check"`
}

// Default returns a Config carrying the recipe's documented defaults.
func Default() *Config {
	return &Config{
		Type:     "popt",
		TypeOpt:  true,
		LibInt:   true,
		RunTest:  true,
		MaxTasks: 3,
		Toolchain: toolchain.Descriptor{
			ISOCBinding: true,
		},
	}
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Type {
	case "popt", "psmp":
	default:
		return errs.Config("unknown build type %q (want popt or psmp)", c.Type)
	}
	if c.StartFrom == "" {
		return errs.Config("start_from is not set")
	}
	if c.BuildDir == "" {
		c.BuildDir = filepath.Dir(c.StartFrom)
	}
	if c.MaxTasks < 1 {
		return errs.Config("maxtasks must be at least 1 (got %d)", c.MaxTasks)
	}
	return c.Toolchain.Validate()
}
