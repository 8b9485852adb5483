package internal

import (
	"github.com/spf13/cobra"

	"github.com/hpcbuild/cp2kbuild/internal/arch"
	"github.com/hpcbuild/cp2kbuild/internal/config"
	"github.com/hpcbuild/cp2kbuild/internal/driver"
	"github.com/hpcbuild/cp2kbuild/internal/install"
	"github.com/hpcbuild/cp2kbuild/internal/regtest"
	"github.com/hpcbuild/cp2kbuild/internal/toolchain"
)

// loadConfig reads the build configuration and snapshots the process
// environment once; every step works from this pair.
func loadConfig() (*config.Config, toolchain.Env, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, err
	}
	return cfg, toolchain.Snapshot(), nil
}

func newRunner(cmd *cobra.Command) *driver.Runner {
	return &driver.Runner{Ctx: cmd.Context(), Verbose: verbose}
}

// stepConfigure assembles the option set and writes the arch file.
func stepConfigure(r *driver.Runner, env toolchain.Env, cfg *config.Config) (*arch.Result, error) {
	step("configuring " + arch.PlatformID(cfg.Toolchain.Name) + "." + cfg.Type)
	b := &arch.Builder{Env: env, Tool: cfg.Toolchain, Cfg: cfg, Runner: r}
	res, err := b.Build()
	if err != nil {
		return nil, err
	}
	if _, err := arch.WriteFile(cfg.StartFrom, cfg.Type, res); err != nil {
		return nil, err
	}
	return res, nil
}

// stepBuild invokes the external make build.
func stepBuild(r *driver.Runner, cfg *config.Config) error {
	step("building CP2K (" + cfg.Type + ")")
	mk := &driver.MakeStep{
		Runner:     r,
		StartFrom:  cfg.StartFrom,
		PlatformID: arch.PlatformID(cfg.Toolchain.Name),
		Type:       cfg.Type,
		Parallel:   cfg.Parallel,
	}
	return mk.Run()
}

// stepTest runs the bundled regression-test harness when enabled.
func stepTest(r *driver.Runner, env toolchain.Env, cfg *config.Config) error {
	if !cfg.RunTest {
		return nil
	}
	step("running regression tests")
	d := &regtest.Driver{
		Runner:      r,
		Enabled:     cfg.RunTest,
		BuildDir:    cfg.BuildDir,
		Type:        cfg.Type,
		PlatformID:  arch.PlatformID(cfg.Toolchain.Name),
		MaxTasks:    cfg.MaxTasks,
		F90:         env.Get("F90"),
		IgnoreFails: cfg.IgnoreRegtestFails,
	}
	return d.Run()
}

// stepInstall copies the artifacts and checks the result.
func stepInstall(cfg *config.Config) error {
	step("installing to " + cfg.InstallDir)
	ins := &install.Installer{
		StartFrom:  cfg.StartFrom,
		BuildDir:   cfg.BuildDir,
		InstallDir: cfg.InstallDir,
		PlatformID: arch.PlatformID(cfg.Toolchain.Name),
		Type:       cfg.Type,
		RegtestRan: cfg.RunTest,
	}
	if err := ins.Install(); err != nil {
		return err
	}
	return stepSanity(cfg)
}

// stepSanity verifies the expected artifacts exist post-install.
func stepSanity(cfg *config.Config) error {
	check := install.SanityCheck{
		Files: cfg.SanityCheck.Files,
		Dirs:  cfg.SanityCheck.Dirs,
	}
	if len(check.Files) == 0 && len(check.Dirs) == 0 {
		check = install.DefaultSanityCheck(cfg.Type)
	}
	return check.Check(cfg.InstallDir)
}
