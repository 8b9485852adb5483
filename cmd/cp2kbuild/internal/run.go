package internal

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full build recipe",
	Long: `Run executes the whole recipe in order: configure, build,
regression-test, install and sanity-check.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, env, err := loadConfig()
	if err != nil {
		return err
	}
	r := newRunner(cmd)

	if _, err := stepConfigure(r, env, cfg); err != nil {
		return err
	}
	if err := stepBuild(r, cfg); err != nil {
		return err
	}
	if err := stepTest(r, env, cfg); err != nil {
		return err
	}
	if err := stepInstall(cfg); err != nil {
		return err
	}
	step("done")
	return nil
}
