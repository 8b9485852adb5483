package internal

import (
	"github.com/spf13/cobra"
)

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the bundled regression-test harness",
	Long: `Test runs CP2K's do_regtest harness against a previously built
tree and judges its summary. It respects the runtest and
ignore_regtest_fails settings.`,
	Args: cobra.NoArgs,
	RunE: runTest,
}

func init() {
	rootCmd.AddCommand(testCmd)
}

func runTest(cmd *cobra.Command, args []string) error {
	cfg, env, err := loadConfig()
	if err != nil {
		return err
	}
	return stepTest(newRunner(cmd), env, cfg)
}
