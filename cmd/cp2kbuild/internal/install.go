package internal

import (
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install built artifacts and sanity-check them",
	Long: `Install copies the built executables, the test tree and any
regression-test results into the install prefix, then verifies the
expected artifacts exist.`,
	Args: cobra.NoArgs,
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	return stepInstall(cfg)
}
