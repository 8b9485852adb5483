package internal

import (
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Configure and build CP2K",
	Long: `Build writes the arch file and drives CP2K's Makefile-based build
(make clean followed by make), without testing or installing.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, env, err := loadConfig()
	if err != nil {
		return err
	}
	r := newRunner(cmd)
	if _, err := stepConfigure(r, env, cfg); err != nil {
		return err
	}
	return stepBuild(r, cfg)
}
