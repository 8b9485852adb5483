package internal

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hpcbuild/cp2kbuild/internal/arch"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Generate the arch file only",
	Long: `Configure assembles the build variables for the active toolchain
and math libraries and writes the arch file into the source tree,
without starting a build.`,
	Args: cobra.NoArgs,
	RunE: runConfigure,
}

func init() {
	rootCmd.AddCommand(configureCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	cfg, env, err := loadConfig()
	if err != nil {
		return err
	}
	res, err := stepConfigure(newRunner(cmd), env, cfg)
	if err != nil {
		return err
	}
	fmt.Println(arch.FilePath(cfg.StartFrom, res.PlatformID, cfg.Type))
	return nil
}
