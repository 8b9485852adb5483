package internal

import (
	"github.com/gookit/color"
	"github.com/qiniu/x/log"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "cp2kbuild",
	Short: "cp2kbuild builds and installs CP2K against a detected toolchain",
	Long: `cp2kbuild generates a machine-specific arch file for CP2K from the
active compiler and math-library environment, drives CP2K's own
Makefile-based build, optionally runs the bundled regression-test
harness, and installs the resulting executables.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetOutputLevel(log.Ldebug)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "cp2kbuild.yaml", "Build configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

// status colors, one for the arrow and one for the message
var (
	colArrow   = color.HEX("#FFEB3B")
	colSuccess = color.HEX("#1976D2")
)

// step prints a highlighted progress line for a recipe step.
func step(msg string) {
	colArrow.Print("-> ")
	colSuccess.Println(msg)
}
