// Package cli defines Cobra command definitions for the codetrek CLI.
// This file contains the root command, version flag, and help output.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codetrek/codetrek/internal/sandbox"
	"github.com/codetrek/codetrek/internal/tui"
)

var (
	debug      bool
	projectDir string
	version    = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "codetrek",
	Short: "Terminal tutor for data structures and algorithms practice",
	Long: `CodeTrek is a coding tutor. Pick a topic and a level, fetch practice
questions, chat with the tutor, run JavaScript solutions in a sandbox, and
ask for guidance or an evaluation of your code.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// When no subcommand is provided, launch TUI if TTY, show help otherwise
		if !tui.IsTTY() {
			tui.PrintFallback(cmd.OutOrStdout())
			return cmd.Help()
		}
		return runTUI(cmd)
	},
}

// Execute runs the root command. Called from main. A process started as
// a sandbox worker runs its snippet and exits instead.
func Execute() {
	if sandbox.IsWorker() {
		os.Exit(sandbox.ServeWorker(os.Stdin, os.Stdout))
	}
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug diagnostics")
	rootCmd.PersistentFlags().StringVar(&projectDir, "dir", "", "Project directory holding .codetrek/ (default: current directory)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(problemCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(problemsCmd)
	rootCmd.AddCommand(configCmd)
}
