// Package cmd implements the mgit CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	// appVersion is set by main.go via Execute.
	appVersion string

	verbose bool
	quiet   bool
)

// rootCmd is the base command when mgit is called without a subcommand.
var rootCmd = &cobra.Command{
	Use:     "mgit",
	Short:   "Bulk repository discovery and clone/pull across hosting providers",
	Version: appVersion,
}

// Execute adds all child commands to the root command and runs it. Called
// once by main.main(). An interrupt or SIGTERM cancels the context every
// RunE receives via cmd.Context(), which clone-all/pull-all pass into
// Engine.Execute as the parent of the executor's run context, rather than
// letting the OS's default signal disposition tear the process down mid-run.
func Execute(version string) {
	appVersion = version
	rootCmd.Version = version

	applySilenceRecursive(rootCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeForErr(err))
	}
}

// applySilenceRecursive stops cobra from printing usage text on a runtime
// error; cobra does not propagate these two flags to child commands on
// its own.
func applySilenceRecursive(cmd *cobra.Command) {
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	for _, c := range cmd.Commands() {
		applySilenceRecursive(c)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet output (errors only)")
}
