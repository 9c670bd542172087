package cmd

import (
	"github.com/spf13/cobra"

	"github.com/steveant/mgit/pkg/bulk"
)

var (
	pullAllProvider    string
	pullAllConcurrency int
)

var pullAllCmd = &cobra.Command{
	Use:   "pull-all <query> <rootDir>",
	Short: "Pull every already-cloned repository under rootDir matching query",
	Long: `Resolve query against a provider, then fast-forward pull every
matching repository that is already cloned under rootDir. A repository
that matches but isn't cloned yet is skipped, not cloned.

Example:
  mgit pull-all "acme/*" ./acme --provider work -c 8`,
	Args: cobra.ExactArgs(2),
	RunE: runPullAll,
}

func init() {
	pullAllCmd.Flags().StringVar(&pullAllProvider, "provider", "", "profile name (defaults to the store's default profile)")
	pullAllCmd.Flags().IntVarP(&pullAllConcurrency, "concurrency", "c", 0, "max concurrent git operations (defaults to config's default_concurrency)")
	rootCmd.AddCommand(pullAllCmd)
}

func runPullAll(cmd *cobra.Command, args []string) error {
	rawQuery, rootDir := args[0], args[1]

	profile, err := resolveProfile(pullAllProvider)
	if err != nil {
		return err
	}
	p, pattern, err := resolveProviderAndQuery(profile, rawQuery)
	if err != nil {
		return err
	}
	if err := p.Authenticate(cmd.Context()); err != nil {
		return wrapCancelled(err)
	}

	opts := bulk.Options{
		TargetDir:   rootDir,
		Concurrency: bulkConcurrency(cmd, pullAllConcurrency),
	}

	eng := bulk.New()
	items, err := eng.Plan(p.ListRepositories(cmd.Context(), pattern), opts, true)
	if err != nil {
		return wrapCancelled(err)
	}

	summary, err := eng.Execute(cmd.Context(), items, profile, opts)
	if err != nil {
		return wrapCancelled(err)
	}
	printBulkSummary(cmd.OutOrStdout(), summary)

	if code := exitCodeForSummary(summary.Cancelled, summary.Failed); code != exitSuccess {
		cmd.SilenceUsage = true
		osExit(code)
	}
	return nil
}
