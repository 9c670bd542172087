package cmd

import (
	"github.com/spf13/cobra"

	"github.com/steveant/mgit/internal/errs"
)

var (
	listProvider string
	listFormat   string
)

var listCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List repositories matching a query, without cloning",
	Long: `Resolve a query against a provider and print the matching repositories.
query defaults to "*" (every repository visible to the credential).

Example:
  mgit list "acme/*/widgets-*" --provider work --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVar(&listProvider, "provider", "", "profile name (defaults to the store's default profile)")
	listCmd.Flags().StringVar(&listFormat, "format", "table", "output format: table|json")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	raw := "*"
	if len(args) == 1 {
		raw = args[0]
	}

	profile, err := resolveProfile(listProvider)
	if err != nil {
		return err
	}
	p, pattern, err := resolveProviderAndQuery(profile, raw)
	if err != nil {
		return err
	}
	if err := p.Authenticate(cmd.Context()); err != nil {
		return wrapCancelled(err)
	}

	seq := p.ListRepositories(cmd.Context(), pattern)
	if err := renderRepositories(cmd.OutOrStdout(), seq, listFormat); err != nil {
		if _, ok := errs.KindOf(err); ok {
			return err
		}
		return wrapCancelled(errs.New(errs.KindNetworkError, "list", "", err.Error(), err))
	}
	return nil
}
