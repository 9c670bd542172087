package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/pkg/bulk"
)

var (
	cloneAllProvider    string
	cloneAllConcurrency int
	cloneAllUpdateMode  string
	cloneAllBranch      string
	cloneAllRemotes     []string
	cloneAllCleanup     bool
)

var cloneAllCmd = &cobra.Command{
	Use:   "clone-all <query> <targetDir>",
	Short: "Clone every repository matching query into targetDir",
	Long: `Resolve query against a provider, then clone every matching repository
into targetDir, one subdirectory per repository. A destination that
already exists and is a git repository is handled per --update-mode;
one that exists and is not a git repository fails that repository
without aborting the run.

Example:
  mgit clone-all "acme/*" ./acme --provider work -c 8 --update-mode pull`,
	Args: cobra.ExactArgs(2),
	RunE: runCloneAll,
}

func init() {
	cloneAllCmd.Flags().StringVar(&cloneAllProvider, "provider", "", "profile name (defaults to the store's default profile)")
	cloneAllCmd.Flags().IntVarP(&cloneAllConcurrency, "concurrency", "c", 0, "max concurrent git operations (defaults to config's default_concurrency)")
	cloneAllCmd.Flags().StringVar(&cloneAllUpdateMode, "update-mode", "skip", "behavior for an already-cloned destination: skip|pull|force")
	cloneAllCmd.Flags().StringVar(&cloneAllBranch, "branch", "", "checkout this branch (comma-separated fallback list) after cloning")
	cloneAllCmd.Flags().StringArrayVar(&cloneAllRemotes, "remote", nil, "additional remote to register after cloning, as name=url (repeatable)")
	cloneAllCmd.Flags().BoolVar(&cloneAllCleanup, "cleanup-orphans", false, "report (never delete) directories under targetDir that weren't part of this run")
	rootCmd.AddCommand(cloneAllCmd)
}

func runCloneAll(cmd *cobra.Command, args []string) error {
	rawQuery, targetDir := args[0], args[1]

	mode := bulk.UpdateMode(cloneAllUpdateMode)
	switch mode {
	case bulk.UpdateModeSkip, bulk.UpdateModePull, bulk.UpdateModeForce:
	default:
		return errs.New(errs.KindInvalidQuery, "clone-all", "", fmt.Sprintf("invalid --update-mode %q", cloneAllUpdateMode), nil)
	}

	remotes, err := parseRemotes(cloneAllRemotes)
	if err != nil {
		return err
	}

	profile, err := resolveProfile(cloneAllProvider)
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
		TargetDir:         targetDir,
		UpdateMode:        mode,
		Concurrency:       bulkConcurrency(cmd, cloneAllConcurrency),
		Branch:            cloneAllBranch,
		AdditionalRemotes: remotes,
		CleanupOrphans:    cloneAllCleanup,
	}

	eng := bulk.New()
	items, err := eng.Plan(p.ListRepositories(cmd.Context(), pattern), opts, false)
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

// parseRemotes parses repeated name=url flag values into a map.
func parseRemotes(raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, r := range raw {
		name, url, ok := strings.Cut(r, "=")
		if !ok || name == "" || url == "" {
			return nil, errs.New(errs.KindInvalidQuery, "clone-all", "", fmt.Sprintf("invalid --remote %q, expected name=url", r), nil)
		}
		out[name] = url
	}
	return out, nil
}
