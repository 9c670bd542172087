package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/pkg/bulk"
	"github.com/steveant/mgit/pkg/config"
	"github.com/steveant/mgit/pkg/provider"
	"github.com/steveant/mgit/pkg/query"
)

// maxReportedFailures bounds the per-task failure detail printed after a
// bulk run; failures beyond it are counted, not listed.
const maxReportedFailures = 20

// resolveProfile loads the config store and returns the profile named by
// --provider, or the store's single/marked default profile if unset.
func resolveProfile(providerFlag string) (config.ProviderProfile, error) {
	cfg, err := config.LoadDefault()
	if err != nil {
		return config.ProviderProfile{}, err
	}
	if providerFlag != "" {
		return cfg.LoadProfile(providerFlag)
	}
	return cfg.ResolveDefaultProfile("")
}

// resolveProviderAndQuery builds the Provider adapter for profile and
// parses raw into a query.Pattern.
func resolveProviderAndQuery(profile config.ProviderProfile, raw string) (provider.Provider, query.Pattern, error) {
	p, err := provider.New(profile)
	if err != nil {
		return nil, query.Pattern{}, errs.New(errs.KindConfigError, "resolveProviderAndQuery", "", err.Error(), err)
	}
	pattern, err := query.Parse(raw)
	if err != nil {
		return nil, query.Pattern{}, errs.New(errs.KindInvalidQuery, "resolveProviderAndQuery", "", err.Error(), err)
	}
	return p, pattern, nil
}

// wrapCancelled tags err as errs.KindCancelled when it's (or wraps) a
// context cancellation, so an interrupt during Authenticate/ListRepositories/
// Plan — before any bulk task and therefore any Summary exists — still maps
// to exit 4 through the ordinary errs.Kind path instead of a raw
// context.Canceled falling through exitCodeForErr's context.Is special case.
func wrapCancelled(err error) error {
	if err == nil || !errors.Is(err, context.Canceled) {
		return err
	}
	return errs.New(errs.KindCancelled, "", "", "", err)
}

// printBulkSummary writes the outcome counts followed by the first
// maxReportedFailures failed items, per the engine's summary contract.
func printBulkSummary(w io.Writer, summary bulk.Summary) {
	fmt.Fprintf(w, "succeeded=%d failed=%d skipped=%d\n", summary.Succeeded, summary.Failed, summary.Skipped)

	var failed []bulk.Outcome
	for _, oc := range summary.Outcomes {
		if oc.Err != nil {
			failed = append(failed, oc)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Item.DestDir < failed[j].Item.DestDir })

	for i, oc := range failed {
		if i >= maxReportedFailures {
			fmt.Fprintf(w, "... %d more failures omitted\n", len(failed)-maxReportedFailures)
			break
		}
		kind, _ := errs.KindOf(oc.Err)
		fmt.Fprintf(w, "FAILED %s: %s: %v\n", oc.Item.DestDir, kind, oc.Err)
	}

	if len(summary.Orphans) > 0 {
		fmt.Fprintf(w, "orphans (not deleted):\n")
		for _, o := range summary.Orphans {
			fmt.Fprintf(w, "  %s\n", o)
		}
	}
}

// bulkConcurrency resolves the -c flag against the config store's
// default_concurrency when unset.
func bulkConcurrency(cmd *cobra.Command, flagValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	if cfg, err := config.LoadDefault(); err == nil {
		return cfg.Global.DefaultConcurrency
	}
	return 0
}
