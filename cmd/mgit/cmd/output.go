package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"sort"
	"text/tabwriter"

	"github.com/steveant/mgit/pkg/provider"
)

// renderRepositories drains seq and writes it to w in the requested format.
// "json" streams one Repository object per line (NDJSON) as each value is
// pulled off the iterator; "table" buffers the full sequence, sorts it, and
// column-aligns it. The first non-nil error encountered stops iteration and
// is returned.
func renderRepositories(w io.Writer, seq iter.Seq2[provider.Repository, error], format string) error {
	switch format {
	case "json":
		return renderNDJSON(w, seq)
	default:
		return renderTable(w, seq)
	}
}

func renderNDJSON(w io.Writer, seq iter.Seq2[provider.Repository, error]) error {
	enc := json.NewEncoder(w)
	var outErr error
	seq(func(repo provider.Repository, err error) bool {
		if err != nil {
			outErr = err
			return false
		}
		if encErr := enc.Encode(repo); encErr != nil {
			outErr = encErr
			return false
		}
		return true
	})
	return outErr
}

func renderTable(w io.Writer, seq iter.Seq2[provider.Repository, error]) error {
	var repos []provider.Repository
	var outErr error
	seq(func(repo provider.Repository, err error) bool {
		if err != nil {
			outErr = err
			return false
		}
		repos = append(repos, repo)
		return true
	})
	if outErr != nil {
		return outErr
	}

	sort.Slice(repos, func(i, j int) bool {
		if repos[i].Organization != repos[j].Organization {
			return repos[i].Organization < repos[j].Organization
		}
		if repos[i].Project != repos[j].Project {
			return repos[i].Project < repos[j].Project
		}
		return repos[i].Name < repos[j].Name
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORGANIZATION\tPROJECT\tNAME\tPRIVATE\tDEFAULT BRANCH")
	for _, r := range repos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\n", r.Organization, r.Project, r.Name, r.IsPrivate, r.DefaultBranch)
	}
	return tw.Flush()
}
