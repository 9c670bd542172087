// Package bulk composes a provider's repository listing, the bounded
// concurrency executor, and the git driver into the clone-all and
// pull-all operations. Enrichment features (branch checkout after
// clone, additional remotes, orphan reporting) are grounded on the
// teacher's richer pkg/reposync engine, narrowed to this engine's
// flatter three-mode update model.
package bulk

import (
	"context"
	"fmt"
	"iter"
	"os"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/internal/executor"
	"github.com/steveant/mgit/pkg/config"
	"github.com/steveant/mgit/pkg/gitdriver"
	"github.com/steveant/mgit/pkg/provider"
)

// UpdateMode controls what an already-cloned destination does on a
// subsequent clone-all run.
type UpdateMode string

const (
	UpdateModeSkip  UpdateMode = "skip"
	UpdateModePull  UpdateMode = "pull"
	UpdateModeForce UpdateMode = "force"
)

// Action is the operation planning assigned to one repository.
type Action string

const (
	ActionClone        Action = "clone"
	ActionPull         Action = "pull"
	ActionForceReclone Action = "force_reclone"
	ActionSkip         Action = "skip"
	ActionFailed       Action = "failed"
)

// Options configures a clone-all or pull-all run.
type Options struct {
	TargetDir         string
	UpdateMode        UpdateMode
	Concurrency       int
	Branch            string
	AdditionalRemotes map[string]string
	CleanupOrphans    bool
}

// Item is one planned repository operation.
type Item struct {
	Repo       provider.Repository
	DestDir    string
	Action     Action
	SkipReason string
}

// Outcome is the per-repository result of executing an Item.
type Outcome struct {
	Item Item
	Err  error
}

// Summary aggregates a completed clone-all or pull-all run.
type Summary struct {
	Outcomes  []Outcome
	Succeeded int
	Failed    int
	Skipped   int
	Orphans   []string
	Cancelled bool
}

// gitOps is the subset of gitdriver.Driver's methods Engine depends on;
// narrowed to an interface so tests can substitute a fake rather than
// shelling out to the real git binary.
type gitOps interface {
	Clone(ctx context.Context, url, destDir string, opts gitdriver.CloneOptions, secrets ...string) error
	Fetch(ctx context.Context, repoDir string, secrets ...string) error
	PullFastForward(ctx context.Context, repoDir string, secrets ...string) error
	CheckoutBranch(ctx context.Context, repoDir, branch string) error
	AddRemote(ctx context.Context, repoDir, name, url string) error
}

// Engine composes repository listing, the git driver, and the bounded
// executor into clone-all/pull-all runs.
type Engine struct {
	driver gitOps
}

// New constructs an Engine using the system git binary.
func New() *Engine {
	return &Engine{driver: gitdriver.New()}
}

// Plan drains repos, resolving each to a destination directory and
// action. Two repositories that sanitize to the same destination
// directory but represent distinct (organization, project) pairs fail
// planning with KindNameCollision rather than silently merging.
func (e *Engine) Plan(repos iter.Seq2[provider.Repository, error], opts Options, pullOnly bool) ([]Item, error) {
	var items []Item
	claimedBy := make(map[string]provider.Repository)

	var planErr error
	repos(func(repo provider.Repository, err error) bool {
		if err != nil {
			planErr = err
			return false
		}

		name, nerr := gitdriver.DestinationName(repo.CloneURL)
		if nerr != nil {
			planErr = errs.New(errs.KindInvalidName, "Plan", repo.Name, nerr.Error(), nerr)
			return false
		}
		destDir := gitdriver.JoinDest(opts.TargetDir, name)

		if prior, claimed := claimedBy[destDir]; claimed && !sameRepo(prior, repo) {
			planErr = errs.New(errs.KindNameCollision, "Plan", repo.Name,
				fmt.Sprintf("destination %q already claimed by %s/%s", destDir, prior.Organization, prior.Project), nil)
			return false
		}
		claimedBy[destDir] = repo

		item := Item{
			Repo:    repo,
			DestDir: destDir,
			Action:  resolveAction(destDir, opts.UpdateMode, pullOnly),
		}
		if pullOnly && item.Action == ActionSkip {
			item.SkipReason = "not_cloned"
		}
		items = append(items, item)
		return true
	})
	if planErr != nil {
		return nil, planErr
	}
	return items, nil
}

func sameRepo(a, b provider.Repository) bool {
	return a.Organization == b.Organization && a.Project == b.Project && a.Name == b.Name
}

func resolveAction(destDir string, mode UpdateMode, pullOnly bool) Action {
	info, err := os.Stat(destDir)
	exists := err == nil
	isGitRepo := exists && isGitDir(destDir)

	switch {
	case pullOnly && !exists:
		return ActionSkip
	case pullOnly:
		if !isGitRepo {
			return ActionFailed
		}
		return ActionPull
	case !exists:
		return ActionClone
	case !info.IsDir() || !isGitRepo:
		return ActionFailed
	case mode == UpdateModePull:
		return ActionPull
	case mode == UpdateModeForce:
		return ActionForceReclone
	default:
		return ActionSkip
	}
}

func isGitDir(dir string) bool {
	_, err := os.Stat(dir + "/.git")
	return err == nil
}

// Execute runs every non-skipped, non-failed Item through the executor
// using profile's credential, then aggregates the outcomes. Orphan
// detection (when opts.CleanupOrphans is set) runs after the main pass
// and is reported, never deleted.
func (e *Engine) Execute(ctx context.Context, items []Item, profile config.ProviderProfile, opts Options) (Summary, error) {
	outcomes := make([]Outcome, len(items))
	indexByDest := make(map[string]int, len(items))
	var tasks []executor.Task[struct{}]

	for i, item := range items {
		outcomes[i] = Outcome{Item: item}
		indexByDest[item.DestDir] = i

		switch item.Action {
		case ActionFailed:
			outcomes[i].Err = errs.New(errs.KindDestinationObstructed, "Plan", item.Repo.Name, item.DestDir, nil)
			continue
		case ActionSkip:
			continue
		}

		item := item
		tasks = append(tasks, executor.Task[struct{}]{
			ID: item.DestDir,
			Run: func(ctx context.Context) (struct{}, error) {
				return struct{}{}, e.runItem(ctx, item, profile, opts)
			},
		})
	}

	var cancelled bool
	if len(tasks) > 0 {
		concurrency := opts.Concurrency
		ex := executor.New[struct{}](concurrency)
		future, err := ex.Submit(ctx, tasks)
		if err != nil {
			return Summary{}, err
		}
		for range future.Events() {
		}
		execSummary := future.Wait()
		cancelled = execSummary.Cancelled
		for _, r := range execSummary.Results {
			outcomes[indexByDest[r.ID]].Err = r.Err
		}
	}

	summary := Summary{Outcomes: outcomes, Cancelled: cancelled}
	for _, oc := range outcomes {
		switch {
		case oc.Item.Action == ActionSkip:
			summary.Skipped++
		case oc.Err != nil:
			summary.Failed++
		default:
			summary.Succeeded++
		}
	}
	if opts.CleanupOrphans {
		summary.Orphans = e.findOrphans(items, opts.TargetDir)
	}
	return summary, nil
}

func (e *Engine) runItem(ctx context.Context, item Item, profile config.ProviderProfile, opts Options) error {
	cloneURL, err := provider.EmbedCredential(item.Repo, profile)
	if err != nil {
		return err
	}

	switch item.Action {
	case ActionClone:
		if err := e.driver.Clone(ctx, cloneURL, item.DestDir, gitdriver.CloneOptions{}, profile.Secret); err != nil {
			return err
		}
		return e.enrich(ctx, item, opts)
	case ActionForceReclone:
		if err := os.RemoveAll(item.DestDir); err != nil {
			return errs.New(errs.KindGitOperationError, "force_reclone", item.Repo.Name, "removing existing destination", err)
		}
		if err := e.driver.Clone(ctx, cloneURL, item.DestDir, gitdriver.CloneOptions{}, profile.Secret); err != nil {
			return err
		}
		return e.enrich(ctx, item, opts)
	case ActionPull:
		if err := e.driver.Fetch(ctx, item.DestDir, profile.Secret); err != nil {
			return err
		}
		return e.driver.PullFastForward(ctx, item.DestDir, profile.Secret)
	default:
		return nil
	}
}

// enrich applies the optional post-clone branch checkout and additional
// remotes, grounded on the teacher's checkoutBranch/addAdditionalRemotes.
func (e *Engine) enrich(ctx context.Context, item Item, opts Options) error {
	if opts.Branch != "" {
		if err := e.driver.CheckoutBranch(ctx, item.DestDir, opts.Branch); err != nil {
			return err
		}
	}
	for name, url := range opts.AdditionalRemotes {
		if err := e.driver.AddRemote(ctx, item.DestDir, name, url); err != nil {
			return err
		}
	}
	return nil
}

// findOrphans reports directories under targetDir that are git working
// trees but weren't part of this run's resolved repository set; it
// never deletes them.
func (e *Engine) findOrphans(items []Item, targetDir string) []string {
	expected := make(map[string]struct{}, len(items))
	for _, item := range items {
		expected[item.DestDir] = struct{}{}
	}

	entries, err := os.ReadDir(targetDir)
	if err != nil {
		return nil
	}

	var orphans []string
	for _, entry := range entries {
		if !entry.IsDir() || len(entry.Name()) == 0 || entry.Name()[0] == '.' {
			continue
		}
		dir := gitdriver.JoinDest(targetDir, entry.Name())
		if _, tracked := expected[dir]; tracked {
			continue
		}
		if isGitDir(dir) {
			orphans = append(orphans, dir)
		}
	}
	return orphans
}
