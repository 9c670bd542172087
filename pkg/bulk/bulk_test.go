package bulk

import (
	"context"
	"iter"
	"os"
	"path/filepath"
	"testing"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/pkg/config"
	"github.com/steveant/mgit/pkg/gitdriver"
	"github.com/steveant/mgit/pkg/provider"
)

func seqOf(repos ...provider.Repository) iter.Seq2[provider.Repository, error] {
	return func(yield func(provider.Repository, error) bool) {
		for _, r := range repos {
			if !yield(r, nil) {
				return
			}
		}
	}
}

func markAsGitRepo(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("setup mkdir: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("setup .git marker: %v", err)
	}
}

func TestPlanDetectsNameCollisionAcrossDistinctRepos(t *testing.T) {
	eng := New()
	repos := seqOf(
		provider.Repository{Name: "widgets", CloneURL: "https://example.com/acme/widgets.git", Organization: "acme", Project: "core"},
		provider.Repository{Name: "widgets", CloneURL: "https://example.com/other/widgets.git", Organization: "other", Project: "core"},
	)

	_, err := eng.Plan(repos, Options{TargetDir: t.TempDir()}, false)
	if kind, ok := errs.KindOf(err); !ok || kind != errs.KindNameCollision {
		t.Fatalf("Plan() error kind = %v, %v; want KindNameCollision", kind, ok)
	}
}

func TestPlanResolvesCloneForNewDestination(t *testing.T) {
	eng := New()
	target := t.TempDir()
	repos := seqOf(provider.Repository{Name: "widgets", CloneURL: "https://example.com/acme/widgets.git"})

	items, err := eng.Plan(repos, Options{TargetDir: target}, false)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(items) != 1 || items[0].Action != ActionClone {
		t.Fatalf("items = %+v, want single ActionClone item", items)
	}
}

func TestPlanResolvesSkipWhenAlreadyClonedAndModeSkip(t *testing.T) {
	eng := New()
	target := t.TempDir()
	markAsGitRepo(t, filepath.Join(target, "widgets"))
	repos := seqOf(provider.Repository{Name: "widgets", CloneURL: "https://example.com/acme/widgets.git"})

	items, err := eng.Plan(repos, Options{TargetDir: target, UpdateMode: UpdateModeSkip}, false)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(items) != 1 || items[0].Action != ActionSkip {
		t.Fatalf("items = %+v, want single ActionSkip item", items)
	}
}

func TestPlanResolvesForceRecloneWhenModeForce(t *testing.T) {
	eng := New()
	target := t.TempDir()
	markAsGitRepo(t, filepath.Join(target, "widgets"))
	repos := seqOf(provider.Repository{Name: "widgets", CloneURL: "https://example.com/acme/widgets.git"})

	items, err := eng.Plan(repos, Options{TargetDir: target, UpdateMode: UpdateModeForce}, false)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(items) != 1 || items[0].Action != ActionForceReclone {
		t.Fatalf("items = %+v, want single ActionForceReclone item", items)
	}
}

func TestPlanMarksObstructedDestinationFailed(t *testing.T) {
	eng := New()
	target := t.TempDir()
	if err := os.MkdirAll(filepath.Join(target, "widgets"), 0o755); err != nil {
		t.Fatalf("setup error: %v", err)
	}
	repos := seqOf(provider.Repository{Name: "widgets", CloneURL: "https://example.com/acme/widgets.git"})

	items, err := eng.Plan(repos, Options{TargetDir: target}, false)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(items) != 1 || items[0].Action != ActionFailed {
		t.Fatalf("items = %+v, want single ActionFailed item", items)
	}
}

func TestPlanPullOnlySkipsUncloneRepos(t *testing.T) {
	eng := New()
	target := t.TempDir()
	repos := seqOf(provider.Repository{Name: "widgets", CloneURL: "https://example.com/acme/widgets.git"})

	items, err := eng.Plan(repos, Options{TargetDir: target}, true)
	if err != nil {
		t.Fatalf("Plan() error: %v", err)
	}
	if len(items) != 1 || items[0].Action != ActionSkip {
		t.Fatalf("items = %+v, want single ActionSkip item for pull-only on uncloned repo", items)
	}
}

// fakeGitOps records calls instead of shelling out to git, so Execute's
// action dispatch and enrichment wiring can be tested without a real
// git binary or network access.
type fakeGitOps struct {
	cloned   []string
	pulled   []string
	checkout []string
	remotes  map[string]string
	failNext bool

	// started/blockUntilCancel, when non-nil, make Clone signal started
	// and then wait for the context to be cancelled instead of returning
	// immediately, so tests can exercise Engine.Execute's cancellation path.
	started          chan struct{}
	blockUntilCancel bool
}

func (f *fakeGitOps) Clone(ctx context.Context, url, destDir string, opts gitdriver.CloneOptions, secrets ...string) error {
	if f.blockUntilCancel {
		if f.started != nil {
			f.started <- struct{}{}
		}
		<-ctx.Done()
		return ctx.Err()
	}
	if f.failNext {
		return errs.New(errs.KindGitOperationError, "Clone", destDir, "simulated failure", nil)
	}
	f.cloned = append(f.cloned, destDir)
	return nil
}

func (f *fakeGitOps) Fetch(ctx context.Context, repoDir string, secrets ...string) error { return nil }

func (f *fakeGitOps) PullFastForward(ctx context.Context, repoDir string, secrets ...string) error {
	f.pulled = append(f.pulled, repoDir)
	return nil
}

func (f *fakeGitOps) CheckoutBranch(ctx context.Context, repoDir, branch string) error {
	f.checkout = append(f.checkout, branch)
	return nil
}

func (f *fakeGitOps) AddRemote(ctx context.Context, repoDir, name, url string) error {
	if f.remotes == nil {
		f.remotes = map[string]string{}
	}
	f.remotes[name] = url
	return nil
}

func testProfile() config.ProviderProfile {
	return config.ProviderProfile{Name: "test", Kind: config.KindGitHub, Secret: "tok"}
}

func TestExecuteClonesAndEnriches(t *testing.T) {
	fake := &fakeGitOps{}
	eng := &Engine{driver: fake}
	target := t.TempDir()
	items := []Item{{
		Repo:    provider.Repository{Name: "widgets", CloneURL: "https://example.com/acme/widgets.git"},
		DestDir: filepath.Join(target, "widgets"),
		Action:  ActionClone,
	}}

	summary, err := eng.Execute(context.Background(), items, testProfile(), Options{
		Branch:            "main",
		AdditionalRemotes: map[string]string{"upstream": "https://example.com/upstream/widgets.git"},
	})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v, want 1 succeeded", summary)
	}
	if len(fake.cloned) != 1 {
		t.Errorf("cloned = %v, want 1 entry", fake.cloned)
	}
	if len(fake.checkout) != 1 || fake.checkout[0] != "main" {
		t.Errorf("checkout = %v, want [main]", fake.checkout)
	}
	if fake.remotes["upstream"] != "https://example.com/upstream/widgets.git" {
		t.Errorf("remotes = %v, missing upstream", fake.remotes)
	}
}

func TestExecuteRecordsFailureInSummaryWithoutError(t *testing.T) {
	fake := &fakeGitOps{failNext: true}
	eng := &Engine{driver: fake}
	target := t.TempDir()
	items := []Item{{
		Repo:    provider.Repository{Name: "widgets", CloneURL: "https://example.com/acme/widgets.git"},
		DestDir: filepath.Join(target, "widgets"),
		Action:  ActionClone,
	}}

	summary, err := eng.Execute(context.Background(), items, testProfile(), Options{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if summary.Failed != 1 || summary.Succeeded != 0 {
		t.Fatalf("summary = %+v, want 1 failed", summary)
	}
}

func TestExecuteSkipsActionSkipItemsWithoutInvokingDriver(t *testing.T) {
	fake := &fakeGitOps{}
	eng := &Engine{driver: fake}
	items := []Item{{
		Repo:       provider.Repository{Name: "widgets"},
		DestDir:    filepath.Join(t.TempDir(), "widgets"),
		Action:     ActionSkip,
		SkipReason: "not_cloned",
	}}

	summary, err := eng.Execute(context.Background(), items, testProfile(), Options{})
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("summary = %+v, want 1 skipped", summary)
	}
	if len(fake.cloned) != 0 || len(fake.pulled) != 0 {
		t.Errorf("driver was invoked for a skipped item: %+v", fake)
	}
}

func TestExecutePropagatesCancellationIntoSummary(t *testing.T) {
	fake := &fakeGitOps{started: make(chan struct{}, 1), blockUntilCancel: true}
	eng := &Engine{driver: fake}
	target := t.TempDir()
	items := []Item{{
		Repo:    provider.Repository{Name: "widgets"},
		DestDir: filepath.Join(target, "widgets"),
		Action:  ActionClone,
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var summary Summary
	var err error
	go func() {
		summary, err = eng.Execute(ctx, items, testProfile(), Options{})
		close(done)
	}()

	<-fake.started
	cancel()
	<-done

	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !summary.Cancelled {
		t.Error("summary.Cancelled = false, want true")
	}
}

func TestFindOrphansReportsUntrackedGitDirectories(t *testing.T) {
	eng := New()
	target := t.TempDir()
	markAsGitRepo(t, filepath.Join(target, "tracked"))
	markAsGitRepo(t, filepath.Join(target, "orphaned"))

	items := []Item{{DestDir: filepath.Join(target, "tracked")}}
	orphans := eng.findOrphans(items, target)

	if len(orphans) != 1 || orphans[0] != filepath.Join(target, "orphaned") {
		t.Errorf("orphans = %v, want [%s]", orphans, filepath.Join(target, "orphaned"))
	}
}
