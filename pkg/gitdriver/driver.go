// Package gitdriver implements the three git operations the engine ever
// shells out for: clone, fetch, and fast-forward pull. It is a thin,
// spec-shaped wrapper over internal/gitcmd's Executor, adding output
// capping, credential redaction, and classification of failures into
// the engine's error taxonomy.
package gitdriver

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/internal/gitcmd"
	"github.com/steveant/mgit/pkg/urlutil"
)

// maxCapturedOutput bounds how much of a command's stdout/stderr is kept
// for error reporting; git's own progress chatter can be arbitrarily long.
const maxCapturedOutput = 8 * 1024

// CloneOptions configures Clone.
type CloneOptions struct {
	Branch       string
	Depth        int
	SingleBranch bool
}

// Driver executes git operations against working directories on disk.
type Driver struct {
	exec *gitcmd.Executor
}

// New constructs a Driver using the system git binary. Git subprocesses
// get no timeout of their own; only context cancellation stops them.
func New() *Driver {
	return &Driver{exec: gitcmd.NewExecutor(gitcmd.WithTimeout(0))}
}

// Clone runs `git clone <url> <destDir>` with the given options. url is
// expected to already carry any embedded credential (see
// provider.EmbedCredential); it is redacted out of any error this
// returns. If destDir exists and is not a git working tree, Clone fails
// with KindDestinationObstructed rather than letting git error out on
// its own.
func (d *Driver) Clone(ctx context.Context, url, destDir string, opts CloneOptions, secrets ...string) error {
	if info, err := os.Stat(destDir); err == nil {
		if !info.IsDir() || !d.exec.IsGitRepository(ctx, destDir) {
			return errs.New(errs.KindDestinationObstructed, "Clone", destDir, "", nil)
		}
	}

	args := []string{"clone"}
	if opts.Branch != "" {
		args = append(args, "--branch", opts.Branch)
	}
	if opts.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(opts.Depth))
	}
	if opts.SingleBranch {
		args = append(args, "--single-branch")
	}
	args = append(args, url, destDir)

	result, err := d.exec.RunWithEnv(ctx, "", []string{"GIT_TERMINAL_PROMPT=0"}, args...)
	if err != nil {
		return errs.New(errs.KindGitOperationError, "Clone", destDir, "", err)
	}
	if result.ExitCode != 0 {
		return classify("Clone", destDir, result.Stderr, secrets)
	}
	return nil
}

// Fetch runs `git -C <repoDir> fetch --all --prune`.
func (d *Driver) Fetch(ctx context.Context, repoDir string, secrets ...string) error {
	if !d.exec.IsGitRepository(ctx, repoDir) {
		return errs.New(errs.KindDestinationObstructed, "Fetch", repoDir, "", nil)
	}
	result, err := d.exec.RunWithEnv(ctx, repoDir, []string{"GIT_TERMINAL_PROMPT=0"}, "fetch", "--all", "--prune")
	if err != nil {
		return errs.New(errs.KindGitOperationError, "Fetch", repoDir, "", err)
	}
	if result.ExitCode != 0 {
		return classify("Fetch", repoDir, result.Stderr, secrets)
	}
	return nil
}

// PullFastForward runs `git -C <repoDir> pull --ff-only`.
func (d *Driver) PullFastForward(ctx context.Context, repoDir string, secrets ...string) error {
	if !d.exec.IsGitRepository(ctx, repoDir) {
		return errs.New(errs.KindDestinationObstructed, "PullFastForward", repoDir, "", nil)
	}
	result, err := d.exec.RunWithEnv(ctx, repoDir, []string{"GIT_TERMINAL_PROMPT=0"}, "pull", "--ff-only")
	if err != nil {
		return errs.New(errs.KindGitOperationError, "PullFastForward", repoDir, "", err)
	}
	if result.ExitCode != 0 {
		return classify("PullFastForward", repoDir, result.Stderr, secrets)
	}
	return nil
}

// CheckoutBranch checks out the first branch in a comma-separated
// fallback list that actually exists (locally or as an origin tracking
// branch), e.g. "develop,master" tries develop first.
func (d *Driver) CheckoutBranch(ctx context.Context, repoDir, branch string) error {
	var lastErr error
	for _, b := range strings.Split(branch, ",") {
		b = strings.TrimSpace(b)
		if b == "" || !d.branchExists(ctx, repoDir, b) {
			continue
		}
		result, err := d.exec.RunWithEnv(ctx, repoDir, nil, "checkout", b)
		if err != nil {
			lastErr = errs.New(errs.KindGitOperationError, "CheckoutBranch", repoDir, "", err)
			continue
		}
		if result.ExitCode != 0 {
			lastErr = classify("CheckoutBranch", repoDir, result.Stderr, nil)
			continue
		}
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return errs.New(errs.KindGitOperationError, "CheckoutBranch", repoDir, "none of the specified branches exist: "+branch, nil)
}

func (d *Driver) branchExists(ctx context.Context, repoDir, branch string) bool {
	if result, err := d.exec.RunWithEnv(ctx, repoDir, nil, "rev-parse", "--verify", "--quiet", branch); err == nil && result.ExitCode == 0 {
		return true
	}
	result, err := d.exec.RunWithEnv(ctx, repoDir, nil, "rev-parse", "--verify", "--quiet", "origin/"+branch)
	return err == nil && result.ExitCode == 0
}

// AddRemote registers name pointing at url, or updates it in place if
// name already exists with a different URL.
func (d *Driver) AddRemote(ctx context.Context, repoDir, name, url string) error {
	existing, _ := d.exec.RunOutput(ctx, repoDir, "remote", "get-url", name)
	if strings.TrimSpace(existing) == url {
		return nil
	}
	sub := "add"
	if existing != "" {
		sub = "set-url"
	}
	result, err := d.exec.RunWithEnv(ctx, repoDir, nil, "remote", sub, name, url)
	if err != nil {
		return errs.New(errs.KindGitOperationError, "AddRemote", repoDir, "", err)
	}
	if result.ExitCode != 0 {
		return classify("AddRemote", repoDir, result.Stderr, nil)
	}
	return nil
}

// classify derives a GitSubkind from known stderr patterns and builds a
// redacted, size-capped EngineError.
func classify(op, repo, stderr string, secrets []string) error {
	detail := urlutil.Redact(capOutput(stderr), secrets...)
	return errs.NewGitError(subkindOf(stderr), op, repo, detail, nil)
}

func subkindOf(stderr string) errs.GitSubkind {
	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "non-fast-forward"), strings.Contains(lower, "fatal: not possible to fast-forward"):
		return errs.SubkindNonFastForward
	case strings.Contains(lower, "authentication failed"), strings.Contains(lower, "permission denied"), strings.Contains(lower, "could not read username"):
		return errs.SubkindAuthRefused
	case strings.Contains(lower, "couldn't find remote ref"), strings.Contains(lower, "unknown revision"):
		return errs.SubkindBrokenRef
	default:
		return errs.SubkindOther
	}
}

func capOutput(s string) string {
	if len(s) <= maxCapturedOutput {
		return s
	}
	return s[:maxCapturedOutput] + "... (truncated)"
}

// DestinationName derives the on-disk directory name for repo's clone
// URL, delegating to the shared sanitizer so every adapter's URL shape
// produces a consistent, filesystem-safe name.
func DestinationName(cloneURL string) (string, error) {
	return urlutil.SanitizeRepoName(cloneURL)
}

// JoinDest builds the full destination path for a repository under root.
func JoinDest(root, name string) string {
	return filepath.Join(root, name)
}
