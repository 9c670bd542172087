// Package azuredevops implements the provider interface for Azure DevOps
// Services. No official Azure DevOps Go SDK appears anywhere in the
// reference corpus this engine was built from; the REST surface needed
// here (projects, git repositories) is small enough to hand-roll directly
// atop the shared hashicorp/go-retryablehttp client used elsewhere in the
// engine, following the PAT-as-Basic-auth pattern common to every
// Azure DevOps client this corpus surfaced.
package azuredevops

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/pkg/config"
	"github.com/steveant/mgit/pkg/provider"
	"github.com/steveant/mgit/pkg/query"
	"github.com/steveant/mgit/pkg/ratelimit"
)

const apiVersion = "7.1"

func init() {
	provider.Register(config.KindAzureDevOps, func(profile config.ProviderProfile) (provider.Provider, error) {
		return NewProvider(profile), nil
	})
}

// Provider implements provider.Provider for Azure DevOps. The
// organization is fixed by the profile; the hierarchy below it is
// project -> git repository.
type Provider struct {
	profile config.ProviderProfile
	client  *retryablehttp.Client

	rateLimiter *ratelimit.Limiter
}

// NewProvider constructs an Azure DevOps adapter for profile.
func NewProvider(profile config.ProviderProfile) *Provider {
	client := retryablehttp.NewClient()
	client.HTTPClient = cleanhttp.DefaultPooledClient()
	client.Logger = nil
	client.RetryMax = 3
	client.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err != nil {
			return true, nil
		}
		return ratelimit.ShouldRetry(resp), nil
	}
	client.Backoff = func(_, _ time.Duration, attempt int, _ *http.Response) time.Duration {
		return ratelimit.CalculateBackoff(attempt)
	}
	return &Provider{
		profile:     profile,
		client:      client,
		rateLimiter: ratelimit.NewLimiter(200),
	}
}

func (p *Provider) Kind() config.Kind { return config.KindAzureDevOps }

// Authenticate is a no-op: the PAT is sent as a Basic auth header on
// every request rather than exchanged for a session token up front.
func (p *Provider) Authenticate(ctx context.Context) error { return nil }

// TestConnection lists one project to confirm the PAT is valid.
func (p *Provider) TestConnection(ctx context.Context) error {
	_, err := p.get(ctx, p.orgURL("/_apis/projects?$top=1"))
	if err != nil {
		return err
	}
	return nil
}

type adoProject struct {
	Name string `json:"name"`
}

type adoProjectList struct {
	Value []adoProject `json:"value"`
}

// ListOrganizations returns the single fixed organization the profile
// points at; Azure DevOps has no concept of listing organizations the
// PAT can see without the separate account-level API. The name is
// parsed out of BaseURL rather than read from profile.Workspace, which
// is BitBucket's workspace field and is normally empty here.
func (p *Provider) ListOrganizations(ctx context.Context) ([]provider.Organization, error) {
	return []provider.Organization{{Name: orgNameFromBaseURL(p.profile.BaseURL), URL: p.profile.BaseURL}}, nil
}

// orgNameFromBaseURL extracts the organization segment from either
// Azure DevOps URL shape: https://dev.azure.com/{org} or the legacy
// https://{org}.visualstudio.com.
func orgNameFromBaseURL(baseURL string) string {
	trimmed := strings.TrimRight(baseURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		last := trimmed[idx+1:]
		if !strings.Contains(last, ".") {
			return last
		}
	}
	host := trimmed
	if idx := strings.Index(host, "://"); idx >= 0 {
		host = host[idx+3:]
	}
	if idx := strings.Index(host, "/"); idx >= 0 {
		host = host[:idx]
	}
	if sub, _, ok := strings.Cut(host, "."); ok {
		return sub
	}
	return host
}

func (p *Provider) listProjects(ctx context.Context) ([]string, error) {
	var names []string
	continuation := ""
	for {
		path := "/_apis/projects?$top=100"
		if continuation != "" {
			path += "&continuationToken=" + continuation
		}
		resp, err := p.get(ctx, p.orgURL(path))
		if err != nil {
			return nil, err
		}
		var list adoProjectList
		if err := json.Unmarshal(resp.body, &list); err != nil {
			return nil, errs.New(errs.KindNetworkError, "ListRepositories", p.profile.Name, "decoding project list", err)
		}
		for _, proj := range list.Value {
			names = append(names, proj.Name)
		}
		continuation = resp.continuationToken
		if continuation == "" {
			return names, nil
		}
	}
}

type adoRepository struct {
	Name          string `json:"name"`
	RemoteURL     string `json:"remoteUrl"`
	SSHURL        string `json:"sshUrl"`
	DefaultBranch string `json:"defaultBranch"`
	IsDisabled    bool   `json:"isDisabled"`
	Size          int64  `json:"size"`
	Project       struct {
		Name string `json:"name"`
	} `json:"project"`
}

type adoRepositoryList struct {
	Value []adoRepository `json:"value"`
}

// ListRepositories resolves org/projGlob/repoGlob: org is fixed by the
// profile, so only the project and repo segments participate. NONE is
// invalid at the project level since Azure DevOps has no "projectless"
// repository concept.
func (p *Provider) ListRepositories(ctx context.Context, pattern query.Pattern) iter.Seq2[provider.Repository, error] {
	return func(yield func(provider.Repository, error) bool) {
		if pattern.Project.IsNoneOnly() {
			yield(provider.Repository{}, errs.New(errs.KindInvalidQuery, "ListRepositories", p.profile.Name, "azure devops has no projectless repositories; project segment cannot be NONE", nil))
			return
		}

		projects, err := p.candidateProjects(ctx, pattern)
		if err != nil {
			yield(provider.Repository{}, err)
			return
		}
		for _, proj := range projects {
			if !p.yieldProjectRepos(ctx, proj, pattern, yield) {
				return
			}
		}
	}
}

func (p *Provider) candidateProjects(ctx context.Context, pattern query.Pattern) ([]string, error) {
	if lit, ok := pattern.Project.Literal(); ok {
		return []string{lit}, nil
	}
	all, err := p.listProjects(ctx)
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, proj := range all {
		if pattern.Project.Match(proj) {
			matched = append(matched, proj)
		}
	}
	return matched, nil
}

func (p *Provider) yieldProjectRepos(ctx context.Context, project string, pattern query.Pattern, yield func(provider.Repository, error) bool) bool {
	resp, err := p.get(ctx, p.orgURL(fmt.Sprintf("/%s/_apis/git/repositories", urlPathEscape(project))))
	if err != nil {
		return yield(provider.Repository{}, err)
	}
	var list adoRepositoryList
	if jerr := json.Unmarshal(resp.body, &list); jerr != nil {
		return yield(provider.Repository{}, errs.New(errs.KindNetworkError, "ListRepositories", project, "decoding repository list", jerr))
	}
	for _, repo := range list.Value {
		if !pattern.Repo.Match(repo.Name) {
			continue
		}
		if !yield(convertRepo(repo, orgNameFromBaseURL(p.profile.BaseURL), project), nil) {
			return false
		}
	}
	return true
}

// GetAuthenticatedCloneURL delegates to the shared urlutil helper.
func (p *Provider) GetAuthenticatedCloneURL(repo provider.Repository) (string, error) {
	return provider.EmbedCredential(repo, p.profile)
}

func convertRepo(r adoRepository, org, project string) provider.Repository {
	return provider.Repository{
		Name:          r.Name,
		CloneURL:      r.RemoteURL,
		SSHURL:        r.SSHURL,
		DefaultBranch: r.DefaultBranch,
		IsDisabled:    r.IsDisabled,
		Size:          r.Size,
		ProviderKind:  config.KindAzureDevOps,
		Organization:  org,
		Project:       project,
	}
}

func (p *Provider) orgURL(path string) string {
	sep := "?"
	if containsQuery(path) {
		sep = "&"
	}
	return p.profile.BaseURL + path + sep + "api-version=" + apiVersion
}

func containsQuery(path string) bool {
	for _, r := range path {
		if r == '?' {
			return true
		}
	}
	return false
}

func urlPathEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == ' ' {
			out = append(out, '%', '2', '0')
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

type apiResponse struct {
	body              []byte
	continuationToken string
}

// get issues an authenticated GET against url, using the PAT as the
// Basic auth password with an empty username, and feeds the response
// headers to the shared rate limiter.
func (p *Provider) get(ctx context.Context, url string) (*apiResponse, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.New(errs.KindNetworkError, "get", p.profile.Name, "", err)
	}
	req.SetBasicAuth("", p.profile.Secret)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, errs.New(errs.KindNetworkError, "get", p.profile.Name, "", err)
	}
	defer resp.Body.Close()

	p.rateLimiter.UpdateFromHeaders(resp)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errs.New(errs.KindAuthError, "get", p.profile.Name, "", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.New(errs.KindNetworkError, "get", p.profile.Name, "", fmt.Errorf("status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.New(errs.KindNetworkError, "get", p.profile.Name, "reading response body", err)
	}
	return &apiResponse{body: body, continuationToken: resp.Header.Get("X-Ms-Continuationtoken")}, nil
}
