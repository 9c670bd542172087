package github

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	ghsdk "github.com/google/go-github/v66/github"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/pkg/config"
	"github.com/steveant/mgit/pkg/provider"
	"github.com/steveant/mgit/pkg/query"
)

func newTestProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()
	p := NewProvider(config.ProviderProfile{Name: "test-gh", Kind: config.KindGitHub, Secret: "tok", BaseURL: srv.URL + "/"})
	client := ghsdk.NewClient(srv.Client())
	var err error
	client, err = client.WithEnterpriseURLs(srv.URL+"/", srv.URL+"/")
	if err != nil {
		t.Fatalf("WithEnterpriseURLs() error: %v", err)
	}
	p.client = client
	return p
}

func TestTestConnectionAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	err := p.TestConnection(t.Context())
	if kind, ok := errs.KindOf(err); !ok || kind != errs.KindAuthError {
		t.Errorf("TestConnection() error kind = %v, %v; want KindAuthError", kind, ok)
	}
}

func TestTestConnectionSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ghsdk.User{Login: ghsdk.Ptr("octocat")})
	}))
	defer srv.Close()

	p := newTestProvider(t, srv)
	if err := p.TestConnection(t.Context()); err != nil {
		t.Errorf("TestConnection() unexpected error: %v", err)
	}
}

func TestListRepositoriesRejectsNonNoneProject(t *testing.T) {
	p := newTestProvider(t, httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))
	pattern, err := query.Parse("acme/some-project/*")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	var gotErr error
	for _, err := range p.ListRepositories(t.Context(), pattern) {
		gotErr = err
		break
	}
	if kind, ok := errs.KindOf(gotErr); !ok || kind != errs.KindInvalidQuery {
		t.Errorf("error kind = %v, %v; want KindInvalidQuery", kind, ok)
	}
}

func TestListRepositoriesLiteralOrgFallsBackToUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/users/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]*ghsdk.Repository{
			{Name: ghsdk.Ptr("widgets"), CloneURL: ghsdk.Ptr("https://github.com/acme/widgets.git")},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := newTestProvider(t, srv)
	pattern, err := query.Parse("acme")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	var names []string
	for repo, err := range p.ListRepositories(t.Context(), pattern) {
		if err != nil {
			t.Fatalf("ListRepositories() unexpected error: %v", err)
		}
		names = append(names, repo.Name)
	}
	if len(names) != 1 || names[0] != "widgets" {
		t.Errorf("names = %v, want [widgets]", names)
	}
}

func TestGetAuthenticatedCloneURL(t *testing.T) {
	p := NewProvider(config.ProviderProfile{Kind: config.KindGitHub, Secret: "ghp_abc"})
	url, err := p.GetAuthenticatedCloneURL(provider.Repository{CloneURL: "https://github.com/acme/widgets.git"})
	if err != nil {
		t.Fatalf("GetAuthenticatedCloneURL() error: %v", err)
	}
	if want := "https://ghp_abc@github.com/acme/widgets.git"; url != want {
		t.Errorf("GetAuthenticatedCloneURL() = %q, want %q", url, want)
	}
}
