// Copyright (c) 2025 Archmagece
// SPDX-License-Identifier: MIT

package gitea

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/steveant/mgit/internal/errs"
	"github.com/steveant/mgit/pkg/config"
	"github.com/steveant/mgit/pkg/provider"
	"github.com/steveant/mgit/pkg/query"
)

func newTestProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()
	p := NewProvider(config.ProviderProfile{Name: "test-gitea", Kind: config.KindGitea, Secret: "tok", BaseURL: srv.URL})
	if err := p.Authenticate(t.Context()); err != nil {
		t.Fatalf("Authenticate() error: %v", err)
	}
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

func TestListRepositoriesLiteralOrg(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"widgets","clone_url":"https://gitea.example.com/acme/widgets.git"}]`))
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
	p := NewProvider(config.ProviderProfile{Kind: config.KindGitea, Secret: "gta_abc"})
	url, err := p.GetAuthenticatedCloneURL(provider.Repository{CloneURL: "https://gitea.example.com/acme/widgets.git"})
	if err != nil {
		t.Fatalf("GetAuthenticatedCloneURL() error: %v", err)
	}
	if want := "https://gta_abc@gitea.example.com/acme/widgets.git"; url != want {
		t.Errorf("GetAuthenticatedCloneURL() = %q, want %q", url, want)
	}
}
