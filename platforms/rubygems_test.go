package platforms_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/librariesio/keeper/data"
	"github.com/librariesio/keeper/platforms"
	"github.com/librariesio/keeper/store"
)

func pkgNamed(name string) data.Package {
	return data.Package{Platform: "rubygems", Name: name}
}

const gemFixture = `{
	"name": "rake",
	"info": "Rake is a Make-like program implemented in Ruby",
	"homepage_uri": "https://github.com/ruby/rake",
	"source_code_uri": "https://github.com/ruby/rake",
	"licenses": ["MIT"],
	"dependencies": {
		"development": [{"name": "rspec", "requirements": ">= 3.0"}],
		"runtime": [{"name": "minitest", "requirements": "~> 5.0"}]
	}
}`

const versionsFixture = `[
	{"number": "13.2.1", "created_at": "2024-04-05T00:00:00Z"},
	{"number": "13.2.0", "created_at": "2024-04-01T00:00:00Z"}
]`

const ownersFixture = `[
	{"id": 123, "handle": "hsbt", "email": ""},
	{"id": 456, "handle": "drbrain", "email": ""}
]`

func newRubyGemsServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/gems/rake.json":
			w.Write([]byte(gemFixture))
		case "/api/v1/versions/rake.json":
			w.Write([]byte(versionsFixture))
		case "/api/v1/gems/rake/owners.json":
			w.Write([]byte(ownersFixture))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestRubyGemsUpdate(t *testing.T) {
	server := newRubyGemsServer(t)

	st, err := store.Open(filepath.Join(t.TempDir(), "keeper.db"))
	if err != nil {
		t.Fatal(err)
	}
	adapter := platforms.NewRubyGems(server.URL, platforms.NewClient(), st)

	if err := adapter.Update(context.Background(), "rake"); err != nil {
		t.Fatal(err)
	}

	pkg, err := st.FindPackageByName(context.Background(), "rubygems", "rake")
	if err != nil {
		t.Fatal(err)
	}
	if pkg.Licenses != "MIT" {
		t.Errorf("expected raw license MIT, got %q", pkg.Licenses)
	}
	if pkg.VersionsCount != 2 {
		t.Errorf("expected 2 versions, got %d", pkg.VersionsCount)
	}
	if pkg.RepositoryURL != "https://github.com/ruby/rake" {
		t.Errorf("unexpected repository url %q", pkg.RepositoryURL)
	}

	latest, err := st.FindVersion(context.Background(), pkg.ID, "13.2.1")
	if err != nil {
		t.Fatal(err)
	}
	if latest.PublishedAt.IsZero() {
		t.Error("expected a parsed publish timestamp")
	}
}

func TestRubyGemsUpdateNotFound(t *testing.T) {
	server := newRubyGemsServer(t)

	st, err := store.Open(filepath.Join(t.TempDir(), "keeper.db"))
	if err != nil {
		t.Fatal(err)
	}
	adapter := platforms.NewRubyGems(server.URL, platforms.NewClient(), st)

	err = adapter.Update(context.Background(), "no-such-gem")
	if !errors.Is(err, platforms.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRubyGemsDownloadRegistryUsers(t *testing.T) {
	server := newRubyGemsServer(t)
	adapter := platforms.NewRubyGems(server.URL, platforms.NewClient(), nil)

	users, err := adapter.DownloadRegistryUsers(context.Background(), "rake")
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0].Login != "hsbt" || users[0].UUID != "123" {
		t.Errorf("unexpected owners: %+v", users)
	}
}

func TestRubyGemsURLs(t *testing.T) {
	adapter := platforms.NewRubyGems("https://rubygems.org", platforms.NewClient(), nil)

	if got := adapter.DownloadURL("rake", "13.2.1"); got != "https://rubygems.org/downloads/rake-13.2.1.gem" {
		t.Errorf("unexpected download url %q", got)
	}
	if got := adapter.InstallInstructions(pkgNamed("rake"), "13.2.1"); got != "gem install rake -v 13.2.1" {
		t.Errorf("unexpected install instructions %q", got)
	}
}
