package repos

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/librariesio/keeper/data"
	"github.com/librariesio/keeper/platforms"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		raw      string
		host     string
		fullName string
		ok       bool
	}{
		{"https://github.com/rails/rails", "GitHub", "rails/rails", true},
		{"https://github.com/rails/rails.git", "GitHub", "rails/rails", true},
		{"http://www.github.com/rails/rails/tree/main", "GitHub", "rails/rails", true},
		{"git@github.com:rails/rails.git", "GitHub", "rails/rails", true},
		{"github.com/rails/rails", "GitHub", "rails/rails", true},
		{"https://gitlab.com/inkscape/inkscape", "GitLab", "inkscape/inkscape", true},
		{"https://bitbucket.org/atlassian/jwt", "Bitbucket", "atlassian/jwt", true},
		{"https://example.com/rails/rails", "", "", false},
		{"https://github.com/rails", "", "", false},
		{"", "", "", false},
		{"not a url", "", "", false},
	}

	for _, tt := range tests {
		host, fullName, ok := ParseRepoURL(tt.raw)
		if ok != tt.ok || host != tt.host || fullName != tt.fullName {
			t.Errorf("ParseRepoURL(%q) = %q, %q, %v; want %q, %q, %v",
				tt.raw, host, fullName, ok, tt.host, tt.fullName, tt.ok)
		}
	}
}

func TestGitHubResolve(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/rails/rails" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{
			"full_name": "rails/rails",
			"description": "Ruby on Rails",
			"homepage": "https://rubyonrails.org",
			"language": "Ruby",
			"license": {"spdx_id": "MIT"}
		}`))
	}))
	defer server.Close()

	gh := NewGitHub(server.URL, platforms.NewClient())

	link, found, err := gh.Resolve(context.Background(), "rails/rails")
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Fatal("expected the repository to be found")
	}
	if link.FullName != "rails/rails" || link.License != "MIT" || link.Language != "Ruby" {
		t.Errorf("unexpected link: %+v", link)
	}

	_, found, err = gh.Resolve(context.Background(), "rails/gone")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected a 404 to mean not found, not an error")
	}
}

type fakeRepoStore struct {
	pkg   data.Package
	links []data.RepositoryLink
}

func (s *fakeRepoStore) FindPackage(ctx context.Context, id uint) (*data.Package, error) {
	pkg := s.pkg
	return &pkg, nil
}

func (s *fakeRepoStore) SetRepositoryLink(ctx context.Context, packageID uint, link data.RepositoryLink) error {
	s.links = append(s.links, link)
	return nil
}

type fakeResolver struct {
	link  *data.RepositoryLink
	found bool
}

func (r *fakeResolver) Host() string { return "GitHub" }

func (r *fakeResolver) Resolve(ctx context.Context, fullName string) (*data.RepositoryLink, bool, error) {
	return r.link, r.found, nil
}

func TestResolveForPackageLinks(t *testing.T) {
	s := &fakeRepoStore{pkg: data.Package{ID: 1, RepositoryURL: "https://github.com/rails/rails"}}
	svc := NewService(s, &fakeResolver{link: &data.RepositoryLink{Host: "GitHub", FullName: "rails/rails"}, found: true})

	if err := svc.ResolveForPackage(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if len(s.links) != 1 || s.links[0].FullName != "rails/rails" {
		t.Errorf("expected a persisted link, got %v", s.links)
	}
}

func TestResolveForPackageSkipsUnrecognizedURL(t *testing.T) {
	s := &fakeRepoStore{pkg: data.Package{ID: 1, RepositoryURL: "https://example.com/nope"}}
	svc := NewService(s, &fakeResolver{found: true})

	if err := svc.ResolveForPackage(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if len(s.links) != 0 {
		t.Errorf("expected no link, got %v", s.links)
	}
}

func TestResolveForPackageSkipsGoneRepository(t *testing.T) {
	s := &fakeRepoStore{pkg: data.Package{ID: 1, RepositoryURL: "https://github.com/rails/gone"}}
	svc := NewService(s, &fakeResolver{found: false})

	if err := svc.ResolveForPackage(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if len(s.links) != 0 {
		t.Errorf("expected no link, got %v", s.links)
	}
}
