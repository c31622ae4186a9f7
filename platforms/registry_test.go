package platforms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(NewRubyGems("https://rubygems.org", NewClient(), nil))

	adapter, err := registry.Lookup("rubygems")
	if err != nil {
		t.Fatal(err)
	}
	if adapter.Name() != "rubygems" {
		t.Errorf("expected rubygems, got %q", adapter.Name())
	}

	if _, err := registry.Lookup("cargo"); err == nil {
		t.Error("expected an error for an unregistered ecosystem")
	}
}

func TestRegistryValidate(t *testing.T) {
	client := NewClient()
	registry := NewRegistry(
		NewRubyGems("https://rubygems.org", client, nil),
		NewPyPi("https://pypi.org", client, nil),
	)

	if err := registry.Validate([]string{"rubygems", "pypi"}); err != nil {
		t.Errorf("expected a valid registry, got %v", err)
	}
	if err := registry.Validate([]string{"rubygems", "npm"}); err == nil {
		t.Error("expected validation to fail for a missing adapter")
	}
}

func TestRegistryNames(t *testing.T) {
	client := NewClient()
	registry := NewRegistry(
		NewPyPi("https://pypi.org", client, nil),
		NewRubyGems("https://rubygems.org", client, nil),
	)

	names := registry.Names()
	if len(names) != 2 || names[0] != "pypi" || names[1] != "rubygems" {
		t.Errorf("expected sorted names, got %v", names)
	}
}

func TestClientHeadDoesNotFollowRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/moved":
			http.Redirect(w, r, "/landed", http.StatusFound)
		case "/landed":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient()

	code, err := client.Head(context.Background(), server.URL+"/moved")
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusFound {
		t.Errorf("expected the redirect itself to be observable, got %d", code)
	}

	code, err = client.Head(context.Background(), server.URL+"/missing")
	if err != nil {
		t.Fatal(err)
	}
	if code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}
