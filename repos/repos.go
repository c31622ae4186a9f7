// Package repos resolves a package's repository URL into a repository
// record that supplies fallback description, homepage and license data.
package repos

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/buger/jsonparser"
	log "github.com/sirupsen/logrus"

	"github.com/librariesio/keeper/data"
	"github.com/librariesio/keeper/platforms"
)

// Resolver looks up one repository on one hosting service.
type Resolver interface {
	// Resolve returns the repository record for owner/name, or ok=false
	// when the host reports it missing. Transport failures return an
	// error.
	Resolve(ctx context.Context, fullName string) (*data.RepositoryLink, bool, error)
	Host() string
}

// ParseRepoURL splits a repository URL into its hosting service and
// owner/name path. It accepts https, http, git and ssh-style URLs and
// strips a trailing ".git". Unknown hosts and URLs without an owner/name
// path are rejected.
func ParseRepoURL(raw string) (host, fullName string, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}
	if after, found := strings.CutPrefix(raw, "git@"); found {
		raw = "https://" + strings.Replace(after, ":", "/", 1)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", false
	}
	switch strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.") {
	case "github.com":
		host = "GitHub"
	case "gitlab.com":
		host = "GitLab"
	case "bitbucket.org":
		host = "Bitbucket"
	default:
		return "", "", false
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	fullName = parts[0] + "/" + strings.TrimSuffix(parts[1], ".git")
	return host, fullName, true
}

// GitHub resolves repositories through the GitHub REST API.
type GitHub struct {
	baseURL string
	client  *platforms.Client
}

func NewGitHub(baseURL string, client *platforms.Client) *GitHub {
	return &GitHub{baseURL: strings.TrimSuffix(baseURL, "/"), client: client}
}

func (g *GitHub) Host() string { return "GitHub" }

func (g *GitHub) Resolve(ctx context.Context, fullName string) (*data.RepositoryLink, bool, error) {
	body, err := g.client.Get(ctx, fmt.Sprintf("%s/repos/%s", g.baseURL, fullName))
	if err != nil {
		var httpErr *platforms.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, false, nil
		}
		return nil, false, err
	}

	link := &data.RepositoryLink{Host: "GitHub"}
	link.FullName, _ = jsonparser.GetString(body, "full_name")
	if link.FullName == "" {
		link.FullName = fullName
	}
	link.Description, _ = jsonparser.GetString(body, "description")
	link.Homepage, _ = jsonparser.GetString(body, "homepage")
	link.Language, _ = jsonparser.GetString(body, "language")
	if spdx, err := jsonparser.GetString(body, "license", "spdx_id"); err == nil && spdx != "NOASSERTION" {
		link.License = spdx
	}
	return link, true, nil
}

// Service executes resolve_repo jobs: it parses the package's repository
// URL, asks the matching resolver for the repository record and persists
// the link.
type Service struct {
	store     Store
	resolvers map[string]Resolver
}

// Store is the slice of the persistence layer the service writes through.
type Store interface {
	FindPackage(ctx context.Context, id uint) (*data.Package, error)
	SetRepositoryLink(ctx context.Context, packageID uint, link data.RepositoryLink) error
}

func NewService(store Store, resolvers ...Resolver) *Service {
	m := make(map[string]Resolver, len(resolvers))
	for _, r := range resolvers {
		m[r.Host()] = r
	}
	return &Service{store: store, resolvers: m}
}

// ResolveForPackage links a package to its repository record. Packages
// without a recognizable repository URL, and repositories the host no
// longer has, are skipped without error: there is nothing to retry.
func (s *Service) ResolveForPackage(ctx context.Context, packageID uint) error {
	pkg, err := s.store.FindPackage(ctx, packageID)
	if err != nil {
		return err
	}
	fields := log.Fields{"platform": pkg.Platform, "name": pkg.Name}

	host, fullName, ok := ParseRepoURL(pkg.RepositoryURL)
	if !ok {
		log.WithFields(fields).Debug("No recognizable repository URL")
		return nil
	}
	resolver, ok := s.resolvers[host]
	if !ok {
		log.WithFields(fields).WithField("host", host).Debug("No resolver for host")
		return nil
	}

	link, found, err := resolver.Resolve(ctx, fullName)
	if err != nil {
		return err
	}
	if !found {
		log.WithFields(fields).WithField("repository", fullName).Debug("Repository gone upstream")
		return nil
	}
	return s.store.SetRepositoryLink(ctx, pkg.ID, *link)
}
