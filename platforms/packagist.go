package platforms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/librariesio/keeper/data"
)

const PackagistDefaultURL = "https://packagist.org"

// Packagist talks to the packagist.org API. It is the one ecosystem whose
// existence probe treats a redirect as "package gone": packagist answers
// requests for deleted packages with a redirect to the search page.
type Packagist struct {
	baseURL string
	client  *Client
	store   MetadataWriter
}

func NewPackagist(baseURL string, client *Client, store MetadataWriter) *Packagist {
	if baseURL == "" {
		baseURL = PackagistDefaultURL
	}
	return &Packagist{baseURL: strings.TrimSuffix(baseURL, "/"), client: client, store: store}
}

func (p *Packagist) Name() string          { return "packagist" }
func (p *Packagist) FormattedName() string { return "Packagist" }
func (p *Packagist) HasDependencies() bool { return true }
func (p *Packagist) HasVersions() bool     { return true }
func (p *Packagist) RedirectMeansGone() bool { return true }

func (p *Packagist) Update(ctx context.Context, name string) error {
	body, err := p.client.Get(ctx, fmt.Sprintf("%s/packages/%s.json", p.baseURL, name))
	if err != nil {
		if httpErr, ok := err.(*HTTPError); ok && httpErr.IsNotFound() {
			return &NotFoundError{Platform: p.Name(), Name: name}
		}
		return err
	}

	description, _ := jsonparser.GetString(body, "package", "description")
	repositoryURL, _ := jsonparser.GetString(body, "package", "repository")

	type versionEntry struct {
		number      string
		publishedAt time.Time
		licenses    string
		deps        []data.DependencyEdge
	}
	var entries []versionEntry

	jsonparser.ObjectEach(body, func(key []byte, value []byte, dataType jsonparser.ValueType, offset int) error {
		number := string(key)
		// Branch aliases like dev-master are moving targets, not releases.
		if strings.HasPrefix(number, "dev-") {
			return nil
		}

		publishedAt, _ := jsonparser.GetString(value, "time")
		publishedAtTime, _ := time.Parse(time.RFC3339, publishedAt)

		var licenseParts []string
		jsonparser.ArrayEach(value, func(item []byte, dataType jsonparser.ValueType, offset int, err error) {
			licenseParts = append(licenseParts, string(item))
		}, "license")

		var deps []data.DependencyEdge
		jsonparser.ObjectEach(value, func(depKey []byte, depValue []byte, dataType jsonparser.ValueType, offset int) error {
			depName := string(depKey)
			if depName == "php" || strings.HasPrefix(depName, "ext-") {
				return nil
			}
			deps = append(deps, data.DependencyEdge{
				Platform:     p.Name(),
				PackageName:  depName,
				Requirements: string(depValue),
			})
			return nil
		}, "require")

		entries = append(entries, versionEntry{
			number:      number,
			publishedAt: publishedAtTime,
			licenses:    strings.Join(licenseParts, ","),
			deps:        deps,
		})
		return nil
	}, "package", "versions")

	var rawLicense string
	var newest time.Time
	for _, e := range entries {
		if e.licenses != "" && (e.publishedAt.After(newest) || rawLicense == "") {
			rawLicense = e.licenses
			newest = e.publishedAt
		}
	}

	packageID, err := p.store.UpsertPackage(ctx, data.Package{
		Platform:      p.Name(),
		Name:          name,
		Description:   description,
		RepositoryURL: repositoryURL,
		Licenses:      rawLicense,
		VersionsCount: len(entries),
	})
	if err != nil {
		return err
	}

	for _, e := range entries {
		versionID, err := p.store.UpsertVersion(ctx, packageID, e.number, e.publishedAt)
		if err != nil {
			return err
		}
		if err := p.store.ReplaceDependencies(ctx, versionID, e.deps); err != nil {
			return err
		}
	}
	return nil
}

func (p *Packagist) CheckStatusURL(pkg data.Package) string {
	return fmt.Sprintf("%s/packages/%s", p.baseURL, pkg.Name)
}

func (p *Packagist) PackageLink(pkg data.Package, version string) string {
	link := fmt.Sprintf("%s/packages/%s", p.baseURL, pkg.Name)
	if version != "" {
		link += "#" + version
	}
	return link
}

func (p *Packagist) DownloadURL(name, version string) string {
	// Packagist serves metadata only; dists live on the package's VCS host.
	return ""
}

func (p *Packagist) DocumentationURL(name, version string) string {
	return ""
}

func (p *Packagist) InstallInstructions(pkg data.Package, version string) string {
	instructions := "composer require " + pkg.Name
	if version != "" {
		instructions += ":" + version
	}
	return instructions
}

func (p *Packagist) DownloadRegistryUsers(ctx context.Context, name string) ([]data.RegistryUser, error) {
	body, err := p.client.Get(ctx, fmt.Sprintf("%s/packages/%s.json", p.baseURL, name))
	if err != nil {
		return nil, err
	}

	var users []data.RegistryUser
	_, err = jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		login, _ := jsonparser.GetString(value, "name")
		users = append(users, data.RegistryUser{
			UUID:  login,
			Login: login,
			URL:   fmt.Sprintf("%s/users/%s/", p.baseURL, login),
		})
	}, "package", "maintainers")
	return users, err
}
