package platforms

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/librariesio/keeper/data"
)

const PyPiDefaultURL = "https://pypi.org"

// PyPi talks to the pypi.org JSON API.
type PyPi struct {
	baseURL string
	client  *Client
	store   MetadataWriter
}

func NewPyPi(baseURL string, client *Client, store MetadataWriter) *PyPi {
	if baseURL == "" {
		baseURL = PyPiDefaultURL
	}
	return &PyPi{baseURL: strings.TrimSuffix(baseURL, "/"), client: client, store: store}
}

func (p *PyPi) Name() string          { return "pypi" }
func (p *PyPi) FormattedName() string { return "PyPI" }
func (p *PyPi) HasDependencies() bool { return true }
func (p *PyPi) HasVersions() bool     { return true }
func (p *PyPi) RedirectMeansGone() bool { return false }

func (p *PyPi) Update(ctx context.Context, name string) error {
	body, err := p.client.Get(ctx, fmt.Sprintf("%s/pypi/%s/json", p.baseURL, name))
	if err != nil {
		if httpErr, ok := err.(*HTTPError); ok && httpErr.IsNotFound() {
			return &NotFoundError{Platform: p.Name(), Name: name}
		}
		return err
	}

	description, _ := jsonparser.GetString(body, "info", "summary")
	homepage, _ := jsonparser.GetString(body, "info", "home_page")
	rawLicense, _ := jsonparser.GetString(body, "info", "license")
	repositoryURL, _ := jsonparser.GetString(body, "info", "project_urls", "Source")
	if repositoryURL == "" {
		repositoryURL, _ = jsonparser.GetString(body, "info", "project_urls", "Repository")
	}

	type release struct {
		number      string
		publishedAt time.Time
	}
	var releases []release
	var latest release

	jsonparser.ObjectEach(body, func(key []byte, value []byte, dataType jsonparser.ValueType, offset int) error {
		number := string(key)
		var publishedAt time.Time
		// Each release is an array of files; take the earliest upload.
		jsonparser.ArrayEach(value, func(file []byte, dataType jsonparser.ValueType, offset int, err error) {
			uploaded, _ := jsonparser.GetString(file, "upload_time_iso_8601")
			if t, err := time.Parse(time.RFC3339, uploaded); err == nil {
				if publishedAt.IsZero() || t.Before(publishedAt) {
					publishedAt = t
				}
			}
		})
		r := release{number: number, publishedAt: publishedAt}
		releases = append(releases, r)
		if r.publishedAt.After(latest.publishedAt) {
			latest = r
		}
		return nil
	}, "releases")

	packageID, err := p.store.UpsertPackage(ctx, data.Package{
		Platform:      p.Name(),
		Name:          name,
		Description:   description,
		Homepage:      homepage,
		RepositoryURL: repositoryURL,
		Licenses:      rawLicense,
		VersionsCount: len(releases),
	})
	if err != nil {
		return err
	}

	var latestID uint
	for _, r := range releases {
		versionID, err := p.store.UpsertVersion(ctx, packageID, r.number, r.publishedAt)
		if err != nil {
			return err
		}
		if r.number == latest.number {
			latestID = versionID
		}
	}

	if latestID != 0 {
		deps := p.parseRequiresDist(body)
		if err := p.store.ReplaceDependencies(ctx, latestID, deps); err != nil {
			return err
		}
	}
	return nil
}

// parseRequiresDist turns PEP 508 requirement strings ("requests (>=2.0)")
// into dependency edges. Environment markers are dropped along with the
// rest of the string after the first semicolon.
func (p *PyPi) parseRequiresDist(body []byte) []data.DependencyEdge {
	var deps []data.DependencyEdge
	jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		spec := string(value)
		if i := strings.Index(spec, ";"); i >= 0 {
			spec = spec[:i]
		}
		spec = strings.TrimSpace(spec)
		if spec == "" {
			return
		}

		name := spec
		requirements := ""
		if i := strings.IndexAny(spec, " (<>=!~"); i >= 0 {
			name = spec[:i]
			requirements = strings.Trim(strings.TrimSpace(spec[i:]), "()")
		}

		deps = append(deps, data.DependencyEdge{
			Platform:     p.Name(),
			PackageName:  name,
			Requirements: requirements,
		})
	}, "info", "requires_dist")
	return deps
}

func (p *PyPi) CheckStatusURL(pkg data.Package) string {
	return fmt.Sprintf("%s/pypi/%s/json", p.baseURL, pkg.Name)
}

func (p *PyPi) PackageLink(pkg data.Package, version string) string {
	link := fmt.Sprintf("%s/project/%s/", p.baseURL, pkg.Name)
	if version != "" {
		link += version + "/"
	}
	return link
}

func (p *PyPi) DownloadURL(name, version string) string {
	// File URLs are hashed paths under files.pythonhosted.org; they can only
	// be read from release metadata, not derived.
	return ""
}

func (p *PyPi) DocumentationURL(name, version string) string {
	return ""
}

func (p *PyPi) InstallInstructions(pkg data.Package, version string) string {
	instructions := "pip install " + pkg.Name
	if version != "" {
		instructions += "==" + version
	}
	return instructions
}

func (p *PyPi) DownloadRegistryUsers(ctx context.Context, name string) ([]data.RegistryUser, error) {
	// PyPI exposes no owners API.
	return []data.RegistryUser{}, nil
}
