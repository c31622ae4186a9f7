package platforms

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/buger/jsonparser"
	"golang.org/x/mod/module"
	"golang.org/x/mod/semver"

	"github.com/librariesio/keeper/data"
)

const (
	GoProxyDefaultURL = "https://proxy.golang.org"
	goPkgSiteURL      = "https://pkg.go.dev"
)

// Golang talks to the Go module proxy for versions and scrapes pkg.go.dev
// for the description and license, which the proxy protocol does not carry.
type Golang struct {
	proxyURL string
	client   *Client
	store    MetadataWriter
}

func NewGolang(proxyURL string, client *Client, store MetadataWriter) *Golang {
	if proxyURL == "" {
		proxyURL = GoProxyDefaultURL
	}
	return &Golang{proxyURL: strings.TrimSuffix(proxyURL, "/"), client: client, store: store}
}

func (g *Golang) Name() string          { return "go" }
func (g *Golang) FormattedName() string { return "Go" }
func (g *Golang) HasDependencies() bool { return false }
func (g *Golang) HasVersions() bool     { return true }
func (g *Golang) RedirectMeansGone() bool { return false }

func (g *Golang) Update(ctx context.Context, name string) error {
	escaped, err := module.EscapePath(name)
	if err != nil {
		return fmt.Errorf("invalid module path %q: %w", name, err)
	}

	body, err := g.client.Get(ctx, fmt.Sprintf("%s/%s/@v/list", g.proxyURL, escaped))
	if err != nil {
		if httpErr, ok := err.(*HTTPError); ok && httpErr.IsNotFound() {
			return &NotFoundError{Platform: g.Name(), Name: name}
		}
		return err
	}

	versions := strings.Fields(string(body))
	semver.Sort(versions)

	description, rawLicense := g.scrapePkgSite(ctx, name)

	packageID, err := g.store.UpsertPackage(ctx, data.Package{
		Platform:      g.Name(),
		Name:          name,
		Description:   description,
		Homepage:      fmt.Sprintf("%s/%s", goPkgSiteURL, name),
		RepositoryURL: guessRepositoryURL(name),
		Licenses:      rawLicense,
		VersionsCount: len(versions),
	})
	if err != nil {
		return err
	}

	for _, v := range versions {
		publishedAt := g.versionTime(ctx, escaped, v)
		if _, err := g.store.UpsertVersion(ctx, packageID, v, publishedAt); err != nil {
			return err
		}
	}
	return nil
}

func (g *Golang) versionTime(ctx context.Context, escaped, version string) time.Time {
	body, err := g.client.Get(ctx, fmt.Sprintf("%s/%s/@v/%s.info", g.proxyURL, escaped, version))
	if err != nil {
		return time.Time{}
	}
	stamp, _ := jsonparser.GetString(body, "Time")
	t, _ := time.Parse(time.RFC3339, stamp)
	return t
}

func (g *Golang) scrapePkgSite(ctx context.Context, name string) (description, license string) {
	body, err := g.client.Get(ctx, fmt.Sprintf("%s/%s", goPkgSiteURL, name))
	if err != nil {
		return "", ""
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", ""
	}

	description, _ = doc.Find(`meta[property="og:description"]`).Attr("content")
	license = strings.TrimSpace(doc.Find(`[data-test-id="UnitHeader-license"]`).First().Text())
	return description, license
}

// guessRepositoryURL maps well-known module path prefixes onto their
// hosting URL. Vanity import paths resolve to "" and rely on the
// repository-link resolver instead.
func guessRepositoryURL(name string) string {
	for _, host := range []string{"github.com/", "gitlab.com/", "bitbucket.org/"} {
		if strings.HasPrefix(name, host) {
			parts := strings.Split(name, "/")
			if len(parts) >= 3 {
				return "https://" + strings.Join(parts[:3], "/")
			}
		}
	}
	return ""
}

func (g *Golang) CheckStatusURL(pkg data.Package) string {
	escaped, err := module.EscapePath(pkg.Name)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%s/%s/@v/list", g.proxyURL, escaped)
}

func (g *Golang) PackageLink(pkg data.Package, version string) string {
	link := fmt.Sprintf("%s/%s", goPkgSiteURL, pkg.Name)
	if version != "" {
		link += "@" + version
	}
	return link
}

func (g *Golang) DownloadURL(name, version string) string {
	escaped, err := module.EscapePath(name)
	if err != nil || version == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/@v/%s.zip", g.proxyURL, escaped, version)
}

func (g *Golang) DocumentationURL(name, version string) string {
	if version == "" {
		return fmt.Sprintf("%s/%s", goPkgSiteURL, name)
	}
	return fmt.Sprintf("%s/%s@%s", goPkgSiteURL, name, version)
}

func (g *Golang) InstallInstructions(pkg data.Package, version string) string {
	instructions := "go get " + pkg.Name
	if version != "" {
		instructions += "@" + version
	}
	return instructions
}

func (g *Golang) DownloadRegistryUsers(ctx context.Context, name string) ([]data.RegistryUser, error) {
	// The module proxy has no notion of owners.
	return []data.RegistryUser{}, nil
}
