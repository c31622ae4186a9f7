package platforms

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/buger/jsonparser"

	"github.com/librariesio/keeper/data"
)

const RubyGemsDefaultURL = "https://rubygems.org"

// RubyGems talks to the rubygems.org API.
type RubyGems struct {
	baseURL string
	client  *Client
	store   MetadataWriter
}

func NewRubyGems(baseURL string, client *Client, store MetadataWriter) *RubyGems {
	if baseURL == "" {
		baseURL = RubyGemsDefaultURL
	}
	return &RubyGems{baseURL: strings.TrimSuffix(baseURL, "/"), client: client, store: store}
}

func (r *RubyGems) Name() string          { return "rubygems" }
func (r *RubyGems) FormattedName() string { return "Rubygems" }
func (r *RubyGems) HasDependencies() bool { return true }
func (r *RubyGems) HasVersions() bool     { return true }
func (r *RubyGems) RedirectMeansGone() bool { return false }

func (r *RubyGems) Update(ctx context.Context, name string) error {
	body, err := r.client.Get(ctx, fmt.Sprintf("%s/api/v1/gems/%s.json", r.baseURL, name))
	if err != nil {
		if httpErr, ok := err.(*HTTPError); ok && httpErr.IsNotFound() {
			return &NotFoundError{Platform: r.Name(), Name: name}
		}
		return err
	}

	description, _ := jsonparser.GetString(body, "info")
	homepage, _ := jsonparser.GetString(body, "homepage_uri")
	repositoryURL, _ := jsonparser.GetString(body, "source_code_uri")

	var licenseParts []string
	jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		licenseParts = append(licenseParts, string(value))
	}, "licenses")

	versions, err := r.fetchVersions(ctx, name)
	if err != nil {
		return err
	}

	packageID, err := r.store.UpsertPackage(ctx, data.Package{
		Platform:      r.Name(),
		Name:          name,
		Description:   description,
		Homepage:      homepage,
		RepositoryURL: repositoryURL,
		Licenses:      strings.Join(licenseParts, ","),
		VersionsCount: len(versions),
	})
	if err != nil {
		return err
	}

	var latestID uint
	for i, v := range versions {
		versionID, err := r.store.UpsertVersion(ctx, packageID, v.Number, v.PublishedAt)
		if err != nil {
			return err
		}
		// The versions endpoint lists newest first.
		if i == 0 {
			latestID = versionID
		}
	}

	if latestID != 0 {
		deps := r.parseDependencies(body)
		if err := r.store.ReplaceDependencies(ctx, latestID, deps); err != nil {
			return err
		}
	}
	return nil
}

func (r *RubyGems) fetchVersions(ctx context.Context, name string) ([]data.Version, error) {
	body, err := r.client.Get(ctx, fmt.Sprintf("%s/api/v1/versions/%s.json", r.baseURL, name))
	if err != nil {
		return nil, err
	}

	var versions []data.Version
	_, err = jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		number, _ := jsonparser.GetString(value, "number")
		createdAt, _ := jsonparser.GetString(value, "created_at")
		createdAtTime, _ := time.Parse(time.RFC3339, createdAt)

		versions = append(versions, data.Version{Number: number, PublishedAt: createdAtTime})
	})
	return versions, err
}

func (r *RubyGems) parseDependencies(gemBody []byte) []data.DependencyEdge {
	var deps []data.DependencyEdge
	jsonparser.ArrayEach(gemBody, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		depName, _ := jsonparser.GetString(value, "name")
		requirements, _ := jsonparser.GetString(value, "requirements")
		deps = append(deps, data.DependencyEdge{
			Platform:     r.Name(),
			PackageName:  depName,
			Requirements: requirements,
		})
	}, "dependencies", "runtime")
	return deps
}

func (r *RubyGems) CheckStatusURL(pkg data.Package) string {
	return fmt.Sprintf("%s/api/v1/gems/%s.json", r.baseURL, pkg.Name)
}

func (r *RubyGems) PackageLink(pkg data.Package, version string) string {
	link := fmt.Sprintf("%s/gems/%s", r.baseURL, pkg.Name)
	if version != "" {
		link += "/versions/" + version
	}
	return link
}

func (r *RubyGems) DownloadURL(name, version string) string {
	if version == "" {
		return ""
	}
	return fmt.Sprintf("%s/downloads/%s-%s.gem", r.baseURL, name, version)
}

func (r *RubyGems) DocumentationURL(name, version string) string {
	if version == "" {
		return fmt.Sprintf("https://www.rubydoc.info/gems/%s", name)
	}
	return fmt.Sprintf("https://www.rubydoc.info/gems/%s/%s", name, version)
}

func (r *RubyGems) InstallInstructions(pkg data.Package, version string) string {
	instructions := "gem install " + pkg.Name
	if version != "" {
		instructions += " -v " + version
	}
	return instructions
}

func (r *RubyGems) DownloadRegistryUsers(ctx context.Context, name string) ([]data.RegistryUser, error) {
	body, err := r.client.Get(ctx, fmt.Sprintf("%s/api/v1/gems/%s/owners.json", r.baseURL, name))
	if err != nil {
		return nil, err
	}

	var users []data.RegistryUser
	_, err = jsonparser.ArrayEach(body, func(value []byte, dataType jsonparser.ValueType, offset int, err error) {
		id, _ := jsonparser.GetInt(value, "id")
		handle, _ := jsonparser.GetString(value, "handle")
		email, _ := jsonparser.GetString(value, "email")

		users = append(users, data.RegistryUser{
			UUID:  strconv.FormatInt(id, 10),
			Login: handle,
			Email: email,
			URL:   fmt.Sprintf("%s/profiles/%s", r.baseURL, handle),
		})
	})
	return users, err
}
