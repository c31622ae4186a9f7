package discovery

/*

The PyPI RSS feeds (https://warehouse.pypa.io/api-reference/feeds.html)
carry the latest release updates and the latest brand-new projects. Both
feeds are shallow, so they are polled every minute.

*/

import (
	"context"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/librariesio/keeper/data"
)

const (
	pypiUpdatesFeedPath  = "/rss/updates.xml"
	pypiPackagesFeedPath = "/rss/packages.xml"
)

type PyPIRSS struct {
	baseURL string
	parser  *gofeed.Parser
}

func NewPyPIRSS(baseURL string) *PyPIRSS {
	return &PyPIRSS{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		parser:  gofeed.NewParser(),
	}
}

func (d *PyPIRSS) Name() string {
	return "pypi_rss"
}

func (d *PyPIRSS) Schedule() string {
	return "* * * * *"
}

func (d *PyPIRSS) Discover(ctx context.Context) ([]data.PackageVersion, error) {
	updates, err := d.parseFeed(ctx, d.baseURL+pypiUpdatesFeedPath)
	if err != nil {
		return nil, err
	}
	fresh, err := d.parseFeed(ctx, d.baseURL+pypiPackagesFeedPath)
	if err != nil {
		return nil, err
	}
	return append(updates, fresh...), nil
}

func (d *PyPIRSS) parseFeed(ctx context.Context, url string) ([]data.PackageVersion, error) {
	feed, err := d.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, err
	}

	var results []data.PackageVersion
	for _, item := range feed.Items {
		if release, ok := releaseFromFeedItem(item); ok {
			results = append(results, release)
		}
	}
	return results, nil
}

// releaseFromFeedItem reads a feed item titled "<name> <version>". Items
// from the new-projects feed carry a bare project link instead of a
// versioned title; those report version "latest".
func releaseFromFeedItem(item *gofeed.Item) (data.PackageVersion, bool) {
	title := strings.TrimSpace(item.Title)
	if title == "" || item.PublishedParsed == nil {
		return data.PackageVersion{}, false
	}

	name, version := title, "latest"
	if parts := strings.SplitN(title, " ", 2); len(parts) == 2 {
		name, version = parts[0], parts[1]
	}

	return data.PackageVersion{
		Platform:     "pypi",
		Name:         name,
		Version:      version,
		CreatedAt:    *item.PublishedParsed,
		DiscoveryLag: time.Since(*item.PublishedParsed),
	}, true
}
