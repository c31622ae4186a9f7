package discovery

/*

The PyPI XML-RPC changelog (https://warehouse.pypa.io/api-reference/xml-rpc.html)
is mostly deprecated, but the mirroring methods remain supported. Each
changelog entry is a (name, version, timestamp, action) tuple; release
additions, yanks and removals all warrant a refresh so the status probe
and metadata catch up.

*/

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/kolo/xmlrpc"
	log "github.com/sirupsen/logrus"

	"github.com/librariesio/keeper/data"
)

type PyPIChangelog struct {
	serverURL string
	bookmarks *Bookmarks
}

func NewPyPIChangelog(serverURL string, bookmarks *Bookmarks) *PyPIChangelog {
	return &PyPIChangelog{serverURL: serverURL, bookmarks: bookmarks}
}

func (d *PyPIChangelog) Name() string {
	return "pypi_changelog"
}

func (d *PyPIChangelog) Schedule() string {
	return "@every 5m"
}

func (d *PyPIChangelog) Discover(ctx context.Context) ([]data.PackageVersion, error) {
	since, err := d.bookmarks.GetTime(ctx, d.Name(), time.Now().AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}

	client, err := xmlrpc.NewClient(d.serverURL, nil)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	var entries [][]any
	if err := client.Call("changelog", int(since.Unix()), &entries); err != nil {
		// Pages with broken XML are skipped rather than retried forever.
		if !strings.Contains(err.Error(), "illegal character code") {
			return nil, err
		}
		log.WithFields(log.Fields{
			"discoverer": d.Name(),
			"since":      since.Unix(),
		}).WithError(err).Error("Skipping malformed changelog page")
		entries = nil
	}

	var results []data.PackageVersion
	for _, entry := range entries {
		release, err := changelogRelease(entry)
		if err != nil {
			continue
		}
		results = append(results, release)
	}

	if err := d.bookmarks.SetTime(ctx, d.Name(), time.Now()); err != nil {
		return results, err
	}
	return results, nil
}

// isReleaseAction filters changelog noise (file uploads, owner changes)
// down to the actions that change what versions exist.
func isReleaseAction(action string) bool {
	switch action {
	case "new release", "yank release", "unyank release", "remove release":
		return true
	}
	return false
}

func changelogRelease(entry []any) (data.PackageVersion, error) {
	if len(entry) < 4 {
		return data.PackageVersion{}, errors.New("changelog entry too short")
	}
	name, ok := entry[0].(string)
	if !ok {
		return data.PackageVersion{}, errors.New("package name is not a string")
	}
	version, ok := entry[1].(string)
	if !ok {
		return data.PackageVersion{}, errors.New("version is not a string")
	}
	timestamp, ok := entry[2].(int64)
	if !ok {
		return data.PackageVersion{}, errors.New("timestamp is not an int64")
	}
	action, ok := entry[3].(string)
	if !ok {
		return data.PackageVersion{}, errors.New("action is not a string")
	}
	if !isReleaseAction(action) {
		return data.PackageVersion{}, errors.New("not a release action")
	}

	createdAt := time.Unix(timestamp, 0)
	return data.PackageVersion{
		Platform:     "pypi",
		Name:         name,
		Version:      version,
		CreatedAt:    createdAt,
		DiscoveryLag: time.Since(createdAt),
	}, nil
}
