package discovery

import (
	"context"
	"time"

	_ "github.com/go-kivik/couchdb/v4" // CouchDB driver
	kivik "github.com/go-kivik/kivik/v4"
	log "github.com/sirupsen/logrus"

	"github.com/librariesio/keeper/data"
)

const npmDatabase = "registry"

// NPMStream follows the npm replication feed, a CouchDB continuous
// changes stream of every registry write. The feed sequence is
// bookmarked after each document so a restart picks up where it stopped.
type NPMStream struct {
	couchURL  string
	bookmarks *Bookmarks
}

func NewNPMStream(couchURL string, bookmarks *Bookmarks) *NPMStream {
	return &NPMStream{couchURL: couchURL, bookmarks: bookmarks}
}

func (d *NPMStream) Name() string {
	return "npm"
}

type npmChangeDoc struct {
	ID       string `json:"_id"`
	Rev      string `json:"_rev,omitempty"`
	Name     string `json:"name"`
	DistTags struct {
		Latest string `json:"latest"`
	} `json:"dist-tags"`
	Time map[string]string `json:"time"`
}

func (d *NPMStream) Stream(ctx context.Context, releases chan<- data.PackageVersion) error {
	since, err := d.bookmarks.GetString(ctx, d.Name(), "now")
	if err != nil {
		return err
	}

	client, err := kivik.New("couch", d.couchURL)
	if err != nil {
		return err
	}
	db := client.DB(npmDatabase)
	changes, err := db.Changes(ctx, kivik.Options{
		"feed":         "continuous",
		"since":        since,
		"include_docs": true,
	})
	if err != nil {
		return err
	}
	defer changes.Close()

	for changes.Next() {
		var doc npmChangeDoc
		if err := changes.ScanDoc(&doc); err != nil {
			log.WithFields(log.Fields{
				"discoverer": d.Name(),
				"seq":        changes.Seq(),
				"id":         changes.ID(),
			}).WithError(err).Error("Failed to decode change document")
			continue
		}

		release, ok := latestRelease(doc)
		if !ok {
			continue
		}

		select {
		case releases <- release:
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := d.bookmarks.SetString(ctx, d.Name(), changes.Seq()); err != nil {
			return err
		}
	}
	if err := changes.Err(); err != nil && ctx.Err() == nil {
		return err
	}
	return ctx.Err()
}

// latestRelease picks the newest versioned entry out of a change
// document's time map, skipping the "created" and "modified" markers.
func latestRelease(doc npmChangeDoc) (data.PackageVersion, bool) {
	var latestVersion string
	var latestTime time.Time

	for version, stamp := range doc.Time {
		if version == "modified" || version == "created" || stamp == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, stamp)
		if err != nil {
			continue
		}
		if t.After(latestTime) {
			latestTime = t
			latestVersion = version
		}
	}
	if latestVersion == "" || doc.Name == "" {
		return data.PackageVersion{}, false
	}

	return data.PackageVersion{
		Platform:     "npm",
		Name:         doc.Name,
		Version:      latestVersion,
		CreatedAt:    latestTime,
		DiscoveryLag: time.Since(latestTime),
	}, true
}
