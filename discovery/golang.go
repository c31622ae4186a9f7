package discovery

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/buger/jsonparser"

	"github.com/librariesio/keeper/data"
	"github.com/librariesio/keeper/platforms"
)

// indexPageLimit is the most versions index.golang.org returns per page.
const indexPageLimit = 2000

// GoIndex polls the Go module index, an NDJSON feed of every version the
// proxy has seen.
type GoIndex struct {
	baseURL string
	client  *platforms.Client
	window  time.Duration
}

func NewGoIndex(baseURL string, client *platforms.Client) *GoIndex {
	return &GoIndex{baseURL: baseURL, client: client, window: 24 * time.Hour}
}

func (d *GoIndex) Name() string {
	return "go_index"
}

func (d *GoIndex) Schedule() string {
	return "15 */6 * * *"
}

func (d *GoIndex) Discover(ctx context.Context) ([]data.PackageVersion, error) {
	since := url.QueryEscape(time.Now().Add(-d.window).Format(time.RFC3339))
	body, err := d.client.Get(ctx, fmt.Sprintf("%s?since=%s&limit=%d", d.baseURL, since, indexPageLimit))
	if err != nil {
		return nil, err
	}
	return parseIndexLines(body), nil
}

// parseIndexLines reads the feed line by line; each line is a JSON object
// but the body as a whole is not.
func parseIndexLines(body []byte) []data.PackageVersion {
	var results []data.PackageVersion

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := scanner.Bytes()
		name, _ := jsonparser.GetString(line, "Path")
		version, _ := jsonparser.GetString(line, "Version")
		timestamp, _ := jsonparser.GetString(line, "Timestamp")
		if name == "" || version == "" {
			continue
		}
		createdAt, _ := time.Parse(time.RFC3339, timestamp)

		results = append(results, data.PackageVersion{
			Platform:     "go",
			Name:         name,
			Version:      version,
			CreatedAt:    createdAt,
			DiscoveryLag: time.Since(createdAt),
		})
	}
	return results
}
