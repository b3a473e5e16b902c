// Package feed pulls activity records for the scoring grid from an
// HTTP endpoint or a local file. The fetcher never touches the grid
// itself: each completed fetch is handed to the engine session as a
// Refresh carrying the generation assigned when the fetch was issued,
// so superseded in-flight fetches lose.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"gridscore.app/internal/grid"
)

// Client fetches activity records over HTTP.
type Client struct {
	url  string
	http *http.Client
	gen  atomic.Uint64
}

// Result is one completed fetch.
type Result struct {
	Generation uint64
	Records    []grid.Record
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:  url,
		http: &http.Client{Timeout: timeout},
	}
}

// Advance skips n generation numbers, for callers that seeded the
// grid from another source before the first fetch.
func (c *Client) Advance(n uint64) { c.gen.Add(n) }

// Fetch issues one request. The generation number is taken before the
// request goes out.
func (c *Client) Fetch(ctx context.Context) (Result, error) {
	gen := c.gen.Add(1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Result{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("feed: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Result{}, err
	}
	records, err := Parse(body)
	if err != nil {
		return Result{}, err
	}
	return Result{Generation: gen, Records: records}, nil
}

// Parse accepts either a bare JSON array of records or an object with
// a "records" field.
func Parse(b []byte) ([]grid.Record, error) {
	var records []grid.Record
	if err := json.Unmarshal(b, &records); err == nil {
		return records, nil
	}
	var wrapped struct {
		Records []grid.Record `json:"records"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return nil, fmt.Errorf("feed: malformed payload: %w", err)
	}
	return wrapped.Records, nil
}

// LoadFile reads records from a local JSON file, for offline runs and
// seeding.
func LoadFile(path string) ([]grid.Record, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}
