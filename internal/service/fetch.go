package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"
)

// FetchResult is the outcome of fetching one GeoJSON document.
// Exactly one of Collection and Err is set.
type FetchResult struct {
	Collection *geojson.FeatureCollection
	Err        error
}

// Fetcher retrieves a FeatureCollection from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) FetchResult
}

// FetchError is a transport failure or a non-2xx response.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetching %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError is a response body that is not a GeoJSON FeatureCollection.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// HTTPFetcher fetches documents with a plain GET.
type HTTPFetcher struct {
	client *http.Client
}

// NewHTTPFetcher creates a fetcher. A zero timeout means no client timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

// Fetch issues the GET and parses the body.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) FetchResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return FetchResult{Err: &FetchError{URL: url, Err: err}}
	}
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return FetchResult{Err: &FetchError{URL: url, Err: err}}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return FetchResult{Err: &FetchError{
			URL:    url,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %s", resp.Status),
		}}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{Err: &FetchError{URL: url, Err: err}}
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return FetchResult{Err: &ParseError{URL: url, Err: err}}
	}
	return FetchResult{Collection: fc}
}
