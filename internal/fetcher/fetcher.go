// Package fetcher retrieves raw inspection payloads from HTTP endpoints and
// local ZIP bundles.
package fetcher

import (
	"context"
	"io"
)

// Downloader fetches a URL and returns the response body.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

var _ Downloader = (*HTTPFetcher)(nil)
