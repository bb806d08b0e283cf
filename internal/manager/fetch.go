package manager

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"lmhost/internal/common/fsutil"
)

// Fetcher opens a model source for download. size is 0 when unknown.
type Fetcher interface {
	Open(ctx context.Context, source string) (rc io.ReadCloser, size int64, err error)
}

// DefaultFetcher reads http(s) URLs with Client (http.DefaultClient when nil)
// and anything else as a local path (optionally file:// prefixed).
type DefaultFetcher struct {
	Client *http.Client
}

func (f DefaultFetcher) Open(ctx context.Context, source string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(source)
	if err == nil {
		switch u.Scheme {
		case "http", "https":
			return f.openHTTP(ctx, source)
		case "file":
			return openLocal(u.Path)
		}
	}
	return openLocal(source)
}

func (f DefaultFetcher) openHTTP(ctx context.Context, source string) (io.ReadCloser, int64, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, 0, fmt.Errorf("GET %s: unexpected status %d", source, resp.StatusCode)
	}
	size := resp.ContentLength
	if size < 0 {
		size = 0
	}
	return resp.Body, size, nil
}

func openLocal(path string) (io.ReadCloser, int64, error) {
	p, err := fsutil.ExpandHome(path)
	if err != nil {
		return nil, 0, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	return f, fi.Size(), nil
}
