package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTPOpener fetches http(s) locators with a GET request.
type HTTPOpener struct {
	Client *http.Client
}

func (o HTTPOpener) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %d fetching %s", ErrHTTPStatus, resp.StatusCode, locator)
	}
	return resp.Body, nil
}

// DefaultResolver returns a Resolver wired for http, https and the given
// local stores. Nil stores are skipped.
func DefaultResolver(mem *MemoryStore, dir *DirStore) *Resolver {
	r := NewResolver()
	h := HTTPOpener{}
	_ = r.Register("http://", h)
	_ = r.Register("https://", h)
	if mem != nil {
		_ = r.Register(MemoryPrefix, mem)
	}
	if dir != nil {
		_ = r.Register(dir.Prefix(), dir)
	}
	return r
}
