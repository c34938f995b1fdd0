package refresh

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// maxBodyBytes caps a fetched region body. Larger bodies fail the fetch.
const maxBodyBytes = 4 << 20

var ErrBodyTooLarge = fmt.Errorf("refresh: body exceeds %d bytes", maxBodyBytes)

// HTTPFetcher fetches region content over HTTP. Relative sources resolve
// against BaseURL. Concurrent fetches of the same URL share one request.
type HTTPFetcher struct {
	client  *http.Client
	base    *url.URL
	flights singleflight.Group
}

func NewHTTPFetcher(client *http.Client, baseURL string) (*HTTPFetcher, error) {
	if client == nil {
		client = &http.Client{}
	}
	f := &HTTPFetcher{client: client}
	if strings.TrimSpace(baseURL) != "" {
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("refresh: invalid base url %q: %w", baseURL, err)
		}
		f.base = u
	}
	return f, nil
}

func (f *HTTPFetcher) resolve(source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("refresh: invalid source %q: %w", source, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if f.base == nil {
		return "", fmt.Errorf("refresh: relative source %q needs a base url", source)
	}
	return f.base.ResolveReference(u).String(), nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, source string) (Content, error) {
	target, err := f.resolve(source)
	if err != nil {
		return Content{}, err
	}
	v, err, _ := f.flights.Do(target, func() (any, error) {
		return f.get(ctx, target)
	})
	if err != nil {
		return Content{}, err
	}
	c := v.(Content)
	// shared callers must not alias one body slice
	c.Body = append([]byte(nil), c.Body...)
	return c, nil
}

func (f *HTTPFetcher) get(ctx context.Context, target string) (Content, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Content{}, err
	}
	req.Header.Set("Accept", "text/html, application/json;q=0.9, */*;q=0.8")
	req.Header.Set("X-Requested-With", "edgeadmin-refresh")

	resp, err := f.client.Do(req)
	if err != nil {
		return Content{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Content{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return Content{}, err
	}
	if len(body) > maxBodyBytes {
		return Content{}, ErrBodyTooLarge
	}
	return Content{
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		FetchedAt:   time.Now(),
	}, nil
}
