// Package api holds the HTTP plumbing shared by all site adapters:
// client construction, JSON fetching and the mapping from HTTP status
// codes to the library's error taxonomy.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	booru "github.com/hikawa-dev/booru"
)

// UserAgent identifies the library. Several boorus reject requests with
// no or a browser-spoofing User-Agent.
const UserAgent = "booru-go/1.0 (+https://github.com/hikawa-dev/booru)"

// maxBodySize bounds a response read. Post listings are small; anything
// past this is a misbehaving server.
const maxBodySize = 16 << 20

// NewHTTPClient returns an HTTP client tuned for polling JSON APIs.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// GetBody fetches url and returns the raw response body. HTTP failures
// map onto the shared sentinels: 401 and 403 become ErrUnauthorized, 404
// becomes ErrPostNotFound, 429 becomes ErrRateLimited, and any other
// non-200 becomes an *HTTPError.
func GetBody(ctx context.Context, client *http.Client, logger *slog.Logger, site, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	if logger != nil {
		logger.DebugContext(ctx, "fetching", "site", site, "url", url)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close() //nolint:errcheck // intentional

	if err := statusError(url, resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, nil
}

// GetJSON fetches url and decodes the body into out, with GetBody's
// status mapping. A body that does not decode becomes a *DecodeError
// attributed to site.
func GetJSON(ctx context.Context, client *http.Client, logger *slog.Logger, site, url string, out any) error {
	body, err := GetBody(ctx, client, logger, site, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &booru.DecodeError{Site: site, Err: err}
	}
	return nil
}

func statusError(url string, code int) error {
	switch code {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d from %s", booru.ErrUnauthorized, code, url)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", booru.ErrPostNotFound, url)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", booru.ErrRateLimited, url)
	default:
		return &booru.HTTPError{URL: url, StatusCode: code}
	}
}
