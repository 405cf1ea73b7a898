// Package fetcher retrieves single listing pages over HTTP.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"
)

const maxBodyBytes = 5 * 1024 * 1024

// ErrorKind classifies a fetch failure.
type ErrorKind string

// Fetch failure classes.
const (
	KindTimeout ErrorKind = "timeout"
	KindNetwork ErrorKind = "network"
	KindStatus  ErrorKind = "status"
)

// FetchError is a failed page retrieval. Timeout and network failures are
// retried exactly once; bad HTTP statuses are not.
type FetchError struct {
	Kind   ErrorKind
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Kind == KindStatus {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Fetcher downloads listing pages with a per-request timeout and a single
// bounded retry on transient failures.
type Fetcher struct {
	client  HTTPClient
	timeout time.Duration
	backoff time.Duration
}

// New creates a Fetcher with the given HTTP client.
func New(client HTTPClient) *Fetcher {
	return &Fetcher{
		client:  client,
		timeout: 15 * time.Second,
		backoff: 2 * time.Second,
	}
}

// SetBackoff overrides the retry backoff (useful for testing).
func (f *Fetcher) SetBackoff(d time.Duration) {
	f.backoff = d
}

// FetchPage downloads one page and returns its body. Timeout and
// network-class failures are retried once after the backoff; any HTTP
// status outside 2xx fails immediately.
func (f *Fetcher) FetchPage(ctx context.Context, url string) (string, error) {
	var body string
	b := retry.WithMaxRetries(1, retry.NewConstant(f.backoff))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		s, err := f.fetchOnce(ctx, url)
		if err != nil {
			var fe *FetchError
			if errors.As(err, &fe) && fe.Kind != KindStatus {
				return retry.RetryableError(err)
			}
			return err
		}
		body = s
		return nil
	})
	if err != nil {
		return "", err
	}
	return body, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "CatwatchBot/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		kind := KindNetwork
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = KindTimeout
		}
		return "", &FetchError{Kind: kind, URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &FetchError{Kind: KindStatus, URL: url, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &FetchError{Kind: KindNetwork, URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return string(data), nil
}
