// Package upstream fetches substitution PDFs from the school's server.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	canonicaldate "github.com/ericselin/zastepstwa/pkg/canonical-date"

	"github.com/rs/zerolog"
)

// DefaultOrigin is the server the PDFs are published on.
const DefaultOrigin = "https://zastepstwa.zschie.pl"

// ErrNotFound means the origin has no file for the date.
var ErrNotFound = errors.New("no file for date")

// StatusError is returned for any status other than 200 and 404.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("origin returned status %d", e.Code)
}

// TransportError is a failure to talk to the origin or to read its response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("origin unreachable: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Fetcher makes exactly one request per call, without retries.
type Fetcher struct {
	origin     string
	httpClient *http.Client
	userAgent  string
	log        zerolog.Logger
}

// NewFetcher returns a fetcher for origin. A zero timeout leaves the
// transport defaults in place.
func NewFetcher(origin string, timeout time.Duration, userAgent string, log zerolog.Logger) (*Fetcher, error) {
	originURL, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	if originURL.Scheme == "" || originURL.Host == "" {
		return nil, fmt.Errorf("invalid origin %q: scheme and host required", origin)
	}
	return &Fetcher{
		origin: strings.TrimSuffix(origin, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		log:       log,
	}, nil
}

// URL returns the upstream URL of the PDF for date.
func (f *Fetcher) URL(date canonicaldate.Date) string {
	return f.origin + "/pliki/" + date.Filename()
}

// Fetch downloads the PDF for date.
// The error is ErrNotFound, a *StatusError or a *TransportError.
func (f *Fetcher) Fetch(ctx context.Context, date canonicaldate.Date) ([]byte, error) {
	uri := f.URL(date)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	start := time.Now()
	f.log.Debug().Str("url", uri).Msg("Requesting content from origin")
	res, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer res.Body.Close()
	f.log.Trace().Str("url", uri).Int("status", res.StatusCode).Dur("duration", time.Since(start)).Msg("Got response from origin")

	switch res.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, &TransportError{Err: fmt.Errorf("reading body: %w", err)}
		}
		return body, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	}
	return nil, &StatusError{Code: res.StatusCode}
}
