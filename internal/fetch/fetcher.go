package fetch

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"
)

const userAgent = "tileproxy/2.0"

// Status classifies the result of one upstream fetch.
type Status int

const (
	// StatusOK means HTTP 200 with a body within the size limit.
	StatusOK Status = iota
	// StatusTooLarge means the body exceeded the configured maximum.
	StatusTooLarge
	// StatusUpstream carries a non-200 upstream status verbatim.
	StatusUpstream
	// StatusTimeout means the request deadline was exceeded.
	StatusTimeout
	// StatusTransport covers every other transport failure.
	StatusTransport
)

// Outcome is the result of one fetch. Body is set only for StatusOK; Code only
// for StatusUpstream.
type Outcome struct {
	Status Status
	Code   int
	Body   []byte
}

// HTTPStatus maps the outcome to the status the proxy responds with.
func (o Outcome) HTTPStatus() int {
	switch o.Status {
	case StatusOK:
		return http.StatusOK
	case StatusTooLarge:
		return http.StatusRequestEntityTooLarge
	case StatusUpstream:
		return o.Code
	case StatusTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Fetcher performs single-attempt upstream tile fetches with a bounded
// deadline and payload size. Retries are deliberately absent.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
}

// New builds a Fetcher over a pooled transport. Pool limits follow the
// upstream providers' fair-use expectations: 100 idle connections total,
// 20 per host.
func New(fetchTimeout, connectTimeout time.Duration, maxBytes int64) *Fetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     30 * time.Second,
		TLSHandshakeTimeout: connectTimeout,
	}
	return &Fetcher{
		client: &http.Client{
			Timeout:   fetchTimeout,
			Transport: transport,
		},
		maxBytes: maxBytes,
	}
}

// Fetch performs one GET against the upstream URL. The body is read fully
// before the size check so a truncated tile is never cached.
func (f *Fetcher) Fetch(ctx context.Context, url string) Outcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Outcome{Status: StatusTransport}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Outcome{Status: StatusUpstream, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyError(err)
	}

	if int64(len(body)) > f.maxBytes {
		return Outcome{Status: StatusTooLarge}
	}

	return Outcome{Status: StatusOK, Body: body}
}

func classifyError(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Status: StatusTimeout}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Outcome{Status: StatusTimeout}
	}
	return Outcome{Status: StatusTransport}
}
