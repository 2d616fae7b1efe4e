package proxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"tileproxy/internal/compose"
	"tileproxy/internal/fetch"
	"tileproxy/internal/style"
	"tileproxy/internal/tilecache"
)

// Cache status values reported through the X-Cache response header.
const (
	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// Fetcher performs one upstream fetch per call.
type Fetcher interface {
	Fetch(ctx context.Context, url string) fetch.Outcome
}

// RequestError is a terminal per-request failure: one HTTP status plus a short
// reason string.
type RequestError struct {
	Status int
	Reason string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Reason)
}

// Result is a successfully resolved tile.
type Result struct {
	Body        []byte
	MediaType   string
	CacheStatus string
}

// Orchestrator runs the cache-then-fetch-then-store flow for each request.
// Collaborators are injected so tests can substitute fakes.
type Orchestrator struct {
	styles    *style.Resolver
	fetcher   Fetcher
	store     tilecache.Store
	composite func(base, overlay []byte) ([]byte, error)
	ttl       time.Duration
	log       *zap.Logger
}

func New(styles *style.Resolver, fetcher Fetcher, store tilecache.Store, ttl time.Duration, log *zap.Logger) *Orchestrator {
	return &Orchestrator{
		styles:    styles,
		fetcher:   fetcher,
		store:     store,
		composite: compose.Composite,
		ttl:       ttl,
		log:       log,
	}
}

// Resolve serves one tile request: cache lookup, then fetch (and composite for
// overlay requests), then store. Errors are always *RequestError.
func (o *Orchestrator) Resolve(ctx context.Context, req style.Request) (*Result, error) {
	if req.Z < style.ZoomMin || req.Z > style.ZoomMax {
		return nil, &RequestError{Status: http.StatusBadRequest, Reason: "invalid zoom level"}
	}

	key := style.CacheKey(req)

	cached, err := o.store.Get(ctx, key)
	if err == nil {
		return &Result{
			Body:        cached,
			MediaType:   style.FormatOf(req.Style).MediaType(),
			CacheStatus: CacheHit,
		}, nil
	}
	if !errors.Is(err, tilecache.ErrNotFound) {
		// Treat an unreadable cache as a miss; the cache is an optimization.
		o.log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}

	if req.IsComposite() {
		return o.resolveComposite(ctx, req, key)
	}
	return o.resolveSingle(ctx, req, key)
}

func (o *Orchestrator) resolveSingle(ctx context.Context, req style.Request, key string) (*Result, error) {
	target, err := o.styles.Resolve(req.Style, req.Z, req.X, req.Y, req.Language)
	if err != nil {
		return nil, &RequestError{Status: http.StatusBadRequest, Reason: err.Error()}
	}

	outcome := o.fetcher.Fetch(ctx, target.URL)
	if outcome.Status != fetch.StatusOK {
		return nil, o.fetchError(req.Style, outcome)
	}

	o.storeTile(ctx, key, outcome.Body)

	return &Result{
		Body:        outcome.Body,
		MediaType:   target.MediaType,
		CacheStatus: CacheMiss,
	}, nil
}

// resolveComposite fetches the base layer (mandatory) and the overlay
// (best effort). A missing overlay or a failed blend falls back to the base
// tile alone; only base failures fail the request.
func (o *Orchestrator) resolveComposite(ctx context.Context, req style.Request, key string) (*Result, error) {
	baseTarget, err := o.styles.Resolve(req.BaseStyle, req.Z, req.X, req.Y, req.Language)
	if err != nil {
		return nil, &RequestError{Status: http.StatusBadRequest, Reason: err.Error()}
	}

	baseOutcome := o.fetcher.Fetch(ctx, baseTarget.URL)
	if baseOutcome.Status != fetch.StatusOK {
		return nil, o.fetchError(req.BaseStyle, baseOutcome)
	}

	body := baseOutcome.Body

	overlayTarget, err := o.styles.Resolve(req.Style, req.Z, req.X, req.Y, req.Language)
	if err != nil {
		o.log.Warn("Overlay style resolution failed", zap.String("style", req.Style), zap.Error(err))
	} else {
		overlayOutcome := o.fetcher.Fetch(ctx, overlayTarget.URL)
		switch overlayOutcome.Status {
		case fetch.StatusOK:
			composed, err := o.composite(body, overlayOutcome.Body)
			if err != nil {
				o.log.Warn("Compositing failed, serving base tile",
					zap.String("style", req.Style), zap.Error(err))
			} else {
				body = composed
			}
		default:
			// Overlay absence is expected: many tiles have no overlay data.
			o.log.Debug("Overlay fetch unavailable, serving base tile",
				zap.String("style", req.Style),
				zap.Int("status", overlayOutcome.HTTPStatus()),
			)
		}
	}

	o.storeTile(ctx, key, body)

	return &Result{
		Body:        body,
		MediaType:   baseTarget.MediaType,
		CacheStatus: CacheMiss,
	}, nil
}

func (o *Orchestrator) fetchError(styleID string, outcome fetch.Outcome) *RequestError {
	return &RequestError{
		Status: outcome.HTTPStatus(),
		Reason: fmt.Sprintf("could not fetch tile for style %s", styleID),
	}
}

// storeTile writes the tile under its key. Write failures are logged and
// swallowed; they never fail the response.
func (o *Orchestrator) storeTile(ctx context.Context, key string, body []byte) {
	if err := o.store.Set(ctx, key, body, o.ttl); err != nil {
		o.log.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
}
