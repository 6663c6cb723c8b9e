// Package identity resolves the authenticated caller once per request.
//
// Several read paths on one request ask "who am I" independently. The
// RequestCache collapses those into a single provider call and shares
// the result, including a failed result, with every asker on that
// request.
package identity

import (
	"context"
	"errors"
	"sync"

	"github.com/squadup/squadup/internal/metrics"
)

// ErrNotAuthenticated is returned when the request carries no valid
// credentials.
var ErrNotAuthenticated = errors.New("not authenticated")

// Identity is the resolved caller.
type Identity struct {
	UserID string
	Handle string
	Email  string
}

// Provider resolves the caller's identity from request credentials.
type Provider interface {
	WhoAmI(ctx context.Context) (*Identity, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context) (*Identity, error)

func (f ProviderFunc) WhoAmI(ctx context.Context) (*Identity, error) {
	return f(ctx)
}

// RequestCache memoizes one identity resolution for the lifetime of a
// request. Concurrent callers block until the first resolution
// completes and then share its outcome. Create one per request; it is
// never reused across requests.
type RequestCache struct {
	provider Provider

	once sync.Once
	id   *Identity
	err  error
}

// NewRequestCache wraps provider with request-scoped memoization.
func NewRequestCache(provider Provider) *RequestCache {
	return &RequestCache{provider: provider}
}

// WhoAmI resolves the caller, calling the underlying provider at most
// once.
func (rc *RequestCache) WhoAmI(ctx context.Context) (*Identity, error) {
	resolved := false
	rc.once.Do(func() {
		resolved = true
		metrics.IdentityChecks.Inc()
		rc.id, rc.err = rc.provider.WhoAmI(ctx)
	})
	if !resolved {
		metrics.IdentityDeduped.Inc()
	}
	return rc.id, rc.err
}

type contextKey struct{}

// WithRequestCache attaches a request cache to the context.
func WithRequestCache(ctx context.Context, rc *RequestCache) context.Context {
	return context.WithValue(ctx, contextKey{}, rc)
}

// FromContext returns the request cache attached by middleware, or nil.
func FromContext(ctx context.Context) *RequestCache {
	rc, _ := ctx.Value(contextKey{}).(*RequestCache)
	return rc
}

// Resolve is the convenience used by services: it reads the request
// cache from ctx and resolves the caller through it.
func Resolve(ctx context.Context) (*Identity, error) {
	rc := FromContext(ctx)
	if rc == nil {
		return nil, ErrNotAuthenticated
	}
	return rc.WhoAmI(ctx)
}
