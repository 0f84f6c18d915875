package rate

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// RateLimitError is returned when a call would exceed the declared quota.
type RateLimitError struct {
	Provider string
	Window   Window
	RetryAt  time.Time
}

func (e RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (%s quota), retry at %s", e.Provider, e.Window, e.RetryAt.UTC().Format(time.RFC3339))
}

type backgroundKey struct{}

// Background marks requests made with ctx as deferrable polling traffic.
func Background(ctx context.Context) context.Context {
	return context.WithValue(ctx, backgroundKey{}, true)
}

func isBackground(ctx context.Context) bool {
	v, _ := ctx.Value(backgroundKey{}).(bool)
	return v
}

type bucket struct {
	capacity float64
	tokens   float64
	last     time.Time
}

func (b *bucket) refill(now time.Time, window time.Duration) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed*b.capacity/window.Seconds())
	}
	b.last = now
}

// Guard enforces a Declaration with one token bucket per window.
type Guard struct {
	decl Declaration
	now  func() time.Time

	mu      sync.Mutex
	buckets map[Window]*bucket
}

// NewGuard creates a guard with full buckets.
func NewGuard(decl Declaration) *Guard {
	g := &Guard{decl: decl, now: time.Now, buckets: make(map[Window]*bucket)}
	start := g.now()
	for window, limit := range decl.limits {
		g.buckets[window] = &bucket{capacity: float64(limit), tokens: float64(limit), last: start}
	}
	return g
}

// Take consumes one request from every window or reports which window is exhausted.
func (g *Guard) Take(background bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for window, b := range g.buckets {
		b.refill(now, window.Duration())
		floor := 1.0
		if background {
			floor += float64(g.decl.reserve[window])
		}
		if b.tokens < floor {
			perToken := time.Duration(float64(window.Duration()) / b.capacity)
			return RateLimitError{Provider: g.decl.provider, Window: window, RetryAt: now.Add(perToken)}
		}
	}
	for window, b := range g.buckets {
		b.tokens--
		remainingGauge.WithLabelValues(g.decl.provider, window.String()).Set(b.tokens)
	}
	return nil
}

// WrapHTTP returns a copy of base whose transport is gated by decl.
func WrapHTTP(decl Declaration, base *http.Client) *http.Client {
	if base == nil {
		base = &http.Client{}
	}
	client := *base
	transport := client.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	client.Transport = &roundTripper{base: transport, guard: NewGuard(decl)}
	return &client
}

type roundTripper struct {
	base  http.RoundTripper
	guard *Guard
}

func (rt *roundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := rt.guard.Take(isBackground(req.Context())); err != nil {
		limitedTotal.WithLabelValues(rt.guard.decl.provider).Inc()
		return nil, err
	}
	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	lastStatusGauge.WithLabelValues(rt.guard.decl.provider).Set(float64(resp.StatusCode))
	return resp, nil
}
