// Package httpclient builds the outbound clients the orchestrator uses to
// reach training nodes, plus the retry helper wrapped around health probes.
package httpclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

const (
	dialTimeout    = 3 * time.Second
	keepAlive      = 30 * time.Second
	idleConnTTL    = 2 * time.Minute
	maxIdlePerNode = 4
	retryDelayCeil = 2 * time.Second
)

// New returns a client pooled for a small fixed mesh: a handful of node
// endpoints called repeatedly on the health and sync cycles, so idle
// connections per host are kept warm between ticks.
func New(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   dialTimeout,
				KeepAlive: keepAlive,
			}).DialContext,
			MaxIdleConnsPerHost: maxIdlePerNode,
			IdleConnTimeout:     idleConnTTL,
			TLSHandshakeTimeout: dialTimeout,
		},
	}
}

// Retry runs fn up to attempts times, doubling the delay between failures up
// to a ceiling. The context cancels both the wait and further attempts.
func Retry(ctx context.Context, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts <= 1 {
		return fn()
	}

	var err error
	delay := baseDelay
	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err = fn(); err == nil {
			return nil
		}
		if attempt == attempts-1 {
			break
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}

		delay *= 2
		if delay > retryDelayCeil {
			delay = retryDelayCeil
		}
	}
	return err
}

// IsRetriable reports whether the error looks like a transient network
// condition rather than a node refusing the request.
func IsRetriable(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout() || netErr.Temporary()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
