// Package ratelimit bounds how often a single device can have analysis
// requests processed.
package ratelimit

import "context"

// Limiter decides whether a device may have another request processed now.
// Allow also counts the attempt when it is granted.
type Limiter interface {
	Allow(ctx context.Context, deviceID string) (bool, error)
}

// Noop allows everything. Used when no redis address is configured.
type Noop struct{}

func (Noop) Allow(ctx context.Context, deviceID string) (bool, error) {
	return true, nil
}
