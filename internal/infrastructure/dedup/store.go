// Package dedup provides the time-bounded duplicate-event store used to
// suppress reprocessing of redelivered webhook callbacks.
//
// The platform delivers events at least once; every accepted event's
// identity is recorded on first sight and remembered for the configured
// window. The check-and-record step is atomic: for the same identity
// arriving concurrently, at most one caller observes "not seen".
// First-seen wins: a duplicate never refreshes the window, so a
// legitimately repeated event becomes processable again after expiry.
package dedup

import (
	"context"
	"io"
)

// Store records event identities and answers whether one was already
// seen inside the dedup window.
type Store interface {
	// Seen atomically records the identity on first observation and
	// reports whether it had been seen before within the window.
	Seen(ctx context.Context, identity string) (bool, error)

	// Ping verifies the store is usable, for readiness checks.
	Ping(ctx context.Context) error

	// Name identifies the backend in logs and metrics.
	Name() string

	io.Closer
}
