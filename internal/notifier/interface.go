// Package notifier delivers routed events to external channels.
package notifier

import (
	"context"

	"ballast/internal/core"
)

// Notifier defines the interface for event delivery
type Notifier interface {
	// Name returns the unique identifier for this notifier
	Name() string

	// Notify delivers a single event. Implementations honor ctx
	// cancellation where the transport allows it.
	Notify(ctx context.Context, event core.Event) error
}
