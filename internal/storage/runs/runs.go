// Package runs persists the records of finished backtest runs.
package runs

import (
	"context"

	"ballast/internal/core"
)

// Store defines the interface for run-history persistence.
type Store interface {
	// SaveRun persists one run record. Saving an existing ID replaces
	// the stored record.
	SaveRun(ctx context.Context, record core.RunRecord) error

	// GetRun retrieves a run by its ID.
	GetRun(ctx context.Context, id string) (core.RunRecord, error)

	// ListRuns returns the most recent runs, newest first. A
	// non-positive limit returns everything.
	ListRuns(ctx context.Context, limit int) ([]core.RunRecord, error)

	// Close releases underlying resources.
	Close() error
}
