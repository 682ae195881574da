/*
Package store defines the persistence boundary.

PURPOSE:
  The engine computes over in-memory values. A store loads those values
  before a session and saves them after each change; it is never called in
  the middle of a calculation.

IMPLEMENTATIONS:
  store/memory: deep copies in process memory (tests, dry runs)
  store/sqlite: SQLite with versioned migrations (production)

SEMANTICS:
  Save replaces the whole dataset atomically. Load on an empty store
  returns empty collections with default settings.

SEE ALSO:
  - fleet/dataset.go: the mutable session a store feeds
  - interest/book.go: the invoice session
*/
package store

import (
	"context"

	"github.com/warp/fleet-engine/fleet"
	"github.com/warp/fleet-engine/interest"
)

// FleetStore persists the fleet dataset.
type FleetStore interface {
	LoadFleet(ctx context.Context) (fleet.Fleet, error)
	SaveFleet(ctx context.Context, f fleet.Fleet) error
}

// InvoiceStore persists invoices, customers and interest settings.
type InvoiceStore interface {
	LoadInvoices(ctx context.Context) (interest.Data, error)
	SaveInvoices(ctx context.Context, d interest.Data) error
}

// Store is both, plus the release of underlying resources.
type Store interface {
	FleetStore
	InvoiceStore
	Close() error
}
