package sheets

import (
	"context"

	"bills/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerSink receives a full copy of the merged ledger after each run.
	LedgerSink interface {
		// PublishLedger replaces the sink's copy with records and returns a
		// reference to where they were written.
		PublishLedger(ctx context.Context, records []core.Transaction) (ref string, err error)
	}
)
