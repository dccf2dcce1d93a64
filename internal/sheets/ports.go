package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter mirrors one ledger entry to an external sheet and
	// returns an opaque row reference.
	LedgerWriter interface {
		Append(ctx context.Context, tx core.Transaction) (rowRef string, err error)
	}
)
