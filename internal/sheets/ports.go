package sheets

import (
	"context"
	"time"

	"kharcha/internal/ledger"
)

// Snapshot is one published ledger report as mirrored to a spreadsheet.
type Snapshot struct {
	Report      ledger.Report
	Generation  uint64
	RefreshedAt time.Time
	Stale       bool
}

// Ports for outbound adapters.
type (
	// SnapshotMirror replaces the mirrored table with the rows of s.
	SnapshotMirror interface {
		Mirror(ctx context.Context, s Snapshot) (updatedRange string, err error)
	}
)
