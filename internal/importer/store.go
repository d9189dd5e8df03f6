package importer

import "tessera/internal"

// RecordStore is the guest-store contract the pipeline consumes. The store
// owns per-call timeout/retry policy; the pipeline only sees success or a
// typed failure per write.
type RecordStore interface {
	ListIdentitySnapshot() ([]internal.IdentityRow, error)
	CreateGuest(fields internal.GuestFields) (int64, error)
	UpdateGuest(id int64, patch internal.GuestPatch) error
	// ResolveLocationByName matches location text against known locations,
	// case-insensitive substring in either direction, best-effort.
	ResolveLocationByName(text string) (*int64, error)
}

// RunSink persists the audit trail of an import run.
type RunSink interface {
	BeginRun(fileName string, declaredRows int) (int64, error)
	CompleteRun(runID int64, summary internal.RunSummary) error
}
