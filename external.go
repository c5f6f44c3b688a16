package mangashark

import "context"

// ContentSource supplies unit metadata and pages on demand. The
// transport behind it (GraphQL in the production client) is not this
// package's concern.
type ContentSource interface {
	// FetchAdjacent returns the unit next to ref in the given direction
	// together with its pages. A genuine end of the sequence is reported
	// as mangashark_errors.ErrSequenceBoundary; any other error is a
	// transient fetch failure and may be retried.
	FetchAdjacent(ctx context.Context, ref string, dir Direction) (ContentUnit, []SubItem, error)

	// FetchItems returns the pages of a unit already known to exist.
	FetchItems(ctx context.Context, unitID string) ([]SubItem, error)
}

// RemoteSync pushes a reading position to the content server.
// Best-effort: failures are logged by the caller and never retried.
type RemoteSync interface {
	PushProgress(ctx context.Context, unitKey string, lastIndex int, complete bool) error
}

// PayloadCache holds the heavy per-page payloads (decoded pixels in
// the production client). The window manager evicts by key when a
// section leaves the load radius; durable storage is never touched.
type PayloadCache interface {
	Evict(keys []string)
}
