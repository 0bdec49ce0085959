package auction

import (
	"context"

	"github.com/cloudx-io/playerauction/sessionapi"
)

// Saver persists a snapshot after each successful state change. Save errors
// are logged; the in-memory session stays authoritative.
type Saver interface {
	Save(ctx context.Context, snapshot sessionapi.Snapshot) error
}

// Flusher is implemented by savers that write in the background.
type Flusher interface {
	Flush(ctx context.Context) error
}

// SnapshotSource reads the snapshot of a previous session. It returns an
// error wrapping sessionapi.ErrNoSnapshot when nothing was saved.
type SnapshotSource interface {
	Load(ctx context.Context) (*sessionapi.Snapshot, error)
}

// Publisher receives auction events. Publish errors are logged only.
type Publisher interface {
	Publish(ctx context.Context, event sessionapi.Event) error
}
