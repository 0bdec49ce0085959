package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/cloudx-io/playerauction/sessionapi"
)

// SnapshotRepository saves and loads one session's snapshot under a fixed
// key. It satisfies the auction package's Saver and SnapshotSource.
type SnapshotRepository struct {
	store Store
	codec *Codec
	key   string
}

func NewSnapshotRepository(store Store, codec *Codec, key string) *SnapshotRepository {
	if codec == nil {
		codec = NewCodec()
	}
	return &SnapshotRepository{store: store, codec: codec, key: key}
}

func (r *SnapshotRepository) Save(ctx context.Context, snap sessionapi.Snapshot) error {
	blob, err := r.codec.Encode(snap)
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, r.key, blob); err != nil {
		return fmt.Errorf("store snapshot: %w", err)
	}
	return nil
}

// Load returns an error wrapping sessionapi.ErrNoSnapshot when the key is
// empty.
func (r *SnapshotRepository) Load(ctx context.Context) (*sessionapi.Snapshot, error) {
	blob, err := r.store.Get(ctx, r.key)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", sessionapi.ErrNoSnapshot, r.key)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	snap, err := r.codec.Decode(blob)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// Clear removes the saved snapshot.
func (r *SnapshotRepository) Clear(ctx context.Context) error {
	return r.store.Delete(ctx, r.key)
}

type snapshotWriter interface {
	Save(ctx context.Context, snap sessionapi.Snapshot) error
}

// ErrSaverClosed is returned by AsyncSaver.Save after Close.
var ErrSaverClosed = errors.New("snapshot saver closed")

// AsyncSaver hands snapshots to a single background goroutine. Only the most
// recent unsaved snapshot is kept, so a slow store never queues stale state.
type AsyncSaver struct {
	next    snapshotWriter
	timeout time.Duration

	mu      sync.Mutex
	pending *sessionapi.Snapshot
	closed  bool
	lastErr error

	wake    chan struct{}
	flushes chan chan error
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewAsyncSaver starts the writer goroutine. timeout bounds each write.
func NewAsyncSaver(next snapshotWriter, timeout time.Duration) *AsyncSaver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	a := &AsyncSaver{
		next:    next,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go a.run()
	return a
}

// Save queues snap, replacing any snapshot not yet written. It never blocks
// on the store.
func (a *AsyncSaver) Save(_ context.Context, snap sessionapi.Snapshot) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrSaverClosed
	}
	a.pending = &snap
	a.mu.Unlock()

	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

// Flush waits until every queued snapshot is written and returns the result
// of the most recent write.
func (a *AsyncSaver) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	select {
	case a.flushes <- reply:
	case <-a.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes any queued snapshot and stops the goroutine.
func (a *AsyncSaver) Close(ctx context.Context) error {
	a.once.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		close(a.done)
	})
	select {
	case <-a.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *AsyncSaver) run() {
	defer close(a.stopped)
	for {
		select {
		case <-a.wake:
			a.writePending()
		case reply := <-a.flushes:
			a.writePending()
			a.mu.Lock()
			reply <- a.lastErr
			a.mu.Unlock()
		case <-a.done:
			a.writePending()
			return
		}
	}
}

func (a *AsyncSaver) writePending() {
	a.mu.Lock()
	snap := a.pending
	a.pending = nil
	a.mu.Unlock()
	if snap == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	err := a.next.Save(ctx, *snap)
	a.mu.Lock()
	a.lastErr = err
	a.mu.Unlock()
	if err != nil {
		log.Warn().
			Err(err).
			Str("session_id", snap.SessionID).
			Int("round", snap.CurrentRound).
			Msg("background snapshot write failed")
		return
	}
	log.Debug().Str("session_id", snap.SessionID).Int("round", snap.CurrentRound).Msg("snapshot written")
}
