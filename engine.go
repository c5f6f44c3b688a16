package mangashark

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/franciscasao/manga-shark-sub000/mangashark_errors"
	"github.com/franciscasao/manga-shark-sub000/utils"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// readingSession marks the unit the foreground is currently reading.
// While set, remote-originated updates for that unit are suppressed so
// background sync cannot regress the user's own in-progress position.
type readingSession struct {
	id      uuid.UUID
	unitKey string
}

// Engine converts high-frequency position updates into a small number
// of durable, conflict-resolved writes and keeps the pending buffer,
// the durable store and the remote server eventually consistent. For a
// single unit key, durable writes land in strictly increasing
// timestamp order; Resolve enforces that on every write path.
type Engine struct {
	store  DurableStore
	remote RemoteSync
	clock  Clock
	log    utils.Logger
	opts   Options

	// one pending slot per unit key, newer updates replace older ones
	pending *xsync.MapOf[string, *PendingUpdate]
	deb     utils.Debouncer

	slock   sync.Mutex
	session *readingSession

	flock sync.Mutex // one flush batch at a time

	statusCache *ReadStatusCache

	wg     sync.WaitGroup
	closed atomic.Bool
}

func NewEngine(store DurableStore, remote RemoteSync, clock Clock, log utils.Logger, opts Options) *Engine {
	opts.SetDefaults()
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		store:   store,
		remote:  remote,
		clock:   clock,
		log:     log,
		opts:    opts,
		pending: xsync.NewMapOf[string, *PendingUpdate](),
	}
}

// SetStatusCache attaches a read-status cache the engine invalidates
// on every durable write.
func (e *Engine) SetStatusCache(cache *ReadStatusCache) {
	e.statusCache = cache
}

// BeginSession marks unitKey as actively read. A still-open previous
// session is ended first, flushing whatever it left pending.
func (e *Engine) BeginSession(ctx context.Context, unitKey string) uuid.UUID {
	e.slock.Lock()
	prev := e.session
	sid := uuid.Must(uuid.NewV7())
	e.session = &readingSession{id: sid, unitKey: unitKey}
	e.slock.Unlock()
	if prev != nil {
		e.log.WarnCtx(ctx, "session replaced while open", "unit", prev.unitKey, "session", prev.id.String())
		e.Flush(ctx)
	}
	e.log.DebugCtx(ctx, "session started", "unit", unitKey, "session", sid.String())
	return sid
}

// EndSession clears the active-session guard and immediately flushes
// pending updates. Navigating away must not lose the last few hundred
// milliseconds of scrolling to the debounce window.
func (e *Engine) EndSession(ctx context.Context) error {
	e.slock.Lock()
	sess := e.session
	e.session = nil
	e.slock.Unlock()
	if sess == nil {
		return mangashark_errors.ErrNoActiveSession
	}
	e.log.DebugCtx(ctx, "session ended", "unit", sess.unitKey, "session", sess.id.String())
	e.Flush(ctx)
	return nil
}

// ShouldAcceptExternalUpdate reports whether a remote-originated update
// for unitKey may be applied. False while that unit is actively read.
func (e *Engine) ShouldAcceptExternalUpdate(unitKey string) bool {
	e.slock.Lock()
	defer e.slock.Unlock()
	return e.session == nil || e.session.unitKey != unitKey
}

// UpdateProgress records a position update and (re)starts the flush
// debounce. Non-blocking; intermediate updates for the same key within
// one debounce window are discarded, only the last one is written.
func (e *Engine) UpdateProgress(unitKey, seriesKey string, fraction float64, lastIndex int, complete bool) error {
	if fraction < 0 || fraction > 1 {
		return mangashark_errors.ErrBadFraction
	}
	if lastIndex < 0 || lastIndex > LastIndexMax {
		return mangashark_errors.ErrBadIndex
	}
	e.pending.Store(unitKey, &PendingUpdate{
		UnitKey:   unitKey,
		SeriesKey: seriesKey,
		Fraction:  fraction,
		LastIndex: lastIndex,
		Complete:  complete,
		Stamp:     e.clock.Now(),
	})
	PendingUpdates.Set(float64(e.pending.Size()))
	e.deb.Schedule(e.opts.FlushDebounce, func() {
		e.flush(context.Background())
	})
	return nil
}

// MarkUnitCompleteImmediate bypasses the debounce: the unit is durably
// marked read right away and a remote sync is dispatched eagerly. Used
// at hard transition boundaries where losing the event to app
// termination would be user-visible.
func (e *Engine) MarkUnitCompleteImmediate(ctx context.Context, unitKey, seriesKey string) error {
	if _, had := e.pending.LoadAndDelete(unitKey); had {
		PendingUpdates.Set(float64(e.pending.Size()))
	}
	rec := &ProgressRecord{
		UnitKey:   unitKey,
		SeriesKey: seriesKey,
		Fraction:  1.0,
		UpdatedAt: e.clock.Now(),
		Complete:  true,
		LastIndex: LastIndexMax,
	}
	if err := e.store.Put(ctx, rec); err != nil {
		FlushCount.WithLabelValues("error").Inc()
		return err
	}
	FlushCount.WithLabelValues("ok").Inc()
	e.invalidateStatus(unitKey)
	e.pushRemoteAsync(rec)
	return nil
}

// ApplyExternal ingests a record that originated outside the process
// (server sync, migration import). The active-session guard may
// suppress it; otherwise the resolver-gated store write decides.
func (e *Engine) ApplyExternal(ctx context.Context, rec *ProgressRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if !e.ShouldAcceptExternalUpdate(rec.UnitKey) {
		ExternalUpdateCount.WithLabelValues("suppressed").Inc()
		e.log.DebugCtx(ctx, "external update suppressed by active session", "unit", rec.UnitKey)
		return nil
	}
	if err := e.store.Put(ctx, rec); err != nil {
		ExternalUpdateCount.WithLabelValues("error").Inc()
		return err
	}
	ExternalUpdateCount.WithLabelValues("applied").Inc()
	e.invalidateStatus(rec.UnitKey)
	return nil
}

// MarkAllComplete is the bulk "mark read" writer. It races with the
// foreground through the same resolver-gated path as everyone else.
func (e *Engine) MarkAllComplete(ctx context.Context, seriesKey string, unitKeys []string) error {
	return e.markAll(ctx, seriesKey, unitKeys, true)
}

func (e *Engine) MarkAllIncomplete(ctx context.Context, seriesKey string, unitKeys []string) error {
	return e.markAll(ctx, seriesKey, unitKeys, false)
}

func (e *Engine) markAll(ctx context.Context, seriesKey string, unitKeys []string, complete bool) error {
	var errs []error
	for _, key := range unitKeys {
		rec := &ProgressRecord{
			UnitKey:   key,
			SeriesKey: seriesKey,
			UpdatedAt: e.clock.Now(),
			Complete:  complete,
		}
		if complete {
			rec.Fraction = 1.0
			rec.LastIndex = LastIndexMax
		}
		if err := e.store.Put(ctx, rec); err != nil {
			errs = append(errs, err)
			continue
		}
		e.invalidateStatus(key)
		e.pushRemoteAsync(rec)
	}
	return errors.Join(errs...)
}

// ClearHistory drops every progress record, pending or durable.
func (e *Engine) ClearHistory(ctx context.Context) error {
	e.pending.Clear()
	PendingUpdates.Set(0)
	if err := e.store.DeleteAll(ctx); err != nil {
		return err
	}
	if e.statusCache != nil {
		e.statusCache.Purge()
	}
	return nil
}

// GetProgress reads the durable record. Pending-buffer values are not
// reflected; the debounce window bounds the staleness and session end
// closes the gap at navigation boundaries.
func (e *Engine) GetProgress(ctx context.Context, unitKey string) (*ProgressRecord, error) {
	return e.store.Get(ctx, unitKey)
}

// GetReadStatus returns the locally known read flag per unit key.
// Units without a local record report false; callers holding a
// server-side flag merge it with IsRead.
func (e *Engine) GetReadStatus(ctx context.Context, unitKeys []string) (map[string]bool, error) {
	recs, err := e.store.BatchGet(ctx, unitKeys)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(unitKeys))
	for _, key := range unitKeys {
		rec := recs[key]
		out[key] = rec != nil && rec.Complete
	}
	return out, nil
}

// Flush cancels the debounce and writes all pending updates now. The
// cancelled debounce discards nothing.
func (e *Engine) Flush(ctx context.Context) {
	e.deb.Cancel()
	e.flush(ctx)
}

// Close flushes what is pending and waits for in-flight remote syncs.
func (e *Engine) Close(ctx context.Context) error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.deb.Cancel()
	e.flush(ctx)
	e.wg.Wait()
	return nil
}

func (e *Engine) flush(ctx context.Context) {
	e.flock.Lock()
	defer e.flock.Unlock()
	ctx = utils.WithDefaultArgs(ctx, "process", "flush")

	var batch []*PendingUpdate
	e.pending.Range(func(key string, _ *PendingUpdate) bool {
		if p, ok := e.pending.LoadAndDelete(key); ok {
			batch = append(batch, p)
		}
		return true
	})
	PendingUpdates.Set(float64(e.pending.Size()))

	for _, p := range batch {
		existing, err := e.store.Get(ctx, p.UnitKey)
		if err != nil {
			FlushCount.WithLabelValues("error").Inc()
			e.log.ErrorCtx(ctx, "flush read failed, update dropped", "unit", p.UnitKey, "err", err)
			continue
		}
		// ties favor the existing record
		if existing != nil && !p.Stamp.After(existing.UpdatedAt) {
			FlushCount.WithLabelValues("stale").Inc()
			continue
		}
		rec := p.Record()
		if err := e.store.Put(ctx, rec); err != nil {
			FlushCount.WithLabelValues("error").Inc()
			e.log.ErrorCtx(ctx, "durable write failed, update dropped", "unit", p.UnitKey, "err", err)
			continue
		}
		FlushCount.WithLabelValues("ok").Inc()
		e.invalidateStatus(p.UnitKey)
		// dispatched only after the durable write succeeded
		e.pushRemoteAsync(rec)
	}
}

// pushRemoteAsync hands one record to a background sync goroutine.
// The mutation path never waits on the network; Close drains the group.
func (e *Engine) pushRemoteAsync(rec *ProgressRecord) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.pushRemote(context.Background(), rec)
	}()
}

// pushRemote is best-effort: failures are logged and never retried
// here. The next natural update to the unit carries the state anyway.
func (e *Engine) pushRemote(ctx context.Context, rec *ProgressRecord) {
	if e.remote == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, e.opts.SyncTimeout)
	defer cancel()
	if err := e.remote.PushProgress(sctx, rec.UnitKey, rec.LastIndex, rec.Complete); err != nil {
		RemoteSyncCount.WithLabelValues("error").Inc()
		e.log.WarnCtx(ctx, "remote sync failed", "unit", rec.UnitKey, "err", err)
		return
	}
	RemoteSyncCount.WithLabelValues("ok").Inc()
}

func (e *Engine) invalidateStatus(unitKey string) {
	if e.statusCache != nil {
		e.statusCache.Invalidate(unitKey)
	}
}
