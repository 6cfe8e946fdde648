// Package reconcile implements the order-book synchronization engine: the
// state machine that bridges a REST snapshot to a live WebSocket delta
// stream, replays deltas in strict sequence, and resynchronizes whenever
// continuity breaks.
package reconcile

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
	"github.com/holowatch/marketpulse/domain"
	"github.com/holowatch/marketpulse/infrastructure/prometheus"
	"github.com/rs/zerolog"
)

// DepthQueue is the contract SyncWorker needs from the depth ingest layer:
// something that buffers deltas in wire order and hands the whole backlog
// back on demand without blocking its producer. Satisfied by
// *ingest.DepthIngest.
type DepthQueue interface {
	Start()
	Stop()
	Drain() []*domain.DepthUpdate
}

// Stream is the contract SyncWorker needs from the transport layer: open
// and close the live depth connection. Satisfied by *exchange.DepthStream.
type Stream interface {
	Start(ctx context.Context) error
	Stop() error
}

// SnapshotLoader is the contract SyncWorker needs from the REST layer:
// fetch a fresh snapshot and load it into the book, returning the
// snapshot's lastUpdateId. Satisfied by *exchange.RestClient.
type SnapshotLoader interface {
	LoadSnapshot(ctx context.Context, symbol domain.Symbol, book *domain.OrderBook, limit int) (uint64, error)
}

// defaultPeriod is the reconciliation loop's drain interval.
const defaultPeriod = 20 * time.Millisecond

// SyncWorker drives one symbol's reconciliation loop. Its backlog is
// goroutine-local — only the loop goroutine touches it — so unlike
// OrderBook/TradeStats it needs no mutex of its own.
type SyncWorker struct {
	symbol domain.Symbol
	book   *domain.OrderBook

	depth  DepthQueue
	stream Stream
	rest   SnapshotLoader

	limit       int
	restTimeout time.Duration
	period      time.Duration

	logger  zerolog.Logger
	metrics *promclient.Metrics

	running      atomic.Bool
	synchronized atomic.Bool // advisory only; authoritative state lives in the loop goroutine

	cancel context.CancelFunc
	doneCh chan struct{}

	// Loop-local sync state. Touched only from the loop goroutine; never
	// read or written concurrently.
	snapshotLastUpdateID uint64
	lastAppliedUpdateID  uint64
	loopSynchronized     bool
	backlog              deque.Deque[*domain.DepthUpdate]
}

// Option configures optional SyncWorker fields at construction.
type Option func(*SyncWorker)

// WithMetrics attaches a metrics registry. Without it, metric increments
// are skipped.
func WithMetrics(m *promclient.Metrics) Option {
	return func(w *SyncWorker) { w.metrics = m }
}

// WithPeriod overrides the default 20ms reconciliation period, mainly for
// tests that want a tighter loop.
func WithPeriod(d time.Duration) Option {
	return func(w *SyncWorker) { w.period = d }
}

// WithRestTimeout overrides the default 10s REST timeout.
func WithRestTimeout(d time.Duration) Option {
	return func(w *SyncWorker) { w.restTimeout = d }
}

// NewSyncWorker builds a worker for symbol, sharing book with whatever
// reader (the Publisher) also holds a handle to it via the registry.
func NewSyncWorker(
	symbol domain.Symbol,
	book *domain.OrderBook,
	depth DepthQueue,
	stream Stream,
	rest SnapshotLoader,
	limit int,
	logger zerolog.Logger,
	opts ...Option,
) *SyncWorker {
	w := &SyncWorker{
		symbol:      symbol,
		book:        book,
		depth:       depth,
		stream:      stream,
		rest:        rest,
		limit:       limit,
		restTimeout: 10 * time.Second,
		period:      defaultPeriod,
		logger:      logger.With().Str("symbol", symbol.String()).Logger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Synchronized reports the advisory synchronized flag. The authoritative
// state lives in the loop goroutine; this is for metrics/observability
// callers that can't afford to synchronize with the loop.
func (w *SyncWorker) Synchronized() bool {
	return w.synchronized.Load()
}

// Start runs the startup protocol: open the depth stream first (so live
// deltas begin buffering), then request the initial snapshot, then launch
// the reconciliation loop. The WS-first ordering is load-bearing: any other
// order risks losing deltas between snapshot time and stream-open time with
// no way to detect the loss.
func (w *SyncWorker) Start(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return nil // already running; Start is idempotent
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.depth.Start()
	if err := w.stream.Start(workerCtx); err != nil {
		w.logger.Warn().Err(err).Msg("depth stream failed to open; reconciliation loop will keep retrying snapshots")
	}

	w.loadInitialSnapshot(workerCtx)

	w.doneCh = make(chan struct{})
	go w.loop(workerCtx)
	return nil
}

func (w *SyncWorker) loadInitialSnapshot(ctx context.Context) {
	rctx, rcancel := context.WithTimeout(ctx, w.restTimeout)
	defer rcancel()

	id, err := w.rest.LoadSnapshot(rctx, w.symbol, w.book, w.limit)
	if err != nil {
		w.logger.Warn().Err(err).Msg("initial snapshot failed; will retry via resync")
		return
	}
	w.snapshotLastUpdateID = id
	w.lastAppliedUpdateID = 0
	w.loopSynchronized = false
}

// Stop clears the run flag, stops the transport and ingest, and waits for
// the loop goroutine to exit. Idempotent via the atomic running flag.
func (w *SyncWorker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	_ = w.stream.Stop()
	w.depth.Stop()
	if w.doneCh != nil {
		<-w.doneCh
	}
}

func (w *SyncWorker) loop(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.step(ctx)
		}
	}
}

// step drains newly arrived deltas into the persistent backlog, then
// dispatches to the state-appropriate batch processor.
func (w *SyncWorker) step(ctx context.Context) {
	for _, u := range w.depth.Drain() {
		w.backlog.PushBack(u)
	}

	if w.loopSynchronized {
		w.processBatchSynced(ctx)
	} else {
		w.processBatchUnsynced(ctx)
	}
}

// processBatchUnsynced implements the UNSYNCED-state reconciliation algorithm.
func (w *SyncWorker) processBatchUnsynced(ctx context.Context) {
	// 1. Trim stale: pop any front entry already covered by the snapshot.
	for w.backlog.Len() > 0 && w.backlog.Front().LastUpdateID <= w.snapshotLastUpdateID {
		w.backlog.PopFront()
	}

	// 2. Nothing buffered yet; wait for more.
	if w.backlog.Len() == 0 {
		return
	}

	// 3. Snapshot pre-dates the earliest buffered delta: the bridge is
	// unrecoverable from this snapshot. Fetch a fresher one and retry next
	// tick; the backlog is left untouched.
	if w.backlog.Front().FirstUpdateID > w.snapshotLastUpdateID+1 {
		w.resync(ctx, "snapshot predates earliest buffered delta")
		return
	}

	// 4. Find the bridge delta: the first one whose range contains S+1.
	bridge := -1
	for i := 0; i < w.backlog.Len(); i++ {
		d := w.backlog.At(i)
		if d.FirstUpdateID <= w.snapshotLastUpdateID+1 && w.snapshotLastUpdateID+1 <= d.LastUpdateID {
			bridge = i
			break
		}
	}
	if bridge == -1 {
		return // no bridge yet; more deltas may still arrive
	}

	// 5. Discard everything before the bridge.
	for i := 0; i < bridge; i++ {
		w.backlog.PopFront()
	}

	// 6. Replay with strict continuity, starting from the snapshot baseline.
	applied := w.snapshotLastUpdateID
	first := true
	for w.backlog.Len() > 0 {
		d := w.backlog.Front()

		if first {
			if !(d.FirstUpdateID <= w.snapshotLastUpdateID+1 && w.snapshotLastUpdateID+1 <= d.LastUpdateID) {
				return // state shifted under us; retry next tick without consuming
			}
		} else if d.FirstUpdateID != applied+1 {
			w.logger.Warn().
				Uint64("expected", applied+1).
				Uint64("got", d.FirstUpdateID).
				Msg("gap while replaying bridge backlog; retrying next tick")
			return // backlog retained; next tick may heal it or trigger a resnapshot
		}

		w.book.ApplyDepthDelta(d)
		w.incAppliedDeltas()
		applied = d.LastUpdateID
		w.backlog.PopFront()
		first = false
	}

	// 7. Fully replayed: the book is caught up to applied.
	w.lastAppliedUpdateID = applied
	w.loopSynchronized = true
	w.setSynchronized(true)
}

// processBatchSynced implements the SYNCED-state reconciliation algorithm.
func (w *SyncWorker) processBatchSynced(ctx context.Context) {
	for w.backlog.Len() > 0 {
		d := w.backlog.Front()

		if d.FirstUpdateID == w.lastAppliedUpdateID+1 {
			w.book.ApplyDepthDelta(d)
			w.incAppliedDeltas()
			w.lastAppliedUpdateID = d.LastUpdateID
			w.backlog.PopFront()
			continue
		}

		// Gap (or a duplicate/replayed range, which fails this same check):
		// force a resync. Retain the backlog — it may bridge the new
		// snapshot — and stop for this tick.
		w.logger.Warn().
			Uint64("expected", w.lastAppliedUpdateID+1).
			Uint64("got", d.FirstUpdateID).
			Msg("sequence gap in live stream; forcing resync")
		w.incGap()
		w.resync(ctx, "sequence gap in live stream")
		return
	}
}

// resync fetches a fresh snapshot and resets the loop state to UNSYNCED.
// On failure the snapshot id is left unchanged, but synchronized still
// drops to false so the next tick retries.
func (w *SyncWorker) resync(ctx context.Context, reason string) {
	w.loopSynchronized = false
	w.setSynchronized(false)

	rctx, cancel := context.WithTimeout(ctx, w.restTimeout)
	defer cancel()

	id, err := w.rest.LoadSnapshot(rctx, w.symbol, w.book, w.limit)
	if err != nil {
		w.logger.Warn().Err(err).Str("reason", reason).Msg("resync snapshot fetch failed; will retry")
		return
	}

	w.snapshotLastUpdateID = id
	w.lastAppliedUpdateID = 0
	w.incResync()
	w.logger.Info().Uint64("snapshotLastUpdateId", id).Str("reason", reason).Msg("resynced")
}

// setSynchronized updates both the advisory atomic flag readers outside the
// loop goroutine can poll and the exported gauge, keeping them in lockstep.
func (w *SyncWorker) setSynchronized(synced bool) {
	w.synchronized.Store(synced)
	if w.metrics != nil {
		v := 0.0
		if synced {
			v = 1.0
		}
		w.metrics.Synchronized.WithLabelValues(w.symbol.String()).Set(v)
	}
}

func (w *SyncWorker) incAppliedDeltas() {
	if w.metrics != nil {
		w.metrics.AppliedDeltas.WithLabelValues(w.symbol.String()).Inc()
	}
}

func (w *SyncWorker) incResync() {
	if w.metrics != nil {
		w.metrics.ResyncTotal.WithLabelValues(w.symbol.String()).Inc()
	}
}

func (w *SyncWorker) incGap() {
	if w.metrics != nil {
		w.metrics.GapTotal.WithLabelValues(w.symbol.String()).Inc()
	}
}
