package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"kitty/internal/core"
	"kitty/internal/observability"
	"kitty/internal/store"
)

// Config holds reconciler tuning.
type Config struct {
	// PollInterval is the fixed cadence of incremental pulls. There is no
	// backoff: a failed cycle is retried naturally by the next tick.
	PollInterval time.Duration

	// PushTimeout bounds a single fire-and-forget push.
	PushTimeout time.Duration

	// AutoBackup opts in to the once-per-day automatic backup push. The
	// on-demand backup endpoint works regardless.
	AutoBackup bool
}

// DefaultConfig returns the cadence the system was designed around.
func DefaultConfig() Config {
	return Config{
		PollInterval: 8 * time.Second,
		PushTimeout:  10 * time.Second,
	}
}

// Reconciler merges remote state into the local store and pushes local
// mutations outward. One session runs at a time; when no endpoint is
// configured every operation is a no-op.
type Reconciler struct {
	store   *store.Store
	client  *Client
	metrics *observability.Metrics
	config  Config

	// onChange fires after a pull that altered local state, so derived
	// views can recompute. Optional.
	onChange func()

	running  atomic.Bool
	pullBusy atomic.Bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	wakeCh   chan struct{}
}

// NewReconciler wires the engine. onChange may be nil.
func NewReconciler(st *store.Store, client *Client, metrics *observability.Metrics, cfg Config, onChange func()) *Reconciler {
	return &Reconciler{
		store:    st,
		client:   client,
		metrics:  metrics,
		config:   cfg,
		onChange: onChange,
		wakeCh:   make(chan struct{}, 1),
	}
}

// Enabled reports whether a remote endpoint is configured.
func (r *Reconciler) Enabled() bool {
	return r.client.Enabled()
}

// Start begins the polling session: one immediate full pull, then incremental
// pulls on the fixed ticker. Returns an error if already running.
func (r *Reconciler) Start(ctx context.Context) error {
	if !r.Enabled() {
		slog.InfoContext(ctx, "Reconciler disabled, no remote endpoint configured")
		return nil
	}
	if !r.running.CompareAndSwap(false, true) {
		return errors.New("reconciler is already running")
	}
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.runLoop(ctx)

	slog.InfoContext(ctx, "Reconciler started", "poll_interval", r.config.PollInterval)
	return nil
}

// Stop ends the session and waits for the loop to drain.
func (r *Reconciler) Stop(ctx context.Context) error {
	if !r.running.Load() {
		return nil
	}
	close(r.stopCh)
	select {
	case <-r.doneCh:
		slog.InfoContext(ctx, "Reconciler stopped")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Reconciler stop timed out")
		return ctx.Err()
	}
	r.running.Store(false)
	return nil
}

// IsRunning reports whether the polling session is active.
func (r *Reconciler) IsRunning() bool {
	return r.running.Load()
}

// Wake requests an immediate incremental pull, the equivalent of the app
// returning to the foreground.
func (r *Reconciler) Wake() {
	if !r.Enabled() || !r.running.Load() {
		return
	}
	select {
	case r.wakeCh <- struct{}{}:
	default:
	}
}

func (r *Reconciler) runLoop(ctx context.Context) {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	// First activation pulls the full snapshot so a fresh device converges
	// immediately; the ticker then keeps up with the incremental feed.
	r.pullAndLog(ctx, "full", r.PullFull)
	r.maybeDailyBackup(ctx)

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-r.wakeCh:
			r.pullAndLog(ctx, "incremental", r.PullIncremental)
		case <-ticker.C:
			r.pullAndLog(ctx, "incremental", r.PullIncremental)
			r.maybeDailyBackup(ctx)
		}
	}
}

// pullAndLog swallows pull errors: every failure on this path is treated as
// transient and the next cycle retries.
func (r *Reconciler) pullAndLog(ctx context.Context, mode string, pull func(context.Context) error) {
	if err := pull(ctx); err != nil {
		if errors.Is(err, ErrPullInFlight) {
			r.metrics.IncrPullSkipped()
			slog.DebugContext(ctx, "Pull tick skipped, previous pull still in flight", "mode", mode)
			return
		}
		r.metrics.IncrPull(mode, "error")
		slog.DebugContext(ctx, "Pull failed, will retry next cycle", "mode", mode, "error", err)
		return
	}
	r.metrics.IncrPull(mode, "ok")
}

// ErrPullInFlight is returned when a pull is requested while another one is
// still running.
var ErrPullInFlight = errors.New("pull already in flight")

// PullFull fetches the remote snapshot, replaces local configuration when the
// snapshot carries one (remote is authoritative for configuration), and
// merges the transaction list by id.
func (r *Reconciler) PullFull(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	if !r.pullBusy.CompareAndSwap(false, true) {
		return ErrPullInFlight
	}
	defer r.pullBusy.Store(false)

	snap, err := r.client.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("fetch snapshot: %w", err)
	}

	changed := false
	if snap.Config != nil {
		r.store.ReplaceConfig(*snap.Config)
		changed = true
	}

	incoming := NormalizeBatch(snap.Transactions, time.Now().UTC())
	if r.store.MergeInbound(incoming) {
		r.metrics.AddMerged(len(incoming))
		changed = true
	}

	if changed {
		slog.InfoContext(ctx, "Full pull applied",
			"remote_transactions", len(incoming),
			"config_replaced", snap.Config != nil)
		r.notifyChange()
	}
	return nil
}

// PullIncremental fetches transactions newer than the stored watermark and
// merges them. The watermark advances to the server-reported timestamp only
// after a successful fetch, so a failed window is re-requested rather than
// skipped.
func (r *Reconciler) PullIncremental(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	if !r.pullBusy.CompareAndSwap(false, true) {
		return ErrPullInFlight
	}
	defer r.pullBusy.Store(false)

	since := r.store.Meta(store.MetaWatermark)
	raws, ts, err := r.client.FetchEntries(ctx, since)
	if err != nil {
		return fmt.Errorf("fetch entries: %w", err)
	}

	incoming := NormalizeBatch(raws, time.Now().UTC())
	if r.store.MergeInbound(incoming) {
		r.metrics.AddMerged(len(incoming))
		slog.InfoContext(ctx, "Incremental pull merged entries", "count", len(incoming), "since", since)
		r.notifyChange()
	}

	if ts != "" {
		if err := r.store.SetMeta(ctx, store.MetaWatermark, ts); err != nil {
			slog.WarnContext(ctx, "Failed to persist watermark", "error", err)
		}
	}
	return nil
}

// PushEntry sends one locally authored transaction, fire-and-forget: the
// caller never blocks and failures are dropped. Convergence relies on the
// periodic pulls, not on push delivery.
func (r *Reconciler) PushEntry(tx core.Transaction) {
	if !r.Enabled() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.config.PushTimeout)
		defer cancel()
		if err := r.client.PushEntry(ctx, tx); err != nil {
			r.metrics.IncrPush("entry", "error")
			slog.DebugContext(ctx, "Entry push failed", "id", tx.ID, "error", err)
			return
		}
		r.metrics.IncrPush("entry", "ok")
	}()
}

// PushBackup sends the full backup document and reports the outcome; the
// on-demand HTTP trigger surfaces it, the daily path swallows it.
func (r *Reconciler) PushBackup(ctx context.Context) error {
	if !r.Enabled() {
		return nil
	}
	if err := r.client.PushBackup(ctx, r.store.ExportDocument()); err != nil {
		r.metrics.IncrPush("backup", "error")
		return fmt.Errorf("push backup: %w", err)
	}
	r.metrics.IncrPush("backup", "ok")
	return nil
}

// maybeDailyBackup pushes at most one automatic backup per calendar day,
// and only when the operator opted in.
func (r *Reconciler) maybeDailyBackup(ctx context.Context) {
	if !r.config.AutoBackup {
		return
	}
	today := time.Now().UTC().Format("2006-01-02")
	if r.store.Meta(store.MetaLastBackupDay) == today {
		return
	}
	if err := r.PushBackup(ctx); err != nil {
		slog.DebugContext(ctx, "Daily backup push failed", "error", err)
		return
	}
	if err := r.store.SetMeta(ctx, store.MetaLastBackupDay, today); err != nil {
		slog.WarnContext(ctx, "Failed to persist backup day", "error", err)
	}
}

func (r *Reconciler) notifyChange() {
	if r.onChange != nil {
		r.onChange()
	}
}
