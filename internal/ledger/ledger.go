package ledger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/vbonduro/pullsheet/internal/domain"
)

// Repository is the subset of store.QuantityStore that the ledger requires.
type Repository interface {
	FetchLedger(ctx context.Context, userID string) ([]domain.QuantityRow, error)
	UpsertLedgerRow(ctx context.Context, userID, category, itemName string, changes domain.Changes, at time.Time) error
	BulkZeroQuantities(ctx context.Context, userID string, at time.Time) error
}

type Options struct {
	// QueueSize bounds the number of upserts waiting for the reconciler.
	// Upserts beyond it are dropped and reported as ErrQueueFull.
	QueueSize int
	// WriteTimeout bounds each remote write.
	WriteTimeout time.Duration
	Logger       *slog.Logger
	Now          func() time.Time
	// OnReconcile is called after every remote write with its outcome, and
	// with ErrQueueFull for every dropped upsert.
	OnReconcile func(op string, err error)
}

// ErrQueueFull is reported to OnReconcile when an upsert is dropped because
// the reconciler is too far behind.
var ErrQueueFull = errors.New("reconcile queue full")

const (
	OpUpsert   = "upsert"
	OpBulkZero = "bulk_zero"
)

// job is one queued remote write. A job with neither changes nor bulk set is
// a barrier used by Flush.
type job struct {
	key     domain.ItemKey
	changes domain.Changes
	bulk    bool
	at      time.Time
	reply   chan error
}

// Ledger holds the quantity and restock state of one actor. Reads never touch
// the remote store; writes are applied in memory first and reconciled by a
// single background goroutine in the order they were made. Neither reads nor
// writes wait on the reconciler.
type Ledger struct {
	actorID string
	repo    Repository
	opts    Options

	mu      sync.RWMutex
	entries map[domain.ItemKey]domain.LedgerEntry

	// qmu guards the pending queue. It is never held across a remote call.
	qmu     sync.Mutex
	pending []job
	upserts int
	closed  bool
	wake    chan struct{}
	done    chan struct{}
}

// Load fetches every persisted row of the actor and starts the reconciler. A
// fetch failure wraps domain.ErrRemoteUnavailable: the ledger is unknown, not
// empty.
func Load(ctx context.Context, repo Repository, actorID string, opts Options) (*Ledger, error) {
	rows, err := repo.FetchLedger(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger: %w: %w", domain.ErrRemoteUnavailable, err)
	}

	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l := &Ledger{
		actorID: actorID,
		repo:    repo,
		opts:    opts,
		entries: make(map[domain.ItemKey]domain.LedgerEntry, len(rows)),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	for _, r := range rows {
		key := domain.ItemKey{Category: r.Category, Item: r.ItemName}
		l.entries[key] = domain.LedgerEntry{
			Key:          key,
			Quantity:     max(0, r.Quantity),
			Restock:      r.Restock,
			LastModified: r.UpdatedAt,
		}
	}

	go l.run()
	return l, nil
}

func (l *Ledger) ActorID() string {
	return l.actorID
}

// Get returns the entry for key, or the zero entry when none exists.
func (l *Ledger) Get(key domain.ItemKey) domain.LedgerEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if e, ok := l.entries[key]; ok {
		return e
	}
	return domain.LedgerEntry{Key: key}
}

// Entries returns a snapshot of every entry ordered by category then item.
func (l *Ledger) Entries() []domain.LedgerEntry {
	l.mu.RLock()
	out := make([]domain.LedgerEntry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, e)
	}
	l.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.LedgerEntry) int {
		return cmp.Or(cmp.Compare(a.Key.Category, b.Key.Category), cmp.Compare(a.Key.Item, b.Key.Item))
	})
	return out
}

// Total is the sum of all quantities.
func (l *Ledger) Total() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	total := 0
	for _, e := range l.entries {
		total += e.Quantity
	}
	return total
}

// Apply runs fn on the current entry for key under the write lock. fn edits
// the entry and returns the fields it changed; those are queued for
// reconciliation with their absolute values. Apply returns the stored entry
// and never waits on the remote store.
func (l *Ledger) Apply(key domain.ItemKey, fn func(e *domain.LedgerEntry) domain.Changes) domain.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = domain.LedgerEntry{Key: key}
	}
	changes := fn(&e)
	if changes.Empty() {
		return e
	}

	e.Key = key
	e.Quantity = max(0, e.Quantity)
	e.LastModified = l.opts.Now()
	l.entries[key] = e

	l.enqueueUpsert(job{key: key, changes: changes, at: e.LastModified})
	return e
}

// Reconcile queues an upsert of changes for key. It does not modify memory
// and never reports a failure to the caller.
func (l *Ledger) Reconcile(key domain.ItemKey, changes domain.Changes) {
	if changes.Empty() {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.enqueueUpsert(job{key: key, changes: changes, at: l.opts.Now()})
}

// enqueueUpsert must be called with mu held so that queue order matches the
// order in which memory was changed. A full queue drops the write; the next
// write of the same key carries the absolute value again.
func (l *Ledger) enqueueUpsert(j job) {
	l.qmu.Lock()
	defer l.qmu.Unlock()

	switch {
	case l.closed:
		l.opts.Logger.Warn("ledger closed, dropping remote write",
			"user_id", l.actorID, "item", j.key.String())
		return
	case l.upserts >= l.opts.QueueSize:
		l.opts.Logger.Error("failed to reconcile ledger",
			"op", OpUpsert,
			"user_id", l.actorID,
			"item", j.key.String(),
			"error", fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, ErrQueueFull))
		if l.opts.OnReconcile != nil {
			l.opts.OnReconcile(OpUpsert, ErrQueueFull)
		}
		return
	}
	l.upserts++
	l.pushLocked(j)
}

// enqueueReply queues a job that answers on its reply channel. It reports
// false when the ledger is closed.
func (l *Ledger) enqueueReply(j job) bool {
	l.qmu.Lock()
	defer l.qmu.Unlock()

	if l.closed {
		return false
	}
	l.pushLocked(j)
	return true
}

// pushLocked must be called with qmu held.
func (l *Ledger) pushLocked(j job) {
	l.pending = append(l.pending, j)
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// ClearAll zeroes every quantity in memory, then issues one bulk remote update
// for the actor. Restock flags are untouched. The in-memory clear stands even
// when the remote update fails; the failure is returned for display only.
func (l *Ledger) ClearAll(ctx context.Context) error {
	reply := make(chan error, 1)

	l.mu.Lock()
	now := l.opts.Now()
	for k, e := range l.entries {
		if e.Quantity == 0 {
			continue
		}
		e.Quantity = 0
		e.LastModified = now
		l.entries[k] = e
	}
	queued := l.enqueueReply(job{bulk: true, at: now, reply: reply})
	l.mu.Unlock()

	if !queued {
		return fmt.Errorf("%w: failed to clear quantities: ledger closed", domain.ErrPersistenceFailed)
	}

	select {
	case err := <-reply:
		if err != nil {
			return fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush blocks until every write queued before the call has been attempted.
func (l *Ledger) Flush(ctx context.Context) error {
	reply := make(chan error, 1)
	l.mu.Lock()
	queued := l.enqueueReply(job{reply: reply})
	l.mu.Unlock()
	if !queued {
		return l.Wait(ctx)
	}

	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting writes. The reconciler finishes the queued writes in
// the background and then exits; use Wait to block until it has.
func (l *Ledger) Close() {
	l.qmu.Lock()
	defer l.qmu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Wait blocks until the reconciler has drained the queue after Close.
func (l *Ledger) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Ledger) run() {
	defer close(l.done)

	for {
		j, ok := l.next()
		if !ok {
			return
		}
		switch {
		case j.bulk:
			err := l.write(OpBulkZero, func(ctx context.Context) error {
				return l.repo.BulkZeroQuantities(ctx, l.actorID, j.at)
			})
			j.reply <- err
		case !j.changes.Empty():
			// Failures are logged and counted only; memory is never rolled back.
			_ = l.write(OpUpsert, func(ctx context.Context) error {
				return l.repo.UpsertLedgerRow(ctx, l.actorID, j.key.Category, j.key.Item, j.changes, j.at)
			})
		default:
			j.reply <- nil
		}
	}
}

// next pops the oldest queued job, sleeping while the queue is empty. It
// reports false once the ledger is closed and drained.
func (l *Ledger) next() (job, bool) {
	for {
		l.qmu.Lock()
		if len(l.pending) > 0 {
			j := l.pending[0]
			l.pending[0] = job{}
			l.pending = l.pending[1:]
			if !j.bulk && j.reply == nil {
				l.upserts--
			}
			l.qmu.Unlock()
			return j, true
		}
		closed := l.closed
		l.qmu.Unlock()

		if closed {
			return job{}, false
		}
		<-l.wake
	}
}

func (l *Ledger) write(op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.opts.WriteTimeout)
	defer cancel()

	err := fn(ctx)
	if err != nil {
		l.opts.Logger.Error("failed to reconcile ledger",
			"op", op,
			"user_id", l.actorID,
			"error", fmt.Errorf("%w: %w", domain.ErrPersistenceFailed, err))
	}
	if l.opts.OnReconcile != nil {
		l.opts.OnReconcile(op, err)
	}
	return err
}
