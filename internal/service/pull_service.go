package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vbonduro/pullsheet/internal/catalog"
	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/filter"
	"github.com/vbonduro/pullsheet/internal/gesture"
	"github.com/vbonduro/pullsheet/internal/ledger"
	"github.com/vbonduro/pullsheet/internal/mutation"
	"github.com/vbonduro/pullsheet/internal/prefs"
	"github.com/vbonduro/pullsheet/internal/summary"
)

// quantityRepository is the subset of store.QuantityStore that PullService requires.
type quantityRepository interface {
	FetchLedger(ctx context.Context, userID string) ([]domain.QuantityRow, error)
	UpsertLedgerRow(ctx context.Context, userID, category, itemName string, changes domain.Changes, at time.Time) error
	BulkZeroQuantities(ctx context.Context, userID string, at time.Time) error
}

// auditRecorder is the subset of audit.Service that PullService requires.
type auditRecorder interface {
	Record(ctx context.Context, actor domain.Actor, action string, payload any) error
}

type PullConfig struct {
	Gesture        gesture.Config
	ReconcileQueue int
}

// ItemsView is what the pull screen renders.
type ItemsView struct {
	Filter filter.State         `json:"filter"`
	Items  []filter.VisibleItem `json:"items"`
	Total  int                  `json:"total"`
}

// PullService keeps one workspace per signed-in actor: their ledger, the
// mutation engine writing to it, and any press-and-hold gestures in flight.
type PullService struct {
	quantities quantityRepository
	prefs      prefs.Store
	audit      auditRecorder
	catalog    *catalog.Catalog
	cfg        PullConfig
	observer   Observer
	logger     *slog.Logger

	mu         sync.Mutex
	workspaces map[string]*workspace
	// draining holds ledgers of closed workspaces whose queued writes have
	// not yet reached the remote store.
	draining map[string]*ledger.Ledger
}

// drainTimeout bounds how long Close waits for queued writes on shutdown.
const drainTimeout = 10 * time.Second

func NewPullService(
	quantities quantityRepository,
	prefsStore prefs.Store,
	audit auditRecorder,
	cat *catalog.Catalog,
	cfg PullConfig,
	observer Observer,
	logger *slog.Logger,
) *PullService {
	if observer == nil {
		observer = nopObserver{}
	}
	return &PullService{
		quantities: quantities,
		prefs:      prefsStore,
		audit:      audit,
		catalog:    cat,
		cfg:        cfg,
		observer:   observer,
		logger:     logger,
		workspaces: make(map[string]*workspace),
		draining:   make(map[string]*ledger.Ledger),
	}
}

func (s *PullService) Catalog() *catalog.Catalog {
	return s.catalog
}

// workspace returns the actor's workspace, loading the ledger on first use.
// A failed load is not cached, so the next call retries.
func (s *PullService) workspace(ctx context.Context, actor domain.Actor) (*workspace, error) {
	s.mu.Lock()
	ws, ok := s.workspaces[actor.ID]
	s.mu.Unlock()
	if ok {
		return ws, nil
	}
	if err := s.awaitDrain(ctx, actor.ID); err != nil {
		return nil, err
	}

	l, err := ledger.Load(ctx, s.quantities, actor.ID, ledger.Options{
		QueueSize:   s.cfg.ReconcileQueue,
		Logger:      s.logger,
		OnReconcile: s.observer.ObserveReconcile,
	})
	if err != nil {
		return nil, err
	}
	fresh := newWorkspace(actor, l, mutation.New(l, s.catalog, s.logger), s.cfg.Gesture, s.observer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.workspaces[actor.ID]; ok {
		// Another request loaded it first.
		fresh.close()
		return existing, nil
	}
	s.workspaces[actor.ID] = fresh
	s.observer.WorkspaceOpened()
	s.logger.Info("workspace opened", "user_id", actor.ID, "entries", len(l.Entries()))
	return fresh, nil
}

// awaitDrain waits for the writes of a previously closed workspace so that a
// fresh load sees them.
func (s *PullService) awaitDrain(ctx context.Context, userID string) error {
	s.mu.Lock()
	old, ok := s.draining[userID]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	if err := old.Wait(ctx); err != nil {
		return fmt.Errorf("failed to load ledger: %w: %w", domain.ErrRemoteUnavailable, err)
	}
	return nil
}

// CloseWorkspace stops any gestures of userID and hands their pending writes
// to the background reconciler. It does not wait for the remote store.
func (s *PullService) CloseWorkspace(userID string) {
	s.mu.Lock()
	ws, ok := s.workspaces[userID]
	if ok {
		delete(s.workspaces, userID)
		s.draining[userID] = ws.ledger
	}
	s.mu.Unlock()

	if !ok {
		return
	}
	ws.close()
	go s.forget(userID, ws.ledger)
	s.observer.WorkspaceClosed()
	s.logger.Info("workspace closed", "user_id", userID)
}

func (s *PullService) forget(userID string, l *ledger.Ledger) {
	_ = l.Wait(context.Background())
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining[userID] == l {
		delete(s.draining, userID)
	}
}

// Close tears down every workspace and waits, up to drainTimeout, for their
// queued writes.
func (s *PullService) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.workspaces))
	for id := range s.workspaces {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.CloseWorkspace(id)
	}

	s.mu.Lock()
	pending := make([]*ledger.Ledger, 0, len(s.draining))
	for _, l := range s.draining {
		pending = append(pending, l)
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for _, l := range pending {
		if err := l.Wait(ctx); err != nil {
			s.logger.Error("failed to drain ledger", "user_id", l.ActorID(), "error", err)
			return
		}
	}
}

// Flush waits for the actor's queued writes to reach the remote store.
func (s *PullService) Flush(ctx context.Context, actor domain.Actor) error {
	ws, err := s.workspace(ctx, actor)
	if err != nil {
		return err
	}
	return ws.ledger.Flush(ctx)
}

func (s *PullService) Items(ctx context.Context, actor domain.Actor) (*ItemsView, error) {
	ws, err := s.workspace(ctx, actor)
	if err != nil {
		return nil, err
	}
	st := filter.Restore(ctx, s.prefs, actor.ID, s.catalog, s.logger)
	return &ItemsView{
		Filter: st,
		Items:  filter.Visible(s.catalog, ws.ledger, st),
		Total:  ws.ledger.Total(),
	}, nil
}

func (s *PullService) Filters(ctx context.Context, actor domain.Actor) filter.State {
	return filter.Restore(ctx, s.prefs, actor.ID, s.catalog, s.logger)
}

// SaveFilters stores st for the actor. A category the catalog does not have
// is rejected.
func (s *PullService) SaveFilters(ctx context.Context, actor domain.Actor, st filter.State) (filter.State, error) {
	st = st.Normalize()
	if st.Category != catalog.AllCategories && !s.catalog.HasCategory(st.Category) {
		return st, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, st.Category)
	}
	return filter.Save(ctx, s.prefs, actor.ID, st)
}

// Press starts a press-and-hold on key. step is +1 or -1.
func (s *PullService) Press(ctx context.Context, actor domain.Actor, key domain.ItemKey, step int) (domain.LedgerEntry, error) {
	ws, err := s.itemWorkspace(ctx, actor, key)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	if ws.press(key, step) {
		s.observer.ObserveGesture("started")
	} else {
		s.observer.ObserveGesture("ignored")
	}
	return ws.ledger.Get(key), nil
}

// Release ends the press-and-hold on key. Releasing twice is harmless.
func (s *PullService) Release(ctx context.Context, actor domain.Actor, key domain.ItemKey, step int) (domain.LedgerEntry, error) {
	ws, err := s.itemWorkspace(ctx, actor, key)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	ws.release(key, step)
	return ws.ledger.Get(key), nil
}

func (s *PullService) ApplyDelta(ctx context.Context, actor domain.Actor, key domain.ItemKey, step int) (domain.LedgerEntry, error) {
	ws, err := s.itemWorkspace(ctx, actor, key)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	s.observer.ObserveMutation("delta")
	return ws.engine.ApplyDelta(key, step), nil
}

func (s *PullService) SetQuantity(ctx context.Context, actor domain.Actor, key domain.ItemKey, value float64) (domain.LedgerEntry, error) {
	ws, err := s.itemWorkspace(ctx, actor, key)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	s.observer.ObserveMutation("set")
	return ws.engine.SetQuantity(key, value), nil
}

func (s *PullService) SetQuantityText(ctx context.Context, actor domain.Actor, key domain.ItemKey, raw string) (domain.LedgerEntry, error) {
	ws, err := s.itemWorkspace(ctx, actor, key)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	s.observer.ObserveMutation("set")
	return ws.engine.SetQuantityText(key, raw), nil
}

func (s *PullService) SetRestock(ctx context.Context, actor domain.Actor, key domain.ItemKey, flag bool) (domain.LedgerEntry, error) {
	ws, err := s.itemWorkspace(ctx, actor, key)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	s.observer.ObserveMutation("restock")
	return ws.engine.SetRestock(key, flag), nil
}

// ClearAll zeroes every quantity of the actor. The local clear always
// happens; a returned error only means the remote copy may be stale.
func (s *PullService) ClearAll(ctx context.Context, actor domain.Actor) error {
	ws, err := s.workspace(ctx, actor)
	if err != nil {
		return err
	}
	ws.releaseAll()
	s.observer.ObserveMutation("clear")
	return ws.ledger.ClearAll(ctx)
}

// Summary builds the pull and restock lists and records that they were sent.
func (s *PullService) Summary(ctx context.Context, actor domain.Actor) (summary.Summary, error) {
	ws, err := s.workspace(ctx, actor)
	if err != nil {
		return summary.Summary{}, err
	}
	sum := summary.Build(ws.ledger.Entries())
	if s.audit != nil {
		if err := s.audit.Record(ctx, actor, domain.ActionSendSummary, sum); err != nil {
			s.logger.Warn("failed to audit summary", "user_id", actor.ID, "error", err)
		}
	}
	return sum, nil
}

// SummaryText renders the clipboard text without auditing.
func (s *PullService) SummaryText(ctx context.Context, actor domain.Actor, v summary.Variant) (string, error) {
	ws, err := s.workspace(ctx, actor)
	if err != nil {
		return "", err
	}
	return summary.Build(ws.ledger.Entries()).TextFor(v), nil
}

func (s *PullService) itemWorkspace(ctx context.Context, actor domain.Actor, key domain.ItemKey) (*workspace, error) {
	if !s.catalog.Contains(key) {
		return nil, fmt.Errorf("item %s: %w", key, domain.ErrNotFound)
	}
	return s.workspace(ctx, actor)
}
