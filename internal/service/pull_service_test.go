package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/pullsheet/internal/catalog"
	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/filter"
	"github.com/vbonduro/pullsheet/internal/logging"
	"github.com/vbonduro/pullsheet/internal/prefs/local"
	"github.com/vbonduro/pullsheet/internal/summary"
)

var (
	baker     = domain.Actor{ID: "user-1", Email: "baker@example.com", DisplayName: "Baker"}
	croissant = domain.ItemKey{Category: "Pastries", Item: "Croissant"}
	lemonLoaf = domain.ItemKey{Category: "Pastries", Item: "Lemon Loaf"}
	bagelSand = domain.ItemKey{Category: "Sandwiches", Item: "Bacon Gouda"}
)

func TestPullServiceMutationsPersist(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.pull.SetQuantity(ctx, baker, croissant, 4.7)
	require.NoError(t, err)
	got, err := e.pull.ApplyDelta(ctx, baker, croissant, +1)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Quantity)
	_, err = e.pull.SetRestock(ctx, baker, lemonLoaf, true)
	require.NoError(t, err)
	require.NoError(t, e.pull.Flush(ctx, baker))

	rows, err := e.quantities.FetchLedger(ctx, baker.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Croissant", rows[0].ItemName)
	assert.Equal(t, 5, rows[0].Quantity)
	assert.Equal(t, "Lemon Loaf", rows[1].ItemName)
	assert.True(t, rows[1].Restock)
	assert.Zero(t, rows[1].Quantity)
}

func TestPullServiceRehydratesAfterSignOut(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.pull.SetQuantityText(ctx, baker, croissant, "3")
	require.NoError(t, err)
	e.pull.CloseWorkspace(baker.ID)

	view, err := e.pull.Items(ctx, baker)
	require.NoError(t, err)
	assert.Equal(t, 3, view.Total)
	assert.Equal(t, 3, view.Items[0].Entry.Quantity)
}

func TestPullServiceUnknownItem(t *testing.T) {
	e := newEnv(t)
	ghost := domain.ItemKey{Category: "Pastries", Item: "Ghost Pie"}

	_, err := e.pull.ApplyDelta(context.Background(), baker, ghost, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.pull.Press(context.Background(), baker, ghost, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPullServiceItemsUsesSavedFilter(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.pull.SetQuantity(ctx, baker, bagelSand, 2)
	require.NoError(t, err)
	_, err = e.pull.SetQuantity(ctx, baker, croissant, 1)
	require.NoError(t, err)

	saved, err := e.pull.SaveFilters(ctx, baker, filter.State{Category: "Sandwiches", OnlyNonZero: true})
	require.NoError(t, err)
	assert.Equal(t, saved, e.pull.Filters(ctx, baker))

	view, err := e.pull.Items(ctx, baker)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Bacon Gouda", view.Items[0].Item.Name)
	assert.Equal(t, 3, view.Total, "total ignores the filter")

	other := domain.Actor{ID: "user-2", Email: "other@example.com"}
	assert.Equal(t, filter.Defaults(), e.pull.Filters(ctx, other))
}

func TestPullServiceSaveFiltersRejectsUnknownCategory(t *testing.T) {
	e := newEnv(t)

	_, err := e.pull.SaveFilters(context.Background(), baker, filter.State{Category: "Drinks"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPullServicePressAndHold(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	got, err := e.pull.Press(ctx, baker, croissant, +1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)

	e.clock.Advance(530 * time.Millisecond)
	got, err = e.pull.Release(ctx, baker, croissant, +1)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Quantity)

	e.clock.Advance(5 * time.Second)
	_, err = e.pull.Release(ctx, baker, croissant, +1)
	require.NoError(t, err)

	require.NoError(t, e.pull.Flush(ctx, baker))
	rows, err := e.quantities.FetchLedger(ctx, baker.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].Quantity)
}

func TestPullServiceDecrementHoldClampsAtZero(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.pull.SetQuantity(ctx, baker, croissant, 2)
	require.NoError(t, err)

	_, err = e.pull.Press(ctx, baker, croissant, -1)
	require.NoError(t, err)
	e.clock.Advance(2 * time.Second)
	got, err := e.pull.Release(ctx, baker, croissant, -1)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}

func TestPullServiceOverlappingPress(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.pull.Press(ctx, baker, croissant, +1)
	require.NoError(t, err)
	got, err := e.pull.Press(ctx, baker, croissant, +1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity, "second press while held is ignored")

	_, err = e.pull.Release(ctx, baker, croissant, +1)
	require.NoError(t, err)
}

func TestPullServiceClearAll(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.pull.SetQuantity(ctx, baker, croissant, 4)
	require.NoError(t, err)
	_, err = e.pull.SetRestock(ctx, baker, croissant, true)
	require.NoError(t, err)
	_, err = e.pull.Press(ctx, baker, lemonLoaf, +1)
	require.NoError(t, err)

	require.NoError(t, e.pull.ClearAll(ctx, baker))
	e.clock.Advance(time.Second)

	view, err := e.pull.Items(ctx, baker)
	require.NoError(t, err)
	assert.Zero(t, view.Total, "clear also stops held gestures")

	rows, err := e.quantities.FetchLedger(ctx, baker.ID)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Zero(t, r.Quantity, r.ItemName)
		if r.ItemName == "Croissant" {
			assert.True(t, r.Restock)
		}
	}
}

func TestPullServiceSummaryAudits(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.pull.SetQuantity(ctx, baker, croissant, 2)
	require.NoError(t, err)
	_, err = e.pull.SetRestock(ctx, baker, lemonLoaf, true)
	require.NoError(t, err)

	sum, err := e.pull.Summary(ctx, baker)
	require.NoError(t, err)
	assert.Equal(t, []summary.PullLine{{Name: "Croissant", Qty: 2}}, sum.Pulls)
	assert.Equal(t, []summary.RestockLine{{Name: "Lemon Loaf"}}, sum.Restocks)

	logs, err := e.interactions.List(ctx, baker.Email, domain.ActionSendSummary, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	var payload summary.Summary
	require.NoError(t, json.Unmarshal(logs[0].Payload, &payload))
	assert.Equal(t, sum, payload)
}

func TestPullServiceSummaryText(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.pull.SetQuantity(ctx, baker, croissant, 2)
	require.NoError(t, err)

	text, err := e.pull.SummaryText(ctx, baker, summary.VariantAll)
	require.NoError(t, err)
	assert.Equal(t, "Items to Pull\nCroissant: 2\n\nItems to Restock\n(none)", text)

	logs, err := e.interactions.List(ctx, "", "", 0)
	require.NoError(t, err)
	assert.Empty(t, logs, "copying text is not audited")
}

type failingQuantities struct{ quantityRepository }

func (failingQuantities) FetchLedger(context.Context, string) ([]domain.QuantityRow, error) {
	return nil, errors.New("connection refused")
}

func TestPullServiceLoadFailure(t *testing.T) {
	prefsStore, err := local.NewLocalPrefsStore(t.TempDir())
	require.NoError(t, err)
	s := NewPullService(failingQuantities{}, prefsStore, nil, catalog.Default(), PullConfig{}, nil, logging.Discard())

	_, err = s.Items(context.Background(), baker)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
	_, err = s.ApplyDelta(context.Background(), baker, croissant, 1)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable)
}

// stalledQuantities holds every write until release is closed.
type stalledQuantities struct {
	quantityRepository
	release chan struct{}
}

func (q stalledQuantities) UpsertLedgerRow(ctx context.Context, userID, category, itemName string, changes domain.Changes, at time.Time) error {
	select {
	case <-q.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return q.quantityRepository.UpsertLedgerRow(ctx, userID, category, itemName, changes, at)
}

func TestPullServiceSignOutDoesNotWaitForRemote(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	stalled := stalledQuantities{quantityRepository: e.quantities, release: make(chan struct{})}
	prefsStore, err := local.NewLocalPrefsStore(t.TempDir())
	require.NoError(t, err)
	s := NewPullService(stalled, prefsStore, e.audit, catalog.Default(), PullConfig{ReconcileQueue: 4}, nil, logging.Discard())
	t.Cleanup(s.Close)

	_, err = s.SetQuantity(ctx, baker, croissant, 2)
	require.NoError(t, err)

	closed := make(chan struct{})
	go func() {
		s.CloseWorkspace(baker.ID)
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("sign-out waited on the remote store")
	}

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = s.Items(short, baker)
	assert.ErrorIs(t, err, domain.ErrRemoteUnavailable, "reload waits for the previous writes")

	close(stalled.release)
	view, err := s.Items(ctx, baker)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Total)
}
