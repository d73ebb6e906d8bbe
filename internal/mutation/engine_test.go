package mutation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/pullsheet/internal/catalog"
	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/logging"
)

// memLedger applies changes in memory and records what would be reconciled.
type memLedger struct {
	entries map[domain.ItemKey]domain.LedgerEntry
	queued  []domain.Changes
}

func newMemLedger() *memLedger {
	return &memLedger{entries: map[domain.ItemKey]domain.LedgerEntry{}}
}

func (m *memLedger) Get(key domain.ItemKey) domain.LedgerEntry {
	if e, ok := m.entries[key]; ok {
		return e
	}
	return domain.LedgerEntry{Key: key}
}

func (m *memLedger) Apply(key domain.ItemKey, fn func(e *domain.LedgerEntry) domain.Changes) domain.LedgerEntry {
	e := m.Get(key)
	changes := fn(&e)
	if changes.Empty() {
		return e
	}
	m.entries[key] = e
	m.queued = append(m.queued, changes)
	return e
}

var croissant = domain.ItemKey{Category: "Pastries", Item: "Croissant"}

func newTestEngine() (*Engine, *memLedger) {
	l := newMemLedger()
	return New(l, catalog.Default(), logging.Discard()), l
}

func TestApplyDelta(t *testing.T) {
	e, l := newTestEngine()

	e.ApplyDelta(croissant, +1)
	e.ApplyDelta(croissant, +1)
	got := e.ApplyDelta(croissant, -1)

	assert.Equal(t, 1, got.Quantity)
	require.Len(t, l.queued, 3)
	assert.Equal(t, 1, *l.queued[2].Quantity)
}

func TestApplyDeltaClampsAtZero(t *testing.T) {
	e, l := newTestEngine()

	got := e.ApplyDelta(croissant, -1)
	assert.Equal(t, 0, got.Quantity)
	assert.Empty(t, l.queued, "decrement at zero changes nothing")

	e.ApplyDelta(croissant, +1)
	e.ApplyDelta(croissant, -1)
	got = e.ApplyDelta(croissant, -1)
	assert.Equal(t, 0, got.Quantity)
}

func TestApplyDeltaNormalizesStep(t *testing.T) {
	e, _ := newTestEngine()

	assert.Equal(t, 1, e.ApplyDelta(croissant, 10).Quantity)
	assert.Equal(t, 1, e.ApplyDelta(croissant, 0).Quantity)
	assert.Equal(t, 0, e.ApplyDelta(croissant, -7).Quantity)
}

func TestSetQuantity(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  int
	}{
		{"whole", 4, 4},
		{"fraction floors", 4.9, 4},
		{"negative", -3, 0},
		{"negative fraction", -0.5, 0},
		{"nan", math.NaN(), 0},
		{"positive infinity", math.Inf(1), 0},
		{"negative infinity", math.Inf(-1), 0},
		{"huge clamps", 1e12, MaxQuantity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newTestEngine()
			assert.Equal(t, tt.want, e.SetQuantity(croissant, tt.value).Quantity)
		})
	}
}

func TestSetQuantityText(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"12", 12},
		{" 7 ", 7},
		{"2.5", 2},
		{"", 0},
		{"abc", 0},
		{"-4", 0},
		{"1e2", 100},
		{"inf", 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			e, _ := newTestEngine()
			e.SetQuantity(croissant, 9)
			assert.Equal(t, tt.want, e.SetQuantityText(croissant, tt.raw).Quantity)
		})
	}
}

func TestSetRestock(t *testing.T) {
	e, l := newTestEngine()

	got := e.SetRestock(croissant, true)
	assert.True(t, got.Restock)
	assert.Equal(t, 0, got.Quantity)
	require.Len(t, l.queued, 1)
	assert.Nil(t, l.queued[0].Quantity)
	assert.True(t, *l.queued[0].Restock)

	assert.False(t, e.SetRestock(croissant, false).Restock)
}

func TestSetRestockKeepsQuantity(t *testing.T) {
	e, _ := newTestEngine()

	e.SetQuantity(croissant, 3)
	got := e.SetRestock(croissant, true)
	assert.Equal(t, 3, got.Quantity)
}

func TestUnknownItemIgnored(t *testing.T) {
	e, l := newTestEngine()
	ghost := domain.ItemKey{Category: "Pastries", Item: "Ghost Pie"}

	assert.Equal(t, 0, e.ApplyDelta(ghost, 1).Quantity)
	assert.Equal(t, 0, e.SetQuantity(ghost, 5).Quantity)
	assert.False(t, e.SetRestock(ghost, true).Restock)
	assert.Empty(t, l.entries)
	assert.Empty(t, l.queued)
}
