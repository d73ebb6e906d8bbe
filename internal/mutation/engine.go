package mutation

import (
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/vbonduro/pullsheet/internal/catalog"
	"github.com/vbonduro/pullsheet/internal/domain"
)

// MaxQuantity is the largest quantity that fits the remote integer column.
const MaxQuantity = math.MaxInt32

// Ledger is the subset of ledger.Ledger that the engine requires.
type Ledger interface {
	Get(key domain.ItemKey) domain.LedgerEntry
	Apply(key domain.ItemKey, fn func(e *domain.LedgerEntry) domain.Changes) domain.LedgerEntry
}

// Engine is the only writer of quantity and restock values. Every entry point
// normalizes its input instead of rejecting it.
type Engine struct {
	ledger  Ledger
	catalog *catalog.Catalog
	logger  *slog.Logger
}

func New(l Ledger, cat *catalog.Catalog, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{ledger: l, catalog: cat, logger: logger}
}

// ApplyDelta moves the quantity by the sign of step, never below zero.
func (e *Engine) ApplyDelta(key domain.ItemKey, step int) domain.LedgerEntry {
	if !e.known(key) {
		return domain.LedgerEntry{Key: key}
	}
	switch {
	case step > 0:
		step = 1
	case step < 0:
		step = -1
	default:
		return e.ledger.Get(key)
	}

	return e.ledger.Apply(key, func(entry *domain.LedgerEntry) domain.Changes {
		next := min(MaxQuantity, max(0, entry.Quantity+step))
		if next == entry.Quantity {
			return domain.Changes{}
		}
		entry.Quantity = next
		return domain.QuantityChange(next)
	})
}

// SetQuantity stores max(0, floor(value)). NaN and infinities are treated as
// zero.
func (e *Engine) SetQuantity(key domain.ItemKey, value float64) domain.LedgerEntry {
	if !e.known(key) {
		return domain.LedgerEntry{Key: key}
	}
	q := normalize(value)

	return e.ledger.Apply(key, func(entry *domain.LedgerEntry) domain.Changes {
		entry.Quantity = q
		return domain.QuantityChange(q)
	})
}

// SetQuantityText parses typed input. Anything that is not a number is zero.
func (e *Engine) SetQuantityText(key domain.ItemKey, raw string) domain.LedgerEntry {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		v = 0
	}
	return e.SetQuantity(key, v)
}

func (e *Engine) SetRestock(key domain.ItemKey, flag bool) domain.LedgerEntry {
	if !e.known(key) {
		return domain.LedgerEntry{Key: key}
	}

	return e.ledger.Apply(key, func(entry *domain.LedgerEntry) domain.Changes {
		entry.Restock = flag
		return domain.RestockChange(flag)
	})
}

func (e *Engine) known(key domain.ItemKey) bool {
	if e.catalog == nil || e.catalog.Contains(key) {
		return true
	}
	e.logger.Debug("ignoring mutation of unknown item", "item", key.String())
	return false
}

func normalize(v float64) int {
	switch {
	case math.IsNaN(v), math.IsInf(v, 0), v <= 0:
		return 0
	case v >= MaxQuantity:
		return MaxQuantity
	default:
		return int(math.Floor(v))
	}
}
