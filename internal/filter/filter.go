package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vbonduro/pullsheet/internal/catalog"
	"github.com/vbonduro/pullsheet/internal/domain"
	"github.com/vbonduro/pullsheet/internal/prefs"
)

// PrefsKey is the stable slot the filter is stored under.
const PrefsKey = "pull_filters_v1"

type State struct {
	Category    string `json:"category"`
	SearchText  string `json:"search_text"`
	OnlyNonZero bool   `json:"only_non_zero"`
}

func Defaults() State {
	return State{Category: catalog.AllCategories}
}

// Normalize trims and lower-cases the search text and fills an empty category.
func (s State) Normalize() State {
	s.SearchText = strings.ToLower(strings.TrimSpace(s.SearchText))
	if s.Category == "" {
		s.Category = catalog.AllCategories
	}
	return s
}

// LedgerReader is the read side of the ledger.
type LedgerReader interface {
	Get(key domain.ItemKey) domain.LedgerEntry
}

type VisibleItem struct {
	Category string             `json:"category"`
	Item     catalog.Item       `json:"item"`
	Entry    domain.LedgerEntry `json:"entry"`
}

// Visible returns the catalog items matching st in catalog declaration order.
func Visible(cat *catalog.Catalog, ledger LedgerReader, st State) []VisibleItem {
	search := strings.ToLower(st.SearchText)

	var out []VisibleItem
	for _, c := range cat.Categories() {
		if st.Category != catalog.AllCategories && st.Category != c.Name {
			continue
		}
		for _, it := range c.Items {
			if search != "" && !strings.Contains(strings.ToLower(it.Name), search) {
				continue
			}
			entry := ledger.Get(domain.ItemKey{Category: c.Name, Item: it.Name})
			if st.OnlyNonZero && entry.Quantity <= 0 {
				continue
			}
			out = append(out, VisibleItem{Category: c.Name, Item: it, Entry: entry})
		}
	}
	return out
}

// Restore reads the saved filter for scope. Anything missing, unreadable, or
// naming a category the catalog no longer has yields Defaults. A saved filter
// that cannot be used is removed from the store.
func Restore(ctx context.Context, store prefs.Store, scope string, cat *catalog.Catalog, logger *slog.Logger) State {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := store.Get(ctx, scope, PrefsKey)
	if err != nil {
		logger.Warn("failed to read saved filter, using defaults", "scope", scope, "error", err)
		return Defaults()
	}
	if data == nil {
		return Defaults()
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		logger.Warn("discarding corrupt saved filter", "scope", scope, "error", err)
		discard(ctx, store, scope, logger)
		return Defaults()
	}
	st = st.Normalize()
	if st.Category != catalog.AllCategories && !cat.HasCategory(st.Category) {
		logger.Info("saved filter names an unknown category, using defaults", "scope", scope, "category", st.Category)
		discard(ctx, store, scope, logger)
		return Defaults()
	}
	return st
}

func discard(ctx context.Context, store prefs.Store, scope string, logger *slog.Logger) {
	if err := store.Delete(ctx, scope, PrefsKey); err != nil {
		logger.Warn("failed to remove saved filter", "scope", scope, "error", err)
	}
}

// Save persists the whole filter object and returns what was stored.
func Save(ctx context.Context, store prefs.Store, scope string, st State) (State, error) {
	st = st.Normalize()

	data, err := json.Marshal(st)
	if err != nil {
		return st, fmt.Errorf("failed to encode filter: %w", err)
	}
	if err := store.Put(ctx, scope, PrefsKey, data); err != nil {
		return st, fmt.Errorf("failed to save filter: %w", err)
	}
	return st, nil
}
