package summary

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/pullsheet/internal/domain"
)

func entry(cat, item string, qty int, restock bool) domain.LedgerEntry {
	return domain.LedgerEntry{Key: domain.ItemKey{Category: cat, Item: item}, Quantity: qty, Restock: restock}
}

func TestBuildPull(t *testing.T) {
	entries := []domain.LedgerEntry{
		entry("Pastries", "Zebra Muffin", 2, false),
		entry("Pastries", "Apple Tart", 0, false),
		entry("Pastries", "Bagel", 3, false),
	}

	assert.Equal(t, []PullLine{{Name: "Bagel", Qty: 3}, {Name: "Zebra Muffin", Qty: 2}}, BuildPull(entries))
}

func TestBuildPullLocaleOrder(t *testing.T) {
	entries := []domain.LedgerEntry{
		entry("Pastries", "éclair", 1, false),
		entry("Pastries", "Danish", 1, false),
		entry("Pastries", "apple Tart", 1, false),
		entry("Pastries", "Fig Bar", 1, false),
	}

	got := BuildPull(entries)
	require.Len(t, got, 4)
	assert.Equal(t, []string{"apple Tart", "Danish", "éclair", "Fig Bar"},
		[]string{got[0].Name, got[1].Name, got[2].Name, got[3].Name})
}

func TestBuildPullTieBreaksOnCategory(t *testing.T) {
	entries := []domain.LedgerEntry{
		entry("Sandwiches", "Special", 5, false),
		entry("Pastries", "Special", 1, false),
	}

	assert.Equal(t, []PullLine{{Name: "Special", Qty: 1}, {Name: "Special", Qty: 5}}, BuildPull(entries))
}

func TestBuildPullDoesNotReorderInput(t *testing.T) {
	entries := []domain.LedgerEntry{
		entry("Pastries", "Zebra Muffin", 2, false),
		entry("Pastries", "Bagel", 3, false),
	}

	BuildPull(entries)
	assert.Equal(t, "Zebra Muffin", entries[0].Key.Item)
}

func TestBuildRestockIgnoresQuantity(t *testing.T) {
	entries := []domain.LedgerEntry{
		entry("Pastries", "Lemon Loaf", 0, true),
		entry("Pastries", "Croissant", 4, false),
		entry("Sandwiches", "Impossible", 2, true),
	}

	assert.Equal(t, []RestockLine{{Name: "Impossible"}, {Name: "Lemon Loaf"}}, BuildRestock(entries))
}

func TestText(t *testing.T) {
	s := Build([]domain.LedgerEntry{
		entry("Pastries", "Croissant", 4, true),
		entry("Pastries", "Bagel", 1, false),
	})

	assert.Equal(t, "Items to Pull\nBagel: 1\nCroissant: 4\n\nItems to Restock\nCroissant", s.Text())
	assert.Equal(t, "Bagel: 1\nCroissant: 4", s.TextFor(VariantPull))
	assert.Equal(t, "Croissant", s.TextFor(VariantRestock))
}

func TestTextEmpty(t *testing.T) {
	s := Build(nil)

	assert.Equal(t, "Items to Pull\n(none)\n\nItems to Restock\n(none)", s.Text())
	assert.Equal(t, "(none)", s.TextFor(VariantPull))
}

func TestSummaryJSON(t *testing.T) {
	data, err := json.Marshal(Build(nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"pulls":[],"restocks":[]}`, string(data))

	data, err = json.Marshal(Build([]domain.LedgerEntry{entry("Pastries", "Bagel", 3, true)}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"pulls":[{"name":"Bagel","qty":3}],"restocks":[{"name":"Bagel"}]}`, string(data))
}

func TestParseVariant(t *testing.T) {
	tests := []struct {
		in      string
		want    Variant
		wantErr bool
	}{
		{"", VariantAll, false},
		{"all", VariantAll, false},
		{"pull", VariantPull, false},
		{"restock", VariantRestock, false},
		{"everything", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseVariant(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
