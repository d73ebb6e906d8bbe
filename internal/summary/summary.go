package summary

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/vbonduro/pullsheet/internal/domain"
)

const (
	pullHeading    = "Items to Pull"
	restockHeading = "Items to Restock"
	emptyList      = "(none)"
)

type PullLine struct {
	Name string `json:"name"`
	Qty  int    `json:"qty"`
}

type RestockLine struct {
	Name string `json:"name"`
}

// Summary is shown on screen, copied as text, and attached to the
// send_summary audit entry.
type Summary struct {
	Pulls    []PullLine    `json:"pulls"`
	Restocks []RestockLine `json:"restocks"`
}

func Build(entries []domain.LedgerEntry) Summary {
	return Summary{Pulls: BuildPull(entries), Restocks: BuildRestock(entries)}
}

// BuildPull lists every entry with a positive quantity, sorted by name.
func BuildPull(entries []domain.LedgerEntry) []PullLine {
	sorted := sortByName(entries)
	out := make([]PullLine, 0, len(sorted))
	for _, e := range sorted {
		if e.Quantity > 0 {
			out = append(out, PullLine{Name: e.Key.Item, Qty: e.Quantity})
		}
	}
	return out
}

// BuildRestock lists every entry flagged for restock regardless of quantity.
func BuildRestock(entries []domain.LedgerEntry) []RestockLine {
	sorted := sortByName(entries)
	out := make([]RestockLine, 0, len(sorted))
	for _, e := range sorted {
		if e.Restock {
			out = append(out, RestockLine{Name: e.Key.Item})
		}
	}
	return out
}

// sortByName orders a copy of entries by item name using English collation.
// Items with the same name in different categories are ordered by category.
func sortByName(entries []domain.LedgerEntry) []domain.LedgerEntry {
	// A Collator keeps scratch buffers and is not safe for concurrent use.
	c := collate.New(language.English)

	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, func(a, b domain.LedgerEntry) int {
		return cmp.Or(
			c.CompareString(a.Key.Item, b.Key.Item),
			c.CompareString(a.Key.Category, b.Key.Category),
		)
	})
	return sorted
}

func PullText(lines []PullLine) string {
	if len(lines) == 0 {
		return emptyList
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, fmt.Sprintf("%s: %d", l.Name, l.Qty))
	}
	return strings.Join(parts, "\n")
}

func RestockText(lines []RestockLine) string {
	if len(lines) == 0 {
		return emptyList
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Name)
	}
	return strings.Join(parts, "\n")
}

// Text renders both lists in the clipboard format.
func (s Summary) Text() string {
	return pullHeading + "\n" + PullText(s.Pulls) + "\n\n" + restockHeading + "\n" + RestockText(s.Restocks)
}

// Variant selects which part of the summary to render as text.
type Variant string

const (
	VariantAll     Variant = "all"
	VariantPull    Variant = "pull"
	VariantRestock Variant = "restock"
)

func ParseVariant(s string) (Variant, error) {
	switch Variant(s) {
	case "", VariantAll:
		return VariantAll, nil
	case VariantPull, VariantRestock:
		return Variant(s), nil
	default:
		return "", fmt.Errorf("unknown summary variant %q", s)
	}
}

func (s Summary) TextFor(v Variant) string {
	switch v {
	case VariantPull:
		return PullText(s.Pulls)
	case VariantRestock:
		return RestockText(s.Restocks)
	default:
		return s.Text()
	}
}
