package game

import (
	"fmt"
	"sort"
	"strings"
)

type CatalogEntry struct {
	Name    string   `json:"name"`
	Slot    SlotKind `json:"slot"`
	Price   int64    `json:"price"`
	Effects Effects  `json:"effects,omitempty"`
}

// Catalog is the shop's reference data keyed by item name. Read-only once published.
type Catalog map[string]CatalogEntry

func (c Catalog) Lookup(name string) (CatalogEntry, bool) {
	e, ok := c[name]
	return e, ok
}

// SlotOf resolves an item's slot, preferring the item's own field.
func (c Catalog) SlotOf(it Item) (SlotKind, bool) {
	if it.Slot.Valid() {
		return it.Slot, true
	}
	e, ok := c[it.Name]
	if !ok || !e.Slot.Valid() {
		return "", false
	}
	return e.Slot, true
}

// Sorted returns entries ordered by slot then price then name.
func (c Catalog) Sorted() []CatalogEntry {
	out := make([]CatalogEntry, 0, len(c))
	for _, e := range c {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := slotRank(out[i].Slot), slotRank(out[j].Slot)
		if si != sj {
			return si < sj
		}
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Filter returns the entries visible under a shop category. CategoryWorms lists no
// catalog items; worms are sold separately.
func (c Catalog) Filter(cat Category) []CatalogEntry {
	all := c.Sorted()
	switch cat {
	case CategoryAll, "":
		return all
	case CategoryWorms:
		return nil
	}
	out := make([]CatalogEntry, 0, len(all))
	for _, e := range all {
		if string(e.Slot) == string(cat) {
			out = append(out, e)
		}
	}
	return out
}

func slotRank(k SlotKind) int {
	for i, s := range SlotKinds {
		if s == k {
			return i
		}
	}
	return len(SlotKinds)
}

// Category is the active shop/inventory view filter.
type Category string

const (
	CategoryAll       Category = "all"
	CategoryWorms     Category = "worms"
	CategoryBeverage  Category = Category(SlotBeverage)
	CategoryGear      Category = Category(SlotGear)
	CategoryBait      Category = Category(SlotBait)
	CategoryAccessory Category = Category(SlotAccessory)
)

// Categories is the shop tab order.
var Categories = []Category{CategoryAll, CategoryWorms, CategoryBeverage, CategoryGear, CategoryBait, CategoryAccessory}

func ParseCategory(s string) (Category, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "all":
		return CategoryAll, nil
	case "worms":
		return CategoryWorms, nil
	}
	if k, ok := ParseSlot(s); ok {
		return Category(k), nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}
