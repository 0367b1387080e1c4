// Package bonus derives the effective bonus set from equipped items.
//
// Aggregation is additive. ChanceBonus, RareWeightBonus and CritChance start at zero
// and add each item's magnitude. PriceMultiplier starts at 1.0 and each item
// contributes (value - 1.0), so two x1.25 items yield x1.5. Contributions that would
// lower a bonus below its baseline are ignored.
package bonus

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"rybalka.web/internal/game"
)

type Kind string

const (
	ChanceBonus     Kind = "chance_bonus"
	RareWeightBonus Kind = "rare_weight_bonus"
	PriceMultiplier Kind = "price_multiplier"
	CritChance      Kind = "crit_chance"
)

// Kinds lists every aggregated kind in display order.
var Kinds = []Kind{ChanceBonus, PriceMultiplier, RareWeightBonus, CritChance}

type kindInfo struct {
	label    string
	baseline float64
	format   func(v float64) string
}

var kindTable = map[Kind]kindInfo{
	ChanceBonus: {
		label:  "🎯 Catch chance",
		format: func(v float64) string { return fmt.Sprintf("+%.0f%%", v*100) },
	},
	RareWeightBonus: {
		label:  "⚡ Rare weight",
		format: func(v float64) string { return fmt.Sprintf("+%.0f%%", v*100) },
	},
	PriceMultiplier: {
		label:    "💰 Price",
		baseline: 1.0,
		format:   func(v float64) string { return fmt.Sprintf("x%.1f", v) },
	},
	CritChance: {
		label:  "🎲 Crit chance",
		format: func(v float64) string { return fmt.Sprintf("+%.2f%%", v*100) },
	},
}

func (k Kind) Known() bool {
	_, ok := kindTable[k]
	return ok
}

func (k Kind) Baseline() float64 { return kindTable[k].baseline }

func (k Kind) Label() string {
	if s, ok := kindTable[k]; ok {
		return s.label
	}
	return string(k)
}

// Format renders a magnitude for display. Unknown kinds render verbatim as "key: value".
func (k Kind) Format(v float64) string {
	s, ok := kindTable[k]
	if !ok {
		return string(k) + ": " + strconv.FormatFloat(v, 'g', -1, 64)
	}
	return s.label + ": " + s.format(v)
}

// Effect is an unaggregated effect kept for display.
type Effect struct {
	Kind   Kind    `json:"kind"`
	Value  float64 `json:"value"`
	Source string  `json:"source,omitempty"`
}

type Set struct {
	ChanceBonus     float64 `json:"chance_bonus"`
	RareWeightBonus float64 `json:"rare_weight_bonus"`
	PriceMultiplier float64 `json:"price_multiplier"`
	CritChance      float64 `json:"crit_chance"`

	// Passthrough holds effects of unknown kinds in slot order.
	Passthrough []Effect `json:"passthrough,omitempty"`
}

func Baseline() Set {
	return Set{PriceMultiplier: PriceMultiplier.Baseline()}
}

func (s Set) Get(k Kind) float64 {
	switch k {
	case ChanceBonus:
		return s.ChanceBonus
	case RareWeightBonus:
		return s.RareWeightBonus
	case PriceMultiplier:
		return s.PriceMultiplier
	case CritChance:
		return s.CritChance
	}
	return 0
}

func (s *Set) add(k Kind, v float64) {
	switch k {
	case ChanceBonus:
		s.ChanceBonus += v
	case RareWeightBonus:
		s.RareWeightBonus += v
	case PriceMultiplier:
		s.PriceMultiplier += v
	case CritChance:
		s.CritChance += v
	}
}

// Lines renders the bonuses that differ from baseline, then passthrough effects.
func (s Set) Lines() []string {
	var out []string
	for _, k := range Kinds {
		v := s.Get(k)
		if v > k.Baseline() {
			out = append(out, k.Format(v))
		}
	}
	for _, e := range s.Passthrough {
		out = append(out, e.Kind.Format(e.Value))
	}
	return out
}

// Aggregate is pure: the same equipment always yields the same Set.
// Items in slots outside game.SlotKinds are not considered.
func Aggregate(eq game.Equipped) Set {
	out := Baseline()
	for _, slot := range game.SlotKinds {
		it, ok := eq[slot]
		if !ok {
			continue
		}
		for _, name := range sortedKeys(it.Effects) {
			k := Kind(name)
			v := it.Effects[name]
			if !k.Known() {
				out.Passthrough = append(out.Passthrough, Effect{Kind: k, Value: v, Source: it.Name})
				continue
			}
			d := v - k.Baseline()
			if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
				continue
			}
			out.add(k, d)
		}
	}
	return out
}

// Describe formats a single item's effect set, known kinds first in display order.
func Describe(e game.Effects) []string {
	var out []string
	for _, k := range Kinds {
		if v, ok := e[string(k)]; ok {
			out = append(out, k.Format(v))
		}
	}
	for _, name := range sortedKeys(e) {
		if k := Kind(name); !k.Known() {
			out = append(out, k.Format(e[name]))
		}
	}
	return out
}

func sortedKeys(e game.Effects) []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
