package bonus

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"rybalka.web/internal/game"
)

func TestAggregate_EmptyIsBaseline(t *testing.T) {
	got := Aggregate(nil)
	if !reflect.DeepEqual(got, Baseline()) {
		t.Fatalf("empty equipment: got %+v want %+v", got, Baseline())
	}
	if got.PriceMultiplier != 1.0 {
		t.Fatalf("price multiplier baseline=%v want 1.0", got.PriceMultiplier)
	}
}

func TestAggregate_SumsAcrossSlots(t *testing.T) {
	eq := game.Equipped{
		game.SlotBeverage: {Name: "Light beer", Effects: game.Effects{"chance_bonus": 0.05}},
		game.SlotGear:     {Name: "Lucky spoon", Effects: game.Effects{"chance_bonus": 0.1}},
		game.SlotBait:     {Name: "Golden worm", Effects: game.Effects{"price_multiplier": 1.1}},
		game.SlotAccessory: {Name: "Lucky bell", Effects: game.Effects{
			"crit_chance":       0.001,
			"rare_weight_bonus": 0.07,
		}},
	}
	got := Aggregate(eq)
	if math.Abs(got.ChanceBonus-0.15) > 1e-9 {
		t.Fatalf("chance=%v want 0.15", got.ChanceBonus)
	}
	if math.Abs(got.PriceMultiplier-1.1) > 1e-9 {
		t.Fatalf("price=%v want 1.1", got.PriceMultiplier)
	}
	if math.Abs(got.CritChance-0.001) > 1e-12 {
		t.Fatalf("crit=%v want 0.001", got.CritChance)
	}
	if math.Abs(got.RareWeightBonus-0.07) > 1e-9 {
		t.Fatalf("rare=%v want 0.07", got.RareWeightBonus)
	}
}

func TestAggregate_PriceMultipliersStackAdditively(t *testing.T) {
	eq := game.Equipped{
		game.SlotBeverage: {Name: "Liquid gold", Effects: game.Effects{"price_multiplier": 1.25}},
		game.SlotBait:     {Name: "Ancient caviar", Effects: game.Effects{"price_multiplier": 1.5}},
	}
	got := Aggregate(eq)
	if math.Abs(got.PriceMultiplier-1.75) > 1e-9 {
		t.Fatalf("price=%v want 1.75", got.PriceMultiplier)
	}
}

func TestAggregate_IgnoresBelowBaselineAndNonFinite(t *testing.T) {
	eq := game.Equipped{
		game.SlotGear: {Name: "Cursed spoon", Effects: game.Effects{
			"chance_bonus":     -0.5,
			"price_multiplier": 0.5,
			"crit_chance":      math.NaN(),
		}},
		game.SlotBait: {Name: "Broken", Effects: game.Effects{"rare_weight_bonus": math.Inf(1)}},
	}
	got := Aggregate(eq)
	if !reflect.DeepEqual(got, Baseline()) {
		t.Fatalf("got %+v want baseline", got)
	}
}

func TestAggregate_UnknownKindsPassThrough(t *testing.T) {
	eq := game.Equipped{
		game.SlotGear:      {Name: "Odd rod", Effects: game.Effects{"luck_aura": 3, "chance_bonus": 0.1}},
		game.SlotBeverage:  {Name: "Odd beer", Effects: game.Effects{"foam": 0.5}},
		game.SlotAccessory: {Name: "Plain", Effects: nil},
	}
	got := Aggregate(eq)
	want := []Effect{
		{Kind: "foam", Value: 0.5, Source: "Odd beer"},
		{Kind: "luck_aura", Value: 3, Source: "Odd rod"},
	}
	if !reflect.DeepEqual(got.Passthrough, want) {
		t.Fatalf("passthrough=%+v want %+v", got.Passthrough, want)
	}
	if got.ChanceBonus != 0.1 {
		t.Fatalf("chance=%v want 0.1", got.ChanceBonus)
	}
}

func TestAggregate_BoundsAndIdempotence(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	kinds := []string{"chance_bonus", "rare_weight_bonus", "price_multiplier", "crit_chance", "mystery"}
	for i := 0; i < 500; i++ {
		eq := game.Equipped{}
		for _, slot := range game.SlotKinds {
			if r.Intn(3) == 0 {
				continue
			}
			eff := game.Effects{}
			for n := r.Intn(3); n >= 0; n-- {
				eff[kinds[r.Intn(len(kinds))]] = r.Float64()*4 - 2
			}
			eq[slot] = game.Item{Name: string(slot), Effects: eff}
		}

		a := Aggregate(eq)
		b := Aggregate(eq)
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("iteration %d: not idempotent: %+v vs %+v", i, a, b)
		}
		if a.PriceMultiplier < 1.0 {
			t.Fatalf("iteration %d: price multiplier %v < 1.0", i, a.PriceMultiplier)
		}
		if a.ChanceBonus < 0 || a.RareWeightBonus < 0 || a.CritChance < 0 {
			t.Fatalf("iteration %d: negative bonus %+v", i, a)
		}
	}
}

func TestKinds_AllHaveFormatters(t *testing.T) {
	for _, k := range Kinds {
		if !k.Known() {
			t.Fatalf("kind %q is not registered", k)
		}
	}
	if len(Kinds) != len(kindTable) {
		t.Fatalf("Kinds=%d kindTable=%d; keep them in sync", len(Kinds), len(kindTable))
	}
}

func TestKind_Format(t *testing.T) {
	cases := []struct {
		kind Kind
		v    float64
		want string
	}{
		{ChanceBonus, 0.05, "🎯 Catch chance: +5%"},
		{RareWeightBonus, 0.07, "⚡ Rare weight: +7%"},
		{PriceMultiplier, 1.75, "💰 Price: x1.8"},
		{CritChance, 0.0025, "🎲 Crit chance: +0.25%"},
		{Kind("foam"), 0.5, "foam: 0.5"},
	}
	for _, c := range cases {
		if got := c.kind.Format(c.v); got != c.want {
			t.Fatalf("%s.Format(%v)=%q want %q", c.kind, c.v, got, c.want)
		}
	}
}

func TestSet_LinesSkipsBaseline(t *testing.T) {
	s := Baseline()
	if lines := s.Lines(); len(lines) != 0 {
		t.Fatalf("baseline lines=%v want none", lines)
	}
	s.ChanceBonus = 0.1
	s.PriceMultiplier = 1.5
	s.Passthrough = []Effect{{Kind: "foam", Value: 1}}
	want := []string{"🎯 Catch chance: +10%", "💰 Price: x1.5", "foam: 1"}
	if got := s.Lines(); !reflect.DeepEqual(got, want) {
		t.Fatalf("lines=%v want %v", got, want)
	}
}

func TestDescribe_KnownFirst(t *testing.T) {
	got := Describe(game.Effects{"zeta": 2, "crit_chance": 0.001})
	want := []string{"🎲 Crit chance: +0.10%", "zeta: 2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("describe=%v want %v", got, want)
	}
}
