package devserver

import (
	"math"

	"rybalka.web/internal/game"
)

type achievement struct {
	id          string
	name        string
	description string
	// check sees the catch that triggered it (nil outside a catch) and the balance.
	check func(c *game.Catch, money int64) bool
}

func near(a, b float64) bool { return math.Abs(a-b) <= 0.01 }

var achievements = []achievement{
	{"golden_fish", "🌟 A wish came true", "Catch the Golden fish", func(c *game.Catch, _ int64) bool {
		return c != nil && c.Golden
	}},
	{"fish_weight_14_88", "🎯 God of fishing", "Catch a fish weighing exactly 14.88 kg", func(c *game.Catch, _ int64) bool {
		return c != nil && near(c.Weight, 14.88)
	}},
	{"fish_weight_100", "💪 Fishing monster", "Catch a fish heavier than 100 kg", func(c *game.Catch, _ int64) bool {
		return c != nil && c.Weight > 100
	}},
	{"rich_5m", "🤑 Millionaire", "Hold 5 000 000 or more", func(_ *game.Catch, money int64) bool {
		return money >= 5_000_000
	}},
	{"big_money", "💰 Rich", "Catch a fish worth more than 9980", func(c *game.Catch, _ int64) bool {
		return c != nil && c.Price > 9980
	}},
	{"fish_price_1488", "💸 Fish billionaire", "Catch a fish worth exactly 1488", func(c *game.Catch, _ int64) bool {
		return c != nil && c.Price == 1488
	}},
	{"pike_weight_2_28", "👀 Sit down", "Catch a pike weighing exactly 2.28 kg", func(c *game.Catch, _ int64) bool {
		return c != nil && c.Type == "pike" && near(c.Weight, 2.28)
	}},
	{"catfish_weight_8_12", "⚓ Northern depths", "Catch a catfish weighing exactly 8.12 kg", func(c *game.Catch, _ int64) bool {
		return c != nil && c.Type == "catfish" && near(c.Weight, 8.12)
	}},
	{"fish_price_812", "🌉 Northern fishing", "Catch a fish worth exactly 812", func(c *game.Catch, _ int64) bool {
		return c != nil && c.Price == 812
	}},
}

// unlock appends newly earned achievement ids to have and returns the new ones.
func unlock(have []string, c *game.Catch, money int64) ([]string, []achievement) {
	got := make(map[string]bool, len(have))
	for _, id := range have {
		got[id] = true
	}
	var fresh []achievement
	for _, a := range achievements {
		if got[a.id] || !a.check(c, money) {
			continue
		}
		have = append(have, a.id)
		fresh = append(fresh, a)
	}
	return have, fresh
}
