package game

import (
	"strings"
	"time"
)

// SlotKind partitions equippable items. The beverage slot travels as "beer" on the wire.
type SlotKind string

const (
	SlotBeverage  SlotKind = "beer"
	SlotGear      SlotKind = "gear"
	SlotBait      SlotKind = "bait"
	SlotAccessory SlotKind = "accessory"
)

// SlotKinds is the fixed display and aggregation order.
var SlotKinds = []SlotKind{SlotBeverage, SlotGear, SlotBait, SlotAccessory}

func (k SlotKind) Valid() bool {
	switch k {
	case SlotBeverage, SlotGear, SlotBait, SlotAccessory:
		return true
	}
	return false
}

func (k SlotKind) Label() string {
	switch k {
	case SlotBeverage:
		return "🍺 Beverage"
	case SlotGear:
		return "🎣 Gear"
	case SlotBait:
		return "🪱 Bait"
	case SlotAccessory:
		return "🔔 Accessory"
	default:
		return string(k)
	}
}

// ParseSlot accepts wire names and the "beverage" alias, case-insensitively.
func ParseSlot(s string) (SlotKind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "beverage" {
		return SlotBeverage, true
	}
	k := SlotKind(s)
	return k, k.Valid()
}

// Effects maps a bonus kind name to its magnitude.
type Effects map[string]float64

func (e Effects) Clone() Effects {
	if e == nil {
		return nil
	}
	out := make(Effects, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

type Item struct {
	Name       string   `json:"name"`
	Slot       SlotKind `json:"slot,omitempty"`
	Durability int      `json:"durability"`
	Effects    Effects  `json:"effects,omitempty"`
}

func (it Item) Clone() Item {
	it.Effects = it.Effects.Clone()
	return it
}

// Equipped holds at most one item per slot; an absent key is an empty slot.
type Equipped map[SlotKind]Item

func (e Equipped) Get(slot SlotKind) (Item, bool) {
	it, ok := e[slot]
	return it, ok
}

func (e Equipped) Occupied(slot SlotKind) bool {
	_, ok := e[slot]
	return ok
}

func (e Equipped) Clone() Equipped {
	out := make(Equipped, len(e))
	for k, v := range e {
		out[k] = v.Clone()
	}
	return out
}

// Catch is a caught fish, either pending a keep/sell decision or kept in the keep-net.
type Catch struct {
	Name     string    `json:"name"`
	Type     string    `json:"type,omitempty"`
	Weight   float64   `json:"weight"`
	Price    int64     `json:"price"`
	Golden   bool      `json:"golden,omitempty"`
	CaughtAt time.Time `json:"caught_at,omitempty"`
}

type Profile struct {
	UserID       string   `json:"user_id"`
	Name         string   `json:"name"`
	Money        int64    `json:"money"`
	Worms        int      `json:"worms"`
	BagLimit     int      `json:"bag_limit"`
	Achievements []string `json:"achievements,omitempty"`
}

func (p Profile) Clone() Profile {
	p.Achievements = append([]string(nil), p.Achievements...)
	return p
}

type Achievement struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked"`
}

type TopPlayer struct {
	Rank              int    `json:"rank"`
	Name              string `json:"name"`
	Money             int64  `json:"money"`
	AchievementsCount int    `json:"achievements_count"`
}
