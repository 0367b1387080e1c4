package session

import (
	"time"

	"rybalka.web/internal/game"
	"rybalka.web/internal/game/bonus"
)

// Snapshot is the last authoritative state fetched from the server plus the bonuses
// derived from it. Values handed out by the Store are deep copies.
type Snapshot struct {
	Profile      game.Profile  `json:"profile"`
	Equipped     game.Equipped `json:"equipped"`
	Inventory    []game.Item   `json:"inventory"`
	KeepNet      []game.Catch  `json:"keep_net,omitempty"`
	PendingCatch *game.Catch   `json:"pending_catch,omitempty"`
	Bonuses      bonus.Set     `json:"bonuses"`
	FetchedAt    time.Time     `json:"fetched_at"`
}

func (s Snapshot) Clone() Snapshot {
	out := s
	out.Profile = s.Profile.Clone()
	out.Equipped = s.Equipped.Clone()
	out.Inventory = make([]game.Item, len(s.Inventory))
	for i, it := range s.Inventory {
		out.Inventory[i] = it.Clone()
	}
	out.KeepNet = append([]game.Catch(nil), s.KeepNet...)
	if s.PendingCatch != nil {
		c := *s.PendingCatch
		out.PendingCatch = &c
	}
	out.Bonuses.Passthrough = append([]bonus.Effect(nil), s.Bonuses.Passthrough...)
	return out
}

func (s Snapshot) InventoryItem(i int) (game.Item, bool) {
	if i < 0 || i >= len(s.Inventory) {
		return game.Item{}, false
	}
	return s.Inventory[i], true
}

func (s Snapshot) KeepNetCatch(i int) (game.Catch, bool) {
	if i < 0 || i >= len(s.KeepNet) {
		return game.Catch{}, false
	}
	return s.KeepNet[i], true
}

// View is what the presentation layer renders.
type View struct {
	Snapshot Snapshot      `json:"snapshot"`
	Loaded   bool          `json:"loaded"`
	Busy     bool          `json:"busy"`
	Filter   game.Category `json:"filter"`
}
