package protocol

import (
	"time"

	"rybalka.web/internal/game"
)

// Requests (client -> server). Every request carries the platform user id.

type UserRequest struct {
	UserID string `json:"user_id"`
}

type InitRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type EquipRequest struct {
	UserID    string `json:"user_id"`
	ItemIndex int    `json:"item_index"`
}

type UnequipRequest struct {
	UserID string `json:"user_id"`
	Slot   string `json:"slot"`
}

type BuyRequest struct {
	UserID   string `json:"user_id"`
	ItemName string `json:"item_name"`
}

type BuyWormsRequest struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

type SellFishRequest struct {
	UserID    string `json:"user_id"`
	FishIndex int    `json:"fish_index"`
}

// Wire shapes shared by several responses.

type UserWire struct {
	Name         string   `json:"name"`
	Money        int64    `json:"money"`
	Worms        int      `json:"worms"`
	BagLimit     int      `json:"bag_limit"`
	Achievements []string `json:"achievements,omitempty"`
}

// ItemWire is an owned item. Type is optional; servers often omit it and the
// client resolves the slot through the shop catalog.
type ItemWire struct {
	Name       string             `json:"name"`
	Type       string             `json:"type,omitempty"`
	Durability int                `json:"durability"`
	Effect     map[string]float64 `json:"effect,omitempty"`
}

func (w ItemWire) Item() game.Item {
	it := game.Item{
		Name:       w.Name,
		Durability: w.Durability,
		Effects:    game.Effects(w.Effect).Clone(),
	}
	if k, ok := game.ParseSlot(w.Type); ok {
		it.Slot = k
	}
	return it
}

func ItemToWire(it game.Item) ItemWire {
	return ItemWire{
		Name:       it.Name,
		Type:       string(it.Slot),
		Durability: it.Durability,
		Effect:     map[string]float64(it.Effects.Clone()),
	}
}

type FishWire struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Price    int64   `json:"price"`
	Type     string  `json:"type,omitempty"`
	IsGolden bool    `json:"is_golden,omitempty"`
	CaughtAt string  `json:"caught_at,omitempty"`
}

// caught_at arrives either as RFC 3339 or as a naive local timestamp.
var caughtAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (w FishWire) Catch() game.Catch {
	c := game.Catch{
		Name:   w.Name,
		Type:   w.Type,
		Weight: w.Weight,
		Price:  w.Price,
		Golden: w.IsGolden,
	}
	for _, layout := range caughtAtLayouts {
		if t, err := time.Parse(layout, w.CaughtAt); err == nil {
			c.CaughtAt = t
			break
		}
	}
	return c
}

func CatchToWire(c game.Catch) FishWire {
	w := FishWire{
		Name:     c.Name,
		Weight:   c.Weight,
		Price:    c.Price,
		Type:     c.Type,
		IsGolden: c.Golden,
	}
	if !c.CaughtAt.IsZero() {
		w.CaughtAt = c.CaughtAt.UTC().Format(time.RFC3339Nano)
	}
	return w
}

type AchievementWire struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Unlocked    bool   `json:"unlocked,omitempty"`
}

func (w AchievementWire) Achievement() game.Achievement {
	return game.Achievement{ID: w.ID, Name: w.Name, Description: w.Description, Unlocked: w.Unlocked}
}

// GET /api/game/state
type StatePayload struct {
	User          UserWire             `json:"user"`
	EquippedItems map[string]*ItemWire `json:"equipped_items"`
	Inventory     []ItemWire           `json:"inventory"`
	Podsak        []FishWire           `json:"podsak,omitempty"`
	LastCatch     *FishWire            `json:"last_catch"`
	Bonuses       map[string]float64   `json:"bonuses,omitempty"`
}

func (p StatePayload) Profile(userID string) game.Profile {
	return game.Profile{
		UserID:       userID,
		Name:         p.User.Name,
		Money:        p.User.Money,
		Worms:        p.User.Worms,
		BagLimit:     p.User.BagLimit,
		Achievements: append([]string(nil), p.User.Achievements...),
	}
}

// Equipped converts the slot map. Null entries and unknown slot keys are empty slots.
func (p StatePayload) Equipped() game.Equipped {
	out := make(game.Equipped, len(p.EquippedItems))
	for key, w := range p.EquippedItems {
		if w == nil || w.Name == "" {
			continue
		}
		slot, ok := game.ParseSlot(key)
		if !ok {
			continue
		}
		it := w.Item()
		it.Slot = slot
		out[slot] = it
	}
	return out
}

func (p StatePayload) Items() []game.Item {
	out := make([]game.Item, 0, len(p.Inventory))
	for _, w := range p.Inventory {
		out = append(out, w.Item())
	}
	return out
}

func (p StatePayload) KeepNet() []game.Catch {
	out := make([]game.Catch, 0, len(p.Podsak))
	for _, w := range p.Podsak {
		out = append(out, w.Catch())
	}
	return out
}

func (p StatePayload) PendingCatch() *game.Catch {
	if p.LastCatch == nil {
		return nil
	}
	c := p.LastCatch.Catch()
	return &c
}

// GET /api/shop/items
type CatalogEntryWire struct {
	Type   string             `json:"type"`
	Price  int64              `json:"price"`
	Effect map[string]float64 `json:"effect,omitempty"`
}

type ShopItemsResponse struct {
	Envelope
	Items map[string]CatalogEntryWire `json:"items"`
}

func (r ShopItemsResponse) Catalog() game.Catalog {
	out := make(game.Catalog, len(r.Items))
	for name, w := range r.Items {
		slot, _ := game.ParseSlot(w.Type)
		out[name] = game.CatalogEntry{
			Name:    name,
			Slot:    slot,
			Price:   w.Price,
			Effects: game.Effects(w.Effect).Clone(),
		}
	}
	return out
}

type InitResponse struct {
	Envelope
	Status string `json:"status"`
}

// POST /api/game/fish. Success:false with a message is a miss, not a rejection.
type FishResponse struct {
	Envelope
	Fish            *FishWire         `json:"fish,omitempty"`
	NewAchievements []AchievementWire `json:"new_achievements,omitempty"`
	WormsLeft       *int              `json:"worms_left,omitempty"`
	BrokenItems     []string          `json:"broken_items,omitempty"`
	IsGiant         bool              `json:"is_giant,omitempty"`
}

type KeepResponse struct {
	Envelope
	FishKept    *FishWire `json:"fish_kept,omitempty"`
	PodsakCount int       `json:"podsak_count,omitempty"`
}

// SellResponse answers both /api/game/sell and /api/game/sellfish.
type SellResponse struct {
	Envelope
	MoneyEarned int64     `json:"money_earned"`
	NewBalance  int64     `json:"new_balance,omitempty"`
	FishSold    *FishWire `json:"fish_sold,omitempty"`
}

type EquipResponse struct {
	Envelope
	ItemEquipped string `json:"item_equipped,omitempty"`
	Slot         string `json:"slot,omitempty"`
}

type UnequipResponse struct {
	Envelope
	ItemUnequipped string `json:"item_unequipped,omitempty"`
	Slot           string `json:"slot,omitempty"`
}

type BuyResponse struct {
	Envelope
	ItemBought string `json:"item_bought,omitempty"`
	NewBalance int64  `json:"new_balance,omitempty"`
}

type BuyWormsResponse struct {
	Envelope
	WormsBought int   `json:"worms_bought,omitempty"`
	Cost        int64 `json:"cost"`
	NewBalance  int64 `json:"new_balance,omitempty"`
	TotalWorms  int   `json:"total_worms,omitempty"`
}

type BuyBagResponse struct {
	Envelope
	NewBagLimit int   `json:"new_bag_limit"`
	Cost        int64 `json:"cost,omitempty"`
	NewBalance  int64 `json:"new_balance,omitempty"`
}

type TopPlayerWire struct {
	Rank              int    `json:"rank"`
	Name              string `json:"name"`
	Money             int64  `json:"money"`
	AchievementsCount int    `json:"achievements_count"`
}

type TopResponse struct {
	Envelope
	TopPlayers []TopPlayerWire `json:"top_players"`
}

func (r TopResponse) Players() []game.TopPlayer {
	out := make([]game.TopPlayer, 0, len(r.TopPlayers))
	for _, p := range r.TopPlayers {
		out = append(out, game.TopPlayer{Rank: p.Rank, Name: p.Name, Money: p.Money, AchievementsCount: p.AchievementsCount})
	}
	return out
}

type AchievementsResponse struct {
	Envelope
	Achievements    []AchievementWire `json:"achievements,omitempty"`
	AllAchievements []AchievementWire `json:"all_achievements,omitempty"`
}

func (r AchievementsResponse) List() []game.Achievement {
	src := r.Achievements
	if src == nil {
		src = r.AllAchievements
	}
	out := make([]game.Achievement, 0, len(src))
	for _, a := range src {
		out = append(out, a.Achievement())
	}
	return out
}

type HealthResponse struct {
	Status     string `json:"status"`
	UsersCount int    `json:"users_count"`
	Message    string `json:"message,omitempty"`
}
