package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"rybalka.web/internal/game"
	"rybalka.web/internal/protocol"
)

// API is the remote game server as the controller sees it.
type API interface {
	Init(ctx context.Context, userID, name string) (protocol.InitResponse, error)
	State(ctx context.Context, userID string) (protocol.StatePayload, error)
	ShopItems(ctx context.Context) (protocol.ShopItemsResponse, error)

	Fish(ctx context.Context, userID string) (protocol.FishResponse, error)
	Keep(ctx context.Context, userID string) (protocol.KeepResponse, error)
	Sell(ctx context.Context, userID string) (protocol.SellResponse, error)
	SellFish(ctx context.Context, userID string, index int) (protocol.SellResponse, error)
	Equip(ctx context.Context, userID string, index int) (protocol.EquipResponse, error)
	Unequip(ctx context.Context, userID string, slot game.SlotKind) (protocol.UnequipResponse, error)
	Buy(ctx context.Context, userID, itemName string) (protocol.BuyResponse, error)
	BuyWorms(ctx context.Context, userID string, count int) (protocol.BuyWormsResponse, error)
	BuyBag(ctx context.Context, userID string) (protocol.BuyBagResponse, error)

	Top(ctx context.Context, limit int) (protocol.TopResponse, error)
	Achievements(ctx context.Context, userID string) (protocol.AchievementsResponse, error)
}

// Rules are the client-side copies of server prices, used only for advisory guards.
type Rules struct {
	WormPrice               int64
	BagUpgradeCost          int64
	BagUpgradeExpensiveCost int64
	BagUpgradeExpensiveFrom int
	BagUpgradeIncrement     int
}

func DefaultRules() Rules {
	return Rules{
		WormPrice:               10,
		BagUpgradeCost:          500_000,
		BagUpgradeExpensiveCost: 10_000_000,
		BagUpgradeExpensiveFrom: 40,
		BagUpgradeIncrement:     10,
	}
}

func (r Rules) BagUpgradeCostFor(limit int) int64 {
	if r.BagUpgradeExpensiveFrom > 0 && limit >= r.BagUpgradeExpensiveFrom {
		return r.BagUpgradeExpensiveCost
	}
	return r.BagUpgradeCost
}

type Config struct {
	UserID   string
	UserName string

	API       API
	Store     *Store
	Notifier  Notifier
	Render    RenderSink
	Recorders []Recorder
	Logger    *log.Logger

	Rules Rules
	// CastDisplayDelay keeps the session busy after a cast so the result stays on
	// screen. Zero releases immediately.
	CastDisplayDelay time.Duration
}

type Controller struct {
	userID   string
	userName string

	api       API
	store     *Store
	notifier  Notifier
	render    RenderSink
	recorders []Recorder
	logger    *log.Logger

	rules     Rules
	castDelay time.Duration

	now       func() time.Time
	afterFunc func(d time.Duration, f func())
}

func New(cfg Config) (*Controller, error) {
	if cfg.API == nil {
		return nil, fmt.Errorf("api is required")
	}
	if cfg.UserID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if cfg.Store == nil {
		cfg.Store = NewStore()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(io.Discard, "", 0)
	}
	if cfg.Rules == (Rules{}) {
		cfg.Rules = DefaultRules()
	}
	return &Controller{
		userID:    cfg.UserID,
		userName:  cfg.UserName,
		api:       cfg.API,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		render:    cfg.Render,
		recorders: cfg.Recorders,
		logger:    cfg.Logger,
		rules:     cfg.Rules,
		castDelay: cfg.CastDisplayDelay,
		now:       time.Now,
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
	}, nil
}

func (c *Controller) Store() *Store { return c.store }
func (c *Controller) UserID() string { return c.userID }
func (c *Controller) Rules() Rules { return c.rules }

// outcome is what a successful remote call leaves behind for notification and
// bookkeeping.
type outcome struct {
	result  Outcome
	message string
	notices []Notification
	hold    time.Duration
}

// mutate runs one mutating action: busy gate, guard against the latest snapshot,
// remote call, unconditional re-fetch, release. Busy stays set through the re-fetch.
func (c *Controller) mutate(ctx context.Context, action Action, guard func(Snapshot) error, call func(context.Context) (outcome, error)) error {
	if !c.store.TryBegin() {
		err := &GuardError{Action: action, Reason: ErrBusy}
		c.logger.Printf("guard: %v", err)
		return err
	}
	c.publish()

	snap, ok := c.store.Snapshot()
	if !ok {
		return c.abort(action, ErrNotLoaded)
	}
	if guard != nil {
		if reason := guard(snap); reason != nil {
			return c.abort(action, reason)
		}
	}

	out, err := call(ctx)
	if err != nil {
		c.failed(action, err)
		c.release()
		return err
	}

	for _, n := range out.notices {
		n.Action = action
		c.notify(n)
	}
	if err := c.fetch(ctx); err != nil {
		c.failed(ActionRefresh, err)
	}
	c.record(action, out.result, out.message)

	if out.hold > 0 {
		c.afterFunc(out.hold, c.release)
		c.publish()
		return nil
	}
	c.release()
	return nil
}

func (c *Controller) abort(action Action, reason error) error {
	err := &GuardError{Action: action, Reason: reason}
	c.logger.Printf("guard: %v", err)
	c.notify(Notification{Level: LevelInfo, Action: action, Text: capitalize(reason.Error())})
	c.record(action, OutcomeGuard, reason.Error())
	c.release()
	return err
}

// failed surfaces a transport failure generically and a rejection verbatim.
func (c *Controller) failed(action Action, err error) {
	kind := Classify(err)
	c.logger.Printf("%s: action=%s err=%v", kind, action, err)
	text := "Could not " + action.Verb() + ": connection problem, try again"
	if kind == KindRejected {
		text = rejectionMessage(err)
	}
	c.notify(Notification{Level: LevelError, Action: action, Text: text})
	if action != ActionRefresh {
		c.record(action, kind.outcome(), err.Error())
	}
}

func (c *Controller) release() {
	c.store.SetBusy(false)
	c.publish()
}

func (c *Controller) fetch(ctx context.Context) error {
	p, err := c.api.State(ctx, c.userID)
	if err != nil {
		return err
	}
	c.store.Replace(c.userID, p)
	return nil
}

func (c *Controller) notify(n Notification) {
	if c.notifier == nil {
		return
	}
	if n.At.IsZero() {
		n.At = c.now().UTC()
	}
	c.notifier.Notify(n)
}

func (c *Controller) publish() {
	if c.render != nil {
		c.render.Render(c.store.View())
	}
}

func (c *Controller) record(action Action, result Outcome, msg string) {
	if len(c.recorders) == 0 {
		return
	}
	e := Entry{At: c.now().UTC(), UserID: c.userID, Action: action, Outcome: result, Message: msg}
	if snap, ok := c.store.Snapshot(); ok {
		e.Money = snap.Profile.Money
		e.Worms = snap.Profile.Worms
	}
	for _, r := range c.recorders {
		if err := r.Record(e); err != nil {
			c.logger.Printf("record %s: %v", action, err)
		}
	}
}

// CastResult describes a finished cast. Catch is nil on a miss.
type CastResult struct {
	Catch        *game.Catch        `json:"catch,omitempty"`
	Missed       bool               `json:"missed,omitempty"`
	Message      string             `json:"message,omitempty"`
	Achievements []game.Achievement `json:"achievements,omitempty"`
	BrokenItems  []string           `json:"broken_items,omitempty"`
	Giant        bool               `json:"giant,omitempty"`
}

func (c *Controller) Cast(ctx context.Context) (CastResult, error) {
	var res CastResult
	err := c.mutate(ctx, ActionCast, func(s Snapshot) error {
		if s.Profile.Worms <= 0 {
			return ErrNoWorms
		}
		return nil
	}, func(ctx context.Context) (outcome, error) {
		r, err := c.api.Fish(ctx, c.userID)
		if err != nil {
			return outcome{}, err
		}
		out := outcome{result: OutcomeOK, hold: c.castDelay}
		if r.Fish == nil {
			c.store.ClearPendingCatch()
			res.Missed = true
			res.Message = r.Message
			out.result = OutcomeMiss
			out.message = r.Message
			text := r.Message
			if text == "" {
				text = "Nothing bit this time"
			}
			out.notices = append(out.notices, Notification{Level: LevelInfo, Text: text})
		} else {
			catch := r.Fish.Catch()
			c.store.SetPendingCatch(catch)
			res.Catch = &catch
			res.Giant = r.IsGiant
			out.message = catch.Name
			out.notices = append(out.notices, Notification{Level: LevelSuccess, Text: catchText(catch)})
			if r.IsGiant {
				out.notices = append(out.notices, Notification{Level: LevelInfo, Text: "A giant! " + catch.Name})
			}
			for _, a := range r.NewAchievements {
				ach := a.Achievement()
				ach.Unlocked = true
				res.Achievements = append(res.Achievements, ach)
				out.notices = append(out.notices, Notification{Level: LevelAchievement, Text: ach.Name + ": " + ach.Description})
			}
		}
		res.BrokenItems = append(res.BrokenItems, r.BrokenItems...)
		for _, name := range r.BrokenItems {
			out.notices = append(out.notices, Notification{Level: LevelInfo, Text: name + " broke"})
		}
		return out, nil
	})
	return res, err
}

func (c *Controller) Keep(ctx context.Context) error {
	return c.mutate(ctx, ActionKeep, requirePending, func(ctx context.Context) (outcome, error) {
		r, err := c.api.Keep(ctx, c.userID)
		if err != nil {
			return outcome{}, err
		}
		c.store.ClearPendingCatch()
		name := "fish"
		if r.FishKept != nil {
			name = r.FishKept.Name
		}
		return outcome{
			result:  OutcomeOK,
			message: name,
			notices: []Notification{{Level: LevelSuccess, Text: capitalize(name) + " went into the keep-net"}},
		}, nil
	})
}

// Sell sells the pending catch and returns the money earned.
func (c *Controller) Sell(ctx context.Context) (int64, error) {
	var earned int64
	err := c.mutate(ctx, ActionSell, requirePending, func(ctx context.Context) (outcome, error) {
		r, err := c.api.Sell(ctx, c.userID)
		if err != nil {
			return outcome{}, err
		}
		c.store.ClearPendingCatch()
		earned = r.MoneyEarned
		return soldOutcome(earned), nil
	})
	return earned, err
}

// SellFromNet sells the keep-net catch at index.
func (c *Controller) SellFromNet(ctx context.Context, index int) (int64, error) {
	var earned int64
	err := c.mutate(ctx, ActionSellNet, func(s Snapshot) error {
		if _, ok := s.KeepNetCatch(index); !ok {
			return ErrBadIndex
		}
		return nil
	}, func(ctx context.Context) (outcome, error) {
		r, err := c.api.SellFish(ctx, c.userID, index)
		if err != nil {
			return outcome{}, err
		}
		earned = r.MoneyEarned
		return soldOutcome(earned), nil
	})
	return earned, err
}

// Equip moves the inventory item at index into its slot. The occupancy check only
// runs when the item's slot is known locally; the server decides otherwise.
func (c *Controller) Equip(ctx context.Context, index int) error {
	return c.mutate(ctx, ActionEquip, func(s Snapshot) error {
		it, ok := s.InventoryItem(index)
		if !ok {
			return ErrBadIndex
		}
		if slot, ok := c.store.Catalog().SlotOf(it); ok && s.Equipped.Occupied(slot) {
			return ErrSlotOccupied
		}
		return nil
	}, func(ctx context.Context) (outcome, error) {
		r, err := c.api.Equip(ctx, c.userID, index)
		if err != nil {
			return outcome{}, err
		}
		return outcome{
			result:  OutcomeOK,
			message: r.ItemEquipped,
			notices: []Notification{{Level: LevelSuccess, Text: "Equipped " + r.ItemEquipped}},
		}, nil
	})
}

func (c *Controller) Unequip(ctx context.Context, slot game.SlotKind) error {
	return c.mutate(ctx, ActionUnequip, func(s Snapshot) error {
		if !slot.Valid() {
			return ErrBadSlot
		}
		if !s.Equipped.Occupied(slot) {
			return ErrSlotEmpty
		}
		return nil
	}, func(ctx context.Context) (outcome, error) {
		r, err := c.api.Unequip(ctx, c.userID, slot)
		if err != nil {
			return outcome{}, err
		}
		return outcome{
			result:  OutcomeOK,
			message: r.ItemUnequipped,
			notices: []Notification{{Level: LevelSuccess, Text: "Took off " + r.ItemUnequipped}},
		}, nil
	})
}

// BuyItem buys a catalog item. The catalog is loaded on first use.
func (c *Controller) BuyItem(ctx context.Context, name string) error {
	cat := c.store.Catalog()
	if cat == nil {
		var err error
		if cat, err = c.LoadCatalog(ctx); err != nil {
			return err
		}
	}
	return c.mutate(ctx, ActionBuy, func(s Snapshot) error {
		e, ok := cat.Lookup(name)
		if !ok {
			return ErrUnknownItem
		}
		if s.Profile.Money < e.Price {
			return ErrInsufficientFunds
		}
		if s.Equipped.Occupied(e.Slot) {
			return ErrSlotOccupied
		}
		return nil
	}, func(ctx context.Context) (outcome, error) {
		r, err := c.api.Buy(ctx, c.userID, name)
		if err != nil {
			return outcome{}, err
		}
		bought := r.ItemBought
		if bought == "" {
			bought = name
		}
		return outcome{
			result:  OutcomeOK,
			message: bought,
			notices: []Notification{{Level: LevelSuccess, Text: "Bought " + bought}},
		}, nil
	})
}

// BuyWorms buys count worms and returns the cost charged.
func (c *Controller) BuyWorms(ctx context.Context, count int) (int64, error) {
	var cost int64
	err := c.mutate(ctx, ActionBuyWorms, func(s Snapshot) error {
		if count <= 0 {
			return ErrBadCount
		}
		if s.Profile.Money < int64(count)*c.rules.WormPrice {
			return ErrInsufficientFunds
		}
		return nil
	}, func(ctx context.Context) (outcome, error) {
		r, err := c.api.BuyWorms(ctx, c.userID, count)
		if err != nil {
			return outcome{}, err
		}
		cost = r.Cost
		return outcome{
			result:  OutcomeOK,
			message: fmt.Sprintf("%d worms for %d", count, cost),
			notices: []Notification{{Level: LevelSuccess, Text: fmt.Sprintf("Bought %d worms for %d", count, cost)}},
		}, nil
	})
	return cost, err
}

// BuyBag buys one bag upgrade and returns the new bag limit.
func (c *Controller) BuyBag(ctx context.Context) (int, error) {
	var limit int
	err := c.mutate(ctx, ActionBuyBag, func(s Snapshot) error {
		if s.Profile.Money < c.rules.BagUpgradeCostFor(s.Profile.BagLimit) {
			return ErrInsufficientFunds
		}
		return nil
	}, func(ctx context.Context) (outcome, error) {
		r, err := c.api.BuyBag(ctx, c.userID)
		if err != nil {
			return outcome{}, err
		}
		limit = r.NewBagLimit
		return outcome{
			result:  OutcomeOK,
			message: fmt.Sprintf("bag %d", limit),
			notices: []Notification{{Level: LevelSuccess, Text: fmt.Sprintf("Bag now holds %d", limit)}},
		}, nil
	})
	return limit, err
}

// Refresh re-fetches the snapshot outside any action. The result is dropped if an
// action started or finished while the request was in flight.
func (c *Controller) Refresh(ctx context.Context) error {
	seq := c.store.Seq()
	p, err := c.api.State(ctx, c.userID)
	if err != nil {
		c.failed(ActionRefresh, err)
		return err
	}
	if !c.store.ReplaceIf(seq, c.userID, p) {
		c.logger.Printf("refresh: dropped stale state")
		return nil
	}
	c.publish()
	return nil
}

// Register announces the user to the server and loads the initial snapshot.
func (c *Controller) Register(ctx context.Context) (string, error) {
	r, err := c.api.Init(ctx, c.userID, c.userName)
	if err != nil {
		c.failed(ActionInit, err)
		return "", err
	}
	c.logger.Printf("init: user=%s status=%s", c.userID, r.Status)
	if err := c.Refresh(ctx); err != nil {
		return r.Status, err
	}
	return r.Status, nil
}

// LoadCatalog fetches the shop catalog once per session.
func (c *Controller) LoadCatalog(ctx context.Context) (game.Catalog, error) {
	if cat := c.store.Catalog(); cat != nil {
		return cat, nil
	}
	r, err := c.api.ShopItems(ctx)
	if err != nil {
		c.failed(ActionShop, err)
		return nil, err
	}
	c.store.SetCatalog(r.Catalog())
	return c.store.Catalog(), nil
}

// Shop lists catalog entries under a category, or under the store's filter when
// cat is empty.
func (c *Controller) Shop(ctx context.Context, cat game.Category) ([]game.CatalogEntry, error) {
	all, err := c.LoadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	if cat == "" {
		cat = c.store.Filter()
	}
	return all.Filter(cat), nil
}

func (c *Controller) SetFilter(cat game.Category) {
	c.store.SetFilter(cat)
	c.publish()
}

func (c *Controller) TopPlayers(ctx context.Context, limit int) ([]game.TopPlayer, error) {
	r, err := c.api.Top(ctx, limit)
	if err != nil {
		c.failed(ActionTop, err)
		return nil, err
	}
	return r.Players(), nil
}

func (c *Controller) Achievements(ctx context.Context) ([]game.Achievement, error) {
	r, err := c.api.Achievements(ctx, c.userID)
	if err != nil {
		c.failed(ActionAchievements, err)
		return nil, err
	}
	return r.List(), nil
}

func requirePending(s Snapshot) error {
	if s.PendingCatch == nil {
		return ErrNoPendingCatch
	}
	return nil
}

func soldOutcome(earned int64) outcome {
	return outcome{
		result:  OutcomeOK,
		message: fmt.Sprintf("+%d", earned),
		notices: []Notification{{Level: LevelSuccess, Text: fmt.Sprintf("Sold for %d", earned)}},
	}
}

func catchText(c game.Catch) string {
	s := fmt.Sprintf("Caught %s, %.2f kg, worth %d", c.Name, c.Weight, c.Price)
	if c.Golden {
		s = "Golden! " + s
	}
	return s
}
