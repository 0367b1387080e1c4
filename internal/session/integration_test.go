package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"rybalka.web/internal/devserver"
	"rybalka.web/internal/game"
	"rybalka.web/internal/protocol"
	"rybalka.web/internal/session"
	"rybalka.web/internal/transport/httpapi"
)

type harness struct {
	srv   *devserver.Server
	ctl   *session.Controller
	mu    sync.Mutex
	notes []session.Notification
}

func (h *harness) Notify(n session.Notification) {
	h.mu.Lock()
	h.notes = append(h.notes, n)
	h.mu.Unlock()
}

func (h *harness) last() session.Notification {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.notes) == 0 {
		return session.Notification{}
	}
	return h.notes[len(h.notes)-1]
}

func (h *harness) snap(t *testing.T) session.Snapshot {
	t.Helper()
	s, ok := h.ctl.Store().Snapshot()
	if !ok {
		t.Fatalf("no snapshot")
	}
	return s
}

func newHarness(t *testing.T, world *devserver.World, p devserver.Player) *harness {
	t.Helper()
	h := &harness{srv: devserver.New(devserver.Config{World: world, Seed: 7})}
	h.srv.SeedUser("u1", p)
	ts := httptest.NewServer(h.srv.Handler())
	t.Cleanup(ts.Close)

	api, err := httpapi.New(httpapi.Config{BaseURL: ts.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	h.ctl, err = session.New(session.Config{UserID: "u1", UserName: p.Name, API: api, Notifier: h})
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	if err := h.ctl.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return h
}

// Cast, then sell the catch.
func TestScenario_CastAndSell(t *testing.T) {
	h := newHarness(t, nil, devserver.Player{Name: "A", Worms: 3})
	h.srv.QueueCatch(devserver.Outcome{Fish: game.Catch{Name: "Pike", Type: "pike", Weight: 3.1, Price: 465}})
	ctx := context.Background()

	res, err := h.ctl.Cast(ctx)
	if err != nil {
		t.Fatalf("cast: %v", err)
	}
	if res.Catch == nil || res.Catch.Name != "Pike" {
		t.Fatalf("cast result=%+v", res)
	}
	s := h.snap(t)
	if s.PendingCatch == nil || s.PendingCatch.Price != 465 || s.Profile.Worms != 2 {
		t.Fatalf("after cast: pending=%+v worms=%d", s.PendingCatch, s.Profile.Worms)
	}
	if h.last().Level != session.LevelSuccess {
		t.Fatalf("notification=%+v", h.last())
	}

	earned, err := h.ctl.Sell(ctx)
	if err != nil || earned != 465 {
		t.Fatalf("sell earned=%d err=%v", earned, err)
	}
	s = h.snap(t)
	if s.PendingCatch != nil || s.Profile.Money != 465 {
		t.Fatalf("after sell: pending=%+v money=%d", s.PendingCatch, s.Profile.Money)
	}
}

func TestScenario_MissClearsPending(t *testing.T) {
	h := newHarness(t, nil, devserver.Player{Name: "A", Worms: 1})
	h.srv.QueueCatch(devserver.Outcome{Miss: true, Message: "You caught a sock"})

	res, err := h.ctl.Cast(context.Background())
	if err != nil {
		t.Fatalf("a miss is not an error: %v", err)
	}
	if !res.Missed || res.Message != "You caught a sock" {
		t.Fatalf("res=%+v", res)
	}
	s := h.snap(t)
	if s.PendingCatch != nil || s.Profile.Worms != 0 {
		t.Fatalf("snapshot=%+v", s)
	}
	if n := h.last(); n.Level != session.LevelInfo || n.Text != "You caught a sock" {
		t.Fatalf("notification=%+v", n)
	}
}

func TestScenario_KeepThenSellFromNet(t *testing.T) {
	h := newHarness(t, nil, devserver.Player{Name: "A", Worms: 2})
	h.srv.QueueCatch(
		devserver.Outcome{Fish: game.Catch{Name: "Crucian", Type: "crucian", Weight: 1, Price: 50}},
		devserver.Outcome{Fish: game.Catch{Name: "Catfish", Type: "catfish", Weight: 10, Price: 2000}},
	)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := h.ctl.Cast(ctx); err != nil {
			t.Fatalf("cast %d: %v", i, err)
		}
		if err := h.ctl.Keep(ctx); err != nil {
			t.Fatalf("keep %d: %v", i, err)
		}
	}
	s := h.snap(t)
	if len(s.KeepNet) != 2 || s.PendingCatch != nil {
		t.Fatalf("keep-net=%+v pending=%+v", s.KeepNet, s.PendingCatch)
	}

	earned, err := h.ctl.SellFromNet(ctx, 1)
	if err != nil || earned != 2000 {
		t.Fatalf("sellnet earned=%d err=%v", earned, err)
	}
	s = h.snap(t)
	if len(s.KeepNet) != 1 || s.KeepNet[0].Name != "Crucian" || s.Profile.Money != 2000 {
		t.Fatalf("after sellnet: %+v", s)
	}
}

// Equip an inventory item into an empty slot.
func TestScenario_Equip(t *testing.T) {
	h := newHarness(t, nil, devserver.Player{
		Name:      "A",
		Inventory: []game.Item{{Name: "Catchy spoon", Durability: 500, Effects: game.Effects{"chance_bonus": 0.1}}},
	})
	ctx := context.Background()
	if _, err := h.ctl.LoadCatalog(ctx); err != nil {
		t.Fatalf("catalog: %v", err)
	}

	if err := h.ctl.Equip(ctx, 0); err != nil {
		t.Fatalf("equip: %v", err)
	}
	s := h.snap(t)
	it, ok := s.Equipped.Get(game.SlotGear)
	if !ok || it.Name != "Catchy spoon" {
		t.Fatalf("gear=%+v ok=%v", it, ok)
	}
	for _, inv := range s.Inventory {
		if inv.Name == "Catchy spoon" {
			t.Fatalf("item still in inventory")
		}
	}
	if s.Bonuses.ChanceBonus != 0.1 {
		t.Fatalf("bonuses=%+v", s.Bonuses)
	}
}

// Buying something unaffordable is stopped locally.
func TestScenario_UnaffordableBuyIsGuarded(t *testing.T) {
	w := devserver.DefaultWorld()
	w.Items["Bent hook"] = devserver.Entry{Type: "gear", Price: 10}
	h := newHarness(t, &w, devserver.Player{Name: "A", Money: 5})

	err := h.ctl.BuyItem(context.Background(), "Bent hook")
	if !errors.Is(err, session.ErrInsufficientFunds) {
		t.Fatalf("err=%v want ErrInsufficientFunds", err)
	}
	if h.srv.Calls(protocol.PathBuy) != 0 {
		t.Fatalf("guard let the request through")
	}
	if h.snap(t).Profile.Money != 5 {
		t.Fatalf("money changed")
	}
}

// When the local guard passes on stale data the server's rejection wins.
func TestScenario_ServerRejectionIsAuthoritative(t *testing.T) {
	w := devserver.DefaultWorld()
	w.Items["Bent hook"] = devserver.Entry{Type: "gear", Price: 10}
	h := newHarness(t, &w, devserver.Player{Name: "A", Money: 5})
	h.ctl.Store().SetCatalog(game.Catalog{"Bent hook": {Name: "Bent hook", Slot: game.SlotGear, Price: 1}})

	err := h.ctl.BuyItem(context.Background(), "Bent hook")
	if session.Classify(err) != session.KindRejected {
		t.Fatalf("kind=%v err=%v want rejected", session.Classify(err), err)
	}
	if n := h.last(); n.Level != session.LevelError || n.Text != protocol.ErrMsgNotEnoughMoney {
		t.Fatalf("notification=%+v", n)
	}
	if h.snap(t).Profile.Money != 5 || h.ctl.Store().IsBusy() {
		t.Fatalf("state changed after rejection")
	}
}

func TestScenario_BuyWorms(t *testing.T) {
	h := newHarness(t, nil, devserver.Player{Name: "A", Money: 150, Worms: 1})

	cost, err := h.ctl.BuyWorms(context.Background(), 10)
	if err != nil || cost != 100 {
		t.Fatalf("cost=%d err=%v", cost, err)
	}
	s := h.snap(t)
	if s.Profile.Worms != 11 || s.Profile.Money != 50 {
		t.Fatalf("profile=%+v", s.Profile)
	}
}

func TestScenario_BuyBag(t *testing.T) {
	h := newHarness(t, nil, devserver.Player{Name: "A", Money: 600_000, BagLimit: 20})
	limit, err := h.ctl.BuyBag(context.Background())
	if err != nil || limit != 30 {
		t.Fatalf("limit=%d err=%v", limit, err)
	}
	if s := h.snap(t); s.Profile.BagLimit != 30 || s.Profile.Money != 100_000 {
		t.Fatalf("profile=%+v", s.Profile)
	}
}

// Two casts while one is in flight: one fish call, the other dropped.
func TestScenario_BusyExclusion(t *testing.T) {
	h := newHarness(t, nil, devserver.Player{Name: "A", Worms: 5})
	entered := make(chan struct{}, 1)
	gate := make(chan struct{})
	h.srv.SetHold(func(path string) {
		if path == protocol.PathFish {
			entered <- struct{}{}
			<-gate
		}
	})

	done := make(chan error, 1)
	go func() {
		_, err := h.ctl.Cast(context.Background())
		done <- err
	}()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatalf("first cast never reached the server")
	}
	if _, err := h.ctl.Cast(context.Background()); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("second cast err=%v want ErrBusy", err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first cast: %v", err)
	}
	if got := h.srv.Calls(protocol.PathFish); got != 1 {
		t.Fatalf("fish calls=%d want 1", got)
	}
}

func TestTransportFailureKeepsLastGoodSnapshot(t *testing.T) {
	h := newHarness(t, nil, devserver.Player{Name: "A", Money: 150, Worms: 1})
	before := h.snap(t)
	h.srv.FailNext(protocol.PathBuyWorms, http.StatusBadGateway)

	_, err := h.ctl.BuyWorms(context.Background(), 1)
	if session.Classify(err) != session.KindTransport {
		t.Fatalf("kind=%v err=%v", session.Classify(err), err)
	}
	after := h.snap(t)
	if after.Profile.Money != before.Profile.Money || !after.FetchedAt.Equal(before.FetchedAt) {
		t.Fatalf("snapshot replaced after transport failure")
	}
	if n := h.last(); n.Level != session.LevelError || !strings.Contains(n.Text, "connection problem") {
		t.Fatalf("notification=%+v", n)
	}
	if h.ctl.Store().IsBusy() {
		t.Fatalf("busy not released")
	}
}

// Slots never hold two items and items are neither lost nor duplicated.
func TestSlotUniquenessAcrossEquipSequences(t *testing.T) {
	h := newHarness(t, nil, devserver.Player{
		Name: "A",
		Inventory: []game.Item{
			{Name: "Catchy spoon", Durability: 500},
			{Name: "Ultra spoon", Durability: 500},
			{Name: "Light beer", Durability: 500},
			{Name: "Golden worm", Durability: 500},
		},
	})
	ctx := context.Background()
	if _, err := h.ctl.LoadCatalog(ctx); err != nil {
		t.Fatalf("catalog: %v", err)
	}

	steps := []func() error{
		func() error { return h.ctl.Equip(ctx, 0) },
		func() error { return h.ctl.Equip(ctx, 0) }, // Ultra spoon: gear already taken
		func() error { return h.ctl.Equip(ctx, 1) },
		func() error { return h.ctl.Unequip(ctx, game.SlotGear) },
		func() error { return h.ctl.Equip(ctx, 0) },
		func() error { return h.ctl.Unequip(ctx, game.SlotBeverage) },
		func() error { return h.ctl.Unequip(ctx, game.SlotBeverage) },
	}
	for i, step := range steps {
		err := step()
		if err != nil && session.Classify(err) != session.KindGuard {
			t.Fatalf("step %d: %v", i, err)
		}
		s := h.snap(t)
		seen := map[string]int{}
		for slot, it := range s.Equipped {
			if !slot.Valid() {
				t.Fatalf("step %d: bad slot %q", i, slot)
			}
			seen[it.Name]++
		}
		for _, it := range s.Inventory {
			seen[it.Name]++
		}
		if len(seen) != 4 {
			t.Fatalf("step %d: items=%v", i, seen)
		}
		for name, n := range seen {
			if n != 1 {
				t.Fatalf("step %d: %s appears %d times", i, name, n)
			}
		}
	}
	if h.srv.Calls(protocol.PathEquip) != 3 {
		t.Fatalf("equip calls=%d want 3", h.srv.Calls(protocol.PathEquip))
	}
}

func TestRegisterAndReads(t *testing.T) {
	h := newHarness(t, nil, devserver.Player{Name: "A", Money: 10})
	ctx := context.Background()

	status, err := h.ctl.Register(ctx)
	if err != nil || status != protocol.StatusExisting {
		t.Fatalf("status=%q err=%v", status, err)
	}
	top, err := h.ctl.TopPlayers(ctx, 5)
	if err != nil || len(top) != 1 || top[0].Rank != 1 || top[0].Money != 10 {
		t.Fatalf("top=%+v err=%v", top, err)
	}
	ach, err := h.ctl.Achievements(ctx)
	if err != nil || len(ach) == 0 {
		t.Fatalf("achievements=%+v err=%v", ach, err)
	}
	shop, err := h.ctl.Shop(ctx, game.CategoryBait)
	if err != nil || len(shop) == 0 {
		t.Fatalf("shop=%+v err=%v", shop, err)
	}
	for _, e := range shop {
		if e.Slot != game.SlotBait {
			t.Fatalf("filter leaked %+v", e)
		}
	}
}
