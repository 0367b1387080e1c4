// Package devserver is an in-memory implementation of the game server's HTTP
// contract, for local play and integration tests.
package devserver

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"rybalka.web/internal/game"
	"rybalka.web/internal/game/bonus"
	"rybalka.web/internal/protocol"
)

type Config struct {
	World  *World // nil uses DefaultWorld
	Seed   int64
	Logger *log.Logger

	// StartBagLimit overrides the world's starting keep-net size when set.
	StartBagLimit int

	WormPrice               int64
	BagUpgradeCost          int64
	BagUpgradeExpensiveCost int64
	BagUpgradeExpensiveFrom int
	BagUpgradeIncrement     int
}

// Player is a user's server-side record.
type Player struct {
	Name         string
	Money        int64
	Worms        int
	BagLimit     int
	Achievements []string
	Inventory    []game.Item
	Equipped     game.Equipped
	KeepNet      []game.Catch
	LastCatch    *game.Catch
}

func (p Player) clone() Player {
	out := p
	out.Achievements = append([]string(nil), p.Achievements...)
	out.Inventory = make([]game.Item, len(p.Inventory))
	for i, it := range p.Inventory {
		out.Inventory[i] = it.Clone()
	}
	out.Equipped = p.Equipped.Clone()
	out.KeepNet = append([]game.Catch(nil), p.KeepNet...)
	if p.LastCatch != nil {
		c := *p.LastCatch
		out.LastCatch = &c
	}
	return out
}

// Outcome scripts the result of the next cast.
type Outcome struct {
	Miss    bool
	Message string
	Fish    game.Catch
}

type Server struct {
	cfg     Config
	world   World
	catalog game.Catalog
	logger  *log.Logger
	now     func() time.Time

	mu     sync.Mutex
	rng    *rand.Rand
	users  map[string]*Player
	script []Outcome
	calls  map[string]int
	fail   map[string]int

	hold func(path string)
}

func New(cfg Config) *Server {
	w := DefaultWorld()
	if cfg.World != nil {
		w = *cfg.World
	}
	if cfg.StartBagLimit > 0 {
		w.Start.BagLimit = cfg.StartBagLimit
	}
	if cfg.WormPrice <= 0 {
		cfg.WormPrice = 10
	}
	if cfg.BagUpgradeCost <= 0 {
		cfg.BagUpgradeCost = 500_000
	}
	if cfg.BagUpgradeExpensiveCost <= 0 {
		cfg.BagUpgradeExpensiveCost = 10_000_000
	}
	if cfg.BagUpgradeExpensiveFrom <= 0 {
		cfg.BagUpgradeExpensiveFrom = 40
	}
	if cfg.BagUpgradeIncrement <= 0 {
		cfg.BagUpgradeIncrement = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		cfg:     cfg,
		world:   w,
		catalog: w.Catalog(),
		logger:  logger,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		users:   map[string]*Player{},
		calls:   map[string]int{},
		fail:    map[string]int{},
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	routes := []struct {
		pattern string
		h       http.HandlerFunc
	}{
		{"POST " + protocol.PathInit, s.handleInit},
		{"GET " + protocol.PathState, s.handleState},
		{"POST " + protocol.PathFish, s.handleFish},
		{"POST " + protocol.PathKeep, s.handleKeep},
		{"POST " + protocol.PathSell, s.handleSell},
		{"POST " + protocol.PathSellFish, s.handleSellFish},
		{"POST " + protocol.PathEquip, s.handleEquip},
		{"POST " + protocol.PathUnequip, s.handleUnequip},
		{"GET " + protocol.PathShopItems, s.handleShopItems},
		{"POST " + protocol.PathBuy, s.handleBuy},
		{"POST " + protocol.PathBuyWorms, s.handleBuyWorms},
		{"POST " + protocol.PathBuyBag, s.handleBuyBag},
		{"GET " + protocol.PathTop, s.handleTop},
		{"GET " + protocol.PathAchievements, s.handleAchievements},
		{"GET " + protocol.PathHealth, s.handleHealth},
	}
	for _, rt := range routes {
		mux.HandleFunc(rt.pattern, s.instrument(rt.h))
	}
	mux.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		writeJSON(rw, http.StatusNotFound, map[string]any{"error": protocol.ErrMsgEndpointNotFound})
	})
	return mux
}

// instrument counts calls, runs the hold hook and serves injected failures.
func (s *Server) instrument(h http.HandlerFunc) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		s.mu.Lock()
		s.calls[path]++
		hold := s.hold
		status := s.fail[path]
		if status != 0 {
			delete(s.fail, path)
		}
		s.mu.Unlock()

		if hold != nil {
			hold(path)
		}
		if status != 0 {
			http.Error(rw, http.StatusText(status), status)
			return
		}
		h(rw, r)
	}
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// SetHold installs a hook run before each request is served. Tests use it to keep
// a request in flight.
func (s *Server) SetHold(fn func(path string)) {
	s.mu.Lock()
	s.hold = fn
	s.mu.Unlock()
}

// FailNext makes the next request to path answer status with a plain-text body.
func (s *Server) FailNext(path string, status int) {
	s.mu.Lock()
	s.fail[path] = status
	s.mu.Unlock()
}

func (s *Server) QueueCatch(o ...Outcome) {
	s.mu.Lock()
	s.script = append(s.script, o...)
	s.mu.Unlock()
}

func (s *Server) SeedUser(id string, p Player) {
	if p.BagLimit <= 0 {
		p.BagLimit = s.world.Start.BagLimit
	}
	if p.Equipped == nil {
		p.Equipped = game.Equipped{}
	}
	cp := p.clone()
	s.mu.Lock()
	s.users[id] = &cp
	s.mu.Unlock()
}

func (s *Server) User(id string) (Player, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[id]
	if !ok {
		return Player{}, false
	}
	return p.clone(), true
}

func (s *Server) Catalog() game.Catalog { return s.catalog }

func (s *Server) handleInit(rw http.ResponseWriter, r *http.Request) {
	var req protocol.InitRequest
	if !decode(rw, r, &req) {
		return
	}
	if req.UserID == "" {
		s.reject(rw, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Name == "" {
		req.Name = "Fisher"
	}
	s.mu.Lock()
	status := protocol.StatusExisting
	if p, ok := s.users[req.UserID]; ok {
		p.Name = req.Name
	} else {
		st := s.world.Start
		s.users[req.UserID] = &Player{
			Name:     req.Name,
			Money:    st.Money,
			Worms:    st.Worms,
			BagLimit: st.BagLimit,
			Equipped: game.Equipped{},
		}
		status = protocol.StatusRegistered
	}
	s.mu.Unlock()
	writeJSON(rw, http.StatusOK, protocol.InitResponse{Status: status})
}

func (s *Server) handleState(rw http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("user_id")
	s.mu.Lock()
	p, ok := s.users[id]
	var out protocol.StatePayload
	if ok {
		out = statePayload(p)
	}
	s.mu.Unlock()
	if !ok {
		s.reject(rw, http.StatusNotFound, protocol.ErrMsgUserNotFound)
		return
	}
	writeJSON(rw, http.StatusOK, out)
}

func statePayload(p *Player) protocol.StatePayload {
	out := protocol.StatePayload{
		User: protocol.UserWire{
			Name:         p.Name,
			Money:        p.Money,
			Worms:        p.Worms,
			BagLimit:     p.BagLimit,
			Achievements: append([]string{}, p.Achievements...),
		},
		EquippedItems: make(map[string]*protocol.ItemWire, len(game.SlotKinds)),
		Inventory:     make([]protocol.ItemWire, 0, len(p.Inventory)),
		Podsak:        make([]protocol.FishWire, 0, len(p.KeepNet)),
	}
	for _, slot := range game.SlotKinds {
		if it, ok := p.Equipped[slot]; ok {
			w := protocol.ItemToWire(it)
			out.EquippedItems[string(slot)] = &w
		} else {
			out.EquippedItems[string(slot)] = nil
		}
	}
	for _, it := range p.Inventory {
		out.Inventory = append(out.Inventory, protocol.ItemToWire(it))
	}
	for _, c := range p.KeepNet {
		out.Podsak = append(out.Podsak, protocol.CatchToWire(c))
	}
	if p.LastCatch != nil {
		w := protocol.CatchToWire(*p.LastCatch)
		out.LastCatch = &w
	}
	b := bonus.Aggregate(p.Equipped)
	out.Bonuses = map[string]float64{}
	for _, k := range bonus.Kinds {
		out.Bonuses[string(k)] = b.Get(k)
	}
	return out
}

func (s *Server) handleFish(rw http.ResponseWriter, r *http.Request) {
	var req protocol.UserRequest
	if !decode(rw, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[req.UserID]
	if !ok {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgUserNotFound)
		return
	}
	if p.Worms <= 0 {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgNoWorms)
		return
	}
	p.Worms--
	bonuses := bonus.Aggregate(p.Equipped)
	broken := s.wearLocked(p)
	worms := p.Worms

	o := s.nextOutcomeLocked(bonuses)
	if o.Miss {
		p.LastCatch = nil
		writeJSON(rw, http.StatusOK, protocol.FishResponse{
			Envelope:    protocol.Envelope{Success: protocol.Bool(false), Message: o.Message},
			WormsLeft:   &worms,
			BrokenItems: broken,
		})
		return
	}

	c := o.Fish
	if c.CaughtAt.IsZero() {
		c.CaughtAt = s.now().UTC()
	}
	p.LastCatch = &c
	var fresh []achievement
	p.Achievements, fresh = unlock(p.Achievements, &c, p.Money)

	w := protocol.CatchToWire(c)
	resp := protocol.FishResponse{
		Envelope:    protocol.Envelope{Success: protocol.Bool(true)},
		Fish:        &w,
		WormsLeft:   &worms,
		BrokenItems: broken,
		IsGiant:     c.Weight > 200 && !c.Golden,
	}
	for _, a := range fresh {
		resp.NewAchievements = append(resp.NewAchievements, protocol.AchievementWire{ID: a.id, Name: a.name, Description: a.description})
	}
	writeJSON(rw, http.StatusOK, resp)
}

// wearLocked takes one durability point off every equipped item and removes the
// ones that reach zero.
func (s *Server) wearLocked(p *Player) []string {
	var broken []string
	for _, slot := range game.SlotKinds {
		it, ok := p.Equipped[slot]
		if !ok {
			continue
		}
		it.Durability--
		if it.Durability <= 0 {
			broken = append(broken, it.Name)
			delete(p.Equipped, slot)
			continue
		}
		p.Equipped[slot] = it
	}
	return broken
}

func (s *Server) nextOutcomeLocked(b bonus.Set) Outcome {
	if len(s.script) > 0 {
		o := s.script[0]
		s.script = s.script[1:]
		if o.Miss && o.Message == "" {
			o.Message = s.missMessageLocked()
		}
		return o
	}
	if s.rng.Float64() >= s.world.BaseCatchChance+b.ChanceBonus {
		return Outcome{Miss: true, Message: s.missMessageLocked()}
	}
	return Outcome{Fish: s.rollFishLocked(b)}
}

func (s *Server) missMessageLocked() string {
	if len(s.world.MissMessages) == 0 {
		return "Nothing bit"
	}
	return s.world.MissMessages[s.rng.Intn(len(s.world.MissMessages))]
}

func (s *Server) rollFishLocked(b bonus.Set) game.Catch {
	if s.rng.Float64() < s.world.GoldenChance {
		g := s.world.Golden
		return game.Catch{
			Name:   g.Name,
			Type:   g.Type,
			Weight: g.MinWeight,
			Price:  int64(g.MinWeight * g.PricePerKg * b.PriceMultiplier),
			Golden: true,
		}
	}
	sp := s.world.Species[s.rng.Intn(len(s.world.Species))]
	var weight float64
	if sp.Type == "catfish" && s.rng.Float64() < 0.001+b.RareWeightBonus {
		weight = sp.MaxWeight + 0.01 + math.Min(s.rng.ExpFloat64()*10, 450)
	} else {
		weight = sp.MinWeight + s.rng.Float64()*(sp.MaxWeight-sp.MinWeight)
	}
	weight = math.Round(weight*100) / 100
	return game.Catch{
		Name:   sp.Name,
		Type:   sp.Type,
		Weight: weight,
		Price:  int64(weight * sp.PricePerKg * b.PriceMultiplier),
	}
}

func (s *Server) handleKeep(rw http.ResponseWriter, r *http.Request) {
	var req protocol.UserRequest
	if !decode(rw, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[req.UserID]
	switch {
	case !ok:
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgUserNotFound)
		return
	case p.LastCatch == nil:
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgNoFishToKeep)
		return
	case len(p.KeepNet) >= p.BagLimit:
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgPodsakFull)
		return
	}
	c := *p.LastCatch
	p.KeepNet = append(p.KeepNet, c)
	p.LastCatch = nil
	w := protocol.CatchToWire(c)
	writeJSON(rw, http.StatusOK, protocol.KeepResponse{
		Envelope:    protocol.Envelope{Success: protocol.Bool(true)},
		FishKept:    &w,
		PodsakCount: len(p.KeepNet),
	})
}

func (s *Server) handleSell(rw http.ResponseWriter, r *http.Request) {
	var req protocol.UserRequest
	if !decode(rw, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[req.UserID]
	if !ok {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgUserNotFound)
		return
	}
	if p.LastCatch == nil {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgNoFishToSell)
		return
	}
	c := *p.LastCatch
	p.LastCatch = nil
	s.sellLocked(rw, p, c)
}

func (s *Server) handleSellFish(rw http.ResponseWriter, r *http.Request) {
	var req protocol.SellFishRequest
	if !decode(rw, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[req.UserID]
	if !ok {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgUserNotFound)
		return
	}
	if req.FishIndex < 0 || req.FishIndex >= len(p.KeepNet) {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgInvalidFishIdx)
		return
	}
	c := p.KeepNet[req.FishIndex]
	p.KeepNet = append(p.KeepNet[:req.FishIndex], p.KeepNet[req.FishIndex+1:]...)
	s.sellLocked(rw, p, c)
}

func (s *Server) sellLocked(rw http.ResponseWriter, p *Player, c game.Catch) {
	p.Money += c.Price
	p.Achievements, _ = unlock(p.Achievements, nil, p.Money)
	w := protocol.CatchToWire(c)
	writeJSON(rw, http.StatusOK, protocol.SellResponse{
		Envelope:    protocol.Envelope{Success: protocol.Bool(true)},
		MoneyEarned: c.Price,
		NewBalance:  p.Money,
		FishSold:    &w,
	})
}

func (s *Server) handleEquip(rw http.ResponseWriter, r *http.Request) {
	var req protocol.EquipRequest
	if !decode(rw, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[req.UserID]
	if !ok {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgUserNotFound)
		return
	}
	if req.ItemIndex < 0 || req.ItemIndex >= len(p.Inventory) {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgInvalidItemIdx)
		return
	}
	it := p.Inventory[req.ItemIndex]
	slot, ok := s.catalog.SlotOf(it)
	if !ok {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgUnknownItemType)
		return
	}
	if p.Equipped.Occupied(slot) {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgSlotOccupied)
		return
	}
	it.Slot = slot
	p.Equipped[slot] = it
	p.Inventory = append(p.Inventory[:req.ItemIndex], p.Inventory[req.ItemIndex+1:]...)
	writeJSON(rw, http.StatusOK, protocol.EquipResponse{
		Envelope:     protocol.Envelope{Success: protocol.Bool(true)},
		ItemEquipped: it.Name,
		Slot:         string(slot),
	})
}

func (s *Server) handleUnequip(rw http.ResponseWriter, r *http.Request) {
	var req protocol.UnequipRequest
	if !decode(rw, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[req.UserID]
	if !ok {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgUserNotFound)
		return
	}
	slot := game.SlotKind(req.Slot)
	if !slot.Valid() {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgInvalidSlot)
		return
	}
	it, ok := p.Equipped[slot]
	if !ok {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgSlotEmpty)
		return
	}
	delete(p.Equipped, slot)
	if it.Durability > 0 {
		p.Inventory = append(p.Inventory, it)
	}
	writeJSON(rw, http.StatusOK, protocol.UnequipResponse{
		Envelope:       protocol.Envelope{Success: protocol.Bool(true)},
		ItemUnequipped: it.Name,
		Slot:           string(slot),
	})
}

func (s *Server) handleShopItems(rw http.ResponseWriter, r *http.Request) {
	items := make(map[string]protocol.CatalogEntryWire, len(s.world.Items))
	for name, e := range s.world.Items {
		items[name] = protocol.CatalogEntryWire{Type: e.Type, Price: e.Price, Effect: e.Effect}
	}
	writeJSON(rw, http.StatusOK, protocol.ShopItemsResponse{Items: items})
}

// handleBuy puts the bought item into the inventory; the player equips it separately.
func (s *Server) handleBuy(rw http.ResponseWriter, r *http.Request) {
	var req protocol.BuyRequest
	if !decode(rw, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[req.UserID]
	if !ok {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgUserNotFound)
		return
	}
	e, ok := s.catalog.Lookup(req.ItemName)
	if !ok {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgItemNotFound)
		return
	}
	if p.Money < e.Price {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgNotEnoughMoney)
		return
	}
	if p.Equipped.Occupied(e.Slot) {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgSlotOccupied)
		return
	}
	p.Money -= e.Price
	p.Inventory = append(p.Inventory, game.Item{
		Name:       e.Name,
		Slot:       e.Slot,
		Durability: s.world.Start.Durability,
		Effects:    e.Effects.Clone(),
	})
	writeJSON(rw, http.StatusOK, protocol.BuyResponse{
		Envelope:   protocol.Envelope{Success: protocol.Bool(true)},
		ItemBought: e.Name,
		NewBalance: p.Money,
	})
}

func (s *Server) handleBuyWorms(rw http.ResponseWriter, r *http.Request) {
	req := protocol.BuyWormsRequest{Count: 1}
	if !decode(rw, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[req.UserID]
	if !ok {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgUserNotFound)
		return
	}
	if req.Count <= 0 {
		s.reject(rw, http.StatusBadRequest, "Invalid count")
		return
	}
	cost := int64(req.Count) * s.cfg.WormPrice
	if p.Money < cost {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgNotEnoughMoney)
		return
	}
	p.Money -= cost
	p.Worms += req.Count
	writeJSON(rw, http.StatusOK, protocol.BuyWormsResponse{
		Envelope:    protocol.Envelope{Success: protocol.Bool(true)},
		WormsBought: req.Count,
		Cost:        cost,
		NewBalance:  p.Money,
		TotalWorms:  p.Worms,
	})
}

func (s *Server) handleBuyBag(rw http.ResponseWriter, r *http.Request) {
	var req protocol.UserRequest
	if !decode(rw, r, &req) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[req.UserID]
	if !ok {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgUserNotFound)
		return
	}
	cost := s.cfg.BagUpgradeCost
	if p.BagLimit >= s.cfg.BagUpgradeExpensiveFrom {
		cost = s.cfg.BagUpgradeExpensiveCost
	}
	if p.Money < cost {
		s.reject(rw, http.StatusBadRequest, protocol.ErrMsgNotEnoughMoney)
		return
	}
	p.Money -= cost
	p.BagLimit += s.cfg.BagUpgradeIncrement
	writeJSON(rw, http.StatusOK, protocol.BuyBagResponse{
		Envelope:    protocol.Envelope{Success: protocol.Bool(true)},
		NewBagLimit: p.BagLimit,
		Cost:        cost,
		NewBalance:  p.Money,
	})
}

func (s *Server) handleTop(rw http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	s.mu.Lock()
	players := make([]protocol.TopPlayerWire, 0, len(s.users))
	for _, p := range s.users {
		players = append(players, protocol.TopPlayerWire{Name: p.Name, Money: p.Money, AchievementsCount: len(p.Achievements)})
	}
	s.mu.Unlock()
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Money != players[j].Money {
			return players[i].Money > players[j].Money
		}
		return players[i].Name < players[j].Name
	})
	if len(players) > limit {
		players = players[:limit]
	}
	for i := range players {
		players[i].Rank = i + 1
	}
	writeJSON(rw, http.StatusOK, protocol.TopResponse{TopPlayers: players})
}

func (s *Server) handleAchievements(rw http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("user_id")
	list := make([]protocol.AchievementWire, 0, len(achievements))
	if id == "" {
		for _, a := range achievements {
			list = append(list, protocol.AchievementWire{ID: a.id, Name: a.name, Description: a.description})
		}
		writeJSON(rw, http.StatusOK, protocol.AchievementsResponse{AllAchievements: list})
		return
	}
	s.mu.Lock()
	p, ok := s.users[id]
	have := map[string]bool{}
	if ok {
		for _, a := range p.Achievements {
			have[a] = true
		}
	}
	s.mu.Unlock()
	if !ok {
		s.reject(rw, http.StatusNotFound, protocol.ErrMsgUserNotFound)
		return
	}
	for _, a := range achievements {
		list = append(list, protocol.AchievementWire{ID: a.id, Name: a.name, Description: a.description, Unlocked: have[a.id]})
	}
	writeJSON(rw, http.StatusOK, protocol.AchievementsResponse{Achievements: list})
}

func (s *Server) handleHealth(rw http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	n := len(s.users)
	s.mu.Unlock()
	writeJSON(rw, http.StatusOK, protocol.HealthResponse{Status: "healthy", UsersCount: n, Message: "fishing game api is running"})
}

func (s *Server) reject(rw http.ResponseWriter, status int, msg string) {
	s.logger.Printf("reject status=%d msg=%q", status, msg)
	writeJSON(rw, status, protocol.Envelope{Success: protocol.Bool(false), Error: msg})
}

func decode(rw http.ResponseWriter, r *http.Request, v any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(rw, http.StatusBadRequest, protocol.Envelope{Error: "bad body"})
		return false
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeJSON(rw, http.StatusBadRequest, protocol.Envelope{Error: fmt.Sprintf("bad json: %v", err)})
		return false
	}
	return true
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("content-type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}
