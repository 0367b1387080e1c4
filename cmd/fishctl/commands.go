package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"rybalka.web/internal/game"
	"rybalka.web/internal/game/bonus"
	"rybalka.web/internal/session"
)

var errUsage = errors.New("usage")

// parseCommand maps command-line words onto a session command.
func parseCommand(args []string) (session.Command, error) {
	if len(args) == 0 {
		return session.Command{}, fmt.Errorf("%w: missing command", errUsage)
	}
	word, rest := strings.ToLower(args[0]), args[1:]
	if word == "state" {
		word = string(session.ActionRefresh)
	}
	action, ok := session.ParseAction(word)
	if !ok {
		return session.Command{}, fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
	cmd := session.Command{Action: action}

	intArg := func(name string, def int, required bool) (int, error) {
		if len(rest) == 0 {
			if required {
				return 0, fmt.Errorf("%w: %s needs %s", errUsage, word, name)
			}
			return def, nil
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be a number, got %q", errUsage, name, rest[0])
		}
		return n, nil
	}

	var err error
	switch action {
	case session.ActionSellNet, session.ActionEquip:
		cmd.Index, err = intArg("an index", 0, true)
	case session.ActionBuyWorms:
		cmd.Count, err = intArg("a count", 1, false)
	case session.ActionTop:
		cmd.Limit, err = intArg("a limit", 0, false)
	case session.ActionUnequip:
		if len(rest) == 0 {
			return cmd, fmt.Errorf("%w: unequip needs a slot", errUsage)
		}
		cmd.Slot = rest[0]
	case session.ActionBuy:
		cmd.Name = strings.TrimSpace(strings.Join(rest, " "))
		if cmd.Name == "" {
			return cmd, fmt.Errorf("%w: buy needs an item name", errUsage)
		}
	case session.ActionShop, session.ActionFilter:
		if len(rest) > 0 {
			cmd.Category = rest[0]
		}
		if action == session.ActionFilter && cmd.Category == "" {
			return cmd, fmt.Errorf("%w: filter needs a category", errUsage)
		}
		if _, err := game.ParseCategory(cmd.Category); err != nil {
			return cmd, fmt.Errorf("%w: %v", errUsage, err)
		}
	}
	return cmd, err
}

// printer writes notifications as they happen.
type printer struct{ w io.Writer }

func (p printer) Notify(n session.Notification) {
	mark := map[session.Level]string{
		session.LevelInfo:        "·",
		session.LevelSuccess:     "✓",
		session.LevelError:       "✗",
		session.LevelAchievement: "🏆",
	}[n.Level]
	fmt.Fprintf(p.w, "%s %s\n", mark, n.Text)
}

func (a *app) print(res session.Result) error {
	if a.json {
		return writeJSON(a.out, res)
	}
	switch res.Action {
	case session.ActionInit:
		fmt.Fprintf(a.out, "player %s (%s): %s\n", a.id.Name, a.id.UserID, res.Status)
		a.printView()
	case session.ActionRefresh:
		a.printView()
	case session.ActionShop:
		a.printShop(res.Shop)
	case session.ActionTop:
		for _, p := range res.Top {
			fmt.Fprintf(a.out, "%3d. %-20s %12d  🏆%d\n", p.Rank, p.Name, p.Money, p.AchievementsCount)
		}
	case session.ActionAchievements:
		for _, ach := range res.Achievements {
			mark := "  "
			if ach.Unlocked {
				mark = "✓ "
			}
			fmt.Fprintf(a.out, "%s%s: %s\n", mark, ach.Name, ach.Description)
		}
	case session.ActionBuyBag:
		fmt.Fprintf(a.out, "keep-net holds %d fish now\n", res.Amount)
		a.printStatus()
	case session.ActionFilter:
	default:
		a.printStatus()
	}
	return nil
}

func (a *app) printStatus() {
	snap, ok := a.store.Snapshot()
	if !ok {
		return
	}
	p := snap.Profile
	fmt.Fprintf(a.out, "💰 %d  🪱 %d  🧺 %d/%d\n", p.Money, p.Worms, len(snap.KeepNet), p.BagLimit)
}

func (a *app) printView() {
	v := a.store.View()
	if !v.Loaded {
		fmt.Fprintln(a.out, "no state loaded")
		return
	}
	printSnapshot(a.out, v.Snapshot)
}

func printSnapshot(w io.Writer, s session.Snapshot) {
	p := s.Profile
	fmt.Fprintf(w, "%s  💰 %d  🪱 %d  🧺 %d/%d\n", p.Name, p.Money, p.Worms, len(s.KeepNet), p.BagLimit)

	fmt.Fprintln(w, "equipped:")
	for _, slot := range game.SlotKinds {
		it, ok := s.Equipped.Get(slot)
		if !ok {
			fmt.Fprintf(w, "  %-14s empty\n", slot.Label())
			continue
		}
		fmt.Fprintf(w, "  %-14s %s (%d)\n", slot.Label(), it.Name, it.Durability)
	}
	if lines := s.Bonuses.Lines(); len(lines) > 0 {
		fmt.Fprintln(w, "bonuses:")
		for _, l := range lines {
			fmt.Fprintf(w, "  %s\n", l)
		}
	}
	if len(s.Inventory) > 0 {
		fmt.Fprintln(w, "inventory:")
		for i, it := range s.Inventory {
			fmt.Fprintf(w, "  [%d] %s (%d)\n", i, it.Name, it.Durability)
		}
	}
	if len(s.KeepNet) > 0 {
		fmt.Fprintln(w, "keep-net:")
		for i, c := range s.KeepNet {
			fmt.Fprintf(w, "  [%d] %s %.2f kg, %d\n", i, c.Name, c.Weight, c.Price)
		}
	}
	if c := s.PendingCatch; c != nil {
		fmt.Fprintf(w, "on the hook: %s %.2f kg, worth %d (keep or sell)\n", c.Name, c.Weight, c.Price)
	}
}

func (a *app) printShop(entries []game.CatalogEntry) {
	if len(entries) == 0 {
		fmt.Fprintf(a.out, "worms: %d each (fishctl worms <n>)\n", a.cfg.WormPrice)
	}
	for _, e := range entries {
		fmt.Fprintf(a.out, "%-28s %-12s %10d  %s\n", e.Name, e.Slot, e.Price, strings.Join(bonus.Describe(e.Effects), ", "))
	}
}

func printHistory(w io.Writer, entries []session.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no recorded actions")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-8s %-9s 💰%-10d 🪱%-4d %s\n",
			e.At.Local().Format("2006-01-02 15:04:05"), e.Action, e.Outcome, e.Money, e.Worms, e.Message)
	}
}

func printOutcomeCounts(w io.Writer, counts map[session.Outcome]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for o := range counts {
		keys = append(keys, string(o))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[session.Outcome(k)]))
	}
	fmt.Fprintf(w, "totals: %s\n", strings.Join(parts, " "))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
