package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"rybalka.web/internal/game"
	"rybalka.web/internal/transport/httpapi"
)

type Action string

const (
	ActionInit         Action = "init"
	ActionRefresh      Action = "refresh"
	ActionCast         Action = "cast"
	ActionKeep         Action = "keep"
	ActionSell         Action = "sell"
	ActionSellNet      Action = "sellnet"
	ActionEquip        Action = "equip"
	ActionUnequip      Action = "unequip"
	ActionBuy          Action = "buy"
	ActionBuyWorms     Action = "worms"
	ActionBuyBag       Action = "bag"
	ActionShop         Action = "shop"
	ActionFilter       Action = "filter"
	ActionTop          Action = "top"
	ActionAchievements Action = "achievements"
)

var actionVerbs = map[Action]string{
	ActionInit:         "sign in",
	ActionRefresh:      "refresh",
	ActionCast:         "cast",
	ActionKeep:         "keep the fish",
	ActionSell:         "sell the fish",
	ActionSellNet:      "sell from the keep-net",
	ActionEquip:        "equip",
	ActionUnequip:      "unequip",
	ActionBuy:          "buy",
	ActionBuyWorms:     "buy worms",
	ActionBuyBag:       "upgrade the bag",
	ActionShop:         "load the shop",
	ActionFilter:       "filter",
	ActionTop:          "load the leaderboard",
	ActionAchievements: "load achievements",
}

func (a Action) Verb() string {
	if v, ok := actionVerbs[a]; ok {
		return v
	}
	return string(a)
}

func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	_, ok := actionVerbs[a]
	return a, ok
}

// Command is a parsed user gesture. Only the fields its Action uses are read.
type Command struct {
	Action   Action `json:"action"`
	Index    int    `json:"index,omitempty"`
	Slot     string `json:"slot,omitempty"`
	Name     string `json:"name,omitempty"`
	Count    int    `json:"count,omitempty"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type Result struct {
	Action       Action              `json:"action"`
	Cast         *CastResult         `json:"cast,omitempty"`
	Amount       int64               `json:"amount,omitempty"`
	Status       string              `json:"status,omitempty"`
	Shop         []game.CatalogEntry `json:"shop,omitempty"`
	Top          []game.TopPlayer    `json:"top,omitempty"`
	Achievements []game.Achievement  `json:"achievements,omitempty"`
}

// Dispatch routes a command to the matching controller operation.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) (Result, error) {
	res := Result{Action: cmd.Action}
	var err error
	switch cmd.Action {
	case ActionInit:
		res.Status, err = c.Register(ctx)
	case ActionRefresh:
		err = c.Refresh(ctx)
	case ActionCast:
		var cr CastResult
		cr, err = c.Cast(ctx)
		if err == nil {
			res.Cast = &cr
		}
	case ActionKeep:
		err = c.Keep(ctx)
	case ActionSell:
		res.Amount, err = c.Sell(ctx)
	case ActionSellNet:
		res.Amount, err = c.SellFromNet(ctx, cmd.Index)
	case ActionEquip:
		err = c.Equip(ctx, cmd.Index)
	case ActionUnequip:
		slot, ok := game.ParseSlot(cmd.Slot)
		if !ok {
			return res, &GuardError{Action: ActionUnequip, Reason: ErrBadSlot}
		}
		err = c.Unequip(ctx, slot)
	case ActionBuy:
		err = c.BuyItem(ctx, cmd.Name)
	case ActionBuyWorms:
		res.Amount, err = c.BuyWorms(ctx, cmd.Count)
	case ActionBuyBag:
		var limit int
		limit, err = c.BuyBag(ctx)
		res.Amount = int64(limit)
	case ActionShop, ActionFilter:
		var cat game.Category
		if cmd.Category != "" || cmd.Action == ActionFilter {
			if cat, err = game.ParseCategory(cmd.Category); err != nil {
				return res, err
			}
		}
		if cmd.Action == ActionFilter {
			c.SetFilter(cat)
			return res, nil
		}
		res.Shop, err = c.Shop(ctx, cat)
	case ActionTop:
		res.Top, err = c.TopPlayers(ctx, cmd.Limit)
	case ActionAchievements:
		res.Achievements, err = c.Achievements(ctx)
	default:
		return res, fmt.Errorf("unknown action %q", cmd.Action)
	}
	return res, err
}

// UserMessage renders an action error the way the user should see it.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindNone:
		return ""
	case KindGuard:
		var ge *GuardError
		errors.As(err, &ge)
		return capitalize(ge.Reason.Error())
	case KindRejected:
		return rejectionMessage(err)
	default:
		return "Connection problem, try again"
	}
}

func rejectionMessage(err error) string {
	var re *httpapi.RejectedError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}

func capitalize(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[n:]
}
