// Package httpapi is the HTTP/JSON client for the game server.
//
// Every call classifies its outcome into a decoded response, a *RejectedError
// (the server refused) or a *TransportError (the exchange itself failed).
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rybalka.web/internal/game"
	"rybalka.web/internal/protocol"
)

const maxBodyBytes = 4 << 20

type Config struct {
	BaseURL string
	// Timeout bounds a single request. Zero keeps the transport default (none).
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

type Client struct {
	base       string
	httpClient *http.Client
	logger     *log.Logger
}

func New(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base url: %s", base)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Client{
		base:       strings.TrimRight(u.String(), "/"),
		httpClient: hc,
		logger:     logger,
	}, nil
}

func (c *Client) BaseURL() string { return c.base }

func (c *Client) Init(ctx context.Context, userID, name string) (protocol.InitResponse, error) {
	var out protocol.InitResponse
	err := c.do(ctx, call{op: "init", method: http.MethodPost, path: protocol.PathInit,
		body: protocol.InitRequest{UserID: userID, Name: name}}, &out)
	return out, err
}

// State fetches the full snapshot. A body that violates the state schema is a
// transport failure.
func (c *Client) State(ctx context.Context, userID string) (protocol.StatePayload, error) {
	var out protocol.StatePayload
	err := c.do(ctx, call{op: "state", method: http.MethodGet, path: protocol.PathState,
		query: url.Values{"user_id": {userID}}, validate: protocol.ValidateState}, &out)
	return out, err
}

// Fish casts. A success:false answer without an error field is a miss and is
// returned as a normal response.
func (c *Client) Fish(ctx context.Context, userID string) (protocol.FishResponse, error) {
	var out protocol.FishResponse
	err := c.do(ctx, call{op: "fish", method: http.MethodPost, path: protocol.PathFish,
		body: protocol.UserRequest{UserID: userID}, allowMiss: true}, &out)
	return out, err
}

func (c *Client) Keep(ctx context.Context, userID string) (protocol.KeepResponse, error) {
	var out protocol.KeepResponse
	err := c.do(ctx, call{op: "keep", method: http.MethodPost, path: protocol.PathKeep,
		body: protocol.UserRequest{UserID: userID}}, &out)
	return out, err
}

func (c *Client) Sell(ctx context.Context, userID string) (protocol.SellResponse, error) {
	var out protocol.SellResponse
	err := c.do(ctx, call{op: "sell", method: http.MethodPost, path: protocol.PathSell,
		body: protocol.UserRequest{UserID: userID}}, &out)
	return out, err
}

func (c *Client) SellFish(ctx context.Context, userID string, index int) (protocol.SellResponse, error) {
	var out protocol.SellResponse
	err := c.do(ctx, call{op: "sellfish", method: http.MethodPost, path: protocol.PathSellFish,
		body: protocol.SellFishRequest{UserID: userID, FishIndex: index}}, &out)
	return out, err
}

func (c *Client) Equip(ctx context.Context, userID string, index int) (protocol.EquipResponse, error) {
	var out protocol.EquipResponse
	err := c.do(ctx, call{op: "equip", method: http.MethodPost, path: protocol.PathEquip,
		body: protocol.EquipRequest{UserID: userID, ItemIndex: index}}, &out)
	return out, err
}

func (c *Client) Unequip(ctx context.Context, userID string, slot game.SlotKind) (protocol.UnequipResponse, error) {
	var out protocol.UnequipResponse
	err := c.do(ctx, call{op: "unequip", method: http.MethodPost, path: protocol.PathUnequip,
		body: protocol.UnequipRequest{UserID: userID, Slot: string(slot)}}, &out)
	return out, err
}

func (c *Client) ShopItems(ctx context.Context) (protocol.ShopItemsResponse, error) {
	var out protocol.ShopItemsResponse
	err := c.do(ctx, call{op: "shop_items", method: http.MethodGet, path: protocol.PathShopItems,
		validate: protocol.ValidateShopItems}, &out)
	return out, err
}

func (c *Client) Buy(ctx context.Context, userID, itemName string) (protocol.BuyResponse, error) {
	var out protocol.BuyResponse
	err := c.do(ctx, call{op: "buy", method: http.MethodPost, path: protocol.PathBuy,
		body: protocol.BuyRequest{UserID: userID, ItemName: itemName}}, &out)
	return out, err
}

func (c *Client) BuyWorms(ctx context.Context, userID string, count int) (protocol.BuyWormsResponse, error) {
	var out protocol.BuyWormsResponse
	err := c.do(ctx, call{op: "buy_worms", method: http.MethodPost, path: protocol.PathBuyWorms,
		body: protocol.BuyWormsRequest{UserID: userID, Count: count}}, &out)
	return out, err
}

func (c *Client) BuyBag(ctx context.Context, userID string) (protocol.BuyBagResponse, error) {
	var out protocol.BuyBagResponse
	err := c.do(ctx, call{op: "buy_bag", method: http.MethodPost, path: protocol.PathBuyBag,
		body: protocol.UserRequest{UserID: userID}}, &out)
	return out, err
}

func (c *Client) Top(ctx context.Context, limit int) (protocol.TopResponse, error) {
	var out protocol.TopResponse
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	err := c.do(ctx, call{op: "top", method: http.MethodGet, path: protocol.PathTop, query: q}, &out)
	return out, err
}

// Achievements lists every achievement with its unlock status for userID. An empty
// userID lists the catalog without status.
func (c *Client) Achievements(ctx context.Context, userID string) (protocol.AchievementsResponse, error) {
	var out protocol.AchievementsResponse
	q := url.Values{}
	if userID != "" {
		q.Set("user_id", userID)
	}
	err := c.do(ctx, call{op: "achievements", method: http.MethodGet, path: protocol.PathAchievements, query: q}, &out)
	return out, err
}

func (c *Client) Health(ctx context.Context) (protocol.HealthResponse, error) {
	var out protocol.HealthResponse
	err := c.do(ctx, call{op: "health", method: http.MethodGet, path: protocol.PathHealth}, &out)
	return out, err
}

type call struct {
	op       string
	method   string
	path     string
	query    url.Values
	body     any
	validate func([]byte) error
	// allowMiss accepts success:false without an error field as a normal answer.
	allowMiss bool
}

func (c *Client) do(ctx context.Context, cl call, out any) error {
	u := c.base + cl.path
	if len(cl.query) > 0 {
		u += "?" + cl.query.Encode()
	}

	var rd io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return c.transport(cl.op, 0, fmt.Errorf("encode request: %w", err))
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, u, rd)
	if err != nil {
		return c.transport(cl.op, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transport(cl.op, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.transport(cl.op, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}

	env, envErr := protocol.DecodeEnvelope(body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if envErr == nil {
			if msg, ok := env.Rejection(); ok {
				return c.rejected(cl.op, resp.StatusCode, msg)
			}
		}
		return c.transport(cl.op, resp.StatusCode, fmt.Errorf("unexpected status: %s", strings.TrimSpace(snippet(body))))
	}
	if envErr != nil {
		return c.transport(cl.op, resp.StatusCode, fmt.Errorf("malformed body: %w", envErr))
	}
	if msg, ok := env.Rejection(); ok && !(cl.allowMiss && env.Error == "") {
		return c.rejected(cl.op, resp.StatusCode, msg)
	}
	if cl.validate != nil {
		if err := cl.validate(body); err != nil {
			return c.transport(cl.op, resp.StatusCode, fmt.Errorf("malformed body: %w", err))
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return c.transport(cl.op, resp.StatusCode, fmt.Errorf("malformed body: %w", err))
	}
	return nil
}

func (c *Client) transport(op string, status int, err error) error {
	te := &TransportError{Op: op, Status: status, Err: err}
	c.logger.Printf("transport: %v", te)
	return te
}

func (c *Client) rejected(op string, status int, msg string) error {
	known := protocol.IsKnownMessage(msg)
	c.logger.Printf("rejected: op=%s status=%d known=%t msg=%q", op, status, known, msg)
	return &RejectedError{Op: op, Status: status, Message: msg, Known: known}
}

func snippet(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}

// IsRejected reports whether err carries a server rejection.
func IsRejected(err error) bool {
	var re *RejectedError
	return errors.As(err, &re)
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
