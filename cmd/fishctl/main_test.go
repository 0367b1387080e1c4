package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"rybalka.web/internal/config"
	"rybalka.web/internal/devserver"
	"rybalka.web/internal/game"
	"rybalka.web/internal/persistence/snapshot"
	"rybalka.web/internal/session"
)

func TestParseCommand(t *testing.T) {
	cases := []struct {
		args []string
		want session.Command
	}{
		{[]string{"state"}, session.Command{Action: session.ActionRefresh}},
		{[]string{"CAST"}, session.Command{Action: session.ActionCast}},
		{[]string{"sellnet", "2"}, session.Command{Action: session.ActionSellNet, Index: 2}},
		{[]string{"equip", "0"}, session.Command{Action: session.ActionEquip}},
		{[]string{"unequip", "beer"}, session.Command{Action: session.ActionUnequip, Slot: "beer"}},
		{[]string{"buy", "Light", "beer"}, session.Command{Action: session.ActionBuy, Name: "Light beer"}},
		{[]string{"worms"}, session.Command{Action: session.ActionBuyWorms, Count: 1}},
		{[]string{"worms", "25"}, session.Command{Action: session.ActionBuyWorms, Count: 25}},
		{[]string{"shop", "bait"}, session.Command{Action: session.ActionShop, Category: "bait"}},
		{[]string{"top", "3"}, session.Command{Action: session.ActionTop, Limit: 3}},
	}
	for _, tc := range cases {
		got, err := parseCommand(tc.args)
		if err != nil {
			t.Fatalf("parseCommand(%v): %v", tc.args, err)
		}
		if got != tc.want {
			t.Fatalf("parseCommand(%v)=%+v want %+v", tc.args, got, tc.want)
		}
	}

	for _, bad := range [][]string{{"fly"}, {"equip"}, {"equip", "x"}, {"buy"}, {"unequip"}, {"shop", "boats"}, {"filter"}} {
		if _, err := parseCommand(bad); !errors.Is(err, errUsage) {
			t.Fatalf("parseCommand(%v) err=%v want usage error", bad, err)
		}
	}
}

func TestIdentity_CreatedOnceThenReused(t *testing.T) {
	path := identityPath(t.TempDir())
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	first, created, err := loadOrCreateIdentity(path, "", now)
	if err != nil || !created {
		t.Fatalf("first: created=%v err=%v", created, err)
	}
	if !strings.HasPrefix(first.UserID, "dev-") || first.Name != "Fisher" {
		t.Fatalf("identity=%+v", first)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}

	again, created, err := loadOrCreateIdentity(path, "Other", now.Add(time.Hour))
	if err != nil || created {
		t.Fatalf("second: created=%v err=%v", created, err)
	}
	if again != first {
		t.Fatalf("identity changed: %+v vs %+v", again, first)
	}
}

func TestIdentity_Corrupt(t *testing.T) {
	path := identityPath(t.TempDir())
	if err := writeFileAtomic(path, []byte("{")); err != nil {
		t.Fatal(err)
	}
	if _, _, err := loadOrCreateIdentity(path, "", time.Now()); err == nil {
		t.Fatalf("expected parse error")
	}
}

func newTestApp(t *testing.T, base, dataDir string, out *bytes.Buffer) *app {
	t.Helper()
	cfg := config.Defaults()
	cfg.APIBaseURL = base
	cfg.DataDir = dataDir
	a, err := newApp(appConfig{Config: cfg, Identity: identity{UserID: "u1", Name: "A"}, Out: out})
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	return a
}

func TestApp_EndToEnd(t *testing.T) {
	srv := devserver.New(devserver.Config{Seed: 3})
	srv.SeedUser("u1", devserver.Player{Name: "A", Money: 200, Worms: 1})
	srv.QueueCatch(devserver.Outcome{Fish: game.Catch{Name: "Pike", Type: "pike", Weight: 3, Price: 450}})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	dataDir := t.TempDir()
	var out bytes.Buffer
	a := newTestApp(t, ts.URL, dataDir, &out)
	ctx := context.Background()

	for _, args := range [][]string{{"worms", "5"}, {"cast"}, {"keep"}, {"sellnet", "0"}} {
		if err := a.run(ctx, args); err != nil {
			t.Fatalf("run %v: %v\n%s", args, err, out.String())
		}
	}
	p, _ := srv.User("u1")
	if p.Money != 200-50+450 || p.Worms != 5 || len(p.KeepNet) != 0 {
		t.Fatalf("server player=%+v", p)
	}
	for _, want := range []string{"Caught Pike", "Sold for 450", "💰 600"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := a.run(ctx, []string{"history", "2"}); err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 3 || !strings.Contains(lines[0], "sellnet") || !strings.Contains(lines[1], "keep") || lines[2] != "totals: ok=4" {
		t.Fatalf("history:\n%s", out.String())
	}

	out.Reset()
	if err := a.run(ctx, []string{"health"}); err != nil {
		t.Fatalf("health: %v", err)
	}
	if !strings.Contains(out.String(), "healthy, 1 players") {
		t.Fatalf("health output: %s", out.String())
	}

	// A guard failure is reported and recorded without a request.
	out.Reset()
	if err := a.run(ctx, []string{"sell"}); session.Classify(err) != session.KindGuard {
		t.Fatalf("sell without a catch: %v", err)
	}
	if srv.Calls("/api/game/sell") != 0 {
		t.Fatalf("guarded sell reached the server")
	}
	a.close()

	snap, err := snapshot.ReadSnapshot(snapshot.Path(dataDir, "u1"))
	if err != nil || snap.Profile.Money != 600 {
		t.Fatalf("cached snapshot money=%d err=%v", snap.Profile.Money, err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "actions")); err != nil {
		t.Fatalf("journal dir: %v", err)
	}

	// A new process starts from the cache before talking to the server.
	ts.Close()
	out.Reset()
	b := newTestApp(t, ts.URL, dataDir, &out)
	defer b.close()
	if v := b.store.View(); !v.Loaded || v.Snapshot.Profile.Money != 600 {
		t.Fatalf("restored view=%+v", v)
	}
	if err := b.run(ctx, []string{"state"}); session.Classify(err) != session.KindTransport {
		t.Fatalf("state with server down: %v", err)
	}
	if !strings.Contains(out.String(), "connection problem") {
		t.Fatalf("output:\n%s", out.String())
	}
}
