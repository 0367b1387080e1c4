package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "client.yaml")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WormPrice != 10 || cfg.BagUpgrade.ExpensiveFrom != 40 || cfg.DefaultBagLimit != 20 {
		t.Fatalf("defaults=%+v", cfg)
	}
	if cfg.HTTPTimeout() != 0 || cfg.CastDisplayDelay() != time.Second {
		t.Fatalf("durations: %v %v", cfg.HTTPTimeout(), cfg.CastDisplayDelay())
	}
}

func TestLoad_OverridesAndNormalizes(t *testing.T) {
	p := writeYAML(t, `
api_base_url: "https://fish.example.com/ "
http_timeout_ms: -1
cast_display_delay_ms: -5
worm_price: 15
bag_upgrade:
  cost: 100
view:
  listen: ""
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIBaseURL != "https://fish.example.com" {
		t.Fatalf("base url=%q", cfg.APIBaseURL)
	}
	if cfg.CastDisplayDelayMs != 0 || cfg.HTTPTimeout() != 0 || cfg.WormPrice != 15 {
		t.Fatalf("cfg=%+v", cfg)
	}
	r := cfg.Rules()
	if r.BagUpgradeCost != 100 || r.BagUpgradeExpensiveCost != 10_000_000 || r.BagUpgradeIncrement != 10 {
		t.Fatalf("rules=%+v", r)
	}
	if cfg.View.Listen != "127.0.0.1:8090" {
		t.Fatalf("listen=%q", cfg.View.Listen)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"scheme":    "api_base_url: ftp://x\n",
		"no host":   "api_base_url: http://\n",
		"bag tiers": "bag_upgrade: {cost: 10, expensive_cost: 5}\n",
		"top":       "top_limit: 500\n",
		"yaml":      "worm_price: [\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeYAML(t, body))
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), "client.yaml") {
				t.Fatalf("error should name the file: %v", err)
			}
		})
	}
}

func TestLoad_ShippedFile(t *testing.T) {
	_, file, _, _ := runtime.Caller(0)
	p := filepath.Join(filepath.Dir(file), "..", "..", "configs", "client.yaml")
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("load %s: %v", p, err)
	}
	if cfg.Rules() != Defaults().Rules() {
		t.Fatalf("shipped rules drifted from defaults: %+v", cfg.Rules())
	}
}

func TestLoad_HTTPTimeout(t *testing.T) {
	cfg, err := Load(writeYAML(t, "http_timeout_ms: 2500\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPTimeout() != 2500*time.Millisecond {
		t.Fatalf("timeout=%v", cfg.HTTPTimeout())
	}
}
