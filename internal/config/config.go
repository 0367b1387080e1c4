package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"rybalka.web/internal/session"
)

// Config is the client's configuration file (configs/client.yaml).
type Config struct {
	APIBaseURL         string `yaml:"api_base_url"`
	HTTPTimeoutMs      int    `yaml:"http_timeout_ms"`
	CastDisplayDelayMs int    `yaml:"cast_display_delay_ms"`

	WormPrice       int64      `yaml:"worm_price"`
	BagUpgrade      BagUpgrade `yaml:"bag_upgrade"`
	DefaultBagLimit int        `yaml:"default_bag_limit"`

	TopLimit int    `yaml:"top_limit"`
	DataDir  string `yaml:"data_dir"`

	Journal bool `yaml:"journal"`
	Index   bool `yaml:"index"`

	View View `yaml:"view"`
}

type BagUpgrade struct {
	Cost          int64 `yaml:"cost"`
	ExpensiveCost int64 `yaml:"expensive_cost"`
	ExpensiveFrom int   `yaml:"expensive_from"`
	Increment     int   `yaml:"increment"`
}

type View struct {
	Listen string `yaml:"listen"`
	// Origins lists allowed websocket origins; empty allows any.
	Origins []string `yaml:"origins"`
}

func Defaults() Config {
	r := session.DefaultRules()
	return Config{
		APIBaseURL:         "http://127.0.0.1:8000",
		HTTPTimeoutMs:      0,
		CastDisplayDelayMs: 1000,
		WormPrice:          r.WormPrice,
		BagUpgrade: BagUpgrade{
			Cost:          r.BagUpgradeCost,
			ExpensiveCost: r.BagUpgradeExpensiveCost,
			ExpensiveFrom: r.BagUpgradeExpensiveFrom,
			Increment:     r.BagUpgradeIncrement,
		},
		DefaultBagLimit: 20,
		TopLimit:        10,
		DataDir:         "data",
		Journal:         true,
		Index:           true,
		View:            View{Listen: "127.0.0.1:8090"},
	}
}

// Load reads path over Defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if strings.TrimSpace(path) == "" {
		cfg.Normalize()
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("client.yaml: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("client.yaml: %w", err)
	}
	return cfg, nil
}

func (c *Config) Normalize() {
	if c == nil {
		return
	}
	d := Defaults()
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = d.APIBaseURL
	}
	if c.HTTPTimeoutMs < 0 {
		c.HTTPTimeoutMs = 0
	}
	if c.CastDisplayDelayMs < 0 {
		c.CastDisplayDelayMs = 0
	}
	if c.WormPrice <= 0 {
		c.WormPrice = d.WormPrice
	}
	if c.BagUpgrade.Cost <= 0 {
		c.BagUpgrade.Cost = d.BagUpgrade.Cost
	}
	if c.BagUpgrade.ExpensiveCost <= 0 {
		c.BagUpgrade.ExpensiveCost = d.BagUpgrade.ExpensiveCost
	}
	if c.BagUpgrade.ExpensiveFrom <= 0 {
		c.BagUpgrade.ExpensiveFrom = d.BagUpgrade.ExpensiveFrom
	}
	if c.BagUpgrade.Increment <= 0 {
		c.BagUpgrade.Increment = d.BagUpgrade.Increment
	}
	if c.DefaultBagLimit <= 0 {
		c.DefaultBagLimit = d.DefaultBagLimit
	}
	if c.TopLimit <= 0 {
		c.TopLimit = d.TopLimit
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = d.DataDir
	}
	if strings.TrimSpace(c.View.Listen) == "" {
		c.View.Listen = d.View.Listen
	}
}

func (c Config) Validate() error {
	c.Normalize()
	u, err := url.Parse(c.APIBaseURL)
	if err != nil {
		return fmt.Errorf("api_base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_base_url must be http or https, got %q", c.APIBaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("api_base_url has no host")
	}
	if c.BagUpgrade.ExpensiveCost < c.BagUpgrade.Cost {
		return fmt.Errorf("bag_upgrade.expensive_cost must be >= bag_upgrade.cost")
	}
	if c.TopLimit > 100 {
		return fmt.Errorf("top_limit must be <= 100")
	}
	return nil
}

// HTTPTimeout is the per-request bound. Zero means none.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutMs) * time.Millisecond
}

func (c Config) CastDisplayDelay() time.Duration {
	return time.Duration(c.CastDisplayDelayMs) * time.Millisecond
}

func (c Config) Rules() session.Rules {
	return session.Rules{
		WormPrice:               c.WormPrice,
		BagUpgradeCost:          c.BagUpgrade.Cost,
		BagUpgradeExpensiveCost: c.BagUpgrade.ExpensiveCost,
		BagUpgradeExpensiveFrom: c.BagUpgrade.ExpensiveFrom,
		BagUpgradeIncrement:     c.BagUpgrade.Increment,
	}
}
