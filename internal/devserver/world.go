package devserver

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"rybalka.web/internal/game"
)

//go:embed world.yaml
var defaultWorldYAML []byte

// World is the server's reference data: shop items, species and starting values.
type World struct {
	Start           Start            `yaml:"start"`
	BaseCatchChance float64          `yaml:"base_catch_chance"`
	GoldenChance    float64          `yaml:"golden_chance"`
	Species         []Species        `yaml:"species"`
	Golden          Species          `yaml:"golden"`
	MissMessages    []string         `yaml:"miss_messages"`
	Items           map[string]Entry `yaml:"items"`
}

type Start struct {
	Money      int64 `yaml:"money"`
	Worms      int   `yaml:"worms"`
	BagLimit   int   `yaml:"bag_limit"`
	Durability int   `yaml:"durability"`
}

type Species struct {
	Name       string  `yaml:"name"`
	Type       string  `yaml:"type"`
	MinWeight  float64 `yaml:"min_weight"`
	MaxWeight  float64 `yaml:"max_weight"`
	PricePerKg float64 `yaml:"price_per_kg"`
}

type Entry struct {
	Type   string             `yaml:"type"`
	Price  int64              `yaml:"price"`
	Effect map[string]float64 `yaml:"effect"`
}

func DefaultWorld() World {
	w, err := parseWorld(defaultWorldYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded world.yaml: %v", err))
	}
	return w
}

func LoadWorld(path string) (World, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return World{}, err
	}
	w, err := parseWorld(raw)
	if err != nil {
		return World{}, fmt.Errorf("%s: %w", path, err)
	}
	return w, nil
}

func parseWorld(raw []byte) (World, error) {
	var w World
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return w, err
	}
	return w, w.Validate()
}

func (w World) Validate() error {
	if w.Start.BagLimit <= 0 {
		return fmt.Errorf("start.bag_limit must be > 0")
	}
	if len(w.Species) == 0 {
		return fmt.Errorf("species must not be empty")
	}
	for _, s := range w.Species {
		if s.MinWeight <= 0 || s.MaxWeight < s.MinWeight {
			return fmt.Errorf("species %q: bad weight range", s.Name)
		}
	}
	for name, e := range w.Items {
		if _, ok := game.ParseSlot(e.Type); !ok {
			return fmt.Errorf("item %q: unknown type %q", name, e.Type)
		}
		if e.Price <= 0 {
			return fmt.Errorf("item %q: price must be > 0", name)
		}
	}
	return nil
}

func (w World) Catalog() game.Catalog {
	out := make(game.Catalog, len(w.Items))
	for name, e := range w.Items {
		slot, _ := game.ParseSlot(e.Type)
		out[name] = game.CatalogEntry{Name: name, Slot: slot, Price: e.Price, Effects: game.Effects(e.Effect).Clone()}
	}
	return out
}
