package multiworld

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"haulcraft.sim/internal/sim/tuning"
)

// WorldSpec declares one world to run: id, seed and an optional tuning
// override. Zero tuning fields fall back to the shared defaults.
type WorldSpec struct {
	ID     string        `yaml:"id"`
	Seed   int64         `yaml:"seed"`
	Tuning tuning.Tuning `yaml:"tuning"`
}

type Config struct {
	Worlds []WorldSpec `yaml:"worlds"`
}

// LoadConfig reads a worlds.yaml. Every world needs a unique, non-empty id.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("worlds.yaml: %w", err)
	}
	if len(cfg.Worlds) == 0 {
		return cfg, fmt.Errorf("worlds.yaml: no worlds declared")
	}
	seen := map[string]bool{}
	for i, ws := range cfg.Worlds {
		if ws.ID == "" {
			return cfg, fmt.Errorf("worlds.yaml: world %d has no id", i)
		}
		if seen[ws.ID] {
			return cfg, fmt.Errorf("worlds.yaml: duplicate world id %q", ws.ID)
		}
		seen[ws.ID] = true
		cfg.Worlds[i].Tuning = ws.Tuning.WithDefaults()
	}
	return cfg, nil
}
