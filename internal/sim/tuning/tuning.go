package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	TickRateHz        int `yaml:"tick_rate_hz"`
	HaulCooldownTicks int `yaml:"haul_cooldown_ticks"`
	StationRadius     int `yaml:"station_radius"`

	AgentCarryCapacity  int `yaml:"agent_carry_capacity"`
	DepotCapacity       int `yaml:"depot_capacity"`
	NodeProductionTicks int `yaml:"node_production_ticks"`
	NodeStockCap        int `yaml:"node_stock_cap"`
}

func Load(path string) (Tuning, error) {
	var t Tuning
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t.WithDefaults(), nil
}

// Default returns the tuning used when no tuning.yaml is supplied.
func Default() Tuning {
	return Tuning{}.WithDefaults()
}

// WithDefaults fills zero fields with their defaults.
func (t Tuning) WithDefaults() Tuning {
	if t.TickRateHz <= 0 {
		t.TickRateHz = 5
	}
	if t.HaulCooldownTicks <= 0 {
		t.HaulCooldownTicks = 10
	}
	if t.StationRadius <= 0 {
		t.StationRadius = 2
	}
	if t.AgentCarryCapacity <= 0 {
		t.AgentCarryCapacity = 4
	}
	if t.DepotCapacity <= 0 {
		t.DepotCapacity = 50
	}
	if t.NodeProductionTicks <= 0 {
		t.NodeProductionTicks = 5
	}
	if t.NodeStockCap <= 0 {
		t.NodeStockCap = 20
	}
	return t
}
