package protocol

// HELLO (observer -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ObserverName    string `json:"observer_name"`
	MaxQueue        int    `json:"max_queue,omitempty"`
}

// WELCOME (server -> observer)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	ObserverID      string      `json:"observer_id"`
	WorldParams     WorldParams `json:"world_params"`
	ResourceTypes   []string    `json:"resource_types"`
}

type WorldParams struct {
	WorldID       string `json:"world_id"`
	TickRateHz    int    `json:"tick_rate_hz"`
	HaulCooldown  int    `json:"haul_cooldown_ticks"`
	StationRadius int    `json:"station_radius"`
	Seed          int64  `json:"seed"`
}

// TICK (server -> observer), one per world tick.
type TickMsg struct {
	Type            string       `json:"type"`
	ProtocolVersion string       `json:"protocol_version"`
	Tick            uint64       `json:"tick"`
	Parties         []PartyState `json:"parties"`
	Events          []Event      `json:"events,omitempty"`
}

type PartyState struct {
	PartyID   string         `json:"party_id"`
	Kind      string         `json:"kind"`
	Pos       [2]int         `json:"pos"`
	Held      map[string]int `json:"held,omitempty"`
	Allocated map[string]int `json:"allocated,omitempty"`
	Capacity  int            `json:"capacity,omitempty"`
}

// TRANSFER (server -> observer), fired when a transaction commits. Carries
// the full transfer description for effects/animation layers.
type TransferMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Tick            uint64 `json:"tick"`
	TransferID      string `json:"transfer_id"`
	Source          string `json:"source"`
	Destination     string `json:"destination"`
	Resource        string `json:"resource"`
	Amount          int    `json:"amount"`
}
