package colony

import "encoding/json"

// Cargo is the food a unit is currently carrying.
type Cargo struct {
	Type   ResourceType `json:"type"`
	Amount int          `json:"amount"`
}

// Unit is a single unit on the map, ours or an enemy's.
type Unit struct {
	ID     string   `json:"id,omitempty"`
	Q      int      `json:"q"`
	R      int      `json:"r"`
	Type   UnitType `json:"type"`
	Health int      `json:"health"`
	Cargo  Cargo    `json:"food"`
}

// Pos returns the unit's grid position.
func (u Unit) Pos() Hex { return Hex{Q: u.Q, R: u.R} }

// IsNest reports whether the entry is the colony structure rather than a unit.
func (u Unit) IsNest() bool { return u.Type == Nest }

// Resource is a pile of food on the map.
type Resource struct {
	Q      int          `json:"q"`
	R      int          `json:"r"`
	Type   ResourceType `json:"type"`
	Amount int          `json:"amount"`
}

// Pos returns the resource's grid position.
func (r Resource) Pos() Hex { return Hex{Q: r.Q, R: r.R} }

// Snapshot is the per-turn world state received from the game server.
// Missing arrays decode as nil and are treated as empty everywhere.
type Snapshot struct {
	Turn       int        `json:"turnNo"`
	NextTurnIn float64    `json:"nextTurnIn,omitempty"`
	Score      int        `json:"score,omitempty"`
	Units      []Unit     `json:"ants"`
	Enemies    []Unit     `json:"enemies"`
	Resources  []Resource `json:"food"`
	Home       []Hex      `json:"home"`
	Spot       *Hex       `json:"spot,omitempty"`
	EnemyBases []Hex      `json:"enemyBases,omitempty"`
}

// ParseSnapshot decodes a snapshot from its wire JSON.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Move is a movement command for one unit. The path lists the cells to
// enter in order, excluding the unit's current cell.
type Move struct {
	UnitID string `json:"ant"`
	Path   []Hex  `json:"path"`
}
