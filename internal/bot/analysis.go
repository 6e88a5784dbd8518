package bot

import "github.com/freeeve/colony-agent/pkg/colony"

// Phase is the coarse stage of the game the colony believes it is in.
type Phase string

const (
	PhaseEarly    Phase = "early"
	PhaseMid      Phase = "mid"
	PhaseLate     Phase = "late"
	PhaseRecovery Phase = "recovery"
)

// Priority ranks resources and targets.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// rank orders priorities high first; unknown values sort last.
func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return 3
}

// weight is the multiplier used in suitability scoring.
func (p Priority) weight() float64 {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	}
	return 1
}

// Analysis is the structured per-turn reading of a snapshot. It is never
// mutated after Analyze returns.
type Analysis struct {
	Turn       int               `json:"turn"`
	Phase      Phase             `json:"phase"`
	Units      UnitAnalysis      `json:"units"`
	Resources  ResourceAnalysis  `json:"resources"`
	Threats    ThreatAnalysis    `json:"threats"`
	Territory  TerritoryAnalysis `json:"territory"`
	Economy    EconomyAnalysis   `json:"economy"`
	ThreatMap  ThreatSummary     `json:"threatMap"`
	EnemyBases []colony.Hex      `json:"enemyBases"`
}

// UnitCounts tallies own units by role. Nest entries are never counted.
type UnitCounts struct {
	Total    int `json:"total"`
	Workers  int `json:"workers"`
	Soldiers int `json:"soldiers"`
	Scouts   int `json:"scouts"`
	Unknown  int `json:"unknown"`
}

// UnitProportions are role counts divided by the total (0 when there are no units).
type UnitProportions struct {
	Workers  float64 `json:"workers"`
	Soldiers float64 `json:"soldiers"`
	Scouts   float64 `json:"scouts"`
}

// UnitAnalysis describes our own forces.
type UnitAnalysis struct {
	Anthill     *colony.Hex     `json:"anthill"`
	Units       []colony.Unit   `json:"units"`
	Workers     []colony.Unit   `json:"-"`
	Soldiers    []colony.Unit   `json:"-"`
	Scouts      []colony.Unit   `json:"-"`
	Counts      UnitCounts      `json:"counts"`
	Proportions UnitProportions `json:"proportions"`
}

// ResourceInfo is a visible resource annotated with its distance and value.
type ResourceInfo struct {
	Pos      colony.Hex          `json:"pos"`
	Type     colony.ResourceType `json:"type"`
	Amount   int                 `json:"amount"`
	Distance int                 `json:"distance"`
	Calories int                 `json:"calories"`
	Value    int                 `json:"value"`
}

// HighValueResource is a resource worth a dedicated trip.
type HighValueResource struct {
	ResourceInfo
	Priority Priority `json:"priority"`
}

// ResourceAnalysis groups and ranks visible resources.
type ResourceAnalysis struct {
	Visible   []ResourceInfo                         `json:"visible"`
	ByType    map[colony.ResourceType][]ResourceInfo `json:"byType"`
	HighValue []HighValueResource                    `json:"highValue"`
	Excluded  int                                    `json:"excluded"`
}

// Find returns the visible resource at h, if any.
func (r ResourceAnalysis) Find(h colony.Hex) (ResourceInfo, bool) {
	for _, info := range r.Visible {
		if info.Pos == h {
			return info, true
		}
	}
	return ResourceInfo{}, false
}

// EnemyThreat is one enemy unit with its assessed threat level.
type EnemyThreat struct {
	Key          string      `json:"key"`
	Unit         colony.Unit `json:"unit"`
	Pos          colony.Hex  `json:"pos"`
	Distance     int         `json:"distance"`
	NearbyAllies int         `json:"nearbyAllies"`
	Level        float64     `json:"level"`
}

// ThreatAnalysis summarizes visible enemies relative to the anthill.
type ThreatAnalysis struct {
	Enemies   []EnemyThreat `json:"enemies"`
	Immediate []EnemyThreat `json:"immediate"`
	Nearby    []EnemyThreat `json:"nearby"`
	Total     float64       `json:"total"`
	Max       float64       `json:"max"`
	Level     float64       `json:"level"`
}

// Find returns the listed enemy with the given key.
func (t ThreatAnalysis) Find(key string) (EnemyThreat, bool) {
	for _, e := range t.Enemies {
		if e.Key == key {
			return e, true
		}
	}
	return EnemyThreat{}, false
}

// ContestedArea is an own unit standing close to an enemy.
type ContestedArea struct {
	UnitID        string     `json:"unitId"`
	Pos           colony.Hex `json:"pos"`
	EnemyDistance int        `json:"enemyDistance"`
}

// ExpansionOpportunity is a resource no own unit is near.
type ExpansionOpportunity struct {
	Pos      colony.Hex          `json:"pos"`
	Type     colony.ResourceType `json:"type"`
	Value    int                 `json:"value"`
	Distance int                 `json:"distance"`
	Score    float64             `json:"score"`
}

// TerritoryAnalysis measures how much of the map the colony covers.
type TerritoryAnalysis struct {
	ControlledCells        int                    `json:"controlledCells"`
	Contested              []ContestedArea        `json:"contested"`
	ExpansionOpportunities []ExpansionOpportunity `json:"expansionOpportunities"`
}

// EconomyTarget is the income and stockpile the colony should have reached by now.
type EconomyTarget struct {
	Income float64 `json:"income"`
	Total  int     `json:"total"`
}

// EconomyAnalysis is a heuristic estimate of calorie flow; nothing is simulated.
type EconomyAnalysis struct {
	EstimatedIncome float64       `json:"estimatedIncome"`
	Efficiency      float64       `json:"efficiency"`
	CarriedCalories int           `json:"carriedCalories"`
	Target          EconomyTarget `json:"target"`
	OnTrack         bool          `json:"onTrack"`
}
