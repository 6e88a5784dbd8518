package bot

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/pkg/colony"
)

// Threat map tuning. Interest is spread over a disk around every sighting
// and decays geometrically with the number of turns since the cell was last
// refreshed.
const (
	threatInterestRadius  = 6
	threatMinFalloff      = 0.1
	threatDecayRate       = 0.9
	threatMaxAge          = 30
	threatInterestFloor   = 0.5
	threatMapCap          = 2000
	sightingHistoryCap    = 500
	sightingMaxAge        = 20
	highInterestThreshold = 2.0
	maxHighInterestAreas  = 10
	scoutSeedAreas        = 5
	scoutProjection       = 3
	maxScoutDistance      = 25
	maxScoutTargets       = 8
)

var baseInterest = map[colony.UnitType]float64{
	colony.Soldier: 20,
	colony.Scout:   10,
	colony.Worker:  6,
	colony.Nest:    30,
}

const defaultBaseInterest = 8

// ThreatCell is the accumulated interest for one grid cell.
type ThreatCell struct {
	Interest     float64 `json:"interest"`
	LastSeenTurn int     `json:"lastSeenTurn"`
}

// Sighting is a single observation of an enemy unit.
type Sighting struct {
	Pos  colony.Hex      `json:"pos"`
	Type colony.UnitType `json:"type"`
	Turn int             `json:"turn"`
}

// InterestArea is a cell whose interest exceeds the reporting threshold.
type InterestArea struct {
	Pos       colony.Hex    `json:"pos"`
	Interest  float64       `json:"interest"`
	Distance  int           `json:"distance"`
	Priority  float64       `json:"priority"`
	Direction colony.Octant `json:"direction"`
}

// ScoutTarget is a suggested reconnaissance destination.
type ScoutTarget struct {
	Pos      colony.Hex `json:"pos"`
	Priority float64    `json:"priority"`
	Source   colony.Hex `json:"source"`
}

// ThreatSummary is the per-turn digest of the threat map.
type ThreatSummary struct {
	HighInterestAreas       []InterestArea            `json:"highInterestAreas"`
	RecommendedScoutTargets []ScoutTarget             `json:"recommendedScoutTargets"`
	ThreatDirections        map[colony.Octant]float64 `json:"threatDirections"`
	TrackedCells            int                       `json:"trackedCells"`
	RecentSightings         int                       `json:"recentSightings"`
}

// ThreatMap is a bounded, decaying memory of where enemies have been seen.
// It is owned by a single Analyzer and is not safe for concurrent use.
type ThreatMap struct {
	cells     map[colony.Hex]ThreatCell
	sightings []Sighting
}

// NewThreatMap creates an empty ThreatMap.
func NewThreatMap() *ThreatMap {
	return &ThreatMap{cells: make(map[colony.Hex]ThreatCell)}
}

// Cell returns the stored cell, or the zero cell if nothing is recorded.
func (m *ThreatMap) Cell(h colony.Hex) ThreatCell {
	return m.cells[h]
}

// Len returns the number of tracked cells.
func (m *ThreatMap) Len() int { return len(m.cells) }

// Sightings returns the retained sighting history, oldest first.
func (m *ThreatMap) Sightings() []Sighting { return m.sightings }

// Ingest records this turn's enemy sightings and raises interest around them.
// Contributions are merged with max, so re-ingesting the same sightings in the
// same turn never inflates a cell.
func (m *ThreatMap) Ingest(enemies []colony.Unit, turn int) {
	for _, e := range enemies {
		pos := e.Pos()
		m.sightings = append(m.sightings, Sighting{Pos: pos, Type: e.Type, Turn: turn})

		base, ok := baseInterest[e.Type]
		if !ok {
			log.Warn().Str("type", e.Type.String()).Msg("Unknown enemy type, using default interest")
			base = defaultBaseInterest
		}

		for _, cell := range colony.Disk(pos, threatInterestRadius) {
			d := colony.Distance(pos, cell)
			contribution := base * math.Max(threatMinFalloff, 1-float64(d)/threatInterestRadius)
			c := m.cells[cell]
			if contribution > c.Interest {
				c.Interest = contribution
			}
			c.LastSeenTurn = turn
			m.cells[cell] = c
		}
	}
	m.trimSightings(turn)
	m.enforceCap(turn)
}

func (m *ThreatMap) trimSightings(turn int) {
	kept := m.sightings[:0]
	for _, s := range m.sightings {
		if turn-s.Turn <= sightingMaxAge {
			kept = append(kept, s)
		}
	}
	if len(kept) > sightingHistoryCap {
		kept = kept[len(kept)-sightingHistoryCap:]
	}
	m.sightings = kept
}

// Decay ages every cell: interest is multiplied by decayRate^age, where age is
// the number of turns since the cell was last refreshed. Cells past the max age
// or below the interest floor are forgotten.
func (m *ThreatMap) Decay(turn int) {
	for h, c := range m.cells {
		age := turn - c.LastSeenTurn
		if age > threatMaxAge {
			delete(m.cells, h)
			continue
		}
		if age > 0 {
			c.Interest *= math.Pow(threatDecayRate, float64(age))
		}
		if c.Interest < threatInterestFloor {
			delete(m.cells, h)
			continue
		}
		m.cells[h] = c
	}
	m.enforceCap(turn)
}

// enforceCap prunes until the map is back under threatMapCap. A single prune
// only removes a quarter, so one large ingest can need several.
func (m *ThreatMap) enforceCap(turn int) {
	for len(m.cells) > threatMapCap {
		m.Prune(turn)
	}
}

// Prune drops the oldest quarter of the cells by last-seen turn.
func (m *ThreatMap) Prune(turn int) {
	type entry struct {
		pos  colony.Hex
		cell ThreatCell
	}
	entries := make([]entry, 0, len(m.cells))
	for h, c := range m.cells {
		entries = append(entries, entry{h, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.cell.LastSeenTurn != b.cell.LastSeenTurn {
			return a.cell.LastSeenTurn < b.cell.LastSeenTurn
		}
		if a.cell.Interest != b.cell.Interest {
			return a.cell.Interest < b.cell.Interest
		}
		if a.pos.Q != b.pos.Q {
			return a.pos.Q < b.pos.Q
		}
		return a.pos.R < b.pos.R
	})
	n := len(entries) / 4
	for _, e := range entries[:n] {
		delete(m.cells, e.pos)
	}
	log.Debug().Int("turn", turn).Int("removed", n).Int("remaining", len(m.cells)).Msg("Threat map pruned")
}

// Summarize ranks interesting cells relative to the anthill, aggregates
// interest by direction, and proposes scout targets. A nil anthill yields an
// empty summary.
func (m *ThreatMap) Summarize(anthill *colony.Hex, turn int) ThreatSummary {
	summary := ThreatSummary{
		HighInterestAreas:       []InterestArea{},
		RecommendedScoutTargets: []ScoutTarget{},
		ThreatDirections:        make(map[colony.Octant]float64),
	}
	if anthill == nil {
		return summary
	}
	summary.TrackedCells = len(m.cells)
	for _, s := range m.sightings {
		if turn-s.Turn <= sightingMaxAge {
			summary.RecentSightings++
		}
	}

	var areas []InterestArea
	for h, c := range m.cells {
		if c.Interest <= highInterestThreshold {
			continue
		}
		d := colony.Distance(*anthill, h)
		dir := colony.Direction(*anthill, h)
		areas = append(areas, InterestArea{
			Pos:       h,
			Interest:  c.Interest,
			Distance:  d,
			Priority:  c.Interest * (1 / (1 + 0.1*float64(d))),
			Direction: dir,
		})
		summary.ThreatDirections[dir] += c.Interest
	}
	sort.Slice(areas, func(i, j int) bool {
		if areas[i].Priority != areas[j].Priority {
			return areas[i].Priority > areas[j].Priority
		}
		return hexLess(areas[i].Pos, areas[j].Pos)
	})

	summary.RecommendedScoutTargets = scoutTargets(*anthill, areas)
	if len(areas) > maxHighInterestAreas {
		areas = areas[:maxHighInterestAreas]
	}
	if areas != nil {
		summary.HighInterestAreas = areas
	}
	return summary
}

// scoutTargets projects the six neighbor offsets outward from the top areas.
func scoutTargets(anthill colony.Hex, areas []InterestArea) []ScoutTarget {
	best := make(map[colony.Hex]ScoutTarget)
	for i, area := range areas {
		if i >= scoutSeedAreas {
			break
		}
		for _, target := range colony.Ring(area.Pos, scoutProjection) {
			d := colony.Distance(anthill, target)
			if d > maxScoutDistance {
				continue
			}
			p := area.Priority / (1 + 0.05*float64(d))
			if cur, ok := best[target]; !ok || p > cur.Priority {
				best[target] = ScoutTarget{Pos: target, Priority: p, Source: area.Pos}
			}
		}
	}
	targets := make([]ScoutTarget, 0, len(best))
	for _, t := range best {
		targets = append(targets, t)
	}
	sort.Slice(targets, func(i, j int) bool {
		if targets[i].Priority != targets[j].Priority {
			return targets[i].Priority > targets[j].Priority
		}
		return hexLess(targets[i].Pos, targets[j].Pos)
	})
	if len(targets) > maxScoutTargets {
		targets = targets[:maxScoutTargets]
	}
	return targets
}

func hexLess(a, b colony.Hex) bool {
	if a.Q != b.Q {
		return a.Q < b.Q
	}
	return a.R < b.R
}
