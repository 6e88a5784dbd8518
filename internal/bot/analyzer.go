package bot

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/pkg/colony"
)

// Analyzer thresholds and weights.
const (
	immediateThreatRange = 5
	nearbyThreatRange    = 10
	allyDilutionRange    = 3
	contestedRange       = 5
	expansionClearRange  = 8
	maxExpansionTargets  = 10
	nectarHighValueRange = 6
	breadHighValueRange  = 4
)

var threatRoleWeight = map[colony.UnitType]float64{
	colony.Soldier: 3,
	colony.Scout:   1,
	colony.Worker:  0.5,
}

const defaultThreatRoleWeight = 1

var incomeRoleWeight = map[colony.UnitType]float64{
	colony.Worker:  20,
	colony.Scout:   8,
	colony.Soldier: 4,
}

const defaultIncomeRoleWeight = 4

// Analyzer turns raw snapshots into Analysis values. It owns the ThreatMap,
// which is the only state carried between turns.
type Analyzer struct {
	threats *ThreatMap
}

// NewAnalyzer creates an Analyzer with an empty threat map.
func NewAnalyzer() *Analyzer {
	return &Analyzer{threats: NewThreatMap()}
}

// ThreatMap exposes the analyzer's threat memory for inspection.
func (a *Analyzer) ThreatMap() *ThreatMap { return a.threats }

// Analyze builds the Analysis for one snapshot. A nil snapshot is treated as
// an empty world.
func (a *Analyzer) Analyze(s *colony.Snapshot) *Analysis {
	if s == nil {
		log.Warn().Msg("Nil snapshot, analyzing empty world")
		s = &colony.Snapshot{}
	}

	units := analyzeUnits(s)
	out := &Analysis{
		Turn:       s.Turn,
		Units:      units,
		EnemyBases: append([]colony.Hex{}, s.EnemyBases...),
	}
	out.Phase = GuessPhase(s.Turn, units.Counts.Total, len(s.Enemies), len(s.EnemyBases) > 0)
	out.Resources = analyzeResources(s, units.Anthill)
	out.Threats = analyzeThreats(s.Enemies, units.Units, units.Anthill)
	out.Territory = analyzeTerritory(units.Units, s.Enemies, out.Resources.Visible)
	out.Economy = analyzeEconomy(units.Units, s.Turn)

	a.threats.Ingest(s.Enemies, s.Turn)
	a.threats.Decay(s.Turn)
	out.ThreatMap = a.threats.Summarize(units.Anthill, s.Turn)

	log.Debug().
		Int("turn", out.Turn).
		Str("phase", string(out.Phase)).
		Int("units", units.Counts.Total).
		Int("enemies", len(out.Threats.Enemies)).
		Int("resources", len(out.Resources.Visible)).
		Float64("threatLevel", out.Threats.Level).
		Msg("Snapshot analyzed")
	return out
}

// GuessPhase applies the phase rules in priority order; the first match wins.
func GuessPhase(turn, ownUnits, enemyUnits int, enemyBaseFound bool) Phase {
	switch {
	case turn > 300:
		return PhaseLate
	case enemyBaseFound && ownUnits >= 10:
		return PhaseLate
	case enemyUnits > 5 && turn > 30:
		return PhaseLate
	case turn > 50:
		return PhaseMid
	case ownUnits >= 8:
		return PhaseMid
	case enemyUnits > 0 && turn > 15:
		return PhaseMid
	}
	return PhaseEarly
}

func analyzeUnits(s *colony.Snapshot) UnitAnalysis {
	ua := UnitAnalysis{Units: []colony.Unit{}}

	switch {
	case len(s.Home) > 0:
		h := s.Home[0]
		ua.Anthill = &h
	case s.Spot != nil:
		h := *s.Spot
		ua.Anthill = &h
	}

	for _, u := range s.Units {
		if u.IsNest() {
			if ua.Anthill == nil {
				h := u.Pos()
				ua.Anthill = &h
			}
			continue
		}
		ua.Units = append(ua.Units, u)
		switch u.Type {
		case colony.Worker:
			ua.Workers = append(ua.Workers, u)
			ua.Counts.Workers++
		case colony.Soldier:
			ua.Soldiers = append(ua.Soldiers, u)
			ua.Counts.Soldiers++
		case colony.Scout:
			ua.Scouts = append(ua.Scouts, u)
			ua.Counts.Scouts++
		default:
			log.Warn().Str("unit", u.ID).Str("type", u.Type.String()).Msg("Unknown unit type")
			ua.Counts.Unknown++
		}
	}
	ua.Counts.Total = len(ua.Units)
	if total := float64(ua.Counts.Total); total > 0 {
		ua.Proportions = UnitProportions{
			Workers:  float64(ua.Counts.Workers) / total,
			Soldiers: float64(ua.Counts.Soldiers) / total,
			Scouts:   float64(ua.Counts.Scouts) / total,
		}
	}
	if ua.Anthill == nil {
		log.Warn().Int("turn", s.Turn).Msg("Snapshot has no home position")
	}
	return ua
}

func analyzeResources(s *colony.Snapshot, anthill *colony.Hex) ResourceAnalysis {
	ra := ResourceAnalysis{
		Visible:   []ResourceInfo{},
		ByType:    make(map[colony.ResourceType][]ResourceInfo),
		HighValue: []HighValueResource{},
	}

	home := make(map[colony.Hex]bool, len(s.Home)+1)
	for _, h := range s.Home {
		home[h] = true
	}
	if anthill != nil {
		home[*anthill] = true
	}

	for _, r := range s.Resources {
		pos := r.Pos()
		if home[pos] {
			log.Warn().Str("pos", pos.String()).Str("type", r.Type.String()).Msg("Ignoring resource on home cell")
			ra.Excluded++
			continue
		}
		cal, ok := colony.CaloriesFor(r.Type)
		if !ok {
			log.Warn().Str("pos", pos.String()).Int("type", int(r.Type)).Msg("Unknown resource type, using default calories")
		}
		info := ResourceInfo{
			Pos:      pos,
			Type:     r.Type,
			Amount:   r.Amount,
			Distance: colony.DistancePtr(anthill, &pos),
			Calories: cal,
			Value:    cal * r.Amount,
		}
		ra.Visible = append(ra.Visible, info)
	}

	sort.SliceStable(ra.Visible, func(i, j int) bool {
		return ra.Visible[i].Distance < ra.Visible[j].Distance
	})

	for _, info := range ra.Visible {
		ra.ByType[info.Type] = append(ra.ByType[info.Type], info)
		switch {
		case info.Type == colony.Nectar && info.Distance <= nectarHighValueRange:
			ra.HighValue = append(ra.HighValue, HighValueResource{ResourceInfo: info, Priority: PriorityHigh})
		case info.Type == colony.Bread && info.Distance <= breadHighValueRange:
			ra.HighValue = append(ra.HighValue, HighValueResource{ResourceInfo: info, Priority: PriorityMedium})
		}
	}
	sort.SliceStable(ra.HighValue, func(i, j int) bool {
		return ra.HighValue[i].Priority.rank() < ra.HighValue[j].Priority.rank()
	})
	return ra
}

// enemyKey identifies an enemy across the analysis. Enemies without a
// server-assigned id are keyed by position.
func enemyKey(u colony.Unit) string {
	if u.ID != "" {
		return u.ID
	}
	return fmt.Sprintf("%s@%d,%d", u.Type, u.Q, u.R)
}

func analyzeThreats(enemies, own []colony.Unit, anthill *colony.Hex) ThreatAnalysis {
	ta := ThreatAnalysis{
		Enemies:   []EnemyThreat{},
		Immediate: []EnemyThreat{},
		Nearby:    []EnemyThreat{},
	}

	for _, e := range enemies {
		pos := e.Pos()
		weight, ok := threatRoleWeight[e.Type]
		if !ok {
			log.Warn().Str("type", e.Type.String()).Msg("Unknown enemy type, using default threat weight")
			weight = defaultThreatRoleWeight
		}
		d := colony.DistancePtr(anthill, &pos)

		proximity := 1.0
		switch {
		case d <= immediateThreatRange:
			proximity = 2
		case d <= nearbyThreatRange:
			proximity = 1.5
		}

		allies := 0
		for _, u := range own {
			if colony.Distance(u.Pos(), pos) <= allyDilutionRange {
				allies++
			}
		}
		dilution := math.Max(0.3, 1-0.2*float64(allies))

		t := EnemyThreat{
			Key:          enemyKey(e),
			Unit:         e,
			Pos:          pos,
			Distance:     d,
			NearbyAllies: allies,
			Level:        weight * proximity * dilution,
		}
		ta.Enemies = append(ta.Enemies, t)
		ta.Total += t.Level
		ta.Max = math.Max(ta.Max, t.Level)
	}

	sort.SliceStable(ta.Enemies, func(i, j int) bool {
		if ta.Enemies[i].Level != ta.Enemies[j].Level {
			return ta.Enemies[i].Level > ta.Enemies[j].Level
		}
		return ta.Enemies[i].Distance < ta.Enemies[j].Distance
	})
	for _, t := range ta.Enemies {
		if t.Distance <= immediateThreatRange {
			ta.Immediate = append(ta.Immediate, t)
		}
		if t.Distance <= nearbyThreatRange {
			ta.Nearby = append(ta.Nearby, t)
		}
	}
	ta.Level = math.Min(1, ta.Total/10+ta.Max/5)
	return ta
}

func analyzeTerritory(own, enemies []colony.Unit, resources []ResourceInfo) TerritoryAnalysis {
	ta := TerritoryAnalysis{
		Contested:              []ContestedArea{},
		ExpansionOpportunities: []ExpansionOpportunity{},
	}

	controlled := make(map[colony.Hex]struct{})
	for _, u := range own {
		stats, ok := colony.StatsFor(u.Type)
		if !ok {
			log.Warn().Str("unit", u.ID).Str("type", u.Type.String()).Msg("No stats for unit type, using defaults")
		}
		for _, h := range colony.Disk(u.Pos(), stats.Vision) {
			controlled[h] = struct{}{}
		}
	}
	ta.ControlledCells = len(controlled)

	for _, u := range own {
		nearest := colony.Infinite
		for _, e := range enemies {
			nearest = min(nearest, colony.Distance(u.Pos(), e.Pos()))
		}
		if nearest <= contestedRange {
			ta.Contested = append(ta.Contested, ContestedArea{UnitID: u.ID, Pos: u.Pos(), EnemyDistance: nearest})
		}
	}

	for _, r := range resources {
		covered := false
		for _, u := range own {
			if colony.Distance(u.Pos(), r.Pos) <= expansionClearRange {
				covered = true
				break
			}
		}
		if covered {
			continue
		}
		ta.ExpansionOpportunities = append(ta.ExpansionOpportunities, ExpansionOpportunity{
			Pos:      r.Pos,
			Type:     r.Type,
			Value:    r.Value,
			Distance: r.Distance,
			Score:    float64(r.Value) / float64(max(1, r.Distance)),
		})
	}
	sort.SliceStable(ta.ExpansionOpportunities, func(i, j int) bool {
		return ta.ExpansionOpportunities[i].Score > ta.ExpansionOpportunities[j].Score
	})
	if len(ta.ExpansionOpportunities) > maxExpansionTargets {
		ta.ExpansionOpportunities = ta.ExpansionOpportunities[:maxExpansionTargets]
	}
	return ta
}

// EconomyTargetFor returns the expected income and stockpile for a turn.
func EconomyTargetFor(turn int) EconomyTarget {
	switch {
	case turn <= 20:
		return EconomyTarget{Income: 60, Total: 800}
	case turn <= 50:
		return EconomyTarget{Income: 150, Total: 4000}
	}
	return EconomyTarget{Income: 300, Total: 15000}
}

func analyzeEconomy(own []colony.Unit, turn int) EconomyAnalysis {
	var ea EconomyAnalysis
	for _, u := range own {
		w, ok := incomeRoleWeight[u.Type]
		if !ok {
			w = defaultIncomeRoleWeight
		}
		ea.EstimatedIncome += w
		if u.Cargo.Amount > 0 {
			cal, _ := colony.CaloriesFor(u.Cargo.Type)
			ea.CarriedCalories += cal * u.Cargo.Amount
		}
	}
	if len(own) > 0 {
		ea.Efficiency = ea.EstimatedIncome / float64(len(own))
	}
	ea.Target = EconomyTargetFor(turn)
	ea.OnTrack = ea.EstimatedIncome >= ea.Target.Income
	return ea
}
