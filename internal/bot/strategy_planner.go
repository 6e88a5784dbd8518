package bot

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/pkg/colony"
)

// Recovery and resource-strategy tuning.
const (
	historyWindow         = 10
	recoveryMinHistory    = 3
	recoveryMinTurn       = 10
	recoveryLossLookback  = 3
	recoveryLossStartMin  = 8
	recoveryCriticalUnits = 3
	recoveryNoSoldierTurn = 15
	recoveryExitUnits     = 8
	recoveryExitSoldiers  = 2
	recoveryMinDwellTurns = 5
	resourceNearRange     = 5
	resourceMidRange      = 12
	maxResourcePriorities = 20
	maxUnitsPerResource   = 2
	convoyDistance        = 10
	convoyThreatLevel     = 0.3
	maxConvoyTargets      = 5
	protectedRouteRange   = 6
	maxCombatTargets      = 5
	basePatrolRadius      = 10
	maxPatrolRadius       = 15
	recoveryPatrolRadius  = 5
	minEnemyForce         = 25
	aggressiveReadiness   = 0.6
)

// Priority names emitted in Strategy.Priorities.
const (
	PriorityRaidEnemyBases     = "raid_enemy_bases"
	PriorityImmediateDefense   = "immediate_defense"
	PriorityCollectHighValue   = "collect_high_value"
	PriorityExploreTerritory   = "explore_territory"
	PriorityExpandWorkforce    = "expand_workforce"
	PrioritySecureRoutes       = "secure_resource_routes"
	PriorityAggressiveScouting = "aggressive_scouting"
	PriorityHarvest            = "harvest_resources"
	PriorityHuntEnemies        = "hunt_enemy_units"
	PriorityControlTerritory   = "control_territory"
	PriorityMaximizeHarvest    = "maximize_harvest"
	PriorityProtectAnthill     = "protect_anthill"
	PriorityRebuildWorkforce   = "rebuild_workforce"
	PrioritySafeHarvest        = "safe_harvest"
	PriorityAvoidEngagements   = "avoid_engagements"
)

var phasePriorities = map[Phase][]string{
	PhaseEarly:    {PriorityCollectHighValue, PriorityExploreTerritory, PriorityExpandWorkforce},
	PhaseMid:      {PrioritySecureRoutes, PriorityAggressiveScouting, PriorityHarvest, PriorityHuntEnemies},
	PhaseLate:     {PriorityHuntEnemies, PriorityControlTerritory, PriorityMaximizeHarvest},
	PhaseRecovery: {PriorityProtectAnthill, PriorityRebuildWorkforce, PrioritySafeHarvest, PriorityAvoidEngagements},
}

// Stance is the combat posture.
type Stance string

const (
	StanceAggressive    Stance = "aggressive"
	StanceOpportunistic Stance = "opportunistic"
	StanceDefensive     Stance = "defensive"
)

var forceWeight = map[colony.UnitType]float64{
	colony.Soldier: 70,
	colony.Scout:   35,
	colony.Worker:  25,
}

const defaultForceWeight = 10

// HistoryEntry is one turn's unit census.
type HistoryEntry struct {
	Turn     int `json:"turn"`
	Total    int `json:"total"`
	Workers  int `json:"workers"`
	Soldiers int `json:"soldiers"`
	Scouts   int `json:"scouts"`
}

// RecoveryState is the recovery-mode state machine plus its rolling census.
type RecoveryState struct {
	Triggered bool           `json:"triggered"`
	StartTurn *int           `json:"startTurn"`
	Reason    string         `json:"reason,omitempty"`
	History   []HistoryEntry `json:"history"`
}

// ResourcePriority is a visible resource ranked for collection.
type ResourcePriority struct {
	Pos      colony.Hex          `json:"pos"`
	Type     colony.ResourceType `json:"type"`
	Amount   int                 `json:"amount"`
	Distance int                 `json:"distance"`
	Priority Priority            `json:"priority"`
}

// ResourceAssignment pairs a unit with a resource it is best suited to collect.
type ResourceAssignment struct {
	UnitID string              `json:"unitId"`
	Target colony.Hex          `json:"target"`
	Type   colony.ResourceType `json:"type"`
	Score  float64             `json:"score"`
}

// ConvoyPlan recommends escorting long-distance collection under threat.
type ConvoyPlan struct {
	Recommended bool         `json:"recommended"`
	Targets     []colony.Hex `json:"targets"`
	Escorts     int          `json:"escorts"`
}

// ProtectedRoute is a high-priority resource with soldiers close enough to guard it.
type ProtectedRoute struct {
	Resource colony.Hex          `json:"resource"`
	Type     colony.ResourceType `json:"type"`
	Escorts  []string            `json:"escorts"`
}

// ResourceStrategy is the collection plan for the turn.
type ResourceStrategy struct {
	Priorities      []ResourcePriority   `json:"priorities"`
	Assignments     []ResourceAssignment `json:"assignments"`
	Convoy          ConvoyPlan           `json:"convoy"`
	ProtectedRoutes []ProtectedRoute     `json:"protectedRoutes"`
}

// CombatTarget is an enemy worth engaging.
type CombatTarget struct {
	Key      string     `json:"key"`
	Pos      colony.Hex `json:"pos"`
	Level    float64    `json:"level"`
	Distance int        `json:"distance"`
}

// CombatStrategy is the combat posture for the turn. Combat is planned, never resolved.
type CombatStrategy struct {
	Stance       Stance         `json:"stance"`
	Readiness    float64        `json:"readiness"`
	OwnForce     float64        `json:"ownForce"`
	EnemyForce   float64        `json:"enemyForce"`
	PatrolRadius int            `json:"patrolRadius"`
	Targets      []CombatTarget `json:"targets"`
}

// Strategy is the per-turn strategic decision. It is never mutated after
// DetermineStrategy returns.
type Strategy struct {
	Turn              int              `json:"turn"`
	Phase             Phase            `json:"phase"`
	BasePhase         Phase            `json:"basePhase"`
	Name              string           `json:"name"`
	Priorities        []string         `json:"priorities"`
	Resource          ResourceStrategy `json:"resource"`
	Combat            CombatStrategy   `json:"combat"`
	Adaptations       []Adaptation     `json:"adaptations"`
	Recovery          bool             `json:"recovery"`
	RecoveryStartTurn *int             `json:"recoveryStartTurn"`
}

// StrategyPlanner chooses the colony's posture each turn. It owns the
// recovery state machine, which lives for the whole process.
type StrategyPlanner struct {
	recovery RecoveryState
	rules    *AdaptationRules
}

// NewStrategyPlanner creates a planner with the default adaptation rules.
func NewStrategyPlanner() *StrategyPlanner {
	return &StrategyPlanner{rules: mustDefaultAdaptationRules()}
}

// SetAdaptationRules replaces the adaptation rule set.
func (p *StrategyPlanner) SetAdaptationRules(rules *AdaptationRules) {
	p.rules = rules
}

// RecoveryState returns a copy of the current recovery state.
func (p *StrategyPlanner) RecoveryState() RecoveryState {
	rs := p.recovery
	rs.History = append([]HistoryEntry(nil), p.recovery.History...)
	return rs
}

// DetermineStrategy records the turn's census, advances the recovery state
// machine, and derives the strategy for the effective phase.
func (p *StrategyPlanner) DetermineStrategy(a *Analysis) *Strategy {
	p.record(a)
	p.updateRecovery(a)

	phase := a.Phase
	if p.recovery.Triggered {
		phase = PhaseRecovery
	}

	s := &Strategy{
		Turn:      a.Turn,
		Phase:     phase,
		BasePhase: a.Phase,
		Recovery:  p.recovery.Triggered,
	}
	if p.recovery.StartTurn != nil {
		start := *p.recovery.StartTurn
		s.RecoveryStartTurn = &start
	}
	s.Name = strategyName(a, phase)
	s.Priorities = priorities(a, phase)
	s.Resource = resourceStrategy(a)
	s.Combat = combatStrategy(a, phase)
	s.Adaptations = p.rules.Evaluate(adaptationEnv(a, phase, s.Recovery))

	log.Debug().
		Int("turn", a.Turn).
		Str("phase", string(phase)).
		Str("strategy", s.Name).
		Str("stance", string(s.Combat.Stance)).
		Bool("recovery", s.Recovery).
		Msg("Strategy determined")
	return s
}

// record appends the census; a repeated turn replaces its earlier entry.
func (p *StrategyPlanner) record(a *Analysis) {
	entry := HistoryEntry{
		Turn:     a.Turn,
		Total:    a.Units.Counts.Total,
		Workers:  a.Units.Counts.Workers,
		Soldiers: a.Units.Counts.Soldiers,
		Scouts:   a.Units.Counts.Scouts,
	}
	h := p.recovery.History
	if n := len(h); n > 0 && h[n-1].Turn == entry.Turn {
		h[n-1] = entry
		return
	}
	h = append(h, entry)
	if len(h) > historyWindow {
		h = h[len(h)-historyWindow:]
	}
	p.recovery.History = h
}

func (p *StrategyPlanner) updateRecovery(a *Analysis) {
	counts := a.Units.Counts
	if !p.recovery.Triggered {
		reason := recoveryEntryReason(p.recovery.History, a.Turn, counts, len(a.Threats.Enemies))
		if reason == "" {
			return
		}
		start := a.Turn
		p.recovery.Triggered = true
		p.recovery.StartTurn = &start
		p.recovery.Reason = reason
		log.Warn().Int("turn", a.Turn).Str("reason", reason).Int("units", counts.Total).Msg("Entering recovery mode")
		return
	}

	dwell := a.Turn - *p.recovery.StartTurn
	if counts.Total >= recoveryExitUnits && counts.Soldiers >= recoveryExitSoldiers && dwell >= recoveryMinDwellTurns {
		log.Info().Int("turn", a.Turn).Int("dwell", dwell).Int("units", counts.Total).Msg("Leaving recovery mode")
		p.recovery.Triggered = false
		p.recovery.StartTurn = nil
		p.recovery.Reason = ""
	}
}

// recoveryEntryReason returns why recovery should start, or "" if it should not.
func recoveryEntryReason(history []HistoryEntry, turn int, counts UnitCounts, enemies int) string {
	if len(history) < recoveryMinHistory || turn < recoveryMinTurn {
		return ""
	}
	current := history[len(history)-1]
	start := history[max(0, len(history)-1-recoveryLossLookback)]
	lost := start.Total - current.Total
	switch {
	case start.Total >= recoveryLossStartMin && lost*10 >= start.Total*4:
		return "heavy_losses"
	case counts.Total < recoveryCriticalUnits:
		return "critical_unit_count"
	case counts.Soldiers == 0 && enemies > 0 && turn > recoveryNoSoldierTurn:
		return "no_soldiers_under_threat"
	}
	return ""
}

func strategyName(a *Analysis, phase Phase) string {
	switch {
	case phase == PhaseRecovery:
		return "recovery_rebuild"
	case len(a.Threats.Immediate) > 0:
		return "defend_and_harvest"
	case len(a.Threats.Enemies) >= 3:
		return "contested_expansion"
	case len(a.Threats.Enemies) > 0:
		return "aggressive_raiding"
	case len(a.Resources.HighValue) >= 3:
		return "high_value_rush"
	}
	switch phase {
	case PhaseMid:
		return "economic_growth"
	case PhaseLate:
		return "dominance_push"
	}
	return "rapid_expansion"
}

func priorities(a *Analysis, phase Phase) []string {
	var out []string
	if len(a.EnemyBases) > 0 {
		out = append(out, PriorityRaidEnemyBases)
	}
	if len(a.Threats.Immediate) > 0 {
		out = append(out, PriorityImmediateDefense)
	}
	return append(out, phasePriorities[phase]...)
}

// ResourcePriorityFor buckets a resource by type and distance from the anthill.
func ResourcePriorityFor(t colony.ResourceType, distance int) Priority {
	bucket := 2
	switch {
	case distance <= resourceNearRange:
		bucket = 0
	case distance <= resourceMidRange:
		bucket = 1
	}
	table := map[colony.ResourceType][3]Priority{
		colony.Nectar: {PriorityHigh, PriorityHigh, PriorityMedium},
		colony.Bread:  {PriorityHigh, PriorityMedium, PriorityLow},
		colony.Apple:  {PriorityMedium, PriorityLow, PriorityLow},
	}
	row, ok := table[t]
	if !ok {
		return PriorityLow
	}
	return row[bucket]
}

var resourceAffinity = map[colony.UnitType]map[colony.ResourceType]float64{
	colony.Worker:  {colony.Apple: 1.0, colony.Bread: 1.0, colony.Nectar: 0.3},
	colony.Scout:   {colony.Apple: 0.3, colony.Bread: 0.4, colony.Nectar: 1.2},
	colony.Soldier: {colony.Apple: 0.1, colony.Bread: 0.1, colony.Nectar: 0.1},
}

const defaultResourceAffinity = 0.5

func affinity(u colony.UnitType, r colony.ResourceType) float64 {
	if row, ok := resourceAffinity[u]; ok {
		if v, ok := row[r]; ok {
			return v
		}
	}
	return defaultResourceAffinity
}

func resourceStrategy(a *Analysis) ResourceStrategy {
	rs := ResourceStrategy{
		Priorities:      []ResourcePriority{},
		Assignments:     []ResourceAssignment{},
		Convoy:          ConvoyPlan{Targets: []colony.Hex{}},
		ProtectedRoutes: []ProtectedRoute{},
	}

	for _, r := range a.Resources.Visible {
		rs.Priorities = append(rs.Priorities, ResourcePriority{
			Pos:      r.Pos,
			Type:     r.Type,
			Amount:   r.Amount,
			Distance: r.Distance,
			Priority: ResourcePriorityFor(r.Type, r.Distance),
		})
	}
	sort.SliceStable(rs.Priorities, func(i, j int) bool {
		pi, pj := rs.Priorities[i], rs.Priorities[j]
		if pi.Priority.rank() != pj.Priority.rank() {
			return pi.Priority.rank() < pj.Priority.rank()
		}
		return pi.Distance < pj.Distance
	})
	if len(rs.Priorities) > maxResourcePriorities {
		rs.Priorities = rs.Priorities[:maxResourcePriorities]
	}

	rs.Assignments = assignResources(a.Units.Units, rs.Priorities)

	for _, r := range rs.Priorities {
		if r.Distance > convoyDistance && r.Distance != colony.Infinite &&
			(r.Type == colony.Nectar || r.Type == colony.Bread) && len(rs.Convoy.Targets) < maxConvoyTargets {
			rs.Convoy.Targets = append(rs.Convoy.Targets, r.Pos)
		}
	}
	if len(rs.Convoy.Targets) > 0 && a.Threats.Level > convoyThreatLevel {
		rs.Convoy.Recommended = true
		rs.Convoy.Escorts = min(a.Units.Counts.Soldiers, len(rs.Convoy.Targets))
	}

	for _, r := range rs.Priorities {
		if r.Priority != PriorityHigh {
			continue
		}
		var escorts []string
		for _, s := range a.Units.Soldiers {
			if colony.Distance(s.Pos(), r.Pos) <= protectedRouteRange {
				escorts = append(escorts, s.ID)
			}
		}
		if len(escorts) > 0 {
			rs.ProtectedRoutes = append(rs.ProtectedRoutes, ProtectedRoute{Resource: r.Pos, Type: r.Type, Escorts: escorts})
		}
	}
	return rs
}

// assignResources greedily pairs units and resources by suitability score.
// Units already carrying cargo are left out; they are heading home.
func assignResources(units []colony.Unit, resources []ResourcePriority) []ResourceAssignment {
	type pair struct {
		unit  colony.Unit
		res   ResourcePriority
		score float64
	}
	var pairs []pair
	for _, u := range units {
		if u.Cargo.Amount > 0 {
			continue
		}
		for _, r := range resources {
			score := affinity(u.Type, r.Type) * r.Priority.weight() / (1 + float64(colony.Distance(u.Pos(), r.Pos)))
			pairs = append(pairs, pair{unit: u, res: r, score: score})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		if pairs[i].unit.ID != pairs[j].unit.ID {
			return pairs[i].unit.ID < pairs[j].unit.ID
		}
		return hexLess(pairs[i].res.Pos, pairs[j].res.Pos)
	})

	assigned := make(map[string]bool)
	load := make(map[colony.Hex]int)
	out := []ResourceAssignment{}
	for _, p := range pairs {
		if assigned[p.unit.ID] || load[p.res.Pos] >= maxUnitsPerResource {
			continue
		}
		assigned[p.unit.ID] = true
		load[p.res.Pos]++
		out = append(out, ResourceAssignment{UnitID: p.unit.ID, Target: p.res.Pos, Type: p.res.Type, Score: p.score})
	}
	return out
}

func combatStrategy(a *Analysis, phase Phase) CombatStrategy {
	cs := CombatStrategy{Targets: []CombatTarget{}}
	for _, u := range a.Units.Units {
		cs.OwnForce += forceOf(u.Type)
	}
	for _, e := range a.Threats.Enemies {
		cs.EnemyForce += forceOf(e.Unit.Type)
	}
	cs.Readiness = 1.5 * cs.OwnForce / math.Max(cs.EnemyForce, minEnemyForce)

	if cs.Readiness >= aggressiveReadiness {
		cs.Stance = StanceAggressive
	} else {
		cs.Stance = StanceOpportunistic
	}
	cs.PatrolRadius = min(basePatrolRadius+a.Units.Counts.Soldiers, maxPatrolRadius)
	if phase == PhaseRecovery {
		cs.Stance = StanceDefensive
		cs.PatrolRadius = min(cs.PatrolRadius, recoveryPatrolRadius)
	}

	for i, e := range a.Threats.Enemies {
		if i >= maxCombatTargets {
			break
		}
		cs.Targets = append(cs.Targets, CombatTarget{Key: e.Key, Pos: e.Pos, Level: e.Level, Distance: e.Distance})
	}
	return cs
}

func forceOf(t colony.UnitType) float64 {
	if w, ok := forceWeight[t]; ok {
		return w
	}
	return defaultForceWeight
}
