package bot

import (
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/colony-agent/pkg/colony"
)

// Task planner tuning.
const (
	assignmentStaleAfter = 30 * time.Second
	safetyRadius         = 2
	patrolRadius         = 2
	hotspotClearRange    = 4
)

var exploreRadius = map[Phase]int{
	PhaseEarly:    8,
	PhaseMid:      12,
	PhaseLate:     16,
	PhaseRecovery: 5,
}

// TaskType names a unit's job.
type TaskType string

const (
	TaskReturnHome       TaskType = "return_home"
	TaskCollectNectar    TaskType = "collect_nectar"
	TaskCollectBread     TaskType = "collect_bread"
	TaskCollectApple     TaskType = "collect_apple"
	TaskExplore          TaskType = "explore"
	TaskScout            TaskType = "scout"
	TaskCombat           TaskType = "combat"
	TaskConvoyProtection TaskType = "convoy_protection"
	TaskDefendTerritory  TaskType = "defend_territory"
	TaskImmediateDefense TaskType = "immediate_defense"
	TaskPatrol           TaskType = "patrol"
)

var collectTasks = map[TaskType]colony.ResourceType{
	TaskCollectNectar: colony.Nectar,
	TaskCollectBread:  colony.Bread,
	TaskCollectApple:  colony.Apple,
}

// Assignment is a unit's sticky task. TargetID identifies the enemy for
// combat-style tasks.
type Assignment struct {
	Type      TaskType   `json:"type"`
	Target    colony.Hex `json:"target"`
	TargetID  string     `json:"targetId,omitempty"`
	Priority  Priority   `json:"priority"`
	Timestamp time.Time  `json:"timestamp"`
}

// Order is the planner's decision for one unit this turn.
type Order struct {
	UnitID    string          `json:"unitId"`
	UnitType  colony.UnitType `json:"unitType"`
	Task      TaskType        `json:"task"`
	Priority  Priority        `json:"priority"`
	From      colony.Hex      `json:"from"`
	Target    colony.Hex      `json:"target"`
	Step      colony.Hex      `json:"step"`
	Continued bool            `json:"continued"`
	Unsafe    bool            `json:"unsafe"`
}

// Hold reports whether the unit stays where it is.
func (o Order) Hold() bool { return o.Step == o.From }

// Moves converts orders into single-cell move commands. Holds are omitted.
func Moves(orders []Order) []colony.Move {
	moves := make([]colony.Move, 0, len(orders))
	for _, o := range orders {
		if o.Hold() || o.UnitID == "" {
			continue
		}
		moves = append(moves, colony.Move{UnitID: o.UnitID, Path: []colony.Hex{o.Step}})
	}
	return moves
}

// TaskPlanner assigns every unit a task and a single step per turn. It owns
// the assignment table and is not safe for concurrent use.
type TaskPlanner struct {
	assignments map[string]*Assignment
	now         func() time.Time
	staleAfter  time.Duration
}

// NewTaskPlanner creates a planner using the wall clock.
func NewTaskPlanner() *TaskPlanner {
	return &TaskPlanner{
		assignments: make(map[string]*Assignment),
		now:         time.Now,
		staleAfter:  assignmentStaleAfter,
	}
}

// SetClock replaces the clock used to stamp and expire assignments.
func (p *TaskPlanner) SetClock(now func() time.Time) { p.now = now }

// Assignment returns the stored assignment for a unit.
func (p *TaskPlanner) Assignment(unitID string) (Assignment, bool) {
	a, ok := p.assignments[unitID]
	if !ok {
		return Assignment{}, false
	}
	return *a, true
}

// Assignments returns the number of stored assignments.
func (p *TaskPlanner) Assignments() int { return len(p.assignments) }

// turnPlan is the scratch state for one planning pass.
type turnPlan struct {
	a           *Analysis
	s           *Strategy
	anthill     *colony.Hex
	threats     []colony.Hex
	hotspots    []Hotspot
	claims      map[colony.Hex]int
	scoutClaims map[colony.Hex]bool
	preferred   map[string]ResourceAssignment
}

// PlanUnitActions returns one order per unit. Existing assignments are kept
// while still valid; everything else is reassigned from the role's
// candidate list, falling back to a patrol near the anthill.
func (p *TaskPlanner) PlanUnitActions(a *Analysis, s *Strategy) []Order {
	now := p.now()
	p.evictStale(now)

	tp := &turnPlan{
		a:           a,
		s:           s,
		anthill:     a.Units.Anthill,
		hotspots:    FindHotspots(a.Resources.Visible),
		claims:      make(map[colony.Hex]int),
		scoutClaims: make(map[colony.Hex]bool),
		preferred:   make(map[string]ResourceAssignment),
	}
	for _, e := range a.Threats.Enemies {
		tp.threats = append(tp.threats, e.Pos)
	}
	for _, ra := range s.Resource.Assignments {
		tp.preferred[ra.UnitID] = ra
	}

	units := append([]colony.Unit(nil), a.Units.Units...)
	sort.SliceStable(units, func(i, j int) bool { return unitKey(units[i]) < unitKey(units[j]) })

	alive := make(map[string]bool, len(units))
	continued := make(map[string]bool, len(units))
	for _, u := range units {
		key := unitKey(u)
		alive[key] = true
		asg, ok := p.assignments[key]
		if !ok {
			continue
		}
		if !p.stillValid(asg, u, tp) {
			log.Debug().Str("unit", key).Str("task", string(asg.Type)).Msg("Assignment invalidated")
			delete(p.assignments, key)
			continue
		}
		continued[key] = true
		tp.claim(asg)
	}
	for key := range p.assignments {
		if !alive[key] {
			delete(p.assignments, key)
		}
	}

	orders := make([]Order, 0, len(units))
	for _, u := range units {
		key := unitKey(u)
		var asg *Assignment
		if continued[key] {
			asg = p.assignments[key]
		} else {
			asg = p.assign(u, tp, now)
			if asg != nil {
				p.assignments[key] = asg
				tp.claim(asg)
			}
		}

		var o Order
		if asg != nil {
			o = tp.order(u, asg.Type, asg.Target, asg.Priority)
		} else {
			o = tp.order(u, TaskPatrol, tp.patrolPoint(u), PriorityLow)
		}
		o.Continued = continued[key]
		orders = append(orders, o)

		log.Debug().
			Str("unit", key).
			Str("task", string(o.Task)).
			Stringer("target", o.Target).
			Stringer("step", o.Step).
			Bool("continued", o.Continued).
			Bool("unsafe", o.Unsafe).
			Msg("Unit order")
	}
	return orders
}

func (p *TaskPlanner) evictStale(now time.Time) {
	for key, asg := range p.assignments {
		if now.Sub(asg.Timestamp) > p.staleAfter {
			log.Debug().Str("unit", key).Str("task", string(asg.Type)).Msg("Assignment stale")
			delete(p.assignments, key)
		}
	}
}

func (p *TaskPlanner) stillValid(asg *Assignment, u colony.Unit, tp *turnPlan) bool {
	switch asg.Type {
	case TaskCollectNectar, TaskCollectBread, TaskCollectApple:
		if _, ok := tp.a.Resources.Find(asg.Target); !ok {
			return false
		}
		stats, _ := colony.StatsFor(u.Type)
		return u.Cargo.Amount < stats.Cargo
	case TaskConvoyProtection:
		_, ok := tp.a.Resources.Find(asg.Target)
		return ok
	case TaskCombat, TaskImmediateDefense, TaskDefendTerritory:
		e, ok := tp.a.Threats.Find(asg.TargetID)
		if ok {
			asg.Target = e.Pos
		}
		return ok
	case TaskExplore:
		return !isAreaExplored(asg.Target)
	case TaskScout:
		return !isAreaExplored(asg.Target)
	case TaskReturnHome:
		return u.Cargo.Amount > 0 && tp.anthill != nil
	}
	return false
}

// isAreaExplored always reports false: exploration tasks only expire through
// staleness.
// TODO: decide what completes an exploration target (vision coverage of the
// target disk, or a visit) and expire explore/scout assignments on it.
func isAreaExplored(colony.Hex) bool { return false }

// candidates returns the role- and phase-ordered task list for a unit.
func candidates(u colony.Unit, tp *turnPlan) []TaskType {
	var out []TaskType
	if len(tp.a.Threats.Immediate) > 0 {
		out = append(out, TaskImmediateDefense)
	}
	if u.Cargo.Amount > 0 {
		out = append(out, TaskReturnHome)
	}
	switch u.Type {
	case colony.Scout:
		if tp.s.Phase == PhaseLate {
			out = append(out, TaskScout, TaskCollectNectar, TaskExplore)
		} else {
			out = append(out, TaskCollectNectar, TaskExplore, TaskScout)
		}
	case colony.Soldier:
		if tp.s.Phase == PhaseRecovery {
			out = append(out, TaskDefendTerritory, TaskConvoyProtection, TaskCombat)
		} else {
			out = append(out, TaskCombat, TaskConvoyProtection, TaskDefendTerritory)
		}
	case colony.Worker:
		out = append(out, TaskCollectBread, TaskCollectApple)
	default:
		log.Warn().Str("unit", unitKey(u)).Str("type", u.Type.String()).Msg("Unknown unit type, tasking as worker")
		out = append(out, TaskCollectBread, TaskCollectApple)
	}
	return out
}

func (p *TaskPlanner) assign(u colony.Unit, tp *turnPlan, now time.Time) *Assignment {
	for _, t := range candidates(u, tp) {
		asg := tp.handle(t, u)
		if asg == nil {
			continue
		}
		asg.Type = t
		asg.Timestamp = now
		return asg
	}
	return nil
}

func (tp *turnPlan) handle(t TaskType, u colony.Unit) *Assignment {
	switch t {
	case TaskReturnHome:
		if tp.anthill == nil || u.Cargo.Amount <= 0 {
			return nil
		}
		return &Assignment{Target: *tp.anthill, Priority: PriorityHigh}
	case TaskCollectNectar, TaskCollectBread, TaskCollectApple:
		return tp.collect(u, collectTasks[t])
	case TaskExplore:
		return tp.explore(u)
	case TaskScout:
		return tp.scout(u)
	case TaskCombat:
		return tp.combat(u)
	case TaskConvoyProtection:
		return tp.convoy(u)
	case TaskDefendTerritory:
		return tp.defend(u)
	case TaskImmediateDefense:
		return tp.immediateDefense(u)
	}
	return nil
}

func (tp *turnPlan) claim(asg *Assignment) {
	switch asg.Type {
	case TaskCollectNectar, TaskCollectBread, TaskCollectApple:
		tp.claims[asg.Target]++
	case TaskScout:
		tp.scoutClaims[asg.Target] = true
	}
}

// collect picks the nearest unclaimed resource of the given type, preferring
// the strategy's pairing for this unit when it matches.
func (tp *turnPlan) collect(u colony.Unit, rt colony.ResourceType) *Assignment {
	if pref, ok := tp.preferred[u.ID]; ok && pref.Type == rt && tp.claims[pref.Target] < maxUnitsPerResource {
		if info, ok := tp.a.Resources.Find(pref.Target); ok {
			return &Assignment{Target: info.Pos, Priority: ResourcePriorityFor(rt, info.Distance)}
		}
	}
	var best *ResourceInfo
	bestDist := colony.Infinite
	for i := range tp.a.Resources.ByType[rt] {
		r := &tp.a.Resources.ByType[rt][i]
		if tp.claims[r.Pos] >= maxUnitsPerResource {
			continue
		}
		if d := colony.Distance(u.Pos(), r.Pos); d < bestDist {
			best, bestDist = r, d
		}
	}
	if best == nil {
		return nil
	}
	return &Assignment{Target: best.Pos, Priority: ResourcePriorityFor(rt, best.Distance)}
}

func (tp *turnPlan) explore(u colony.Unit) *Assignment {
	for _, hs := range tp.hotspots {
		if !tp.ownUnitNear(hs.Center, hotspotClearRange, u) {
			return &Assignment{Target: hs.Center, Priority: PriorityMedium}
		}
	}
	center := u.Pos()
	if tp.anthill != nil {
		center = *tp.anthill
	}
	radius, ok := exploreRadius[tp.s.Phase]
	if !ok {
		radius = exploreRadius[PhaseEarly]
	}
	ring := colony.Ring(center, radius)
	return &Assignment{Target: ring[unitSlot(u)], Priority: PriorityLow}
}

func (tp *turnPlan) scout(u colony.Unit) *Assignment {
	for _, st := range tp.a.ThreatMap.RecommendedScoutTargets {
		if tp.scoutClaims[st.Pos] {
			continue
		}
		return &Assignment{Target: st.Pos, Priority: PriorityMedium}
	}
	return nil
}

// combat engages listed targets according to the stance: aggressive takes
// the nearest target, opportunistic only those inside the patrol radius, and
// defensive only immediate threats.
func (tp *turnPlan) combat(u colony.Unit) *Assignment {
	cs := tp.s.Combat
	var best *CombatTarget
	bestDist := colony.Infinite
	for i := range cs.Targets {
		t := &cs.Targets[i]
		switch cs.Stance {
		case StanceOpportunistic:
			if t.Distance > cs.PatrolRadius {
				continue
			}
		case StanceDefensive:
			if t.Distance > immediateThreatRange {
				continue
			}
		}
		if d := colony.Distance(u.Pos(), t.Pos); d < bestDist {
			best, bestDist = t, d
		}
	}
	if best == nil {
		return nil
	}
	return &Assignment{Target: best.Pos, TargetID: best.Key, Priority: PriorityHigh}
}

func (tp *turnPlan) convoy(u colony.Unit) *Assignment {
	for _, route := range tp.s.Resource.ProtectedRoutes {
		for _, id := range route.Escorts {
			if id == u.ID {
				return &Assignment{Target: route.Resource, Priority: PriorityMedium}
			}
		}
	}
	if !tp.s.Resource.Convoy.Recommended {
		return nil
	}
	var best *colony.Hex
	bestDist := colony.Infinite
	for i := range tp.s.Resource.Convoy.Targets {
		t := &tp.s.Resource.Convoy.Targets[i]
		if d := colony.Distance(u.Pos(), *t); d < bestDist {
			best, bestDist = t, d
		}
	}
	if best == nil {
		return nil
	}
	return &Assignment{Target: *best, Priority: PriorityMedium}
}

// defend intercepts the enemy closest to the anthill inside the patrol radius.
func (tp *turnPlan) defend(u colony.Unit) *Assignment {
	for _, e := range tp.nearestToAnthill(tp.a.Threats.Enemies) {
		if e.Distance <= tp.s.Combat.PatrolRadius {
			return &Assignment{Target: e.Pos, TargetID: e.Key, Priority: PriorityHigh}
		}
	}
	return nil
}

func (tp *turnPlan) immediateDefense(u colony.Unit) *Assignment {
	if u.Type == colony.Worker {
		return nil
	}
	var best *EnemyThreat
	bestDist := colony.Infinite
	for i := range tp.a.Threats.Immediate {
		e := &tp.a.Threats.Immediate[i]
		if d := colony.Distance(u.Pos(), e.Pos); d < bestDist {
			best, bestDist = e, d
		}
	}
	if best == nil {
		return nil
	}
	return &Assignment{Target: best.Pos, TargetID: best.Key, Priority: PriorityHigh}
}

func (tp *turnPlan) nearestToAnthill(enemies []EnemyThreat) []EnemyThreat {
	out := append([]EnemyThreat(nil), enemies...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

func (tp *turnPlan) ownUnitNear(h colony.Hex, radius int, except colony.Unit) bool {
	for _, o := range tp.a.Units.Units {
		if unitKey(o) == unitKey(except) {
			continue
		}
		if colony.Distance(o.Pos(), h) <= radius {
			return true
		}
	}
	return false
}

// patrolPoint picks the unit's slot on the ring around the anthill, moving to
// the next slot once the unit is standing on it.
func (tp *turnPlan) patrolPoint(u colony.Unit) colony.Hex {
	if tp.anthill == nil {
		return u.Pos()
	}
	return PatrolPoint(*tp.anthill, u)
}

// PatrolPoint is the default patrol destination for a unit around the anthill.
func PatrolPoint(anthill colony.Hex, u colony.Unit) colony.Hex {
	ring := colony.Ring(anthill, patrolRadius)
	slot := unitSlot(u)
	if ring[slot] == u.Pos() {
		slot = (slot + 1) % len(ring)
	}
	return ring[slot]
}

func (tp *turnPlan) order(u colony.Unit, task TaskType, target colony.Hex, prio Priority) Order {
	o := Order{
		UnitID:   u.ID,
		UnitType: u.Type,
		Task:     task,
		Priority: prio,
		From:     u.Pos(),
		Target:   target,
	}
	threats := tp.threats
	switch task {
	case TaskCombat, TaskImmediateDefense, TaskDefendTerritory, TaskConvoyProtection:
		// Engaging units close on their own target but still route around
		// every other enemy.
		threats = threatsExcept(tp.threats, target)
	}
	o.Step, o.Unsafe = SafeStep(o.From, target, threats)
	return o
}

func threatsExcept(threats []colony.Hex, target colony.Hex) []colony.Hex {
	out := make([]colony.Hex, 0, len(threats))
	for _, t := range threats {
		if t != target {
			out = append(out, t)
		}
	}
	return out
}

// SafeStep returns one greedy step from from toward to, avoiding cells within
// safetyRadius of any threat. Alternatives are neighbours that do not
// increase the distance to the target. When every candidate is unsafe the
// greedy step is returned with unsafe set.
func SafeStep(from, to colony.Hex, threats []colony.Hex) (step colony.Hex, unsafe bool) {
	if from == to {
		return from, false
	}
	greedy := colony.StepToward(from, to)
	if len(threats) == 0 {
		return greedy, false
	}

	cands := []colony.Hex{greedy}
	cur := colony.Distance(from, to)
	var alts []colony.Hex
	for _, n := range from.Neighbors() {
		if n != greedy && colony.Distance(n, to) <= cur {
			alts = append(alts, n)
		}
	}
	sort.SliceStable(alts, func(i, j int) bool {
		di, dj := colony.Distance(alts[i], to), colony.Distance(alts[j], to)
		if di != dj {
			return di < dj
		}
		return hexLess(alts[i], alts[j])
	})
	cands = append(cands, alts...)

	for _, c := range cands {
		if isSafe(c, threats) {
			return c, false
		}
	}
	return greedy, true
}

func isSafe(h colony.Hex, threats []colony.Hex) bool {
	for _, t := range threats {
		if colony.Distance(h, t) <= safetyRadius {
			return false
		}
	}
	return true
}

func unitKey(u colony.Unit) string {
	if u.ID != "" {
		return u.ID
	}
	return fmt.Sprintf("%s@%d,%d", u.Type, u.Q, u.R)
}

// unitSlot spreads units over the six ring positions.
func unitSlot(u colony.Unit) int {
	h := fnv.New32a()
	h.Write([]byte(unitKey(u)))
	return int(h.Sum32() % 6)
}
