package bot

import (
	"testing"

	"github.com/freeeve/colony-agent/pkg/colony"
)

// census builds a minimal analysis with the given unit counts.
func census(turn, total, soldiers int) *Analysis {
	return &Analysis{
		Turn:  turn,
		Phase: PhaseEarly,
		Units: UnitAnalysis{Counts: UnitCounts{Total: total, Soldiers: soldiers, Workers: total - soldiers}},
	}
}

func withEnemies(a *Analysis, n int) *Analysis {
	for i := 0; i < n; i++ {
		a.Threats.Enemies = append(a.Threats.Enemies, EnemyThreat{Key: string(rune('a' + i)), Unit: colony.Unit{Type: colony.Worker}, Distance: 20})
	}
	return a
}

func TestRecoveryHeavyLosses(t *testing.T) {
	p := NewStrategyPlanner()
	totals := []int{10, 10, 9, 6}
	var s *Strategy
	for i, total := range totals {
		s = p.DetermineStrategy(census(10+i, total, 2))
		if i < len(totals)-1 && s.Recovery {
			t.Fatalf("turn %d entered recovery early", 10+i)
		}
	}
	if !s.Recovery || s.Phase != PhaseRecovery || s.BasePhase != PhaseEarly {
		t.Fatalf("strategy = %+v, want recovery", s)
	}
	if s.RecoveryStartTurn == nil || *s.RecoveryStartTurn != 13 {
		t.Errorf("start turn = %v, want 13", s.RecoveryStartTurn)
	}
	if rs := p.RecoveryState(); rs.Reason != "heavy_losses" {
		t.Errorf("reason = %q", rs.Reason)
	}
	if s.Name != "recovery_rebuild" || s.Combat.Stance != StanceDefensive || s.Combat.PatrolRadius != recoveryPatrolRadius {
		t.Errorf("recovery strategy = %s/%s/%d", s.Name, s.Combat.Stance, s.Combat.PatrolRadius)
	}
}

func TestRecoveryDwell(t *testing.T) {
	p := NewStrategyPlanner()
	for i, total := range []int{10, 10, 9, 6} {
		p.DetermineStrategy(census(10+i, total, 2))
	}
	// Fully rebuilt immediately, but must stay until the dwell time passes.
	for turn := 14; turn < 18; turn++ {
		if s := p.DetermineStrategy(census(turn, 10, 3)); !s.Recovery {
			t.Fatalf("left recovery at turn %d, before dwell", turn)
		}
	}
	s := p.DetermineStrategy(census(18, 10, 3))
	if s.Recovery || s.RecoveryStartTurn != nil {
		t.Errorf("still in recovery at turn 18: %+v", s)
	}
	if rs := p.RecoveryState(); rs.Triggered || rs.Reason != "" {
		t.Errorf("state not cleared: %+v", rs)
	}
}

func TestRecoveryNeedsSoldiersToExit(t *testing.T) {
	p := NewStrategyPlanner()
	for i, total := range []int{10, 10, 9, 6} {
		p.DetermineStrategy(census(10+i, total, 2))
	}
	if s := p.DetermineStrategy(census(30, 12, 1)); !s.Recovery {
		t.Error("left recovery with a single soldier")
	}
}

func TestRecoveryEntryReasons(t *testing.T) {
	hist := func(totals ...int) []HistoryEntry {
		out := make([]HistoryEntry, len(totals))
		for i, n := range totals {
			out[i] = HistoryEntry{Turn: 20 + i, Total: n}
		}
		return out
	}
	tests := []struct {
		name    string
		history []HistoryEntry
		turn    int
		counts  UnitCounts
		enemies int
		want    string
	}{
		{"short history", hist(10, 4), 20, UnitCounts{Total: 4, Soldiers: 1}, 0, ""},
		{"too early", hist(10, 10, 4), 9, UnitCounts{Total: 4, Soldiers: 1}, 0, ""},
		{"forty percent loss", hist(10, 10, 6), 22, UnitCounts{Total: 6, Soldiers: 1}, 0, "heavy_losses"},
		{"thirty percent loss", hist(10, 10, 7), 22, UnitCounts{Total: 7, Soldiers: 1}, 0, ""},
		{"small colony losses ignored", hist(7, 7, 4), 22, UnitCounts{Total: 4, Soldiers: 1}, 0, ""},
		{"loss measured over lookback", hist(20, 10, 10, 10, 6), 24, UnitCounts{Total: 6, Soldiers: 1}, 0, "heavy_losses"},
		{"critical count", hist(3, 3, 2), 22, UnitCounts{Total: 2, Soldiers: 1}, 0, "critical_unit_count"},
		{"no soldiers under threat", hist(5, 5, 5), 22, UnitCounts{Total: 5}, 1, "no_soldiers_under_threat"},
		{"no soldiers before turn 16", hist(5, 5, 5), 15, UnitCounts{Total: 5}, 1, ""},
		{"no soldiers no enemies", hist(5, 5, 5), 22, UnitCounts{Total: 5}, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := recoveryEntryReason(tt.history, tt.turn, tt.counts, tt.enemies); got != tt.want {
				t.Errorf("reason = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHistoryWindow(t *testing.T) {
	p := NewStrategyPlanner()
	p.DetermineStrategy(census(1, 5, 1))
	p.DetermineStrategy(census(1, 6, 1))
	if h := p.RecoveryState().History; len(h) != 1 || h[0].Total != 6 {
		t.Fatalf("repeated turn should replace entry, got %+v", h)
	}
	for turn := 2; turn <= 25; turn++ {
		p.DetermineStrategy(census(turn, 9, 3))
	}
	h := p.RecoveryState().History
	if len(h) != historyWindow || h[0].Turn != 16 || h[len(h)-1].Turn != 25 {
		t.Errorf("history = %+v", h)
	}
}

func TestRecoveryStateIsCopy(t *testing.T) {
	p := NewStrategyPlanner()
	p.DetermineStrategy(census(1, 5, 1))
	rs := p.RecoveryState()
	rs.History[0].Total = 99
	if p.RecoveryState().History[0].Total != 5 {
		t.Error("RecoveryState exposed internal history")
	}
}

func TestStrategyName(t *testing.T) {
	immediate := census(5, 5, 1)
	immediate.Threats.Immediate = []EnemyThreat{{Key: "x"}}
	highValue := census(5, 5, 1)
	highValue.Resources.HighValue = make([]HighValueResource, 3)
	mid := census(60, 5, 1)
	mid.Phase = PhaseMid
	late := census(400, 5, 1)
	late.Phase = PhaseLate

	tests := []struct {
		name  string
		a     *Analysis
		phase Phase
		want  string
	}{
		{"recovery", census(5, 5, 1), PhaseRecovery, "recovery_rebuild"},
		{"immediate threat", immediate, PhaseEarly, "defend_and_harvest"},
		{"many enemies", withEnemies(census(5, 5, 1), 3), PhaseEarly, "contested_expansion"},
		{"some enemies", withEnemies(census(5, 5, 1), 1), PhaseEarly, "aggressive_raiding"},
		{"high value", highValue, PhaseEarly, "high_value_rush"},
		{"mid", mid, PhaseMid, "economic_growth"},
		{"late", late, PhaseLate, "dominance_push"},
		{"early", census(5, 5, 1), PhaseEarly, "rapid_expansion"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := strategyName(tt.a, tt.phase); got != tt.want {
				t.Errorf("strategyName = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPriorities(t *testing.T) {
	a := census(5, 5, 1)
	a.EnemyBases = []colony.Hex{{Q: 9, R: 9}}
	a.Threats.Immediate = []EnemyThreat{{Key: "x"}}
	got := priorities(a, PhaseEarly)
	want := []string{PriorityRaidEnemyBases, PriorityImmediateDefense, PriorityCollectHighValue, PriorityExploreTerritory, PriorityExpandWorkforce}
	if len(got) != len(want) {
		t.Fatalf("priorities = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("priorities[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestResourcePriorityFor(t *testing.T) {
	tests := []struct {
		rt   colony.ResourceType
		d    int
		want Priority
	}{
		{colony.Nectar, 5, PriorityHigh},
		{colony.Nectar, 12, PriorityHigh},
		{colony.Nectar, 13, PriorityMedium},
		{colony.Bread, 3, PriorityHigh},
		{colony.Bread, 6, PriorityMedium},
		{colony.Bread, 20, PriorityLow},
		{colony.Apple, 0, PriorityMedium},
		{colony.Apple, 8, PriorityLow},
		{colony.ResourceTypeUnknown, 0, PriorityLow},
		{colony.Nectar, colony.Infinite, PriorityMedium},
	}
	for _, tt := range tests {
		if got := ResourcePriorityFor(tt.rt, tt.d); got != tt.want {
			t.Errorf("ResourcePriorityFor(%v, %d) = %s, want %s", tt.rt, tt.d, got, tt.want)
		}
	}
}

func TestAssignResourcesCapsPerResource(t *testing.T) {
	units := []colony.Unit{
		unit("s1", 1, 0, colony.Scout),
		unit("s2", 0, 1, colony.Scout),
		unit("s3", -1, 1, colony.Scout),
		{ID: "w1", Q: 0, R: 0, Type: colony.Worker, Cargo: colony.Cargo{Type: colony.Apple, Amount: 2}},
	}
	nectar := colony.Hex{Q: 2, R: 0}
	resources := []ResourcePriority{{Pos: nectar, Type: colony.Nectar, Amount: 3, Distance: 2, Priority: PriorityHigh}}

	got := assignResources(units, resources)
	if len(got) != maxUnitsPerResource {
		t.Fatalf("assignments = %+v, want %d", got, maxUnitsPerResource)
	}
	for _, as := range got {
		if as.UnitID == "w1" {
			t.Error("unit carrying cargo was assigned")
		}
		if as.Target != nectar {
			t.Errorf("unexpected target %s", as.Target)
		}
	}
	if got[0].UnitID != "s1" {
		t.Errorf("closest scout should win first, got %s", got[0].UnitID)
	}
}

func TestAssignResourcesPrefersAffinity(t *testing.T) {
	units := []colony.Unit{unit("w1", 0, 0, colony.Worker), unit("sc", 0, 0, colony.Scout)}
	resources := []ResourcePriority{
		{Pos: colony.Hex{Q: 3}, Type: colony.Nectar, Distance: 3, Priority: PriorityHigh},
		{Pos: colony.Hex{Q: -3}, Type: colony.Bread, Distance: 3, Priority: PriorityHigh},
	}
	got := assignResources(units, resources)
	byUnit := map[string]colony.ResourceType{}
	for _, as := range got {
		byUnit[as.UnitID] = as.Type
	}
	if byUnit["sc"] != colony.Nectar || byUnit["w1"] != colony.Bread {
		t.Errorf("assignments = %+v", got)
	}
}

func TestResourceStrategyConvoy(t *testing.T) {
	a := census(30, 3, 1)
	soldier := unit("so", 11, 0, colony.Soldier)
	a.Units.Units = []colony.Unit{soldier}
	a.Units.Soldiers = []colony.Unit{soldier}
	a.Threats.Level = 0.5
	a.Resources.Visible = []ResourceInfo{
		{Pos: colony.Hex{Q: 12}, Type: colony.Nectar, Amount: 1, Distance: 12},
		{Pos: colony.Hex{Q: 0, R: 11}, Type: colony.Apple, Amount: 1, Distance: 11},
		{Pos: colony.Hex{Q: 2}, Type: colony.Bread, Amount: 1, Distance: 2},
	}
	rs := resourceStrategy(a)

	if rs.Priorities[0].Type != colony.Nectar && rs.Priorities[0].Type != colony.Bread {
		t.Errorf("first priority = %+v", rs.Priorities[0])
	}
	if !rs.Convoy.Recommended || len(rs.Convoy.Targets) != 1 || rs.Convoy.Targets[0] != (colony.Hex{Q: 12}) {
		t.Errorf("convoy = %+v", rs.Convoy)
	}
	if rs.Convoy.Escorts != 1 {
		t.Errorf("escorts = %d", rs.Convoy.Escorts)
	}
	if len(rs.ProtectedRoutes) != 1 || rs.ProtectedRoutes[0].Escorts[0] != "so" {
		t.Errorf("protected routes = %+v", rs.ProtectedRoutes)
	}

	a.Threats.Level = 0.1
	if resourceStrategy(a).Convoy.Recommended {
		t.Error("convoy recommended under low threat")
	}
}

func TestCombatStrategy(t *testing.T) {
	a := census(20, 2, 2)
	a.Units.Units = []colony.Unit{unit("a", 0, 0, colony.Soldier), unit("b", 1, 0, colony.Soldier)}
	cs := combatStrategy(a, PhaseMid)
	if cs.OwnForce != 140 || cs.Readiness != 1.5*140/minEnemyForce {
		t.Errorf("force/readiness = %v/%v", cs.OwnForce, cs.Readiness)
	}
	if cs.Stance != StanceAggressive || cs.PatrolRadius != 12 {
		t.Errorf("stance/radius = %s/%d", cs.Stance, cs.PatrolRadius)
	}

	weak := census(20, 1, 0)
	weak.Units.Units = []colony.Unit{unit("w", 0, 0, colony.Worker)}
	for i := 0; i < 7; i++ {
		weak.Threats.Enemies = append(weak.Threats.Enemies, EnemyThreat{Key: string(rune('a' + i)), Unit: colony.Unit{Type: colony.Soldier}})
	}
	cs = combatStrategy(weak, PhaseMid)
	if cs.Stance != StanceOpportunistic {
		t.Errorf("weak stance = %s", cs.Stance)
	}
	if len(cs.Targets) != maxCombatTargets {
		t.Errorf("targets = %d, want %d", len(cs.Targets), maxCombatTargets)
	}

	big := census(20, 30, 9)
	if r := combatStrategy(big, PhaseLate).PatrolRadius; r != maxPatrolRadius {
		t.Errorf("patrol radius = %d, want cap %d", r, maxPatrolRadius)
	}
}

func TestDetermineStrategyAdaptations(t *testing.T) {
	p := NewStrategyPlanner()
	a := census(20, 4, 0)
	a.Units.Proportions = UnitProportions{Workers: 1}
	a.Threats.Level = 0.8
	a.Threats.Immediate = []EnemyThreat{{Key: "x"}}
	s := p.DetermineStrategy(a)

	names := map[string]bool{}
	for _, ad := range s.Adaptations {
		names[ad.Name] = true
	}
	for _, want := range []string{"increase_soldiers", "reinforce_defense", "need_scouts"} {
		if !names[want] {
			t.Errorf("missing adaptation %s in %+v", want, s.Adaptations)
		}
	}
}

func TestCustomAdaptationRules(t *testing.T) {
	rules, err := NewAdaptationRules([]AdaptationRule{{Name: "late_push", Reason: "late game", Condition: `phase == "late"`}})
	if err != nil {
		t.Fatal(err)
	}
	p := NewStrategyPlanner()
	p.SetAdaptationRules(rules)

	a := census(400, 5, 2)
	a.Phase = PhaseLate
	s := p.DetermineStrategy(a)
	if len(s.Adaptations) != 1 || s.Adaptations[0].Name != "late_push" {
		t.Errorf("adaptations = %+v", s.Adaptations)
	}
}
