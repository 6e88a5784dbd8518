package bot

import (
	"github.com/freeeve/colony-agent/pkg/colony"
)

// TurnResult is everything the core decided for one snapshot.
type TurnResult struct {
	Analysis *Analysis
	Strategy *Strategy
	Orders   []Order
	Moves    []colony.Move
}

// Agent runs the decision pipeline: analyze, choose a strategy, then task
// every unit. It holds the only cross-turn state (threat map, recovery state
// and assignments) and is not safe for concurrent use.
type Agent struct {
	analyzer *Analyzer
	strategy *StrategyPlanner
	tasks    *TaskPlanner
}

// NewAgent creates an Agent with fresh state.
func NewAgent() *Agent {
	return &Agent{
		analyzer: NewAnalyzer(),
		strategy: NewStrategyPlanner(),
		tasks:    NewTaskPlanner(),
	}
}

// Analyzer returns the agent's analyzer.
func (a *Agent) Analyzer() *Analyzer { return a.analyzer }

// StrategyPlanner returns the agent's strategy planner.
func (a *Agent) StrategyPlanner() *StrategyPlanner { return a.strategy }

// TaskPlanner returns the agent's task planner.
func (a *Agent) TaskPlanner() *TaskPlanner { return a.tasks }

// Turn processes one snapshot.
func (a *Agent) Turn(s *colony.Snapshot) *TurnResult {
	analysis := a.analyzer.Analyze(s)
	strategy := a.strategy.DetermineStrategy(analysis)
	orders := a.tasks.PlanUnitActions(analysis, strategy)
	return &TurnResult{
		Analysis: analysis,
		Strategy: strategy,
		Orders:   orders,
		Moves:    Moves(orders),
	}
}
