package bot

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rs/zerolog/log"
)

// AdaptationEnv is the variable set adaptation conditions are evaluated against.
type AdaptationEnv struct {
	Turn             int     `expr:"turn"`
	Phase            string  `expr:"phase"`
	Recovery         bool    `expr:"recovery"`
	ThreatLevel      float64 `expr:"threatLevel"`
	Total            int     `expr:"total"`
	Workers          int     `expr:"workers"`
	Soldiers         int     `expr:"soldiers"`
	Scouts           int     `expr:"scouts"`
	WorkerRatio      float64 `expr:"workerRatio"`
	SoldierRatio     float64 `expr:"soldierRatio"`
	ScoutRatio       float64 `expr:"scoutRatio"`
	EnemyCount       int     `expr:"enemyCount"`
	ImmediateThreats int     `expr:"immediateThreats"`
}

// AdaptationRule is a named condition; when it holds, the named adaptation is
// added to the strategy.
type AdaptationRule struct {
	Name      string
	Reason    string
	Condition string
	program   *vm.Program
}

// Adaptation is a suggested correction to the colony's composition or posture.
type Adaptation struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// AdaptationRules is a compiled, ordered rule set.
type AdaptationRules struct {
	rules []*AdaptationRule
}

// DefaultAdaptationRules flag worker/soldier imbalances relative to threat.
func DefaultAdaptationRules() []AdaptationRule {
	return []AdaptationRule{
		{
			Name:      "increase_soldiers",
			Reason:    "threat is high relative to the soldier share",
			Condition: `total > 0 && threatLevel > 0.5 && soldierRatio < 0.25`,
		},
		{
			Name:      "reinforce_defense",
			Reason:    "fewer soldiers than immediate threats",
			Condition: `immediateThreats > 0 && soldiers < immediateThreats`,
		},
		{
			Name:      "increase_workers",
			Reason:    "soldier-heavy colony under little threat",
			Condition: `total > 0 && threatLevel < 0.2 && soldierRatio > 0.4`,
		},
		{
			Name:      "rebuild_workforce",
			Reason:    "recovering with a thin worker base",
			Condition: `recovery && workerRatio < 0.5`,
		},
		{
			Name:      "need_scouts",
			Reason:    "no scouts after the opening",
			Condition: `!recovery && turn > 10 && scouts == 0`,
		},
	}
}

// NewAdaptationRules compiles every condition; the first failure is returned.
func NewAdaptationRules(specs []AdaptationRule) (*AdaptationRules, error) {
	compiled := make([]*AdaptationRule, 0, len(specs))
	for _, s := range specs {
		prog, err := expr.Compile(s.Condition, expr.Env(AdaptationEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile adaptation %q: %w", s.Name, err)
		}
		r := s
		r.program = prog
		compiled = append(compiled, &r)
	}
	return &AdaptationRules{rules: compiled}, nil
}

func mustDefaultAdaptationRules() *AdaptationRules {
	rules, err := NewAdaptationRules(DefaultAdaptationRules())
	if err != nil {
		panic(err)
	}
	return rules
}

// Evaluate returns the adaptations whose conditions hold, in rule order.
func (r *AdaptationRules) Evaluate(env AdaptationEnv) []Adaptation {
	out := []Adaptation{}
	if r == nil {
		return out
	}
	for _, rule := range r.rules {
		result, err := vm.Run(rule.program, env)
		if err != nil {
			log.Warn().Err(err).Str("rule", rule.Name).Msg("Adaptation condition error")
			continue
		}
		if match, ok := result.(bool); ok && match {
			out = append(out, Adaptation{Name: rule.Name, Reason: rule.Reason})
		}
	}
	return out
}

func adaptationEnv(a *Analysis, phase Phase, recovery bool) AdaptationEnv {
	return AdaptationEnv{
		Turn:             a.Turn,
		Phase:            string(phase),
		Recovery:         recovery,
		ThreatLevel:      a.Threats.Level,
		Total:            a.Units.Counts.Total,
		Workers:          a.Units.Counts.Workers,
		Soldiers:         a.Units.Counts.Soldiers,
		Scouts:           a.Units.Counts.Scouts,
		WorkerRatio:      a.Units.Proportions.Workers,
		SoldierRatio:     a.Units.Proportions.Soldiers,
		ScoutRatio:       a.Units.Proportions.Scouts,
		EnemyCount:       len(a.Threats.Enemies),
		ImmediateThreats: len(a.Threats.Immediate),
	}
}
