package colony

// UnitStats are the fixed per-role characteristics the planner relies on.
type UnitStats struct {
	Vision int `json:"vision"`
	Cargo  int `json:"cargo"`
	Attack int `json:"attack"`
	Health int `json:"health"`
}

var unitStats = map[UnitType]UnitStats{
	Worker:  {Vision: 1, Cargo: 8, Attack: 30, Health: 130},
	Soldier: {Vision: 1, Cargo: 2, Attack: 70, Health: 180},
	Scout:   {Vision: 4, Cargo: 2, Attack: 20, Health: 80},
	Nest:    {Vision: 2},
}

// DefaultUnitStats is what an unrecognised role is assumed to be: short
// sighted, weak, and barely able to carry anything.
var DefaultUnitStats = UnitStats{Vision: 1, Cargo: 1, Attack: 10, Health: 50}

// StatsFor returns the stats for t. ok is false when t is unknown and the
// defaults were substituted; callers are expected to log that.
func StatsFor(t UnitType) (stats UnitStats, ok bool) {
	stats, ok = unitStats[t]
	if !ok {
		return DefaultUnitStats, false
	}
	return stats, true
}

// Vision returns the visibility radius for a role. Scouts see furthest.
func Vision(t UnitType) int {
	s, _ := StatsFor(t)
	return s.Vision
}

var calories = map[ResourceType]int{
	Apple:  10,
	Bread:  20,
	Nectar: 60,
}

// DefaultCalories is the per-unit value assumed for an unrecognised resource.
const DefaultCalories = 10

// CaloriesFor returns the per-unit calorie value of t. ok is false when t is
// unknown and DefaultCalories was substituted.
func CaloriesFor(t ResourceType) (int, bool) {
	c, ok := calories[t]
	if !ok {
		return DefaultCalories, false
	}
	return c, true
}
