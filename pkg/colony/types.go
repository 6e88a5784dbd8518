package colony

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UnitType is the role of a unit. Codes follow the game server's numbering;
// codes outside the known set are preserved so they can be reported.
type UnitType int

const (
	UnitTypeUnknown UnitType = -1
	Worker          UnitType = 0
	Soldier         UnitType = 1
	Scout           UnitType = 2
	Nest            UnitType = 3
)

var unitTypeNames = map[UnitType]string{
	Worker:  "worker",
	Soldier: "soldier",
	Scout:   "scout",
	Nest:    "nest",
}

func (t UnitType) String() string {
	if s, ok := unitTypeNames[t]; ok {
		return s
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// Known reports whether t is one of the defined unit types.
func (t UnitType) Known() bool {
	_, ok := unitTypeNames[t]
	return ok
}

// ParseUnitType maps a role name to a UnitType. "anthill" and "home" are
// accepted as aliases for Nest.
func ParseUnitType(s string) UnitType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "worker":
		return Worker
	case "soldier", "fighter":
		return Soldier
	case "scout":
		return Scout
	case "nest", "anthill", "home":
		return Nest
	}
	if n, err := strconv.Atoi(s); err == nil {
		return UnitType(n)
	}
	return UnitTypeUnknown
}

// MarshalJSON encodes known roles by name and anything else by code.
func (t UnitType) MarshalJSON() ([]byte, error) {
	if t.Known() {
		return json.Marshal(t.String())
	}
	return json.Marshal(int(t))
}

// UnmarshalJSON accepts both numeric codes and role names.
func (t *UnitType) UnmarshalJSON(data []byte) error {
	code, err := decodeCode(data)
	if err != nil {
		return fmt.Errorf("unit type: %w", err)
	}
	switch v := code.(type) {
	case int:
		*t = UnitType(v)
	case string:
		*t = ParseUnitType(v)
	default:
		*t = UnitTypeUnknown
	}
	return nil
}

// ResourceType is the kind of food lying on the map or carried by a unit.
type ResourceType int

const (
	ResourceTypeUnknown ResourceType = 0
	Apple               ResourceType = 1
	Bread               ResourceType = 2
	Nectar              ResourceType = 3
)

var resourceTypeNames = map[ResourceType]string{
	Apple:  "apple",
	Bread:  "bread",
	Nectar: "nectar",
}

func (t ResourceType) String() string {
	if s, ok := resourceTypeNames[t]; ok {
		return s
	}
	return "unknown(" + strconv.Itoa(int(t)) + ")"
}

// Known reports whether t is one of the defined resource types.
func (t ResourceType) Known() bool {
	_, ok := resourceTypeNames[t]
	return ok
}

// ParseResourceType maps a resource name to a ResourceType.
func ParseResourceType(s string) ResourceType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "apple":
		return Apple
	case "bread":
		return Bread
	case "nectar":
		return Nectar
	}
	if n, err := strconv.Atoi(s); err == nil {
		return ResourceType(n)
	}
	return ResourceTypeUnknown
}

// MarshalJSON encodes known types by name and anything else by code.
func (t ResourceType) MarshalJSON() ([]byte, error) {
	if t.Known() {
		return json.Marshal(t.String())
	}
	return json.Marshal(int(t))
}

// UnmarshalJSON accepts both numeric codes and resource names.
func (t *ResourceType) UnmarshalJSON(data []byte) error {
	code, err := decodeCode(data)
	if err != nil {
		return fmt.Errorf("resource type: %w", err)
	}
	switch v := code.(type) {
	case int:
		*t = ResourceType(v)
	case string:
		*t = ParseResourceType(v)
	default:
		*t = ResourceTypeUnknown
	}
	return nil
}

// decodeCode returns an int, a string, or nil for JSON null.
func decodeCode(data []byte) (any, error) {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return nil, err
		}
		return str, nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return int(f), nil
}

// MarshalText lets UnitType key JSON maps by name.
func (t UnitType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText is the inverse of MarshalText.
func (t *UnitType) UnmarshalText(text []byte) error {
	*t = ParseUnitType(string(text))
	return nil
}

// MarshalText lets ResourceType key JSON maps by name.
func (t ResourceType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText is the inverse of MarshalText.
func (t *ResourceType) UnmarshalText(text []byte) error {
	*t = ParseResourceType(string(text))
	return nil
}
