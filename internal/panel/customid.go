package panel

import (
	"fmt"
	"strings"
)

// Type names a panel family. Each guild holds at most one live panel per
// type.
type Type string

const (
	TypeRaid     Type = "raid"
	TypeFeatures Type = "features"
	TypeLockdown Type = "lockdown"
)

func Types() []Type {
	return []Type{TypeRaid, TypeFeatures, TypeLockdown}
}

func ValidType(t Type) bool {
	switch t {
	case TypeRaid, TypeFeatures, TypeLockdown:
		return true
	}
	return false
}

// Component action tags. An interaction's custom ID carries the panel type
// and one of these, so dispatch is a table lookup instead of per-message
// callback state.
const (
	ActionEnable    = "enable"
	ActionDisable   = "disable"
	ActionConfigure = "configure"
	ActionToggle    = "toggle"
	ActionLock      = "lock"
	ActionUnlock    = "unlock"
	ActionLockAll   = "lock_all"
	ActionUnlockAll = "unlock_all"
)

const customIDPrefix = "panel"

// CustomID is the parsed form of a component or modal custom ID. Arg carries
// the rule name for feature buttons and is empty otherwise.
type CustomID struct {
	Panel  Type
	Action string
	Arg    string
}

func (c CustomID) String() string {
	if c.Arg == "" {
		return fmt.Sprintf("%s:%s:%s", customIDPrefix, c.Panel, c.Action)
	}
	return fmt.Sprintf("%s:%s:%s:%s", customIDPrefix, c.Panel, c.Action, c.Arg)
}

// ParseCustomID decodes a custom ID emitted by this package. The second
// return is false for IDs that belong to something else.
func ParseCustomID(raw string) (CustomID, bool) {
	parts := strings.Split(raw, ":")
	if len(parts) < 3 || len(parts) > 4 || parts[0] != customIDPrefix {
		return CustomID{}, false
	}
	id := CustomID{Panel: Type(parts[1]), Action: parts[2]}
	if len(parts) == 4 {
		id.Arg = parts[3]
	}
	if !ValidType(id.Panel) || id.Action == "" {
		return CustomID{}, false
	}
	return id, true
}
