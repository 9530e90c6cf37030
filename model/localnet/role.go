package localnet

import (
	"fmt"
)

// Role represents the role of a node within a local network.
type Role uint8

const (
	RoleExecution    Role = 1
	RoleConsensus    Role = 2
	RoleBuilderRelay Role = 3
)

const (
	RoleExecutionName    = "execution"
	RoleConsensusName    = "consensus"
	RoleBuilderRelayName = "relay"
)

// Roles returns all roles in the order their base ports are laid out.
func Roles() []Role {
	return []Role{RoleExecution, RoleConsensus, RoleBuilderRelay}
}

// ParseRole will parse a role from string.
func ParseRole(role string) (Role, error) {
	switch role {
	case RoleExecutionName:
		return RoleExecution, nil
	case RoleConsensusName:
		return RoleConsensus, nil
	case RoleBuilderRelayName:
		return RoleBuilderRelay, nil
	default:
		return 0, fmt.Errorf("invalid role string: %s", role)
	}
}

// String returns a string version of role.
func (r Role) String() string {
	switch r {
	case RoleExecution:
		return RoleExecutionName
	case RoleConsensus:
		return RoleConsensusName
	case RoleBuilderRelay:
		return RoleBuilderRelayName
	default:
		panic(fmt.Sprintf("invalid role (%d)", r))
	}
}

// Valid returns true if the input role is one of the known roles.
func (r Role) Valid() bool {
	return r >= RoleExecution && r <= RoleBuilderRelay
}

// Index is the zero-based position of the role in the port layout.
func (r Role) Index() int {
	return int(r) - 1
}

// MarshalText encodes the role as its string name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText decodes a role from its string name.
func (r *Role) UnmarshalText(text []byte) error {
	var err error
	*r, err = ParseRole(string(text))
	return err
}

// MarshalYAML encodes the role as its string name.
func (r Role) MarshalYAML() (interface{}, error) {
	return r.String(), nil
}

// UnmarshalYAML decodes a role from its string name.
func (r *Role) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return r.UnmarshalText([]byte(s))
}

// Mode selects the shape of the network.
type Mode uint8

const (
	// ModeStandard runs execution and consensus nodes only.
	ModeStandard Mode = iota
	// ModeBlinded adds builder relays; every consensus node proposes blinded blocks through one.
	ModeBlinded
)

// ModeFromFlag maps the blinded-block flag to a mode.
func ModeFromFlag(blinded bool) Mode {
	if blinded {
		return ModeBlinded
	}
	return ModeStandard
}

func (m Mode) String() string {
	switch m {
	case ModeStandard:
		return "standard"
	case ModeBlinded:
		return "blinded"
	default:
		return fmt.Sprintf("mode(%d)", m)
	}
}

// ParseMode parses a mode from its string name.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "standard":
		return ModeStandard, nil
	case "blinded":
		return ModeBlinded, nil
	default:
		return 0, fmt.Errorf("invalid mode string: %s", s)
	}
}

func (m Mode) MarshalYAML() (interface{}, error) {
	return m.String(), nil
}

func (m *Mode) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	var err error
	*m, err = ParseMode(s)
	return err
}
