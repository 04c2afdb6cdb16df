// Package catalog holds the per-vendor diagnostic command sets and the probes
// used to tell vendors apart.
package catalog

import (
	"errors"
	"fmt"
)

type Vendor string

const (
	Huawei  Vendor = "Huawei"
	Cisco   Vendor = "Cisco"
	B4COM   Vendor = "B4COM"
	B4TECH  Vendor = "B4TECH"
	Unknown Vendor = "Unknown"
)

// Role is the part a command plays in a vendor's command set.
type Role int

const (
	RoleSetup Role = iota
	RoleIdentity
	RoleNeighbors
	RoleTransceiver
)

func (r Role) String() string {
	switch r {
	case RoleSetup:
		return "setup"
	case RoleIdentity:
		return "identity"
	case RoleNeighbors:
		return "neighbors"
	case RoleTransceiver:
		return "transceiver"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Command is one catalog entry. Cleaned and Signal select the output channels
// the command's output contributes to.
type Command struct {
	Text    string
	Role    Role
	Cleaned bool
	Signal  bool
}

func setup(text string) Command {
	return Command{Text: text, Role: RoleSetup}
}

func identity(text string) Command {
	return Command{Text: text, Role: RoleIdentity, Cleaned: true, Signal: true}
}

func neighbors(text string) Command {
	return Command{Text: text, Role: RoleNeighbors, Cleaned: true}
}

func transceiver(text string) Command {
	return Command{Text: text, Role: RoleTransceiver, Signal: true}
}

// Catalog maps a vendor to its ordered command set.
type Catalog map[Vendor][]Command

// Default returns the built-in command sets. Each call returns a fresh copy.
func Default() Catalog {
	return Catalog{
		Huawei: {
			setup("screen-length 0 temporary"),
			identity("display sysname"),
			neighbors("display lldp neighbor brief"),
			transceiver("display interface transceiver brief"),
		},
		Cisco: {
			setup("terminal length 0"),
			identity("show hostname"),
			neighbors("show lldp neighbors"),
			transceiver("sh int transceiver det | exclude present"),
		},
		B4COM: {
			setup("terminal length 0"),
			identity("show hostname"),
			neighbors("show lldp neighbors brief | include bridge"),
			transceiver("sh int transceiver | exclude Codes"),
		},
		B4TECH: {
			setup("terminal length 0"),
			identity("show run | i hostname"),
			neighbors("show lldp neigh br"),
			transceiver("sh transceiver detail"),
		},
	}
}

// Commands returns the command set of v. Unknown and unlisted vendors have none.
func (c Catalog) Commands(v Vendor) ([]Command, bool) {
	cmds, ok := c[v]
	if !ok || len(cmds) == 0 {
		return nil, false
	}
	return cmds, true
}

// Texts returns the command strings in catalog order.
func Texts(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.Text
	}
	return out
}

var roleOrder = []Role{RoleSetup, RoleIdentity, RoleNeighbors, RoleTransceiver}

var ErrInvalidEntry = errors.New("invalid catalog entry")

// Validate checks that every entry has exactly one command per role, in role
// order, with channel flags matching the role and no repeated command text.
func (c Catalog) Validate() error {
	for v, cmds := range c {
		if len(cmds) != len(roleOrder) {
			return fmt.Errorf("%w: %s has %d commands, want %d", ErrInvalidEntry, v, len(cmds), len(roleOrder))
		}
		seen := make(map[string]bool, len(cmds))
		for i, cmd := range cmds {
			if cmd.Role != roleOrder[i] {
				return fmt.Errorf("%w: %s command %d is %s, want %s", ErrInvalidEntry, v, i, cmd.Role, roleOrder[i])
			}
			if cmd.Text == "" {
				return fmt.Errorf("%w: %s %s command is empty", ErrInvalidEntry, v, cmd.Role)
			}
			if seen[cmd.Text] {
				return fmt.Errorf("%w: %s repeats %q", ErrInvalidEntry, v, cmd.Text)
			}
			seen[cmd.Text] = true
			want := Command{Text: cmd.Text, Role: cmd.Role}
			switch cmd.Role {
			case RoleIdentity:
				want = identity(cmd.Text)
			case RoleNeighbors:
				want = neighbors(cmd.Text)
			case RoleTransceiver:
				want = transceiver(cmd.Text)
			}
			if cmd != want {
				return fmt.Errorf("%w: %s %s command has wrong output channels", ErrInvalidEntry, v, cmd.Role)
			}
		}
	}
	return nil
}
