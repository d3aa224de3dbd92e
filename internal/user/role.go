package users

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleTeacher   Role = "TEACHER"
	RoleModerator Role = "MODERATOR"
	RoleOrganizer Role = "ORGANIZER"
	RoleAdmin     Role = "ADMIN"
)

type Capability int

const (
	// Register while the tournament is closed or past its deadline
	CapOverrideRegistrationWindow Capability = iota
	// Register a user or team the requester does not control
	CapRegisterOthers
	CapManageBrackets
	CapRevokeEntries
	CapManageTournaments
)

var capabilities = map[Role]map[Capability]bool{
	RoleStudent:   {},
	RoleTeacher:   {},
	RoleModerator: {CapRevokeEntries: true},
	RoleOrganizer: {
		CapOverrideRegistrationWindow: true,
		CapRegisterOthers:             true,
		CapManageBrackets:             true,
		CapRevokeEntries:              true,
		CapManageTournaments:          true,
	},
	RoleAdmin: {
		CapOverrideRegistrationWindow: true,
		CapRegisterOthers:             true,
		CapManageBrackets:             true,
		CapRevokeEntries:              true,
		CapManageTournaments:          true,
	},
}

func (r Role) Can(c Capability) bool {
	return capabilities[r][c]
}

func (r Role) Valid() bool {
	_, ok := capabilities[r]
	return ok
}

func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}
