package service

import (
	"errors"
	"fmt"

	crerrors "github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type RejectionKind string

const (
	KindRegistrationClosed      RejectionKind = "REGISTRATION_CLOSED"
	KindDeadlinePassed          RejectionKind = "DEADLINE_PASSED"
	KindTournamentFull          RejectionKind = "TOURNAMENT_FULL"
	KindForbidden               RejectionKind = "FORBIDDEN"
	KindNotCaptain              RejectionKind = "NOT_CAPTAIN"
	KindTargetUserNotFound      RejectionKind = "TARGET_USER_NOT_FOUND"
	KindTeamNotFound            RejectionKind = "TEAM_NOT_FOUND"
	KindTournamentNotFound      RejectionKind = "TOURNAMENT_NOT_FOUND"
	KindEntryNotFound           RejectionKind = "ENTRY_NOT_FOUND"
	KindInvalidTeamSize         RejectionKind = "INVALID_TEAM_SIZE"
	KindInvalidMembers          RejectionKind = "INVALID_MEMBERS"
	KindAlreadyRegistered       RejectionKind = "ALREADY_REGISTERED"
	KindMemberAlreadyRegistered RejectionKind = "MEMBER_ALREADY_REGISTERED"
	KindRankRequired            RejectionKind = "RANK_REQUIRED"
)

// RejectionError is a caller-fixable refusal. It is never retried and never
// logged as a system error.
type RejectionError struct {
	Kind       RejectionKind
	Message    string
	MemberID   *uuid.UUID
	MemberName string
	TeamID     *uuid.UUID
	TeamName   string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

// Is matches any RejectionError of the same kind, so callers can compare
// against the sentinels below.
func (e *RejectionError) Is(target error) bool {
	var t *RejectionError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrRegistrationClosed      = &RejectionError{Kind: KindRegistrationClosed, Message: "registration is closed"}
	ErrDeadlinePassed          = &RejectionError{Kind: KindDeadlinePassed, Message: "registration deadline has passed"}
	ErrTournamentFull          = &RejectionError{Kind: KindTournamentFull, Message: "tournament is full"}
	ErrForbidden               = &RejectionError{Kind: KindForbidden, Message: "not allowed"}
	ErrNotCaptain              = &RejectionError{Kind: KindNotCaptain, Message: "only the team owner or a captain can register the team"}
	ErrTargetUserNotFound      = &RejectionError{Kind: KindTargetUserNotFound, Message: "user not found"}
	ErrTeamNotFound            = &RejectionError{Kind: KindTeamNotFound, Message: "team not found"}
	ErrTournamentNotFound      = &RejectionError{Kind: KindTournamentNotFound, Message: "tournament not found"}
	ErrEntryNotFound           = &RejectionError{Kind: KindEntryNotFound, Message: "entry not found"}
	ErrInvalidTeamSize         = &RejectionError{Kind: KindInvalidTeamSize, Message: "invalid team size"}
	ErrInvalidMembers          = &RejectionError{Kind: KindInvalidMembers, Message: "invalid team members"}
	ErrAlreadyRegistered       = &RejectionError{Kind: KindAlreadyRegistered, Message: "already registered"}
	ErrMemberAlreadyRegistered = &RejectionError{Kind: KindMemberAlreadyRegistered, Message: "member already registered"}
	ErrRankRequired            = &RejectionError{Kind: KindRankRequired, Message: "rank required"}
)

var (
	// ErrRegistrationUnavailable marks a registration that kept hitting lock
	// conflicts until its retry budget ran out.
	ErrRegistrationUnavailable = crerrors.New("registration temporarily unavailable")
	ErrInvalidInput            = crerrors.New("invalid input")
)

func reject(kind RejectionKind, format string, args ...any) *RejectionError {
	return &RejectionError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *RejectionError) withMember(id uuid.UUID, name string) *RejectionError {
	e.MemberID = &id
	e.MemberName = name
	return e
}

func (e *RejectionError) withTeam(id *uuid.UUID, name string) *RejectionError {
	e.TeamID = id
	e.TeamName = name
	return e
}

// AsRejection extracts a RejectionError from err's chain.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
