package events

import (
	"time"

	"github.com/google/uuid"
)

// Topics published after a ledger or bracket transaction commits.
const (
	TopicEntryRegistered = "tournament.entry.registered"
	TopicEntryRevoked    = "tournament.entry.revoked"
	TopicBracketBuilt    = "tournament.bracket.built"
	TopicBracketDeleted  = "tournament.bracket.deleted"
)

type EntryRegistered struct {
	TournamentID   uuid.UUID   `json:"tournament_id"`
	EntryID        uuid.UUID   `json:"entry_id"`
	UserID         *uuid.UUID  `json:"user_id,omitempty"`
	TeamID         *uuid.UUID  `json:"team_id,omitempty"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	Seed           int         `json:"seed"`
	RegisteredBy   uuid.UUID   `json:"registered_by"`
	RegisteredAt   time.Time   `json:"registered_at"`
}

type EntryRevoked struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	EntryID      uuid.UUID `json:"entry_id"`
	RevokedBy    uuid.UUID `json:"revoked_by"`
	RevokedAt    time.Time `json:"revoked_at"`
}

type BracketBuilt struct {
	TournamentID  uuid.UUID `json:"tournament_id"`
	SeedingMethod string    `json:"seeding_method"`
	Entries       int       `json:"entries"`
	Rounds        int       `json:"rounds"`
	BracketSize   int       `json:"bracket_size"`
	Matches       int       `json:"matches"`
	Replaced      int64     `json:"replaced"`
	BuiltAt       time.Time `json:"built_at"`
}

type BracketDeleted struct {
	TournamentID uuid.UUID `json:"tournament_id"`
	Removed      int64     `json:"removed"`
	DeletedAt    time.Time `json:"deleted_at"`
}
