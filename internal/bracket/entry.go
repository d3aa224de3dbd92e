package bracket

import (
	"time"

	"github.com/google/uuid"
)

type Entry struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	TournamentID uuid.UUID  `db:"tournament_id" json:"tournament_id"`
	UserID       *uuid.UUID `db:"user_id" json:"user_id,omitempty"`
	TeamID       *uuid.UUID `db:"team_id" json:"team_id,omitempty"`
	Seed         int        `db:"seed" json:"seed"`
	RegisteredAt time.Time  `db:"registered_at" json:"registered_at"`

	User         *EntryUser  `db:"-" json:"user,omitempty"`
	Team         *EntryTeam  `db:"-" json:"team,omitempty"`
	Participants []EntryUser `db:"-" json:"participants"`
}

// UnitID is the capacity-consuming identifier of the entry, the team for team
// entries and the user for solo entries.
func (e *Entry) UnitID() uuid.UUID {
	if e.TeamID != nil {
		return *e.TeamID
	}
	if e.UserID != nil {
		return *e.UserID
	}
	return uuid.Nil
}

type EntryUser struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Username string    `db:"username" json:"username"`
}

type EntryTeam struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}

// Participant links a user to the entry they compete under.
type Participant struct {
	EntryID      uuid.UUID `db:"entry_id"`
	TournamentID uuid.UUID `db:"tournament_id"`
	UserID       uuid.UUID `db:"user_id"`
}
