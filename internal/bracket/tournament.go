package bracket

import (
	"time"

	"github.com/google/uuid"
)

type TournamentStatus string

const (
	TournamentRegistration TournamentStatus = "REGISTRATION"
	TournamentInProgress   TournamentStatus = "IN_PROGRESS"
	TournamentCompleted    TournamentStatus = "COMPLETED"
	TournamentCancelled    TournamentStatus = "CANCELLED"
)

func (s TournamentStatus) Valid() bool {
	switch s {
	case TournamentRegistration, TournamentInProgress, TournamentCompleted, TournamentCancelled:
		return true
	}
	return false
}

type TournamentType string

const (
	SingleElimination TournamentType = "SINGLE_ELIMINATION"
	DoubleElimination TournamentType = "DOUBLE_ELIMINATION"
)

type SeedingMethod string

const (
	// Entry i takes slot i, top seeds are left clustered
	SeedingSequential SeedingMethod = "SEQUENTIAL"
	// Recursive halving so seeds 1 and 2 can only meet in the final
	SeedingStandard SeedingMethod = "STANDARD"
	SeedingRandom   SeedingMethod = "RANDOM"
)

type Tournament struct {
	ID                   uuid.UUID        `db:"id" json:"id"`
	OwnerID              uuid.UUID        `db:"owner_id" json:"owner_id"`
	Name                 string           `db:"name" json:"name"`
	GameID               uuid.UUID        `db:"game_id" json:"game_id"`
	TeamSize             int              `db:"team_size" json:"team_size"`
	MaxTeams             int              `db:"max_teams" json:"max_teams"`
	RegistrationDeadline *time.Time       `db:"registration_deadline" json:"registration_deadline,omitempty"`
	Status               TournamentStatus `db:"status" json:"status"`
	SeedingMethod        SeedingMethod    `db:"seeding_method" json:"seeding_method"`
	RequireRank          bool             `db:"require_rank" json:"require_rank"`
	Type                 TournamentType   `db:"tournament_type" json:"tournament_type"`
	RegistrationVersion  int64            `db:"registration_version" json:"-"`
	CreatedAt            time.Time        `db:"created_at" json:"created_at"`
}

// IsTeamBased reports whether units are teams rather than single users.
func (t *Tournament) IsTeamBased() bool {
	return t.TeamSize > 1
}

func (t *Tournament) DeadlinePassed(now time.Time) bool {
	return t.RegistrationDeadline != nil && now.After(*t.RegistrationDeadline)
}
