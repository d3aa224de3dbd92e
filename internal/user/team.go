package users

import (
	"time"

	"github.com/google/uuid"
)

type TeamRole string

const (
	TeamCaptain TeamRole = "CAPTAIN"
	TeamMember  TeamRole = "MEMBER"
)

type Team struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   uuid.UUID `db:"owner_id" json:"owner_id"`
	Elo       int       `db:"elo" json:"elo"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type TeamMembership struct {
	TeamID uuid.UUID `db:"team_id" json:"team_id"`
	UserID uuid.UUID `db:"user_id" json:"user_id"`
	Role   TeamRole  `db:"role" json:"role"`
}
