package store

import (
	"context"

	users "github.com/AdamBeresnev/op-arena/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TeamStore struct {
	db *sqlx.DB
}

func NewTeamStore(db *sqlx.DB) *TeamStore {
	return &TeamStore{db: db}
}

const (
	createTeamQuery = `
		INSERT INTO teams (id, name, owner_id, elo) VALUES (:id, :name, :owner_id, :elo)
	`
	addTeamMemberQuery = `
		INSERT INTO team_members (team_id, user_id, role) VALUES (:team_id, :user_id, :role)
	`
)

func (s *TeamStore) CreateTeam(ctx context.Context, team *users.Team) error {
	_, err := s.db.NamedExecContext(ctx, createTeamQuery, team)
	return err
}

func (s *TeamStore) AddMember(ctx context.Context, membership users.TeamMembership) error {
	_, err := s.db.NamedExecContext(ctx, addTeamMemberQuery, membership)
	return err
}

func (s *TeamStore) RemoveMember(ctx context.Context, teamID, userID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM team_members WHERE team_id = ? AND user_id = ?"), teamID, userID)
	return err
}

func (s *TeamStore) GetTeamTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*users.Team, error) {
	var team users.Team
	if err := tx.GetContext(ctx, &team, tx.Rebind("SELECT * FROM teams WHERE id = ?"), id); err != nil {
		return nil, err
	}
	return &team, nil
}

// GetRosterTx returns the current members of a team keyed by user.
func (s *TeamStore) GetRosterTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID) (map[uuid.UUID]users.TeamRole, error) {
	var members []users.TeamMembership
	err := tx.SelectContext(ctx, &members, tx.Rebind("SELECT * FROM team_members WHERE team_id = ?"), teamID)
	if err != nil {
		return nil, err
	}

	roster := make(map[uuid.UUID]users.TeamRole, len(members))
	for _, m := range members {
		roster[m.UserID] = m.Role
	}
	return roster, nil
}
