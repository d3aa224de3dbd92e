package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/AdamBeresnev/op-arena/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentStore struct {
	db *sqlx.DB
}

func NewTournamentStore(db *sqlx.DB) *TournamentStore {
	return &TournamentStore{db: db}
}

const (
	createTournamentQuery = `
		INSERT INTO tournaments (id, owner_id, name, game_id, team_size, max_teams, registration_deadline,
			status, seeding_method, require_rank, tournament_type, created_at)
		VALUES (:id, :owner_id, :name, :game_id, :team_size, :max_teams, :registration_deadline,
			:status, :seeding_method, :require_rank, :tournament_type, :created_at)
	`
	// Bumping the version row-locks the tournament in postgres and takes the
	// write lock in sqlite, so every later read in the tx sees committed entries.
	lockTournamentQuery = `UPDATE tournaments SET registration_version = registration_version + 1 WHERE id = ?`
	getTournamentQuery  = `SELECT * FROM tournaments WHERE id = ?`
)

func (s *TournamentStore) CreateTournament(ctx context.Context, tx *sqlx.Tx, tournament *bracket.Tournament) error {
	_, err := tx.NamedExecContext(ctx, createTournamentQuery, tournament)
	return err
}

// LockTournament serializes ledger and bracket writers for one tournament and
// returns its current state. sql.ErrNoRows is returned when it does not exist.
func (s *TournamentStore) LockTournament(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*bracket.Tournament, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(lockTournamentQuery), id)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, sql.ErrNoRows
	}

	var tournament bracket.Tournament
	if err := tx.GetContext(ctx, &tournament, tx.Rebind(getTournamentQuery), id); err != nil {
		return nil, fmt.Errorf("load locked tournament: %w", err)
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	var tournament bracket.Tournament
	err := s.db.GetContext(ctx, &tournament, s.db.Rebind(getTournamentQuery), id)
	if err != nil {
		return nil, err
	}
	return &tournament, nil
}

func (s *TournamentStore) GetTournamentsByOwner(ctx context.Context, ownerID uuid.UUID) ([]bracket.Tournament, error) {
	var tournaments []bracket.Tournament
	err := s.db.SelectContext(ctx, &tournaments, s.db.Rebind("SELECT * FROM tournaments WHERE owner_id = ? ORDER BY created_at DESC"), ownerID)
	return tournaments, err
}

func (s *TournamentStore) UpdateTournamentStatus(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, status bracket.TournamentStatus) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("UPDATE tournaments SET status = ? WHERE id = ?"), status, id)
	return err
}

// DeleteTournament removes the tournament, its entries, participant links and matches cascade.
func (s *TournamentStore) DeleteTournament(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM tournaments WHERE id = ?"), id)
	return err
}
