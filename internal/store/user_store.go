package store

import (
	"context"

	users "github.com/AdamBeresnev/op-arena/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type UserStore struct {
	db *sqlx.DB
}

const (
	getUserQuery    = "SELECT * FROM users WHERE id = ?"
	createUserQuery = `
		INSERT INTO users (id, email, username, role, elo) VALUES
		(:id, :email, :username, :role, :elo)
	`
	hasRankQuery = "SELECT COUNT(*) FROM ranks WHERE user_id = ? AND game_id = ?"
	setRankQuery = `
		INSERT INTO ranks (user_id, game_id, rank) VALUES (?, ?, ?)
		ON CONFLICT (user_id, game_id) DO UPDATE SET rank = excluded.rank, updated_at = CURRENT_TIMESTAMP
	`
)

func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	var user users.User
	if err := s.db.GetContext(ctx, &user, s.db.Rebind(getUserQuery), id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) GetUserTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*users.User, error) {
	var user users.User
	if err := tx.GetContext(ctx, &user, tx.Rebind(getUserQuery), id); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) CreateUser(ctx context.Context, user *users.User) error {
	_, err := s.db.NamedExecContext(ctx, createUserQuery, user)
	return err
}

// HasRankTx reports whether the user holds a recorded rank for the game.
func (s *UserStore) HasRankTx(ctx context.Context, tx *sqlx.Tx, userID, gameID uuid.UUID) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count, tx.Rebind(hasRankQuery), userID, gameID)
	return count > 0, err
}

func (s *UserStore) SetRank(ctx context.Context, userID, gameID uuid.UUID, rank string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(setRankQuery), userID, gameID, rank)
	return err
}

func (s *UserStore) CreateGame(ctx context.Context, id uuid.UUID, name string) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind("INSERT INTO games (id, name) VALUES (?, ?)"), id, name)
	return err
}
