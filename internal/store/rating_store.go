package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// RatingStore reads the ELO used as an entry's seed. Reads run on the
// registration transaction so the seed is taken under the tournament lock.
type RatingStore struct {
	db *sqlx.DB
}

func NewRatingStore(db *sqlx.DB) *RatingStore {
	return &RatingStore{db: db}
}

func (s *RatingStore) UserRatingTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID) (int, error) {
	var elo int
	err := tx.GetContext(ctx, &elo, tx.Rebind("SELECT elo FROM users WHERE id = ?"), userID)
	return elo, err
}

func (s *RatingStore) TeamRatingTx(ctx context.Context, tx *sqlx.Tx, teamID uuid.UUID) (int, error) {
	var elo int
	err := tx.GetContext(ctx, &elo, tx.Rebind("SELECT elo FROM teams WHERE id = ?"), teamID)
	return elo, err
}
