package service

import (
	"context"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/bracket"
	"github.com/AdamBeresnev/op-arena/internal/db"
	"github.com/AdamBeresnev/op-arena/internal/store"
	users "github.com/AdamBeresnev/op-arena/internal/user"
	crerrors "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type TournamentService struct {
	db          *sqlx.DB
	tournaments *store.TournamentStore
	entries     *store.EntryStore
	matches     *store.MatchStore
	opts        options
}

func NewTournamentService(database *sqlx.DB, stores *store.Stores, opts ...Option) *TournamentService {
	return &TournamentService{
		db:          database,
		tournaments: stores.Tournaments,
		entries:     stores.Entries,
		matches:     stores.Matches,
		opts:        newOptions(opts),
	}
}

type TournamentInput struct {
	Name                 string
	GameID               uuid.UUID
	TeamSize             int
	MaxTeams             int
	RegistrationDeadline *time.Time
	SeedingMethod        bracket.SeedingMethod
	RequireRank          bool
	Type                 bracket.TournamentType
}

type TournamentData struct {
	Tournament  *bracket.Tournament `json:"tournament"`
	Entries     []bracket.Entry     `json:"entries"`
	Matches     []bracket.Match     `json:"matches"`
	NextMatchID *uuid.UUID          `json:"next_match_id,omitempty"`
}

// CreateTournament opens a tournament for registration, owned by requester.
func (s *TournamentService) CreateTournament(ctx context.Context, requester users.Identity, in TournamentInput) (*bracket.Tournament, error) {
	if !requester.Can(users.CapManageTournaments) {
		return nil, reject(KindForbidden, "you cannot create tournaments")
	}

	tournament := &bracket.Tournament{
		ID:                   uuid.New(),
		OwnerID:              requester.ID,
		Name:                 in.Name,
		GameID:               in.GameID,
		TeamSize:             in.TeamSize,
		MaxTeams:             in.MaxTeams,
		RegistrationDeadline: in.RegistrationDeadline,
		Status:               bracket.TournamentRegistration,
		SeedingMethod:        in.SeedingMethod,
		RequireRank:          in.RequireRank,
		Type:                 in.Type,
		CreatedAt:            s.opts.now().UTC(),
	}
	if tournament.TeamSize == 0 {
		tournament.TeamSize = 1
	}
	if tournament.SeedingMethod == "" {
		tournament.SeedingMethod = bracket.SeedingStandard
	}
	if tournament.Type == "" {
		tournament.Type = bracket.SingleElimination
	}
	if tournament.TeamSize < 1 || tournament.MaxTeams < 1 {
		return nil, crerrors.Wrapf(ErrInvalidInput, "team size %d and max teams %d must be positive", tournament.TeamSize, tournament.MaxTeams)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, crerrors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	if err := s.tournaments.CreateTournament(ctx, tx, tournament); err != nil {
		return nil, crerrors.Wrap(err, "create tournament")
	}
	if err := tx.Commit(); err != nil {
		return nil, crerrors.Wrap(err, "commit")
	}

	s.opts.logger.InfoContext(ctx, "tournament created", "tournament_id", tournament.ID, "owner_id", requester.ID)
	return tournament, nil
}

func (s *TournamentService) GetTournamentData(ctx context.Context, id uuid.UUID) (*TournamentData, error) {
	tournament, err := s.tournaments.GetTournament(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrTournamentNotFound
		}
		return nil, crerrors.Wrap(err, "load tournament")
	}

	entries, err := s.entries.ListEntries(ctx, id)
	if err != nil {
		return nil, crerrors.Wrap(err, "list entries")
	}

	matches, err := s.matches.GetMatches(ctx, id)
	if err != nil {
		return nil, crerrors.Wrap(err, "load matches")
	}

	var nextMatchID *uuid.UUID
	for _, m := range matches {
		if m.Status != bracket.MatchFinished {
			id := m.ID
			nextMatchID = &id
			break
		}
	}

	return &TournamentData{
		Tournament:  tournament,
		Entries:     entries,
		Matches:     matches,
		NextMatchID: nextMatchID,
	}, nil
}

func (s *TournamentService) GetTournamentsForUser(ctx context.Context, ownerID uuid.UUID) ([]bracket.Tournament, error) {
	return s.tournaments.GetTournamentsByOwner(ctx, ownerID)
}

// UpdateStatus moves the tournament through its lifecycle under the
// tournament lock, so a registration in flight sees either status.
func (s *TournamentService) UpdateStatus(ctx context.Context, requester users.Identity, id uuid.UUID, status bracket.TournamentStatus) error {
	if !status.Valid() {
		return crerrors.Wrapf(ErrInvalidInput, "unknown status %q", status)
	}

	_, _, err := withRetry(ctx, s.opts.retry, func() (struct{}, error) {
		return struct{}{}, s.withOwnedTournament(ctx, requester, id, func(tx *sqlx.Tx) error {
			return s.tournaments.UpdateTournamentStatus(ctx, tx, id, status)
		})
	})
	if err != nil {
		if _, ok := AsRejection(err); ok {
			return err
		}
		return crerrors.Wrapf(err, "update status of tournament %s", id)
	}

	s.opts.logger.InfoContext(ctx, "tournament status changed", "tournament_id", id, "status", status)
	return nil
}

// DeleteTournament removes the tournament with its entries and matches.
func (s *TournamentService) DeleteTournament(ctx context.Context, requester users.Identity, id uuid.UUID) error {
	_, _, err := withRetry(ctx, s.opts.retry, func() (struct{}, error) {
		return struct{}{}, s.withOwnedTournament(ctx, requester, id, func(tx *sqlx.Tx) error {
			return s.tournaments.DeleteTournament(ctx, tx, id)
		})
	})
	if err != nil {
		if _, ok := AsRejection(err); ok {
			return err
		}
		return crerrors.Wrapf(err, "delete tournament %s", id)
	}

	s.opts.logger.InfoContext(ctx, "tournament deleted", "tournament_id", id)
	return nil
}

func (s *TournamentService) withOwnedTournament(ctx context.Context, requester users.Identity, id uuid.UUID, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tournament, err := s.tournaments.LockTournament(ctx, tx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return ErrTournamentNotFound
		}
		return err
	}
	if tournament.OwnerID != requester.ID && !requester.Can(users.CapManageTournaments) {
		return reject(KindForbidden, "you cannot manage %q", tournament.Name)
	}

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
