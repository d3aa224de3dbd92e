package service

import (
	"context"

	"github.com/AdamBeresnev/op-arena/internal/bracket"
	"github.com/AdamBeresnev/op-arena/internal/db"
	"github.com/AdamBeresnev/op-arena/internal/events"
	"github.com/AdamBeresnev/op-arena/internal/store"
	users "github.com/AdamBeresnev/op-arena/internal/user"
	crerrors "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BuildStatus string

const (
	BuildStatusBuilt BuildStatus = "BUILT"
	// Nothing to build: the tournament has no entries. Existing matches are left alone.
	BuildStatusEmpty BuildStatus = "EMPTY"
)

type BuildResult struct {
	Status        BuildStatus           `json:"status"`
	TournamentID  uuid.UUID             `json:"tournament_id"`
	SeedingMethod bracket.SeedingMethod `json:"seeding_method"`
	Entries       int                   `json:"entries"`
	Rounds        int                   `json:"rounds"`
	BracketSize   int                   `json:"bracket_size"`
	Replaced      int64                 `json:"replaced"`
	Matches       []bracket.Match       `json:"matches"`
}

type BracketService struct {
	db          *sqlx.DB
	tournaments *store.TournamentStore
	entries     *store.EntryStore
	matches     *store.MatchStore
	opts        options
}

func NewBracketService(database *sqlx.DB, stores *store.Stores, opts ...Option) *BracketService {
	return &BracketService{
		db:          database,
		tournaments: stores.Tournaments,
		entries:     stores.Entries,
		matches:     stores.Matches,
		opts:        newOptions(opts),
	}
}

// Authorize checks that requester may build or tear down the tournament's bracket.
func (s *BracketService) Authorize(ctx context.Context, requester users.Identity, tournamentID uuid.UUID) (*bracket.Tournament, error) {
	tournament, err := s.tournaments.GetTournament(ctx, tournamentID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrTournamentNotFound
		}
		return nil, crerrors.Wrap(err, "load tournament")
	}
	if tournament.OwnerID != requester.ID && !requester.Can(users.CapManageBrackets) {
		return nil, reject(KindForbidden, "you cannot manage the bracket of %q", tournament.Name)
	}
	return tournament, nil
}

// BuildBracket replaces every match of the tournament with a fresh bracket
// seeded from its current entries. It takes the same lock as registration, so
// the entry set cannot change underneath it.
func (s *BracketService) BuildBracket(ctx context.Context, tournamentID uuid.UUID) (*BuildResult, error) {
	logger := s.opts.logger.With("tournament_id", tournamentID)

	result, _, err := withRetry(ctx, s.opts.retry, func() (*BuildResult, error) {
		return s.build(ctx, tournamentID)
	})
	if err != nil {
		if _, ok := AsRejection(err); ok {
			return nil, err
		}
		s.opts.metrics.ObserveBracketBuild("", "error", 0)
		logger.ErrorContext(ctx, "bracket build failed", "error", err)
		return nil, crerrors.Wrapf(err, "build bracket for tournament %s", tournamentID)
	}

	s.opts.metrics.ObserveBracketBuild(string(result.SeedingMethod), string(result.Status), len(result.Matches))
	if result.Status == BuildStatusEmpty {
		logger.InfoContext(ctx, "bracket build skipped, no entries")
		return result, nil
	}

	logger.InfoContext(ctx, "bracket built",
		"seeding_method", result.SeedingMethod,
		"entries", result.Entries,
		"rounds", result.Rounds,
		"matches", len(result.Matches),
		"replaced", result.Replaced,
	)
	s.opts.publish(ctx, events.TopicBracketBuilt, events.BracketBuilt{
		TournamentID:  tournamentID,
		SeedingMethod: string(result.SeedingMethod),
		Entries:       result.Entries,
		Rounds:        result.Rounds,
		BracketSize:   result.BracketSize,
		Matches:       len(result.Matches),
		Replaced:      result.Replaced,
		BuiltAt:       s.opts.now().UTC(),
	})
	return result, nil
}

func (s *BracketService) build(ctx context.Context, tournamentID uuid.UUID) (*BuildResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	tournament, err := s.tournaments.LockTournament(ctx, tx, tournamentID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	entries, err := s.entries.ListEntriesTx(ctx, tx, tournament.ID)
	if err != nil {
		return nil, err
	}

	result := &BuildResult{
		TournamentID:  tournament.ID,
		SeedingMethod: tournament.SeedingMethod,
		Entries:       len(entries),
		Matches:       []bracket.Match{},
	}
	if len(entries) == 0 {
		result.Status = BuildStatusEmpty
		return result, nil
	}

	ordered := orderEntries(entries)
	result.Rounds = calcRounds(len(ordered))
	result.BracketSize = calcBracketSize(len(ordered))

	slots := placeEntries(tournament.SeedingMethod, ordered, result.BracketSize, s.opts.random)
	matches := generateBracket(tournament.ID, tournament.Type, slots, s.opts.now().UTC())

	result.Replaced, err = s.matches.DeleteMatches(ctx, tx, tournament.ID)
	if err != nil {
		return nil, err
	}
	if err := s.matches.CreateMatches(ctx, tx, matches); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result.Status = BuildStatusBuilt
	if matches != nil {
		result.Matches = matches
	}
	return result, nil
}

func (s *BracketService) GetBracket(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Match, error) {
	if _, err := s.tournaments.GetTournament(ctx, tournamentID); err != nil {
		if db.IsNotFound(err) {
			return nil, ErrTournamentNotFound
		}
		return nil, crerrors.Wrap(err, "load tournament")
	}

	matches, err := s.matches.GetMatches(ctx, tournamentID)
	if err != nil {
		return nil, crerrors.Wrap(err, "load matches")
	}
	return matches, nil
}

// HasBracket reports whether any match exists, so callers can ask for
// confirmation before a rebuild discards results.
func (s *BracketService) HasBracket(ctx context.Context, tournamentID uuid.UUID) (bool, error) {
	count, err := s.matches.CountMatches(ctx, tournamentID)
	if err != nil {
		return false, crerrors.Wrap(err, "count matches")
	}
	return count > 0, nil
}

// DeleteBracket removes every match of the tournament under the tournament lock.
func (s *BracketService) DeleteBracket(ctx context.Context, tournamentID uuid.UUID) (int64, error) {
	removed, _, err := withRetry(ctx, s.opts.retry, func() (int64, error) {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return 0, err
		}
		defer tx.Rollback()

		if _, err := s.tournaments.LockTournament(ctx, tx, tournamentID); err != nil {
			if db.IsNotFound(err) {
				return 0, ErrTournamentNotFound
			}
			return 0, err
		}

		n, err := s.matches.DeleteMatches(ctx, tx, tournamentID)
		if err != nil {
			return 0, err
		}
		return n, tx.Commit()
	})
	if err != nil {
		if _, ok := AsRejection(err); ok {
			return 0, err
		}
		return 0, crerrors.Wrapf(err, "delete bracket for tournament %s", tournamentID)
	}

	s.opts.logger.InfoContext(ctx, "bracket deleted", "tournament_id", tournamentID, "removed", removed)
	s.opts.publish(ctx, events.TopicBracketDeleted, events.BracketDeleted{
		TournamentID: tournamentID,
		Removed:      removed,
		DeletedAt:    s.opts.now().UTC(),
	})
	return removed, nil
}
