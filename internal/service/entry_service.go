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

type EntryService struct {
	db          *sqlx.DB
	tournaments *store.TournamentStore
	entries     *store.EntryStore
	opts        options
}

func NewEntryService(database *sqlx.DB, stores *store.Stores, opts ...Option) *EntryService {
	return &EntryService{
		db:          database,
		tournaments: stores.Tournaments,
		entries:     stores.Entries,
		opts:        newOptions(opts),
	}
}

// ListEntries returns the tournament's entries in seeding order.
func (s *EntryService) ListEntries(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Entry, error) {
	if _, err := s.tournaments.GetTournament(ctx, tournamentID); err != nil {
		if db.IsNotFound(err) {
			return nil, ErrTournamentNotFound
		}
		return nil, crerrors.Wrap(err, "load tournament")
	}

	entries, err := s.entries.ListEntries(ctx, tournamentID)
	if err != nil {
		return nil, crerrors.Wrap(err, "list entries")
	}
	if entries == nil {
		entries = []bracket.Entry{}
	}
	return entries, nil
}

// RevokeEntry removes one registration. Only the tournament owner or a role
// allowed to revoke entries may do so. Participant links go with the entry.
func (s *EntryService) RevokeEntry(ctx context.Context, requester users.Identity, tournamentID, entryID uuid.UUID) error {
	_, _, err := withRetry(ctx, s.opts.retry, func() (struct{}, error) {
		return struct{}{}, s.revoke(ctx, requester, tournamentID, entryID)
	})
	if err != nil {
		if rej, ok := AsRejection(err); ok {
			s.opts.logger.InfoContext(ctx, "revoke rejected", "tournament_id", tournamentID, "entry_id", entryID, "kind", rej.Kind)
			return err
		}
		return crerrors.Wrapf(err, "revoke entry %s", entryID)
	}

	s.opts.logger.InfoContext(ctx, "entry revoked", "tournament_id", tournamentID, "entry_id", entryID, "requester_id", requester.ID)
	s.opts.publish(ctx, events.TopicEntryRevoked, events.EntryRevoked{
		TournamentID: tournamentID,
		EntryID:      entryID,
		RevokedBy:    requester.ID,
		RevokedAt:    s.opts.now().UTC(),
	})
	return nil
}

func (s *EntryService) revoke(ctx context.Context, requester users.Identity, tournamentID, entryID uuid.UUID) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	tournament, err := s.tournaments.LockTournament(ctx, tx, tournamentID)
	if err != nil {
		if db.IsNotFound(err) {
			return ErrTournamentNotFound
		}
		return err
	}
	if tournament.OwnerID != requester.ID && !requester.Can(users.CapRevokeEntries) {
		return reject(KindForbidden, "you cannot revoke entries of %q", tournament.Name)
	}

	if _, err := s.entries.GetEntry(ctx, tx, tournament.ID, entryID); err != nil {
		if db.IsNotFound(err) {
			return ErrEntryNotFound
		}
		return err
	}
	if err := s.entries.DeleteEntry(ctx, tx, entryID); err != nil {
		return err
	}
	return tx.Commit()
}
