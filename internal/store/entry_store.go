package store

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/op-arena/internal/bracket"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type EntryStore struct {
	db *sqlx.DB
}

func NewEntryStore(db *sqlx.DB) *EntryStore {
	return &EntryStore{db: db}
}

// ParticipantConflict names a user who already competes under another entry.
type ParticipantConflict struct {
	UserID   uuid.UUID  `db:"user_id"`
	Username string     `db:"username"`
	EntryID  uuid.UUID  `db:"entry_id"`
	TeamID   *uuid.UUID `db:"team_id"`
	TeamName *string    `db:"team_name"`
}

const (
	// One definition of capacity: distinct admitted units, never raw rows
	countAdmittedUnitsQuery = `
		SELECT COUNT(DISTINCT COALESCE(team_id, user_id)) FROM entries WHERE tournament_id = ?
	`
	soloEntryExistsQuery      = `SELECT COUNT(*) FROM entries WHERE tournament_id = ? AND user_id = ?`
	teamEntryExistsQuery      = `SELECT COUNT(*) FROM entries WHERE tournament_id = ? AND team_id = ?`
	participantConflictsQuery = `
		SELECT ep.user_id, u.username, e.id AS entry_id, e.team_id, t.name AS team_name
		FROM entry_participants ep
		JOIN entries e ON e.id = ep.entry_id
		JOIN users u ON u.id = ep.user_id
		LEFT JOIN teams t ON t.id = e.team_id
		WHERE ep.tournament_id = ? AND ep.user_id IN (?)
		ORDER BY u.username, ep.user_id
	`
	createEntryQuery = `
		INSERT INTO entries (id, tournament_id, user_id, team_id, seed, registered_at)
		VALUES (:id, :tournament_id, :user_id, :team_id, :seed, :registered_at)
	`
	createParticipantsQuery = `
		INSERT INTO entry_participants (entry_id, tournament_id, user_id)
		VALUES (:entry_id, :tournament_id, :user_id)
	`
	listEntriesQuery = `
		SELECT * FROM entries WHERE tournament_id = ?
		ORDER BY seed DESC, registered_at ASC, id ASC
	`
	getEntryQuery = `SELECT * FROM entries WHERE tournament_id = ? AND id = ?`
)

func (s *EntryStore) CountAdmittedUnits(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) (int, error) {
	var count int
	err := tx.GetContext(ctx, &count, tx.Rebind(countAdmittedUnitsQuery), tournamentID)
	return count, err
}

func (s *EntryStore) SoloEntryExists(ctx context.Context, tx *sqlx.Tx, tournamentID, userID uuid.UUID) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count, tx.Rebind(soloEntryExistsQuery), tournamentID, userID)
	return count > 0, err
}

func (s *EntryStore) TeamEntryExists(ctx context.Context, tx *sqlx.Tx, tournamentID, teamID uuid.UUID) (bool, error) {
	var count int
	err := tx.GetContext(ctx, &count, tx.Rebind(teamEntryExistsQuery), tournamentID, teamID)
	return count > 0, err
}

// FindParticipantConflicts returns every user in userIDs already linked to an
// entry of the tournament.
func (s *EntryStore) FindParticipantConflicts(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID, userIDs []uuid.UUID) ([]ParticipantConflict, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(participantConflictsQuery, tournamentID, userIDs)
	if err != nil {
		return nil, fmt.Errorf("expand conflict query: %w", err)
	}

	var conflicts []ParticipantConflict
	err = tx.SelectContext(ctx, &conflicts, tx.Rebind(query), args...)
	return conflicts, err
}

func (s *EntryStore) CreateEntry(ctx context.Context, tx *sqlx.Tx, entry *bracket.Entry) error {
	_, err := tx.NamedExecContext(ctx, createEntryQuery, entry)
	return err
}

func (s *EntryStore) CreateParticipants(ctx context.Context, tx *sqlx.Tx, participants []bracket.Participant) error {
	if len(participants) == 0 {
		return nil
	}
	_, err := tx.NamedExecContext(ctx, createParticipantsQuery, participants)
	return err
}

func (s *EntryStore) GetEntry(ctx context.Context, tx *sqlx.Tx, tournamentID, entryID uuid.UUID) (*bracket.Entry, error) {
	var entry bracket.Entry
	if err := tx.GetContext(ctx, &entry, tx.Rebind(getEntryQuery), tournamentID, entryID); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *EntryStore) DeleteEntry(ctx context.Context, tx *sqlx.Tx, entryID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM entries WHERE id = ?"), entryID)
	return err
}

// ListEntries returns the entries in seeding order with projections attached.
func (s *EntryStore) ListEntries(ctx context.Context, tournamentID uuid.UUID) ([]bracket.Entry, error) {
	return listEntries(ctx, s.db, tournamentID)
}

// ListEntriesTx is ListEntries inside a transaction holding the tournament lock.
func (s *EntryStore) ListEntriesTx(ctx context.Context, tx *sqlx.Tx, tournamentID uuid.UUID) ([]bracket.Entry, error) {
	return listEntries(ctx, tx, tournamentID)
}

// LoadProjections attaches user, team and participant views to entries.
func (s *EntryStore) LoadProjections(ctx context.Context, tx *sqlx.Tx, entries []bracket.Entry) error {
	return loadProjections(ctx, tx, entries)
}

func listEntries(ctx context.Context, q sqlx.ExtContext, tournamentID uuid.UUID) ([]bracket.Entry, error) {
	var entries []bracket.Entry
	if err := sqlx.SelectContext(ctx, q, &entries, q.Rebind(listEntriesQuery), tournamentID); err != nil {
		return nil, err
	}
	if err := loadProjections(ctx, q, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

type participantRow struct {
	EntryID  uuid.UUID `db:"entry_id"`
	UserID   uuid.UUID `db:"user_id"`
	Username string    `db:"username"`
}

type teamRow struct {
	ID   uuid.UUID `db:"id"`
	Name string    `db:"name"`
}

func loadProjections(ctx context.Context, q sqlx.ExtContext, entries []bracket.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	entryIDs := make([]uuid.UUID, 0, len(entries))
	var teamIDs []uuid.UUID
	for _, e := range entries {
		entryIDs = append(entryIDs, e.ID)
		if e.TeamID != nil {
			teamIDs = append(teamIDs, *e.TeamID)
		}
	}

	query, args, err := sqlx.In(`
		SELECT ep.entry_id, ep.user_id, u.username
		FROM entry_participants ep
		JOIN users u ON u.id = ep.user_id
		WHERE ep.entry_id IN (?)
		ORDER BY u.username, ep.user_id`, entryIDs)
	if err != nil {
		return fmt.Errorf("expand participant query: %w", err)
	}
	var rows []participantRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return fmt.Errorf("load participants: %w", err)
	}

	byEntry := make(map[uuid.UUID][]bracket.EntryUser, len(entries))
	for _, r := range rows {
		byEntry[r.EntryID] = append(byEntry[r.EntryID], bracket.EntryUser{ID: r.UserID, Username: r.Username})
	}

	teams := make(map[uuid.UUID]string, len(teamIDs))
	if len(teamIDs) > 0 {
		query, args, err := sqlx.In(`SELECT id, name FROM teams WHERE id IN (?)`, teamIDs)
		if err != nil {
			return fmt.Errorf("expand team query: %w", err)
		}
		var teamRows []teamRow
		if err := sqlx.SelectContext(ctx, q, &teamRows, q.Rebind(query), args...); err != nil {
			return fmt.Errorf("load teams: %w", err)
		}
		for _, t := range teamRows {
			teams[t.ID] = t.Name
		}
	}

	for i := range entries {
		e := &entries[i]
		e.Participants = byEntry[e.ID]
		if e.Participants == nil {
			e.Participants = []bracket.EntryUser{}
		}
		if e.TeamID != nil {
			e.Team = &bracket.EntryTeam{ID: *e.TeamID, Name: teams[*e.TeamID]}
		}
		if e.UserID != nil {
			for _, p := range e.Participants {
				if p.ID == *e.UserID {
					u := p
					e.User = &u
					break
				}
			}
		}
	}

	return nil
}
