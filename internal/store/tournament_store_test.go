package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/bracket"
	"github.com/AdamBeresnev/op-arena/internal/db"
	users "github.com/AdamBeresnev/op-arena/internal/user"
	"github.com/AdamBeresnev/op-arena/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a file-backed SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := db.SQLiteDSN(filepath.Join(t.TempDir(), "store.db"), 5*time.Second)
	database, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err, "Failed to open test DB")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database), "Failed to apply migrations")
	return database
}

type fixture struct {
	db          *sqlx.DB
	tournaments *TournamentStore
	entries     *EntryStore
	matches     *MatchStore
	users       *UserStore
	teams       *TeamStore
	gameID      uuid.UUID
	ownerID     uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := setupTestDB(t)

	f := &fixture{
		db:          database,
		tournaments: NewTournamentStore(database),
		entries:     NewEntryStore(database),
		matches:     NewMatchStore(database),
		users:       NewUserStore(database),
		teams:       NewTeamStore(database),
		gameID:      uuid.New(),
	}
	require.NoError(t, f.users.CreateGame(context.Background(), f.gameID, "Valorant"))
	f.ownerID = f.createUser(t, "owner", users.RoleOrganizer, 1500).ID
	return f
}

func (f *fixture) createUser(t *testing.T, name string, role users.Role, elo int) *users.User {
	t.Helper()
	u := &users.User{ID: uuid.New(), Email: name + "@example.com", Username: name, Role: role, Elo: elo}
	require.NoError(t, f.users.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) createTournament(t *testing.T, teamSize, maxTeams int) *bracket.Tournament {
	t.Helper()
	tournament := &bracket.Tournament{
		ID:            uuid.New(),
		OwnerID:       f.ownerID,
		Name:          "Spring Cup",
		GameID:        f.gameID,
		TeamSize:      teamSize,
		MaxTeams:      maxTeams,
		Status:        bracket.TournamentRegistration,
		SeedingMethod: bracket.SeedingStandard,
		Type:          bracket.SingleElimination,
		CreatedAt:     time.Now().UTC(),
	}
	f.inTx(t, func(tx *sqlx.Tx) {
		require.NoError(t, f.tournaments.CreateTournament(context.Background(), tx, tournament))
	})
	return tournament
}

func (f *fixture) addEntry(t *testing.T, tournamentID uuid.UUID, userID, teamID *uuid.UUID, seed int, participants ...uuid.UUID) bracket.Entry {
	t.Helper()
	entry := bracket.Entry{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		UserID:       userID,
		TeamID:       teamID,
		Seed:         seed,
		RegisteredAt: time.Now().UTC(),
	}
	links := make([]bracket.Participant, 0, len(participants))
	for _, p := range participants {
		links = append(links, bracket.Participant{EntryID: entry.ID, TournamentID: tournamentID, UserID: p})
	}
	f.inTx(t, func(tx *sqlx.Tx) {
		require.NoError(t, f.entries.CreateEntry(context.Background(), tx, &entry))
		require.NoError(t, f.entries.CreateParticipants(context.Background(), tx, links))
	})
	return entry
}

func (f *fixture) inTx(t *testing.T, fn func(tx *sqlx.Tx)) {
	t.Helper()
	tx, err := f.db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()
	fn(tx)
	require.NoError(t, tx.Commit())
}

func TestCreateTournament(t *testing.T) {
	f := newFixture(t)
	deadline := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)

	tournament := &bracket.Tournament{
		ID:                   uuid.New(),
		OwnerID:              f.ownerID,
		Name:                 "Test Tournament",
		GameID:               f.gameID,
		TeamSize:             3,
		MaxTeams:             8,
		RegistrationDeadline: &deadline,
		Status:               bracket.TournamentRegistration,
		SeedingMethod:        bracket.SeedingSequential,
		RequireRank:          true,
		Type:                 bracket.DoubleElimination,
		CreatedAt:            time.Now().UTC(),
	}
	f.inTx(t, func(tx *sqlx.Tx) {
		require.NoError(t, f.tournaments.CreateTournament(context.Background(), tx, tournament))
	})

	fetched, err := f.tournaments.GetTournament(context.Background(), tournament.ID)
	require.NoError(t, err)

	assert.Equal(t, tournament.ID, fetched.ID)
	assert.Equal(t, tournament.OwnerID, fetched.OwnerID)
	assert.Equal(t, tournament.Name, fetched.Name)
	assert.Equal(t, tournament.GameID, fetched.GameID)
	assert.Equal(t, 3, fetched.TeamSize)
	assert.Equal(t, 8, fetched.MaxTeams)
	assert.Equal(t, bracket.SeedingSequential, fetched.SeedingMethod)
	assert.Equal(t, bracket.DoubleElimination, fetched.Type)
	assert.True(t, fetched.RequireRank)
	require.NotNil(t, fetched.RegistrationDeadline)
	assert.WithinDuration(t, deadline, *fetched.RegistrationDeadline, time.Second)
	assert.WithinDuration(t, tournament.CreatedAt, fetched.CreatedAt, time.Second)

	owned, err := f.tournaments.GetTournamentsByOwner(context.Background(), f.ownerID)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestLockTournament(t *testing.T) {
	f := newFixture(t)
	tournament := f.createTournament(t, 1, 4)

	f.inTx(t, func(tx *sqlx.Tx) {
		locked, err := f.tournaments.LockTournament(context.Background(), tx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, tournament.ID, locked.ID)
		assert.Equal(t, int64(1), locked.RegistrationVersion)
	})

	f.inTx(t, func(tx *sqlx.Tx) {
		_, err := f.tournaments.LockTournament(context.Background(), tx, uuid.New())
		assert.ErrorIs(t, err, sql.ErrNoRows)
	})
}

func TestDeleteTournamentCascades(t *testing.T) {
	f := newFixture(t)
	tournament := f.createTournament(t, 1, 4)
	player := f.createUser(t, "p1", users.RoleStudent, 1200)
	f.addEntry(t, tournament.ID, &player.ID, nil, 1200, player.ID)

	f.inTx(t, func(tx *sqlx.Tx) {
		require.NoError(t, f.tournaments.DeleteTournament(context.Background(), tx, tournament.ID))
	})

	var links int
	require.NoError(t, f.db.Get(&links, "SELECT COUNT(*) FROM entry_participants"))
	assert.Zero(t, links)

	_, err := f.tournaments.GetTournament(context.Background(), tournament.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateAndReplaceMatches(t *testing.T) {
	f := newFixture(t)
	tournament := f.createTournament(t, 1, 4)
	a := f.createUser(t, "a", users.RoleStudent, 1300)
	entry := f.addEntry(t, tournament.ID, &a.ID, nil, 1300, a.ID)

	finalID := uuid.New()
	matches := []bracket.Match{
		{
			ID:                uuid.New(),
			TournamentID:      tournament.ID,
			BracketSide:       bracket.WinnersSide,
			RoundNumber:       1,
			MatchOrder:        1,
			Entry1ID:          &entry.ID,
			Status:            bracket.MatchFinished,
			WinnerSlot:        utils.Ptr(1),
			IsBye:             true,
			WinnerNextMatchID: &finalID,
			WinnerNextSlot:    utils.Ptr(1),
		},
		{
			ID:           finalID,
			TournamentID: tournament.ID,
			BracketSide:  bracket.WinnersSide,
			RoundNumber:  2,
			MatchOrder:   1,
			Entry1ID:     &entry.ID,
			Status:       bracket.MatchPending,
		},
	}

	f.inTx(t, func(tx *sqlx.Tx) {
		require.NoError(t, f.matches.CreateMatches(context.Background(), tx, matches))
	})

	fetched, err := f.matches.GetMatches(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, fetched, 2)
	assert.Equal(t, matches[0].ID, fetched[0].ID)
	assert.True(t, fetched[0].IsBye)
	assert.Equal(t, finalID, *fetched[0].WinnerNextMatchID)
	assert.Equal(t, 1, *fetched[0].WinnerNextSlot)
	assert.Equal(t, 1, *fetched[0].WinnerSlot)
	assert.Nil(t, fetched[1].WinnerNextMatchID)
	assert.Nil(t, fetched[1].Entry2ID)

	count, err := f.matches.CountMatches(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	f.inTx(t, func(tx *sqlx.Tx) {
		n, err := f.matches.DeleteMatches(context.Background(), tx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	fetched, err = f.matches.GetMatches(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Empty(t, fetched)
}
