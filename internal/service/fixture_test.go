package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/bracket"
	"github.com/AdamBeresnev/op-arena/internal/config"
	"github.com/AdamBeresnev/op-arena/internal/db"
	"github.com/AdamBeresnev/op-arena/internal/logging"
	"github.com/AdamBeresnev/op-arena/internal/store"
	users "github.com/AdamBeresnev/op-arena/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a file-backed SQLite database and applies migrations.
// A file is used instead of :memory: so concurrent transactions share one database.
func setupTestDB(t *testing.T, busyTimeout time.Duration) *sqlx.DB {
	t.Helper()

	dsn := db.SQLiteDSN(filepath.Join(t.TempDir(), "arena.db"), busyTimeout)
	database, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	require.NoError(t, err, "Failed to open test DB")
	t.Cleanup(func() { database.Close() })

	require.NoError(t, db.RunMigrations(database), "Failed to apply migrations")
	return database
}

type recordedEvent struct {
	topic   string
	payload any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{topic: topic, payload: payload})
	return nil
}

func (p *recordingPublisher) topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.topic)
	}
	return out
}

type fixture struct {
	db        *sqlx.DB
	stores    *store.Stores
	gameID    uuid.UUID
	organizer users.Identity
	now       time.Time
	events    *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithTimeout(t, 5*time.Second)
}

func newFixtureWithTimeout(t *testing.T, busyTimeout time.Duration) *fixture {
	t.Helper()
	database := setupTestDB(t, busyTimeout)

	f := &fixture{
		db:     database,
		stores: store.New(database),
		gameID: uuid.New(),
		now:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		events: &recordingPublisher{},
	}
	require.NoError(t, f.stores.Users.CreateGame(context.Background(), f.gameID, "League of Legends"))
	f.organizer = f.user(t, "organizer", users.RoleOrganizer, 1500)
	return f
}

func (f *fixture) options(extra ...Option) []Option {
	opts := []Option{
		WithLogger(logging.NewNop()),
		WithEvents(f.events),
		WithClock(func() time.Time { return f.now }),
		WithRetry(config.RetryConfig{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: 5 * time.Millisecond}),
	}
	return append(opts, extra...)
}

func (f *fixture) registrations(extra ...Option) *RegistrationService {
	return NewRegistrationService(f.db, f.stores, f.stores.Ratings, f.stores.Users, f.options(extra...)...)
}

func (f *fixture) brackets(extra ...Option) *BracketService {
	return NewBracketService(f.db, f.stores, f.options(extra...)...)
}

func (f *fixture) user(t *testing.T, name string, role users.Role, elo int) users.Identity {
	t.Helper()
	u := &users.User{ID: uuid.New(), Email: name + "@example.com", Username: name, Role: role, Elo: elo}
	require.NoError(t, f.stores.Users.CreateUser(context.Background(), u))
	return users.Identity{ID: u.ID, Role: u.Role}
}

func (f *fixture) student(t *testing.T, name string) users.Identity {
	t.Helper()
	return f.user(t, name, users.RoleStudent, 1000)
}

func (f *fixture) ranked(t *testing.T, ids ...uuid.UUID) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, f.stores.Users.SetRank(context.Background(), id, f.gameID, "Gold"))
	}
}

// team creates a team owned by owner with the given captains and members.
func (f *fixture) team(t *testing.T, name string, owner uuid.UUID, elo int, captains []uuid.UUID, members ...uuid.UUID) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	team := &users.Team{ID: uuid.New(), Name: name, OwnerID: owner, Elo: elo}
	require.NoError(t, f.stores.Teams.CreateTeam(ctx, team))
	for _, id := range captains {
		require.NoError(t, f.stores.Teams.AddMember(ctx, users.TeamMembership{TeamID: team.ID, UserID: id, Role: users.TeamCaptain}))
	}
	for _, id := range members {
		require.NoError(t, f.stores.Teams.AddMember(ctx, users.TeamMembership{TeamID: team.ID, UserID: id, Role: users.TeamMember}))
	}
	return team.ID
}

func (f *fixture) tournament(t *testing.T, mutate ...func(*bracket.Tournament)) *bracket.Tournament {
	t.Helper()
	tournament := &bracket.Tournament{
		ID:            uuid.New(),
		OwnerID:       f.organizer.ID,
		Name:          "Winter Split",
		GameID:        f.gameID,
		TeamSize:      1,
		MaxTeams:      16,
		Status:        bracket.TournamentRegistration,
		SeedingMethod: bracket.SeedingStandard,
		Type:          bracket.SingleElimination,
		CreatedAt:     f.now,
	}
	for _, m := range mutate {
		m(tournament)
	}

	tx, err := f.db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	defer tx.Rollback()
	require.NoError(t, f.stores.Tournaments.CreateTournament(context.Background(), tx, tournament))
	require.NoError(t, tx.Commit())
	return tournament
}

// soloEntries registers n students with the given elos, one second apart.
func (f *fixture) soloEntries(t *testing.T, tournamentID uuid.UUID, elos ...int) []bracket.Entry {
	t.Helper()
	svc := f.registrations()
	start := f.now
	defer func() { f.now = start }()

	entries := make([]bracket.Entry, 0, len(elos))
	for i, elo := range elos {
		player := f.user(t, "player-"+uuid.NewString()[:8], users.RoleStudent, elo)
		f.now = start.Add(time.Duration(i) * time.Second)
		entry, err := svc.Register(context.Background(), tournamentID, player, SoloTarget(player.ID))
		require.NoError(t, err)
		entries = append(entries, *entry)
	}
	return entries
}

func (f *fixture) countRows(t *testing.T, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.Get(&n, f.db.Rebind(query), args...))
	return n
}
