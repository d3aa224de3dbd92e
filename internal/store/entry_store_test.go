package store

import (
	"context"
	"testing"
	"time"

	"github.com/AdamBeresnev/op-arena/internal/bracket"
	"github.com/AdamBeresnev/op-arena/internal/db"
	users "github.com/AdamBeresnev/op-arena/internal/user"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountAdmittedUnits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tournament := f.createTournament(t, 2, 4)

	owner := f.createUser(t, "captain", users.RoleStudent, 1000)
	mate := f.createUser(t, "mate", users.RoleStudent, 1000)
	solo := f.createUser(t, "solo", users.RoleStudent, 1000)

	team := &users.Team{ID: uuid.New(), Name: "Raccoons", OwnerID: owner.ID, Elo: 1400}
	require.NoError(t, f.teams.CreateTeam(ctx, team))

	f.addEntry(t, tournament.ID, nil, &team.ID, 1400, owner.ID, mate.ID)
	f.addEntry(t, tournament.ID, &solo.ID, nil, 1000, solo.ID)

	f.inTx(t, func(tx *sqlx.Tx) {
		count, err := f.entries.CountAdmittedUnits(ctx, tx, tournament.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		exists, err := f.entries.TeamEntryExists(ctx, tx, tournament.ID, team.ID)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = f.entries.SoloEntryExists(ctx, tx, tournament.ID, owner.ID)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestEntryUniqueness(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tournament := f.createTournament(t, 1, 4)
	player := f.createUser(t, "p", users.RoleStudent, 1000)
	f.addEntry(t, tournament.ID, &player.ID, nil, 1000, player.ID)

	tx, err := f.db.BeginTxx(ctx, nil)
	require.NoError(t, err)
	defer tx.Rollback()

	dup := bracketEntry(tournament.ID, &player.ID, nil)
	err = f.entries.CreateEntry(ctx, tx, &dup)
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err))
}

func TestFindParticipantConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tournament := f.createTournament(t, 2, 4)

	x := f.createUser(t, "xavier", users.RoleStudent, 1000)
	y := f.createUser(t, "yolanda", users.RoleStudent, 1000)
	z := f.createUser(t, "zed", users.RoleStudent, 1000)

	team := &users.Team{ID: uuid.New(), Name: "Team A", OwnerID: x.ID, Elo: 1200}
	require.NoError(t, f.teams.CreateTeam(ctx, team))
	f.addEntry(t, tournament.ID, nil, &team.ID, 1200, x.ID, y.ID)

	f.inTx(t, func(tx *sqlx.Tx) {
		conflicts, err := f.entries.FindParticipantConflicts(ctx, tx, tournament.ID, []uuid.UUID{z.ID, x.ID})
		require.NoError(t, err)
		require.Len(t, conflicts, 1)
		assert.Equal(t, x.ID, conflicts[0].UserID)
		assert.Equal(t, "xavier", conflicts[0].Username)
		require.NotNil(t, conflicts[0].TeamName)
		assert.Equal(t, "Team A", *conflicts[0].TeamName)

		none, err := f.entries.FindParticipantConflicts(ctx, tx, tournament.ID, []uuid.UUID{z.ID})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestListEntriesOrderAndProjections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tournament := f.createTournament(t, 1, 8)

	low := f.createUser(t, "low", users.RoleStudent, 900)
	high := f.createUser(t, "high", users.RoleStudent, 1800)
	f.addEntry(t, tournament.ID, &low.ID, nil, 900, low.ID)
	f.addEntry(t, tournament.ID, &high.ID, nil, 1800, high.ID)

	entries, err := f.entries.ListEntries(ctx, tournament.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, high.ID, *entries[0].UserID)
	require.NotNil(t, entries[0].User)
	assert.Equal(t, "high", entries[0].User.Username)
	require.Len(t, entries[0].Participants, 1)
	assert.Nil(t, entries[0].Team)
	assert.Equal(t, low.ID, *entries[1].UserID)
}

func TestTeamRosterAndRanks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	captain := f.createUser(t, "cap", users.RoleStudent, 1000)
	member := f.createUser(t, "mem", users.RoleStudent, 1000)
	team := &users.Team{ID: uuid.New(), Name: "Squad", OwnerID: captain.ID, Elo: 1337}
	require.NoError(t, f.teams.CreateTeam(ctx, team))
	require.NoError(t, f.teams.AddMember(ctx, users.TeamMembership{TeamID: team.ID, UserID: captain.ID, Role: users.TeamCaptain}))
	require.NoError(t, f.teams.AddMember(ctx, users.TeamMembership{TeamID: team.ID, UserID: member.ID, Role: users.TeamMember}))

	f.inTx(t, func(tx *sqlx.Tx) {
		roster, err := f.teams.GetRosterTx(ctx, tx, team.ID)
		require.NoError(t, err)
		assert.Equal(t, users.TeamCaptain, roster[captain.ID])
		assert.Equal(t, users.TeamMember, roster[member.ID])
	})

	ratings := NewRatingStore(f.db)
	f.inTx(t, func(tx *sqlx.Tx) {
		elo, err := ratings.TeamRatingTx(ctx, tx, team.ID)
		require.NoError(t, err)
		assert.Equal(t, 1337, elo)

		elo, err = ratings.UserRatingTx(ctx, tx, member.ID)
		require.NoError(t, err)
		assert.Equal(t, 1000, elo)

		ranked, err := f.users.HasRankTx(ctx, tx, member.ID, f.gameID)
		require.NoError(t, err)
		assert.False(t, ranked)
	})

	require.NoError(t, f.users.SetRank(ctx, member.ID, f.gameID, "Gold"))
	require.NoError(t, f.users.SetRank(ctx, member.ID, f.gameID, "Platinum"))
	f.inTx(t, func(tx *sqlx.Tx) {
		ranked, err := f.users.HasRankTx(ctx, tx, member.ID, f.gameID)
		require.NoError(t, err)
		assert.True(t, ranked)
	})
}

func bracketEntry(tournamentID uuid.UUID, userID, teamID *uuid.UUID) bracket.Entry {
	return bracket.Entry{
		ID:           uuid.New(),
		TournamentID: tournamentID,
		UserID:       userID,
		TeamID:       teamID,
		RegisteredAt: time.Now().UTC(),
	}
}
