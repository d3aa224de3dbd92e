package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/op-arena/internal/bracket"
	users "github.com/AdamBeresnev/op-arena/internal/user"
	crerrors "github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateTournament(t *testing.T) {
	f := newFixture(t)
	svc := NewTournamentService(f.db, f.stores, f.options()...)

	tournament, err := svc.CreateTournament(context.Background(), f.organizer, TournamentInput{
		Name:     "Spring Open",
		GameID:   f.gameID,
		MaxTeams: 8,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, tournament.TeamSize)
	assert.Equal(t, bracket.SeedingStandard, tournament.SeedingMethod)
	assert.Equal(t, bracket.SingleElimination, tournament.Type)
	assert.Equal(t, bracket.TournamentRegistration, tournament.Status)

	data, err := svc.GetTournamentData(context.Background(), tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spring Open", data.Tournament.Name)
	assert.Empty(t, data.Entries)
	assert.Empty(t, data.Matches)
	assert.Nil(t, data.NextMatchID)

	owned, err := svc.GetTournamentsForUser(context.Background(), f.organizer.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 1)
}

func TestCreateTournamentRejections(t *testing.T) {
	f := newFixture(t)
	svc := NewTournamentService(f.db, f.stores, f.options()...)

	_, err := svc.CreateTournament(context.Background(), f.student(t, "s"), TournamentInput{Name: "x", GameID: f.gameID, MaxTeams: 4})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.CreateTournament(context.Background(), f.organizer, TournamentInput{Name: "x", GameID: f.gameID})
	assert.True(t, crerrors.Is(err, ErrInvalidInput))
}

func TestTournamentDataNextMatch(t *testing.T) {
	f := newFixture(t)
	tournament := f.tournament(t)
	f.soloEntries(t, tournament.ID, 1000, 1100, 1200)
	_, err := f.brackets().BuildBracket(context.Background(), tournament.ID)
	require.NoError(t, err)

	data, err := NewTournamentService(f.db, f.stores, f.options()...).GetTournamentData(context.Background(), tournament.ID)
	require.NoError(t, err)
	require.Len(t, data.Matches, 3)
	require.NotNil(t, data.NextMatchID)

	// Round-1 match 1 is the top seed's bye, so the first open match is match 2.
	assert.Equal(t, data.Matches[1].ID, *data.NextMatchID)
}

func TestUpdateStatusClosesRegistration(t *testing.T) {
	f := newFixture(t)
	tournament := f.tournament(t)
	svc := NewTournamentService(f.db, f.stores, f.options()...)
	player := f.student(t, "p")

	err := svc.UpdateStatus(context.Background(), player, tournament.ID, bracket.TournamentInProgress)
	require.ErrorIs(t, err, ErrForbidden)

	err = svc.UpdateStatus(context.Background(), f.organizer, tournament.ID, "PAUSED")
	require.True(t, crerrors.Is(err, ErrInvalidInput))

	require.NoError(t, svc.UpdateStatus(context.Background(), f.organizer, tournament.ID, bracket.TournamentInProgress))

	_, err = f.registrations().Register(context.Background(), tournament.ID, player, SoloTarget(player.ID))
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestDeleteTournament(t *testing.T) {
	f := newFixture(t)
	tournament := f.tournament(t)
	f.soloEntries(t, tournament.ID, 1000, 1100)
	_, err := f.brackets().BuildBracket(context.Background(), tournament.ID)
	require.NoError(t, err)

	svc := NewTournamentService(f.db, f.stores, f.options()...)
	err = svc.DeleteTournament(context.Background(), f.user(t, "teacher", users.RoleTeacher, 1000), tournament.ID)
	require.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.DeleteTournament(context.Background(), f.organizer, tournament.ID))
	assert.Zero(t, f.countRows(t, "SELECT COUNT(*) FROM entries"))
	assert.Zero(t, f.countRows(t, "SELECT COUNT(*) FROM matches"))

	_, err = svc.GetTournamentData(context.Background(), tournament.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	err = svc.DeleteTournament(context.Background(), f.organizer, uuid.New())
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}
