package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	sqlite "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate(t *testing.T) {
	ctx := context.Background()
	dsn := SQLiteDSN(filepath.Join(t.TempDir(), "arena.db"), time.Second)

	conn, err := Open(ctx, DriverSQLite, dsn)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, RunMigrations(conn))
	// Second run is a no-op
	require.NoError(t, RunMigrations(conn))

	var tables []string
	err = conn.SelectContext(ctx, &tables, "SELECT name FROM sqlite_master WHERE type = 'table' ORDER BY name")
	require.NoError(t, err)

	for _, want := range []string{"entries", "entry_participants", "matches", "ranks", "team_members", "teams", "tournaments", "users"} {
		assert.Contains(t, tables, want)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "whatever")
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil", err: nil, expected: false},
		{name: "sqlite busy", err: sqlite.Error{Code: sqlite.ErrBusy}, expected: true},
		{name: "sqlite locked wrapped", err: fmt.Errorf("lock: %w", sqlite.Error{Code: sqlite.ErrLocked}), expected: true},
		{name: "sqlite constraint", err: sqlite.Error{Code: sqlite.ErrConstraint}, expected: false},
		{name: "postgres serialization failure", err: &pq.Error{Code: "40001"}, expected: true},
		{name: "postgres deadlock", err: &pq.Error{Code: "40P01"}, expected: true},
		{name: "postgres lock not available", err: &pq.Error{Code: "55P03"}, expected: true},
		{name: "postgres unique violation", err: &pq.Error{Code: "23505"}, expected: false},
		{name: "plain error", err: errors.New("boom"), expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsTransient(tc.err))
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(sqlite.Error{Code: sqlite.ErrConstraint, ExtendedCode: sqlite.ErrConstraintUnique}))
	assert.True(t, IsUniqueViolation(&pq.Error{Code: "23505"}))
	assert.False(t, IsUniqueViolation(sqlite.Error{Code: sqlite.ErrConstraint, ExtendedCode: sqlite.ErrConstraintForeignKey}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
}
