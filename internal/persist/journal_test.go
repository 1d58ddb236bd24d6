package persist

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/cerea1/lifetime/internal/config"
	"github.com/cerea1/lifetime/internal/core/event"
	"github.com/cerea1/lifetime/internal/core/lifetime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEntryFrom(t *testing.T) {
	e := EntryFrom(event.Transitioned{Entity: 42, Kind: "goblin", Transition: lifetime.Disposed, Tick: 7})
	assert.Equal(t, JournalEntry{Tick: 7, Entity: 42, Kind: "goblin", Transition: "disposed"}, e)
}

// TestJournalRepo_RoundTrip needs a scratch Postgres database named by
// LIFETIME_TEST_DSN.
func TestJournalRepo_RoundTrip(t *testing.T) {
	dsn := os.Getenv("LIFETIME_TEST_DSN")
	if dsn == "" {
		t.Skip("LIFETIME_TEST_DSN not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log := zaptest.NewLogger(t)
	db, err := NewDB(ctx, config.JournalConfig{
		DSN:             dsn,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	}, log)
	require.NoError(t, err)
	defer db.Close()
	version, err := RunMigrations(ctx, db.Pool, log)
	require.NoError(t, err)
	assert.EqualValues(t, 1, version)

	repo := NewJournalRepo(db)
	run, err := repo.StartRun(ctx, []string{"goblin", "hunter"})
	require.NoError(t, err)

	require.NoError(t, repo.Append(ctx, run, []JournalEntry{
		{Tick: 1, Entity: 1, Kind: "goblin", Transition: "initialized"},
		{Tick: 2, Entity: 1, Kind: "goblin", Transition: "disposed"},
		{Tick: 2, Entity: 1, Kind: "goblin", Transition: "destroyed"},
	}))
	require.NoError(t, repo.Append(ctx, run, nil))

	n, err := repo.Count(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	err = repo.Append(ctx, run, []JournalEntry{{Tick: 3, Entity: 2, Kind: "goblin", Transition: "exploded"}})
	assert.Error(t, err, "check constraint rejects the whole batch")
	n, err = repo.Count(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, repo.FinishRun(ctx, run, 3))
}
