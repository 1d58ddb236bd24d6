package persist

import (
	"context"
	"fmt"

	"github.com/cerea1/lifetime/internal/core/event"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// JournalEntry is one recorded lifecycle transition.
type JournalEntry struct {
	Tick       uint64
	Entity     uint64
	Kind       string
	Transition string
}

// EntryFrom converts a bus event into a journal row.
func EntryFrom(ev event.Transitioned) JournalEntry {
	return JournalEntry{
		Tick:       ev.Tick,
		Entity:     uint64(ev.Entity),
		Kind:       string(ev.Kind),
		Transition: ev.Transition.String(),
	}
}

type JournalRepo struct {
	db *DB
}

func NewJournalRepo(db *DB) *JournalRepo {
	return &JournalRepo{db: db}
}

// StartRun records a new arena run and returns its ID.
func (r *JournalRepo) StartRun(ctx context.Context, kinds []string) (uuid.UUID, error) {
	run := uuid.New()
	if _, err := r.db.Pool.Exec(ctx,
		`INSERT INTO arena_runs (id, kinds) VALUES ($1, $2)`,
		run, kinds,
	); err != nil {
		return uuid.Nil, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

// FinishRun stamps the run with its end time and last tick.
func (r *JournalRepo) FinishRun(ctx context.Context, run uuid.UUID, lastTick uint64) error {
	if _, err := r.db.Pool.Exec(ctx,
		`UPDATE arena_runs SET finished_at = now(), last_tick = $2 WHERE id = $1`,
		run, int64(lastTick),
	); err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Append writes a batch of entries for run in a single transaction.
func (r *JournalRepo) Append(ctx context.Context, run uuid.UUID, entries []JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("journal begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(
			`INSERT INTO lifetime_journal (run_id, tick, entity, kind, transition)
			 VALUES ($1, $2, $3, $4, $5)`,
			run, int64(e.Tick), int64(e.Entity), e.Kind, e.Transition,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("journal commit: %w", err)
	}
	return nil
}

// Count returns how many entries run has recorded.
func (r *JournalRepo) Count(ctx context.Context, run uuid.UUID) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx,
		`SELECT count(*) FROM lifetime_journal WHERE run_id = $1`, run,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}
