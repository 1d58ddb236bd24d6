package system

import (
	"context"
	"time"

	"github.com/cerea1/lifetime/internal/core/event"
	coresys "github.com/cerea1/lifetime/internal/core/system"
	"github.com/cerea1/lifetime/internal/persist"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JournalWriter persists journal batches. persist.JournalRepo implements it.
type JournalWriter interface {
	Append(ctx context.Context, run uuid.UUID, entries []persist.JournalEntry) error
}

// maxJournalBacklog bounds the buffer while the database is unreachable.
const maxJournalBacklog = 1 << 16

// JournalSystem buffers dispatched transitions and writes them every
// interval ticks. Phase 3 (Persist).
type JournalSystem struct {
	writer    JournalWriter
	run       uuid.UUID
	log       *zap.Logger
	buf       []persist.JournalEntry
	tickCount int
	interval  int // flush every N ticks
	written   int
	dropped   int
}

func NewJournalSystem(bus *event.Bus, writer JournalWriter, run uuid.UUID, log *zap.Logger, intervalTicks int) *JournalSystem {
	s := &JournalSystem{
		writer:   writer,
		run:      run,
		log:      log,
		interval: intervalTicks,
	}
	event.Subscribe(bus, s.record)
	return s
}

func (s *JournalSystem) record(ev event.Transitioned) {
	if len(s.buf) >= maxJournalBacklog {
		s.buf = s.buf[1:]
		s.dropped++
	}
	s.buf = append(s.buf, persist.EntryFrom(ev))
}

func (s *JournalSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *JournalSystem) Update(_ time.Duration) {
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0
	s.Flush()
}

// Flush writes everything buffered now. Called on shutdown as well. A failed
// batch stays buffered for the next flush.
func (s *JournalSystem) Flush() {
	if len(s.buf) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persist.WriteTimeout)
	defer cancel()
	if err := s.writer.Append(ctx, s.run, s.buf); err != nil {
		s.log.Error("journal flush failed", zap.Int("entries", len(s.buf)), zap.Error(err))
		return
	}
	s.written += len(s.buf)
	s.log.Debug("journal flushed", zap.Int("entries", len(s.buf)))
	clear(s.buf)
	s.buf = s.buf[:0]
}

// Written returns the number of entries persisted so far.
func (s *JournalSystem) Written() int { return s.written }

// Buffered returns the number of entries waiting for the next flush.
func (s *JournalSystem) Buffered() int { return len(s.buf) }

// Dropped returns the number of entries discarded because the backlog was full.
func (s *JournalSystem) Dropped() int { return s.dropped }
