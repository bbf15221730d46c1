// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEDGER SESSION HELPERS
// The ledger entity is single-owner: command handlers serialize access per
// user with a keyed mutex and run load -> hydrate -> mutate -> save inside
// the critical section. The entity itself holds no locks.
// ══════════════════════════════════════════════════════════════════════════════

// userLocks is a keyed mutex: one lock per user id.
type userLocks struct {
	mu    sync.Mutex
	locks map[shared.UserID]*sync.Mutex
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[shared.UserID]*sync.Mutex)}
}

// Lock acquires the per-user lock and returns its unlock function.
func (l *userLocks) Lock(userID shared.UserID) func() {
	l.mu.Lock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// LedgerSessions owns per-user serialization and the hydration path shared
// by all ledger-mutating handlers.
type LedgerSessions struct {
	snapshots ledger.SnapshotRepository
	cfg       ledger.Config
	locks     *userLocks
}

// NewLedgerSessions creates the session helper.
func NewLedgerSessions(snapshots ledger.SnapshotRepository, cfg ledger.Config) *LedgerSessions {
	return &LedgerSessions{
		snapshots: snapshots,
		cfg:       cfg,
		locks:     newUserLocks(),
	}
}

// Lock serializes access to one user's ledger.
func (s *LedgerSessions) Lock(userID shared.UserID) func() {
	return s.locks.Lock(userID)
}

// Load hydrates a ledger from the durable snapshot. A missing snapshot is a
// new user and hydrates the zero state; any other load failure surfaces as
// shared.ErrHydrationFailed so callers can distinguish "new user" from
// "fetch failed". Returns isNew = true for the zero-state path.
func (s *LedgerSessions) Load(ctx context.Context, userID shared.UserID) (*ledger.Ledger, bool, error) {
	l, err := ledger.NewLedger(userID, s.cfg)
	if err != nil {
		return nil, false, err
	}

	snap, err := s.snapshots.Load(ctx, userID)
	switch {
	case err == nil:
		if err := l.Hydrate(*snap); err != nil {
			return nil, false, shared.WrapError("command", "LoadLedger", shared.ErrPersistence, "snapshot is not hydratable", err)
		}
		return l, false, nil

	case errors.Is(err, shared.ErrNotFound):
		if err := l.HydrateEmpty(); err != nil {
			return nil, false, err
		}
		return l, true, nil

	default:
		return nil, false, shared.WrapError("command", "LoadLedger", shared.ErrHydrationFailed, "failed to fetch ledger snapshot", err)
	}
}

// Persist writes the ledger snapshot back. A write failure after a
// successful in-memory mutation is the divergence case: the caller gets
// shared.ErrPersistenceDiverged and should offer a retry.
func (s *LedgerSessions) Persist(ctx context.Context, l *ledger.Ledger) error {
	snap, err := l.Snapshot()
	if err != nil {
		return err
	}
	if err := s.snapshots.Save(ctx, &snap); err != nil {
		return shared.WrapError("command", "PersistLedger", shared.ErrPersistenceDiverged, "write-through failed after mutation", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REWARD DEDUPLICATION
// ══════════════════════════════════════════════════════════════════════════════

// RewardDeduper guards additive reward events against replay: AddPoints is
// not idempotent, so every reward carries a logical event id that is
// credited at most once. Implementations live in infrastructure (Redis
// SETNX with TTL, in-memory fallback).
type RewardDeduper interface {
	// MarkProcessed records the event id. Returns false if the id was
	// already recorded (the reward must not be credited again).
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// Release drops the marker when crediting failed after the claim, so a
	// retry of the same logical event is not mistaken for a replay.
	Release(ctx context.Context, eventID string) error
}
