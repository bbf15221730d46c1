package command

import (
	"context"
	"fmt"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// HYDRATE LEDGER COMMAND
// Runs at session start: fetches the durable snapshot and produces the
// session ledger. A new user hydrates the zero state; a fetch failure is
// reported as HydrationFailed, never silently defaulted, so the client can
// tell "fresh account" apart from "your data did not load".
// ══════════════════════════════════════════════════════════════════════════════

// HydrateLedgerCommand contains the data to hydrate a user's ledger.
type HydrateLedgerCommand struct {
	UserID shared.UserID

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c HydrateLedgerCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return shared.NewDomainError("command", "HydrateLedger", shared.ErrInvalidID, "user_id is required")
	}
	return nil
}

// HydrateLedgerResult contains the hydrated session state.
type HydrateLedgerResult struct {
	UserID shared.UserID

	// IsNew is true when no durable snapshot existed (fresh account).
	IsNew bool

	Points shared.Points
	Level  shared.Level
	Streak int
	Badges []ledger.Badge

	Progress ledger.Progress
}

// HydrateLedgerHandler handles the HydrateLedgerCommand.
type HydrateLedgerHandler struct {
	sessions *LedgerSessions
}

// NewHydrateLedgerHandler creates a new HydrateLedgerHandler.
func NewHydrateLedgerHandler(sessions *LedgerSessions) *HydrateLedgerHandler {
	return &HydrateLedgerHandler{sessions: sessions}
}

// Handle executes the hydrate ledger command.
func (h *HydrateLedgerHandler) Handle(ctx context.Context, cmd HydrateLedgerCommand) (*HydrateLedgerResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("hydrate_ledger: validation failed: %w", err)
	}

	unlock := h.sessions.Lock(cmd.UserID)
	defer unlock()

	l, isNew, err := h.sessions.Load(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("hydrate_ledger: %w", err)
	}

	points, _ := l.Points()
	level, _ := l.Level()
	streak, _ := l.Streak()
	badges, _ := l.Badges()
	progress, _ := l.LevelProgress()

	return &HydrateLedgerResult{
		UserID:   cmd.UserID,
		IsNew:    isNew,
		Points:   points,
		Level:    level,
		Streak:   streak,
		Badges:   badges,
		Progress: progress,
	}, nil
}
