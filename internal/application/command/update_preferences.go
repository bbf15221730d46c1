package command

import (
	"context"
	"fmt"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/profile"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE PREFERENCES COMMAND
// Saves the user's preference categories. Input arrives in the canonical v2
// shape; old v1 rows only exist in storage and are migrated on read, so the
// write path never sees them.
// ══════════════════════════════════════════════════════════════════════════════

// UpdatePreferencesCommand contains the preferences to save.
type UpdatePreferencesCommand struct {
	UserID      shared.UserID
	Preferences profile.Preferences

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UpdatePreferencesCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return shared.NewDomainError("command", "UpdatePreferences", shared.ErrInvalidID, "user_id is required")
	}
	prefs := c.Preferences
	prefs.UserID = c.UserID
	return prefs.Validate()
}

// UpdatePreferencesResult contains the result of the update.
type UpdatePreferencesResult struct {
	UserID      shared.UserID
	Preferences profile.Preferences
}

// UpdatePreferencesHandler handles the UpdatePreferencesCommand.
type UpdatePreferencesHandler struct {
	preferences profile.PreferencesRepository
}

// NewUpdatePreferencesHandler creates a new UpdatePreferencesHandler.
func NewUpdatePreferencesHandler(preferences profile.PreferencesRepository) *UpdatePreferencesHandler {
	return &UpdatePreferencesHandler{preferences: preferences}
}

// Handle executes the update preferences command.
func (h *UpdatePreferencesHandler) Handle(ctx context.Context, cmd UpdatePreferencesCommand) (*UpdatePreferencesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_preferences: validation failed: %w", err)
	}

	prefs := cmd.Preferences
	prefs.UserID = cmd.UserID
	prefs.Version = profile.PrefsV2

	if err := h.preferences.Save(ctx, prefs); err != nil {
		return nil, fmt.Errorf("update_preferences: failed to save: %w", err)
	}

	return &UpdatePreferencesResult{UserID: cmd.UserID, Preferences: prefs}, nil
}
