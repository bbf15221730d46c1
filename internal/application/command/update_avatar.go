package command

import (
	"context"
	"fmt"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/profile"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE AVATAR COMMAND
// Uploads a validated image to object storage and points the profile at the
// resulting public URL. Size/MIME validation happens in the storage client
// before any bytes leave the process.
// ══════════════════════════════════════════════════════════════════════════════

// AvatarStorage uploads avatar images. Implemented by the Supabase Storage
// client in infrastructure.
type AvatarStorage interface {
	// UploadAvatar validates and stores the image, returning its public URL.
	UploadAvatar(ctx context.Context, userID shared.UserID, filename, contentType string, data []byte) (string, error)
}

// UpdateAvatarCommand contains the avatar image to store.
type UpdateAvatarCommand struct {
	UserID      shared.UserID
	Filename    string
	ContentType string
	Data        []byte

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c UpdateAvatarCommand) Validate() error {
	if c.UserID.IsEmpty() {
		return shared.NewDomainError("command", "UpdateAvatar", shared.ErrInvalidID, "user_id is required")
	}
	if len(c.Data) == 0 {
		return shared.NewDomainError("command", "UpdateAvatar", shared.ErrEmptyValue, "image data is required")
	}
	return nil
}

// UpdateAvatarResult contains the stored avatar URL.
type UpdateAvatarResult struct {
	UserID    shared.UserID
	AvatarURL string
}

// UpdateAvatarHandler handles the UpdateAvatarCommand.
type UpdateAvatarHandler struct {
	profiles profile.Repository
	storage  AvatarStorage
}

// NewUpdateAvatarHandler creates a new UpdateAvatarHandler.
func NewUpdateAvatarHandler(profiles profile.Repository, storage AvatarStorage) *UpdateAvatarHandler {
	return &UpdateAvatarHandler{profiles: profiles, storage: storage}
}

// Handle executes the update avatar command.
func (h *UpdateAvatarHandler) Handle(ctx context.Context, cmd UpdateAvatarCommand) (*UpdateAvatarResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("update_avatar: validation failed: %w", err)
	}

	p, err := h.profiles.FindByID(ctx, cmd.UserID)
	if err != nil {
		return nil, fmt.Errorf("update_avatar: %w", err)
	}

	url, err := h.storage.UploadAvatar(ctx, cmd.UserID, cmd.Filename, cmd.ContentType, cmd.Data)
	if err != nil {
		return nil, fmt.Errorf("update_avatar: upload failed: %w", err)
	}

	p.SetAvatar(url)
	if err := h.profiles.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("update_avatar: failed to save profile: %w", err)
	}

	return &UpdateAvatarResult{UserID: cmd.UserID, AvatarURL: url}, nil
}
