// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrNotHydrated      = errors.New("not hydrated")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Persistence errors
	ErrPersistence = errors.New("persistence error")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "content", "leaderboard"
	Op      string // Operation that failed, e.g., "AddPoints", "Hydrate"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Ledger domain errors
var (
	ErrLedgerNotFound       = NewDomainError("ledger", "Find", ErrNotFound, "ledger not found")
	ErrInvalidAmount        = NewDomainError("ledger", "AddPoints", ErrNegativeValue, "amount would drive points negative")
	ErrDuplicateBadge       = NewDomainError("ledger", "UnlockBadge", ErrAlreadyExists, "badge already unlocked")
	ErrLedgerNotHydrated    = NewDomainError("ledger", "Read", ErrNotHydrated, "ledger has not been hydrated yet")
	ErrHydrationFailed      = NewDomainError("ledger", "Hydrate", ErrPersistence, "failed to fetch ledger snapshot")
	ErrSnapshotNotFound     = NewDomainError("ledger", "Hydrate", ErrNotFound, "no durable snapshot for user")
	ErrPersistenceDiverged  = NewDomainError("ledger", "Persist", ErrPersistence, "in-memory mutation applied but write-through failed")
	ErrInvalidBadge         = NewDomainError("ledger", "Validate", ErrInvalidEntity, "invalid badge")
	ErrInvalidStreakDate    = NewDomainError("ledger", "RecordActivity", ErrInvalidInput, "activity date precedes last active date")
	ErrDuplicateRewardEvent = NewDomainError("ledger", "Dedupe", ErrAlreadyProcessed, "reward event already credited")
)

// Content domain errors
var (
	ErrEpisodeNotFound    = NewDomainError("content", "FindEpisode", ErrNotFound, "episode not found")
	ErrChallengeNotFound  = NewDomainError("content", "FindChallenge", ErrNotFound, "challenge not found")
	ErrContentLocked      = NewDomainError("content", "Access", ErrForbidden, "content is locked")
	ErrAlreadyCompleted   = NewDomainError("content", "Complete", ErrAlreadyProcessed, "content already completed")
	ErrChallengeNotJoined = NewDomainError("content", "Progress", ErrInvalidState, "challenge has not been joined")
	ErrChallengeEnded     = NewDomainError("content", "Join", ErrExpired, "challenge window has closed")
	ErrInvalidCriterion   = NewDomainError("content", "DecodeCriteria", ErrInvalidFormat, "unknown badge criterion kind")
)

// Profile domain errors
var (
	ErrProfileNotFound     = NewDomainError("profile", "Find", ErrNotFound, "profile not found")
	ErrInvalidRole         = NewDomainError("profile", "Validate", ErrInvalidInput, "role must be student or educator")
	ErrInvalidDisplayName  = NewDomainError("profile", "Validate", ErrInvalidInput, "display name must be 1-100 chars")
	ErrPreferencesNotFound = NewDomainError("profile", "FindPreferences", ErrNotFound, "preferences not found")
	ErrUnknownPrefsVersion = NewDomainError("profile", "MigratePreferences", ErrInvalidFormat, "unknown preferences schema version")
)

// Leaderboard domain errors
var (
	ErrLeaderboardEmpty    = NewDomainError("leaderboard", "Read", ErrNotFound, "leaderboard has no entries")
	ErrNotOnLeaderboard    = NewDomainError("leaderboard", "FindRank", ErrNotFound, "user not on leaderboard")
	ErrLeaderboardSnapshot = NewDomainError("leaderboard", "FindSnapshot", ErrNotFound, "snapshot not found")
)

// External service errors
var (
	ErrIdentityUnavailable = NewDomainError("identity", "Request", ErrServiceUnavailable, "identity provider is unavailable")
	ErrInvalidAccessToken  = NewDomainError("identity", "Verify", ErrUnauthorized, "access token is invalid or expired")
	ErrStorageFailed       = NewDomainError("storage", "Upload", ErrExternalService, "object storage request failed")
	ErrImageTooLarge       = NewDomainError("storage", "Validate", ErrValueOutOfRange, "image must be smaller than 5MB")
	ErrUnsupportedImage    = NewDomainError("storage", "Validate", ErrInvalidFormat, "only JPEG, PNG, WebP and GIF images are allowed")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsNoOp reports whether the error describes a mutation that was skipped
// rather than one that failed (duplicate badge, already-credited reward).
// Callers report these distinctly instead of treating them as faults.
func IsNoOp(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) || errors.Is(err, ErrDuplicateBadge)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrPersistence)
}
