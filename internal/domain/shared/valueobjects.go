// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// UserID represents a unique user identifier (UUID format, owned by the
// external identity provider — read-only to the core).
type UserID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the user ID is a valid UUID.
func (u UserID) IsValid() bool {
	return uuidRegex.MatchString(string(u))
}

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a new UserID with validation.
func NewUserID(id string) (UserID, error) {
	uid := UserID(strings.ToLower(strings.TrimSpace(id)))
	if !uid.IsValid() {
		return "", NewDomainError("shared", "NewUserID", ErrInvalidID, "invalid user ID format")
	}
	return uid, nil
}

// ContentID represents a unique identifier of an unlockable content item
// (story episode or weekly-challenge tier).
type ContentID string

// IsValid checks that the content ID is non-empty.
func (c ContentID) IsValid() bool {
	return strings.TrimSpace(string(c)) != ""
}

// String returns the string representation.
func (c ContentID) String() string {
	return string(c)
}

// ═══════════════════════════════════════════════════════════════════════════
// Role Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Role is the user's role as reported by the identity provider.
// The set is closed: exactly student and educator.
type Role string

const (
	RoleStudent  Role = "student"
	RoleEducator Role = "educator"
)

// IsValid checks that the role is one of the two known values.
func (r Role) IsValid() bool {
	return r == RoleStudent || r == RoleEducator
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// NewRole creates a Role with validation. Unknown values default to student
// rather than failing: the identity provider owns the role claim and older
// accounts may carry no claim at all.
func NewRole(value string) Role {
	r := Role(strings.ToLower(strings.TrimSpace(value)))
	if !r.IsValid() {
		return RoleStudent
	}
	return r
}

// ═══════════════════════════════════════════════════════════════════════════
// Points / Level Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// Points represents a user's cumulative score. Points never go negative and
// are monotonically non-decreasing except for administrative corrections,
// which are out of scope for the ledger itself.
type Points int

// PointsPerLevel is the size of one level bucket. The derivation
// level = points/PointsPerLevel + 1 must be used everywhere a level is
// displayed; no call site computes its own variant.
const PointsPerLevel = 500

// IsValid checks that points are non-negative.
func (p Points) IsValid() bool {
	return p >= 0
}

// Int returns the underlying int value.
func (p Points) Int() int {
	return int(p)
}

// Level represents a derived level bucket. Levels start at 1.
type Level int

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// LevelForPoints derives the level from points: floor(points/size)+1.
// Size defaults to PointsPerLevel when non-positive.
func LevelForPoints(p Points, size int) Level {
	if size <= 0 {
		size = PointsPerLevel
	}
	if p < 0 {
		return 1
	}
	return Level(int(p)/size + 1)
}

// Level derives the level with the default bucket size.
func (p Points) Level() Level {
	return LevelForPoints(p, PointsPerLevel)
}

// ═══════════════════════════════════════════════════════════════════════════
// Badge Tier Value Object
// ═══════════════════════════════════════════════════════════════════════════

// BadgeTier is the fixed tier of a badge.
type BadgeTier string

const (
	TierBronze BadgeTier = "bronze"
	TierSilver BadgeTier = "silver"
	TierGold   BadgeTier = "gold"
)

// IsValid checks that the tier is one of the known values.
func (t BadgeTier) IsValid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (t BadgeTier) String() string {
	return string(t)
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a time period (used for challenge windows).
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && !t.From.After(t.To)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return (tm.Equal(t.From) || tm.After(t.From)) && (tm.Equal(t.To) || tm.Before(t.To))
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}
