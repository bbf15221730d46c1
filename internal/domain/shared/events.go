// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Ledger events
	EventPointsAdded   EventType = "ledger.points_added"
	EventLevelUp       EventType = "ledger.level_up"
	EventBadgeUnlocked EventType = "ledger.badge_unlocked"
	EventStreakUpdated EventType = "ledger.streak_updated"
	EventStreakBroken  EventType = "ledger.streak_broken"

	// Content events
	EventTaskCompleted      EventType = "content.task_completed"
	EventEpisodeCompleted   EventType = "content.episode_completed"
	EventChallengeJoined    EventType = "content.challenge_joined"
	EventChallengeCompleted EventType = "content.challenge_completed"

	// Leaderboard events
	EventRankChanged        EventType = "leaderboard.rank_changed"
	EventLeaderboardRebuilt EventType = "leaderboard.rebuilt"

	// System events
	EventSnapshotPersisted EventType = "system.snapshot_persisted"
	EventPersistenceFailed EventType = "system.persistence_failed"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Ledger Events
// ═══════════════════════════════════════════════════════════════════════════

// PointsAddedEvent is emitted when points are credited to a user's ledger.
type PointsAddedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
	Source   string `json:"source"` // e.g., "task", "episode", "challenge"
	SourceID string `json:"source_id,omitempty"`
}

// Payload implements Event interface.
func (e PointsAddedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
		"source":    e.Source,
		"source_id": e.SourceID,
	}
}

// NewPointsAddedEvent creates a new PointsAddedEvent.
func NewPointsAddedEvent(userID string, amount, newTotal int, source, sourceID string) PointsAddedEvent {
	return PointsAddedEvent{
		BaseEvent: NewBaseEvent(EventPointsAdded, userID),
		UserID:    userID,
		Amount:    amount,
		NewTotal:  newTotal,
		Source:    source,
		SourceID:  sourceID,
	}
}

// LevelUpEvent is emitted when a points mutation crosses a level boundary.
type LevelUpEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	OldLevel int    `json:"old_level"`
	NewLevel int    `json:"new_level"`
	Points   int    `json:"points"`
}

// Payload implements Event interface.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"old_level": e.OldLevel,
		"new_level": e.NewLevel,
		"points":    e.Points,
	}
}

// NewLevelUpEvent creates a new LevelUpEvent.
func NewLevelUpEvent(userID string, oldLevel, newLevel, points int) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent: NewBaseEvent(EventLevelUp, userID),
		UserID:    userID,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		Points:    points,
	}
}

// BadgeUnlockedEvent is emitted when a badge is appended to a ledger.
type BadgeUnlockedEvent struct {
	BaseEvent
	UserID  string `json:"user_id"`
	BadgeID string `json:"badge_id"`
	Name    string `json:"name"`
	Tier    string `json:"tier"`
}

// Payload implements Event interface.
func (e BadgeUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":  e.UserID,
		"badge_id": e.BadgeID,
		"name":     e.Name,
		"tier":     e.Tier,
	}
}

// NewBadgeUnlockedEvent creates a new BadgeUnlockedEvent.
func NewBadgeUnlockedEvent(userID, badgeID, name, tier string) BadgeUnlockedEvent {
	return BadgeUnlockedEvent{
		BaseEvent: NewBaseEvent(EventBadgeUnlocked, userID),
		UserID:    userID,
		BadgeID:   badgeID,
		Name:      name,
		Tier:      tier,
	}
}

// StreakUpdatedEvent is emitted when a user's daily streak changes.
type StreakUpdatedEvent struct {
	BaseEvent
	UserID    string `json:"user_id"`
	OldStreak int    `json:"old_streak"`
	NewStreak int    `json:"new_streak"`
}

// Payload implements Event interface.
func (e StreakUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":    e.UserID,
		"old_streak": e.OldStreak,
		"new_streak": e.NewStreak,
	}
}

// NewStreakUpdatedEvent creates a new StreakUpdatedEvent.
func NewStreakUpdatedEvent(userID string, oldStreak, newStreak int) StreakUpdatedEvent {
	return StreakUpdatedEvent{
		BaseEvent: NewBaseEvent(EventStreakUpdated, userID),
		UserID:    userID,
		OldStreak: oldStreak,
		NewStreak: newStreak,
	}
}

// StreakBrokenEvent is emitted when the streak audit finds a missed day and
// applies the configured reset policy.
type StreakBrokenEvent struct {
	BaseEvent
	UserID         string `json:"user_id"`
	PreviousStreak int    `json:"previous_streak"`
	DaysMissed     int    `json:"days_missed"`
	NewStreak      int    `json:"new_streak"`
}

// Payload implements Event interface.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":         e.UserID,
		"previous_streak": e.PreviousStreak,
		"days_missed":     e.DaysMissed,
		"new_streak":      e.NewStreak,
	}
}

// NewStreakBrokenEvent creates a new StreakBrokenEvent.
func NewStreakBrokenEvent(userID string, previousStreak, daysMissed, newStreak int) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      NewBaseEvent(EventStreakBroken, userID),
		UserID:         userID,
		PreviousStreak: previousStreak,
		DaysMissed:     daysMissed,
		NewStreak:      newStreak,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Content Events
// ═══════════════════════════════════════════════════════════════════════════

// TaskCompletedEvent is emitted when a user completes a task.
// The completion count is the signal that drives the unlock gate.
type TaskCompletedEvent struct {
	BaseEvent
	UserID           string `json:"user_id"`
	TaskID           string `json:"task_id"`
	PointsEarned     int    `json:"points_earned"`
	TotalCompletions int    `json:"total_completions"`
}

// Payload implements Event interface.
func (e TaskCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":           e.UserID,
		"task_id":           e.TaskID,
		"points_earned":     e.PointsEarned,
		"total_completions": e.TotalCompletions,
	}
}

// NewTaskCompletedEvent creates a new TaskCompletedEvent.
func NewTaskCompletedEvent(userID, taskID string, pointsEarned, totalCompletions int) TaskCompletedEvent {
	return TaskCompletedEvent{
		BaseEvent:        NewBaseEvent(EventTaskCompleted, userID),
		UserID:           userID,
		TaskID:           taskID,
		PointsEarned:     pointsEarned,
		TotalCompletions: totalCompletions,
	}
}

// EpisodeCompletedEvent is emitted when a user finishes a story episode.
type EpisodeCompletedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	EpisodeID    string `json:"episode_id"`
	PointsEarned int    `json:"points_earned"`
}

// Payload implements Event interface.
func (e EpisodeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"episode_id":    e.EpisodeID,
		"points_earned": e.PointsEarned,
	}
}

// NewEpisodeCompletedEvent creates a new EpisodeCompletedEvent.
func NewEpisodeCompletedEvent(userID, episodeID string, pointsEarned int) EpisodeCompletedEvent {
	return EpisodeCompletedEvent{
		BaseEvent:    NewBaseEvent(EventEpisodeCompleted, userID),
		UserID:       userID,
		EpisodeID:    episodeID,
		PointsEarned: pointsEarned,
	}
}

// ChallengeCompletedEvent is emitted when a weekly challenge is completed.
type ChallengeCompletedEvent struct {
	BaseEvent
	UserID       string `json:"user_id"`
	ChallengeID  string `json:"challenge_id"`
	RewardPoints int    `json:"reward_points"`
	BonusPoints  int    `json:"bonus_points"`
}

// Payload implements Event interface.
func (e ChallengeCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":       e.UserID,
		"challenge_id":  e.ChallengeID,
		"reward_points": e.RewardPoints,
		"bonus_points":  e.BonusPoints,
	}
}

// NewChallengeCompletedEvent creates a new ChallengeCompletedEvent.
func NewChallengeCompletedEvent(userID, challengeID string, reward, bonus int) ChallengeCompletedEvent {
	return ChallengeCompletedEvent{
		BaseEvent:    NewBaseEvent(EventChallengeCompleted, userID),
		UserID:       userID,
		ChallengeID:  challengeID,
		RewardPoints: reward,
		BonusPoints:  bonus,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Leaderboard Events
// ═══════════════════════════════════════════════════════════════════════════

// RankChangedEvent is emitted when a user's rank changes after a rebuild.
type RankChangedEvent struct {
	BaseEvent
	UserID     string `json:"user_id"`
	OldRank    int    `json:"old_rank"`
	NewRank    int    `json:"new_rank"`
	RankChange int    `json:"rank_change"` // Positive = moved up, Negative = moved down
}

// Payload implements Event interface.
func (e RankChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"old_rank":    e.OldRank,
		"new_rank":    e.NewRank,
		"rank_change": e.RankChange,
	}
}

// NewRankChangedEvent creates a new RankChangedEvent.
func NewRankChangedEvent(userID string, oldRank, newRank int) RankChangedEvent {
	return RankChangedEvent{
		BaseEvent:  NewBaseEvent(EventRankChanged, userID),
		UserID:     userID,
		OldRank:    oldRank,
		NewRank:    newRank,
		RankChange: oldRank - newRank, // Positive means moved up
	}
}

// MovedUp returns true if the user moved up in rank.
func (e RankChangedEvent) MovedUp() bool {
	return e.RankChange > 0
}

// LeaderboardRebuiltEvent is emitted after a snapshot rebuild completes.
type LeaderboardRebuiltEvent struct {
	BaseEvent
	SnapshotID string `json:"snapshot_id"`
	TotalUsers int    `json:"total_users"`
	Changed    int    `json:"changed"`
}

// Payload implements Event interface.
func (e LeaderboardRebuiltEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"snapshot_id": e.SnapshotID,
		"total_users": e.TotalUsers,
		"changed":     e.Changed,
	}
}

// NewLeaderboardRebuiltEvent creates a new LeaderboardRebuiltEvent.
func NewLeaderboardRebuiltEvent(snapshotID string, totalUsers, changed int) LeaderboardRebuiltEvent {
	return LeaderboardRebuiltEvent{
		BaseEvent:  NewBaseEvent(EventLeaderboardRebuilt, snapshotID),
		SnapshotID: snapshotID,
		TotalUsers: totalUsers,
		Changed:    changed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// PersistenceFailedEvent is emitted when a snapshot write-through fails after
// a successful in-memory mutation. The UI layer uses it for a retry prompt.
type PersistenceFailedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Op     string `json:"op"`
	Reason string `json:"reason"`
}

// Payload implements Event interface.
func (e PersistenceFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
		"op":      e.Op,
		"reason":  e.Reason,
	}
}

// NewPersistenceFailedEvent creates a new PersistenceFailedEvent.
func NewPersistenceFailedEvent(userID, op, reason string) PersistenceFailedEvent {
	return PersistenceFailedEvent{
		BaseEvent: NewBaseEvent(EventPersistenceFailed, userID),
		UserID:    userID,
		Op:        op,
		Reason:    reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
