package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles for gradual rollout and experiments.
// Rollout buckets are assigned by consistent hashing of the user ID, so a
// user stays in the same bucket across sessions.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100).
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	UserID string

	// Educators see every feature.
	IsEducator bool
}

// Predefined feature flag names.
const (
	// === Leaderboard ===
	FeatureLeaderboardRankChange = "leaderboard.rank_change" // show rank movement (+2, -1)
	FeatureLeaderboardNeighbors  = "leaderboard.neighbors"   // viewer's neighborhood slice
	FeatureLeaderboardLiveRank   = "leaderboard.live_rank"   // live score set between rebuilds

	// === Gamification ===
	FeatureGamificationStreaks = "gamification.streaks"
	FeatureGamificationBadges  = "gamification.badges"

	// === Content ===
	FeatureStoryMode        = "content.story_mode"
	FeatureWeeklyChallenges = "content.weekly_challenges"
	FeatureOfflineSync      = "content.offline_sync" // queued task submissions

	// === Assistant ===
	FeatureAssistant = "assistant.enabled"
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.initializeDefaults()
	ff.loadFromEnvironment()

	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	enabled := func(name, description string) *Feature {
		return &Feature{Name: name, Description: description, Enabled: true, RolloutPercent: 100}
	}

	ff.features[FeatureLeaderboardRankChange] = enabled(FeatureLeaderboardRankChange, "Show rank movement on the leaderboard")
	ff.features[FeatureLeaderboardNeighbors] = enabled(FeatureLeaderboardNeighbors, "Show the viewer's neighborhood slice")
	ff.features[FeatureGamificationStreaks] = enabled(FeatureGamificationStreaks, "Daily activity streaks")
	ff.features[FeatureGamificationBadges] = enabled(FeatureGamificationBadges, "Badge unlocks")
	ff.features[FeatureStoryMode] = enabled(FeatureStoryMode, "Story mode episodes")
	ff.features[FeatureWeeklyChallenges] = enabled(FeatureWeeklyChallenges, "Weekly challenges")
	ff.features[FeatureAssistant] = enabled(FeatureAssistant, "Eco assistant Q&A")

	// Off by default until the sync worker is proven out.
	ff.features[FeatureOfflineSync] = &Feature{
		Name:        FeatureOfflineSync,
		Description: "Queued offline task submissions",
	}

	// Live rank is redis-dependent; rolled out gradually.
	ff.features[FeatureLeaderboardLiveRank] = &Feature{
		Name:           FeatureLeaderboardLiveRank,
		Description:    "Live score updates between snapshot rebuilds",
		Enabled:        true,
		RolloutPercent: 50,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_CONTENT_OFFLINE_SYNC=true
// Example: FEATURE_LEADERBOARD_LIVE_RANK=25 (25% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		val := os.Getenv(envKey)
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts a feature name to an environment variable key.
// "leaderboard.live_rank" -> "FEATURE_LEADERBOARD_LIVE_RANK"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.UserID != "" {
		if overrides, ok := ff.userOverrides[ctx.UserID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	if ctx != nil && ctx.IsEducator {
		return true
	}

	if !feature.Enabled {
		return false
	}

	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if feature.RolloutPercent < 100 && ctx != nil && ctx.UserID != "" {
		return inRollout(ctx.UserID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// inRollout determines if a user is in the rollout percentage.
func inRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	bucket := int(h.Sum32() % 100)
	return bucket < percent
}

// SetUserOverride sets a feature override for a specific user.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// ClearUserOverrides removes all overrides for a user.
func (ff *FeatureFlags) ClearUserOverrides(userID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.userOverrides, userID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
