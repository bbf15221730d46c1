package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ecoquest-hub/ecoquest-hub/internal/application/command"
	"github.com/ecoquest-hub/ecoquest-hub/internal/application/query"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/profile"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
	"github.com/ecoquest-hub/ecoquest-hub/pkg/timeutil"
)

// notImplemented is the answer for endpoints whose handler was not wired.
func notImplemented(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "endpoint is not available in this deployment")
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dest); err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return false
	}
	return true
}

func mustIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		writeJSONError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required")
	}
	return identity, ok
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS AND PREFERENCES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.Progress == nil {
		notImplemented(w, r)
		return
	}
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Progress.Handle(r.Context(), query.GetProgressQuery{
		UserID:     identity.ID,
		BadgeLimit: getQueryParamInt(r, "badge_limit", 5),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	if s.deps.Preferences == nil {
		notImplemented(w, r)
		return
	}
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	prefs, err := s.deps.Preferences.Find(r.Context(), identity.ID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// First visit: the client gets defaults without a write.
			prefs = profile.DefaultPreferences(identity.ID)
		} else {
			writeDomainError(w, r, err)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, prefs)
}

func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdatePrefs == nil {
		notImplemented(w, r)
		return
	}
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	var prefs profile.Preferences
	if !decodeBody(w, r, &prefs) {
		return
	}
	prefs.UserID = identity.ID

	result, err := s.deps.UpdatePrefs.Handle(r.Context(), command.UpdatePreferencesCommand{
		UserID:        identity.ID,
		Preferences:   prefs,
		CorrelationID: requestIDFrom(r.Context()),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result.Preferences)
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	if s.deps.UpdateAvatar == nil {
		notImplemented(w, r)
		return
	}
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		writeJSONError(w, r, http.StatusRequestEntityTooLarge, "image_too_large", "upload exceeds the size limit")
		return
	}

	file, header, err := r.FormFile("avatar")
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_body", "multipart field 'avatar' is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_body", "failed to read upload")
		return
	}

	result, err := s.deps.UpdateAvatar.Handle(r.Context(), command.UpdateAvatarCommand{
		UserID:        identity.ID,
		Filename:      header.Filename,
		ContentType:   header.Header.Get("Content-Type"),
		Data:          data,
		CorrelationID: requestIDFrom(r.Context()),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"avatar_url": result.AvatarURL})
}

func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	if s.deps.RecordActivity == nil {
		notImplemented(w, r)
		return
	}
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	result, err := s.deps.RecordActivity.Handle(r.Context(), command.RecordActivityCommand{
		UserID:        identity.ID,
		ActivityAt:    timeutil.Now(),
		CorrelationID: requestIDFrom(r.Context()),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"streak":         result.NewStreak,
		"streak_updated": result.StreakUpdated,
		"streak_broken":  result.StreakBroken,
		"days_missed":    result.DaysMissed,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.deps.Leaderboard == nil {
		notImplemented(w, r)
		return
	}
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	page := getQueryParamInt(r, "page", 1)
	pageSize := getQueryParamInt(r, "page_size", 20)

	result, err := s.deps.Leaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		Page:             page,
		PageSize:         pageSize,
		ViewerID:         identity.ID,
		IncludeNeighbors: getQueryParamBool(r, "neighbors", false),
		NeighborRadius:   getQueryParamInt(r, "neighbor_radius", 2),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	meta := &ResponseMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalUsers,
	}
	if pageSize > 0 {
		meta.TotalPages = (result.TotalUsers + pageSize - 1) / pageSize
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, meta)
}

// ══════════════════════════════════════════════════════════════════════════════
// STORY MODE
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleStory(w http.ResponseWriter, r *http.Request) {
	if s.deps.Story == nil {
		notImplemented(w, r)
		return
	}
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Story.Handle(r.Context(), query.GetStoryQuery{UserID: identity.ID})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleCompleteEpisode(w http.ResponseWriter, r *http.Request) {
	if s.deps.CompleteEpisode == nil {
		notImplemented(w, r)
		return
	}
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	result, err := s.deps.CompleteEpisode.Handle(r.Context(), command.CompleteEpisodeCommand{
		UserID:        identity.ID,
		EpisodeID:     shared.ContentID(chi.URLParam(r, "id")),
		CorrelationID: requestIDFrom(r.Context()),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if !result.AlreadyCompleted {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, map[string]any{
		"episode_id":        result.EpisodeID,
		"points_earned":     result.PointsEarned,
		"total_points":      result.NewPoints,
		"level":             result.NewLevel,
		"leveled_up":        result.LeveledUp,
		"already_completed": result.AlreadyCompleted,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// WEEKLY CHALLENGES
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleChallenges(w http.ResponseWriter, r *http.Request) {
	if s.deps.Challenges == nil {
		notImplemented(w, r)
		return
	}
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	result, err := s.deps.Challenges.Handle(r.Context(), query.GetChallengesQuery{
		UserID: identity.ID,
		At:     timeutil.Now(),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

func (s *Server) handleJoinChallenge(w http.ResponseWriter, r *http.Request) {
	if s.deps.JoinChallenge == nil {
		notImplemented(w, r)
		return
	}
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	result, err := s.deps.JoinChallenge.Handle(r.Context(), command.JoinChallengeCommand{
		UserID:        identity.ID,
		ChallengeID:   shared.ContentID(chi.URLParam(r, "id")),
		CorrelationID: requestIDFrom(r.Context()),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyJoined {
		status = http.StatusOK
	}
	writeJSON(w, r, status, map[string]any{
		"challenge_id":   result.ChallengeID,
		"already_joined": result.AlreadyJoined,
		"max_progress":   result.MaxProgress,
		"ends_at":        result.EndsAt,
	})
}

func (s *Server) handleAdvanceChallenge(w http.ResponseWriter, r *http.Request) {
	if s.deps.AdvanceChallenge == nil {
		notImplemented(w, r)
		return
	}
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		Steps int `json:"steps"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	result, err := s.deps.AdvanceChallenge.Handle(r.Context(), command.AdvanceChallengeCommand{
		UserID:        identity.ID,
		ChallengeID:   shared.ContentID(chi.URLParam(r, "id")),
		Steps:         body.Steps,
		CorrelationID: requestIDFrom(r.Context()),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"challenge_id":  result.ChallengeID,
		"progress":      result.Progress,
		"max_progress":  result.MaxProgress,
		"completed":     result.Completed,
		"points_earned": result.PointsEarned,
		"total_points":  result.NewPoints,
		"level":         result.NewLevel,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// TASKS
// ══════════════════════════════════════════════════════════════════════════════

type taskDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Points      int    `json:"points"`
	Difficulty  string `json:"difficulty"`
	Category    string `json:"category,omitempty"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		notImplemented(w, r)
		return
	}

	tasks, err := s.deps.Tasks.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	dtos := make([]taskDTO, 0, len(tasks))
	for _, t := range tasks {
		dtos = append(dtos, taskDTO{
			ID:          t.ID.String(),
			Title:       t.Title,
			Description: t.Description,
			Points:      t.Points,
			Difficulty:  string(t.Difficulty),
			Category:    t.Category,
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"tasks": dtos})
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	if s.deps.CompleteTask == nil {
		notImplemented(w, r)
		return
	}
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	var body struct {
		SubmissionID string     `json:"submission_id"`
		CompletedAt  *time.Time `json:"completed_at,omitempty"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	completedAt := timeutil.Now()
	synced := true
	if body.CompletedAt != nil {
		// Offline clients report the original completion time; the
		// submission is queued for durable-store sync.
		completedAt = *body.CompletedAt
		synced = false
	}

	result, err := s.deps.CompleteTask.Handle(r.Context(), command.CompleteTaskCommand{
		UserID:        identity.ID,
		TaskID:        shared.ContentID(chi.URLParam(r, "id")),
		SubmissionID:  body.SubmissionID,
		CompletedAt:   completedAt,
		Synced:        synced,
		CorrelationID: requestIDFrom(r.Context()),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"task_id":           result.TaskID,
		"submission_id":     result.SubmissionID,
		"points_earned":     result.PointsEarned,
		"total_points":      result.NewPoints,
		"level":             result.NewLevel,
		"leveled_up":        result.LeveledUp,
		"streak":            result.NewStreak,
		"total_completions": result.TotalCompletions,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ASSISTANT AND AUTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	if s.deps.Assistant == nil {
		notImplemented(w, r)
		return
	}

	var body struct {
		Question string `json:"question"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Question == "" {
		writeJSONError(w, r, http.StatusBadRequest, "validation_failed", "question is required")
		return
	}

	writeJSON(w, r, http.StatusOK, map[string]any{
		"reply":   s.deps.Assistant.Reply(body.Question),
		"matched": s.deps.Assistant.Matched(body.Question),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if s.deps.Identity == nil {
		notImplemented(w, r)
		return
	}

	if err := s.deps.Identity.SignOut(r.Context(), accessTokenFrom(r.Context())); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "signed_out"})
}

// ══════════════════════════════════════════════════════════════════════════════
// EDITORIAL (educators only)
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleUpsertEpisode(w http.ResponseWriter, r *http.Request) {
	if s.deps.Episodes == nil {
		notImplemented(w, r)
		return
	}

	var body struct {
		Title         string `json:"title"`
		Description   string `json:"description"`
		Chapter       int    `json:"chapter"`
		Order         int    `json:"order"`
		PointsReward  int    `json:"points_reward"`
		RequiredTasks int    `json:"required_tasks"`
		Published     bool   `json:"published"`
	}
	if !decodeBody(w, r, &body) {
		return
	}

	episode := &content.Episode{
		ID:            shared.ContentID(chi.URLParam(r, "id")),
		Title:         body.Title,
		Description:   body.Description,
		Chapter:       body.Chapter,
		Order:         body.Order,
		PointsReward:  body.PointsReward,
		RequiredTasks: body.RequiredTasks,
		Published:     body.Published,
		CreatedAt:     timeutil.Now(),
	}
	if err := episode.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}

	if err := s.deps.Episodes.Save(r.Context(), episode); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"episode_id": episode.ID})
}

type snapshotMetaDTO struct {
	ID            string    `json:"id"`
	SnapshotAt    time.Time `json:"snapshot_at"`
	TotalUsers    int       `json:"total_users"`
	TotalPoints   int       `json:"total_points"`
	AveragePoints int       `json:"average_points"`
}

// handleListSnapshots serves the leaderboard snapshot history for educators,
// defaulting to the last seven days.
func (s *Server) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	if s.deps.Board == nil {
		notImplemented(w, r)
		return
	}

	to := timeutil.Now()
	from := to.AddDate(0, 0, -7)
	if v := getQueryParam(r, "from", ""); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "validation_failed", "'from' must be RFC3339")
			return
		}
		from = parsed
	}
	if v := getQueryParam(r, "to", ""); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeJSONError(w, r, http.StatusBadRequest, "validation_failed", "'to' must be RFC3339")
			return
		}
		to = parsed
	}

	metas, err := s.deps.Board.ListSnapshots(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	dtos := make([]snapshotMetaDTO, 0, len(metas))
	for _, m := range metas {
		dtos = append(dtos, snapshotMetaDTO{
			ID:            m.ID,
			SnapshotAt:    m.SnapshotAt,
			TotalUsers:    m.TotalUsers,
			TotalPoints:   m.TotalPoints,
			AveragePoints: int(m.AveragePoints),
		})
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"snapshots": dtos})
}

func (s *Server) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.deps.Board == nil {
		notImplemented(w, r)
		return
	}

	snap, err := s.deps.Board.GetSnapshotByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	limit := getQueryParamInt(r, "limit", 100)
	entries := make([]map[string]any, 0, limit)
	for _, e := range snap.Top(limit) {
		entries = append(entries, map[string]any{
			"rank":         int(e.Rank),
			"user_id":      e.UserID.String(),
			"display_name": e.DisplayName,
			"points":       e.Points.Int(),
			"badge_count":  e.BadgeCount,
			"streak":       e.Streak,
		})
	}

	meta := snap.ToMeta()
	writeJSON(w, r, http.StatusOK, map[string]any{
		"id":          meta.ID,
		"snapshot_at": meta.SnapshotAt,
		"total_users": meta.TotalUsers,
		"entries":     entries,
	})
}
