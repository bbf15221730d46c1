package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/assistant"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/leaderboard"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/profile"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

const testToken = "test-access-token"

var testStudent = Identity{
	ID:    shared.UserID("11111111-1111-1111-1111-111111111111"),
	Email: "student@school.example",
	Role:  shared.RoleStudent,
}

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type stubVerifier struct {
	identity  Identity
	err       error
	signedOut []string
}

func (v *stubVerifier) Verify(ctx context.Context, accessToken string) (Identity, error) {
	if v.err != nil {
		return Identity{}, v.err
	}
	return v.identity, nil
}

func (v *stubVerifier) SignOut(ctx context.Context, accessToken string) error {
	v.signedOut = append(v.signedOut, accessToken)
	return nil
}

type stubPrefs struct {
	stored *profile.Preferences
	saved  []profile.Preferences
}

func (p *stubPrefs) Find(ctx context.Context, userID shared.UserID) (profile.Preferences, error) {
	if p.stored == nil {
		return profile.Preferences{}, shared.ErrPreferencesNotFound
	}
	return *p.stored, nil
}

func (p *stubPrefs) Save(ctx context.Context, prefs profile.Preferences) error {
	p.saved = append(p.saved, prefs)
	return nil
}

type stubTasks struct {
	tasks []content.Task
}

func (s *stubTasks) FindByID(ctx context.Context, id shared.ContentID) (*content.Task, error) {
	return nil, shared.ErrNotFound
}

func (s *stubTasks) List(ctx context.Context) ([]content.Task, error) { return s.tasks, nil }

func (s *stubTasks) RecordSubmission(ctx context.Context, sub *content.Submission) error {
	return nil
}

func (s *stubTasks) CountCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	return 0, nil
}

func (s *stubTasks) ListUnsynced(ctx context.Context, limit int) ([]content.Submission, error) {
	return nil, nil
}

func (s *stubTasks) MarkSynced(ctx context.Context, ids []string) error { return nil }

type stubEpisodes struct {
	saved []*content.Episode
}

func (s *stubEpisodes) FindByID(ctx context.Context, id shared.ContentID) (*content.Episode, error) {
	return nil, shared.ErrEpisodeNotFound
}

func (s *stubEpisodes) ListPublished(ctx context.Context) ([]content.Episode, error) {
	return nil, nil
}

func (s *stubEpisodes) Save(ctx context.Context, episode *content.Episode) error {
	s.saved = append(s.saved, episode)
	return nil
}

func (s *stubEpisodes) MarkCompleted(ctx context.Context, userID shared.UserID, id shared.ContentID) error {
	return nil
}

func (s *stubEpisodes) ListCompleted(ctx context.Context, userID shared.UserID) ([]shared.ContentID, error) {
	return nil, nil
}

type stubBoard struct {
	metas []leaderboard.SnapshotMeta
}

func (b *stubBoard) SaveSnapshot(ctx context.Context, snap *leaderboard.Snapshot) error { return nil }

func (b *stubBoard) GetLatestSnapshot(ctx context.Context) (*leaderboard.Snapshot, error) {
	return nil, shared.ErrLeaderboardSnapshot
}

func (b *stubBoard) GetSnapshotByID(ctx context.Context, id string) (*leaderboard.Snapshot, error) {
	return nil, shared.ErrLeaderboardSnapshot
}

func (b *stubBoard) ListSnapshots(ctx context.Context, from, to time.Time) ([]leaderboard.SnapshotMeta, error) {
	return b.metas, nil
}

func (b *stubBoard) DeleteOldSnapshots(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, nil
}

func (b *stubBoard) GetUserRank(ctx context.Context, userID shared.UserID) (*leaderboard.Entry, error) {
	return nil, shared.ErrNotOnLeaderboard
}

func (b *stubBoard) GetTop(ctx context.Context, limit int) ([]*leaderboard.Entry, error) {
	return nil, nil
}

func (b *stubBoard) GetPage(ctx context.Context, p shared.Pagination) ([]*leaderboard.Entry, error) {
	return nil, nil
}

func (b *stubBoard) GetNeighbors(ctx context.Context, userID shared.UserID, rangeSize int) ([]*leaderboard.Entry, error) {
	return nil, nil
}

func (b *stubBoard) GetTotalCount(ctx context.Context) (int, error) { return 0, nil }

type stubHealth struct {
	err error
}

func (h *stubHealth) Ping(ctx context.Context) error { return h.err }

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func newTestServer(t *testing.T, deps Dependencies) *Server {
	t.Helper()
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.EnableCORS = false
	return NewServer(cfg, deps, nil)
}

func doRequest(s *Server, method, target string, body []byte, authenticated bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}

	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) JSONResponse {
	t.Helper()
	var resp JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func dataMap(t *testing.T, resp JSONResponse) map[string]any {
	t.Helper()
	m, ok := resp.Data.(map[string]any)
	require.True(t, ok, "expected object payload, got %T", resp.Data)
	return m
}

// ──────────────────────────────────────────────────────────────────────────────
// Health and plumbing
// ──────────────────────────────────────────────────────────────────────────────

func TestHealth_NoDependencies(t *testing.T) {
	s := newTestServer(t, Dependencies{})

	rec := doRequest(s, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	resp := decodeEnvelope(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "healthy", dataMap(t, resp)["status"])
}

func TestHealth_DependencyDown(t *testing.T) {
	s := newTestServer(t, Dependencies{Health: &stubHealth{err: errors.New("connection refused")}})

	rec := doRequest(s, http.MethodGet, "/health", nil, false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unhealthy", resp.Error.Code)
}

func TestRequestID_EchoedAndGenerated(t *testing.T) {
	s := newTestServer(t, Dependencies{})

	req := httptest.NewRequest(http.MethodGet, "/live", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "req-42", decodeEnvelope(t, rec).RequestID)

	rec = doRequest(s, http.MethodGet, "/live", nil, false)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

// ──────────────────────────────────────────────────────────────────────────────
// Authentication
// ──────────────────────────────────────────────────────────────────────────────

func TestAuth_MissingToken(t *testing.T) {
	s := newTestServer(t, Dependencies{Identity: &stubVerifier{identity: testStudent}})

	rec := doRequest(s, http.MethodGet, "/api/v1/tasks", nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unauthorized", resp.Error.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	s := newTestServer(t, Dependencies{Identity: &stubVerifier{err: shared.ErrInvalidAccessToken}})

	rec := doRequest(s, http.MethodGet, "/api/v1/tasks", nil, true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "invalid_token", resp.Error.Code)
}

func TestAuth_NotConfigured(t *testing.T) {
	s := newTestServer(t, Dependencies{})

	rec := doRequest(s, http.MethodGet, "/api/v1/tasks", nil, true)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestLogout_RevokesToken(t *testing.T) {
	verifier := &stubVerifier{identity: testStudent}
	s := newTestServer(t, Dependencies{Identity: verifier})

	rec := doRequest(s, http.MethodPost, "/api/v1/auth/logout", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{testToken}, verifier.signedOut)
}

// ──────────────────────────────────────────────────────────────────────────────
// Editorial guard
// ──────────────────────────────────────────────────────────────────────────────

func TestAdmin_StudentForbidden(t *testing.T) {
	s := newTestServer(t, Dependencies{
		Identity: &stubVerifier{identity: testStudent},
		Episodes: &stubEpisodes{},
	})

	body := []byte(`{"title":"Composting 101","chapter":1,"order":1,"points_reward":50}`)
	rec := doRequest(s, http.MethodPut, "/api/v1/admin/episodes/ep-1", body, true)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decodeEnvelope(t, rec).Error.Code)
}

func TestAdmin_EducatorUpsertsEpisode(t *testing.T) {
	educator := testStudent
	educator.Role = shared.RoleEducator
	episodes := &stubEpisodes{}
	s := newTestServer(t, Dependencies{
		Identity: &stubVerifier{identity: educator},
		Episodes: episodes,
	})

	body := []byte(`{"title":"Composting 101","chapter":1,"order":1,"points_reward":50,"required_tasks":3,"published":true}`)
	rec := doRequest(s, http.MethodPut, "/api/v1/admin/episodes/ep-1", body, true)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, episodes.saved, 1)
	assert.Equal(t, shared.ContentID("ep-1"), episodes.saved[0].ID)
	assert.Equal(t, "Composting 101", episodes.saved[0].Title)
	assert.True(t, episodes.saved[0].Published)
}

func TestAdmin_RejectsInvalidEpisode(t *testing.T) {
	educator := testStudent
	educator.Role = shared.RoleEducator
	s := newTestServer(t, Dependencies{
		Identity: &stubVerifier{identity: educator},
		Episodes: &stubEpisodes{},
	})

	// Missing title fails domain validation.
	body := []byte(`{"chapter":1,"points_reward":50}`)
	rec := doRequest(s, http.MethodPut, "/api/v1/admin/episodes/ep-1", body, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decodeEnvelope(t, rec).Error.Code)
}

func TestAdmin_ListsSnapshotHistory(t *testing.T) {
	educator := testStudent
	educator.Role = shared.RoleEducator
	board := &stubBoard{metas: []leaderboard.SnapshotMeta{
		{ID: "snap-1", SnapshotAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), TotalUsers: 42},
	}}
	s := newTestServer(t, Dependencies{
		Identity: &stubVerifier{identity: educator},
		Board:    board,
	})

	rec := doRequest(s, http.MethodGet, "/api/v1/admin/leaderboard/snapshots", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, decodeEnvelope(t, rec))
	snaps, ok := data["snapshots"].([]any)
	require.True(t, ok)
	require.Len(t, snaps, 1)

	first, ok := snaps[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "snap-1", first["id"])
	assert.Equal(t, float64(42), first["total_users"])
}

func TestAdmin_SnapshotNotFound(t *testing.T) {
	educator := testStudent
	educator.Role = shared.RoleEducator
	s := newTestServer(t, Dependencies{
		Identity: &stubVerifier{identity: educator},
		Board:    &stubBoard{},
	})

	rec := doRequest(s, http.MethodGet, "/api/v1/admin/leaderboard/snapshots/missing", nil, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Preferences
// ──────────────────────────────────────────────────────────────────────────────

func TestGetPreferences_DefaultsOnFirstVisit(t *testing.T) {
	prefs := &stubPrefs{}
	s := newTestServer(t, Dependencies{
		Identity:    &stubVerifier{identity: testStudent},
		Preferences: prefs,
	})

	rec := doRequest(s, http.MethodGet, "/api/v1/me/preferences", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, decodeEnvelope(t, rec))
	assert.Equal(t, testStudent.ID.String(), data["user_id"])

	// Defaults are served, not persisted.
	assert.Empty(t, prefs.saved)
}

func TestGetPreferences_ReturnsStored(t *testing.T) {
	stored := profile.DefaultPreferences(testStudent.ID)
	stored.Display.Language = "kk"
	s := newTestServer(t, Dependencies{
		Identity:    &stubVerifier{identity: testStudent},
		Preferences: &stubPrefs{stored: &stored},
	})

	rec := doRequest(s, http.MethodGet, "/api/v1/me/preferences", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, decodeEnvelope(t, rec))
	display, ok := data["display"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "kk", display["language"])
}

// ──────────────────────────────────────────────────────────────────────────────
// Tasks
// ──────────────────────────────────────────────────────────────────────────────

func TestListTasks(t *testing.T) {
	s := newTestServer(t, Dependencies{
		Identity: &stubVerifier{identity: testStudent},
		Tasks: &stubTasks{tasks: []content.Task{
			{ID: "task-1", Title: "Sort recycling", Points: 10, Difficulty: content.DifficultyEasy},
			{ID: "task-2", Title: "Plant a tree", Points: 30, Difficulty: content.DifficultyHard, Category: "outdoor"},
		}},
	})

	rec := doRequest(s, http.MethodGet, "/api/v1/tasks", nil, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, decodeEnvelope(t, rec))
	tasks, ok := data["tasks"].([]any)
	require.True(t, ok)
	require.Len(t, tasks, 2)

	first, ok := tasks[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "task-1", first["id"])
	assert.Equal(t, "easy", first["difficulty"])
}

// ──────────────────────────────────────────────────────────────────────────────
// Assistant
// ──────────────────────────────────────────────────────────────────────────────

func TestAssistant_AnswersQuestion(t *testing.T) {
	s := newTestServer(t, Dependencies{
		Identity:  &stubVerifier{identity: testStudent},
		Assistant: assistant.DefaultMatcher(),
	})

	body := []byte(`{"question":"How do I recycle plastic?"}`)
	rec := doRequest(s, http.MethodPost, "/api/v1/assistant", body, true)
	assert.Equal(t, http.StatusOK, rec.Code)

	data := dataMap(t, decodeEnvelope(t, rec))
	reply, ok := data["reply"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, reply)
}

func TestAssistant_RequiresQuestion(t *testing.T) {
	s := newTestServer(t, Dependencies{
		Identity:  &stubVerifier{identity: testStudent},
		Assistant: assistant.DefaultMatcher(),
	})

	rec := doRequest(s, http.MethodPost, "/api/v1/assistant", []byte(`{}`), true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_failed", decodeEnvelope(t, rec).Error.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Partial deployments
// ──────────────────────────────────────────────────────────────────────────────

func TestUnwiredHandlerAnswers501(t *testing.T) {
	s := newTestServer(t, Dependencies{Identity: &stubVerifier{identity: testStudent}})

	rec := doRequest(s, http.MethodGet, "/api/v1/me/progress", nil, true)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	assert.Equal(t, "not_implemented", decodeEnvelope(t, rec).Error.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// Rate limiting
// ──────────────────────────────────────────────────────────────────────────────

func TestRateLimiter_SlidingWindow(t *testing.T) {
	rl := newRateLimiter(2)
	defer rl.stop()

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))

	// A different client does not share the window.
	assert.True(t, rl.allow("10.0.0.2"))
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 1
	cfg.EnableCORS = false
	s := NewServer(cfg, Dependencies{}, nil)
	defer s.limiter.stop()

	rec := doRequest(s, http.MethodGet, "/live", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/live", nil, false)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate_limited", decodeEnvelope(t, rec).Error.Code)
}

// ──────────────────────────────────────────────────────────────────────────────
// CORS
// ──────────────────────────────────────────────────────────────────────────────

func TestCORS_PreflightAndOrigin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	cfg.AllowedOrigins = []string{"https://app.ecoquest.example"}
	s := NewServer(cfg, Dependencies{}, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tasks", nil)
	req.Header.Set("Origin", "https://app.ecoquest.example")
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.ecoquest.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/tasks", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
