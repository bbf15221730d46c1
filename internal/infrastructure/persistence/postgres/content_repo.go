package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EPISODE REPOSITORY (content.EpisodeRepository)
// ══════════════════════════════════════════════════════════════════════════════

// EpisodeRepository implements content.EpisodeRepository for PostgreSQL.
type EpisodeRepository struct {
	conn *Connection
}

// NewEpisodeRepository creates a new EpisodeRepository.
func NewEpisodeRepository(conn *Connection) *EpisodeRepository {
	return &EpisodeRepository{conn: conn}
}

const episodeColumns = `id, title, description, chapter, sort_order, points_reward, required_tasks, published, created_at`

func scanEpisode(row interface{ Scan(...interface{}) error }) (*content.Episode, error) {
	e := &content.Episode{}
	var id string
	if err := row.Scan(
		&id,
		&e.Title,
		&e.Description,
		&e.Chapter,
		&e.Order,
		&e.PointsReward,
		&e.RequiredTasks,
		&e.Published,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}
	e.ID = shared.ContentID(id)
	return e, nil
}

// FindByID returns an episode or shared.ErrEpisodeNotFound.
func (r *EpisodeRepository) FindByID(ctx context.Context, id shared.ContentID) (*content.Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE id = $1`

	episode, err := scanEpisode(r.conn.QueryRow(ctx, query, id.String()))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrEpisodeNotFound
		}
		return nil, fmt.Errorf("failed to find episode: %w", err)
	}
	return episode, nil
}

// ListPublished returns published episodes in catalog order.
func (r *EpisodeRepository) ListPublished(ctx context.Context) ([]content.Episode, error) {
	query := `SELECT ` + episodeColumns + ` FROM episodes WHERE published ORDER BY chapter, sort_order`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []content.Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan episode: %w", err)
		}
		episodes = append(episodes, *e)
	}
	return episodes, rows.Err()
}

// Save upserts an episode (editor operations).
func (r *EpisodeRepository) Save(ctx context.Context, episode *content.Episode) error {
	query := `
		INSERT INTO episodes (id, title, description, chapter, sort_order, points_reward, required_tasks, published, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			chapter = EXCLUDED.chapter,
			sort_order = EXCLUDED.sort_order,
			points_reward = EXCLUDED.points_reward,
			required_tasks = EXCLUDED.required_tasks,
			published = EXCLUDED.published
	`

	createdAt := episode.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.conn.Exec(ctx, query,
		episode.ID.String(),
		episode.Title,
		episode.Description,
		episode.Chapter,
		episode.Order,
		episode.PointsReward,
		episode.RequiredTasks,
		episode.Published,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save episode: %w", err)
	}
	return nil
}

// MarkCompleted records the user's completion of an episode.
func (r *EpisodeRepository) MarkCompleted(ctx context.Context, userID shared.UserID, id shared.ContentID) error {
	query := `
		INSERT INTO episode_completions (user_id, episode_id, completed_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.conn.Exec(ctx, query, userID.String(), id.String(), time.Now().UTC())
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrAlreadyCompleted
		}
		return fmt.Errorf("failed to mark episode completed: %w", err)
	}
	return nil
}

// ListCompleted returns the IDs of episodes the user has finished.
func (r *EpisodeRepository) ListCompleted(ctx context.Context, userID shared.UserID) ([]shared.ContentID, error) {
	query := `SELECT episode_id FROM episode_completions WHERE user_id = $1 ORDER BY completed_at`

	rows, err := r.conn.Query(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list completed episodes: %w", err)
	}
	defer rows.Close()

	var ids []shared.ContentID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan episode id: %w", err)
		}
		ids = append(ids, shared.ContentID(id))
	}
	return ids, rows.Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY (content.ChallengeRepository)
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository implements content.ChallengeRepository for PostgreSQL.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

const challengeColumns = `id, title, description, reward_points, bonus_points, starts_at, ends_at, max_progress`

func scanChallenge(row interface{ Scan(...interface{}) error }) (*content.WeeklyChallenge, error) {
	c := &content.WeeklyChallenge{}
	var id string
	if err := row.Scan(
		&id,
		&c.Title,
		&c.Description,
		&c.RewardPoints,
		&c.BonusPoints,
		&c.Window.From,
		&c.Window.To,
		&c.MaxProgress,
	); err != nil {
		return nil, err
	}
	c.ID = shared.ContentID(id)
	return c, nil
}

// FindByID returns a challenge or shared.ErrChallengeNotFound.
func (r *ChallengeRepository) FindByID(ctx context.Context, id shared.ContentID) (*content.WeeklyChallenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM weekly_challenges WHERE id = $1`

	challenge, err := scanChallenge(r.conn.QueryRow(ctx, query, id.String()))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to find challenge: %w", err)
	}
	return challenge, nil
}

// ListActive returns challenges whose window contains the current moment.
func (r *ChallengeRepository) ListActive(ctx context.Context) ([]content.WeeklyChallenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM weekly_challenges WHERE starts_at <= NOW() AND ends_at > NOW() ORDER BY ends_at`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list challenges: %w", err)
	}
	defer rows.Close()

	var challenges []content.WeeklyChallenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan challenge: %w", err)
		}
		challenges = append(challenges, *c)
	}
	return challenges, rows.Err()
}

// FindProgress returns the user's progress or shared.ErrChallengeNotJoined.
func (r *ChallengeRepository) FindProgress(ctx context.Context, userID shared.UserID, id shared.ContentID) (*content.ChallengeProgress, error) {
	query := `
		SELECT progress, joined_at, completed_at
		FROM challenge_progress
		WHERE user_id = $1 AND challenge_id = $2
	`

	progress := &content.ChallengeProgress{
		UserID:      userID,
		ChallengeID: id,
	}
	err := r.conn.QueryRow(ctx, query, userID.String(), id.String()).Scan(
		&progress.Progress,
		&progress.JoinedAt,
		&progress.CompletedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChallengeNotJoined
		}
		return nil, fmt.Errorf("failed to find challenge progress: %w", err)
	}
	return progress, nil
}

// SaveProgress upserts a participant's progress.
func (r *ChallengeRepository) SaveProgress(ctx context.Context, progress *content.ChallengeProgress) error {
	query := `
		INSERT INTO challenge_progress (user_id, challenge_id, progress, joined_at, completed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, challenge_id) DO UPDATE SET
			progress = EXCLUDED.progress,
			completed_at = EXCLUDED.completed_at
	`

	_, err := r.conn.Exec(ctx, query,
		progress.UserID.String(),
		progress.ChallengeID.String(),
		progress.Progress,
		progress.JoinedAt,
		progress.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save challenge progress: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TASK REPOSITORY (content.TaskRepository)
// ══════════════════════════════════════════════════════════════════════════════

// TaskRepository implements content.TaskRepository for PostgreSQL.
type TaskRepository struct {
	conn *Connection
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(conn *Connection) *TaskRepository {
	return &TaskRepository{conn: conn}
}

const taskColumns = `id, title, description, difficulty, category, points`

func scanTask(row interface{ Scan(...interface{}) error }) (*content.Task, error) {
	t := &content.Task{}
	var id, difficulty string
	if err := row.Scan(
		&id,
		&t.Title,
		&t.Description,
		&difficulty,
		&t.Category,
		&t.Points,
	); err != nil {
		return nil, err
	}
	t.ID = shared.ContentID(id)
	t.Difficulty = content.TaskDifficulty(difficulty)
	return t, nil
}

// FindByID returns a task or shared.ErrNotFound.
func (r *TaskRepository) FindByID(ctx context.Context, id shared.ContentID) (*content.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`

	task, err := scanTask(r.conn.QueryRow(ctx, query, id.String()))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("content", "FindTask", shared.ErrNotFound, "task not found", err)
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// List returns the task catalog.
func (r *TaskRepository) List(ctx context.Context) ([]content.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks ORDER BY created_at, id`

	rows, err := r.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []content.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// RecordSubmission records a completed-task submission. Replays of the same
// submission id are absorbed silently; the reward path has its own dedup.
func (r *TaskRepository) RecordSubmission(ctx context.Context, sub *content.Submission) error {
	query := `
		INSERT INTO submissions (id, user_id, task_id, submitted_at, synced)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`

	submittedAt := sub.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now().UTC()
	}

	_, err := r.conn.Exec(ctx, query,
		sub.ID,
		sub.UserID.String(),
		sub.TaskID.String(),
		submittedAt,
		sub.Synced,
	)
	if err != nil {
		return fmt.Errorf("failed to record submission: %w", err)
	}
	return nil
}

// CountCompleted returns the user's completion count, the unlock-gate signal.
func (r *TaskRepository) CountCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	query := `SELECT COUNT(*) FROM submissions WHERE user_id = $1`

	var count int
	if err := r.conn.QueryRow(ctx, query, userID.String()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count submissions: %w", err)
	}
	return count, nil
}

// ListUnsynced returns submissions not yet synced.
func (r *TaskRepository) ListUnsynced(ctx context.Context, limit int) ([]content.Submission, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT id, user_id, task_id, submitted_at, synced
		FROM submissions
		WHERE NOT synced
		ORDER BY submitted_at
		LIMIT $1
	`

	rows, err := r.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsynced submissions: %w", err)
	}
	defer rows.Close()

	var subs []content.Submission
	for rows.Next() {
		var s content.Submission
		var userID, taskID string
		if err := rows.Scan(&s.ID, &userID, &taskID, &s.SubmittedAt, &s.Synced); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		s.UserID = shared.UserID(userID)
		s.TaskID = shared.ContentID(taskID)
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// MarkSynced marks submissions as synced.
func (r *TaskRepository) MarkSynced(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE submissions SET synced = TRUE WHERE id = ANY($1)`

	if _, err := r.conn.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("failed to mark submissions synced: %w", err)
	}
	return nil
}
