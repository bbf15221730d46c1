// Package postgres implements the PostgreSQL persistence layer for EcoQuest.
package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE PROFILES
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create profiles and preferences
-- Version: 001

-- Profile rows mirror Supabase auth users; id matches auth.users.id.
CREATE TABLE IF NOT EXISTS profiles (
    id UUID PRIMARY KEY,
    full_name VARCHAR(100) NOT NULL,
    role VARCHAR(20) NOT NULL DEFAULT 'student',
    avatar_url TEXT NOT NULL DEFAULT '',
    points INTEGER NOT NULL DEFAULT 0,
    badge_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_role CHECK (role IN ('student', 'educator')),
    CONSTRAINT valid_points CHECK (points >= 0),
    CONSTRAINT valid_badge_count CHECK (badge_count >= 0)
);

-- points/badge_count are denormalized leaderboard inputs; ledger rows
-- stay the source of truth.
CREATE INDEX IF NOT EXISTS idx_profiles_points ON profiles(points DESC);
CREATE INDEX IF NOT EXISTS idx_profiles_role ON profiles(role);

-- Preferences are stored as a versioned JSONB document. Old v1 documents
-- remain until the next write; reads migrate them in memory.
CREATE TABLE IF NOT EXISTS user_preferences (
    user_id UUID PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
    prefs JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

const migration001Down = `
DROP TABLE IF EXISTS user_preferences;
DROP TABLE IF EXISTS profiles;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE GAME STATE
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create ledger state, badges and the badge catalog
-- Version: 002

-- One row per user. Level is never stored, it is derived from points.
CREATE TABLE IF NOT EXISTS game_state (
    user_id UUID PRIMARY KEY REFERENCES profiles(id) ON DELETE CASCADE,
    points INTEGER NOT NULL DEFAULT 0,
    streak INTEGER NOT NULL DEFAULT 0,
    last_active_date DATE,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_state_points CHECK (points >= 0),
    CONSTRAINT valid_streak CHECK (streak >= 0)
);

-- Unlocked badges, append-only. unlocked_at preserves unlock order.
CREATE TABLE IF NOT EXISTS user_badges (
    user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    badge_id VARCHAR(50) NOT NULL,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon VARCHAR(100) NOT NULL DEFAULT '',
    tier VARCHAR(10) NOT NULL DEFAULT 'bronze',
    unlocked_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, badge_id),
    CONSTRAINT valid_tier CHECK (tier IN ('bronze', 'silver', 'gold'))
);

CREATE INDEX IF NOT EXISTS idx_user_badges_unlocked_at ON user_badges(user_id, unlocked_at);

-- Badge catalog with tagged unlock criteria stored as JSONB:
-- {"kind": "task_count", "threshold": 10}
CREATE TABLE IF NOT EXISTS badge_definitions (
    id VARCHAR(50) PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    icon VARCHAR(100) NOT NULL DEFAULT '',
    tier VARCHAR(10) NOT NULL DEFAULT 'bronze',
    criterion JSONB NOT NULL,
    sort_order INTEGER NOT NULL DEFAULT 0,

    CONSTRAINT valid_def_tier CHECK (tier IN ('bronze', 'silver', 'gold'))
);
`

const migration002Down = `
DROP TABLE IF EXISTS badge_definitions;
DROP TABLE IF EXISTS user_badges;
DROP TABLE IF EXISTS game_state;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE CONTENT
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create tasks, submissions, episodes and challenges
-- Version: 003

CREATE TABLE IF NOT EXISTS tasks (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    difficulty VARCHAR(10) NOT NULL DEFAULT 'easy',
    category VARCHAR(50) NOT NULL DEFAULT '',
    points INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_difficulty CHECK (difficulty IN ('easy', 'medium', 'hard')),
    CONSTRAINT valid_task_points CHECK (points >= 0)
);

-- Submission id doubles as the reward dedup id; offline clients re-send
-- the same id and the primary key absorbs the replay.
CREATE TABLE IF NOT EXISTS submissions (
    id VARCHAR(100) PRIMARY KEY,
    user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    task_id UUID NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
    submitted_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    synced BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE INDEX IF NOT EXISTS idx_submissions_user ON submissions(user_id);
CREATE INDEX IF NOT EXISTS idx_submissions_unsynced ON submissions(user_id) WHERE NOT synced;

CREATE TABLE IF NOT EXISTS episodes (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    chapter INTEGER NOT NULL DEFAULT 1,
    sort_order INTEGER NOT NULL DEFAULT 0,
    points_reward INTEGER NOT NULL DEFAULT 0,
    required_tasks INTEGER NOT NULL DEFAULT 0,
    published BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_reward CHECK (points_reward >= 0),
    CONSTRAINT valid_required CHECK (required_tasks >= 0)
);

CREATE INDEX IF NOT EXISTS idx_episodes_published ON episodes(chapter, sort_order) WHERE published;

CREATE TABLE IF NOT EXISTS episode_completions (
    user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    episode_id UUID NOT NULL REFERENCES episodes(id) ON DELETE CASCADE,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    PRIMARY KEY (user_id, episode_id)
);

CREATE TABLE IF NOT EXISTS weekly_challenges (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title VARCHAR(200) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    reward_points INTEGER NOT NULL DEFAULT 0,
    bonus_points INTEGER NOT NULL DEFAULT 0,
    starts_at TIMESTAMP WITH TIME ZONE NOT NULL,
    ends_at TIMESTAMP WITH TIME ZONE NOT NULL,
    max_progress INTEGER NOT NULL DEFAULT 1,

    CONSTRAINT valid_challenge_reward CHECK (reward_points >= 0 AND bonus_points >= 0),
    CONSTRAINT valid_window CHECK (ends_at > starts_at),
    CONSTRAINT valid_max_progress CHECK (max_progress > 0)
);

CREATE INDEX IF NOT EXISTS idx_challenges_window ON weekly_challenges(starts_at, ends_at);

CREATE TABLE IF NOT EXISTS challenge_progress (
    user_id UUID NOT NULL REFERENCES profiles(id) ON DELETE CASCADE,
    challenge_id UUID NOT NULL REFERENCES weekly_challenges(id) ON DELETE CASCADE,
    progress INTEGER NOT NULL DEFAULT 0,
    joined_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,

    PRIMARY KEY (user_id, challenge_id),
    CONSTRAINT valid_progress CHECK (progress >= 0)
);
`

const migration003Down = `
DROP TABLE IF EXISTS challenge_progress;
DROP TABLE IF EXISTS weekly_challenges;
DROP TABLE IF EXISTS episode_completions;
DROP TABLE IF EXISTS episodes;
DROP TABLE IF EXISTS submissions;
DROP TABLE IF EXISTS tasks;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 004: CREATE LEADERBOARD SNAPSHOTS
// ══════════════════════════════════════════════════════════════════════════════

const migration004Up = `
-- Migration: Create leaderboard snapshots
-- Version: 004

-- Snapshots are immutable; rank movement is the diff between consecutive
-- snapshots. Entries are stored denormalized as JSONB.
CREATE TABLE IF NOT EXISTS leaderboard_snapshots (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    snapshot_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    total_users INTEGER NOT NULL DEFAULT 0,
    total_points BIGINT NOT NULL DEFAULT 0,
    average_points INTEGER NOT NULL DEFAULT 0,
    entries JSONB NOT NULL DEFAULT '[]'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_snapshots_at ON leaderboard_snapshots(snapshot_at DESC);
`

const migration004Down = `
DROP TABLE IF EXISTS leaderboard_snapshots;
`
