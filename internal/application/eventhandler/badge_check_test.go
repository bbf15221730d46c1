package eventhandler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoquest-hub/ecoquest-hub/internal/application/command"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/content"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/ledger"
	"github.com/ecoquest-hub/ecoquest-hub/internal/domain/shared"
)

const testUser = shared.UserID("33333333-3333-3333-3333-333333333333")

// ──────────────────────────────────────────────────────────────────────────────
// Fakes
// ──────────────────────────────────────────────────────────────────────────────

type fakeSnapshots struct {
	snaps map[shared.UserID]*ledger.Snapshot
	saves int
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{snaps: make(map[shared.UserID]*ledger.Snapshot)}
}

func (f *fakeSnapshots) Load(ctx context.Context, userID shared.UserID) (*ledger.Snapshot, error) {
	snap, ok := f.snaps[userID]
	if !ok {
		return nil, shared.ErrSnapshotNotFound
	}
	cp := *snap
	return &cp, nil
}

func (f *fakeSnapshots) Save(ctx context.Context, snap *ledger.Snapshot) error {
	f.saves++
	cp := *snap
	f.snaps[snap.UserID] = &cp
	return nil
}

type fakeCatalog struct {
	defs []ledger.BadgeDefinition
}

func (f *fakeCatalog) ListDefinitions(ctx context.Context) ([]ledger.BadgeDefinition, error) {
	return f.defs, nil
}

type fakeTaskRepo struct {
	completed int
}

func (f *fakeTaskRepo) FindByID(ctx context.Context, id shared.ContentID) (*content.Task, error) {
	return nil, shared.ErrNotFound
}

func (f *fakeTaskRepo) List(ctx context.Context) ([]content.Task, error) { return nil, nil }

func (f *fakeTaskRepo) RecordSubmission(ctx context.Context, sub *content.Submission) error {
	return nil
}

func (f *fakeTaskRepo) CountCompleted(ctx context.Context, userID shared.UserID) (int, error) {
	return f.completed, nil
}

func (f *fakeTaskRepo) ListUnsynced(ctx context.Context, limit int) ([]content.Submission, error) {
	return nil, nil
}

func (f *fakeTaskRepo) MarkSynced(ctx context.Context, ids []string) error { return nil }

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func newAwarderFixture(snaps *fakeSnapshots, defs []ledger.BadgeDefinition, completed int) (*badgeAwarder, *capturingPublisher) {
	pub := &capturingPublisher{}
	catalog := &fakeCatalog{defs: defs}
	cfg := ledger.DefaultConfig()
	unlock := command.NewUnlockBadgeHandler(command.NewLedgerSessions(snaps, cfg), catalog, pub)
	return newBadgeAwarder(snaps, catalog, &fakeTaskRepo{completed: completed}, unlock, cfg, nil), pub
}

func pointsBadge(id string, threshold int) ledger.BadgeDefinition {
	return ledger.BadgeDefinition{
		ID:        id,
		Name:      id,
		Tier:      shared.TierBronze,
		Criterion: ledger.Criterion{Kind: ledger.CriterionPoints, Threshold: threshold},
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Badge awarder
// ──────────────────────────────────────────────────────────────────────────────

func TestBadgeAwarder_UnlocksEarnedBadge(t *testing.T) {
	snaps := newFakeSnapshots()
	snaps.snaps[testUser] = &ledger.Snapshot{UserID: testUser, Points: 600}
	awarder, pub := newAwarderFixture(snaps, []ledger.BadgeDefinition{pointsBadge("eco-starter", 500)}, 0)

	require.NoError(t, awarder.award(context.Background(), testUser, ""))

	require.Len(t, snaps.snaps[testUser].Badges, 1)
	assert.Equal(t, "eco-starter", snaps.snaps[testUser].Badges[0].ID)
	require.Len(t, pub.events, 1)
	assert.Equal(t, shared.EventBadgeUnlocked, pub.events[0].EventType())
}

func TestBadgeAwarder_NewUserEvaluatesAgainstZeroState(t *testing.T) {
	snaps := newFakeSnapshots()
	awarder, pub := newAwarderFixture(snaps, []ledger.BadgeDefinition{pointsBadge("eco-starter", 500)}, 0)

	require.NoError(t, awarder.award(context.Background(), testUser, ""))

	assert.Zero(t, snaps.saves)
	assert.Empty(t, pub.events)
}

func TestBadgeAwarder_SkipsAlreadyOwnedBadge(t *testing.T) {
	snaps := newFakeSnapshots()
	snaps.snaps[testUser] = &ledger.Snapshot{
		UserID: testUser,
		Points: 600,
		Badges: []ledger.Badge{pointsBadge("eco-starter", 500).Badge(time.Now().UTC())},
	}
	awarder, pub := newAwarderFixture(snaps, []ledger.BadgeDefinition{pointsBadge("eco-starter", 500)}, 0)

	require.NoError(t, awarder.award(context.Background(), testUser, ""))

	assert.Zero(t, snaps.saves)
	assert.Empty(t, pub.events)
}
