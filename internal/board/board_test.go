package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodtruck-kds/internal/clockx"
	"foodtruck-kds/internal/commands"
	"foodtruck-kds/internal/common/logger"
	"foodtruck-kds/internal/domain"
	"foodtruck-kds/internal/feed"
	"foodtruck-kds/internal/optimistic"
	"foodtruck-kds/internal/rank"
	"foodtruck-kds/internal/reorder"
)

var testLog = logger.New("board-test")

type fakeCommander struct {
	mu          sync.Mutex
	transitions []commands.TransitionRequest
	paid        []string
	err         error
}

func (f *fakeCommander) Transition(_ context.Context, req commands.TransitionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.transitions = append(f.transitions, req)
	return nil
}

func (f *fakeCommander) MarkPaid(_ context.Context, orderID, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.paid = append(f.paid, orderID)
	return nil
}

func (f *fakeCommander) lastTransition() (commands.TransitionRequest, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.transitions) == 0 {
		return commands.TransitionRequest{}, false
	}
	return f.transitions[len(f.transitions)-1], true
}

// memTier backs the rank store in tests.
type memTier struct {
	mu      sync.Mutex
	entries map[rank.Scope]rank.Entry
}

func newMemTier() *memTier { return &memTier{entries: make(map[rank.Scope]rank.Entry)} }

func (m *memTier) Get(_ context.Context, scope rank.Scope) (rank.Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[scope]
	return e, ok, nil
}

func (m *memTier) Put(_ context.Context, scope rank.Scope, e rank.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[scope] = e
	return nil
}

type fixture struct {
	engine *Engine
	clock  *clockx.Manual
	sched  *clockx.ManualScheduler
	cmd    *fakeCommander
	cache  *optimistic.Cache
	snaps  chan feed.Snapshot
	done   chan error
	cancel context.CancelFunc
}

const nowStart = int64(1_700_000_000_000)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := clockx.NewManual(nowStart)
	sched := clockx.NewManualScheduler()
	cmd := &fakeCommander{}
	cache := optimistic.NewCache(nil, testLog)
	ranks := rank.NewStore("staff-1", "truck-7", newMemTier(), newMemTier(), clock, time.Millisecond, testLog)

	f := &fixture{
		engine: New("truck-7", clock, sched, cache, ranks, cmd, time.Second, testLog),
		clock:  clock,
		sched:  sched,
		cmd:    cmd,
		cache:  cache,
		snaps:  make(chan feed.Snapshot, 4),
		done:   make(chan error, 1),
	}

	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go func() { f.done <- f.engine.Run(ctx, f.snaps) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-f.done:
		case <-time.After(time.Second):
			t.Error("engine did not stop")
		}
	})
	return f
}

func (f *fixture) push(t *testing.T, orders ...domain.OrderRecord) {
	t.Helper()
	// Drain any token left over from earlier operations so the wait
	// below is tied to this snapshot.
	select {
	case <-f.engine.Changes():
	default:
	}
	f.snaps <- feed.Snapshot{TruckID: "truck-7", Orders: orders}
	select {
	case <-f.engine.Changes():
	case <-time.After(time.Second):
		t.Fatal("snapshot was not applied")
	}
}

func record(id, status string, createdMs int64) domain.OrderRecord {
	return domain.OrderRecord{ID: id, Status: status, CreatedAtMs: createdMs, UpdatedAtMs: createdMs}
}

func findCard(v View, id string) (Card, domain.Bucket, bool) {
	for _, g := range v.Groups {
		for _, c := range g.Orders {
			if c.Order.ID == id {
				return c, g.Bucket, true
			}
		}
	}
	return Card{}, "", false
}

func TestRun_FirstSnapshotTimeout(t *testing.T) {
	clock := clockx.NewManual(0)
	sched := clockx.NewManualScheduler()
	cache := optimistic.NewCache(nil, testLog)
	ranks := rank.NewStore("u", "t", nil, nil, clock, time.Millisecond, testLog)
	engine := New("t", clock, sched, cache, ranks, &fakeCommander{}, 20*time.Millisecond, testLog)

	err := engine.Run(context.Background(), make(chan feed.Snapshot))
	assert.ErrorIs(t, err, ErrSubscribeTimeout)
}

func TestRun_EmptySnapshotIsValid(t *testing.T) {
	f := newFixture(t)
	f.push(t) // no orders

	v := f.engine.Snapshot(context.Background())
	for _, g := range v.Groups {
		assert.Empty(t, g.Orders)
	}
}

func TestDispatch_OptimisticThenConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.push(t, record("o1", "received", nowStart-60_000))

	require.NoError(t, f.engine.Dispatch(ctx, "o1", domain.ActionAccept))

	// The UI reflects QUEUED before any feed confirmation.
	card, _, ok := findCard(f.engine.Snapshot(ctx), "o1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusQueued, card.Order.KitchenStatus)
	assert.True(t, card.Pending)
	assert.Equal(t, nowStart, card.Order.Timeline.AcceptedAtMs)

	req, ok := f.cmd.lastTransition()
	require.True(t, ok)
	assert.Equal(t, domain.ActionAccept, req.Action)
	assert.Equal(t, nowStart-60_000, req.ExpectedUpdatedAtMs)

	// A stale snapshot still shows "received": the patch must win.
	f.push(t, record("o1", "received", nowStart-60_000))
	card, _, _ = findCard(f.engine.Snapshot(ctx), "o1")
	assert.Equal(t, domain.StatusQueued, card.Order.KitchenStatus)
	assert.True(t, card.Pending)

	// The feed catches up: patch reconciled away on that pass.
	f.push(t, record("o1", "accepted", nowStart-30_000))
	card, _, _ = findCard(f.engine.Snapshot(ctx), "o1")
	assert.Equal(t, domain.StatusQueued, card.Order.KitchenStatus)
	assert.False(t, card.Pending)
	assert.Zero(t, f.cache.Len())
}

func TestDispatch_FailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.push(t, record("o1", "received", nowStart))

	f.cmd.err = &commands.ConflictError{OrderID: "o1"}
	err := f.engine.Dispatch(ctx, "o1", domain.ActionAccept)

	var conflict *commands.ConflictError
	require.ErrorAs(t, err, &conflict)
	card, _, _ := findCard(f.engine.Snapshot(ctx), "o1")
	assert.Equal(t, domain.StatusNew, card.Order.KitchenStatus, "rolled back to feed truth")
	assert.False(t, card.Pending)
}

func TestDispatch_IllegalAndGuardedActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ready := record("o1", "ready", nowStart)
	ready.Payment = &domain.RecordPayment{PaymentStatus: "pending"}
	f.push(t, ready)

	assert.Error(t, f.engine.Dispatch(ctx, "o1", domain.ActionAccept))

	err := f.engine.Dispatch(ctx, "o1", domain.ActionHandoff)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payment not confirmed")

	_, ok := f.cmd.lastTransition()
	assert.False(t, ok, "no command may be issued for a refused action")

	assert.ErrorIs(t, f.engine.Dispatch(ctx, "nope", domain.ActionAccept), ErrUnknownOrder)
}

func TestHandoffEnablement_FollowsPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unpaid := record("o1", "ready", nowStart)
	unpaid.Payment = &domain.RecordPayment{PaymentStatus: "pending"}
	f.push(t, unpaid)

	card, _, _ := findCard(f.engine.Snapshot(ctx), "o1")
	require.NotEmpty(t, card.Actions)
	assert.Equal(t, domain.ActionHandoff, card.Actions[0].Action)
	assert.False(t, card.Actions[0].Enabled)
	assert.NotEmpty(t, card.Actions[0].Reason)
	assert.True(t, card.MarkPaid)

	paid := record("o1", "ready", nowStart)
	paid.Payment = &domain.RecordPayment{PaymentStatus: "paid"}
	f.push(t, paid)

	card, _, _ = findCard(f.engine.Snapshot(ctx), "o1")
	assert.True(t, card.Actions[0].Enabled)
	assert.False(t, card.MarkPaid)
}

func TestMarkPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	unpaid := record("o1", "received", nowStart)
	unpaid.Payment = &domain.RecordPayment{PaymentStatus: "pending"}
	paid := record("o2", "received", nowStart)
	paid.Payment = &domain.RecordPayment{PaymentStatus: "paid"}
	f.push(t, unpaid, paid)

	require.NoError(t, f.engine.MarkPaid(ctx, "o1", "cash"))
	assert.Equal(t, []string{"o1"}, f.cmd.paid)

	assert.ErrorIs(t, f.engine.MarkPaid(ctx, "o2", "cash"), ErrNotUnpaid)
	assert.ErrorIs(t, f.engine.MarkPaid(ctx, "zzz", "cash"), ErrUnknownOrder)
}

func TestSnapshot_BucketsAndCanonicalOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// No pickup time: promised falls back to created + pickup lead.
	late := record("late", "accepted", nowStart-3_600_000)
	soon := record("soon", "accepted", nowStart-10*60_000)
	upcoming := record("up", "accepted", nowStart)
	upcoming.Kitchen = &domain.CanonicalState{Status: "QUEUED", PromisedAtMs: nowStart + 30*60_000}
	f.push(t, upcoming, soon, late)

	v := f.engine.Snapshot(ctx)
	require.Len(t, v.Groups, 3)

	_, b, ok := findCard(v, "late")
	require.True(t, ok)
	assert.Equal(t, domain.BucketLate, b)
	_, b, _ = findCard(v, "soon")
	assert.Equal(t, domain.BucketDueSoon, b)
	_, b, _ = findCard(v, "up")
	assert.Equal(t, domain.BucketUpcoming, b)
}

func TestSnapshot_BucketsMoveWithClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Promised 5 minutes from now: DUE_SOON.
	o := record("o1", "accepted", nowStart)
	o.Kitchen = &domain.CanonicalState{Status: "QUEUED", PromisedAtMs: nowStart + 5*60_000}
	f.push(t, o)

	_, b, _ := findCard(f.engine.Snapshot(ctx), "o1")
	assert.Equal(t, domain.BucketDueSoon, b)

	// Ten minutes later the same order is LATE; only the clock moved.
	f.clock.Advance(10 * 60_000)
	f.sched.Fire(time.Now())
	_, b, _ = findCard(f.engine.Snapshot(ctx), "o1")
	assert.Equal(t, domain.BucketLate, b)
}

func TestReorder_PersistsWithinBucket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// All three promised in the past: LATE bucket.
	a := record("a", "accepted", nowStart-3*60_000)
	b := record("b", "accepted", nowStart-2*60_000)
	c := record("c", "accepted", nowStart-60_000)
	a.Kitchen = &domain.CanonicalState{Status: "QUEUED", PromisedAtMs: nowStart - 30_000}
	b.Kitchen = &domain.CanonicalState{Status: "QUEUED", PromisedAtMs: nowStart - 20_000}
	c.Kitchen = &domain.CanonicalState{Status: "QUEUED", PromisedAtMs: nowStart - 10_000}
	f.push(t, a, b, c)

	got := f.engine.Reorder(ctx, domain.BucketLate, "c", "a", reorder.EdgeTop)
	assert.Equal(t, []string{"c", "a", "b"}, got)

	var ids []string
	for _, g := range f.engine.Snapshot(ctx).Groups {
		if g.Bucket == domain.BucketLate {
			for _, card := range g.Orders {
				ids = append(ids, card.Order.ID)
			}
		}
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)

	// Reset reverts to canonical order.
	f.engine.ResetRank(ctx, domain.BucketLate)
	ids = nil
	for _, g := range f.engine.Snapshot(ctx).Groups {
		if g.Bucket == domain.BucketLate {
			for _, card := range g.Orders {
				ids = append(ids, card.Order.ID)
			}
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestReorder_StaleRankSurvivesShrinkingBaseSet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := record("a", "accepted", nowStart-3*60_000)
	b := record("b", "accepted", nowStart-2*60_000)
	a.Kitchen = &domain.CanonicalState{Status: "QUEUED", PromisedAtMs: nowStart - 30_000}
	b.Kitchen = &domain.CanonicalState{Status: "QUEUED", PromisedAtMs: nowStart - 20_000}
	f.push(t, a, b)

	f.engine.Reorder(ctx, domain.BucketLate, "b", "a", reorder.EdgeTop)

	// "b" completes and leaves the feed; the stored rank still names it.
	f.push(t, a)
	var ids []string
	for _, g := range f.engine.Snapshot(ctx).Groups {
		if g.Bucket == domain.BucketLate {
			for _, card := range g.Orders {
				ids = append(ids, card.Order.ID)
			}
		}
	}
	assert.Equal(t, []string{"a"}, ids, "rank output is always a permutation of the base set")
}

func TestRun_FeedClosedStopsEngine(t *testing.T) {
	clock := clockx.NewManual(0)
	sched := clockx.NewManualScheduler()
	cache := optimistic.NewCache(nil, testLog)
	ranks := rank.NewStore("u", "t", nil, nil, clock, time.Millisecond, testLog)
	engine := New("t", clock, sched, cache, ranks, &fakeCommander{}, time.Second, testLog)

	snaps := make(chan feed.Snapshot, 1)
	snaps <- feed.Snapshot{}
	close(snaps)
	err := engine.Run(context.Background(), snaps)
	assert.ErrorIs(t, err, ErrFeedClosed)
}

func TestDispatch_NetworkFailureReportsGeneric(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.push(t, record("o1", "received", nowStart))

	f.cmd.err = errors.New("connection refused")
	err := f.engine.Dispatch(ctx, "o1", domain.ActionAccept)
	require.Error(t, err)
	assert.Zero(t, f.cache.Len(), "patch rolled back on network failure")
}
