// Package board composes the kitchen queue: it adapts the raw feed,
// overlays unconfirmed local mutations, classifies orders by urgency,
// applies manual rankings, and dispatches staff actions as commands.
package board

import (
	"context"
	"errors"
	"sync"
	"time"

	"foodtruck-kds/internal/adapter"
	"foodtruck-kds/internal/bucket"
	"foodtruck-kds/internal/clockx"
	"foodtruck-kds/internal/commands"
	"foodtruck-kds/internal/common/logger"
	"foodtruck-kds/internal/domain"
	"foodtruck-kds/internal/feed"
	"foodtruck-kds/internal/fsm"
	"foodtruck-kds/internal/optimistic"
	"foodtruck-kds/internal/rank"
	"foodtruck-kds/internal/reorder"
)

var (
	// ErrSubscribeTimeout means the feed produced nothing within the
	// bounded startup window. Hard error; never silently retried.
	ErrSubscribeTimeout = errors.New("feed subscription timed out")

	ErrFeedClosed   = errors.New("feed closed")
	ErrUnknownOrder = errors.New("unknown order")
	ErrNotUnpaid    = errors.New("order is not unpaid")
)

// Commander issues authoritative mutations. Satisfied by *commands.Client.
type Commander interface {
	Transition(ctx context.Context, req commands.TransitionRequest) error
	MarkPaid(ctx context.Context, orderID, method string) error
}

type Engine struct {
	truckID          string
	clock            clockx.Clock
	sched            clockx.Scheduler
	cache            *optimistic.Cache
	ranks            *rank.Store
	cmd              Commander
	log              *logger.Logger
	subscribeTimeout time.Duration

	mu      sync.RWMutex
	records []domain.OrderRecord

	changed chan struct{}
}

func New(
	truckID string,
	clock clockx.Clock,
	sched clockx.Scheduler,
	cache *optimistic.Cache,
	ranks *rank.Store,
	cmd Commander,
	subscribeTimeout time.Duration,
	log *logger.Logger,
) *Engine {
	return &Engine{
		truckID:          truckID,
		clock:            clock,
		sched:            sched,
		cache:            cache,
		ranks:            ranks,
		cmd:              cmd,
		log:              log,
		subscribeTimeout: subscribeTimeout,
		changed:          make(chan struct{}, 1),
	}
}

// Changes signals that a render would now differ: a snapshot arrived, a
// tick fired, or local state mutated. At-least-once, coalescing.
func (e *Engine) Changes() <-chan struct{} { return e.changed }

func (e *Engine) notify() {
	select {
	case e.changed <- struct{}{}:
	default:
	}
}

// Run consumes the feed until ctx is canceled. The first snapshot must
// arrive within the subscribe timeout. Teardown cancels the tick
// scheduler and flushes pending rank writes.
func (e *Engine) Run(ctx context.Context, snaps <-chan feed.Snapshot) error {
	defer e.teardown()

	select {
	case snap, ok := <-snaps:
		if !ok {
			return ErrFeedClosed
		}
		e.apply(ctx, snap)
	case <-time.After(e.subscribeTimeout):
		return ErrSubscribeTimeout
	case <-ctx.Done():
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			e.log.Info("graceful_shutdown", map[string]any{"truck_id": e.truckID})
			return nil
		case snap, ok := <-snaps:
			if !ok {
				return ErrFeedClosed
			}
			e.apply(ctx, snap)
		case <-e.sched.Ticks():
			// Buckets are a pure function of now; a tick only means a
			// render would differ.
			e.notify()
		}
	}
}

func (e *Engine) teardown() {
	e.sched.Cancel()
	e.ranks.Close()
}

// apply replaces the record set (full-array semantics) and reconciles
// the override cache against the raw adapted views, before any overlay.
func (e *Engine) apply(ctx context.Context, snap feed.Snapshot) {
	e.mu.Lock()
	e.records = snap.Orders
	e.mu.Unlock()

	e.cache.Reconcile(ctx, e.rawViews())
	e.log.Debug("snapshot_applied", map[string]any{
		"truck_id": e.truckID,
		"orders":   len(snap.Orders),
	})
	e.notify()
}

func (e *Engine) rawViews() []domain.OrderView {
	e.mu.RLock()
	records := e.records
	e.mu.RUnlock()
	views := make([]domain.OrderView, 0, len(records))
	for _, r := range records {
		views = append(views, adapter.Adapt(r))
	}
	return views
}

func (e *Engine) overlayedViews() []domain.OrderView {
	views := e.rawViews()
	for i := range views {
		views[i] = e.cache.Overlay(views[i])
	}
	return views
}

func (e *Engine) viewByID(orderID string) (domain.OrderView, bool) {
	for _, v := range e.overlayedViews() {
		if v.ID == orderID {
			return v, true
		}
	}
	return domain.OrderView{}, false
}

// Card is one order as rendered to staff.
type Card struct {
	Order    domain.OrderView `json:"order"`
	Actions  []fsm.Option     `json:"actions"`
	MarkPaid bool             `json:"mark_paid"`
	Pending  bool             `json:"pending"`
}

// Group is one urgency bucket in display order.
type Group struct {
	Bucket domain.Bucket `json:"bucket"`
	Orders []Card        `json:"orders"`
}

// View is a full render of the board at one instant.
type View struct {
	TruckID string  `json:"truck_id"`
	NowMs   int64   `json:"now_ms"`
	Groups  []Group `json:"groups"`
}

// Snapshot recomputes the full board view: overlay, classify, sort,
// manual rank. Nothing is cached between calls.
func (e *Engine) Snapshot(ctx context.Context) View {
	now := e.clock.NowMs()
	grouped := bucket.Group(e.overlayedViews(), now)

	out := View{TruckID: e.truckID, NowMs: now}
	for _, b := range domain.AllBuckets() {
		views := grouped[b]
		byID := make(map[string]domain.OrderView, len(views))
		baseIDs := make([]string, 0, len(views))
		for _, v := range views {
			byID[v.ID] = v
			baseIDs = append(baseIDs, v.ID)
		}

		group := Group{Bucket: b, Orders: make([]Card, 0, len(views))}
		for _, id := range e.ranks.Apply(ctx, string(b), baseIDs) {
			v := byID[id]
			_, pending := e.cache.Pending(id)
			group.Orders = append(group.Orders, Card{
				Order:    v,
				Actions:  fsm.Options(v),
				MarkPaid: fsm.MarkPaidAvailable(v),
				Pending:  pending,
			})
		}
		out.Groups = append(out.Groups, group)
	}
	return out
}

// Dispatch runs one staff action: local guard check, optimistic patch,
// then the authoritative command. On any command failure the patch is
// rolled back immediately and the error returned for display.
func (e *Engine) Dispatch(ctx context.Context, orderID string, action domain.Action) error {
	view, ok := e.viewByID(orderID)
	if !ok {
		return ErrUnknownOrder
	}
	if err := fsm.Check(view, action); err != nil {
		return err
	}
	next, _ := fsm.Next(view.KitchenStatus, action)

	now := e.clock.NowMs()
	e.cache.Put(ctx, optimistic.Patch{
		OrderID:        orderID,
		ExpectedStatus: next,
		Milestone:      fsm.MilestoneFor(action),
		MilestoneAtMs:  now,
		TS:             now,
	})
	e.notify()

	err := e.cmd.Transition(ctx, commands.TransitionRequest{
		OrderID:             orderID,
		Action:              action,
		ExpectedUpdatedAtMs: view.UpdatedAtMs,
	})
	if err != nil {
		e.cache.Drop(ctx, orderID)
		e.notify()
		e.log.Error("command_failed", err, map[string]any{
			"order_id": orderID,
			"action":   string(action),
		})
		return err
	}
	e.log.Info("command_applied", map[string]any{
		"order_id": orderID,
		"action":   string(action),
	})
	return nil
}

// MarkPaid flips the payment status via the separate command. Only valid
// while the order is unpaid.
func (e *Engine) MarkPaid(ctx context.Context, orderID, method string) error {
	view, ok := e.viewByID(orderID)
	if !ok {
		return ErrUnknownOrder
	}
	if !fsm.MarkPaidAvailable(view) {
		return ErrNotUnpaid
	}
	if err := e.cmd.MarkPaid(ctx, orderID, method); err != nil {
		e.log.Error("mark_paid_failed", err, map[string]any{"order_id": orderID})
		return err
	}
	return nil
}

// Reorder resolves a drag gesture within one bucket and persists the new
// manual order. Returns the resulting id order.
func (e *Engine) Reorder(ctx context.Context, group domain.Bucket, sourceID, targetID string, edge reorder.Edge) []string {
	snapshot := e.Snapshot(ctx)
	var base []string
	for _, g := range snapshot.Groups {
		if g.Bucket != group {
			continue
		}
		for _, card := range g.Orders {
			base = append(base, card.Order.ID)
		}
	}

	next := reorder.WithEdge(base, sourceID, targetID, edge)
	e.ranks.SetManualOrder(ctx, string(group), base, next)
	e.notify()
	return next
}

// ResetRank reverts a bucket to pure chronological ordering.
func (e *Engine) ResetRank(ctx context.Context, group domain.Bucket) {
	e.ranks.ResetManualOrder(ctx, string(group))
	e.notify()
}
