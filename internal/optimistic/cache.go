// Package optimistic holds client-local, unconfirmed mutations and
// overlays them on the authoritative feed until the feed catches up. A
// patch always wins over a stale feed value; it is removed either when
// the feed confirms the expected status or when the command that created
// it fails.
package optimistic

import (
	"context"
	"sync"

	"foodtruck-kds/internal/common/logger"
	"foodtruck-kds/internal/domain"
)

// Patch is one unconfirmed mutation keyed by order id.
type Patch struct {
	OrderID        string
	ExpectedStatus domain.KitchenStatus
	Milestone      domain.Milestone
	MilestoneAtMs  int64
	TS             int64 // logical creation time, used for load-time merge
}

// Store is the durable per-device tier a cache survives reloads with.
// All methods are best-effort from the cache's point of view.
type Store interface {
	LoadAll(ctx context.Context) ([]Patch, error)
	Put(ctx context.Context, p Patch) error
	Delete(ctx context.Context, orderID string) error
}

type Cache struct {
	mu      sync.Mutex
	entries map[string]Patch
	store   Store // may be nil
	log     *logger.Logger
}

func NewCache(store Store, log *logger.Logger) *Cache {
	return &Cache{
		entries: make(map[string]Patch),
		store:   store,
		log:     log,
	}
}

// Restore merges durable entries into the cache. An entry the running
// session created at a later TS is never overwritten by the stored one;
// this closes the window between storage read and effect completion.
func (c *Cache) Restore(ctx context.Context) {
	if c.store == nil {
		return
	}
	stored, err := c.store.LoadAll(ctx)
	if err != nil {
		c.log.Warn("patch_restore_failed", err, nil)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range stored {
		if live, ok := c.entries[p.OrderID]; ok && live.TS >= p.TS {
			continue
		}
		c.entries[p.OrderID] = p
	}
}

// Put records a patch and persists it best-effort.
func (c *Cache) Put(ctx context.Context, p Patch) {
	c.mu.Lock()
	c.entries[p.OrderID] = p
	c.mu.Unlock()
	if c.store == nil {
		return
	}
	if err := c.store.Put(ctx, p); err != nil {
		c.log.Warn("patch_persist_failed", err, map[string]any{"order_id": p.OrderID})
	}
}

// Drop removes a patch, either as rollback after a failed command or as
// confirmation once the feed reflects it.
func (c *Cache) Drop(ctx context.Context, orderID string) {
	c.mu.Lock()
	_, existed := c.entries[orderID]
	delete(c.entries, orderID)
	c.mu.Unlock()
	if !existed || c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, orderID); err != nil {
		c.log.Warn("patch_delete_failed", err, map[string]any{"order_id": orderID})
	}
}

// Pending returns the live patch for an order, if any.
func (c *Cache) Pending(orderID string) (Patch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[orderID]
	return p, ok
}

// Overlay applies the pending patch, if any, to a view: status replaced
// and the timeline gaining the new milestone.
func (c *Cache) Overlay(view domain.OrderView) domain.OrderView {
	c.mu.Lock()
	p, ok := c.entries[view.ID]
	c.mu.Unlock()
	if !ok {
		return view
	}
	view.KitchenStatus = p.ExpectedStatus
	if p.Milestone != "" && view.Timeline.Get(p.Milestone) == 0 {
		view.Timeline.Set(p.Milestone, p.MilestoneAtMs)
	}
	return view
}

// Reconcile drops every patch the feed has confirmed. Running it twice
// on the same feed is a no-op.
func (c *Cache) Reconcile(ctx context.Context, views []domain.OrderView) {
	byID := make(map[string]domain.KitchenStatus, len(views))
	for _, v := range views {
		byID[v.ID] = v.KitchenStatus
	}

	c.mu.Lock()
	var confirmed []string
	for id, p := range c.entries {
		if status, ok := byID[id]; ok && status == p.ExpectedStatus {
			confirmed = append(confirmed, id)
			delete(c.entries, id)
		}
	}
	c.mu.Unlock()

	for _, id := range confirmed {
		c.log.Debug("patch_confirmed", map[string]any{"order_id": id})
		if c.store != nil {
			if err := c.store.Delete(ctx, id); err != nil {
				c.log.Warn("patch_delete_failed", err, map[string]any{"order_id": id})
			}
		}
	}
}

// Len reports the number of live patches.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
