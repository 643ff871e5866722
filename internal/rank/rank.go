// Package rank lets staff override the automatic ordering inside one
// bucket. The override lives in two tiers: the device-local SQLite tier
// (synchronous, best-effort) and the shared Postgres tier (debounced,
// eventually consistent). Reads merge the tiers by recency.
package rank

import (
	"context"
	"sync"
	"time"

	"foodtruck-kds/internal/clockx"
	"foodtruck-kds/internal/common/logger"
	"foodtruck-kds/internal/debounce"
)

// Entry is one persisted manual ordering. An empty Order means "no
// override". Both tiers use this shape so merge logic is tier-agnostic.
type Entry struct {
	Order       []string `json:"order"`
	UpdatedAtMs int64    `json:"updated_at"`
}

// Scope identifies whose override this is and which queue group it
// applies to.
type Scope struct {
	UserID   string
	TruckID  string
	GroupKey string
}

// Tier is one storage backend for rank entries. Other devices may write
// the shared tier concurrently; Get must tolerate entries this process
// did not produce.
type Tier interface {
	Get(ctx context.Context, scope Scope) (Entry, bool, error)
	Put(ctx context.Context, scope Scope, e Entry) error
}

// ApplyRanking reorders baseIDs by rankedIDs: ranked ids not in the base
// are dropped, duplicates collapse to their first occurrence, and base
// ids the ranking misses are appended in base order. The result is
// always a permutation of baseIDs, however stale or partial the ranking.
func ApplyRanking(baseIDs, rankedIDs []string) []string {
	base := make(map[string]struct{}, len(baseIDs))
	for _, id := range baseIDs {
		base[id] = struct{}{}
	}

	out := make([]string, 0, len(baseIDs))
	seen := make(map[string]struct{}, len(baseIDs))
	for _, id := range rankedIDs {
		if _, ok := base[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range baseIDs {
		if _, ok := seen[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Store manages all rank entries of one (user, truck) pair, keyed by
// group. Local writes land synchronously; shared writes are debounced so
// a burst of drags collapses into one.
type Store struct {
	userID  string
	truckID string
	local   Tier
	shared  Tier
	clock   clockx.Clock
	log     *logger.Logger
	delay   time.Duration

	mu        sync.Mutex
	debounced map[string]*debounce.Debouncer // per group
}

func NewStore(userID, truckID string, local, shared Tier, clock clockx.Clock, delay time.Duration, log *logger.Logger) *Store {
	return &Store{
		userID:    userID,
		truckID:   truckID,
		local:     local,
		shared:    shared,
		clock:     clock,
		log:       log,
		delay:     delay,
		debounced: make(map[string]*debounce.Debouncer),
	}
}

func (s *Store) scope(group string) Scope {
	return Scope{UserID: s.userID, TruckID: s.truckID, GroupKey: group}
}

// Effective returns the freshest entry across both tiers. On an exact
// updatedAt tie the shared tier wins by convention. Tier read failures
// degrade to whatever the other tier has.
func (s *Store) Effective(ctx context.Context, group string) Entry {
	scope := s.scope(group)

	var localEntry, sharedEntry Entry
	var haveLocal, haveShared bool
	if s.local != nil {
		var err error
		localEntry, haveLocal, err = s.local.Get(ctx, scope)
		if err != nil {
			s.log.Warn("rank_local_read_failed", err, map[string]any{"group": group})
			haveLocal = false
		}
	}
	if s.shared != nil {
		var err error
		sharedEntry, haveShared, err = s.shared.Get(ctx, scope)
		if err != nil {
			s.log.Warn("rank_shared_read_failed", err, map[string]any{"group": group})
			haveShared = false
		}
	}

	switch {
	case haveLocal && haveShared:
		return pickFresher(localEntry, sharedEntry)
	case haveLocal:
		return localEntry
	case haveShared:
		return sharedEntry
	default:
		return Entry{}
	}
}

// pickFresher prefers the greater updatedAt; shared wins exact ties.
func pickFresher(local, shared Entry) Entry {
	if local.UpdatedAtMs > shared.UpdatedAtMs {
		return local
	}
	return shared
}

// Apply orders baseIDs by the effective override for the group.
func (s *Store) Apply(ctx context.Context, group string, baseIDs []string) []string {
	return ApplyRanking(baseIDs, s.Effective(ctx, group).Order)
}

// SetManualOrder persists a new ordering, filtered to the current base
// set. The local tier is written immediately; the shared write is
// debounced. Persistence failures never block the gesture.
func (s *Store) SetManualOrder(ctx context.Context, group string, baseIDs, nextOrderedIDs []string) {
	filtered := filterToBase(baseIDs, nextOrderedIDs)
	s.write(ctx, group, Entry{Order: filtered, UpdatedAtMs: s.clock.NowMs()})
}

// ResetManualOrder reverts the group to pure chronological ordering by
// writing an empty order list.
func (s *Store) ResetManualOrder(ctx context.Context, group string) {
	s.write(ctx, group, Entry{Order: []string{}, UpdatedAtMs: s.clock.NowMs()})
}

func (s *Store) write(ctx context.Context, group string, e Entry) {
	scope := s.scope(group)
	if s.local != nil {
		if err := s.local.Put(ctx, scope, e); err != nil {
			s.log.Warn("rank_local_write_failed", err, map[string]any{"group": group})
		}
	}
	if s.shared == nil {
		return
	}
	s.debouncer(group).Trigger(func() {
		// Detached from the request context: the gesture is long done
		// by the time the debounce fires.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.shared.Put(ctx, scope, e); err != nil {
			s.log.Warn("rank_shared_write_failed", err, map[string]any{"group": group})
		}
	})
}

func (s *Store) debouncer(group string) *debounce.Debouncer {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.debounced[group]
	if !ok {
		d = debounce.New(s.delay)
		s.debounced[group] = d
	}
	return d
}

// Close flushes pending shared writes so the last gesture is not lost on
// teardown.
func (s *Store) Close() {
	s.mu.Lock()
	pending := make([]*debounce.Debouncer, 0, len(s.debounced))
	for _, d := range s.debounced {
		pending = append(pending, d)
	}
	s.mu.Unlock()
	for _, d := range pending {
		d.Flush()
	}
}

func filterToBase(baseIDs, ids []string) []string {
	base := make(map[string]struct{}, len(baseIDs))
	for _, id := range baseIDs {
		base[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := base[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
