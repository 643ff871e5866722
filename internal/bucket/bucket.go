// Package bucket turns promised times into urgency buckets and defines the
// canonical queue ordering. Everything here is recomputed from scratch on
// every clock tick and feed emission; nothing is cached.
package bucket

import (
	"sort"

	"foodtruck-kds/internal/domain"
)

// DueSoonWindowMs is how far ahead of its promised time an order counts
// as due soon rather than merely upcoming.
const DueSoonWindowMs = 8 * 60_000

// Classify assigns an urgency bucket from the promised instant. An
// unresolvable promise (0) defaults to UPCOMING.
func Classify(promisedAtMs, nowMs int64) domain.Bucket {
	if promisedAtMs <= 0 {
		return domain.BucketUpcoming
	}
	diff := promisedAtMs - nowMs
	switch {
	case diff < 0:
		return domain.BucketLate
	case diff <= DueSoonWindowMs:
		return domain.BucketDueSoon
	default:
		return domain.BucketUpcoming
	}
}

// CanonicalCompare orders views by (promisedAt, createdAt) ascending.
// Returns <0, 0 or >0. Exact ties compare equal so a stable sort keeps
// adapter emission order.
func CanonicalCompare(a, b domain.OrderView) int {
	if a.PromisedAtMs != b.PromisedAtMs {
		if a.PromisedAtMs < b.PromisedAtMs {
			return -1
		}
		return 1
	}
	if a.CreatedAtMs != b.CreatedAtMs {
		if a.CreatedAtMs < b.CreatedAtMs {
			return -1
		}
		return 1
	}
	return 0
}

// SortCanonical stable-sorts views in place by the canonical key.
func SortCanonical(views []domain.OrderView) {
	sort.SliceStable(views, func(i, j int) bool {
		return CanonicalCompare(views[i], views[j]) < 0
	})
}

// Group partitions active views into buckets, each bucket canonically
// sorted. Terminal orders are excluded from every bucket.
func Group(views []domain.OrderView, nowMs int64) map[domain.Bucket][]domain.OrderView {
	grouped := make(map[domain.Bucket][]domain.OrderView, 3)
	for _, v := range views {
		if v.KitchenStatus.Terminal() {
			continue
		}
		b := Classify(v.PromisedAtMs, nowMs)
		grouped[b] = append(grouped[b], v)
	}
	for b := range grouped {
		SortCanonical(grouped[b])
	}
	return grouped
}
