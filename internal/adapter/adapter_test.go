package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foodtruck-kds/internal/domain"
)

func TestAdapt_LegacyReceivedPendingPickup(t *testing.T) {
	view := Adapt(domain.OrderRecord{
		ID:             "ord-1",
		Status:         "received",
		DeliveryMethod: "pickup",
		Payment:        &domain.RecordPayment{PaymentStatus: "pending"},
	})

	assert.Equal(t, domain.StatusNew, view.KitchenStatus)
	assert.Equal(t, domain.PaymentUnpaid, view.PaymentStatus)
	assert.Equal(t, domain.FulfillmentPickup, view.Fulfillment)
}

func TestAdapt_LegacyStatusTable(t *testing.T) {
	cases := map[string]domain.KitchenStatus{
		"created":   domain.StatusNew,
		"received":  domain.StatusNew,
		"accepted":  domain.StatusQueued,
		"prep":      domain.StatusPrepping,
		"cook":      domain.StatusPrepping,
		"ready":     domain.StatusReady,
		"delivered": domain.StatusDone,
		"cancelled": domain.StatusCanceled,
		"RECEIVED":  domain.StatusNew,
		"whatever":  domain.StatusNew,
		"":          domain.StatusNew,
	}
	for legacy, want := range cases {
		view := Adapt(domain.OrderRecord{ID: "x", Status: legacy})
		assert.Equal(t, want, view.KitchenStatus, "status %q", legacy)
	}
}

func TestAdapt_PaymentDefaults(t *testing.T) {
	assert.Equal(t, domain.PaymentUnpaid, Adapt(domain.OrderRecord{ID: "x"}).PaymentStatus)
	assert.Equal(t, domain.PaymentPaid, Adapt(domain.OrderRecord{
		ID: "x", Payment: &domain.RecordPayment{PaymentStatus: "paid"},
	}).PaymentStatus)
	assert.Equal(t, domain.PaymentIssue, Adapt(domain.OrderRecord{
		ID: "x", Payment: &domain.RecordPayment{PaymentStatus: "failed"},
	}).PaymentStatus)
}

func TestAdapt_Channel(t *testing.T) {
	assert.Equal(t, domain.ChannelWeb, Adapt(domain.OrderRecord{
		ID: "x", Payment: &domain.RecordPayment{Provider: "stripe"},
	}).Channel)
	assert.Equal(t, domain.ChannelOnSite, Adapt(domain.OrderRecord{
		ID: "x", Payment: &domain.RecordPayment{Provider: "manual"},
	}).Channel)
	assert.Equal(t, domain.ChannelOnSite, Adapt(domain.OrderRecord{
		ID: "x", Payment: &domain.RecordPayment{Source: "pos"},
	}).Channel)
	assert.Equal(t, domain.ChannelWeb, Adapt(domain.OrderRecord{ID: "x"}).Channel)
}

func TestAdapt_CanonicalPassThrough(t *testing.T) {
	view := Adapt(domain.OrderRecord{
		ID:          "ord-2",
		Status:      "received", // stale legacy field must lose
		CreatedAtMs: 1_700_000_000_000,
		UpdatedAtMs: 1_700_000_100_000,
		Kitchen: &domain.CanonicalState{
			Status:        "PREPPING",
			PaymentStatus: "PAID",
			Channel:       "ON_SITE",
			PromisedAtMs:  1_700_000_900_000,
			Timeline:      map[string]int64{"accepted_at": 1_700_000_050_000},
		},
	})

	assert.Equal(t, domain.StatusPrepping, view.KitchenStatus)
	assert.Equal(t, domain.PaymentPaid, view.PaymentStatus)
	assert.Equal(t, domain.ChannelOnSite, view.Channel)
	assert.Equal(t, int64(1_700_000_900_000), view.PromisedAtMs)
	assert.Equal(t, int64(1_700_000_050_000), view.Timeline.AcceptedAtMs)
	assert.Equal(t, int64(1_700_000_100_000), view.UpdatedAtMs)
}

func TestAdapt_CanonicalBackfillsMsFromISO(t *testing.T) {
	promised := time.Date(2026, 3, 14, 12, 30, 0, 0, time.UTC)
	view := Adapt(domain.OrderRecord{
		ID:        "ord-3",
		CreatedAt: "2026-03-14T12:00:00Z",
		Kitchen:   &domain.CanonicalState{Status: "QUEUED", PromisedAt: promised.Format(time.RFC3339)},
	})

	assert.Equal(t, domain.StatusQueued, view.KitchenStatus)
	assert.Equal(t, promised.UnixMilli(), view.PromisedAtMs)
	assert.Equal(t, promised.Add(-30*time.Minute).UnixMilli(), view.CreatedAtMs)
}

func TestAdapt_CanonicalUnknownStatusFallsBackToLegacy(t *testing.T) {
	view := Adapt(domain.OrderRecord{
		ID:      "ord-4",
		Status:  "ready",
		Kitchen: &domain.CanonicalState{Status: "mystery"},
	})
	assert.Equal(t, domain.StatusReady, view.KitchenStatus)
}

func TestAdapt_PromisedFromPickupTime(t *testing.T) {
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	view := Adapt(domain.OrderRecord{
		ID:          "ord-5",
		CreatedAtMs: created.UnixMilli(),
		PickupTime:  "12:45",
	})
	want := time.Date(2026, 3, 14, 12, 45, 0, 0, time.UTC)
	assert.Equal(t, want.UnixMilli(), view.PromisedAtMs)
}

func TestAdapt_PromisedToleratesSlightlyBeforeCreated(t *testing.T) {
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	view := Adapt(domain.OrderRecord{
		ID:          "ord-6",
		CreatedAtMs: created.UnixMilli(),
		PickupTime:  "09:30", // 30 min before creation, inside tolerance
	})
	want := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, want.UnixMilli(), view.PromisedAtMs)
}

func TestAdapt_PromisedFarBeforeCreatedFallsBackToLead(t *testing.T) {
	created := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	view := Adapt(domain.OrderRecord{
		ID:          "ord-7",
		CreatedAtMs: created.UnixMilli(),
		PickupTime:  "00:15", // ~20h before creation, beyond tolerance
	})
	assert.Equal(t, created.Add(15*time.Minute).UnixMilli(), view.PromisedAtMs)
}

func TestAdapt_LeadTimeByFulfillment(t *testing.T) {
	created := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	pickup := Adapt(domain.OrderRecord{ID: "p", CreatedAtMs: created.UnixMilli()})
	delivery := Adapt(domain.OrderRecord{ID: "d", CreatedAtMs: created.UnixMilli(), DeliveryMethod: "delivery"})

	require.Equal(t, domain.FulfillmentDelivery, delivery.Fulfillment)
	assert.Equal(t, created.Add(15*time.Minute).UnixMilli(), pickup.PromisedAtMs)
	assert.Equal(t, created.Add(35*time.Minute).UnixMilli(), delivery.PromisedAtMs)
}

func TestAdapt_UnparsableTimestampsDegrade(t *testing.T) {
	view := Adapt(domain.OrderRecord{ID: "ord-8", CreatedAt: "not a timestamp", PickupTime: "25:99"})
	assert.Zero(t, view.CreatedAtMs)
	assert.Zero(t, view.PromisedAtMs)
	assert.Equal(t, domain.StatusNew, view.KitchenStatus)
}
