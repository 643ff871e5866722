// Package adapter normalizes raw upstream order records into the canonical
// OrderView. Adapt is pure and total: malformed input degrades to zero
// fields and conservative defaults, it never panics.
package adapter

import (
	"strconv"
	"strings"
	"time"

	"foodtruck-kds/internal/domain"
)

const (
	// Lead times used when a record carries no explicit pickup time.
	pickupLeadMinutes   = 15
	deliveryLeadMinutes = 35

	// A projected pickup time may land this far before created_at and
	// still be accepted; absorbs timezone noise in legacy writes.
	pickupToleranceMs = 3 * 60 * 60 * 1000
)

// Adapt maps a raw record into an OrderView.
func Adapt(raw domain.OrderRecord) domain.OrderView {
	view := domain.OrderView{
		ID:          raw.ID,
		CreatedAtMs: createdMs(raw),
		UpdatedAtMs: raw.UpdatedAtMs,
		Items:       raw.Items,
		Customer: domain.Customer{
			Name:  raw.CustomerName,
			Phone: raw.CustomerPhone,
		},
	}

	if canonical := raw.Kitchen; canonical != nil {
		if status, ok := domain.ParseKitchenStatus(canonical.Status); ok {
			view.KitchenStatus = status
			view.PaymentStatus = paymentFromCanonical(canonical, raw.Payment)
			view.Fulfillment = fulfillmentFrom(firstNonEmpty(canonical.Fulfillment, raw.DeliveryMethod))
			view.Channel = channelFromCanonical(canonical, raw.Payment)
			view.PromisedAtMs = canonicalPromised(canonical, view)
			view.Timeline = timelineFrom(canonical.Timeline)
			return view
		}
	}

	// Legacy flat record.
	view.KitchenStatus = legacyStatus(raw.Status)
	view.PaymentStatus = legacyPayment(raw.Payment)
	view.Fulfillment = fulfillmentFrom(raw.DeliveryMethod)
	view.Channel = legacyChannel(raw.Payment)
	view.PromisedAtMs = derivePromised(raw.PickupTime, view.CreatedAtMs, view.Fulfillment)
	return view
}

// legacyStatus maps the legacy flat status string onto the kitchen
// lifecycle. Unrecognized values map to NEW conservatively; a terminal
// order resurrected this way is preferable to one silently dropped.
func legacyStatus(s string) domain.KitchenStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "created", "received":
		return domain.StatusNew
	case "accepted":
		return domain.StatusQueued
	case "prep", "cook":
		return domain.StatusPrepping
	case "ready":
		return domain.StatusReady
	case "delivered":
		return domain.StatusDone
	case "cancelled":
		return domain.StatusCanceled
	default:
		return domain.StatusNew
	}
}

func legacyPayment(p *domain.RecordPayment) domain.PaymentStatus {
	if p == nil {
		return domain.PaymentUnpaid
	}
	switch strings.ToLower(strings.TrimSpace(p.PaymentStatus)) {
	case "paid":
		return domain.PaymentPaid
	case "pending":
		return domain.PaymentUnpaid
	case "failed":
		return domain.PaymentIssue
	default:
		return domain.PaymentUnpaid
	}
}

func legacyChannel(p *domain.RecordPayment) domain.Channel {
	if p == nil {
		return domain.ChannelWeb
	}
	provider := strings.ToLower(strings.TrimSpace(p.Provider))
	source := strings.ToLower(strings.TrimSpace(p.Source))
	switch {
	case provider == "stripe":
		return domain.ChannelWeb
	case provider == "manual", source == "manual", source == "on_site", source == "onsite", source == "pos":
		return domain.ChannelOnSite
	default:
		return domain.ChannelWeb
	}
}

func fulfillmentFrom(method string) domain.Fulfillment {
	if strings.EqualFold(strings.TrimSpace(method), "delivery") {
		return domain.FulfillmentDelivery
	}
	return domain.FulfillmentPickup
}

func paymentFromCanonical(c *domain.CanonicalState, p *domain.RecordPayment) domain.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(c.PaymentStatus)) {
	case string(domain.PaymentPaid):
		return domain.PaymentPaid
	case string(domain.PaymentUnpaid):
		return domain.PaymentUnpaid
	case string(domain.PaymentIssue):
		return domain.PaymentIssue
	}
	return legacyPayment(p)
}

func channelFromCanonical(c *domain.CanonicalState, p *domain.RecordPayment) domain.Channel {
	switch strings.ToUpper(strings.TrimSpace(c.Channel)) {
	case string(domain.ChannelWeb):
		return domain.ChannelWeb
	case string(domain.ChannelOnSite):
		return domain.ChannelOnSite
	}
	return legacyChannel(p)
}

// canonicalPromised prefers the ms field, then the ISO field, then the
// legacy derivation so a half-migrated record still sorts somewhere sane.
func canonicalPromised(c *domain.CanonicalState, view domain.OrderView) int64 {
	if c.PromisedAtMs > 0 {
		return c.PromisedAtMs
	}
	if ms := parseTimestampMs(c.PromisedAt); ms > 0 {
		return ms
	}
	return derivePromised("", view.CreatedAtMs, view.Fulfillment)
}

func timelineFrom(raw map[string]int64) domain.Timeline {
	var t domain.Timeline
	for name, ms := range raw {
		t.Set(domain.Milestone(strings.ToLower(strings.TrimSpace(name))), ms)
	}
	return t
}

// derivePromised resolves the promised-ready instant. An explicit "HH:MM"
// pickup time is projected onto created_at's calendar day and accepted
// even up to pickupToleranceMs before created_at; otherwise the promise
// is created_at plus a fulfillment-dependent lead time.
func derivePromised(pickup string, createdMs int64, f domain.Fulfillment) int64 {
	if createdMs <= 0 {
		return 0
	}
	if h, m, ok := parseClock(pickup); ok {
		created := time.UnixMilli(createdMs).UTC()
		projected := time.Date(created.Year(), created.Month(), created.Day(), h, m, 0, 0, time.UTC).UnixMilli()
		if projected >= createdMs-pickupToleranceMs {
			return projected
		}
	}
	lead := int64(pickupLeadMinutes)
	if f == domain.FulfillmentDelivery {
		lead = deliveryLeadMinutes
	}
	return createdMs + lead*60_000
}

func parseClock(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

func createdMs(raw domain.OrderRecord) int64 {
	if raw.CreatedAtMs > 0 {
		return raw.CreatedAtMs
	}
	return parseTimestampMs(raw.CreatedAt)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseTimestampMs parses an ISO-like timestamp, returning 0 when the
// value is absent or unparsable.
func parseTimestampMs(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
