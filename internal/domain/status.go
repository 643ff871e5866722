package domain

import "strings"

// KitchenStatus is the order's position in the preparation lifecycle.
type KitchenStatus string

const (
	StatusNew      KitchenStatus = "NEW"
	StatusQueued   KitchenStatus = "QUEUED"
	StatusPrepping KitchenStatus = "PREPPING"
	StatusReady    KitchenStatus = "READY"
	StatusHandoff  KitchenStatus = "HANDOFF"
	StatusDone     KitchenStatus = "DONE"
	StatusCanceled KitchenStatus = "CANCELED"
	StatusExpired  KitchenStatus = "EXPIRED"
)

var allStatuses = []KitchenStatus{
	StatusNew,
	StatusQueued,
	StatusPrepping,
	StatusReady,
	StatusHandoff,
	StatusDone,
	StatusCanceled,
	StatusExpired,
}

var statusSet = func() map[KitchenStatus]struct{} {
	set := make(map[KitchenStatus]struct{}, len(allStatuses))
	for _, s := range allStatuses {
		set[s] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known kitchen statuses.
func AllStatuses() []KitchenStatus {
	cp := make([]KitchenStatus, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseKitchenStatus converts a string into a known KitchenStatus.
func ParseKitchenStatus(value string) (KitchenStatus, bool) {
	normalized := KitchenStatus(strings.ToUpper(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Terminal reports whether no further kitchen transition is possible.
func (s KitchenStatus) Terminal() bool {
	switch s {
	case StatusDone, StatusCanceled, StatusExpired:
		return true
	}
	return false
}

// PaymentStatus tracks whether the order has been paid for.
type PaymentStatus string

const (
	PaymentPaid   PaymentStatus = "PAID"
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentIssue  PaymentStatus = "ISSUE"
)

// Fulfillment is how the order leaves the truck.
type Fulfillment string

const (
	FulfillmentPickup   Fulfillment = "PICKUP"
	FulfillmentDelivery Fulfillment = "DELIVERY"
)

// Channel is where the sale originated.
type Channel string

const (
	ChannelWeb    Channel = "WEB"
	ChannelOnSite Channel = "ON_SITE"
)

// Action is a single kitchen-status transition verb.
type Action string

const (
	ActionAccept  Action = "ACCEPT"
	ActionStart   Action = "START"
	ActionReady   Action = "READY"
	ActionHandoff Action = "HANDOFF"
	ActionDone    Action = "DONE"
	ActionCancel  Action = "CANCEL"
)

var actionSet = map[Action]struct{}{
	ActionAccept:  {},
	ActionStart:   {},
	ActionReady:   {},
	ActionHandoff: {},
	ActionDone:    {},
	ActionCancel:  {},
}

// ParseAction converts a string into a known Action.
func ParseAction(value string) (Action, bool) {
	normalized := Action(strings.ToUpper(strings.TrimSpace(value)))
	_, ok := actionSet[normalized]
	return normalized, ok
}

// Bucket is the promised-time urgency class of an active order.
type Bucket string

const (
	BucketLate     Bucket = "LATE"
	BucketDueSoon  Bucket = "DUE_SOON"
	BucketUpcoming Bucket = "UPCOMING"
)

// AllBuckets returns buckets in display order, most urgent first.
func AllBuckets() []Bucket {
	return []Bucket{BucketLate, BucketDueSoon, BucketUpcoming}
}

// ParseBucket converts a string into a known Bucket.
func ParseBucket(value string) (Bucket, bool) {
	normalized := Bucket(strings.ToUpper(strings.TrimSpace(value)))
	for _, b := range AllBuckets() {
		if b == normalized {
			return normalized, true
		}
	}
	return "", false
}
