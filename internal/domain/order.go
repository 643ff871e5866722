package domain

// OrderRecord is the raw record pushed by the upstream store. Two
// generations exist side by side: old records carry only the flat legacy
// fields, new ones embed a canonical Kitchen sub-object that takes
// precedence. The record is never mutated here.
type OrderRecord struct {
	ID             string          `json:"id"`
	Status         string          `json:"status,omitempty"`
	CreatedAt      string          `json:"created_at,omitempty"`
	CreatedAtMs    int64           `json:"created_at_ms,omitempty"`
	UpdatedAtMs    int64           `json:"updated_at_ms,omitempty"`
	PickupTime     string          `json:"pickup_time,omitempty"` // "HH:MM"
	DeliveryMethod string          `json:"delivery_method,omitempty"`
	CustomerName   string          `json:"customer_name,omitempty"`
	CustomerPhone  string          `json:"customer_phone,omitempty"`
	Items          []RecordItem    `json:"items,omitempty"`
	Payment        *RecordPayment  `json:"payment,omitempty"`
	Kitchen        *CanonicalState `json:"kitchen,omitempty"`
}

type RecordItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Note     string  `json:"note,omitempty"`
}

type RecordPayment struct {
	PaymentStatus string `json:"paymentStatus,omitempty"`
	Provider      string `json:"provider,omitempty"`
	Source        string `json:"source,omitempty"`
}

// CanonicalState is the new-generation kitchen sub-object. Millisecond
// fields may be absent on older writes; the ISO fields are then parsed.
type CanonicalState struct {
	Status        string           `json:"status"`
	PaymentStatus string           `json:"payment_status,omitempty"`
	Fulfillment   string           `json:"fulfillment,omitempty"`
	Channel       string           `json:"channel,omitempty"`
	PromisedAt    string           `json:"promised_at,omitempty"`
	PromisedAtMs  int64            `json:"promised_at_ms,omitempty"`
	Timeline      map[string]int64 `json:"timeline,omitempty"` // milestone -> ms
}

// OrderView is the canonical projection rendered to kitchen staff. It is
// recomputed on every feed emission and never persisted.
type OrderView struct {
	ID            string        `json:"id"`
	CreatedAtMs   int64         `json:"created_at_ms"`
	PromisedAtMs  int64         `json:"promised_at_ms"` // 0 when unresolvable
	KitchenStatus KitchenStatus `json:"kitchen_status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Fulfillment   Fulfillment   `json:"fulfillment"`
	Channel       Channel       `json:"channel"`
	Items         []RecordItem  `json:"items,omitempty"`
	Customer      Customer      `json:"customer"`
	Timeline      Timeline      `json:"timeline"`
	UpdatedAtMs   int64         `json:"updated_at_ms,omitempty"` // 0 when unknown
}

type Customer struct {
	Name  string `json:"name,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Milestone names a timeline timestamp set when an action lands.
type Milestone string

const (
	MilestoneAccepted  Milestone = "accepted_at"
	MilestoneStarted   Milestone = "started_at"
	MilestoneReady     Milestone = "ready_at"
	MilestoneHandedOff Milestone = "handed_off_at"
	MilestoneDone      Milestone = "done_at"
	MilestoneCanceled  Milestone = "canceled_at"
)

// Timeline holds the millisecond timestamps of lifecycle milestones.
// Zero means the milestone has not been reached.
type Timeline struct {
	AcceptedAtMs  int64 `json:"accepted_at_ms,omitempty"`
	StartedAtMs   int64 `json:"started_at_ms,omitempty"`
	ReadyAtMs     int64 `json:"ready_at_ms,omitempty"`
	HandedOffAtMs int64 `json:"handed_off_at_ms,omitempty"`
	DoneAtMs      int64 `json:"done_at_ms,omitempty"`
	CanceledAtMs  int64 `json:"canceled_at_ms,omitempty"`
}

// Set records a milestone timestamp. Unknown milestones are ignored.
func (t *Timeline) Set(m Milestone, atMs int64) {
	switch m {
	case MilestoneAccepted:
		t.AcceptedAtMs = atMs
	case MilestoneStarted:
		t.StartedAtMs = atMs
	case MilestoneReady:
		t.ReadyAtMs = atMs
	case MilestoneHandedOff:
		t.HandedOffAtMs = atMs
	case MilestoneDone:
		t.DoneAtMs = atMs
	case MilestoneCanceled:
		t.CanceledAtMs = atMs
	}
}

// Get returns the recorded timestamp for a milestone, 0 if unset.
func (t Timeline) Get(m Milestone) int64 {
	switch m {
	case MilestoneAccepted:
		return t.AcceptedAtMs
	case MilestoneStarted:
		return t.StartedAtMs
	case MilestoneReady:
		return t.ReadyAtMs
	case MilestoneHandedOff:
		return t.HandedOffAtMs
	case MilestoneDone:
		return t.DoneAtMs
	case MilestoneCanceled:
		return t.CanceledAtMs
	}
	return 0
}
