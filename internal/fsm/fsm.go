// Package fsm defines the guarded kitchen state machine: the closed set of
// legal status transitions, the payment guard on handoff, and the timeline
// milestone each action stamps.
package fsm

import (
	"errors"
	"fmt"

	"foodtruck-kds/internal/domain"
)

// PaymentRequiredReason is shown to staff when handoff is blocked.
const PaymentRequiredReason = "payment not confirmed"

var (
	ErrIllegalTransition = errors.New("illegal transition")
	ErrPaymentRequired   = errors.New(PaymentRequiredReason)
)

type transition struct {
	from   domain.KitchenStatus
	action domain.Action
	to     domain.KitchenStatus
}

// transitions is the single source of truth for legal edges. DONE,
// CANCELED and EXPIRED have no outgoing edges.
var transitions = []transition{
	{domain.StatusNew, domain.ActionAccept, domain.StatusQueued},
	{domain.StatusNew, domain.ActionCancel, domain.StatusCanceled},
	{domain.StatusQueued, domain.ActionStart, domain.StatusPrepping},
	{domain.StatusQueued, domain.ActionCancel, domain.StatusCanceled},
	{domain.StatusPrepping, domain.ActionReady, domain.StatusReady},
	{domain.StatusPrepping, domain.ActionCancel, domain.StatusCanceled},
	{domain.StatusReady, domain.ActionHandoff, domain.StatusHandoff},
	{domain.StatusReady, domain.ActionCancel, domain.StatusCanceled},
	{domain.StatusHandoff, domain.ActionDone, domain.StatusDone},
}

var edgeIndex = func() map[domain.KitchenStatus]map[domain.Action]domain.KitchenStatus {
	idx := make(map[domain.KitchenStatus]map[domain.Action]domain.KitchenStatus)
	for _, t := range transitions {
		if idx[t.from] == nil {
			idx[t.from] = make(map[domain.Action]domain.KitchenStatus)
		}
		idx[t.from][t.action] = t.to
	}
	return idx
}()

var milestones = map[domain.Action]domain.Milestone{
	domain.ActionAccept:  domain.MilestoneAccepted,
	domain.ActionStart:   domain.MilestoneStarted,
	domain.ActionReady:   domain.MilestoneReady,
	domain.ActionHandoff: domain.MilestoneHandedOff,
	domain.ActionDone:    domain.MilestoneDone,
	domain.ActionCancel:  domain.MilestoneCanceled,
}

// Next returns the status an action leads to from the given status.
func Next(from domain.KitchenStatus, action domain.Action) (domain.KitchenStatus, bool) {
	to, ok := edgeIndex[from][action]
	return to, ok
}

// MilestoneFor returns the timeline milestone an action stamps.
func MilestoneFor(action domain.Action) domain.Milestone {
	return milestones[action]
}

// Check validates an action against a view, including the payment guard.
// A nil error means the action may be dispatched.
func Check(view domain.OrderView, action domain.Action) error {
	if _, ok := Next(view.KitchenStatus, action); !ok {
		return fmt.Errorf("%w: %s from %s", ErrIllegalTransition, action, view.KitchenStatus)
	}
	if action == domain.ActionHandoff && view.PaymentStatus != domain.PaymentPaid {
		return ErrPaymentRequired
	}
	return nil
}

// Option is one action offered for an order. Disabled options carry the
// reason so the UI can render it instead of hiding the button.
type Option struct {
	Action  domain.Action `json:"action"`
	Enabled bool          `json:"enabled"`
	Reason  string        `json:"reason,omitempty"`
}

// Options lists the actions available from the view's status in table
// order. The handoff option is present but disabled while unpaid.
func Options(view domain.OrderView) []Option {
	var opts []Option
	for _, t := range transitions {
		if t.from != view.KitchenStatus {
			continue
		}
		opt := Option{Action: t.action, Enabled: true}
		if t.action == domain.ActionHandoff && view.PaymentStatus != domain.PaymentPaid {
			opt.Enabled = false
			opt.Reason = PaymentRequiredReason
		}
		opts = append(opts, opt)
	}
	return opts
}

// MarkPaidAvailable reports whether the separate mark-paid operation
// should be offered. It is not a kitchen transition: it only flips the
// payment status and is offered only while unpaid.
func MarkPaidAvailable(view domain.OrderView) bool {
	return view.PaymentStatus == domain.PaymentUnpaid && !view.KitchenStatus.Terminal()
}
