package commands

import (
	"fmt"

	"foodtruck-kds/internal/domain"
)

// ConflictError means the expected version stamp no longer matched
// server state: the order was updated elsewhere. Never retried
// automatically.
type ConflictError struct {
	OrderID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("order %s was updated elsewhere, retry", e.OrderID)
}

// RefusedError means a server-side guard rejected the transition. Reason
// is surfaced to the acting user verbatim; CurrentStatus is the order's
// actual status when the server included it.
type RefusedError struct {
	OrderID       string
	Reason        string
	CurrentStatus domain.KitchenStatus // may be empty
}

func (e *RefusedError) Error() string {
	if e.CurrentStatus != "" {
		return fmt.Sprintf("transition refused for %s (now %s): %s", e.OrderID, e.CurrentStatus, e.Reason)
	}
	return fmt.Sprintf("transition refused for %s: %s", e.OrderID, e.Reason)
}
