// Package reorder resolves drag-and-drop gestures into permutations. It
// knows nothing about persistence; callers feed the result to the rank
// store.
package reorder

// Edge is the half of the drop target the gesture landed on.
type Edge string

const (
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
)

// WithEdge computes the new id order after dropping sourceID onto
// targetID. When source equals target or either id is absent, the input
// is returned unchanged.
func WithEdge(ids []string, sourceID, targetID string, edge Edge) []string {
	if sourceID == targetID {
		return ids
	}
	if indexOf(ids, sourceID) < 0 || indexOf(ids, targetID) < 0 {
		return ids
	}

	reduced := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != sourceID {
			reduced = append(reduced, id)
		}
	}

	pos := indexOf(reduced, targetID)
	if edge == EdgeBottom {
		pos++
	}
	if pos < 0 {
		pos = 0
	}
	if pos > len(reduced) {
		pos = len(reduced)
	}

	out := make([]string, 0, len(ids))
	out = append(out, reduced[:pos]...)
	out = append(out, sourceID)
	out = append(out, reduced[pos:]...)
	return out
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
