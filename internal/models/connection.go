package models

// Connection anchors one task row to either a DOM element (via selector)
// or a fixed viewport position. At most one connection exists per task
// index; a later entry for the same index replaces the earlier one.
type Connection struct {
	TodoIndex      int       `json:"todoIndex"`
	TargetSelector string    `json:"targetSelector,omitempty"`
	TargetPosition *Position `json:"targetPosition,omitempty"`
	TargetLabel    string    `json:"targetLabel,omitempty"`
}

// Anchored reports whether the connection points at a DOM element rather
// than a free position.
func (c Connection) Anchored() bool {
	return c.TargetPosition == nil && c.TargetSelector != ""
}

// NormalizeConnections enforces the connection invariants:
//   - at most one entry per TodoIndex, last write wins, at the position
//     where the index first appeared
//   - a connection holding a TargetPosition drops any stale TargetSelector
//     (editing an anchor into a free position silently converts it)
//   - negative indices are discarded
func NormalizeConnections(conns []Connection) []Connection {
	out := make([]Connection, 0, len(conns))
	at := make(map[int]int, len(conns))
	for _, c := range conns {
		if c.TodoIndex < 0 {
			continue
		}
		if c.TargetPosition != nil {
			c.TargetSelector = ""
			p := *c.TargetPosition
			c.TargetPosition = &p
		}
		if i, ok := at[c.TodoIndex]; ok {
			out[i] = c
			continue
		}
		at[c.TodoIndex] = len(out)
		out = append(out, c)
	}
	return out
}
