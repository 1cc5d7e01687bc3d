package models

// DisplayMode controls how much of the overlay panel is rendered.
type DisplayMode string

const (
	DisplayModeFull    DisplayMode = "full"
	DisplayModeCompact DisplayMode = "compact"
	DisplayModeMinimal DisplayMode = "minimal"
)

// Valid reports whether m is one of the known display modes.
func (m DisplayMode) Valid() bool {
	switch m {
	case DisplayModeFull, DisplayModeCompact, DisplayModeMinimal:
		return true
	}
	return false
}

// TaskStatus is the per-task progress marker shown in the overlay.
type TaskStatus string

const (
	StatusTodo    TaskStatus = "todo"
	StatusWorking TaskStatus = "working"
	StatusDone    TaskStatus = "done"
)

// Valid reports whether s is one of the known statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusTodo, StatusWorking, StatusDone:
		return true
	}
	return false
}

// Position is a point in viewport coordinates.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// OverlayState is the full persisted state of one overlay instance.
// Statuses and Connections key by integer index into the externally
// supplied task list; the state carries no task content.
type OverlayState struct {
	Position         Position           `json:"position"`
	Connections      []Connection       `json:"connections"`
	DisplayMode      DisplayMode        `json:"displayMode"`
	IsHidden         bool               `json:"isHidden"`
	ShowLines        bool               `json:"showLines"`
	ShowBadges       bool               `json:"showBadges"`
	LineColor        string             `json:"lineColor"`
	LineOpacity      float64            `json:"lineOpacity"` // 0..1
	ComponentOpacity float64            `json:"componentOpacity"` // 0.1..1
	Statuses         map[int]TaskStatus `json:"statuses"`
}

// DefaultState returns the state used before hydration.
func DefaultState() OverlayState {
	return OverlayState{
		Position:         Position{X: 20, Y: 20},
		Connections:      []Connection{},
		DisplayMode:      DisplayModeFull,
		IsHidden:         false,
		ShowLines:        true,
		ShowBadges:       true,
		LineColor:        "#6366f1",
		LineOpacity:      0.6,
		ComponentOpacity: 1.0,
		Statuses:         map[int]TaskStatus{},
	}
}

// Clone returns a deep copy so listeners cannot mutate store-owned state.
func (s OverlayState) Clone() OverlayState {
	out := s
	out.Connections = make([]Connection, len(s.Connections))
	copy(out.Connections, s.Connections)
	out.Statuses = make(map[int]TaskStatus, len(s.Statuses))
	for k, v := range s.Statuses {
		out.Statuses[k] = v
	}
	return out
}

// ConnectedCount returns the number of tasks with a connection.
func (s OverlayState) ConnectedCount() int {
	return len(s.Connections)
}
