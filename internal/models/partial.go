package models

// PartialState carries zero or more overlay state slices. It is what a
// storage adapter returns from a load (absent slices stay nil) and what a
// caller passes as construction-time overrides. Apply is right-biased:
// whatever is present in the partial wins over the base.
type PartialState struct {
	Position         *Position          `json:"position,omitempty"`
	Connections      []Connection       `json:"connections,omitempty"`
	DisplayMode      *DisplayMode       `json:"displayMode,omitempty"`
	IsHidden         *bool              `json:"isHidden,omitempty"`
	ShowLines        *bool              `json:"showLines,omitempty"`
	ShowBadges       *bool              `json:"showBadges,omitempty"`
	LineColor        *string            `json:"lineColor,omitempty"`
	LineOpacity      *float64           `json:"lineOpacity,omitempty"`
	ComponentOpacity *float64           `json:"componentOpacity,omitempty"`
	Statuses         map[int]TaskStatus `json:"statuses,omitempty"`
}

// Apply overlays the partial onto base and returns the result.
func (p PartialState) Apply(base OverlayState) OverlayState {
	out := base
	if p.Position != nil {
		out.Position = *p.Position
	}
	if p.Connections != nil {
		out.Connections = NormalizeConnections(p.Connections)
	}
	if p.DisplayMode != nil {
		out.DisplayMode = *p.DisplayMode
	}
	if p.IsHidden != nil {
		out.IsHidden = *p.IsHidden
	}
	if p.ShowLines != nil {
		out.ShowLines = *p.ShowLines
	}
	if p.ShowBadges != nil {
		out.ShowBadges = *p.ShowBadges
	}
	if p.LineColor != nil {
		out.LineColor = *p.LineColor
	}
	if p.LineOpacity != nil {
		out.LineOpacity = *p.LineOpacity
	}
	if p.ComponentOpacity != nil {
		out.ComponentOpacity = *p.ComponentOpacity
	}
	if p.Statuses != nil {
		out.Statuses = make(map[int]TaskStatus, len(p.Statuses))
		for k, v := range p.Statuses {
			out.Statuses[k] = v
		}
	}
	return out
}

// IsEmpty reports whether no slice is present.
func (p PartialState) IsEmpty() bool {
	return p.Position == nil && p.Connections == nil && p.DisplayMode == nil &&
		p.IsHidden == nil && p.ShowLines == nil && p.ShowBadges == nil &&
		p.LineColor == nil && p.LineOpacity == nil && p.ComponentOpacity == nil &&
		p.Statuses == nil
}
