// Package storage persists overlay state slices. Every backend implements
// the Adapter contract: loads never fail (unreadable slices are omitted and
// logged, the caller falls back to defaults), and each save is an
// independent, idempotent, best-effort write.
package storage

import (
	"context"

	"github.com/tasklens/backend/internal/models"
)

// Slice names one independently persisted piece of overlay state. The same
// names appear as local record keys and as the "type" field of remote
// writes.
type Slice string

const (
	SlicePosition         Slice = "position"
	SliceConnections      Slice = "connections"
	SliceDisplayMode      Slice = "displayMode"
	SliceHidden           Slice = "hidden"
	SliceShowLines        Slice = "showLines"
	SliceShowBadges       Slice = "showBadges"
	SliceLineColor        Slice = "lineColor"
	SliceLineOpacity      Slice = "lineOpacity"
	SliceComponentOpacity Slice = "componentOpacity"
	SliceStatuses         Slice = "statuses"
)

// SliceCollapsed is the legacy boolean record older deployments wrote before
// displayMode existed. It is read-mapped (true→compact, false→full) when no
// displayMode record is present, never written.
const SliceCollapsed Slice = "collapsed"

// Slices lists every current slice in persistence order.
var Slices = []Slice{
	SlicePosition,
	SliceConnections,
	SliceDisplayMode,
	SliceHidden,
	SliceShowLines,
	SliceShowBadges,
	SliceLineColor,
	SliceLineOpacity,
	SliceComponentOpacity,
	SliceStatuses,
}

// Known reports whether s is a current (non-legacy) slice name.
func (s Slice) Known() bool {
	for _, known := range Slices {
		if s == known {
			return true
		}
	}
	return false
}

// Adapter is the pluggable persistence backend behind a state store. The
// store never blocks a UI interaction on any of these calls and never
// depends on a save succeeding; save errors are logged by the caller and
// otherwise ignored.
type Adapter interface {
	// LoadState returns whatever slices could be read. It never fails:
	// unreadable or invalid slices are simply absent from the result.
	LoadState(ctx context.Context) models.PartialState

	SavePosition(ctx context.Context, pos models.Position) error
	SaveConnections(ctx context.Context, conns []models.Connection) error
	SaveDisplayMode(ctx context.Context, mode models.DisplayMode) error
	SaveHidden(ctx context.Context, hidden bool) error
	SaveShowLines(ctx context.Context, show bool) error
	SaveShowBadges(ctx context.Context, show bool) error
	SaveLineColor(ctx context.Context, color string) error
	SaveLineOpacity(ctx context.Context, opacity float64) error
	SaveComponentOpacity(ctx context.Context, opacity float64) error
	SaveStatuses(ctx context.Context, statuses map[int]models.TaskStatus) error
}
