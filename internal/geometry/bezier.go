// Package geometry computes connector curves between a task row and its
// anchor. Pure functions only; callers re-read live bounding boxes on every
// paint and feed the current endpoints in.
package geometry

import (
	"math"
	"strconv"
	"strings"

	"github.com/tasklens/backend/internal/models"
)

// Control point offset scales with the horizontal span so short connectors
// curve gently and long ones sweep wider.
const (
	curveTension  = 0.5
	minimumOffset = 24
)

// CurvePath returns an SVG cubic path from start to end. The curve always
// exits start rightward and enters end leftward, whatever the relative
// vertical position of the endpoints. Deterministic: identical inputs yield
// byte-identical path strings.
func CurvePath(start, end models.Position) string {
	offset := math.Abs(end.X-start.X) * curveTension
	if offset < minimumOffset {
		offset = minimumOffset
	}

	var b strings.Builder
	b.WriteString("M ")
	writePoint(&b, start.X, start.Y)
	b.WriteString(" C ")
	writePoint(&b, start.X+offset, start.Y)
	b.WriteString(", ")
	writePoint(&b, end.X-offset, end.Y)
	b.WriteString(", ")
	writePoint(&b, end.X, end.Y)
	return b.String()
}

func writePoint(b *strings.Builder, x, y float64) {
	b.WriteString(formatCoord(x))
	b.WriteByte(' ')
	b.WriteString(formatCoord(y))
}

// formatCoord renders a coordinate with at most two decimals and no
// trailing zeros, so paths stay compact and stable.
func formatCoord(v float64) string {
	rounded := math.Round(v*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
