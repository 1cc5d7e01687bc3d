package storage

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tasklens/backend/internal/models"
)

// Slice values are serialized independently so one corrupt record never
// poisons the rest of the state. Decoding validates as it goes: anything
// out of range or malformed is an error, and callers treat the slice as
// absent.

// EncodeSlicePartial extracts one slice from a partial state as JSON.
// Returns (nil, false) when the slice is absent.
func EncodeSlicePartial(p models.PartialState, slice Slice) (json.RawMessage, bool) {
	var v any
	switch slice {
	case SlicePosition:
		if p.Position == nil {
			return nil, false
		}
		v = *p.Position
	case SliceConnections:
		if p.Connections == nil {
			return nil, false
		}
		v = p.Connections
	case SliceDisplayMode:
		if p.DisplayMode == nil {
			return nil, false
		}
		v = *p.DisplayMode
	case SliceHidden:
		if p.IsHidden == nil {
			return nil, false
		}
		v = *p.IsHidden
	case SliceShowLines:
		if p.ShowLines == nil {
			return nil, false
		}
		v = *p.ShowLines
	case SliceShowBadges:
		if p.ShowBadges == nil {
			return nil, false
		}
		v = *p.ShowBadges
	case SliceLineColor:
		if p.LineColor == nil {
			return nil, false
		}
		v = *p.LineColor
	case SliceLineOpacity:
		if p.LineOpacity == nil {
			return nil, false
		}
		v = *p.LineOpacity
	case SliceComponentOpacity:
		if p.ComponentOpacity == nil {
			return nil, false
		}
		v = *p.ComponentOpacity
	case SliceStatuses:
		if p.Statuses == nil {
			return nil, false
		}
		v = encodeStatuses(p.Statuses)
	default:
		return nil, false
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return raw, true
}

// DecodeSliceInto parses and validates one slice value into the partial.
// On error the partial is left untouched.
func DecodeSliceInto(p *models.PartialState, slice Slice, raw []byte) error {
	switch slice {
	case SlicePosition:
		var pos models.Position
		if err := json.Unmarshal(raw, &pos); err != nil {
			return fmt.Errorf("position: %w", err)
		}
		p.Position = &pos
	case SliceConnections:
		var conns []models.Connection
		if err := json.Unmarshal(raw, &conns); err != nil {
			return fmt.Errorf("connections: %w", err)
		}
		p.Connections = models.NormalizeConnections(conns)
	case SliceDisplayMode:
		var mode models.DisplayMode
		if err := json.Unmarshal(raw, &mode); err != nil {
			return fmt.Errorf("displayMode: %w", err)
		}
		if !mode.Valid() {
			return fmt.Errorf("displayMode: unknown mode %q", mode)
		}
		p.DisplayMode = &mode
	case SliceHidden:
		return decodeBool(raw, &p.IsHidden, "hidden")
	case SliceShowLines:
		return decodeBool(raw, &p.ShowLines, "showLines")
	case SliceShowBadges:
		return decodeBool(raw, &p.ShowBadges, "showBadges")
	case SliceLineColor:
		var color string
		if err := json.Unmarshal(raw, &color); err != nil {
			return fmt.Errorf("lineColor: %w", err)
		}
		if color == "" {
			return fmt.Errorf("lineColor: empty")
		}
		p.LineColor = &color
	case SliceLineOpacity:
		return decodeRangedFloat(raw, &p.LineOpacity, 0, 1, "lineOpacity")
	case SliceComponentOpacity:
		return decodeRangedFloat(raw, &p.ComponentOpacity, 0.1, 1, "componentOpacity")
	case SliceStatuses:
		statuses, err := decodeStatuses(raw)
		if err != nil {
			return err
		}
		p.Statuses = statuses
	default:
		return fmt.Errorf("unknown slice %q", slice)
	}
	return nil
}

func decodeBool(raw []byte, dst **bool, name string) error {
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	*dst = &b
	return nil
}

// decodeRangedFloat rejects non-numeric and out-of-range values so a
// persisted opacity of 1.5 or "abc" falls back to the next precedence level.
func decodeRangedFloat(raw []byte, dst **float64, min, max float64, name string) error {
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if v < min || v > max {
		return fmt.Errorf("%s: %v outside [%v, %v]", name, v, min, max)
	}
	*dst = &v
	return nil
}

// Statuses serialize as a JSON object keyed by the decimal task index.
func encodeStatuses(statuses map[int]models.TaskStatus) map[string]models.TaskStatus {
	out := make(map[string]models.TaskStatus, len(statuses))
	for idx, st := range statuses {
		out[strconv.Itoa(idx)] = st
	}
	return out
}

func decodeStatuses(raw []byte) (map[int]models.TaskStatus, error) {
	var byKey map[string]models.TaskStatus
	if err := json.Unmarshal(raw, &byKey); err != nil {
		return nil, fmt.Errorf("statuses: %w", err)
	}
	out := make(map[int]models.TaskStatus, len(byKey))
	for key, st := range byKey {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 || !st.Valid() {
			// Drop unparseable entries rather than losing the whole map.
			continue
		}
		out[idx] = st
	}
	return out, nil
}

// DecodeRecords folds a bag of raw slice records into a partial state,
// applying the legacy collapsed→displayMode mapping. Invalid slices are
// skipped and reported through onError (which may be nil).
func DecodeRecords(records map[Slice]json.RawMessage, onError func(Slice, error)) models.PartialState {
	var p models.PartialState
	for slice, raw := range records {
		if slice == SliceCollapsed {
			continue
		}
		if err := DecodeSliceInto(&p, slice, raw); err != nil {
			if onError != nil {
				onError(slice, err)
			}
		}
	}
	if p.DisplayMode == nil {
		if raw, ok := records[SliceCollapsed]; ok {
			var collapsed bool
			if err := json.Unmarshal(raw, &collapsed); err == nil {
				mode := models.DisplayModeFull
				if collapsed {
					mode = models.DisplayModeCompact
				}
				p.DisplayMode = &mode
			} else if onError != nil {
				onError(SliceCollapsed, err)
			}
		}
	}
	return p
}
