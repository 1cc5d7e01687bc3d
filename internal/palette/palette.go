// Package palette is the registry consumer behind the global command
// palette: it searches tasks across every mounted overlay instance and
// dispatches the instance-supplied actions.
package palette

import (
	"fmt"

	"github.com/sahilm/fuzzy"
	"github.com/tasklens/backend/internal/models"
	"github.com/tasklens/backend/internal/registry"
)

// Match is one palette search hit.
type Match struct {
	InstanceKey   string `json:"instanceKey"`
	InstanceLabel string `json:"instanceLabel"`
	TaskIndex     int    `json:"taskIndex"`
	TaskText      string `json:"taskText"`
	Connected     bool   `json:"connected"`
	Score         int    `json:"score"`
}

// Palette aggregates overlay instances from a registry.
type Palette struct {
	reg *registry.Registry
}

// New returns a palette over the given registry.
func New(reg *registry.Registry) *Palette {
	return &Palette{reg: reg}
}

// Subscribe forwards registry updates, for palettes that re-render on every
// instance change.
func (p *Palette) Subscribe(fn registry.Listener) func() {
	return p.reg.Subscribe(fn)
}

// Instances returns the live instance list.
func (p *Palette) Instances() []models.InstanceSnapshot {
	return p.reg.Instances()
}

type candidate struct {
	instance models.InstanceSnapshot
	task     models.TaskSnapshot
	haystack string
}

// Search fuzzy-matches query against every task of every instance, best
// matches first. An empty query returns all tasks in registry order.
func (p *Palette) Search(query string) []Match {
	var candidates []candidate
	for _, inst := range p.reg.Instances() {
		for _, task := range inst.Tasks {
			candidates = append(candidates, candidate{
				instance: inst,
				task:     task,
				haystack: fmt.Sprintf("%s %s", inst.Label, task.Text),
			})
		}
	}

	if query == "" {
		out := make([]Match, len(candidates))
		for i, c := range candidates {
			out[i] = toMatch(c, 0)
		}
		return out
	}

	haystacks := make([]string, len(candidates))
	for i, c := range candidates {
		haystacks[i] = c.haystack
	}

	results := fuzzy.Find(query, haystacks)
	out := make([]Match, len(results))
	for i, res := range results {
		out[i] = toMatch(candidates[res.Index], res.Score)
	}
	return out
}

func toMatch(c candidate, score int) Match {
	return Match{
		InstanceKey:   c.instance.InstanceKey,
		InstanceLabel: c.instance.Label,
		TaskIndex:     c.task.Index,
		TaskText:      c.task.Text,
		Connected:     c.task.Connected,
		Score:         score,
	}
}

// Focus invokes the focus action of the chosen instance. Focusing never
// mutates overlay state; it is a navigation callback the instance supplied.
// Returns false when the instance is unknown or offers no such action.
func (p *Palette) Focus(instanceKey string, taskIndex int) bool {
	inst, ok := p.find(instanceKey)
	if !ok || inst.Actions.Focus == nil {
		return false
	}
	inst.Actions.Focus(taskIndex)
	return true
}

// Show unhides the chosen instance.
func (p *Palette) Show(instanceKey string) bool {
	inst, ok := p.find(instanceKey)
	if !ok || inst.Actions.Show == nil {
		return false
	}
	inst.Actions.Show()
	return true
}

// Hide hides the chosen instance.
func (p *Palette) Hide(instanceKey string) bool {
	inst, ok := p.find(instanceKey)
	if !ok || inst.Actions.Hide == nil {
		return false
	}
	inst.Actions.Hide()
	return true
}

// ResetConnections clears every anchor of the chosen instance.
func (p *Palette) ResetConnections(instanceKey string) bool {
	inst, ok := p.find(instanceKey)
	if !ok || inst.Actions.ResetConnections == nil {
		return false
	}
	inst.Actions.ResetConnections()
	return true
}

// ResetStatuses clears every task status of the chosen instance.
func (p *Palette) ResetStatuses(instanceKey string) bool {
	inst, ok := p.find(instanceKey)
	if !ok || inst.Actions.ResetStatuses == nil {
		return false
	}
	inst.Actions.ResetStatuses()
	return true
}

func (p *Palette) find(instanceKey string) (models.InstanceSnapshot, bool) {
	for _, inst := range p.reg.Instances() {
		if inst.InstanceKey == instanceKey {
			return inst, true
		}
	}
	return models.InstanceSnapshot{}, false
}
