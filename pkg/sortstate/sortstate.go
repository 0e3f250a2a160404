// Package sortstate tracks the diff-sort selection and reorders rows by it.
package sortstate

import (
	"slices"
	"sync"

	"github.com/vanderheijden86/mapdiff/pkg/model"
)

// Next returns the state after the user selects key k. Selecting a new key
// starts descending, selecting it again flips to ascending, and a third
// selection clears sorting.
func Next(s model.SortState, k model.SortKey) model.SortState {
	if k == model.SortNone {
		return model.SortState{}
	}
	if s.Key != k {
		return model.SortState{Key: k, Direction: model.SortDesc}
	}
	if s.Direction == model.SortDesc {
		return model.SortState{Key: k, Direction: model.SortAsc}
	}
	return model.SortState{}
}

// Deltas holds per-subject deltas for each metric.
type Deltas map[model.Metric]map[string]float64

// Order returns a copy of rows ordered by the deltas of the active key.
// Subjects with no delta sort as zero and equal deltas keep their original
// relative order. An inactive state returns rows unchanged.
func Order(s model.SortState, rows []string, deltas Deltas) []string {
	out := slices.Clone(rows)
	m, ok := s.Key.Metric()
	if !ok {
		return out
	}
	d := deltas[m]
	slices.SortStableFunc(out, func(a, b string) int {
		da, db := d[a], d[b]
		if s.Direction == model.SortAsc {
			da, db = db, da
		}
		switch {
		case da > db:
			return -1
		case da < db:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Controller owns the sort state of one view. It is safe for concurrent
// use.
type Controller struct {
	mu    sync.Mutex
	state model.SortState
}

// Toggle advances the state for key k and returns the new state.
func (c *Controller) Toggle(k model.SortKey) model.SortState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Next(c.state, k)
	return c.state
}

// Reset clears sorting.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.state = model.SortState{}
	c.mu.Unlock()
}

// State returns the current state.
func (c *Controller) State() model.SortState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Apply orders rows by the current state. See Order.
func (c *Controller) Apply(rows []string, deltas Deltas) []string {
	return Order(c.State(), rows, deltas)
}
