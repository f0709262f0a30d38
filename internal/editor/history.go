package editor

import (
	"sync"

	"github.com/yungbote/skillgraph-backend/internal/skillgraph"
)

const DefaultHistoryCapacity = 50

// History is a bounded, linear undo/redo stack over full graph snapshots.
// Every snapshot it stores or hands out is a deep copy.
type History struct {
	mu       sync.Mutex
	current  *skillgraph.Graph
	past     []*skillgraph.Graph
	future   []*skillgraph.Graph
	capacity int
	disabled bool
}

func NewHistory(initial *skillgraph.Graph, capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{current: initial.Clone(), capacity: capacity}
}

func (h *History) Current() *skillgraph.Graph {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.Clone()
}

// Checkpoint snapshots current into past without changing it. A snapshot
// identical to the most recent past entry is not pushed twice.
func (h *History) Checkpoint() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.disabled {
		return
	}
	if n := len(h.past); n > 0 && h.past[n-1].Equal(h.current) {
		h.future = nil
		return
	}
	h.pushPastLocked(h.current.Clone())
	h.future = nil
}

// Apply runs mutate against a copy of current and adopts the result.
// With checkpoint, the pre-mutation graph is pushed onto past and future is
// cleared; a mutation that changes nothing records nothing. Without
// checkpoint, history is left alone. Reports whether current changed.
func (h *History) Apply(mutate func(g *skillgraph.Graph), checkpoint bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	next := h.current.Clone()
	mutate(next)
	if next.Equal(h.current) {
		return false
	}
	if checkpoint && !h.disabled {
		h.pushPastLocked(h.current)
		h.future = nil
	}
	h.current = next
	return true
}

// Undo restores the most recent past snapshot. ok is false when past is empty.
func (h *History) Undo() (*skillgraph.Graph, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.past)
	if n == 0 {
		return nil, false
	}
	prev := h.past[n-1]
	h.past = h.past[:n-1]
	h.future = append(h.future, h.current)
	h.current = prev
	return prev.Clone(), true
}

func (h *History) Redo() (*skillgraph.Graph, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.future)
	if n == 0 {
		return nil, false
	}
	next := h.future[n-1]
	h.future = h.future[:n-1]
	h.pushPastLocked(h.current)
	h.current = next
	return next.Clone(), true
}

func (h *History) CanUndo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.past) > 0
}

func (h *History) CanRedo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.future) > 0
}

// Depth returns the number of undo and redo entries.
func (h *History) Depth() (past, future int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.past), len(h.future)
}

// Reset installs g as current and discards all history.
func (h *History) Reset(g *skillgraph.Graph) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = g.Clone()
	h.past = nil
	h.future = nil
}

// Replace adopts g as current without a history entry, e.g. the server's
// authoritative result after a sync.
func (h *History) Replace(g *skillgraph.Graph) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = g.Clone()
}

// SetEnabled toggles checkpoint recording. Undo and redo still work over
// whatever was recorded before.
func (h *History) SetEnabled(enabled bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disabled = !enabled
}

func (h *History) pushPastLocked(g *skillgraph.Graph) {
	h.past = append(h.past, g)
	if over := len(h.past) - h.capacity; over > 0 {
		h.past = append([]*skillgraph.Graph(nil), h.past[over:]...)
	}
}
