package testutil

import (
	"sync"
	"time"

	"github.com/yungbote/skillgraph-backend/internal/data/aggregates"
	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
)

// HooksRecorder keeps every aggregate signal for assertions.
type HooksRecorder struct {
	mu sync.Mutex

	Operations []OperationEvent
	Conflicts  []string
	Retries    []string
	Rejections []RejectionEvent
	Syncs      []SyncEvent
}

type OperationEvent struct {
	Name     string
	Status   string
	Duration time.Duration
}

type RejectionEvent struct {
	Op     string
	Reason string
}

type SyncEvent struct {
	CourseID string
	Counts   domainagg.SyncCounts
}

var _ aggregates.Hooks = (*HooksRecorder)(nil)

func (h *HooksRecorder) ObserveOperation(name, status string, dur time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Operations = append(h.Operations, OperationEvent{Name: name, Status: status, Duration: dur})
}

func (h *HooksRecorder) IncConflict(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Conflicts = append(h.Conflicts, name)
}

func (h *HooksRecorder) IncRetry(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Retries = append(h.Retries, name)
}

func (h *HooksRecorder) IncRejection(op, reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Rejections = append(h.Rejections, RejectionEvent{Op: op, Reason: reason})
}

func (h *HooksRecorder) ObserveSync(courseID string, counts domainagg.SyncCounts) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.Syncs = append(h.Syncs, SyncEvent{CourseID: courseID, Counts: counts})
}

// Statuses lists the recorded statuses of op in call order.
func (h *HooksRecorder) Statuses(op string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := []string{}
	for _, e := range h.Operations {
		if e.Name == op {
			out = append(out, e.Status)
		}
	}
	return out
}
