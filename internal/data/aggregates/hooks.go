package aggregates

import (
	"strings"
	"time"

	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/observability"
)

// Hooks receives skill graph write signals. Implementations run on the
// request path and must not block.
type Hooks interface {
	ObserveOperation(op, status string, dur time.Duration)
	IncConflict(op string)
	// IncRetry is called once per transaction attempt that failed transiently.
	IncRetry(op string)
	// IncRejection counts a structural edit refused by a graph invariant.
	IncRejection(op, reason string)
	// ObserveSync records the row counts of one committed sync.
	ObserveSync(courseID string, counts domainagg.SyncCounts)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}
func (noopHooks) IncRejection(string, string)                    {}
func (noopHooks) ObserveSync(string, domainagg.SyncCounts)       {}

type observabilityHooks struct {
	metrics *observability.Metrics
}

// NewObservabilityHooks feeds aggregate signals into the process metrics.
func NewObservabilityHooks(metrics *observability.Metrics) Hooks {
	if metrics == nil {
		return noopHooks{}
	}
	return &observabilityHooks{metrics: metrics}
}

func (h *observabilityHooks) ObserveOperation(op, status string, dur time.Duration) {
	h.metrics.ObserveAggregateOperation(strings.TrimSpace(op), strings.TrimSpace(status), dur)
}

func (h *observabilityHooks) IncConflict(op string) {
	h.metrics.IncAggregateConflict(strings.TrimSpace(op))
}

func (h *observabilityHooks) IncRetry(op string) {
	h.metrics.IncAggregateRetry(strings.TrimSpace(op))
}

// IncRejection labels reasons the contract does not declare as "other".
func (h *observabilityHooks) IncRejection(_ string, reason string) {
	if !domainagg.SkillGraphAggregateContract.AllowsRejection(reason) {
		reason = "other"
	}
	h.metrics.IncGraphRejection(strings.TrimSpace(reason))
}

func (h *observabilityHooks) ObserveSync(_ string, counts domainagg.SyncCounts) {
	h.metrics.AddSyncChanges(map[string]int{
		"created":       counts.Created,
		"updated":       counts.Updated,
		"restored":      counts.Restored,
		"deleted":       counts.Deleted,
		"edges_added":   counts.EdgesAdded,
		"edges_removed": counts.EdgesRemoved,
	})
}
