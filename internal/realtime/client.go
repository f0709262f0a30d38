package realtime

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
)

// SSEClient is one open course stream. Channels is guarded by the hub lock.
type SSEClient struct {
	ID          uuid.UUID
	ActorID     string
	ConnectedAt time.Time
	Channels    map[string]bool
	Outbound    chan SSEMessage
	Logger      *logger.Logger

	done    chan struct{}
	dropped atomic.Int64
}

// deliver queues msg without blocking and reports whether it was queued.
func (c *SSEClient) deliver(msg SSEMessage) bool {
	select {
	case c.Outbound <- msg:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// Dropped is the number of messages lost to a full buffer. An editor that
// missed messages catches up on its next reload.
func (c *SSEClient) Dropped() int64 { return c.dropped.Load() }

func (c *SSEClient) Done() <-chan struct{} { return c.done }
