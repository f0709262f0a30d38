package services

import (
	"context"

	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/realtime"
	"github.com/yungbote/skillgraph-backend/internal/realtime/bus"
)

type SSEEmitter interface {
	Emit(ctx context.Context, msg realtime.SSEMessage)
}

// BusEmitter publishes through the bus; each instance's forwarder feeds its
// hub. When publishing fails and Local is set, the message still reaches the
// editors connected to this instance.
type BusEmitter struct {
	Bus   bus.Bus
	Local *realtime.SSEHub
	Log   *logger.Logger
}

func (e *BusEmitter) Emit(ctx context.Context, msg realtime.SSEMessage) {
	err := e.Bus.Publish(ctx, msg)
	if err == nil {
		return
	}
	if e.Log != nil {
		e.Log.Warn("SSE publish failed", "event", msg.Event, "channel", msg.Channel, "local_fallback", e.Local != nil, "error", err)
	}
	if e.Local != nil {
		e.Local.Broadcast(msg)
	}
}
