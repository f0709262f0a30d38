package services

import (
	"context"
	"testing"

	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/realtime"
	"github.com/yungbote/skillgraph-backend/internal/realtime/bus"
)

func TestBusEmitterFallsBackToLocalHub(t *testing.T) {
	log := logger.NewNop()
	hub := realtime.NewSSEHub(log)
	client := hub.NewSSEClient("u1")
	hub.AddChannel(client, realtime.CourseChannel("c1"))
	defer hub.CloseClient(client)

	b := bus.NewLocalBus()
	_ = b.Close()
	e := &BusEmitter{Bus: b, Local: hub, Log: log}
	e.Emit(context.Background(), realtime.SSEMessage{Channel: realtime.CourseChannel("c1"), Event: realtime.SSEEventSkillCreated})

	if got := len(client.Outbound); got != 1 {
		t.Fatalf("local delivery: want=1 got=%d", got)
	}
}

func TestBusEmitterPublishesThroughForwarder(t *testing.T) {
	log := logger.NewNop()
	hub := realtime.NewSSEHub(log)
	client := hub.NewSSEClient("u1")
	hub.AddChannel(client, realtime.CourseChannel("c1"))
	defer hub.CloseClient(client)

	b := bus.NewLocalBus()
	if err := b.StartForwarder(context.Background(), hub.Broadcast); err != nil {
		t.Fatalf("StartForwarder: %v", err)
	}
	e := &BusEmitter{Bus: b, Local: hub, Log: log}
	e.Emit(context.Background(), realtime.SSEMessage{Channel: realtime.CourseChannel("c1"), Event: realtime.SSEEventSkillCreated})

	if got := len(client.Outbound); got != 1 {
		t.Fatalf("forwarded delivery must not duplicate: want=1 got=%d", got)
	}
}
