package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
)

func mustTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func recvMessage(t *testing.T, ch <-chan SSEMessage, timeout time.Duration) SSEMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for SSE message")
	}
	return SSEMessage{}
}

func TestSSEHubReconnectAndOrdering(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	channel := CourseChannel("c1")

	clientA := hub.NewSSEClient("u1")
	hub.AddChannel(clientA, channel)

	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventSkillCreated, Data: map[string]any{"seq": 1}})
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventPrerequisiteAdded, Data: map[string]any{"seq": 2}})

	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventSkillCreated {
		t.Fatalf("first event: want=%s got=%s", SSEEventSkillCreated, got.Event)
	}
	if got := recvMessage(t, clientA.Outbound, time.Second); got.Event != SSEEventPrerequisiteAdded {
		t.Fatalf("second event: want=%s got=%s", SSEEventPrerequisiteAdded, got.Event)
	}

	hub.CloseClient(clientA)
	hub.CloseClient(clientA)
	if _, ok := <-clientA.Outbound; ok {
		t.Fatalf("clientA outbound should be closed after disconnect")
	}
	if n := hub.Subscribers(channel); n != 0 {
		t.Fatalf("subscribers after close: want=0 got=%d", n)
	}

	clientB := hub.NewSSEClient("u1")
	hub.AddChannel(clientB, channel)
	hub.Broadcast(SSEMessage{Channel: channel, Event: SSEEventSkillGraphSynced})
	if got := recvMessage(t, clientB.Outbound, time.Second); got.Event != SSEEventSkillGraphSynced {
		t.Fatalf("reconnect event: want=%s got=%s", SSEEventSkillGraphSynced, got.Event)
	}
}

func TestSSEHubScopesByCourse(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	a := hub.NewSSEClient("u1")
	b := hub.NewSSEClient("u2")
	hub.AddChannel(a, CourseChannel("c1"))
	hub.AddChannel(b, CourseChannel("c2"))

	hub.Broadcast(SSEMessage{Channel: CourseChannel("c1"), Event: SSEEventSkillDeleted})

	recvMessage(t, a.Outbound, time.Second)
	select {
	case msg := <-b.Outbound:
		t.Fatalf("c2 subscriber received c1 event: %v", msg.Event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSSEHubDropsWhenBufferFull(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	c := hub.NewSSEClient("u1")
	hub.AddChannel(c, CourseChannel("c1"))
	for i := 0; i < outboundBuffer+5; i++ {
		hub.Broadcast(SSEMessage{Channel: CourseChannel("c1"), Event: SSEEventSkillUpdated})
	}
	if got := len(c.Outbound); got != outboundBuffer {
		t.Fatalf("buffered: want=%d got=%d", outboundBuffer, got)
	}
	if got := c.Dropped(); got != 5 {
		t.Fatalf("dropped: want=5 got=%d", got)
	}
}

func TestSSEHubCloseClientSignalsDone(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	c := hub.NewSSEClient("u1")
	hub.AddChannel(c, CourseChannel("c1"))
	hub.CloseClient(c)
	hub.CloseClient(c)
	select {
	case <-c.Done():
	default:
		t.Fatalf("Done must be closed after CloseClient")
	}
	if got := hub.Subscribers(CourseChannel("c1")); got != 0 {
		t.Fatalf("subscribers after close: want=0 got=%d", got)
	}
}

func TestSSEHubServeHTTPWritesEvents(t *testing.T) {
	hub := NewSSEHub(mustTestLogger(t))
	c := hub.NewSSEClient("u1")
	hub.AddChannel(c, CourseChannel("c1"))
	hub.Broadcast(SSEMessage{Channel: CourseChannel("c1"), Event: SSEEventSkillUpdated, Data: map[string]any{"skill_id": "s1"}})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	hub.ServeHTTP(rec, req, c)
	hub.CloseClient(c)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type: want=text/event-stream got=%q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: SkillUpdated\n") || !strings.Contains(body, `"skill_id":"s1"`) {
		t.Fatalf("stream body: got=%q", body)
	}
}

func TestCourseChannel(t *testing.T) {
	if got := CourseChannel(" c1 "); got != "course:c1" {
		t.Fatalf("CourseChannel: want=course:c1 got=%q", got)
	}
	if got := CourseChannel(" "); got != "" {
		t.Fatalf("blank course: want empty got=%q", got)
	}
}
