package ctxutil

import (
	"context"
	"testing"
)

func TestLogFieldsSkipsEmptyIDs(t *testing.T) {
	if got := LogFields(context.Background()); got != nil {
		t.Fatalf("no trace data: want=nil got=%v", got)
	}
	ctx := WithTraceData(context.Background(), &TraceData{TraceID: "t1", CourseID: "c1"})
	got := LogFields(ctx)
	if len(got) != 4 || got[0] != "trace_id" || got[1] != "t1" || got[2] != "course_id" || got[3] != "c1" {
		t.Fatalf("fields: got=%v", got)
	}
	if RequestID(ctx) != "" {
		t.Fatalf("request id: want empty got=%q", RequestID(ctx))
	}
}
