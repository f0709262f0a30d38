package ctxutil

import "context"

type traceDataKey struct{}

// TraceData identifies the request a skill graph write came from. CourseID
// is empty outside course routes.
type TraceData struct {
	TraceID   string
	RequestID string
	CourseID  string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	td, _ := ctx.Value(traceDataKey{}).(*TraceData)
	return td
}

// RequestID returns the request id carried by ctx, or "".
func RequestID(ctx context.Context) string {
	if td := GetTraceData(ctx); td != nil {
		return td.RequestID
	}
	return ""
}

// LogFields returns the ids in ctx as logger key/value pairs, skipping empty ones.
func LogFields(ctx context.Context) []any {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	out := make([]any, 0, 6)
	for _, kv := range [][2]string{{"trace_id", td.TraceID}, {"request_id", td.RequestID}, {"course_id", td.CourseID}} {
		if kv[1] != "" {
			out = append(out, kv[0], kv[1])
		}
	}
	return out
}
