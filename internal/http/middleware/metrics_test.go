package middleware

import "testing"

func TestSkipMetrics(t *testing.T) {
	cases := map[string]bool{
		"/healthcheck":                       true,
		"/readyz":                            true,
		"/api/courses/:course/stream":        true,
		"/api/courses/:course/skills/sync":   false,
		"/api/courses/:course/skills/:skill": false,
		"":                                   false,
	}
	for route, want := range cases {
		if got := skipMetrics(route); got != want {
			t.Fatalf("skipMetrics(%q): want=%v got=%v", route, want, got)
		}
	}
}
