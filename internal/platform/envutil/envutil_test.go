package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SG_TEST_INT", "nope")
	if got := Int("SG_TEST_INT", 7); got != 7 {
		t.Fatalf("Int: want=7 got=%d", got)
	}
	t.Setenv("SG_TEST_INT", " 12 ")
	if got := Int("SG_TEST_INT", 7); got != 12 {
		t.Fatalf("Int: want=12 got=%d", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("SG_TEST_BOOL", "on")
	if !Bool("SG_TEST_BOOL", false) {
		t.Fatalf("Bool(on): want=true")
	}
	t.Setenv("SG_TEST_BOOL", "maybe")
	if Bool("SG_TEST_BOOL", false) {
		t.Fatalf("Bool(maybe): want default false")
	}
}

func TestSeconds(t *testing.T) {
	t.Setenv("SG_TEST_SECS", "3")
	if got := Seconds("SG_TEST_SECS", time.Minute); got != 3*time.Second {
		t.Fatalf("Seconds: want=3s got=%s", got)
	}
	t.Setenv("SG_TEST_SECS", "")
	if got := Seconds("SG_TEST_SECS", time.Minute); got != time.Minute {
		t.Fatalf("Seconds default: want=1m got=%s", got)
	}
}
