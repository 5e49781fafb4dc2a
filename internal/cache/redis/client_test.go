package redis

import "testing"

func TestJoinKey(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{"", []string{"lock", "holiday-refresh"}, "lock:holiday-refresh"},
		{"crosstrade", []string{"holidays", "current"}, "crosstrade:holidays:current"},
		{"crosstrade", []string{"ratelimit", "10.0.0.1"}, "crosstrade:ratelimit:10.0.0.1"},
	}
	for _, tt := range tests {
		if got := joinKey(tt.prefix, tt.parts...); got != tt.want {
			t.Errorf("joinKey(%q, %v) = %q, want %q", tt.prefix, tt.parts, got, tt.want)
		}
	}
}

func TestHasPattern(t *testing.T) {
	if hasPattern("calendar") {
		t.Error("plain channel reported as pattern")
	}
	if !hasPattern("calendar:*") {
		t.Error("glob channel not reported as pattern")
	}
}

func TestPayloadBytes(t *testing.T) {
	if b, ok := payloadBytes("abc"); !ok || string(b) != "abc" {
		t.Errorf("string payload = %q, %v", b, ok)
	}
	if b, ok := payloadBytes([]byte("xyz")); !ok || string(b) != "xyz" {
		t.Errorf("bytes payload = %q, %v", b, ok)
	}
	if _, ok := payloadBytes(42); ok {
		t.Error("int payload accepted")
	}
}
