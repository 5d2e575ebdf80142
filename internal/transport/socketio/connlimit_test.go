package socketio

import (
	"fmt"
	"testing"
)

func TestConnectionLimiterLoopbackAlwaysAllowed(t *testing.T) {
	cl := NewConnectionLimiter(1)

	addrs := []string{"127.0.0.1", "::1", "127.0.0.1:51234", "[::1]:8080", "::ffff:127.0.0.1"}
	for i, addr := range addrs {
		allowed, evicted := cl.TryAdd(fmt.Sprintf("local-%d", i), addr)
		if !allowed || evicted != "" {
			t.Errorf("loopback %q: allowed=%v evicted=%q", addr, allowed, evicted)
		}
	}

	local, external := cl.Count()
	if local != len(addrs) || external != 0 {
		t.Errorf("expected %d local and 0 external, got %d/%d", len(addrs), local, external)
	}
}

func TestConnectionLimiterEvictsOldestExternal(t *testing.T) {
	cl := NewConnectionLimiter(2)

	steps := []struct {
		id      string
		addr    string
		evicted string
	}{
		{"a", "192.168.1.10", ""},
		{"b", "192.168.1.11:4000", ""},
		{"local", "127.0.0.1", ""},
		{"c", "10.0.0.3", "a"},
		{"d", "10.0.0.4", "b"},
	}

	for _, step := range steps {
		allowed, evicted := cl.TryAdd(step.id, step.addr)
		if !allowed {
			t.Errorf("%s should be allowed", step.id)
		}
		if evicted != step.evicted {
			t.Errorf("%s: expected eviction %q, got %q", step.id, step.evicted, evicted)
		}
	}

	local, external := cl.Count()
	if local != 1 || external != 2 {
		t.Errorf("expected 1 local and 2 external, got %d/%d", local, external)
	}
}

func TestConnectionLimiterRemoveFreesSlot(t *testing.T) {
	cl := NewConnectionLimiter(1)

	cl.TryAdd("ext-1", "192.168.1.100")
	cl.Remove("ext-1")

	if _, evicted := cl.TryAdd("ext-2", "192.168.1.101"); evicted != "" {
		t.Errorf("should not evict after removal freed a slot, got %s", evicted)
	}
}

func TestConnectionLimiterDuplicateAddIsIdempotent(t *testing.T) {
	cl := NewConnectionLimiter(1)

	cl.TryAdd("ext-1", "192.168.1.100")
	allowed, evicted := cl.TryAdd("ext-1", "192.168.1.100")
	if !allowed || evicted != "" {
		t.Errorf("duplicate add: allowed=%v evicted=%q", allowed, evicted)
	}
}

func TestConnectionLimiterRemoveUnknown(t *testing.T) {
	cl := NewConnectionLimiter(1)
	cl.Remove("nonexistent")

	if local, external := cl.Count(); local != 0 || external != 0 {
		t.Errorf("expected empty limiter, got %d/%d", local, external)
	}
}

func TestIsLocalAddr(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1", true},
		{"127.0.0.1:3000", true},
		{"::1", true},
		{"[::1]:3000", true},
		{"::ffff:127.0.0.1", true},
		{"192.168.1.100", false},
		{"10.0.0.1:80", false},
		{"0.0.0.0", false},
		{"", false},
		{"localhost", false},
	}

	for _, tc := range tests {
		if got := isLocalAddr(tc.addr); got != tc.want {
			t.Errorf("isLocalAddr(%q) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}
