package cache

import (
	"testing"
	"time"
)

func TestTTLConstants(t *testing.T) {
	tests := []struct {
		name     string
		ttl      time.Duration
		expected time.Duration
	}{
		{"TTLStatus", TTLStatus, 10 * time.Second},
		{"TTLTickerSummary", TTLTickerSummary, 30 * time.Second},
		{"TTLNameLookup", TTLNameLookup, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.ttl != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, tt.ttl)
			}
		})
	}
}

func TestCacheDisabled(t *testing.T) {
	cfg := &Config{Enabled: false}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Expected no error for disabled cache, got %v", err)
	}
	if c.IsEnabled() {
		t.Error("Expected cache to be disabled")
	}
}

func TestCacheDisabledWhenAddrEmpty(t *testing.T) {
	cfg := &Config{Enabled: true, Addr: ""}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if c.IsEnabled() {
		t.Error("Expected cache to be disabled when Addr is empty even if Enabled=true")
	}
}

func TestCacheKey(t *testing.T) {
	c := &Cache{keyPrefix: "zord", enabled: false}

	tests := []struct {
		parts    []string
		expected string
	}{
		{[]string{"status"}, "zord:status"},
		{[]string{"ticker:zord"}, "zord:ticker:zord"},
	}

	for _, tt := range tests {
		result := c.key(tt.parts...)
		if result != tt.expected {
			t.Errorf("key(%v) = %s, expected %s", tt.parts, result, tt.expected)
		}
	}
}

func TestDisabledCacheOperationsAreNoops(t *testing.T) {
	c := &Cache{enabled: false}

	if err := c.Close(); err != nil {
		t.Errorf("Close() should not error when disabled: %v", err)
	}

	var dest map[string]string
	if err := c.Get(nil, "status", &dest); err == nil {
		t.Error("Get() on a disabled cache should report a miss, not succeed")
	}

	if err := c.Set(nil, "status", map[string]string{"a": "b"}, time.Second); err != nil {
		t.Errorf("Set() should not error when disabled: %v", err)
	}

	if exists, err := c.Exists(nil, "status"); err != nil || exists {
		t.Errorf("Exists() should report false with no error when disabled, got %v, %v", exists, err)
	}
}

func TestCacheStatsDisabled(t *testing.T) {
	c := &Cache{enabled: false}

	stats, err := c.Stats(nil)
	if err != nil {
		t.Errorf("Stats() should not error when disabled: %v", err)
	}
	if enabled, ok := stats["enabled"].(bool); !ok || enabled {
		t.Error("Expected enabled=false in stats")
	}
}

func TestNewDisabledCacheLeavesKeyPrefixEmpty(t *testing.T) {
	// A disabled cache never fills in a default key prefix; the enabled
	// branch needs a reachable Redis and is not exercised here.
	cfg := &Config{Enabled: false, KeyPrefix: ""}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if c.keyPrefix != "" {
		t.Error("disabled cache should not set a key prefix")
	}
}
