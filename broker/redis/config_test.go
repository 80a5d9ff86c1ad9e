package redis

import (
	"log/slog"
	"testing"
)

func TestConfig_Defaults(t *testing.T) {
	c := Config{}.applyDefaults()
	if c.Addr != "localhost:6379" {
		t.Errorf("Addr = %q, want localhost:6379", c.Addr)
	}
	if c.BufferSize != 256 {
		t.Errorf("BufferSize = %d, want 256", c.BufferSize)
	}
	if c.Logger == nil {
		t.Error("Logger not defaulted")
	}
}

func TestConfig_SetValuesKept(t *testing.T) {
	logger := slog.Default()
	c := Config{Addr: "redis:7000", BufferSize: 8, DB: 3, Logger: logger}.applyDefaults()
	if c.Addr != "redis:7000" {
		t.Errorf("Addr = %q, want redis:7000", c.Addr)
	}
	if c.BufferSize != 8 {
		t.Errorf("BufferSize = %d, want 8", c.BufferSize)
	}
	if c.DB != 3 {
		t.Errorf("DB = %d, want 3", c.DB)
	}
	if c.Logger != logger {
		t.Error("Logger replaced")
	}
}
