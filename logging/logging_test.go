package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	// Info should pass
	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("info message should be logged")
	}

	output := buf.String()
	if !strings.Contains(output, "INFO") {
		t.Error("log should contain INFO level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("log should contain the message")
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("mux")
	logger.SetOutput(&buf)

	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "[mux]") {
		t.Errorf("expected component 'mux' in log, got: %s", output)
	}
}

func TestLogger_WithConnID(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithConnID("c-123")
	logger.SetOutput(&buf)

	logger.Info("test message")

	output := buf.String()
	if !strings.Contains(output, "conn=c-123") {
		t.Errorf("expected conn=c-123 in log, got: %s", output)
	}
}

func TestLogger_DerivedSharesOutput(t *testing.T) {
	var buf bytes.Buffer
	root := New()
	root.SetOutput(&buf)

	child := root.WithComponent("transport")
	child.Info("from child")

	if !strings.Contains(buf.String(), "from child") {
		t.Errorf("derived logger should write to the parent's output, got: %q", buf.String())
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("call", map[string]interface{}{
		"method": "eth_chainId",
		"id":     7,
	})

	output := buf.String()
	// Fields are sorted by key.
	if !strings.Contains(output, "id=7 method=eth_chainId") {
		t.Errorf("expected sorted fields in log, got: %s", output)
	}
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("test")
	logger.SetOutput(&buf)

	logger.Info("hello world", map[string]interface{}{"key": "value"})

	output := buf.String()
	// Format: LEVEL TIMESTAMP [component] message key=value
	if !strings.HasPrefix(output, "INFO ") {
		t.Errorf("expected line to start with 'INFO ', got: %s", output)
	}
	if !strings.Contains(output, "[test]") {
		t.Errorf("expected component [test], got: %s", output)
	}
	if !strings.Contains(output, "hello world") {
		t.Errorf("expected message, got: %s", output)
	}
	if !strings.Contains(output, "key=value") {
		t.Errorf("expected key=value, got: %s", output)
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	if logger.Enabled(LevelError) {
		t.Error("Nop logger should not enable ERROR")
	}
	// Must not panic.
	logger.Error("dropped", map[string]interface{}{"k": "v"})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{" INFO ", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"off", LevelOff, false},
		{"verbose", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_ConnectionEvents(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.ConnectionOpened("/tmp/node.ipc")
	logger.ConnectionClosed("/tmp/node.ipc", errors.New("reset"))

	output := buf.String()
	if !strings.Contains(output, "connection_opened") || !strings.Contains(output, "socket=/tmp/node.ipc") {
		t.Errorf("expected connection_opened with socket, got: %s", output)
	}
	if !strings.Contains(output, "WARN") || !strings.Contains(output, "error=reset") {
		t.Errorf("closing with an error should warn, got: %s", output)
	}
}

func TestLogger_RequestTimedOut(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.RequestTimedOut(3, "eth_getProof", 10*time.Millisecond)

	output := buf.String()
	for _, want := range []string{"request_timed_out", "id=3", "method=eth_getProof", "timeout=10ms"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in log, got: %s", want, output)
		}
	}
}

func TestLogger_PendingDrained(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.PendingDrained(0)
	if buf.Len() != 0 {
		t.Errorf("empty drain should log at DEBUG, got: %s", buf.String())
	}

	logger.PendingDrained(4)
	if !strings.Contains(buf.String(), "count=4") {
		t.Errorf("expected count=4, got: %s", buf.String())
	}
}
