package server

import (
	"encoding/json"
	"testing"
	"time"
)

func TestWebLogger_Forwarding(t *testing.T) {
	messageChan := make(chan ConsoleMessage, 10)
	logger := NewWebLogger("render-1", messageChan)

	logger.Printf("Generated %d %s planes from %d draws\n", 129, "average", 43)
	logger.Printf("Averaging interrupted after %d passes\n", 2)

	tests := []struct {
		message string
		level   string
	}{
		{"Generated 129 average planes from 43 draws\n", "info"},
		{"Averaging interrupted after 2 passes\n", "warning"},
	}
	for i, tt := range tests {
		select {
		case msg := <-messageChan:
			if msg.Message != tt.message || msg.Level != tt.level || msg.RenderID != "render-1" {
				t.Errorf("Message %d: expected %q (%s), got %+v", i, tt.message, tt.level, msg)
			}
			if time.Since(msg.Timestamp) > time.Second {
				t.Errorf("Message %d: timestamp too old: %v", i, msg.Timestamp)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("Timeout waiting for message %d", i)
		}
	}
}

func TestWebLogger_ChannelFull(t *testing.T) {
	messageChan := make(chan ConsoleMessage, 1)
	logger := NewWebLogger("render-2", messageChan)

	// Only the first message fits, the others are dropped without blocking
	logger.Printf("Message 1\n")
	logger.Printf("Message 2\n")
	logger.Printf("Message 3\n")

	if got := logger.Dropped(); got != 2 {
		t.Errorf("Expected 2 dropped messages, got %d", got)
	}
	if msg := <-messageChan; msg.Message != "Message 1\n" {
		t.Errorf("Expected the first message to be kept, got %q", msg.Message)
	}
}

func TestWebLogger_NilChannel(t *testing.T) {
	logger := NewWebLogger("render-nil", nil)
	logger.Printf("Test message with nil channel\n")
	if logger.Dropped() != 0 {
		t.Errorf("Expected nothing dropped without a console, got %d", logger.Dropped())
	}
}

func TestConsoleMessage_JSON(t *testing.T) {
	msg := ConsoleMessage{RenderID: "r", Message: "hello\n", Timestamp: time.Unix(0, 0).UTC(), Level: "info"}
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, key := range []string{"renderId", "message", "timestamp", "level"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("Expected JSON field %q in %s", key, data)
		}
	}
}
