package livefeed

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessageTypeConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant string
		expected string
	}{
		{"TypeNewBlock", TypeNewBlock, "new_block"},
		{"TypeError", TypeError, "error"},
		{"TypePong", TypePong, "pong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.constant != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, tt.constant)
			}
		})
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("Expected non-nil hub")
	}
	if hub.clients == nil {
		t.Error("Expected initialized clients map")
	}
	if hub.register == nil {
		t.Error("Expected initialized register channel")
	}
	if hub.unregister == nil {
		t.Error("Expected initialized unregister channel")
	}
	if hub.broadcast == nil {
		t.Error("Expected initialized broadcast channel")
	}
	if hub.stopCh == nil {
		t.Error("Expected initialized stopCh channel")
	}
}

func TestHubGetStats(t *testing.T) {
	hub := NewHub()

	stats := hub.GetStats()

	connected, ok := stats["connected_clients"].(int)
	if !ok {
		t.Fatal("Expected connected_clients in stats")
	}
	if connected != 0 {
		t.Errorf("Expected 0 clients, got %d", connected)
	}
}

func TestMessageSerialization(t *testing.T) {
	data, err := json.Marshal(BlockEvent{Height: 3132400, Hash: "00000abc", Inscriptions: 3})
	if err != nil {
		t.Fatalf("failed to marshal block event: %v", err)
	}

	msg := &Message{
		Type:      TypeNewBlock,
		Data:      json.RawMessage(data),
		Timestamp: time.Now().UTC(),
	}

	encoded, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal message: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("failed to unmarshal message: %v", err)
	}
	if decoded.Type != TypeNewBlock {
		t.Errorf("expected type %s, got %s", TypeNewBlock, decoded.Type)
	}

	var event BlockEvent
	if err := json.Unmarshal(decoded.Data, &event); err != nil {
		t.Fatalf("failed to unmarshal block event: %v", err)
	}
	if event.Height != 3132400 || event.Hash != "00000abc" || event.Inscriptions != 3 {
		t.Errorf("unexpected block event: %+v", event)
	}
}

func TestErrorMessage(t *testing.T) {
	msg := &Message{Type: TypeError, Error: "rpc timeout", Timestamp: time.Now().UTC()}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("failed to marshal error message: %v", err)
	}

	var decoded Message
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal error message: %v", err)
	}
	if decoded.Error != "rpc timeout" {
		t.Errorf("expected error 'rpc timeout', got %s", decoded.Error)
	}
}

func TestNotifyBlockDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	hub.broadcast = make(chan []byte, 1)

	hub.NotifyBlock(1, "hash1", 0)
	// second call must not block even though the buffer is already full.
	done := make(chan struct{})
	go func() {
		hub.NotifyBlock(2, "hash2", 0)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("NotifyBlock blocked on a full broadcast buffer")
	}
}

func TestRemoveClientIsIdempotent(t *testing.T) {
	hub := NewHub()
	client := &Client{ID: "test-client", hub: hub, send: make(chan []byte, 1)}

	hub.clients[client] = true
	hub.removeClient(client)
	if _, ok := hub.clients[client]; ok {
		t.Error("expected client to be removed")
	}

	// removing again must not panic or double-close the send channel.
	hub.removeClient(client)
}
