package gateway

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"
)

func TestEmit_WrapsPayloadInEnvelope(t *testing.T) {
	c := newClient("conn-1", 5, nil, zap.NewNop())

	c.Emit("responseStart", map[string]string{"chatId": "room-1"})

	select {
	case frame := <-c.send:
		var env envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if env.Event != "responseStart" {
			t.Fatalf("event = %q", env.Event)
		}
		var data map[string]string
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("unmarshal data: %v", err)
		}
		if data["chatId"] != "room-1" {
			t.Fatalf("data = %v", data)
		}
	default:
		t.Fatalf("expected a queued frame")
	}
}

func TestEmit_DroppedAfterClose(t *testing.T) {
	c := newClient("conn-1", 5, nil, zap.NewNop())
	c.close()

	c.Emit("responseChunk", map[string]string{"chatId": "room-1"})

	select {
	case <-c.send:
		t.Fatalf("closed client must not queue frames")
	default:
	}
}

func TestEmit_FullBufferDropsClient(t *testing.T) {
	c := newClient("conn-1", 5, nil, zap.NewNop())

	for i := 0; i < sendBuffer+1; i++ {
		c.Emit("responseChunk", map[string]string{"chatId": "room-1"})
	}

	select {
	case <-c.Done():
	default:
		t.Fatalf("client with a full send buffer should be dropped")
	}
}
