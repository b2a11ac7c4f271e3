package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestInMemoryPublishConsume(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	want := RegistrationEvent{LRN: "123456", StudentName: "Jane Doe", Status: "created", ParentIDs: []int64{1, 2}}
	if err := q.Publish(ctx, want.Message()); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	msgs, err := q.Consume(ctx)
	if err != nil {
		t.Fatalf("consume failed: %v", err)
	}

	select {
	case msg := <-msgs:
		if msg.Type != TypeRegistration {
			t.Errorf("type = %q, want %q", msg.Type, TypeRegistration)
		}
		var got RegistrationEvent
		if err := json.Unmarshal(msg.Body, &got); err != nil {
			t.Fatalf("body not valid json: %v", err)
		}
		if got.LRN != want.LRN || got.Status != want.Status || len(got.ParentIDs) != 2 {
			t.Errorf("event = %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
}

func TestInMemoryPublishCancelledContext(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())

	if err := q.Publish(ctx, Message{Type: TypeApproval}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	cancel()
	// Buffer is full and the context is done.
	if err := q.Publish(ctx, Message{Type: TypeApproval}); err == nil {
		t.Error("expected publish to fail on cancelled context")
	}
}

func TestSerializeRoundtrip(t *testing.T) {
	msg := Message{Type: TypeApproval, Body: []byte(`{"guardian_name":"Uncle | Bob"}`)}
	got, err := deserialize(serialize(msg))
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	if got.Type != msg.Type {
		t.Errorf("type = %q, want %q", got.Type, msg.Type)
	}
	if string(got.Body) != string(msg.Body) {
		t.Errorf("body = %q, want %q", got.Body, msg.Body)
	}
}

func TestDeserializeWithoutSeparator(t *testing.T) {
	got, err := deserialize("raw payload")
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	if got.Type != "" || string(got.Body) != "raw payload" {
		t.Errorf("msg = %+v", got)
	}
}

func TestApprovalEventMessage(t *testing.T) {
	e := ApprovalEvent{GuardianID: 7, GuardianName: "Uncle Bob", StudentName: "Jane Doe", Status: "allowed", Source: "admin"}
	msg := e.Message()
	if msg.Type != TypeApproval {
		t.Errorf("type = %q, want %q", msg.Type, TypeApproval)
	}
	var got ApprovalEvent
	if err := json.Unmarshal(msg.Body, &got); err != nil {
		t.Fatalf("body not valid json: %v", err)
	}
	if got != e {
		t.Errorf("event = %+v, want %+v", got, e)
	}
}
