package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"wayfare/pkg/kafka"
	"wayfare/pkg/logger"
)

func kafkaMessage(value []byte) kafka.Message {
	return kafka.NewMessage().
		WithKey("t1").
		WithRawValue(value).
		Build()
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{
		Level:   "error",
		Format:  logger.JSON,
		Service: "test",
	})
}

func TestWrapUnwrap(t *testing.T) {
	tests := []struct {
		name string
		fact Fact
	}{
		{"trip published", TripPublished{TripID: "t1", HostUserID: "u1"}},
		{"participant joined", ParticipantJoined{TripID: "t1", UserID: "u2", ConversationID: "c1"}},
		{"group chat created", GroupChatCreated{TripID: "t1", ConversationID: "c1"}},
		{"draft reminder due", DraftReminderDue{TripID: "t2", Title: "Alps", HostUserID: "u1"}},
		{"upcoming trip due", UpcomingTripDue{TripID: "t3", Title: "Lisbon", StartDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), MemberUserIDs: []string{"u1", "u2"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Wrap(tt.fact)
			if err != nil {
				t.Fatalf("unexpected wrap error: %v", err)
			}
			if env.Type != tt.fact.FactType() {
				t.Errorf("expected type %s, got %s", tt.fact.FactType(), env.Type)
			}
			if env.EmittedAt.IsZero() {
				t.Errorf("expected emission timestamp to be set")
			}

			got, err := Unwrap(env)
			if err != nil {
				t.Fatalf("unexpected unwrap error: %v", err)
			}
			if got.FactType() != tt.fact.FactType() {
				t.Errorf("expected fact type %s, got %s", tt.fact.FactType(), got.FactType())
			}
			if got.Key() != tt.fact.Key() {
				t.Errorf("expected key %s, got %s", tt.fact.Key(), got.Key())
			}
		})
	}
}

func TestUnwrap_UnknownType(t *testing.T) {
	env := Envelope{Type: "trip.exploded", Payload: json.RawMessage(`{}`)}

	if _, err := Unwrap(env); err == nil {
		t.Fatal("expected error for unknown fact type")
	}
}

func TestDispatcher_RoutesByType(t *testing.T) {
	d := NewDispatcher()

	var published, joined int
	d.Register(TypeTripPublished, func(ctx context.Context, f Fact) error {
		published++
		return nil
	})
	d.Register(TypeParticipantJoined, func(ctx context.Context, f Fact) error {
		joined++
		return nil
	})

	if err := d.Dispatch(context.Background(), TripPublished{TripID: "t1"}); err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}

	if published != 1 {
		t.Errorf("expected published handler to run once, ran %d times", published)
	}
	if joined != 0 {
		t.Errorf("expected joined handler not to run, ran %d times", joined)
	}
}

func TestDispatcher_ReturnsHandlerError(t *testing.T) {
	d := NewDispatcher()
	handlerErr := errors.New("conversation store down")

	d.Register(TypeTripPublished, func(ctx context.Context, f Fact) error {
		return handlerErr
	})

	err := d.Dispatch(context.Background(), TripPublished{TripID: "t1"})
	if !errors.Is(err, handlerErr) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestMemoryBus_SwallowsHandlerErrors(t *testing.T) {
	bus := NewMemoryBus(testLogger())

	bus.Subscribe(TypeTripPublished, func(ctx context.Context, f Fact) error {
		return errors.New("boom")
	})

	// Publish is fire-and-forget; a failing subscriber must not surface
	if err := bus.Publish(context.Background(), TripPublished{TripID: "t1"}); err != nil {
		t.Fatalf("expected nil error from publish, got %v", err)
	}
}

func TestMemoryBus_DeliversToAllSubscribers(t *testing.T) {
	bus := NewMemoryBus(testLogger())

	received := make([]string, 0)
	bus.Subscribe(TypeGroupChatCreated, func(ctx context.Context, f Fact) error {
		chat := f.(GroupChatCreated)
		received = append(received, "a:"+chat.ConversationID)
		return nil
	})
	bus.Subscribe(TypeGroupChatCreated, func(ctx context.Context, f Fact) error {
		chat := f.(GroupChatCreated)
		received = append(received, "b:"+chat.ConversationID)
		return nil
	})

	if err := bus.Publish(context.Background(), GroupChatCreated{TripID: "t1", ConversationID: "c9"}); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	if len(received) != 2 || received[0] != "a:c9" || received[1] != "b:c9" {
		t.Errorf("expected both subscribers in order, got %v", received)
	}
}

func TestMemoryBus_PublishAllDeliversInOrder(t *testing.T) {
	bus := NewMemoryBus(testLogger())

	received := make([]string, 0)
	bus.Subscribe(TypeDraftReminderDue, func(ctx context.Context, f Fact) error {
		received = append(received, f.(DraftReminderDue).TripID)
		return nil
	})

	facts := []Fact{
		DraftReminderDue{TripID: "t1"},
		DraftReminderDue{TripID: "t2"},
	}
	if err := bus.PublishAll(context.Background(), facts); err != nil {
		t.Fatalf("unexpected publish error: %v", err)
	}

	if len(received) != 2 || received[0] != "t1" || received[1] != "t2" {
		t.Errorf("expected facts delivered in order, got %v", received)
	}
}

func TestConsumerHandler_DecodesAndDispatches(t *testing.T) {
	d := NewDispatcher()

	var got GroupChatCreated
	d.Register(TypeGroupChatCreated, func(ctx context.Context, f Fact) error {
		got = f.(GroupChatCreated)
		return nil
	})

	env, err := Wrap(GroupChatCreated{TripID: "t1", ConversationID: "c1"})
	if err != nil {
		t.Fatalf("unexpected wrap error: %v", err)
	}
	value, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("unexpected marshal error: %v", err)
	}

	handler := ConsumerHandler(d)
	msg := kafkaMessage(value)
	if err := handler(context.Background(), msg); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}

	if got.TripID != "t1" || got.ConversationID != "c1" {
		t.Errorf("expected dispatched fact, got %+v", got)
	}
}
