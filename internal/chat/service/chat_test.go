package service

import (
	"context"
	"testing"
	"time"

	"wayfare/internal/chat/repository"
	"wayfare/pkg/config"
	apperrors "wayfare/pkg/errors"
	"wayfare/pkg/events"
	"wayfare/pkg/logger"
	"wayfare/pkg/model"
)

// memoryConversationRepo mirrors the storage guards: one conversation per
// trip, participants added only while not already active.
type memoryConversationRepo struct {
	byTrip map[string]*model.Conversation
}

func newMemoryConversationRepo() *memoryConversationRepo {
	return &memoryConversationRepo{byTrip: map[string]*model.Conversation{}}
}

func (r *memoryConversationRepo) CreateIfAbsent(ctx context.Context, tripID string, hostUserID string) (*model.Conversation, bool, error) {
	if existing, ok := r.byTrip[tripID]; ok {
		return existing, false, nil
	}
	conversation := &model.Conversation{
		ID:     "conv-" + tripID,
		TripID: tripID,
		Participants: []model.ConversationParticipant{
			{UserID: hostUserID, JoinedAt: time.Now()},
		},
		CreatedAt: time.Now(),
	}
	r.byTrip[tripID] = conversation
	return conversation, true, nil
}

func (r *memoryConversationRepo) FindByTripID(ctx context.Context, tripID string) (*model.Conversation, error) {
	if existing, ok := r.byTrip[tripID]; ok {
		return existing, nil
	}
	return nil, repository.ErrNotFound
}

func (r *memoryConversationRepo) AddParticipant(ctx context.Context, conversationID string, userID string) (bool, error) {
	for _, conversation := range r.byTrip {
		if conversation.ID != conversationID {
			continue
		}
		if conversation.HasActiveParticipant(userID) {
			return false, nil
		}
		conversation.Participants = append(conversation.Participants, model.ConversationParticipant{
			UserID:   userID,
			JoinedAt: time.Now(),
		})
		return true, nil
	}
	return false, repository.ErrNotFound
}

func (r *memoryConversationRepo) RemoveParticipant(ctx context.Context, conversationID string, userID string) error {
	for _, conversation := range r.byTrip {
		if conversation.ID != conversationID {
			continue
		}
		now := time.Now()
		for i := range conversation.Participants {
			p := &conversation.Participants[i]
			if p.UserID == userID && p.LeftAt == nil {
				p.LeftAt = &now
			}
		}
		return nil
	}
	return repository.ErrNotFound
}

type recordingBus struct {
	facts []events.Fact
}

func (b *recordingBus) Publish(ctx context.Context, fact events.Fact) error {
	b.facts = append(b.facts, fact)
	return nil
}

func (b *recordingBus) PublishAll(ctx context.Context, facts []events.Fact) error {
	b.facts = append(b.facts, facts...)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "chat-test",
		}),
	}
}

func TestOnTripPublished_CreatesConversationAndAnnounces(t *testing.T) {
	repo := newMemoryConversationRepo()
	bus := &recordingBus{}
	svc := NewChatService(repo, bus, testConfig(t))

	err := svc.OnTripPublished(context.Background(), events.TripPublished{
		TripID:     "trip-1",
		HostUserID: "host-1",
	})
	if err != nil {
		t.Fatalf("OnTripPublished() = %v, want nil", err)
	}

	conversation, ok := repo.byTrip["trip-1"]
	if !ok {
		t.Fatal("no conversation created for trip-1")
	}
	if !conversation.HasActiveParticipant("host-1") {
		t.Error("host is not a participant of the new conversation")
	}

	if len(bus.facts) != 1 {
		t.Fatalf("published %d facts, want 1", len(bus.facts))
	}
	created, ok := bus.facts[0].(events.GroupChatCreated)
	if !ok {
		t.Fatalf("fact type = %T, want events.GroupChatCreated", bus.facts[0])
	}
	if created.TripID != "trip-1" || created.ConversationID != conversation.ID {
		t.Errorf("GroupChatCreated = %+v", created)
	}
}

func TestOnTripPublished_DuplicateDeliveryReusesConversation(t *testing.T) {
	repo := newMemoryConversationRepo()
	bus := &recordingBus{}
	svc := NewChatService(repo, bus, testConfig(t))

	fact := events.TripPublished{TripID: "trip-1", HostUserID: "host-1"}
	if err := svc.OnTripPublished(context.Background(), fact); err != nil {
		t.Fatalf("first delivery = %v, want nil", err)
	}
	if err := svc.OnTripPublished(context.Background(), fact); err != nil {
		t.Fatalf("second delivery = %v, want nil", err)
	}

	if len(repo.byTrip) != 1 {
		t.Errorf("created %d conversations, want 1", len(repo.byTrip))
	}

	// Both deliveries announce the same conversation id.
	if len(bus.facts) != 2 {
		t.Fatalf("published %d facts, want 2", len(bus.facts))
	}
	first := bus.facts[0].(events.GroupChatCreated)
	second := bus.facts[1].(events.GroupChatCreated)
	if first.ConversationID != second.ConversationID {
		t.Errorf("announced conversation ids differ: %s vs %s", first.ConversationID, second.ConversationID)
	}
}

func TestOnParticipantJoined_AddsOnceUnderRedelivery(t *testing.T) {
	repo := newMemoryConversationRepo()
	svc := NewChatService(repo, &recordingBus{}, testConfig(t))

	if err := svc.OnTripPublished(context.Background(), events.TripPublished{TripID: "trip-1", HostUserID: "host-1"}); err != nil {
		t.Fatalf("OnTripPublished() = %v", err)
	}
	conversation := repo.byTrip["trip-1"]

	fact := events.ParticipantJoined{TripID: "trip-1", UserID: "user-7", ConversationID: conversation.ID}
	if err := svc.OnParticipantJoined(context.Background(), fact); err != nil {
		t.Fatalf("first delivery = %v, want nil", err)
	}
	if err := svc.OnParticipantJoined(context.Background(), fact); err != nil {
		t.Fatalf("second delivery = %v, want nil", err)
	}

	count := 0
	for _, p := range conversation.Participants {
		if p.UserID == "user-7" && p.LeftAt == nil {
			count++
		}
	}
	if count != 1 {
		t.Errorf("user-7 appears %d times as active participant, want 1", count)
	}
}

func TestOnParticipantJoined_ResolvesConversationByTrip(t *testing.T) {
	repo := newMemoryConversationRepo()
	svc := NewChatService(repo, &recordingBus{}, testConfig(t))

	if err := svc.OnTripPublished(context.Background(), events.TripPublished{TripID: "trip-1", HostUserID: "host-1"}); err != nil {
		t.Fatalf("OnTripPublished() = %v", err)
	}

	// Fact emitted before the trip learned its conversation id.
	err := svc.OnParticipantJoined(context.Background(), events.ParticipantJoined{
		TripID: "trip-1",
		UserID: "user-7",
	})
	if err != nil {
		t.Fatalf("OnParticipantJoined() without conversation id = %v, want nil", err)
	}

	if !repo.byTrip["trip-1"].HasActiveParticipant("user-7") {
		t.Error("user-7 was not added to the conversation resolved by trip id")
	}
}

func TestLeave_MarksParticipantInactive(t *testing.T) {
	repo := newMemoryConversationRepo()
	svc := NewChatService(repo, &recordingBus{}, testConfig(t))

	if err := svc.OnTripPublished(context.Background(), events.TripPublished{TripID: "trip-1", HostUserID: "host-1"}); err != nil {
		t.Fatalf("OnTripPublished() = %v", err)
	}
	conversation := repo.byTrip["trip-1"]
	if err := svc.OnParticipantJoined(context.Background(), events.ParticipantJoined{
		TripID: "trip-1", UserID: "user-7", ConversationID: conversation.ID,
	}); err != nil {
		t.Fatalf("OnParticipantJoined() = %v", err)
	}

	if err := svc.Leave(context.Background(), "trip-1", "user-7"); err != nil {
		t.Fatalf("Leave() = %v, want nil", err)
	}
	if conversation.HasActiveParticipant("user-7") {
		t.Error("user-7 still active after leaving")
	}

	// The history entry survives the departure.
	found := false
	for _, p := range conversation.Participants {
		if p.UserID == "user-7" && p.LeftAt != nil {
			found = true
		}
	}
	if !found {
		t.Error("no departed participant entry kept for user-7")
	}
}

func TestLeave_UnknownTripRejected(t *testing.T) {
	repo := newMemoryConversationRepo()
	svc := NewChatService(repo, &recordingBus{}, testConfig(t))

	err := svc.Leave(context.Background(), "trip-9", "user-7")
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeNotFound {
		t.Fatalf("Leave() code = %s, want %s", appErr.Code, apperrors.CodeNotFound)
	}
}

func TestOnParticipantJoined_NoConversationYetFailsForRedelivery(t *testing.T) {
	repo := newMemoryConversationRepo()
	svc := NewChatService(repo, &recordingBus{}, testConfig(t))

	err := svc.OnParticipantJoined(context.Background(), events.ParticipantJoined{
		TripID: "trip-9",
		UserID: "user-7",
	})
	if err == nil {
		t.Fatal("expected error when no conversation exists yet, got nil")
	}
}
