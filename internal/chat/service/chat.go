package service

import (
	"context"
	"errors"
	"fmt"

	"wayfare/internal/chat/repository"
	"wayfare/pkg/config"
	apperrors "wayfare/pkg/errors"
	"wayfare/pkg/events"
	"wayfare/pkg/model"
)

// ChatService reacts to trip lifecycle facts by maintaining group
// conversations. All handlers are idempotent: the bus delivers at least
// once and the repository's guards absorb duplicates.
type ChatService struct {
	repo repository.ConversationRepository
	bus  events.Publisher
	cfg  *config.Config
}

func NewChatService(repo repository.ConversationRepository, bus events.Publisher, cfg *config.Config) *ChatService {
	return &ChatService{
		repo: repo,
		bus:  bus,
		cfg:  cfg,
	}
}

// Register subscribes the handlers to the facts they react to.
func (s *ChatService) Register(d *events.Dispatcher) {
	d.Register(events.TypeTripPublished, s.OnTripPublished)
	d.Register(events.TypeParticipantJoined, s.OnParticipantJoined)
}

// OnTripPublished creates (or reuses) the trip's group conversation and
// announces it. GroupChatCreated is published even when the conversation
// already existed: the trip-side link is first-writer-wins, so repeated
// announcements are harmless and redelivery after a crash still converges.
func (s *ChatService) OnTripPublished(ctx context.Context, fact events.Fact) error {
	published, ok := fact.(events.TripPublished)
	if !ok {
		return fmt.Errorf("unexpected fact type %T for %s", fact, events.TypeTripPublished)
	}

	conversation, created, err := s.repo.CreateIfAbsent(ctx, published.TripID, published.HostUserID)
	if err != nil {
		s.cfg.Log.Error("Failed to create conversation",
			"trip_id", published.TripID,
			"error", err,
		)
		return err
	}

	if created {
		s.cfg.Log.Info("Conversation created for trip",
			"trip_id", published.TripID,
			"conversation_id", conversation.ID,
		)
	} else {
		s.cfg.Log.Debug("Conversation already exists, reusing",
			"trip_id", published.TripID,
			"conversation_id", conversation.ID,
		)
	}

	if err := s.bus.Publish(ctx, events.GroupChatCreated{
		TripID:         published.TripID,
		ConversationID: conversation.ID,
	}); err != nil {
		return fmt.Errorf("failed to announce conversation for trip %s: %w", published.TripID, err)
	}

	return nil
}

// GetByTripID returns the trip's conversation for the read API.
func (s *ChatService) GetByTripID(ctx context.Context, tripID string) (*model.Conversation, error) {
	if tripID == "" {
		return nil, apperrors.InvalidInput("Trip ID cannot be empty")
	}

	conversation, err := s.repo.FindByTripID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("Conversation")
		}
		s.cfg.Log.Error("Failed to find conversation", "trip_id", tripID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve conversation", err)
	}

	return conversation, nil
}

// Leave marks the user's participation as ended. The entry keeps its
// history; rejoining later creates a fresh entry.
func (s *ChatService) Leave(ctx context.Context, tripID string, userID string) error {
	if tripID == "" || userID == "" {
		return apperrors.InvalidInput("Trip ID and user ID are required")
	}

	conversation, err := s.repo.FindByTripID(ctx, tripID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Conversation")
		}
		s.cfg.Log.Error("Failed to find conversation", "trip_id", tripID, "error", err)
		return apperrors.Internal("Failed to leave conversation", err)
	}

	if err := s.repo.RemoveParticipant(ctx, conversation.ID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("Conversation")
		}
		s.cfg.Log.Error("Failed to remove conversation participant",
			"conversation_id", conversation.ID,
			"user_id", userID,
			"error", err,
		)
		return apperrors.Internal("Failed to leave conversation", err)
	}

	s.cfg.Log.Info("Participant left conversation",
		"conversation_id", conversation.ID,
		"user_id", userID,
	)
	return nil
}

// OnParticipantJoined adds the user to the trip's conversation. The fact
// may arrive before GroupChatCreated has been processed trip-side, so when
// it carries no conversation id we resolve it by trip.
func (s *ChatService) OnParticipantJoined(ctx context.Context, fact events.Fact) error {
	joined, ok := fact.(events.ParticipantJoined)
	if !ok {
		return fmt.Errorf("unexpected fact type %T for %s", fact, events.TypeParticipantJoined)
	}

	conversationID := joined.ConversationID
	if conversationID == "" {
		conversation, err := s.repo.FindByTripID(ctx, joined.TripID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				// The conversation is still being created; redelivery
				// will pick this participant up.
				return fmt.Errorf("no conversation yet for trip %s: %w", joined.TripID, err)
			}
			return err
		}
		conversationID = conversation.ID
	}

	added, err := s.repo.AddParticipant(ctx, conversationID, joined.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("conversation %s not found for trip %s: %w", conversationID, joined.TripID, err)
		}
		s.cfg.Log.Error("Failed to add conversation participant",
			"conversation_id", conversationID,
			"user_id", joined.UserID,
			"error", err,
		)
		return err
	}

	if added {
		s.cfg.Log.Info("Participant added to conversation",
			"conversation_id", conversationID,
			"user_id", joined.UserID,
		)
	} else {
		s.cfg.Log.Debug("Participant already active, ignoring duplicate",
			"conversation_id", conversationID,
			"user_id", joined.UserID,
		)
	}

	return nil
}
