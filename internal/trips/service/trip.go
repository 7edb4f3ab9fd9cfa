package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/mongo"

	tripserrors "wayfare/internal/trips/errors"
	"wayfare/internal/trips/lifecycle"
	"wayfare/internal/trips/repository"
	"wayfare/internal/trips/validator"
	"wayfare/pkg/config"
	apperrors "wayfare/pkg/errors"
	"wayfare/pkg/events"
	"wayfare/pkg/model"
	"wayfare/pkg/sanitizer"
)

type TripService interface {
	Create(ctx context.Context, trip *model.Trip) error
	GetByID(ctx context.Context, id string) (*model.Trip, error)
	GetAll(ctx context.Context, limit int, offset int64) ([]*model.Trip, int64, error)
	Update(ctx context.Context, id string, userID string, updates *model.TripUpdate) error
	Publish(ctx context.Context, id string, userID string) error
	Cancel(ctx context.Context, id string, userID string) error
	Join(ctx context.Context, id string, userID string) error
	LinkConversation(ctx context.Context, tripID string, conversationID string) error
	Register(d *events.Dispatcher)
}

type tripService struct {
	repo      repository.TripRepository
	validator *validator.TripValidator
	bus       events.Publisher
	cfg       *config.Config
}

func NewTripService(
	repo repository.TripRepository,
	validator *validator.TripValidator,
	bus events.Publisher,
	cfg *config.Config,
) TripService {
	return &tripService{
		repo:      repo,
		validator: validator,
		bus:       bus,
		cfg:       cfg,
	}
}

func (s *tripService) Create(ctx context.Context, trip *model.Trip) error {
	trip.Status = model.TripStatusDraft
	trip.ConversationID = ""
	// Members only enter through Join; a seeded list would bypass the
	// policy and capacity checks.
	trip.MemberUserIDs = nil
	s.sanitize(trip)
	if err := s.validate(trip); err != nil {
		return err
	}

	if err := s.repo.Create(ctx, trip); err != nil {
		s.cfg.Log.Error("Failed to create trip", "error", err)
		return apperrors.Internal("Failed to create trip", err)
	}

	s.cfg.Log.Info("Trip created successfully",
		"id", trip.ID,
		"host_user_id", trip.HostUserID,
		"destination", trip.Destination,
	)
	return nil
}

func (s *tripService) GetByID(ctx context.Context, id string) (*model.Trip, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Trip ID cannot be empty")
	}

	trip, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, tripserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Trip", id)
		}
		if errors.Is(err, tripserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid trip ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve trip", err)
	}

	return trip, nil
}

func (s *tripService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.Trip, int64, error) {
	var count int64
	var trips []*model.Trip
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		count, errCount = s.repo.Count(ctx)
		if errCount != nil {
			s.cfg.Log.Error("Failed to count trips", "error", errCount)
			errCount = apperrors.Internal("Failed to count trips", errCount)
		}
	}()

	go func() {
		defer wg.Done()
		trips, errFind = s.repo.FindAll(ctx, limit, offset)
		if errFind != nil {
			s.cfg.Log.Error("Failed to list trips", "error", errFind)
			errFind = apperrors.Internal("Failed to retrieve trips", errFind)
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return trips, count, nil
}

func (s *tripService) Update(ctx context.Context, id string, userID string, updates *model.TripUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Trip ID cannot be empty")
	}

	if err := s.validator.ValidateUpdate(updates); err != nil {
		s.cfg.Log.Warn("Trip update validation failed", "id", id, "error", err)
		return apperrors.Validation("Invalid update input", map[string]any{"error": err.Error()})
	}

	// Read-check-write runs under a transaction so a concurrent publish or
	// cancel cannot slip in between the draft check and the write.
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		existing, err := s.repo.FindByID(sessCtx, id)
		if err != nil {
			if errors.Is(err, tripserrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Trip", id)
			}
			if errors.Is(err, tripserrors.ErrInvalidID) {
				return apperrors.InvalidInput("Invalid trip ID format")
			}
			return apperrors.Internal("Failed to retrieve trip", err)
		}
		if existing.HostUserID != userID {
			return apperrors.Forbidden("Only the host can modify a trip")
		}
		if existing.Status != model.TripStatusDraft {
			return apperrors.Conflict("Only draft trips can be edited")
		}

		merged := s.mergeTripUpdates(existing, updates)
		s.sanitize(merged)
		if err := s.validate(merged); err != nil {
			return err
		}

		if _, err := s.repo.Update(sessCtx, id, merged); err != nil {
			return apperrors.Internal("Failed to update trip", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		s.cfg.Log.Error("Failed to update trip", "id", id, "error", err)
		return apperrors.Internal("Failed to update trip", err)
	}

	s.cfg.Log.Info("Trip updated successfully", "id", id)
	return nil
}

// Publish runs the eligibility gate and commits the DRAFT to PUBLISHED
// transition. The status precondition rides along in the update filter, so
// two concurrent publish requests resolve to exactly one winner; the loser
// sees a conflict.
func (s *tripService) Publish(ctx context.Context, id string, userID string) error {
	trip, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if trip.HostUserID != userID {
		return apperrors.Forbidden("Only the host can publish a trip")
	}

	if err := validator.CheckPublishEligibility(trip); err != nil {
		var ineligible *validator.PublishIneligibleError
		if errors.As(err, &ineligible) {
			s.cfg.Log.Warn("Trip failed publish eligibility",
				"id", id,
				"reason", string(ineligible.Reason),
			)
			return apperrors.Validation("Trip is not eligible for publishing", map[string]any{
				"reason": string(ineligible.Reason),
			})
		}
		return apperrors.Internal("Failed to check publish eligibility", err)
	}

	if err := lifecycle.CheckManual(trip.Status, model.TripStatusPublished); err != nil {
		return apperrors.Conflict(err.Error())
	}

	if err := s.repo.SetStatus(ctx, id, model.TripStatusDraft, model.TripStatusPublished); err != nil {
		if errors.Is(err, tripserrors.ErrStatusChanged) {
			return apperrors.Conflict("Trip status changed, reload and retry")
		}
		if errors.Is(err, tripserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Trip", id)
		}
		s.cfg.Log.Error("Failed to publish trip", "id", id, "error", err)
		return apperrors.Internal("Failed to publish trip", err)
	}

	s.emit(ctx, events.TripPublished{
		TripID:     id,
		HostUserID: trip.HostUserID,
	})

	s.cfg.Log.Info("Trip published successfully", "id", id, "host_user_id", trip.HostUserID)
	return nil
}

func (s *tripService) Cancel(ctx context.Context, id string, userID string) error {
	trip, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if trip.HostUserID != userID {
		return apperrors.Forbidden("Only the host can cancel a trip")
	}

	if err := lifecycle.CheckManual(trip.Status, model.TripStatusCancelled); err != nil {
		var illegal *lifecycle.IllegalTransitionError
		if errors.As(err, &illegal) {
			return apperrors.Conflict(illegal.Error())
		}
		return apperrors.Internal("Failed to check transition", err)
	}

	if err := s.repo.SetStatus(ctx, id, trip.Status, model.TripStatusCancelled); err != nil {
		if errors.Is(err, tripserrors.ErrStatusChanged) {
			return apperrors.Conflict("Trip status changed, reload and retry")
		}
		if errors.Is(err, tripserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Trip", id)
		}
		s.cfg.Log.Error("Failed to cancel trip", "id", id, "error", err)
		return apperrors.Internal("Failed to cancel trip", err)
	}

	s.cfg.Log.Info("Trip cancelled", "id", id, "previous_status", string(trip.Status))
	return nil
}

func (s *tripService) Join(ctx context.Context, id string, userID string) error {
	if userID == "" {
		return apperrors.InvalidInput("User ID cannot be empty")
	}

	trip, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if trip.Status != model.TripStatusPublished {
		return apperrors.Conflict("Trip is not open for joining")
	}
	if trip.JoinPolicy != model.JoinPolicyOpen {
		return apperrors.Forbidden("Trip requires host approval to join")
	}
	if trip.IsMember(userID) {
		return apperrors.Conflict("User is already a member of this trip")
	}
	if trip.MaxParticipants != nil && len(trip.MemberUserIDs)+1 >= *trip.MaxParticipants {
		return apperrors.Conflict("Trip has reached its participant limit")
	}

	// The snapshot checks above fast-fail; the repository re-checks
	// capacity and membership in its filter, so a racing join cannot
	// oversubscribe the trip.
	if err := s.repo.AddMember(ctx, id, userID, trip.MaxParticipants); err != nil {
		if errors.Is(err, tripserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Trip", id)
		}
		if errors.Is(err, tripserrors.ErrTripFull) {
			return apperrors.Conflict("Trip has reached its participant limit")
		}
		if errors.Is(err, tripserrors.ErrAlreadyMember) {
			return apperrors.Conflict("User is already a member of this trip")
		}
		s.cfg.Log.Error("Failed to add trip member", "id", id, "user_id", userID, "error", err)
		return apperrors.Internal("Failed to join trip", err)
	}

	s.emit(ctx, events.ParticipantJoined{
		TripID:         id,
		UserID:         userID,
		ConversationID: trip.ConversationID,
	})

	s.cfg.Log.Info("User joined trip", "id", id, "user_id", userID)
	return nil
}

// LinkConversation records the conversation created for a published trip.
// The link is first-writer-wins: a duplicate delivery finds the reference
// already set and becomes a no-op.
func (s *tripService) LinkConversation(ctx context.Context, tripID string, conversationID string) error {
	if tripID == "" || conversationID == "" {
		return apperrors.InvalidInput("Trip ID and conversation ID are required")
	}

	if err := s.repo.LinkConversation(ctx, tripID, conversationID); err != nil {
		if errors.Is(err, tripserrors.ErrConversationLinked) {
			s.cfg.Log.Debug("Conversation already linked, ignoring duplicate",
				"id", tripID,
				"conversation_id", conversationID,
			)
			return nil
		}
		if errors.Is(err, tripserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Trip", tripID)
		}
		s.cfg.Log.Error("Failed to link conversation", "id", tripID, "conversation_id", conversationID, "error", err)
		return apperrors.Internal("Failed to link conversation", err)
	}

	s.cfg.Log.Info("Conversation linked to trip", "id", tripID, "conversation_id", conversationID)
	return nil
}

// Register subscribes the handlers to the facts they react to.
func (s *tripService) Register(d *events.Dispatcher) {
	d.Register(events.TypeGroupChatCreated, s.OnGroupChatCreated)
}

// OnGroupChatCreated back-references the conversation announced by the chat
// service onto its trip.
func (s *tripService) OnGroupChatCreated(ctx context.Context, fact events.Fact) error {
	created, ok := fact.(events.GroupChatCreated)
	if !ok {
		return fmt.Errorf("unexpected fact type %T for %s", fact, events.TypeGroupChatCreated)
	}
	return s.LinkConversation(ctx, created.TripID, created.ConversationID)
}

// --- Helpers ---

func (s *tripService) sanitize(t *model.Trip) {
	t.Title = sanitizer.NormalizeTitle(t.Title)
	t.Description = sanitizer.TrimAndNormalize(t.Description)
	t.Destination = sanitizer.NormalizeDestination(t.Destination)
	for i := range t.Itinerary {
		t.Itinerary[i].Title = sanitizer.NormalizeTitle(t.Itinerary[i].Title)
		t.Itinerary[i].Notes = sanitizer.TrimAndNormalize(t.Itinerary[i].Notes)
	}
	t.MemberUserIDs = sanitizer.SanitizeSlice(t.MemberUserIDs, sanitizer.TrimAndNormalize)
}

func (s *tripService) mergeTripUpdates(existing *model.Trip, updates *model.TripUpdate) *model.Trip {
	merged := *existing

	if updates.Title != "" {
		merged.Title = updates.Title
	}
	if updates.Description != "" {
		merged.Description = updates.Description
	}
	if updates.Destination != "" {
		merged.Destination = updates.Destination
	}
	if updates.StartDate != nil {
		merged.StartDate = *updates.StartDate
	}
	if updates.EndDate != nil {
		merged.EndDate = *updates.EndDate
	}
	if updates.EstimatedBudget != nil {
		merged.EstimatedBudget = updates.EstimatedBudget
	}
	if updates.MaxParticipants != nil {
		merged.MaxParticipants = updates.MaxParticipants
	}
	if updates.JoinPolicy != "" {
		merged.JoinPolicy = updates.JoinPolicy
	}
	if updates.Itinerary != nil {
		merged.Itinerary = *updates.Itinerary
	}

	return &merged
}

func (s *tripService) validate(trip *model.Trip) error {
	if err := s.validator.Validate(trip); err != nil {
		s.cfg.Log.Warn("Trip validation failed", "error", err)
		return apperrors.Validation("Trip validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

// emit publishes a fact after the state change has committed. Delivery is
// at-least-once and reactors dedupe, so a publish failure is logged and the
// request still succeeds.
func (s *tripService) emit(ctx context.Context, fact events.Fact) {
	if err := s.bus.Publish(ctx, fact); err != nil {
		s.cfg.Log.Error("Failed to publish lifecycle fact",
			"fact_type", string(fact.FactType()),
			"key", fact.Key(),
			"error", err,
		)
	}
}
