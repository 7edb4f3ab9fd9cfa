package service

import (
	"context"
	"testing"
	"time"

	tripserrors "wayfare/internal/trips/errors"
	"wayfare/internal/trips/validator"
	"wayfare/pkg/config"
	apperrors "wayfare/pkg/errors"
	"wayfare/pkg/events"
	"wayfare/pkg/logger"
	"wayfare/pkg/model"
	mongotx "wayfare/pkg/db/mongo"

	"go.mongodb.org/mongo-driver/mongo"
)

type mockTripRepo struct {
	createFn           func(ctx context.Context, trip *model.Trip) error
	findByIDFn         func(ctx context.Context, id string) (*model.Trip, error)
	setStatusFn        func(ctx context.Context, id string, from, to model.TripStatus) error
	linkConversationFn func(ctx context.Context, id string, conversationID string) error
	addMemberFn        func(ctx context.Context, id string, userID string, maxParticipants *int) error
	updateFn           func(ctx context.Context, id string, trip *model.Trip) (*mongo.UpdateResult, error)
}

func (m *mockTripRepo) Create(ctx context.Context, trip *model.Trip) error {
	return m.createFn(ctx, trip)
}

func (m *mockTripRepo) FindByID(ctx context.Context, id string) (*model.Trip, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockTripRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Trip, error) {
	return nil, nil
}

func (m *mockTripRepo) Count(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockTripRepo) Update(ctx context.Context, id string, trip *model.Trip) (*mongo.UpdateResult, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, trip)
	}
	return &mongo.UpdateResult{MatchedCount: 1}, nil
}

func (m *mockTripRepo) SetStatus(ctx context.Context, id string, from, to model.TripStatus) error {
	return m.setStatusFn(ctx, id, from, to)
}

func (m *mockTripRepo) LinkConversation(ctx context.Context, id string, conversationID string) error {
	return m.linkConversationFn(ctx, id, conversationID)
}

func (m *mockTripRepo) AddMember(ctx context.Context, id string, userID string, maxParticipants *int) error {
	return m.addMemberFn(ctx, id, userID, maxParticipants)
}

func (m *mockTripRepo) FindByStatusAndStartDateLTE(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error) {
	return nil, nil
}

func (m *mockTripRepo) FindByStatusAndEndDateBefore(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error) {
	return nil, nil
}

func (m *mockTripRepo) FindDraftsCreatedBefore(ctx context.Context, cutoff time.Time) ([]*model.Trip, error) {
	return nil, nil
}

func (m *mockTripRepo) FindByStatusStartingWithin(ctx context.Context, status model.TripStatus, from, to time.Time) ([]*model.Trip, error) {
	return nil, nil
}

func (m *mockTripRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
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
			Service: "trips-test",
		}),
	}
}

func draftTrip(id string) *model.Trip {
	budget := 500.0
	maxParticipants := 4
	start := time.Now().UTC().Truncate(24 * time.Hour)
	return &model.Trip{
		ID:              id,
		HostUserID:      "host-1",
		Title:           "Dolomites loop",
		Description:     "Five days of hut-to-hut hiking",
		Destination:     "Dolomites, Italy",
		StartDate:       start,
		EndDate:         start.AddDate(0, 0, 5),
		EstimatedBudget: &budget,
		MaxParticipants: &maxParticipants,
		JoinPolicy:      model.JoinPolicyOpen,
		Status:          model.TripStatusDraft,
		Itinerary: []model.ItineraryEntry{
			{DayNumber: 1, Title: "Arrival and first ascent"},
		},
	}
}

func newTestService(repo *mockTripRepo, bus events.Publisher, cfg *config.Config) TripService {
	return NewTripService(repo, validator.NewTripValidator(cfg.Log), bus, cfg)
}

func TestPublish_EligibleDraftEmitsTripPublished(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")

	var setFrom, setTo model.TripStatus
	repo := &mockTripRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Trip, error) {
			return trip, nil
		},
		setStatusFn: func(ctx context.Context, id string, from, to model.TripStatus) error {
			setFrom, setTo = from, to
			return nil
		},
	}
	bus := &recordingBus{}
	svc := newTestService(repo, bus, cfg)

	if err := svc.Publish(context.Background(), trip.ID, "host-1"); err != nil {
		t.Fatalf("Publish() = %v, want nil", err)
	}

	if setFrom != model.TripStatusDraft || setTo != model.TripStatusPublished {
		t.Errorf("SetStatus called with %s -> %s, want DRAFT -> PUBLISHED", setFrom, setTo)
	}

	if len(bus.facts) != 1 {
		t.Fatalf("published %d facts, want 1", len(bus.facts))
	}
	published, ok := bus.facts[0].(events.TripPublished)
	if !ok {
		t.Fatalf("fact type = %T, want events.TripPublished", bus.facts[0])
	}
	if published.TripID != trip.ID || published.HostUserID != "host-1" {
		t.Errorf("TripPublished = %+v, want TripID=%s HostUserID=host-1", published, trip.ID)
	}
}

func TestPublish_IneligibleDraftStaysDraft(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")
	zero := 0.0
	trip.EstimatedBudget = &zero

	repo := &mockTripRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Trip, error) {
			return trip, nil
		},
		setStatusFn: func(ctx context.Context, id string, from, to model.TripStatus) error {
			t.Fatal("SetStatus must not be called for an ineligible trip")
			return nil
		},
	}
	bus := &recordingBus{}
	svc := newTestService(repo, bus, cfg)

	err := svc.Publish(context.Background(), trip.ID, "host-1")
	if err == nil {
		t.Fatal("Publish() = nil, want validation error")
	}

	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeValidation {
		t.Errorf("code = %s, want %s", appErr.Code, apperrors.CodeValidation)
	}
	if reason := appErr.Details["reason"]; reason != string(validator.ReasonInvalidBudget) {
		t.Errorf("reason = %v, want %s", reason, validator.ReasonInvalidBudget)
	}
	if len(bus.facts) != 0 {
		t.Errorf("published %d facts, want 0", len(bus.facts))
	}
}

func TestPublish_NonHostForbidden(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")

	repo := &mockTripRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Trip, error) {
			return trip, nil
		},
	}
	svc := newTestService(repo, &recordingBus{}, cfg)

	err := svc.Publish(context.Background(), trip.ID, "someone-else")
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeForbidden {
		t.Fatalf("Publish() by non-host = %v, want FORBIDDEN", err)
	}
}

func TestPublish_LostRaceReturnsConflict(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")

	repo := &mockTripRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Trip, error) {
			return trip, nil
		},
		setStatusFn: func(ctx context.Context, id string, from, to model.TripStatus) error {
			return tripserrors.ErrStatusChanged
		},
	}
	bus := &recordingBus{}
	svc := newTestService(repo, bus, cfg)

	err := svc.Publish(context.Background(), trip.ID, "host-1")
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Fatalf("Publish() after lost race = %v, want CONFLICT", err)
	}
	if len(bus.facts) != 0 {
		t.Errorf("published %d facts after lost race, want 0", len(bus.facts))
	}
}

func TestCancel_OngoingTripRejected(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")
	trip.Status = model.TripStatusOngoing

	repo := &mockTripRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Trip, error) {
			return trip, nil
		},
		setStatusFn: func(ctx context.Context, id string, from, to model.TripStatus) error {
			t.Fatal("SetStatus must not be called for an illegal transition")
			return nil
		},
	}
	svc := newTestService(repo, &recordingBus{}, cfg)

	err := svc.Cancel(context.Background(), trip.ID, "host-1")
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Fatalf("Cancel() of ongoing trip = %v, want CONFLICT", err)
	}
}

func TestJoin_OpenPublishedTripEmitsParticipantJoined(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")
	trip.Status = model.TripStatusPublished
	trip.ConversationID = "conv-9"

	var addedUser string
	var capacity *int
	repo := &mockTripRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Trip, error) {
			return trip, nil
		},
		addMemberFn: func(ctx context.Context, id string, userID string, maxParticipants *int) error {
			addedUser = userID
			capacity = maxParticipants
			return nil
		},
	}
	bus := &recordingBus{}
	svc := newTestService(repo, bus, cfg)

	if err := svc.Join(context.Background(), trip.ID, "user-7"); err != nil {
		t.Fatalf("Join() = %v, want nil", err)
	}
	if addedUser != "user-7" {
		t.Errorf("AddMember called with %q, want user-7", addedUser)
	}
	if capacity == nil || *capacity != *trip.MaxParticipants {
		t.Errorf("AddMember capacity = %v, want %d", capacity, *trip.MaxParticipants)
	}

	if len(bus.facts) != 1 {
		t.Fatalf("published %d facts, want 1", len(bus.facts))
	}
	joined, ok := bus.facts[0].(events.ParticipantJoined)
	if !ok {
		t.Fatalf("fact type = %T, want events.ParticipantJoined", bus.facts[0])
	}
	if joined.UserID != "user-7" || joined.ConversationID != "conv-9" {
		t.Errorf("ParticipantJoined = %+v, want UserID=user-7 ConversationID=conv-9", joined)
	}
}

func TestJoin_FullTripRejected(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")
	trip.Status = model.TripStatusPublished
	two := 2
	trip.MaxParticipants = &two
	trip.MemberUserIDs = []string{"user-1"}

	repo := &mockTripRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Trip, error) {
			return trip, nil
		},
	}
	svc := newTestService(repo, &recordingBus{}, cfg)

	err := svc.Join(context.Background(), trip.ID, "user-2")
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Fatalf("Join() on full trip = %v, want CONFLICT", err)
	}
}

func TestJoin_DraftTripRejected(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")

	repo := &mockTripRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Trip, error) {
			return trip, nil
		},
	}
	svc := newTestService(repo, &recordingBus{}, cfg)

	err := svc.Join(context.Background(), trip.ID, "user-7")
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Fatalf("Join() on draft trip = %v, want CONFLICT", err)
	}
}

func TestLinkConversation_DuplicateDeliveryIsNoOp(t *testing.T) {
	cfg := testConfig(t)

	calls := 0
	repo := &mockTripRepo{
		linkConversationFn: func(ctx context.Context, id string, conversationID string) error {
			calls++
			// First delivery wins the write, second finds it already set.
			if calls == 1 {
				return nil
			}
			return tripserrors.ErrConversationLinked
		},
	}
	svc := newTestService(repo, &recordingBus{}, cfg)

	if err := svc.LinkConversation(context.Background(), "trip-1", "conv-1"); err != nil {
		t.Fatalf("first LinkConversation() = %v, want nil", err)
	}
	if err := svc.LinkConversation(context.Background(), "trip-1", "conv-1"); err != nil {
		t.Fatalf("second LinkConversation() = %v, want nil", err)
	}
	if calls != 2 {
		t.Errorf("repository called %d times, want 2", calls)
	}
}

func TestUpdate_DraftFieldsMerged(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")

	var written *model.Trip
	repo := &mockTripRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Trip, error) {
			return trip, nil
		},
		updateFn: func(ctx context.Context, id string, trip *model.Trip) (*mongo.UpdateResult, error) {
			written = trip
			return &mongo.UpdateResult{MatchedCount: 1}, nil
		},
	}
	svc := newTestService(repo, &recordingBus{}, cfg)

	budget := 750.0
	updates := &model.TripUpdate{
		Title:           "Dolomites traverse",
		EstimatedBudget: &budget,
	}
	if err := svc.Update(context.Background(), trip.ID, "host-1", updates); err != nil {
		t.Fatalf("Update() = %v, want nil", err)
	}

	if written == nil {
		t.Fatal("repository Update was not called")
	}
	if written.Title != "Dolomites traverse" {
		t.Errorf("Title = %q, want %q", written.Title, "Dolomites traverse")
	}
	if written.EstimatedBudget == nil || *written.EstimatedBudget != 750.0 {
		t.Errorf("EstimatedBudget = %v, want 750", written.EstimatedBudget)
	}
	if written.Description != trip.Description {
		t.Errorf("Description = %q, untouched fields must survive the merge", written.Description)
	}
}

func TestUpdate_NonHostForbidden(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")

	repo := &mockTripRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Trip, error) {
			return trip, nil
		},
	}
	svc := newTestService(repo, &recordingBus{}, cfg)

	err := svc.Update(context.Background(), trip.ID, "intruder", &model.TripUpdate{Title: "Hijacked"})
	if err == nil {
		t.Fatal("Update() by non-host succeeded, want FORBIDDEN")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeForbidden {
		t.Errorf("code = %s, want %s", appErr.Code, apperrors.CodeForbidden)
	}
}

func TestUpdate_PublishedTripRejected(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")
	trip.Status = model.TripStatusPublished

	repo := &mockTripRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Trip, error) {
			return trip, nil
		},
	}
	svc := newTestService(repo, &recordingBus{}, cfg)

	err := svc.Update(context.Background(), trip.ID, "host-1", &model.TripUpdate{Title: "Too late"})
	if err == nil {
		t.Fatal("Update() on published trip succeeded, want CONFLICT")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("code = %s, want %s", appErr.Code, apperrors.CodeConflict)
	}
}

func TestJoin_RacingJoinsCannotOversubscribe(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")
	trip.Status = model.TripStatusPublished
	four := 4
	trip.MaxParticipants = &four
	trip.MemberUserIDs = []string{"user-1", "user-2"}

	// Both joins read the same snapshot, so both pass the service's
	// capacity check. The repository applies its filter against live
	// state, the way the Mongo predicate does, and only one write lands.
	members := append([]string{}, trip.MemberUserIDs...)
	repo := &mockTripRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Trip, error) {
			snapshot := *trip
			return &snapshot, nil
		},
		addMemberFn: func(ctx context.Context, id string, userID string, maxParticipants *int) error {
			if maxParticipants != nil && len(members) >= *maxParticipants-1 {
				return tripserrors.ErrTripFull
			}
			members = append(members, userID)
			return nil
		},
	}
	bus := &recordingBus{}
	svc := newTestService(repo, bus, cfg)

	if err := svc.Join(context.Background(), trip.ID, "user-3"); err != nil {
		t.Fatalf("first Join() = %v, want nil", err)
	}

	err := svc.Join(context.Background(), trip.ID, "user-4")
	if err == nil {
		t.Fatal("second Join() for the last seat succeeded, want CONFLICT")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("code = %s, want %s", appErr.Code, apperrors.CodeConflict)
	}

	if len(members) != 3 {
		t.Errorf("member count = %d, want 3 (host holds the fourth seat)", len(members))
	}
	if len(bus.facts) != 1 {
		t.Errorf("published %d facts, want 1: the losing join must not emit", len(bus.facts))
	}
}

func TestCreate_SeededMembersCleared(t *testing.T) {
	cfg := testConfig(t)
	trip := draftTrip("507f1f77bcf86cd799439011")
	trip.Status = model.TripStatusPublished
	trip.ConversationID = "conv-smuggled"
	trip.MemberUserIDs = []string{"stowaway-1", "stowaway-2"}

	var stored *model.Trip
	repo := &mockTripRepo{
		createFn: func(ctx context.Context, trip *model.Trip) error {
			stored = trip
			return nil
		},
	}
	svc := newTestService(repo, &recordingBus{}, cfg)

	if err := svc.Create(context.Background(), trip); err != nil {
		t.Fatalf("Create() = %v, want nil", err)
	}

	if stored.Status != model.TripStatusDraft {
		t.Errorf("Status = %s, want DRAFT", stored.Status)
	}
	if stored.ConversationID != "" {
		t.Errorf("ConversationID = %q, want empty", stored.ConversationID)
	}
	if len(stored.MemberUserIDs) != 0 {
		t.Errorf("MemberUserIDs = %v, members may only enter through Join", stored.MemberUserIDs)
	}
}
