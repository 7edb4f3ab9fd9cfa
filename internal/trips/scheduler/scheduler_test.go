package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	tripserrors "wayfare/internal/trips/errors"
	"wayfare/internal/trips/repository"
	"wayfare/pkg/config"
	mongotx "wayfare/pkg/db/mongo"
	"wayfare/pkg/events"
	"wayfare/pkg/logger"
	"wayfare/pkg/model"

	"go.mongodb.org/mongo-driver/mongo"
)

type mockTripRepo struct {
	findStartDueFn func(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error)
	findEndDueFn   func(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error)
	findDraftsFn   func(ctx context.Context, cutoff time.Time) ([]*model.Trip, error)
	findUpcomingFn func(ctx context.Context, status model.TripStatus, from, to time.Time) ([]*model.Trip, error)
	setStatusFn    func(ctx context.Context, id string, from, to model.TripStatus) error
}

func (m *mockTripRepo) Create(ctx context.Context, trip *model.Trip) error { return nil }

func (m *mockTripRepo) FindByID(ctx context.Context, id string) (*model.Trip, error) {
	return nil, tripserrors.ErrNotFound
}

func (m *mockTripRepo) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Trip, error) {
	return nil, nil
}

func (m *mockTripRepo) Count(ctx context.Context) (int64, error) { return 0, nil }

func (m *mockTripRepo) Update(ctx context.Context, id string, trip *model.Trip) (*mongo.UpdateResult, error) {
	return nil, nil
}

func (m *mockTripRepo) SetStatus(ctx context.Context, id string, from, to model.TripStatus) error {
	return m.setStatusFn(ctx, id, from, to)
}

func (m *mockTripRepo) LinkConversation(ctx context.Context, id string, conversationID string) error {
	return nil
}

func (m *mockTripRepo) AddMember(ctx context.Context, id string, userID string, maxParticipants *int) error {
	return nil
}

func (m *mockTripRepo) FindByStatusAndStartDateLTE(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error) {
	return m.findStartDueFn(ctx, status, date)
}

func (m *mockTripRepo) FindByStatusAndEndDateBefore(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error) {
	return m.findEndDueFn(ctx, status, date)
}

func (m *mockTripRepo) FindDraftsCreatedBefore(ctx context.Context, cutoff time.Time) ([]*model.Trip, error) {
	return m.findDraftsFn(ctx, cutoff)
}

func (m *mockTripRepo) FindByStatusStartingWithin(ctx context.Context, status model.TripStatus, from, to time.Time) ([]*model.Trip, error) {
	return m.findUpcomingFn(ctx, status, from, to)
}

func (m *mockTripRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return nil
}

// memoryLockRepo reproduces the storage-side claim semantics with a mutex:
// the check against lastExecution and the stamp are one atomic step, which
// is exactly what the conditional upsert gives the real repository.
type memoryLockRepo struct {
	mu    sync.Mutex
	locks map[string]int64
}

func newMemoryLockRepo() *memoryLockRepo {
	return &memoryLockRepo{locks: map[string]int64{}}
}

func (r *memoryLockRepo) TryClaim(ctx context.Context, name string, now time.Time, minInterval time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, ok := r.locks[name]
	if ok && last >= now.Add(-minInterval).UnixMilli() {
		return false, nil
	}
	r.locks[name] = now.UnixMilli()
	return true, nil
}

func (r *memoryLockRepo) Find(ctx context.Context, name string) (*model.TaskLock, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return &model.TaskLock{Name: name, LastExecution: r.locks[name]}, nil
}

type recordingBus struct {
	mu    sync.Mutex
	facts []events.Fact
}

func (b *recordingBus) Publish(ctx context.Context, fact events.Fact) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.facts = append(b.facts, fact)
	return nil
}

func (b *recordingBus) PublishAll(ctx context.Context, facts []events.Fact) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.facts = append(b.facts, facts...)
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Log: logger.New(logger.Config{
			Level:   "error",
			Format:  logger.JSON,
			Service: "scheduler-test",
		}),
		TransitionSweepInterval: time.Hour,
		TransitionLockInterval:  time.Hour,
		ReminderSweepInterval:   24 * time.Hour,
		DraftReminderAge:        72 * time.Hour,
		UpcomingTripWindow:      48 * time.Hour,
	}
}

func publishedTrip(id string, start time.Time) *model.Trip {
	return &model.Trip{
		ID:         id,
		HostUserID: "host-1",
		Title:      "Dolomites loop",
		Status:     model.TripStatusPublished,
		StartDate:  start,
		EndDate:    start.AddDate(0, 0, 5),
	}
}

func newTestScheduler(repo repository.TripRepository, locks repository.TaskLockRepository, bus events.Publisher, cfg *config.Config, now time.Time) *Scheduler {
	s := NewScheduler(repo, locks, bus, cfg)
	s.now = func() time.Time { return now }
	return s
}

func TestAdvanceToOngoing_DueTripTransitionsAndLockAdvances(t *testing.T) {
	cfg := testConfig(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)

	locks := newMemoryLockRepo()
	locks.locks[LockUpdateOngoingTrips] = now.Add(-2 * time.Hour).UnixMilli()

	var transitions []string
	repo := &mockTripRepo{
		findStartDueFn: func(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error) {
			if status != model.TripStatusPublished {
				t.Errorf("queried status %s, want PUBLISHED", status)
			}
			return []*model.Trip{publishedTrip("trip-1", yesterday)}, nil
		},
		setStatusFn: func(ctx context.Context, id string, from, to model.TripStatus) error {
			transitions = append(transitions, id+":"+string(from)+"->"+string(to))
			return nil
		},
	}

	s := newTestScheduler(repo, locks, &recordingBus{}, cfg, now)
	s.advanceToOngoing(context.Background())

	if len(transitions) != 1 || transitions[0] != "trip-1:PUBLISHED->ONGOING" {
		t.Errorf("transitions = %v, want [trip-1:PUBLISHED->ONGOING]", transitions)
	}

	lock, _ := locks.Find(context.Background(), LockUpdateOngoingTrips)
	if lock.LastExecution != now.UnixMilli() {
		t.Errorf("lock last execution = %d, want tick time %d", lock.LastExecution, now.UnixMilli())
	}
}

func TestAdvanceToOngoing_FreshLockSkipsSweep(t *testing.T) {
	cfg := testConfig(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	locks := newMemoryLockRepo()
	locks.locks[LockUpdateOngoingTrips] = now.Add(-30 * time.Minute).UnixMilli()

	repo := &mockTripRepo{
		findStartDueFn: func(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error) {
			t.Fatal("sweep must not query trips while the lock is fresh")
			return nil, nil
		},
	}

	s := newTestScheduler(repo, locks, &recordingBus{}, cfg, now)
	s.advanceToOngoing(context.Background())

	lock, _ := locks.Find(context.Background(), LockUpdateOngoingTrips)
	if lock.LastExecution != now.Add(-30*time.Minute).UnixMilli() {
		t.Errorf("fresh lock timestamp moved to %d, want unchanged", lock.LastExecution)
	}
}

func TestTryClaim_MutualExclusionUnderConcurrency(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	t.Run("stale lock admits exactly one claimant", func(t *testing.T) {
		locks := newMemoryLockRepo()
		locks.locks["X"] = now.Add(-2 * time.Hour).UnixMilli()

		const callers = 8
		var claims int32
		var mu sync.Mutex
		var wg sync.WaitGroup
		wg.Add(callers)
		for i := 0; i < callers; i++ {
			go func() {
				defer wg.Done()
				claimed, err := locks.TryClaim(context.Background(), "X", now, time.Hour)
				if err != nil {
					t.Errorf("TryClaim() error = %v", err)
					return
				}
				if claimed {
					mu.Lock()
					claims++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if claims != 1 {
			t.Errorf("%d callers claimed the lock, want exactly 1", claims)
		}
	})

	t.Run("fresh lock admits nobody", func(t *testing.T) {
		locks := newMemoryLockRepo()
		locks.locks["X"] = now.Add(-30 * time.Minute).UnixMilli()

		const callers = 8
		var wg sync.WaitGroup
		wg.Add(callers)
		for i := 0; i < callers; i++ {
			go func() {
				defer wg.Done()
				claimed, err := locks.TryClaim(context.Background(), "X", now, time.Hour)
				if err != nil {
					t.Errorf("TryClaim() error = %v", err)
					return
				}
				if claimed {
					t.Error("claimed a lock whose last run is within the interval")
				}
			}()
		}
		wg.Wait()
	})
}

func TestAdvanceToCompleted_EndedTripTransitions(t *testing.T) {
	cfg := testConfig(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	locks := newMemoryLockRepo()

	var transitions []string
	repo := &mockTripRepo{
		findEndDueFn: func(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error) {
			ended := publishedTrip("trip-2", now.AddDate(0, 0, -10))
			ended.Status = model.TripStatusOngoing
			return []*model.Trip{ended}, nil
		},
		setStatusFn: func(ctx context.Context, id string, from, to model.TripStatus) error {
			transitions = append(transitions, id+":"+string(from)+"->"+string(to))
			return nil
		},
	}

	s := newTestScheduler(repo, locks, &recordingBus{}, cfg, now)
	s.advanceToCompleted(context.Background())

	if len(transitions) != 1 || transitions[0] != "trip-2:ONGOING->COMPLETED" {
		t.Errorf("transitions = %v, want [trip-2:ONGOING->COMPLETED]", transitions)
	}
}

func TestApplyTransitions_LostRaceIsSkippedNotFatal(t *testing.T) {
	cfg := testConfig(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	locks := newMemoryLockRepo()

	var attempts []string
	repo := &mockTripRepo{
		findStartDueFn: func(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error) {
			return []*model.Trip{
				publishedTrip("trip-1", now.AddDate(0, 0, -1)),
				publishedTrip("trip-2", now.AddDate(0, 0, -1)),
			}, nil
		},
		setStatusFn: func(ctx context.Context, id string, from, to model.TripStatus) error {
			attempts = append(attempts, id)
			if id == "trip-1" {
				return tripserrors.ErrStatusChanged
			}
			return nil
		},
	}

	s := newTestScheduler(repo, locks, &recordingBus{}, cfg, now)
	s.advanceToOngoing(context.Background())

	if len(attempts) != 2 {
		t.Errorf("attempted %d transitions, want 2 (a lost race must not abort the batch)", len(attempts))
	}
}

func TestRunReminderSweep_EmitsDraftAndUpcomingFacts(t *testing.T) {
	cfg := testConfig(t)
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	staleDraft := &model.Trip{
		ID:         "draft-1",
		HostUserID: "host-1",
		Title:      "Unfinished plan",
		Status:     model.TripStatusDraft,
	}
	upcoming := publishedTrip("trip-3", now.Add(24*time.Hour))
	upcoming.MemberUserIDs = []string{"user-7"}

	repo := &mockTripRepo{
		findDraftsFn: func(ctx context.Context, cutoff time.Time) ([]*model.Trip, error) {
			want := now.Add(-cfg.DraftReminderAge)
			if !cutoff.Equal(want) {
				t.Errorf("draft cutoff = %s, want %s", cutoff, want)
			}
			return []*model.Trip{staleDraft}, nil
		},
		findUpcomingFn: func(ctx context.Context, status model.TripStatus, from, to time.Time) ([]*model.Trip, error) {
			return []*model.Trip{upcoming}, nil
		},
	}

	bus := &recordingBus{}
	s := newTestScheduler(repo, newMemoryLockRepo(), bus, cfg, now)
	s.RunReminderSweep(context.Background())

	if len(bus.facts) != 2 {
		t.Fatalf("published %d facts, want 2", len(bus.facts))
	}

	draftFact, ok := bus.facts[0].(events.DraftReminderDue)
	if !ok {
		t.Fatalf("first fact type = %T, want events.DraftReminderDue", bus.facts[0])
	}
	if draftFact.TripID != "draft-1" || draftFact.HostUserID != "host-1" {
		t.Errorf("DraftReminderDue = %+v", draftFact)
	}

	upcomingFact, ok := bus.facts[1].(events.UpcomingTripDue)
	if !ok {
		t.Fatalf("second fact type = %T, want events.UpcomingTripDue", bus.facts[1])
	}
	if len(upcomingFact.MemberUserIDs) != 2 || upcomingFact.MemberUserIDs[0] != "host-1" {
		t.Errorf("UpcomingTripDue members = %v, want host first then joiners", upcomingFact.MemberUserIDs)
	}
}
