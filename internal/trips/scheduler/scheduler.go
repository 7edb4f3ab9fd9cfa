package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	tripserrors "wayfare/internal/trips/errors"
	"wayfare/internal/trips/lifecycle"
	"wayfare/internal/trips/repository"
	"wayfare/pkg/config"
	"wayfare/pkg/events"
	"wayfare/pkg/model"
)

// Lock names for the two transition jobs. Each name owns its own TaskLock
// document, so the jobs never block each other.
const (
	LockUpdateOngoingTrips   = "update_ongoing_trips"
	LockUpdateCompletedTrips = "update_completed_trips"
)

// Scheduler runs the periodic trip lifecycle jobs. The two transition
// sweeps are guarded by persisted task locks so that multiple instances of
// the service advance each trip exactly once per interval. The reminder
// sweep takes no lock: it only emits facts, and the reactors dedupe.
type Scheduler struct {
	trips repository.TripRepository
	locks repository.TaskLockRepository
	bus   events.Publisher
	cfg   *config.Config

	// now is swappable for tests.
	now func() time.Time

	stop chan struct{}
	wg   sync.WaitGroup
}

func NewScheduler(
	trips repository.TripRepository,
	locks repository.TaskLockRepository,
	bus events.Publisher,
	cfg *config.Config,
) *Scheduler {
	return &Scheduler{
		trips: trips,
		locks: locks,
		bus:   bus,
		cfg:   cfg,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
}

// Start launches the periodic jobs. Each job runs on its own ticker and
// never blocks the others; a tick that overruns its period is simply
// followed by the next tick finding fewer qualifying trips.
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(2)

	go s.loop(ctx, s.cfg.TransitionSweepInterval, s.RunTransitionSweeps)
	go s.loop(ctx, s.cfg.ReminderSweepInterval, s.RunReminderSweep)

	s.cfg.Log.Info("Trip scheduler started",
		"transition_sweep_interval", s.cfg.TransitionSweepInterval,
		"reminder_sweep_interval", s.cfg.ReminderSweepInterval,
	)
}

func (s *Scheduler) Stop() {
	close(s.stop)
	s.wg.Wait()
	s.cfg.Log.Info("Trip scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, job func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			job(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// RunTransitionSweeps executes both transition jobs once. Exported so the
// service binary can trigger an immediate sweep on startup.
func (s *Scheduler) RunTransitionSweeps(ctx context.Context) {
	s.advanceToOngoing(ctx)
	s.advanceToCompleted(ctx)
}

// advanceToOngoing moves published trips whose start date has arrived into
// ONGOING. The lock claim is the commit point: a claim that succeeds stamps
// lastExecution immediately, so a crash mid-sweep leaves the remaining
// trips for the next interval rather than re-claiming straight away.
func (s *Scheduler) advanceToOngoing(ctx context.Context) {
	now := s.now().UTC()

	claimed, err := s.locks.TryClaim(ctx, LockUpdateOngoingTrips, now, s.cfg.TransitionLockInterval)
	if err != nil {
		s.cfg.Log.Error("Failed to claim task lock", "lock", LockUpdateOngoingTrips, "error", err)
		return
	}
	if !claimed {
		s.cfg.Log.Debug("Task lock held by a recent run, skipping sweep", "lock", LockUpdateOngoingTrips)
		return
	}

	candidates, err := s.trips.FindByStatusAndStartDateLTE(ctx, model.TripStatusPublished, now)
	if err != nil {
		s.cfg.Log.Error("Failed to query trips due to start", "lock", LockUpdateOngoingTrips, "error", err)
		return
	}

	advanced := s.applyTransitions(ctx, candidates, model.TripStatusPublished, model.TripStatusOngoing)
	s.cfg.Log.Info("Ongoing sweep completed",
		"candidates", len(candidates),
		"advanced", advanced,
	)
}

func (s *Scheduler) advanceToCompleted(ctx context.Context) {
	now := s.now().UTC()

	claimed, err := s.locks.TryClaim(ctx, LockUpdateCompletedTrips, now, s.cfg.TransitionLockInterval)
	if err != nil {
		s.cfg.Log.Error("Failed to claim task lock", "lock", LockUpdateCompletedTrips, "error", err)
		return
	}
	if !claimed {
		s.cfg.Log.Debug("Task lock held by a recent run, skipping sweep", "lock", LockUpdateCompletedTrips)
		return
	}

	candidates, err := s.trips.FindByStatusAndEndDateBefore(ctx, model.TripStatusOngoing, now)
	if err != nil {
		s.cfg.Log.Error("Failed to query trips due to complete", "lock", LockUpdateCompletedTrips, "error", err)
		return
	}

	advanced := s.applyTransitions(ctx, candidates, model.TripStatusOngoing, model.TripStatusCompleted)
	s.cfg.Log.Info("Completed sweep completed",
		"candidates", len(candidates),
		"advanced", advanced,
	)
}

// applyTransitions commits each trip's transition independently. A trip
// whose status changed between scan and update is skipped; the next scan's
// predicate no longer selects it, so partial failures self-heal without
// compensation.
func (s *Scheduler) applyTransitions(ctx context.Context, candidates []*model.Trip, from, to model.TripStatus) int {
	advanced := 0
	for _, trip := range candidates {
		if !lifecycle.CanAutoTransition(trip.Status, to) {
			continue
		}

		err := s.trips.SetStatus(ctx, trip.ID, from, to)
		if err != nil {
			if errors.Is(err, tripserrors.ErrStatusChanged) || errors.Is(err, tripserrors.ErrNotFound) {
				continue
			}
			s.cfg.Log.Error("Failed to advance trip",
				"id", trip.ID,
				"from", string(from),
				"to", string(to),
				"error", err,
			)
			continue
		}
		advanced++
	}
	return advanced
}

// RunReminderSweep emits reminder facts for stale drafts and trips about
// to depart. Facts are buffered during the scan and published afterwards
// so no storage cursor stays open across transport calls.
func (s *Scheduler) RunReminderSweep(ctx context.Context) {
	now := s.now().UTC()
	var facts []events.Fact

	drafts, err := s.trips.FindDraftsCreatedBefore(ctx, now.Add(-s.cfg.DraftReminderAge))
	if err != nil {
		s.cfg.Log.Error("Failed to query stale drafts", "error", err)
	} else {
		for _, trip := range drafts {
			facts = append(facts, events.DraftReminderDue{
				TripID:     trip.ID,
				Title:      trip.Title,
				HostUserID: trip.HostUserID,
			})
		}
	}

	upcoming, err := s.trips.FindByStatusStartingWithin(ctx, model.TripStatusPublished, now, now.Add(s.cfg.UpcomingTripWindow))
	if err != nil {
		s.cfg.Log.Error("Failed to query upcoming trips", "error", err)
	} else {
		for _, trip := range upcoming {
			members := append([]string{trip.HostUserID}, trip.MemberUserIDs...)
			facts = append(facts, events.UpcomingTripDue{
				TripID:        trip.ID,
				Title:         trip.Title,
				StartDate:     trip.StartDate,
				MemberUserIDs: members,
			})
		}
	}

	if err := s.bus.PublishAll(ctx, facts); err != nil {
		s.cfg.Log.Error("Failed to publish reminder facts", "facts", len(facts), "error", err)
		return
	}

	s.cfg.Log.Info("Reminder sweep completed", "facts", len(facts))
}
