package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wayfare/internal/notifications/repository"
	"wayfare/pkg/config"
	apperrors "wayfare/pkg/errors"
	"wayfare/pkg/events"
	"wayfare/pkg/model"
)

// NotificationService reacts to reminder facts by creating notification
// records. Dedup happens per (trip, type, user, day), so however many
// overlapping sweeps emit the same reminder, a user sees it once per day.
type NotificationService struct {
	repo repository.NotificationRepository
	cfg  *config.Config

	// now is swappable for tests; the dedup key depends on the day.
	now func() time.Time
}

func NewNotificationService(repo repository.NotificationRepository, cfg *config.Config) *NotificationService {
	return &NotificationService{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

// Register subscribes the handlers to the facts they react to.
func (s *NotificationService) Register(d *events.Dispatcher) {
	d.Register(events.TypeDraftReminderDue, s.OnDraftReminderDue)
	d.Register(events.TypeUpcomingTripDue, s.OnUpcomingTripDue)
}

func (s *NotificationService) OnDraftReminderDue(ctx context.Context, fact events.Fact) error {
	due, ok := fact.(events.DraftReminderDue)
	if !ok {
		return fmt.Errorf("unexpected fact type %T for %s", fact, events.TypeDraftReminderDue)
	}

	notification := &model.Notification{
		UserID:   due.HostUserID,
		TripID:   due.TripID,
		Type:     model.NotificationTypeDraftReminder,
		Title:    "Your trip is still a draft",
		Body:     fmt.Sprintf("%q is waiting to be completed and published.", due.Title),
		DedupKey: model.NotificationDedupKey(due.TripID, model.NotificationTypeDraftReminder, due.HostUserID, s.now()),
	}

	created, err := s.repo.CreateIfAbsent(ctx, notification)
	if err != nil {
		s.cfg.Log.Error("Failed to create draft reminder",
			"trip_id", due.TripID,
			"user_id", due.HostUserID,
			"error", err,
		)
		return err
	}

	if created {
		s.cfg.Log.Info("Draft reminder created", "trip_id", due.TripID, "user_id", due.HostUserID)
	} else {
		s.cfg.Log.Debug("Draft reminder already sent today, ignoring duplicate",
			"trip_id", due.TripID,
			"user_id", due.HostUserID,
		)
	}
	return nil
}

func (s *NotificationService) OnUpcomingTripDue(ctx context.Context, fact events.Fact) error {
	due, ok := fact.(events.UpcomingTripDue)
	if !ok {
		return fmt.Errorf("unexpected fact type %T for %s", fact, events.TypeUpcomingTripDue)
	}

	var firstErr error
	for _, userID := range due.MemberUserIDs {
		notification := &model.Notification{
			UserID:   userID,
			TripID:   due.TripID,
			Type:     model.NotificationTypeUpcomingTrip,
			Title:    "Your trip starts soon",
			Body:     fmt.Sprintf("%q departs on %s.", due.Title, due.StartDate.Format("Jan 2, 2006")),
			DedupKey: model.NotificationDedupKey(due.TripID, model.NotificationTypeUpcomingTrip, userID, s.now()),
		}

		created, err := s.repo.CreateIfAbsent(ctx, notification)
		if err != nil {
			s.cfg.Log.Error("Failed to create upcoming trip notification",
				"trip_id", due.TripID,
				"user_id", userID,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if created {
			s.cfg.Log.Info("Upcoming trip notification created", "trip_id", due.TripID, "user_id", userID)
		}
	}

	// Returning the first failure makes the transport redeliver; members
	// already notified are covered by the dedup key.
	return firstErr
}

// GetForUser returns a user's notifications, newest first.
func (s *NotificationService) GetForUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Notification, int64, error) {
	if userID == "" {
		return nil, 0, apperrors.InvalidInput("User ID cannot be empty")
	}

	notifications, err := s.repo.FindByUser(ctx, userID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list notifications", "user_id", userID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve notifications", err)
	}

	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		s.cfg.Log.Error("Failed to count notifications", "user_id", userID, "error", err)
		return nil, 0, apperrors.Internal("Failed to count notifications", err)
	}

	return notifications, count, nil
}

// MarkRead flags a notification as read for its owner.
func (s *NotificationService) MarkRead(ctx context.Context, id string, userID string) error {
	if id == "" {
		return apperrors.InvalidInput("Notification ID cannot be empty")
	}

	if err := s.repo.MarkRead(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFoundWithID("Notification", id)
		}
		s.cfg.Log.Error("Failed to mark notification read", "id", id, "user_id", userID, "error", err)
		return apperrors.Internal("Failed to update notification", err)
	}
	return nil
}
