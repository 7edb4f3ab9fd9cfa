package model

import (
	"fmt"
	"time"
)

// Notification types emitted by the reminder sweeps.
const (
	NotificationTypeDraftReminder = "DRAFT_REMINDER"
	NotificationTypeUpcomingTrip  = "UPCOMING_TRIP"
)

type Notification struct {
	ID        string    `json:"id,omitempty" bson:"_id,omitempty"`
	UserID    string    `json:"user_id" bson:"user_id" validate:"required"`
	TripID    string    `json:"trip_id" bson:"trip_id" validate:"required"`
	Type      string    `json:"type" bson:"type" validate:"required,oneof=DRAFT_REMINDER UPCOMING_TRIP"`
	Title     string    `json:"title" bson:"title"`
	Body      string    `json:"body" bson:"body"`
	DedupKey  string    `json:"-" bson:"dedup_key"`
	Read      bool      `json:"read" bson:"read"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// NotificationDedupKey builds the natural idempotency key for a reminder.
// Redelivered facts and overlapping sweeps produce the same key for the same
// trip, type, user and emission day, so the unique index on dedup_key turns
// duplicates into no-ops.
func NotificationDedupKey(tripID, notifType, userID string, day time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s", tripID, notifType, userID, day.UTC().Format("2006-01-02"))
}
