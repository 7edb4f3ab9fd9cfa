package model

import "time"

// Conversation is the group chat attached to a published trip.
// At most one conversation exists per trip (unique index on trip_id).
type Conversation struct {
	ID           string                    `json:"id,omitempty" bson:"_id,omitempty"`
	TripID       string                    `json:"trip_id" bson:"trip_id" validate:"required"`
	Participants []ConversationParticipant `json:"participants" bson:"participants"`
	CreatedAt    time.Time                 `json:"created_at" bson:"created_at"`
}

type ConversationParticipant struct {
	UserID   string     `json:"user_id" bson:"user_id"`
	JoinedAt time.Time  `json:"joined_at" bson:"joined_at"`
	LeftAt   *time.Time `json:"left_at,omitempty" bson:"left_at,omitempty"`
}

// HasActiveParticipant reports whether the user is present and has not left.
func (c *Conversation) HasActiveParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p.UserID == userID && p.LeftAt == nil {
			return true
		}
	}
	return false
}
