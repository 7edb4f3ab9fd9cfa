package model

import (
	"time"
)

// TripStatus labels a trip's position in its lifecycle.
type TripStatus string

const (
	TripStatusDraft     TripStatus = "DRAFT"
	TripStatusPublished TripStatus = "PUBLISHED"
	TripStatusOngoing   TripStatus = "ONGOING"
	TripStatusCompleted TripStatus = "COMPLETED"
	TripStatusCancelled TripStatus = "CANCELLED"
)

// Join policies for published trips.
const (
	JoinPolicyOpen             = "OPEN"
	JoinPolicyApprovalRequired = "APPROVAL_REQUIRED"
)

type Trip struct {
	ID              string           `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	HostUserID      string           `json:"host_user_id" bson:"host_user_id" validate:"required,min=1,max=64"`
	Title           string           `json:"title" bson:"title" validate:"omitempty,min=2,max=150"`
	Description     string           `json:"description" bson:"description" validate:"omitempty,max=2000"`
	Destination     string           `json:"destination" bson:"destination" validate:"omitempty,min=2,max=150"`
	StartDate       time.Time        `json:"start_date,omitempty" bson:"start_date,omitempty" validate:"omitempty"`
	EndDate         time.Time        `json:"end_date,omitempty" bson:"end_date,omitempty" validate:"omitempty"`
	EstimatedBudget *float64         `json:"estimated_budget,omitempty" bson:"estimated_budget,omitempty" validate:"omitempty,gt=0"`
	MaxParticipants *int             `json:"max_participants,omitempty" bson:"max_participants,omitempty" validate:"omitempty,min=1,max=500"`
	JoinPolicy      string           `json:"join_policy,omitempty" bson:"join_policy,omitempty" validate:"omitempty,oneof=OPEN APPROVAL_REQUIRED"`
	Status          TripStatus       `json:"status" bson:"status" validate:"omitempty,oneof=DRAFT PUBLISHED ONGOING COMPLETED CANCELLED"`
	ConversationID  string           `json:"conversation_id,omitempty" bson:"conversation_id" validate:"omitempty"`
	MemberUserIDs   []string         `json:"member_user_ids" bson:"member_user_ids" validate:"omitempty,dive,min=1,max=64"`
	Itinerary       []ItineraryEntry `json:"itinerary" bson:"itinerary" validate:"omitempty,itinerary_days,dive"`
	CreatedAt       time.Time        `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt       time.Time        `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// ItineraryEntry is one planned day of a trip, ordered by DayNumber.
type ItineraryEntry struct {
	DayNumber int    `json:"day_number" bson:"day_number" validate:"required,min=1,max=365"`
	Title     string `json:"title" bson:"title" validate:"required,min=1,max=150"`
	Notes     string `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=2000"`
}

// TripUpdate carries the fields a host may change while the trip is a draft.
type TripUpdate struct {
	Title           string           `json:"title,omitempty" validate:"omitempty,min=2,max=150"`
	Description     string           `json:"description,omitempty" validate:"omitempty,max=2000"`
	Destination     string           `json:"destination,omitempty" validate:"omitempty,min=2,max=150"`
	StartDate       *time.Time       `json:"start_date,omitempty" validate:"omitempty"`
	EndDate         *time.Time       `json:"end_date,omitempty" validate:"omitempty"`
	EstimatedBudget *float64         `json:"estimated_budget,omitempty" validate:"omitempty,gt=0"`
	MaxParticipants *int             `json:"max_participants,omitempty" validate:"omitempty,min=1,max=500"`
	JoinPolicy      string           `json:"join_policy,omitempty" validate:"omitempty,oneof=OPEN APPROVAL_REQUIRED"`
	Itinerary       *[]ItineraryEntry `json:"itinerary,omitempty" validate:"omitempty,itinerary_days,dive"`
}

// IsMember reports whether the user is the host or has already joined.
func (t *Trip) IsMember(userID string) bool {
	if userID == t.HostUserID {
		return true
	}
	for _, id := range t.MemberUserIDs {
		if id == userID {
			return true
		}
	}
	return false
}
