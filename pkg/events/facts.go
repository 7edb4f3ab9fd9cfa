package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// FactType tags each lifecycle fact carried on the choreography bus.
type FactType string

const (
	TypeTripPublished     FactType = "trip.published"
	TypeParticipantJoined FactType = "trip.participant_joined"
	TypeGroupChatCreated  FactType = "chat.group_created"
	TypeDraftReminderDue  FactType = "reminder.draft_due"
	TypeUpcomingTripDue   FactType = "reminder.upcoming_trip_due"
)

// Fact is an immutable record of something that happened in the trip
// lifecycle. Facts carry no consumer-side identity; consumers derive their
// own idempotency keys.
type Fact interface {
	FactType() FactType
	// Key is the partition key; facts about the same trip share a key so
	// same-type ordering follows publish order per publisher.
	Key() string
}

type TripPublished struct {
	TripID     string `json:"trip_id"`
	HostUserID string `json:"host_user_id"`
}

func (f TripPublished) FactType() FactType { return TypeTripPublished }
func (f TripPublished) Key() string        { return f.TripID }

type ParticipantJoined struct {
	TripID         string `json:"trip_id"`
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id,omitempty"`
}

func (f ParticipantJoined) FactType() FactType { return TypeParticipantJoined }
func (f ParticipantJoined) Key() string        { return f.TripID }

type GroupChatCreated struct {
	TripID         string `json:"trip_id"`
	ConversationID string `json:"conversation_id"`
}

func (f GroupChatCreated) FactType() FactType { return TypeGroupChatCreated }
func (f GroupChatCreated) Key() string        { return f.TripID }

type DraftReminderDue struct {
	TripID     string `json:"trip_id"`
	Title      string `json:"title"`
	HostUserID string `json:"host_user_id"`
}

func (f DraftReminderDue) FactType() FactType { return TypeDraftReminderDue }
func (f DraftReminderDue) Key() string        { return f.TripID }

type UpcomingTripDue struct {
	TripID        string    `json:"trip_id"`
	Title         string    `json:"title"`
	StartDate     time.Time `json:"start_date"`
	MemberUserIDs []string  `json:"member_user_ids"`
}

func (f UpcomingTripDue) FactType() FactType { return TypeUpcomingTripDue }
func (f UpcomingTripDue) Key() string        { return f.TripID }

// Envelope is the wire form of a fact.
type Envelope struct {
	Type      FactType        `json:"type"`
	EmittedAt time.Time       `json:"emitted_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Wrap encodes a fact into its wire envelope, stamping the emission time.
func Wrap(fact Fact) (Envelope, error) {
	payload, err := json.Marshal(fact)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s fact: %w", fact.FactType(), err)
	}
	return Envelope{
		Type:      fact.FactType(),
		EmittedAt: time.Now().UTC(),
		Payload:   payload,
	}, nil
}

// Unwrap decodes an envelope back into its typed fact. Unknown types are an
// error so consumers fail loudly on schema drift instead of dropping facts.
func Unwrap(env Envelope) (Fact, error) {
	switch env.Type {
	case TypeTripPublished:
		var f TripPublished
		if err := decodePayload(env, &f); err != nil {
			return nil, err
		}
		return f, nil
	case TypeParticipantJoined:
		var f ParticipantJoined
		if err := decodePayload(env, &f); err != nil {
			return nil, err
		}
		return f, nil
	case TypeGroupChatCreated:
		var f GroupChatCreated
		if err := decodePayload(env, &f); err != nil {
			return nil, err
		}
		return f, nil
	case TypeDraftReminderDue:
		var f DraftReminderDue
		if err := decodePayload(env, &f); err != nil {
			return nil, err
		}
		return f, nil
	case TypeUpcomingTripDue:
		var f UpcomingTripDue
		if err := decodePayload(env, &f); err != nil {
			return nil, err
		}
		return f, nil
	default:
		return nil, fmt.Errorf("unknown fact type: %s", env.Type)
	}
}

func decodePayload(env Envelope, target any) error {
	if err := json.Unmarshal(env.Payload, target); err != nil {
		return fmt.Errorf("failed to decode %s fact: %w", env.Type, err)
	}
	return nil
}
