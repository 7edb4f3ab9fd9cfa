package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wayfare/pkg/config"
	"wayfare/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Conversations"
)

var ErrNotFound = errors.New("conversation not found")

type ConversationRepository interface {
	CreateIfAbsent(ctx context.Context, tripID string, hostUserID string) (*model.Conversation, bool, error)
	FindByTripID(ctx context.Context, tripID string) (*model.Conversation, error)
	AddParticipant(ctx context.Context, conversationID string, userID string) (bool, error)
	RemoveParticipant(ctx context.Context, conversationID string, userID string) error
}

type mongoConversationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoConversationRepository(cfg *config.Config) ConversationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoConversationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// CreateIfAbsent inserts a conversation for the trip with the host as the
// first participant. The unique index on trip_id makes duplicate deliveries
// of TripPublished converge on one document: the losing insert reads back
// the winner. Returns whether this call created the conversation.
func (r *mongoConversationRepository) CreateIfAbsent(ctx context.Context, tripID string, hostUserID string) (*model.Conversation, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	conversation := &model.Conversation{
		ID:     uuid.NewString(),
		TripID: tripID,
		Participants: []model.ConversationParticipant{
			{UserID: hostUserID, JoinedAt: now},
		},
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, conversation)
	if err == nil {
		return conversation, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("failed to create conversation: %w", err)
	}

	existing, err := r.FindByTripID(ctx, tripID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *mongoConversationRepository) FindByTripID(ctx context.Context, tripID string) (*model.Conversation, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var conversation model.Conversation
	err := r.collection.FindOne(ctx, bson.M{"trip_id": tripID}).Decode(&conversation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}

	return &conversation, nil
}

// AddParticipant appends the user unless they are already an active
// participant. The membership check is part of the update filter, so a
// redelivered ParticipantJoined fact matches nothing and changes nothing.
// Returns whether the user was added by this call.
func (r *mongoConversationRepository) AddParticipant(ctx context.Context, conversationID string, userID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{
		"_id": conversationID,
		"participants": bson.M{
			"$not": bson.M{
				"$elemMatch": bson.M{
					"user_id": userID,
					"left_at": nil,
				},
			},
		},
	}
	update := bson.M{
		"$push": bson.M{
			"participants": model.ConversationParticipant{
				UserID:   userID,
				JoinedAt: time.Now().UTC().Truncate(time.Millisecond),
			},
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to add conversation participant: %w", err)
	}

	if result.MatchedCount == 0 {
		exists, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": conversationID})
		if countErr != nil {
			return false, fmt.Errorf("failed to add conversation participant: %w", countErr)
		}
		if exists == 0 {
			return false, ErrNotFound
		}
		return false, nil
	}

	return true, nil
}

// RemoveParticipant stamps the active entry's left_at rather than deleting
// it, preserving the membership history.
func (r *mongoConversationRepository) RemoveParticipant(ctx context.Context, conversationID string, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := bson.M{"_id": conversationID}
	update := bson.M{
		"$set": bson.M{
			"participants.$[p].left_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{
			bson.M{"p.user_id": userID, "p.left_at": nil},
		},
	})

	result, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("failed to remove conversation participant: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}
