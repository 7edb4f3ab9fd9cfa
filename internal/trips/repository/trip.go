package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	tripserrors "wayfare/internal/trips/errors"
	"wayfare/pkg/config"
	mongotx "wayfare/pkg/db/mongo"
	"wayfare/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Trips"
)

type mongoTripRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type TripRepository interface {
	Create(ctx context.Context, trip *model.Trip) error
	FindByID(ctx context.Context, id string) (*model.Trip, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Trip, error)
	Count(ctx context.Context) (int64, error)
	Update(ctx context.Context, id string, trip *model.Trip) (*mongo.UpdateResult, error)
	SetStatus(ctx context.Context, id string, from, to model.TripStatus) error
	LinkConversation(ctx context.Context, id string, conversationID string) error
	AddMember(ctx context.Context, id string, userID string, maxParticipants *int) error
	FindByStatusAndStartDateLTE(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error)
	FindByStatusAndEndDateBefore(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error)
	FindDraftsCreatedBefore(ctx context.Context, cutoff time.Time) ([]*model.Trip, error)
	FindByStatusStartingWithin(ctx context.Context, status model.TripStatus, from, to time.Time) ([]*model.Trip, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoTripRepository(cfg *config.Config) TripRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTripRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context unchanged
// with a no-op cancel function, as we cannot wrap SessionContext without breaking
// transaction semantics.
func (r *mongoTripRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

func (r *mongoTripRepository) Create(ctx context.Context, trip *model.Trip) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	trip.CreatedAt = now
	trip.UpdatedAt = now
	result, err := r.collection.InsertOne(ctx, trip)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		trip.ID = oid.Hex()
	}
	return nil
}

func (r *mongoTripRepository) FindByID(ctx context.Context, id string) (*model.Trip, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", tripserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}

	var trip model.Trip
	err = r.collection.FindOne(ctx, filter).Decode(&trip)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, tripserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find trip: %w", err)
	}

	return &trip, nil
}

func (r *mongoTripRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Trip, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(offset)

	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find trips: %w", err)
	}
	defer cursor.Close(ctx)

	var trips []*model.Trip
	if err = cursor.All(ctx, &trips); err != nil {
		return nil, fmt.Errorf("failed to decode trips: %w", err)
	}

	return trips, nil
}

func (r *mongoTripRepository) Count(ctx context.Context) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count trips: %w", err)
	}

	return count, nil
}

func (r *mongoTripRepository) Update(ctx context.Context, id string, trip *model.Trip) (*mongo.UpdateResult, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", tripserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID}
	update := bson.M{
		"$set": bson.M{
			"title":            trip.Title,
			"description":      trip.Description,
			"destination":      trip.Destination,
			"start_date":       trip.StartDate,
			"end_date":         trip.EndDate,
			"estimated_budget": trip.EstimatedBudget,
			"max_participants": trip.MaxParticipants,
			"join_policy":      trip.JoinPolicy,
			"itinerary":        trip.Itinerary,
			"updated_at":       time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return nil, fmt.Errorf("failed to update trip: %w", err)
	}

	if result.MatchedCount == 0 {
		return nil, tripserrors.ErrNotFound
	}

	return result, nil
}

// SetStatus moves a trip from one status to another in a single guarded
// update. The `from` status is part of the filter, so a trip whose status
// changed since it was read is left untouched and ErrStatusChanged is
// returned. This is what makes scheduler re-scans and concurrent manual
// requests safe without any in-process locking.
func (r *mongoTripRepository) SetStatus(ctx context.Context, id string, from, to model.TripStatus) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", tripserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "status": from}
	update := bson.M{
		"$set": bson.M{
			"status":     to,
			"updated_at": time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to set trip status: %w", err)
	}

	if result.MatchedCount == 0 {
		exists, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
		if countErr != nil {
			return fmt.Errorf("failed to set trip status: %w", countErr)
		}
		if exists == 0 {
			return tripserrors.ErrNotFound
		}
		return tripserrors.ErrStatusChanged
	}

	return nil
}

// LinkConversation sets the conversation reference only when none is set
// yet. A trip that already carries a conversation is reported as
// ErrConversationLinked and left unchanged, so duplicate deliveries lose
// the write instead of overwriting it.
func (r *mongoTripRepository) LinkConversation(ctx context.Context, id string, conversationID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", tripserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "conversation_id": ""}
	update := bson.M{
		"$set": bson.M{
			"conversation_id": conversationID,
			"updated_at":      time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to link conversation: %w", err)
	}

	if result.MatchedCount == 0 {
		exists, countErr := r.collection.CountDocuments(ctx, bson.M{"_id": objectID})
		if countErr != nil {
			return fmt.Errorf("failed to link conversation: %w", countErr)
		}
		if exists == 0 {
			return tripserrors.ErrNotFound
		}
		return tripserrors.ErrConversationLinked
	}

	return nil
}

// AddMember appends the user while the trip still has a free seat. The
// capacity bound lives in the update filter so two concurrent joins cannot
// both take the last seat; the host occupies one, so the member list caps
// at maxParticipants-1.
func (r *mongoTripRepository) AddMember(ctx context.Context, id string, userID string, maxParticipants *int) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", tripserrors.ErrInvalidID, id)
	}

	filter := bson.M{
		"_id":             objectID,
		"member_user_ids": bson.M{"$ne": userID},
	}
	if maxParticipants != nil {
		filter["$expr"] = bson.M{"$lt": bson.A{
			bson.M{"$size": bson.M{"$ifNull": bson.A{"$member_user_ids", bson.A{}}}},
			*maxParticipants - 1,
		}}
	}
	update := bson.M{
		"$addToSet": bson.M{"member_user_ids": userID},
		"$set":      bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to add trip member: %w", err)
	}

	if result.MatchedCount == 0 {
		var existing model.Trip
		findErr := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&existing)
		if errors.Is(findErr, mongo.ErrNoDocuments) {
			return tripserrors.ErrNotFound
		}
		if findErr != nil {
			return fmt.Errorf("failed to add trip member: %w", findErr)
		}
		if existing.IsMember(userID) {
			return tripserrors.ErrAlreadyMember
		}
		return tripserrors.ErrTripFull
	}

	return nil
}

func (r *mongoTripRepository) FindByStatusAndStartDateLTE(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error) {
	return r.findByFilter(ctx, bson.M{
		"status":     status,
		"start_date": bson.M{"$lte": date},
	})
}

func (r *mongoTripRepository) FindByStatusAndEndDateBefore(ctx context.Context, status model.TripStatus, date time.Time) ([]*model.Trip, error) {
	return r.findByFilter(ctx, bson.M{
		"status":   status,
		"end_date": bson.M{"$lt": date},
	})
}

func (r *mongoTripRepository) FindDraftsCreatedBefore(ctx context.Context, cutoff time.Time) ([]*model.Trip, error) {
	return r.findByFilter(ctx, bson.M{
		"status":     model.TripStatusDraft,
		"created_at": bson.M{"$lt": cutoff},
	})
}

func (r *mongoTripRepository) FindByStatusStartingWithin(ctx context.Context, status model.TripStatus, from, to time.Time) ([]*model.Trip, error) {
	return r.findByFilter(ctx, bson.M{
		"status":     status,
		"start_date": bson.M{"$gte": from, "$lte": to},
	})
}

func (r *mongoTripRepository) findByFilter(ctx context.Context, filter bson.M) ([]*model.Trip, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_date", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find trips: %w", err)
	}
	defer cursor.Close(ctx)

	var trips []*model.Trip
	if err = cursor.All(ctx, &trips); err != nil {
		return nil, fmt.Errorf("failed to decode trips: %w", err)
	}

	return trips, nil
}

func (r *mongoTripRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
