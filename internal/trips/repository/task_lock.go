package repository

import (
	"context"
	"fmt"
	"time"

	"wayfare/pkg/config"
	"wayfare/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TaskLockRepository persists named mutual-exclusion records for recurring
// jobs. Each job name owns one document; distinct names never block each
// other.
type TaskLockRepository interface {
	TryClaim(ctx context.Context, name string, now time.Time, minInterval time.Duration) (bool, error)
	Find(ctx context.Context, name string) (*model.TaskLock, error)
}

type mongoTaskLockRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewTaskLockRepository(cfg *config.Config) TaskLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTaskLockRepository{
		cfg:        cfg,
		collection: db.Collection("Task_locks"),
	}
}

// TryClaim performs the read-check-and-claim as one conditional upsert, so
// two instances racing on the same tick cannot both pass. The filter only
// matches a lock whose last execution is older than the interval; when the
// lock is fresh the filter misses and the upsert collides on _id, which
// surfaces as a duplicate key error and means another run is still current.
// An absent lock is treated as due and created by the upsert.
func (r *mongoTaskLockRepository) TryClaim(ctx context.Context, name string, now time.Time, minInterval time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	nowMillis := now.UnixMilli()
	dueBefore := now.Add(-minInterval).UnixMilli()

	filter := bson.M{
		"_id":            name,
		"last_execution": bson.M{"$lt": dueBefore},
	}
	update := bson.M{
		"$set": bson.M{"last_execution": nowMillis},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Err()
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to claim task lock %q: %w", name, err)
	}

	return true, nil
}

func (r *mongoTaskLockRepository) Find(ctx context.Context, name string) (*model.TaskLock, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var lock model.TaskLock
	err := r.collection.FindOne(ctx, bson.M{"_id": name}).Decode(&lock)
	if err != nil {
		return nil, fmt.Errorf("failed to find task lock %q: %w", name, err)
	}

	return &lock, nil
}
