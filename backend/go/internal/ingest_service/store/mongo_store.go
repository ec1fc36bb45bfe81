package store

import (
	"context"
	"errors"

	"RepoChat/backend/go/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRunStore is an implementation of RunStore using MongoDB.
type MongoRunStore struct {
	collection runCollection
}

// runCollection 是 MongoRunStore 用到的集合操作子集，*mongo.Collection 满足该接口。
type runCollection interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// NewMongoRunStore creates a new MongoRunStore.
func NewMongoRunStore(db *mongo.Database, collectionName string) *MongoRunStore {
	return &MongoRunStore{
		collection: db.Collection(collectionName),
	}
}

// Create inserts a new run record into the database.
func (s *MongoRunStore) Create(ctx context.Context, run *models.IngestionRun) error {
	_, err := s.collection.InsertOne(ctx, run)
	return err
}

// Get retrieves a run by its ID.
func (s *MongoRunStore) Get(ctx context.Context, id string) (*models.IngestionRun, error) {
	var run models.IngestionRun
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&run)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return &run, nil
}

// List retrieves the most recent runs.
func (s *MongoRunStore) List(ctx context.Context, limit int) ([]*models.IngestionRun, error) {
	runs := []*models.IngestionRun{}
	opts := options.Find()
	opts.SetSort(bson.D{{Key: "submitted_at", Value: -1}}) // Sort by submission date descending
	opts.SetLimit(int64(normalizeLimit(limit)))

	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &runs); err != nil {
		return nil, err
	}
	return runs, nil
}

// Update updates the progress fields of an existing run record.
func (s *MongoRunStore) Update(ctx context.Context, run *models.IngestionRun) error {
	filter := bson.M{"_id": run.ID}
	update := bson.M{
		"$set": bson.M{
			"status":       run.Status,
			"stage":        run.Stage,
			"counters":     run.Counters,
			"error":        run.Error,
			"updated_at":   run.UpdatedAt,
			"completed_at": run.CompletedAt,
		},
	}
	res, err := s.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrRunNotFound
	}
	return nil
}

var (
	_ RunStore      = (*MongoRunStore)(nil)
	_ runCollection = (*mongo.Collection)(nil)
)
