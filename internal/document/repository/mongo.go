package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound = errors.New("document not found")
)

// Store persists raw documents of one collection keyed by _id.
type Store interface {
	FindByID(ctx context.Context, id interface{}) (bson.M, error)
	Find(ctx context.Context, filter bson.M) ([]bson.M, error)
	Insert(ctx context.Context, doc bson.M) error
	Replace(ctx context.Context, id interface{}, doc bson.M) error
	Delete(ctx context.Context, id interface{}) error
}

// MongoRepo implements Store on a MongoDB collection.
type MongoRepo struct {
	col *mongo.Collection
}

// NewMongoRepo wraps col and ensures the given indexes exist.
func NewMongoRepo(ctx context.Context, col *mongo.Collection, indexes ...mongo.IndexModel) (*MongoRepo, error) {
	if len(indexes) > 0 {
		if _, err := col.Indexes().CreateMany(ctx, indexes); err != nil {
			return nil, fmt.Errorf("create indexes on %s: %w", col.Name(), err)
		}
	}
	return &MongoRepo{col: col}, nil
}

func (m *MongoRepo) FindByID(ctx context.Context, id interface{}) (bson.M, error) {
	var d bson.M
	err := m.col.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func (m *MongoRepo) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	if filter == nil {
		filter = bson.M{}
	}
	cur, err := m.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []bson.M{}
	for cur.Next(ctx) {
		var d bson.M
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, cur.Err()
}

func (m *MongoRepo) Insert(ctx context.Context, doc bson.M) error {
	_, err := m.col.InsertOne(ctx, doc)
	return err
}

func (m *MongoRepo) Replace(ctx context.Context, id interface{}, doc bson.M) error {
	res, err := m.col.ReplaceOne(ctx, bson.M{"_id": id}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *MongoRepo) Delete(ctx context.Context, id interface{}) error {
	res, err := m.col.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
