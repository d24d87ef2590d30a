package workflow

import (
	"context"

	"github.com/publishflow/publishflow/internal/database"
	"github.com/publishflow/publishflow/internal/document/repository"
	"go.mongodb.org/mongo-driver/bson"
)

// LiveSource hands out collections of the live database.
type LiveSource interface {
	Collection(ctx context.Context, name string) (repository.Store, error)
}

// connector is implemented by live sources that can be connected eagerly.
type connector interface {
	Connect(ctx context.Context) error
}

// MongoLive serves live collections from a lazily connected client. Errors
// reported by operations are fed back so a lost connection is re-dialled.
type MongoLive struct {
	conn *database.LiveConnection
}

func NewMongoLive(conn *database.LiveConnection) *MongoLive {
	return &MongoLive{conn: conn}
}

func (m *MongoLive) Connect(ctx context.Context) error {
	_, err := m.conn.Database(ctx)
	return err
}

func (m *MongoLive) Collection(ctx context.Context, name string) (repository.Store, error) {
	db, err := m.conn.Database(ctx)
	if err != nil {
		return nil, err
	}
	repo, err := repository.NewMongoRepo(ctx, db.Collection(name))
	if err != nil {
		return nil, err
	}
	return &observedStore{Store: repo, conn: m.conn}, nil
}

type observedStore struct {
	repository.Store
	conn *database.LiveConnection
}

func (s *observedStore) FindByID(ctx context.Context, id interface{}) (bson.M, error) {
	d, err := s.Store.FindByID(ctx, id)
	s.conn.Observe(err)
	return d, err
}

func (s *observedStore) Find(ctx context.Context, filter bson.M) ([]bson.M, error) {
	d, err := s.Store.Find(ctx, filter)
	s.conn.Observe(err)
	return d, err
}

func (s *observedStore) Insert(ctx context.Context, doc bson.M) error {
	err := s.Store.Insert(ctx, doc)
	s.conn.Observe(err)
	return err
}

func (s *observedStore) Replace(ctx context.Context, id interface{}, doc bson.M) error {
	err := s.Store.Replace(ctx, id, doc)
	s.conn.Observe(err)
	return err
}

func (s *observedStore) Delete(ctx context.Context, id interface{}) error {
	err := s.Store.Delete(ctx, id)
	s.conn.Observe(err)
	return err
}
