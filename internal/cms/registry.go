package cms

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/publishflow/publishflow/internal/document/repository"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrListRegistered = errors.New("list already registered")
	ErrUnknownList    = errors.New("unknown list")
)

// Extension hooks into list registration. BeforeRegister may add fields
// and change options; AfterRegister sees the list bound to its store and
// may install hooks.
type Extension interface {
	BeforeRegister(l *List) error
	AfterRegister(l *List) error
}

// StoreFactory binds a collection name to a store, creating indexes.
type StoreFactory func(ctx context.Context, collection string, indexes []mongo.IndexModel) (repository.Store, error)

// MongoStores binds lists to collections of db.
func MongoStores(db *mongo.Database) StoreFactory {
	return func(ctx context.Context, collection string, indexes []mongo.IndexModel) (repository.Store, error) {
		return repository.NewMongoRepo(ctx, db.Collection(collection), indexes...)
	}
}

// MemoryStores binds lists to in-memory collections of db.
func MemoryStores(db *repository.MemoryDatabase) StoreFactory {
	return func(_ context.Context, collection string, _ []mongo.IndexModel) (repository.Store, error) {
		return db.Repo(collection), nil
	}
}

// Registry owns the lists of one CMS instance.
type Registry struct {
	mu     sync.RWMutex
	lists  map[string]*List
	order  []string
	exts   []Extension
	stores StoreFactory
}

func NewRegistry(stores StoreFactory) *Registry {
	return &Registry{lists: make(map[string]*List), stores: stores}
}

// Use adds an extension run for every list registered afterwards.
func (r *Registry) Use(ext Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exts = append(r.exts, ext)
}

// NewList creates an unregistered list.
func (r *Registry) NewList(key string, opts ListOptions) *List {
	return newList(key, opts)
}

// Register runs the extensions around binding l to its store. A list that
// inherits takes over its parent's fields and hooks first, so the parent
// must already be registered.
func (r *Registry) Register(ctx context.Context, l *List) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lists[l.Key]; ok || l.registered {
		return fmt.Errorf("%w: %s", ErrListRegistered, l.Key)
	}
	if l.Options.Inherits != "" {
		parent, ok := r.lists[l.Options.Inherits]
		if !ok {
			return fmt.Errorf("register %s: %w: %s", l.Key, ErrUnknownList, l.Options.Inherits)
		}
		if err := l.inherit(parent); err != nil {
			return fmt.Errorf("register %s: %w", l.Key, err)
		}
	}
	for _, ext := range r.exts {
		if err := ext.BeforeRegister(l); err != nil {
			return fmt.Errorf("register %s: %w", l.Key, err)
		}
	}
	store, err := r.stores(ctx, l.CollectionName(), l.indexes)
	if err != nil {
		return fmt.Errorf("register %s: %w", l.Key, err)
	}
	l.store = store
	l.registered = true
	r.lists[l.Key] = l
	r.order = append(r.order, l.Key)
	for _, ext := range r.exts {
		if err := ext.AfterRegister(l); err != nil {
			return fmt.Errorf("register %s: %w", l.Key, err)
		}
	}
	return nil
}

// List looks a list up by key.
func (r *Registry) List(key string) (*List, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lists[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownList, key)
	}
	return l, nil
}

// ByPath looks a list up by key or URL path.
func (r *Registry) ByPath(path string) (*List, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if l, ok := r.lists[path]; ok {
		return l, nil
	}
	for _, l := range r.lists {
		if l.Path == path {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownList, path)
}

// Lists returns registered lists in registration order.
func (r *Registry) Lists() []*List {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*List, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.lists[k])
	}
	return out
}
