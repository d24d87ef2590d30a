package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrDuplicateKey is returned by MemoryRepo.Insert for an existing _id.
var ErrDuplicateKey = errors.New("duplicate _id")

// MemoryRepo is an in-memory Store used by tests and local runs. Documents
// are round-tripped through BSON so callers see the same value types Mongo
// would hand back.
type MemoryRepo struct {
	mu    sync.RWMutex
	store map[string]bson.M
	order []string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]bson.M)}
}

func idKey(id interface{}) string {
	if oid, ok := id.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(id)
}

func roundTrip(doc bson.M) (bson.M, error) {
	b, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out bson.M
	if err := bson.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MemoryRepo) FindByID(_ context.Context, id interface{}) (bson.M, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.store[idKey(id)]
	if !ok {
		return nil, ErrNotFound
	}
	return roundTrip(d)
}

// Find supports top-level equality filters only.
func (m *MemoryRepo) Find(_ context.Context, filter bson.M) ([]bson.M, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []bson.M{}
	for _, k := range m.order {
		d := m.store[k]
		if !matches(d, filter) {
			continue
		}
		c, err := roundTrip(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func matches(d, filter bson.M) bool {
	for k, want := range filter {
		if fmt.Sprint(d[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func (m *MemoryRepo) Insert(_ context.Context, doc bson.M) error {
	c, err := roundTrip(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idKey(c["_id"])
	if _, ok := m.store[k]; ok {
		return ErrDuplicateKey
	}
	m.store[k] = c
	m.order = append(m.order, k)
	sort.Strings(m.order)
	return nil
}

func (m *MemoryRepo) Replace(_ context.Context, id interface{}, doc bson.M) error {
	c, err := roundTrip(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idKey(id)
	if _, ok := m.store[k]; !ok {
		return ErrNotFound
	}
	c["_id"] = id
	m.store[k] = c
	return nil
}

func (m *MemoryRepo) Delete(_ context.Context, id interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := idKey(id)
	if _, ok := m.store[k]; !ok {
		return ErrNotFound
	}
	delete(m.store, k)
	for i, o := range m.order {
		if o == k {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of stored documents.
func (m *MemoryRepo) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.store)
}

// MemoryDatabase hands out one MemoryRepo per collection name.
type MemoryDatabase struct {
	mu   sync.Mutex
	cols map[string]*MemoryRepo
}

func NewMemoryDatabase() *MemoryDatabase {
	return &MemoryDatabase{cols: make(map[string]*MemoryRepo)}
}

// Repo returns the repo for name, creating it on first use.
func (d *MemoryDatabase) Repo(name string) *MemoryRepo {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.cols[name]
	if !ok {
		r = NewMemoryRepo()
		d.cols[name] = r
	}
	return r
}

// Collection satisfies the live store source used by the workflow.
func (d *MemoryDatabase) Collection(_ context.Context, name string) (Store, error) {
	return d.Repo(name), nil
}
