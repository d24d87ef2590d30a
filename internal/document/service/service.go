package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"time"

	"github.com/publishflow/publishflow/internal/cms"
	"github.com/publishflow/publishflow/internal/document"
	"github.com/publishflow/publishflow/internal/document/repository"
	"github.com/publishflow/publishflow/internal/workflow"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("operation not allowed on this list")
	ErrNoArchive = errors.New("snapshot archive not configured")
)

// snapshotURLExpiry bounds the presigned download links of snapshots.
const snapshotURLExpiry = 15 * time.Minute

// SnapshotStore reads the snapshots archived on publish. Missing objects
// are reported with errors wrapping fs.ErrNotExist.
type SnapshotStore interface {
	Snapshots(ctx context.Context, collection, id string) ([]string, error)
	OpenSnapshot(ctx context.Context, collection, id, name string) (io.ReadCloser, error)
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Snapshot is one archived published version of a document.
type Snapshot struct {
	Name string `json:"name"`
	Key  string `json:"key"`
	URL  string `json:"url"`
}

// ListInfo describes a registered list to API clients.
type ListInfo struct {
	Key         string                  `json:"key"`
	Path        string                  `json:"path"`
	Collection  string                  `json:"collection"`
	Inherits    string                  `json:"inherits,omitempty"`
	NoEdit      bool                    `json:"noedit"`
	NoCreate    bool                    `json:"nocreate"`
	NoDelete    bool                    `json:"nodelete"`
	Managed     bool                    `json:"managed"`
	Publishable *cms.PublishableOptions `json:"publishable,omitempty"`
	Items       []cms.Item              `json:"items"`
}

// Service defines the document operations used by the handler layer and
// the CLI. Lists are addressed by key or URL path.
type Service interface {
	Lists() []ListInfo
	List(ctx context.Context, list string, status string) ([]bson.M, error)
	Create(ctx context.Context, list string, input map[string]interface{}) (bson.M, error)
	Get(ctx context.Context, list, id string) (bson.M, error)
	Update(ctx context.Context, list, id string, input map[string]interface{}, sameStatus bool) (bson.M, error)
	Delete(ctx context.Context, list, id string) error

	Publish(ctx context.Context, list, id string) (bson.M, error)
	Unpublish(ctx context.Context, list, id string) (bson.M, error)
	Rollback(ctx context.Context, list, id string) (bson.M, error)
	Live(ctx context.Context, list, id string) (bson.M, error)
	Diff(ctx context.Context, list, id string) (bool, error)
	Republish(ctx context.Context, list string) (int, error)

	Snapshots(ctx context.Context, list, id string) ([]Snapshot, error)
	OpenSnapshot(ctx context.Context, list, id, name string) (io.ReadCloser, error)
}

type Option func(*registryService)

// WithSnapshots enables the snapshot operations.
func WithSnapshots(st SnapshotStore) Option {
	return func(s *registryService) { s.snapshots = st }
}

// New returns a Service over the lists of reg carrying the wf workflow.
func New(reg *cms.Registry, wf *workflow.Plugin, opts ...Option) Service {
	s := &registryService{reg: reg, wf: wf}
	for _, o := range opts {
		o(s)
	}
	return s
}

type registryService struct {
	reg       *cms.Registry
	wf        *workflow.Plugin
	snapshots SnapshotStore
}

func (s *registryService) list(key string) (*cms.List, error) {
	l, err := s.reg.ByPath(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return l, nil
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}

func (s *registryService) Lists() []ListInfo {
	lists := s.reg.Lists()
	out := make([]ListInfo, 0, len(lists))
	for _, l := range lists {
		out = append(out, ListInfo{
			Key:         l.Key,
			Path:        l.Path,
			Collection:  l.CollectionName(),
			Inherits:    l.Options.Inherits,
			NoEdit:      l.Options.NoEdit,
			NoCreate:    l.Options.NoCreate,
			NoDelete:    l.Options.NoDelete,
			Managed:     s.wf.Managed(l),
			Publishable: l.Options.Publishable,
			Items:       l.Items(),
		})
	}
	return out
}

func (s *registryService) List(ctx context.Context, list string, status string) ([]bson.M, error) {
	l, err := s.list(list)
	if err != nil {
		return nil, err
	}
	filter := bson.M{}
	if status != "" {
		if !document.Status(status).Valid() {
			return nil, fmt.Errorf("%w: status %q", cms.ErrInvalidValue, status)
		}
		filter[document.FieldStatus] = status
	}
	docs, err := l.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]bson.M, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Data)
	}
	return out, nil
}

func (s *registryService) Create(ctx context.Context, list string, input map[string]interface{}) (bson.M, error) {
	l, err := s.list(list)
	if err != nil {
		return nil, err
	}
	if l.Options.NoCreate {
		return nil, ErrForbidden
	}
	doc := l.New(nil)
	if err := l.Apply(doc, input); err != nil {
		return nil, err
	}
	if err := l.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc.Data, nil
}

func (s *registryService) Get(ctx context.Context, list, id string) (bson.M, error) {
	l, err := s.list(list)
	if err != nil {
		return nil, err
	}
	doc, err := l.Get(ctx, document.ParseID(id))
	if err != nil {
		return nil, notFound(err)
	}
	return doc.Data, nil
}

func (s *registryService) Update(ctx context.Context, list, id string, input map[string]interface{}, sameStatus bool) (bson.M, error) {
	l, err := s.list(list)
	if err != nil {
		return nil, err
	}
	if l.Options.NoEdit {
		return nil, ErrForbidden
	}
	doc, err := l.Get(ctx, document.ParseID(id))
	if err != nil {
		return nil, notFound(err)
	}
	if err := l.Apply(doc, input); err != nil {
		return nil, err
	}
	doc.SaveWithSameStatus = sameStatus
	if err := l.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc.Data, nil
}

func (s *registryService) Delete(ctx context.Context, list, id string) error {
	l, err := s.list(list)
	if err != nil {
		return err
	}
	if l.Options.NoDelete {
		return ErrForbidden
	}
	return notFound(l.Remove(ctx, document.ParseID(id)))
}

type action func(context.Context, *cms.List, interface{}) (*document.Document, error)

func (s *registryService) act(ctx context.Context, list, id string, fn action) (bson.M, error) {
	l, err := s.list(list)
	if err != nil {
		return nil, err
	}
	if l.Options.NoEdit {
		return nil, ErrForbidden
	}
	doc, err := fn(ctx, l, document.ParseID(id))
	if err != nil {
		return nil, notFound(err)
	}
	return doc.Data, nil
}

func (s *registryService) Publish(ctx context.Context, list, id string) (bson.M, error) {
	return s.act(ctx, list, id, s.wf.Publish)
}

func (s *registryService) Unpublish(ctx context.Context, list, id string) (bson.M, error) {
	return s.act(ctx, list, id, s.wf.Unpublish)
}

func (s *registryService) Rollback(ctx context.Context, list, id string) (bson.M, error) {
	return s.act(ctx, list, id, s.wf.Rollback)
}

func (s *registryService) Live(ctx context.Context, list, id string) (bson.M, error) {
	l, err := s.list(list)
	if err != nil {
		return nil, err
	}
	return s.wf.Live(ctx, l, document.ParseID(id))
}

func (s *registryService) Diff(ctx context.Context, list, id string) (bool, error) {
	l, err := s.list(list)
	if err != nil {
		return false, err
	}
	differs, err := s.wf.Diff(ctx, l, document.ParseID(id))
	return differs, notFound(err)
}

func (s *registryService) Republish(ctx context.Context, list string) (int, error) {
	l, err := s.list(list)
	if err != nil {
		return 0, err
	}
	return s.wf.Republish(ctx, l)
}

// snapshotTarget resolves the list and checks the document exists.
func (s *registryService) snapshotTarget(ctx context.Context, list, id string) (*cms.List, *document.Document, error) {
	if s.snapshots == nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrNotFound, ErrNoArchive)
	}
	l, err := s.list(list)
	if err != nil {
		return nil, nil, err
	}
	doc, err := l.Get(ctx, document.ParseID(id))
	if err != nil {
		return nil, nil, notFound(err)
	}
	return l, doc, nil
}

func (s *registryService) Snapshots(ctx context.Context, list, id string) ([]Snapshot, error) {
	l, doc, err := s.snapshotTarget(ctx, list, id)
	if err != nil {
		return nil, err
	}
	keys, err := s.snapshots.Snapshots(ctx, l.CollectionName(), doc.IDString())
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(keys))
	for _, k := range keys {
		u, err := s.snapshots.GetPresignedURL(ctx, k, snapshotURLExpiry)
		if err != nil {
			return nil, fmt.Errorf("presign %s: %w", k, err)
		}
		out = append(out, Snapshot{Name: path.Base(k), Key: k, URL: u})
	}
	return out, nil
}

func (s *registryService) OpenSnapshot(ctx context.Context, list, id, name string) (io.ReadCloser, error) {
	l, doc, err := s.snapshotTarget(ctx, list, id)
	if err != nil {
		return nil, err
	}
	rc, err := s.snapshots.OpenSnapshot(ctx, l.CollectionName(), doc.IDString(), name)
	if err != nil {
		return nil, notFound(err)
	}
	return rc, nil
}
