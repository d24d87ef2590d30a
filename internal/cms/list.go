package cms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/publishflow/publishflow/internal/document"
	"github.com/publishflow/publishflow/internal/document/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrDuplicateField  = errors.New("duplicate field")
	ErrUnknownField    = errors.New("unknown field")
	ErrNotRegistered   = errors.New("list not registered")
	ErrCollectionClash = errors.New("inherited list must share its parent's collection")
)

// PublishableOptions opts a list into the publish workflow.
type PublishableOptions struct {
	// Path is the public URL template, e.g. "/blog/:slug".
	Path             string `json:"path,omitempty" yaml:"path"`
	PublishByDefault bool   `json:"publishByDefault,omitempty" yaml:"publishByDefault"`
	NoUnpublish      bool   `json:"noUnpublish,omitempty" yaml:"noUnpublish"`
	TrackPublishDate bool   `json:"trackPublishDate,omitempty" yaml:"trackPublishDate"`
}

type ListOptions struct {
	Collection string `json:"collection,omitempty"`
	// Inherits names the registered list this one extends. The child shares
	// the parent's collection, fields, indexes and save hooks.
	Inherits    string              `json:"inherits,omitempty"`
	NoEdit      bool                `json:"noedit"`
	NoCreate    bool                `json:"nocreate"`
	NoDelete    bool                `json:"nodelete"`
	Timestamps  bool                `json:"timestamps,omitempty"`
	Publishable *PublishableOptions `json:"publishable,omitempty"`
}

// SaveHook runs before a document is persisted. Returning an error aborts
// the save.
type SaveHook func(ctx context.Context, doc *document.Document) error

// List is a registered document type: its fields, indexes, hooks and store.
type List struct {
	Key     string
	Path    string
	Options ListOptions

	items      []Item
	fields     map[string]*Field
	indexes    []mongo.IndexModel
	preSave    []SaveHook
	store      repository.Store
	registered bool
}

func newList(key string, opts ListOptions) *List {
	return &List{
		Key:     key,
		Path:    keyToPath(key),
		Options: opts,
		fields:  make(map[string]*Field),
	}
}

// keyToPath turns "BlogPost" into "blog-posts".
func keyToPath(key string) string {
	var b strings.Builder
	for i, r := range key {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return plural(b.String())
}

func plural(s string) string {
	if s == "" || strings.HasSuffix(s, "s") {
		return s
	}
	if strings.HasSuffix(s, "y") && len(s) > 1 && !strings.ContainsRune("aeiou", rune(s[len(s)-2])) {
		return s[:len(s)-1] + "ies"
	}
	return s + "s"
}

// CollectionName is the Mongo collection backing the list in both the
// draft and the live database.
func (l *List) CollectionName() string {
	if l.Options.Collection != "" {
		return l.Options.Collection
	}
	return strings.ToLower(plural(l.Key))
}

// AddHeading appends a layout heading.
func (l *List) AddHeading(text string) {
	l.items = append(l.items, Item{Heading: text})
}

// Add appends fields in order. A path may only be added once.
func (l *List) Add(fields ...Field) error {
	for i := range fields {
		f := fields[i]
		if f.Path == "" {
			return fmt.Errorf("%s: field without path", l.Key)
		}
		if _, ok := l.fields[f.Path]; ok {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateField, l.Key, f.Path)
		}
		l.fields[f.Path] = &f
		l.items = append(l.items, Item{Field: &f})
		if f.Index {
			l.Index(bson.D{{Key: f.Path, Value: 1}}, false)
		}
	}
	return nil
}

// Index declares an index created when the list is bound to its store.
func (l *List) Index(keys bson.D, unique bool) {
	m := mongo.IndexModel{Keys: keys}
	if unique {
		m.Options = options.Index().SetUnique(true)
	}
	l.indexes = append(l.indexes, m)
}

// Indexes returns the declared index models.
func (l *List) Indexes() []mongo.IndexModel { return l.indexes }

// PreSave installs a hook run on every save, in installation order.
func (l *List) PreSave(h SaveHook) {
	l.preSave = append(l.preSave, h)
}

func (l *List) Items() []Item { return l.items }

func (l *List) Field(path string) (*Field, bool) {
	f, ok := l.fields[path]
	return f, ok
}

// Fields returns the fields in layout order.
func (l *List) Fields() []*Field {
	out := make([]*Field, 0, len(l.fields))
	for _, it := range l.items {
		if it.Field != nil {
			out = append(out, it.Field)
		}
	}
	return out
}

func (l *List) Registered() bool { return l.registered }

// inherit puts the parent's layout, indexes and hooks in front of the
// child's own.
func (l *List) inherit(parent *List) error {
	if l.Options.Collection == "" {
		l.Options.Collection = parent.CollectionName()
	}
	if l.Options.Collection != parent.CollectionName() {
		return fmt.Errorf("%w: %s uses %s, %s uses %s", ErrCollectionClash,
			l.Key, l.Options.Collection, parent.Key, parent.CollectionName())
	}
	if l.Options.Publishable == nil {
		l.Options.Publishable = parent.Options.Publishable
	}
	l.Options.Timestamps = l.Options.Timestamps || parent.Options.Timestamps

	own := l.items
	l.items = make([]Item, 0, len(parent.items)+len(own))
	for _, it := range parent.items {
		if it.Field == nil {
			l.items = append(l.items, it)
			continue
		}
		if _, ok := l.fields[it.Field.Path]; ok {
			return fmt.Errorf("%w: %s.%s", ErrDuplicateField, l.Key, it.Field.Path)
		}
		f := *it.Field
		l.fields[f.Path] = &f
		l.items = append(l.items, Item{Field: &f})
	}
	l.items = append(l.items, own...)
	l.indexes = append(append([]mongo.IndexModel(nil), parent.indexes...), l.indexes...)
	l.preSave = append(append([]SaveHook(nil), parent.preSave...), l.preSave...)
	return nil
}

// New builds an unsaved document with field defaults applied.
func (l *List) New(data bson.M) *document.Document {
	if data == nil {
		data = bson.M{}
	}
	for _, f := range l.Fields() {
		if _, ok := data[f.Path]; !ok && f.Default != nil {
			data[f.Path] = f.Default
		}
	}
	return document.New(data)
}

// Apply writes user input into doc. Read-only fields are skipped; unknown
// paths are rejected.
func (l *List) Apply(doc *document.Document, input map[string]interface{}) error {
	for k, v := range input {
		f, ok := l.fields[k]
		if !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownField, l.Key, k)
		}
		if f.NoEdit {
			continue
		}
		cv, err := f.Coerce(v)
		if err != nil {
			return err
		}
		doc.Set(k, cv)
	}
	return nil
}

func (l *List) Get(ctx context.Context, id interface{}) (*document.Document, error) {
	if !l.registered {
		return nil, ErrNotRegistered
	}
	data, err := l.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return document.Existing(data), nil
}

func (l *List) Find(ctx context.Context, filter bson.M) ([]*document.Document, error) {
	if !l.registered {
		return nil, ErrNotRegistered
	}
	rows, err := l.store.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*document.Document, 0, len(rows))
	for _, r := range rows {
		out = append(out, document.Existing(r))
	}
	return out, nil
}

// Save checks required fields, runs the pre-save hooks and persists doc.
// Nothing is written when either fails.
func (l *List) Save(ctx context.Context, doc *document.Document) error {
	if !l.registered {
		return ErrNotRegistered
	}
	if l.Options.Timestamps {
		now := time.Now().UTC()
		if doc.IsNew {
			doc.Set(document.FieldCreatedAt, now)
		}
		doc.Set(document.FieldUpdatedAt, now)
	}
	if err := l.checkRequired(doc); err != nil {
		return err
	}
	for _, h := range l.preSave {
		if err := h(ctx, doc); err != nil {
			return err
		}
	}
	var err error
	if doc.IsNew {
		err = l.store.Insert(ctx, doc.Data)
	} else {
		err = l.store.Replace(ctx, doc.ID(), doc.Data)
	}
	if err != nil {
		return fmt.Errorf("save %s %s: %w", l.Key, doc.IDString(), err)
	}
	doc.IsNew = false
	doc.SaveWithSameStatus = false
	return nil
}

func (l *List) checkRequired(doc *document.Document) error {
	for _, f := range l.Fields() {
		if !f.Required {
			continue
		}
		switch v := doc.Get(f.Path).(type) {
		case nil:
		case string:
			if v != "" {
				continue
			}
		default:
			continue
		}
		return fmt.Errorf("%w: %s.%s is required", ErrInvalidValue, l.Key, f.Path)
	}
	return nil
}

func (l *List) Remove(ctx context.Context, id interface{}) error {
	if !l.registered {
		return ErrNotRegistered
	}
	return l.store.Delete(ctx, id)
}
