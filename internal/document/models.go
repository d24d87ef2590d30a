package document

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Status is the publishing state of a managed document.
type Status string

const (
	StatusUnpublished Status = "unpublished"
	StatusPublished   Status = "published"
	StatusDraft       Status = "draft"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusUnpublished, StatusPublished, StatusDraft:
		return true
	}
	return false
}

// Reserved field paths added to every publishable list.
const (
	FieldID              = "_id"
	FieldStatus          = "publish__status"
	FieldDate            = "publish__date"
	FieldDisplayDate     = "publish__displayDate"
	FieldPreviewURL      = "publish__previewUrl"
	FieldLiveURL         = "publish__liveUrl"
	FieldContentURL      = "publish__contentUrl"
	FieldPublishOnSave   = "publish__publishOnSave"
	FieldUnpublishOnSave = "publish__unpublishOnSave"
	FieldRollbackOnSave  = "publish__rollbackOnSave"

	FieldSlug      = "slug"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// Document is a CMS-managed record as stored in Mongo, plus the save-time
// state that never reaches the database.
type Document struct {
	Data bson.M

	// IsNew is true until the document has been persisted once.
	IsNew bool
	// SaveWithSameStatus republishes a published document without touching
	// its action flags. Used by bulk tooling.
	SaveWithSameStatus bool
}

// New wraps data as an unsaved document, assigning an ObjectID when absent.
func New(data bson.M) *Document {
	if data == nil {
		data = bson.M{}
	}
	if _, ok := data[FieldID]; !ok {
		data[FieldID] = primitive.NewObjectID()
	}
	return &Document{Data: data, IsNew: true}
}

// Existing wraps data loaded from a store.
func Existing(data bson.M) *Document {
	return &Document{Data: data}
}

func (d *Document) ID() interface{} { return d.Data[FieldID] }

// IDString renders the identifier the way it appears in URLs.
func (d *Document) IDString() string {
	switch id := d.ID().(type) {
	case primitive.ObjectID:
		return id.Hex()
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

func (d *Document) Get(key string) interface{} { return d.Data[key] }

func (d *Document) Set(key string, v interface{}) { d.Data[key] = v }

// GetString returns the field as a string, or "" when missing or not a string.
func (d *Document) GetString(key string) string {
	s, _ := d.Data[key].(string)
	return s
}

// GetBool returns the field as a bool, or false when missing or not a bool.
func (d *Document) GetBool(key string) bool {
	b, _ := d.Data[key].(bool)
	return b
}

func (d *Document) Status() Status { return Status(d.GetString(FieldStatus)) }

func (d *Document) SetStatus(s Status) { d.Data[FieldStatus] = string(s) }

// Clone returns a copy whose top-level map can be modified independently.
func (d *Document) Clone() *Document {
	data := make(bson.M, len(d.Data))
	for k, v := range d.Data {
		data[k] = v
	}
	return &Document{Data: data, IsNew: d.IsNew, SaveWithSameStatus: d.SaveWithSameStatus}
}

// ParseID turns a URL identifier back into the stored _id value.
func ParseID(s string) interface{} {
	if oid, err := primitive.ObjectIDFromHex(s); err == nil {
		return oid
	}
	return s
}
