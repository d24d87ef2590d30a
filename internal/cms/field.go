package cms

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidValue is returned when input cannot be stored in a field.
var ErrInvalidValue = errors.New("invalid field value")

// FieldType selects how a field is edited and stored.
type FieldType string

const (
	TypeText    FieldType = "text"
	TypeURL     FieldType = "url"
	TypeSelect  FieldType = "select"
	TypeDate    FieldType = "date"
	TypeBoolean FieldType = "boolean"
	TypeNumber  FieldType = "number"
)

// FieldTypes lists every supported field type.
var FieldTypes = []FieldType{TypeText, TypeURL, TypeSelect, TypeDate, TypeBoolean, TypeNumber}

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Field describes one editable path of a list.
type Field struct {
	Path     string      `json:"path"`
	Label    string      `json:"label,omitempty"`
	Type     FieldType   `json:"type"`
	Options  []Option    `json:"options,omitempty"`
	Default  interface{} `json:"default,omitempty"`
	Note     string      `json:"note,omitempty"`
	Required bool        `json:"required,omitempty"`
	NoEdit   bool        `json:"noedit,omitempty"`
	Hidden   bool        `json:"hidden,omitempty"`
	Index    bool        `json:"index,omitempty"`
	UTC      bool        `json:"utc,omitempty"`
	// DependsOn shows the field only when every listed path holds the
	// value (or one of the values, for a slice).
	DependsOn map[string]interface{} `json:"dependsOn,omitempty"`
}

// Item is one entry of a list's admin layout: a heading or a field.
type Item struct {
	Heading string `json:"heading,omitempty"`
	Field   *Field `json:"field,omitempty"`
}

// Coerce converts decoded JSON input into the value stored for f.
func (f *Field) Coerce(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch f.Type {
	case TypeText, TypeURL:
		s, ok := v.(string)
		if !ok {
			return nil, f.invalid(v)
		}
		return s, nil
	case TypeSelect:
		s, ok := v.(string)
		if !ok {
			return nil, f.invalid(v)
		}
		if len(f.Options) == 0 {
			return s, nil
		}
		for _, o := range f.Options {
			if o.Value == s {
				return s, nil
			}
		}
		return nil, f.invalid(v)
	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, f.invalid(v)
		}
		return b, nil
	case TypeNumber:
		switch n := v.(type) {
		case float64:
			return n, nil
		case int:
			return float64(n), nil
		case int32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		}
		return nil, f.invalid(v)
	case TypeDate:
		return f.coerceDate(v)
	}
	return v, nil
}

func (f *Field) coerceDate(v interface{}) (interface{}, error) {
	var t time.Time
	switch d := v.(type) {
	case time.Time:
		t = d
	case string:
		if d == "" {
			return nil, nil
		}
		var err error
		if t, err = time.Parse(time.RFC3339, d); err != nil {
			if t, err = time.Parse("2006-01-02", d); err != nil {
				return nil, f.invalid(v)
			}
		}
	default:
		return nil, f.invalid(v)
	}
	if f.UTC {
		t = t.UTC()
	}
	return t, nil
}

func (f *Field) invalid(v interface{}) error {
	return fmt.Errorf("%w: %s (%s) cannot hold %v", ErrInvalidValue, f.Path, f.Type, v)
}
