package cms

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Schema is the YAML description of a site's lists.
type Schema struct {
	Lists []ListSchema `yaml:"lists"`
}

type ListSchema struct {
	Key         string              `yaml:"key"`
	Collection  string              `yaml:"collection"`
	Inherits    string              `yaml:"inherits"`
	NoEdit      bool                `yaml:"noedit"`
	NoCreate    bool                `yaml:"nocreate"`
	NoDelete    bool                `yaml:"nodelete"`
	Timestamps  bool                `yaml:"timestamps"`
	Publishable *PublishableOptions `yaml:"publishable"`
	Fields      []FieldSchema       `yaml:"fields"`
}

type FieldSchema struct {
	Path     string      `yaml:"path"`
	Label    string      `yaml:"label"`
	Type     string      `yaml:"type"`
	Options  []string    `yaml:"options"`
	Default  interface{} `yaml:"default"`
	Note     string      `yaml:"note"`
	Required bool        `yaml:"required"`
	NoEdit   bool        `yaml:"noedit"`
	Hidden   bool        `yaml:"hidden"`
	Index    bool        `yaml:"index"`
	UTC      bool        `yaml:"utc"`
}

var (
	listKeyPattern   = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)
	fieldPathPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.]*$`)
	urlPathPattern   = regexp.MustCompile(`^/`)
)

// LoadSchemaFile reads a schema from path.
func LoadSchemaFile(path string) (*Schema, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema: %w", err)
	}
	defer f.Close()
	return LoadSchema(f)
}

// LoadSchema decodes and validates a YAML schema. Unknown keys are errors.
func LoadSchema(r io.Reader) (*Schema, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var s Schema
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &s, nil
}

func (s *Schema) Validate() error {
	if err := validation.ValidateStruct(s,
		validation.Field(&s.Lists, validation.Required),
	); err != nil {
		return err
	}
	for i := range s.Lists {
		if err := s.Lists[i].validate(); err != nil {
			return fmt.Errorf("lists[%d]: %w", i, err)
		}
	}
	return nil
}

func (ls *ListSchema) validate() error {
	if err := validation.ValidateStruct(ls,
		validation.Field(&ls.Key, validation.Required, validation.Match(listKeyPattern)),
	); err != nil {
		return err
	}
	if ls.Publishable != nil {
		p := ls.Publishable
		if err := validation.ValidateStruct(p,
			validation.Field(&p.Path, validation.Match(urlPathPattern).Error("must start with /")),
		); err != nil {
			return fmt.Errorf("%s.publishable: %w", ls.Key, err)
		}
	}
	types := make([]interface{}, 0, len(FieldTypes))
	for _, t := range FieldTypes {
		types = append(types, string(t))
	}
	for i := range ls.Fields {
		f := &ls.Fields[i]
		if err := validation.ValidateStruct(f,
			validation.Field(&f.Path, validation.Required, validation.Match(fieldPathPattern)),
			validation.Field(&f.Type, validation.Required, validation.In(types...)),
		); err != nil {
			return fmt.Errorf("%s.fields[%d]: %w", ls.Key, i, err)
		}
	}
	return nil
}

// Build creates the described lists without registering them.
func (s *Schema) Build(reg *Registry) ([]*List, error) {
	out := make([]*List, 0, len(s.Lists))
	for _, ls := range s.Lists {
		l := reg.NewList(ls.Key, ListOptions{
			Collection:  ls.Collection,
			Inherits:    ls.Inherits,
			NoEdit:      ls.NoEdit,
			NoCreate:    ls.NoCreate,
			NoDelete:    ls.NoDelete,
			Timestamps:  ls.Timestamps,
			Publishable: ls.Publishable,
		})
		for _, fs := range ls.Fields {
			f := Field{
				Path:     fs.Path,
				Label:    fs.Label,
				Type:     FieldType(fs.Type),
				Default:  fs.Default,
				Note:     fs.Note,
				Required: fs.Required,
				NoEdit:   fs.NoEdit,
				Hidden:   fs.Hidden,
				Index:    fs.Index,
				UTC:      fs.UTC,
			}
			for _, o := range fs.Options {
				f.Options = append(f.Options, Option{Value: o, Label: o})
			}
			if err := l.Add(f); err != nil {
				return nil, err
			}
		}
		out = append(out, l)
	}
	return out, nil
}

// RegisterSchema builds and registers every list of s.
func (r *Registry) RegisterSchema(ctx context.Context, s *Schema) error {
	lists, err := s.Build(r)
	if err != nil {
		return err
	}
	for _, l := range lists {
		if err := r.Register(ctx, l); err != nil {
			return err
		}
	}
	return nil
}
