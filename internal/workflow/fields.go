package workflow

import (
	"github.com/publishflow/publishflow/internal/cms"
	"github.com/publishflow/publishflow/internal/document"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	headingText         = "Publishing Workflow"
	displayDateNote     = "Use this field to override the autogenerated formatted Published Date (MM/DD/YYYY) on the website. The website will display the date exactly as entered above."
	previewPlaceholder  = "Save to generate preview link"
	contentURLPathFirst = "keystone"
)

var statusOptions = []cms.Option{
	{Value: string(document.StatusUnpublished), Label: "Unpublished"},
	{Value: string(document.StatusPublished), Label: "Published"},
	{Value: string(document.StatusDraft), Label: "Draft"},
}

// listConfig is what the plugin remembers about a managed list.
type listConfig struct {
	urlPath          string
	publishByDefault bool
	noUnpublish      bool
	trackPublishDate bool
}

func configFor(l *cms.List) listConfig {
	var c listConfig
	if p := l.Options.Publishable; p != nil {
		c.urlPath = p.Path
		c.publishByDefault = p.PublishByDefault
		c.noUnpublish = p.NoUnpublish
		c.trackPublishDate = p.TrackPublishDate
	}
	return c
}

// publishDefault is the value publishOnSave is reset to after every save.
func (p *Plugin) publishDefault(c listConfig) bool {
	return p.opts.PublishCheckedByDefault || c.publishByDefault
}

func (p *Plugin) addFields(l *cms.List, c listConfig) error {
	live := p.opts.IsLiveDatabase

	l.AddHeading(headingText)
	if err := l.Add(cms.Field{
		Path:    document.FieldStatus,
		Label:   "Publishing Status",
		Type:    cms.TypeSelect,
		Options: statusOptions,
		Default: string(document.StatusUnpublished),
		NoEdit:  true,
		Index:   true,
	}); err != nil {
		return err
	}

	if c.trackPublishDate {
		if err := l.Add(
			cms.Field{Path: document.FieldDate, Label: "Published Date", Type: cms.TypeDate, UTC: true},
			cms.Field{Path: document.FieldDisplayDate, Label: "Displayed Date", Type: cms.TypeText, Note: displayDateNote},
		); err != nil {
			return err
		}
		l.Index(bson.D{{Key: document.FieldDate, Value: -1}}, false)
		l.Index(bson.D{{Key: document.FieldDate, Value: 1}}, false)
	}

	published := map[string]interface{}{document.FieldStatus: []string{string(document.StatusPublished)}}
	return l.Add(
		cms.Field{
			Path:      document.FieldPreviewURL,
			Label:     "Preview URL",
			Type:      cms.TypeURL,
			NoEdit:    true,
			Hidden:    live || c.urlPath == "" || p.opts.PreviewURL == "",
			DependsOn: map[string]interface{}{document.FieldStatus: []string{string(document.StatusUnpublished), string(document.StatusDraft)}},
		},
		cms.Field{
			Path:      document.FieldLiveURL,
			Label:     "Live URL",
			Type:      cms.TypeURL,
			NoEdit:    true,
			Hidden:    live || c.urlPath == "" || p.opts.LiveURL == "",
			DependsOn: published,
		},
		cms.Field{
			Path:      document.FieldContentURL,
			Label:     "Content URL",
			Type:      cms.TypeURL,
			NoEdit:    true,
			Hidden:    live || !p.opts.ShowLiveContentURL || p.opts.LiveURL == "",
			DependsOn: published,
		},
		cms.Field{
			Path:    document.FieldPublishOnSave,
			Label:   "Publish on save",
			Type:    cms.TypeBoolean,
			Default: p.publishDefault(c),
			Hidden:  live,
		},
		cms.Field{
			Path:      document.FieldUnpublishOnSave,
			Label:     "Unpublish on save",
			Type:      cms.TypeBoolean,
			Default:   false,
			Hidden:    live || c.noUnpublish,
			DependsOn: map[string]interface{}{document.FieldStatus: string(document.StatusPublished), document.FieldPublishOnSave: false},
		},
		cms.Field{
			Path:      document.FieldRollbackOnSave,
			Label:     "Rollback draft to live version",
			Type:      cms.TypeBoolean,
			Default:   false,
			Hidden:    live,
			DependsOn: map[string]interface{}{document.FieldStatus: string(document.StatusDraft), document.FieldPublishOnSave: false},
		},
	)
}
