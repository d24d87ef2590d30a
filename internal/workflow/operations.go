package workflow

import (
	"context"
	"errors"

	"github.com/publishflow/publishflow/internal/cms"
	"github.com/publishflow/publishflow/internal/document"
	"github.com/publishflow/publishflow/internal/document/repository"
	"go.mongodb.org/mongo-driver/bson"
)

// Publish saves the draft with publishOnSave set.
func (p *Plugin) Publish(ctx context.Context, l *cms.List, id interface{}) (*document.Document, error) {
	return p.saveWith(ctx, l, id, func(doc *document.Document) {
		doc.Set(document.FieldPublishOnSave, true)
	})
}

// Unpublish removes the live copy and marks the draft unpublished.
func (p *Plugin) Unpublish(ctx context.Context, l *cms.List, id interface{}) (*document.Document, error) {
	return p.saveWith(ctx, l, id, func(doc *document.Document) {
		doc.Set(document.FieldPublishOnSave, false)
		doc.Set(document.FieldUnpublishOnSave, true)
	})
}

// Rollback overwrites the draft with its live copy.
func (p *Plugin) Rollback(ctx context.Context, l *cms.List, id interface{}) (*document.Document, error) {
	return p.saveWith(ctx, l, id, func(doc *document.Document) {
		doc.Set(document.FieldPublishOnSave, false)
		doc.Set(document.FieldRollbackOnSave, true)
	})
}

func (p *Plugin) saveWith(ctx context.Context, l *cms.List, id interface{}, set func(*document.Document)) (*document.Document, error) {
	if _, err := p.config(l); err != nil {
		return nil, err
	}
	doc, err := l.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	set(doc)
	if err := l.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Live returns the live copy of a document, or ErrNoLiveVersion.
func (p *Plugin) Live(ctx context.Context, l *cms.List, id interface{}) (bson.M, error) {
	if _, err := p.config(l); err != nil {
		return nil, err
	}
	live, err := p.live.Collection(ctx, l.CollectionName())
	if err != nil {
		return nil, err
	}
	d, err := live.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNoLiveVersion
	}
	return d, err
}

// Diff reports whether the stored draft differs from its live copy.
func (p *Plugin) Diff(ctx context.Context, l *cms.List, id interface{}) (bool, error) {
	published, err := p.Live(ctx, l, id)
	if err != nil {
		return false, err
	}
	doc, err := l.Get(ctx, id)
	if err != nil {
		return false, err
	}
	return document.Differs(doc.Data, published), nil
}

// Republish re-saves every published document of l so the live copies pick
// up derived fields. It stops at the first failure and returns the number
// of documents saved.
func (p *Plugin) Republish(ctx context.Context, l *cms.List) (int, error) {
	if _, err := p.config(l); err != nil {
		return 0, err
	}
	docs, err := l.Find(ctx, bson.M{document.FieldStatus: string(document.StatusPublished)})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		doc.SaveWithSameStatus = true
		if err := l.Save(ctx, doc); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
