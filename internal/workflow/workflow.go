package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/publishflow/publishflow/internal/cms"
	"github.com/publishflow/publishflow/internal/document"
	"github.com/publishflow/publishflow/internal/document/repository"
	"github.com/publishflow/publishflow/internal/events"
	"github.com/publishflow/publishflow/internal/locks"
	"github.com/publishflow/publishflow/pkg/logger"
	"github.com/publishflow/publishflow/pkg/metrics"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrSaveFailed is what callers see when a live database operation fails.
	ErrSaveFailed    = errors.New("There was an error saving. Please try again.")
	ErrNoLiveVersion = errors.New("no live version")
	ErrNotManaged    = errors.New("list is not managed by the publish workflow")
)

// SaveError wraps the cause of a failed save. Its message is always the
// one of ErrSaveFailed.
type SaveError struct {
	List   string
	Action string
	Err    error
}

func (e *SaveError) Error() string { return ErrSaveFailed.Error() }

func (e *SaveError) Unwrap() []error { return []error{ErrSaveFailed, e.Err} }

// Actions recorded in metrics and logs.
const (
	ActionPublish   = "publish"
	ActionRollback  = "rollback"
	ActionUnpublish = "unpublish"
	ActionCheck     = "check"
)

type Options struct {
	LiveURL                        string
	PreviewURL                     string
	ShowLiveContentURL             bool
	PublishCheckedByDefault        bool
	ForcePublishRegardlessOfStatus bool
	// IsLiveDatabase makes every list read-only and hides the workflow fields.
	IsLiveDatabase bool

	LockTTL  time.Duration
	LockWait time.Duration
}

// Archiver stores a snapshot of every published document.
type Archiver interface {
	Archive(ctx context.Context, collection, id string, doc bson.M) (string, error)
}

type Option func(*Plugin)

func WithLocker(l locks.Locker) Option { return func(p *Plugin) { p.locker = l } }

func WithArchiver(a Archiver) Option { return func(p *Plugin) { p.archiver = a } }

func WithEvents(e *events.Emitter) Option { return func(p *Plugin) { p.events = e } }

// Plugin adds the publish workflow to every list registered after it is
// installed with Registry.Use.
type Plugin struct {
	opts     Options
	live     LiveSource
	locker   locks.Locker
	archiver Archiver
	events   *events.Emitter

	mu    sync.RWMutex
	lists map[string]listConfig
}

func New(opts Options, live LiveSource, extra ...Option) *Plugin {
	if opts.LockTTL <= 0 {
		opts.LockTTL = 30 * time.Second
	}
	if opts.LockWait <= 0 {
		opts.LockWait = 5 * time.Second
	}
	p := &Plugin{opts: opts, live: live, lists: make(map[string]listConfig)}
	for _, o := range extra {
		o(p)
	}
	return p
}

// Init connects to the live database when the source supports it. Lists
// should not be registered before it succeeds.
func (p *Plugin) Init(ctx context.Context) error {
	if c, ok := p.live.(connector); ok {
		if err := c.Connect(ctx); err != nil {
			return fmt.Errorf("connect live database: %w", err)
		}
	}
	return nil
}

func (p *Plugin) Options() Options { return p.opts }

// BeforeRegister makes lists read-only on the live site and adds the
// workflow fields. Inheriting lists already carry their parent's fields.
func (p *Plugin) BeforeRegister(l *cms.List) error {
	l.Options.NoEdit = l.Options.NoEdit || p.opts.IsLiveDatabase
	l.Options.NoCreate = l.Options.NoCreate || p.opts.IsLiveDatabase
	l.Options.NoDelete = l.Options.NoDelete || p.opts.IsLiveDatabase
	if l.Options.Inherits != "" {
		return nil
	}
	return p.addFields(l, configFor(l))
}

// AfterRegister installs the pre-save hook. Inheriting lists run the hook
// they took over from their parent and only share its configuration.
func (p *Plugin) AfterRegister(l *cms.List) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if l.Options.Inherits != "" {
		c, ok := p.lists[l.Options.Inherits]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotManaged, l.Options.Inherits)
		}
		p.lists[l.Key] = c
		return nil
	}
	c := configFor(l)
	p.lists[l.Key] = c
	l.PreSave(p.hook(l, c))
	return nil
}

// Managed reports whether l carries the workflow.
func (p *Plugin) Managed(l *cms.List) bool {
	_, err := p.config(l)
	return err == nil
}

func (p *Plugin) config(l *cms.List) (listConfig, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.lists[l.Key]
	if !ok {
		return listConfig{}, fmt.Errorf("%w: %s", ErrNotManaged, l.Key)
	}
	return c, nil
}

func (p *Plugin) shouldPublish(doc *document.Document) bool {
	status := doc.Status()
	if p.opts.ForcePublishRegardlessOfStatus && (status == document.StatusPublished || doc.GetBool(document.FieldPublishOnSave)) {
		return true
	}
	if doc.SaveWithSameStatus {
		return status == document.StatusPublished
	}
	if doc.IsNew {
		return false
	}
	return doc.GetBool(document.FieldPublishOnSave)
}

func (p *Plugin) hook(l *cms.List, c listConfig) cms.SaveHook {
	return func(ctx context.Context, doc *document.Document) error {
		shouldPublish := p.shouldPublish(doc)
		shouldUnpublish := doc.GetBool(document.FieldUnpublishOnSave)
		shouldRollback := doc.GetBool(document.FieldRollbackOnSave)

		doc.Set(document.FieldPublishOnSave, p.publishDefault(c))
		doc.Set(document.FieldUnpublishOnSave, false)
		doc.Set(document.FieldRollbackOnSave, false)

		var action string
		switch {
		case shouldPublish:
			action = ActionPublish
		case shouldRollback:
			action = ActionRollback
		case shouldUnpublish:
			action = ActionUnpublish
		default:
			action = ActionCheck
		}
		metrics.WorkflowActions.WithLabelValues(l.Key, action).Inc()

		if err := p.run(ctx, l, c, doc, action); err != nil {
			metrics.WorkflowErrors.WithLabelValues(l.Key, action).Inc()
			logger.Warnf("Error with live database operation: list=%s id=%s action=%s: %v", l.Key, doc.IDString(), action, err)
			return &SaveError{List: l.Key, Action: action, Err: err}
		}
		return nil
	}
}

func (p *Plugin) run(ctx context.Context, l *cms.List, c listConfig, doc *document.Document, action string) error {
	if action != ActionPublish && action != ActionRollback && p.opts.PreviewURL != "" && c.urlPath != "" {
		doc.Set(document.FieldPreviewURL, p.previewURL(c, doc))
	}

	release, err := p.lock(ctx, l, doc)
	if err != nil {
		return err
	}
	defer release()

	timer := prometheus.NewTimer(metrics.LiveOperationDuration.WithLabelValues(action))
	defer timer.ObserveDuration()

	live, err := p.live.Collection(ctx, l.CollectionName())
	if err != nil {
		return err
	}

	switch action {
	case ActionPublish:
		return p.publish(ctx, l, c, live, doc)
	case ActionRollback:
		return p.rollback(ctx, l, live, doc)
	case ActionUnpublish:
		return p.unpublish(ctx, l, live, doc)
	default:
		return p.check(ctx, l, live, doc)
	}
}

func (p *Plugin) lock(ctx context.Context, l *cms.List, doc *document.Document) (func(), error) {
	if p.locker == nil {
		return func() {}, nil
	}
	key := "publish:" + l.CollectionName() + ":" + doc.IDString()
	return p.locker.Acquire(ctx, key, p.opts.LockTTL, p.opts.LockWait)
}

func (p *Plugin) publish(ctx context.Context, l *cms.List, c listConfig, live repository.Store, doc *document.Document) error {
	doc.SetStatus(document.StatusPublished)
	if p.opts.LiveURL != "" {
		doc.Set(document.FieldContentURL, p.contentURL(l.Path, doc))
		if c.urlPath != "" {
			doc.Set(document.FieldLiveURL, p.liveURL(c, doc))
		}
	}
	if c.trackPublishDate && doc.Get(document.FieldDate) == nil {
		doc.Set(document.FieldDate, time.Now().UTC())
	}

	_, err := live.FindByID(ctx, doc.ID())
	switch {
	case errors.Is(err, repository.ErrNotFound):
		err = live.Insert(ctx, doc.Data)
	case err == nil:
		err = live.Replace(ctx, doc.ID(), doc.Data)
	}
	if err != nil {
		return err
	}

	if p.archiver != nil {
		if key, aerr := p.archiver.Archive(ctx, l.CollectionName(), doc.IDString(), doc.Data); aerr != nil {
			logger.Warnf("snapshot of %s %s failed: %v", l.Key, doc.IDString(), aerr)
		} else {
			logger.Debugf("snapshot of %s %s stored at %s", l.Key, doc.IDString(), key)
		}
	}
	p.emit(events.TypePublished, l, doc)
	return nil
}

func (p *Plugin) rollback(ctx context.Context, l *cms.List, live repository.Store, doc *document.Document) error {
	published, err := live.FindByID(ctx, doc.ID())
	if errors.Is(err, repository.ErrNotFound) {
		return ErrNoLiveVersion
	}
	if err != nil {
		return err
	}
	for k, v := range published {
		if k == document.FieldUpdatedAt {
			continue
		}
		doc.Set(k, v)
	}
	p.emit(events.TypeRolledBack, l, doc)
	return nil
}

func (p *Plugin) unpublish(ctx context.Context, l *cms.List, live repository.Store, doc *document.Document) error {
	doc.SetStatus(document.StatusUnpublished)
	err := live.Delete(ctx, doc.ID())
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return err
	}
	p.emit(events.TypeUnpublished, l, doc)
	return nil
}

func (p *Plugin) check(ctx context.Context, l *cms.List, live repository.Store, doc *document.Document) error {
	published, err := live.FindByID(ctx, doc.ID())
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if document.Differs(doc.Data, published) {
		was := doc.Status()
		doc.SetStatus(document.StatusDraft)
		if was != document.StatusDraft {
			p.emit(events.TypeDrafted, l, doc)
		}
	}
	return nil
}

func (p *Plugin) emit(eventType string, l *cms.List, doc *document.Document) {
	err := p.events.Emit(eventType, events.DocumentData{
		List:       l.Key,
		Collection: l.CollectionName(),
		ID:         doc.IDString(),
		Status:     string(doc.Status()),
		LiveURL:    doc.GetString(document.FieldLiveURL),
		ContentURL: doc.GetString(document.FieldContentURL),
	})
	if err != nil {
		logger.Warnf("emit %s for %s %s: %v", eventType, l.Key, doc.IDString(), err)
	}
}
