package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types emitted by the publish workflow.
const (
	TypePublished   = "document.published"
	TypeUnpublished = "document.unpublished"
	TypeRolledBack  = "document.rolled_back"
	TypeDrafted     = "document.drafted"
)

// Event is the payload sent to the sink.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// DocumentData describes the document an event is about.
type DocumentData struct {
	List       string `json:"list"`
	Collection string `json:"collection"`
	ID         string `json:"id"`
	Status     string `json:"status"`
	LiveURL    string `json:"liveUrl,omitempty"`
	ContentURL string `json:"contentUrl,omitempty"`
}

func NewEvent(eventType string, data any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// Sink delivers encoded events.
type Sink interface {
	Publish(topic, key string, value []byte) error
	Close() error
}

// Emitter encodes events and routes them to "<prefix>.<collection>.<type>".
type Emitter struct {
	sink   Sink
	prefix string
}

func NewEmitter(sink Sink, prefix string) *Emitter {
	if prefix == "" {
		prefix = "publishflow"
	}
	return &Emitter{sink: sink, prefix: prefix}
}

// Subject is the topic an event of eventType about collection is sent to.
func (e *Emitter) Subject(collection, eventType string) string {
	return e.prefix + "." + collection + "." + eventType
}

// Emit sends a document event keyed by the document id. A nil Emitter is a no-op.
func (e *Emitter) Emit(eventType string, d DocumentData) error {
	if e == nil || e.sink == nil {
		return nil
	}
	b, err := json.Marshal(NewEvent(eventType, d))
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return e.sink.Publish(e.Subject(d.Collection, eventType), d.ID, b)
}

func (e *Emitter) Close() error {
	if e == nil || e.sink == nil {
		return nil
	}
	return e.sink.Close()
}
