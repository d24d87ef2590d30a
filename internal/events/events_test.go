package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmitterRoutesBySubject(t *testing.T) {
	sink := &MockSink{}
	e := NewEmitter(sink, "site")

	require.NoError(t, e.Emit(TypePublished, DocumentData{List: "Post", Collection: "posts", ID: "abc", Status: "published"}))

	msgs := sink.Snapshot()
	require.Len(t, msgs, 1)
	require.Equal(t, "site.posts.document.published", msgs[0].Topic)
	require.Equal(t, "abc", msgs[0].Key)

	var got struct {
		Type string       `json:"type"`
		Data DocumentData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Value, &got))
	require.Equal(t, TypePublished, got.Type)
	require.Equal(t, "Post", got.Data.List)
}

func TestEmitterDefaultsAndErrors(t *testing.T) {
	var nilEmitter *Emitter
	require.NoError(t, nilEmitter.Emit(TypeDrafted, DocumentData{}))
	require.NoError(t, nilEmitter.Close())

	sink := &MockSink{PublishErr: errors.New("down")}
	e := NewEmitter(sink, "")
	require.Equal(t, "publishflow.posts.document.drafted", e.Subject("posts", TypeDrafted))
	require.Error(t, e.Emit(TypeDrafted, DocumentData{Collection: "posts"}))
}

func TestNewNatsSinkRequiresURL(t *testing.T) {
	_, err := NewNatsSink("")
	require.Error(t, err)
}
