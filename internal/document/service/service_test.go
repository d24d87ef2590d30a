package service

import (
	"context"
	"testing"

	"github.com/publishflow/publishflow/internal/cms"
	"github.com/publishflow/publishflow/internal/document"
	"github.com/publishflow/publishflow/internal/document/repository"
	"github.com/publishflow/publishflow/internal/workflow"
	"github.com/stretchr/testify/require"
)

const missingID = "000000000000000000000000"

func newTestService(t *testing.T) (Service, string) {
	t.Helper()
	ctx := context.Background()
	wf := workflow.New(workflow.Options{LiveURL: "https://live.example.com"}, repository.NewMemoryDatabase())
	reg := cms.NewRegistry(cms.MemoryStores(repository.NewMemoryDatabase()))
	reg.Use(wf)

	post := reg.NewList("Post", cms.ListOptions{})
	require.NoError(t, post.Add(cms.Field{Path: "title", Type: cms.TypeText}))
	require.NoError(t, reg.Register(ctx, post))
	for _, key := range []string{"Locked", "Fixed"} {
		opts := cms.ListOptions{NoCreate: true, NoDelete: true}
		if key == "Locked" {
			opts.NoEdit = true
		}
		require.NoError(t, reg.Register(ctx, reg.NewList(key, opts)))
	}

	svc := New(reg, wf)
	doc, err := svc.Create(ctx, "posts", map[string]interface{}{"title": "draft"})
	require.NoError(t, err)
	return svc, document.Existing(doc).IDString()
}

func TestServiceErrors(t *testing.T) {
	ctx := context.Background()
	svc, id := newTestService(t)

	cases := []struct {
		name string
		call func() error
		want []error
		not  []error
	}{
		{"unknown list", func() error { _, err := svc.Get(ctx, "nope", id); return err }, []error{ErrNotFound}, nil},
		{"missing document", func() error { _, err := svc.Get(ctx, "posts", missingID); return err }, []error{ErrNotFound}, nil},
		{"delete missing", func() error { return svc.Delete(ctx, "posts", missingID) }, []error{ErrNotFound}, nil},
		{"update missing", func() error { _, err := svc.Update(ctx, "posts", missingID, nil, false); return err }, []error{ErrNotFound}, nil},
		{"publish missing", func() error { _, err := svc.Publish(ctx, "posts", missingID); return err }, []error{ErrNotFound}, nil},
		{"create on nocreate", func() error { _, err := svc.Create(ctx, "fixeds", nil); return err }, []error{ErrForbidden}, nil},
		{"delete on nodelete", func() error { return svc.Delete(ctx, "Fixed", id) }, []error{ErrForbidden}, nil},
		{"update on noedit", func() error { _, err := svc.Update(ctx, "Locked", id, nil, false); return err }, []error{ErrForbidden}, nil},
		{"publish on noedit", func() error { _, err := svc.Publish(ctx, "Locked", id); return err }, []error{ErrForbidden}, nil},
		{"unknown field", func() error { _, err := svc.Update(ctx, "posts", id, map[string]interface{}{"colour": "red"}, false); return err }, []error{cms.ErrUnknownField}, nil},
		{"invalid status filter", func() error { _, err := svc.List(ctx, "posts", "archived"); return err }, []error{cms.ErrInvalidValue}, nil},
		{"live without copy", func() error { _, err := svc.Live(ctx, "posts", id); return err }, []error{workflow.ErrNoLiveVersion}, []error{ErrNotFound}},
		{"diff without copy", func() error { _, err := svc.Diff(ctx, "posts", id); return err }, []error{workflow.ErrNoLiveVersion}, []error{ErrNotFound}},
		{"rollback without copy", func() error { _, err := svc.Rollback(ctx, "posts", id); return err }, []error{workflow.ErrSaveFailed, workflow.ErrNoLiveVersion}, []error{ErrNotFound}},
		{"snapshots disabled", func() error { _, err := svc.Snapshots(ctx, "posts", id); return err }, []error{ErrNotFound, ErrNoArchive}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			for _, w := range tc.want {
				require.ErrorIs(t, err, w)
			}
			for _, n := range tc.not {
				require.NotErrorIs(t, err, n)
			}
		})
	}
}

func TestServicePublishLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, id := newTestService(t)

	doc, err := svc.Publish(ctx, "posts", id)
	require.NoError(t, err)
	require.Equal(t, string(document.StatusPublished), doc[document.FieldStatus])

	_, err = svc.Update(ctx, "Post", id, map[string]interface{}{"title": "edited"}, false)
	require.NoError(t, err)
	differs, err := svc.Diff(ctx, "posts", id)
	require.NoError(t, err)
	require.True(t, differs)

	drafts, err := svc.List(ctx, "posts", string(document.StatusDraft))
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	n, err := svc.Republish(ctx, "posts")
	require.NoError(t, err)
	require.Equal(t, 0, n)

	doc, err = svc.Rollback(ctx, "posts", id)
	require.NoError(t, err)
	require.Equal(t, "draft", doc["title"])

	n, err = svc.Republish(ctx, "posts")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	doc, err = svc.Unpublish(ctx, "posts", id)
	require.NoError(t, err)
	require.Equal(t, string(document.StatusUnpublished), doc[document.FieldStatus])
	_, err = svc.Live(ctx, "posts", id)
	require.ErrorIs(t, err, workflow.ErrNoLiveVersion)

	infos := svc.Lists()
	require.Len(t, infos, 3)
	require.True(t, infos[0].Managed)
	require.True(t, infos[1].NoEdit)
}
