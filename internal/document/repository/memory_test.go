package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestMemoryRepoCRUD(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	id := primitive.NewObjectID()
	require.NoError(t, r.Insert(ctx, bson.M{"_id": id, "title": "hello", "views": 3}))
	require.ErrorIs(t, r.Insert(ctx, bson.M{"_id": id}), ErrDuplicateKey)

	got, err := r.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "hello", got["title"])
	require.Equal(t, id, got["_id"])

	list, err := r.Find(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, r.Replace(ctx, id, bson.M{"title": "new"}))
	got2, err := r.FindByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "new", got2["title"])
	_, hasViews := got2["views"]
	require.False(t, hasViews, "replace drops fields missing from the new document")

	require.NoError(t, r.Delete(ctx, id))
	_, err = r.FindByID(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, r.Delete(ctx, id), ErrNotFound)
	require.ErrorIs(t, r.Replace(ctx, id, bson.M{}), ErrNotFound)
}

func TestMemoryRepoReturnsBSONTypes(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	now := time.Now()
	require.NoError(t, r.Insert(ctx, bson.M{"_id": "a", "at": now, "tags": []string{"x"}}))

	got, err := r.FindByID(ctx, "a")
	require.NoError(t, err)
	require.IsType(t, primitive.DateTime(0), got["at"])
	require.IsType(t, primitive.A{}, got["tags"])

	// callers cannot mutate stored state through returned maps
	got["title"] = "mutated"
	again, err := r.FindByID(ctx, "a")
	require.NoError(t, err)
	require.NotContains(t, again, "title")
}

func TestMemoryRepoFindFilter(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	require.NoError(t, r.Insert(ctx, bson.M{"_id": "1", "publish__status": "published"}))
	require.NoError(t, r.Insert(ctx, bson.M{"_id": "2", "publish__status": "draft"}))
	require.NoError(t, r.Insert(ctx, bson.M{"_id": "3", "publish__status": "published"}))

	got, err := r.Find(ctx, bson.M{"publish__status": "published"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "1", got[0]["_id"])
	require.Equal(t, "3", got[1]["_id"])
}

func TestMemoryDatabaseCollections(t *testing.T) {
	db := NewMemoryDatabase()
	a, err := db.Collection(context.Background(), "posts")
	require.NoError(t, err)
	require.Same(t, db.Repo("posts"), a)
	require.NotSame(t, db.Repo("posts"), db.Repo("pages"))
}
