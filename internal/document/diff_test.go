package document

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestEqual_Scalars(t *testing.T) {
	require.True(t, Equal(nil, nil))
	require.True(t, Equal(nil, primitive.Null{}))
	require.False(t, Equal(nil, ""))
	require.False(t, Equal("", nil))
	require.False(t, Equal(0, false))
	require.False(t, Equal("1", 1))

	require.True(t, Equal("a", "a"))
	require.False(t, Equal("a", "b"))
	require.True(t, Equal(true, true))
	require.False(t, Equal(true, false))

	// JSON input yields float64, Mongo yields int32/int64.
	require.True(t, Equal(float64(3), int32(3)))
	require.True(t, Equal(int64(1)<<40, int64(1)<<40))
	require.False(t, Equal(3.5, int32(3)))
}

func TestEqual_Dates(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 123456789, time.UTC)
	require.True(t, Equal(now, primitive.NewDateTimeFromTime(now)), "sub-millisecond precision is lost in BSON")
	require.False(t, Equal(now, primitive.NewDateTimeFromTime(now.Add(time.Second))))
	require.False(t, Equal(now, now.Format(time.RFC3339)))
}

func TestEqual_ObjectIDs(t *testing.T) {
	a := primitive.NewObjectID()
	b, err := primitive.ObjectIDFromHex(a.Hex())
	require.NoError(t, err)
	require.True(t, Equal(a, b))
	require.False(t, Equal(a, primitive.NewObjectID()))
	require.False(t, Equal(a, a.Hex()))
}

func TestEqual_Arrays(t *testing.T) {
	require.True(t, Equal([]interface{}{"a", 1.0}, primitive.A{"a", int32(1)}))
	require.True(t, Equal([]string{"x", "y"}, primitive.A{"x", "y"}))
	require.False(t, Equal(primitive.A{"a"}, primitive.A{"a", "b"}))
	require.False(t, Equal(primitive.A{"b", "a"}, primitive.A{"a", "b"}))
	require.False(t, Equal(primitive.A{"a"}, bson.M{"0": "a"}))
}

func TestEqual_Objects(t *testing.T) {
	current := bson.M{
		"title": "Hello",
		"meta":  map[string]interface{}{"tags": []interface{}{"go"}, "updatedAt": "x"},
	}
	live := bson.M{
		"title": "Hello",
		"meta":  bson.M{"tags": primitive.A{"go"}, "updatedAt": "y"},
	}
	require.True(t, Equal(current, live))

	live["meta"].(bson.M)["tags"] = primitive.A{"rust"}
	require.False(t, Equal(current, live))
}

func TestEqual_ObjectKeysComeFromLiveSide(t *testing.T) {
	current := bson.M{"title": "Hello", "extra": "draft only"}
	live := bson.M{"title": "Hello"}
	require.True(t, Equal(current, live), "keys only on the current side are ignored")

	require.False(t, Equal(live, current), "keys missing from the current side make it differ")
}

func TestEqual_PrimitiveD(t *testing.T) {
	require.True(t, Equal(bson.M{"a": int32(1)}, bson.D{{Key: "a", Value: 1.0}}))
}

func TestDiffers_IgnoresUpdatedAt(t *testing.T) {
	id := primitive.NewObjectID()
	current := bson.M{
		FieldID:        id,
		"title":        "Post",
		FieldStatus:    string(StatusPublished),
		FieldUpdatedAt: time.Now(),
	}
	live := bson.M{
		FieldID:        id,
		"title":        "Post",
		FieldStatus:    string(StatusPublished),
		FieldUpdatedAt: primitive.NewDateTimeFromTime(time.Now().Add(-time.Hour)),
	}
	require.False(t, Differs(current, live))

	current["title"] = "Edited"
	require.True(t, Differs(current, live))
}
