package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func TestDatabaseName(t *testing.T) {
	cases := []struct{ uri, want string }{
		{"mongodb://localhost:27017/site_live", "site_live"},
		{"mongodb://u:p@h1:27017,h2:27017/site?replicaSet=rs0", "site"},
		{"mongodb+srv://cluster.example.net/live?retryWrites=true", "live"},
		{"mongodb://localhost:27017", ""},
		{"mongodb://localhost:27017/", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, DatabaseName(tc.uri), tc.uri)
	}
}

func TestLiveConnectionNameFallback(t *testing.T) {
	require.Equal(t, "site_live", NewLiveConnection("mongodb://h/site_live", "fallback", 0).Name())
	require.Equal(t, "fallback", NewLiveConnection("mongodb://h", "fallback", 0).Name())
}

func TestIsLiveDatabase(t *testing.T) {
	require.True(t, IsLiveDatabase("mongodb://h/live", "mongodb://h/live"))
	require.False(t, IsLiveDatabase("mongodb://h/cms", "mongodb://h/live"))
	require.False(t, IsLiveDatabase("", ""))
}

func TestConnectionLost(t *testing.T) {
	require.True(t, ConnectionLost(fmt.Errorf("find: %w", mongo.ErrClientDisconnected)))
	require.False(t, ConnectionLost(errors.New("duplicate key")))
	require.False(t, ConnectionLost(mongo.ErrNoDocuments))
	require.False(t, ConnectionLost(nil))

	netErr := mongo.CommandError{Code: 6, Name: "HostUnreachable", Labels: []string{"NetworkError"}}
	require.True(t, mongo.IsNetworkError(netErr))
	require.False(t, ConnectionLost(netErr))
}

func TestObserveKeepsClientOnNetworkErrors(t *testing.T) {
	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI("mongodb://127.0.0.1:1").SetServerSelectionTimeout(50*time.Millisecond))
	require.NoError(t, err)
	defer client.Disconnect(ctx)

	l := NewLiveConnection("mongodb://127.0.0.1:1/live", "", 0)
	l.client = client

	l.Observe(mongo.CommandError{Labels: []string{"NetworkError"}})
	require.True(t, l.Connected())
	db, err := l.Database(ctx)
	require.NoError(t, err)
	require.Equal(t, "live", db.Name())

	l.Observe(fmt.Errorf("find: %w", mongo.ErrClientDisconnected))
	require.False(t, l.Connected())
}

func TestObserveWithoutClientIsNoop(t *testing.T) {
	l := NewLiveConnection("mongodb://h/live", "", 0)
	l.Observe(mongo.ErrClientDisconnected)
	require.False(t, l.Connected())
	require.NoError(t, l.Close(context.Background()))
}
