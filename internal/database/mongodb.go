package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo opens a connection and returns the client. Caller should call client.Disconnect(ctx).
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration, extra ...*options.ClientOptions) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	clientOpts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, nil
}

// DatabaseName returns the database path segment of a mongodb:// or
// mongodb+srv:// connection string, or "" when there is none.
func DatabaseName(uri string) string {
	rest := uri
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	i := strings.Index(rest, "/")
	if i < 0 {
		return ""
	}
	rest = rest[i+1:]
	if j := strings.IndexAny(rest, "?#"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

// IsLiveDatabase reports whether the current connection string is the live one.
func IsLiveDatabase(current, live string) bool {
	return current != "" && current == live
}

// LiveConnection lazily connects to the live database and keeps the client
// until the connection is reported lost.
type LiveConnection struct {
	uri      string
	fallback string
	timeout  time.Duration

	mu     sync.Mutex
	client *mongo.Client
}

// NewLiveConnection prepares a live connection. fallbackDB is used when the
// connection string has no database path.
func NewLiveConnection(uri, fallbackDB string, timeout time.Duration) *LiveConnection {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LiveConnection{uri: uri, fallback: fallbackDB, timeout: timeout}
}

// Name is the live database name.
func (l *LiveConnection) Name() string {
	if n := DatabaseName(l.uri); n != "" {
		return n
	}
	return l.fallback
}

// Database returns the cached live database, connecting on first use.
func (l *LiveConnection) Database(ctx context.Context) (*mongo.Database, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client != nil {
		return l.client.Database(l.Name()), nil
	}
	opts := options.Client().
		SetConnectTimeout(30 * time.Second).
		SetMaxConnIdleTime(5 * time.Minute)
	client, err := ConnectMongo(ctx, l.uri, l.timeout, opts)
	if err != nil {
		return nil, err
	}
	l.client = client
	return client.Database(l.Name()), nil
}

// Connected reports whether a client is cached.
func (l *LiveConnection) Connected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.client != nil
}

// Observe drops the cached client once err shows it was disconnected, so
// the next Database call reconnects. Transient network errors are left to
// the driver's pool, and the client is never disconnected from here since
// other operations may still be using it.
func (l *LiveConnection) Observe(err error) {
	if !ConnectionLost(err) {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.client = nil
}

// Close disconnects the cached client, if any.
func (l *LiveConnection) Close(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		return nil
	}
	err := l.client.Disconnect(ctx)
	l.client = nil
	return err
}

// ConnectionLost reports whether err means the client can no longer be used.
func ConnectionLost(err error) bool {
	return errors.Is(err, mongo.ErrClientDisconnected)
}
