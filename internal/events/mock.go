package events

import "sync"

// MockSink records published messages in memory.
type MockSink struct {
	Messages   []MockMessage
	PublishErr error
	mu         sync.Mutex
}

type MockMessage struct {
	Topic string
	Key   string
	Value []byte
}

func (m *MockSink) Publish(topic, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Messages = append(m.Messages, MockMessage{Topic: topic, Key: key, Value: value})
	return nil
}

func (m *MockSink) Close() error { return nil }

// Snapshot returns a copy of the recorded messages.
func (m *MockSink) Snapshot() []MockMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockMessage(nil), m.Messages...)
}
