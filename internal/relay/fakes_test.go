package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/dmitrijs2005/gophrelay/internal/server/models"
)

var errClosed = errors.New("endpoint closed")

type fakeEndpoint struct {
	id string

	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	sendErr error
}

func newFakeEndpoint(id string) *fakeEndpoint { return &fakeEndpoint{id: id} }

func (e *fakeEndpoint) ID() string { return e.id }

func (e *fakeEndpoint) Send(_ context.Context, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	if e.sendErr != nil {
		return e.sendErr
	}
	e.frames = append(e.frames, append([]byte(nil), data...))
	return nil
}

func (e *fakeEndpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *fakeEndpoint) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *fakeEndpoint) received() [][]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([][]byte(nil), e.frames...)
}

// decoded returns received frames as generic maps.
func (e *fakeEndpoint) decoded(t *testing.T) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, f := range e.received() {
		var m map[string]any
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("frame is not a JSON object: %v", err)
		}
		out = append(out, m)
	}
	return out
}

type statusUpdate struct {
	sender, recipient, timestamp string
	status                       models.Status
}

type fakeStore struct {
	mu        sync.Mutex
	rows      []*models.Envelope
	updates   []statusUpdate
	appendErr error
	updateErr error
	onAppend  func()
}

func (s *fakeStore) Append(_ context.Context, env *models.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.appendErr != nil {
		return s.appendErr
	}
	s.rows = append(s.rows, env.Clone())
	if s.onAppend != nil {
		s.onAppend()
	}
	return nil
}

func (s *fakeStore) UpdateStatus(_ context.Context, sender, recipient, timestamp string, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, statusUpdate{sender, recipient, timestamp, status})
	if s.updateErr != nil {
		return s.updateErr
	}
	for _, r := range s.rows {
		if r.Sender == sender && r.Recipient == recipient && r.Timestamp == timestamp {
			r.Status = status
		}
	}
	return nil
}

func (s *fakeStore) Query(_ context.Context, identity string) ([]*models.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Envelope
	for _, r := range s.rows {
		if r.Sender == identity || r.Recipient == identity {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *fakeStore) snapshot() ([]*models.Envelope, []statusUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*models.Envelope(nil), s.rows...), append([]statusUpdate(nil), s.updates...)
}
