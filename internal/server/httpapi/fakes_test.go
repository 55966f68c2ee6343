package httpapi

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophrelay/internal/common"
	"github.com/dmitrijs2005/gophrelay/internal/server/models"
)

type fakeUsers struct {
	signupErr error
	signedUp  []string

	loginToken string
	loginErr   error

	keys   map[string]string
	keyErr error

	found     []*models.User
	searchErr error
	lastQuery string
}

func (f *fakeUsers) Signup(_ context.Context, username, email, password, publicKey string) (*models.User, error) {
	if f.signupErr != nil {
		return nil, f.signupErr
	}
	f.signedUp = append(f.signedUp, username)
	return &models.User{ID: "1", UserName: username, Email: email, PublicKey: publicKey}, nil
}

func (f *fakeUsers) Login(context.Context, string, string) (string, error) {
	return f.loginToken, f.loginErr
}

func (f *fakeUsers) Exists(_ context.Context, id string) (bool, error) {
	_, ok := f.keys[id]
	return ok, f.keyErr
}

func (f *fakeUsers) PublicKey(_ context.Context, id string) (string, bool, error) {
	if f.keyErr != nil {
		return "", false, f.keyErr
	}
	k, ok := f.keys[id]
	return k, ok, nil
}

func (f *fakeUsers) Search(_ context.Context, q string) ([]*models.User, error) {
	f.lastQuery = q
	return f.found, f.searchErr
}

type memStore struct {
	mu   sync.Mutex
	rows []*models.Envelope
	err  error
}

func (s *memStore) Append(_ context.Context, env *models.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, env.Clone())
	return nil
}

func (s *memStore) UpdateStatus(_ context.Context, sender, recipient, ts string, status models.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Sender == sender && r.Recipient == recipient && r.Timestamp == ts {
			r.Status = status
			return nil
		}
	}
	return common.ErrorNotFound
}

func (s *memStore) Query(_ context.Context, id string) ([]*models.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []*models.Envelope
	for _, r := range s.rows {
		if r.Sender == id || r.Recipient == id {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (s *memStore) statusOf(ts string) models.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Timestamp == ts {
			return r.Status
		}
	}
	return ""
}
