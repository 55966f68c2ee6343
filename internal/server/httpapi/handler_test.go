package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophrelay/internal/common"
	"github.com/dmitrijs2005/gophrelay/internal/logging"
	"github.com/dmitrijs2005/gophrelay/internal/relay"
	"github.com/dmitrijs2005/gophrelay/internal/server/config"
	"github.com/dmitrijs2005/gophrelay/internal/server/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.EndpointAddrHTTP = "127.0.0.1:0"
	cfg.WriteTimeout = time.Second
	return cfg
}

func newTestServer(cfg *config.Config, users *fakeUsers, store *memStore) *HTTPServer {
	log := logging.NewDiscardLogger()
	reg := prometheus.NewRegistry()
	metrics := relay.NewMetrics(reg)
	registry := relay.NewRegistry(log, metrics)
	router := relay.NewRouter(registry, store, relay.NewChunker(cfg.ChunkThreshold), log, metrics)
	return NewHTTPServer(cfg, log, users, store, registry, router, reg)
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestSignup(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantCode   int
		wantDetail string
	}{
		{"ok", `{"username":"alice","email":"a@x.io","password":"pw","public_key":"PK"}`, nil, http.StatusOK, ""},
		{"username taken", `{"username":"alice","email":"a@x.io","password":"pw","public_key":"PK"}`, common.ErrUsernameTaken, http.StatusBadRequest, "Username already taken"},
		{"email taken", `{"username":"alice","email":"a@x.io","password":"pw","public_key":"PK"}`, common.ErrEmailTaken, http.StatusBadRequest, "Email already registered"},
		{"validation", `{"username":"","email":"a@x.io","password":"pw","public_key":"PK"}`, common.ErrorValidation, http.StatusBadRequest, ""},
		{"internal", `{"username":"alice","email":"a@x.io","password":"pw","public_key":"PK"}`, errors.New("db down"), http.StatusInternalServerError, "Internal server error"},
		{"bad json", `{`, nil, http.StatusBadRequest, "Invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(testConfig(), &fakeUsers{signupErr: tt.err}, &memStore{})
			rec, body := do(t, s.Handler(), http.MethodPost, "/signup", tt.body)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCode == http.StatusOK {
				assert.Equal(t, "User registered successfully", body["message"])
			}
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, body["detail"])
			}
		})
	}
}

func TestLogin(t *testing.T) {
	s := newTestServer(testConfig(), &fakeUsers{loginToken: "tok"}, &memStore{})
	rec, body := do(t, s.Handler(), http.MethodPost, "/login", `{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Login successful", body["message"])
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, "tok", body["access_token"])

	s = newTestServer(testConfig(), &fakeUsers{loginErr: common.ErrorUnauthorized}, &memStore{})
	rec, body = do(t, s.Handler(), http.MethodPost, "/login", `{"username":"alice","password":"bad"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid username or password", body["detail"])

	s = newTestServer(testConfig(), &fakeUsers{loginErr: common.ErrorInternal}, &memStore{})
	rec, _ = do(t, s.Handler(), http.MethodPost, "/login", `{"username":"alice","password":"pw"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestLogout(t *testing.T) {
	s := newTestServer(testConfig(), &fakeUsers{}, &memStore{})
	rec, body := do(t, s.Handler(), http.MethodPost, "/logout", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Logged out successfully", body["message"])
}

func TestGetPublicKey(t *testing.T) {
	s := newTestServer(testConfig(), &fakeUsers{keys: map[string]string{"bob": "PKB"}}, &memStore{})

	rec, body := do(t, s.Handler(), http.MethodGet, "/get_public_key/bob", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PKB", body["public_key"])

	rec, body = do(t, s.Handler(), http.MethodGet, "/get_public_key/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "User not found", body["detail"])

	s = newTestServer(testConfig(), &fakeUsers{keyErr: errors.New("down")}, &memStore{})
	rec, _ = do(t, s.Handler(), http.MethodGet, "/get_public_key/bob", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetMessages(t *testing.T) {
	store := &memStore{rows: []*models.Envelope{
		{Sender: "alice", Recipient: "bob", EncryptedContent: "c1", IV: "i", EncryptedAESKey: "k", Timestamp: "t1", Status: models.StatusDelivered},
		{Sender: "bob", Recipient: "alice", EncryptedContent: "c2", IV: "i", EncryptedAESKey: "k", Timestamp: "t2", Status: models.StatusSent,
			FileAttachment: &models.FileAttachment{FileName: "f", FileType: "t", FileSize: 1, IV: "fi", EncryptedData: "d"}},
		{Sender: "carol", Recipient: "dave", Timestamp: "t3", Status: models.StatusSent},
	}}
	s := newTestServer(testConfig(), &fakeUsers{}, store)

	rec, _ := do(t, s.Handler(), http.MethodGet, "/messages/alice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Messages []map[string]any `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Messages, 2)
	assert.Equal(t, "encrypted_message", resp.Messages[0]["type"])
	assert.Equal(t, "delivered", resp.Messages[0]["status"])
	assert.NotContains(t, resp.Messages[0], "fileAttachment")
	assert.Equal(t, "sent", resp.Messages[1]["status"])
	assert.Contains(t, resp.Messages[1], "fileAttachment")

	rec, _ = do(t, s.Handler(), http.MethodGet, "/messages/nobody", "")
	assert.JSONEq(t, `{"messages":[]}`, rec.Body.String())

	store.err = errors.New("down")
	rec, _ = do(t, s.Handler(), http.MethodGet, "/messages/alice", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSearchUsers(t *testing.T) {
	users := &fakeUsers{found: []*models.User{{UserName: "alice", Email: "a@x.io"}}}
	s := newTestServer(testConfig(), users, &memStore{})

	rec, _ := do(t, s.Handler(), http.MethodGet, "/search_users?query=ali", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"users":[{"username":"alice","email":"a@x.io"}]}`, rec.Body.String())
	assert.Equal(t, "ali", users.lastQuery)

	users.searchErr = errors.New("down")
	rec, _ = do(t, s.Handler(), http.MethodGet, "/search_users?query=ali", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(testConfig(), &fakeUsers{}, &memStore{})
	rec, _ := do(t, s.Handler(), http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gophrelay_connections")
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(testConfig(), &fakeUsers{}, &memStore{})
	rec, _ := do(t, s.Handler(), http.MethodGet, "/signup", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
