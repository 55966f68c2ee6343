package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gophrelay/internal/common"
	"github.com/dmitrijs2005/gophrelay/internal/relay"
	"github.com/dmitrijs2005/gophrelay/internal/server/models"
	"github.com/gorilla/mux"
)

type signupRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	PublicKey string `json:"public_key"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message     string `json:"message"`
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

type publicKeyResponse struct {
	PublicKey string `json:"public_key"`
}

type userSummary struct {
	Username string `json:"username"`
	Email    string `json:"email"`
}

type searchResponse struct {
	Users []userSummary `json:"users"`
}

type historyItem struct {
	Type relay.Kind `json:"type"`
	*models.Envelope
}

type historyResponse struct {
	Messages []historyItem `json:"messages"`
}

func (s *HTTPServer) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	s.logger.Info(ctx, "Registration request", "username", req.Username)

	_, err := s.users.Signup(ctx, req.Username, req.Email, req.Password, req.PublicKey)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrUsernameTaken):
		writeError(w, http.StatusBadRequest, "Username already taken")
		return
	case errors.Is(err, common.ErrEmailTaken):
		writeError(w, http.StatusBadRequest, "Email already registered")
		return
	case errors.Is(err, common.ErrorValidation):
		writeError(w, http.StatusBadRequest, "username, email, password and public_key are required")
		return
	case errors.Is(err, common.ErrorAlreadyExists):
		writeError(w, http.StatusBadRequest, "Database error during signup")
		return
	default:
		s.logger.Error(ctx, "signup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info(ctx, "Registered", "username", req.Username)
	writeJSON(w, http.StatusOK, messageResponse{Message: "User registered successfully"})
}

func (s *HTTPServer) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, err := s.users.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			writeError(w, http.StatusUnauthorized, "Invalid username or password")
			return
		}
		s.logger.Error(ctx, "login failed", "username", req.Username, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Message: "Login successful", Username: req.Username, AccessToken: token})
}

func (s *HTTPServer) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out successfully"})
}

func (s *HTTPServer) GetPublicKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := mux.Vars(r)["username"]

	key, ok, err := s.users.PublicKey(ctx, username)
	if err != nil {
		s.logger.Error(ctx, "get public key failed", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}

	writeJSON(w, http.StatusOK, publicKeyResponse{PublicKey: key})
}

func (s *HTTPServer) GetMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := mux.Vars(r)["username"]

	list, err := s.messages.Query(ctx, username)
	if err != nil {
		s.logger.Error(ctx, "get messages failed", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := historyResponse{Messages: make([]historyItem, 0, len(list))}
	for _, env := range list {
		resp.Messages = append(resp.Messages, historyItem{Type: relay.KindEncryptedMessage, Envelope: env})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) SearchUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	list, err := s.users.Search(ctx, r.URL.Query().Get("query"))
	if err != nil {
		s.logger.Error(ctx, "search users failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := searchResponse{Users: make([]userSummary, 0, len(list))}
	for _, u := range list {
		resp.Users = append(resp.Users, userSummary{Username: u.UserName, Email: u.Email})
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
