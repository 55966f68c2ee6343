// Package services contains server-side business logic. This file implements
// UserService, the user directory: signup, login, public key lookup and search.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophrelay/internal/common"
	"github.com/dmitrijs2005/gophrelay/internal/dbx"
	"github.com/dmitrijs2005/gophrelay/internal/server/auth"
	"github.com/dmitrijs2005/gophrelay/internal/server/config"
	"github.com/dmitrijs2005/gophrelay/internal/server/models"
	"github.com/dmitrijs2005/gophrelay/internal/server/repositories/repomanager"
)

// SearchLimit caps the number of users a single search returns.
const SearchLimit = 20

var (
	hashPassword  = auth.HashPassword
	checkPassword = auth.CheckPassword
)

// UserService resolves identities and their public keys, and handles account
// creation and password login.
type UserService struct {
	db                          *sql.DB
	repomanager                 repomanager.RepositoryManager
	jwtSecret                   []byte
	accessTokenValidityDuration time.Duration
}

// NewUserService constructs a UserService using repositories and server config.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config) *UserService {
	return &UserService{
		db:                          db,
		repomanager:                 m,
		jwtSecret:                   []byte(cfg.SecretKey),
		accessTokenValidityDuration: cfg.AccessTokenValidityDuration,
	}
}

// Signup registers a new user. Username and email must both be unused;
// the conflicting one is reported as common.ErrUsernameTaken or
// common.ErrEmailTaken.
func (s *UserService) Signup(ctx context.Context, username, email, password, publicKey string) (*models.User, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(email) == "" || password == "" || publicKey == "" {
		return nil, common.ErrorValidation
	}

	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var created *models.User
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		existing, err := repo.FindConflict(ctx, username, email)
		switch {
		case err == nil:
			if existing.UserName == username {
				return common.ErrUsernameTaken
			}
			return common.ErrEmailTaken
		case !errors.Is(err, common.ErrorNotFound):
			return err
		}

		created, err = repo.Create(ctx, &models.User{
			UserName:     username,
			Email:        email,
			PasswordHash: hash,
			PublicKey:    publicKey,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

// Login checks the password and returns a signed access token for username.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	repo := s.repomanager.Users(s.db)
	user, err := repo.GetUserByLogin(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", common.ErrorUnauthorized
		}
		return "", common.ErrorInternal
	}

	ok, err := checkPassword(user.PasswordHash, password)
	if err != nil {
		return "", common.ErrorInternal
	}
	if !ok {
		return "", common.ErrorUnauthorized
	}

	token, err := auth.GenerateToken(user.UserName, s.jwtSecret, s.accessTokenValidityDuration)
	if err != nil {
		return "", common.ErrorInternal
	}
	return token, nil
}

// Exists reports whether identity names a registered user.
func (s *UserService) Exists(ctx context.Context, identity string) (bool, error) {
	_, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, identity)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PublicKey returns identity's public key; ok is false for unknown users.
func (s *UserService) PublicKey(ctx context.Context, identity string) (string, bool, error) {
	user, err := s.repomanager.Users(s.db).GetUserByLogin(ctx, identity)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return user.PublicKey, true, nil
}

// Search returns up to SearchLimit users whose username or email contains query.
func (s *UserService) Search(ctx context.Context, query string) ([]*models.User, error) {
	return s.repomanager.Users(s.db).Search(ctx, query, SearchLimit)
}
