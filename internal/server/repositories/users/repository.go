package users

import (
	"context"

	"github.com/dmitrijs2005/gophrelay/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	GetUserByLogin(ctx context.Context, login string) (*models.User, error)
	FindConflict(ctx context.Context, username, email string) (*models.User, error)
	Search(ctx context.Context, query string, limit int) ([]*models.User, error)
}
