package messages

import (
	"context"

	"github.com/dmitrijs2005/gophrelay/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, env *models.Envelope) error
	UpdateStatus(ctx context.Context, sender, recipient, timestamp string, status models.Status) error
	SelectByParticipant(ctx context.Context, identity string) ([]*models.Envelope, error)
}
