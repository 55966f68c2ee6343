package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophrelay/internal/common"
	"github.com/dmitrijs2005/gophrelay/internal/server/attachments"
	"github.com/dmitrijs2005/gophrelay/internal/server/models"
	"github.com/dmitrijs2005/gophrelay/internal/server/repositories/repomanager"
)

var newAttachmentKey = attachments.NewKey

// MessageService is the durable message store behind the relay. When a blob
// store is configured, attachment payloads live there and the database row
// keeps only their metadata and object key.
type MessageService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	blobs       attachments.Store
}

// NewMessageService constructs a MessageService. blobs may be nil, in which
// case attachments are stored inline.
func NewMessageService(db *sql.DB, m repomanager.RepositoryManager, blobs attachments.Store) *MessageService {
	return &MessageService{db: db, repomanager: m, blobs: blobs}
}

// Append persists env. The caller's envelope is never modified. An offloaded
// attachment is removed again when the row cannot be written.
func (s *MessageService) Append(ctx context.Context, env *models.Envelope) error {
	stored := env
	if env.FileAttachment != nil && s.blobs != nil {
		stored = env.Clone()
		key := newAttachmentKey()
		if err := s.blobs.Put(ctx, key, []byte(stored.FileAttachment.EncryptedData)); err != nil {
			return fmt.Errorf("store attachment: %w", err)
		}
		stored.FileAttachment.EncryptedData = ""
		stored.AttachmentKey = key
	}

	if err := s.repomanager.Messages(s.db).Create(ctx, stored); err != nil {
		if stored.AttachmentKey != "" {
			if delErr := s.blobs.Delete(ctx, stored.AttachmentKey); delErr != nil {
				return errors.Join(err, fmt.Errorf("remove orphaned attachment: %w", delErr))
			}
		}
		return err
	}
	return nil
}

// UpdateStatus upgrades the envelope keyed by (sender, recipient, timestamp).
// Only the forward transition to delivered is accepted.
func (s *MessageService) UpdateStatus(ctx context.Context, sender, recipient, timestamp string, status models.Status) error {
	if status != models.StatusDelivered {
		return common.ErrInvalidStatusTransition
	}
	return s.repomanager.Messages(s.db).UpdateStatus(ctx, sender, recipient, timestamp, status)
}

// Query returns identity's full history, both directions, oldest first.
func (s *MessageService) Query(ctx context.Context, identity string) ([]*models.Envelope, error) {
	list, err := s.repomanager.Messages(s.db).SelectByParticipant(ctx, identity)
	if err != nil {
		return nil, err
	}

	for _, env := range list {
		if env.AttachmentKey == "" || env.FileAttachment == nil {
			continue
		}
		if s.blobs == nil {
			return nil, fmt.Errorf("attachment %s stored externally but no blob store configured", env.AttachmentKey)
		}
		data, err := s.blobs.Get(ctx, env.AttachmentKey)
		if err != nil {
			return nil, fmt.Errorf("load attachment: %w", err)
		}
		env.FileAttachment.EncryptedData = string(data)
		env.AttachmentKey = ""
	}

	return list, nil
}
