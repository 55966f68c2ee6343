// Package messages provides the PostgreSQL-backed durable envelope store.
package messages

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophrelay/internal/common"
	"github.com/dmitrijs2005/gophrelay/internal/dbx"
	"github.com/dmitrijs2005/gophrelay/internal/server/models"
)

// PostgresRepository implements envelope storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create appends an envelope. A second envelope with the same
// (sender, recipient, timestamp) is rejected with common.ErrorAlreadyExists.
func (r *PostgresRepository) Create(ctx context.Context, env *models.Envelope) error {
	query := `
		INSERT INTO messages (sender, recipient, encrypted_content, iv, encrypted_aes_key, timestamp, status, file_attachment, attachment_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	attachment, err := encodeAttachment(env.FileAttachment)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		env.Sender, env.Recipient, env.EncryptedContent, env.IV, env.EncryptedAESKey, env.Timestamp,
		string(env.Status), attachment, nullString(env.AttachmentKey))
	if err != nil {
		if _, ok := dbx.UniqueViolation(err); ok {
			return common.ErrorAlreadyExists
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// UpdateStatus moves the envelope identified by (sender, recipient, timestamp)
// from sent to status. Setting the status an envelope already has is a no-op;
// a backward move matches no row and is reported as common.ErrorNotFound.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, sender, recipient, timestamp string, status models.Status) error {
	query := `
		UPDATE messages SET status = $4
		WHERE sender = $1 AND recipient = $2 AND timestamp = $3 AND status IN ('sent', $4)
	`
	res, err := r.db.ExecContext(ctx, query, sender, recipient, timestamp, string(status))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrorNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}

// SelectByParticipant returns every envelope sent or received by identity,
// ordered by timestamp and then by insertion order.
func (r *PostgresRepository) SelectByParticipant(ctx context.Context, identity string) ([]*models.Envelope, error) {
	query := `
		SELECT sender, recipient, encrypted_content, iv, encrypted_aes_key, timestamp, status, file_attachment, attachment_key
		FROM messages
		WHERE sender = $1 OR recipient = $1
		ORDER BY timestamp ASC, id ASC
	`
	rows, err := r.db.QueryContext(ctx, query, identity)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Envelope, 0)
	for rows.Next() {
		var (
			item       models.Envelope
			status     string
			attachment sql.NullString
			key        sql.NullString
		)
		if err := rows.Scan(
			&item.Sender, &item.Recipient, &item.EncryptedContent, &item.IV, &item.EncryptedAESKey,
			&item.Timestamp, &status, &attachment, &key,
		); err != nil {
			return nil, err
		}
		item.Status = models.Status(status)
		item.AttachmentKey = key.String
		if attachment.Valid {
			fa := &models.FileAttachment{}
			if err := json.Unmarshal([]byte(attachment.String), fa); err != nil {
				return nil, fmt.Errorf("decode attachment of %s/%s/%s: %w", item.Sender, item.Recipient, item.Timestamp, err)
			}
			item.FileAttachment = fa
		}
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func encodeAttachment(fa *models.FileAttachment) (sql.NullString, error) {
	if fa == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(fa)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode attachment: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
