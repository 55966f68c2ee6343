package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophrelay/internal/server/models"
)

// DefaultChunkThreshold is the encoded frame size above which an envelope
// with an attachment is split in two.
const DefaultChunkThreshold = 1024 * 1024

// Chunker turns an envelope into the frames sent to its recipient.
type Chunker struct {
	threshold int
}

func NewChunker(threshold int) *Chunker {
	if threshold <= 0 {
		threshold = DefaultChunkThreshold
	}
	return &Chunker{threshold: threshold}
}

// Frames returns one encoded encrypted_message frame, or, when that frame
// would exceed the threshold and the envelope carries an attachment, a
// metadata frame followed by a file_attachment_data frame.
func (c *Chunker) Frames(env *models.Envelope) ([][]byte, error) {
	out := env.Clone()
	out.Status = ""
	out.AttachmentKey = ""

	whole, err := json.Marshal(messageFrame{Type: KindEncryptedMessage, Envelope: out})
	if err != nil {
		return nil, fmt.Errorf("encode message: %w", err)
	}
	if out.FileAttachment == nil || len(whole) <= c.threshold {
		return [][]byte{whole}, nil
	}

	fa := out.FileAttachment
	meta := out.Clone()
	meta.FileAttachment = nil

	header, err := json.Marshal(chunkHeaderFrame{
		Type:                    KindEncryptedMessage,
		Envelope:                meta,
		FileAttachmentFollowing: true,
		FileName:                fa.FileName,
		FileSize:                fa.FileSize,
		FileType:                fa.FileType,
	})
	if err != nil {
		return nil, fmt.Errorf("encode header: %w", err)
	}

	payload, err := json.Marshal(attachmentDataFrame{
		Type:             KindFileAttachmentData,
		MessageTimestamp: out.Timestamp,
		Sender:           out.Sender,
		FileAttachment:   fa,
	})
	if err != nil {
		return nil, fmt.Errorf("encode attachment: %w", err)
	}

	return [][]byte{header, payload}, nil
}

// Deliver sends the frames for env to ep in order, stopping at the first
// failure.
func (c *Chunker) Deliver(ctx context.Context, ep Endpoint, env *models.Envelope) error {
	frames, err := c.Frames(env)
	if err != nil {
		return err
	}
	for _, f := range frames {
		if err := ep.Send(ctx, f); err != nil {
			return transportError("send frame", err)
		}
	}
	return nil
}
