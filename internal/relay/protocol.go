package relay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/dmitrijs2005/gophrelay/internal/common"
	"github.com/dmitrijs2005/gophrelay/internal/server/models"
)

// Kind is the value of a frame's "type" field.
type Kind string

const (
	KindEncryptedMessage   Kind = "encrypted_message"
	KindConnectedClients   Kind = "connected_clients"
	KindDebugInfoRequest   Kind = "debug_info_request"
	KindDebugInfo          Kind = "debug_info"
	KindError              Kind = "error"
	KindFileAttachmentData Kind = "file_attachment_data"
)

// MaxFileNameLen bounds FileAttachment.FileName, in characters.
const MaxFileNameLen = 255

// Inbound is a decoded client-to-server frame. The set of implementations is
// closed: EncryptedMessage, DebugInfoRequest and UnknownFrame.
type Inbound interface {
	inbound()
}

// EncryptedMessage carries one envelope to relay.
type EncryptedMessage struct {
	Envelope models.Envelope
}

// DebugInfoRequest asks for the caller's id and the live identity set.
type DebugInfoRequest struct{}

// UnknownFrame is any object whose type the server does not handle.
// Kind holds the type field as the client sent it.
type UnknownFrame struct {
	Kind string
}

func (EncryptedMessage) inbound() {}
func (DebugInfoRequest) inbound() {}
func (UnknownFrame) inbound()     {}

// DecodeInbound parses one frame. A payload that is not a JSON object fails
// with ErrTransport; an object whose fields have the wrong types fails with
// a *FrameError wrapping ErrClientFrame.
func DecodeInbound(data []byte) (Inbound, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		if err == nil {
			err = fmt.Errorf("null frame")
		}
		return nil, transportError("decode frame", err)
	}

	raw, ok := fields["type"]
	if !ok {
		return UnknownFrame{Kind: "null"}, nil
	}
	var kind string
	if err := json.Unmarshal(raw, &kind); err != nil {
		return UnknownFrame{Kind: string(bytes.TrimSpace(raw))}, nil
	}

	switch Kind(kind) {
	case KindEncryptedMessage:
		var env models.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, clientFrameError("Malformed encrypted_message: %v", err)
		}
		env.Status = ""
		env.AttachmentKey = ""
		return EncryptedMessage{Envelope: env}, nil
	case KindDebugInfoRequest:
		return DebugInfoRequest{}, nil
	default:
		return UnknownFrame{Kind: kind}, nil
	}
}

// Validate checks that every required envelope field is present and that an
// attached file is structurally sound.
func Validate(env *models.Envelope) error {
	required := []struct {
		name, value string
	}{
		{"sender", env.Sender},
		{"recipient", env.Recipient},
		{"encryptedContent", env.EncryptedContent},
		{"iv", env.IV},
		{"encryptedAESKey", env.EncryptedAESKey},
		{"timestamp", env.Timestamp},
	}
	for _, f := range required {
		if f.value == "" {
			return clientFrameError("Missing required field: %s", f.name)
		}
	}

	if env.FileAttachment != nil {
		return validateAttachment(env.FileAttachment)
	}
	return nil
}

func validateAttachment(fa *models.FileAttachment) error {
	switch {
	case fa.FileName == "" || utf8.RuneCountInString(fa.FileName) > MaxFileNameLen:
		return clientFrameError("Invalid file attachment: bad file name")
	case fa.FileType == "":
		return clientFrameError("Invalid file attachment: missing file type")
	case fa.FileSize <= 0 || fa.FileSize > common.MaxFileSize:
		return clientFrameError("Invalid file attachment: file size must be between 1 and %d bytes", common.MaxFileSize)
	case fa.IV == "" || fa.EncryptedData == "":
		return clientFrameError("Invalid file attachment: missing encrypted data or iv")
	}
	return nil
}

// Outbound frames.

type messageFrame struct {
	Type Kind `json:"type"`
	*models.Envelope
}

type chunkHeaderFrame struct {
	Type Kind `json:"type"`
	*models.Envelope
	FileAttachmentFollowing bool   `json:"fileAttachmentFollowing"`
	FileName                string `json:"fileName"`
	FileSize                int64  `json:"fileSize"`
	FileType                string `json:"fileType"`
}

type attachmentDataFrame struct {
	Type             Kind                   `json:"type"`
	MessageTimestamp string                 `json:"messageTimestamp"`
	Sender           string                 `json:"sender"`
	FileAttachment   *models.FileAttachment `json:"fileAttachment"`
}

type presenceFrame struct {
	Type    Kind     `json:"type"`
	Clients []string `json:"clients"`
}

type debugInfoFrame struct {
	Type              Kind     `json:"type"`
	ClientID          string   `json:"client_id"`
	ActiveConnections []string `json:"active_connections"`
}

type errorFrame struct {
	Type    Kind   `json:"type"`
	Message string `json:"message"`
}

func encodePresence(ids []string) ([]byte, error) {
	if ids == nil {
		ids = []string{}
	}
	return json.Marshal(presenceFrame{Type: KindConnectedClients, Clients: ids})
}

func encodeError(msg string) ([]byte, error) {
	return json.Marshal(errorFrame{Type: KindError, Message: msg})
}
