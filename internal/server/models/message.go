package models

// Status is the delivery state of an Envelope. It only ever moves from
// StatusSent to StatusDelivered.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
)

// Envelope is one end-to-end encrypted message routed between two identities.
// The server never looks inside EncryptedContent or the attachment payload.
type Envelope struct {
	Sender           string          `json:"sender"`
	Recipient        string          `json:"recipient"`
	EncryptedContent string          `json:"encryptedContent"`
	IV               string          `json:"iv"`
	EncryptedAESKey  string          `json:"encryptedAESKey"`
	Timestamp        string          `json:"timestamp"`
	Status           Status          `json:"status,omitempty"`
	FileAttachment   *FileAttachment `json:"fileAttachment,omitempty"`

	// AttachmentKey is the object-storage key of an offloaded attachment
	// payload. It never leaves the server.
	AttachmentKey string `json:"-"`
}

// FileAttachment is an encrypted file carried alongside an Envelope.
type FileAttachment struct {
	FileName      string `json:"fileName"`
	FileType      string `json:"fileType"`
	FileSize      int64  `json:"fileSize"`
	IV            string `json:"iv"`
	EncryptedData string `json:"encryptedData"`
}

// Clone returns a deep copy so callers can rewrite the attachment without
// touching an envelope that is still being relayed.
func (e *Envelope) Clone() *Envelope {
	c := *e
	if e.FileAttachment != nil {
		fa := *e.FileAttachment
		c.FileAttachment = &fa
	}
	return &c
}
