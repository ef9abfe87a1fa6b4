package storage

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxAttachmentSize is the largest file accepted for a file field.
const MaxAttachmentSize = 25 << 20

var (
	ErrAttachmentTooLarge  = errors.New("attachment exceeds maximum size")
	ErrUnsupportedFileType = errors.New("unsupported attachment type")
	ErrAttachmentNotFound  = errors.New("attachment not found")
)

var allowedTypes = []string{
	"application/pdf",
	"text/plain",
	"text/csv",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"video/mp4",
	"video/quicktime",
}

// AttachmentRef locates an attachment by the field it answers.
type AttachmentRef struct {
	OrganizationID uuid.UUID
	TemplateID     string
	FieldID        string
}

// Key returns the object key for name under the ref's prefix.
func (r AttachmentRef) Key(name string) string {
	return fmt.Sprintf("%s%s/%s/%s", OrganizationPrefix(r.OrganizationID), r.TemplateID, r.FieldID, name)
}

// OrganizationPrefix is the key prefix of every attachment an organization owns.
func OrganizationPrefix(orgID uuid.UUID) string {
	return "attachments/" + orgID.String() + "/"
}

// OwnsKey reports whether key belongs to the organization.
func OwnsKey(orgID uuid.UUID, key string) bool {
	return strings.HasPrefix(key, OrganizationPrefix(orgID)) && !strings.Contains(key, "..")
}

// Sniff detects the content type of data from its bytes, ignoring whatever
// the client claimed. Images, PDFs, plain text and office documents are
// accepted.
func Sniff(data []byte) (contentType, extension string, err error) {
	m := mimetype.Detect(data)
	if strings.HasPrefix(m.String(), "image/") || mimetype.EqualsAny(m.String(), allowedTypes...) {
		return m.String(), m.Extension(), nil
	}
	return "", "", fmt.Errorf("%w: %s", ErrUnsupportedFileType, m.String())
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxAttachmentSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) > MaxAttachmentSize {
		return nil, ErrAttachmentTooLarge
	}
	return data, nil
}
