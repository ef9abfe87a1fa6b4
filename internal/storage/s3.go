package storage

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"safeform/internal/config"
	"safeform/internal/forms"
)

var ErrStorageDisabled = errors.New("attachment storage is not configured")

// AttachmentStore keeps the files answering file fields.
type AttachmentStore interface {
	UploadAttachment(ctx context.Context, ref AttachmentRef, filename string, r io.Reader) (forms.Attachment, error)
	DownloadAttachment(ctx context.Context, key string) (*DownloadResult, error)
	PresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error)
	DeleteAttachment(ctx context.Context, key string) error
	// Encrypted reports whether objects are sealed before upload, in which
	// case they can only be read back through DownloadAttachment.
	Encrypted() bool
}

type S3Service struct {
	client        *s3.Client
	uploader      *manager.Uploader
	downloader    *manager.Downloader
	bucket        string
	encryptionKey []byte // 32-byte AES-256 key, nil when disabled
}

var _ AttachmentStore = (*S3Service)(nil)

type DownloadResult struct {
	Data     []byte
	FileHash string
	FileSize int64
	MimeType string
	Name     string
}

// NewS3Service creates the S3 attachment store. An empty bucket returns
// ErrStorageDisabled. AWS_ENDPOINT_URL switches to path-style addressing for
// MinIO.
func NewS3Service(ctx context.Context, cfg config.StorageConfig) (*S3Service, error) {
	if cfg.Bucket == "" {
		return nil, ErrStorageDisabled
	}

	key, err := parseKey(cfg.EncryptionKey)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
	})

	return &S3Service{
		client:        client,
		uploader:      manager.NewUploader(client),
		downloader:    manager.NewDownloader(client),
		bucket:        cfg.Bucket,
		encryptionKey: key,
	}, nil
}

func parseKey(keyHex string) ([]byte, error) {
	if keyHex == "" {
		return nil, nil
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key format: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes (64 hex characters)")
	}
	return key, nil
}

func (s *S3Service) Encrypted() bool {
	return s.encryptionKey != nil
}

// UploadAttachment sniffs, optionally encrypts and stores one file. The
// returned descriptor is what a submission stores as the field's answer.
func (s *S3Service) UploadAttachment(ctx context.Context, ref AttachmentRef, filename string, r io.Reader) (forms.Attachment, error) {
	data, err := readLimited(r)
	if err != nil {
		return forms.Attachment{}, err
	}

	contentType, ext, err := Sniff(data)
	if err != nil {
		return forms.Attachment{}, err
	}

	hash := sha256.Sum256(data)
	fileHash := hex.EncodeToString(hash[:])

	body := data
	if s.Encrypted() {
		if body, err = s.encryptData(data); err != nil {
			return forms.Attachment{}, fmt.Errorf("failed to encrypt file: %w", err)
		}
	}

	key := ref.Key(uuid.NewString() + ext)
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"original-filename": filename,
			"organization-id":   ref.OrganizationID.String(),
			"template-id":       ref.TemplateID,
			"field-id":          ref.FieldID,
			"original-hash":     fileHash,
			"encrypted":         fmt.Sprintf("%t", s.Encrypted()),
		},
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return forms.Attachment{}, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return forms.Attachment{
		Key:         key,
		Name:        filename,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

// DownloadAttachment downloads and decrypts a file from S3
func (s *S3Service) DownloadAttachment(ctx context.Context, key string) (*DownloadResult, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("attachment %s: %w", key, ErrAttachmentNotFound)
		}
		return nil, fmt.Errorf("failed to check attachment: %w", err)
	}

	buf := manager.NewWriteAtBuffer([]byte{})
	_, err = s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download from S3: %w", err)
	}

	data := buf.Bytes()
	if head.Metadata["encrypted"] == "true" {
		if data, err = s.decryptData(data); err != nil {
			return nil, fmt.Errorf("failed to decrypt file: %w", err)
		}
	}

	hash := sha256.Sum256(data)
	return &DownloadResult{
		Data:     data,
		FileHash: hex.EncodeToString(hash[:]),
		FileSize: int64(len(data)),
		MimeType: aws.ToString(head.ContentType),
		Name:     head.Metadata["original-filename"],
	}, nil
}

// PresignedURL generates a temporary download link. Only meaningful for
// unencrypted objects.
func (s *S3Service) PresignedURL(ctx context.Context, key string, expiration time.Duration) (string, error) {
	presignClient := s3.NewPresignClient(s.client)

	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiration
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate presigned URL: %w", err)
	}

	return request.URL, nil
}

// DeleteAttachment deletes a file from S3
func (s *S3Service) DeleteAttachment(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

// encryptData encrypts data using AES-256-GCM
func (s *S3Service) encryptData(data []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, data, nil), nil
}

// decryptData decrypts data using AES-256-GCM
func (s *S3Service) decryptData(encryptedData []byte) ([]byte, error) {
	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(encryptedData) < nonceSize {
		return nil, fmt.Errorf("encrypted data too short")
	}

	nonce, ciphertext := encryptedData[:nonceSize], encryptedData[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt data: %w", err)
	}
	return plaintext, nil
}

func (s *S3Service) gcm() (cipher.AEAD, error) {
	if s.encryptionKey == nil {
		return nil, fmt.Errorf("no encryption key configured")
	}
	block, err := aes.NewCipher(s.encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
