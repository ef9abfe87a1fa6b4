package routes

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safeform/internal/forms"
	"safeform/internal/logger"
	"safeform/internal/metrics"
	"safeform/internal/storage"
)

const presignExpiry = 15 * time.Minute

type AttachmentRoutes struct {
	server ServerInterface
}

func NewAttachmentRoutes(server ServerInterface) *AttachmentRoutes {
	return &AttachmentRoutes{server: server}
}

func (ar *AttachmentRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(ar.server)

	org := r.Group("/orgs/:slug")
	org.Use(middleware.AuthMiddleware())
	org.Use(middleware.OrganizationMiddleware())
	org.Use(ar.requireStorage)
	{
		org.POST("/templates/:templateID/attachments", middleware.RequireSubmit(), ar.uploadHandler)
		org.GET("/attachments/*key", ar.downloadHandler)
		org.DELETE("/attachments/*key", middleware.RequireManage(), ar.deleteHandler)
	}
}

func (ar *AttachmentRoutes) requireStorage(c *gin.Context) {
	if ar.server.GetStorage() == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Attachment storage is not configured"})
		return
	}
	c.Next()
}

// uploadHandler stores one file for a file field. The returned attachment is
// what the client puts in the field's answer.
func (ar *AttachmentRoutes) uploadHandler(c *gin.Context) {
	ctx := c.Request.Context()
	org := currentOrganization(c)
	fieldID := c.PostForm("field_id")

	t, err := ar.server.GetDB().LoadTemplate(ctx, org.ID, c.Param("templateID"))
	if err != nil {
		respondError(c, err)
		return
	}
	f, ok := t.Field(fieldID)
	if !ok || f.Deprecated {
		c.JSON(http.StatusNotFound, gin.H{"error": "Field not found"})
		return
	}
	if f.Type != forms.FieldFile {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Field does not accept files"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	defer file.Close()

	if header.Size > storage.MaxAttachmentSize {
		respondError(c, fmt.Errorf("%s: %w", header.Filename, storage.ErrAttachmentTooLarge))
		return
	}

	ref := storage.AttachmentRef{OrganizationID: org.ID, TemplateID: t.ID, FieldID: f.ID}
	attachment, err := ar.server.GetStorage().UploadAttachment(ctx, ref, filepath.Base(header.Filename), file)
	if err != nil {
		respondError(c, err)
		return
	}

	metrics.AttachmentBytes.Observe(float64(attachment.Size))
	logger.Info("attachment uploaded",
		zap.String("key", attachment.Key),
		zap.String("content_type", attachment.ContentType),
		zap.Int64("size", attachment.Size))
	c.JSON(http.StatusCreated, gin.H{"attachment": attachment})
}

// downloadHandler serves an attachment of the organization. Unencrypted
// objects are handed off to a presigned URL; encrypted ones are streamed.
func (ar *AttachmentRoutes) downloadHandler(c *gin.Context) {
	key, ok := ar.ownedKey(c)
	if !ok {
		return
	}
	store := ar.server.GetStorage()

	if !store.Encrypted() {
		url, err := store.PresignedURL(c.Request.Context(), key, presignExpiry)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Redirect(http.StatusFound, url)
		return
	}

	result, err := store.DownloadAttachment(c.Request.Context(), key)
	if err != nil {
		respondError(c, err)
		return
	}

	name := result.Name
	if name == "" {
		name = filepath.Base(key)
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Header("X-Content-SHA256", result.FileHash)
	c.Data(http.StatusOK, result.MimeType, result.Data)
}

func (ar *AttachmentRoutes) deleteHandler(c *gin.Context) {
	key, ok := ar.ownedKey(c)
	if !ok {
		return
	}

	if err := ar.server.GetStorage().DeleteAttachment(c.Request.Context(), key); err != nil {
		respondError(c, err)
		return
	}

	logger.Info("attachment deleted", zap.String("key", key), zap.Int("user_id", currentUser(c).ID))
	c.JSON(http.StatusOK, gin.H{"message": "Attachment deleted"})
}

// ownedKey extracts the object key and checks it lives under the current
// organization. Keys of other organizations look like missing ones.
func (ar *AttachmentRoutes) ownedKey(c *gin.Context) (string, bool) {
	key := strings.TrimPrefix(c.Param("key"), "/")
	if !storage.OwnsKey(currentOrganization(c).ID, key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Attachment not found"})
		return "", false
	}
	return key, true
}
