package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safeform/internal/database"
	"safeform/internal/forms"
	"safeform/internal/logger"
	"safeform/internal/metrics"
	"safeform/internal/models"
	"safeform/internal/storage"
)

var (
	notFoundErrors = []error{
		database.ErrNotFound,
		forms.ErrFieldNotFound,
		forms.ErrOptionNotFound,
		models.ErrOrganizationNotFound,
		models.ErrUserNotFound,
		storage.ErrAttachmentNotFound,
	}
	conflictErrors = []error{
		forms.ErrConcurrentModification,
		forms.ErrInvalidTransition,
		forms.ErrFieldTypeImmutable,
		forms.ErrFieldDeprecated,
		forms.ErrLastActiveOption,
		forms.ErrTemplateMismatch,
		models.ErrLastOwner,
	}
	badRequestErrors = []error{
		forms.ErrUnknownFieldType,
		forms.ErrDuplicateFieldID,
		forms.ErrDuplicateOptionValue,
		forms.ErrIndexOutOfRange,
		forms.ErrOptionsNotSupported,
		forms.ErrInvalidValidationRule,
		models.ErrInvalidRole,
		storage.ErrUnsupportedFileType,
	}
)

func isAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// respondError maps domain errors onto HTTP statuses. Anything unrecognised
// is logged and reported as a 500 without its message.
func respondError(c *gin.Context, err error) {
	var verr *forms.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":        "Validation failed",
			"field_errors": verr.FieldErrors,
		})
	case isAny(err, notFoundErrors):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case isAny(err, conflictErrors):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case isAny(err, badRequestErrors):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, storage.ErrAttachmentTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrNotMember):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// recordValidationFailures counts failed fields by type.
func recordValidationFailures(t forms.FormTemplate, err error) {
	var verr *forms.ValidationError
	if !errors.As(err, &verr) {
		return
	}
	for id := range verr.FieldErrors {
		fieldType := "unknown"
		if f, ok := t.Field(id); ok {
			fieldType = string(f.Type)
		}
		metrics.ValidationFailures.WithLabelValues(fieldType).Inc()
	}
}
