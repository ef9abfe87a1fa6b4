package routes

import (
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safeform/internal/database"
	"safeform/internal/logger"
	"safeform/internal/models"
)

type Middleware struct {
	server ServerInterface
}

func NewMiddleware(server ServerInterface) *Middleware {
	return &Middleware{server: server}
}

func (m *Middleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userIDRaw := session.Get("user_id")

		if userIDRaw == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		userID, ok := userIDRaw.(int)
		if !ok {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Invalid session data"})
			return
		}

		db := m.server.GetDB()
		user, err := db.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User not found or database error"})
			return
		}

		c.Set("user", user) // Store user object in context
		c.Next()
	}
}

// OrganizationMiddleware resolves :slug and checks the user's membership.
// It sets "organization" and "membership" for the handlers behind it.
func (m *Middleware) OrganizationMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.MustGet("user").(*database.User)

		org, membership, err := m.server.GetDirectory().Membership(c.Request.Context(), user.ID, c.Param("slug"))
		switch {
		case errors.Is(err, models.ErrOrganizationNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Organization not found"})
			return
		case errors.Is(err, models.ErrNotMember):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied to organization"})
			return
		case err != nil:
			logger.Error("failed to resolve membership", zap.String("slug", c.Param("slug")), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve organization"})
			return
		}

		c.Set("organization", org)
		c.Set("membership", membership)
		c.Next()
	}
}

func (m *Middleware) requireRole(allowed func(*models.OrganizationMembership) bool, message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		membership := c.MustGet("membership").(*models.OrganizationMembership)
		if !allowed(membership) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": message})
			return
		}
		c.Next()
	}
}

// RequireManage lets only owners and admins through.
func (m *Middleware) RequireManage() gin.HandlerFunc {
	return m.requireRole((*models.OrganizationMembership).CanManageTemplates, "Insufficient permissions to manage templates")
}

func (m *Middleware) RequireReview() gin.HandlerFunc {
	return m.requireRole((*models.OrganizationMembership).CanReview, "Insufficient permissions to review submissions")
}

func (m *Middleware) RequireSubmit() gin.HandlerFunc {
	return m.requireRole((*models.OrganizationMembership).CanSubmit, "Insufficient permissions to submit forms")
}

// RequestLogger writes one structured line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}

// Recovery turns a panic into a 500 and logs the stack.
func Recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.ByteString("stack", debug.Stack()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	})
}
