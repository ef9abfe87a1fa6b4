package routes

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"safeform/internal/database"
)

type NotificationRoutes struct {
	server ServerInterface
}

func NewNotificationRoutes(server ServerInterface) *NotificationRoutes {
	return &NotificationRoutes{server: server}
}

func (nr *NotificationRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(nr.server)

	r.GET("/notifications", middleware.AuthMiddleware(), nr.getUserNotificationsHandler)
	r.POST("/notifications/:id/read", middleware.AuthMiddleware(), nr.markNotificationAsReadHandler)
}

// getUserNotificationsHandler returns the unexpired notifications of the
// authenticated user, newest first.
func (nr *NotificationRoutes) getUserNotificationsHandler(c *gin.Context) {
	user := currentUser(c)
	limit := queryInt(c, "limit", 50, 100)

	notifications, err := nr.server.GetDB().GetUserNotifications(c.Request.Context(), user.ID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"notifications": notifications})
}

func (nr *NotificationRoutes) markNotificationAsReadHandler(c *gin.Context) {
	user := currentUser(c)

	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid notification ID"})
		return
	}

	err = nr.server.GetDB().MarkNotificationAsRead(c.Request.Context(), notificationID, user.ID)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification marked as read"})
}
