package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type UserRoutes struct {
	server ServerInterface
}

func NewUserRoutes(server ServerInterface) *UserRoutes {
	return &UserRoutes{server: server}
}

func (ur *UserRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(ur.server)

	// User routes
	r.GET("/user", middleware.AuthMiddleware(), ur.userHandler)
}

func (ur *UserRoutes) userHandler(c *gin.Context) {
	user := currentUser(c)

	orgs, err := ur.server.GetDirectory().UserOrganizations(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":       user.ID,
		"email":         user.Email,
		"name":          user.Name,
		"avatar_url":    user.AvatarURL,
		"organizations": orgs,
		"authenticated": true,
	})
}
