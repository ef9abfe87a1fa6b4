package routes

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"safeform/internal/database"
	"safeform/internal/forms"
	"safeform/internal/models"
)

func currentUser(c *gin.Context) *database.User {
	return c.MustGet("user").(*database.User)
}

func currentOrganization(c *gin.Context) *models.Organization {
	return c.MustGet("organization").(*models.Organization)
}

func currentMembership(c *gin.Context) *models.OrganizationMembership {
	return c.MustGet("membership").(*models.OrganizationMembership)
}

// actorID is how users are recorded on templates and submissions.
func actorID(user *database.User) string {
	return strconv.Itoa(user.ID)
}

// policy is the forms policy in effect for the current organization.
func policy(server ServerInterface, c *gin.Context) forms.Policy {
	return currentOrganization(c).Policy(server.GetConfig().Forms)
}

func queryInt(c *gin.Context, key string, def, max int) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
