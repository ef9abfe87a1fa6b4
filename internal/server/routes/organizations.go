package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safeform/internal/logger"
	"safeform/internal/models"
)

type OrganizationRoutes struct {
	server ServerInterface
}

func NewOrganizationRoutes(server ServerInterface) *OrganizationRoutes {
	return &OrganizationRoutes{server: server}
}

func (or *OrganizationRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(or.server)

	r.GET("/orgs", middleware.AuthMiddleware(), or.getUserOrganizationsHandler)
	r.POST("/orgs", middleware.AuthMiddleware(), or.createOrganizationHandler)

	orgs := r.Group("/orgs/:slug")
	orgs.Use(middleware.AuthMiddleware())
	orgs.Use(middleware.OrganizationMiddleware())
	{
		orgs.GET("", or.getOrganizationHandler)
		orgs.GET("/members", or.getMembersHandler)
		orgs.POST("/members", middleware.RequireManage(), or.addMemberHandler)
		orgs.PUT("/settings", middleware.RequireManage(), or.updateSettingsHandler)
	}
}

type CreateOrganizationRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Description string `json:"description" binding:"max=500"`
}

type AddMemberRequest struct {
	Email string                `json:"email" binding:"required,email"`
	Role  models.MembershipRole `json:"role" binding:"required"`
}

func (or *OrganizationRoutes) getUserOrganizationsHandler(c *gin.Context) {
	user := currentUser(c)

	orgs, err := or.server.GetDirectory().UserOrganizations(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"organizations": orgs})
}

func (or *OrganizationRoutes) createOrganizationHandler(c *gin.Context) {
	user := currentUser(c)

	var req CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	org, err := or.server.GetDirectory().CreateOrganization(c.Request.Context(), req.Name, req.Description, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("organization created", zap.String("slug", org.Slug), zap.Int("owner_id", user.ID))
	c.JSON(http.StatusCreated, gin.H{"organization": org})
}

// getOrganizationHandler returns the organization, the caller's role and the
// forms policy in effect for it.
func (or *OrganizationRoutes) getOrganizationHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"organization": currentOrganization(c),
		"role":         currentMembership(c).Role,
		"policy":       policy(or.server, c),
	})
}

func (or *OrganizationRoutes) getMembersHandler(c *gin.Context) {
	members, err := or.server.GetDirectory().Members(c.Request.Context(), currentOrganization(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"members": members})
}

// addMemberHandler adds an existing user by email or changes their role.
func (or *OrganizationRoutes) addMemberHandler(c *gin.Context) {
	var req AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if req.Role == models.RoleOwner && currentMembership(c).Role != models.RoleOwner {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only owners can grant the owner role"})
		return
	}

	org := currentOrganization(c)
	member, err := or.server.GetDirectory().AddMember(c.Request.Context(), org.ID, req.Email, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("member added",
		zap.String("slug", org.Slug),
		zap.Int("user_id", member.ID),
		zap.String("role", string(member.Role)))
	c.JSON(http.StatusOK, gin.H{"member": member})
}

func (or *OrganizationRoutes) updateSettingsHandler(c *gin.Context) {
	var settings models.OrganizationSettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	org := currentOrganization(c)
	if err := or.server.GetDirectory().UpdateOrganizationSettings(c.Request.Context(), org, settings); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"organization": org,
		"policy":       org.Policy(or.server.GetConfig().Forms),
	})
}
