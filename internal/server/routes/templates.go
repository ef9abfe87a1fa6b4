package routes

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safeform/internal/database"
	"safeform/internal/export"
	"safeform/internal/forms"
	"safeform/internal/logger"
	"safeform/internal/metrics"
)

type TemplateRoutes struct {
	server ServerInterface
}

func NewTemplateRoutes(server ServerInterface) *TemplateRoutes {
	return &TemplateRoutes{server: server}
}

func (tr *TemplateRoutes) RegisterRoutes(r *gin.Engine) {
	// Create middleware instance
	middleware := NewMiddleware(tr.server)
	manage := middleware.RequireManage()

	r.GET("/field-types", tr.getFieldTypesHandler)

	// Template routes - all require authentication and organization context
	templates := r.Group("/orgs/:slug/templates")
	templates.Use(middleware.AuthMiddleware())
	templates.Use(middleware.OrganizationMiddleware())
	{
		templates.POST("", manage, tr.createTemplateHandler)
		templates.GET("", tr.getOrganizationTemplatesHandler)
		templates.GET("/:templateID", tr.getTemplateHandler)
		templates.PUT("/:templateID", manage, tr.updateTemplateHandler)
		templates.PATCH("/:templateID", manage, tr.updateMetadataHandler)
		templates.DELETE("/:templateID", manage, tr.deactivateTemplateHandler)
		templates.GET("/:templateID/export.csv", middleware.RequireReview(), tr.exportHandler)

		fields := templates.Group("/:templateID/fields", manage)
		fields.POST("", tr.addFieldHandler)
		fields.POST("/reorder", tr.reorderFieldHandler)
		fields.PATCH("/:fieldID", tr.updateFieldHandler)
		fields.DELETE("/:fieldID", tr.removeFieldHandler)
		fields.POST("/:fieldID/duplicate", tr.duplicateFieldHandler)
		fields.POST("/:fieldID/deprecate", tr.deprecateFieldHandler)
		fields.POST("/:fieldID/options", tr.addOptionHandler)
		fields.DELETE("/:fieldID/options/:value", tr.removeOptionHandler)
		fields.PUT("/:fieldID/validation/:kind", tr.setValidationRuleHandler)
	}
}

type CreateTemplateRequest struct {
	Name        string            `json:"name" binding:"required,max=255"`
	Description string            `json:"description" binding:"max=500"`
	Category    string            `json:"category" binding:"max=100"`
	Fields      []forms.FormField `json:"fields"`
}

type AddFieldRequest struct {
	Type forms.FieldType `json:"type" binding:"required"`
}

type ReorderFieldRequest struct {
	From *int `json:"from" binding:"required"`
	To   *int `json:"to" binding:"required"`
}

type ValidationRuleRequest struct {
	// Value nil clears the rule.
	Value *float64 `json:"value"`
}

func (tr *TemplateRoutes) getFieldTypesHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"field_types": forms.Catalog()})
}

func (tr *TemplateRoutes) createTemplateHandler(c *gin.Context) {
	user := currentUser(c)
	org := currentOrganization(c)

	var req CreateTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	t := forms.NewTemplate(strings.TrimSpace(req.Name), req.Description, req.Category)
	t.CreatedBy = actorID(user)

	var warnings []forms.Warning
	if len(req.Fields) > 0 {
		edited := t
		edited.Fields = req.Fields
		var err error
		if t, warnings, err = forms.Reconcile(t, edited, policy(tr.server, c)); err != nil {
			respondError(c, err)
			return
		}
	}

	saved, err := tr.save(c, t)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("template created",
		zap.String("template_id", saved.ID),
		zap.String("slug", org.Slug),
		zap.Int("fields", len(saved.Fields)))
	c.JSON(http.StatusCreated, gin.H{"template": saved, "warnings": warnings})
}

func (tr *TemplateRoutes) getOrganizationTemplatesHandler(c *gin.Context) {
	templates, err := tr.server.GetDB().ListTemplates(c.Request.Context(), currentOrganization(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

// getTemplateHandler returns the full builder view, deprecated fields
// included. ?view=active returns what a respondent sees instead.
func (tr *TemplateRoutes) getTemplateHandler(c *gin.Context) {
	t, err := tr.server.GetDB().LoadTemplate(c.Request.Context(), currentOrganization(c).ID, c.Param("templateID"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("view") == "active" {
		t.Fields = t.ActiveFields()
	}
	c.JSON(http.StatusOK, gin.H{"template": t})
}

// updateTemplateHandler saves a whole-template edit from the builder. The
// body's version must match the stored one.
func (tr *TemplateRoutes) updateTemplateHandler(c *gin.Context) {
	var edited forms.FormTemplate
	if err := c.ShouldBindJSON(&edited); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if strings.TrimSpace(edited.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Template name is required"})
		return
	}

	org := currentOrganization(c)
	stored, err := tr.server.GetDB().LoadTemplate(c.Request.Context(), org.ID, c.Param("templateID"))
	if err != nil {
		respondError(c, err)
		return
	}
	if edited.Version != stored.Version {
		metrics.TemplateSaves.WithLabelValues("conflict").Inc()
		respondError(c, fmt.Errorf("template %s at version %d, edit based on %d: %w",
			stored.ID, stored.Version, edited.Version, forms.ErrConcurrentModification))
		return
	}

	merged, warnings, err := forms.Reconcile(stored, edited, policy(tr.server, c))
	if err != nil {
		respondError(c, err)
		return
	}

	saved, err := tr.save(c, merged)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"template": saved, "warnings": warnings})
}

func (tr *TemplateRoutes) updateMetadataHandler(c *gin.Context) {
	var patch forms.MetadataPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Template name is required"})
		return
	}

	tr.mutate(c, func(t forms.FormTemplate) (forms.FormTemplate, []forms.Warning, error) {
		return t.UpdateMetadata(patch), nil, nil
	})
}

func (tr *TemplateRoutes) deactivateTemplateHandler(c *gin.Context) {
	org := currentOrganization(c)
	templateID := c.Param("templateID")

	if err := tr.server.GetDB().DeactivateTemplate(c.Request.Context(), org.ID, templateID); err != nil {
		respondError(c, err)
		return
	}

	logger.Info("template deactivated", zap.String("template_id", templateID), zap.String("slug", org.Slug))
	c.JSON(http.StatusOK, gin.H{"message": "Template deactivated"})
}

func (tr *TemplateRoutes) addFieldHandler(c *gin.Context) {
	var req AddFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	tr.mutate(c, func(t forms.FormTemplate) (forms.FormTemplate, []forms.Warning, error) {
		out, _, err := t.AddField(req.Type)
		return out, nil, err
	})
}

func (tr *TemplateRoutes) updateFieldHandler(c *gin.Context) {
	var patch forms.FieldPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	p := policy(tr.server, c)
	tr.mutate(c, func(t forms.FormTemplate) (forms.FormTemplate, []forms.Warning, error) {
		return t.UpdateField(c.Param("fieldID"), patch, p)
	})
}

// removeFieldHandler drops an unsaved field. Saved fields are deprecated and
// the response carries a warning saying so.
func (tr *TemplateRoutes) removeFieldHandler(c *gin.Context) {
	tr.mutate(c, func(t forms.FormTemplate) (forms.FormTemplate, []forms.Warning, error) {
		return t.RemoveField(c.Param("fieldID"))
	})
}

func (tr *TemplateRoutes) duplicateFieldHandler(c *gin.Context) {
	tr.mutate(c, func(t forms.FormTemplate) (forms.FormTemplate, []forms.Warning, error) {
		out, _, err := t.DuplicateField(c.Param("fieldID"))
		return out, nil, err
	})
}

func (tr *TemplateRoutes) deprecateFieldHandler(c *gin.Context) {
	tr.mutate(c, func(t forms.FormTemplate) (forms.FormTemplate, []forms.Warning, error) {
		out, err := t.DeprecateField(c.Param("fieldID"))
		return out, nil, err
	})
}

func (tr *TemplateRoutes) reorderFieldHandler(c *gin.Context) {
	var req ReorderFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	tr.mutate(c, func(t forms.FormTemplate) (forms.FormTemplate, []forms.Warning, error) {
		out, err := t.ReorderField(*req.From, *req.To)
		return out, nil, err
	})
}

func (tr *TemplateRoutes) addOptionHandler(c *gin.Context) {
	tr.mutate(c, func(t forms.FormTemplate) (forms.FormTemplate, []forms.Warning, error) {
		out, err := t.AddOption(c.Param("fieldID"))
		return out, nil, err
	})
}

func (tr *TemplateRoutes) removeOptionHandler(c *gin.Context) {
	p := policy(tr.server, c)
	tr.mutate(c, func(t forms.FormTemplate) (forms.FormTemplate, []forms.Warning, error) {
		return t.RemoveOption(c.Param("fieldID"), c.Param("value"), p)
	})
}

func (tr *TemplateRoutes) setValidationRuleHandler(c *gin.Context) {
	var req ValidationRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	kind := forms.RuleKind(c.Param("kind"))
	tr.mutate(c, func(t forms.FormTemplate) (forms.FormTemplate, []forms.Warning, error) {
		out, err := t.SetValidationRule(c.Param("fieldID"), kind, req.Value)
		return out, nil, err
	})
}

// exportPageSize is how many submissions the export reads per query.
var exportPageSize = 500

// exportHandler streams the template's non-draft submissions as CSV.
func (tr *TemplateRoutes) exportHandler(c *gin.Context) {
	ctx := c.Request.Context()
	org := currentOrganization(c)
	db := tr.server.GetDB()

	t, err := db.LoadTemplateForReview(ctx, org.ID, c.Param("templateID"))
	if err != nil {
		respondError(c, err)
		return
	}

	filter := database.SubmissionFilter{TemplateID: t.ID, Limit: exportPageSize}
	if s := c.Query("status"); s != "" {
		if filter.Status, err = forms.ParseStatus(s); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	var subs []forms.FormSubmission
	for {
		page, err := db.ListSubmissions(ctx, org.ID, filter)
		if err != nil {
			respondError(c, err)
			return
		}
		for _, s := range page {
			if filter.Status != "" || s.Status != forms.StatusDraft {
				subs = append(subs, s)
			}
		}
		if len(page) < filter.Limit {
			break
		}
		filter.Offset += len(page)
	}

	members, err := tr.server.GetDirectory().Members(ctx, org.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	names := make(map[string]string, len(members))
	for _, m := range members {
		names[strconv.Itoa(m.ID)] = m.Name
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", t.ID+".csv"))
	c.Status(http.StatusOK)

	err = export.WriteCSV(c.Writer, t, subs, export.Options{
		SubmitterName: func(id string) string {
			if name := names[id]; name != "" {
				return name
			}
			return id
		},
	})
	if err != nil {
		// Headers are already out; all we can do is log.
		logger.Error("csv export failed", zap.String("template_id", t.ID), zap.Error(err))
	}
}

// mutate runs one builder operation against the stored template and saves
// the result. An If-Match header pins the version the client edited.
//
// Every call saves, so fields touched through these routes are persisted as
// soon as the request returns: their type is frozen and removing them
// deprecates. Builders that need the unsaved state across several edits send
// the whole template through PUT instead.
func (tr *TemplateRoutes) mutate(c *gin.Context, op func(forms.FormTemplate) (forms.FormTemplate, []forms.Warning, error)) {
	t, err := tr.server.GetDB().LoadTemplate(c.Request.Context(), currentOrganization(c).ID, c.Param("templateID"))
	if err != nil {
		respondError(c, err)
		return
	}

	if v := c.GetHeader("If-Match"); v != "" {
		expected, err := strconv.Atoi(strings.Trim(v, `"`))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "If-Match must be a template version"})
			return
		}
		if expected != t.Version {
			metrics.TemplateSaves.WithLabelValues("conflict").Inc()
			respondError(c, fmt.Errorf("template %s at version %d, edit based on %d: %w",
				t.ID, t.Version, expected, forms.ErrConcurrentModification))
			return
		}
	}

	next, warnings, err := op(t)
	if err != nil {
		respondError(c, err)
		return
	}

	saved, err := tr.save(c, next)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"template": saved, "warnings": warnings})
}

func (tr *TemplateRoutes) save(c *gin.Context, t forms.FormTemplate) (forms.FormTemplate, error) {
	saved, err := tr.server.GetDB().SaveTemplate(c.Request.Context(), currentOrganization(c).ID, t)
	switch {
	case errors.Is(err, forms.ErrConcurrentModification):
		metrics.TemplateSaves.WithLabelValues("conflict").Inc()
	case err != nil:
		metrics.TemplateSaves.WithLabelValues("error").Inc()
	default:
		metrics.TemplateSaves.WithLabelValues("ok").Inc()
	}
	return saved, err
}
