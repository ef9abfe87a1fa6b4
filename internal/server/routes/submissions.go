package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"safeform/internal/database"
	"safeform/internal/forms"
	"safeform/internal/logger"
	"safeform/internal/metrics"
	"safeform/internal/models"
)

type SubmissionRoutes struct {
	server ServerInterface
}

func NewSubmissionRoutes(server ServerInterface) *SubmissionRoutes {
	return &SubmissionRoutes{server: server}
}

func (sr *SubmissionRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(sr.server)

	org := r.Group("/orgs/:slug")
	org.Use(middleware.AuthMiddleware())
	org.Use(middleware.OrganizationMiddleware())
	{
		org.POST("/templates/:templateID/submissions", middleware.RequireSubmit(), sr.submitHandler)
		org.POST("/templates/:templateID/drafts", middleware.RequireSubmit(), sr.saveDraftHandler)

		org.GET("/submissions", sr.listSubmissionsHandler)
		org.GET("/submissions/:submissionID", sr.getSubmissionHandler)
		org.POST("/submissions/:submissionID/submit", middleware.RequireSubmit(), sr.submitDraftHandler)
		org.POST("/submissions/:submissionID/transition", middleware.RequireReview(), sr.transitionHandler)
	}
}

type SubmitRequest struct {
	Values map[string]any `json:"values" binding:"required"`
}

type DraftRequest struct {
	Values map[string]any `json:"values"`
}

type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

func (sr *SubmissionRoutes) submitHandler(c *gin.Context) {
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	t, ok := sr.loadTemplate(c, c.Param("templateID"), false)
	if !ok {
		return
	}

	sub, err := forms.Submit(t, actorID(currentUser(c)), req.Values, policy(sr.server, c))
	if err != nil {
		recordValidationFailures(t, err)
		respondError(c, err)
		return
	}

	sub, ok = sr.save(c, t, sub)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"submission": sub})
}

// saveDraftHandler stores partial answers without validating them.
func (sr *SubmissionRoutes) saveDraftHandler(c *gin.Context) {
	var req DraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	t, ok := sr.loadTemplate(c, c.Param("templateID"), false)
	if !ok {
		return
	}

	draft := forms.SaveDraft(t, actorID(currentUser(c)), req.Values)
	draft, ok = sr.save(c, t, draft)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"submission": draft})
}

// listSubmissionsHandler lists the organization's submissions. Members who
// cannot review only see their own.
func (sr *SubmissionRoutes) listSubmissionsHandler(c *gin.Context) {
	user := currentUser(c)

	filter := database.SubmissionFilter{
		TemplateID:  c.Query("template_id"),
		SubmittedBy: c.Query("submitted_by"),
		Limit:       queryInt(c, "limit", 50, 500),
		Offset:      queryInt(c, "offset", 0, 1<<20),
	}
	if filter.SubmittedBy == "me" || !currentMembership(c).CanReview() {
		filter.SubmittedBy = actorID(user)
	}
	if s := c.Query("status"); s != "" {
		status, err := forms.ParseStatus(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Status = status
	}

	subs, err := sr.server.GetDB().ListSubmissions(c.Request.Context(), currentOrganization(c).ID, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

// getSubmissionHandler returns a submission with its answers rendered against
// the current template and the statuses a reviewer may move it to.
func (sr *SubmissionRoutes) getSubmissionHandler(c *gin.Context) {
	sub, ok := sr.loadSubmission(c)
	if !ok {
		return
	}
	if !canSee(currentMembership(c), currentUser(c), sub) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
		return
	}

	t, ok := sr.loadTemplate(c, sub.FormTemplateID, true)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"submission":    sub,
		"template":      gin.H{"id": t.ID, "name": t.Name, "version": t.Version},
		"answers":       forms.Render(sub, t),
		"next_statuses": forms.NextStatuses(sub.Status),
	})
}

// submitDraftHandler validates a draft against the current template and moves
// it to submitted. Values in the body replace the draft's answers.
func (sr *SubmissionRoutes) submitDraftHandler(c *gin.Context) {
	var req DraftRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	draft, ok := sr.loadSubmission(c)
	if !ok {
		return
	}
	if draft.SubmittedBy != actorID(currentUser(c)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
		return
	}

	t, ok := sr.loadTemplate(c, draft.FormTemplateID, false)
	if !ok {
		return
	}

	sub, err := forms.SubmitDraft(t, draft, req.Values, policy(sr.server, c))
	if err != nil {
		recordValidationFailures(t, err)
		respondError(c, err)
		return
	}

	sub, ok = sr.save(c, t, sub)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"submission": sub})
}

func (sr *SubmissionRoutes) transitionHandler(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	to, err := forms.ParseStatus(req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, ok := sr.loadSubmission(c)
	if !ok {
		return
	}
	from := sub.Status

	next, err := forms.Transition(sub, to, actorID(currentUser(c)))
	if err != nil {
		respondError(c, err)
		return
	}

	t, ok := sr.loadTemplate(c, sub.FormTemplateID, true)
	if !ok {
		return
	}
	next, ok = sr.save(c, t, next)
	if !ok {
		return
	}

	metrics.StatusTransitions.WithLabelValues(string(from), string(to)).Inc()
	logger.Info("submission status changed",
		zap.String("submission_id", next.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("reviewer_id", currentUser(c).ID))
	c.JSON(http.StatusOK, gin.H{"submission": next, "next_statuses": forms.NextStatuses(next.Status)})
}

func canSee(m *models.OrganizationMembership, user *database.User, sub forms.FormSubmission) bool {
	return m.CanReview() || sub.SubmittedBy == actorID(user)
}

// loadTemplate resolves a template for a submission handler. New answers need
// an active template; review works on deactivated ones too.
func (sr *SubmissionRoutes) loadTemplate(c *gin.Context, templateID string, review bool) (forms.FormTemplate, bool) {
	db := sr.server.GetDB()
	load := db.LoadTemplate
	if review {
		load = db.LoadTemplateForReview
	}
	t, err := load(c.Request.Context(), currentOrganization(c).ID, templateID)
	if err != nil {
		respondError(c, err)
		return t, false
	}
	return t, true
}

func (sr *SubmissionRoutes) loadSubmission(c *gin.Context) (forms.FormSubmission, bool) {
	sub, err := sr.server.GetDB().LoadSubmission(c.Request.Context(), currentOrganization(c).ID, c.Param("submissionID"))
	if err != nil {
		respondError(c, err)
		return sub, false
	}
	return sub, true
}

// save stores sub and records the notifications its status calls for. A
// write based on a stale read fails with 409. A notification failure is
// logged and does not fail the request.
func (sr *SubmissionRoutes) save(c *gin.Context, t forms.FormTemplate, sub forms.FormSubmission) (forms.FormSubmission, bool) {
	ctx := c.Request.Context()
	org := currentOrganization(c)

	saved, err := sr.server.GetDB().SaveSubmission(ctx, org.ID, sub)
	if err != nil {
		respondError(c, err)
		return sub, false
	}
	sub = saved
	metrics.SubmissionsTotal.WithLabelValues(string(sub.Status)).Inc()

	if err := sr.server.GetNotifier().SubmissionChanged(ctx, org.ID, t, sub); err != nil {
		logger.Warn("failed to record submission notifications",
			zap.String("submission_id", sub.ID),
			zap.Error(err))
	}
	return sub, true
}
