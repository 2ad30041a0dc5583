package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/scale-assessment-service/internal/models"
	"github.com/clinicore/scale-assessment-service/internal/repositories"
	"github.com/clinicore/scale-assessment-service/internal/services"
	"github.com/clinicore/scale-assessment-service/internal/utils"
)

type AssessmentHandler struct {
	BaseHandler
	assessmentService services.AssessmentService
}

func NewAssessmentHandler(assessmentService services.AssessmentService, logger utils.Logger) *AssessmentHandler {
	return &AssessmentHandler{
		BaseHandler:       NewBaseHandler(logger),
		assessmentService: assessmentService,
	}
}

// CreateAssessment starts a new administration of a scale template
// @Summary Create assessment
// @Tags assessments
// @Accept json
// @Produce json
// @Param assessment body services.CreateAssessmentRequest true "Assessment data"
// @Success 201 {object} models.Assessment
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /assessments [post]
func (h *AssessmentHandler) CreateAssessment(c *gin.Context) {
	var req services.CreateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	assessment, err := h.assessmentService.Create(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, assessment)
}

// GetAssessment retrieves an assessment by ID
// @Summary Get assessment
// @Tags assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} models.Assessment
// @Failure 404 {object} ErrorResponse
// @Router /assessments/{id} [get]
func (h *AssessmentHandler) GetAssessment(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	assessment, err := h.assessmentService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// ListAssessments retrieves assessments with filters and pagination
// @Summary List assessments
// @Tags assessments
// @Produce json
// @Param patient_id query string false "Filter by patient"
// @Param administrator_id query string false "Filter by administrator"
// @Param template_id query string false "Filter by template"
// @Param status query string false "Filter by lifecycle status"
// @Success 200 {object} services.AssessmentListResponse
// @Router /assessments [get]
func (h *AssessmentHandler) ListAssessments(c *gin.Context) {
	filters := repositories.AssessmentFilters{
		Limit:     parseIntQuery(c, "limit", 20),
		Offset:    parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if templateID := c.Query("template_id"); templateID != "" {
		filters.TemplateID = &templateID
	}
	if patientID := c.Query("patient_id"); patientID != "" {
		filters.PatientID = &patientID
	}
	if administratorID := c.Query("administrator_id"); administratorID != "" {
		filters.AdministratorID = &administratorID
	}
	if status := c.Query("status"); status != "" {
		s := models.AssessmentStatus(status)
		filters.Status = &s
	}

	resp, err := h.assessmentService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SaveResponses applies a batch of item responses to an assessment
// @Summary Save responses
// @Tags assessments
// @Accept json
// @Produce json
// @Param id path string true "Assessment ID"
// @Param responses body services.SaveResponsesRequest true "Response batch"
// @Success 200 {object} models.Assessment
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /assessments/{id}/responses [patch]
func (h *AssessmentHandler) SaveResponses(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.SaveResponsesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	assessment, err := h.assessmentService.SaveResponses(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// UpdateAssessment updates navigation state without touching responses
// @Summary Update assessment
// @Tags assessments
// @Accept json
// @Produce json
// @Param id path string true "Assessment ID"
// @Param assessment body services.UpdateAssessmentRequest true "Update data"
// @Success 200 {object} models.Assessment
// @Router /assessments/{id} [patch]
func (h *AssessmentHandler) UpdateAssessment(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.UpdateAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	assessment, err := h.assessmentService.Update(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// CompleteAssessment merges any final responses, seals the assessment and
// returns it together with the computed results
// @Summary Complete assessment
// @Tags assessments
// @Accept json
// @Produce json
// @Param id path string true "Assessment ID"
// @Param completion body services.CompleteAssessmentRequest true "Completion data"
// @Success 200 {object} services.CompleteAssessmentResponse
// @Failure 409 {object} ErrorResponse
// @Router /assessments/{id}/complete [post]
func (h *AssessmentHandler) CompleteAssessment(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	var req services.CompleteAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	h.LogRequest(c, "Completing assessment", "assessment_id", id)

	resp, err := h.assessmentService.Complete(c.Request.Context(), id, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// CancelAssessment abandons an assessment without scoring
// @Summary Cancel assessment
// @Tags assessments
// @Produce json
// @Param id path string true "Assessment ID"
// @Success 200 {object} models.Assessment
// @Failure 409 {object} ErrorResponse
// @Router /assessments/{id}/cancel [post]
func (h *AssessmentHandler) CancelAssessment(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	assessment, err := h.assessmentService.Cancel(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, assessment)
}

// CalculateScores runs a transient scoring pass without persisting anything
// @Summary Calculate scores
// @Tags scores
// @Accept json
// @Produce json
// @Param request body services.CalculateScoresRequest true "Template and responses"
// @Success 200 {object} services.ScoreResults
// @Failure 400 {object} ErrorResponse
// @Router /scores/calculate [post]
func (h *AssessmentHandler) CalculateScores(c *gin.Context) {
	var req services.CalculateScoresRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	preview, err := h.assessmentService.CalculateScores(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, preview)
}

func (h *AssessmentHandler) handleServiceError(c *gin.Context, err error) {
	// Typed errors carry structured details for the client
	var validationErrors services.ValidationErrors
	if errors.As(err, &validationErrors) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: validationErrors,
		})
		return
	}

	var rejection *services.ResponseRejectionError
	if errors.As(err, &rejection) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "One or more responses are invalid",
			Details: rejection.Rejections,
		})
		return
	}

	var incomplete *services.IncompleteAssessmentError
	if errors.As(err, &incomplete) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Required items are unanswered",
			Details: map[string]interface{}{
				"missing_items": incomplete.MissingItems,
			},
		})
		return
	}

	var transition *services.StateTransitionError
	if errors.As(err, &transition) {
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Lifecycle transition not allowed",
			Details: map[string]interface{}{
				"from": transition.From,
				"to":   transition.To,
			},
		})
		return
	}

	switch {
	case errors.Is(err, services.ErrAssessmentNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Assessment not found",
		})
	case errors.Is(err, services.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Scale template not found",
		})
	case errors.Is(err, services.ErrAssessmentConflict):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Assessment was modified concurrently",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrAssessmentTerminal):
		c.JSON(http.StatusConflict, ErrorResponse{
			Message: "Assessment is in a terminal state",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrModeNotSupported):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Administration mode not supported by template",
			Details: err.Error(),
		})
	case errors.Is(err, services.ErrBadRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: err.Error(),
		})
	default:
		h.LogError(c, err, "Assessment request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}
