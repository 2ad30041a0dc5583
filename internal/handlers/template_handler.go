package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/scale-assessment-service/internal/repositories"
	"github.com/clinicore/scale-assessment-service/internal/services"
	"github.com/clinicore/scale-assessment-service/internal/utils"
)

type TemplateHandler struct {
	BaseHandler
	templateService services.TemplateService
}

func NewTemplateHandler(templateService services.TemplateService, logger utils.Logger) *TemplateHandler {
	return &TemplateHandler{
		BaseHandler:     NewBaseHandler(logger),
		templateService: templateService,
	}
}

// ListTemplates retrieves template catalog entries with filters and pagination
// @Summary List templates
// @Tags templates
// @Produce json
// @Param category query string false "Filter by category"
// @Param featured query bool false "Only featured templates"
// @Param limit query int false "Page size"
// @Param offset query int false "Page offset"
// @Success 200 {object} services.TemplateListResponse
// @Router /templates [get]
func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	filters := repositories.TemplateFilters{
		Limit:     parseIntQuery(c, "limit", 20),
		Offset:    parseIntQuery(c, "offset", 0),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if category := c.Query("category"); category != "" {
		filters.Category = &category
	}
	if c.Query("featured") == "true" {
		filters.FeaturedOnly = true
	}

	resp, err := h.templateService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// SearchTemplates searches the catalog by name, abbreviation or category
// @Summary Search templates
// @Tags templates
// @Produce json
// @Param q query string true "Search query"
// @Param limit query int false "Maximum results"
// @Success 200 {array} models.TemplateMetadata
// @Router /templates/search [get]
func (h *TemplateHandler) SearchTemplates(c *gin.Context) {
	query := c.Query("q")
	limit := parseIntQuery(c, "limit", 20)

	results, err := h.templateService.Search(c.Request.Context(), query, limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

// ListCategories returns catalog categories with template counts
// @Summary List template categories
// @Tags templates
// @Produce json
// @Success 200 {array} repositories.CategoryCount
// @Router /templates/categories [get]
func (h *TemplateHandler) ListCategories(c *gin.Context) {
	categories, err := h.templateService.ListCategories(c.Request.Context())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, categories)
}

// GetTemplate retrieves a full template definition by ID
// @Summary Get template
// @Tags templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} models.ScaleTemplate
// @Failure 404 {object} ErrorResponse
// @Router /templates/{id} [get]
func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	template, err := h.templateService.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, template)
}

// GetTemplateMetadata retrieves the catalog projection of a template
// @Summary Get template metadata
// @Tags templates
// @Produce json
// @Param id path string true "Template ID"
// @Success 200 {object} models.TemplateMetadata
// @Failure 404 {object} ErrorResponse
// @Router /templates/{id}/metadata [get]
func (h *TemplateHandler) GetTemplateMetadata(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	metadata, err := h.templateService.GetMetadata(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, metadata)
}

func (h *TemplateHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTemplateNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Scale template not found",
		})
	case errors.Is(err, services.ErrBadRequest):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: err.Error(),
		})
	default:
		h.LogError(c, err, "Template request failed")
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Message: "Internal server error",
		})
	}
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
