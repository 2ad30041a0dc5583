package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clinicore/scale-assessment-service/internal/services"
	"github.com/clinicore/scale-assessment-service/internal/utils"
)

type HandlerManager struct {
	templateHandler   *TemplateHandler
	assessmentHandler *AssessmentHandler
}

func NewHandlerManager(
	templateService services.TemplateService,
	assessmentService services.AssessmentService,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		templateHandler:   NewTemplateHandler(templateService, logger),
		assessmentHandler: NewAssessmentHandler(assessmentService, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", HealthCheck)

	v1 := router.Group("/api/v1")
	{
		templates := v1.Group("/templates")
		{
			templates.GET("", hm.templateHandler.ListTemplates)
			templates.GET("/search", hm.templateHandler.SearchTemplates)
			templates.GET("/categories", hm.templateHandler.ListCategories)
			templates.GET("/:id", hm.templateHandler.GetTemplate)
			templates.GET("/:id/metadata", hm.templateHandler.GetTemplateMetadata)
		}

		assessments := v1.Group("/assessments")
		{
			assessments.POST("", hm.assessmentHandler.CreateAssessment)
			assessments.GET("", hm.assessmentHandler.ListAssessments)
			assessments.GET("/:id", hm.assessmentHandler.GetAssessment)
			assessments.PATCH("/:id", hm.assessmentHandler.UpdateAssessment)
			assessments.PATCH("/:id/responses", hm.assessmentHandler.SaveResponses)
			assessments.POST("/:id/complete", hm.assessmentHandler.CompleteAssessment)
			assessments.POST("/:id/cancel", hm.assessmentHandler.CancelAssessment)
		}

		scores := v1.Group("/scores")
		{
			scores.POST("/calculate", hm.assessmentHandler.CalculateScores)
		}
	}
}

// HealthCheck reports service liveness
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "scale-assessment-service",
	})
}
