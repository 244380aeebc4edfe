package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shreed27/AgentHub-sub004/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "agenthub-gateway",
			"jobs":    deps.Scheduler.Stats(),
		})
	})

	gatewayHandler := handler.NewGatewayHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// POST /api/v1/prompts - admit and enqueue a priced request
		v1.POST("/prompts", gatewayHandler.SubmitPrompt)

		// GET /api/v1/pricing - tier table and payment parameters
		v1.GET("/pricing", gatewayHandler.GetPricing)

		jobs := v1.Group("/jobs")
		{
			// GET /api/v1/jobs - list jobs
			jobs.GET("", gatewayHandler.ListJobs)

			// GET /api/v1/jobs/:job_id - poll job state
			jobs.GET("/:job_id", gatewayHandler.GetJob)

			// POST /api/v1/jobs/:job_id/cancel - cancel a live job
			jobs.POST("/:job_id/cancel", gatewayHandler.CancelJob)

			// DELETE /api/v1/jobs/:job_id - remove a terminal job
			jobs.DELETE("/:job_id", gatewayHandler.DeleteJob)
		}
	}

	return r
}
