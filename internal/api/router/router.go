package router

import (
	"net/http"

	"github.com/fpt-devteam/csv-processor/internal/api/handler"
	"github.com/gin-gonic/gin"
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
			"service": "csv-api-service",
		})
	})

	csvHandler := handler.NewCSVHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		csv := v1.Group("/csv")
		{
			// POST /api/v1/csv/upload - Upload a CSV file for import
			csv.POST("/upload", csvHandler.UploadCSV)

			// GET /api/v1/csv/files - List uploaded files with record counts
			csv.GET("/files", csvHandler.ListFiles)

			// GET /api/v1/csv/files/:file_name/export - Download one stored file
			csv.GET("/files/:file_name/export", csvHandler.ExportFile)

			// GET /api/v1/csv/files/:file_name/url - Presigned download URL
			csv.GET("/files/:file_name/url", csvHandler.GetFileURL)

			// GET /api/v1/csv/export - Download all stored files as a zip
			csv.GET("/export", csvHandler.ExportAll)

			// GET /api/v1/csv/jobs/:job_id - Import job status
			csv.GET("/jobs/:job_id", csvHandler.GetJob)
		}
	}

	return r
}
