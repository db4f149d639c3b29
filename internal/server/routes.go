package server

import (
	"github.com/labstack/echo/v4"

	"github.com/OFFIS-RIT/mt2n/internal/server/middleware"
	"github.com/OFFIS-RIT/mt2n/internal/server/routes"
)

func RegisterRoutes(e *echo.Echo) {
	// Health check route
	e.GET("/health", func(c echo.Context) error {
		return c.String(200, "OK")
	})

	apiRoutes := e.Group("/api", middleware.AuthMiddleware)

	apiRoutes.POST("/jobs", routes.CreateJobHandler, middleware.RequirePermission("job.create"))
}
