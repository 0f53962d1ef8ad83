package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/vidfetch/vidfetch/internal/api/controllers"
	"github.com/vidfetch/vidfetch/internal/app"
	"github.com/vidfetch/vidfetch/internal/engine"
)

func RegisterRoutes(e *echo.Echo, appCtx *app.Context, mgr *engine.Manager) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			appCtx.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	ctrl := &controllers.TasksController{App: appCtx, Manager: mgr}

	g := e.Group("/api")
	g.POST("/tasks", ctrl.Create)
	g.GET("/tasks", ctrl.List)
	g.GET("/tasks/active", ctrl.ListActive)
	g.POST("/tasks/sweep", ctrl.Sweep)
	g.GET("/tasks/:id", ctrl.Get)
	g.POST("/tasks/:id/start", ctrl.Start)
	g.POST("/tasks/:id/cancel", ctrl.Cancel)
	g.DELETE("/tasks/:id", ctrl.Delete)
	g.GET("/tasks/:id/events", ctrl.Stream)

	g.GET("/history", ctrl.History)
}
