// Package router assembles the Gin engine from the initialized App.
package router

import (
	"net/http"
	"time"

	apphttp "healthlens_backend/internal/http"
	"healthlens_backend/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// New builds the HTTP engine: shared middleware, health endpoint, versioned
// route groups, and one RegisterRoutes call per domain module.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(corsMiddleware(app))

	limiter := httpkit.NewIPRateLimiter(10, 30, app.Logger)
	engine.Use(limiter.RateLimit())

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			if err := app.Health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")

	authMiddleware := httpkit.AuthRequired(app.Config)
	protected := v1.Group("")
	protected.Use(authMiddleware)

	admin := v1.Group("/admin")
	admin.Use(authMiddleware, httpkit.RequireRole(httpkit.AdminRole))

	routerCtx := &apphttp.RouterContext{
		Engine:         engine,
		V1:             v1,
		Protected:      protected,
		Admin:          admin,
		Config:         app.Config,
		AuthMiddleware: authMiddleware,
	}

	for _, module := range app.Modules {
		module.RegisterRoutes(routerCtx)
		app.Logger.Info("registered http module", "module", module.Name())
	}

	return engine
}

func corsMiddleware(app *apphttp.App) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: app.Config.GetCORSAllowCreds(),
		MaxAge:           12 * time.Hour,
	}
	if app.Config.GetCORSAllowAll() {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = app.Config.GetCORSOrigins()
	}
	return cors.New(corsCfg)
}
