package app

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	mw "github.com/prosodia/prosodia-backend/internal/http/middleware"
	"github.com/prosodia/prosodia-backend/internal/platform/logger"
)

func wireRouter(log *logger.Logger, handlerset Handlers, middlewareset Middleware) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(mw.CORS())
	router.Use(mw.RequestLogger(log))
	router.Use(otelgin.Middleware("prosodia-backend"))

	router.GET("/healthcheck", handlerset.Health.HealthCheck)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/exercises", handlerset.Exercise.List)
		v1.GET("/exercises/grouped", handlerset.Exercise.ListGrouped)
		v1.GET("/exercises/:exercise_id", handlerset.Exercise.Get)
		v1.GET("/exercises/:exercise_id/details", handlerset.Exercise.GetDetails)
		v1.GET("/exercises/:exercise_id/features", handlerset.Exercise.GetFeatures)
		v1.GET("/exercises/:exercise_id/features/comparison", handlerset.Exercise.GetComparisonFeatures)
		v1.GET("/statistics", handlerset.Exercise.Statistics)

		authed := v1.Group("")
		authed.Use(middlewareset.Auth.RequireAuth())
		{
			authed.GET("/progress", handlerset.Progress.ListMine)
			authed.POST("/exercises/:exercise_id/attempts", handlerset.Progress.RecordAttempt)

			authed.PUT("/exercises", handlerset.Exercise.Save)
			authed.DELETE("/exercises/:exercise_id", handlerset.Exercise.SoftDelete)
			authed.POST("/exercises/:exercise_id/features", handlerset.Exercise.SaveFeatures)
			authed.POST("/exercises/:exercise_id/features/invalidate", handlerset.Exercise.Invalidate)
			authed.POST("/admin/reconcile", handlerset.Exercise.Reconcile)
		}
	}

	return router
}
