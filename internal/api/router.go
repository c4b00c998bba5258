package api

import (
	"net/http"

	"adnews/internal/api/handlers"
	"adnews/internal/api/middleware"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SetupRouter настраивает и возвращает роутер с всеми эндпоинтами
func SetupRouter(
	jobsHandler *handlers.JobsHandler,
	ratesHandler *handlers.RatesHandler,
	logger *logrus.Logger,
	ginMode string,
) *gin.Engine {
	gin.SetMode(ginMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/jobs/feeds/refresh", jobsHandler.RefreshFeeds)
		v1.POST("/jobs/rates/refresh", jobsHandler.RefreshRates)
		v1.GET("/scheduler/status", jobsHandler.Status)

		v1.GET("/rates", ratesHandler.List)
		v1.GET("/rates/:symbol/history", ratesHandler.History)
	}

	return router
}
