package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// RunIDKey хранит id запроса, он же run_id ручного запуска задачи
	RunIDKey = "run_id"
	// JobKey выставляется обработчиком, если запрос запустил задачу
	JobKey = "job"

	RequestIDHeader = "X-Request-ID"
)

// Logger пишет по строке на запрос, с задачей и run_id для ручных запусков
func Logger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RunIDKey, id)
		c.Header(RequestIDHeader, id)

		c.Next()

		status := c.Writer.Status()

		fields := logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    status,
			"duration":  time.Since(start).String(),
			"client_ip": c.ClientIP(),
			"run_id":    id,
		}
		if job := c.GetString(JobKey); job != "" {
			fields["job"] = job
		}

		entry := logger.WithFields(fields)

		switch {
		case len(c.Errors) > 0:
			entry.Error(c.Errors.String())
		case status >= 500:
			entry.Error("request failed")
		case status == 409:
			entry.Warn("job is busy")
		case status >= 400:
			entry.Warn("bad request")
		default:
			entry.Info("request completed")
		}
	}
}
