package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"adnews/internal/api/middleware"
	"adnews/internal/rates"
	"adnews/internal/scheduler"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type JobRunner interface {
	RunNow(ctx context.Context, kind scheduler.JobKind) error
	RunFunc(ctx context.Context, kind scheduler.JobKind, fn scheduler.JobFunc) error
	Status() []scheduler.JobStatus
}

type FeedRefresher interface {
	FetchSelected(ctx context.Context, names []string) error
}

type RateRefresher interface {
	Run(ctx context.Context, mode rates.Mode) error
}

// JobsHandler ручной запуск задач загрузки
type JobsHandler struct {
	jobs   JobRunner
	feeds  FeedRefresher
	rates  RateRefresher
	logger *logrus.Logger
}

func NewJobsHandler(jobs JobRunner, feeds FeedRefresher, rates RateRefresher, logger *logrus.Logger) *JobsHandler {
	return &JobsHandler{
		jobs:   jobs,
		feeds:  feeds,
		rates:  rates,
		logger: logger,
	}
}

type RefreshFeedsRequest struct {
	Sources []string `json:"sources"`
}

// RefreshFeeds ingests the given sources, or every active source when none are given.
func (h *JobsHandler) RefreshFeeds(c *gin.Context) {
	var req RefreshFeedsRequest
	// тело может прийти chunked, без Content-Length
	if c.Request.Body != nil && c.Request.Body != http.NoBody {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
			return
		}
	}

	ctx := runContext(c, scheduler.JobFeeds)

	var err error
	if len(req.Sources) == 0 {
		err = h.jobs.RunNow(ctx, scheduler.JobFeeds)
	} else {
		err = h.jobs.RunFunc(ctx, scheduler.JobFeeds, func(ctx context.Context) error {
			return h.feeds.FetchSelected(ctx, req.Sources)
		})
	}

	h.respond(c, "feeds", err)
}

// RefreshRates forces a rate refresh.
func (h *JobsHandler) RefreshRates(c *gin.Context) {
	err := h.jobs.RunFunc(runContext(c, scheduler.JobRates), scheduler.JobRates, func(ctx context.Context) error {
		return h.rates.Run(ctx, rates.Forced)
	})

	h.respond(c, "rates", err)
}

func (h *JobsHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"jobs":   h.jobs.Status(),
	})
}

func (h *JobsHandler) respond(c *gin.Context, job string, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	case errors.Is(err, scheduler.ErrJobBusy):
		fail(c, http.StatusConflict, "Job is already running")
	default:
		h.logger.WithField("job", job).Errorf("manual run failed: %v", err)
		fail(c, http.StatusInternalServerError, err.Error())
	}
}

// runContext связывает ручной запуск с записью о запросе
func runContext(c *gin.Context, kind scheduler.JobKind) context.Context {
	c.Set(middleware.JobKey, kind.String())
	return scheduler.WithRunID(c.Request.Context(), c.GetString(middleware.RunIDKey))
}

func fail(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"status":  "error",
		"message": message,
	})
}
