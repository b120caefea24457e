// Package query serves the analytics read API and event tracking over HTTP.
package query

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/analytics"
	"github.com/Wuchinator/learning-analytics/internal/event"
	"github.com/Wuchinator/learning-analytics/internal/store"
	"github.com/Wuchinator/learning-analytics/internal/timerange"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Analytics is the compute surface the handlers read from.
type Analytics interface {
	GetOverview(ctx context.Context, period string) (*analytics.Overview, error)
	GetUserAnalytics(ctx context.Context, period string) (*analytics.UserAnalytics, error)
	GetEngagementMetrics(ctx context.Context, period string) (*analytics.EngagementMetrics, error)
	GetCourseMetrics(ctx context.Context, period string) (*analytics.CourseMetrics, error)
	GetQuizMetrics(ctx context.Context, period string) (*analytics.QuizMetrics, error)
	GetLearningPath(ctx context.Context, user string) (*analytics.LearningPath, error)
	Export(ctx context.Context, period, format string) (*analytics.Export, error)
}

// Tracker ingests events posted to the HTTP API.
type Tracker interface {
	Track(ctx context.Context, eventType string, eventData map[string]any) (*event.Event, error)
	HealthCheck(ctx context.Context) (bool, map[string]string)
}

type Handler struct {
	analytics Analytics
	tracker   Tracker
	timeout   time.Duration
	logger    *zap.Logger
}

func NewHandler(a Analytics, tracker Tracker, timeout time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		analytics: a,
		tracker:   tracker,
		timeout:   timeout,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")
	v1.POST("/events", h.TrackEvent)

	a := v1.Group("/analytics")
	a.GET("/overview", h.Overview)
	a.GET("/users", h.Users)
	a.GET("/engagement", h.Engagement)
	a.GET("/courses", h.Courses)
	a.GET("/quizzes", h.Quizzes)
	a.GET("/learning-path/:user", h.LearningPath)
	a.GET("/export", h.Export)
}

func (h *Handler) Health(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	healthy, deps := h.tracker.HealthCheck(ctx)
	if !healthy {
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Data:    HealthResult{Status: "degraded", Dependencies: deps},
			Error:   "dependency check failed",
		})
		return
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    HealthResult{Status: "ok", Dependencies: deps},
	})
}

func (h *Handler) TrackEvent(c *gin.Context) {
	var body TrackEventBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, Response{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	ctx, cancel := h.context(c)
	defer cancel()

	ev, err := h.tracker.Track(ctx, body.EventType, body.EventData)
	if err != nil {
		h.fail(c, "track_event", err)
		return
	}

	c.JSON(http.StatusCreated, Response{
		Success: true,
		Data:    TrackEventResult{EventID: ev.ID, Date: ev.Date},
	})
}

func (h *Handler) Overview(c *gin.Context) {
	h.serve(c, "overview", func(ctx context.Context, period string) (any, error) {
		return h.analytics.GetOverview(ctx, period)
	})
}

func (h *Handler) Users(c *gin.Context) {
	h.serve(c, "users", func(ctx context.Context, period string) (any, error) {
		return h.analytics.GetUserAnalytics(ctx, period)
	})
}

func (h *Handler) Engagement(c *gin.Context) {
	h.serve(c, "engagement", func(ctx context.Context, period string) (any, error) {
		return h.analytics.GetEngagementMetrics(ctx, period)
	})
}

func (h *Handler) Courses(c *gin.Context) {
	h.serve(c, "courses", func(ctx context.Context, period string) (any, error) {
		return h.analytics.GetCourseMetrics(ctx, period)
	})
}

func (h *Handler) Quizzes(c *gin.Context) {
	h.serve(c, "quizzes", func(ctx context.Context, period string) (any, error) {
		return h.analytics.GetQuizMetrics(ctx, period)
	})
}

func (h *Handler) LearningPath(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	path, err := h.analytics.GetLearningPath(ctx, c.Param("user"))
	if err != nil {
		h.fail(c, "learning_path", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: path})
}

func (h *Handler) Export(c *gin.Context) {
	ctx, cancel := h.context(c)
	defer cancel()

	period := c.DefaultQuery("period", timerange.DefaultPeriod)
	format := c.DefaultQuery("format", analytics.FormatJSON)

	export, err := h.analytics.Export(ctx, period, format)
	if err != nil {
		h.fail(c, "export", err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	c.Data(http.StatusOK, export.ContentType, export.Data)
}

func (h *Handler) serve(c *gin.Context, operation string, compute func(ctx context.Context, period string) (any, error)) {
	ctx, cancel := h.context(c)
	defer cancel()

	period := c.DefaultQuery("period", timerange.DefaultPeriod)
	result, err := compute(ctx, period)
	if err != nil {
		h.fail(c, operation, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: result})
}

func (h *Handler) context(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

func (h *Handler) fail(c *gin.Context, operation string, err error) {
	code := statusCode(err)

	fields := []zap.Field{
		zap.String("operation", operation),
		zap.String("request_id", RequestID(c)),
		zap.Int("status_code", code),
		zap.Error(err),
	}
	if code >= http.StatusInternalServerError {
		h.logger.Error("Analytics request failed", fields...)
	} else {
		h.logger.Warn("Analytics request rejected", fields...)
	}

	message := err.Error()
	if code >= http.StatusInternalServerError {
		message = "analytics temporarily unavailable: " + message
	}
	c.JSON(code, Response{Error: message})
}

func statusCode(err error) int {
	switch {
	case errors.Is(err, event.ErrInvalidEventType),
		errors.Is(err, event.ErrInvalidEventData),
		errors.Is(err, analytics.ErrUnsupportedFormat),
		errors.Is(err, analytics.ErrEmptyUser):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
