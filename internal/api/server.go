// Package api exposes the task wizard over HTTP with gin. Handlers are thin:
// they decode the request, run one wizard or picker operation inside the
// session lock and answer with the new state.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"task-wizard/internal/attachment"
	"task-wizard/internal/geocode"
	"task-wizard/internal/mappicker"
	"task-wizard/internal/refdata"
	"task-wizard/internal/session"
	"task-wizard/internal/taskform"
	"task-wizard/internal/wizard"
)

// Deps are the collaborators a Server is built from. Catalog, Sessions,
// Attachments and Resolver are required.
type Deps struct {
	Catalog     *refdata.Catalog
	Sessions    *session.Manager
	Attachments *attachment.Store
	Resolver    geocode.Resolver
	Logger      *slog.Logger
	// Registry receives the HTTP metrics and is served on /metrics. nil
	// disables both.
	Registry *prometheus.Registry
	// Context bounds background address lookups of open pickers.
	Context context.Context
}

// Server holds the HTTP handlers.
type Server struct {
	catalog     *refdata.Catalog
	sessions    *session.Manager
	attachments *attachment.Store
	resolver    geocode.Resolver
	logger      *slog.Logger
	registry    *prometheus.Registry
	metrics     *Metrics
	ctx         context.Context
}

// New creates a server.
func New(d Deps) *Server {
	s := &Server{
		catalog:     d.Catalog,
		sessions:    d.Sessions,
		attachments: d.Attachments,
		resolver:    d.Resolver,
		logger:      d.Logger,
		registry:    d.Registry,
		ctx:         d.Context,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.ctx == nil {
		s.ctx = context.Background()
	}
	if s.registry != nil {
		s.metrics = NewMetrics(s.registry)
	}
	return s
}

// Router builds the gin engine with every route registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(s.metrics.middleware())

	r.GET("/health", s.handleHealth)
	if s.registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api")
	{
		api.GET("/refdata", s.handleRefData)
		api.GET("/refdata/:kind", s.handleRefDataKind)
		api.GET("/previews/:previewID", s.handlePreviewImage)

		wz := api.Group("/wizards")
		{
			wz.POST("", s.handleCreate)
			wz.GET("/:id", s.handleGet)
			wz.DELETE("/:id", s.handleCancel)
			wz.PATCH("/:id", s.handlePatch)

			wz.POST("/:id/next", s.handleNext)
			wz.POST("/:id/back", s.handleBack)
			wz.POST("/:id/jump", s.handleJump)
			wz.POST("/:id/submit", s.handleSubmit)
			wz.POST("/:id/reset", s.handleReset)

			wz.PUT("/:id/pickup/location", s.handlePickupLocation)
			wz.PUT("/:id/pickup/contact", s.handlePickupContact)
			wz.POST("/:id/contacts/select", s.handleSelectContact)

			wz.POST("/:id/dropoffs", s.handleAddDropOff)
			wz.POST("/:id/collapse", s.handleCollapse)
			wz.POST("/:id/dropoffs/:dropID/expand", s.handleExpand)
			wz.PUT("/:id/dropoffs/:dropID/location", s.handleDropOffLocation)
			wz.PUT("/:id/dropoffs/:dropID/contact", s.handleDropOffContact)
			wz.PUT("/:id/dropoffs/:dropID/parcel", s.handleDropOffParcel)
			wz.POST("/:id/dropoffs/:dropID/image", s.handleUploadImage)
			wz.DELETE("/:id/dropoffs/:dropID/image", s.handleRemoveImage)

			wz.GET("/:id/preview/:target", s.handleLocationPreview)
			wz.GET("/:id/picker/:target", s.handlePickerState)
			wz.POST("/:id/picker/:target/open", s.handlePickerOpen)
			wz.POST("/:id/picker/:target/drag", s.handlePickerDrag)
			wz.POST("/:id/picker/:target/click", s.handlePickerClick)
			wz.POST("/:id/picker/:target/search", s.handlePickerSearch)
			wz.POST("/:id/picker/:target/locate", s.handlePickerLocate)
			wz.POST("/:id/picker/:target/resize", s.handlePickerResize)
			wz.POST("/:id/picker/:target/confirm", s.handlePickerConfirm)
			wz.POST("/:id/picker/:target/cancel", s.handlePickerCancel)

			wz.GET("/:id/review", s.handleReview)
			wz.GET("/:id/review.html", s.handleReviewHTML)
		}
	}
	return r
}

// corsMiddleware adds CORS headers for cross-origin requests
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": s.sessions.Count(),
		"previews": s.attachments.Live(),
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

// writeError maps domain errors onto status codes.
func (s *Server) writeError(c *gin.Context, err error) {
	var verr *taskform.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Error(), "fields": verr.Fields})
	case errors.Is(err, session.ErrNotFound),
		errors.Is(err, taskform.ErrDropOffNotFound),
		errors.Is(err, attachment.ErrNotFound),
		errors.Is(err, errNoPicker):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, wizard.ErrSubmitted),
		errors.Is(err, wizard.ErrNotOnConfirmation),
		errors.Is(err, mappicker.ErrClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, errBadRequest),
		errors.Is(err, wizard.ErrInvalidStep),
		errors.Is(err, attachment.ErrNotImage),
		errors.Is(err, attachment.ErrEmpty),
		errors.Is(err, attachment.ErrTooLarge):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
