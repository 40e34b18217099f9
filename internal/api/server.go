// Package api exposes the study over HTTP
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrcode/bioclear/internal/decay"
	"github.com/mrcode/bioclear/internal/estimator"
	"github.com/mrcode/bioclear/internal/logger"
	"github.com/mrcode/bioclear/internal/models"
	"github.com/mrcode/bioclear/internal/study"
)

// Config holds listener settings
type Config struct {
	Addr string
}

// Server is the HTTP presentation boundary around a study service
type Server struct {
	cfg      Config
	svc      *study.Service
	drugs    *models.DrugTable
	settings SettingsStore // Optional
	alerts   Alerts        // Optional
	log      *logger.Logger
	router   *gin.Engine
	srv      *http.Server
}

// NewServer builds the router and an http.Server listening on cfg.Addr
func NewServer(cfg Config, svc *study.Service, drugs *models.DrugTable, log *logger.Logger) *Server {
	if drugs == nil {
		drugs = models.DefaultDrugTable()
	}
	if log == nil {
		log = logger.NewNop()
	}

	s := &Server{
		cfg:   cfg,
		svc:   svc,
		drugs: drugs,
		log:   log.With("component", "api"),
	}
	s.router = s.routes()
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.log))

	router.GET("/healthz", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/drugs", s.handleDrugs)

	patients := router.Group("/patients")
	patients.GET("", s.handleListPatients)
	patients.POST("", s.handleAddPatient)
	patients.DELETE("", s.handleClearPatients)
	patients.GET("/export.csv", s.handleExportCSV)
	patients.GET("/:index", s.handleGetPatient)

	router.GET("/curves", s.handleCurves)
	router.GET("/clearance", s.handleClearance)
	router.GET("/chart.png", s.handleChart)
	router.GET("/summary", s.handleSummary)

	d := router.Group("/decay")
	d.POST("/curve", s.handleDecayCurve)
	d.POST("/threshold", s.handleDecayThreshold)

	router.GET("/settings", s.handleGetSettings)
	router.PUT("/settings", s.handleUpdateSettings)

	n := router.Group("/notifications")
	n.POST("/test", s.handleTestNotification)
	n.DELETE("/alerts", s.handleResetAlerts)

	return router
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until Shutdown is called
func (s *Server) ListenAndServe() error {
	s.log.Info("Starting server", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("Request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, estimator.ErrEstimatorUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, decay.ErrInvalidHalfLife):
		return http.StatusUnprocessableEntity
	case errors.Is(err, decay.ErrThresholdUnreachable):
		return http.StatusConflict
	case errors.Is(err, estimator.ErrUnknownDrug),
		errors.Is(err, models.ErrInvalidProfile),
		errors.Is(err, study.ErrInvalidRequest),
		errors.Is(err, decay.ErrInvalidDose),
		errors.Is(err, decay.ErrInvalidSampleCount):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
