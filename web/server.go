// ABOUTME: JSON HTTP API over the booking orchestrator using gin
// ABOUTME: Maps booking outcomes and error kinds onto HTTP status codes
package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/harperreed/consult/booking"
	"github.com/harperreed/consult/models"
	"github.com/harperreed/consult/resilience"
)

// Scheduler is the booking surface the API drives.
type Scheduler interface {
	GetAvailableSlots(ctx context.Context, start, end time.Time, duration models.Duration) ([]models.TimeSlot, error)
	CreateBooking(ctx context.Context, req booking.CreateRequest) (booking.Result, error)
	UpdateBooking(ctx context.Context, id uuid.UUID, req booking.UpdateRequest) (booking.Result, error)
	CancelBooking(ctx context.Context, id uuid.UUID) (booking.Result, error)
	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	ListBookings(ctx context.Context, start, end time.Time) ([]*models.Booking, error)
	BreakerStats() []resilience.BreakerStats
}

type Server struct {
	svc      Scheduler
	location *time.Location
	logger   *log.Logger
	engine   *gin.Engine
	now      func() time.Time
}

// NewServer builds the router. Offset-free times in requests are read in loc.
func NewServer(svc Scheduler, loc *time.Location, logger *log.Logger) *Server {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		svc:      svc,
		location: loc,
		logger:   logger.WithPrefix("http"),
		engine:   gin.New(),
		now:      time.Now,
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := s.engine.Group("/api/v1")
	{
		api.GET("/slots", s.listSlots)
		api.POST("/bookings", s.createBooking)
		api.GET("/bookings", s.listBookings)
		api.GET("/bookings/:id", s.getBooking)
		api.PATCH("/bookings/:id", s.updateBooking)
		api.POST("/bookings/:id/cancel", s.cancelBooking)
		api.GET("/health/breakers", s.breakers)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
