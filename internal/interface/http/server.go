// Package http implements the JSON API of the records service on fiber.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/campus-records/records-core/internal/application/command"
	"github.com/campus-records/records-core/internal/application/query"
	"github.com/campus-records/records-core/internal/domain/recordstore"
	"github.com/campus-records/records-core/internal/domain/shared"
	"github.com/campus-records/records-core/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// SERVER CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config contains HTTP server configuration.
type Config struct {
	// Host - address to bind (default: "0.0.0.0").
	Host string

	// Port - port to listen on (default: 8080).
	Port int

	// ReadTimeout - maximum duration for reading the entire request.
	ReadTimeout time.Duration

	// WriteTimeout - maximum duration for writing the response.
	WriteTimeout time.Duration

	// IdleTimeout - maximum duration for idle connections.
	IdleTimeout time.Duration

	// BodyLimit - maximum request body size in bytes.
	BodyLimit int
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
		BodyLimit:    4 << 20,
	}
}

// Address returns the server address string.
func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ══════════════════════════════════════════════════════════════════════════════
// DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Dependencies contains all dependencies required by HTTP handlers.
type Dependencies struct {
	// Command Handlers (CQRS Write Side)
	RecordAttendance       *command.RecordAttendanceHandler
	RecordAttendanceBatch  *command.RecordAttendanceBatchHandler
	RecordAssessmentBatch  *command.RecordAssessmentBatchHandler
	CorrectMarks           *command.CorrectMarksHandler
	RecordTransactionBatch *command.RecordTransactionBatchHandler
	UpdatePaymentStatus    *command.UpdatePaymentStatusHandler

	// Query Handlers (CQRS Read Side)
	AttendancePercentage *query.AttendancePercentageHandler
	ListAttendance       *query.ListAttendanceHandler
	Roster               *query.RosterHandler
	GPA                  *query.GPAHandler
	ListAssessments      *query.ListAssessmentsHandler
	Balance              *query.BalanceHandler
	PendingTransactions  *query.PendingTransactionsHandler

	// Logger
	Logger *slog.Logger

	// Health Check Dependencies
	HealthChecker HealthChecker
}

// NewDependencies wires every handler to one record store. cache may be nil.
func NewDependencies(
	store recordstore.Store,
	publisher shared.EventPublisher,
	cache query.AggregateCache,
	log *slog.Logger,
	cfg command.Config,
) Dependencies {
	return Dependencies{
		RecordAttendance:       command.NewRecordAttendanceHandler(store, publisher, log, cfg),
		RecordAttendanceBatch:  command.NewRecordAttendanceBatchHandler(store, publisher, log, cfg),
		RecordAssessmentBatch:  command.NewRecordAssessmentBatchHandler(store, publisher, log, cfg),
		CorrectMarks:           command.NewCorrectMarksHandler(store, publisher, log, cfg),
		RecordTransactionBatch: command.NewRecordTransactionBatchHandler(store, publisher, log, cfg),
		UpdatePaymentStatus:    command.NewUpdatePaymentStatusHandler(store, publisher, log, cfg),

		AttendancePercentage: query.NewAttendancePercentageHandler(store.Attendance(), cache),
		ListAttendance:       query.NewListAttendanceHandler(store.Attendance()),
		Roster:               query.NewRosterHandler(store.Attendance()),
		GPA:                  query.NewGPAHandler(store.Assessments(), cache),
		ListAssessments:      query.NewListAssessmentsHandler(store.Assessments()),
		Balance:              query.NewBalanceHandler(store.Transactions(), cache),
		PendingTransactions:  query.NewPendingTransactionsHandler(store.Transactions()),

		Logger: log,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER
// ══════════════════════════════════════════════════════════════════════════════

// Server represents the HTTP server.
type Server struct {
	config Config
	deps   Dependencies
	app    *fiber.App
	logger *slog.Logger

	// Server state
	mu        sync.RWMutex
	running   bool
	startedAt time.Time
}

// NewServer creates a new HTTP server with the given configuration and dependencies.
func NewServer(config Config, deps Dependencies) *Server {
	s := &Server{
		config: config,
		deps:   deps,
		logger: deps.Logger,
	}
	if s.logger == nil {
		s.logger = logger.Discard()
	}
	s.logger = s.logger.With(logger.Component("http"))

	s.app = fiber.New(fiber.Config{
		AppName:               "recordsd",
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		IdleTimeout:           config.IdleTimeout,
		BodyLimit:             config.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(s.requestIDMiddleware)
	s.app.Use(s.loggingMiddleware)
	s.app.Use(recover.New())

	s.setupRoutes()
	return s
}

// App returns the fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// ══════════════════════════════════════════════════════════════════════════════
// ROUTING
// ══════════════════════════════════════════════════════════════════════════════

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// ─────────────────────────────────────────────────────────────────────────
	// Health & Status Endpoints
	// ─────────────────────────────────────────────────────────────────────────
	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/live", s.handleLive)

	v1 := s.app.Group("/api/v1")

	// ─────────────────────────────────────────────────────────────────────────
	// Writes
	// ─────────────────────────────────────────────────────────────────────────
	v1.Put("/attendance", s.handleRecordAttendance)
	v1.Post("/attendance/batch", s.handleRecordAttendanceBatch)
	v1.Post("/assessments/batch", s.handleRecordAssessmentBatch)
	v1.Patch("/assessments/marks", s.handleCorrectMarks)
	v1.Post("/transactions/batch", s.handleRecordTransactionBatch)
	v1.Patch("/students/:student_id/transactions/:reference/status", s.handleUpdatePaymentStatus)

	// ─────────────────────────────────────────────────────────────────────────
	// Reads
	// ─────────────────────────────────────────────────────────────────────────
	v1.Get("/attendance/roster", s.handleRoster)
	v1.Get("/students/:student_id/courses/:course_id/attendance", s.handleListAttendance)
	v1.Get("/students/:student_id/courses/:course_id/attendance/percentage", s.handleAttendancePercentage)
	v1.Get("/students/:student_id/assessments", s.handleListAssessments)
	v1.Get("/students/:student_id/gpa", s.handleGPA)
	v1.Get("/students/:student_id/transactions/pending", s.handlePendingTransactions)
	v1.Get("/students/:student_id/balance", s.handleBalance)
}

// ══════════════════════════════════════════════════════════════════════════════
// MIDDLEWARE
// ══════════════════════════════════════════════════════════════════════════════

// requestIDMiddleware adds a unique request ID to each request and a
// request-scoped logger to its context.
func (s *Server) requestIDMiddleware(c *fiber.Ctx) error {
	requestID := c.Get(fiber.HeaderXRequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, requestID)
	c.Locals(logger.RequestIDKey, requestID)

	ctx := logger.WithContext(c.UserContext(), logger.WithRequestID(s.logger, requestID))
	c.SetUserContext(ctx)
	return c.Next()
}

// loggingMiddleware logs all HTTP requests. Errors are logged with the status
// the error handler will answer with.
func (s *Server) loggingMiddleware(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()

	status := c.Response().StatusCode()
	if err != nil {
		status, _ = statusFor(err)
	}

	attrs := []any{
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		logger.Status(status),
		logger.Latency(time.Since(start)),
		slog.String("ip", c.IP()),
	}
	if err != nil {
		attrs = append(attrs, logger.Err(err))
	}

	log := logger.FromContext(c.UserContext())
	switch {
	case status >= fiber.StatusInternalServerError:
		log.Error("http request", attrs...)
	case status >= fiber.StatusBadRequest:
		log.Warn("http request", attrs...)
	default:
		log.Info("http request", attrs...)
	}
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// SERVER LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", slog.String("address", s.config.Address()))

	if err := s.app.Listen(s.config.Address()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil {
			errCh <- err
		}
		close(errCh)
	}()
	return errCh
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.Info("shutting down HTTP server")
	return s.app.ShutdownWithContext(ctx)
}

// IsRunning returns true if the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Uptime returns the server uptime.
func (s *Server) Uptime() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.running {
		return 0
	}
	return time.Since(s.startedAt)
}
