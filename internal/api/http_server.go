// Package api exposes the booking core over a small JSON HTTP API.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"practicerooms/internal/models"
	"practicerooms/internal/service"
)

// Bookings is the part of service.BookingService the API serves.
type Bookings interface {
	CreateBooking(ctx context.Context, in service.CreateBookingInput) (*models.Booking, error)
	UpdateBooking(ctx context.Context, b *models.Booking) (bool, error)
	CancelBooking(ctx context.Context, id int64) (bool, error)
	CheckIn(ctx context.Context, id int64) (bool, error)
	Approve(ctx context.Context, id, instructorID int64) (bool, error)
	DeleteBooking(ctx context.Context, id int64) (bool, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListAll(ctx context.Context) ([]models.Booking, error)
	ListByStudent(ctx context.Context, studentID int64) ([]models.Booking, error)
	ListByRoom(ctx context.Context, roomID int64) ([]models.Booking, error)
	HasTimeConflict(ctx context.Context, roomID int64, start, end time.Time, excludeID *int64) (bool, error)
	WeeklyUsage(ctx context.Context, studentID int64) (*service.QuotaUsage, error)
	CheckRoomAvailability(ctx context.Context, roomID int64, start, end time.Time) (*service.RoomAvailability, error)
}

type Catalog interface {
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	ListRooms(ctx context.Context) ([]models.Room, error)
	CreateRoom(ctx context.Context, r *models.Room) error
	UpdateRoom(ctx context.Context, r *models.Room) (bool, error)
	DeleteRoom(ctx context.Context, id int64) (bool, error)
	ListEquipment(ctx context.Context) ([]models.Equipment, error)
	CreateEquipment(ctx context.Context, e *models.Equipment) error
	DeleteEquipment(ctx context.Context, id int64) (bool, error)
	InstallEquipment(ctx context.Context, roomID, equipmentID int64, quantity int) (*models.RoomEquipment, error)
	RemoveEquipment(ctx context.Context, roomID, equipmentID int64) (bool, error)
}

type Registry interface {
	GetStudent(ctx context.Context, id int64) (*models.Student, error)
	ListStudents(ctx context.Context) ([]models.Student, error)
	CreateStudent(ctx context.Context, st *models.Student) error
	UpdateStudent(ctx context.Context, st *models.Student) (bool, error)
	DeleteStudent(ctx context.Context, id int64) (bool, error)
	ListInstructors(ctx context.Context) ([]models.Instructor, error)
	CreateInstructor(ctx context.Context, ins *models.Instructor) error
}

// Options configure authentication and throttling.
type Options struct {
	APIKeys     []string
	RateLimit   float64
	RateBurst   int
	ReadTimeout time.Duration
}

type HTTPServer struct {
	bookings Bookings
	catalog  Catalog
	registry Registry
	apiKeys  map[string]struct{}
	limiter  *clientLimiter
	opts     Options
	logger   zerolog.Logger
	handler  http.Handler
}

func NewHTTPServer(bookings Bookings, catalog Catalog, registry Registry, opts Options, logger zerolog.Logger) *HTTPServer {
	s := &HTTPServer{
		bookings: bookings,
		catalog:  catalog,
		registry: registry,
		apiKeys:  make(map[string]struct{}, len(opts.APIKeys)),
		opts:     opts,
		logger:   logger.With().Str("component", "api").Logger(),
	}
	for _, k := range opts.APIKeys {
		if k != "" {
			s.apiKeys[k] = struct{}{}
		}
	}
	if opts.RateLimit > 0 {
		s.limiter = newClientLimiter(opts.RateLimit, opts.RateBurst)
	}

	mux := http.NewServeMux()
	s.routes(mux)
	s.handler = s.withRequestID(s.withLogging(s.withAuth(s.withRateLimit(mux))))
	return s
}

func (s *HTTPServer) routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/bookings", s.handleCreateBooking)
	mux.HandleFunc("GET /api/bookings", s.handleListBookings)
	mux.HandleFunc("GET /api/bookings/{id}", s.handleGetBooking)
	mux.HandleFunc("PUT /api/bookings/{id}", s.handleUpdateBooking)
	mux.HandleFunc("DELETE /api/bookings/{id}", s.handleDeleteBooking)
	mux.HandleFunc("POST /api/bookings/{id}/cancel", s.handleCancelBooking)
	mux.HandleFunc("POST /api/bookings/{id}/checkin", s.handleCheckIn)
	mux.HandleFunc("POST /api/bookings/{id}/approve", s.handleApprove)

	mux.HandleFunc("GET /api/rooms", s.handleListRooms)
	mux.HandleFunc("POST /api/rooms", s.handleCreateRoom)
	mux.HandleFunc("GET /api/rooms/{id}", s.handleGetRoom)
	mux.HandleFunc("PUT /api/rooms/{id}", s.handleUpdateRoom)
	mux.HandleFunc("DELETE /api/rooms/{id}", s.handleDeleteRoom)
	mux.HandleFunc("GET /api/rooms/{id}/bookings", s.handleRoomBookings)
	mux.HandleFunc("GET /api/rooms/{id}/conflicts", s.handleConflictCheck)
	mux.HandleFunc("GET /api/rooms/{id}/availability", s.handleRoomAvailability)
	mux.HandleFunc("POST /api/rooms/{id}/equipment", s.handleInstallEquipment)
	mux.HandleFunc("DELETE /api/rooms/{id}/equipment/{equipmentID}", s.handleRemoveEquipment)

	mux.HandleFunc("GET /api/equipment", s.handleListEquipment)
	mux.HandleFunc("POST /api/equipment", s.handleCreateEquipment)
	mux.HandleFunc("DELETE /api/equipment/{id}", s.handleDeleteEquipment)

	mux.HandleFunc("GET /api/students", s.handleListStudents)
	mux.HandleFunc("POST /api/students", s.handleCreateStudent)
	mux.HandleFunc("GET /api/students/{id}", s.handleGetStudent)
	mux.HandleFunc("PUT /api/students/{id}", s.handleUpdateStudent)
	mux.HandleFunc("DELETE /api/students/{id}", s.handleDeleteStudent)
	mux.HandleFunc("GET /api/students/{id}/bookings", s.handleStudentBookings)
	mux.HandleFunc("GET /api/students/{id}/usage", s.handleWeeklyUsage)

	mux.HandleFunc("GET /api/instructors", s.handleListInstructors)
	mux.HandleFunc("POST /api/instructors", s.handleCreateInstructor)
}

// Handler returns the routed handler with middleware applied.
func (s *HTTPServer) Handler() http.Handler {
	return s.handler
}

// Start serves on port until ctx is cancelled.
func (s *HTTPServer) Start(ctx context.Context, port int) error {
	readTimeout := s.opts.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 10 * time.Second
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.handler,
		ReadTimeout:       readTimeout,
		ReadHeaderTimeout: readTimeout,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()

	s.logger.Info().Int("port", port).Msg("API server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
