package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"practicerooms/internal/catalog"
	"practicerooms/internal/database"
	"practicerooms/internal/events"
	"practicerooms/internal/lock"
	"practicerooms/internal/models"
	"practicerooms/internal/registry"
	"practicerooms/internal/service"
)

const testKey = "test-key"

var now = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

type fixture struct {
	srv        *HTTPServer
	catalog    *catalog.Service
	registry   *registry.Service
	room       *models.Room
	hall       *models.Room
	student    *models.Student
	instructor *models.Instructor
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "api.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	locker := lock.NewMemoryLocker()
	cat := catalog.NewService(db, logger)
	reg := registry.NewService(db, locker, logger)
	bookings := service.NewBookingService(service.Deps{
		Bookings: db,
		Rooms:    cat,
		Students: reg,
		Locker:   locker,
		Events:   events.NewEventBus(),
		Clock:    func() time.Time { return now },
	}, logger)

	ctx := context.Background()
	f := &fixture{catalog: cat, registry: reg}

	grand := &models.Equipment{Name: "Steinway D", Type: models.EquipmentGrandPiano}
	require.NoError(t, cat.CreateEquipment(ctx, grand))
	f.room = &models.Room{Name: "Room 101", Type: models.RoomSmall}
	require.NoError(t, cat.CreateRoom(ctx, f.room))
	f.hall = &models.Room{Name: "Room 201", Type: models.RoomMedium, IsSoundproof: true}
	require.NoError(t, cat.CreateRoom(ctx, f.hall))
	for _, r := range []*models.Room{f.room, f.hall} {
		_, err := cat.InstallEquipment(ctx, r.ID, grand.ID, 1)
		require.NoError(t, err)
	}

	f.instructor = &models.Instructor{FirstName: "Nadia", LastName: "Boulanger", Email: "nadia@example.edu"}
	require.NoError(t, reg.CreateInstructor(ctx, f.instructor))
	f.student = &models.Student{
		FirstName: "Clara", LastName: "Wieck", Email: "clara@example.edu", StudentNumber: "S-1",
		Program: models.ProgramPerformanceMajor, PrimaryInstrument: models.InstrumentPiano,
	}
	require.NoError(t, reg.CreateStudent(ctx, f.student))

	if opts.APIKeys == nil {
		opts.APIKeys = []string{testKey}
	}
	f.srv = NewHTTPServer(bookings, cat, reg, opts, logger)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("x-api-key", testKey)
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

func slot(startHour, endHour int) (time.Time, time.Time) {
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	return day.Add(time.Duration(startHour) * time.Hour), day.Add(time.Duration(endHour) * time.Hour)
}

func (f *fixture) bookingBody(room *models.Room, startHour, endHour int, purpose models.BookingPurpose) service.CreateBookingInput {
	start, end := slot(startHour, endHour)
	return service.CreateBookingInput{
		StudentID: f.student.ID, RoomID: room.ID, StartTime: start, EndTime: end, Purpose: purpose,
	}
}

func TestAuth(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		name           string
		apiKey         string
		expectedStatus int
	}{
		{"valid key", testKey, http.StatusOK},
		{"wrong key", "nope", http.StatusUnauthorized},
		{"missing key", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/rooms", http.NoBody)
			if tt.apiKey != "" {
				req.Header.Set("x-api-key", tt.apiKey)
			}
			w := httptest.NewRecorder()
			f.srv.Handler().ServeHTTP(w, req)
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t, Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/rooms", http.NoBody)
	req.Header.Set("x-api-key", testKey)
	req.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, Options{RateLimit: 0.001, RateBurst: 2})

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/rooms", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/rooms", nil).Code)
	w := f.do(t, http.MethodGet, "/api/rooms", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestCreateBookingEndpoint(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(t, http.MethodPost, "/api/bookings", f.bookingBody(f.room, 10, 12, models.PurposeRegularPractice))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Booking](t, w)
	assert.NotZero(t, created.ID)
	assert.Equal(t, models.StatusConfirmed, created.Status)

	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedReason string
	}{
		{"overlap", f.bookingBody(f.room, 11, 13, models.PurposeRegularPractice), http.StatusUnprocessableEntity, "TimeConflict"},
		{"too long", f.bookingBody(f.room, 13, 16, models.PurposeRegularPractice), http.StatusUnprocessableEntity, "DurationExceeded"},
		{"wrong room type", f.bookingBody(f.room, 13, 14, models.PurposeEnsembleRehearsal), http.StatusUnprocessableEntity, "RoomTypeMismatch"},
		{"unknown room", service.CreateBookingInput{StudentID: f.student.ID, RoomID: 999, StartTime: created.EndTime, EndTime: created.EndTime.Add(time.Hour), Purpose: models.PurposeRegularPractice}, http.StatusNotFound, "NotFound"},
		{"unknown purpose", f.bookingBody(f.room, 13, 14, "jam"), http.StatusBadRequest, "InvalidInput"},
		{"missing ids", map[string]any{"purpose": "regular_practice"}, http.StatusBadRequest, ""},
		{"unknown field", map[string]any{"student_id": 1, "room_id": 1, "colour": "red"}, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/api/bookings", tt.body)
			assert.Equal(t, tt.expectedStatus, w.Code)
			resp := decode[ErrorResponse](t, w)
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, tt.expectedReason, resp.Reason)
		})
	}
}

func TestBookingLifecycleEndpoints(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(t, http.MethodPost, "/api/bookings", f.bookingBody(f.hall, 10, 13, models.PurposeRecitalPrep))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	b := decode[models.Booking](t, w)
	assert.True(t, b.RequiresApproval)
	path := "/api/bookings/" + itoa(b.ID)

	w = f.do(t, http.MethodPost, path+"/checkin", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "ApprovalRequired", decode[ErrorResponse](t, w).Reason)

	w = f.do(t, http.MethodPost, path+"/approve", ApproveRequest{InstructorID: 999})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, path+"/approve", ApproveRequest{InstructorID: f.instructor.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	approved := decode[models.Booking](t, w)
	assert.True(t, approved.IsApproved)

	w = f.do(t, http.MethodPost, path+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusCancelled, decode[models.Booking](t, w).Status)

	w = f.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[OKResponse](t, w).OK)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, path+"/cancel", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/bookings/abc", nil).Code)
}

func TestUpdateBookingEndpoint(t *testing.T) {
	f := newFixture(t, Options{})

	first := decode[models.Booking](t, f.do(t, http.MethodPost, "/api/bookings", f.bookingBody(f.room, 10, 11, models.PurposeRegularPractice)))
	second := decode[models.Booking](t, f.do(t, http.MethodPost, "/api/bookings", f.bookingBody(f.room, 11, 12, models.PurposeRegularPractice)))

	second.StartTime = first.StartTime
	w := f.do(t, http.MethodPut, "/api/bookings/"+itoa(second.ID), second)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	first.Notes = "etudes"
	w = f.do(t, http.MethodPut, "/api/bookings/"+itoa(first.ID), first)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "etudes", decode[models.Booking](t, w).Notes)

	// first.Version is now stale
	w = f.do(t, http.MethodPut, "/api/bookings/"+itoa(first.ID), first)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListingAndConflictChecks(t *testing.T) {
	f := newFixture(t, Options{})
	require.Equal(t, http.StatusCreated,
		f.do(t, http.MethodPost, "/api/bookings", f.bookingBody(f.room, 10, 12, models.PurposeRegularPractice)).Code)

	type list struct {
		Bookings []models.Booking `json:"bookings"`
	}
	assert.Len(t, decode[list](t, f.do(t, http.MethodGet, "/api/bookings", nil)).Bookings, 1)
	assert.Len(t, decode[list](t, f.do(t, http.MethodGet, "/api/bookings?room_id="+itoa(f.hall.ID), nil)).Bookings, 0)
	assert.Len(t, decode[list](t, f.do(t, http.MethodGet, "/api/rooms/"+itoa(f.room.ID)+"/bookings", nil)).Bookings, 1)
	assert.Len(t, decode[list](t, f.do(t, http.MethodGet, "/api/students/"+itoa(f.student.ID)+"/bookings", nil)).Bookings, 1)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/bookings?student_id=x", nil).Code)

	tests := []struct {
		name     string
		query    string
		status   int
		conflict bool
	}{
		{"overlap", "?start=2026-03-10T11:00:00Z&end=2026-03-10T13:00:00Z", http.StatusOK, true},
		{"adjacent", "?start=2026-03-10T12:00:00Z&end=2026-03-10T13:00:00Z", http.StatusOK, false},
		{"missing end", "?start=2026-03-10T12:00:00Z", http.StatusBadRequest, false},
		{"bad start", "?start=tomorrow&end=2026-03-10T13:00:00Z", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodGet, "/api/rooms/"+itoa(f.room.ID)+"/conflicts"+tt.query, nil)
			require.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.Equal(t, tt.conflict, decode[ConflictResponse](t, w).Conflict)
			}
		})
	}

	w := f.do(t, http.MethodGet, "/api/students/"+itoa(f.student.ID)+"/usage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	usage := decode[service.QuotaUsage](t, w)
	assert.Equal(t, 2.0, usage.UsedHours)
	assert.Equal(t, 20, usage.QuotaHours)

	w = f.do(t, http.MethodGet, "/api/rooms/"+itoa(f.room.ID)+"/availability?start=2026-03-10T11:00:00Z&end=2026-03-10T13:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	avail := decode[service.RoomAvailability](t, w)
	assert.False(t, avail.Bookable)
	assert.Equal(t, 1, avail.ApprovedBookings)
}

func TestCatalogAndRegistryEndpoints(t *testing.T) {
	f := newFixture(t, Options{})

	w := f.do(t, http.MethodPost, "/api/rooms", RoomRequest{Name: "Room 301", Type: models.RoomLarge, IsSoundproof: true})
	require.Equal(t, http.StatusCreated, w.Code)
	room := decode[models.Room](t, w)

	w = f.do(t, http.MethodPost, "/api/rooms", RoomRequest{Name: "room 301", Type: models.RoomLarge})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "DuplicateName", decode[ErrorResponse](t, w).Reason)

	w = f.do(t, http.MethodPost, "/api/equipment", EquipmentRequest{Name: "Kit", Type: models.EquipmentDrums})
	require.Equal(t, http.StatusCreated, w.Code)
	kit := decode[models.Equipment](t, w)

	w = f.do(t, http.MethodPost, "/api/rooms/"+itoa(room.ID)+"/equipment", InstallRequest{EquipmentID: kit.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, decode[models.RoomEquipment](t, w).Quantity)

	w = f.do(t, http.MethodGet, "/api/rooms/"+itoa(room.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.Room](t, w)
	assert.True(t, got.HasEquipment(models.EquipmentDrums))

	w = f.do(t, http.MethodDelete, "/api/rooms/"+itoa(room.ID)+"/equipment/"+itoa(kit.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(t, http.MethodDelete, "/api/rooms/"+itoa(room.ID)+"/equipment/"+itoa(kit.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, http.MethodPost, "/api/students", StudentRequest{
		FirstName: "Fanny", LastName: "Mendelssohn", Email: "fanny@example.edu", StudentNumber: "S-2",
		Program: models.ProgramMinor, PrimaryInstrument: models.InstrumentVoice, InstructorID: &f.instructor.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	st := decode[models.Student](t, w)
	assert.Equal(t, 5, st.EffectiveWeeklyQuota())

	w = f.do(t, http.MethodPost, "/api/students", StudentRequest{
		FirstName: "Fanny", LastName: "Hensel", Email: "bad", StudentNumber: "S-3",
		Program: models.ProgramMinor, PrimaryInstrument: models.InstrumentVoice,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPut, "/api/students/"+itoa(st.ID), StudentRequest{
		FirstName: "Fanny", LastName: "Hensel", Email: "fanny@example.edu", StudentNumber: "S-2",
		Program: models.ProgramEducationMajor, PrimaryInstrument: models.InstrumentVoice,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Hensel", decode[models.Student](t, w).LastName)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/api/students/"+itoa(st.ID), nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/students/"+itoa(st.ID), nil).Code)

	type instructors struct {
		Instructors []models.Instructor `json:"instructors"`
	}
	assert.Len(t, decode[instructors](t, f.do(t, http.MethodGet, "/api/instructors", nil)).Instructors, 1)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
