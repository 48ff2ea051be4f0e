package api

import (
	"context"
	"net/http"
	"strconv"

	"practicerooms/internal/metrics"
	"practicerooms/internal/models"
	"practicerooms/internal/service"
)

// ApproveRequest is the body of POST /api/bookings/{id}/approve.
type ApproveRequest struct {
	InstructorID int64 `json:"instructor_id"`
}

// ConflictResponse answers the conflict check.
type ConflictResponse struct {
	RoomID   int64 `json:"room_id"`
	Conflict bool  `json:"conflict"`
}

// handleCreateBooking runs the full gate chain.
// POST /api/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_booking")

	var req service.CreateBookingInput
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.StudentID <= 0 || req.RoomID <= 0 {
		writeError(w, http.StatusBadRequest, "student_id and room_id are required")
		return
	}

	b, err := s.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

// handleListBookings lists every booking, or one student's or room's when filtered.
// GET /api/bookings?student_id=&room_id=
func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_bookings")

	var (
		list []models.Booking
		err  error
	)
	q := r.URL.Query()
	switch {
	case q.Get("student_id") != "":
		id, perr := strconv.ParseInt(q.Get("student_id"), 10, 64)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid student_id")
			return
		}
		list, err = s.bookings.ListByStudent(r.Context(), id)
	case q.Get("room_id") != "":
		id, perr := strconv.ParseInt(q.Get("room_id"), 10, 64)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid room_id")
			return
		}
		list, err = s.bookings.ListByRoom(r.Context(), id)
	default:
		list, err = s.bookings.ListAll(r.Context())
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(list)})
}

// GET /api/bookings/{id}
func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_booking")
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// handleUpdateBooking replaces the mutable fields of a booking. The version
// field guards against lost updates.
// PUT /api/bookings/{id}
func (s *HTTPServer) handleUpdateBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_booking")
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var b models.Booking
	if err := decodeJSON(r, &b); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b.ID = id

	ok, err := s.bookings.UpdateBooking(r.Context(), &b)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}
	writeJSON(w, http.StatusOK, &b)
}

// DELETE /api/bookings/{id}
func (s *HTTPServer) handleDeleteBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_booking")
	s.transition(w, r, s.bookings.DeleteBooking)
}

// POST /api/bookings/{id}/cancel
func (s *HTTPServer) handleCancelBooking(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("cancel_booking")
	s.transition(w, r, s.bookings.CancelBooking)
}

// POST /api/bookings/{id}/checkin
func (s *HTTPServer) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("check_in")
	s.transition(w, r, s.bookings.CheckIn)
}

// POST /api/bookings/{id}/approve
func (s *HTTPServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("approve_booking")

	var req ApproveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.InstructorID <= 0 {
		writeError(w, http.StatusBadRequest, "instructor_id is required")
		return
	}
	s.transition(w, r, func(ctx context.Context, id int64) (bool, error) {
		return s.bookings.Approve(ctx, id, req.InstructorID)
	})
}

// transition runs a (bool, error) operation on the booking named in the path
// and replies with the booking's new state.
func (s *HTTPServer) transition(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id int64) (bool, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := op(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "booking not found")
		return
	}

	b, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if b == nil {
		// deleted
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GET /api/students/{id}/bookings
func (s *HTTPServer) handleStudentBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("student_bookings")
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.bookings.ListByStudent(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(list)})
}

// GET /api/rooms/{id}/bookings
func (s *HTTPServer) handleRoomBookings(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("room_bookings")
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	list, err := s.bookings.ListByRoom(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": nonNil(list)})
}

// handleConflictCheck reports whether an interval is free without booking it.
// GET /api/rooms/{id}/conflicts?start=&end=&exclude=
func (s *HTTPServer) handleConflictCheck(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("conflict_check")
	roomID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, end, err := queryInterval(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var exclude *int64
	if raw := r.URL.Query().Get("exclude"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid exclude")
			return
		}
		exclude = &id
	}

	conflict, err := s.bookings.HasTimeConflict(r.Context(), roomID, start, end, exclude)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ConflictResponse{RoomID: roomID, Conflict: conflict})
}

// GET /api/rooms/{id}/availability?start=&end=
func (s *HTTPServer) handleRoomAvailability(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("room_availability")
	roomID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, end, err := queryInterval(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	avail, err := s.bookings.CheckRoomAvailability(r.Context(), roomID, start, end)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, avail)
}

// GET /api/students/{id}/usage
func (s *HTTPServer) handleWeeklyUsage(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("weekly_usage")
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	usage, err := s.bookings.WeeklyUsage(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
