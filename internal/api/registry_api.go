package api

import (
	"net/http"

	"practicerooms/internal/metrics"
	"practicerooms/internal/models"
)

// StudentRequest carries the editable profile of a student. Penalty counters
// and logged hours are maintained by the booking core only.
type StudentRequest struct {
	FirstName         string                `json:"first_name"`
	LastName          string                `json:"last_name"`
	Email             string                `json:"email"`
	StudentNumber     string                `json:"student_number"`
	Program           models.StudentProgram `json:"program"`
	PrimaryInstrument models.Instrument     `json:"primary_instrument"`
	InstructorID      *int64                `json:"instructor_id,omitempty"`
}

func (req StudentRequest) student(id int64) *models.Student {
	return &models.Student{
		ID:                id,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		StudentNumber:     req.StudentNumber,
		Program:           req.Program,
		PrimaryInstrument: req.PrimaryInstrument,
		InstructorID:      req.InstructorID,
	}
}

type InstructorRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// GET /api/students
func (s *HTTPServer) handleListStudents(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_students")
	list, err := s.registry.ListStudents(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"students": nonNil(list)})
}

// POST /api/students
func (s *HTTPServer) handleCreateStudent(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_student")
	var req StudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st := req.student(0)
	if err := s.registry.CreateStudent(r.Context(), st); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// GET /api/students/{id}
func (s *HTTPServer) handleGetStudent(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_student")
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := s.registry.GetStudent(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PUT /api/students/{id}
func (s *HTTPServer) handleUpdateStudent(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_student")
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req StudentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.registry.UpdateStudent(r.Context(), req.student(id))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}

	st, err := s.registry.GetStudent(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// DELETE /api/students/{id}
func (s *HTTPServer) handleDeleteStudent(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_student")
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.registry.DeleteStudent(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "student not found")
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// GET /api/instructors
func (s *HTTPServer) handleListInstructors(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_instructors")
	list, err := s.registry.ListInstructors(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"instructors": nonNil(list)})
}

// POST /api/instructors
func (s *HTTPServer) handleCreateInstructor(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_instructor")
	var req InstructorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ins := &models.Instructor{FirstName: req.FirstName, LastName: req.LastName, Email: req.Email}
	if err := s.registry.CreateInstructor(r.Context(), ins); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ins)
}
