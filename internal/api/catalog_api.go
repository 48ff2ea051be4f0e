package api

import (
	"net/http"

	"practicerooms/internal/metrics"
	"practicerooms/internal/models"
)

// RoomRequest is the body of POST /api/rooms and PUT /api/rooms/{id}.
type RoomRequest struct {
	Name         string          `json:"name"`
	Type         models.RoomType `json:"type"`
	IsSoundproof bool            `json:"is_soundproof"`
}

type EquipmentRequest struct {
	Name        string               `json:"name"`
	Type        models.EquipmentType `json:"type"`
	Description string               `json:"description,omitempty"`
}

type InstallRequest struct {
	EquipmentID int64 `json:"equipment_id"`
	Quantity    int   `json:"quantity"`
}

// GET /api/rooms
func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_rooms")
	rooms, err := s.catalog.ListRooms(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": nonNil(rooms)})
}

// POST /api/rooms
func (s *HTTPServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_room")
	var req RoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	room := &models.Room{Name: req.Name, Type: req.Type, IsSoundproof: req.IsSoundproof}
	if err := s.catalog.CreateRoom(r.Context(), room); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// GET /api/rooms/{id}
func (s *HTTPServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("get_room")
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	room, err := s.catalog.GetRoom(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if room == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// PUT /api/rooms/{id}
func (s *HTTPServer) handleUpdateRoom(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("update_room")
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req RoomRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	room := &models.Room{ID: id, Name: req.Name, Type: req.Type, IsSoundproof: req.IsSoundproof}
	ok, err := s.catalog.UpdateRoom(r.Context(), room)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// DELETE /api/rooms/{id}
func (s *HTTPServer) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_room")
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.catalog.DeleteRoom(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// POST /api/rooms/{id}/equipment
func (s *HTTPServer) handleInstallEquipment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("install_equipment")
	roomID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req InstallRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	link, err := s.catalog.InstallEquipment(r.Context(), roomID, req.EquipmentID, req.Quantity)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// DELETE /api/rooms/{id}/equipment/{equipmentID}
func (s *HTTPServer) handleRemoveEquipment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("remove_equipment")
	roomID, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	equipmentID, err := pathID(r, "equipmentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.catalog.RemoveEquipment(r.Context(), roomID, equipmentID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "equipment is not installed in this room")
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}

// GET /api/equipment
func (s *HTTPServer) handleListEquipment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("list_equipment")
	list, err := s.catalog.ListEquipment(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"equipment": nonNil(list)})
}

// POST /api/equipment
func (s *HTTPServer) handleCreateEquipment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("create_equipment")
	var req EquipmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	eq := &models.Equipment{Name: req.Name, Type: req.Type, Description: req.Description}
	if err := s.catalog.CreateEquipment(r.Context(), eq); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, eq)
}

// DELETE /api/equipment/{id}
func (s *HTTPServer) handleDeleteEquipment(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("delete_equipment")
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := s.catalog.DeleteEquipment(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "equipment not found")
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: true})
}
