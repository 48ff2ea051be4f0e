// Package catalog manages practice rooms and the equipment installed in them.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"practicerooms/internal/database"
	"practicerooms/internal/models"
)

// Service is the Room Catalog.
type Service struct {
	repo   Repository
	logger zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger.With().Str("component", "catalog").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetRoom returns the live room with its live equipment, or nil if it does not exist.
func (s *Service) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	room, err := s.repo.GetRoom(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return room, err
}

func (s *Service) GetRoomByName(ctx context.Context, name string) (*models.Room, error) {
	room, err := s.repo.GetRoomByName(ctx, strings.TrimSpace(name))
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return room, err
}

func (s *Service) ListRooms(ctx context.Context) ([]models.Room, error) {
	return s.repo.ListRooms(ctx)
}

func validateRoom(r *models.Room) error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return models.Reject(models.ReasonInvalidInput, "room name is required")
	}
	if !r.Type.Valid() {
		return models.Reject(models.ReasonInvalidInput, "unknown room type %q", r.Type)
	}
	return nil
}

// CreateRoom adds a room. Names are unique ignoring case.
func (s *Service) CreateRoom(ctx context.Context, r *models.Room) error {
	if err := validateRoom(r); err != nil {
		return err
	}
	exists, err := s.repo.RoomNameExists(ctx, r.Name, nil)
	if err != nil {
		return fmt.Errorf("checking room name: %w", err)
	}
	if exists {
		return models.Reject(models.ReasonDuplicateName, "a room named %q already exists", r.Name)
	}

	r.CreatedAt = s.now()
	if err := s.repo.CreateRoom(ctx, r); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return models.Reject(models.ReasonDuplicateName, "a room named %q already exists", r.Name)
		}
		return err
	}

	s.logger.Info().Int64("room_id", r.ID).Str("name", r.Name).Str("type", string(r.Type)).Msg("room created")
	return nil
}

// UpdateRoom renames or reclassifies a room. It returns false if the room does not exist.
func (s *Service) UpdateRoom(ctx context.Context, r *models.Room) (bool, error) {
	if err := validateRoom(r); err != nil {
		return false, err
	}
	exists, err := s.repo.RoomNameExists(ctx, r.Name, &r.ID)
	if err != nil {
		return false, fmt.Errorf("checking room name: %w", err)
	}
	if exists {
		return false, models.Reject(models.ReasonDuplicateName, "a room named %q already exists", r.Name)
	}

	now := s.now()
	r.ModifiedAt = &now
	err = s.repo.UpdateRoom(ctx, r)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return false, nil
	case errors.Is(err, database.ErrDuplicate):
		return false, models.Reject(models.ReasonDuplicateName, "a room named %q already exists", r.Name)
	case err != nil:
		return false, err
	}

	s.logger.Info().Int64("room_id", r.ID).Str("name", r.Name).Msg("room updated")
	return true, nil
}

// DeleteRoom soft-deletes the room. Existing bookings keep referencing it.
func (s *Service) DeleteRoom(ctx context.Context, id int64) (bool, error) {
	ok, err := s.repo.SoftDeleteRoom(ctx, id, s.now())
	if err != nil {
		return false, err
	}
	if ok {
		s.logger.Info().Int64("room_id", id).Msg("room deleted")
	}
	return ok, nil
}

func (s *Service) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	return s.repo.ListEquipment(ctx)
}

func (s *Service) CreateEquipment(ctx context.Context, e *models.Equipment) error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return models.Reject(models.ReasonInvalidInput, "equipment name is required")
	}
	if !e.Type.Valid() {
		return models.Reject(models.ReasonInvalidInput, "unknown equipment type %q", e.Type)
	}
	e.CreatedAt = s.now()
	if err := s.repo.CreateEquipment(ctx, e); err != nil {
		return err
	}
	s.logger.Info().Int64("equipment_id", e.ID).Str("type", string(e.Type)).Msg("equipment created")
	return nil
}

func (s *Service) DeleteEquipment(ctx context.Context, id int64) (bool, error) {
	return s.repo.SoftDeleteEquipment(ctx, id, s.now())
}

// InstallEquipment places quantity items in the room.
func (s *Service) InstallEquipment(ctx context.Context, roomID, equipmentID int64, quantity int) (*models.RoomEquipment, error) {
	if quantity <= 0 {
		return nil, models.Reject(models.ReasonInvalidInput, "quantity must be positive")
	}
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, models.Reject(models.ReasonNotFound, "room %d not found", roomID)
		}
		return nil, err
	}
	if _, err := s.repo.GetEquipment(ctx, equipmentID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, models.Reject(models.ReasonNotFound, "equipment %d not found", equipmentID)
		}
		return nil, err
	}

	link, err := s.repo.AttachEquipment(ctx, roomID, equipmentID, quantity, s.now())
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("room_id", roomID).Int64("equipment_id", equipmentID).Int("quantity", link.Quantity).Msg("equipment installed")
	return link, nil
}

func (s *Service) RemoveEquipment(ctx context.Context, roomID, equipmentID int64) (bool, error) {
	return s.repo.DetachEquipment(ctx, roomID, equipmentID, s.now())
}
