package catalog

import (
	"context"
	"time"

	"practicerooms/internal/models"
)

// Repository persists rooms and equipment.
type Repository interface {
	CreateRoom(ctx context.Context, r *models.Room) error
	UpdateRoom(ctx context.Context, r *models.Room) error
	SoftDeleteRoom(ctx context.Context, id int64, at time.Time) (bool, error)
	GetRoom(ctx context.Context, id int64) (*models.Room, error)
	GetRoomByName(ctx context.Context, name string) (*models.Room, error)
	RoomNameExists(ctx context.Context, name string, excludeID *int64) (bool, error)
	ListRooms(ctx context.Context) ([]models.Room, error)

	CreateEquipment(ctx context.Context, e *models.Equipment) error
	GetEquipment(ctx context.Context, id int64) (*models.Equipment, error)
	ListEquipment(ctx context.Context) ([]models.Equipment, error)
	SoftDeleteEquipment(ctx context.Context, id int64, at time.Time) (bool, error)
	AttachEquipment(ctx context.Context, roomID, equipmentID int64, quantity int, at time.Time) (*models.RoomEquipment, error)
	DetachEquipment(ctx context.Context, roomID, equipmentID int64, at time.Time) (bool, error)
}
