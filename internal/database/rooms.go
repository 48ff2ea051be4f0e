package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"practicerooms/internal/models"
)

const roomColumns = `id, name, type, is_soundproof, created_at, modified_at, is_deleted, deleted_at`

func scanRoom(row rowScanner) (*models.Room, error) {
	var (
		r                   models.Room
		roomType, created   string
		modified, deletedAt sql.NullString
	)
	err := row.Scan(&r.ID, &r.Name, &roomType, &r.IsSoundproof, &created, &modified, &r.IsDeleted, &deletedAt)
	if err != nil {
		return nil, err
	}
	r.Type = models.RoomType(roomType)
	if r.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if r.ModifiedAt, err = parseNullTime(modified); err != nil {
		return nil, err
	}
	if r.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *DB) CreateRoom(ctx context.Context, r *models.Room) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO rooms (name, type, is_soundproof, created_at) VALUES (?, ?, ?, ?)`,
		r.Name, string(r.Type), r.IsSoundproof, formatTime(r.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("room %q: %w", r.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	r.ID, err = res.LastInsertId()
	return err
}

func (db *DB) UpdateRoom(ctx context.Context, r *models.Room) error {
	res, err := db.ExecContext(ctx,
		`UPDATE rooms SET name = ?, type = ?, is_soundproof = ?, modified_at = ? WHERE id = ? AND is_deleted = 0`,
		r.Name, string(r.Type), r.IsSoundproof, formatTimePtr(r.ModifiedAt), r.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("room %q: %w", r.Name, ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("update room %d: %w", r.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) SoftDeleteRoom(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE rooms SET is_deleted = 1, deleted_at = ? WHERE id = ? AND is_deleted = 0`, formatTime(at), id)
	if err != nil {
		return false, fmt.Errorf("delete room %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetRoom returns a live room with its live equipment links loaded.
func (db *DB) GetRoom(ctx context.Context, id int64) (*models.Room, error) {
	r, err := scanRoom(db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = ? AND is_deleted = 0`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %d: %w", id, err)
	}
	if r.Equipment, err = db.ListRoomEquipment(ctx, id); err != nil {
		return nil, err
	}
	return r, nil
}

// GetRoomByName matches case-insensitively.
func (db *DB) GetRoomByName(ctx context.Context, name string) (*models.Room, error) {
	r, err := scanRoom(db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE name = ? COLLATE NOCASE AND is_deleted = 0`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room %q: %w", name, err)
	}
	if r.Equipment, err = db.ListRoomEquipment(ctx, r.ID); err != nil {
		return nil, err
	}
	return r, nil
}

// RoomNameExists checks live rooms for name, ignoring case. excludeID skips a room being renamed.
func (db *DB) RoomNameExists(ctx context.Context, name string, excludeID *int64) (bool, error) {
	query := `SELECT COUNT(*) FROM rooms WHERE name = ? COLLATE NOCASE AND is_deleted = 0`
	args := []interface{}{name}
	if excludeID != nil {
		query += ` AND id != ?`
		args = append(args, *excludeID)
	}
	var count int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("room name exists: %w", err)
	}
	return count > 0, nil
}

func (db *DB) ListRooms(ctx context.Context) ([]models.Room, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE is_deleted = 0 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	var rooms []models.Room
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		rooms = append(rooms, *r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range rooms {
		if rooms[i].Equipment, err = db.ListRoomEquipment(ctx, rooms[i].ID); err != nil {
			return nil, err
		}
	}
	return rooms, nil
}

const equipmentColumns = `id, name, type, description, created_at, modified_at, is_deleted, deleted_at`

func scanEquipment(row rowScanner) (*models.Equipment, error) {
	var (
		e                   models.Equipment
		eqType, created     string
		modified, deletedAt sql.NullString
	)
	err := row.Scan(&e.ID, &e.Name, &eqType, &e.Description, &created, &modified, &e.IsDeleted, &deletedAt)
	if err != nil {
		return nil, err
	}
	e.Type = models.EquipmentType(eqType)
	if e.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if e.ModifiedAt, err = parseNullTime(modified); err != nil {
		return nil, err
	}
	if e.DeletedAt, err = parseNullTime(deletedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (db *DB) CreateEquipment(ctx context.Context, e *models.Equipment) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO equipment (name, type, description, created_at) VALUES (?, ?, ?, ?)`,
		e.Name, string(e.Type), e.Description, formatTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert equipment: %w", err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

func (db *DB) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	e, err := scanEquipment(db.QueryRowContext(ctx,
		`SELECT `+equipmentColumns+` FROM equipment WHERE id = ? AND is_deleted = 0`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get equipment %d: %w", id, err)
	}
	return e, nil
}

func (db *DB) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+equipmentColumns+` FROM equipment WHERE is_deleted = 0 ORDER BY type, name, id`)
	if err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	defer rows.Close()

	var items []models.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *e)
	}
	return items, rows.Err()
}

func (db *DB) SoftDeleteEquipment(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE equipment SET is_deleted = 1, deleted_at = ? WHERE id = ? AND is_deleted = 0`, formatTime(at), id)
	if err != nil {
		return false, fmt.Errorf("delete equipment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ListRoomEquipment returns live links whose equipment is also live.
func (db *DB) ListRoomEquipment(ctx context.Context, roomID int64) ([]models.RoomEquipment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT re.id, re.room_id, re.equipment_id, re.quantity, re.created_at,
			e.id, e.name, e.type, e.description, e.created_at, e.modified_at, e.is_deleted, e.deleted_at
		FROM room_equipment re
		JOIN equipment e ON e.id = re.equipment_id
		WHERE re.room_id = ? AND re.is_deleted = 0 AND e.is_deleted = 0
		ORDER BY re.id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list equipment for room %d: %w", roomID, err)
	}
	defer rows.Close()

	var links []models.RoomEquipment
	for rows.Next() {
		var (
			re                  models.RoomEquipment
			e                   models.Equipment
			linkCreated         string
			eqType, eqCreated   string
			modified, deletedAt sql.NullString
		)
		if err := rows.Scan(&re.ID, &re.RoomID, &re.EquipmentID, &re.Quantity, &linkCreated,
			&e.ID, &e.Name, &eqType, &e.Description, &eqCreated, &modified, &e.IsDeleted, &deletedAt); err != nil {
			return nil, err
		}
		e.Type = models.EquipmentType(eqType)
		if re.CreatedAt, err = parseTime(linkCreated); err != nil {
			return nil, err
		}
		if e.CreatedAt, err = parseTime(eqCreated); err != nil {
			return nil, err
		}
		if e.ModifiedAt, err = parseNullTime(modified); err != nil {
			return nil, err
		}
		re.Equipment = &e
		links = append(links, re)
	}
	return links, rows.Err()
}

// AttachEquipment links equipment to a room, adding to the quantity of an existing live link.
func (db *DB) AttachEquipment(ctx context.Context, roomID, equipmentID int64, quantity int, at time.Time) (*models.RoomEquipment, error) {
	link := &models.RoomEquipment{RoomID: roomID, EquipmentID: equipmentID, CreatedAt: at}
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var id int64
		var current int
		err := tx.QueryRowContext(ctx,
			`SELECT id, quantity FROM room_equipment WHERE room_id = ? AND equipment_id = ? AND is_deleted = 0`,
			roomID, equipmentID).Scan(&id, &current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				`INSERT INTO room_equipment (room_id, equipment_id, quantity, created_at) VALUES (?, ?, ?, ?)`,
				roomID, equipmentID, quantity, formatTime(at))
			if err != nil {
				return fmt.Errorf("attach equipment: %w", err)
			}
			link.ID, err = res.LastInsertId()
			link.Quantity = quantity
			return err
		case err != nil:
			return fmt.Errorf("find room equipment: %w", err)
		}

		link.ID = id
		link.Quantity = current + quantity
		_, err = tx.ExecContext(ctx, `UPDATE room_equipment SET quantity = ? WHERE id = ?`, link.Quantity, id)
		if err != nil {
			return fmt.Errorf("update room equipment %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

// DetachEquipment soft-deletes the live link between room and equipment.
func (db *DB) DetachEquipment(ctx context.Context, roomID, equipmentID int64, at time.Time) (bool, error) {
	res, err := db.ExecContext(ctx,
		`UPDATE room_equipment SET is_deleted = 1, deleted_at = ? WHERE room_id = ? AND equipment_id = ? AND is_deleted = 0`,
		formatTime(at), roomID, equipmentID)
	if err != nil {
		return false, fmt.Errorf("detach equipment: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
