package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"practicerooms/internal/config"
)

// SyncRoomsFromConfig applies rooms.yaml to the database in one transaction.
// Equipment is matched by name, rooms by case-insensitive name, instructors by email.
// Equipment links of configured rooms are aligned with the file; rooms that are
// not in the file are left untouched.
func (db *DB) SyncRoomsFromConfig(ctx context.Context, cfg *config.RoomsConfig, now time.Time) error {
	if cfg == nil {
		return fmt.Errorf("rooms config is nil")
	}
	ts := formatTime(now)

	return db.withTx(ctx, func(tx *sql.Tx) error {
		equipmentIDs := make(map[string]int64, len(cfg.Equipment))
		for _, eq := range cfg.Equipment {
			id, err := upsertByLookup(ctx, tx,
				`SELECT id FROM equipment WHERE name = ? AND is_deleted = 0`, []interface{}{eq.Name},
				`UPDATE equipment SET type = ?, description = ?, modified_at = ? WHERE id = ?`,
				[]interface{}{eq.Type, eq.Description, ts},
				`INSERT INTO equipment (name, type, description, created_at) VALUES (?, ?, ?, ?)`,
				[]interface{}{eq.Name, eq.Type, eq.Description, ts},
			)
			if err != nil {
				return fmt.Errorf("sync equipment %s: %w", eq.Key, err)
			}
			equipmentIDs[eq.Key] = id
		}

		for _, room := range cfg.Rooms {
			roomID, err := upsertByLookup(ctx, tx,
				`SELECT id FROM rooms WHERE name = ? COLLATE NOCASE AND is_deleted = 0`, []interface{}{room.Name},
				`UPDATE rooms SET name = ?, type = ?, is_soundproof = ?, modified_at = ? WHERE id = ?`,
				[]interface{}{room.Name, room.Type, room.Soundproof, ts},
				`INSERT INTO rooms (name, type, is_soundproof, created_at) VALUES (?, ?, ?, ?)`,
				[]interface{}{room.Name, room.Type, room.Soundproof, ts},
			)
			if err != nil {
				return fmt.Errorf("sync room %s: %w", room.Name, err)
			}
			if err := syncRoomEquipment(ctx, tx, roomID, room.Equipment, equipmentIDs, ts); err != nil {
				return fmt.Errorf("sync room %s equipment: %w", room.Name, err)
			}
		}

		for _, ins := range cfg.Instructors {
			_, err := upsertByLookup(ctx, tx,
				`SELECT id FROM instructors WHERE email = ? COLLATE NOCASE AND is_deleted = 0`, []interface{}{ins.Email},
				`UPDATE instructors SET first_name = ?, last_name = ?, modified_at = ? WHERE id = ?`,
				[]interface{}{ins.FirstName, ins.LastName, ts},
				`INSERT INTO instructors (first_name, last_name, email, created_at) VALUES (?, ?, ?, ?)`,
				[]interface{}{ins.FirstName, ins.LastName, ins.Email, ts},
			)
			if err != nil {
				return fmt.Errorf("sync instructor %s: %w", ins.Email, err)
			}
		}
		return nil
	})
}

// upsertByLookup updates the row found by lookup (its id appended to updateArgs)
// or inserts a new one, returning the row id.
func upsertByLookup(
	ctx context.Context,
	tx *sql.Tx,
	lookup string, lookupArgs []interface{},
	update string, updateArgs []interface{},
	insert string, insertArgs []interface{},
) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, lookup, lookupArgs...).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx, insert, insertArgs...)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	case err != nil:
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, update, append(updateArgs, id)...); err != nil {
		return 0, err
	}
	return id, nil
}

func syncRoomEquipment(
	ctx context.Context,
	tx *sql.Tx,
	roomID int64,
	installed []config.InstalledConfig,
	equipmentIDs map[string]int64,
	ts string,
) error {
	want := make(map[int64]int, len(installed))
	for _, inst := range installed {
		want[equipmentIDs[inst.Key]] += inst.Quantity
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, equipment_id FROM room_equipment WHERE room_id = ? AND is_deleted = 0`, roomID)
	if err != nil {
		return err
	}
	existing := make(map[int64]int64)
	for rows.Next() {
		var linkID, equipmentID int64
		if err := rows.Scan(&linkID, &equipmentID); err != nil {
			rows.Close()
			return err
		}
		existing[equipmentID] = linkID
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for equipmentID, linkID := range existing {
		qty, ok := want[equipmentID]
		if !ok || qty <= 0 {
			if _, err := tx.ExecContext(ctx,
				`UPDATE room_equipment SET is_deleted = 1, deleted_at = ? WHERE id = ?`, ts, linkID); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE room_equipment SET quantity = ? WHERE id = ?`, qty, linkID); err != nil {
			return err
		}
	}

	for equipmentID, qty := range want {
		if _, ok := existing[equipmentID]; ok || qty <= 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO room_equipment (room_id, equipment_id, quantity, created_at) VALUES (?, ?, ?, ?)`,
			roomID, equipmentID, qty, ts); err != nil {
			return err
		}
	}
	return nil
}
