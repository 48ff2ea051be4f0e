package models

import "time"

type Room struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Type         RoomType        `json:"type"`
	IsSoundproof bool            `json:"is_soundproof"`
	Equipment    []RoomEquipment `json:"equipment,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ModifiedAt   *time.Time      `json:"modified_at,omitempty"`
	IsDeleted    bool            `json:"-"`
	DeletedAt    *time.Time      `json:"-"`
}

// Capacity is derived from the room type.
func (r *Room) Capacity() int {
	return r.Type.Capacity()
}

// HasEquipment reports whether any live installed item is one of the given types.
func (r *Room) HasEquipment(types ...EquipmentType) bool {
	for _, re := range r.Equipment {
		if re.IsDeleted || re.Equipment == nil || re.Equipment.IsDeleted {
			continue
		}
		for _, t := range types {
			if re.Equipment.Type == t {
				return true
			}
		}
	}
	return false
}

type Equipment struct {
	ID          int64         `json:"id"`
	Name        string        `json:"name"`
	Type        EquipmentType `json:"type"`
	Description string        `json:"description,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	ModifiedAt  *time.Time    `json:"modified_at,omitempty"`
	IsDeleted   bool          `json:"-"`
	DeletedAt   *time.Time    `json:"-"`
}

// RoomEquipment links an equipment item to a room.
type RoomEquipment struct {
	ID          int64      `json:"id"`
	RoomID      int64      `json:"room_id"`
	EquipmentID int64      `json:"equipment_id"`
	Quantity    int        `json:"quantity"`
	Equipment   *Equipment `json:"equipment,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	IsDeleted   bool       `json:"-"`
	DeletedAt   *time.Time `json:"-"`
}
