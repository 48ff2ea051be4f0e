package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"practicerooms/internal/models"
)

// EquipmentConfig describes one catalog item that rooms reference by key.
type EquipmentConfig struct {
	Key         string `yaml:"key"`
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// InstalledConfig places a quantity of an equipment item in a room.
type InstalledConfig struct {
	Key      string `yaml:"key"`
	Quantity int    `yaml:"quantity"`
}

type RoomConfig struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Soundproof bool              `yaml:"soundproof"`
	Equipment  []InstalledConfig `yaml:"equipment"`
}

type InstructorConfig struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
}

// RoomsConfig is the root of rooms.yaml.
type RoomsConfig struct {
	Equipment   []EquipmentConfig  `yaml:"equipment"`
	Rooms       []RoomConfig       `yaml:"rooms"`
	Instructors []InstructorConfig `yaml:"instructors"`
}

// LoadRoomsConfig loads and validates the room catalog from YAML.
func LoadRoomsConfig(path string) (*RoomsConfig, error) {
	if path == "" {
		path = "configs/rooms.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rooms config: %w", err)
	}

	var cfg RoomsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse rooms config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate rooms config: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *RoomsConfig) Validate() error {
	if len(c.Rooms) == 0 {
		return fmt.Errorf("no rooms defined")
	}

	keys := make(map[string]bool)
	for i, eq := range c.Equipment {
		if eq.Key == "" {
			return fmt.Errorf("equipment[%d]: key is required", i)
		}
		if keys[eq.Key] {
			return fmt.Errorf("equipment[%d]: duplicate key '%s'", i, eq.Key)
		}
		keys[eq.Key] = true

		if eq.Name == "" {
			return fmt.Errorf("equipment[%d]: name is required", i)
		}
		if !models.EquipmentType(eq.Type).Valid() {
			return fmt.Errorf("equipment[%d]: unknown type '%s'", i, eq.Type)
		}
	}

	names := make(map[string]bool)
	for i, room := range c.Rooms {
		if room.Name == "" {
			return fmt.Errorf("room[%d]: name is required", i)
		}
		lower := strings.ToLower(room.Name)
		if names[lower] {
			return fmt.Errorf("room[%d]: duplicate name '%s'", i, room.Name)
		}
		names[lower] = true

		if !models.RoomType(room.Type).Valid() {
			return fmt.Errorf("room[%d]: unknown type '%s'", i, room.Type)
		}

		for j, inst := range room.Equipment {
			if !keys[inst.Key] {
				return fmt.Errorf("room[%d].equipment[%d]: unknown key '%s'", i, j, inst.Key)
			}
			if inst.Quantity < 0 {
				return fmt.Errorf("room[%d].equipment[%d]: quantity cannot be negative", i, j)
			}
		}
	}

	emails := make(map[string]bool)
	for i, ins := range c.Instructors {
		if ins.Email == "" {
			return fmt.Errorf("instructor[%d]: email is required", i)
		}
		if emails[strings.ToLower(ins.Email)] {
			return fmt.Errorf("instructor[%d]: duplicate email '%s'", i, ins.Email)
		}
		emails[strings.ToLower(ins.Email)] = true
	}

	return nil
}

func (c *RoomsConfig) applyDefaults() {
	for i := range c.Rooms {
		for j := range c.Rooms[i].Equipment {
			if c.Rooms[i].Equipment[j].Quantity == 0 {
				c.Rooms[i].Equipment[j].Quantity = 1
			}
		}
	}
}

// EquipmentByKey returns the equipment entry for key.
func (c *RoomsConfig) EquipmentByKey(key string) *EquipmentConfig {
	for i := range c.Equipment {
		if c.Equipment[i].Key == key {
			return &c.Equipment[i]
		}
	}
	return nil
}

// String returns a summary of the configuration.
func (c *RoomsConfig) String() string {
	soundproof := 0
	for _, r := range c.Rooms {
		if r.Soundproof {
			soundproof++
		}
	}
	return fmt.Sprintf("RoomsConfig: %d rooms (%d soundproof), %d equipment items, %d instructors",
		len(c.Rooms), soundproof, len(c.Equipment), len(c.Instructors))
}
