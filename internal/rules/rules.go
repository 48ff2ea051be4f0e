// Package rules holds the static booking compatibility tables.
package rules

import (
	"time"

	"practicerooms/internal/models"
)

// DefaultMaxDuration applies to purposes missing from maxDuration.
const DefaultMaxDuration = 2 * time.Hour

var maxDuration = map[models.BookingPurpose]time.Duration{
	models.PurposeRegularPractice:   2 * time.Hour,
	models.PurposeRecitalPrep:       3 * time.Hour,
	models.PurposeEnsembleRehearsal: 4 * time.Hour,
}

var allowedRoomTypes = map[models.BookingPurpose][]models.RoomType{
	models.PurposeRegularPractice:   {models.RoomSmall, models.RoomMedium},
	models.PurposeRecitalPrep:       {models.RoomMedium, models.RoomLarge},
	models.PurposeEnsembleRehearsal: {models.RoomLarge},
}

var requiredEquipment = map[models.Instrument][]models.EquipmentType{
	models.InstrumentPiano:     {models.EquipmentGrandPiano, models.EquipmentUprightPiano},
	models.InstrumentDrums:     {models.EquipmentDrums},
	models.InstrumentViolin:    {models.EquipmentViolin},
	models.InstrumentCello:     {models.EquipmentCello},
	models.InstrumentGuitar:    {models.EquipmentGuitar},
	models.InstrumentTrumpet:   {models.EquipmentTrumpet},
	models.InstrumentSaxophone: {models.EquipmentSaxophone},
	models.InstrumentFlute:     {models.EquipmentFlute},
}

// Recital preparation on piano needs a concert instrument.
var recitalPiano = []models.EquipmentType{models.EquipmentGrandPiano}

var needsSoundproofing = map[models.Instrument]bool{
	models.InstrumentDrums:     true,
	models.InstrumentTrumpet:   true,
	models.InstrumentSaxophone: true,
}

// MaxDuration returns the longest allowed booking for the purpose.
func MaxDuration(p models.BookingPurpose) time.Duration {
	if d, ok := maxDuration[p]; ok {
		return d
	}
	return DefaultMaxDuration
}

// AllowedRoomTypes returns the room types a purpose may use.
func AllowedRoomTypes(p models.BookingPurpose) []models.RoomType {
	return allowedRoomTypes[p]
}

func RoomTypeAllowed(p models.BookingPurpose, t models.RoomType) bool {
	for _, allowed := range allowedRoomTypes[p] {
		if allowed == t {
			return true
		}
	}
	return false
}

// RequiredEquipment lists equipment types of which the room must hold at least one.
// An empty result means the instrument brings no requirement.
func RequiredEquipment(i models.Instrument, p models.BookingPurpose) []models.EquipmentType {
	if i == models.InstrumentPiano && p == models.PurposeRecitalPrep {
		return recitalPiano
	}
	return requiredEquipment[i]
}

func RequiresSoundproofing(i models.Instrument) bool {
	return needsSoundproofing[i]
}

// RequiresApproval reports whether bookings for the purpose need instructor sign-off.
func RequiresApproval(p models.BookingPurpose) bool {
	return p == models.PurposeRecitalPrep
}
