package service

import (
	"strings"
	"time"

	"practicerooms/internal/models"
	"practicerooms/internal/rules"
)

// checkTiming covers the gates that need no storage: start in the future,
// a non-empty interval and the purpose's duration cap.
func checkTiming(now, start, end time.Time, purpose models.BookingPurpose) error {
	if !start.After(now) {
		return models.Reject(models.ReasonPastStartTime,
			"start time %s is not in the future", start.Format(time.RFC3339))
	}
	if !end.After(start) {
		return models.Reject(models.ReasonInvalidTimeRange,
			"end time %s must be after start time %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if limit := rules.MaxDuration(purpose); end.Sub(start) > limit {
		return models.Reject(models.ReasonDurationExceeded,
			"%s booking of %s exceeds the %s maximum",
			purpose, formatHours(end.Sub(start).Hours()), formatHours(limit.Hours()))
	}
	return nil
}

func checkRoomType(room *models.Room, purpose models.BookingPurpose) error {
	if rules.RoomTypeAllowed(purpose, room.Type) {
		return nil
	}
	allowed := rules.AllowedRoomTypes(purpose)
	names := make([]string, 0, len(allowed))
	for _, t := range allowed {
		names = append(names, string(t))
	}
	return models.Reject(models.ReasonRoomTypeMismatch,
		"%s needs a room of type %s, room %q is %s",
		purpose, strings.Join(names, " or "), room.Name, room.Type)
}

func checkEquipment(room *models.Room, student *models.Student, purpose models.BookingPurpose) error {
	required := rules.RequiredEquipment(student.PrimaryInstrument, purpose)
	if len(required) == 0 || room.HasEquipment(required...) {
		return nil
	}
	names := make([]string, 0, len(required))
	for _, t := range required {
		names = append(names, string(t))
	}
	return models.Reject(models.ReasonEquipmentMismatch,
		"room %q has no %s for %s practice",
		room.Name, strings.Join(names, " or "), student.PrimaryInstrument)
}

func checkSoundproofing(room *models.Room, student *models.Student) error {
	if !rules.RequiresSoundproofing(student.PrimaryInstrument) || room.IsSoundproof {
		return nil
	}
	return models.Reject(models.ReasonSoundproofingRequired,
		"%s practice requires a soundproof room, room %q is not soundproof",
		student.PrimaryInstrument, room.Name)
}

// checkQuota compares durations, not float hours, so a total landing exactly
// on the allowance is accepted.
func checkQuota(student *models.Student, used, requested time.Duration) error {
	quota := student.EffectiveWeeklyQuota()
	total := used + requested
	if total <= time.Duration(quota)*time.Hour {
		return nil
	}
	return models.Reject(models.ReasonQuotaExceeded,
		"weekly quota exceeded: %s booked + %s requested = %s, allowance is %s",
		formatHours(used.Hours()), formatHours(requested.Hours()), formatHours(total.Hours()), formatHours(float64(quota)))
}
