package service

import (
	"math"
	"strconv"
	"time"
)

// WeekWindow returns the Monday-aligned UTC week [start, end) containing t.
func WeekWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 7)
}

// QuotaUsage summarises a student's booked hours in the current week.
type QuotaUsage struct {
	StudentID      int64     `json:"student_id"`
	WeekStart      time.Time `json:"week_start"`
	WeekEnd        time.Time `json:"week_end"`
	UsedHours      float64   `json:"used_hours"`
	QuotaHours     int       `json:"quota_hours"`
	PenaltyHours   int       `json:"penalty_hours"`
	RemainingHours float64   `json:"remaining_hours"`
}

// formatHours renders hours with at most two decimals, e.g. "4h", "1.5h", "5.83h".
func formatHours(h float64) string {
	return strconv.FormatFloat(math.Round(h*100)/100, 'f', -1, 64) + "h"
}
