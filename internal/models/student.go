package models

import "time"

// NoShowsPerPenaltyHour is how many no-shows cost one hour of weekly quota.
const NoShowsPerPenaltyHour = 3

type Student struct {
	ID                int64          `json:"id"`
	FirstName         string         `json:"first_name"`
	LastName          string         `json:"last_name"`
	Email             string         `json:"email"`
	StudentNumber     string         `json:"student_number"`
	Program           StudentProgram `json:"program"`
	PrimaryInstrument Instrument     `json:"primary_instrument"`
	InstructorID      *int64         `json:"instructor_id,omitempty"`
	NoShowCount       int            `json:"no_show_count"`
	QuotaPenaltyHours int            `json:"quota_penalty_hours"`
	TotalLoggedHours  float64        `json:"total_logged_hours"`
	CreatedAt         time.Time      `json:"created_at"`
	ModifiedAt        *time.Time     `json:"modified_at,omitempty"`
	IsDeleted         bool           `json:"-"`
	DeletedAt         *time.Time     `json:"-"`
}

func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

// WeeklyQuotaHours is the program's base allowance before penalties.
func (s *Student) WeeklyQuotaHours() int {
	switch s.Program {
	case ProgramPerformanceMajor:
		return 20
	case ProgramEducationMajor:
		return 10
	case ProgramMinor:
		return 5
	}
	return 0
}

// EffectiveWeeklyQuota = max(0, base - penalty).
func (s *Student) EffectiveWeeklyQuota() int {
	q := s.WeeklyQuotaHours() - s.QuotaPenaltyHours
	if q < 0 {
		return 0
	}
	return q
}

// MandateLoggedHours is the practice total required to graduate.
func (s *Student) MandateLoggedHours() int {
	switch s.Program {
	case ProgramPerformanceMajor:
		return 200
	case ProgramEducationMajor:
		return 150
	case ProgramMinor:
		return 100
	}
	return 0
}

// MandateMet reports whether logged hours reached the graduation requirement.
func (s *Student) MandateMet() bool {
	return s.TotalLoggedHours >= float64(s.MandateLoggedHours())
}

// RecordNoShow applies one no-show and returns true when it cost a penalty hour.
func (s *Student) RecordNoShow() bool {
	s.NoShowCount++
	if s.NoShowCount%NoShowsPerPenaltyHour == 0 {
		s.QuotaPenaltyHours++
		return true
	}
	return false
}

type Instructor struct {
	ID         int64      `json:"id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Email      string     `json:"email"`
	CreatedAt  time.Time  `json:"created_at"`
	ModifiedAt *time.Time `json:"modified_at,omitempty"`
	IsDeleted  bool       `json:"-"`
	DeletedAt  *time.Time `json:"-"`
}

func (i *Instructor) FullName() string {
	return i.FirstName + " " + i.LastName
}
