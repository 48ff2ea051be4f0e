package models

import (
	"errors"
	"fmt"
)

// Reason classifies a rule violation. Rejections are expected outcomes,
// distinct from storage faults.
type Reason string

const (
	ReasonInvalidTimeRange        Reason = "InvalidTimeRange"
	ReasonPastStartTime           Reason = "PastStartTime"
	ReasonDurationExceeded        Reason = "DurationExceeded"
	ReasonRoomTypeMismatch        Reason = "RoomTypeMismatch"
	ReasonEquipmentMismatch       Reason = "EquipmentMismatch"
	ReasonSoundproofingRequired   Reason = "SoundproofingRequired"
	ReasonQuotaExceeded           Reason = "QuotaExceeded"
	ReasonTimeConflict            Reason = "TimeConflict"
	ReasonApprovalRequired        Reason = "ApprovalRequired"
	ReasonNothingToApprove        Reason = "NothingToApprove"
	ReasonNotFound                Reason = "NotFound"
	ReasonInvalidStatusTransition Reason = "InvalidStatusTransition"
	ReasonDuplicateName           Reason = "DuplicateName"
	ReasonInvalidInput            Reason = "InvalidInput"
)

// RejectionError carries a reason and a human-readable message.
type RejectionError struct {
	Reason  Reason
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return string(e.Reason)
	}
	return e.Message
}

// Is matches any rejection with the same reason, so callers can write
// errors.Is(err, models.ErrTimeConflict).
func (e *RejectionError) Is(target error) bool {
	t, ok := target.(*RejectionError)
	return ok && t.Reason == e.Reason
}

// Reject builds a RejectionError with a formatted message.
func Reject(reason Reason, format string, args ...interface{}) *RejectionError {
	return &RejectionError{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// AsRejection extracts the rejection from err, if any.
func AsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// IsRejection reports whether err is a rule violation rather than a fault.
func IsRejection(err error) bool {
	_, ok := AsRejection(err)
	return ok
}

var (
	ErrInvalidTimeRange        = &RejectionError{Reason: ReasonInvalidTimeRange}
	ErrPastStartTime           = &RejectionError{Reason: ReasonPastStartTime}
	ErrDurationExceeded        = &RejectionError{Reason: ReasonDurationExceeded}
	ErrRoomTypeMismatch        = &RejectionError{Reason: ReasonRoomTypeMismatch}
	ErrEquipmentMismatch       = &RejectionError{Reason: ReasonEquipmentMismatch}
	ErrSoundproofingRequired   = &RejectionError{Reason: ReasonSoundproofingRequired}
	ErrQuotaExceeded           = &RejectionError{Reason: ReasonQuotaExceeded}
	ErrTimeConflict            = &RejectionError{Reason: ReasonTimeConflict}
	ErrApprovalRequired        = &RejectionError{Reason: ReasonApprovalRequired}
	ErrNothingToApprove        = &RejectionError{Reason: ReasonNothingToApprove}
	ErrNotFound                = &RejectionError{Reason: ReasonNotFound}
	ErrInvalidStatusTransition = &RejectionError{Reason: ReasonInvalidStatusTransition}
	ErrDuplicateName           = &RejectionError{Reason: ReasonDuplicateName}
	ErrInvalidInput            = &RejectionError{Reason: ReasonInvalidInput}
)
