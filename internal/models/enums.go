package models

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
	StatusCompleted BookingStatus = "completed"
	StatusNoShow    BookingStatus = "no_show"
)

// IsTerminal reports whether the status can no longer return to confirmed.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted || s == StatusNoShow
}

func (s BookingStatus) Valid() bool {
	switch s {
	case StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// BookingPurpose drives duration caps, room types and approval.
type BookingPurpose string

const (
	PurposeRegularPractice   BookingPurpose = "regular_practice"
	PurposeRecitalPrep       BookingPurpose = "recital_prep"
	PurposeEnsembleRehearsal BookingPurpose = "ensemble_rehearsal"
)

func (p BookingPurpose) Valid() bool {
	switch p {
	case PurposeRegularPractice, PurposeRecitalPrep, PurposeEnsembleRehearsal:
		return true
	}
	return false
}

// StudentProgram determines base weekly quota and graduation mandate.
type StudentProgram string

const (
	ProgramPerformanceMajor StudentProgram = "performance_major"
	ProgramEducationMajor   StudentProgram = "education_major"
	ProgramMinor            StudentProgram = "minor"
)

func (p StudentProgram) Valid() bool {
	switch p {
	case ProgramPerformanceMajor, ProgramEducationMajor, ProgramMinor:
		return true
	}
	return false
}

type Instrument string

const (
	InstrumentPiano     Instrument = "piano"
	InstrumentViolin    Instrument = "violin"
	InstrumentCello     Instrument = "cello"
	InstrumentGuitar    Instrument = "guitar"
	InstrumentDrums     Instrument = "drums"
	InstrumentTrumpet   Instrument = "trumpet"
	InstrumentSaxophone Instrument = "saxophone"
	InstrumentFlute     Instrument = "flute"
	InstrumentVoice     Instrument = "voice"
	InstrumentOther     Instrument = "other"
)

func (i Instrument) Valid() bool {
	switch i {
	case InstrumentPiano, InstrumentViolin, InstrumentCello, InstrumentGuitar, InstrumentDrums,
		InstrumentTrumpet, InstrumentSaxophone, InstrumentFlute, InstrumentVoice, InstrumentOther:
		return true
	}
	return false
}

type RoomType string

const (
	RoomSmall  RoomType = "small"
	RoomMedium RoomType = "medium"
	RoomLarge  RoomType = "large"
)

func (t RoomType) Valid() bool {
	switch t {
	case RoomSmall, RoomMedium, RoomLarge:
		return true
	}
	return false
}

// Capacity returns the number of people the room type seats.
func (t RoomType) Capacity() int {
	switch t {
	case RoomSmall:
		return 1
	case RoomMedium:
		return 4
	case RoomLarge:
		return 8
	}
	return 0
}

type EquipmentType string

const (
	EquipmentGrandPiano   EquipmentType = "grand_piano"
	EquipmentUprightPiano EquipmentType = "upright_piano"
	EquipmentDrums        EquipmentType = "drums"
	EquipmentAmplifier    EquipmentType = "amplifier"
	EquipmentMicrophone   EquipmentType = "microphone"
	EquipmentMusicStand   EquipmentType = "music_stand"
	EquipmentViolin       EquipmentType = "violin"
	EquipmentCello        EquipmentType = "cello"
	EquipmentGuitar       EquipmentType = "guitar"
	EquipmentTrumpet      EquipmentType = "trumpet"
	EquipmentSaxophone    EquipmentType = "saxophone"
	EquipmentFlute        EquipmentType = "flute"
)

func (t EquipmentType) Valid() bool {
	switch t {
	case EquipmentGrandPiano, EquipmentUprightPiano, EquipmentDrums, EquipmentAmplifier,
		EquipmentMicrophone, EquipmentMusicStand, EquipmentViolin, EquipmentCello,
		EquipmentGuitar, EquipmentTrumpet, EquipmentSaxophone, EquipmentFlute:
		return true
	}
	return false
}
