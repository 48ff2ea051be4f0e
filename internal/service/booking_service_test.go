package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"practicerooms/internal/catalog"
	"practicerooms/internal/database"
	"practicerooms/internal/events"
	"practicerooms/internal/lock"
	"practicerooms/internal/models"
	"practicerooms/internal/registry"
)

// Monday 2026-03-09, 08:00 UTC.
var monday = time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type testEnv struct {
	db       *database.DB
	catalog  *catalog.Service
	registry *registry.Service
	svc      *BookingService
	clock    *testClock
	bus      *events.EventBus

	mu     sync.Mutex
	seen   []events.Event
	serial int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "bookings.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	locker := lock.NewMemoryLocker()
	env := &testEnv{
		db:       db,
		catalog:  catalog.NewService(db, logger),
		registry: registry.NewService(db, locker, logger),
		clock:    &testClock{t: monday},
		bus:      events.NewEventBus(),
	}
	for _, et := range []string{
		events.BookingCreated, events.BookingRejected, events.BookingUpdated,
		events.BookingCancelled, events.BookingCheckedIn, events.BookingApproved,
		events.BookingDeleted, events.BookingNoShow, events.StudentPenalized,
	} {
		env.bus.Subscribe(et, func(e events.Event) error {
			env.mu.Lock()
			env.seen = append(env.seen, e)
			env.mu.Unlock()
			return nil
		})
	}

	env.svc = NewBookingService(Deps{
		Bookings: db,
		Rooms:    env.catalog,
		Students: env.registry,
		Locker:   locker,
		Events:   env.bus,
		Clock:    env.clock.Now,
	}, logger)
	return env
}

func (e *testEnv) next() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.serial++
	return e.serial
}

func (e *testEnv) room(t *testing.T, name string, typ models.RoomType, soundproof bool, equipment ...models.EquipmentType) *models.Room {
	t.Helper()
	ctx := context.Background()
	r := &models.Room{Name: name, Type: typ, IsSoundproof: soundproof}
	require.NoError(t, e.catalog.CreateRoom(ctx, r))
	for _, et := range equipment {
		eq := &models.Equipment{Name: fmt.Sprintf("%s %s %d", name, et, e.next()), Type: et}
		require.NoError(t, e.catalog.CreateEquipment(ctx, eq))
		_, err := e.catalog.InstallEquipment(ctx, r.ID, eq.ID, 1)
		require.NoError(t, err)
	}
	return r
}

func (e *testEnv) student(t *testing.T, program models.StudentProgram, instrument models.Instrument) *models.Student {
	t.Helper()
	n := e.next()
	st := &models.Student{
		FirstName:         "Test",
		LastName:          fmt.Sprintf("Student%d", n),
		Email:             fmt.Sprintf("student%d@example.edu", n),
		StudentNumber:     fmt.Sprintf("S-%04d", n),
		Program:           program,
		PrimaryInstrument: instrument,
	}
	require.NoError(t, e.registry.CreateStudent(context.Background(), st))
	return st
}

func (e *testEnv) eventTypes() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.seen))
	for _, ev := range e.seen {
		out = append(out, ev.Type)
	}
	return out
}

func at(day, hour int) time.Time {
	return time.Date(2026, 3, 9+day, hour, 0, 0, 0, time.UTC)
}

func input(st *models.Student, r *models.Room, start, end time.Time, purpose models.BookingPurpose) CreateBookingInput {
	return CreateBookingInput{StudentID: st.ID, RoomID: r.ID, StartTime: start, EndTime: end, Purpose: purpose}
}

func TestCreateBooking_Room101Piano(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.room(t, "Room 101", models.RoomSmall, false, models.EquipmentUprightPiano)
	alice := env.student(t, models.ProgramPerformanceMajor, models.InstrumentPiano)
	bob := env.student(t, models.ProgramPerformanceMajor, models.InstrumentPiano)

	first, err := env.svc.CreateBooking(ctx, input(alice, room, at(0, 10), at(0, 12), models.PurposeRegularPractice))
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, models.StatusConfirmed, first.Status)
	assert.False(t, first.RequiresApproval)
	assert.Equal(t, monday, first.CreatedAt)

	_, err = env.svc.CreateBooking(ctx, input(bob, room, at(0, 11), at(0, 13), models.PurposeRegularPractice))
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrTimeConflict)

	// back-to-back is fine
	second, err := env.svc.CreateBooking(ctx, input(bob, room, at(0, 12), at(0, 14), models.PurposeRegularPractice))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	assert.Contains(t, env.eventTypes(), events.BookingRejected)
	assert.Contains(t, env.eventTypes(), events.BookingCreated)
}

func TestCreateBooking_CancelledDoesNotBlock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.room(t, "Room 102", models.RoomSmall, false, models.EquipmentGrandPiano)
	st := env.student(t, models.ProgramPerformanceMajor, models.InstrumentPiano)

	b, err := env.svc.CreateBooking(ctx, input(st, room, at(1, 9), at(1, 11), models.PurposeRegularPractice))
	require.NoError(t, err)

	ok, err := env.svc.CancelBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = env.svc.CreateBooking(ctx, input(st, room, at(1, 9), at(1, 11), models.PurposeRegularPractice))
	assert.NoError(t, err)
}

func TestCreateBooking_Gates(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	small := env.room(t, "Room 103", models.RoomSmall, false, models.EquipmentUprightPiano)
	bare := env.room(t, "Room 104", models.RoomSmall, false)
	medium := env.room(t, "Room 201", models.RoomMedium, true, models.EquipmentUprightPiano)
	pianist := env.student(t, models.ProgramPerformanceMajor, models.InstrumentPiano)

	tests := []struct {
		name string
		in   CreateBookingInput
		want error
	}{
		{"start in the past", input(pianist, small, monday.Add(-time.Hour), monday.Add(time.Hour), models.PurposeRegularPractice), models.ErrPastStartTime},
		{"start equals now", input(pianist, small, monday, monday.Add(time.Hour), models.PurposeRegularPractice), models.ErrPastStartTime},
		{"end before start", input(pianist, small, at(0, 12), at(0, 11), models.PurposeRegularPractice), models.ErrInvalidTimeRange},
		{"empty interval", input(pianist, small, at(0, 12), at(0, 12), models.PurposeRegularPractice), models.ErrInvalidTimeRange},
		{"regular over 2h", input(pianist, small, at(0, 10), at(0, 13), models.PurposeRegularPractice), models.ErrDurationExceeded},
		{"recital over 3h", input(pianist, medium, at(0, 10), at(0, 14), models.PurposeRecitalPrep), models.ErrDurationExceeded},
		{"unknown room", CreateBookingInput{StudentID: pianist.ID, RoomID: 999, StartTime: at(0, 10), EndTime: at(0, 11), Purpose: models.PurposeRegularPractice}, models.ErrNotFound},
		{"ensemble in small room", input(pianist, small, at(0, 10), at(0, 11), models.PurposeEnsembleRehearsal), models.ErrRoomTypeMismatch},
		{"recital in small room", input(pianist, small, at(0, 10), at(0, 11), models.PurposeRecitalPrep), models.ErrRoomTypeMismatch},
		{"unknown student", CreateBookingInput{StudentID: 999, RoomID: small.ID, StartTime: at(0, 10), EndTime: at(0, 11), Purpose: models.PurposeRegularPractice}, models.ErrNotFound},
		{"no piano", input(pianist, bare, at(0, 10), at(0, 11), models.PurposeRegularPractice), models.ErrEquipmentMismatch},
		{"recital needs grand", input(pianist, medium, at(0, 10), at(0, 11), models.PurposeRecitalPrep), models.ErrEquipmentMismatch},
		{"unknown purpose", input(pianist, small, at(0, 10), at(0, 11), "jam_session"), models.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := env.svc.CreateBooking(ctx, tt.in)
			require.Error(t, err)
			assert.Nil(t, b)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, models.IsRejection(err))
		})
	}

	all, err := env.svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateBooking_RoomTypeMessageNamesAllowedTypes(t *testing.T) {
	env := newTestEnv(t)
	room := env.room(t, "Room 105", models.RoomSmall, false)
	st := env.student(t, models.ProgramPerformanceMajor, models.InstrumentVoice)

	_, err := env.svc.CreateBooking(context.Background(), input(st, room, at(0, 10), at(0, 12), models.PurposeEnsembleRehearsal))
	rej, ok := models.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, models.ReasonRoomTypeMismatch, rej.Reason)
	assert.Contains(t, rej.Message, "large")
}

func TestCreateBooking_Drums(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	open := env.room(t, "Room 106", models.RoomSmall, false, models.EquipmentDrums)
	booth := env.room(t, "Room 107", models.RoomSmall, true, models.EquipmentDrums)
	noKit := env.room(t, "Room 108", models.RoomSmall, true)
	drummer := env.student(t, models.ProgramEducationMajor, models.InstrumentDrums)

	_, err := env.svc.CreateBooking(ctx, input(drummer, noKit, at(0, 10), at(0, 11), models.PurposeRegularPractice))
	assert.ErrorIs(t, err, models.ErrEquipmentMismatch)

	_, err = env.svc.CreateBooking(ctx, input(drummer, open, at(0, 10), at(0, 11), models.PurposeRegularPractice))
	assert.ErrorIs(t, err, models.ErrSoundproofingRequired)

	b, err := env.svc.CreateBooking(ctx, input(drummer, booth, at(0, 10), at(0, 11), models.PurposeRegularPractice))
	require.NoError(t, err)
	assert.Equal(t, booth.ID, b.RoomID)
}

func TestCreateBooking_Quota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	roomA := env.room(t, "Room 109", models.RoomSmall, false)
	roomB := env.room(t, "Room 110", models.RoomSmall, false)
	minor := env.student(t, models.ProgramMinor, models.InstrumentVoice)

	_, err := env.svc.CreateBooking(ctx, input(minor, roomA, at(1, 10), at(1, 12), models.PurposeRegularPractice))
	require.NoError(t, err)
	_, err = env.svc.CreateBooking(ctx, input(minor, roomB, at(2, 10), at(2, 12), models.PurposeRegularPractice))
	require.NoError(t, err)

	_, err = env.svc.CreateBooking(ctx, input(minor, roomA, at(3, 10), at(3, 12), models.PurposeRegularPractice))
	rej, ok := models.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, models.ReasonQuotaExceeded, rej.Reason)
	assert.Contains(t, rej.Message, "4h")
	assert.Contains(t, rej.Message, "5h")

	_, err = env.svc.CreateBooking(ctx, input(minor, roomA, at(3, 10), at(3, 11), models.PurposeRegularPractice))
	require.NoError(t, err)

	usage, err := env.svc.WeeklyUsage(ctx, minor.ID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, usage.UsedHours)
	assert.Equal(t, 5, usage.QuotaHours)
	assert.Zero(t, usage.RemainingHours)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), usage.WeekStart)
}

func TestCreateBooking_QuotaExactWithOddMinutes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.room(t, "Room 112", models.RoomSmall, false)
	minor := env.student(t, models.ProgramMinor, models.InstrumentVoice)

	// 3 x 100 minutes lands exactly on the 5h allowance.
	for day := 1; day <= 3; day++ {
		start := at(day, 10)
		_, err := env.svc.CreateBooking(ctx, input(minor, room, start, start.Add(100*time.Minute), models.PurposeRegularPractice))
		require.NoError(t, err, "day %d", day)
	}

	usage, err := env.svc.WeeklyUsage(ctx, minor.ID)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, usage.UsedHours, 1e-9)
	assert.InDelta(t, 0.0, usage.RemainingHours, 1e-9)

	start := at(4, 10)
	_, err = env.svc.CreateBooking(ctx, input(minor, room, start, start.Add(10*time.Minute), models.PurposeRegularPractice))
	rej, ok := models.AsRejection(err)
	require.True(t, ok)
	assert.Equal(t, models.ReasonQuotaExceeded, rej.Reason)
	assert.Contains(t, rej.Message, "5h booked + 0.17h requested = 5.17h")
}

func TestCreateBooking_CancelledHoursFreeQuota(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.room(t, "Room 111", models.RoomSmall, false)
	minor := env.student(t, models.ProgramMinor, models.InstrumentOther)

	var ids []int64
	for day := 1; day <= 3; day++ {
		end := at(day, 12)
		if day == 3 {
			end = at(day, 11)
		}
		b, err := env.svc.CreateBooking(ctx, input(minor, room, at(day, 10), end, models.PurposeRegularPractice))
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	_, err := env.svc.CreateBooking(ctx, input(minor, room, at(4, 10), at(4, 11), models.PurposeRegularPractice))
	assert.ErrorIs(t, err, models.ErrQuotaExceeded)

	ok, err := env.svc.CancelBooking(ctx, ids[0])
	require.NoError(t, err)
	require.True(t, ok)

	_, err = env.svc.CreateBooking(ctx, input(minor, room, at(4, 10), at(4, 11), models.PurposeRegularPractice))
	assert.NoError(t, err)
}

func TestCreateBooking_ConcurrentSameSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.room(t, "Room 112", models.RoomSmall, false)
	students := make([]*models.Student, 8)
	for i := range students {
		students[i] = env.student(t, models.ProgramPerformanceMajor, models.InstrumentVoice)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for _, st := range students {
		wg.Add(1)
		go func(st *models.Student) {
			defer wg.Done()
			_, err := env.svc.CreateBooking(ctx, input(st, room, at(2, 15), at(2, 17), models.PurposeRegularPractice))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case assert.ErrorIs(t, err, models.ErrTimeConflict):
				conflicts++
			}
		}(st)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, len(students)-1, conflicts)
}

func TestRecitalApprovalFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hall := env.room(t, "Room 202", models.RoomMedium, true, models.EquipmentGrandPiano)
	pianist := env.student(t, models.ProgramPerformanceMajor, models.InstrumentPiano)
	ins := &models.Instructor{FirstName: "Nadia", LastName: "Boulanger", Email: "nadia@example.edu"}
	require.NoError(t, env.registry.CreateInstructor(ctx, ins))

	b, err := env.svc.CreateBooking(ctx, input(pianist, hall, at(0, 10), at(0, 13), models.PurposeRecitalPrep))
	require.NoError(t, err)
	assert.True(t, b.RequiresApproval)
	assert.False(t, b.IsApproved)

	_, err = env.svc.CheckIn(ctx, b.ID)
	assert.ErrorIs(t, err, models.ErrApprovalRequired)

	_, err = env.svc.Approve(ctx, b.ID, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)

	ok, err := env.svc.Approve(ctx, b.ID, ins.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := env.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsApproved)
	require.NotNil(t, got.ApprovedByInstructorID)
	assert.Equal(t, ins.ID, *got.ApprovedByInstructorID)
	assert.NotNil(t, got.ApprovedAt)

	env.clock.Set(at(0, 10))
	ok, err = env.svc.CheckIn(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = env.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	require.NotNil(t, got.CheckedInAt)
	assert.Equal(t, at(0, 10), *got.CheckedInAt)

	st, err := env.registry.GetStudent(ctx, pianist.ID)
	require.NoError(t, err)
	assert.Equal(t, 3.0, st.TotalLoggedHours)

	_, err = env.svc.CheckIn(ctx, b.ID)
	assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)
}

func TestApprove_NothingToApprove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.room(t, "Room 113", models.RoomSmall, false)
	st := env.student(t, models.ProgramPerformanceMajor, models.InstrumentVoice)
	b, err := env.svc.CreateBooking(ctx, input(st, room, at(0, 10), at(0, 11), models.PurposeRegularPractice))
	require.NoError(t, err)

	_, err = env.svc.Approve(ctx, b.ID, 1)
	assert.ErrorIs(t, err, models.ErrNothingToApprove)

	ok, err := env.svc.Approve(ctx, 999, 1)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTransitions_MissingBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for name, fn := range map[string]func() (bool, error){
		"cancel":   func() (bool, error) { return env.svc.CancelBooking(ctx, 42) },
		"check in": func() (bool, error) { return env.svc.CheckIn(ctx, 42) },
		"approve":  func() (bool, error) { return env.svc.Approve(ctx, 42, 1) },
		"delete":   func() (bool, error) { return env.svc.DeleteBooking(ctx, 42) },
		"update": func() (bool, error) {
			return env.svc.UpdateBooking(ctx, &models.Booking{
				ID: 42, RoomID: 1, StartTime: at(0, 10), EndTime: at(0, 11),
				Status: models.StatusConfirmed, Purpose: models.PurposeRegularPractice,
			})
		},
	} {
		t.Run(name, func(t *testing.T) {
			ok, err := fn()
			assert.NoError(t, err)
			assert.False(t, ok)
		})
	}

	b, err := env.svc.GetBooking(ctx, 42)
	assert.NoError(t, err)
	assert.Nil(t, b)
}

func TestCancelBooking_Restamps(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.room(t, "Room 114", models.RoomSmall, false)
	st := env.student(t, models.ProgramPerformanceMajor, models.InstrumentVoice)
	b, err := env.svc.CreateBooking(ctx, input(st, room, at(1, 10), at(1, 11), models.PurposeRegularPractice))
	require.NoError(t, err)

	_, err = env.svc.CancelBooking(ctx, b.ID)
	require.NoError(t, err)
	first, err := env.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, first.CancelledAt)
	assert.Equal(t, monday, *first.CancelledAt)

	env.clock.Set(monday.Add(30 * time.Minute))
	_, err = env.svc.CancelBooking(ctx, b.ID)
	require.NoError(t, err)
	second, err := env.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, second.Status)
	assert.Equal(t, monday.Add(30*time.Minute), *second.CancelledAt)
}

func TestUpdateBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.room(t, "Room 115", models.RoomSmall, false)
	st := env.student(t, models.ProgramPerformanceMajor, models.InstrumentVoice)
	first, err := env.svc.CreateBooking(ctx, input(st, room, at(1, 10), at(1, 12), models.PurposeRegularPractice))
	require.NoError(t, err)
	second, err := env.svc.CreateBooking(ctx, input(st, room, at(1, 12), at(1, 14), models.PurposeRegularPractice))
	require.NoError(t, err)

	t.Run("move into another booking", func(t *testing.T) {
		b, err := env.svc.GetBooking(ctx, second.ID)
		require.NoError(t, err)
		b.StartTime = at(1, 11)
		_, err = env.svc.UpdateBooking(ctx, b)
		assert.ErrorIs(t, err, models.ErrTimeConflict)
	})

	t.Run("shift within own slot", func(t *testing.T) {
		b, err := env.svc.GetBooking(ctx, first.ID)
		require.NoError(t, err)
		b.StartTime = at(1, 10).Add(30 * time.Minute)
		b.Notes = "scales"
		ok, err := env.svc.UpdateBooking(ctx, b)
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := env.svc.GetBooking(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "scales", got.Notes)
		assert.Equal(t, first.CreatedAt, got.CreatedAt)
		assert.Equal(t, b.Version, got.Version)
	})

	t.Run("stale version", func(t *testing.T) {
		b, err := env.svc.GetBooking(ctx, first.ID)
		require.NoError(t, err)
		b.Version--
		_, err = env.svc.UpdateBooking(ctx, b)
		assert.ErrorIs(t, err, database.ErrConcurrentModification)
	})

	t.Run("cancel via update", func(t *testing.T) {
		b, err := env.svc.GetBooking(ctx, second.ID)
		require.NoError(t, err)
		b.Status = models.StatusCancelled
		ok, err := env.svc.UpdateBooking(ctx, b)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.NotNil(t, b.CancelledAt)
	})

	t.Run("cancelled cannot be confirmed again", func(t *testing.T) {
		b, err := env.svc.GetBooking(ctx, second.ID)
		require.NoError(t, err)
		b.Status = models.StatusConfirmed
		_, err = env.svc.UpdateBooking(ctx, b)
		assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)
	})

	t.Run("invalid range", func(t *testing.T) {
		b, err := env.svc.GetBooking(ctx, first.ID)
		require.NoError(t, err)
		b.EndTime = b.StartTime
		_, err = env.svc.UpdateBooking(ctx, b)
		assert.ErrorIs(t, err, models.ErrInvalidTimeRange)
	})
}

func TestDeleteBooking(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.room(t, "Room 116", models.RoomSmall, false)
	st := env.student(t, models.ProgramPerformanceMajor, models.InstrumentVoice)
	b, err := env.svc.CreateBooking(ctx, input(st, room, at(1, 10), at(1, 12), models.PurposeRegularPractice))
	require.NoError(t, err)

	ok, err := env.svc.DeleteBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := env.svc.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	conflict, err := env.svc.HasTimeConflict(ctx, room.ID, at(1, 10), at(1, 12), nil)
	require.NoError(t, err)
	assert.False(t, conflict)

	ok, err = env.svc.DeleteBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, env.eventTypes(), events.BookingDeleted)
}

func TestHasTimeConflict(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	room := env.room(t, "Room 117", models.RoomSmall, false)
	st := env.student(t, models.ProgramPerformanceMajor, models.InstrumentVoice)
	b, err := env.svc.CreateBooking(ctx, input(st, room, at(1, 10), at(1, 12), models.PurposeRegularPractice))
	require.NoError(t, err)

	tests := []struct {
		name       string
		start, end time.Time
		exclude    *int64
		want       bool
	}{
		{"inside", at(1, 10).Add(30 * time.Minute), at(1, 11), nil, true},
		{"covering", at(1, 9), at(1, 13), nil, true},
		{"overlapping start", at(1, 9), at(1, 11), nil, true},
		{"ending at start", at(1, 8), at(1, 10), nil, false},
		{"starting at end", at(1, 12), at(1, 14), nil, false},
		{"excluded self", at(1, 10), at(1, 12), &b.ID, false},
		{"empty interval", at(1, 11), at(1, 11), nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := env.svc.HasTimeConflict(ctx, room.ID, tt.start, tt.end, tt.exclude)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestListByStudentAndRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	r1 := env.room(t, "Room 118", models.RoomSmall, false)
	r2 := env.room(t, "Room 119", models.RoomSmall, false)
	a := env.student(t, models.ProgramPerformanceMajor, models.InstrumentVoice)
	b := env.student(t, models.ProgramPerformanceMajor, models.InstrumentVoice)

	_, err := env.svc.CreateBooking(ctx, input(a, r1, at(1, 10), at(1, 11), models.PurposeRegularPractice))
	require.NoError(t, err)
	_, err = env.svc.CreateBooking(ctx, input(a, r2, at(1, 12), at(1, 13), models.PurposeRegularPractice))
	require.NoError(t, err)
	_, err = env.svc.CreateBooking(ctx, input(b, r1, at(1, 14), at(1, 15), models.PurposeRegularPractice))
	require.NoError(t, err)

	byA, err := env.svc.ListByStudent(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, byA, 2)

	byR1, err := env.svc.ListByRoom(ctx, r1.ID)
	require.NoError(t, err)
	assert.Len(t, byR1, 2)

	all, err := env.svc.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestCheckRoomAvailability(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	hall := env.room(t, "Room 203", models.RoomMedium, false, models.EquipmentGrandPiano)
	st := env.student(t, models.ProgramPerformanceMajor, models.InstrumentPiano)

	avail, err := env.svc.CheckRoomAvailability(ctx, hall.ID, at(1, 10), at(1, 12))
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.True(t, avail.Bookable)
	assert.Equal(t, 4, avail.Capacity)

	_, err = env.svc.CreateBooking(ctx, input(st, hall, at(1, 10), at(1, 12), models.PurposeRecitalPrep))
	require.NoError(t, err)

	avail, err = env.svc.CheckRoomAvailability(ctx, hall.ID, at(1, 11), at(1, 13))
	require.NoError(t, err)
	assert.Zero(t, avail.ApprovedBookings)
	assert.True(t, avail.Available)
	assert.False(t, avail.Bookable)

	_, err = env.svc.CheckRoomAvailability(ctx, 999, at(1, 11), at(1, 13))
	assert.ErrorIs(t, err, models.ErrNotFound)
	_, err = env.svc.CheckRoomAvailability(ctx, hall.ID, at(1, 13), at(1, 11))
	assert.ErrorIs(t, err, models.ErrInvalidTimeRange)
}

func TestWeeklyUsage_UnknownStudent(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.WeeklyUsage(context.Background(), 404)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
