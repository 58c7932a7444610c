package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorium/backend/internal/app/models"
	"github.com/tutorium/backend/internal/app/models/dto"
	"github.com/tutorium/backend/internal/pkg/apperrors"
	"github.com/tutorium/backend/internal/scheduling"
)

// testDay keeps booking windows in the future so index restoration, which
// only reloads upcoming meetings, sees them.
var testDay = time.Now().UTC().AddDate(0, 0, 7).Truncate(24 * time.Hour)

func at(hour, min int) time.Time {
	return testDay.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

// fakeMeetingStore implements meetingStore in memory.
type fakeMeetingStore struct {
	mu         sync.Mutex
	meetings   map[string]*models.Meeting
	createErr  error
	replaceErr error
}

func newFakeMeetingStore() *fakeMeetingStore {
	return &fakeMeetingStore{meetings: make(map[string]*models.Meeting)}
}

func (f *fakeMeetingStore) Create(ctx context.Context, meeting *models.Meeting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	meeting.CreatedAt = time.Now()
	f.meetings[meeting.ID] = meeting
	return nil
}

func (f *fakeMeetingStore) GetByID(ctx context.Context, id string) (*models.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meetings[id], nil
}

func (f *fakeMeetingStore) Cancel(ctx context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.meetings[id]
	if !ok || m.Status == models.MeetingStatusCancelled {
		return false, nil
	}
	m.Status = models.MeetingStatusCancelled
	return true, nil
}

func (f *fakeMeetingStore) Replace(ctx context.Context, oldID string, newMeeting *models.Meeting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.replaceErr != nil {
		return f.replaceErr
	}
	if old, ok := f.meetings[oldID]; ok {
		old.Status = models.MeetingStatusCancelled
	}
	newMeeting.CreatedAt = time.Now()
	f.meetings[newMeeting.ID] = newMeeting
	return nil
}

func (f *fakeMeetingStore) ListForUser(ctx context.Context, userID int64) ([]*models.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Meeting
	for _, m := range f.meetings {
		if m.TutorID == userID || containsID(m.ParticipantIDs, userID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMeetingStore) ListScheduledFrom(ctx context.Context, from time.Time) ([]*models.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Meeting
	for _, m := range f.meetings {
		if m.Status == models.MeetingStatusScheduled && m.EndTime.After(from) {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeUserStore implements userStore in memory.
type fakeUserStore struct {
	users map[int64]*models.User
}

func newFakeUserStore(users ...*models.User) *fakeUserStore {
	f := &fakeUserStore{users: make(map[int64]*models.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserStore) FindByID(ctx context.Context, id int64) (*models.User, error) {
	return f.users[id], nil
}

func (f *fakeUserStore) ExistingIDs(ctx context.Context, ids []int64) ([]int64, error) {
	seen := make(map[int64]bool)
	var out []int64
	for _, id := range ids {
		if _, ok := f.users[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeRoomStore struct {
	rooms map[int64]*models.Room
}

func (f *fakeRoomStore) GetByID(ctx context.Context, id int64) (*models.Room, error) {
	return f.rooms[id], nil
}

type fakeCourseStore struct {
	courses map[int64]*models.Course
}

func (f *fakeCourseStore) GetByID(ctx context.Context, id int64) (*models.Course, error) {
	return f.courses[id], nil
}

// fakeNotifier records booking events synchronously.
type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) record(kind string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, kind)
}

func (f *fakeNotifier) MeetingScheduled(meeting *models.Meeting)    { f.record("scheduled") }
func (f *fakeNotifier) MeetingCancelled(meeting *models.Meeting)    { f.record("cancelled") }
func (f *fakeNotifier) MeetingRescheduled(old, upd *models.Meeting) { f.record("rescheduled") }

type meetingFixture struct {
	service  MeetingService
	meetings *fakeMeetingStore
	index    *scheduling.Index
	notifier *fakeNotifier
}

func newMeetingFixture(t *testing.T) *meetingFixture {
	t.Helper()
	meetings := newFakeMeetingStore()
	users := newFakeUserStore(
		&models.User{ID: 1, FirstName: "Taylor", LastName: "Nguyen", RoleType: models.RoleTutor},
		&models.User{ID: 2, FirstName: "Alex", LastName: "Kim", RoleType: models.RoleStudent},
		&models.User{ID: 3, FirstName: "Sam", LastName: "Rivera", RoleType: models.RoleStudent},
		&models.User{ID: 4, FirstName: "Jo", LastName: "Park", RoleType: models.RoleTutor},
	)
	rooms := &fakeRoomStore{rooms: map[int64]*models.Room{
		7: {ID: 7, Name: "Study Room A", Campus: "Main"},
	}}
	courses := &fakeCourseStore{courses: map[int64]*models.Course{
		5: {ID: 5, TutorID: 1, Title: "Calculus I"},
		6: {ID: 6, TutorID: 4, Title: "Linear Algebra"},
	}}
	index := scheduling.NewIndex(time.Second, zerolog.Nop())
	notifier := &fakeNotifier{}
	service := NewMeetingService(meetings, users, rooms, courses, index, notifier, zerolog.Nop())
	return &meetingFixture{service: service, meetings: meetings, index: index, notifier: notifier}
}

func scheduleReq(start, end time.Time, participants ...int64) *dto.ScheduleMeetingRequest {
	return &dto.ScheduleMeetingRequest{
		StartTime:      start,
		EndTime:        end,
		ParticipantIDs: participants,
	}
}

func TestScheduleMeeting(t *testing.T) {
	fx := newMeetingFixture(t)
	ctx := context.Background()

	resp, err := fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 2, 3))
	require.NoError(t, err)

	assert.Equal(t, string(models.MeetingStatusScheduled), resp.Status)
	assert.Equal(t, []int64{2, 3}, resp.ParticipantIDs)
	assert.Equal(t, "Taylor Nguyen", resp.TutorName)
	require.NotNil(t, resp.MeetingLink)
	assert.True(t, strings.HasPrefix(*resp.MeetingLink, "https://meet.tutorium.app/"))
	assert.True(t, strings.HasSuffix(*resp.MeetingLink, resp.ID))

	stored, err := fx.meetings.GetByID(ctx, resp.ID)
	require.NoError(t, err)
	require.NotNil(t, stored, "meeting must be persisted")

	assert.Equal(t, []string{"scheduled"}, fx.notifier.events)
}

func TestScheduleMeetingValidation(t *testing.T) {
	fx := newMeetingFixture(t)
	ctx := context.Background()

	t.Run("end before start", func(t *testing.T) {
		_, err := fx.service.Schedule(ctx, 1, scheduleReq(at(11, 0), at(10, 0), 2))
		assert.ErrorIs(t, err, apperrors.ErrInvalidMeetingRequest)
	})

	t.Run("start in the past", func(t *testing.T) {
		start := time.Now().Add(-48 * time.Hour)
		_, err := fx.service.Schedule(ctx, 1, scheduleReq(start, start.Add(time.Hour), 2))
		assert.ErrorIs(t, err, apperrors.ErrInvalidMeetingRequest)
	})

	t.Run("no participants", func(t *testing.T) {
		_, err := fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0)))
		assert.ErrorIs(t, err, apperrors.ErrInvalidMeetingRequest)
	})

	t.Run("tutor listed as participant", func(t *testing.T) {
		_, err := fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 1, 2))
		assert.ErrorIs(t, err, apperrors.ErrInvalidMeetingRequest)
	})

	t.Run("unknown participant", func(t *testing.T) {
		_, err := fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 2, 99))
		assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
	})

	t.Run("student cannot schedule", func(t *testing.T) {
		_, err := fx.service.Schedule(ctx, 2, scheduleReq(at(10, 0), at(11, 0), 3))
		assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	})

	t.Run("unknown room", func(t *testing.T) {
		req := scheduleReq(at(10, 0), at(11, 0), 2)
		roomID := int64(99)
		req.RoomID = &roomID
		_, err := fx.service.Schedule(ctx, 1, req)
		assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
	})

	t.Run("course of another tutor", func(t *testing.T) {
		req := scheduleReq(at(10, 0), at(11, 0), 2)
		courseID := int64(6)
		req.CourseID = &courseID
		_, err := fx.service.Schedule(ctx, 1, req)
		assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	})

	// Nothing above may have reserved anything.
	_, err := fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 2))
	assert.NoError(t, err)
}

func TestScheduleMeetingTutorConflict(t *testing.T) {
	fx := newMeetingFixture(t)
	ctx := context.Background()

	_, err := fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 2))
	require.NoError(t, err)

	_, err = fx.service.Schedule(ctx, 1, scheduleReq(at(10, 30), at(11, 30), 3))
	require.ErrorIs(t, err, apperrors.ErrMeetingConflict)

	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, scheduling.ResourceKindTutor, conflict.Resource.Kind)
	assert.Equal(t, int64(1), conflict.Resource.ID)
	assert.Equal(t, at(10, 0), conflict.Existing.Start)

	// A back-to-back slot is fine.
	_, err = fx.service.Schedule(ctx, 1, scheduleReq(at(11, 0), at(12, 0), 3))
	assert.NoError(t, err)
}

func TestScheduleMeetingRoomConflict(t *testing.T) {
	fx := newMeetingFixture(t)
	ctx := context.Background()
	roomID := int64(7)

	req := scheduleReq(at(10, 0), at(11, 0), 2)
	req.RoomID = &roomID
	_, err := fx.service.Schedule(ctx, 1, req)
	require.NoError(t, err)

	// A different tutor, the same room.
	req2 := scheduleReq(at(10, 30), at(11, 30), 3)
	req2.RoomID = &roomID
	_, err = fx.service.Schedule(ctx, 4, req2)
	require.ErrorIs(t, err, apperrors.ErrMeetingConflict)

	var conflict *apperrors.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, scheduling.ResourceKindRoom, conflict.Resource.Kind)

	// Without the room the second tutor's window is free.
	_, err = fx.service.Schedule(ctx, 4, scheduleReq(at(10, 30), at(11, 30), 3))
	assert.NoError(t, err)
}

func TestScheduleMeetingRollbackOnPersistFailure(t *testing.T) {
	fx := newMeetingFixture(t)
	ctx := context.Background()

	fx.meetings.createErr = errors.New("db down")
	_, err := fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 2))
	require.Error(t, err)
	assert.Empty(t, fx.notifier.events)

	// The failed booking must not leave a phantom reservation behind.
	fx.meetings.createErr = nil
	_, err = fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 2))
	assert.NoError(t, err)
}

func TestScheduleMeetingBusy(t *testing.T) {
	meetings := newFakeMeetingStore()
	users := newFakeUserStore(
		&models.User{ID: 1, RoleType: models.RoleTutor},
		&models.User{ID: 2, RoleType: models.RoleStudent},
	)
	index := scheduling.NewIndex(30*time.Millisecond, zerolog.Nop())
	service := NewMeetingService(meetings, users, &fakeRoomStore{}, &fakeCourseStore{}, index, &fakeNotifier{}, zerolog.Nop())

	// Hold the tutor's lock so the booking times out.
	claim, err := index.Acquire(context.Background(), scheduling.ResourceKey{Kind: scheduling.ResourceKindTutor, ID: 1})
	require.NoError(t, err)
	defer claim.Release()

	_, err = service.Schedule(context.Background(), 1, scheduleReq(at(10, 0), at(11, 0), 2))
	assert.ErrorIs(t, err, apperrors.ErrSchedulerBusy)
}

func TestCancelMeeting(t *testing.T) {
	fx := newMeetingFixture(t)
	ctx := context.Background()

	resp, err := fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 2))
	require.NoError(t, err)

	t.Run("outsider cannot cancel", func(t *testing.T) {
		err := fx.service.Cancel(ctx, 3, resp.ID)
		assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	})

	t.Run("participant can cancel", func(t *testing.T) {
		require.NoError(t, fx.service.Cancel(ctx, 2, resp.ID))
		stored, _ := fx.meetings.GetByID(ctx, resp.ID)
		assert.Equal(t, models.MeetingStatusCancelled, stored.Status)
		assert.Contains(t, fx.notifier.events, "cancelled")
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		before := len(fx.notifier.events)
		require.NoError(t, fx.service.Cancel(ctx, 1, resp.ID))
		assert.Len(t, fx.notifier.events, before, "repeat cancel must not notify again")
	})

	t.Run("cancelled slot can be rebooked", func(t *testing.T) {
		_, err := fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 3))
		assert.NoError(t, err)
	})

	t.Run("unknown meeting", func(t *testing.T) {
		err := fx.service.Cancel(ctx, 1, "no-such-meeting")
		assert.ErrorIs(t, err, apperrors.ErrMeetingNotFound)
	})
}

func TestRescheduleMeeting(t *testing.T) {
	fx := newMeetingFixture(t)
	ctx := context.Background()

	resp, err := fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 2))
	require.NoError(t, err)

	t.Run("only the tutor may reschedule", func(t *testing.T) {
		_, err := fx.service.Reschedule(ctx, 2, resp.ID, &dto.RescheduleMeetingRequest{
			StartTime: at(14, 0), EndTime: at(15, 0),
		})
		assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	})

	t.Run("cannot move into the past", func(t *testing.T) {
		start := time.Now().Add(-48 * time.Hour)
		_, err := fx.service.Reschedule(ctx, 1, resp.ID, &dto.RescheduleMeetingRequest{
			StartTime: start, EndTime: start.Add(time.Hour),
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidMeetingRequest)
	})

	t.Run("moves to a free window", func(t *testing.T) {
		moved, err := fx.service.Reschedule(ctx, 1, resp.ID, &dto.RescheduleMeetingRequest{
			StartTime: at(14, 0), EndTime: at(15, 0),
		})
		require.NoError(t, err)
		assert.NotEqual(t, resp.ID, moved.ID, "reschedule issues a fresh meeting id")
		assert.Equal(t, []int64{2}, moved.ParticipantIDs)
		assert.Contains(t, fx.notifier.events, "rescheduled")

		old, _ := fx.meetings.GetByID(ctx, resp.ID)
		assert.Equal(t, models.MeetingStatusCancelled, old.Status)

		// The original window is free again.
		_, err = fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 3))
		assert.NoError(t, err)

		resp = moved
	})

	t.Run("same window reschedule succeeds", func(t *testing.T) {
		moved, err := fx.service.Reschedule(ctx, 1, resp.ID, &dto.RescheduleMeetingRequest{
			StartTime: at(14, 0), EndTime: at(15, 0),
		})
		require.NoError(t, err)
		resp = moved
	})

	t.Run("conflict leaves the original booking intact", func(t *testing.T) {
		blocker, err := fx.service.Schedule(ctx, 1, scheduleReq(at(16, 0), at(17, 0), 3))
		require.NoError(t, err)
		_ = blocker

		_, err = fx.service.Reschedule(ctx, 1, resp.ID, &dto.RescheduleMeetingRequest{
			StartTime: at(16, 30), EndTime: at(17, 30),
		})
		require.ErrorIs(t, err, apperrors.ErrMeetingConflict)

		// The meeting still holds its current window.
		stored, _ := fx.meetings.GetByID(ctx, resp.ID)
		assert.Equal(t, models.MeetingStatusScheduled, stored.Status)
		_, err = fx.service.Schedule(ctx, 1, scheduleReq(at(14, 0), at(15, 0), 3))
		assert.ErrorIs(t, err, apperrors.ErrMeetingConflict)
	})

	t.Run("cancelled meetings cannot move", func(t *testing.T) {
		require.NoError(t, fx.service.Cancel(ctx, 1, resp.ID))
		_, err := fx.service.Reschedule(ctx, 1, resp.ID, &dto.RescheduleMeetingRequest{
			StartTime: at(18, 0), EndTime: at(19, 0),
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidMeetingRequest)
	})
}

func TestMeetingVisibility(t *testing.T) {
	fx := newMeetingFixture(t)
	ctx := context.Background()

	resp, err := fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 2))
	require.NoError(t, err)

	_, err = fx.service.GetByID(ctx, 2, resp.ID)
	assert.NoError(t, err)

	_, err = fx.service.GetByID(ctx, 3, resp.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	list, err := fx.service.ListForUser(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list.Meetings, 1)
	assert.Equal(t, resp.ID, list.Meetings[0].ID)

	list, err = fx.service.ListForUser(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, list.Meetings)
}

func TestRestoreIndex(t *testing.T) {
	fx := newMeetingFixture(t)
	ctx := context.Background()

	resp, err := fx.service.Schedule(ctx, 1, scheduleReq(at(10, 0), at(11, 0), 2))
	require.NoError(t, err)
	_ = resp

	// A fresh index restored from the store blocks the same window again.
	index := scheduling.NewIndex(time.Second, zerolog.Nop())
	users := newFakeUserStore(
		&models.User{ID: 1, RoleType: models.RoleTutor},
		&models.User{ID: 3, RoleType: models.RoleStudent},
	)
	restored := NewMeetingService(fx.meetings, users, &fakeRoomStore{}, &fakeCourseStore{}, index, &fakeNotifier{}, zerolog.Nop())
	require.NoError(t, restored.RestoreIndex(ctx))

	_, err = restored.Schedule(ctx, 1, scheduleReq(at(10, 30), at(11, 30), 3))
	assert.ErrorIs(t, err, apperrors.ErrMeetingConflict)
}
