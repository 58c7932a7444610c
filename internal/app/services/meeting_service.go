package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tutorium/backend/internal/app/models"
	"github.com/tutorium/backend/internal/app/models/dto"
	"github.com/tutorium/backend/internal/pkg/apperrors"
	"github.com/tutorium/backend/internal/scheduling"
)

// meetingLinkBase is the video conferencing endpoint meetings are held on.
const meetingLinkBase = "https://meet.tutorium.app/"

// meetingStore is the persistence surface the meeting service needs
type meetingStore interface {
	Create(ctx context.Context, meeting *models.Meeting) error
	GetByID(ctx context.Context, id string) (*models.Meeting, error)
	Cancel(ctx context.Context, id string) (bool, error)
	Replace(ctx context.Context, oldID string, newMeeting *models.Meeting) error
	ListForUser(ctx context.Context, userID int64) ([]*models.Meeting, error)
	ListScheduledFrom(ctx context.Context, from time.Time) ([]*models.Meeting, error)
}

// userStore resolves users for validation and display names
type userStore interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
}

type roomStore interface {
	GetByID(ctx context.Context, id int64) (*models.Room, error)
}

type courseStore interface {
	GetByID(ctx context.Context, id int64) (*models.Course, error)
}

// MeetingNotifier receives booking lifecycle events after they are persisted
type MeetingNotifier interface {
	MeetingScheduled(meeting *models.Meeting)
	MeetingCancelled(meeting *models.Meeting)
	MeetingRescheduled(old, updated *models.Meeting)
}

// MeetingService defines the interface for booking operations
type MeetingService interface {
	Schedule(ctx context.Context, tutorID int64, req *dto.ScheduleMeetingRequest) (*dto.MeetingResponse, error)
	Reschedule(ctx context.Context, userID int64, meetingID string, req *dto.RescheduleMeetingRequest) (*dto.MeetingResponse, error)
	Cancel(ctx context.Context, userID int64, meetingID string) error
	GetByID(ctx context.Context, userID int64, meetingID string) (*dto.MeetingResponse, error)
	ListForUser(ctx context.Context, userID int64) (*dto.MeetingListResponse, error)
	RestoreIndex(ctx context.Context) error
}

// meetingServiceImpl implements MeetingService. All conflict decisions go
// through the availability index under per-resource locks; the database is
// only touched after the locks are dropped, so no I/O ever happens while a
// resource is held.
type meetingServiceImpl struct {
	meetingRepo meetingStore
	userRepo    userStore
	roomRepo    roomStore
	courseRepo  courseStore
	index       *scheduling.Index
	notifier    MeetingNotifier
	logger      zerolog.Logger
}

// NewMeetingService creates a new MeetingService
func NewMeetingService(
	meetingRepo meetingStore,
	userRepo userStore,
	roomRepo roomStore,
	courseRepo courseStore,
	index *scheduling.Index,
	notifier MeetingNotifier,
	logger zerolog.Logger,
) MeetingService {
	return &meetingServiceImpl{
		meetingRepo: meetingRepo,
		userRepo:    userRepo,
		roomRepo:    roomRepo,
		courseRepo:  courseRepo,
		index:       index,
		notifier:    notifier,
		logger:      logger,
	}
}

// Schedule books a new meeting for the tutor, reserving the tutor's time and
// the room (when requested) atomically with respect to concurrent bookings.
func (s *meetingServiceImpl) Schedule(
	ctx context.Context,
	tutorID int64,
	req *dto.ScheduleMeetingRequest,
) (*dto.MeetingResponse, error) {
	s.logger.Debug().
		Int64("tutorID", tutorID).
		Time("startTime", req.StartTime).
		Time("endTime", req.EndTime).
		Msg("Scheduling meeting")

	interval, err := scheduling.NewInterval(req.StartTime, req.EndTime)
	if err != nil {
		return nil, apperrors.NewInvalidMeetingRequestError(err.Error())
	}
	if interval.Start.Before(time.Now()) {
		return nil, apperrors.NewInvalidMeetingRequestError("Meeting cannot start in the past")
	}

	tutor, err := s.validateTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	if err := s.validateParticipants(ctx, tutorID, req.ParticipantIDs); err != nil {
		return nil, err
	}
	if req.RoomID != nil {
		room, err := s.roomRepo.GetByID(ctx, *req.RoomID)
		if err != nil {
			return nil, fmt.Errorf("error checking room: %w", err)
		}
		if room == nil {
			return nil, apperrors.NewResourceNotFoundError("Room not found")
		}
	}
	if req.CourseID != nil {
		course, err := s.courseRepo.GetByID(ctx, *req.CourseID)
		if err != nil {
			return nil, fmt.Errorf("error checking course: %w", err)
		}
		if course == nil {
			return nil, apperrors.NewResourceNotFoundError("Course not found")
		}
		if course.TutorID != tutorID {
			return nil, apperrors.NewForbiddenError("Course belongs to another tutor")
		}
	}

	// The id exists before any reservation so a failed persist can be rolled
	// back by owner rather than by position.
	meetingID := uuid.NewString()
	link := meetingLinkBase + meetingID
	meeting := &models.Meeting{
		ID:             meetingID,
		TutorID:        tutorID,
		CourseID:       req.CourseID,
		RoomID:         req.RoomID,
		StartTime:      interval.Start,
		EndTime:        interval.End,
		Status:         models.MeetingStatusScheduled,
		MeetingLink:    &link,
		ParticipantIDs: req.ParticipantIDs,
		Tutor:          tutor,
	}

	if err := s.reserve(ctx, meeting, ""); err != nil {
		return nil, err
	}

	if err := s.meetingRepo.Create(ctx, meeting); err != nil {
		s.rollbackReservation(meeting)
		s.logger.Error().Err(err).
			Str("meetingID", meetingID).
			Msg("Failed to persist meeting, reservation rolled back")
		return nil, fmt.Errorf("error creating meeting: %w", err)
	}

	s.notifier.MeetingScheduled(meeting)

	s.logger.Info().
		Str("meetingID", meetingID).
		Int64("tutorID", tutorID).
		Msg("Meeting scheduled")

	response := dto.ToMeetingResponse(meeting)
	return &response, nil
}

// Reschedule moves a meeting to a new window, possibly a different room. The
// new window is reserved before the old one is released, under a conflict
// check that ignores the meeting's own reservations; on any failure the
// original booking stays untouched.
func (s *meetingServiceImpl) Reschedule(
	ctx context.Context,
	userID int64,
	meetingID string,
	req *dto.RescheduleMeetingRequest,
) (*dto.MeetingResponse, error) {
	s.logger.Debug().
		Str("meetingID", meetingID).
		Int64("userID", userID).
		Msg("Rescheduling meeting")

	interval, err := scheduling.NewInterval(req.StartTime, req.EndTime)
	if err != nil {
		return nil, apperrors.NewInvalidMeetingRequestError(err.Error())
	}
	if interval.Start.Before(time.Now()) {
		return nil, apperrors.NewInvalidMeetingRequestError("Meeting cannot start in the past")
	}

	old, err := s.meetingRepo.GetByID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving meeting: %w", err)
	}
	if old == nil {
		return nil, apperrors.NewCustomError(apperrors.ErrMeetingNotFound, "Meeting not found")
	}
	if old.TutorID != userID {
		return nil, apperrors.NewForbiddenError("Only the tutor can reschedule a meeting")
	}
	if old.Status != models.MeetingStatusScheduled {
		return nil, apperrors.NewInvalidMeetingRequestError("Cancelled meetings cannot be rescheduled")
	}

	if req.RoomID != nil {
		room, err := s.roomRepo.GetByID(ctx, *req.RoomID)
		if err != nil {
			return nil, fmt.Errorf("error checking room: %w", err)
		}
		if room == nil {
			return nil, apperrors.NewResourceNotFoundError("Room not found")
		}
	}

	newID := uuid.NewString()
	link := meetingLinkBase + newID
	updated := &models.Meeting{
		ID:             newID,
		TutorID:        old.TutorID,
		CourseID:       old.CourseID,
		RoomID:         req.RoomID,
		StartTime:      interval.Start,
		EndTime:        interval.End,
		Status:         models.MeetingStatusScheduled,
		MeetingLink:    &link,
		ParticipantIDs: old.ParticipantIDs,
		Tutor:          old.Tutor,
	}

	// Reserve-new-then-release-old: the conflict check excludes the old
	// meeting so moving within the same window succeeds, and a conflict on
	// the new window leaves the original booking intact.
	if err := s.reserve(ctx, updated, old.ID); err != nil {
		return nil, err
	}

	if err := s.meetingRepo.Replace(ctx, old.ID, updated); err != nil {
		s.rollbackReservation(updated)
		s.logger.Error().Err(err).
			Str("oldMeetingID", old.ID).
			Str("newMeetingID", newID).
			Msg("Failed to persist reschedule, reservation rolled back")
		return nil, fmt.Errorf("error replacing meeting: %w", err)
	}

	s.releaseIntervals(old)
	s.notifier.MeetingRescheduled(old, updated)

	s.logger.Info().
		Str("oldMeetingID", old.ID).
		Str("newMeetingID", newID).
		Msg("Meeting rescheduled")

	response := dto.ToMeetingResponse(updated)
	return &response, nil
}

// Cancel marks a meeting CANCELLED and frees its intervals. Cancelling a
// meeting that is already cancelled is a no-op.
func (s *meetingServiceImpl) Cancel(ctx context.Context, userID int64, meetingID string) error {
	s.logger.Debug().
		Str("meetingID", meetingID).
		Int64("userID", userID).
		Msg("Cancelling meeting")

	meeting, err := s.meetingRepo.GetByID(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("error retrieving meeting: %w", err)
	}
	if meeting == nil {
		return apperrors.NewCustomError(apperrors.ErrMeetingNotFound, "Meeting not found")
	}
	if meeting.TutorID != userID && !containsID(meeting.ParticipantIDs, userID) {
		return apperrors.NewForbiddenError("Only the tutor or a participant can cancel a meeting")
	}
	if meeting.Status == models.MeetingStatusCancelled {
		return nil
	}

	// Persist the cancellation before releasing the intervals: a crash in
	// between leaves the slot blocked until restart, never double-booked.
	cancelled, err := s.meetingRepo.Cancel(ctx, meetingID)
	if err != nil {
		return fmt.Errorf("error cancelling meeting: %w", err)
	}
	if !cancelled {
		// Lost a race with another cancel; the winner released the intervals.
		return nil
	}

	s.releaseIntervals(meeting)
	s.notifier.MeetingCancelled(meeting)

	s.logger.Info().
		Str("meetingID", meetingID).
		Int64("userID", userID).
		Msg("Meeting cancelled")
	return nil
}

// GetByID retrieves one meeting visible to the user
func (s *meetingServiceImpl) GetByID(ctx context.Context, userID int64, meetingID string) (*dto.MeetingResponse, error) {
	meeting, err := s.meetingRepo.GetByID(ctx, meetingID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving meeting: %w", err)
	}
	if meeting == nil {
		return nil, apperrors.NewCustomError(apperrors.ErrMeetingNotFound, "Meeting not found")
	}
	if meeting.TutorID != userID && !containsID(meeting.ParticipantIDs, userID) {
		return nil, apperrors.NewForbiddenError("You are not part of this meeting")
	}

	response := dto.ToMeetingResponse(meeting)
	return &response, nil
}

// ListForUser retrieves the user's meetings, as tutor or participant
func (s *meetingServiceImpl) ListForUser(ctx context.Context, userID int64) (*dto.MeetingListResponse, error) {
	meetings, err := s.meetingRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing meetings: %w", err)
	}

	response := &dto.MeetingListResponse{Meetings: []dto.MeetingResponse{}}
	for _, meeting := range meetings {
		response.Meetings = append(response.Meetings, dto.ToMeetingResponse(meeting))
	}
	return response, nil
}

// RestoreIndex rebuilds the availability index from persisted meetings. Must
// run at startup before the server accepts bookings.
func (s *meetingServiceImpl) RestoreIndex(ctx context.Context) error {
	meetings, err := s.meetingRepo.ListScheduledFrom(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("error loading meetings for index restore: %w", err)
	}

	entries := make(map[scheduling.ResourceKey][]scheduling.Reservation)
	for _, meeting := range meetings {
		res := scheduling.Reservation{Interval: meeting.Interval(), MeetingID: meeting.ID}
		for _, key := range meeting.ResourceKeys() {
			entries[key] = append(entries[key], res)
		}
	}
	s.index.Restore(entries)

	s.logger.Info().
		Int("meetingCount", len(meetings)).
		Int("resourceCount", len(entries)).
		Msg("Availability index restored")
	return nil
}

// reserve takes the meeting's resource locks, checks every resource for a
// clash and commits the reservations. excludeMeetingID ignores reservations
// owned by that meeting during the conflict check.
func (s *meetingServiceImpl) reserve(ctx context.Context, meeting *models.Meeting, excludeMeetingID string) error {
	keys := meeting.ResourceKeys()
	interval := meeting.Interval()

	claim, err := s.index.Acquire(ctx, keys...)
	if err != nil {
		if errors.Is(err, scheduling.ErrLockTimeout) {
			return apperrors.NewCustomError(apperrors.ErrSchedulerBusy,
				"Scheduler is busy, please retry")
		}
		return fmt.Errorf("error acquiring resource locks: %w", err)
	}
	defer claim.Release()

	for _, key := range keys {
		if existing := claim.Conflict(key, interval, excludeMeetingID); existing != nil {
			return apperrors.NewConflictError(key, *existing)
		}
	}
	for _, key := range keys {
		claim.Reserve(key, scheduling.Reservation{Interval: interval, MeetingID: meeting.ID})
	}
	return nil
}

// rollbackReservation frees a reservation whose meeting failed to persist.
// Runs on a fresh context: the original request may already be cancelled and
// the index must not keep a phantom hold.
func (s *meetingServiceImpl) rollbackReservation(meeting *models.Meeting) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.index.ReleaseMeeting(ctx, meeting.ID, meeting.ResourceKeys()...); err != nil {
		s.logger.Error().Err(err).
			Str("meetingID", meeting.ID).
			Msg("Failed to roll back reservation")
	}
}

func (s *meetingServiceImpl) releaseIntervals(meeting *models.Meeting) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.index.ReleaseMeeting(ctx, meeting.ID, meeting.ResourceKeys()...); err != nil {
		s.logger.Error().Err(err).
			Str("meetingID", meeting.ID).
			Msg("Failed to release meeting intervals")
	}
}

// validateTutor checks the tutor exists and holds the TUTOR role
func (s *meetingServiceImpl) validateTutor(ctx context.Context, tutorID int64) (*models.User, error) {
	tutor, err := s.userRepo.FindByID(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("error checking tutor: %w", err)
	}
	if tutor == nil {
		return nil, apperrors.NewResourceNotFoundError("Tutor not found")
	}
	if tutor.RoleType != models.RoleTutor {
		return nil, apperrors.NewForbiddenError("Only tutors can schedule meetings")
	}
	return tutor, nil
}

// validateParticipants checks every participant id refers to an existing user
// and that the tutor is not listed as their own participant
func (s *meetingServiceImpl) validateParticipants(ctx context.Context, tutorID int64, participantIDs []int64) error {
	if len(participantIDs) == 0 {
		return apperrors.NewInvalidMeetingRequestError("A meeting needs at least one participant")
	}
	for _, id := range participantIDs {
		if id == tutorID {
			return apperrors.NewInvalidMeetingRequestError("The tutor cannot be listed as a participant")
		}
	}

	existing, err := s.userRepo.ExistingIDs(ctx, participantIDs)
	if err != nil {
		return fmt.Errorf("error checking participants: %w", err)
	}
	if len(existing) != len(uniqueIDs(participantIDs)) {
		missing := missingIDs(participantIDs, existing)
		return apperrors.NewResourceNotFoundError(fmt.Sprintf("Unknown participants: %v", missing))
	}
	return nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	var out []int64
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func missingIDs(requested, existing []int64) []int64 {
	present := make(map[int64]bool, len(existing))
	for _, id := range existing {
		present[id] = true
	}
	var missing []int64
	for _, id := range uniqueIDs(requested) {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing
}
