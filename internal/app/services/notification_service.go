package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/tutorium/backend/internal/app/models"
	"github.com/tutorium/backend/internal/pkg/websocket"
)

// Booking lifecycle event kinds handled by the bridge.
const (
	eventMeetingScheduled   = "MEETING_SCHEDULED"
	eventMeetingCancelled   = "MEETING_CANCELLED"
	eventMeetingRescheduled = "MEETING_RESCHEDULED"
)

// bookingEvent is one meeting lifecycle change queued for fan-out
type bookingEvent struct {
	kind    string
	meeting *models.Meeting
	old     *models.Meeting
}

// NotificationBridge turns booking events into chat messages. For every
// participant it makes sure a direct chat with the tutor exists, persists a
// system message there and pushes a notification to connected clients. The
// persisted message feeds the participant's unread count like any other, so
// nothing is lost while they are offline.
type NotificationBridge struct {
	events      chan bookingEvent
	quit        chan struct{}
	chatService ChatService
	messageRepo messageStore
	courseRepo  courseStore
	hub         deliverer
	logger      zerolog.Logger
}

// NewNotificationBridge creates a new NotificationBridge
func NewNotificationBridge(
	chatService ChatService,
	messageRepo messageStore,
	courseRepo courseStore,
	hub deliverer,
	logger zerolog.Logger,
) *NotificationBridge {
	return &NotificationBridge{
		events:      make(chan bookingEvent, 256),
		quit:        make(chan struct{}),
		chatService: chatService,
		messageRepo: messageRepo,
		courseRepo:  courseRepo,
		hub:         hub,
		logger:      logger,
	}
}

// MeetingScheduled implements MeetingNotifier
func (b *NotificationBridge) MeetingScheduled(meeting *models.Meeting) {
	b.publish(bookingEvent{kind: eventMeetingScheduled, meeting: meeting})
}

// MeetingCancelled implements MeetingNotifier
func (b *NotificationBridge) MeetingCancelled(meeting *models.Meeting) {
	b.publish(bookingEvent{kind: eventMeetingCancelled, meeting: meeting})
}

// MeetingRescheduled implements MeetingNotifier
func (b *NotificationBridge) MeetingRescheduled(old, updated *models.Meeting) {
	b.publish(bookingEvent{kind: eventMeetingRescheduled, meeting: updated, old: old})
}

// publish queues an event without blocking the booking path. A full queue
// drops the notification; the meeting itself is already persisted.
func (b *NotificationBridge) publish(event bookingEvent) {
	select {
	case b.events <- event:
	default:
		b.logger.Warn().
			Str("kind", event.kind).
			Str("meetingID", event.meeting.ID).
			Msg("Notification queue full, event dropped")
	}
}

// Run drains booking events until Shutdown is called
func (b *NotificationBridge) Run() {
	for {
		select {
		case event := <-b.events:
			b.handle(event)
		case <-b.quit:
			return
		}
	}
}

// Shutdown stops the run loop
func (b *NotificationBridge) Shutdown() {
	close(b.quit)
}

// handle fans one booking event out to every participant
func (b *NotificationBridge) handle(event bookingEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	content := b.describe(ctx, event)
	meeting := event.meeting

	for _, participantID := range meeting.ParticipantIDs {
		chat, err := b.chatService.EnsureDirectChat(ctx, meeting.TutorID, participantID)
		if err != nil {
			b.logger.Error().Err(err).
				Str("meetingID", meeting.ID).
				Int64("participantID", participantID).
				Msg("Failed to ensure direct chat for notification")
			continue
		}

		message := &models.Message{
			ChatID:     chat.ID,
			SenderID:   meeting.TutorID,
			ReceiverID: participantID,
			Content:    content,
		}
		if _, err := b.messageRepo.Create(ctx, message); err != nil {
			b.logger.Error().Err(err).
				Str("meetingID", meeting.ID).
				Int64("chatID", chat.ID).
				Msg("Failed to persist notification message")
			continue
		}

		b.hub.Deliver(participantID, &websocket.Message{
			Type:       websocket.TypeNotification,
			ChatID:     chat.ID,
			SenderID:   meeting.TutorID,
			ReceiverID: participantID,
			Content:    content,
			Timestamp:  message.SentAt,
			ID:         message.ID,
		})
	}

	b.logger.Debug().
		Str("kind", event.kind).
		Str("meetingID", meeting.ID).
		Int("participantCount", len(meeting.ParticipantIDs)).
		Msg("Booking event fanned out")
}

// describe renders the notification text for an event
func (b *NotificationBridge) describe(ctx context.Context, event bookingEvent) string {
	meeting := event.meeting

	subject := "Your tutoring session"
	if meeting.CourseID != nil {
		if course, err := b.courseRepo.GetByID(ctx, *meeting.CourseID); err == nil && course != nil {
			subject = fmt.Sprintf("Your %s session", course.Title)
		}
	}

	window := fmt.Sprintf("%s - %s",
		meeting.StartTime.Format("Mon, 02 Jan 2006 15:04"),
		meeting.EndTime.Format("15:04 MST"))

	switch event.kind {
	case eventMeetingScheduled:
		text := fmt.Sprintf("%s is scheduled for %s.", subject, window)
		if meeting.MeetingLink != nil {
			text += " Join at " + *meeting.MeetingLink
		}
		return text
	case eventMeetingCancelled:
		return fmt.Sprintf("%s on %s has been cancelled.", subject, window)
	case eventMeetingRescheduled:
		text := fmt.Sprintf("%s has been moved to %s.", subject, window)
		if event.old != nil {
			text = fmt.Sprintf("%s originally on %s has been moved to %s.",
				subject,
				event.old.StartTime.Format("Mon, 02 Jan 2006 15:04"),
				window)
		}
		if meeting.MeetingLink != nil {
			text += " Join at " + *meeting.MeetingLink
		}
		return text
	default:
		return fmt.Sprintf("%s has been updated.", subject)
	}
}
