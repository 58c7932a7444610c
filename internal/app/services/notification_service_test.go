package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorium/backend/internal/app/models"
	"github.com/tutorium/backend/internal/pkg/websocket"
)

type bridgeFixture struct {
	bridge   *NotificationBridge
	chats    *fakeChatStore
	messages *fakeMessageStore
	hub      *fakeDeliverer
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	t.Helper()
	chats := newFakeChatStore()
	messages := newFakeMessageStore()
	hub := &fakeDeliverer{store: messages}
	users := newFakeUserStore(
		&models.User{ID: 1, FirstName: "Taylor", LastName: "Nguyen", RoleType: models.RoleTutor},
		&models.User{ID: 2, FirstName: "Alex", LastName: "Kim", RoleType: models.RoleStudent},
		&models.User{ID: 3, FirstName: "Sam", LastName: "Rivera", RoleType: models.RoleStudent},
	)
	chatService := NewChatService(chats, messages, users, hub, zerolog.Nop())
	courses := &fakeCourseStore{courses: map[int64]*models.Course{
		5: {ID: 5, TutorID: 1, Title: "Calculus I"},
	}}
	bridge := NewNotificationBridge(chatService, messages, courses, hub, zerolog.Nop())

	go bridge.Run()
	t.Cleanup(bridge.Shutdown)

	return &bridgeFixture{bridge: bridge, chats: chats, messages: messages, hub: hub}
}

func testMeeting() *models.Meeting {
	courseID := int64(5)
	link := "https://meet.tutorium.app/abc"
	return &models.Meeting{
		ID:             "abc",
		TutorID:        1,
		CourseID:       &courseID,
		StartTime:      at(10, 0),
		EndTime:        at(11, 0),
		Status:         models.MeetingStatusScheduled,
		MeetingLink:    &link,
		ParticipantIDs: []int64{2, 3},
	}
}

func TestBridgeMeetingScheduled(t *testing.T) {
	fx := newBridgeFixture(t)

	fx.bridge.MeetingScheduled(testMeeting())

	require.Eventually(t, func() bool {
		return len(fx.hub.byType(websocket.TypeNotification)) == 2
	}, 2*time.Second, 10*time.Millisecond, "every participant gets a push")

	// A direct chat with the tutor exists per participant and carries the
	// persisted notification message.
	ctx := context.Background()
	for _, participantID := range []int64{2, 3} {
		chat, err := fx.chats.FindDirect(ctx, 1, participantID)
		require.NoError(t, err)
		require.NotNil(t, chat, "direct chat with participant %d", participantID)

		count, err := fx.messages.CountUnread(ctx, chat.ID, participantID)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "notification counts as unread for participant %d", participantID)
	}

	pushes := fx.hub.byType(websocket.TypeNotification)
	for i, push := range pushes {
		assert.Equal(t, int64(1), push.SenderID)
		assert.Contains(t, push.Content, "Calculus I")
		assert.Contains(t, push.Content, "https://meet.tutorium.app/abc")
		assert.True(t, fx.hub.persisted[i], "push must follow the database write")
	}
}

func TestBridgeMeetingCancelled(t *testing.T) {
	fx := newBridgeFixture(t)

	fx.bridge.MeetingCancelled(testMeeting())

	require.Eventually(t, func() bool {
		return len(fx.hub.byType(websocket.TypeNotification)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	for _, push := range fx.hub.byType(websocket.TypeNotification) {
		assert.Contains(t, push.Content, "cancelled")
	}
}

func TestBridgeMeetingRescheduled(t *testing.T) {
	fx := newBridgeFixture(t)

	old := testMeeting()
	updated := testMeeting()
	updated.ID = "def"
	updated.StartTime = at(14, 0)
	updated.EndTime = at(15, 0)

	fx.bridge.MeetingRescheduled(old, updated)

	require.Eventually(t, func() bool {
		return len(fx.hub.byType(websocket.TypeNotification)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	for _, push := range fx.hub.byType(websocket.TypeNotification) {
		assert.Contains(t, push.Content, "moved")
	}
}

func TestBridgeReusesDirectChat(t *testing.T) {
	fx := newBridgeFixture(t)

	meeting := testMeeting()
	meeting.ParticipantIDs = []int64{2}

	fx.bridge.MeetingScheduled(meeting)
	require.Eventually(t, func() bool {
		return len(fx.hub.byType(websocket.TypeNotification)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	fx.bridge.MeetingCancelled(meeting)
	require.Eventually(t, func() bool {
		return len(fx.hub.byType(websocket.TypeNotification)) == 2
	}, 2*time.Second, 10*time.Millisecond)

	// Both notifications landed in the one direct chat.
	assert.Len(t, fx.chats.chats, 1)
	chat, err := fx.chats.FindDirect(context.Background(), 1, 2)
	require.NoError(t, err)
	require.NotNil(t, chat)

	count, err := fx.messages.CountUnread(context.Background(), chat.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
