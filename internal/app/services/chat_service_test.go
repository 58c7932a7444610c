package services

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorium/backend/internal/app/models"
	"github.com/tutorium/backend/internal/app/models/dto"
	"github.com/tutorium/backend/internal/pkg/apperrors"
	"github.com/tutorium/backend/internal/pkg/websocket"
)

// fakeChatStore implements chatStore in memory.
type fakeChatStore struct {
	mu        sync.Mutex
	nextID    int64
	chats     map[int64]*models.Chat
	summaries []*models.ChatSummary
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{chats: make(map[int64]*models.Chat)}
}

func (f *fakeChatStore) Create(ctx context.Context, chat *models.Chat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	chat.ID = f.nextID
	chat.CreatedAt = time.Now()
	f.chats[chat.ID] = chat
	return nil
}

func (f *fakeChatStore) GetByID(ctx context.Context, id int64) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.chats[id], nil
}

func (f *fakeChatStore) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.chats, id)
	return nil
}

func (f *fakeChatStore) FindDirect(ctx context.Context, userA, userB int64) (*models.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := []int64{userA, userB}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	for _, chat := range f.chats {
		if chat.IsGroup || len(chat.ParticipantIDs) != 2 {
			continue
		}
		got := append([]int64(nil), chat.ParticipantIDs...)
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		if got[0] == want[0] && got[1] == want[1] {
			return chat, nil
		}
	}
	return nil, nil
}

func (f *fakeChatStore) SummariesForUser(ctx context.Context, userID int64) ([]*models.ChatSummary, error) {
	return f.summaries, nil
}

// fakeMessageStore implements messageStore in memory.
type fakeMessageStore struct {
	mu       sync.Mutex
	nextID   int64
	messages map[int64]*models.Message
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{messages: make(map[int64]*models.Message)}
}

func (f *fakeMessageStore) Create(ctx context.Context, message *models.Message) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	message.ID = f.nextID
	message.SentAt = time.Now()
	f.messages[message.ID] = message
	return message.ID, nil
}

func (f *fakeMessageStore) GetByChatID(ctx context.Context, chatID int64, before *time.Time, limit int) ([]*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Message
	for _, m := range f.messages {
		if m.ChatID != chatID {
			continue
		}
		if before != nil && !m.SentAt.Before(*before) {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeMessageStore) MarkRead(ctx context.Context, chatID, participantID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var marked int64
	now := time.Now()
	for _, m := range f.messages {
		if m.ChatID == chatID && m.ReceiverID == participantID && !m.IsRead {
			m.IsRead = true
			m.ReadAt = &now
			marked++
		}
	}
	return marked, nil
}

func (f *fakeMessageStore) CountUnread(ctx context.Context, chatID, participantID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, m := range f.messages {
		if m.ChatID == chatID && m.ReceiverID == participantID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeMessageStore) has(id int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.messages[id]
	return ok
}

// fakeDeliverer records pushes and whether each pushed message was already
// persisted at delivery time.
type fakeDeliverer struct {
	mu        sync.Mutex
	store     *fakeMessageStore
	delivered []*websocket.Message
	persisted []bool
}

func (f *fakeDeliverer) Deliver(userID int64, message *websocket.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, message)
	if f.store != nil {
		f.persisted = append(f.persisted, message.ID != 0 && f.store.has(message.ID))
	}
}

func (f *fakeDeliverer) byType(eventType string) []*websocket.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*websocket.Message
	for _, m := range f.delivered {
		if m.Type == eventType {
			out = append(out, m)
		}
	}
	return out
}

type chatFixture struct {
	service  ChatService
	chats    *fakeChatStore
	messages *fakeMessageStore
	hub      *fakeDeliverer
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	chats := newFakeChatStore()
	messages := newFakeMessageStore()
	hub := &fakeDeliverer{store: messages}
	users := newFakeUserStore(
		&models.User{ID: 1, FirstName: "Taylor", LastName: "Nguyen", RoleType: models.RoleTutor},
		&models.User{ID: 2, FirstName: "Alex", LastName: "Kim", RoleType: models.RoleStudent},
		&models.User{ID: 3, FirstName: "Sam", LastName: "Rivera", RoleType: models.RoleStudent},
	)
	service := NewChatService(chats, messages, users, hub, zerolog.Nop())
	return &chatFixture{service: service, chats: chats, messages: messages, hub: hub}
}

func TestCreateChat(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	t.Run("direct chat", func(t *testing.T) {
		resp, err := fx.service.CreateChat(ctx, 1, &dto.CreateChatRequest{ParticipantIDs: []int64{2}})
		require.NoError(t, err)
		assert.ElementsMatch(t, []int64{1, 2}, resp.ParticipantIDs)
		assert.False(t, resp.IsGroup)
	})

	t.Run("duplicate direct chat returns the existing one", func(t *testing.T) {
		first, err := fx.service.CreateChat(ctx, 1, &dto.CreateChatRequest{ParticipantIDs: []int64{2}})
		require.NoError(t, err)
		second, err := fx.service.CreateChat(ctx, 2, &dto.CreateChatRequest{ParticipantIDs: []int64{1}})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("direct chat with three users", func(t *testing.T) {
		_, err := fx.service.CreateChat(ctx, 1, &dto.CreateChatRequest{ParticipantIDs: []int64{2, 3}})
		assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	})

	t.Run("group chat", func(t *testing.T) {
		title := "Calculus study group"
		resp, err := fx.service.CreateChat(ctx, 1, &dto.CreateChatRequest{
			ParticipantIDs: []int64{2, 3},
			IsGroup:        true,
			Title:          &title,
		})
		require.NoError(t, err)
		assert.True(t, resp.IsGroup)
		assert.ElementsMatch(t, []int64{1, 2, 3}, resp.ParticipantIDs)
	})

	t.Run("unknown participant", func(t *testing.T) {
		_, err := fx.service.CreateChat(ctx, 1, &dto.CreateChatRequest{ParticipantIDs: []int64{99}})
		assert.ErrorIs(t, err, apperrors.ErrResourceNotFound)
	})
}

func TestEnsureDirectChat(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	chat, err := fx.service.EnsureDirectChat(ctx, 1, 2)
	require.NoError(t, err)

	again, err := fx.service.EnsureDirectChat(ctx, 2, 1)
	require.NoError(t, err)
	assert.Equal(t, chat.ID, again.ID)
}

func TestPostMessage(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	chat, err := fx.service.EnsureDirectChat(ctx, 1, 2)
	require.NoError(t, err)

	t.Run("delivers after persisting", func(t *testing.T) {
		resp, err := fx.service.PostMessage(ctx, 1, chat.ID, &dto.SendMessageRequest{
			ReceiverID: 2,
			Content:    "See you at ten",
		})
		require.NoError(t, err)
		assert.NotZero(t, resp.ID)
		assert.Equal(t, "Taylor Nguyen", resp.SenderName)
		assert.False(t, resp.IsRead)

		pushes := fx.hub.byType(websocket.TypeMessage)
		require.Len(t, pushes, 1)
		assert.Equal(t, resp.ID, pushes[0].ID)
		require.Len(t, fx.hub.persisted, 1)
		assert.True(t, fx.hub.persisted[0], "push must happen only after the row exists")
	})

	t.Run("sender cannot be receiver", func(t *testing.T) {
		_, err := fx.service.PostMessage(ctx, 1, chat.ID, &dto.SendMessageRequest{ReceiverID: 1, Content: "hi"})
		assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	})

	t.Run("receiver outside the chat", func(t *testing.T) {
		_, err := fx.service.PostMessage(ctx, 1, chat.ID, &dto.SendMessageRequest{ReceiverID: 3, Content: "hi"})
		assert.ErrorIs(t, err, apperrors.ErrBadRequest)
	})

	t.Run("sender outside the chat", func(t *testing.T) {
		_, err := fx.service.PostMessage(ctx, 3, chat.ID, &dto.SendMessageRequest{ReceiverID: 1, Content: "hi"})
		assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
	})

	t.Run("unknown chat", func(t *testing.T) {
		_, err := fx.service.PostMessage(ctx, 1, 999, &dto.SendMessageRequest{ReceiverID: 2, Content: "hi"})
		assert.ErrorIs(t, err, apperrors.ErrChatNotFound)
	})
}

func TestGetMessages(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	chat, err := fx.service.EnsureDirectChat(ctx, 1, 2)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := fx.service.PostMessage(ctx, 1, chat.ID, &dto.SendMessageRequest{ReceiverID: 2, Content: "msg"})
		require.NoError(t, err)
	}

	messages, err := fx.service.GetMessages(ctx, 2, chat.ID, &dto.GetMessagesRequest{Limit: 3})
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Greater(t, messages[0].ID, messages[1].ID, "newest first")

	_, err = fx.service.GetMessages(ctx, 3, chat.ID, &dto.GetMessagesRequest{})
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
}

func TestMarkRead(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	chat, err := fx.service.EnsureDirectChat(ctx, 1, 2)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := fx.service.PostMessage(ctx, 1, chat.ID, &dto.SendMessageRequest{ReceiverID: 2, Content: "msg"})
		require.NoError(t, err)
	}

	count, err := fx.messages.CountUnread(ctx, chat.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	resp, err := fx.service.MarkRead(ctx, 2, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.MarkedRead)

	count, err = fx.messages.CountUnread(ctx, chat.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// The sender gets a read receipt.
	receipts := fx.hub.byType(websocket.TypeRead)
	require.Len(t, receipts, 1)
	assert.Equal(t, int64(2), receipts[0].SenderID)

	// Marking again is a no-op and sends no further receipt.
	resp, err = fx.service.MarkRead(ctx, 2, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, resp.MarkedRead)
	assert.Len(t, fx.hub.byType(websocket.TypeRead), 1)
}

func TestUnreadSummaries(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	title := "Algebra"
	fx.chats.summaries = []*models.ChatSummary{
		{ChatID: 1, UnreadCount: 2, Receiver: &models.User{ID: 1, FirstName: "Taylor", LastName: "Nguyen"}},
		{ChatID: 2, IsGroup: true, Title: &title, UnreadCount: 0},
	}

	summaries, err := fx.service.UnreadSummaries(ctx, 2)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 2, summaries[0].UnreadCount)
	require.NotNil(t, summaries[0].Receiver)
	assert.Equal(t, "Taylor", summaries[0].Receiver.FirstName)
	assert.Equal(t, 0, summaries[1].UnreadCount)
}

func TestDeleteChat(t *testing.T) {
	fx := newChatFixture(t)
	ctx := context.Background()

	chat, err := fx.service.EnsureDirectChat(ctx, 1, 2)
	require.NoError(t, err)

	err = fx.service.DeleteChat(ctx, 3, chat.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)

	// A participant who did not create the chat cannot delete it.
	err = fx.service.DeleteChat(ctx, 2, chat.ID)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	require.NoError(t, fx.service.DeleteChat(ctx, 1, chat.ID))

	err = fx.service.DeleteChat(ctx, 1, chat.ID)
	assert.ErrorIs(t, err, apperrors.ErrChatNotFound)
}
