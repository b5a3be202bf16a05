package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"sigma_ai/internal/entities"
	"sigma_ai/internal/interfaces"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testUserPrefix marks rows written by store tests so a shared database can be cleaned.
const testUserPrefix = "storetest-"

func newTestUser() string {
	return testUserPrefix + uuid.NewString()
}

// runChatStoreTests checks the behaviour both ChatStore implementations must share.
func runChatStoreTests(t *testing.T, newStore func(t *testing.T) interfaces.ChatStore) {
	t.Run("Conversations", func(t *testing.T) { testConversations(t, newStore(t)) })
	t.Run("MessagesFollowConversation", func(t *testing.T) { testMessagesFollowConversation(t, newStore(t)) })
	t.Run("MessageMetadata", func(t *testing.T) { testMessageMetadata(t, newStore(t)) })
	t.Run("GeneratedMedia", func(t *testing.T) { testGeneratedMedia(t, newStore(t)) })
	t.Run("Files", func(t *testing.T) { testFiles(t, newStore(t)) })
	t.Run("Usage", func(t *testing.T) { testUsage(t, newStore(t)) })
	t.Run("ReserveSentIsAtomic", func(t *testing.T) { testReserveSentIsAtomic(t, newStore(t)) })
}

func testConversations(t *testing.T, store interfaces.ChatStore) {
	ctx := context.Background()
	owner, other := newTestUser(), newTestUser()

	first, err := store.CreateConversation(ctx, owner, "")
	require.NoError(t, err)
	assert.Equal(t, entities.DefaultConversationTitle, first.Title)

	time.Sleep(2 * time.Millisecond)
	second, err := store.CreateConversation(ctx, owner, "Recetas")
	require.NoError(t, err)
	_, err = store.CreateConversation(ctx, other, "Otro usuario")
	require.NoError(t, err)

	list, err := store.ListConversations(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest conversation first")

	time.Sleep(2 * time.Millisecond)
	renamed, err := store.UpdateConversationTitle(ctx, first.ID, "Viajes")
	require.NoError(t, err)
	assert.Equal(t, "Viajes", renamed.Title)
	assert.True(t, renamed.UpdatedAt.After(first.UpdatedAt))

	list, err = store.ListConversations(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, first.ID, list[0].ID, "renaming bumps the conversation to the top")

	missing := uuid.NewString()
	_, err = store.GetConversation(ctx, missing)
	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.ErrorIs(t, store.TouchConversation(ctx, missing), entities.ErrNotFound)
	assert.ErrorIs(t, store.DeleteConversation(ctx, missing), entities.ErrNotFound)

	_, err = store.GetConversation(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func testMessagesFollowConversation(t *testing.T, store interfaces.ChatStore) {
	ctx := context.Background()
	conv, err := store.CreateConversation(ctx, newTestUser(), "Chat")
	require.NoError(t, err)

	for _, content := range []string{"uno", "dos", "tres", "cuatro"} {
		msg := &entities.Message{ConversationID: conv.ID, Content: content, Sender: entities.SenderUser}
		require.NoError(t, store.CreateMessage(ctx, msg))
		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, entities.MessageTypeText, msg.MessageType)
		time.Sleep(time.Millisecond)
	}

	all, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "uno", all[0].Content)
	assert.Equal(t, "cuatro", all[3].Content)
	assert.NotNil(t, all[0].Metadata)

	recent, err := store.RecentMessages(ctx, conv.ID, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "tres", recent[0].Content)
	assert.Equal(t, "cuatro", recent[1].Content)

	require.NoError(t, store.DeleteConversation(ctx, conv.ID))
	all, err = store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.Empty(t, all, "messages are deleted with their conversation")
}

func testMessageMetadata(t *testing.T, store interfaces.ChatStore) {
	ctx := context.Background()
	conv, err := store.CreateConversation(ctx, newTestUser(), "Chat")
	require.NoError(t, err)

	msg := &entities.Message{
		ConversationID: conv.ID,
		Content:        "imagen",
		Sender:         entities.SenderAI,
		MessageType:    entities.MessageTypeImage,
		Metadata:       map[string]any{"image_url": "https://example.com/a.png"},
	}
	require.NoError(t, store.CreateMessage(ctx, msg))

	all, err := store.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, entities.MessageTypeImage, all[0].MessageType)
	assert.Equal(t, "https://example.com/a.png", all[0].Metadata["image_url"])
}

func testGeneratedMedia(t *testing.T, store interfaces.ChatStore) {
	ctx := context.Background()
	user := newTestUser()

	m, err := store.CreateGeneratedMedia(ctx, user, entities.MediaTypeImage, "un gato", map[string]any{"size": "1024x1024"})
	require.NoError(t, err)
	assert.Equal(t, entities.MediaStatusGenerating, m.Status)
	assert.Nil(t, m.StoragePath)

	done, err := store.CompleteGeneratedMedia(ctx, m.ID, user+"/media/x.png")
	require.NoError(t, err)
	assert.Equal(t, entities.MediaStatusCompleted, done.Status)
	require.NotNil(t, done.StoragePath)
	assert.Equal(t, user+"/media/x.png", *done.StoragePath)
	assert.Equal(t, "1024x1024", done.GenerationParams["size"])

	time.Sleep(2 * time.Millisecond)
	failed, err := store.CreateGeneratedMedia(ctx, user, entities.MediaTypeVideo, "olas", nil)
	require.NoError(t, err)
	require.NoError(t, store.FailGeneratedMedia(ctx, failed.ID))

	list, err := store.ListGeneratedMedia(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, failed.ID, list[0].ID)
	assert.Equal(t, entities.MediaStatusError, list[0].Status)

	_, err = store.CompleteGeneratedMedia(ctx, uuid.NewString(), "x")
	assert.ErrorIs(t, err, entities.ErrNotFound)
}

func testFiles(t *testing.T, store interfaces.ChatStore) {
	ctx := context.Background()
	user := newTestUser()

	rec := &entities.FileRecord{
		UserID:      user,
		Filename:    "notas.txt",
		FileType:    "text/plain",
		FileSize:    12,
		StoragePath: user + "/1.txt",
	}
	require.NoError(t, store.CreateFile(ctx, rec))
	assert.Equal(t, entities.FileStatusProcessing, rec.Status)

	require.NoError(t, store.UpdateFileAnalysis(ctx, rec.ID, map[string]any{"analysis_type": "text"}, entities.FileStatusCompleted))

	got, err := store.GetFile(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.FileStatusCompleted, got.Status)
	assert.Equal(t, "text", got.AnalysisResult["analysis_type"])
	assert.EqualValues(t, 12, got.FileSize)

	files, err := store.ListFiles(ctx, user)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	missing := uuid.NewString()
	_, err = store.GetFile(ctx, missing)
	assert.ErrorIs(t, err, entities.ErrNotFound)
	assert.ErrorIs(t, store.UpdateFileAnalysis(ctx, missing, nil, entities.FileStatusError), entities.ErrNotFound)
}

func testUsage(t *testing.T, store interfaces.ChatStore) {
	ctx := context.Background()
	user := newTestUser()

	sent, received, err := store.TodayUsage(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, sent)
	assert.Zero(t, received)

	for i := 0; i < 2; i++ {
		ok, err := store.ReserveSent(ctx, user, 2)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := store.ReserveSent(ctx, user, 2)
	require.NoError(t, err)
	assert.False(t, ok, "limit reached")
	require.NoError(t, store.IncrementReceived(ctx, user))

	sent, received, err = store.TodayUsage(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 1, received)

	// Zero means unlimited.
	ok, err = store.ReserveSent(ctx, user, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	sent, _, err = store.TodayUsage(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
}

func testReserveSentIsAtomic(t *testing.T, store interfaces.ChatStore) {
	ctx := context.Background()
	user := newTestUser()
	const limit = 5

	var mu sync.Mutex
	counted := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.ReserveSent(ctx, user, limit)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				counted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, limit, counted)
	sent, _, err := store.TodayUsage(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, limit, sent)
}
