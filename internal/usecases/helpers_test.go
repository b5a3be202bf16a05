package usecases

import (
	"context"
	"math/rand"
	"sync"
	"testing"

	"sigma_ai/internal/infrastructure"
	"sigma_ai/internal/interfaces"
	"sigma_ai/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStorage is an in-memory ObjectStorage.
type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memStorage) Upload(_ context.Context, path, contentType string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	m.types[path] = contentType
	return nil
}

func (m *memStorage) PublicURL(path string) string { return "https://cdn.test/" + path }

func (m *memStorage) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

type fakeImageProvider struct {
	name string
	img  *interfaces.GeneratedImage
	err  error
}

func (f *fakeImageProvider) Name() string { return f.name }

func (f *fakeImageProvider) GenerateImage(context.Context, string, interfaces.ImageOptions) (*interfaces.GeneratedImage, error) {
	return f.img, f.err
}

type testEnv struct {
	store   *repository.SQLiteStore
	storage *memStorage
	router  *Router
	media   *MediaService
	chat    *ChatService
	files   *FileService
}

func newTestEnv(t *testing.T, chatProviders []interfaces.ChatProvider, imageProviders []interfaces.ImageProvider, dailyLimit int) *testEnv {
	t.Helper()
	db, err := infrastructure.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	store := repository.NewSQLiteStore(db)
	t.Cleanup(store.Close)

	log := zap.NewNop()
	router, err := NewRouter(chatProviders, NewResponder(rand.NewSource(1)), RouterOptions{}, log)
	require.NoError(t, err)

	storage := newMemStorage()
	media := NewMediaService(store, storage, imageProviders, infrastructure.NewPlaceholderMedia(), log)
	chat := NewChatService(store, router, media, infrastructure.NewSessionManager(), dailyLimit, log)
	analyzer := NewFileAnalyzer(router, nil, storage, log)
	files := NewFileService(store, storage, analyzer, chat, log)

	return &testEnv{store: store, storage: storage, router: router, media: media, chat: chat, files: files}
}
