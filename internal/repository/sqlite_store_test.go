package repository

import (
	"context"
	"testing"

	"sigma_ai/internal/infrastructure"
	"sigma_ai/internal/interfaces"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := infrastructure.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	store := NewSQLiteStore(db)
	t.Cleanup(store.Close)
	return store
}

func TestSQLiteStore(t *testing.T) {
	runChatStoreTests(t, func(t *testing.T) interfaces.ChatStore { return newTestStore(t) })
}
