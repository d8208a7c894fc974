package vault

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aitsambajwa-iss/Checkoutly/internal/cryptoutil"
)

const testKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "vault.db"), testKey)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_PutReveal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := Entry{
		Token:     "tok_0123456789abcdef",
		Kind:      "card",
		Value:     "4111111111111111",
		ChatID:    "chat_1",
		TurnID:    "turn_1",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, store.Put(ctx, entry))

	got, err := store.Reveal(ctx, entry.Token)
	require.NoError(t, err)
	assert.Equal(t, entry.Value, got.Value)
	assert.Equal(t, "card", got.Kind)
	assert.Equal(t, "chat_1", got.ChatID)
	assert.Equal(t, "turn_1", got.TurnID)
}

func TestSQLiteStore_ValueNotStoredInPlaintext(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "vault.db")
	store, err := NewSQLiteStore(dbPath, testKey)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(context.Background(), Entry{Token: "tok_a", Kind: "email", Value: "jane@example.com", ChatID: "c"}))

	raw, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	defer raw.Close()
	var stored string
	require.NoError(t, raw.QueryRow(`SELECT encrypted_value FROM secure_tokens WHERE token = 'tok_a'`).Scan(&stored))
	assert.NotContains(t, stored, "jane@example.com")
}

func TestSQLiteStore_WriteOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := Entry{Token: "tok_dup", Kind: "phone", Value: "5551234567", ChatID: "c"}

	require.NoError(t, store.Put(ctx, e))
	err := store.Put(ctx, e)
	assert.ErrorIs(t, err, ErrTokenExists)
}

func TestSQLiteStore_RevealUnknown(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Reveal(context.Background(), "tok_missing")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestSQLiteStore_Count(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, Entry{Token: "tok_1", Kind: "name", Value: "John", ChatID: "a"}))
	require.NoError(t, store.Put(ctx, Entry{Token: "tok_2", Kind: "name", Value: "Jane", ChatID: "b"}))

	n, err := store.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.Count(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewSQLiteStore_InvalidKey(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "vault.db"), "too-short")
	assert.ErrorIs(t, err, cryptoutil.ErrInvalidKey)
}

func TestDiscard(t *testing.T) {
	assert.NoError(t, Discard.Put(context.Background(), Entry{Token: "tok_x"}))
}
