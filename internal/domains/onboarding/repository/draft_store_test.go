package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboarding-backend/internal/domains/onboarding"
	"onboarding-backend/internal/infrastructure/database"
	"onboarding-backend/pkg/cache"
)

// exerciseDraftStore runs the behaviour every backend must share
func exerciseDraftStore(t *testing.T, store onboarding.DraftStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "s1", "onboarding_username")
	assert.ErrorIs(t, err, onboarding.ErrDraftNotFound)

	require.NoError(t, store.Put(ctx, "s1", "onboarding_username", []byte(`"alice"`)))
	require.NoError(t, store.Put(ctx, "s1", "onboarding_step", []byte(`1`)))
	require.NoError(t, store.Put(ctx, "s2", "onboarding_username", []byte(`"bob"`)))

	got, err := store.Get(ctx, "s1", "onboarding_username")
	require.NoError(t, err)
	assert.JSONEq(t, `"alice"`, string(got))

	// overwrite
	require.NoError(t, store.Put(ctx, "s1", "onboarding_username", []byte(`"carol"`)))
	got, err = store.Get(ctx, "s1", "onboarding_username")
	require.NoError(t, err)
	assert.JSONEq(t, `"carol"`, string(got))

	// namespaces are isolated
	require.NoError(t, store.Delete(ctx, "s1", "onboarding_username", "onboarding_step", "onboarding_missing"))
	_, err = store.Get(ctx, "s1", "onboarding_username")
	assert.ErrorIs(t, err, onboarding.ErrDraftNotFound)
	_, err = store.Get(ctx, "s1", "onboarding_step")
	assert.ErrorIs(t, err, onboarding.ErrDraftNotFound)

	got, err = store.Get(ctx, "s2", "onboarding_username")
	require.NoError(t, err)
	assert.JSONEq(t, `"bob"`, string(got))

	require.NoError(t, store.Delete(ctx, "s2"))
}

func TestMemoryDraftStore(t *testing.T) {
	exerciseDraftStore(t, NewMemoryDraftStore())
}

func TestMemoryDraftStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryDraftStore()
	ctx := context.Background()

	value := []byte(`["a"]`)
	require.NoError(t, store.Put(ctx, "s", "k", value))
	value[1] = 'x'

	got, err := store.Get(ctx, "s", "k")
	require.NoError(t, err)
	assert.Equal(t, `["a"]`, string(got))
}

func TestCacheDraftStore(t *testing.T) {
	exerciseDraftStore(t, NewCacheDraftStore(cache.NewMemoryCache()))
}

func TestCacheDraftStore_KeysAreNamespaced(t *testing.T) {
	c := cache.NewMemoryCache()
	store := NewCacheDraftStore(c)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "abc", "onboarding_step", []byte(`2`)))

	found, err := c.Exists(ctx, "onboarding:draft:abc:onboarding_step")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCacheDraftStore_RejectsNonJSON(t *testing.T) {
	store := NewCacheDraftStore(cache.NewMemoryCache())
	err := store.Put(context.Background(), "s", "k", []byte(`{broken`))
	assert.Error(t, err)
}

func TestSQLiteDraftStore(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteDraftStore(ctx, db)
	require.NoError(t, err)
	exerciseDraftStore(t, store)
}

func TestSQLiteDraftStore_KeepsCorruptBytes(t *testing.T) {
	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, filepath.Join(t.TempDir(), "drafts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteDraftStore(ctx, db)
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "s", "onboarding_interests", []byte(`[not json`)))
	got, err := store.Get(ctx, "s", "onboarding_interests")
	require.NoError(t, err)
	assert.Equal(t, `[not json`, string(got))
}
