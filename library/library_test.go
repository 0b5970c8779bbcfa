package library

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/teilomillet/promptpilot/utils"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()

	sqlite, err := NewSQLiteStore(filepath.Join(dir, "library.db"))
	require.NoError(t, err)
	yml, err := NewYAMLStore(filepath.Join(dir, "library.yaml"), utils.NewNopLogger())
	require.NoError(t, err)

	all := map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
		"yaml":   yml,
	}
	t.Cleanup(func() {
		for _, s := range all {
			_ = s.Close()
		}
	})
	return all
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			list, err := store.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)

			first, err := store.Save(ctx, SavedPromptVariation{Prompt: "Write a slogan", EvaluationCriteria: "upbeat", Model: "gemini-1.5-flash"})
			require.NoError(t, err)
			assert.NotZero(t, first.ID)
			assert.False(t, first.SavedAt.IsZero())

			second, err := store.Save(ctx, SavedPromptVariation{Prompt: "", Model: "gemini-1.5-pro"})
			require.NoError(t, err)
			assert.Greater(t, second.ID, first.ID)
			assert.Equal(t, "Untitled Prompt", second.Title())

			got, err := store.Get(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, "Write a slogan", got.Prompt)
			assert.Equal(t, "upbeat", got.EvaluationCriteria)
			assert.True(t, first.SavedAt.Equal(got.SavedAt))

			first.Prompt = "Write a better slogan"
			_, err = store.Save(ctx, first)
			require.NoError(t, err)
			got, err = store.Get(ctx, first.ID)
			require.NoError(t, err)
			assert.Equal(t, "Write a better slogan", got.Prompt)

			list, err = store.List(ctx)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, first.ID, list[0].ID)

			require.NoError(t, store.Delete(ctx, first.ID))
			assert.ErrorIs(t, store.Delete(ctx, first.ID), ErrNotFound)
			_, err = store.Get(ctx, first.ID)
			assert.ErrorIs(t, err, ErrNotFound)

			_, err = store.Save(ctx, SavedPromptVariation{Prompt: "no model"})
			assert.Error(t, err)
		})
	}
}

func TestYAMLStorePicksUpExternalEdits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "library.yaml")
	store, err := NewYAMLStore(path, utils.NewNopLogger())
	require.NoError(t, err)
	defer store.Close()

	edited := `prompts:
  - id: 7
    prompt: Describe Morning Star coffee in one line
    model: gemini-2.0-flash
    savedAt: 2024-05-01T10:00:00Z
`
	require.NoError(t, os.WriteFile(path, []byte(edited), 0o644))

	require.Eventually(t, func() bool {
		v, err := store.Get(context.Background(), 7)
		return err == nil && v.Model == "gemini-2.0-flash"
	}, 3*time.Second, 20*time.Millisecond)

	saved, err := store.Save(context.Background(), SavedPromptVariation{Prompt: "next", Model: "gemini-1.5-flash"})
	require.NoError(t, err)
	assert.Equal(t, 8, saved.ID)
}

func TestYAMLStoreReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "library.yaml")
	store, err := NewYAMLStore(path, nil)
	require.NoError(t, err)
	_, err = store.Save(context.Background(), SavedPromptVariation{Prompt: "keep me", Model: "gemini-1.5-flash"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewYAMLStore(path, utils.NewNopLogger())
	require.NoError(t, err)
	defer reopened.Close()
	list, err := reopened.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "keep me", list[0].Prompt)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open("memory", nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open("sqlite:"+filepath.Join(dir, "lib.db"), nil)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open("sqlite:", nil)
	assert.Error(t, err)
	_, err = Open("postgres:db", nil)
	assert.Error(t, err)
}

func TestSQLiteStoreCachesReads(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer s.Close()

	saved, err := s.Save(ctx, SavedPromptVariation{Prompt: "Write a slogan", Model: "gemini-1.5-flash"})
	require.NoError(t, err)

	got, err := s.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write a slogan", got.Prompt)

	// A write that bypasses the store is not seen while the entry is cached.
	_, err = s.db.ExecContext(ctx, `UPDATE saved_prompts SET prompt = 'changed' WHERE id = ?`, saved.ID)
	require.NoError(t, err)
	got, err = s.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write a slogan", got.Prompt)

	saved.Prompt = "Write a tagline"
	_, err = s.Save(ctx, saved)
	require.NoError(t, err)
	got, err = s.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write a tagline", got.Prompt)

	require.NoError(t, s.Delete(ctx, saved.ID))
	_, err = s.Get(ctx, saved.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
