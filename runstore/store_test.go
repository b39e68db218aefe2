package runstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSaveGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now().UTC()
	record := &Record{
		RunID:      "run-1",
		Pipeline:   "bizdev",
		Status:     "succeeded",
		Context:    []byte(`{"run_id":"run-1"}`),
		StartedAt:  now,
		FinishedAt: now.Add(time.Minute),
	}
	require.NoError(t, store.Save(ctx, record))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "bizdev", got.Pipeline)
	assert.Equal(t, "succeeded", got.Status)
	assert.JSONEq(t, `{"run_id":"run-1"}`, string(got.Context))

	// Returned record is a copy
	got.Status = "mutated"
	again, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "succeeded", again.Status)
}

func TestMemoryStoreGetNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreList(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, pipeline := range []string{"bizdev", "cfn-analysis", "bizdev"} {
		require.NoError(t, store.Save(ctx, &Record{
			RunID:      []string{"run-a", "run-b", "run-c"}[i],
			Pipeline:   pipeline,
			Status:     "succeeded",
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := store.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first
	assert.Equal(t, "run-c", all[0].RunID)

	bizdev, err := store.List(ctx, "bizdev", 0)
	require.NoError(t, err)
	require.Len(t, bizdev, 2)

	limited, err := store.List(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "run-c", limited[0].RunID)
}

func TestSQLStoreRebind(t *testing.T) {
	pg := &SQLStore{driver: "postgres"}
	assert.Equal(t, "SELECT $1, $2", pg.rebind("SELECT ?, ?"))

	lite := &SQLStore{driver: "sqlite3"}
	assert.Equal(t, "SELECT ?, ?", lite.rebind("SELECT ?, ?"))
}
