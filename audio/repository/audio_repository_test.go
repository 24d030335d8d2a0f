package repository

import (
	"context"
	"testing"
	"time"

	"pratham-chat/backend/audio/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAudioRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryAudioRepository()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &models.Recording{MessageID: "m1", RoomID: "r1", URI: "u1", DurationMs: 1200, CreatedAt: now}))
	require.NoError(t, repo.Create(ctx, &models.Recording{MessageID: "m2", RoomID: "r1", URI: "u2", DurationMs: 3000, CreatedAt: now.Add(time.Second)}))
	require.NoError(t, repo.Create(ctx, &models.Recording{MessageID: "m3", RoomID: "r2", URI: "u3", DurationMs: 1500}))
	assert.Error(t, repo.Create(ctx, &models.Recording{MessageID: "m1", RoomID: "r1"}))

	rec, err := repo.GetByMessage(ctx, "m1")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "m4a", rec.Format)

	recs, err := repo.ListByRoom(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "m1", recs[0].MessageID)

	require.NoError(t, repo.DeleteByMessage(ctx, "m1"))
	_, err = repo.GetByMessage(ctx, "m1")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := repo.DeleteByRoom(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	require.NoError(t, repo.DeleteAll(ctx))
	_, err = repo.GetByMessage(ctx, "m3")
	assert.ErrorIs(t, err, ErrNotFound)
}
