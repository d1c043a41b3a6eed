package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
)

func TestMemoryDrawRepository(t *testing.T) {
	repo := NewDrawRepository()
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3"} {
		rec := domain.NewDrawRecord(domain.DrawStarted{RequestID: id, Participants: []string{"a", "b"}, Amount: 20}, time.Now())
		require.NoError(t, repo.Create(ctx, rec))
	}

	require.NoError(t, repo.UpdateResult(ctx, "2", domain.DrawResult{Winner: "b", WinnerIndex: 1, RandomValue: "7", CompletedAt: time.Now()}))
	assert.ErrorIs(t, repo.UpdateResult(ctx, "9", domain.DrawResult{}), domain.ErrDrawNotFound)

	got, err := repo.Get(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, domain.DrawStatusCompleted, got.Status)
	assert.Equal(t, 1, *got.WinnerIndex)
	assert.Len(t, got.Entries, 2)

	got.Entries[0].Participant = "mallory"
	again, _ := repo.Get(ctx, "2")
	assert.Equal(t, "a", again.Entries[0].Participant, "callers get copies")

	recent, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "3", recent[0].RequestID)
	assert.Equal(t, "2", recent[1].RequestID)
	assert.Nil(t, recent[0].Entries)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrDrawNotFound)
}
