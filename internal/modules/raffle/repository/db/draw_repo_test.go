package db

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frankieli/raffle_engine/internal/modules/raffle/domain"
)

func newTestRepo(t *testing.T) *DrawRepository {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)
	repo := NewDrawRepository(db)
	require.NoError(t, repo.AutoMigrate(context.Background()))
	return repo
}

func TestCreateAndComplete(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	started := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	rec := domain.NewDrawRecord(domain.DrawStarted{
		RequestID:    "1",
		Participants: []string{"alice", "bob", "alice"},
		Amount:       30,
	}, started)
	require.NoError(t, repo.Create(ctx, rec))

	got, err := repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.DrawStatusPending, got.Status)
	assert.Equal(t, 3, got.Participants)
	assert.Equal(t, int64(30), got.Amount)
	require.Len(t, got.Entries, 3)
	assert.Equal(t, "alice", got.Entries[2].Participant)
	assert.Equal(t, 2, got.Entries[2].Position)
	assert.Nil(t, got.WinnerIndex)

	done := started.Add(time.Minute)
	require.NoError(t, repo.UpdateResult(ctx, "1", domain.DrawResult{
		Winner:      "bob",
		WinnerIndex: 1,
		RandomValue: "115792089237316195423570985008687907853269984665640564039457584007913129639935",
		CompletedAt: done,
	}))

	got, err = repo.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.DrawStatusCompleted, got.Status)
	assert.Equal(t, "bob", got.Winner)
	require.NotNil(t, got.WinnerIndex)
	assert.Equal(t, 1, *got.WinnerIndex)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, done.Equal(*got.CompletedAt))
	assert.Len(t, got.RandomValue, 78)
}

func TestMissingDraw(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrDrawNotFound)

	err = repo.UpdateResult(ctx, "nope", domain.DrawResult{Winner: "x"})
	assert.ErrorIs(t, err, domain.ErrDrawNotFound)
}

func TestDuplicateRequestIDRejected(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	ev := domain.DrawStarted{RequestID: "7", Participants: []string{"a"}, Amount: 10}

	require.NoError(t, repo.Create(ctx, domain.NewDrawRecord(ev, time.Now())))
	assert.Error(t, repo.Create(ctx, domain.NewDrawRecord(ev, time.Now())))

	got, err := repo.Get(ctx, "7")
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1, "failed insert rolled back")
}

func TestListRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		ev := domain.DrawStarted{RequestID: fmt.Sprint(i), Participants: []string{"p"}, Amount: 10}
		require.NoError(t, repo.Create(ctx, domain.NewDrawRecord(ev, base.Add(time.Duration(i)*time.Hour))))
	}

	recs, err := repo.ListRecent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "5", recs[0].RequestID)
	assert.Equal(t, "3", recs[2].RequestID)
	assert.Empty(t, recs[0].Entries)

	recs, err = repo.ListRecent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, recs)
}
