package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"confluence-backend/internal/domain"
)

func pendingRecord(id string, at time.Time) domain.SignalRecord {
	return domain.SignalRecord{
		ID:         id,
		Symbol:     "BTCUSDT",
		LevelPrice: 100,
		LevelName:  "61.8% Retracement",
		SignalTime: at,
		Strength:   domain.StrengthStrong,
		Category:   domain.CategoryRetracement,
		Timeframe:  "4h",
		Direction:  domain.DirectionBullish,
		Result:     domain.ResultPending,
		Metadata:   map[string]string{"source": "test"},
	}
}

func TestSignalRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemorySignalRecordRepository()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Insert(ctx, pendingRecord("a", at)))
	assert.Error(t, repo.Insert(ctx, pendingRecord("a", at)))

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domain.ResultPending, got.Result)

	resolvedAt := at.Add(time.Hour)
	updated, err := repo.UpdateResult(ctx, "a", domain.ResultWin, 105, resolvedAt)
	require.NoError(t, err)
	assert.Equal(t, domain.ResultWin, updated.Result)
	require.NotNil(t, updated.ResultPrice)
	assert.Equal(t, 105.0, *updated.ResultPrice)
	assert.True(t, resolvedAt.Equal(*updated.ResultTime))

	_, err = repo.UpdateResult(ctx, "a", domain.ResultLoss, 90, resolvedAt)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	_, err = repo.UpdateResult(ctx, "missing", domain.ResultWin, 1, resolvedAt)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}

func TestSignalRecordReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemorySignalRecordRepository()
	require.NoError(t, repo.Insert(ctx, pendingRecord("a", time.Now())))

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	got.Metadata["source"] = "mutated"

	again, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "test", again.Metadata["source"])
}

func TestConcurrentResolveSingleWinner(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemorySignalRecordRepository()
	require.NoError(t, repo.Insert(ctx, pendingRecord("race", time.Now())))

	var wg sync.WaitGroup
	var ok, conflicts int32
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.UpdateResult(ctx, "race", domain.ResultWin, float64(100+i), time.Now())
			switch {
			case err == nil:
				atomic.AddInt32(&ok, 1)
			case errors.Is(err, domain.ErrAlreadyResolved):
				atomic.AddInt32(&conflicts, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(31), conflicts)
}

func TestSignalRecordQuery(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemorySignalRecordRepository()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"c", "a", "b"} {
		rec := pendingRecord(id, base.Add(time.Duration(i)*time.Hour))
		if id == "b" {
			rec.Symbol = "ETHUSDT"
		}
		require.NoError(t, repo.Insert(ctx, rec))
	}

	all, err := repo.Query(ctx, domain.RecordFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "a", "b"}, []string{all[0].ID, all[1].ID, all[2].ID})

	btc, err := repo.Query(ctx, domain.RecordFilter{Symbol: "BTCUSDT", From: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, btc, 1)
	assert.Equal(t, "a", btc[0].ID)
}

func TestInMemoryAnalysisRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryAnalysisRepository()

	require.NoError(t, repo.Save(ctx, domain.AnalysisResult{Symbol: "ETHUSDT", Price: 3000}))
	require.NoError(t, repo.Save(ctx, domain.AnalysisResult{Symbol: "BTCUSDT", Price: 60000}))
	require.NoError(t, repo.Save(ctx, domain.AnalysisResult{Symbol: "BTCUSDT", Price: 61000}))

	got, ok, err := repo.Get(ctx, "btcusdt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 61000.0, got.Price)

	_, ok, err = repo.Get(ctx, "SOLUSDT")
	require.NoError(t, err)
	assert.False(t, ok)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "BTCUSDT", list[0].Symbol)
}

func TestTokenRepository(t *testing.T) {
	repo := NewTokenRepository()
	now := time.Now()

	repo.Register("tok-b", "", now)
	repo.Register("tok-a", "iOS", now)
	repo.Register("tok-a", "ios", now)

	assert.Equal(t, 2, repo.Count())
	assert.Equal(t, []string{"tok-a", "tok-b"}, repo.Tokens())

	assert.True(t, repo.Unregister("tok-a"))
	assert.False(t, repo.Unregister("tok-a"))
	assert.Equal(t, 1, repo.Count())
}
