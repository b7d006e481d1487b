package cachestats

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"menlo.ai/analytics-gateway/app/domain/measure"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachekey"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachetest"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/indexstore"
)

func newReporter(t *testing.T) (*Reporter, *indexstore.IndexStore, *miniredis.Miniredis) {
	t.Helper()
	mr, client := cachetest.NewRedis(t)
	svc := cache.NewRedisCacheService(client)
	store := indexstore.NewIndexStore(svc, cachekey.NewCodec("test"), indexstore.DefaultConfig())
	return NewReporter(svc, store, 4*time.Hour), store, mr
}

func entry(ds, practice, provider int, payload string) indexstore.Entry {
	return indexstore.Entry{
		Dimension: cachekey.Dimension{
			DataSourceID: ds,
			Measure:      "Revenue",
			PracticeUID:  cachekey.Int(practice),
			ProviderUID:  cachekey.Int(provider),
			Frequency:    "Monthly",
		},
		Rows: []measure.Row{{"note": payload}},
	}
}

func TestDataSource_CountsAndLargest(t *testing.T) {
	ctx := context.Background()
	reporter, store, _ := newReporter(t)
	_, err := store.WriteBatch(ctx, []indexstore.Entry{
		entry(1, 114, 501, "small"),
		entry(1, 114, 502, strings.Repeat("x", 500)),
		entry(1, 200, 501, strings.Repeat("y", 100)),
		entry(2, 1, 1, "other"),
	}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.MarkWarmed(ctx, 1, time.Now(), time.Hour, false))

	stats, err := reporter.DataSource(ctx, 1, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.PrimaryKeys)
	assert.EqualValues(t, 3, stats.MasterMembers)
	// master, 1 measure/frequency, 2 practice, 2 provider, 3 full tuple
	assert.Equal(t, 9, stats.IndexKeys)
	assert.Equal(t, StalenessFresh, stats.Staleness)
	require.NotNil(t, stats.LastWarmed)
	require.Len(t, stats.Largest, 2)
	assert.Greater(t, stats.Largest[0].Bytes, stats.Largest[1].Bytes)
	assert.Contains(t, stats.Largest[0].Key, ":p:114:prov:502:")
	assert.Greater(t, stats.Bytes, stats.Largest[0].Bytes+stats.Largest[1].Bytes)
}

func TestDataSource_ColdAndEmpty(t *testing.T) {
	reporter, _, _ := newReporter(t)

	stats, err := reporter.DataSource(context.Background(), 7, 5)
	require.NoError(t, err)
	assert.Zero(t, stats.PrimaryKeys)
	assert.Equal(t, StalenessCold, stats.Staleness)
	assert.Nil(t, stats.LastWarmed)
	assert.Empty(t, stats.Largest)
}

func TestOverview_AggregatesAcrossDataSources(t *testing.T) {
	ctx := context.Background()
	reporter, store, _ := newReporter(t)
	_, err := store.WriteBatch(ctx, []indexstore.Entry{
		entry(1, 114, 501, "a"),
		entry(2, 1, 1, strings.Repeat("z", 300)),
		entry(2, 1, 2, "b"),
	}, time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.MarkWarmed(ctx, 2, time.Now().Add(-5*time.Hour), time.Hour, false))
	require.NoError(t, store.MarkWarmed(ctx, 3, time.Now(), time.Hour, true))

	overview, err := reporter.Overview(ctx, 1)
	require.NoError(t, err)

	require.Len(t, overview.DataSources, 3)
	assert.Equal(t, 1, overview.DataSources[0].DataSourceID)
	assert.Equal(t, StalenessCold, overview.DataSources[0].Staleness)
	assert.Equal(t, 2, overview.DataSources[1].PrimaryKeys)
	assert.Equal(t, StalenessStale, overview.DataSources[1].Staleness)
	assert.Equal(t, 3, overview.DataSources[2].DataSourceID)
	assert.Equal(t, StalenessFresh, overview.DataSources[2].Staleness)
	assert.Equal(t, 3, overview.PrimaryKeys)
	require.Len(t, overview.Largest, 1)
	assert.Equal(t, 2, overview.Largest[0].DataSourceID)
}

func TestReporter_Unavailable(t *testing.T) {
	reporter, _, mr := newReporter(t)
	mr.Close()

	_, err := reporter.Overview(context.Background(), 3)
	assert.ErrorIs(t, err, cache.ErrCacheUnavailable)
}

func TestTopN_KeepsLargest(t *testing.T) {
	top := newTopN(3)
	for i, b := range []int64{5, 1, 9, 7, 3, 9} {
		top.add(EntrySize{Key: string(rune('a' + i)), Bytes: b})
	}
	got := top.items()
	require.Len(t, got, 3)
	assert.Equal(t, []int64{9, 9, 7}, []int64{got[0].Bytes, got[1].Bytes, got[2].Bytes})
	assert.Empty(t, newTopN(0).items())
}
