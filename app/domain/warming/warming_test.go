package warming

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/domain/measure"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachekey"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachetest"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/indexstore"
)

type fakeSources struct {
	mu        sync.Mutex
	sources   map[int]*datasource.DataSource
	forgotten []int
}

func (f *fakeSources) Get(ctx context.Context, id int) (*datasource.DataSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ds, ok := f.sources[id]
	if !ok {
		return nil, datasource.ErrNotFound
	}
	return ds, nil
}

func (f *fakeSources) Forget(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, id)
}

type fakeFetcher struct {
	rows    map[int][]measure.Row
	err     error
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (f *fakeFetcher) FetchAll(ctx context.Context, ds *datasource.DataSource, limit int) ([]measure.Row, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	rows := f.rows[ds.ID]
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (f *fakeFetcher) Fetch(ctx context.Context, ds *datasource.DataSource, sel datasource.Selection) ([]measure.Row, error) {
	return nil, errors.New("not used")
}

type fixture struct {
	mr       *miniredis.Miniredis
	store    *indexstore.IndexStore
	sources  *fakeSources
	fetcher  *fakeFetcher
	orch     *Orchestrator
	keys     *cachekey.Codec
	cacheSvc cache.CacheService
}

func revenueRow(practice, provider, value int) measure.Row {
	return measure.Row{
		measure.FieldMeasure:     "Revenue",
		measure.FieldPracticeUID: practice,
		measure.FieldProviderUID: provider,
		measure.FieldFrequency:   "Monthly",
		"value":                  value,
	}
}

func newFixture(t *testing.T, cfg Config, storeCfg indexstore.Config) *fixture {
	t.Helper()
	mr, client := cachetest.NewRedis(t)
	cacheSvc := cache.NewRedisCacheService(client)
	keys := cachekey.NewCodec("test")
	store := indexstore.NewIndexStore(cacheSvc, keys, storeCfg)
	sources := &fakeSources{sources: map[int]*datasource.DataSource{
		1: {ID: 1, Name: "revenue", Kind: datasource.KindMeasure, Active: true},
		2: {ID: 2, Name: "practices", Kind: datasource.KindTable, Active: true},
		3: {ID: 3, Name: "charges", Kind: datasource.KindMeasure, Active: true},
	}}
	fetcher := &fakeFetcher{rows: map[int][]measure.Row{
		1: {revenueRow(114, 501, 1000), revenueRow(114, 502, 2000)},
		2: {{"practice_uid": 114, "name": "North"}, {"practice_uid": 200, "name": "South"}},
		3: {revenueRow(1, 1, 1)},
	}}
	orch := NewOrchestrator(store, cacheSvc, cache.NewRedisLocker(client), sources, fetcher, cfg)
	return &fixture{mr: mr, store: store, sources: sources, fetcher: fetcher, orch: orch, keys: keys, cacheSvc: cacheSvc}
}

func TestWarm_RevenueExample(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig(), indexstore.DefaultConfig())

	result, err := f.orch.Warm(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusWarmed, result.Status)
	assert.Equal(t, 2, result.RowsFetched)
	assert.Equal(t, 2, result.EntriesWritten)
	assert.Equal(t, datasource.KindMeasure, result.Kind)

	rows, err := f.store.Query(ctx, indexstore.Filter{DataSourceID: 1, Measure: "Revenue", Frequency: "Monthly", PracticeUIDs: []int{114}})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = f.store.Query(ctx, indexstore.Filter{DataSourceID: 1, Measure: "Revenue", Frequency: "Monthly", PracticeUIDs: []int{114}, ProviderUIDs: []int{501}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	v, _ := rows[0].Int("value")
	assert.Equal(t, 1000, v)

	warm, err := f.store.IsWarm(ctx, 1)
	require.NoError(t, err)
	assert.True(t, warm)
	assert.False(t, f.mr.Exists(f.keys.WarmLock(1)), "lock must be released")
}

func TestWarm_RewarmDropsBucketsGoneFromSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig(), indexstore.DefaultConfig())

	_, err := f.orch.Warm(ctx, 1)
	require.NoError(t, err)

	f.fetcher.rows[1] = []measure.Row{revenueRow(114, 501, 1500)}
	result, err := f.orch.Warm(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusWarmed, result.Status)
	assert.Equal(t, 1, result.EntriesWritten)
	assert.Equal(t, 1, result.EntriesPruned)

	rows, err := f.store.Query(ctx, indexstore.Filter{DataSourceID: 1, Measure: "Revenue", Frequency: "Monthly", PracticeUIDs: []int{114}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	v, _ := rows[0].Int("value")
	assert.Equal(t, 1500, v)

	rows, err = f.store.Query(ctx, indexstore.Filter{DataSourceID: 1, Measure: "Revenue", Frequency: "Monthly", ProviderUIDs: []int{502}})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWarm_ConcurrentAttemptsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig(), indexstore.DefaultConfig())
	f.fetcher.started = make(chan struct{}, 1)
	f.fetcher.release = make(chan struct{})

	first := make(chan *Result, 1)
	go func() {
		result, err := f.orch.Warm(ctx, 1)
		assert.NoError(t, err)
		first <- result
	}()
	<-f.fetcher.started

	second, err := f.orch.Warm(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusSkippedLocked, second.Status)
	assert.Zero(t, second.EntriesWritten)
	assert.EqualValues(t, 1, f.fetcher.calls.Load())

	close(f.fetcher.release)
	winner := <-first
	assert.Equal(t, StatusWarmed, winner.Status)
	assert.EqualValues(t, 1, f.fetcher.calls.Load())
}

func TestWarm_FailureLeavesMetadataUntouched(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig(), indexstore.DefaultConfig())
	f.fetcher.err = errors.New("analytics db down")

	result, err := f.orch.Warm(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Error, "analytics db down")

	warm, err := f.store.IsWarm(ctx, 1)
	require.NoError(t, err)
	assert.False(t, warm)
	assert.False(t, f.mr.Exists(f.keys.WarmLock(1)))
}

func TestWarm_OversizedEntriesAreCounted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig(), indexstore.Config{MaxEntryBytes: 150})
	big := revenueRow(114, 503, 3000)
	big["comment"] = "a comment long enough to push this entry over the configured ceiling of the store"
	f.fetcher.rows[1] = append(f.fetcher.rows[1], big)

	result, err := f.orch.Warm(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusWarmed, result.Status)
	assert.Equal(t, 2, result.EntriesWritten)
	assert.Equal(t, 1, result.EntriesRejected)
}

func TestWarm_TableSourceIsTruncatedAtCeiling(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.MaxTableRows = 2
	f := newFixture(t, cfg, indexstore.DefaultConfig())
	f.fetcher.rows[2] = append(f.fetcher.rows[2], measure.Row{"practice_uid": 300, "name": "East"})

	result, err := f.orch.Warm(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, StatusWarmed, result.Status)
	assert.True(t, result.Truncated)
	assert.Equal(t, 2, result.RowsFetched)

	rows, err := f.store.GetTable(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	raw, err := f.mr.Get(f.keys.Metadata(2))
	require.NoError(t, err)
	assert.Contains(t, raw, `[{"timestamp":`)
}

func TestGroupRows_SkipsRowsMissingGroupingFields(t *testing.T) {
	rows := []measure.Row{
		revenueRow(114, 501, 1),
		revenueRow(114, 501, 2),
		revenueRow(114, 502, 3),
		{measure.FieldMeasure: "Revenue", measure.FieldPracticeUID: 114, measure.FieldFrequency: "Monthly"},
		{measure.FieldMeasure: "", measure.FieldPracticeUID: 114, measure.FieldProviderUID: 1, measure.FieldFrequency: "Monthly"},
		{measure.FieldPracticeUID: 114, measure.FieldProviderUID: 1, measure.FieldFrequency: "Monthly"},
	}

	entries, skipped := GroupRows(9, rows)
	assert.Equal(t, 3, skipped)
	require.Len(t, entries, 2)
	assert.Len(t, entries[0].Rows, 2)
	assert.Equal(t, 501, *entries[0].Dimension.ProviderUID)
	assert.Equal(t, 9, entries[1].Dimension.DataSourceID)
	assert.True(t, entries[1].Dimension.IsConcrete())
}

func TestFreshness(t *testing.T) {
	f := newFixture(t, Config{StalenessThreshold: 4 * time.Hour}, indexstore.DefaultConfig())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, StalenessStale, f.orch.Freshness(now.Add(-5*time.Hour), true, now))
	assert.Equal(t, StalenessFresh, f.orch.Freshness(now.Add(-1*time.Hour), true, now))
	assert.Equal(t, StalenessCold, f.orch.Freshness(time.Time{}, false, now))
}

func TestStaleness_ReadsMetadata(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{StalenessThreshold: 4 * time.Hour, DataTTL: 48 * time.Hour}, indexstore.DefaultConfig())
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f.orch.now = func() time.Time { return now }

	state, _, err := f.orch.Staleness(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StalenessCold, state)

	require.NoError(t, f.store.MarkWarmed(ctx, 1, now.Add(-5*time.Hour), time.Hour*48, false))
	state, at, err := f.orch.Staleness(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StalenessStale, state)
	assert.True(t, at.Equal(now.Add(-5*time.Hour)))
}

func TestTriggerIfNeeded_RespectsCooldown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig(), indexstore.DefaultConfig())

	require.NoError(t, f.orch.TriggerIfNeeded(ctx, 1).Wait(ctx))
	assert.EqualValues(t, 1, f.fetcher.calls.Load())
	assert.True(t, f.mr.Exists(f.keys.AutoWarmMarker(1)))
	assert.Equal(t, DefaultConfig().AutoWarmCooldown, f.mr.TTL(f.keys.AutoWarmMarker(1)))

	require.NoError(t, f.orch.TriggerIfNeeded(ctx, 1).Wait(ctx))
	assert.EqualValues(t, 1, f.fetcher.calls.Load())

	f.mr.FastForward(DefaultConfig().AutoWarmCooldown + time.Second)
	require.NoError(t, f.orch.TriggerIfNeeded(ctx, 1).Wait(ctx))
	assert.EqualValues(t, 2, f.fetcher.calls.Load())
}

func TestTriggerIfNeeded_FailureDoesNotSetMarker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig(), indexstore.DefaultConfig())
	f.fetcher.err = errors.New("boom")

	err := f.orch.TriggerIfNeeded(ctx, 1).Wait(ctx)
	require.Error(t, err)
	assert.False(t, f.mr.Exists(f.keys.AutoWarmMarker(1)))

	f.fetcher.err = nil
	require.NoError(t, f.orch.TriggerIfNeeded(ctx, 1).Wait(ctx))
	assert.EqualValues(t, 2, f.fetcher.calls.Load())
}

func TestTriggerIfNeeded_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.AutoWarmDisabled = true
	f := newFixture(t, cfg, indexstore.DefaultConfig())

	task := f.orch.TriggerIfNeeded(ctx, 1)
	require.NoError(t, task.Wait(ctx))
	assert.Zero(t, f.fetcher.calls.Load())
}

func TestWarmManual_BypassesCooldownAndResetsMarker(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig(), indexstore.DefaultConfig())
	require.NoError(t, f.mr.Set(f.keys.AutoWarmMarker(1), "2024-01-01T00:00:00Z"))
	f.mr.SetTTL(f.keys.AutoWarmMarker(1), time.Second)

	result, err := f.orch.WarmManual(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, StatusWarmed, result.Status)
	assert.Equal(t, TriggerManual, result.Trigger)
	assert.Equal(t, DefaultConfig().AutoWarmCooldown, f.mr.TTL(f.keys.AutoWarmMarker(1)))

	require.NoError(t, f.orch.TriggerIfNeeded(ctx, 1).Wait(ctx))
	assert.EqualValues(t, 1, f.fetcher.calls.Load())
}

func TestWarmAll_IsolatesFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig(), indexstore.DefaultConfig())

	results := f.orch.WarmAll(ctx, []int{1, 404, 2, 3})
	require.Len(t, results, 4)
	assert.Equal(t, StatusWarmed, results[0].Status)
	assert.Equal(t, StatusFailed, results[1].Status)
	assert.Contains(t, results[1].Error, datasource.ErrNotFound.Error())
	assert.Equal(t, StatusWarmed, results[2].Status)
	assert.Equal(t, StatusWarmed, results[3].Status)

	for _, id := range []int{1, 2, 3} {
		warm, err := f.store.IsWarm(ctx, id)
		require.NoError(t, err)
		assert.True(t, warm, "data source %d", id)
	}
}

func TestInvalidate_ClearsCacheMarkerAndMemo(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig(), indexstore.DefaultConfig())
	_, err := f.orch.WarmManual(ctx, 1)
	require.NoError(t, err)

	result, err := f.orch.Invalidate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.EntriesDeleted)
	assert.False(t, f.mr.Exists(f.keys.AutoWarmMarker(1)))
	assert.Equal(t, []int{1}, f.sources.forgotten)

	warm, err := f.store.IsWarm(ctx, 1)
	require.NoError(t, err)
	assert.False(t, warm)
}

func TestInvalidateAll_CoversCachedAndKnownSources(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, DefaultConfig(), indexstore.DefaultConfig())
	for _, id := range []int{1, 2} {
		_, err := f.orch.Warm(ctx, id)
		require.NoError(t, err)
	}

	results, err := f.orch.InvalidateAll(ctx, []int{3, 1})
	require.NoError(t, err)

	assert.Len(t, results, 3)
	assert.Equal(t, 2, results[1].EntriesDeleted)
	assert.Equal(t, 1, results[2].EntriesDeleted)
	assert.Zero(t, results[3].EntriesDeleted)
	for _, id := range []int{1, 2} {
		warm, err := f.store.IsWarm(ctx, id)
		require.NoError(t, err)
		assert.False(t, warm)
	}
	assert.Empty(t, f.mr.Keys())
}
