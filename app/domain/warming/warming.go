// Package warming fills the analytics cache from the source of truth.
//
// A warm holds the data source's distributed lock for its whole duration:
// load configuration, scan every row, group rows into entries, write the
// entries with their indexes and finally record the warm time. Metadata is
// only written after every batch succeeded, so a failed warm is retried by
// the next trigger.
package warming

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/domain/measure"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachekey"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/indexstore"
	"menlo.ai/analytics-gateway/app/infrastructure/metrics"
	"menlo.ai/analytics-gateway/app/utils/background"
	"menlo.ai/analytics-gateway/app/utils/logger"
)

type Staleness string

const (
	StalenessCold  Staleness = "cold"
	StalenessFresh Staleness = "fresh"
	StalenessStale Staleness = "stale"
)

type Status string

const (
	StatusWarmed        Status = "warmed"
	StatusSkippedLocked Status = "skipped_locked"
	StatusFailed        Status = "failed"
)

type Trigger string

const (
	TriggerAuto      Trigger = "auto"
	TriggerManual    Trigger = "manual"
	TriggerScheduler Trigger = "scheduler"
)

type Result struct {
	DataSourceID    int             `json:"data_source_id"`
	Status          Status          `json:"status"`
	Trigger         Trigger         `json:"trigger"`
	Kind            datasource.Kind `json:"kind,omitempty"`
	RowsFetched     int             `json:"rows_fetched"`
	RowsSkipped     int             `json:"rows_skipped"`
	EntriesWritten  int             `json:"entries_written"`
	EntriesRejected int             `json:"entries_rejected"`
	EntriesPruned   int             `json:"entries_pruned"`
	BytesWritten    int64           `json:"bytes_written"`
	Truncated       bool            `json:"truncated"`
	StartedAt       time.Time       `json:"started_at"`
	Duration        time.Duration   `json:"duration"`
	Error           string          `json:"error,omitempty"`
}

// SourceLoader reads data source configuration.
type SourceLoader interface {
	Get(ctx context.Context, id int) (*datasource.DataSource, error)
	Forget(id int)
}

type Orchestrator struct {
	store   *indexstore.IndexStore
	cache   cache.CacheService
	locker  cache.Locker
	keys    *cachekey.Codec
	sources SourceLoader
	fetcher datasource.RowFetcher
	cfg     Config
	now     func() time.Time
}

func NewOrchestrator(
	store *indexstore.IndexStore,
	cacheService cache.CacheService,
	locker cache.Locker,
	sources SourceLoader,
	fetcher datasource.RowFetcher,
	cfg Config,
) *Orchestrator {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Orchestrator{
		store:   store,
		cache:   cacheService,
		locker:  locker,
		keys:    store.Keys(),
		sources: sources,
		fetcher: fetcher,
		cfg:     cfg,
		now:     time.Now,
	}
}

func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Warm runs one warm of the data source. A warm already running elsewhere
// is not an error: the result reports StatusSkippedLocked.
func (o *Orchestrator) Warm(ctx context.Context, dataSourceID int) (*Result, error) {
	return o.run(ctx, dataSourceID, TriggerScheduler)
}

// WarmManual is the operator entry point. It ignores the auto-warm cooldown
// and, on success, restarts it so a queued automatic warm does not redo the
// work immediately.
func (o *Orchestrator) WarmManual(ctx context.Context, dataSourceID int) (*Result, error) {
	result, err := o.run(ctx, dataSourceID, TriggerManual)
	if err == nil && result.Status == StatusWarmed {
		o.markAutoWarm(ctx, dataSourceID)
	}
	return result, err
}

// TriggerIfNeeded warms the data source in the background unless an
// automatic warm succeeded within the cooldown. The caller never waits.
func (o *Orchestrator) TriggerIfNeeded(ctx context.Context, dataSourceID int) *background.Task {
	name := fmt.Sprintf("warm:auto:%d", dataSourceID)
	if o.cfg.AutoWarmDisabled {
		return background.Completed(name)
	}
	return background.Go(ctx, name, o.cfg.WarmTimeout, func(ctx context.Context) error {
		recent, err := o.cache.Exists(ctx, o.keys.AutoWarmMarker(dataSourceID))
		if err != nil {
			return fmt.Errorf("warming: read cooldown marker: %w", err)
		}
		if recent {
			logger.GetLogger().Debugf("warming: data source %d within auto-warm cooldown", dataSourceID)
			return nil
		}
		result, err := o.run(ctx, dataSourceID, TriggerAuto)
		if err != nil {
			return err
		}
		if result.Status == StatusWarmed {
			o.markAutoWarm(ctx, dataSourceID)
		}
		return nil
	})
}

// WarmAll warms every data source with at most Concurrency warms in flight.
// One failing source never stops the others.
func (o *Orchestrator) WarmAll(ctx context.Context, dataSourceIDs []int) []*Result {
	results := make([]*Result, len(dataSourceIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Concurrency)
	for i, id := range dataSourceIDs {
		g.Go(func() error {
			result, err := o.Warm(gctx, id)
			if err != nil && result == nil {
				result = &Result{DataSourceID: id, Status: StatusFailed, Trigger: TriggerScheduler, Error: err.Error()}
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Invalidate drops everything cached for the data source, including its
// memoized configuration and the auto-warm cooldown.
func (o *Orchestrator) Invalidate(ctx context.Context, dataSourceID int) (indexstore.InvalidateResult, error) {
	result, err := o.store.Invalidate(ctx, dataSourceID)
	if err != nil {
		return result, err
	}
	o.sources.Forget(dataSourceID)
	if err := o.cache.Delete(ctx, o.keys.AutoWarmMarker(dataSourceID)); err != nil {
		return result, fmt.Errorf("warming: clear cooldown marker: %w", err)
	}
	logger.GetLogger().WithFields(logrus.Fields{
		"data_source_id":  dataSourceID,
		"entries_deleted": result.EntriesDeleted,
		"indexes_deleted": result.IndexesDeleted,
	}).Info("warming: cache invalidated")
	return result, nil
}

// InvalidateAll invalidates every data source that has anything cached,
// plus known. One failing source does not stop the others.
func (o *Orchestrator) InvalidateAll(ctx context.Context, known []int) (map[int]indexstore.InvalidateResult, error) {
	cached, err := o.store.CachedDataSources(ctx)
	if err != nil {
		return nil, err
	}
	ids := append(slices.Clone(known), cached...)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	results := make(map[int]indexstore.InvalidateResult, len(ids))
	var errs []error
	for _, id := range ids {
		result, err := o.Invalidate(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("data source %d: %w", id, err))
			continue
		}
		results[id] = result
	}
	return results, errors.Join(errs...)
}

// Freshness classifies a warm time against the staleness threshold.
func (o *Orchestrator) Freshness(lastWarmed time.Time, ok bool, now time.Time) Staleness {
	if !ok {
		return StalenessCold
	}
	if now.Sub(lastWarmed) > o.cfg.StalenessThreshold {
		return StalenessStale
	}
	return StalenessFresh
}

// Staleness reads the data source's metadata and classifies it.
func (o *Orchestrator) Staleness(ctx context.Context, dataSourceID int) (Staleness, time.Time, error) {
	at, ok, err := o.store.LastWarmed(ctx, dataSourceID)
	if err != nil {
		return StalenessCold, time.Time{}, err
	}
	return o.Freshness(at, ok, o.now()), at, nil
}

func (o *Orchestrator) markAutoWarm(ctx context.Context, dataSourceID int) {
	stamp := o.now().UTC().Format(time.RFC3339)
	if err := o.cache.Set(context.WithoutCancel(ctx), o.keys.AutoWarmMarker(dataSourceID), stamp, o.cfg.AutoWarmCooldown); err != nil {
		logger.GetLogger().Warnf("warming: set cooldown marker for data source %d: %v", dataSourceID, err)
	}
}

func (o *Orchestrator) run(ctx context.Context, dataSourceID int, trigger Trigger) (*Result, error) {
	result := &Result{DataSourceID: dataSourceID, Trigger: trigger, StartedAt: o.now()}
	log := logger.GetLogger().WithFields(logrus.Fields{
		"data_source_id": dataSourceID,
		"trigger":        trigger,
	})

	lock, err := o.locker.TryAcquire(ctx, o.keys.WarmLock(dataSourceID), o.cfg.LockTTL)
	if errors.Is(err, cache.ErrLockContention) {
		metrics.RecordLockContention("warm")
		log.Info("warming: already in progress elsewhere, skipping")
		result.Status = StatusSkippedLocked
		return result, nil
	}
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		metrics.RecordWarm(string(trigger), string(StatusFailed), "", 0, 0)
		return result, fmt.Errorf("warming: acquire lock for data source %d: %w", dataSourceID, err)
	}
	warmCtx := ctx
	if o.cfg.WarmTimeout > 0 {
		var cancel context.CancelFunc
		warmCtx, cancel = context.WithTimeout(ctx, o.cfg.WarmTimeout)
		defer cancel()
	}

	err = o.warm(warmCtx, result)
	// A timed-out warm may still have writes in flight; its lock is left to
	// expire so no other warm overlaps them.
	if errors.Is(warmCtx.Err(), context.DeadlineExceeded) {
		log.Warnf("warming: timed out after %s, lock left to expire", o.cfg.WarmTimeout)
	} else if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
		log.Warnf("warming: release lock: %v", releaseErr)
	}
	result.Duration = o.now().Sub(result.StartedAt)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		metrics.RecordWarm(string(trigger), string(StatusFailed), string(result.Kind), result.Duration, result.EntriesRejected)
		log.WithField("error", err.Error()).Error("warming: warm failed")
		return result, err
	}
	result.Status = StatusWarmed
	metrics.RecordWarm(string(trigger), string(StatusWarmed), string(result.Kind), result.Duration, result.EntriesRejected)
	log.WithFields(logrus.Fields{
		"rows_fetched":     result.RowsFetched,
		"rows_skipped":     result.RowsSkipped,
		"entries_written":  result.EntriesWritten,
		"entries_rejected": result.EntriesRejected,
		"entries_pruned":   result.EntriesPruned,
		"truncated":        result.Truncated,
		"duration_ms":      result.Duration.Milliseconds(),
	}).Info("warming: warm complete")
	return result, nil
}

func (o *Orchestrator) warm(ctx context.Context, result *Result) error {
	id := result.DataSourceID
	ds, err := o.sources.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("warming: load data source %d: %w", id, err)
	}
	result.Kind = ds.Kind

	if ds.IsTable() {
		err = o.warmTable(ctx, ds, result)
	} else {
		err = o.warmMeasures(ctx, ds, result)
	}
	if err != nil {
		return err
	}
	if err := o.store.MarkWarmed(ctx, id, o.now(), o.cfg.DataTTL, ds.IsTable()); err != nil {
		return fmt.Errorf("warming: record warm of data source %d: %w", id, err)
	}
	return nil
}

func (o *Orchestrator) warmTable(ctx context.Context, ds *datasource.DataSource, result *Result) error {
	rows, err := o.fetcher.FetchAll(ctx, ds, o.cfg.MaxTableRows)
	if err != nil {
		return fmt.Errorf("warming: fetch table %d: %w", ds.ID, err)
	}
	result.RowsFetched = len(rows)
	if o.cfg.MaxTableRows > 0 && len(rows) >= o.cfg.MaxTableRows {
		result.Truncated = true
		logger.GetLogger().WithFields(logrus.Fields{
			"data_source_id": ds.ID,
			"max_rows":       o.cfg.MaxTableRows,
		}).Warn("warming: table hit the row ceiling, cached copy may be incomplete")
	}
	if err := o.store.WriteTable(ctx, ds.ID, rows, o.cfg.DataTTL); err != nil {
		if errors.Is(err, indexstore.ErrOversizedEntry) {
			result.EntriesRejected = 1
		}
		return err
	}
	result.EntriesWritten = 1
	return o.prune(ctx, ds.ID, []string{o.keys.Primary(cachekey.Dimension{DataSourceID: ds.ID})}, result)
}

func (o *Orchestrator) warmMeasures(ctx context.Context, ds *datasource.DataSource, result *Result) error {
	rows, err := o.fetcher.FetchAll(ctx, ds, 0)
	if err != nil {
		return fmt.Errorf("warming: fetch rows of %d: %w", ds.ID, err)
	}
	result.RowsFetched = len(rows)

	entries, skipped := GroupRows(ds.ID, rows)
	result.RowsSkipped = skipped
	if skipped > 0 {
		logger.GetLogger().WithFields(logrus.Fields{
			"data_source_id": ds.ID,
			"rows_skipped":   skipped,
		}).Warn("warming: rows missing a grouping field were not cached")
	}

	written, err := o.store.WriteBatch(ctx, entries, o.cfg.DataTTL)
	result.EntriesWritten = written.Written
	result.EntriesRejected = written.Rejected
	result.BytesWritten = written.Bytes
	if err != nil {
		return fmt.Errorf("warming: write entries of %d: %w", ds.ID, err)
	}
	return o.prune(ctx, ds.ID, written.Keys, result)
}

// prune drops entries of an earlier warm that this warm did not rewrite.
func (o *Orchestrator) prune(ctx context.Context, dataSourceID int, written []string, result *Result) error {
	pruned, err := o.store.Prune(ctx, dataSourceID, written)
	if err != nil {
		return fmt.Errorf("warming: prune entries of %d: %w", dataSourceID, err)
	}
	result.EntriesPruned = pruned
	if pruned > 0 {
		logger.GetLogger().WithFields(logrus.Fields{
			"data_source_id": dataSourceID,
			"entries_pruned": pruned,
		}).Info("warming: removed entries no longer present in the source")
	}
	return nil
}

type groupKey struct {
	measure   string
	practice  int
	provider  int
	frequency string
}

// GroupRows buckets rows by (measure, practice, provider, frequency) in
// first-seen order. Rows missing any of the four fields are counted and left out.
func GroupRows(dataSourceID int, rows []measure.Row) ([]indexstore.Entry, int) {
	index := map[groupKey]int{}
	entries := []indexstore.Entry{}
	skipped := 0
	for _, row := range rows {
		m, okM := row.String(measure.FieldMeasure)
		practice, okP := row.Int(measure.FieldPracticeUID)
		provider, okV := row.Int(measure.FieldProviderUID)
		freq, okF := row.String(measure.FieldFrequency)
		if !okM || !okP || !okV || !okF {
			skipped++
			continue
		}
		key := groupKey{measure: m, practice: practice, provider: provider, frequency: freq}
		i, ok := index[key]
		if !ok {
			i = len(entries)
			index[key] = i
			entries = append(entries, indexstore.Entry{Dimension: cachekey.Dimension{
				DataSourceID: dataSourceID,
				Measure:      m,
				PracticeUID:  cachekey.Int(practice),
				ProviderUID:  cachekey.Int(provider),
				Frequency:    freq,
			}})
		}
		entries[i].Rows = append(entries[i].Rows, row)
	}
	return entries, skipped
}
