package cron

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/mileusna/crontab"
	"github.com/sirupsen/logrus"
	"menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/domain/warming"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachekey"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/indexstore"
	"menlo.ai/analytics-gateway/app/infrastructure/metrics"
	"menlo.ai/analytics-gateway/app/utils/background"
	"menlo.ai/analytics-gateway/app/utils/logger"
	"menlo.ai/analytics-gateway/config/environment_variables"
)

type ActiveSources interface {
	ListActive(ctx context.Context) ([]*datasource.DataSource, error)
}

// SchedulerService periodically looks for data sources whose cache is
// missing or stale and warms them off the request path. Only one instance
// scans per tick and only one scheduled warm runs at a time.
type SchedulerService struct {
	orchestrator *warming.Orchestrator
	cache        cache.CacheService
	locker       cache.Locker
	keys         *cachekey.Codec
	sources      ActiveSources
	cfg          Config
	now          func() time.Time
}

func NewSchedulerService(
	orchestrator *warming.Orchestrator,
	store *indexstore.IndexStore,
	cacheService cache.CacheService,
	locker cache.Locker,
	sources ActiveSources,
	cfg Config,
) *SchedulerService {
	return &SchedulerService{
		orchestrator: orchestrator,
		cache:        cacheService,
		locker:       locker,
		keys:         store.Keys(),
		sources:      sources,
		cfg:          cfg,
		now:          time.Now,
	}
}

func (s *SchedulerService) Start(ctx context.Context, ctab *crontab.Crontab) error {
	return ctab.AddJob(s.cfg.Schedule, func() {
		environment_variables.EnvironmentVariables.LoadFromEnv()
		if _, err := s.Tick(ctx); err != nil {
			logger.GetLogger().Warnf("cron service: staleness check failed: %v", err)
		}
	})
}

// Tick runs one staleness check. It returns the background warm it started,
// or nil when nothing was due or another instance holds a lock.
func (s *SchedulerService) Tick(ctx context.Context) (*background.Task, error) {
	lock, err := s.locker.TryAcquire(ctx, s.keys.SchedulerLock(), s.cfg.LockTTL)
	if errors.Is(err, cache.ErrLockContention) {
		metrics.RecordLockContention("scheduler")
		logger.GetLogger().Debug("cron service: scheduler lock held elsewhere, skipping tick")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cron service: acquire scheduler lock: %w", err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.GetLogger().Warnf("cron service: release scheduler lock: %v", err)
		}
	}()

	due, err := s.DueDataSources(ctx)
	if err != nil {
		return nil, err
	}
	if len(due) == 0 {
		return nil, nil
	}

	global, err := s.locker.TryAcquire(ctx, s.keys.WarmingInProgressLock(), s.cfg.GlobalWarmLockTTL)
	if errors.Is(err, cache.ErrLockContention) {
		metrics.RecordLockContention("warming-in-progress")
		logger.GetLogger().WithField("due", due).Info("cron service: warming already in progress, skipping tick")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cron service: acquire warming lock: %w", err)
	}

	logger.GetLogger().WithField("due", due).Info("cron service: scheduling warm")
	return background.Go(ctx, "warm:scheduled", s.cfg.GlobalWarmLockTTL, func(ctx context.Context) error {
		defer func() {
			// Release is a compare-and-delete: a lock that expired and was
			// taken by another instance is left alone.
			if err := global.Release(context.WithoutCancel(ctx)); err != nil {
				logger.GetLogger().Warnf("cron service: release warming lock: %v", err)
			}
		}()
		results := s.orchestrator.WarmAll(ctx, due)
		failed := 0
		for _, r := range results {
			if r.Status == warming.StatusFailed {
				failed++
			}
		}
		if failed > 0 {
			return fmt.Errorf("cron service: %d of %d scheduled warms failed", failed, len(results))
		}
		return nil
	}), nil
}

// DueDataSources returns the active data sources whose metadata is missing
// or older than the staleness threshold, in ascending id order.
func (s *SchedulerService) DueDataSources(ctx context.Context) ([]int, error) {
	lastWarmed, err := s.scanMetadata(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.sources.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("cron service: list data sources: %w", err)
	}

	now := s.now()
	due := []int{}
	for _, ds := range active {
		at, ok := lastWarmed[ds.ID]
		if s.orchestrator.Freshness(at, ok, now) != warming.StalenessFresh {
			due = append(due, ds.ID)
		}
	}
	sort.Ints(due)
	return due, nil
}

func (s *SchedulerService) scanMetadata(ctx context.Context) (map[int]time.Time, error) {
	lastWarmed := map[int]time.Time{}
	err := s.cache.Scan(ctx, s.keys.MetadataPattern(), func(keys []string) error {
		values, err := s.cache.MGet(ctx, keys...)
		if err != nil {
			return err
		}
		for _, key := range keys {
			raw, ok := values[key]
			if !ok {
				continue
			}
			id, err := s.keys.ParseMetadata(key)
			if err != nil {
				continue
			}
			at, err := indexstore.ParseWarmTimestamp(raw)
			if err != nil {
				logger.GetLogger().WithFields(logrus.Fields{
					"key":   key,
					"error": err.Error(),
				}).Warn("cron service: unreadable warm metadata, treating as cold")
				continue
			}
			lastWarmed[id] = at
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cron service: scan warm metadata: %w", err)
	}
	return lastWarmed, nil
}
