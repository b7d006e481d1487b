package healthcheck

import (
	"context"
	"sync"
	"time"

	"github.com/mileusna/crontab"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
	"menlo.ai/analytics-gateway/app/infrastructure/database"
	"menlo.ai/analytics-gateway/app/infrastructure/database/analyticsdb"
	"menlo.ai/analytics-gateway/app/utils/logger"
	"menlo.ai/analytics-gateway/config/environment_variables"
)

const checkTimeout = 5 * time.Second

type Check struct {
	Name string
	// Critical checks make the service unhealthy; the others only degrade it.
	Critical bool
	Run      func(ctx context.Context) error
}

type Status struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
	CheckedAt  time.Time         `json:"checked_at"`
}

const (
	StatusOk       = "ok"
	StatusDegraded = "degraded"
	StatusDown     = "down"
)

type HealthcheckCrontabService struct {
	checks []Check
	mu     sync.RWMutex
	last   Status
}

// NewService checks the configuration database and the analytics database,
// which queries cannot do without, and the cache, which they can.
func NewService(cacheService cache.CacheService, db *gorm.DB, analytics *analyticsdb.Connection) *HealthcheckCrontabService {
	return NewServiceWithChecks(
		Check{Name: "cache", Run: cacheService.HealthCheck},
		Check{Name: "config_db", Critical: true, Run: func(ctx context.Context) error {
			return database.Ping(ctx, db)
		}},
		Check{Name: "analytics_db", Critical: true, Run: analytics.Ping},
	)
}

func NewServiceWithChecks(checks ...Check) *HealthcheckCrontabService {
	return &HealthcheckCrontabService{
		checks: checks,
		last:   Status{Status: StatusOk, Components: map[string]string{}},
	}
}

func (hs *HealthcheckCrontabService) Start(ctx context.Context, ctab *crontab.Crontab) error {
	hs.CheckAll(ctx)
	return ctab.AddJob("* * * * *", func() {
		hs.CheckAll(ctx)
		environment_variables.EnvironmentVariables.LoadFromEnv()
	})
}

func (hs *HealthcheckCrontabService) CheckAll(ctx context.Context) Status {
	status := Status{Status: StatusOk, Components: map[string]string{}, CheckedAt: time.Now()}
	for _, check := range hs.checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check.Run(checkCtx)
		cancel()
		if err == nil {
			status.Components[check.Name] = StatusOk
			continue
		}
		status.Components[check.Name] = err.Error()
		logger.GetLogger().WithFields(logrus.Fields{
			"component": check.Name,
			"error":     err.Error(),
		}).Warn("healthcheck: component unhealthy")
		if check.Critical {
			status.Status = StatusDown
		} else if status.Status == StatusOk {
			status.Status = StatusDegraded
		}
	}

	hs.mu.Lock()
	hs.last = status
	hs.mu.Unlock()
	return status
}

// Last is the result of the most recent scheduled check.
func (hs *HealthcheckCrontabService) Last() Status {
	hs.mu.RLock()
	defer hs.mu.RUnlock()
	return hs.last
}
