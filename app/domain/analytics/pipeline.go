// Package analytics answers dashboard queries from the shared cache, falling
// back to the source of truth when the cache is cold or unreachable. Every
// answer, whatever its source, goes through the same filters in the same
// order: access control, then date range, then the caller's own clauses.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"menlo.ai/analytics-gateway/app/domain/access"
	"menlo.ai/analytics-gateway/app/domain/datasource"
	"menlo.ai/analytics-gateway/app/domain/measure"
	"menlo.ai/analytics-gateway/app/domain/query"
	"menlo.ai/analytics-gateway/app/domain/warming"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/indexstore"
	"menlo.ai/analytics-gateway/app/infrastructure/metrics"
	"menlo.ai/analytics-gateway/app/utils/background"
	"menlo.ai/analytics-gateway/app/utils/logger"
)

var ErrInvalidRequest = errors.New("analytics: invalid request")

type Source string

const (
	SourceCache    Source = "cache"
	SourceDatabase Source = "database"
)

type Request struct {
	DataSourceID int
	Measure      string
	Frequency    string
	PracticeUIDs []int
	ProviderUIDs []int
	DateRange    query.DateRange
	Filters      []query.Clause
}

type Result struct {
	Rows       []measure.Row     `json:"rows"`
	Source     Source            `json:"source"`
	Staleness  warming.Staleness `json:"staleness"`
	RowCount   int               `json:"row_count"`
	FailClosed bool              `json:"fail_closed"`
	LastWarmed *time.Time        `json:"last_warmed,omitempty"`
	// Refresh is the background warm started by this query, if any.
	Refresh *background.Task `json:"-"`
}

type SourceLoader interface {
	Get(ctx context.Context, id int) (*datasource.DataSource, error)
}

type Pipeline struct {
	store        *indexstore.IndexStore
	orchestrator *warming.Orchestrator
	sources      SourceLoader
	fetcher      datasource.RowFetcher
	now          func() time.Time
}

func NewPipeline(
	store *indexstore.IndexStore,
	orchestrator *warming.Orchestrator,
	sources SourceLoader,
	fetcher datasource.RowFetcher,
) *Pipeline {
	return &Pipeline{
		store:        store,
		orchestrator: orchestrator,
		sources:      sources,
		fetcher:      fetcher,
		now:          time.Now,
	}
}

// Execute answers one query for user. Scope spoofing is returned as
// access.ErrScopeSpoofing; an empty accessible scope is an empty result.
func (p *Pipeline) Execute(ctx context.Context, req Request, user access.UserContext) (*Result, error) {
	if err := access.ValidateScope(user); err != nil {
		return nil, err
	}
	if err := req.DateRange.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	for _, c := range req.Filters {
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}
	ds, err := p.sources.Get(ctx, req.DataSourceID)
	if err != nil {
		return nil, err
	}
	if !ds.IsTable() && (req.Measure == "" || req.Frequency == "") {
		return nil, fmt.Errorf("%w: measure and frequency are required", ErrInvalidRequest)
	}

	// Narrow the read to what the caller can see; the access filter below
	// still decides on every row.
	if user.Scope != access.ScopeAll && len(req.PracticeUIDs) == 0 && len(user.AccessiblePracticeUIDs) > 0 {
		req.PracticeUIDs = user.AccessiblePracticeUIDs
	}

	result, rows, err := p.read(ctx, ds, req)
	if err != nil {
		return nil, err
	}
	return p.filter(ds, req, user, result, rows)
}

// read tries the cache first. Anything short of a warm, readable cache is a
// fallback to the database plus a background re-warm.
func (p *Pipeline) read(ctx context.Context, ds *datasource.DataSource, req Request) (*Result, []measure.Row, error) {
	log := logger.GetLogger().WithFields(logrus.Fields{
		"data_source_id": ds.ID,
		"measure":        req.Measure,
		"frequency":      req.Frequency,
	})

	lastWarmed, ok, err := p.store.LastWarmed(ctx, ds.ID)
	if err != nil {
		log.Warnf("analytics: cache metadata unavailable: %v", err)
		return p.fallback(ctx, ds, req, fallbackReason(err), false)
	}
	staleness := p.orchestrator.Freshness(lastWarmed, ok, p.now())
	if staleness == warming.StalenessCold {
		return p.fallback(ctx, ds, req, "cold", true)
	}

	var rows []measure.Row
	if ds.IsTable() {
		rows, err = p.store.GetTable(ctx, ds.ID)
	} else {
		rows, err = p.store.Query(ctx, indexstore.Filter{
			DataSourceID: ds.ID,
			Measure:      req.Measure,
			Frequency:    req.Frequency,
			PracticeUIDs: req.PracticeUIDs,
			ProviderUIDs: req.ProviderUIDs,
		})
	}
	if err != nil {
		log.Warnf("analytics: cache read failed: %v", err)
		return p.fallback(ctx, ds, req, fallbackReason(err), !errors.Is(err, cache.ErrCacheUnavailable))
	}

	result := &Result{Source: SourceCache, Staleness: staleness, LastWarmed: &lastWarmed}
	if staleness == warming.StalenessStale {
		result.Refresh = p.orchestrator.TriggerIfNeeded(ctx, ds.ID)
	}
	return result, rows, nil
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, cache.ErrCacheUnavailable):
		return "unavailable"
	case errors.Is(err, indexstore.ErrCorruptedEntry):
		return "corrupted"
	}
	return "error"
}

func (p *Pipeline) fallback(ctx context.Context, ds *datasource.DataSource, req Request, reason string, rewarm bool) (*Result, []measure.Row, error) {
	metrics.RecordFallback(reason)
	var rows []measure.Row
	var err error
	if ds.IsTable() {
		rows, err = p.fetcher.FetchAll(ctx, ds, 0)
	} else {
		rows, err = p.fetcher.Fetch(ctx, ds, datasource.Selection{
			Measure:      req.Measure,
			Frequency:    req.Frequency,
			PracticeUIDs: req.PracticeUIDs,
			ProviderUIDs: req.ProviderUIDs,
		})
	}
	if err != nil {
		return nil, nil, fmt.Errorf("analytics: read data source %d: %w", ds.ID, err)
	}
	result := &Result{Source: SourceDatabase, Staleness: warming.StalenessCold}
	if rewarm {
		result.Refresh = p.orchestrator.TriggerIfNeeded(ctx, ds.ID)
	}
	return result, rows, nil
}

func (p *Pipeline) filter(ds *datasource.DataSource, req Request, user access.UserContext, result *Result, rows []measure.Row) (*Result, error) {
	// 1. access control
	decision, err := access.Filter(rows, user)
	if err != nil {
		return nil, err
	}
	if decision.FailClosed {
		metrics.RecordFailClosed()
		logger.GetLogger().WithFields(logrus.Fields{
			"user_id":        user.UserID,
			"scope":          user.Scope,
			"data_source_id": ds.ID,
		}).Warn("analytics: scope resolved to no accessible practices, returning no rows")
	}
	rows = decision.Rows

	// 2. date range
	if !req.DateRange.IsZero() {
		column, ok := ds.DateColumn()
		if !ok {
			return nil, fmt.Errorf("%w: data source %d has no date column", ErrInvalidRequest, ds.ID)
		}
		dr := req.DateRange
		dr.EndExclusive = ds.DateEndExclusive
		rows = query.ApplyDateRange(rows, column, dr)
	}

	// 3. caller clauses
	rows, err = query.ApplyClauses(rows, req.Filters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	result.Rows = rows
	result.RowCount = len(rows)
	result.FailClosed = decision.FailClosed
	metrics.RecordQuery(string(result.Source), string(result.Staleness))
	return result, nil
}
