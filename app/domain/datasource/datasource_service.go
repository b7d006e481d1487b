package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"menlo.ai/analytics-gateway/app/domain/query"
)

const (
	memoMaxEntries = 10_000
	memoTTL        = 5 * time.Minute
)

// Service reads data source configuration through a bounded per-process
// memo. The memo is never authoritative: entries expire after memoTTL and
// admins can drop one with Forget.
type Service struct {
	repo Repository
	memo *ristretto.Cache[int, *DataSource]
	ttl  time.Duration
}

func NewService(repo Repository) (*Service, error) {
	memo, err := ristretto.NewCache(&ristretto.Config[int, *DataSource]{
		NumCounters:        memoMaxEntries * 10,
		MaxCost:            memoMaxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("datasource: create memo: %w", err)
	}
	return &Service{repo: repo, memo: memo, ttl: memoTTL}, nil
}

func (s *Service) Get(ctx context.Context, id int) (*DataSource, error) {
	if ds, ok := s.memo.Get(id); ok {
		return ds, nil
	}
	ds, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.memo.SetWithTTL(id, ds, 1, s.ttl)
	return ds, nil
}

// ListActive always reads the repository so newly enabled sources are seen
// by the next scheduler tick.
func (s *Service) ListActive(ctx context.Context) ([]*DataSource, error) {
	active := true
	return s.repo.FindByFilter(ctx, DataSourceFilter{Active: &active}, nil)
}

func (s *Service) List(ctx context.Context, filter DataSourceFilter, pagination *query.Pagination) ([]*DataSource, int64, error) {
	items, err := s.repo.FindByFilter(ctx, filter, pagination)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) Forget(id int) {
	s.memo.Del(id)
}

func (s *Service) Close() {
	s.memo.Close()
}
