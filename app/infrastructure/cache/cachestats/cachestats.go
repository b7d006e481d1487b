// Package cachestats reports what the analytics cache holds. Every report
// walks keys with SCAN, so it belongs on admin endpoints and never on the
// query path.
package cachestats

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachekey"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/indexstore"
)

const (
	StalenessCold  = "cold"
	StalenessFresh = "fresh"
	StalenessStale = "stale"
)

type EntrySize struct {
	Key          string `json:"key"`
	DataSourceID int    `json:"data_source_id"`
	Bytes        int64  `json:"bytes"`
}

type DataSourceStats struct {
	DataSourceID  int         `json:"data_source_id"`
	PrimaryKeys   int         `json:"primary_keys"`
	IndexKeys     int         `json:"index_keys"`
	MasterMembers int64       `json:"master_members"`
	Bytes         int64       `json:"bytes"`
	LastWarmed    *time.Time  `json:"last_warmed,omitempty"`
	Staleness     string      `json:"staleness"`
	Largest       []EntrySize `json:"largest,omitempty"`
}

type Overview struct {
	DataSources []DataSourceStats `json:"data_sources"`
	PrimaryKeys int               `json:"primary_keys"`
	IndexKeys   int               `json:"index_keys"`
	Bytes       int64             `json:"bytes"`
	Largest     []EntrySize       `json:"largest"`
}

type Reporter struct {
	cache              cache.CacheService
	store              *indexstore.IndexStore
	keys               *cachekey.Codec
	stalenessThreshold time.Duration
	now                func() time.Time
}

func NewReporter(cacheService cache.CacheService, store *indexstore.IndexStore, stalenessThreshold time.Duration) *Reporter {
	return &Reporter{
		cache:              cacheService,
		store:              store,
		keys:               store.Keys(),
		stalenessThreshold: stalenessThreshold,
		now:                time.Now,
	}
}

// DataSource reports one data source with its topN largest entries.
func (r *Reporter) DataSource(ctx context.Context, dataSourceID, topN int) (*DataSourceStats, error) {
	stats := &DataSourceStats{DataSourceID: dataSourceID}
	top := newTopN(topN)

	err := r.cache.Scan(ctx, r.keys.DataPattern(dataSourceID), func(keys []string) error {
		sizes, err := r.sizes(ctx, keys)
		if err != nil {
			return err
		}
		for i, key := range keys {
			stats.PrimaryKeys++
			stats.Bytes += sizes[i]
			top.add(EntrySize{Key: key, DataSourceID: dataSourceID, Bytes: sizes[i]})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cachestats: scan entries of %d: %w", dataSourceID, err)
	}

	err = r.cache.Scan(ctx, r.keys.IndexPattern(dataSourceID), func(keys []string) error {
		stats.IndexKeys += len(keys)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cachestats: scan indexes of %d: %w", dataSourceID, err)
	}

	if err := r.describe(ctx, stats); err != nil {
		return nil, err
	}
	stats.Largest = top.items()
	return stats, nil
}

// Overview reports every data source that has keys or warm metadata, plus
// the topN largest entries across all of them.
func (r *Reporter) Overview(ctx context.Context, topN int) (*Overview, error) {
	perSource := map[int]*DataSourceStats{}
	get := func(id int) *DataSourceStats {
		s, ok := perSource[id]
		if !ok {
			s = &DataSourceStats{DataSourceID: id}
			perSource[id] = s
		}
		return s
	}
	top := newTopN(topN)

	err := r.cache.Scan(ctx, r.keys.AllDataPattern(), func(keys []string) error {
		sizes, err := r.sizes(ctx, keys)
		if err != nil {
			return err
		}
		for i, key := range keys {
			dim, err := r.keys.ParsePrimary(key)
			if err != nil {
				continue
			}
			s := get(dim.DataSourceID)
			s.PrimaryKeys++
			s.Bytes += sizes[i]
			top.add(EntrySize{Key: key, DataSourceID: dim.DataSourceID, Bytes: sizes[i]})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cachestats: scan entries: %w", err)
	}

	err = r.cache.Scan(ctx, r.keys.AllIndexPattern(), func(keys []string) error {
		for _, key := range keys {
			if id, err := r.keys.ParseIndex(key); err == nil {
				get(id).IndexKeys++
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cachestats: scan indexes: %w", err)
	}

	err = r.cache.Scan(ctx, r.keys.MetadataPattern(), func(keys []string) error {
		for _, key := range keys {
			if id, err := r.keys.ParseMetadata(key); err == nil {
				get(id)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cachestats: scan metadata: %w", err)
	}

	overview := &Overview{DataSources: make([]DataSourceStats, 0, len(perSource))}
	for _, s := range perSource {
		if err := r.describe(ctx, s); err != nil {
			return nil, err
		}
		overview.DataSources = append(overview.DataSources, *s)
		overview.PrimaryKeys += s.PrimaryKeys
		overview.IndexKeys += s.IndexKeys
		overview.Bytes += s.Bytes
	}
	slices.SortFunc(overview.DataSources, func(a, b DataSourceStats) int {
		return cmp.Compare(a.DataSourceID, b.DataSourceID)
	})
	overview.Largest = top.items()
	return overview, nil
}

// describe fills in the master cardinality and warm state.
func (r *Reporter) describe(ctx context.Context, stats *DataSourceStats) error {
	members, err := r.cache.SCard(ctx, r.keys.Master(stats.DataSourceID))
	if err != nil {
		return fmt.Errorf("cachestats: master of %d: %w", stats.DataSourceID, err)
	}
	stats.MasterMembers = members

	at, ok, err := r.store.LastWarmed(ctx, stats.DataSourceID)
	if err != nil {
		return fmt.Errorf("cachestats: metadata of %d: %w", stats.DataSourceID, err)
	}
	stats.Staleness = StalenessCold
	if ok {
		stats.LastWarmed = &at
		stats.Staleness = StalenessFresh
		if r.now().Sub(at) > r.stalenessThreshold {
			stats.Staleness = StalenessStale
		}
	}
	return nil
}

// sizes runs STRLEN for a SCAN batch in one round trip.
func (r *Reporter) sizes(ctx context.Context, keys []string) ([]int64, error) {
	cmds := make([]*redis.IntCmd, len(keys))
	err := r.cache.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = pipe.StrLen(ctx, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sizes := make([]int64, len(keys))
	for i, c := range cmds {
		sizes[i] = c.Val()
	}
	return sizes, nil
}

// topN keeps the n largest entries seen so far.
type topN struct {
	n       int
	entries []EntrySize
}

func newTopN(n int) *topN {
	return &topN{n: max(n, 0)}
}

func (t *topN) add(e EntrySize) {
	if t.n == 0 {
		return
	}
	if len(t.entries) == t.n && e.Bytes <= t.entries[len(t.entries)-1].Bytes {
		return
	}
	i, _ := slices.BinarySearchFunc(t.entries, e, func(a, b EntrySize) int {
		return cmp.Compare(b.Bytes, a.Bytes)
	})
	t.entries = slices.Insert(t.entries, i, e)
	if len(t.entries) > t.n {
		t.entries = t.entries[:t.n]
	}
}

func (t *topN) items() []EntrySize {
	if t.entries == nil {
		return []EntrySize{}
	}
	return t.entries
}
