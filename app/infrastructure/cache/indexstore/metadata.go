package indexstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
)

// tableWarmRecord is the metadata envelope written for table-based sources.
type tableWarmRecord struct {
	Timestamp time.Time `json:"timestamp"`
}

// MarkWarmed records the end of a successful warm. Table-based sources keep
// the JSON array envelope readers of those sources expect.
// The metadata expires with the entries it describes.
func (s *IndexStore) MarkWarmed(ctx context.Context, dataSourceID int, at time.Time, ttl time.Duration, tableEnvelope bool) error {
	value := at.UTC().Format(time.RFC3339)
	if tableEnvelope {
		payload, err := json.Marshal([]tableWarmRecord{{Timestamp: at.UTC()}})
		if err != nil {
			return fmt.Errorf("indexstore: encode metadata: %w", err)
		}
		value = string(payload)
	}
	if err := s.cache.Set(ctx, s.keys.Metadata(dataSourceID), value, ttl); err != nil {
		return fmt.Errorf("indexstore: write metadata: %w", err)
	}
	return nil
}

// LastWarmed returns when the data source was last warmed; ok is false when
// it never was or its metadata was invalidated.
func (s *IndexStore) LastWarmed(ctx context.Context, dataSourceID int) (time.Time, bool, error) {
	raw, err := s.cache.Get(ctx, s.keys.Metadata(dataSourceID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	at, err := ParseWarmTimestamp(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return at, true, nil
}

func (s *IndexStore) IsWarm(ctx context.Context, dataSourceID int) (bool, error) {
	_, ok, err := s.LastWarmed(ctx, dataSourceID)
	return ok, err
}

// ParseWarmTimestamp accepts both metadata encodings.
func ParseWarmTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "[") {
		var records []tableWarmRecord
		if err := json.Unmarshal([]byte(raw), &records); err != nil {
			return time.Time{}, fmt.Errorf("indexstore: decode metadata: %w", err)
		}
		if len(records) == 0 || records[0].Timestamp.IsZero() {
			return time.Time{}, fmt.Errorf("indexstore: empty metadata envelope")
		}
		return records[0].Timestamp, nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("indexstore: decode metadata: %w", err)
	}
	return at, nil
}

// CachedDataSources lists every data source that has warm metadata or a
// master index, in ascending id order.
func (s *IndexStore) CachedDataSources(ctx context.Context) ([]int, error) {
	seen := map[int]struct{}{}
	walk := func(pattern string, parse func(string) (int, error)) error {
		return s.cache.Scan(ctx, pattern, func(keys []string) error {
			for _, key := range keys {
				if id, err := parse(key); err == nil {
					seen[id] = struct{}{}
				}
			}
			return nil
		})
	}
	if err := walk(s.keys.MetadataPattern(), s.keys.ParseMetadata); err != nil {
		return nil, fmt.Errorf("indexstore: scan metadata: %w", err)
	}
	if err := walk(s.keys.AllMasterPattern(), s.keys.ParseIndex); err != nil {
		return nil, fmt.Errorf("indexstore: scan master indexes: %w", err)
	}
	ids := make([]int, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}
