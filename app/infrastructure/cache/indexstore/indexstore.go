// Package indexstore stores grouped analytics rows in Redis together with
// set-based secondary indexes, so one warmed data source can answer queries
// for any combination of measure, frequency, practices and providers.
package indexstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"menlo.ai/analytics-gateway/app/domain/measure"
	"menlo.ai/analytics-gateway/app/infrastructure/cache"
	"menlo.ai/analytics-gateway/app/infrastructure/cache/cachekey"
	"menlo.ai/analytics-gateway/app/utils/functional"
	"menlo.ai/analytics-gateway/app/utils/logger"
)

var (
	ErrOversizedEntry = errors.New("indexstore: entry exceeds size ceiling")
	ErrCorruptedEntry = errors.New("indexstore: corrupted cache entry")
	ErrInvalidFilter  = errors.New("indexstore: filter requires measure and frequency")
)

// Entry is the set of rows sharing one dimension.
type Entry struct {
	Dimension cachekey.Dimension
	Rows      []measure.Row
}

type WriteResult struct {
	Written  int
	Rejected int
	Bytes    int64
	// Keys are the primary keys written, in write order.
	Keys []string
}

type InvalidateResult struct {
	EntriesDeleted int `json:"entries_deleted"`
	IndexesDeleted int `json:"indexes_deleted"`
}

// Filter selects entries of one measure and frequency. Empty id lists leave
// that dimension unconstrained.
type Filter struct {
	DataSourceID int
	Measure      string
	Frequency    string
	PracticeUIDs []int
	ProviderUIDs []int
}

type IndexStore struct {
	cache cache.CacheService
	keys  *cachekey.Codec
	cfg   Config
}

func NewIndexStore(cacheService cache.CacheService, keys *cachekey.Codec, cfg Config) *IndexStore {
	def := DefaultConfig()
	if cfg.MaxEntryBytes <= 0 {
		cfg.MaxEntryBytes = def.MaxEntryBytes
	}
	if cfg.PipelineBatchSize <= 0 {
		cfg.PipelineBatchSize = def.PipelineBatchSize
	}
	if cfg.MaxKeysPerFetch <= 0 {
		cfg.MaxKeysPerFetch = def.MaxKeysPerFetch
	}
	if cfg.TempKeyTTL <= 0 {
		cfg.TempKeyTTL = def.TempKeyTTL
	}
	if cfg.InvalidateBatchSize <= 0 {
		cfg.InvalidateBatchSize = def.InvalidateBatchSize
	}
	return &IndexStore{cache: cacheService, keys: keys, cfg: cfg}
}

func (s *IndexStore) Keys() *cachekey.Codec {
	return s.keys
}

type encodedEntry struct {
	key     string
	indexes []string
	payload []byte
}

func (s *IndexStore) encode(e Entry) (encodedEntry, error) {
	rows := e.Rows
	if rows == nil {
		rows = []measure.Row{}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return encodedEntry{}, fmt.Errorf("indexstore: encode entry: %w", err)
	}
	if len(payload) > s.cfg.MaxEntryBytes {
		return encodedEntry{}, fmt.Errorf("%w: %d bytes > %d", ErrOversizedEntry, len(payload), s.cfg.MaxEntryBytes)
	}
	return encodedEntry{
		key:     s.keys.Primary(e.Dimension),
		indexes: s.keys.Indexes(e.Dimension),
		payload: payload,
	}, nil
}

// Write stores a single entry. Oversized rows are rejected with ErrOversizedEntry.
func (s *IndexStore) Write(ctx context.Context, dim cachekey.Dimension, rows []measure.Row, ttl time.Duration) error {
	encoded, err := s.encode(Entry{Dimension: dim, Rows: rows})
	if err != nil {
		return err
	}
	return s.writeEncoded(ctx, []encodedEntry{encoded}, ttl)
}

// WriteBatch stores entries in pipelines of PipelineBatchSize. Oversized
// entries are skipped and counted; a failed pipeline aborts the batch.
func (s *IndexStore) WriteBatch(ctx context.Context, entries []Entry, ttl time.Duration) (WriteResult, error) {
	var result WriteResult
	accepted := make([]encodedEntry, 0, len(entries))
	for _, e := range entries {
		encoded, err := s.encode(e)
		if errors.Is(err, ErrOversizedEntry) {
			result.Rejected++
			logger.GetLogger().WithFields(logrus.Fields{
				"data_source_id": e.Dimension.DataSourceID,
				"key":            s.keys.Primary(e.Dimension),
				"rows":           len(e.Rows),
			}).Warnf("indexstore: rejected entry: %v", err)
			continue
		}
		if err != nil {
			return result, err
		}
		accepted = append(accepted, encoded)
	}

	for _, chunk := range functional.Chunk(accepted, s.cfg.PipelineBatchSize) {
		if err := s.writeEncoded(ctx, chunk, ttl); err != nil {
			for _, e := range chunk {
				result.Keys = append(result.Keys, e.key)
			}
			s.rollback(ctx, entries, result.Keys)
			return result, err
		}
		for _, e := range chunk {
			result.Written++
			result.Bytes += int64(len(e.payload))
			result.Keys = append(result.Keys, e.key)
		}
	}
	return result, nil
}

// rollback removes what a failed batch wrote together with the warm metadata
// of every data source it touched, leaving them cold. Failures are logged.
func (s *IndexStore) rollback(ctx context.Context, entries []Entry, keys []string) {
	ctx = context.WithoutCancel(ctx)
	ids := functional.Distinct(functional.Map(entries, func(e Entry) int { return e.Dimension.DataSourceID }))
	for _, id := range ids {
		log := logger.GetLogger().WithField("data_source_id", id)
		if err := s.cache.Delete(ctx, s.keys.Metadata(id)); err != nil {
			log.Errorf("indexstore: rollback metadata: %v", err)
		}
		var own []string
		for _, key := range keys {
			if dim, err := s.keys.ParsePrimary(key); err == nil && dim.DataSourceID == id {
				own = append(own, key)
			}
		}
		if err := s.removeEntries(ctx, id, own); err != nil {
			log.Errorf("indexstore: rollback %d entries: %v", len(own), err)
		}
	}
}

// Prune deletes every entry of the data source that is not in keep and
// takes it out of the indexes it belonged to.
func (s *IndexStore) Prune(ctx context.Context, dataSourceID int, keep []string) (int, error) {
	members, err := s.cache.SMembers(ctx, s.keys.Master(dataSourceID))
	if err != nil {
		return 0, fmt.Errorf("indexstore: read master index: %w", err)
	}
	kept := functional.ToSet(keep)
	stale := functional.Filter(members, func(key string) bool {
		_, ok := kept[key]
		return !ok
	})
	if len(stale) == 0 {
		return 0, nil
	}
	if err := s.removeEntries(ctx, dataSourceID, stale); err != nil {
		return 0, fmt.Errorf("indexstore: prune: %w", err)
	}
	return len(stale), nil
}

// removeEntries deletes primary keys and removes them from their indexes.
// Keys that do not parse are only dropped from the master index.
func (s *IndexStore) removeEntries(ctx context.Context, dataSourceID int, keys []string) error {
	for _, chunk := range functional.Chunk(keys, s.cfg.InvalidateBatchSize) {
		err := s.cache.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, key := range chunk {
				indexes := []string{s.keys.Master(dataSourceID)}
				if dim, err := s.keys.ParsePrimary(key); err == nil && dim.DataSourceID == dataSourceID {
					indexes = s.keys.Indexes(dim)
				}
				for _, idx := range indexes {
					pipe.SRem(ctx, idx, key)
				}
				pipe.Unlink(ctx, key)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("remove %d entries: %w", len(chunk), err)
		}
	}
	return nil
}

func (s *IndexStore) writeEncoded(ctx context.Context, entries []encodedEntry, ttl time.Duration) error {
	err := s.cache.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, e := range entries {
			pipe.Set(ctx, e.key, e.payload, ttl)
			for _, idx := range e.indexes {
				pipe.SAdd(ctx, idx, e.key)
				pipe.Expire(ctx, idx, ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("indexstore: write %d entries: %w", len(entries), err)
	}
	return nil
}

// WriteTable stores a whole table-based data source as one entry that only
// the master index references.
func (s *IndexStore) WriteTable(ctx context.Context, dataSourceID int, rows []measure.Row, ttl time.Duration) error {
	return s.Write(ctx, cachekey.Dimension{DataSourceID: dataSourceID}, rows, ttl)
}

// GetTable returns the rows of a table-based data source, or an empty slice
// when it is cold.
func (s *IndexStore) GetTable(ctx context.Context, dataSourceID int) ([]measure.Row, error) {
	key := s.keys.Primary(cachekey.Dimension{DataSourceID: dataSourceID})
	payload, err := s.cache.Get(ctx, key)
	if errors.Is(err, cache.ErrCacheMiss) {
		return []measure.Row{}, nil
	}
	if err != nil {
		return nil, err
	}
	rows, err := s.decode(payload)
	if err != nil {
		s.dropCorrupted(ctx, dataSourceID, []string{key})
		return nil, err
	}
	return rows, nil
}

// Query resolves the filter to a set of primary keys through the indexes and
// fetches them. A cold index yields an empty slice and no error.
func (s *IndexStore) Query(ctx context.Context, f Filter) ([]measure.Row, error) {
	if f.Measure == "" || f.Frequency == "" {
		return nil, ErrInvalidFilter
	}
	keys, err := s.resolveKeys(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []measure.Row{}, nil
	}
	sort.Strings(keys)
	return s.fetch(ctx, f.DataSourceID, keys)
}

func (s *IndexStore) resolveKeys(ctx context.Context, f Filter) ([]string, error) {
	practices := functional.Distinct(f.PracticeUIDs)
	providers := functional.Distinct(f.ProviderUIDs)
	id := f.DataSourceID

	if len(practices) == 1 && len(providers) == 1 {
		return s.cache.SMembers(ctx, s.keys.FullTuple(id, f.Measure, practices[0], providers[0], f.Frequency))
	}

	var unions []tempUnion
	var sets []string
	switch {
	case len(practices) == 1:
		sets = append(sets, s.keys.MeasurePracticeFrequency(id, f.Measure, practices[0], f.Frequency))
	case len(practices) > 1:
		u := tempUnion{dest: s.keys.TempKey(id, "practices")}
		for _, p := range practices {
			u.sources = append(u.sources, s.keys.MeasurePracticeFrequency(id, f.Measure, p, f.Frequency))
		}
		unions = append(unions, u)
		sets = append(sets, u.dest)
	}
	switch {
	case len(providers) == 1:
		sets = append(sets, s.keys.MeasureFrequencyProvider(id, f.Measure, f.Frequency, providers[0]))
	case len(providers) > 1:
		u := tempUnion{dest: s.keys.TempKey(id, "providers")}
		for _, p := range providers {
			u.sources = append(u.sources, s.keys.MeasureFrequencyProvider(id, f.Measure, f.Frequency, p))
		}
		unions = append(unions, u)
		sets = append(sets, u.dest)
	}

	if len(sets) == 0 {
		return s.cache.SMembers(ctx, s.keys.MeasureFrequency(id, f.Measure, f.Frequency))
	}
	if len(sets) == 1 && len(unions) == 0 {
		return s.cache.SMembers(ctx, sets[0])
	}

	temps := make([]string, 0, len(unions)+1)
	for _, u := range unions {
		temps = append(temps, u.dest)
	}
	result := sets[0]
	if len(sets) > 1 {
		result = s.keys.TempKey(id, "intersect")
		temps = append(temps, result)
	}
	defer s.cleanup(ctx, temps)

	var members *redis.StringSliceCmd
	err := s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, u := range unions {
			pipe.SUnionStore(ctx, u.dest, u.sources...)
			pipe.Expire(ctx, u.dest, s.cfg.TempKeyTTL)
		}
		if len(sets) > 1 {
			pipe.SInterStore(ctx, result, sets...)
			pipe.Expire(ctx, result, s.cfg.TempKeyTTL)
		}
		members = pipe.SMembers(ctx, result)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("indexstore: resolve index sets: %w", err)
	}
	return members.Val(), nil
}

type tempUnion struct {
	dest    string
	sources []string
}

// cleanup drops scratch sets eagerly; their TTL covers the failure case.
func (s *IndexStore) cleanup(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := s.cache.Delete(context.WithoutCancel(ctx), keys...); err != nil {
		logger.GetLogger().Debugf("indexstore: temp key cleanup: %v", err)
	}
}

func (s *IndexStore) fetch(ctx context.Context, dataSourceID int, keys []string) ([]measure.Row, error) {
	rows := []measure.Row{}
	var corrupted []string
	for _, chunk := range functional.Chunk(keys, s.cfg.MaxKeysPerFetch) {
		values, err := s.cache.MGet(ctx, chunk...)
		if err != nil {
			return nil, fmt.Errorf("indexstore: fetch entries: %w", err)
		}
		for _, key := range chunk {
			payload, ok := values[key]
			if !ok {
				continue
			}
			decoded, err := s.decode(payload)
			if err != nil {
				corrupted = append(corrupted, key)
				continue
			}
			rows = append(rows, decoded...)
		}
	}
	if len(corrupted) > 0 {
		s.dropCorrupted(ctx, dataSourceID, corrupted)
		return nil, fmt.Errorf("%w: %s", ErrCorruptedEntry, strings.Join(corrupted, ", "))
	}
	return rows, nil
}

func (s *IndexStore) decode(payload string) ([]measure.Row, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var rows []measure.Row
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptedEntry, err)
	}
	return rows, nil
}

func (s *IndexStore) dropCorrupted(ctx context.Context, dataSourceID int, keys []string) {
	log := logger.GetLogger().WithFields(logrus.Fields{
		"data_source_id": dataSourceID,
		"keys":           keys,
	})
	log.Warn("indexstore: deleting corrupted entries")
	if err := s.cache.Delete(context.WithoutCancel(ctx), keys...); err != nil {
		log.Errorf("indexstore: delete corrupted entries: %v", err)
	}
}

// Invalidate removes every entry, index and the warm metadata of a data source.
// Members of the master index that already expired are harmless no-ops.
func (s *IndexStore) Invalidate(ctx context.Context, dataSourceID int) (InvalidateResult, error) {
	var result InvalidateResult
	members, err := s.cache.SMembers(ctx, s.keys.Master(dataSourceID))
	if err != nil {
		return result, fmt.Errorf("indexstore: read master index: %w", err)
	}
	for _, chunk := range functional.Chunk(members, s.cfg.InvalidateBatchSize) {
		if err := s.cache.Delete(ctx, chunk...); err != nil {
			return result, fmt.Errorf("indexstore: delete entries: %w", err)
		}
		result.EntriesDeleted += len(chunk)
	}

	n, err := s.cache.DeletePattern(ctx, s.keys.IndexPattern(dataSourceID))
	result.IndexesDeleted = n
	if err != nil {
		return result, fmt.Errorf("indexstore: delete indexes: %w", err)
	}
	if err := s.cache.Delete(ctx, s.keys.Metadata(dataSourceID)); err != nil {
		return result, fmt.Errorf("indexstore: delete metadata: %w", err)
	}
	return result, nil
}
