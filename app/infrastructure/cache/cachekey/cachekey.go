// Package cachekey builds and parses every Redis key used by the analytics
// cache. All keys that belong to one data source embed the same hash tag
// {ds:<id>} so a Redis Cluster places them on one shard, which keeps
// SUNIONSTORE/SINTERSTORE over that source's indexes legal.
package cachekey

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Wildcard stands for "every value of this dimension". Real values can never
// encode to it because Codec escapes '*'.
const Wildcard = "*"

var ErrMalformedKey = errors.New("cachekey: malformed key")

// Dimension identifies one cached slice. Empty strings and nil pointers are
// absent dimensions.
type Dimension struct {
	DataSourceID int
	Measure      string
	PracticeUID  *int
	ProviderUID  *int
	Frequency    string
}

func Int(v int) *int {
	return &v
}

// IsConcrete reports whether every grouping field is present.
func (d Dimension) IsConcrete() bool {
	return d.Measure != "" && d.Frequency != "" && d.PracticeUID != nil && d.ProviderUID != nil
}

var (
	escaper = strings.NewReplacer(
		"%", "%25",
		":", "%3A",
		"*", "%2A",
		"?", "%3F",
		"[", "%5B",
		"]", "%5D",
		"{", "%7B",
		"}", "%7D",
	)
	unescaper = strings.NewReplacer(
		"%25", "%",
		"%3A", ":",
		"%2A", "*",
		"%3F", "?",
		"%5B", "[",
		"%5D", "]",
		"%7B", "{",
		"%7D", "}",
	)
)

// HashTag is the partitioning rule: one shard per data source.
func HashTag(dataSourceID int) string {
	return "{ds:" + strconv.Itoa(dataSourceID) + "}"
}

type Codec struct {
	prefix string
}

// NewCodec namespaces every key by deployment environment, e.g. "production".
func NewCodec(namespace string) *Codec {
	prefix := ""
	if namespace != "" {
		prefix = escaper.Replace(namespace) + ":"
	}
	return &Codec{prefix: prefix}
}

func encodeString(s string) string {
	if s == "" {
		return Wildcard
	}
	return escaper.Replace(s)
}

func decodeString(s string) string {
	if s == Wildcard {
		return ""
	}
	return unescaper.Replace(s)
}

func encodeInt(v *int) string {
	if v == nil {
		return Wildcard
	}
	return strconv.Itoa(*v)
}

func decodeInt(s string) (*int, error) {
	if s == Wildcard {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (c *Codec) Primary(d Dimension) string {
	return c.prefix + "cache:" + HashTag(d.DataSourceID) +
		":m:" + encodeString(d.Measure) +
		":p:" + encodeInt(d.PracticeUID) +
		":prov:" + encodeInt(d.ProviderUID) +
		":freq:" + encodeString(d.Frequency)
}

// ParsePrimary is the inverse of Primary.
func (c *Codec) ParsePrimary(key string) (Dimension, error) {
	rest, ok := strings.CutPrefix(key, c.prefix+"cache:")
	if !ok {
		return Dimension{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	id, rest, err := cutHashTag(rest)
	if err != nil {
		return Dimension{}, fmt.Errorf("%w: %q", err, key)
	}
	rest, ok = strings.CutPrefix(rest, ":")
	parts := strings.Split(rest, ":")
	if !ok || len(parts) != 8 || parts[0] != "m" || parts[2] != "p" || parts[4] != "prov" || parts[6] != "freq" {
		return Dimension{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	practice, err := decodeInt(parts[3])
	if err != nil {
		return Dimension{}, fmt.Errorf("%w: practice in %q", ErrMalformedKey, key)
	}
	provider, err := decodeInt(parts[5])
	if err != nil {
		return Dimension{}, fmt.Errorf("%w: provider in %q", ErrMalformedKey, key)
	}
	return Dimension{
		DataSourceID: id,
		Measure:      decodeString(parts[1]),
		PracticeUID:  practice,
		ProviderUID:  provider,
		Frequency:    decodeString(parts[7]),
	}, nil
}

func cutHashTag(s string) (int, string, error) {
	inner, ok := strings.CutPrefix(s, "{ds:")
	if !ok {
		return 0, "", ErrMalformedKey
	}
	end := strings.IndexByte(inner, '}')
	if end < 0 {
		return 0, "", ErrMalformedKey
	}
	id, err := strconv.Atoi(inner[:end])
	if err != nil {
		return 0, "", ErrMalformedKey
	}
	return id, inner[end+1:], nil
}

func (c *Codec) indexBase(dataSourceID int) string {
	return c.prefix + "idx:" + HashTag(dataSourceID)
}

// Master lists every primary key of a data source; invalidation walks it.
func (c *Codec) Master(dataSourceID int) string {
	return c.indexBase(dataSourceID) + ":master"
}

func (c *Codec) MeasureFrequency(dataSourceID int, measure, frequency string) string {
	return c.indexBase(dataSourceID) + ":m:" + encodeString(measure) + ":freq:" + encodeString(frequency)
}

func (c *Codec) MeasurePracticeFrequency(dataSourceID int, measure string, practiceUID int, frequency string) string {
	return c.indexBase(dataSourceID) + ":m:" + encodeString(measure) +
		":p:" + strconv.Itoa(practiceUID) + ":freq:" + encodeString(frequency)
}

func (c *Codec) MeasureFrequencyProvider(dataSourceID int, measure, frequency string, providerUID int) string {
	return c.indexBase(dataSourceID) + ":m:" + encodeString(measure) +
		":freq:" + encodeString(frequency) + ":prov:" + strconv.Itoa(providerUID)
}

func (c *Codec) FullTuple(dataSourceID int, measure string, practiceUID, providerUID int, frequency string) string {
	return c.indexBase(dataSourceID) + ":m:" + encodeString(measure) +
		":p:" + strconv.Itoa(practiceUID) + ":prov:" + strconv.Itoa(providerUID) +
		":freq:" + encodeString(frequency)
}

// Indexes returns every index set the primary key of d must belong to.
// The master index is always first.
func (c *Codec) Indexes(d Dimension) []string {
	keys := []string{c.Master(d.DataSourceID)}
	if d.Measure == "" || d.Frequency == "" {
		return keys
	}
	keys = append(keys, c.MeasureFrequency(d.DataSourceID, d.Measure, d.Frequency))
	if d.PracticeUID != nil {
		keys = append(keys, c.MeasurePracticeFrequency(d.DataSourceID, d.Measure, *d.PracticeUID, d.Frequency))
	}
	if d.ProviderUID != nil {
		keys = append(keys, c.MeasureFrequencyProvider(d.DataSourceID, d.Measure, d.Frequency, *d.ProviderUID))
	}
	if d.PracticeUID != nil && d.ProviderUID != nil {
		keys = append(keys, c.FullTuple(d.DataSourceID, d.Measure, *d.PracticeUID, *d.ProviderUID, d.Frequency))
	}
	return keys
}

func (c *Codec) Metadata(dataSourceID int) string {
	return c.prefix + "cache:meta:" + HashTag(dataSourceID) + ":last_warm"
}

// ParseMetadata extracts the data source id from a Metadata key.
func (c *Codec) ParseMetadata(key string) (int, error) {
	rest, ok := strings.CutPrefix(key, c.prefix+"cache:meta:")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	id, rest, err := cutHashTag(rest)
	if err != nil || rest != ":last_warm" {
		return 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	return id, nil
}

func (c *Codec) WarmLock(dataSourceID int) string {
	return c.prefix + "lock:cache:warm:" + HashTag(dataSourceID)
}

func (c *Codec) AutoWarmMarker(dataSourceID int) string {
	return c.prefix + "cache:auto-warm:last:" + strconv.Itoa(dataSourceID)
}

func (c *Codec) SchedulerLock() string {
	return c.prefix + "lock:cache:scheduler"
}

func (c *Codec) WarmingInProgressLock() string {
	return c.prefix + "lock:cache:warming-in-progress"
}

// TempKey names a transient set that lives next to the data source's indexes.
func (c *Codec) TempKey(dataSourceID int, purpose string) string {
	return c.prefix + "tmp:" + HashTag(dataSourceID) + ":" + encodeString(purpose) + ":" + uuid.NewString()
}

// DataPattern matches every primary key of a data source.
func (c *Codec) DataPattern(dataSourceID int) string {
	return c.prefix + "cache:" + HashTag(dataSourceID) + ":*"
}

// IndexPattern matches every index set of a data source, master included.
func (c *Codec) IndexPattern(dataSourceID int) string {
	return c.indexBase(dataSourceID) + ":*"
}

// AllDataPattern and AllIndexPattern match the keys of every data source.
func (c *Codec) AllDataPattern() string {
	return c.prefix + "cache:{ds:*"
}

func (c *Codec) AllIndexPattern() string {
	return c.prefix + "idx:{ds:*"
}

func (c *Codec) AllMasterPattern() string {
	return c.prefix + "idx:{ds:*}:master"
}

// ParseIndex extracts the data source id from any index key.
func (c *Codec) ParseIndex(key string) (int, error) {
	rest, ok := strings.CutPrefix(key, c.prefix+"idx:")
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	id, _, err := cutHashTag(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", err, key)
	}
	return id, nil
}

func (c *Codec) MetadataPattern() string {
	return c.prefix + "cache:meta:*:last_warm"
}
