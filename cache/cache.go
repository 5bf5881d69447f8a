// Package cache wraps go-redis/v9 as the snapshot store behind the HTTP
// gateway and poll loop, grounded on the teacher's valkey.Publisher key
// conventions (colon-joined, trimmed segments) with its write-queue and
// health-message machinery dropped - §4.12 only needs get/set.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amrhady2/go-logix-cip/cip"
	"github.com/amrhady2/go-logix-cip/logix"
)

// SnapshotCache stores the most recent TagValue per (plc, tag) pair.
type SnapshotCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// New wraps an existing go-redis client. ttl <= 0 disables expiry.
func New(rdb *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{rdb: rdb, ttl: ttl}
}

// joinKey mirrors the teacher's colon-joining convention, trimming stray
// colons from each segment so a tag name containing one can't fracture the
// key structure.
func joinKey(segments ...string) string {
	parts := make([]string, 0, len(segments))
	for _, s := range segments {
		s = strings.Trim(s, ":")
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ":")
}

type entry struct {
	Value     interface{} `json:"value"`
	Type      uint8       `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// Set stores tv under cip:<plc>:<tag>.
func (c *SnapshotCache) Set(ctx context.Context, plc string, tv logix.TagValue) error {
	key := joinKey("cip", plc, tv.Name)
	payload, err := json.Marshal(entry{Value: tv.Value, Type: uint8(tv.Type), Timestamp: tv.Timestamp})
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, payload, c.ttl).Err()
}

// Get retrieves the last cached value for (plc, tag). ok is false if no
// entry is cached (cache miss, not an error).
func (c *SnapshotCache) Get(ctx context.Context, plc, tag string) (logix.TagValue, bool, error) {
	key := joinKey("cip", plc, tag)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return logix.TagValue{}, false, nil
	}
	if err != nil {
		return logix.TagValue{}, false, err
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return logix.TagValue{}, false, err
	}
	return logix.TagValue{Name: tag, Value: e.Value, Type: cip.CipType(e.Type), Timestamp: e.Timestamp}, true, nil
}

// SetAll stores every value from one poll snapshot.
func (c *SnapshotCache) SetAll(ctx context.Context, plc string, values []logix.TagValue) error {
	for _, v := range values {
		if err := c.Set(ctx, plc, v); err != nil {
			return err
		}
	}
	return nil
}
