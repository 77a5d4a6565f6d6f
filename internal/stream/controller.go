package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fa-sharp/tinistream/internal/metrics"
)

// ErrNoStartID is returned when a start transaction yields no entry id.
var ErrNoStartID = errors.New("start transaction returned no entry id")

// StreamInfo is the per-stream summary returned by Info and Scan.
type StreamInfo struct {
	// Key of the stream in Redis
	Key string `json:"key"`
	// Number of events in the stream
	Length int64 `json:"length"`
	// Remaining TTL of the stream in seconds
	TTL int64 `json:"ttl"`
}

// Controller performs stream lifecycle operations over the static Redis
// client. Long-running reads and ingest use exclusive connections instead
// (see Reader and Writer).
type Controller struct {
	rdb *redis.Client
}

func NewController(rdb *redis.Client) *Controller {
	return &Controller{rdb: rdb}
}

// IsActive checks whether there is an active stream at the given key.
func (c *Controller) IsActive(ctx context.Context, key string) (bool, error) {
	status, err := c.rdb.HGet(ctx, MetaKey(key), MetaStatusField).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get stream status: %w", err)
	}
	return Status(status) == StatusActive, nil
}

// Info returns the status, length, and TTL of the stream at the given key.
// An absent stream reports an empty status, zero length, and TTL -2.
func (c *Controller) Info(ctx context.Context, key string) (Status, int64, int64, error) {
	var (
		statusCmd *redis.StringCmd
		lenCmd    *redis.IntCmd
		ttlCmd    *redis.DurationCmd
	)
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		statusCmd = pipe.HGet(ctx, MetaKey(key), MetaStatusField)
		lenCmd = pipe.XLen(ctx, key)
		ttlCmd = pipe.TTL(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", 0, 0, fmt.Errorf("get stream info: %w", err)
	}
	return Status(statusCmd.Val()), lenCmd.Val(), ttlSeconds(ttlCmd.Val()), nil
}

// Scan lists all active streams whose key matches the given glob pattern.
func (c *Controller) Scan(ctx context.Context, pattern string) ([]StreamInfo, error) {
	// SCAN may return duplicates; dedupe while preserving order.
	var keys []string
	seen := make(map[string]struct{})
	iter := c.rdb.ScanType(ctx, 0, MetaKey(pattern), scanPageSize, "hash").Iterator()
	for iter.Next(ctx) {
		metaKey := iter.Val()
		key := metaKey[len(MetaPrefix):]
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan streams: %w", err)
	}
	if len(keys) == 0 {
		return []StreamInfo{}, nil
	}

	type infoCmds struct {
		status *redis.StringCmd
		length *redis.IntCmd
		ttl    *redis.DurationCmd
	}
	cmds := make([]infoCmds, len(keys))
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = infoCmds{
				status: pipe.HGet(ctx, MetaKey(key), MetaStatusField),
				length: pipe.XLen(ctx, key),
				ttl:    pipe.TTL(ctx, key),
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("scan stream info: %w", err)
	}

	active := make([]StreamInfo, 0, len(keys))
	for i, key := range keys {
		if Status(cmds[i].status.Val()) != StatusActive {
			continue
		}
		active = append(active, StreamInfo{
			Key:    key,
			Length: cmds[i].length.Val(),
			TTL:    ttlSeconds(cmds[i].ttl.Val()),
		})
	}
	return active, nil
}

// Start creates a new stream at the given key: any previous stream at the
// same key is deleted, a start entry is written, and both the log and the
// metadata get the given expiry. Callers must check for an active stream
// beforehand. Returns the id of the start entry.
func (c *Controller) Start(ctx context.Context, key string, ttl time.Duration) (string, error) {
	metaKey := MetaKey(key)
	var addCmd *redis.StringCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key, metaKey)
		addCmd = pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: key,
			Values: map[string]any{EventField: EventStart},
		})
		pipe.Expire(ctx, key, ttl)
		pipe.HSet(ctx, metaKey, MetaStatusField, string(StatusActive))
		pipe.Expire(ctx, metaKey, ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("start stream: %w", err)
	}
	startID := addCmd.Val()
	if startID == "" {
		return "", ErrNoStartID
	}
	metrics.StreamsStarted.Inc()
	return startID, nil
}

// WriteMany appends the given events to the stream in one transaction and
// returns their ids. The active-status precondition is checked once by the
// caller before the batch; entries inside the batch are not re-checked, so a
// stream terminated mid-batch still accepts the remainder of that batch. The
// appends use NOMKSTREAM, so a stream deleted or expired mid-batch yields no
// ids rather than a resurrected key.
func (c *Controller) WriteMany(ctx context.Context, key string, events []AddEvent) ([]string, error) {
	addCmds := make([]*redis.StringCmd, len(events))
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, ev := range events {
			addCmds[i] = pipe.XAdd(ctx, &redis.XAddArgs{
				Stream:     key,
				NoMkStream: true,
				MaxLen:     MaxStreamLen,
				Approx:     true,
				Values:     ev.Values(),
			})
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("write events: %w", err)
	}
	ids := make([]string, 0, len(addCmds))
	for _, cmd := range addCmds {
		if id := cmd.Val(); id != "" {
			ids = append(ids, id)
		}
	}
	metrics.EventsAppended.Add(float64(len(ids)))
	return ids, nil
}

// End marks the stream as ended by appending a terminal entry and updating
// the metadata status.
func (c *Controller) End(ctx context.Context, key string) error {
	return c.terminate(ctx, key, EventEnd, StatusEnded)
}

// Cancel marks the stream as cancelled by appending a terminal entry and
// updating the metadata status.
func (c *Controller) Cancel(ctx context.Context, key string) error {
	return c.terminate(ctx, key, EventCancel, StatusCancelled)
}

// terminate appends the terminal entry without a length cap: a terminal
// append must never trim itself away. NOMKSTREAM keeps a concurrently expired
// log from being recreated as a bare key.
func (c *Controller) terminate(ctx context.Context, key, event string, status Status) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream:     key,
			NoMkStream: true,
			Values:     map[string]any{EventField: event},
		})
		pipe.HSet(ctx, MetaKey(key), MetaStatusField, string(status))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("%s stream: %w", event, err)
	}
	metrics.StreamsTerminated.WithLabelValues(string(status)).Inc()
	return nil
}

// ttlSeconds converts a TTL reply to seconds, preserving the -1 (no expiry)
// and -2 (missing key) sentinels.
func ttlSeconds(d time.Duration) int64 {
	if d < 0 {
		return int64(d)
	}
	return int64(d / time.Second)
}
