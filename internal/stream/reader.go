package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStreamNotFound is returned when a stream has no metadata record.
var ErrStreamNotFound = errors.New("stream not found")

// tailBlockTimeout caps each blocking XREAD. The read loops on timeout, which
// doubles as the cancellation point for disconnected clients: a cancelled
// connection holds its exclusive connection for at most one block interval.
const tailBlockTimeout = 10 * time.Second

// Reader replays and tails a stream over an exclusive Redis connection.
// The blocking reads must not share a connection with other work.
type Reader struct {
	rdb redis.Cmdable
}

func NewReader(rdb redis.Cmdable) *Reader {
	return &Reader{rdb: rdb}
}

// PrevEvents returns all entries strictly after resumeAfter (or from the
// beginning if empty), the id to tail from, and whether the stream has
// already terminated. Fails with ErrStreamNotFound if the stream has no
// metadata.
func (r *Reader) PrevEvents(ctx context.Context, key, resumeAfter string) ([]Entry, string, bool, error) {
	startID := resumeAfter
	if startID == "" {
		startID = "0-0"
	}

	var (
		rangeCmd  *redis.XMessageSliceCmd
		statusCmd *redis.StringCmd
	)
	_, err := r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		rangeCmd = pipe.XRange(ctx, key, "("+startID, "+")
		statusCmd = pipe.HGet(ctx, MetaKey(key), MetaStatusField)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, "", false, fmt.Errorf("read prior events: %w", err)
	}
	if errors.Is(statusCmd.Err(), redis.Nil) {
		return nil, "", false, ErrStreamNotFound
	}

	entries := entriesFromMessages(rangeCmd.Val())
	lastID := startID
	if len(entries) > 0 {
		lastID = entries[len(entries)-1].ID
	}
	closed := Status(statusCmd.Val()) != StatusActive
	return entries, lastID, closed, nil
}

// Next blocks until a new entry arrives strictly after lastID and returns it.
// Block timeouts loop internally; the call returns only with an entry, a
// transport error, or the context's error once it is cancelled.
func (r *Reader) Next(ctx context.Context, key, lastID string) (Entry, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Entry{}, err
		}
		res, err := r.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{key, lastID},
			Count:   1,
			Block:   tailBlockTimeout,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue // timeout, poll again
		}
		if err != nil {
			if ctx.Err() != nil {
				return Entry{}, ctx.Err()
			}
			return Entry{}, fmt.Errorf("read stream: %w", err)
		}
		if len(res) == 0 || len(res[0].Messages) == 0 {
			continue
		}
		return entryFromMessage(res[0].Messages[0]), nil
	}
}
