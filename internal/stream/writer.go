package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/fa-sharp/tinistream/internal/metrics"
)

// Writer appends single events over an exclusive Redis connection, used by
// the streaming ingest paths.
type Writer struct {
	rdb redis.Cmdable
}

func NewWriter(rdb redis.Cmdable) *Writer {
	return &Writer{rdb: rdb}
}

// WriteOne appends one event while checking that the stream is active. The
// status read and the append run in one transaction; if the observed status
// is not active the speculative append is deleted again so it never becomes
// observable. Returns the id of the written event, or "" if the stream is
// not active.
func (w *Writer) WriteOne(ctx context.Context, key string, ev AddEvent) (string, error) {
	var (
		statusCmd *redis.StringCmd
		addCmd    *redis.StringCmd
	)
	_, err := w.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		statusCmd = pipe.HGet(ctx, MetaKey(key), MetaStatusField)
		addCmd = pipe.XAdd(ctx, &redis.XAddArgs{
			Stream:     key,
			NoMkStream: true,
			MaxLen:     MaxStreamLen,
			Approx:     true,
			Values:     ev.Values(),
		})
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("write event: %w", err)
	}

	if Status(statusCmd.Val()) == StatusActive {
		metrics.EventsAppended.Inc()
		return addCmd.Val(), nil
	}
	if id := addCmd.Val(); id != "" {
		if err := w.rdb.XDel(ctx, key, id).Err(); err != nil {
			return "", fmt.Errorf("roll back event %s: %w", id, err)
		}
	}
	return "", nil
}
