package stream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderPrevEventsMissingStream(t *testing.T) {
	_, rdb := newTestRedis(t)
	reader := NewReader(rdb)

	_, _, _, err := reader.PrevEvents(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrStreamNotFound)
}

func TestReaderPrevEventsReplay(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctrl := NewController(rdb)
	reader := NewReader(rdb)
	ctx := context.Background()

	_, err := ctrl.Start(ctx, "task-1", time.Minute)
	require.NoError(t, err)
	ids, err := ctrl.WriteMany(ctx, "task-1", []AddEvent{
		{Event: "progress", Data: strptr("e1")},
		{Event: "progress", Data: strptr("e2")},
		{Event: "progress", Data: strptr("e3")},
	})
	require.NoError(t, err)

	entries, lastID, closed, err := reader.PrevEvents(ctx, "task-1", "")
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, KindStart, entries[0].Kind())
	assert.Equal(t, "e1", entries[1].Fields[DataField])
	assert.Equal(t, ids[2], lastID)
	assert.False(t, closed)
}

func TestReaderPrevEventsResume(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctrl := NewController(rdb)
	reader := NewReader(rdb)
	ctx := context.Background()

	_, err := ctrl.Start(ctx, "task-1", time.Minute)
	require.NoError(t, err)
	ids, err := ctrl.WriteMany(ctx, "task-1", []AddEvent{
		{Event: "progress", Data: strptr("e1")},
		{Event: "progress", Data: strptr("e2")},
		{Event: "progress", Data: strptr("e3")},
	})
	require.NoError(t, err)

	// Resume strictly after the first user event
	entries, lastID, closed, err := reader.PrevEvents(ctx, "task-1", ids[0])
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "e2", entries[0].Fields[DataField])
	assert.Equal(t, "e3", entries[1].Fields[DataField])
	assert.Equal(t, ids[2], lastID)
	assert.False(t, closed)

	// Resuming past the newest entry returns nothing and keeps the cursor
	entries, lastID, closed, err = reader.PrevEvents(ctx, "task-1", ids[2])
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, ids[2], lastID)
	assert.False(t, closed)
}

func TestReaderPrevEventsEndedStream(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctrl := NewController(rdb)
	reader := NewReader(rdb)
	ctx := context.Background()

	_, err := ctrl.Start(ctx, "task-1", time.Minute)
	require.NoError(t, err)
	ids, err := ctrl.WriteMany(ctx, "task-1", []AddEvent{{Event: "progress"}})
	require.NoError(t, err)
	require.NoError(t, ctrl.End(ctx, "task-1"))

	entries, _, closed, err := reader.PrevEvents(ctx, "task-1", ids[0])
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsTerminal())
	assert.True(t, closed)
}

func TestReaderNext(t *testing.T) {
	_, rdb := newTestRedis(t)
	ctrl := NewController(rdb)
	reader := NewReader(rdb)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	startID, err := ctrl.Start(ctx, "task-1", time.Minute)
	require.NoError(t, err)
	ids, err := ctrl.WriteMany(ctx, "task-1", []AddEvent{{Event: "progress", Data: strptr("e1")}})
	require.NoError(t, err)

	entry, err := reader.Next(ctx, "task-1", startID)
	require.NoError(t, err)
	assert.Equal(t, ids[0], entry.ID)
	assert.Equal(t, "e1", entry.Fields[DataField])

	require.NoError(t, ctrl.End(ctx, "task-1"))
	entry, err = reader.Next(ctx, "task-1", entry.ID)
	require.NoError(t, err)
	assert.True(t, entry.IsTerminal())
}

func TestReaderNextCancelledContext(t *testing.T) {
	_, rdb := newTestRedis(t)
	reader := NewReader(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := reader.Next(ctx, "task-1", "0-0")
	assert.ErrorIs(t, err, context.Canceled)
}
