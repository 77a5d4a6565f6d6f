package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeSSE(t *testing.T) {
	entry := Entry{ID: "1-1", Fields: map[string]string{EventField: "progress", DataField: "hello"}}
	assert.Equal(t, "event: progress\ndata: hello\nid: 1-1\n\n", EncodeSSE(entry))
}

func TestEncodeSSENoData(t *testing.T) {
	entry := Entry{ID: "2-0", Fields: map[string]string{EventField: EventEnd}}
	assert.Equal(t, "event: end\ndata:\nid: 2-0\n\n", EncodeSSE(entry))
}

func TestEncodeSSEMissingEventName(t *testing.T) {
	entry := Entry{ID: "3-0", Fields: map[string]string{DataField: "x"}}
	assert.Equal(t, "event: unknown\ndata: x\nid: 3-0\n\n", EncodeSSE(entry))
}

func TestErrorEntry(t *testing.T) {
	assert.Equal(t, "event: error\ndata: boom\nid: \n\n", EncodeSSE(ErrorEntry("boom")))
}

func TestEncodeJSON(t *testing.T) {
	entry := Entry{ID: "1-1", Fields: map[string]string{EventField: "progress", DataField: "hello"}}
	assert.Equal(t, map[string]string{
		"event": "progress",
		"data":  "hello",
		"id":    "1-1",
	}, EncodeJSON(entry))
}

func TestEncodeJSONBatch(t *testing.T) {
	batch := EncodeJSONBatch([]Entry{
		{ID: "1-1", Fields: map[string]string{EventField: EventStart}},
		{ID: "2-1", Fields: map[string]string{EventField: "progress", DataField: "e1"}},
	})
	assert.Len(t, batch, 2)
	assert.Equal(t, "start", batch[0]["event"])
	assert.Equal(t, "e1", batch[1]["data"])
}
