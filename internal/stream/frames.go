package stream

import "strings"

// EncodeSSE converts an entry to a Server-Sent Events frame. The data value
// carries a single leading space per the SSE specification, and the entry id
// is included so clients can resume via Last-Event-ID.
func EncodeSSE(e Entry) string {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(e.Event())
	b.WriteString("\ndata:")
	if data, ok := e.Fields[DataField]; ok {
		b.WriteString(" ")
		b.WriteString(data)
	}
	b.WriteString("\nid: ")
	b.WriteString(e.ID)
	b.WriteString("\n\n")
	return b.String()
}

// ErrorEntry builds a synthetic error entry for emitting protocol error
// frames during a live tail.
func ErrorEntry(message string) Entry {
	return Entry{Fields: map[string]string{
		EventField: EventError,
		DataField:  message,
	}}
}

// EncodeJSON converts an entry to a flat JSON-ready map containing all entry
// fields plus the entry id.
func EncodeJSON(e Entry) map[string]string {
	msg := make(map[string]string, len(e.Fields)+1)
	for field, value := range e.Fields {
		msg[field] = value
	}
	msg["id"] = e.ID
	return msg
}

// EncodeJSONBatch converts entries to a slice of JSON-ready maps, used for
// the prior-events array on WebSocket connections.
func EncodeJSONBatch(entries []Entry) []map[string]string {
	batch := make([]map[string]string, len(entries))
	for i, e := range entries {
		batch[i] = EncodeJSON(e)
	}
	return batch
}
