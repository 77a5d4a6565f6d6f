package stream

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Entry is a single stream log entry: a backend-assigned id plus its fields.
type Entry struct {
	ID     string
	Fields map[string]string
}

// EntryKind classifies an entry by its event name.
type EntryKind int

const (
	KindUser EntryKind = iota
	KindStart
	KindEnd
	KindCancel
)

// Kind returns the entry's classification.
func (e Entry) Kind() EntryKind {
	switch e.Fields[EventField] {
	case EventStart:
		return KindStart
	case EventEnd:
		return KindEnd
	case EventCancel:
		return KindCancel
	default:
		return KindUser
	}
}

// IsTerminal reports whether the entry ends the stream (end or cancel).
func (e Entry) IsTerminal() bool {
	kind := e.Kind()
	return kind == KindEnd || kind == KindCancel
}

// Event returns the entry's event name, or "unknown" if absent.
func (e Entry) Event() string {
	if ev := e.Fields[EventField]; ev != "" {
		return ev
	}
	return EventUnknown
}

// AddEvent is a producer-supplied event to append to a stream.
type AddEvent struct {
	// Name/type of the event
	Event string `json:"event"`
	// Event data
	Data *string `json:"data,omitempty"`
}

// Values returns the entry field mapping for XADD.
func (ev AddEvent) Values() map[string]any {
	values := map[string]any{EventField: ev.Event}
	if ev.Data != nil {
		values[DataField] = *ev.Data
	}
	return values
}

func entryFromMessage(msg redis.XMessage) Entry {
	fields := make(map[string]string, len(msg.Values))
	for field, value := range msg.Values {
		switch v := value.(type) {
		case string:
			fields[field] = v
		default:
			fields[field] = fmt.Sprint(v)
		}
	}
	return Entry{ID: msg.ID, Fields: fields}
}

func entriesFromMessages(msgs []redis.XMessage) []Entry {
	entries := make([]Entry, len(msgs))
	for i, msg := range msgs {
		entries[i] = entryFromMessage(msg)
	}
	return entries
}
