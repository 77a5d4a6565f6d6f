package stream

// Field names of stream entries.
const (
	EventField = "event"
	DataField  = "data"
)

// Reserved event names.
const (
	EventStart   = "start"
	EventEnd     = "end"
	EventCancel  = "cancel"
	EventError   = "error"
	EventUnknown = "unknown"
)

// MetaPrefix is prepended to a stream key to form its metadata hash key.
const MetaPrefix = "meta:"

// MetaStatusField is the metadata hash field holding the stream status.
const MetaStatusField = "status"

// MaxStreamLen is the approximate cap applied to non-terminal appends.
const MaxStreamLen = 500

// scanPageSize is the COUNT hint for SCAN when listing streams.
const scanPageSize = 50

// Status of a stream, as stored in its metadata hash.
type Status string

const (
	StatusActive    Status = "active"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
)

// MetaKey returns the metadata key for the given stream key (or pattern).
func MetaKey(key string) string {
	return MetaPrefix + key
}
