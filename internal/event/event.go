// Package event converts raw profiling records into canonical query events.
//
// Raw records differ across server and log versions: modern profilers embed
// the command document, legacy ones carry a bare query document, possibly
// wrapped in $query/$orderby. The parser tries a fixed priority order of
// format strategies and accepts the first structural match.
package event

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Operation kinds, normalized across raw encodings.
const (
	OpFind          = "find"
	OpCount         = "count"
	OpDistinct      = "distinct"
	OpAggregate     = "aggregate"
	OpUpdate        = "update"
	OpRemove        = "remove"
	OpFindAndModify = "findAndModify"
)

// QueryEvent is one canonical query observation. Immutable once parsed.
type QueryEvent struct {
	// NS is the db.collection namespace the query ran against.
	NS string

	// Op is the normalized operation kind.
	Op string

	// Filter is the query predicate document, ordered as written.
	// May be empty but never nil for a parsed event.
	Filter bson.D

	// Sort is the ordered field→direction specification, if any.
	Sort bson.D

	// Projection is the field selection document, if any.
	Projection bson.D

	// Duration is the observed execution time.
	Duration time.Duration

	// HasDuration reports whether the raw record carried timing at all.
	// Events without timing are excluded from slow-time-gated analysis.
	HasDuration bool

	// Timestamp is when the query executed, zero if unknown.
	Timestamp time.Time
}
