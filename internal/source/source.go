// Package source provides event source implementations for query activity.
//
// A Source yields raw profiling documents one at a time, in arrival order.
// Finite sources (a log file, a batch profiler scan) terminate with
// ErrEndOfStream; streaming sources (tailed profiler, Kafka, Redis Streams)
// block in Next until an event arrives or the context is cancelled.
package source

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

// RawEvent is one undecoded profiling record. Documents are kept ordered
// because sort specifications are order-significant.
type RawEvent = bson.D

// ErrEndOfStream signals that a finite source is exhausted. Not an error
// condition; the run completes normally.
var ErrEndOfStream = errors.New("end of event stream")

// Source yields raw query events.
type Source interface {
	// Next returns the next raw event. It blocks in watch mode until an
	// event arrives, the context is cancelled, or the source closes.
	// Returns ErrEndOfStream when a finite source is exhausted. Errors for
	// which errors.IsMalformedEvent holds describe a single skippable
	// record; any other error is a source failure.
	Next(ctx context.Context) (RawEvent, error)

	// Close releases source resources.
	Close() error
}
