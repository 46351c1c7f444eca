package event

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/indexscout/index-scout/internal/pkg/errors"
	"github.com/indexscout/index-scout/internal/source"
)

// strategy attempts to recognize one raw encoding. ok reports a structural
// match; a false ok means the next strategy should be tried.
type strategy struct {
	name  string
	parse func(doc bson.D, ev *QueryEvent) (ok bool, err error)
}

// Parser converts raw profiling records into QueryEvents.
type Parser struct {
	strategies []strategy
}

// NewParser creates a parser with the known format strategies in priority
// order: the modern command-document encoding first, then the legacy
// query-document encoding.
func NewParser() *Parser {
	return &Parser{
		strategies: []strategy{
			{name: "command", parse: parseCommandFormat},
			{name: "legacy", parse: parseLegacyFormat},
		},
	}
}

// Parse produces a QueryEvent or a malformed-event error. Records without a
// recognizable query document (inserts, admin commands, truncated entries)
// are malformed: skippable and countable, never fatal.
func (p *Parser) Parse(doc source.RawEvent) (*QueryEvent, error) {
	if len(doc) == 0 {
		return nil, errors.MalformedEvent("empty event document")
	}

	ev := &QueryEvent{}

	if v, ok := lookup(doc, "ns"); ok {
		ev.NS, _ = asString(v)
	}
	if ev.NS == "" {
		return nil, errors.MalformedEvent("missing namespace")
	}

	ev.Duration, ev.HasDuration = extractDuration(doc)

	if v, ok := lookup(doc, "ts"); ok {
		ev.Timestamp, _ = asTime(v)
	}

	for _, s := range p.strategies {
		ok, err := s.parse(doc, ev)
		if err != nil {
			return nil, err
		}
		if ok {
			if ev.Filter == nil {
				ev.Filter = bson.D{}
			}
			return ev, nil
		}
	}

	return nil, errors.MalformedEvent("no recognizable query document").WithDetail("namespace", ev.NS)
}

// extractDuration reads elapsed time under either field-name convention.
// Absence is not an error; such events carry zero time and are excluded from
// slow-time-gated analysis.
func extractDuration(doc bson.D) (time.Duration, bool) {
	for _, key := range []string{"durationMillis", "millis"} {
		if v, ok := lookup(doc, key); ok {
			if ms, ok := asInt64(v); ok {
				return time.Duration(ms) * time.Millisecond, true
			}
		}
	}
	return 0, false
}

// parseCommandFormat handles the modern profiler encoding where the executed
// command document is recorded verbatim.
func parseCommandFormat(doc bson.D, ev *QueryEvent) (bool, error) {
	v, ok := lookup(doc, "command")
	if !ok {
		return false, nil
	}
	cmd, ok := asDoc(v)
	if !ok {
		return false, nil
	}

	op, _ := asString(first(lookup(doc, "op")))
	return parseCommandDoc(cmd, op, ev)
}

func parseCommandDoc(cmd bson.D, op string, ev *QueryEvent) (bool, error) {
	if _, ok := lookup(cmd, "find"); ok {
		ev.Op = OpFind
		ev.Filter = subDoc(cmd, "filter")
		ev.Sort = subDoc(cmd, "sort")
		ev.Projection = subDoc(cmd, "projection")
		return true, nil
	}

	if _, ok := lookup(cmd, "count"); ok {
		ev.Op = OpCount
		ev.Filter = subDoc(cmd, "query")
		return true, nil
	}

	if _, ok := lookup(cmd, "distinct"); ok {
		ev.Op = OpDistinct
		ev.Filter = subDoc(cmd, "query")
		return true, nil
	}

	if _, ok := lookup(cmd, "aggregate"); ok {
		ev.Op = OpAggregate
		parsePipeline(cmd, ev)
		return true, nil
	}

	if _, ok := lookup(cmd, "findAndModify"); ok {
		ev.Op = OpFindAndModify
		ev.Filter = subDoc(cmd, "query")
		ev.Sort = subDoc(cmd, "sort")
		return true, nil
	}

	// Update and remove records carry the predicate as "q".
	if q, ok := lookup(cmd, "q"); ok {
		if filter, ok := asDoc(q); ok {
			ev.Op = normalizeWriteOp(op)
			ev.Filter = filter
			ev.Sort = subDoc(cmd, "sort")
			return true, nil
		}
	}

	// getMore records reference the command that opened the cursor.
	if _, ok := lookup(cmd, "getMore"); ok {
		if orig, ok := lookup(cmd, "originatingCommand"); ok {
			if origDoc, ok := asDoc(orig); ok {
				return parseCommandDoc(origDoc, op, ev)
			}
		}
	}

	return false, nil
}

// parsePipeline extracts the leading $match/$sort prefix of an aggregation.
// Later stages operate on transformed documents and cannot be served by a
// collection index.
func parsePipeline(cmd bson.D, ev *QueryEvent) {
	v, ok := lookup(cmd, "pipeline")
	if !ok {
		return
	}
	stages, ok := asArray(v)
	if !ok {
		return
	}

	for _, raw := range stages {
		stage, ok := asDoc(raw)
		if !ok || len(stage) == 0 {
			return
		}
		switch stage[0].Key {
		case "$match":
			if ev.Filter != nil {
				return
			}
			ev.Filter, _ = asDoc(stage[0].Value)
		case "$sort":
			if ev.Sort != nil {
				return
			}
			ev.Sort, _ = asDoc(stage[0].Value)
		default:
			return
		}
	}
}

// parseLegacyFormat handles pre-3.2 profiler records: a bare query document,
// possibly wrapped in $query/$orderby (or the older query/orderby spelling).
func parseLegacyFormat(doc bson.D, ev *QueryEvent) (bool, error) {
	v, ok := lookup(doc, "query")
	if !ok {
		return false, nil
	}
	q, ok := asDoc(v)
	if !ok {
		return false, nil
	}

	op, _ := asString(first(lookup(doc, "op")))
	switch op {
	case "update":
		ev.Op = OpUpdate
	case "remove":
		ev.Op = OpRemove
	default:
		ev.Op = OpFind
		if _, ok := lookup(doc, "updateobj"); ok {
			ev.Op = OpUpdate
		}
	}

	if inner, ok := lookup(q, "$query"); ok {
		ev.Filter, _ = asDoc(inner)
		ev.Sort = subDoc(q, "$orderby")
		return true, nil
	}
	if inner, ok := lookup(q, "query"); ok {
		if innerDoc, ok := asDoc(inner); ok {
			if _, hasOrder := lookup(q, "orderby"); hasOrder {
				ev.Filter = innerDoc
				ev.Sort = subDoc(q, "orderby")
				return true, nil
			}
		}
	}

	ev.Filter = q
	return true, nil
}

func normalizeWriteOp(op string) string {
	switch op {
	case "remove", "delete":
		return OpRemove
	default:
		return OpUpdate
	}
}

// subDoc returns a named sub-document, or nil when absent or not a document.
func subDoc(doc bson.D, key string) bson.D {
	if v, ok := lookup(doc, key); ok {
		if d, ok := asDoc(v); ok {
			return d
		}
	}
	return nil
}

// first discards the presence flag of lookup for optional fields.
func first(v any, _ bool) any {
	return v
}
