package eventstore

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm/clause"
)

// StreamSelector selects the events to load. It is either a StreamName or
// a VirtualStreamName; no other implementations exist.
type StreamSelector interface {
	streamSelector()
}

func (StreamName) streamSelector() {}

// VirtualStreamType is the kind of computed stream
type VirtualStreamType int

const (
	// VirtualStreamAll spans every stream
	VirtualStreamAll VirtualStreamType = iota + 1
	// VirtualStreamCategory spans all streams starting with a prefix
	VirtualStreamCategory
	// VirtualStreamCorrelationID spans all events sharing a correlation id
	VirtualStreamCorrelationID
)

// String returns a string representation of the VirtualStreamType
func (t VirtualStreamType) String() string {
	switch t {
	case VirtualStreamAll:
		return "all"
	case VirtualStreamCategory:
		return "category"
	case VirtualStreamCorrelationID:
		return "correlation-id"
	default:
		return fmt.Sprintf("VirtualStreamType(%d)", int(t))
	}
}

// VirtualStreamName is a read-only view over multiple streams
type VirtualStreamName struct {
	Type  VirtualStreamType
	Value string
}

func (VirtualStreamName) streamSelector() {}

// AllStreams selects the events of all streams
func AllStreams() VirtualStreamName {
	return VirtualStreamName{Type: VirtualStreamAll}
}

// ForCategory selects the events of all streams whose name starts with prefix
func ForCategory(prefix string) VirtualStreamName {
	return VirtualStreamName{Type: VirtualStreamCategory, Value: prefix}
}

// ForCorrelationID selects all events carrying the given correlation id
func ForCorrelationID(id CorrelationID) VirtualStreamName {
	return VirtualStreamName{Type: VirtualStreamCorrelationID, Value: string(id)}
}

// String returns a string representation of the VirtualStreamName
func (v VirtualStreamName) String() string {
	if v.Type == VirtualStreamAll {
		return "$all"
	}

	return fmt.Sprintf("$%s:%s", v.Type, v.Value)
}

// EventTypes is a set of event types to filter by
type EventTypes []EventType

// EventStreamFilter further restricts loaded events
type EventStreamFilter struct {
	// EventTypes restricts results to the given types. Nil or empty
	// imposes no restriction.
	EventTypes EventTypes
}

// FilterByTypes constructs a filter that only lets the given types through
func FilterByTypes(types ...EventType) *EventStreamFilter {
	return &EventStreamFilter{EventTypes: types}
}

const likeEscape = '!'

// resolve maps a selector and an optional filter to the predicates of a
// read. The returned expressions are combined with AND.
func (d dialect) resolve(sel StreamSelector, filter *EventStreamFilter) ([]clause.Expression, error) {
	var exprs []clause.Expression

	switch s := sel.(type) {
	case StreamName:
		exprs = append(exprs, clause.Eq{Column: clause.Column{Name: "stream"}, Value: string(s)})
	case VirtualStreamName:
		switch s.Type {
		case VirtualStreamAll:
		case VirtualStreamCategory:
			exprs = append(exprs, d.categoryExprs(s.Value)...)
		case VirtualStreamCorrelationID:
			exprs = append(exprs, clause.Eq{Column: clause.Column{Name: "correlationid"}, Value: s.Value})
		default:
			return nil, fmt.Errorf("unknown virtual stream type %s", s.Type)
		}
	case nil:
		return nil, fmt.Errorf("stream selector must be provided")
	default:
		return nil, fmt.Errorf("unsupported stream selector %T", sel)
	}

	if filter != nil && len(filter.EventTypes) > 0 {
		types := make([]any, len(filter.EventTypes))
		for i, t := range filter.EventTypes {
			types[i] = string(t)
		}

		exprs = append(exprs, clause.IN{Column: clause.Column{Name: "type"}, Values: types})
	}

	return exprs, nil
}

// categoryExprs matches stream names starting with prefix. LIKE keeps the
// stream index usable but ignores case on sqlite and on the default mysql
// collations, there a binary comparison of the leading characters follows.
func (d dialect) categoryExprs(prefix string) []clause.Expression {
	stream := clause.Column{Name: "stream"}

	exprs := []clause.Expression{clause.Expr{
		SQL:  fmt.Sprintf("? LIKE ? ESCAPE '%c'", likeEscape),
		Vars: []any{stream, escapeLike(prefix) + "%"},
	}}

	n := utf8.RuneCountInString(prefix)

	switch d.name {
	case "sqlite":
		exprs = append(exprs, clause.Expr{SQL: "substr(?, 1, ?) = ?", Vars: []any{stream, n, prefix}})
	case "mysql":
		exprs = append(exprs, clause.Expr{SQL: "LEFT(?, ?) = CAST(? AS BINARY)", Vars: []any{stream, n, prefix}})
	}

	return exprs
}

func escapeLike(s string) string {
	var b strings.Builder

	for _, r := range s {
		if r == '%' || r == '_' || r == likeEscape {
			b.WriteRune(likeEscape)
		}

		b.WriteRune(r)
	}

	return b.String()
}
