// Package realtime is the table change-feed: repositories publish an Event
// after every committed write and services subscribe per table with an
// optional row filter.
package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

type Event struct {
	Table           string          `json:"table"`
	Type            EventType       `json:"type"`
	Record          json.RawMessage `json:"record,omitempty"`
	OldRecord       json.RawMessage `json:"old_record,omitempty"`
	CommitTimestamp time.Time       `json:"commit_timestamp"`
}

// NewEvent marshals row into an event for table.
func NewEvent(table string, eventType EventType, row interface{}) (Event, error) {
	record, err := json.Marshal(row)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s row: %w", table, err)
	}
	return Event{
		Table:           table,
		Type:            eventType,
		Record:          record,
		CommitTimestamp: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the event's record into dst.
func (e Event) Decode(dst interface{}) error {
	if len(e.Record) == 0 {
		return fmt.Errorf("%s %s event has no record", e.Table, e.Type)
	}
	return json.Unmarshal(e.Record, dst)
}

// Filter restricts a subscription to rows whose Column equals Value. The
// zero Filter matches everything.
type Filter struct {
	Column string
	Value  string
}

// ParseFilter reads the "column=eq.value" form.
func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return Filter{}, nil
	}
	column, rest, ok := strings.Cut(s, "=")
	if !ok || column == "" {
		return Filter{}, fmt.Errorf("invalid filter %q", s)
	}
	value, ok := strings.CutPrefix(rest, "eq.")
	if !ok {
		return Filter{}, fmt.Errorf("unsupported filter operator in %q", s)
	}
	return Filter{Column: column, Value: value}, nil
}

// Eq builds a filter on column equal to value.
func Eq(column string, value interface{}) Filter {
	return Filter{Column: column, Value: fmt.Sprint(value)}
}

func (f Filter) IsZero() bool {
	return f.Column == ""
}

func (f Filter) String() string {
	if f.IsZero() {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// Matches compares the filtered column of the event's record. Deletes are
// matched against the old record when the new one is empty.
func (f Filter) Matches(e Event) bool {
	if f.IsZero() {
		return true
	}
	raw := e.Record
	if len(raw) == 0 {
		raw = e.OldRecord
	}
	var row map[string]interface{}
	if err := json.Unmarshal(raw, &row); err != nil {
		return false
	}
	v, ok := row[f.Column]
	if !ok || v == nil {
		return f.Value == "null"
	}
	switch t := v.(type) {
	case float64:
		// JSON numbers decode as float64; ids must compare as integers.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t)) == f.Value
		}
		return fmt.Sprint(t) == f.Value
	default:
		return fmt.Sprint(t) == f.Value
	}
}

// Subscription selects the events a handler receives.
type Subscription struct {
	Table  string
	Events []EventType
	Filter Filter
}

// Channel names the subscription in logs and errors.
func (s Subscription) Channel() string {
	if s.Filter.IsZero() {
		return s.Table
	}
	return s.Table + ":" + s.Filter.String()
}

func (s Subscription) wants(e Event) bool {
	if e.Table != s.Table {
		return false
	}
	if len(s.Events) > 0 {
		found := false
		for _, t := range s.Events {
			if t == e.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return s.Filter.Matches(e)
}
