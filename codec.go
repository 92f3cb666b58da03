package eventstore

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/relvacode/iso8601"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// DefaultTableName is the name of the events table unless configured otherwise
const DefaultTableName = "events"

const timestampLayout = "2006-01-02 15:04:05.000000"

// Record is the persisted (one row per event) representation
type Record struct {
	// The monotonic sequence number
	SequenceNumber uint64 `gorm:"column:sequencenumber;primaryKey;autoIncrement"`
	Stream         string `gorm:"column:stream;size:255;not null"`
	Version        uint64 `gorm:"column:version;not null"`
	Type           string `gorm:"column:type;size:255;not null"`
	Payload        string `gorm:"column:payload;type:text;not null"`
	// Metadata is not validated as part of Status, JSON column types
	// differ between backends
	Metadata      datatypes.JSON `gorm:"column:metadata"`
	ID            string         `gorm:"column:id;size:255;not null"`
	CorrelationID *string        `gorm:"column:correlationid;size:255"`
	CausationID   *string        `gorm:"column:causationid;size:255"`
	RecordedAt    Timestamp      `gorm:"column:recordedat;not null"`
}

// Timestamp is the microsecond precision recordedat column.
// Values that cannot be parsed when scanned are kept in Raw with Valid
// set to false, so that decoding can report the offending event.
type Timestamp struct {
	Time  time.Time
	Raw   string
	Valid bool
}

// NewTimestamp truncates t to microseconds in UTC
func NewTimestamp(t time.Time) Timestamp {
	t = t.UTC().Truncate(time.Microsecond)

	return Timestamp{
		Time:  t,
		Raw:   t.Format(timestampLayout),
		Valid: true,
	}
}

// ParseTimestamp parses the stored timestamp format, falling back to ISO 8601
func ParseTimestamp(s string) (Timestamp, error) {
	t, err := time.ParseInLocation(time.DateTime, s, time.UTC)
	if err != nil {
		t, err = iso8601.ParseString(s)
		if err != nil {
			return Timestamp{Raw: s}, err
		}
	}

	ts := NewTimestamp(t)
	ts.Raw = s

	return ts, nil
}

// Value implements driver.Valuer
func (t Timestamp) Value() (driver.Value, error) {
	if !t.Valid {
		return nil, fmt.Errorf("invalid recordedat timestamp %q", t.Raw)
	}

	return t.Time.UTC().Format(timestampLayout), nil
}

// Scan implements sql.Scanner
func (t *Timestamp) Scan(src any) error {
	*t = Timestamp{}

	switch v := src.(type) {
	case nil:
	case time.Time:
		// go-sqlite3 yields the zero time for datetime columns it can't
		// parse, the raw value is lost there
		if v.IsZero() {
			t.Raw = "<unparseable datetime>"

			return nil
		}

		*t = NewTimestamp(v)
	case string:
		*t, _ = ParseTimestamp(v)
	case []byte:
		*t, _ = ParseTimestamp(string(v))
	default:
		return fmt.Errorf("unsupported recordedat value of type %T", src)
	}

	return nil
}

// GormDBDataType returns the microsecond precision column type per dialect.
// SQLite stores text, so that malformed values reach Scan unchanged.
func (Timestamp) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "timestamp(6)"
	case "mysql":
		return "datetime(6)"
	case "sqlite":
		return "text"
	default:
		return "datetime"
	}
}

// EncodeRecord converts an event to the record persisted at the given
// stream version. recordedAt is truncated to microseconds.
func EncodeRecord(evt Event, stream StreamName, version Version, recordedAt time.Time) (Record, error) {
	rec := Record{
		Stream:     string(stream),
		Version:    uint64(version),
		Type:       string(evt.Type),
		Payload:    string(evt.Data),
		ID:         string(evt.ID),
		RecordedAt: NewTimestamp(recordedAt),
	}

	if evt.Metadata != nil {
		m, err := json.Marshal(evt.Metadata)
		if err != nil {
			return Record{}, fmt.Errorf("could not encode metadata of event %q: %w", evt.ID, err)
		}

		rec.Metadata = datatypes.JSON(m)
	}

	if evt.CorrelationID != nil {
		id := string(*evt.CorrelationID)
		rec.CorrelationID = &id
	}

	if evt.CausationID != nil {
		id := string(*evt.CausationID)
		rec.CausationID = &id
	}

	return rec, nil
}

// DecodeRecord converts a persisted record back to an envelope. A record
// with an unparseable timestamp or metadata yields a *DecodeError.
func DecodeRecord(rec Record) (EventEnvelope, error) {
	if !rec.RecordedAt.Valid {
		return EventEnvelope{}, &DecodeError{
			EventID: EventID(rec.ID),
			Field:   "recordedat",
			Value:   rec.RecordedAt.Raw,
		}
	}

	evt := Event{
		ID:   EventID(rec.ID),
		Type: EventType(rec.Type),
		Data: EventData(rec.Payload),
	}

	if len(rec.Metadata) > 0 && string(rec.Metadata) != "null" {
		var meta EventMetadata

		if err := json.Unmarshal(rec.Metadata, &meta); err != nil {
			return EventEnvelope{}, &DecodeError{
				EventID: EventID(rec.ID),
				Field:   "metadata",
				Value:   string(rec.Metadata),
				Err:     err,
			}
		}

		evt.Metadata = meta
	}

	if rec.CorrelationID != nil {
		id := CorrelationID(*rec.CorrelationID)
		evt.CorrelationID = &id
	}

	if rec.CausationID != nil {
		id := CausationID(*rec.CausationID)
		evt.CausationID = &id
	}

	return EventEnvelope{
		Event:          evt,
		StreamName:     StreamName(rec.Stream),
		Version:        Version(rec.Version),
		SequenceNumber: SequenceNumber(rec.SequenceNumber),
		RecordedAt:     rec.RecordedAt.Time,
	}, nil
}
