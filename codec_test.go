package eventstore_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/technoly/gormeventstore"
	"gorm.io/datatypes"
)

func TestShouldRoundTripRecord(t *testing.T) {
	recordedAt := time.Date(2024, 10, 12, 20, 7, 22, 436271999, time.FixedZone("CEST", 2*60*60))

	evt := eventstore.Event{
		ID:   "event-1",
		Type: "OrderPlaced",
		Data: `{"total":42}`,
	}.
		WithMetadata(eventstore.EventMetadata{"ip": "127.0.0.1"}).
		WithCorrelationID("correlation-1").
		WithCausationID("causation-1")

	rec, err := eventstore.EncodeRecord(evt, "orders:1", 3, recordedAt)
	require.NoError(t, err)

	assert.Equal(t, "2024-10-12 18:07:22.436271", rec.RecordedAt.Raw)

	rec.SequenceNumber = 11

	env, err := eventstore.DecodeRecord(rec)
	require.NoError(t, err)

	assert.Equal(t, evt, env.Event)
	assert.Equal(t, eventstore.StreamName("orders:1"), env.StreamName)
	assert.Equal(t, eventstore.Version(3), env.Version)
	assert.Equal(t, eventstore.SequenceNumber(11), env.SequenceNumber)
	assert.True(t, recordedAt.Truncate(time.Microsecond).Equal(env.RecordedAt))
	assert.Equal(t, time.UTC, env.RecordedAt.Location())
}

func TestShouldDecodeRecordWithoutOptionalFields(t *testing.T) {
	ts, err := eventstore.ParseTimestamp("2024-10-12 20:07:22.436271")
	require.NoError(t, err)

	env, err := eventstore.DecodeRecord(eventstore.Record{
		SequenceNumber: 1,
		Stream:         "orders:1",
		Type:           "OrderPlaced",
		Payload:        "{}",
		Metadata:       datatypes.JSON("null"),
		ID:             "event-1",
		RecordedAt:     ts,
	})
	require.NoError(t, err)

	assert.Nil(t, env.Event.Metadata)
	assert.Nil(t, env.Event.CorrelationID)
	assert.Nil(t, env.Event.CausationID)
	assert.True(t, time.Date(2024, 10, 12, 20, 7, 22, 436271000, time.UTC).Equal(env.RecordedAt))
}

func TestShouldReportInvalidTimestamp(t *testing.T) {
	_, err := eventstore.DecodeRecord(eventstore.Record{
		ID:         "event-1",
		RecordedAt: eventstore.Timestamp{Raw: "yesterday"},
	})

	var decodeErr *eventstore.DecodeError

	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, eventstore.EventID("event-1"), decodeErr.EventID)
	assert.Equal(t, "recordedat", decodeErr.Field)
	assert.Equal(t, "yesterday", decodeErr.Value)
	assert.Equal(t, `failed to parse "recordedat" value of "yesterday" in event "event-1"`, err.Error())
}

func TestShouldReportInvalidMetadata(t *testing.T) {
	_, err := eventstore.DecodeRecord(eventstore.Record{
		ID:         "event-1",
		Metadata:   datatypes.JSON("{"),
		RecordedAt: eventstore.NewTimestamp(time.Now()),
	})

	var decodeErr *eventstore.DecodeError

	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "metadata", decodeErr.Field)
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
	}{
		{"2024-10-12 20:07:22.436271", time.Date(2024, 10, 12, 20, 7, 22, 436271000, time.UTC)},
		{"2024-10-12 20:07:22", time.Date(2024, 10, 12, 20, 7, 22, 0, time.UTC)},
		{"2024-10-12T20:07:22.436271Z", time.Date(2024, 10, 12, 20, 7, 22, 436271000, time.UTC)},
		{"2024-10-12T22:07:22.436271+02:00", time.Date(2024, 10, 12, 20, 7, 22, 436271000, time.UTC)},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			ts, err := eventstore.ParseTimestamp(tc.in)

			require.NoError(t, err)
			assert.True(t, ts.Valid)
			assert.Equal(t, tc.in, ts.Raw)
			assert.True(t, tc.want.Equal(ts.Time))
		})
	}

	ts, err := eventstore.ParseTimestamp("not a timestamp")

	assert.Error(t, err)
	assert.False(t, ts.Valid)
}

func TestTimestampScan(t *testing.T) {
	var ts eventstore.Timestamp

	require.NoError(t, ts.Scan([]byte("2024-10-12 20:07:22.436271")))
	assert.True(t, ts.Valid)

	require.NoError(t, ts.Scan(time.Time{}))
	assert.False(t, ts.Valid)
	assert.NotEmpty(t, ts.Raw)

	require.NoError(t, ts.Scan("garbage"))
	assert.False(t, ts.Valid)
	assert.Equal(t, "garbage", ts.Raw)

	assert.Error(t, ts.Scan(42))

	_, err := eventstore.Timestamp{Raw: "garbage"}.Value()
	assert.Error(t, err)
}
