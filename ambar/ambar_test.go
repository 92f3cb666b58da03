package ambar_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/relvacode/iso8601"
	"github.com/stretchr/testify/assert"
	"github.com/technoly/gormeventstore"
	"github.com/technoly/gormeventstore/ambar"
	"github.com/technoly/gormeventstore/ambar/testutil"
)

func TestShould_Project_Required_Data(t *testing.T) {
	var a = ambar.New()

	recordedAt, err := iso8601.ParseString(testutil.AmbarPayload.RecordedAt)
	if err != nil {
		t.Fatal(err)
	}

	var called bool

	projection := func(env eventstore.EventEnvelope) error {
		called = true

		assert.Equal(t, eventstore.EventEnvelope{
			Event: eventstore.Event{
				ID:   eventstore.EventID(testutil.AmbarPayload.ID),
				Type: "TestEvent",
				Data: eventstore.EventData(testutil.AmbarPayload.Data),
			},
			StreamName:     "stream-id",
			Version:        0,
			SequenceNumber: 1,
			RecordedAt:     recordedAt.UTC().Truncate(time.Microsecond),
		}, env)

		return nil
	}

	err = a.Project(context.Background(), projection, testutil.Payload(t, testutil.AmbarPayload))

	assert.NoError(t, err)
	assert.True(t, called)
}

func TestShould_Decode_Projected_Event_Data(t *testing.T) {
	var a = ambar.New()

	enc := eventstore.NewJSONEncoder(testutil.TestEvent{})

	projection := func(env eventstore.EventEnvelope) error {
		decoded, err := enc.Decode(&eventstore.EncodedEvt{
			Data: env.Event.Data,
			Type: env.Event.Type,
		})

		assert.NoError(t, err)
		assert.Equal(t, testutil.Event, decoded)

		return nil
	}

	err := a.Project(context.Background(), projection, testutil.Payload(t, testutil.AmbarPayload))

	assert.NoError(t, err)
}

func TestShould_Retry_On_Bad_Date_Format(t *testing.T) {
	p := testutil.AmbarPayload

	p.RecordedAt = "bad-date-time"

	var a = ambar.New()

	err := a.Project(context.Background(), nil, testutil.Payload(t, p))

	assert.ErrorIs(t, err, ambar.ErrRetry)

	var decodeErr *eventstore.DecodeError

	assert.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, eventstore.EventID("event-id"), decodeErr.EventID)
}

func TestShould_Retry_On_Bad_Meta_Format(t *testing.T) {
	p := testutil.AmbarPayload

	badMeta := "bad-meta"

	p.Metadata = &badMeta

	var a = ambar.New()

	err := a.Project(context.Background(), nil, testutil.Payload(t, p))

	assert.ErrorIs(t, err, ambar.ErrRetry)
}

func TestShould_Not_Project_Unselected_Event_Types(t *testing.T) {
	var a = ambar.New("SomethingElse")

	err := a.Project(context.Background(), func(eventstore.EventEnvelope) error {
		t.Fatal("event should not have been projected")

		return nil
	}, testutil.Payload(t, testutil.AmbarPayload))

	assert.NoError(t, err)
}

func TestShould_Project_Optional_Data(t *testing.T) {
	p := testutil.AmbarPayload

	meta := map[string]any{
		"foo": "bar",
	}

	metaData, err := json.Marshal(meta)
	if err != nil {
		t.Fatal(err)
	}

	metaStr := string(metaData)
	correlationID := "correlation-id"
	causationID := "causation-id"

	p.Metadata = &metaStr
	p.CausationID = &causationID
	p.CorrelationID = &correlationID

	var a = ambar.New()

	projection := func(env eventstore.EventEnvelope) error {
		assert.Equal(t, eventstore.CorrelationID(correlationID), *env.Event.CorrelationID)
		assert.Equal(t, eventstore.CausationID(causationID), *env.Event.CausationID)
		assert.Equal(t, eventstore.EventMetadata(meta), env.Event.Metadata)

		return nil
	}

	err = a.Project(context.Background(), projection, testutil.Payload(t, p))

	assert.NoError(t, err)
}

func TestShould_Propagate_Projection_Error(t *testing.T) {
	var a = ambar.New()

	err := a.Project(context.Background(), func(eventstore.EventEnvelope) error {
		return ambar.ErrKeepItGoing
	}, testutil.Payload(t, testutil.AmbarPayload))

	assert.ErrorIs(t, err, ambar.ErrKeepItGoing)
}
