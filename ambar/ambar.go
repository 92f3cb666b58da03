// Package ambar projects events delivered by Ambar (https://ambar.cloud),
// which streams the rows of the events table to HTTP data destinations.
package ambar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/technoly/gormeventstore"
	"gorm.io/datatypes"
)

var (
	// ErrNoRetry is the error returned when we don't want to retry
	// projecting events in case of an error.
	ErrNoRetry = errors.New("no retry")

	// ErrRetry is returned (wrapped) when an event could not be decoded
	// and Ambar should deliver it again
	ErrRetry = errors.New("retry")

	// ErrKeepItGoing is the error returned when we want to keep projecting
	// events in case of an error
	ErrKeepItGoing = errors.New("keep it going")
)

// SuccessResp is the success response
// https://docs.ambar.cloud/#Data%20Destinations
var SuccessResp = `{
  "result": {
    "success": {}
  }
}`

// RetryResp is the retry response
// https://docs.ambar.cloud/#Data%20Destinations
var RetryResp = `{
  "result": {
    "error": {
      "policy": "must_retry",
      "class": "must retry it",
      "description": "must retry it"
    }
  }
}`

// KeepGoingResp is the keep going response
// https://docs.ambar.cloud/#Data%20Destinations
var KeepGoingResp = `{
  "result": {
    "error": {
      "policy": "keep_going",
      "class": "keep it going",
      "description": "keep it going"
    }
  }
}`

// New constructs a new Ambar projection handler. If types are given,
// events of other types are acknowledged without being projected.
func New(types ...eventstore.EventType) *Ambar {
	return &Ambar{types: types}
}

// Ambar is a projection handler for ambar events
type Ambar struct {
	types []eventstore.EventType
}

// Req is the ambar projection request
type Req struct {
	Payload Payload `json:"payload"`
}

// Payload is the ambar projection request payload, one row of the events table
type Payload struct {
	SequenceNumber uint64  `json:"sequencenumber"`
	Stream         string  `json:"stream"`
	Version        uint64  `json:"version"`
	Type           string  `json:"type"`
	Data           string  `json:"payload"`
	Metadata       *string `json:"metadata"`
	ID             string  `json:"id"`
	CorrelationID  *string `json:"correlationid"`
	CausationID    *string `json:"causationid"`
	RecordedAt     string  `json:"recordedat"`
}

// Project projects ambar event to provided projection
// It will return an ErrRetry error if the event can not be decoded
func (a *Ambar) Project(_ context.Context, projection eventstore.Projection, data []byte) error {
	var req Req

	err := json.Unmarshal(data, &req)
	if err != nil {
		return err
	}

	p := req.Payload

	if len(a.types) > 0 && !slices.Contains(a.types, eventstore.EventType(p.Type)) {
		return nil
	}

	recordedAt, err := eventstore.ParseTimestamp(p.RecordedAt)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRetry, &eventstore.DecodeError{
			EventID: eventstore.EventID(p.ID),
			Field:   "recordedat",
			Value:   p.RecordedAt,
			Err:     err,
		})
	}

	rec := eventstore.Record{
		SequenceNumber: p.SequenceNumber,
		Stream:         p.Stream,
		Version:        p.Version,
		Type:           p.Type,
		Payload:        p.Data,
		ID:             p.ID,
		CorrelationID:  p.CorrelationID,
		CausationID:    p.CausationID,
		RecordedAt:     recordedAt,
	}

	if p.Metadata != nil {
		rec.Metadata = datatypes.JSON(*p.Metadata)
	}

	env, err := eventstore.DecodeRecord(rec)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRetry, err)
	}

	return projection(env)
}
