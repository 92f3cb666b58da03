package eventstore

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// EncodedEvt represents encoded event used by a specific encoder implementation
type EncodedEvt struct {
	Data EventData
	Type EventType
}

// Encoder is used to convert domain event values to event payloads and
// back (see bundled JSONEncoder)
type Encoder interface {
	Encode(any) (*EncodedEvt, error)
	Decode(*EncodedEvt) (any, error)
}

// NewJSONEncoder constructs json encoder
// Each event type needs to be registered by passing an instance
func NewJSONEncoder(evts ...any) *JSONEncoder {
	enc := JSONEncoder{
		types: make(map[EventType]reflect.Type),
	}

	for _, evt := range evts {
		t := reflect.TypeOf(evt)
		if t.Kind() == reflect.Ptr {
			t = t.Elem()
		}

		enc.types[EventType(t.Name())] = t
	}

	return &enc
}

// JSONEncoder provides default json Encoder implementation
// It will marshal and unmarshal events to/from json and use the type name
// as the event type
type JSONEncoder struct {
	types map[EventType]reflect.Type
}

// Encode marshals incoming event to it's json representation
func (e *JSONEncoder) Encode(evt any) (*EncodedEvt, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, err
	}

	t := reflect.TypeOf(evt)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return &EncodedEvt{
		Type: EventType(t.Name()),
		Data: EventData(data),
	}, nil
}

// Decode unmarshals incoming event to it's corresponding go type
func (e *JSONEncoder) Decode(evt *EncodedEvt) (any, error) {
	t, ok := e.types[evt.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEventNotRegistered, evt.Type)
	}

	v := reflect.New(t)

	err := json.Unmarshal([]byte(evt.Data), v.Interface())
	if err != nil {
		return nil, err
	}

	return v.Elem().Interface(), nil
}

// ToEvent encodes a domain event value into an Event with a new id
func ToEvent(enc Encoder, evt any) (Event, error) {
	encoded, err := enc.Encode(evt)
	if err != nil {
		return Event{}, err
	}

	return NewEvent(encoded.Type, encoded.Data)
}
