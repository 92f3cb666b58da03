package eventstore

import (
	"fmt"
	"log/slog"
)

// Version is the position of an event within its stream.
// Versions are gap free and start at FirstVersion.
type Version uint64

// FirstVersion is the version of the first event of every stream
const FirstVersion Version = 0

// Next returns the version following v
func (v Version) Next() Version { return v + 1 }

// SlogAttr returns v as a structured log attribute
func (v Version) SlogAttr() slog.Attr { return slog.Uint64("version", uint64(v)) }

// SequenceNumber is the global, store assigned position of an event.
// It totally orders all events across all streams.
type SequenceNumber uint64

// SlogAttr returns s as a structured log attribute
func (s SequenceNumber) SlogAttr() slog.Attr { return slog.Uint64("sequence_number", uint64(s)) }

// MaybeVersion is the current version of a stream, which is nothing
// for streams without events
type MaybeVersion struct {
	version Version
	ok      bool
}

// NoVersion returns the version of an empty stream
func NoVersion() MaybeVersion { return MaybeVersion{} }

// JustVersion wraps an existing stream version
func JustVersion(v Version) MaybeVersion { return MaybeVersion{version: v, ok: true} }

// IsNothing reports whether the stream has no events
func (m MaybeVersion) IsNothing() bool { return !m.ok }

// Unwrap returns the version and whether there is one
func (m MaybeVersion) Unwrap() (Version, bool) { return m.version, m.ok }

// NextVersion returns the version the next appended event receives
func (m MaybeVersion) NextVersion() Version {
	if !m.ok {
		return FirstVersion
	}

	return m.version.Next()
}

// String returns a string representation of the MaybeVersion
func (m MaybeVersion) String() string {
	if !m.ok {
		return "nothing"
	}

	return fmt.Sprintf("%d", m.version)
}

type expectedVersionKind int

const (
	expectAny expectedVersionKind = iota
	expectNoStream
	expectExact
)

// ExpectedVersion is the optimistic concurrency policy a commit is
// verified against
type ExpectedVersion struct {
	kind    expectedVersionKind
	version Version
}

// AnyVersion skips version verification
func AnyVersion() ExpectedVersion { return ExpectedVersion{kind: expectAny} }

// NoStream requires the stream to have no events
func NoStream() ExpectedVersion { return ExpectedVersion{kind: expectNoStream} }

// ExactVersion requires the stream to be at exactly the given version
func ExactVersion(v Version) ExpectedVersion { return ExpectedVersion{kind: expectExact, version: v} }

// IsAny reports whether this is the AnyVersion policy
func (e ExpectedVersion) IsAny() bool { return e.kind == expectAny }

// IsNoStream reports whether this is the NoStream policy
func (e ExpectedVersion) IsNoStream() bool { return e.kind == expectNoStream }

// Exact returns the expected version and whether this is an ExactVersion policy
func (e ExpectedVersion) Exact() (Version, bool) { return e.version, e.kind == expectExact }

// Verify checks the current stream version against the policy.
// A mismatch is reported as *ConcurrencyError.
func (e ExpectedVersion) Verify(current MaybeVersion) error {
	switch e.kind {
	case expectAny:
		return nil
	case expectNoStream:
		if current.IsNothing() {
			return nil
		}
	case expectExact:
		if v, ok := current.Unwrap(); ok && v == e.version {
			return nil
		}
	}

	return &ConcurrencyError{
		Reason: fmt.Sprintf("expected version %s does not match current version %s", e, current),
	}
}

// String returns a string representation of the ExpectedVersion
func (e ExpectedVersion) String() string {
	switch e.kind {
	case expectNoStream:
		return "NoStream"
	case expectExact:
		return fmt.Sprintf("Exact(%d)", e.version)
	default:
		return "Any"
	}
}
