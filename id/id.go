// Package id wraps go.jetify.com/typeid/v2 into the two identifier kinds
// joblet hands out: job IDs and job log entry IDs. Both are TypeIDs — a
// UUIDv7 suffix (so ordering by ID also orders by creation time) rendered
// as "prefix_suffix" — so the prefix tells a job ID from a log ID, and
// ParseJobID and ParseLogID reject the wrong kind. JobID and LogID are
// aliases of the same ID type, so the compiler does not tell them apart.
package id

import (
	"database/sql/driver"
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix is the entity-type tag encoded at the front of every ID this
// package issues.
type Prefix string

const (
	// PrefixJob tags job identifiers.
	PrefixJob Prefix = "job"
	// PrefixLog tags job log entry identifiers.
	PrefixLog Prefix = "jlog"
)

// ID identifies one job or job log entry. The zero value is Nil: a valid,
// comparable "absent" sentinel that Prefix-checked accessors and database
// round-tripping both treat as empty rather than as a parse failure.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receivers for UnmarshalText/Scan.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID, distinct from any generated or parsed ID.
var Nil ID

// JobID names an ID known to carry PrefixJob.
type JobID = ID

// LogID names an ID known to carry PrefixLog.
type LogID = ID

// New mints a fresh ID under prefix. It panics on an invalid prefix, which
// only happens if PrefixJob or PrefixLog is malformed — a build-time
// programming error, never a runtime condition.
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}

	return ID{inner: tid, valid: true}
}

// NewJobID mints a fresh job ID.
func NewJobID() ID { return New(PrefixJob) }

// NewLogID mints a fresh job log entry ID.
func NewLogID() ID { return New(PrefixLog) }

// Parse decodes s (e.g. "job_01h2xcejqtf2nbrexx3vqjhp41") into an ID of
// whatever prefix it carries, without checking which one.
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}

	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}

	return ID{inner: tid, valid: true}, nil
}

// ParseAny is Parse without the type-safe name — used where the caller
// genuinely doesn't know or care which prefix to expect.
func ParseAny(s string) (ID, error) { return Parse(s) }

// ParseWithPrefix decodes s and rejects it unless its prefix equals
// expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}

	if got := parsed.Prefix(); got != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, got)
	}

	return parsed, nil
}

// ParseJobID decodes s and rejects anything but a job ID.
func ParseJobID(s string) (ID, error) { return ParseWithPrefix(s, PrefixJob) }

// ParseLogID decodes s and rejects anything but a job log entry ID.
func ParseLogID(s string) (ID, error) { return ParseWithPrefix(s, PrefixLog) }

// MustParse is Parse for callers holding a value they already know is
// well-formed, such as a constant in a test fixture. It panics otherwise.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}

	return parsed
}

// String renders the full "prefix_suffix" form, or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}

	return i.inner.String()
}

// Prefix reports the entity-type tag, or "" for Nil.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}

	return Prefix(i.inner.Prefix())
}

// IsNil reports whether i is the zero value.
func (i ID) IsNil() bool {
	return !i.valid
}

// MarshalText satisfies encoding.TextMarshaler, rendering Nil as "".
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}

	return []byte(i.inner.String()), nil
}

// UnmarshalText satisfies encoding.TextUnmarshaler. An empty payload
// decodes to Nil rather than erroring, so an absent JSON field round-trips
// cleanly.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil

		return nil
	}

	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}

	*i = parsed

	return nil
}

// Value satisfies driver.Valuer. Nil maps to SQL NULL, matching the
// nullable foreign-key columns some ID-typed fields back.
func (i ID) Value() (driver.Value, error) {
	if !i.valid {
		return nil, nil //nolint:nilnil // nil is the canonical NULL for driver.Valuer
	}

	return i.inner.String(), nil
}

// Scan satisfies sql.Scanner, accepting NULL, TEXT, and BLOB column values.
func (i *ID) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*i = Nil
		return nil
	case string:
		if v == "" {
			*i = Nil
			return nil
		}
		return i.UnmarshalText([]byte(v))
	case []byte:
		if len(v) == 0 {
			*i = Nil
			return nil
		}
		return i.UnmarshalText(v)
	default:
		return fmt.Errorf("id: cannot scan %T into ID", src)
	}
}
