package timesheet

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"
)

type rawTimeKind uint8

const (
	rawTimeUnset rawTimeKind = iota
	rawTimeLocal
	rawTimeInstant
)

// LocalTimePattern is the fixed "HH:mm" shape of organization-local strings.
var LocalTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// RawTime is a time value as it arrives at the boundary. It is either a
// "HH:mm" string already expressed in the organization's local time, or an
// absolute instant that still has to be projected onto the organization
// timezone. The two variants normalize differently and must not be mixed.
type RawTime struct {
	kind    rawTimeKind
	local   string
	instant time.Time
}

// LocalTime wraps a literal organization-local "HH:mm" string.
func LocalTime(hhmm string) RawTime {
	return RawTime{kind: rawTimeLocal, local: hhmm}
}

// Instant wraps an absolute timestamp.
func Instant(t time.Time) RawTime {
	return RawTime{kind: rawTimeInstant, instant: t}
}

// ParseRawTime classifies a textual time value. "HH:mm" becomes a local
// value; RFC3339 becomes an instant. Anything else is kept as a local value
// so that normalization reports it as invalid instead of guessing.
func ParseRawTime(s string) RawTime {
	if LocalTimePattern.MatchString(s) {
		return LocalTime(s)
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Instant(t)
	}
	return LocalTime(s)
}

func (r RawTime) IsZero() bool    { return r.kind == rawTimeUnset }
func (r RawTime) IsLocal() bool   { return r.kind == rawTimeLocal }
func (r RawTime) IsInstant() bool { return r.kind == rawTimeInstant }

// Local returns the literal local string and whether r is the local variant.
func (r RawTime) Local() (string, bool) {
	return r.local, r.kind == rawTimeLocal
}

// Time returns the instant and whether r is the instant variant.
func (r RawTime) Time() (time.Time, bool) {
	return r.instant, r.kind == rawTimeInstant
}

func (r RawTime) String() string {
	switch r.kind {
	case rawTimeLocal:
		return r.local
	case rawTimeInstant:
		return r.instant.Format(time.RFC3339)
	}
	return ""
}

func (r RawTime) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(r.String())
}

func (r *RawTime) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = RawTime{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time value must be a string: %w", err)
	}
	*r = ParseRawTime(s)
	return nil
}

// RawTimePtr is a small helper for optional fields.
func RawTimePtr(r RawTime) *RawTime {
	return &r
}
