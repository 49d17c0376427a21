// Package visibility decides how a post appears to a viewer from its
// visible flag and publication time, and resolves the publish time chosen on
// the edit form.
//
// The state is derived, never stored:
//
//	owner:     !visible            -> draft
//	           publishedAt > now   -> scheduled
//	           otherwise           -> published
//	anonymous: visible && publishedAt <= now -> published, else hidden
package visibility

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

type State string

const (
	Hidden    State = "hidden"
	Draft     State = "draft"
	Scheduled State = "scheduled"
	Published State = "published"
)

type Viewer int

const (
	Anonymous Viewer = iota
	Owner
)

// Derive computes the state of a post for viewer at now.
func Derive(visible bool, publishedAt, now time.Time, viewer Viewer) State {
	if viewer == Owner {
		switch {
		case !visible:
			return Draft
		case publishedAt.After(now):
			return Scheduled
		default:
			return Published
		}
	}

	if visible && !publishedAt.After(now) {
		return Published
	}
	return Hidden
}

// Listable reports whether a post in state s may be enumerated or fetched.
func Listable(s State) bool {
	return s != Hidden
}

type Mode string

const (
	ModeImmediate Mode = "immediate"
	ModeScheduled Mode = "scheduled"
)

// ParseMode reads the publish toggle value. Anything but "scheduled" is
// immediate.
func ParseMode(v string) Mode {
	if strings.EqualFold(strings.TrimSpace(v), string(ModeScheduled)) {
		return ModeScheduled
	}
	return ModeImmediate
}

// InferMode picks the toggle position when an existing document is loaded:
// a non-empty timestamp always means scheduled.
func InferMode(publishedAt string) Mode {
	if strings.TrimSpace(publishedAt) != "" {
		return ModeScheduled
	}
	return ModeImmediate
}

var (
	ErrTimestampRequired = errors.New("publish date is required when scheduling")
	ErrTimestampInvalid  = errors.New("publish date is not a valid date")
)

// Layouts accepted from the form besides RFC 3339. They are read in the site
// timezone.
var localLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseTimestamp reads an RFC 3339 timestamp, or a datetime-local value in loc.
func ParseTimestamp(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, ErrTimestampRequired
	}
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrTimestampInvalid, raw)
}

// Resolve returns the publication time to save. Immediate publishing uses
// now and ignores raw; scheduled publishing requires a parseable raw.
func Resolve(mode Mode, raw string, loc *time.Location, now time.Time) (time.Time, error) {
	if mode != ModeScheduled {
		return now, nil
	}
	return ParseTimestamp(raw, loc)
}

// LoadLocation returns the named timezone, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.Printf("visibility: unknown timezone %q, using UTC", name)
		return time.UTC
	}
	return loc
}
