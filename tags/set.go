// Package tags holds the ordered tag set edited on post forms, its wire
// encodings and the autocomplete editor built on top of it.
package tags

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Set is an insertion-ordered collection of unique tag names.
type Set struct {
	names []string
}

func NewSet(names ...string) *Set {
	s := &Set{}
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add appends name after trimming it. Empty names and names already present
// are ignored.
func (s *Set) Add(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" || s.Contains(name) {
		return false
	}
	s.names = append(s.names, name)
	return true
}

// Remove drops the exact-match name, if present.
func (s *Set) Remove(name string) bool {
	for i, n := range s.names {
		if n == name {
			s.names = append(s.names[:i:i], s.names[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Set) Contains(name string) bool {
	for _, n := range s.names {
		if n == name {
			return true
		}
	}
	return false
}

func (s *Set) Len() int {
	return len(s.names)
}

// Names returns a copy of the tags in first-insertion order.
func (s *Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Encoding selects how a Set is written into a form's hidden field.
type Encoding string

const (
	// JSON is the canonical encoding: a JSON array of strings.
	JSON Encoding = "json"
	// Comma is the legacy comma-joined encoding. It cannot carry names that
	// contain commas.
	Comma Encoding = "comma"
)

var (
	ErrUnknownEncoding = errors.New("unknown tag encoding")
	ErrCommaInName     = errors.New("tag name contains a comma")
)

// ParseEncoding maps a form declaration to an Encoding. Empty means JSON.
func ParseEncoding(v string) (Encoding, error) {
	switch Encoding(strings.ToLower(strings.TrimSpace(v))) {
	case "", JSON:
		return JSON, nil
	case Comma:
		return Comma, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, v)
	}
}

// Encode writes s in the given encoding.
func Encode(s *Set, enc Encoding) (string, error) {
	names := s.Names()

	switch enc {
	case JSON:
		b, err := json.Marshal(names)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case Comma:
		for _, n := range names {
			if strings.Contains(n, ",") {
				return "", fmt.Errorf("%w: %q", ErrCommaInName, n)
			}
		}
		return strings.Join(names, ","), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
	}
}

// Decode reads a hidden field value written with enc. An empty value is an
// empty set in both encodings.
func Decode(raw string, enc Encoding) (*Set, error) {
	s := NewSet()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s, nil
	}

	switch enc {
	case JSON:
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
		for _, n := range names {
			s.Add(n)
		}
	case Comma:
		for _, n := range strings.Split(raw, ",") {
			s.Add(n)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
	}

	return s, nil
}

// Migrate rewrites a legacy comma-joined value into the canonical encoding.
func Migrate(legacy string) (string, error) {
	s, err := Decode(legacy, Comma)
	if err != nil {
		return "", err
	}
	return Encode(s, JSON)
}
