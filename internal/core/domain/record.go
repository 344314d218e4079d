package domain

import (
	"strings"
	"time"
)

// RawRecord is one parsed input row before validation. Value is always
// resolved by the parser; every other field is an optional string that the
// validation phase interprets through the typed accessors below.
type RawRecord struct {
	Index  int               `json:"index"`
	Value  string            `json:"value"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Field returns the named field, or "" when absent.
func (r RawRecord) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// DeclaredType returns the lower-cased "type" field when present.
func (r RawRecord) DeclaredType() IOCType {
	return IOCType(strings.ToLower(strings.TrimSpace(r.Field("type"))))
}

// Context returns the "context" field.
func (r RawRecord) Context() string {
	return r.Field("context")
}

// TagList splits the "tags" field on commas or semicolons, trimming each
// entry and dropping empties.
func (r RawRecord) TagList() []string {
	raw := r.Field("tags")
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(c rune) bool {
		return c == ',' || c == ';'
	})
	var tags []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// recordDateLayouts are tried in order when parsing date fields. A value
// matching none of them yields a zero time, never an error.
var recordDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// Timestamp parses the named field as a date, returning the zero time when
// the field is absent or unparseable.
func (r RawRecord) Timestamp(name string) time.Time {
	raw := strings.TrimSpace(r.Field(name))
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range recordDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// MaliciousFlag coerces the "malicious" field from common string spellings.
// The second return reports whether the field carried a recognizable value.
func (r RawRecord) MaliciousFlag() (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(r.Field("malicious"))) {
	case "true", "yes", "y", "1", "malicious":
		return true, true
	case "false", "no", "n", "0", "benign", "clean":
		return false, true
	default:
		return false, false
	}
}
