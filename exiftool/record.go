package exiftool

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// SourceFileTag is the key exiftool uses to name the file a record describes.
const SourceFileTag = "SourceFile"

// Record is the decoded metadata of one file, keyed by qualified tag name
// ("EXIF:DateTimeOriginal"). Values are whatever the JSON held: string,
// float64, bool, []any or map[string]any.
type Record map[string]any

// SourceFile returns the file the record describes.
func (r Record) SourceFile() string {
	s, _ := r[SourceFileTag].(string)
	return s
}

// Get returns the value stored under an exact tag name.
func (r Record) Get(tag string) (any, bool) {
	v, ok := r[tag]
	return v, ok
}

// Lookup finds a tag by exact name or, for an unqualified name such as
// "Make", by the first qualified key (in sorted order) whose tag part
// matches. It returns the key that matched.
func (r Record) Lookup(tag string) (string, any, bool) {
	if v, ok := r[tag]; ok {
		return tag, v, true
	}
	if strings.Contains(tag, ":") {
		return "", nil, false
	}
	for _, key := range r.Tags() {
		if _, name := SplitTag(key); name == tag {
			return key, r[key], true
		}
	}
	return "", nil, false
}

// String returns the value of tag formatted as text, or "" when absent.
func (r Record) String(tag string) string {
	v, ok := r[tag]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

// Float returns a numeric tag value. Numeric strings are parsed.
func (r Record) Float(tag string) (float64, bool) {
	switch val := r[tag].(type) {
	case float64:
		return val, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Tags returns the record's keys in sorted order.
func (r Record) Tags() []string {
	return slices.Sorted(maps.Keys(r))
}

// Group returns the tags of one group, keyed by unqualified tag name.
func (r Record) Group(group string) Record {
	out := Record{}
	for key, v := range r {
		if g, name := SplitTag(key); g == group {
			out[name] = v
		}
	}
	return out
}

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	return maps.Clone(r)
}

// SplitTag splits a qualified tag name into group and tag. Unqualified
// names return an empty group.
func SplitTag(qualified string) (group, name string) {
	if i := strings.LastIndex(qualified, ":"); i >= 0 {
		return qualified[:i], qualified[i+1:]
	}
	return "", qualified
}
