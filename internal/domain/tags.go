package domain

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// StringArray is a custom type for storing string arrays as JSON in the database.
type StringArray []string

// Value implements the driver.Valuer interface for database serialization.
// HTML characters are stored as written so the column text stays searchable.
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode([]string(a)); err != nil {
		return nil, err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Scan implements the sql.Scanner interface for database deserialization.
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		str, ok := value.(string)
		if !ok {
			return errors.New("failed to scan StringArray")
		}
		bytes = []byte(str)
	}
	return json.Unmarshal(bytes, a)
}

// ParseTags splits a comma separated tag list, trimming blanks and duplicates.
// Order of first occurrence is kept.
func ParseTags(raw string) StringArray {
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	tags := make(StringArray, 0, len(parts))
	for _, p := range parts {
		tag := strings.TrimSpace(p)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}

// ContainsFold reports whether any single tag contains sub, ignoring case.
func (a StringArray) ContainsFold(sub string) bool {
	sub = strings.ToLower(sub)
	for _, tag := range a {
		if strings.Contains(strings.ToLower(tag), sub) {
			return true
		}
	}
	return false
}

// Joined returns the tags as a comma separated string.
func (a StringArray) Joined() string {
	return strings.Join(a, ",")
}
