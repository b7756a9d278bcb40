package utils

import (
	"errors"

	"github.com/google/uuid"
)

var ErrInvalidNoteID = errors.New("validation failed (uuid is expected)")

// ParseNoteID accepts only the 36 character hyphenated form and returns it
// lower-cased. uuid.Parse alone would also let urn: and braced forms through.
func ParseNoteID(raw string) (string, error) {
	if len(raw) != 36 {
		return "", ErrInvalidNoteID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrInvalidNoteID
	}
	return id.String(), nil
}

func NewNoteID() string {
	return uuid.NewString()
}

func NilIfEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}

func EmptyIfNil(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
