package models

import (
	"encoding/json"
	"errors"
)

// ErrNoteNotFound is returned by repositories when no row matches an id.
var ErrNoteNotFound = errors.New("note not found")

type Note struct {
	ID      string  `db:"id"`
	Title   string  `db:"title"`
	Content *string `db:"content"`
}

type CreateNoteInput struct {
	ID      string
	Title   string
	Content *string
}

// UpdateNoteInput is a partial merge. Nil fields keep the stored value;
// ClearContent sets content back to NULL.
type UpdateNoteInput struct {
	NoteID       string
	Title        *string
	Content      *string
	ClearContent bool
}

// HasChanges reports whether the merge touches any column.
func (in UpdateNoteInput) HasChanges() bool {
	return in.Title != nil || in.Content != nil || in.ClearContent
}

// CreateNoteRequest is the body of POST /notes.
type CreateNoteRequest struct {
	Title   string  `json:"title" validate:"required,max=255"`
	Content *string `json:"content"`
}

// UpdateNoteRequest is the body of PUT /notes/{id}.
type UpdateNoteRequest struct {
	Title   *string        `json:"title" validate:"omitempty,min=1,max=255"`
	Content OptionalString `json:"content"`
}

// OptionalString tells an omitted JSON field apart from an explicit null.
type OptionalString struct {
	Set   bool
	Value *string
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	o.Value = &s
	return nil
}

// NoteDTO is the wire shape of a note. Content is never null.
type NoteDTO struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type NoteList struct {
	Items []NoteDTO `json:"items"`
}

type DeleteResult struct {
	Success bool `json:"success"`
}
