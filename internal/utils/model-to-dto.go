package utils

import (
	"github.com/Syn1ak/notes-api-autotest/internal/models"
)

// NOTE: conversions between persisted notes and their wire shape live here

func NoteToDTO(n models.Note) models.NoteDTO {
	return models.NoteDTO{
		ID:      n.ID,
		Title:   n.Title,
		Content: EmptyIfNil(n.Content),
	}
}

func NotesToList(notes []models.Note) models.NoteList {
	items := make([]models.NoteDTO, 0, len(notes))
	for _, n := range notes {
		items = append(items, NoteToDTO(n))
	}
	return models.NoteList{Items: items}
}

func ToCreateNoteInput(id string, req models.CreateNoteRequest) models.CreateNoteInput {
	return models.CreateNoteInput{
		ID:      id,
		Title:   req.Title,
		Content: NilIfEmpty(req.Content),
	}
}

// ToUpdateNoteInput folds an explicit null or "" content into ClearContent.
// An omitted content leaves the stored value alone.
func ToUpdateNoteInput(id string, req models.UpdateNoteRequest) models.UpdateNoteInput {
	in := models.UpdateNoteInput{
		NoteID: id,
		Title:  req.Title,
	}
	if req.Content.Set {
		in.Content = NilIfEmpty(req.Content.Value)
		in.ClearContent = in.Content == nil
	}
	return in
}
