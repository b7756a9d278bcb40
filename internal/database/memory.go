package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Syn1ak/notes-api-autotest/internal/models"
)

// Memory keeps notes in a map. It backs STORAGE=memory and the tests.
type Memory struct {
	mu    sync.RWMutex
	notes map[string]models.Note
	// insertion order, used to keep equal titles in a stable order
	order []string
}

func NewMemory() *Memory {
	return &Memory{notes: make(map[string]models.Note)}
}

func (m *Memory) ListAll(ctx context.Context) ([]models.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	notes := make([]models.Note, 0, len(m.order))
	for _, id := range m.order {
		notes = append(notes, cloneNote(m.notes[id]))
	}
	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].Title < notes[j].Title
	})
	return notes, nil
}

func (m *Memory) FindByID(ctx context.Context, id string) (*models.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	n, ok := m.notes[id]
	if !ok {
		return nil, models.ErrNoteNotFound
	}
	n = cloneNote(n)
	return &n, nil
}

func (m *Memory) Insert(ctx context.Context, in models.CreateNoteInput) (*models.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.notes[in.ID]; exists {
		return nil, fmt.Errorf("duplicate key value violates unique constraint: id %s", in.ID)
	}
	n := cloneNote(models.Note{ID: in.ID, Title: in.Title, Content: in.Content})
	m.notes[in.ID] = n
	m.order = append(m.order, in.ID)
	n = cloneNote(n)
	return &n, nil
}

func (m *Memory) MergeAndFetch(ctx context.Context, in models.UpdateNoteInput) (*models.Note, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.notes[in.NoteID]
	if !ok {
		return nil, models.ErrNoteNotFound
	}
	if in.Title != nil {
		n.Title = *in.Title
	}
	if in.ClearContent {
		n.Content = nil
	} else if in.Content != nil {
		c := *in.Content
		n.Content = &c
	}
	m.notes[in.NoteID] = n
	n = cloneNote(n)
	return &n, nil
}

func (m *Memory) DeleteByID(ctx context.Context, id string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.notes[id]; !ok {
		return 0, nil
	}
	delete(m.notes, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return 1, nil
}

func (m *Memory) Close() error {
	return nil
}

func cloneNote(n models.Note) models.Note {
	if n.Content != nil {
		c := *n.Content
		n.Content = &c
	}
	return n
}
