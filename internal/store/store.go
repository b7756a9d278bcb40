package store

import (
	"context"
	"errors"
	"strings"

	"github.com/Syn1ak/notes-api-autotest/internal/models"
	"github.com/Syn1ak/notes-api-autotest/internal/utils"
	"github.com/hashicorp/go-hclog"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Repository is the persistence capability the store needs. FindByID and
// MergeAndFetch return models.ErrNoteNotFound for unknown ids.
type Repository interface {
	ListAll(ctx context.Context) ([]models.Note, error)
	FindByID(ctx context.Context, id string) (*models.Note, error)
	Insert(ctx context.Context, in models.CreateNoteInput) (*models.Note, error)
	MergeAndFetch(ctx context.Context, in models.UpdateNoteInput) (*models.Note, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
}

// Store is what the HTTP layer calls.
type Store interface {
	ListAll(ctx context.Context) (models.NoteList, error)
	Create(ctx context.Context, req models.CreateNoteRequest) (models.NoteDTO, error)
	GetByID(ctx context.Context, id string) (models.NoteDTO, error)
	Update(ctx context.Context, id string, req models.UpdateNoteRequest) (models.NoteDTO, error)
	Remove(ctx context.Context, id string) (models.DeleteResult, error)
}

type NoteStore struct {
	repo   Repository
	newID  func() string
	logger hclog.Logger
}

func NewNoteStore(repo Repository, logger hclog.Logger) *NoteStore {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &NoteStore{
		repo:   repo,
		newID:  utils.NewNoteID,
		logger: logger,
	}
}

func (s *NoteStore) ListAll(ctx context.Context) (models.NoteList, error) {
	notes, err := s.repo.ListAll(ctx)
	if err != nil {
		return models.NoteList{}, s.storageError(ctx, "list notes", err)
	}
	return utils.NotesToList(notes), nil
}

func (s *NoteStore) Create(ctx context.Context, req models.CreateNoteRequest) (models.NoteDTO, error) {
	if req.Title == "" {
		return models.NoteDTO{}, status.Error(codes.InvalidArgument, "title should not be empty")
	}
	if err := rejectNUL(&req.Title, req.Content); err != nil {
		return models.NoteDTO{}, err
	}

	note, err := s.repo.Insert(ctx, utils.ToCreateNoteInput(s.newID(), req))
	if err != nil {
		return models.NoteDTO{}, s.storageError(ctx, "create note", err)
	}
	s.logger.Debug("note created", "id", note.ID)
	return utils.NoteToDTO(*note), nil
}

func (s *NoteStore) GetByID(ctx context.Context, id string) (models.NoteDTO, error) {
	noteID, err := parseID(id)
	if err != nil {
		return models.NoteDTO{}, err
	}

	note, err := s.repo.FindByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, models.ErrNoteNotFound) {
			return models.NoteDTO{}, notFound(id)
		}
		return models.NoteDTO{}, s.storageError(ctx, "get note", err)
	}
	return utils.NoteToDTO(*note), nil
}

func (s *NoteStore) Update(ctx context.Context, id string, req models.UpdateNoteRequest) (models.NoteDTO, error) {
	noteID, err := parseID(id)
	if err != nil {
		return models.NoteDTO{}, err
	}
	if req.Title != nil && *req.Title == "" {
		return models.NoteDTO{}, status.Error(codes.InvalidArgument, "title should not be empty")
	}
	if err := rejectNUL(req.Title, req.Content.Value); err != nil {
		return models.NoteDTO{}, err
	}

	note, err := s.repo.MergeAndFetch(ctx, utils.ToUpdateNoteInput(noteID, req))
	if err != nil {
		if errors.Is(err, models.ErrNoteNotFound) {
			return models.NoteDTO{}, notFound(id)
		}
		return models.NoteDTO{}, s.storageError(ctx, "update note", err)
	}
	if note == nil {
		return models.NoteDTO{}, notFound(id)
	}
	s.logger.Debug("note updated", "id", note.ID)
	return utils.NoteToDTO(*note), nil
}

func (s *NoteStore) Remove(ctx context.Context, id string) (models.DeleteResult, error) {
	noteID, err := parseID(id)
	if err != nil {
		return models.DeleteResult{}, err
	}

	affected, err := s.repo.DeleteByID(ctx, noteID)
	if err != nil {
		return models.DeleteResult{}, s.storageError(ctx, "delete note", err)
	}
	if affected == 0 {
		return models.DeleteResult{}, notFound(id)
	}
	s.logger.Debug("note deleted", "id", noteID)
	return models.DeleteResult{Success: true}, nil
}

func parseID(id string) (string, error) {
	noteID, err := utils.ParseNoteID(id)
	if err != nil {
		return "", status.Error(codes.InvalidArgument, err.Error())
	}
	return noteID, nil
}

// rejectNUL refuses text Postgres cannot store.
func rejectNUL(title, content *string) error {
	if title != nil && strings.ContainsRune(*title, 0) {
		return status.Error(codes.InvalidArgument, "title must not contain NUL characters")
	}
	if content != nil && strings.ContainsRune(*content, 0) {
		return status.Error(codes.InvalidArgument, "content must not contain NUL characters")
	}
	return nil
}

func notFound(id string) error {
	return status.Errorf(codes.NotFound, "Note with ID %q not found", id)
}

// storageError turns a repository failure into a status error. Context
// cancellation keeps its own code, everything else is Internal.
func (s *NoteStore) storageError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return status.Error(codes.Canceled, "request canceled")
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	}
	s.logger.Error("storage failure", "op", op, "error", err)
	return status.Errorf(codes.Internal, "failed to %s", op)
}

var _ Store = (*NoteStore)(nil)
