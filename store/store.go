package store

import (
	"context"
	"errors"

	"github.com/studysphere/studysphere/models"
)

type StudyStore interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	AddExperience(ctx context.Context, username string, points int) error
	TopUsersByExperience(ctx context.Context, limit int) ([]models.User, error)

	CreateNote(ctx context.Context, note models.Note) (models.Note, error)
	GetNote(ctx context.Context, noteId string) (models.Note, error)
	ListNotes(ctx context.Context, filter models.NoteFilter) ([]models.Note, error)
	IncrementNoteLikes(ctx context.Context, noteId string) error

	CreateLike(ctx context.Context, like models.Like) error
	GetUserLikes(ctx context.Context, username string) ([]string, error)
}

// Custom error types for clarity
var (
	ErrItemNotFound    = errors.New("item does not exist")
	ErrAlreadyExists   = errors.New("item already exists")
	ErrConditionFailed = errors.New("condition not met")
)
