package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/studysphere/studysphere/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(models.User), args.Error(1)
}

func (m *MockStore) AddExperience(ctx context.Context, username string, points int) error {
	args := m.Called(ctx, username, points)
	return args.Error(0)
}

func (m *MockStore) TopUsersByExperience(ctx context.Context, limit int) ([]models.User, error) {
	args := m.Called(ctx, limit)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockStore) CreateNote(ctx context.Context, note models.Note) (models.Note, error) {
	args := m.Called(ctx, note)
	return args.Get(0).(models.Note), args.Error(1)
}

func (m *MockStore) GetNote(ctx context.Context, noteId string) (models.Note, error) {
	args := m.Called(ctx, noteId)
	return args.Get(0).(models.Note), args.Error(1)
}

func (m *MockStore) ListNotes(ctx context.Context, filter models.NoteFilter) ([]models.Note, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]models.Note), args.Error(1)
}

func (m *MockStore) IncrementNoteLikes(ctx context.Context, noteId string) error {
	args := m.Called(ctx, noteId)
	return args.Error(0)
}

func (m *MockStore) CreateLike(ctx context.Context, like models.Like) error {
	args := m.Called(ctx, like)
	return args.Error(0)
}

func (m *MockStore) GetUserLikes(ctx context.Context, username string) ([]string, error) {
	args := m.Called(ctx, username)
	return args.Get(0).([]string), args.Error(1)
}
