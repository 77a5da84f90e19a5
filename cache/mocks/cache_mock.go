package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/studysphere/studysphere/models"
)

type MockCache struct {
	mock.Mock
}

func (m *MockCache) Publish(ctx context.Context, channel string, message []byte) error {
	args := m.Called(ctx, channel, message)
	return args.Error(0)
}

func (m *MockCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

func (m *MockCache) GetListing(ctx context.Context, key string) ([]models.Note, error) {
	args := m.Called(ctx, key)
	return args.Get(0).([]models.Note), args.Error(1)
}

func (m *MockCache) SetListing(ctx context.Context, key string, notes []models.Note) error {
	args := m.Called(ctx, key, notes)
	return args.Error(0)
}

func (m *MockCache) InvalidateListings(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCache) GetLeaderboard(ctx context.Context) ([]models.User, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.User), args.Error(1)
}

func (m *MockCache) SetLeaderboard(ctx context.Context, users []models.User) error {
	args := m.Called(ctx, users)
	return args.Error(0)
}

func (m *MockCache) InvalidateLeaderboard(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCache) GetUserLikes(ctx context.Context, username string) ([]string, error) {
	args := m.Called(ctx, username)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockCache) SeedUserLikes(ctx context.Context, username string, noteIds []string) error {
	args := m.Called(ctx, username, noteIds)
	return args.Error(0)
}

func (m *MockCache) AddUserLike(ctx context.Context, username string, noteId string) error {
	args := m.Called(ctx, username, noteId)
	return args.Error(0)
}

func (m *MockCache) SetPendingVerifier(ctx context.Context, state string, verifier string) error {
	args := m.Called(ctx, state, verifier)
	return args.Error(0)
}

func (m *MockCache) TakePendingVerifier(ctx context.Context, state string) (string, error) {
	args := m.Called(ctx, state)
	return args.String(0), args.Error(1)
}
