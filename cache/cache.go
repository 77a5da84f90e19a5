package cache

import (
	"context"
	"errors"

	"github.com/studysphere/studysphere/models"
)

// ErrCacheMiss means the key is absent or expired; callers fall back to the
// store and re-seed.
var ErrCacheMiss = errors.New("cache miss")

type StudyCache interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Subscribe(ctx context.Context, channel string, handler func(message []byte)) error

	GetListing(ctx context.Context, key string) ([]models.Note, error)
	SetListing(ctx context.Context, key string, notes []models.Note) error
	InvalidateListings(ctx context.Context) error

	GetLeaderboard(ctx context.Context) ([]models.User, error)
	SetLeaderboard(ctx context.Context, users []models.User) error
	InvalidateLeaderboard(ctx context.Context) error

	GetUserLikes(ctx context.Context, username string) ([]string, error)
	SeedUserLikes(ctx context.Context, username string, noteIds []string) error
	AddUserLike(ctx context.Context, username string, noteId string) error

	SetPendingVerifier(ctx context.Context, state string, verifier string) error
	TakePendingVerifier(ctx context.Context, state string) (string, error)
}
