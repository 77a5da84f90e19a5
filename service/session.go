package service

import (
	"context"
	"errors"
	"log"

	"github.com/studysphere/studysphere/cache"
	"github.com/studysphere/studysphere/models"
)

var (
	ErrUnauthenticated = errors.New("sign in required")
	ErrAlreadyLiked    = errors.New("note already liked")
)

// Session is the per-request view state: the authenticated account and the
// set of notes it has already liked. The like-set is only a fast-path guard;
// the ledger's conditional put is authoritative.
type Session struct {
	User  models.User
	Liked map[string]struct{}
}

func (sess *Session) HasLiked(noteId string) bool {
	if sess == nil {
		return false
	}
	_, ok := sess.Liked[noteId]
	return ok
}

// BeginSession authenticates a bearer token and loads the account's
// like-set, from the cache when seeded and from the ledger otherwise.
func (s *Service) BeginSession(ctx context.Context, token string) (*Session, error) {
	user, err := s.AuthenticateToken(ctx, token)
	if err != nil {
		return nil, err
	}

	liked, err := s.loadLikeSet(ctx, user.Username)
	if err != nil {
		return nil, err
	}

	return &Session{User: user, Liked: liked}, nil
}

func (s *Service) loadLikeSet(ctx context.Context, username string) (map[string]struct{}, error) {
	noteIds, err := s.Cache.GetUserLikes(ctx, username)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("Like-set cache read failed for %s: %v", username, err)
		}

		noteIds, err = s.Store.GetUserLikes(ctx, username)
		if err != nil {
			return nil, err
		}
		if err := s.Cache.SeedUserLikes(ctx, username, noteIds); err != nil {
			log.Printf("Like-set cache seed failed for %s: %v", username, err)
		}
	}

	liked := make(map[string]struct{}, len(noteIds))
	for _, id := range noteIds {
		liked[id] = struct{}{}
	}
	return liked, nil
}
