package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/studysphere/studysphere/models"
	"github.com/studysphere/studysphere/service"
)

func TestBeginSession_LoadsLikeSetFromCache(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()

	user := models.User{Username: "alice", Experience: 65}
	token, _ := svc.CreateJWT("alice")

	mockStore.On("GetUserByUsername", ctx, "alice").Return(user, nil)
	mockCache.On("GetUserLikes", ctx, "alice").Return([]string{"note1", "note2"}, nil)

	sess, err := svc.BeginSession(ctx, token)
	assert.NoError(t, err)
	assert.Equal(t, "alice", sess.User.Username)
	assert.True(t, sess.HasLiked("note1"))
	assert.True(t, sess.HasLiked("note2"))
	assert.False(t, sess.HasLiked("note3"))

	// Seeded cache means no ledger scan
	mockStore.AssertNotCalled(t, "GetUserLikes", mock.Anything, mock.Anything)
}

func TestBeginSession_FallsBackToLedgerAndSeeds(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()

	token, _ := svc.CreateJWT("alice")
	mockStore.On("GetUserByUsername", ctx, "alice").Return(models.User{Username: "alice"}, nil)

	expectLikeSetSeed(&mockStore.Mock, &mockCache.Mock, "alice", []string{"note9"})

	sess, err := svc.BeginSession(ctx, token)
	assert.NoError(t, err)
	assert.True(t, sess.HasLiked("note9"))
	mockCache.AssertCalled(t, "SeedUserLikes", mock.Anything, "alice", []string{"note9"})
}

func TestBeginSession_BadToken(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)

	_, err := svc.BeginSession(context.Background(), "not.a.token")
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestHasLiked_NilSession(t *testing.T) {
	var sess *service.Session
	assert.False(t, sess.HasLiked("note1"))
}
