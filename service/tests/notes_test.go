package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	blobmocks "github.com/studysphere/studysphere/blob/mocks"
	cachemocks "github.com/studysphere/studysphere/cache/mocks"
	"github.com/studysphere/studysphere/models"
	"github.com/studysphere/studysphere/mq"
	mqmocks "github.com/studysphere/studysphere/mq/mocks"
	"github.com/studysphere/studysphere/service"
	"github.com/studysphere/studysphere/store"
	storemocks "github.com/studysphere/studysphere/store/mocks"
	"github.com/studysphere/studysphere/worker"
)

func setupService(t *testing.T) (*service.Service, *storemocks.MockStore, *cachemocks.MockCache, *blobmocks.MockBlobStore, *mqmocks.MockMQ, *worker.XPBatcher) {
	mockStore := new(storemocks.MockStore)
	mockCache := new(cachemocks.MockCache)
	mockBlobs := new(blobmocks.MockBlobStore)
	mockMQ := new(mqmocks.MockMQ)

	// Real batcher; tests that exercise it run it themselves
	xpBatcher := worker.NewXPBatcher(mockStore, mockCache, 1000)

	svc, err := service.NewService(
		mockStore,
		mockCache,
		mockBlobs,
		mockMQ,
		xpBatcher,
		nil,
		[]byte("secret"),
	)
	assert.NoError(t, err)

	return svc, mockStore, mockCache, mockBlobs, mockMQ, xpBatcher
}

// Helper that creates a channel and wraps a mock call to signal when it's called
func wrapMockWithSignal(call *mock.Call) chan struct{} {
	done := make(chan struct{})
	call.Run(func(args mock.Arguments) {
		close(done)
	})
	return done
}

func newSession(username string, liked ...string) *service.Session {
	likedSet := make(map[string]struct{}, len(liked))
	for _, id := range liked {
		likedSet[id] = struct{}{}
	}
	return &service.Session{
		User:  models.User{Username: username, Email: username + "@example.com"},
		Liked: likedSet,
	}
}

func expectWriteInvalidation(mockCache *cachemocks.MockCache, xpChanged bool) {
	mockCache.On("InvalidateListings", mock.Anything).Return(nil)
	mockCache.On("Publish", mock.Anything, "note-events", mock.Anything).Return(nil)
	if xpChanged {
		mockCache.On("InvalidateLeaderboard", mock.Anything).Return(nil)
		mockCache.On("Publish", mock.Anything, "leaderboard-updated", mock.Anything).Return(nil)
	}
}

func TestSubmitNote_Success_NoFile(t *testing.T) {
	svc, mockStore, mockCache, mockBlobs, _, _ := setupService(t)
	ctx := context.Background()
	sess := newSession("alice")

	sub := service.NoteSubmission{
		Title:       "Trig identities",
		Subject:     "Math",
		Level:       "Sec 3",
		Description: "Unit circle summary",
	}

	mockStore.On("CreateNote", ctx, mock.MatchedBy(func(n models.Note) bool {
		return n.Title == "Trig identities" &&
			n.Author == "alice" &&
			n.FileURL == models.NoFileURL &&
			len(n.Levels) == 1 && n.Levels[0] == "Sec 3"
	})).Return(models.Note{Id: "note1", Title: "Trig identities", Author: "alice"}, nil)

	mockStore.On("AddExperience", ctx, "alice", service.NotePostPoints).Return(nil)
	mockStore.On("GetUserByUsername", ctx, "alice").Return(models.User{Username: "alice", Experience: 15}, nil)
	expectWriteInvalidation(mockCache, true)

	note, err := svc.SubmitNote(ctx, sess, sub)
	assert.NoError(t, err)
	assert.Equal(t, "note1", note.Id)

	// Session snapshot picked up the award
	assert.Equal(t, 15, sess.User.Experience)

	mockBlobs.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertExpectations(t)
}

func TestSubmitNote_Success_WithFile(t *testing.T) {
	svc, mockStore, mockCache, mockBlobs, _, _ := setupService(t)
	ctx := context.Background()
	sess := newSession("alice")

	data := []byte("%PDF-1.4 fake")
	sub := service.NoteSubmission{
		Title:       "Trig identities",
		Subject:     "Math",
		Level:       "Sec 3",
		Description: "Unit circle summary",
		FileName:    "chapter 1.pdf",
		FileData:    data,
		ContentType: "application/pdf",
	}

	// The attachment name is percent-encoded into the key
	mockBlobs.On("Upload", ctx, "alice/chapter%201.pdf", data, "application/pdf").Return(nil)
	mockBlobs.On("PublicURL", "alice/chapter%201.pdf").Return("https://blobs.example/alice/chapter%201.pdf")

	mockStore.On("CreateNote", ctx, mock.MatchedBy(func(n models.Note) bool {
		return n.FileURL == "https://blobs.example/alice/chapter%201.pdf" &&
			n.FileName == "chapter 1.pdf" &&
			n.FileSize == int64(len(data))
	})).Return(models.Note{Id: "note1"}, nil)

	mockStore.On("AddExperience", ctx, "alice", service.NotePostPoints).Return(nil)
	mockStore.On("GetUserByUsername", ctx, "alice").Return(models.User{Username: "alice", Experience: 15}, nil)
	expectWriteInvalidation(mockCache, true)

	_, err := svc.SubmitNote(ctx, sess, sub)
	assert.NoError(t, err)
	mockBlobs.AssertExpectations(t)
	mockStore.AssertExpectations(t)
}

func TestSubmitNote_InvalidSubject(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	sess := newSession("alice")

	_, err := svc.SubmitNote(context.Background(), sess, service.NoteSubmission{
		Title:       "Title",
		Subject:     "Alchemy",
		Level:       "Sec 3",
		Description: "desc",
	})

	var vErr *service.ValidationError
	assert.ErrorAs(t, err, &vErr)
	mockStore.AssertNotCalled(t, "CreateNote", mock.Anything, mock.Anything)
}

func TestSubmitNote_RejectedFileType(t *testing.T) {
	svc, mockStore, _, mockBlobs, _, _ := setupService(t)
	sess := newSession("alice")

	_, err := svc.SubmitNote(context.Background(), sess, service.NoteSubmission{
		Title:       "Title",
		Subject:     "Math",
		Level:       "Sec 3",
		Description: "desc",
		FileName:    "payload.exe",
		FileData:    []byte{0x4d, 0x5a},
	})

	var vErr *service.ValidationError
	assert.ErrorAs(t, err, &vErr)
	mockBlobs.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "CreateNote", mock.Anything, mock.Anything)
}

func TestSubmitNote_UploadFails(t *testing.T) {
	svc, mockStore, _, mockBlobs, _, _ := setupService(t)
	ctx := context.Background()
	sess := newSession("alice")

	mockBlobs.On("Upload", ctx, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket unavailable"))

	_, err := svc.SubmitNote(ctx, sess, service.NoteSubmission{
		Title:       "Title",
		Subject:     "Math",
		Level:       "Sec 3",
		Description: "desc",
		FileName:    "notes.pdf",
		FileData:    []byte("data"),
	})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "upload")
	// The insert never happens when the upload aborts
	mockStore.AssertNotCalled(t, "CreateNote", mock.Anything, mock.Anything)
}

func TestSubmitNote_Unauthenticated(t *testing.T) {
	svc, _, _, _, _, _ := setupService(t)

	_, err := svc.SubmitNote(context.Background(), nil, service.NoteSubmission{})
	assert.ErrorIs(t, err, service.ErrUnauthenticated)
}

func TestSubmitNote_XPAwardFailureKeepsNote(t *testing.T) {
	svc, mockStore, mockCache, _, _, _ := setupService(t)
	ctx := context.Background()
	sess := newSession("alice")

	mockStore.On("CreateNote", ctx, mock.Anything).Return(models.Note{Id: "note1"}, nil)
	mockStore.On("AddExperience", ctx, "alice", service.NotePostPoints).Return(errors.New("conditional check failed"))
	mockStore.On("GetUserByUsername", ctx, "alice").Return(models.User{Username: "alice"}, nil)
	expectWriteInvalidation(mockCache, true)

	note, err := svc.SubmitNote(ctx, sess, service.NoteSubmission{
		Title:       "Title",
		Subject:     "Math",
		Level:       "Sec 3",
		Description: "desc",
	})

	// The note stands even though the award was lost
	assert.NoError(t, err)
	assert.Equal(t, "note1", note.Id)
}

func TestLikeNote_Success(t *testing.T) {
	svc, mockStore, mockCache, _, mockMQ, _ := setupService(t)
	ctx := context.Background()
	sess := newSession("alice")

	mockStore.On("GetNote", ctx, "note1").Return(models.Note{Id: "note1", Author: "bob", Likes: 3}, nil)
	mockStore.On("CreateLike", ctx, models.Like{NoteId: "note1", Username: "alice"}).Return(nil)
	mockStore.On("IncrementNoteLikes", ctx, "note1").Return(nil)

	mockMQ.On("Send", ctx, mock.MatchedBy(func(body string) bool {
		return strings.Contains(body, `"username":"bob"`) && strings.Contains(body, `"points":10`)
	})).Return(nil)

	mockCache.On("AddUserLike", ctx, "alice", "note1").Return(nil)
	expectWriteInvalidation(mockCache, false)

	note, err := svc.LikeNote(ctx, sess, "note1")
	assert.NoError(t, err)
	assert.Equal(t, 4, note.Likes)
	assert.True(t, sess.HasLiked("note1"))

	mockStore.AssertExpectations(t)
	mockMQ.AssertExpectations(t)
}

func TestLikeNote_DuplicateInSession(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	sess := newSession("alice", "note1")

	_, err := svc.LikeNote(context.Background(), sess, "note1")
	assert.ErrorIs(t, err, service.ErrAlreadyLiked)
	// Fast path: nothing hits the store
	mockStore.AssertNotCalled(t, "GetNote", mock.Anything, mock.Anything)
	mockStore.AssertNotCalled(t, "CreateLike", mock.Anything, mock.Anything)
}

func TestLikeNote_DuplicateInLedger(t *testing.T) {
	svc, mockStore, mockCache, _, mockMQ, _ := setupService(t)
	ctx := context.Background()
	sess := newSession("alice")

	mockStore.On("GetNote", ctx, "note1").Return(models.Note{Id: "note1", Author: "bob", Likes: 3}, nil)
	mockStore.On("CreateLike", ctx, mock.Anything).Return(store.ErrAlreadyExists)
	mockCache.On("AddUserLike", ctx, "alice", "note1").Return(nil)

	_, err := svc.LikeNote(ctx, sess, "note1")
	assert.ErrorIs(t, err, service.ErrAlreadyLiked)

	// The session learns about the like made elsewhere
	assert.True(t, sess.HasLiked("note1"))
	mockStore.AssertNotCalled(t, "IncrementNoteLikes", mock.Anything, mock.Anything)
	mockMQ.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestLikeNote_NoteMissing(t *testing.T) {
	svc, mockStore, _, _, _, _ := setupService(t)
	ctx := context.Background()
	sess := newSession("alice")

	mockStore.On("GetNote", ctx, "ghost").Return(models.Note{}, store.ErrItemNotFound)

	_, err := svc.LikeNote(ctx, sess, "ghost")
	assert.ErrorIs(t, err, store.ErrItemNotFound)
}

func TestLikeNote_SelfLikeRefreshesSnapshot(t *testing.T) {
	svc, mockStore, mockCache, _, mockMQ, _ := setupService(t)
	ctx := context.Background()
	sess := newSession("alice")

	mockStore.On("GetNote", ctx, "note1").Return(models.Note{Id: "note1", Author: "alice", Likes: 0}, nil)
	mockStore.On("CreateLike", ctx, mock.Anything).Return(nil)
	mockStore.On("IncrementNoteLikes", ctx, "note1").Return(nil)
	mockStore.On("GetUserByUsername", ctx, "alice").Return(models.User{Username: "alice", Experience: 25}, nil)

	mockMQ.On("Send", ctx, mock.Anything).Return(nil)
	mockCache.On("AddUserLike", ctx, "alice", "note1").Return(nil)
	expectWriteInvalidation(mockCache, false)

	note, err := svc.LikeNote(ctx, sess, "note1")
	assert.NoError(t, err)
	assert.Equal(t, 1, note.Likes)
	assert.Equal(t, 25, sess.User.Experience)
}

func TestLikeNote_AwardEnqueueFailureKeepsLike(t *testing.T) {
	svc, mockStore, mockCache, _, mockMQ, _ := setupService(t)
	ctx := context.Background()
	sess := newSession("alice")

	mockStore.On("GetNote", ctx, "note1").Return(models.Note{Id: "note1", Author: "bob", Likes: 0}, nil)
	mockStore.On("CreateLike", ctx, mock.Anything).Return(nil)
	mockStore.On("IncrementNoteLikes", ctx, "note1").Return(nil)

	mockMQ.On("Send", ctx, mock.Anything).Return(errors.New("queue unavailable"))
	mockCache.On("AddUserLike", ctx, "alice", "note1").Return(nil)
	expectWriteInvalidation(mockCache, false)

	note, err := svc.LikeNote(ctx, sess, "note1")
	// The award is dropped; the like itself succeeds
	assert.NoError(t, err)
	assert.Equal(t, 1, note.Likes)
}

func TestXPBatcher_CoalescesAwards(t *testing.T) {
	_, mockStore, mockCache, _, _, _ := setupService(t)

	// Short ticker so the flush happens quickly
	xpBatcher := worker.NewXPBatcher(mockStore, mockCache, 50)

	awardDone := wrapMockWithSignal(
		mockStore.On("AddExperience", mock.Anything, "bob", 30).Return(nil),
	)
	mockCache.On("InvalidateLeaderboard", mock.Anything).Return(nil)
	publishDone := wrapMockWithSignal(
		mockCache.On("Publish", mock.Anything, "leaderboard-updated", mock.Anything).Return(nil),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go xpBatcher.Run(ctx)

	// Three likes on bob's notes land as one increment
	xpBatcher.UpdateCh <- worker.XPUpdate{Username: "bob", Delta: 10}
	xpBatcher.UpdateCh <- worker.XPUpdate{Username: "bob", Delta: 10}
	xpBatcher.UpdateCh <- worker.XPUpdate{Username: "bob", Delta: 10}

	select {
	case <-awardDone:
	case <-time.After(2 * time.Second):
		assert.Fail(t, "timed out waiting for AddExperience")
	}

	select {
	case <-publishDone:
	case <-time.After(2 * time.Second):
		assert.Fail(t, "timed out waiting for leaderboard-updated publish")
	}
}

func TestMQConsumer_ForwardsAwardsToBatcher(t *testing.T) {
	_, mockStore, mockCache, _, mockMQ, _ := setupService(t)

	xpBatcher := worker.NewXPBatcher(mockStore, mockCache, 60000)
	consumer := worker.NewMQConsumer(mockMQ, xpBatcher)

	msg := &mq.Message{Id: "m1", Body: `{"username":"bob","points":10,"reason":"like"}`}
	mockMQ.On("Receive", mock.Anything, int32(30)).Return(msg, nil).Once()
	mockMQ.On("Receive", mock.Anything, int32(30)).Return(nil, context.Canceled)
	deleteDone := wrapMockWithSignal(mockMQ.On("Delete", mock.Anything, msg).Return(nil))

	go consumer.Run(context.Background())

	select {
	case update := <-xpBatcher.UpdateCh:
		assert.Equal(t, "bob", update.Username)
		assert.Equal(t, 10, update.Delta)
	case <-time.After(2 * time.Second):
		assert.Fail(t, "timed out waiting for XP update")
	}

	select {
	case <-deleteDone:
	case <-time.After(2 * time.Second):
		assert.Fail(t, "timed out waiting for message delete")
	}
}

func TestMQConsumer_IgnoresMalformedMessage(t *testing.T) {
	_, mockStore, mockCache, _, mockMQ, _ := setupService(t)

	xpBatcher := worker.NewXPBatcher(mockStore, mockCache, 60000)
	consumer := worker.NewMQConsumer(mockMQ, xpBatcher)

	msg := &mq.Message{Id: "m1", Body: `{not json`}
	mockMQ.On("Receive", mock.Anything, int32(30)).Return(msg, nil).Once()
	mockMQ.On("Receive", mock.Anything, int32(30)).Return(nil, context.Canceled)
	deleteDone := wrapMockWithSignal(mockMQ.On("Delete", mock.Anything, msg).Return(nil))

	go consumer.Run(context.Background())

	// Deleted without producing an update
	select {
	case <-deleteDone:
	case <-time.After(2 * time.Second):
		assert.Fail(t, "timed out waiting for message delete")
	}
	assert.Empty(t, xpBatcher.UpdateCh)
}
