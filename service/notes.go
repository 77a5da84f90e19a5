package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/studysphere/studysphere/models"
	"github.com/studysphere/studysphere/store"
	"github.com/studysphere/studysphere/worker"
)

type NoteSubmission struct {
	Title       string
	Subject     string
	Level       string
	Description string

	// Optional attachment
	FileName    string
	FileData    []byte
	ContentType string // from the upload, guessed from the extension if empty
}

type noteEvent struct {
	Type   string `json:"type"`
	NoteId string `json:"noteId"`
	Likes  int    `json:"likes,omitempty"`
}

// SubmitNote publishes a note: upload the attachment (if any), insert the
// row, award the author 15 XP, purge memoized reads. An upload failure
// aborts before the insert; an XP failure after the insert leaves the note
// persisted (accepted, logged).
func (s *Service) SubmitNote(ctx context.Context, sess *Session, sub NoteSubmission) (models.Note, error) {
	if sess == nil {
		return models.Note{}, ErrUnauthenticated
	}
	if err := ValidateSubmission(sub.Title, sub.Description, sub.Subject, sub.Level); err != nil {
		return models.Note{}, err
	}

	fileURL := models.NoFileURL
	var fileName string
	var fileSize int64

	if len(sub.FileData) > 0 {
		if err := ValidateUploadName(sub.FileName); err != nil {
			return models.Note{}, err
		}

		key := blobKey(sess.User.Username, sub.FileName)
		contentType := sub.ContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(strings.ToLower(path.Ext(sub.FileName)))
		}

		if err := s.Blobs.Upload(ctx, key, sub.FileData, contentType); err != nil {
			return models.Note{}, fmt.Errorf("file upload failed: %w", err)
		}

		fileURL = s.Blobs.PublicURL(key)
		fileName = sub.FileName
		fileSize = int64(len(sub.FileData))
	}

	note, err := s.Store.CreateNote(ctx, models.Note{
		Title:       sub.Title,
		Subject:     sub.Subject,
		Levels:      []string{sub.Level},
		Author:      sess.User.Username,
		Description: sub.Description,
		FileURL:     fileURL,
		FileName:    fileName,
		FileSize:    fileSize,
		Likes:       0,
	})
	if err != nil {
		return models.Note{}, fmt.Errorf("note insert failed: %w", err)
	}

	if err := s.Store.AddExperience(ctx, sess.User.Username, NotePostPoints); err != nil {
		// The note stays; the missed award is not rolled back or retried
		log.Printf("XP award for note %s failed: %v", note.Id, err)
	}

	s.invalidateAfterWrite(ctx, noteEvent{Type: "note-posted", NoteId: note.Id}, true)
	s.refreshSessionUser(ctx, sess)

	return note, nil
}

// blobKey derives the storage path for an attachment. The name is
// percent-encoded so two different names can never collide on one key.
func blobKey(username, fileName string) string {
	return username + "/" + url.PathEscape(fileName)
}

// LikeNote runs the like transaction: session fast-path guard, conditional
// ledger insert (the authoritative duplicate check), atomic counter bump,
// then the author's 10 XP queued for the award pipeline. Returns
// ErrAlreadyLiked for duplicates; callers treat that as a no-op, not a
// failure.
func (s *Service) LikeNote(ctx context.Context, sess *Session, noteId string) (models.Note, error) {
	if sess == nil {
		return models.Note{}, ErrUnauthenticated
	}
	if sess.HasLiked(noteId) {
		return models.Note{}, ErrAlreadyLiked
	}

	note, err := s.Store.GetNote(ctx, noteId)
	if err != nil {
		return models.Note{}, fmt.Errorf("note lookup failed: %w", err)
	}

	err = s.Store.CreateLike(ctx, models.Like{NoteId: noteId, Username: sess.User.Username})
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			// Liked from another session/device; remember it here too
			s.rememberLike(ctx, sess, noteId)
			return models.Note{}, ErrAlreadyLiked
		}
		return models.Note{}, fmt.Errorf("like insert failed: %w", err)
	}

	if err := s.Store.IncrementNoteLikes(ctx, noteId); err != nil {
		// Ledger row landed but the counter didn't; surfaced, not rolled back
		return models.Note{}, fmt.Errorf("like counter update failed: %w", err)
	}
	note.Likes++

	s.enqueueAuthorAward(ctx, note.Author)
	s.rememberLike(ctx, sess, noteId)
	s.invalidateAfterWrite(ctx, noteEvent{Type: "note-liked", NoteId: noteId, Likes: note.Likes}, false)
	if sess.User.Username == note.Author {
		s.refreshSessionUser(ctx, sess)
	}

	return note, nil
}

func (s *Service) enqueueAuthorAward(ctx context.Context, author string) {
	award := worker.XPAwardMessage{Username: author, Points: LikePoints, Reason: "like"}
	body, err := json.Marshal(award)
	if err != nil {
		log.Printf("Failed to marshal XP award for %s: %v", author, err)
		return
	}
	if err := s.MQ.Send(ctx, string(body)); err != nil {
		// The like stands; the award is dropped, not retried
		log.Printf("Failed to enqueue XP award for %s: %v", author, err)
	}
}

func (s *Service) rememberLike(ctx context.Context, sess *Session, noteId string) {
	sess.Liked[noteId] = struct{}{}
	if err := s.Cache.AddUserLike(ctx, sess.User.Username, noteId); err != nil {
		log.Printf("Like-set cache update failed for %s: %v", sess.User.Username, err)
	}
}

// invalidateAfterWrite purges memoized reads touched by a write and tells
// connected clients. The leaderboard is purged here only for synchronous XP
// awards; the batcher handles its own flushes.
func (s *Service) invalidateAfterWrite(ctx context.Context, event noteEvent, xpChanged bool) {
	if err := s.Cache.InvalidateListings(ctx); err != nil {
		log.Printf("Listing cache invalidation failed: %v", err)
	}
	if xpChanged {
		if err := s.Cache.InvalidateLeaderboard(ctx); err != nil {
			log.Printf("Leaderboard cache invalidation failed: %v", err)
		}
		if err := s.Cache.Publish(ctx, "leaderboard-updated", []byte(`{}`)); err != nil {
			log.Printf("Failed to publish leaderboard-updated: %v", err)
		}
	}

	body, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.Cache.Publish(ctx, "note-events", body); err != nil {
		log.Printf("Failed to publish note event: %v", err)
	}
}

// refreshSessionUser re-reads the account so the displayed XP/level is
// current.
func (s *Service) refreshSessionUser(ctx context.Context, sess *Session) {
	user, err := s.Store.GetUserByUsername(ctx, sess.User.Username)
	if err != nil {
		log.Printf("Account refresh failed for %s: %v", sess.User.Username, err)
		return
	}
	sess.User = user
}
