package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/studysphere/studysphere/models"
	"github.com/studysphere/studysphere/service"
	"github.com/studysphere/studysphere/store"
)

// Uploads are buffered in memory before the blob put.
const maxUploadBytes = 16 << 20

type Handler struct {
	Service *service.Service
}

func NewHandler(svc *service.Service) *Handler {
	return &Handler{Service: svc}
}

type profileResponse struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Provider    string `json:"provider"`
	Experience  int    `json:"experience"`
	Level       int    `json:"level"`
	NextLevelXP int    `json:"nextLevelXp"`
}

func newProfileResponse(user models.User) profileResponse {
	level := service.Level(user.Experience)
	return profileResponse{
		Username:    user.Username,
		Email:       user.Email,
		Provider:    user.Provider,
		Experience:  user.Experience,
		Level:       level,
		NextLevelXP: service.NextLevelXP(level),
	}
}

type sessionResponse struct {
	Token string          `json:"token"`
	User  profileResponse `json:"user"`
}

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, token, err := h.Service.Signup(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		h.sendError(w, "signup failed", err)
		return
	}

	h.sendResponse(w, sessionResponse{Token: token, User: newProfileResponse(sess.User)})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	sess, token, err := h.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.sendError(w, "login failed", err)
		return
	}

	h.sendResponse(w, sessionResponse{Token: token, User: newProfileResponse(sess.User)})
}

type authStartResponse struct {
	AuthURL string `json:"authUrl"`
}

func (h *Handler) HandleAuthStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	provider := r.URL.Query().Get("provider")

	authURL, err := h.Service.StartOAuth(r.Context(), provider, callbackURL(r, provider))
	if err != nil {
		log.Printf("OAuth start failed: %v", err)
		http.Error(w, "failed to start authorization", http.StatusBadRequest)
		return
	}

	h.sendResponse(w, authStartResponse{AuthURL: authURL})
}

func (h *Handler) HandleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	provider := query.Get("provider")
	state := query.Get("state")
	code := query.Get("code")

	sess, token, err := h.Service.CompleteOAuth(r.Context(), provider, state, code, callbackURL(r, provider))
	if err != nil {
		log.Printf("OAuth callback failed: %v", err)
		http.Error(w, "authorization failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	h.sendResponse(w, sessionResponse{Token: token, User: newProfileResponse(sess.User)})
}

// callbackURL reconstructs the externally visible callback address so the
// exchange uses the exact redirect the provider saw.
func callbackURL(r *http.Request, provider string) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + r.Host + "/auth/callback?provider=" + provider
}

type meResponse struct {
	User         profileResponse `json:"user"`
	LikedNoteIds []string        `json:"likedNoteIds"`
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := h.Service.BeginSession(r.Context(), h.getTokenFromAuthHeader(r))
	if err != nil {
		h.sendError(w, "failed to load profile", err)
		return
	}

	liked := make([]string, 0, len(sess.Liked))
	for id := range sess.Liked {
		liked = append(liked, id)
	}

	h.sendResponse(w, meResponse{User: newProfileResponse(sess.User), LikedNoteIds: liked})
}

// submitNoteResponse carries the refreshed account snapshot so the caller
// sees the new XP total without a second round trip.
type submitNoteResponse struct {
	Note models.Note     `json:"note"`
	User profileResponse `json:"user"`
}

func (h *Handler) HandleNotes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListNotes(w, r)

	case http.MethodPost:
		h.handleSubmitNote(w, r)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type listNotesResponse struct {
	Notes []models.Note `json:"notes"`
}

func (h *Handler) handleListNotes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := models.NoteFilter{
		Query:   query.Get("query"),
		Subject: query.Get("subject"),
		Level:   query.Get("level"),
	}

	switch query.Get("sort") {
	case "", "recent":
		filter.Sort = models.SortRecent
	case "likes":
		filter.Sort = models.SortLikes
	default:
		http.Error(w, "unknown sort order", http.StatusBadRequest)
		return
	}

	notes, err := h.Service.ListNotes(r.Context(), filter)
	if err != nil {
		h.sendError(w, "failed to list notes", err)
		return
	}

	h.sendResponse(w, listNotesResponse{Notes: notes})
}

func (h *Handler) handleSubmitNote(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Service.BeginSession(r.Context(), h.getTokenFromAuthHeader(r))
	if err != nil {
		h.sendError(w, "failed to submit note", err)
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	sub := service.NoteSubmission{
		Title:       r.FormValue("title"),
		Subject:     r.FormValue("subject"),
		Level:       r.FormValue("level"),
		Description: r.FormValue("description"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		data, readErr := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
		if readErr != nil {
			http.Error(w, "failed to read upload", http.StatusBadRequest)
			return
		}
		if len(data) > maxUploadBytes {
			http.Error(w, "upload too large", http.StatusRequestEntityTooLarge)
			return
		}
		sub.FileName = header.Filename
		sub.FileData = data
		sub.ContentType = header.Header.Get("Content-Type")

	case errors.Is(err, http.ErrMissingFile):
		// Text-only note

	default:
		http.Error(w, "invalid upload", http.StatusBadRequest)
		return
	}

	note, err := h.Service.SubmitNote(r.Context(), sess, sub)
	if err != nil {
		h.sendError(w, "failed to submit note", err)
		return
	}

	h.sendResponse(w, submitNoteResponse{Note: note, User: newProfileResponse(sess.User)})
}

type likeRequest struct {
	NoteId string `json:"noteId"`
}

type likeResponse struct {
	Liked bool            `json:"liked"`
	Note  models.Note     `json:"note"`
	User  profileResponse `json:"user"`
}

func (h *Handler) HandleLikes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess, err := h.Service.BeginSession(r.Context(), h.getTokenFromAuthHeader(r))
	if err != nil {
		h.sendError(w, "failed to like note", err)
		return
	}

	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	note, err := h.Service.LikeNote(r.Context(), sess, req.NoteId)
	if err != nil {
		// A repeat like is acknowledged, not rejected
		if errors.Is(err, service.ErrAlreadyLiked) {
			h.sendResponse(w, likeResponse{Liked: false, User: newProfileResponse(sess.User)})
			return
		}
		h.sendError(w, "failed to like note", err)
		return
	}

	h.sendResponse(w, likeResponse{Liked: true, Note: note, User: newProfileResponse(sess.User)})
}

type leaderboardResponse struct {
	Entries []service.LeaderboardEntry `json:"entries"`
}

func (h *Handler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	entries, err := h.Service.Leaderboard(r.Context())
	if err != nil {
		h.sendError(w, "failed to load leaderboard", err)
		return
	}

	h.sendResponse(w, leaderboardResponse{Entries: entries})
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// sendError maps service errors onto status codes. Validation problems
// carry their message; everything else stays generic.
func (h *Handler) sendError(w http.ResponseWriter, fallback string, err error) {
	var vErr *service.ValidationError
	switch {
	case errors.As(err, &vErr):
		http.Error(w, vErr.Msg, http.StatusBadRequest)

	case errors.Is(err, service.ErrUnauthenticated):
		http.Error(w, "invalid token", http.StatusUnauthorized)

	case errors.Is(err, store.ErrItemNotFound):
		http.Error(w, "not found", http.StatusNotFound)

	case errors.Is(err, store.ErrAlreadyExists):
		http.Error(w, "already exists", http.StatusConflict)

	default:
		log.Printf("%s: %v", fallback, err)
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}
