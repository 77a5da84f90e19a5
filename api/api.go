package api

import (
	"context"
	"log"
	"net/http"

	"github.com/studysphere/studysphere/api/events"
	"github.com/studysphere/studysphere/api/rest"
	"github.com/studysphere/studysphere/blob"
	"github.com/studysphere/studysphere/cache"
	"github.com/studysphere/studysphere/mq"
	"github.com/studysphere/studysphere/service"
	"github.com/studysphere/studysphere/store"
	"github.com/studysphere/studysphere/worker"
	"golang.org/x/oauth2"
)

type StudyAPI struct {
	restHandler   *rest.Handler
	eventsHandler *events.Handler
	shutdownCtx   context.Context
}

func NewStudyAPI(
	studyStore store.StudyStore,
	studyCache cache.StudyCache,
	blobStore blob.Store,
	awardQueue mq.MessageQueue,
	oauthConfigs map[string]*oauth2.Config,
	jwtSecret []byte,
	shutdownCtx context.Context,
) (*StudyAPI, error) {
	eventHub := events.NewHub(studyCache)
	err := eventHub.InitSubscriptions(shutdownCtx)
	if err != nil {
		log.Printf("Failed to start event hub subscriptions: %v", err)
		return &StudyAPI{}, err
	}
	go eventHub.Run()

	xpBatcher := worker.NewXPBatcher(studyStore, studyCache, 5000)
	go xpBatcher.Run(shutdownCtx)

	mqConsumer := worker.NewMQConsumer(awardQueue, xpBatcher)
	go mqConsumer.Run(shutdownCtx)

	svc, err := service.NewService(
		studyStore,
		studyCache,
		blobStore,
		awardQueue,
		xpBatcher,
		oauthConfigs,
		jwtSecret,
	)
	if err != nil {
		log.Printf("Failed to create service: %v", err)
		return &StudyAPI{}, err
	}

	restHandler := rest.NewHandler(svc)
	eventsHandler := events.NewHandler(svc, eventHub)

	return &StudyAPI{
		restHandler:   restHandler,
		eventsHandler: eventsHandler,
		shutdownCtx:   shutdownCtx,
	}, nil
}

func (studyAPI *StudyAPI) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/signup", studyAPI.restHandler.HandleSignup)
	mux.HandleFunc("/login", studyAPI.restHandler.HandleLogin)
	mux.HandleFunc("/auth/start", studyAPI.restHandler.HandleAuthStart)
	mux.HandleFunc("/auth/callback", studyAPI.restHandler.HandleAuthCallback)
	mux.HandleFunc("/me", studyAPI.restHandler.HandleMe)
	mux.HandleFunc("/notes", studyAPI.restHandler.HandleNotes)
	mux.HandleFunc("/likes", studyAPI.restHandler.HandleLikes)
	mux.HandleFunc("/leaderboard", studyAPI.restHandler.HandleLeaderboard)

	wsUpgrader := studyAPI.eventsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		studyAPI.eventsHandler.ServeWS(wsUpgrader, w, r, studyAPI.shutdownCtx)
	})
}
