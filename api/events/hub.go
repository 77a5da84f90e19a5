package events

import (
	"context"
	"encoding/json"
	"log"

	"github.com/studysphere/studysphere/cache"
)

// Hub fans change events out to every connected client. Events originate
// from any instance and travel through Redis pub/sub, so all instances see
// writes made anywhere.
type Hub struct {
	studyCache  cache.StudyCache
	OpenCh      chan *Client
	CloseCh     chan *Client
	BroadcastCh chan []byte
	clients     map[*Client]struct{}
	userCounts  map[string]int
}

func NewHub(studyCache cache.StudyCache) *Hub {
	return &Hub{
		studyCache:  studyCache,
		OpenCh:      make(chan *Client, 256),
		CloseCh:     make(chan *Client, 256),
		BroadcastCh: make(chan []byte, 1024),
		clients:     make(map[*Client]struct{}),
		userCounts:  make(map[string]int),
	}
}

const maxConnectionsPerUser = 3

type leaderboardEvent struct {
	Type string `json:"type"`
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.OpenCh:
			if h.userCounts[client.username] >= maxConnectionsPerUser {
				log.Printf("User %s reached max connections (%d)", client.username, maxConnectionsPerUser)
				close(client.Send)
				continue
			}
			h.clients[client] = struct{}{}
			h.userCounts[client.username]++

		case client := <-h.CloseCh:
			if _, ok := h.clients[client]; !ok {
				continue
			}
			delete(h.clients, client)
			h.userCounts[client.username]--
			if h.userCounts[client.username] <= 0 {
				delete(h.userCounts, client.username)
			}

		case message := <-h.BroadcastCh:
			for client := range h.clients {
				select {
				case client.Send <- message:
				default:
					// Slow consumer; drop the event rather than stall the hub
				}
			}
		}
	}
}

func (h *Hub) InitSubscriptions(shutdownCtx context.Context) error {
	err := h.studyCache.Subscribe(shutdownCtx, "note-events", func(message []byte) {
		// Service publishes already-typed JSON; forward as-is
		h.BroadcastCh <- message
	})
	if err != nil {
		log.Printf("Events hub failed to subscribe to note-events: %v", err)
		return err
	}

	err = h.studyCache.Subscribe(shutdownCtx, "leaderboard-updated", func(message []byte) {
		event, err := json.Marshal(leaderboardEvent{Type: "leaderboard-updated"})
		if err != nil {
			return
		}
		h.BroadcastCh <- event
	})
	if err != nil {
		log.Printf("Events hub failed to subscribe to leaderboard-updated: %v", err)
		return err
	}

	return nil
}
