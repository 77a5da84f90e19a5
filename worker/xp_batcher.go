package worker

import (
	"context"
	"log"
	"time"

	"github.com/studysphere/studysphere/cache"
	"github.com/studysphere/studysphere/store"
)

type XPUpdate struct {
	Username string
	Delta    int
}

// XPBatcher coalesces experience awards per user and flushes them with the
// store's atomic increment, so a burst of likes on one author becomes a
// single write.
type XPBatcher struct {
	UpdateCh           chan XPUpdate
	studyStore         store.StudyStore
	studyCache         cache.StudyCache
	tickerMilliseconds int
}

func NewXPBatcher(studyStore store.StudyStore, studyCache cache.StudyCache, tickerMilliseconds int) *XPBatcher {
	return &XPBatcher{
		UpdateCh:           make(chan XPUpdate, 1024),
		studyStore:         studyStore,
		studyCache:         studyCache,
		tickerMilliseconds: tickerMilliseconds,
	}
}

func (b *XPBatcher) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(b.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	userPoints := make(map[string]int)

	flush := func() {
		if len(userPoints) == 0 {
			return
		}

		for username, points := range userPoints {
			if points == 0 {
				continue
			}
			go func(username string, points int) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := b.studyStore.AddExperience(ctx, username, points); err != nil {
					// A missing author is skipped, not retried
					log.Printf("Failed to award %d XP to user %s: %v", points, username, err)
				}
			}(username, points)
		}
		userPoints = make(map[string]int)

		// Rankings changed; purge the memoized leaderboard and tell
		// connected clients
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.studyCache.InvalidateLeaderboard(ctx); err != nil {
			log.Printf("Failed to invalidate leaderboard cache: %v", err)
		}
		if err := b.studyCache.Publish(ctx, "leaderboard-updated", []byte(`{}`)); err != nil {
			log.Printf("Failed to publish leaderboard-updated: %v", err)
		}
	}

	for {
		select {
		case update := <-b.UpdateCh:
			if update.Username == "" {
				continue
			}
			userPoints[update.Username] += update.Delta

			if len(userPoints) >= 100 {
				flush()
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}
