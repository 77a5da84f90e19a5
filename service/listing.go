package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/studysphere/studysphere/cache"
	"github.com/studysphere/studysphere/models"
)

// LeaderboardSize is how many accounts the leaderboard shows.
const LeaderboardSize = 50

// ListNotes returns the filtered, sorted listing, memoized per distinct
// (filter, sort) key with a short TTL and purged after writes.
func (s *Service) ListNotes(ctx context.Context, filter models.NoteFilter) ([]models.Note, error) {
	key := listingCacheKey(filter)

	cached, err := s.Cache.GetListing(ctx, key)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("Listing cache read failed: %v", err)
	}

	notes, err := s.Store.ListNotes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("note listing failed: %w", err)
	}
	if notes == nil {
		// An empty listing is a valid result, distinct from an error
		notes = []models.Note{}
	}

	if filter.Sort == models.SortLikes {
		sort.SliceStable(notes, func(i, j int) bool {
			return notes[i].Likes > notes[j].Likes
		})
	}

	if err := s.Cache.SetListing(ctx, key, notes); err != nil {
		log.Printf("Listing cache write failed: %v", err)
	}

	return notes, nil
}

func listingCacheKey(filter models.NoteFilter) string {
	return fmt.Sprintf("q=%s|subject=%s|level=%s|sort=%d",
		strings.ToLower(filter.Query), filter.Subject, filter.Level, filter.Sort)
}

type LeaderboardEntry struct {
	Username    string `json:"username"`
	Experience  int    `json:"experience"`
	Level       int    `json:"level"`
	NextLevelXP int    `json:"nextLevelXp"`
}

// Leaderboard returns the top accounts by experience, memoized with a
// longer TTL than listings. Levels are derived at render time, never
// stored. Ties share a score; their relative order is whatever the store
// returns.
func (s *Service) Leaderboard(ctx context.Context) ([]LeaderboardEntry, error) {
	users, err := s.Cache.GetLeaderboard(ctx)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("Leaderboard cache read failed: %v", err)
		}

		users, err = s.Store.TopUsersByExperience(ctx, LeaderboardSize)
		if err != nil {
			return nil, fmt.Errorf("leaderboard query failed: %w", err)
		}

		if err := s.Cache.SetLeaderboard(ctx, users); err != nil {
			log.Printf("Leaderboard cache write failed: %v", err)
		}
	}

	entries := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		level := Level(u.Experience)
		entries = append(entries, LeaderboardEntry{
			Username:    u.Username,
			Experience:  u.Experience,
			Level:       level,
			NextLevelXP: NextLevelXP(level),
		})
	}

	return entries, nil
}
