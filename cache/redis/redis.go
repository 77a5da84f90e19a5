package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/studysphere/studysphere/cache"
	"github.com/studysphere/studysphere/models"
)

type RedisStudyCache struct {
	client redis.UniversalClient
}

func NewRedisStudyCache(ctx context.Context, devMode bool, redisEndpoint string) (*RedisStudyCache, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// AWS elasticache endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	err := client.Ping(ctx).Err()
	if err != nil {
		return nil, err
	}

	return &RedisStudyCache{client: client}, nil
}

func (redisCache *RedisStudyCache) Publish(ctx context.Context, channel string, message []byte) error {
	if err := redisCache.client.Publish(ctx, channel, message).Err(); err != nil {
		return err
	}
	return nil
}

func (redisCache *RedisStudyCache) Subscribe(ctx context.Context, channel string, handler func(message []byte)) error {
	pubsub := redisCache.client.Subscribe(ctx, channel)
	// Ensure subscription is established
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		log.Printf("Pubsub channel closed: %s", channel)
		return err
	}

	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler([]byte(msg.Payload))
			}
		}
	}()

	return nil
}

// Memoization windows: listings are "almost live", the leaderboard tolerates
// a little more staleness. Both are also purged explicitly after writes.
const (
	listingTTL     = 10 * time.Second
	leaderboardTTL = 60 * time.Second
	likeSetTTL     = 10 * time.Minute
	verifierTTL    = 10 * time.Minute
)

const (
	listingKeyPrefix = "notes:listing:"
	// Registry of live listing keys so invalidation doesn't need SCAN
	listingRegistryKey = "notes:listing:keys"
	leaderboardKey     = "leaderboard"
	// Always-present member so an empty seeded like-set is distinguishable
	// from an unseeded one
	likeSetSeedMember = "@seeded"
)

func buildListingKey(key string) string {
	return listingKeyPrefix + key
}

func buildLikeSetKey(username string) string {
	return "user:" + username + ":likes"
}

func buildVerifierKey(state string) string {
	return "oauth:verifier:" + state
}

func (redisCache *RedisStudyCache) GetListing(ctx context.Context, key string) ([]models.Note, error) {
	raw, err := redisCache.client.Get(ctx, buildListingKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrCacheMiss
		}
		return nil, err
	}

	var notes []models.Note
	if err := json.Unmarshal(raw, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (redisCache *RedisStudyCache) SetListing(ctx context.Context, key string, notes []models.Note) error {
	raw, err := json.Marshal(notes)
	if err != nil {
		return err
	}

	pipe := redisCache.client.Pipeline()
	pipe.Set(ctx, buildListingKey(key), raw, listingTTL)
	pipe.SAdd(ctx, listingRegistryKey, key)
	// The registry outlives its entries slightly; stale members just Del
	// keys that already expired
	pipe.Expire(ctx, listingRegistryKey, likeSetTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func (redisCache *RedisStudyCache) InvalidateListings(ctx context.Context) error {
	keys, err := redisCache.client.SMembers(ctx, listingRegistryKey).Result()
	if err != nil {
		return err
	}

	del := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		del = append(del, buildListingKey(key))
	}
	del = append(del, listingRegistryKey)

	return redisCache.client.Del(ctx, del...).Err()
}

func (redisCache *RedisStudyCache) GetLeaderboard(ctx context.Context) ([]models.User, error) {
	raw, err := redisCache.client.Get(ctx, leaderboardKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrCacheMiss
		}
		return nil, err
	}

	var users []models.User
	if err := json.Unmarshal(raw, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (redisCache *RedisStudyCache) SetLeaderboard(ctx context.Context, users []models.User) error {
	raw, err := json.Marshal(users)
	if err != nil {
		return err
	}
	return redisCache.client.Set(ctx, leaderboardKey, raw, leaderboardTTL).Err()
}

func (redisCache *RedisStudyCache) InvalidateLeaderboard(ctx context.Context) error {
	return redisCache.client.Del(ctx, leaderboardKey).Err()
}

func (redisCache *RedisStudyCache) GetUserLikes(ctx context.Context, username string) ([]string, error) {
	members, err := redisCache.client.SMembers(ctx, buildLikeSetKey(username)).Result()
	if err != nil {
		return nil, err
	}

	noteIds, seeded := parseLikeSetMembers(members)
	if !seeded {
		return nil, cache.ErrCacheMiss
	}
	return noteIds, nil
}

// parseLikeSetMembers splits the seed marker from the note ids. A set without
// the marker was recreated by AddUserLike after the seeded one expired; it
// holds the likes of this session only, so it counts as a miss and the next
// read reseeds from the ledger.
func parseLikeSetMembers(members []string) (noteIds []string, seeded bool) {
	noteIds = make([]string, 0, len(members))
	for _, m := range members {
		if m == likeSetSeedMember {
			seeded = true
			continue
		}
		noteIds = append(noteIds, m)
	}
	return noteIds, seeded
}

func (redisCache *RedisStudyCache) SeedUserLikes(ctx context.Context, username string, noteIds []string) error {
	key := buildLikeSetKey(username)

	members := make([]interface{}, 0, len(noteIds)+1)
	members = append(members, likeSetSeedMember)
	for _, id := range noteIds {
		members = append(members, id)
	}

	pipe := redisCache.client.Pipeline()
	pipe.Del(ctx, key)
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, likeSetTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (redisCache *RedisStudyCache) AddUserLike(ctx context.Context, username string, noteId string) error {
	key := buildLikeSetKey(username)

	pipe := redisCache.client.Pipeline()
	pipe.SAdd(ctx, key, noteId)
	pipe.Expire(ctx, key, likeSetTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Pending OAuth verifier: one named slot per authorization attempt, keyed by
// the state nonce and consumed exactly once.
func (redisCache *RedisStudyCache) SetPendingVerifier(ctx context.Context, state string, verifier string) error {
	return redisCache.client.Set(ctx, buildVerifierKey(state), verifier, verifierTTL).Err()
}

func (redisCache *RedisStudyCache) TakePendingVerifier(ctx context.Context, state string) (string, error) {
	verifier, err := redisCache.client.GetDel(ctx, buildVerifierKey(state)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", cache.ErrCacheMiss
		}
		return "", err
	}
	return verifier, nil
}
