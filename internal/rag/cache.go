package rag

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedRetriever wraps another retriever with a redis cache keyed by the
// normalized question. Cache trouble is never an error: a miss or a
// redis failure just falls through to the inner retriever.
type CachedRetriever struct {
	Inner  Retriever
	Client *redis.Client
	TTL    time.Duration
}

func NewCachedRetriever(inner Retriever, client *redis.Client, ttl time.Duration) *CachedRetriever {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedRetriever{Inner: inner, Client: client, TTL: ttl}
}

func cacheKey(question string) string {
	norm := strings.Join(strings.Fields(strings.ToLower(question)), " ")
	sum := sha256.Sum256([]byte(norm))
	return "rag:ctx:" + hex.EncodeToString(sum[:])
}

func (c *CachedRetriever) Retrieve(ctx context.Context, question string) ([]Passage, error) {
	key := cacheKey(question)

	if raw, err := c.Client.Get(ctx, key).Result(); err == nil {
		var passages []Passage
		if err := json.Unmarshal([]byte(raw), &passages); err == nil {
			return passages, nil
		}
		// poisoned entry, drop it and retrieve fresh
		_ = c.Client.Del(ctx, key).Err()
	} else if err != redis.Nil {
		log.Printf("rag cache get failed key=%s err=%v", key, err)
	}

	passages, err := c.Inner.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(passages); err == nil {
		if err := c.Client.Set(ctx, key, raw, c.TTL).Err(); err != nil {
			log.Printf("rag cache set failed key=%s err=%v", key, err)
		}
	}
	return passages, nil
}
