package redis

import (
	"context"
	"time"
)

var replaySetNX = SetNX

// ReplayStore remembers wallet-auth challenges that were already redeemed.
type ReplayStore struct {
	prefix string
}

// NewReplayStore creates a replay store whose keys live under prefix.
func NewReplayStore(prefix string) *ReplayStore {
	if prefix == "" {
		prefix = "walletauth:replay:"
	}
	return &ReplayStore{prefix: prefix}
}

// Claim marks key as used for ttl. It returns false if the key was already claimed.
func (s *ReplayStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return replaySetNX(ctx, s.prefix+key, "1", ttl)
}
