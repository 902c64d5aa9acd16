package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserSessionKey returns the cache key holding a user's active login
// token id. The most recent login wins; older tokens are invalidated.
func (r *CacheKeyStruct) UserSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// SessionEndsAtKey returns the cache key for a session's deadline.
// The value is the session's ends_at as a Unix timestamp; PostgreSQL
// remains the source of truth on a cache miss.
func (r *CacheKeyStruct) SessionEndsAtKey(sessionID string) string {
	return fmt.Sprintf("session:%s:ends_at", sessionID)
}

// ExpirySweepLockKey returns the key used as the sweep leader lock so
// only one instance finalizes expired sessions at a time.
func (r *CacheKeyStruct) ExpirySweepLockKey() string {
	return "worker:expiry_sweep:lock"
}

var CacheKey = NewCacheKeyStruct()
