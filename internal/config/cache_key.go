package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionExpiresAtKey returns the cache key holding a session's deadline
func (r *CacheKeyStruct) SessionExpiresAtKey(token string) string {
	return fmt.Sprintf("session:%s:expires_at", token)
}

// DeclarationLockKey returns the key guarding one in-flight declaration run per test
func (r *CacheKeyStruct) DeclarationLockKey(testID string) string {
	return fmt.Sprintf("test:%s:declare_lock", testID)
}

var CacheKey = NewCacheKeyStruct()
