package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserTokenKey returns the cache key holding a user's current JWT id
func (r *CacheKeyStruct) UserTokenKey(userID int64) string {
	return fmt.Sprintf("login:%d", userID)
}

// PracticeSessionKey returns the cache key for a user's serialized practice session
func (r *CacheKeyStruct) PracticeSessionKey(userID int64) string {
	return fmt.Sprintf("user:%d:practice_session", userID)
}

// PaperQuestionsKey returns the cache key for a paper's ordered question list
func (r *CacheKeyStruct) PaperQuestionsKey(paperID int64) string {
	return fmt.Sprintf("paper:%d:questions", paperID)
}

var CacheKey = NewCacheKeyStruct()
