package cmd

import (
	"fmt"

	"github.com/autofin/autofin/pkg/automation"
)

// NewCache creates the preference cache for the given URL. An empty URL
// selects the in-process cache.
func NewCache(url string) automation.Cache {
	if url == "" {
		return automation.NewMemoryCache()
	}

	cache, err := automation.NewRedisCacheFromURL(url)
	if err != nil {
		panic(fmt.Errorf("failed to create redis cache: %w", err))
	}

	return cache
}
