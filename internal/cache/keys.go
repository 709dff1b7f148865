package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// AdapterResultKey identifies the last search result of provider for a
// (keywords, location) pair. Inputs are case and whitespace normalized.
func AdapterResultKey(provider, keywords, location string) string {
	norm := func(s string) string { return strings.ToLower(strings.Join(strings.Fields(s), " ")) }
	sum := sha256.Sum256([]byte(norm(keywords) + "\x00" + norm(location)))
	return fmt.Sprintf("adapter:%s:%s", provider, hex.EncodeToString(sum[:]))
}

// SearchQuotaKey is the per-user daily search counter for the UTC day of at.
func SearchQuotaKey(userID string, at time.Time) string {
	return fmt.Sprintf("quota:search:%s:%s", at.UTC().Format("20060102"), userID)
}

// RateLimitKey is the per-user request throttle counter.
func RateLimitKey(userID string) string {
	return fmt.Sprintf("ratelimit:%s", userID)
}
