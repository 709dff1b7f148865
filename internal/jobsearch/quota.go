package jobsearch

import (
	"context"
	"time"

	"github.com/kiranshivaraju/jobhunter/internal/cache"
)

// Counter is the slice of the cache the daily quota needs.
type Counter interface {
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// DailyQuota allows perDay searches per user per UTC day. A non-positive
// perDay disables the veto.
func DailyQuota(c Counter, perDay int, now func() time.Time) QuotaFunc {
	if perDay <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, userID string) (bool, error) {
		t := now().UTC()
		midnight := time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
		n, err := c.IncrWithExpiry(ctx, cache.SearchQuotaKey(userID, t), midnight.Sub(t))
		if err != nil {
			return false, err
		}
		return n <= int64(perDay), nil
	}
}
