package redis

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// slidingWindowScript weighs the previous fixed window by how much of it still
// overlaps the sliding window and admits the request only if the weighted sum
// stays under the limit. The check and the INCR run atomically on the server.
var slidingWindowScript = goredis.NewScript(`
local current_key = KEYS[1]
local previous_key = KEYS[2]
local limit = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local window = tonumber(ARGV[3])

local current = tonumber(redis.call("GET", current_key) or "0")
local previous = tonumber(redis.call("GET", previous_key) or "0")
local weight = 1 - ((now % window) / window)
local weighted = math.floor(previous * weight)

if weighted + current >= limit then
  return -1
end

local count = redis.call("INCR", current_key)
if count == 1 then
  redis.call("PEXPIRE", current_key, window * 2 + 1000)
end
return limit - (weighted + count)
`)

type WindowResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

type SlidingWindow struct {
	rdb    goredis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewSlidingWindow(rdb goredis.UniversalClient, prefix string) *SlidingWindow {
	return &SlidingWindow{rdb: rdb, prefix: prefix, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (w *SlidingWindow) WithClock(now func() time.Time) *SlidingWindow {
	w.now = now
	return w
}

func (w *SlidingWindow) Allow(ctx context.Context, identifier string, limit int, window time.Duration) (WindowResult, error) {
	nowMs := w.now().UnixMilli()
	windowMs := window.Milliseconds()
	bucket := nowMs / windowMs

	base := w.prefix + ":" + identifier + ":"
	keys := []string{
		base + strconv.FormatInt(bucket, 10),
		base + strconv.FormatInt(bucket-1, 10),
	}

	remaining, err := slidingWindowScript.Run(ctx, w.rdb, keys, limit, nowMs, windowMs).Int64()
	if err != nil {
		return WindowResult{}, err
	}

	res := WindowResult{
		Limit: limit,
		Reset: time.UnixMilli((bucket + 1) * windowMs),
	}
	if remaining >= 0 {
		res.Allowed = true
		res.Remaining = int(remaining)
	}
	return res, nil
}
