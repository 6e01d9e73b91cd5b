package limiter

import "github.com/redis/go-redis/v9"

// Each script is the atomic server-side core of one rate-limiting
// algorithm. All five return the four-tuple (limit, remaining, reset,
// decision) and take ARGV = {limit, expiration}. They use the counter
// store's own clock (redis TIME) at second resolution so that every
// gateway replica agrees on "now".
//
// go-redis caches each *redis.Script by its SHA-1 and transparently
// retries once via EVAL on NOSCRIPT, so Load need only run once at
// process startup (see Engine.Preload).

var fixedWindowScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local expiration = tonumber(ARGV[2])

local current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], expiration)
end

local decision = 1
if current > limit then
	decision = 0
end

local remaining = limit - current
if remaining < 0 then
	remaining = 0
end

local ttl = redis.call('TTL', KEYS[1])
if ttl < 0 then
	ttl = expiration
end

return {limit, remaining, ttl, decision}
`)

// slidingWindowLogScript operates on two sibling keys: KEYS[1] is the
// sorted set of request timestamps, KEYS[2] the monotone member-suffix
// counter (so same-second requests don't collide as set members).
var slidingWindowLogScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local expiration = tonumber(ARGV[2])

local t = redis.call('TIME')
local now = tonumber(t[1])
local threshold = now - expiration

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', '(' .. threshold)
local count = redis.call('ZCARD', KEYS[1])

local decision, remaining, reset

if count + 1 > limit then
	decision = 0
	remaining = 0
	reset = expiration
	local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
	if oldest and #oldest >= 2 then
		reset = tonumber(oldest[2]) + expiration - now
	end
else
	local suffix = redis.call('INCR', KEYS[2])
	local member = now .. ':' .. suffix
	redis.call('ZADD', KEYS[1], now, member)
	decision = 1
	remaining = limit - count - 1
	reset = expiration
	local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
	if oldest and #oldest >= 2 then
		reset = tonumber(oldest[2]) + expiration - now
	end
end

redis.call('EXPIRE', KEYS[1], expiration + 1)
redis.call('EXPIRE', KEYS[2], expiration + 1)

if reset < 0 then
	reset = 0
end

return {limit, remaining, reset, decision}
`)

// slidingWindowCounterScript approximates a sliding window with three
// buckets of size `expiration` inside a period of 3*expiration, stored
// as a hash {"0","1","2"} -> count.
var slidingWindowCounterScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local expiration = tonumber(ARGV[2])

local t = redis.call('TIME')
local now = tonumber(t[1])
local period = 3 * expiration
local normalized_now = now % period
local current = math.floor(normalized_now / expiration)
local previous = (current + 2) % 3
local nextb = (current + 1) % 3

if redis.call('EXISTS', KEYS[1]) == 0 then
	redis.call('HSET', KEYS[1], '0', 0, '1', 0, '2', 0)
end

redis.call('HSET', KEYS[1], tostring(nextb), 0)

local counts = redis.call('HMGET', KEYS[1], '0', '1', '2')
local count_previous = tonumber(counts[previous + 1]) or 0
local count_current = tonumber(counts[current + 1]) or 0

local p = (normalized_now % expiration) / expiration
local weight = (1 - p) * count_previous + count_current

local decision, remaining
if weight > limit then
	decision = 0
	remaining = 0
else
	redis.call('HINCRBY', KEYS[1], tostring(current), 1)
	decision = 1
	remaining = limit - weight - 1
	if remaining < 0 then
		remaining = 0
	end
end

redis.call('EXPIRE', KEYS[1], expiration + 1)

local reset = expiration - (now % expiration)

return {limit, math.floor(remaining), reset, decision}
`)

// tokenBucketScript stores {count, last_rq_timestamp} in a hash.
var tokenBucketScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local expiration = tonumber(ARGV[2])

local t = redis.call('TIME')
local now = tonumber(t[1])

local count, last
if redis.call('EXISTS', KEYS[1]) == 0 then
	count = limit
	last = now
	redis.call('HSET', KEYS[1], 'count', count, 'last_rq_timestamp', last)
	redis.call('EXPIRE', KEYS[1], expiration)
else
	local data = redis.call('HMGET', KEYS[1], 'count', 'last_rq_timestamp')
	count = tonumber(data[1])
	last = tonumber(data[2])
end

local elapsed = now - last
local refill = elapsed * (limit / expiration)
count = math.min(limit, count + refill)

local decision, remaining
if count - 1 < 0 then
	decision = 0
	remaining = 0
else
	count = count - 1
	last = now
	decision = 1
	remaining = count
	redis.call('HSET', KEYS[1], 'count', count, 'last_rq_timestamp', last)
end

local ttl = redis.call('TTL', KEYS[1])
if ttl < 0 then
	ttl = expiration
end

return {limit, math.floor(remaining), ttl, decision}
`)

// leakyBucketScript stores {count, last_rq_timestamp} in a hash, where
// count is the number of pending (un-leaked) requests.
var leakyBucketScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local expiration = tonumber(ARGV[2])

local t = redis.call('TIME')
local now = tonumber(t[1])

local count, last
if redis.call('EXISTS', KEYS[1]) == 0 then
	count = 0
	last = now
else
	local data = redis.call('HMGET', KEYS[1], 'count', 'last_rq_timestamp')
	count = tonumber(data[1]) or 0
	last = tonumber(data[2]) or now
end

local elapsed = now - last
local drained = elapsed * (limit / expiration)
count = math.max(0, count - drained)

local decision, remaining
if count + 1 > limit then
	decision = 0
	remaining = 0
else
	count = count + 1
	decision = 1
	remaining = limit - math.ceil(count) - 1
	if remaining < 0 then
		remaining = 0
	end
end

redis.call('HSET', KEYS[1], 'count', count, 'last_rq_timestamp', now)
redis.call('EXPIRE', KEYS[1], expiration)

local ttl = redis.call('TTL', KEYS[1])
if ttl < 0 then
	ttl = expiration
end

return {limit, remaining, ttl, decision}
`)
