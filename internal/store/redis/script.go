package redisstore

import "github.com/redis/go-redis/v9"

// KEYS[1] => sorted-set key for the queue
// ARGV[1] => due-window floor, Encode(now)
// ARGV[2] => due-window ceiling, MaxScore
//
// Reads the due range high-to-low (oldest ready-time first, by construction
// of the score encoding) and deletes exactly that range in the same script
// execution, so the read and the delete cannot interleave with another
// claimer. Returns the removed members; an empty due range returns an empty
// table, not an error.
var claimScript = redis.NewScript(
	`local due = redis.call('ZREVRANGEBYSCORE',KEYS[1],ARGV[2],ARGV[1]);` +
		`if #due == 0 then return due end;` +
		`redis.call('ZREMRANGEBYSCORE',KEYS[1],ARGV[1],ARGV[2]);` +
		`return due`,
)
