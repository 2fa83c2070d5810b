// Package ratelimit is in-memory per-client rate limiting with background
// eviction of idle entries.
//
// It guards a single instance against one client flooding it, most
// importantly credential guessing against the login route. It is not shared
// between instances and does nothing against distributed attacks.
package ratelimit
