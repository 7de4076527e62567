// Package ratelimit throttles the login handshake with per-address and
// per-user token buckets.
package ratelimit
