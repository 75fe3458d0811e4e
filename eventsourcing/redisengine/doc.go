// Package redisengine provides an eventsourcing.StateRepository on Redis.
//
// Every state is a hash with an "index" and a "data" field under keyPrefix + state id.
// Save runs a Lua script that compares the stored index with the expected index and writes both
// fields in one atomic step, so concurrent writers from several processes cannot lose updates.
package redisengine
