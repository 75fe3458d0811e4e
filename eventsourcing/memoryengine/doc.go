// Package memoryengine provides in-process implementations of eventsourcing.EventStore,
// eventsourcing.EventReader and eventsourcing.StateRepository.
//
// They are meant for tests, demos and single-process deployments that accept losing all data on restart.
// Both types are safe for concurrent use: appends and compare-and-set saves are serialized by a mutex.
package memoryengine
