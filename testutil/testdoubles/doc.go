// Package testdoubles provides spies for the observability interfaces of the eventsourcing package.
// All spies are safe for concurrent use, so they can be shared by goroutines of concurrency tests.
package testdoubles
