// Package postgresengine provides a PostgreSQL event store and state repository.
//
// Both engines can be created from a pgxpool.Pool, a sql.DB or a sqlx.DB. Statements are built with goqu
// and executed with inlined values through the adapter of the chosen driver.
//
// The events table orders events with an identity column and rejects duplicates with a unique
// event_id; the states table guards every state row with its state_index.
// See Schema for the DDL, or call CreateSchema.
package postgresengine
