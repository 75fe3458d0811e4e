// Package sqlstore implements eventsourcing.EventStore, eventsourcing.EventReader and
// eventsourcing.StateRepository on top of a SQL database.
//
// Statements are built with goqu for the dialect of the engine (postgres or sqlite3) and executed
// through an adapters.DBAdapter. Values are inlined into the statements (non-prepared mode).
//
// Tables:
//
//	events: sequence_number (auto increment), event_id (unique), event_name, event_version,
//	        occurred_at (unix millis), payload, metadata
//	states: state_id (primary key), state_index, data, updated_at (unix millis)
//
// Duplicate events and first saves are written with INSERT ... ON CONFLICT DO NOTHING, later saves with
// UPDATE ... WHERE state_index = expected. Zero affected rows mean duplicate or concurrent modification.
package sqlstore
