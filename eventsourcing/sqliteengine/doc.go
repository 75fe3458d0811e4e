// Package sqliteengine provides a durable embedded event store and state repository on SQLite
// (modernc.org/sqlite, no cgo).
//
// Open the database with Open, create the tables with CreateSchema, then build the engines:
//
//	db, err := sqliteengine.Open("data/esaucy.db")
//	err = sqliteengine.CreateSchema(ctx, db)
//	store, err := sqliteengine.NewEventStore(db)
//	repository, err := sqliteengine.NewStateRepository(db, transfer.NewAccountBalance)
package sqliteengine
