// Package eventsourcing provides a single-aggregate event-sourcing execution engine.
//
// A Service turns a command into a persisted event and folds that event into the current state
// of every aggregate it affects. The engine is built from four roles, all injected through NewService:
//
//   - CommandHandler: validates a command and builds exactly one Event
//   - EventStore: appends the event durably (memoryengine, postgresengine, sqliteengine, kafkaengine)
//   - Projector: pure fold of an event into a State
//   - StateRepository: latest State per identity with an optimistic index check
//     (memoryengine, postgresengine, sqliteengine, redisengine)
//
// An IdentityResolver maps each event to the identities of the states it affects.
//
// Common usage pattern:
//
//	service, err := eventsourcing.NewService(handler, store, projector, repository, resolver,
//		eventsourcing.WithLogger(slog.Default()))
//	if err != nil {
//		// configuration error
//	}
//
//	result, err := service.Execute(ctx, command)
//	switch {
//	case errors.Is(err, eventsourcing.ErrInvalidCommand):
//		// nothing happened
//	case errors.Is(err, eventsourcing.ErrProjectionIncomplete):
//		// the event is durable, finish the states still pending
//		var projectionErr *eventsourcing.ProjectionError
//		if errors.As(err, &projectionErr) {
//			_, err = service.Project(ctx, result.Event, projectionErr.Pending...)
//		}
//	}
package eventsourcing
