package eventsourcing

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

// Service is the event-based orchestrator. It composes a CommandHandler, an EventStore, a Projector
// and a StateRepository into one pipeline:
//
//	command -> Handle -> Publish -> resolve identities -> Project -> Save -> Result
//
// Concurrent Execute calls are safe. Lost updates are prevented with optimistic concurrency on the
// state index: each affected identity runs its own get-project-save loop, which is retried with
// exponential backoff on ErrConcurrentModification.
type Service[C Command, E Event, S State] struct {
	handler    CommandHandler[C, E]
	store      EventStore
	projector  Projector[E, S]
	repository StateRepository[S]
	resolve    IdentityResolver[E]
	serviceOptions
}

// NewService creates a Service from its collaborators.
// It fails with ErrNilCollaborator, ErrNoIdentityResolver or an invalid option instead of failing later per call.
func NewService[C Command, E Event, S State](
	handler CommandHandler[C, E],
	store EventStore,
	projector Projector[E, S],
	repository StateRepository[S],
	resolve IdentityResolver[E],
	options ...Option,
) (*Service[C, E, S], error) {

	if handler == nil || store == nil || projector == nil || repository == nil {
		return nil, ErrNilCollaborator
	}

	if resolve == nil {
		return nil, ErrNoIdentityResolver
	}

	s := &Service[C, E, S]{
		handler:    handler,
		store:      store,
		projector:  projector,
		repository: repository,
		resolve:    resolve,
		serviceOptions: serviceOptions{
			replayBatchSize: defaultReplayBatchSize,
		},
	}

	for _, option := range options {
		if err := option(&s.serviceOptions); err != nil {
			return nil, err
		}
	}

	if s.metricsCollector != nil {
		// user supplied retry options come last and win
		s.retryOptions = append([]RetryOption{WithRetryMetrics(s.metricsCollector, operationProject)}, s.retryOptions...)
	}

	if _, err := newRetryConfig(s.retryOptions...); err != nil {
		return nil, err
	}

	return s, nil
}

// Execute runs the complete pipeline for one command and returns only after the affected states are persisted.
//
// Failure outcomes:
//   - ErrInvalidCommand / ErrHandlingCommandFailed: no event was produced.
//   - ErrStoreFailure / ErrDuplicateEvent from publishing: nothing was projected.
//   - *ProjectionError (ErrProjectionIncomplete): the event is durable, some states are pending.
//
// Once the event is published, projection is detached from the cancellation of ctx,
// so a caller that gives up after publish leaves a completed but unobserved command behind.
func (s *Service[C, E, S]) Execute(ctx context.Context, command C) (Result[E, S], error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, spanNameExecute, map[string]string{spanAttrCommandID: command.CommandID()})

	result, err := s.execute(ctx, command)

	s.observe(ctx, span, operationExecute, command.CommandID(), result, err, time.Since(start))

	return result, err
}

func (s *Service[C, E, S]) execute(ctx context.Context, command C) (Result[E, S], error) {
	result := Result[E, S]{Stage: StageReceived}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	event, err := s.handler.Handle(ctx, command)
	if err != nil {
		if errors.Is(err, ErrInvalidCommand) {
			return result, err
		}

		return result, errors.Join(ErrHandlingCommandFailed, err)
	}

	result.Event = event
	result.Stage = StageHandled

	if err = s.store.Publish(WithCausationID(ctx, command.CommandID()), event); err != nil {
		if errors.Is(err, ErrDuplicateEvent) {
			return result, err
		}

		return result, asStoreFailure(err)
	}

	result.Stage = StagePublished

	return s.project(context.WithoutCancel(ctx), event, result)
}

// Project runs resolve-project-persist for an event that is already published.
//
// With ids, only those of the resolved identities are projected. Pass ProjectionError.Pending to
// complete a projection after Execute failed with ErrProjectionIncomplete; the states listed in
// ProjectionError.Persisted already contain the event and must not see it again.
// Without ids, every resolved identity is projected.
func (s *Service[C, E, S]) Project(ctx context.Context, event E, ids ...string) (Result[E, S], error) {
	start := time.Now()
	ctx, span := s.startSpan(ctx, spanNameProject, map[string]string{spanAttrEventID: event.EventID()})

	result, err := s.project(ctx, event, Result[E, S]{Event: event, Stage: StagePublished}, ids...)

	s.observe(ctx, span, operationProject, "", result, err, time.Since(start))

	return result, err
}

// GetState returns the current state for an identity, for read access outside the write path.
func (s *Service[C, E, S]) GetState(ctx context.Context, id string) (S, error) {
	return s.repository.Get(ctx, id)
}

func (s *Service[C, E, S]) project(ctx context.Context, event E, result Result[E, S], only ...string) (Result[E, S], error) {
	ids := uniqueIdentities(s.resolve(event))
	if len(only) > 0 {
		ids = slices.DeleteFunc(ids, func(id string) bool { return !slices.Contains(only, id) })
	}

	result.Stage = StageResolved

	done := make([]string, 0, len(ids))

	for i, id := range ids {
		state, changed, reached, retryMetrics, err := s.projectOne(ctx, id, event)
		result.RetryAttempts += retryMetrics.Attempts

		if reached > result.Stage {
			result.Stage = reached
		}

		if err != nil {
			return result, &ProjectionError{
				EventID:   event.EventID(),
				Persisted: done,
				Pending:   ids[i:],
				Err:       err,
			}
		}

		if changed {
			result.States = append(result.States, state)
		}

		done = append(done, id)
	}

	result.Stage = StageCompleted

	return result, nil
}

// projectOne runs get-project-save for one identity, retried on concurrent modification.
func (s *Service[C, E, S]) projectOne(ctx context.Context, id string, event E) (S, bool, Stage, RetryMetrics, error) {
	var projected S
	var changed bool
	reached := StageResolved

	retryMetrics, err := RetryWithExponentialBackoff(ctx, func(ctx context.Context) error {
		current, err := s.repository.Get(ctx, id)
		if err != nil {
			return asStoreFailure(err)
		}

		next := s.projector.Project(current, event)
		reached = StageProjected

		switch next.StateIndex() {
		case current.StateIndex():
			projected, changed = current, false
			reached = StagePersisted
			return nil

		case current.StateIndex() + 1:
			// mutated, persist below

		default:
			return fmt.Errorf("%w: state %q went from %d to %d", ErrIndexNotAdvancedByOne, id, current.StateIndex(), next.StateIndex())
		}

		if err = s.repository.Save(ctx, next, current.StateIndex()); err != nil {
			if errors.Is(err, ErrConcurrentModification) {
				s.recordConflict(ctx, id, current.StateIndex())
				return err
			}

			return asStoreFailure(err)
		}

		s.logDebug(ctx, logMsgStateProjected, logAttrStateID, id, logAttrStateIndex, next.StateIndex(), logAttrEventID, event.EventID())

		projected, changed = next, true
		reached = StagePersisted

		return nil
	}, s.retryOptions...)

	return projected, changed, reached, retryMetrics, err
}

func asStoreFailure(err error) error {
	if errors.Is(err, ErrStoreFailure) {
		return err
	}

	return errors.Join(ErrStoreFailure, err)
}

// uniqueIdentities removes empty and repeated identities, keeping the first occurrence.
// An event naming the same identity twice is projected into it once.
func uniqueIdentities(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))

	for _, id := range ids {
		if id == "" {
			continue
		}

		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	return unique
}
