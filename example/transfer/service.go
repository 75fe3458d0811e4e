package transfer

import (
	"github.com/esaucy/esaucy-go/eventsourcing"
)

// Service executes CreateTransaction commands.
type Service = eventsourcing.Service[CreateTransaction, TransactionCreated, AccountBalance]

// NewService wires handler, Project and Resolve to store and repository.
// A nil handler fails with eventsourcing.ErrNilCollaborator.
func NewService(
	handler *Handler,
	store eventsourcing.EventStore,
	repository eventsourcing.StateRepository[AccountBalance],
	options ...eventsourcing.Option,
) (*Service, error) {

	if handler == nil {
		return nil, eventsourcing.ErrNilCollaborator
	}

	return eventsourcing.NewService[CreateTransaction, TransactionCreated, AccountBalance](
		handler,
		store,
		eventsourcing.ProjectorFunc[TransactionCreated, AccountBalance](Project),
		repository,
		Resolve,
		options...,
	)
}
