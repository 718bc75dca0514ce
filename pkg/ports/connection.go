package ports

import (
	"context"

	"github.com/aretw0/virtuoso/pkg/domain"
)

// Subscription is one consumer's ordered stream of an account's events.
type Subscription interface {
	// Next blocks until an event is available or ctx is done.
	Next(ctx context.Context) (domain.ConnectionEvent, error)
	// Close unsubscribes; pending events are discarded.
	Close()
}

// ConnectionManager is the transport collaborator driven by the Conductor.
// Accounts are addressed by their composition alias.
type ConnectionManager interface {
	// Open starts connecting the account. Completion is reported as a status event.
	Open(ctx context.Context, account domain.AccountReference) error

	// Close disconnects the account.
	Close(ctx context.Context, account domain.AccountReference) error

	// Send dispatches a raw payload.
	// Returns domain.ErrNotConnected if the account is not online.
	Send(ctx context.Context, account domain.AccountReference, payload string) error

	// Status returns the last reported status of the account.
	Status(account domain.AccountReference) domain.ConnectionStatus

	// Subscribe attaches a new consumer to the account's inbound messages and status transitions.
	Subscribe(account domain.AccountReference) (Subscription, error)
}
