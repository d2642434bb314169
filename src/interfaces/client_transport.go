package interfaces

import (
	"errors"

	"ohlc-streamer/src/models"
)

// SendText failures. Both mean the client no longer receives pushes.
var (
	ErrClientGone = errors.New("client not connected")
	ErrClientSlow = errors.New("client send queue full, disconnected")
)

// -----------------------------------------------------------------------------
// IClientTransport is the capability the distribution hub needs from the push
// protocol: enumerate clients, send text to one of them and receive
// connect/disconnect/message notifications.
// -----------------------------------------------------------------------------

type IClientTransport interface {

	// Clients lists the identities of the currently connected clients.
	Clients() []string

	// -----------------------------------------------------------------------------

	// SendText queues text for one client without blocking. An error wrapping
	// ErrClientGone or ErrClientSlow means the client is gone or was dropped;
	// callers skip it.
	SendText(clientID string, text string) error

	// -----------------------------------------------------------------------------

	// Events delivers client notifications in the order they happened.
	Events() <-chan models.MClientEvent
}
