// Package rtransport declares the message transport
// that the rcyclon overlay is layered on.
//
// Implementations live in subpackages ([rmem]) and in the rquic package.
package rtransport

import (
	"context"

	"github.com/gordian-engine/rps/roverlay"
	"github.com/gordian-engine/rps/rproto"
)

// Transport moves [rproto.Message] values between nodes addressed by ID.
type Transport interface {
	roverlay.Network

	// Dial establishes a link to the node with the given ID.
	// Implementations may return a cached link.
	Dial(ctx context.Context, id string) (Conn, error)

	// Inbound delivers messages received from any node.
	// The channel is never closed;
	// readers stop on their own context.
	Inbound() <-chan Envelope
}

// Conn is a link to a single remote node.
// Its value is the connection handle stored in partial view entries.
type Conn interface {
	RemoteID() string

	// Send delivers m to the remote's inbound channel,
	// or returns an error if that was not possible.
	Send(ctx context.Context, m rproto.Message) error

	Close() error
}

// Envelope is a received message together with its sender.
type Envelope struct {
	From string
	Msg  rproto.Message
}
