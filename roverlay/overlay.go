// Package roverlay declares the capabilities that every concrete overlay
// built on a partial view provides.
//
// An overlay is always layered on something:
// a transport, or another overlay.
// Both satisfy [Network], so overlays can be stacked.
package roverlay

import (
	"context"
	"errors"
	"time"
)

// Network is anything an overlay can be layered on.
type Network interface {
	// LocalID is this node's identifier on the network.
	LocalID() string
}

// Overlay is the capability set of a concrete overlay.
type Overlay interface {
	Network

	// Connect joins the overlay through the node identified by contact,
	// which must be reachable through the overlay's base network.
	// Connect returns once the link is established,
	// or with an error on transport failure or when timeout elapses.
	// A zero timeout relies on ctx alone.
	Connect(ctx context.Context, contact string, timeout time.Duration) error

	// Neighbours returns the distinct IDs currently in the partial view.
	Neighbours() []string

	// OnBroadcast registers h to observe every broadcast delivered
	// after the call returns.
	// There is no ordering guarantee between broadcasts.
	OnBroadcast(h BroadcastHandler)

	// SendBroadcast publishes payload to every node reachable in the overlay.
	SendBroadcast(ctx context.Context, payload []byte) error

	// OnUnicast registers h to observe every unicast delivered
	// after the call returns.
	OnUnicast(h UnicastHandler)

	// SendUnicast sends payload to the neighbor with the given ID.
	// The result is a best-effort signal that the message left this node,
	// not a delivery guarantee.
	SendUnicast(ctx context.Context, payload []byte, id string) bool

	// Exchange runs one peer-sampling round
	// and returns once the round completes or fails.
	Exchange(ctx context.Context) error
}

// Broadcast is a broadcast message as delivered to a [BroadcastHandler].
type Broadcast struct {
	// Node that published the message.
	Origin string

	// Neighbor that relayed the message to us.
	From string

	Payload []byte
}

// Unicast is a unicast message as delivered to a [UnicastHandler].
type Unicast struct {
	From string

	Payload []byte
}

type (
	BroadcastHandler func(Broadcast)
	UnicastHandler   func(Unicast)
)

// Layer records the network an overlay is built on.
// Concrete overlays embed a Layer created with [NewLayer].
type Layer struct {
	prev Network
}

// NewLayer returns a Layer over prev.
// Every overlay must be layered on a transport or another overlay,
// so NewLayer panics if prev is nil.
func NewLayer(prev Network) Layer {
	if prev == nil {
		panic(errors.New(
			"BUG: an overlay requires a base network (a transport or another overlay)",
		))
	}
	return Layer{prev: prev}
}

// Previous returns the network the overlay is layered on.
func (l Layer) Previous() Network {
	return l.prev
}

// LocalID returns the base network's local ID;
// every layer of a node shares one identity.
func (l Layer) LocalID() string {
	return l.prev.LocalID()
}
