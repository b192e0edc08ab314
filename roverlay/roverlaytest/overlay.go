// Package roverlaytest contains a stub [roverlay.Overlay]
// for testing code that is layered on an overlay.
package roverlaytest

import (
	"context"
	"slices"
	"time"

	"github.com/gordian-engine/rps/roverlay"
)

var _ roverlay.Overlay = (*Overlay)(nil)

// Overlay records outgoing calls and delivers incoming messages
// synchronously to registered handlers.
// It is not safe for concurrent use.
type Overlay struct {
	roverlay.Layer

	// Returned from Neighbours; also the set of IDs SendUnicast accepts.
	NeighbourIDs []string

	// Error returned from Connect, Exchange, and SendBroadcast.
	Err error

	Contacts       []string
	Exchanges      int
	SentBroadcasts [][]byte
	SentUnicasts   []roverlay.Unicast // From holds the destination.

	broadcastHandlers []roverlay.BroadcastHandler
	unicastHandlers   []roverlay.UnicastHandler
}

// New returns a stub Overlay over base.
func New(base roverlay.Network) *Overlay {
	return &Overlay{Layer: roverlay.NewLayer(base)}
}

func (o *Overlay) Connect(_ context.Context, contact string, _ time.Duration) error {
	o.Contacts = append(o.Contacts, contact)
	return o.Err
}

func (o *Overlay) Neighbours() []string {
	return slices.Clone(o.NeighbourIDs)
}

func (o *Overlay) OnBroadcast(h roverlay.BroadcastHandler) {
	o.broadcastHandlers = append(o.broadcastHandlers, h)
}

func (o *Overlay) SendBroadcast(_ context.Context, payload []byte) error {
	o.SentBroadcasts = append(o.SentBroadcasts, payload)
	return o.Err
}

func (o *Overlay) OnUnicast(h roverlay.UnicastHandler) {
	o.unicastHandlers = append(o.unicastHandlers, h)
}

func (o *Overlay) SendUnicast(_ context.Context, payload []byte, id string) bool {
	if !slices.Contains(o.NeighbourIDs, id) {
		return false
	}
	o.SentUnicasts = append(o.SentUnicasts, roverlay.Unicast{From: id, Payload: payload})
	return true
}

func (o *Overlay) Exchange(context.Context) error {
	o.Exchanges++
	return o.Err
}

// DeliverBroadcast calls every registered broadcast handler with b.
func (o *Overlay) DeliverBroadcast(b roverlay.Broadcast) {
	for _, h := range o.broadcastHandlers {
		h(b)
	}
}

// DeliverUnicast calls every registered unicast handler with u.
func (o *Overlay) DeliverUnicast(u roverlay.Unicast) {
	for _, h := range o.unicastHandlers {
		h(u)
	}
}
