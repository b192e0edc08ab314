// Package rmem contains an in-process [rtransport.Transport],
// for tests and simulations of many nodes in one process.
package rmem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gordian-engine/rps/rproto"
	"github.com/gordian-engine/rps/rtransport"
)

// UnknownPeerError is returned when dialing or sending to an ID
// that has not joined the hub, or has since left it.
type UnknownPeerError struct {
	ID string
}

func (e UnknownPeerError) Error() string {
	return "unknown peer " + e.ID
}

// Hub connects every [*Transport] created from it.
type Hub struct {
	mu    sync.RWMutex
	nodes map[string]*Transport

	inboundSize int
}

// NewHub returns an empty Hub.
// Each joined transport's inbound channel has inboundSize slots;
// zero selects a default.
func NewHub(inboundSize int) *Hub {
	if inboundSize <= 0 {
		inboundSize = 64
	}
	return &Hub{
		nodes:       map[string]*Transport{},
		inboundSize: inboundSize,
	}
}

// Join registers a new transport with the given ID.
// It panics if the ID is already present.
func (h *Hub) Join(id string) *Transport {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.nodes[id]; ok {
		panic(fmt.Errorf("BUG: id %q already joined the hub", id))
	}

	t := &Transport{
		hub:     h,
		id:      id,
		inbound: make(chan rtransport.Envelope, h.inboundSize),
		gone:    make(chan struct{}),
	}
	h.nodes[id] = t
	return t
}

// Leave removes the transport with the given ID.
// Later sends to it fail with [UnknownPeerError],
// and sends blocked on its full inbound channel are released.
func (h *Hub) Leave(id string) {
	h.mu.Lock()
	t, ok := h.nodes[id]
	delete(h.nodes, id)
	h.mu.Unlock()

	if ok {
		close(t.gone)
	}
}

func (h *Hub) lookup(id string) (*Transport, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	t, ok := h.nodes[id]
	return t, ok
}

var _ rtransport.Transport = (*Transport)(nil)

// Transport is a hub member.
type Transport struct {
	hub *Hub
	id  string

	inbound chan rtransport.Envelope

	// Closed when the transport leaves the hub.
	gone chan struct{}
}

func (t *Transport) LocalID() string { return t.id }

func (t *Transport) Inbound() <-chan rtransport.Envelope { return t.inbound }

// Dial returns a Conn to id, failing if id is not in the hub.
func (t *Transport) Dial(_ context.Context, id string) (rtransport.Conn, error) {
	if _, ok := t.hub.lookup(id); !ok {
		return nil, UnknownPeerError{ID: id}
	}
	return &Conn{from: t, to: id}, nil
}

// Conn is a link between two hub members.
type Conn struct {
	from *Transport
	to   string
}

func (c *Conn) RemoteID() string { return c.to }

// Send encodes and decodes m, as a network transport would,
// and delivers the result to the remote's inbound channel.
// Send blocks while that channel is full.
func (c *Conn) Send(ctx context.Context, m rproto.Message) error {
	dst, ok := c.from.hub.lookup(c.to)
	if !ok {
		return UnknownPeerError{ID: c.to}
	}

	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	decoded, err := rproto.Decode(&buf)
	if err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-dst.gone:
		return UnknownPeerError{ID: c.to}
	case dst.inbound <- rtransport.Envelope{From: c.from.id, Msg: decoded}:
		return nil
	}
}

// Close is a no-op; hub links hold no resources.
func (c *Conn) Close() error { return nil }

// IsUnknownPeer reports whether err is or wraps an [UnknownPeerError].
func IsUnknownPeer(err error) bool {
	var u UnknownPeerError
	return errors.As(err, &u)
}
