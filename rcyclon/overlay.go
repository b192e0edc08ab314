package rcyclon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gordian-engine/rps/roverlay"
	"github.com/gordian-engine/rps/rproto"
	"github.com/gordian-engine/rps/rpubsub"
	"github.com/gordian-engine/rps/rtransport"
	"github.com/gordian-engine/rps/rview"
	"github.com/lightningnetwork/lnd/ticker"
)

var (
	// ErrExchangeInFlight is returned by [*Overlay.Exchange]
	// while another exchange has not yet completed.
	ErrExchangeInFlight = errors.New("exchange already in flight")

	// ErrNoNeighbours is returned when an operation
	// needs at least one neighbor and the view is empty.
	ErrNoNeighbours = errors.New("no neighbours")

	// ErrExchangeTimeout is the outcome of an exchange
	// whose target did not reply in time.
	ErrExchangeTimeout = errors.New("exchange timed out")

	errStopped = errors.New("overlay stopped")
)

var _ roverlay.Overlay = (*Overlay)(nil)

// Overlay is a peer-sampling overlay on a [rtransport.Transport].
type Overlay struct {
	roverlay.Layer

	log *slog.Logger

	// Lifecycle context, for handler goroutines.
	ctx context.Context

	wg sync.WaitGroup

	tr rtransport.Transport
	k  *kernel

	exchangeTimeout time.Duration
	metrics         *Metrics
}

// New returns an Overlay layered on cfg.Transport.
// The ctx parameter controls the lifecycle of the Overlay;
// cancel it to stop, and then use [*Overlay.Wait]
// to block until all background work has completed.
//
// New panics if cfg is invalid.
func New(ctx context.Context, log *slog.Logger, cfg Config) *Overlay {
	cfg.validate()
	cfg = cfg.withDefaults()

	o := &Overlay{
		Layer: roverlay.NewLayer(cfg.Transport),

		log: log,
		ctx: ctx,

		tr: cfg.Transport,

		exchangeTimeout: cfg.ExchangeTimeout,
		metrics:         cfg.Metrics,
	}

	o.k = newKernel(log.With("sys", "kernel"), o, cfg)

	o.wg.Add(1)
	go o.k.mainLoop(ctx)

	if cfg.ExchangeTicker != nil {
		o.wg.Add(1)
		go o.exchangeOnTicks(ctx, cfg.ExchangeTicker)
	}

	return o
}

// Wait blocks until the overlay has finished all background work,
// including registered handlers returning.
func (o *Overlay) Wait() {
	o.wg.Wait()
}

func (o *Overlay) exchangeOnTicks(ctx context.Context, t ticker.Ticker) {
	defer o.wg.Done()

	t.Resume()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Ticks():
			err := o.Exchange(ctx)
			switch {
			case err == nil:
				// Okay.
			case ctx.Err() != nil:
				return
			case errors.Is(err, ErrNoNeighbours), errors.Is(err, ErrExchangeInFlight):
				o.log.Debug("Skipped periodic exchange", "err", err)
			default:
				o.log.Info("Periodic exchange failed", "err", err)
			}
		}
	}
}

// Connect dials contact, asks it to add this node as a neighbor,
// and adds contact to this node's view.
func (o *Overlay) Connect(ctx context.Context, contact string, timeout time.Duration) error {
	if contact == o.LocalID() {
		return fmt.Errorf("cannot connect to self (%s)", contact)
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	conn, err := o.tr.Dial(ctx, contact)
	if err != nil {
		return fmt.Errorf("failed to dial contact %s: %w", contact, err)
	}

	if err := conn.Send(ctx, &rproto.JoinMessage{}); err != nil {
		return fmt.Errorf("failed to send join to %s: %w", contact, err)
	}

	req := addNeighborRequest{
		Peer: rview.Peer{ID: contact, Conn: conn},
		Resp: make(chan struct{}, 1),
	}
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-o.k.done:
		return errStopped
	case o.k.addNeighbors <- req:
	}

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-req.Resp:
		return nil
	}
}

// Neighbours returns the distinct IDs in the view, in view order.
// It returns nil once the overlay has stopped.
func (o *Overlay) Neighbours() []string {
	ch := make(chan []string, 1)
	select {
	case <-o.k.done:
		return nil
	case o.k.neighbourRequests <- ch:
	}
	return <-ch
}

// Peers returns a snapshot of every entry in the view, in age order.
// It returns nil once the overlay has stopped.
func (o *Overlay) Peers() []rview.Peer {
	ch := make(chan []rview.Peer, 1)
	select {
	case <-o.k.done:
		return nil
	case o.k.peerRequests <- ch:
	}
	return <-ch
}

// OnBroadcast registers h to be called, on its own goroutine,
// for every broadcast delivered after OnBroadcast returns.
// The payload is shared with other handlers and relays;
// handlers must not modify it.
func (o *Overlay) OnBroadcast(h roverlay.BroadcastHandler) {
	s := o.k.broadcasts.Load()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		rpubsub.Follow(o.ctx, s, h)
	}()
}

// OnUnicast registers h to be called, on its own goroutine,
// for every unicast delivered after OnUnicast returns.
func (o *Overlay) OnUnicast(h roverlay.UnicastHandler) {
	s := o.k.unicasts.Load()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		rpubsub.Follow(o.ctx, s, h)
	}()
}

// SendUnicast sends payload directly to the neighbor id.
// It returns false if id is not in the view
// or if the message could not be sent.
func (o *Overlay) SendUnicast(ctx context.Context, payload []byte, id string) bool {
	if len(payload) > rproto.MaxPayloadSize {
		o.log.Info(
			"Refusing oversized unicast",
			"peer_id", id,
			"size", len(payload),
		)
		return false
	}

	req := unicastLookup{
		ID:   id,
		Resp: make(chan unicastLookupResponse, 1),
	}
	select {
	case <-ctx.Done():
		return false
	case <-o.k.done:
		return false
	case o.k.unicastLookups <- req:
	}

	var resp unicastLookupResponse
	select {
	case <-ctx.Done():
		return false
	case resp = <-req.Resp:
	}
	if !resp.Found {
		return false
	}

	if err := o.send(ctx, resp.Peer, &rproto.UnicastMessage{Payload: payload}); err != nil {
		o.log.Debug("Failed to send unicast", "peer_id", id, "err", err)
		return false
	}

	o.metrics.UnicastsSent.Inc()
	return true
}

// send delivers m to p, reusing p's connection handle if it has one.
func (o *Overlay) send(ctx context.Context, p rview.Peer, m rproto.Message) error {
	conn, ok := p.Conn.(rtransport.Conn)
	if !ok || conn == nil {
		var err error
		conn, err = o.tr.Dial(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to dial %s: %w", p.ID, err)
		}
	}

	if err := conn.Send(ctx, m); err != nil {
		return fmt.Errorf("failed to send %s to %s: %w", m.Type(), p.ID, err)
	}
	return nil
}

// sendAll sends m to every target concurrently,
// bounding each send by the exchange timeout.
// It returns the number of failed sends and the joined errors.
func (o *Overlay) sendAll(ctx context.Context, targets []rview.Peer, m rproto.Message) (int, error) {
	errs := make([]error, len(targets))

	var wg sync.WaitGroup
	for i, p := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, o.exchangeTimeout)
			defer cancel()
			errs[i] = o.send(sendCtx, p, m)
		}()
	}
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	return failed, errors.Join(errs...)
}
