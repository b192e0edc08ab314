package rcyclon

import (
	"context"
	"fmt"

	"github.com/gordian-engine/rps/rproto"
	"github.com/gordian-engine/rps/rview"
)

// Exchange runs one shuffle with the oldest neighbor.
//
// It returns [ErrNoNeighbours] if the view is empty,
// [ErrExchangeInFlight] if another exchange has not completed,
// and [ErrExchangeTimeout] if the target did not reply in time.
// A failed exchange removes every entry for the target from the view.
//
// If ctx is cancelled after the request was sent,
// the exchange stays in flight until the reply or the timeout.
func (o *Overlay) Exchange(ctx context.Context) error {
	req := exchangeStartRequest{
		Resp: make(chan exchangeStartResponse, 1),
	}
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-o.k.done:
		return errStopped
	case o.k.exchangeStarts <- req:
	}

	var resp exchangeStartResponse
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case resp = <-req.Resp:
	}
	if resp.Err != nil {
		return resp.Err
	}

	sendCtx, cancel := context.WithTimeout(ctx, o.exchangeTimeout)
	err := o.send(sendCtx, resp.Target, resp.Msg)
	cancel()
	if err != nil {
		select {
		case <-o.k.done:
		case o.k.exchangeFailures <- exchangeFailure{Nonce: resp.Msg.Nonce, Err: err}:
		}
		return fmt.Errorf("failed to start exchange: %w", err)
	}

	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case err := <-resp.Done:
		return err
	}
}

func (k *kernel) handleExchangeStart(req exchangeStartRequest) {
	if k.pending != nil {
		req.Resp <- exchangeStartResponse{Err: ErrExchangeInFlight}
		return
	}

	oldest := k.view.Oldest()
	if oldest.IsNone() {
		req.Resp <- exchangeStartResponse{Err: ErrNoNeighbours}
		return
	}
	target := oldest.UnsafeFromSome()

	sample := k.view.Sample(target, true)
	if len(sample) > rproto.MaxEntries {
		sample = sample[:rproto.MaxEntries]
	}
	offered := rview.Replace(sample, target, rview.Peer{ID: k.self})

	p := &pendingExchange{
		Target: target,
		Nonce:  k.rng.Uint64(),
		Sample: sample,

		Timeout: k.clock.TickAfter(k.exchangeTimeout),

		Done: make(chan error, 1),
	}
	k.pending = p
	k.metrics.ExchangesStarted.Inc()

	req.Resp <- exchangeStartResponse{
		Target: target,
		Msg: &rproto.ExchangeRequest{
			Nonce:   p.Nonce,
			Entries: toEntries(offered),
		},
		Done: p.Done,
	}
}

// failExchange drops the target of the pending exchange from the view.
// The view is not aged for a failed round.
func (k *kernel) failExchange(err error) {
	p := k.pending
	k.pending = nil

	n := k.view.RemoveAll(p.Target.ID)
	k.log.Info(
		"Exchange failed; dropped target",
		"peer_id", p.Target.ID,
		"removed", n,
		"err", err,
	)
	k.metrics.ExchangesFailed.Inc()

	p.Done <- err
}

func (k *kernel) handleExchangeReply(from string, m *rproto.ExchangeReply) {
	p := k.pending
	if p == nil || p.Nonce != m.Nonce || p.Target.ID != from {
		k.log.Debug(
			"Dropping unexpected exchange reply",
			"from", from,
			"nonce", m.Nonce,
		)
		k.metrics.InboundDropped.Inc()
		return
	}
	k.pending = nil

	k.view.RemoveSample(p.Sample)
	for _, e := range rview.Replace(fromEntries(m.Entries), rview.Peer{ID: k.self}, p.Target) {
		k.view.AddNeighbor(e)
	}
	k.view.Increment()

	k.metrics.ExchangesCompleted.Inc()
	p.Done <- nil
}

// handleExchangeRequest answers an exchange started by from.
//
// It may run while this node's own exchange is pending.
// The reply sample is then removed from the view before the pending reply
// arrives, so handleExchangeReply can find fewer entries of p.Sample
// left to remove; RemoveSample skips the missing ones.
func (k *kernel) handleExchangeRequest(ctx context.Context, from string, m *rproto.ExchangeRequest) {
	if from == k.self {
		k.metrics.InboundDropped.Inc()
		return
	}

	initiator := k.peerFor(from)

	reply := k.view.Sample(initiator, false)
	if len(reply) > rproto.MaxEntries {
		reply = reply[:rproto.MaxEntries]
	}
	k.view.RemoveSample(reply)
	for _, e := range rview.Replace(fromEntries(m.Entries), rview.Peer{ID: k.self}, initiator) {
		k.view.AddNeighbor(e)
	}
	k.metrics.ExchangeRequestsServed.Inc()

	msg := &rproto.ExchangeReply{
		Nonce:   m.Nonce,
		Entries: toEntries(reply),
	}
	k.goSend(func() {
		sendCtx, cancel := context.WithTimeout(ctx, k.exchangeTimeout)
		defer cancel()

		if err := k.o.send(sendCtx, initiator, msg); err != nil {
			k.log.Info(
				"Failed to send exchange reply",
				"peer_id", initiator.ID,
				"err", err,
			)
		}
	})
}

func toEntries(peers []rview.Peer) []rproto.Entry {
	out := make([]rproto.Entry, len(peers))
	for i, p := range peers {
		out[i] = rproto.Entry{ID: p.ID, Age: p.Age}
	}
	return out
}

func fromEntries(entries []rproto.Entry) []rview.Peer {
	out := make([]rview.Peer, len(entries))
	for i, e := range entries {
		out[i] = rview.Peer{ID: e.ID, Age: e.Age}
	}
	return out
}
