package rcyclon

import (
	"context"
	"fmt"

	"github.com/gordian-engine/rps/roverlay"
	"github.com/gordian-engine/rps/rproto"
)

// SendBroadcast floods payload to every node reachable through the overlay.
// The payload is not delivered to this node's own handlers.
//
// SendBroadcast returns [ErrNoNeighbours] if the view is empty,
// and an error if the message could not be sent to any neighbor.
// Failures on a subset of neighbors are only logged,
// as the flood reaches those nodes through other paths.
func (o *Overlay) SendBroadcast(ctx context.Context, payload []byte) error {
	if len(payload) > rproto.MaxPayloadSize {
		return fmt.Errorf(
			"broadcast payload too large: %d bytes (max %d)",
			len(payload), rproto.MaxPayloadSize,
		)
	}

	req := broadcastRequest{
		Payload: payload,
		Resp:    make(chan broadcastResponse, 1),
	}
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case <-o.k.done:
		return errStopped
	case o.k.broadcastStarts <- req:
	}

	var resp broadcastResponse
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	case resp = <-req.Resp:
	}

	if len(resp.Targets) == 0 {
		return ErrNoNeighbours
	}

	failed, err := o.sendAll(ctx, resp.Targets, resp.Msg)
	if failed == len(resp.Targets) {
		return fmt.Errorf("failed to send broadcast to any neighbor: %w", err)
	}
	if failed > 0 {
		o.log.Debug(
			"Broadcast partially sent",
			"failed", failed,
			"targets", len(resp.Targets),
			"err", err,
		)
	}

	o.metrics.BroadcastsSent.Inc()
	return nil
}

func (k *kernel) handleBroadcastStart(req broadcastRequest) {
	seq := k.nextSeq
	k.nextSeq++

	req.Resp <- broadcastResponse{
		Msg: &rproto.BroadcastMessage{
			Origin:  k.self,
			Seq:     seq,
			Payload: req.Payload,
		},
		Targets: k.uniquePeers(),
	}
}

// handleBroadcast delivers a broadcast seen for the first time
// and relays it to every neighbor except the sender and the origin.
func (k *kernel) handleBroadcast(ctx context.Context, from string, m *rproto.BroadcastMessage) {
	if m.Origin == k.self || !k.markSeen(m.Origin, m.Seq) {
		k.metrics.BroadcastDuplicates.Inc()
		return
	}

	k.broadcasts.Publish(roverlay.Broadcast{
		Origin:  m.Origin,
		From:    from,
		Payload: m.Payload,
	})
	k.metrics.BroadcastsDelivered.Inc()

	targets := k.uniquePeers(from, m.Origin)
	if len(targets) == 0 {
		return
	}

	k.goSend(func() {
		if failed, err := k.o.sendAll(ctx, targets, m); failed > 0 {
			k.log.Debug(
				"Failed to relay broadcast",
				"origin", m.Origin,
				"seq", m.Seq,
				"failed", failed,
				"targets", len(targets),
				"err", err,
			)
		}
	})
}

func (k *kernel) markSeen(origin string, seq uint64) bool {
	w, ok := k.seen[origin]
	if !ok {
		w = newSeenWindow(k.broadcastWindow)
		k.seen[origin] = w
	}
	return w.Mark(seq)
}

func (k *kernel) handleUnicastLookup(req unicastLookup) {
	for _, p := range k.uniquePeers() {
		if p.ID == req.ID {
			req.Resp <- unicastLookupResponse{Peer: p, Found: true}
			return
		}
	}
	req.Resp <- unicastLookupResponse{}
}
