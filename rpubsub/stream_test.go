package rpubsub_test

import (
	"context"
	"testing"

	"github.com/gordian-engine/rps/internal/rtest"
	"github.com/gordian-engine/rps/rpubsub"
	"github.com/stretchr/testify/require"
)

func TestStream_Publish_panicsOnCalledTwice(t *testing.T) {
	t.Parallel()

	s := rpubsub.NewStream[int]()
	s.Publish(1)

	require.Panics(t, func() {
		s.Publish(1)
	})
}

func TestHead_lateSubscriberSkipsHistory(t *testing.T) {
	t.Parallel()

	h := rpubsub.NewHead[int]()
	early := h.Load()

	h.Publish(1)
	late := h.Load()
	h.Publish(2)

	rtest.IsSending(t, early.Ready)
	require.Equal(t, 1, early.Val)

	rtest.IsSending(t, late.Ready)
	require.Equal(t, 2, late.Val)

	rtest.NotSending(t, h.Load().Ready)
}

func TestFollow(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := rpubsub.NewHead[int]()
	got := make(chan int, 4)
	done := make(chan struct{})
	s := h.Load()
	go func() {
		defer close(done)
		rpubsub.Follow(ctx, s, func(v int) { got <- v })
	}()

	h.Publish(1)
	h.Publish(2)

	require.Equal(t, 1, rtest.ReceiveSoon(t, got))
	require.Equal(t, 2, rtest.ReceiveSoon(t, got))

	cancel()
	rtest.ReceiveSoon(t, done)
}
