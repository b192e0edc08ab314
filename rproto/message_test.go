package rproto_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/gordian-engine/rps/rproto"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, m rproto.Message) rproto.Message {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, m.Encode(&buf))

	got, err := rproto.Decode(&buf)
	require.NoError(t, err)
	require.Zero(t, buf.Len(), "decode left trailing bytes")
	return got
}

func TestExchangeRequest_roundTrip(t *testing.T) {
	t.Parallel()

	msg := rproto.ExchangeRequest{
		Nonce: 0x0102030405060708,
		Entries: []rproto.Entry{
			{ID: "10.0.0.1:4000", Age: 0},
			{ID: "10.0.0.2:4000", Age: 17},
			{ID: "10.0.0.1:4000", Age: 3},
		},
	}

	got := roundTrip(t, msg)
	require.Equal(t, &msg, got)
}

func TestExchangeReply_roundTrip_empty(t *testing.T) {
	t.Parallel()

	msg := rproto.ExchangeReply{Nonce: 9, Entries: []rproto.Entry{}}

	got := roundTrip(t, msg)
	require.Equal(t, &msg, got)
}

func TestBroadcastAndUnicast_roundTrip(t *testing.T) {
	t.Parallel()

	b := rproto.BroadcastMessage{
		Origin:  "origin",
		Seq:     42,
		Payload: []byte("hello"),
	}
	require.Equal(t, &b, roundTrip(t, b))

	u := rproto.UnicastMessage{Payload: []byte{0, 1, 2}}
	require.Equal(t, &u, roundTrip(t, u))

	require.Equal(t, &rproto.JoinMessage{}, roundTrip(t, rproto.JoinMessage{}))
}

func TestDecode_plainReader(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, rproto.UnicastMessage{Payload: []byte("x")}.Encode(&buf))

	// strings.Reader is a ByteReader too,
	// so hide it behind a type that is only an io.Reader.
	got, err := rproto.Decode(onlyReader{strings.NewReader(buf.String())})
	require.NoError(t, err)
	require.Equal(t, &rproto.UnicastMessage{Payload: []byte("x")}, got)
}

type onlyReader struct {
	r interface{ Read([]byte) (int, error) }
}

func (o onlyReader) Read(p []byte) (int, error) { return o.r.Read(p) }

func TestDecode_errors(t *testing.T) {
	t.Parallel()

	t.Run("unknown type", func(t *testing.T) {
		t.Parallel()

		_, err := rproto.Decode(bytes.NewReader([]byte{0xee}))
		require.ErrorContains(t, err, "unknown message type")
	})

	t.Run("empty input", func(t *testing.T) {
		t.Parallel()

		_, err := rproto.Decode(bytes.NewReader(nil))
		require.Error(t, err)
	})

	t.Run("truncated exchange", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		require.NoError(t, rproto.ExchangeRequest{
			Nonce:   1,
			Entries: []rproto.Entry{{ID: "a", Age: 1}},
		}.Encode(&buf))

		b := buf.Bytes()
		_, err := rproto.Decode(bytes.NewReader(b[:len(b)-2]))
		require.Error(t, err)
	})

	t.Run("oversized payload", func(t *testing.T) {
		t.Parallel()

		// Unicast header claiming a payload one byte over the limit.
		b := []byte{byte(rproto.UnicastMessageType), 0, 0x10, 0, 1}
		_, err := rproto.Decode(bytes.NewReader(b))
		require.ErrorContains(t, err, "exceeds limit")
	})
}

func TestEncode_panicsOnTooManyEntries(t *testing.T) {
	t.Parallel()

	entries := make([]rproto.Entry, rproto.MaxEntries+1)
	for i := range entries {
		entries[i] = rproto.Entry{ID: "x"}
	}

	require.Panics(t, func() {
		_ = rproto.ExchangeRequest{Entries: entries}.Encode(new(bytes.Buffer))
	})
}
