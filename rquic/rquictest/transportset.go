// Package rquictest contains helpers for testing against [rquic].
package rquictest

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"testing"
	"time"

	"github.com/gordian-engine/rps/internal/rtest"
	"github.com/gordian-engine/rps/rquic"
	"github.com/stretchr/testify/require"
)

// TransportSet is a collection of QUIC transports on loopback
// whose nodes mutually trust each others' certificates.
type TransportSet struct {
	Pool *x509.CertPool

	Certs []tls.Certificate

	UDPConns []*net.UDPConn

	Transports []*rquic.Transport
}

// NewTransportSet starts count transports on 127.0.0.1.
// The transports stop when ctx is cancelled;
// cleanup waits for them and closes the UDP connections.
func NewTransportSet(t *testing.T, ctx context.Context, count int) *TransportSet {
	t.Helper()

	ts := &TransportSet{
		Pool: x509.NewCertPool(),

		Certs: make([]tls.Certificate, count),

		UDPConns: make([]*net.UDPConn, count),

		Transports: make([]*rquic.Transport, count),
	}

	t.Cleanup(func() {
		for _, uc := range ts.UDPConns {
			if uc != nil {
				uc.Close()
			}
		}
	})

	for i := range count {
		cert, err := rquic.SelfSignedCertificate([]string{"127.0.0.1"}, time.Hour)
		require.NoError(t, err)
		ts.Certs[i] = cert
		ts.Pool.AddCert(cert.Leaf)

		uc, err := net.ListenUDP("udp", &net.UDPAddr{
			IP: net.IPv4(127, 0, 0, 1),
		})
		require.NoError(t, err)
		ts.UDPConns[i] = uc
	}

	for i := range count {
		tr, err := rquic.New(ctx, rtest.NewLogger(t).With("idx", i), rquic.Config{
			UDPConn: ts.UDPConns[i],
			TLS: &tls.Config{
				Certificates: []tls.Certificate{ts.Certs[i]},

				RootCAs:    ts.Pool,
				ClientCAs:  ts.Pool,
				ClientAuth: tls.RequireAndVerifyClientCert,

				NextProtos: []string{rquic.ALPN},
			},
			AdvertiseAddr: ts.UDPConns[i].LocalAddr().String(),
		})
		require.NoError(t, err)
		ts.Transports[i] = tr

		t.Cleanup(tr.Wait)
	}

	return ts
}
