package rps_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"net"
	"slices"
	"testing"
	"time"

	"github.com/gordian-engine/rps"
	"github.com/gordian-engine/rps/internal/rtest"
	"github.com/gordian-engine/rps/rquic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type nodeFixture struct {
	Nodes []*rps.Node
	Regs  []*prometheus.Registry
}

func newNodeFixture(t *testing.T, ctx context.Context, n int) *nodeFixture {
	t.Helper()

	pool := x509.NewCertPool()
	certs := make([]tls.Certificate, n)
	ucs := make([]*net.UDPConn, n)
	for i := range n {
		cert, err := rquic.SelfSignedCertificate([]string{"127.0.0.1"}, time.Hour)
		require.NoError(t, err)
		certs[i] = cert
		pool.AddCert(cert.Leaf)

		uc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
		require.NoError(t, err)
		t.Cleanup(func() {
			if err := uc.Close(); err != nil {
				t.Logf("Error closing UDP listener: %v", err)
			}
		})
		ucs[i] = uc
	}

	f := &nodeFixture{
		Nodes: make([]*rps.Node, n),
		Regs:  make([]*prometheus.Registry, n),
	}
	log := rtest.NewLogger(t)
	for i := range n {
		f.Regs[i] = prometheus.NewRegistry()

		node, err := rps.NewNode(ctx, log.With("node", i), rps.NodeConfig{
			UDPConn: ucs[i],
			TLS: &tls.Config{
				Certificates: []tls.Certificate{certs[i]},
				RootCAs:      pool,
				ClientCAs:    pool,
				ClientAuth:   tls.RequireAndVerifyClientCert,
			},
			AdvertiseAddr: ucs[i].LocalAddr().String(),
			UsedCoef:      0.5,
			Registerer:    f.Regs[i],
		})
		require.NoError(t, err)

		// This cleanup call necessitates that the context is cancelled before the end of the test.
		t.Cleanup(node.Wait)

		f.Nodes[i] = node
	}

	return f
}

func TestNewNode(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newNodeFixture(t, ctx, 1)
	require.Empty(t, f.Nodes[0].Neighbours())

	// Metrics are registered on the configured registry.
	n, err := testutil.GatherAndCount(f.Regs[0], "rps_cyclon_view_size")
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestNewNode_validation(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		_, _ = rps.NewNode(context.Background(), rtest.NewLogger(t), rps.NodeConfig{})
	})
}

func TestNode_connectAndExchange(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newNodeFixture(t, ctx, 2)
	a, b := f.Nodes[0], f.Nodes[1]

	require.NoError(t, a.Connect(ctx, b.LocalID(), 5*time.Second))
	require.Eventually(t, func() bool {
		return slices.Contains(b.Neighbours(), a.LocalID())
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, a.Exchange(ctx))

	// Two nodes that only know each other keep exactly that after a shuffle.
	require.Equal(t, []string{b.LocalID()}, a.Neighbours())
	require.Equal(t, []string{a.LocalID()}, b.Neighbours())
}
