package rquic

import (
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"slices"
	"time"

	"github.com/quic-go/quic-go"
)

// ALPN is the application protocol negotiated by rps nodes.
const ALPN = "rps/1"

// Config is the configuration for a [Transport].
type Config struct {
	UDPConn *net.UDPConn

	// If nil, DefaultQUICConfig is used.
	QUIC *quic.Config

	// The TLS configuration used both for listening and dialing.
	// It must contain a certificate and must list [ALPN] in NextProtos.
	TLS *tls.Config

	// The address other nodes use to reach this one.
	// It is this node's ID.
	AdvertiseAddr string

	// Capacity of the inbound channel; zero selects a default.
	InboundSize int

	// Deadline for reading one frame from an accepted stream.
	// Zero selects a default.
	ReadTimeout time.Duration
}

// validate panics if there are any illegal settings in the configuration.
func (c Config) validate(log *slog.Logger) {
	// If there are multiple reasons we could panic,
	// collect them all in one go
	// so we can give a maximally helpful error.
	var panicErrs error

	if c.UDPConn == nil {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("Config.UDPConn must not be nil"),
		)
	}

	if c.TLS == nil {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("Config.TLS must not be nil"),
		)
	} else {
		if len(c.TLS.Certificates) == 0 && c.TLS.GetCertificate == nil {
			panicErrs = errors.Join(
				panicErrs,
				errors.New("Config.TLS must provide a certificate"),
			)
		}
		if !slices.Contains(c.TLS.NextProtos, ALPN) {
			panicErrs = errors.Join(
				panicErrs,
				errors.New("Config.TLS.NextProtos must include rquic.ALPN"),
			)
		}
		if c.TLS.InsecureSkipVerify {
			log.Warn("TLS verification of remote nodes is disabled")
		}
	}

	if c.AdvertiseAddr == "" {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("Config.AdvertiseAddr must not be empty"),
		)
	} else if _, _, err := net.SplitHostPort(c.AdvertiseAddr); err != nil {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("Config.AdvertiseAddr must be in host:port form"),
		)
	}

	if panicErrs != nil {
		panic(panicErrs)
	}
}

// DefaultQUICConfig is the default QUIC configuration for a [Config].
func DefaultQUICConfig() *quic.Config {
	return &quic.Config{
		// Defaults to 5 otherwise, which is far higher latency than we need
		// for a round that should finish well within its exchange timeout.
		HandshakeIdleTimeout: 2 * time.Second,

		// Exchanges are periodic, so keep idle links open between rounds.
		MaxIdleTimeout:  time.Minute,
		KeepAlivePeriod: 15 * time.Second,

		// Every message is its own unidirectional stream.
		MaxIncomingStreams:    -1, // No bidirectional streams.
		MaxIncomingUniStreams: 128,
	}
}
