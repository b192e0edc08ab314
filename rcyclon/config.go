package rcyclon

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/gordian-engine/rps/rtransport"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/ticker"
)

// Config is the configuration for an [Overlay].
type Config struct {
	// Transport is the network the overlay is layered on.
	Transport rtransport.Transport

	// Fraction of the view offered in each exchange.
	// Must be within [0, 1].
	UsedCoef float64

	// Randomness for sampling and exchange nonces.
	// If nil, a PCG source seeded from the runtime is used.
	RNG *rand.Rand

	// If set, the overlay starts an exchange on every tick.
	// The overlay resumes the ticker and stops it on shutdown.
	// If nil, exchanges only happen through [*Overlay.Exchange].
	ExchangeTicker ticker.Ticker

	// How long an initiator waits for an exchange reply
	// before dropping the target from its view.
	// Zero selects [DefaultExchangeTimeout].
	ExchangeTimeout time.Duration

	// Time source for exchange timeouts.
	// If nil, the wall clock is used.
	Clock clock.Clock

	// Optional metrics.
	// If nil, unregistered collectors are used.
	Metrics *Metrics

	// Number of consecutive sequence numbers per origin
	// tracked for broadcast duplicate suppression.
	// Zero selects [DefaultBroadcastWindow].
	BroadcastWindow uint
}

const (
	DefaultExchangeTimeout = 5 * time.Second
	DefaultBroadcastWindow = 1024
)

// validate panics if there are any illegal settings in the configuration.
func (c Config) validate() {
	// If there are multiple reasons we could panic,
	// collect them all in one go
	// so we can give a maximally helpful error.
	var panicErrs error

	if c.Transport == nil {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("Config.Transport must not be nil"),
		)
	}

	if math.IsNaN(c.UsedCoef) || c.UsedCoef < 0 || c.UsedCoef > 1 {
		panicErrs = errors.Join(
			panicErrs,
			fmt.Errorf("Config.UsedCoef must be within [0, 1] (got %v)", c.UsedCoef),
		)
	}

	if c.ExchangeTimeout < 0 {
		panicErrs = errors.Join(
			panicErrs,
			fmt.Errorf("Config.ExchangeTimeout must not be negative (got %s)", c.ExchangeTimeout),
		)
	}

	if panicErrs != nil {
		panic(panicErrs)
	}
}

// withDefaults returns a copy of c with unset optional fields filled in.
func (c Config) withDefaults() Config {
	if c.RNG == nil {
		c.RNG = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if c.ExchangeTimeout == 0 {
		c.ExchangeTimeout = DefaultExchangeTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.NewDefaultClock()
	}
	if c.Metrics == nil {
		c.Metrics = NewMetrics(nil)
	}
	if c.BroadcastWindow == 0 {
		c.BroadcastWindow = DefaultBroadcastWindow
	}
	return c
}
