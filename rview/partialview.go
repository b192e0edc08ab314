package rview

import (
	"errors"
	"fmt"
	"iter"
	"math"
	"math/rand/v2"

	"github.com/gordian-engine/rps/internal/ragelist"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// NotFound is the index returned by [*PartialView.Index]
// when no entry matches.
const NotFound = -1

// PartialView is the age-ordered neighbor table of a single node.
//
// Lookups that miss return explicit empty results
// ([fn.None], [NotFound], or zero counts) instead of errors:
// a miss is an expected outcome on the exchange hot path.
type PartialView struct {
	usedCoef float64

	rng *rand.Rand

	peers *ragelist.List[Peer]
}

// Config is the configuration for a [PartialView].
type Config struct {
	// Fraction of the view offered in each exchange sample.
	// Must be within [0, 1].
	UsedCoef float64

	// Source of randomness for sampling.
	// It does not need to be cryptographically secure.
	RNG *rand.Rand
}

// validate panics if any settings in the configuration are illegal.
func (c Config) validate() {
	var panicErrs error

	if math.IsNaN(c.UsedCoef) || c.UsedCoef < 0 || c.UsedCoef > 1 {
		panicErrs = errors.Join(
			panicErrs,
			fmt.Errorf("Config.UsedCoef must be within [0, 1] (got %v)", c.UsedCoef),
		)
	}

	if c.RNG == nil {
		panicErrs = errors.Join(
			panicErrs,
			errors.New("BUG: Config.RNG must not be nil"),
		)
	}

	if panicErrs != nil {
		panic(panicErrs)
	}
}

// New returns an empty PartialView.
// New panics if cfg is invalid.
func New(cfg Config) *PartialView {
	cfg.validate()

	return &PartialView{
		usedCoef: cfg.UsedCoef,
		rng:      cfg.RNG,
		peers:    ragelist.New(func(p Peer) uint32 { return p.Age }),
	}
}

// UsedCoef returns the sampling fraction the view was created with.
func (v *PartialView) UsedCoef() float64 {
	return v.usedCoef
}

// Oldest returns the entry at the head of the age order,
// which is the entry with the minimum age.
// The overlay uses it to pick the target of the next exchange.
func (v *PartialView) Oldest() fn.Option[Peer] {
	if v.peers.Len() == 0 {
		return fn.None[Peer]()
	}
	return fn.Some(v.peers.At(0))
}

// Increment ages every entry by one.
//
// It must be called exactly once per completed exchange round,
// never while an exchange is still in flight.
func (v *PartialView) Increment() {
	v.peers.Bump(func(p *Peer) { p.Age++ })
}

// SampleSize is the number of entries [*PartialView.Sample] aims for
// with the view's current size.
func (v *PartialView) SampleSize() int {
	return int(math.Ceil(float64(v.peers.Len()) * v.usedCoef))
}

// Sample builds the sample offered in an exchange with neighbor.
//
// When isInitiator is true, one occurrence of neighbor is set aside,
// neighbor is placed first in the sample,
// and the remaining slots are drawn uniformly without replacement
// from the rest of the view.
// Otherwise every slot is drawn uniformly without replacement
// from the whole view.
//
// The sample size is ceil(Len * UsedCoef), clamped to the number of
// candidates available; an empty view or a zero size yields an empty sample.
func (v *PartialView) Sample(neighbor Peer, isInitiator bool) []Peer {
	size := v.SampleSize()
	if size == 0 {
		return []Peer{}
	}

	candidates := v.peers.Clone()
	sample := make([]Peer, 0, size)
	if isInitiator {
		_ = candidates.RemoveFunc(neighbor.Age, neighbor.sameEntry)
		sample = append(sample, neighbor)
	}

	pool := candidates.Items()
	n := min(size-len(sample), len(pool))

	// Partial Fisher-Yates: after step i,
	// pool[:i+1] holds i+1 distinct uniformly chosen entries.
	for i := range n {
		j := i + v.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
		sample = append(sample, pool[i])
	}

	return sample
}

// AddNeighbor inserts p with its age reset to zero.
func (v *PartialView) AddNeighbor(p Peer) {
	p.Age = 0
	v.peers.Insert(p)
}

// Index returns the index of the entry with the given ID,
// scanning from the tail toward the head,
// so that among duplicates the one nearest the tail wins.
// It returns [NotFound] if there is no such entry.
func (v *PartialView) Index(id string) int {
	items := v.peers.Items()
	for i := len(items) - 1; i >= 0; i-- {
		if items[i].ID == id {
			return i
		}
	}
	return NotFound
}

// RemovePeer removes and returns the entry chosen by [*PartialView.Index].
func (v *PartialView) RemovePeer(id string) fn.Option[Peer] {
	i := v.Index(id)
	if i == NotFound {
		return fn.None[Peer]()
	}
	return fn.Some(v.peers.RemoveAt(i))
}

// RemovePeerAge removes and returns the first entry, scanning from the head,
// whose ID and age both match.
// An entry with the same ID but a different age is left in place.
func (v *PartialView) RemovePeerAge(id string, age uint32) fn.Option[Peer] {
	for i, p := range v.peers.Items() {
		if p.ID == id && p.Age == age {
			return fn.Some(v.peers.RemoveAt(i))
		}
	}
	return fn.None[Peer]()
}

// RemoveAll removes every entry with the given ID
// and returns how many were removed.
func (v *PartialView) RemoveAll(id string) int {
	return v.peers.DeleteFunc(func(p Peer) bool { return p.ID == id })
}

// RemoveSample removes, for each entry in sample,
// the entry of the view with the same ID and age.
// Entries that no longer match anything are skipped.
func (v *PartialView) RemoveSample(sample []Peer) {
	for _, p := range sample {
		_ = v.RemovePeerAge(p.ID, p.Age)
	}
}

// Len returns the number of entries in the view.
func (v *PartialView) Len() int {
	return v.peers.Len()
}

// Contains reports whether any entry has the given ID.
func (v *PartialView) Contains(id string) bool {
	return v.Index(id) != NotFound
}

// Clear removes every entry.
func (v *PartialView) Clear() {
	v.peers.Clear()
}

// Peers returns a copy of the entries in ascending age order.
func (v *PartialView) Peers() []Peer {
	items := v.peers.Items()
	out := make([]Peer, len(items))
	copy(out, items)
	return out
}

// All iterates the entries in ascending age order without copying them.
// The view must not be modified during iteration.
func (v *PartialView) All() iter.Seq2[int, Peer] {
	return func(yield func(int, Peer) bool) {
		for i, p := range v.peers.Items() {
			if !yield(i, p) {
				return
			}
		}
	}
}
