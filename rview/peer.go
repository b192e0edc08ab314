package rview

import "reflect"

// Peer is a single entry in a [PartialView].
//
// The same ID may appear in several entries of one view;
// each entry is an independent edge to that logical peer.
type Peer struct {
	// Opaque identifier of the remote node.
	ID string

	// Number of exchange rounds this entry has survived
	// since it was introduced or refreshed.
	Age uint32

	// Connection handle owned by the transport.
	// The view never inspects it beyond an equality check
	// when it sets aside one occurrence of an exchange target.
	Conn any
}

// sameEntry reports whether o is the entry p refers to:
// same ID and age, and the same handle when both handles are comparable.
// Handles that cannot be compared (slices, maps, funcs) are ignored.
func (p Peer) sameEntry(o Peer) bool {
	if p.ID != o.ID || p.Age != o.Age {
		return false
	}
	if !connComparable(p.Conn) || !connComparable(o.Conn) {
		return true
	}
	return p.Conn == o.Conn
}

func connComparable(c any) bool {
	return c == nil || reflect.ValueOf(c).Comparable()
}

// Replace returns a new slice the same length and order as sample,
// where every entry whose ID equals old.ID is substituted by fresh.
//
// The overlay uses Replace to swap self-references
// or stale identities in a sample received during an exchange.
func Replace(sample []Peer, old, fresh Peer) []Peer {
	out := make([]Peer, len(sample))
	for i, p := range sample {
		if p.ID == old.ID {
			out[i] = fresh
		} else {
			out[i] = p
		}
	}
	return out
}
