// Package rps contains the core APIs for instantiating a random peer sampling node.
//
// A node keeps a small partial view of the network
// and refreshes it by periodically shuffling part of that view
// with its oldest neighbor, in the style of [Cyclon].
// The view is usable as a membership layer on its own,
// and the overlay also floods broadcasts and delivers unicasts
// over the links in the view.
//
// [NewNode] wires the pieces together over QUIC.
// Tests and simulations can instead combine [rcyclon.New]
// with the in-memory transport in package rmem.
//
// [Cyclon]: https://doi.org/10.1007/s10922-005-4441-x
package rps
