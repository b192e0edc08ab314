// Package rview contains [PartialView], the membership table
// of a gossip-based peer sampling service.
//
// A partial view is a small set of neighbor entries, each carrying an age
// that counts the exchange rounds it has survived.
// The view keeps its entries sorted by ascending age,
// and exposes the aging, sampling, replacement, and removal operations
// that an overlay's exchange protocol drives.
//
// PartialView has no internal synchronization.
// The overlay driving it must ensure that at most one exchange
// touches a given view at a time;
// see the rcyclon package for a kernel goroutine that does this.
package rview
