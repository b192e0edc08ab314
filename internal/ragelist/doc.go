// Package ragelist contains [List], a slice-backed container
// that keeps its entries in ascending age order.
//
// The list is the storage layer under [rview.PartialView].
// Keeping the slice sorted on insert makes the head of the list
// (the entry with the minimum age) an O(1) lookup.
package ragelist
