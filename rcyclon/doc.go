// Package rcyclon contains a concrete [roverlay.Overlay]
// that maintains a [rview.PartialView] through periodic
// Cyclon-style shuffles with the oldest neighbor.
//
// An [Overlay] runs a single kernel goroutine that owns the view.
// Every public method is a request to that goroutine,
// so the view is never touched concurrently,
// and at most one exchange is in flight at a time.
//
// Network sends never happen on the kernel goroutine;
// they run on the caller's goroutine or on short-lived workers,
// so that a slow or full remote cannot stall the view.
//
// On top of the view, the overlay floods broadcasts to every
// distinct neighbor, suppressing duplicates with a per-origin
// sliding window of sequence numbers,
// and delivers unicasts to direct neighbors.
package rcyclon
