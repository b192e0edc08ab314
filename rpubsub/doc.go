// Package rpubsub contains [Stream],
// a single-writer, many-reader sequence of values.
//
// Overlays publish delivered messages to a Stream,
// and every registered handler follows it at its own pace
// on its own goroutine.
package rpubsub
