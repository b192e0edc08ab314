package rtest

import (
	"testing"
	"time"
)

// ScaleMs is the base duration for the "soon" helpers.
// Tests on slow machines may need a larger value.
const ScaleMs = 100 * time.Millisecond

// ReceiveSoon returns the next value from ch,
// failing the test if none arrives within [ScaleMs].
func ReceiveSoon[T any](t testing.TB, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(ScaleMs):
		t.Fatalf("no value received within %s", ScaleMs)
	}

	panic("unreachable")
}

// ReceiveOrTimeout is like [ReceiveSoon] with a caller-chosen timeout.
func ReceiveOrTimeout[T any](t testing.TB, ch <-chan T, d time.Duration) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(d):
		t.Fatalf("no value received within %s", d)
	}

	panic("unreachable")
}

// SendSoon sends v on ch,
// failing the test if the send does not complete within [ScaleMs].
func SendSoon[T any](t testing.TB, ch chan<- T, v T) {
	t.Helper()

	select {
	case ch <- v:
	case <-time.After(ScaleMs):
		t.Fatalf("send not accepted within %s", ScaleMs)
	}
}

// NotSending fails the test if ch is immediately readable.
func NotSending[T any](t testing.TB, ch <-chan T) {
	t.Helper()

	select {
	case <-ch:
		t.Fatal("channel unexpectedly readable")
	default:
	}
}

// IsSending fails the test if ch is not immediately readable.
func IsSending[T any](t testing.TB, ch <-chan T) {
	t.Helper()

	select {
	case <-ch:
	default:
		t.Fatal("channel unexpectedly blocked")
	}
}
