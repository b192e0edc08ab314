package rview_test

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/gordian-engine/rps/rview"
	"github.com/stretchr/testify/require"
)

func viewFixture(t *testing.T, usedCoef float64) *rview.PartialView {
	t.Helper()

	return rview.New(rview.Config{
		UsedCoef: usedCoef,

		// Seed from the coefficient so behavior within a test is predictable.
		RNG: rand.New(rand.NewPCG(math.Float64bits(usedCoef), 7)),
	})
}

func ids(ps []rview.Peer) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestPartialView_scenario(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 0.5)
	v.AddNeighbor(rview.Peer{ID: "A"})
	v.AddNeighbor(rview.Peer{ID: "B"})
	v.AddNeighbor(rview.Peer{ID: "C"})
	require.Equal(t, 3, v.Len())

	s := v.Sample(rview.Peer{ID: "B"}, true)
	require.Len(t, s, 2)
	require.Equal(t, "B", s[0].ID)
	require.Contains(t, []string{"A", "C"}, s[1].ID)

	v.Increment()
	for _, p := range v.Peers() {
		require.Equal(t, uint32(1), p.Age)
	}

	removed := v.RemovePeer("A")
	require.True(t, removed.IsSome())
	require.Equal(t, rview.Peer{ID: "A", Age: 1}, removed.UnsafeFromSome())
	require.Equal(t, 2, v.Len())
}

func TestPartialView_Oldest(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 0.5)
	require.True(t, v.Oldest().IsNone())

	v.AddNeighbor(rview.Peer{ID: "A"})
	v.Increment()
	v.Increment()
	v.AddNeighbor(rview.Peer{ID: "B"})
	v.Increment()
	v.AddNeighbor(rview.Peer{ID: "C"})

	o := v.Oldest()
	require.True(t, o.IsSome())

	minAge := uint32(math.MaxUint32)
	for _, p := range v.All() {
		minAge = min(minAge, p.Age)
	}
	require.Equal(t, minAge, o.UnsafeFromSome().Age)
	require.Equal(t, "C", o.UnsafeFromSome().ID)
}

func TestPartialView_Increment(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 0.5)
	v.AddNeighbor(rview.Peer{ID: "A"})
	v.Increment()
	v.AddNeighbor(rview.Peer{ID: "B"})
	v.AddNeighbor(rview.Peer{ID: "B"})

	before := v.Peers()
	v.Increment()
	after := v.Peers()

	require.Len(t, after, len(before))
	for i := range before {
		require.Equal(t, before[i].ID, after[i].ID)
		require.Equal(t, before[i].Age+1, after[i].Age)
	}
}

func TestPartialView_AddNeighbor_resetsAgeAndKeepsOrder(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 0.5)
	v.AddNeighbor(rview.Peer{ID: "A"})
	v.Increment()
	v.AddNeighbor(rview.Peer{ID: "B", Age: 9})

	require.Equal(t, []rview.Peer{
		{ID: "B", Age: 0},
		{ID: "A", Age: 1},
	}, v.Peers())
}

func TestPartialView_Sample_initiator(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 0.4)
	for _, id := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		v.AddNeighbor(rview.Peer{ID: id})
		v.Increment()
	}

	target := v.Oldest().UnsafeFromSome()
	for range 50 {
		s := v.Sample(target, true)

		// ceil(7 * 0.4) = 3.
		require.Len(t, s, 3)
		require.Equal(t, target, s[0])

		// Only one occurrence of the target was in the view,
		// and it was set aside, so it must not be drawn again.
		require.NotContains(t, ids(s[1:]), target.ID)
		require.NotEqual(t, s[1].ID, s[2].ID)
	}

	// Sampling does not modify the view.
	require.Equal(t, 7, v.Len())
}

func TestPartialView_Sample_wholeView(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 1)
	for _, id := range []string{"A", "B", "C", "D"} {
		v.AddNeighbor(rview.Peer{ID: id})
	}

	s := v.Sample(rview.Peer{ID: "C"}, true)
	require.Equal(t, "C", s[0].ID)
	require.ElementsMatch(t, []string{"A", "B", "C", "D"}, ids(s))

	s = v.Sample(rview.Peer{ID: "C"}, false)
	require.ElementsMatch(t, []string{"A", "B", "C", "D"}, ids(s))
}

func TestPartialView_Sample_initiatorHandles(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 1)

	// A handle that cannot be compared with == must not make Sample panic.
	v.AddNeighbor(rview.Peer{ID: "A", Conn: []byte{1}})
	v.AddNeighbor(rview.Peer{ID: "B"})

	var s []rview.Peer
	require.NotPanics(t, func() {
		s = v.Sample(rview.Peer{ID: "A", Conn: []byte{1}}, true)
	})
	require.Equal(t, []string{"A", "B"}, ids(s))

	// With comparable handles, the occurrence set aside is the one
	// holding the target's handle.
	v.Clear()
	h1, h2 := new(int), new(int)
	v.AddNeighbor(rview.Peer{ID: "C", Conn: h1})
	v.AddNeighbor(rview.Peer{ID: "C", Conn: h2})

	s = v.Sample(rview.Peer{ID: "C", Conn: h1}, true)
	require.Len(t, s, 2)
	require.Same(t, h1, s[0].Conn)
	require.Same(t, h2, s[1].Conn)
}

func TestPartialView_Sample_clampsToCandidates(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 1)
	v.AddNeighbor(rview.Peer{ID: "A"})
	v.AddNeighbor(rview.Peer{ID: "B"})

	// The neighbor is not in the view,
	// so the sample may hold it plus at most the remaining slot.
	s := v.Sample(rview.Peer{ID: "X"}, true)
	require.Len(t, s, 2)
	require.Equal(t, "X", s[0].ID)
}

func TestPartialView_Sample_empty(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 0.5)
	require.Empty(t, v.Sample(rview.Peer{ID: "A"}, true))
	require.Empty(t, v.Sample(rview.Peer{ID: "A"}, false))

	z := viewFixture(t, 0)
	z.AddNeighbor(rview.Peer{ID: "A"})
	require.Empty(t, z.Sample(rview.Peer{ID: "A"}, true))
}

func TestPartialView_Sample_uniform(t *testing.T) {
	t.Parallel()

	const nPeers = 10
	const trials = 20000

	v := viewFixture(t, 0.5)
	for i := range nPeers {
		v.AddNeighbor(rview.Peer{ID: string(rune('A' + i))})
	}

	counts := map[string]int{}
	for range trials {
		for _, p := range v.Sample(rview.Peer{}, false) {
			counts[p.ID]++
		}
	}

	// Each sample holds 5 of 10 peers,
	// so every peer is expected in half of the samples.
	want := trials * 5 / nPeers
	require.Len(t, counts, nPeers)
	for id, c := range counts {
		require.InDeltaf(t, want, c, float64(want)/10, "peer %s", id)
	}
}

func TestReplace(t *testing.T) {
	t.Parallel()

	sample := []rview.Peer{
		{ID: "A", Age: 1},
		{ID: "B", Age: 2},
		{ID: "A", Age: 3},
		{ID: "C", Age: 4},
	}
	fresh := rview.Peer{ID: "Z"}

	got := rview.Replace(sample, rview.Peer{ID: "A", Age: 99}, fresh)
	require.Equal(t, []rview.Peer{
		fresh,
		{ID: "B", Age: 2},
		fresh,
		{ID: "C", Age: 4},
	}, got)

	// Input is untouched.
	require.Equal(t, "A", sample[0].ID)
}

func TestPartialView_Index_tailBiased(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 0.5)
	h1, h2 := new(int), new(int)
	v.AddNeighbor(rview.Peer{ID: "A", Conn: h1})
	v.AddNeighbor(rview.Peer{ID: "B"})
	v.AddNeighbor(rview.Peer{ID: "A", Conn: h2})

	require.Equal(t, 2, v.Index("A"))
	require.Equal(t, rview.NotFound, v.Index("Z"))

	// Removal by ID targets the occurrence nearest the tail.
	got := v.RemovePeer("A")
	require.Same(t, h2, got.UnsafeFromSome().Conn)

	got = v.RemovePeer("A")
	require.Same(t, h1, got.UnsafeFromSome().Conn)

	require.True(t, v.RemovePeer("A").IsNone())
}

func TestPartialView_RemovePeerAge(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 0.5)
	v.AddNeighbor(rview.Peer{ID: "A"})
	v.Increment()
	v.AddNeighbor(rview.Peer{ID: "A"})

	// Matching ID with a different age is a no-op.
	require.True(t, v.RemovePeerAge("A", 5).IsNone())
	require.Equal(t, 2, v.Len())

	got := v.RemovePeerAge("A", 1)
	require.Equal(t, rview.Peer{ID: "A", Age: 1}, got.UnsafeFromSome())
	require.Equal(t, []rview.Peer{{ID: "A", Age: 0}}, v.Peers())
}

func TestPartialView_RemoveAll(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 0.5)
	v.AddNeighbor(rview.Peer{ID: "A"})
	v.AddNeighbor(rview.Peer{ID: "B"})
	v.Increment()
	v.AddNeighbor(rview.Peer{ID: "A"})
	v.AddNeighbor(rview.Peer{ID: "A"})

	require.Equal(t, 3, v.RemoveAll("A"))
	require.False(t, v.Contains("A"))
	require.True(t, v.Contains("B"))
	require.Equal(t, 1, v.Len())

	require.Zero(t, v.RemoveAll("A"))
}

func TestPartialView_RemoveSample(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 1)
	v.AddNeighbor(rview.Peer{ID: "A"})
	v.AddNeighbor(rview.Peer{ID: "B"})
	v.Increment()
	v.AddNeighbor(rview.Peer{ID: "B"})
	v.AddNeighbor(rview.Peer{ID: "C"})

	v.RemoveSample([]rview.Peer{
		{ID: "A", Age: 1},
		{ID: "B", Age: 0},
		{ID: "C", Age: 4}, // Stale age, skipped.
	})

	require.Equal(t, []rview.Peer{
		{ID: "C", Age: 0},
		{ID: "B", Age: 1},
	}, v.Peers())
}

func TestPartialView_addRemoveRoundTrip(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 0.5)
	v.AddNeighbor(rview.Peer{ID: "A"})
	v.AddNeighbor(rview.Peer{ID: "B"})
	before := v.Len()

	p := rview.Peer{ID: "P", Conn: new(int)}
	v.AddNeighbor(p)
	got := v.RemovePeer("P")

	require.Equal(t, p, got.UnsafeFromSome())
	require.Equal(t, before, v.Len())
}

func TestPartialView_Peers_isSnapshot(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 0.5)
	v.AddNeighbor(rview.Peer{ID: "A"})

	ps := v.Peers()
	ps[0].ID = "mutated"

	require.True(t, v.Contains("A"))
	require.False(t, v.Contains("mutated"))
}

func TestPartialView_Clear(t *testing.T) {
	t.Parallel()

	v := viewFixture(t, 0.5)
	v.AddNeighbor(rview.Peer{ID: "A"})
	v.AddNeighbor(rview.Peer{ID: "B"})
	v.Clear()

	require.Zero(t, v.Len())
	require.True(t, v.Oldest().IsNone())
}

func TestNew_validation(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(1, 1))
	for _, c := range []float64{-0.1, 1.5, math.NaN()} {
		require.Panics(t, func() {
			_ = rview.New(rview.Config{UsedCoef: c, RNG: rng})
		})
	}

	require.Panics(t, func() {
		_ = rview.New(rview.Config{UsedCoef: 0.5})
	})

	require.NotPanics(t, func() {
		_ = rview.New(rview.Config{UsedCoef: 0, RNG: rng})
		_ = rview.New(rview.Config{UsedCoef: 1, RNG: rng})
	})
}
