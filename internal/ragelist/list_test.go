package ragelist_test

import (
	"math/rand/v2"
	"testing"

	"github.com/gordian-engine/rps/internal/ragelist"
	"github.com/stretchr/testify/require"
)

type entry struct {
	name string
	age  uint32
}

func listFixture() *ragelist.List[entry] {
	return ragelist.New(func(e entry) uint32 { return e.age })
}

func requireSorted(t *testing.T, l *ragelist.List[entry]) {
	t.Helper()

	for i := 1; i < l.Len(); i++ {
		require.LessOrEqualf(
			t, l.At(i-1).age, l.At(i).age,
			"entries %d and %d out of order", i-1, i,
		)
	}
}

func TestList_Insert_keepsAscendingOrder(t *testing.T) {
	t.Parallel()

	l := listFixture()
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range 200 {
		l.Insert(entry{name: string(rune('a' + i%26)), age: uint32(rng.IntN(10))})
		requireSorted(t, l)
	}

	require.Equal(t, 200, l.Len())
}

func TestList_Insert_tiesGoLast(t *testing.T) {
	t.Parallel()

	l := listFixture()
	l.Insert(entry{"a", 1})
	l.Insert(entry{"b", 0})
	l.Insert(entry{"c", 1})
	l.Insert(entry{"d", 2})
	l.Insert(entry{"e", 1})

	require.Equal(t, []entry{
		{"b", 0}, {"a", 1}, {"c", 1}, {"e", 1}, {"d", 2},
	}, l.Items())
}

func TestList_RemoveOccurrence(t *testing.T) {
	t.Parallel()

	l := listFixture()
	l.Insert(entry{"a", 1})
	l.Insert(entry{"a", 1})
	l.Insert(entry{"a", 2})
	l.Insert(entry{"b", 1})

	// Only one of the duplicates goes away.
	require.True(t, l.RemoveOccurrence(entry{"a", 1}))
	require.Equal(t, []entry{{"a", 1}, {"b", 1}, {"a", 2}}, l.Items())

	// Same name, different age: a different entry.
	require.True(t, l.RemoveOccurrence(entry{"a", 2}))
	require.Equal(t, []entry{{"a", 1}, {"b", 1}}, l.Items())

	// Absent entries are a no-op.
	require.False(t, l.RemoveOccurrence(entry{"a", 7}))
	require.False(t, l.RemoveOccurrence(entry{"z", 1}))
	require.Equal(t, 2, l.Len())
}

func TestList_RemoveFunc(t *testing.T) {
	t.Parallel()

	l := listFixture()
	l.Insert(entry{"a", 1})
	l.Insert(entry{"b", 1})
	l.Insert(entry{"b", 2})

	// Only entries of the requested age are considered.
	require.False(t, l.RemoveFunc(3, func(e entry) bool { return e.name == "b" }))
	require.True(t, l.RemoveFunc(2, func(e entry) bool { return e.name == "b" }))
	require.Equal(t, []entry{{"a", 1}, {"b", 1}}, l.Items())

	require.True(t, l.RemoveFunc(1, func(e entry) bool { return e.name == "b" }))
	require.Equal(t, []entry{{"a", 1}}, l.Items())
}

func TestList_Clone_isIndependent(t *testing.T) {
	t.Parallel()

	l := listFixture()
	l.Insert(entry{"a", 0})
	l.Insert(entry{"b", 3})

	c := l.Clone()
	c.RemoveAt(0)
	c.Insert(entry{"c", 1})

	require.Equal(t, []entry{{"a", 0}, {"b", 3}}, l.Items())
	require.Equal(t, []entry{{"c", 1}, {"b", 3}}, c.Items())
}

func TestList_Bump(t *testing.T) {
	t.Parallel()

	l := listFixture()
	l.Insert(entry{"a", 0})
	l.Insert(entry{"b", 4})

	l.Bump(func(e *entry) { e.age++ })

	require.Equal(t, []entry{{"a", 1}, {"b", 5}}, l.Items())
}

func TestList_Clear(t *testing.T) {
	t.Parallel()

	l := listFixture()
	l.Insert(entry{"a", 0})
	l.Clear()

	require.Zero(t, l.Len())

	l.Insert(entry{"b", 2})
	require.Equal(t, []entry{{"b", 2}}, l.Items())
}

func TestNew_panicsWithoutAgeFunc(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		_ = ragelist.New[entry](nil)
	})
}

func TestList_DeleteFunc(t *testing.T) {
	t.Parallel()

	l := listFixture()
	l.Insert(entry{"a", 0})
	l.Insert(entry{"b", 1})
	l.Insert(entry{"a", 2})
	l.Insert(entry{"c", 2})

	n := l.DeleteFunc(func(e entry) bool { return e.name == "a" })

	require.Equal(t, 2, n)
	require.Equal(t, []entry{{"b", 1}, {"c", 2}}, l.Items())
}
