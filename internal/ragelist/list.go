package ragelist

import (
	"errors"
	"slices"
	"sort"
)

// List holds entries of type E sorted by ascending age.
// Entries with equal ages keep their insertion order,
// although callers must not rely on that.
//
// List is not safe for concurrent use.
type List[E comparable] struct {
	age   func(E) uint32
	items []E
}

// New returns an empty List that reads each entry's age through ageOf.
func New[E comparable](ageOf func(E) uint32) *List[E] {
	if ageOf == nil {
		panic(errors.New("BUG: ageOf must not be nil"))
	}

	return &List[E]{age: ageOf}
}

// Insert adds e after every entry whose age is less than or equal to e's.
func (l *List[E]) Insert(e E) {
	a := l.age(e)
	i := sort.Search(len(l.items), func(i int) bool {
		return l.age(l.items[i]) > a
	})
	l.items = slices.Insert(l.items, i, e)
}

// RemoveOccurrence removes the first entry equal to e.
// It reports whether an entry was removed.
func (l *List[E]) RemoveOccurrence(e E) bool {
	return l.RemoveFunc(l.age(e), func(x E) bool { return x == e })
}

// RemoveFunc removes the first entry of the given age
// for which match returns true.
// It reports whether an entry was removed.
func (l *List[E]) RemoveFunc(age uint32, match func(E) bool) bool {
	// Only the run of entries with the same age can match.
	start := sort.Search(len(l.items), func(i int) bool {
		return l.age(l.items[i]) >= age
	})
	for i := start; i < len(l.items) && l.age(l.items[i]) == age; i++ {
		if match(l.items[i]) {
			l.RemoveAt(i)
			return true
		}
	}

	return false
}

// RemoveAt removes and returns the entry at index i.
// It panics if i is out of range.
func (l *List[E]) RemoveAt(i int) E {
	e := l.items[i]
	l.items = slices.Delete(l.items, i, i+1)
	return e
}

// DeleteFunc removes every entry for which del returns true
// and returns how many were removed.
func (l *List[E]) DeleteFunc(del func(E) bool) int {
	before := len(l.items)
	l.items = slices.DeleteFunc(l.items, del)
	return before - len(l.items)
}

// At returns the entry at index i.
func (l *List[E]) At(i int) E {
	return l.items[i]
}

// Len returns the number of entries.
func (l *List[E]) Len() int {
	return len(l.items)
}

// Clear removes every entry, keeping the allocated capacity.
func (l *List[E]) Clear() {
	clear(l.items)
	l.items = l.items[:0]
}

// Clone returns an independent copy of l.
func (l *List[E]) Clone() *List[E] {
	return &List[E]{
		age:   l.age,
		items: slices.Clone(l.items),
	}
}

// Items returns the backing slice.
// Writes through the returned slice must preserve the sort order.
func (l *List[E]) Items() []E {
	return l.items
}

// Bump applies inc to every entry in place.
// inc must add the same amount to every age,
// so that the relative order is unchanged.
func (l *List[E]) Bump(inc func(*E)) {
	for i := range l.items {
		inc(&l.items[i])
	}
}
