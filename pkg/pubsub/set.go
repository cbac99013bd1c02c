package pubsub

import "slices"

// subscriberSet is an ordered, duplicate-free set of identifiers.
type subscriberSet[I comparable] struct {
	compare func(a, b I) int
	ids     []I
}

func newSubscriberSet[I comparable](compare func(a, b I) int) *subscriberSet[I] {
	return &subscriberSet[I]{compare: compare}
}

// insert adds id and reports whether it was absent
func (s *subscriberSet[I]) insert(id I) bool {
	i, found := slices.BinarySearchFunc(s.ids, id, s.compare)
	if found {
		return false
	}
	s.ids = slices.Insert(s.ids, i, id)
	return true
}

// remove deletes id and reports whether it was present
func (s *subscriberSet[I]) remove(id I) bool {
	i, found := slices.BinarySearchFunc(s.ids, id, s.compare)
	if !found {
		return false
	}
	s.ids = slices.Delete(s.ids, i, i+1)
	return true
}

func (s *subscriberSet[I]) contains(id I) bool {
	_, found := slices.BinarySearchFunc(s.ids, id, s.compare)
	return found
}

func (s *subscriberSet[I]) len() int {
	return len(s.ids)
}

// snapshot returns a copy of the identifiers in ascending order
func (s *subscriberSet[I]) snapshot() []I {
	return slices.Clone(s.ids)
}

// patternEntry is a pattern channel together with its compiled matcher.
type patternEntry[I comparable] struct {
	pattern     Pattern
	subscribers *subscriberSet[I]
}
