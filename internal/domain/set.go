package domain

import "slices"

// IDSet is an insertion-ordered set of entity IDs.
// It serializes as a plain JSON array. Order carries no meaning.
type IDSet []string

// Contains reports whether id is a member.
func (s IDSet) Contains(id string) bool {
	return slices.Contains(s, id)
}

// Add inserts id if absent and reports whether the set changed.
func (s *IDSet) Add(id string) bool {
	if s.Contains(id) {
		return false
	}
	*s = append(*s, id)
	return true
}

// Remove deletes id if present and reports whether the set changed.
func (s *IDSet) Remove(id string) bool {
	i := slices.Index(*s, id)
	if i < 0 {
		return false
	}
	*s = slices.Delete(*s, i, i+1)
	return true
}

// Len returns the number of members.
func (s IDSet) Len() int {
	return len(s)
}
