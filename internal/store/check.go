package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/tagboxapp/tagbox-server/internal/domain"
)

// Kinds of tag/item inconsistency reported by CheckConsistency.
const (
	ProblemOrphanTag     = "orphan_tag"     // tag with no items
	ProblemMissingItem   = "missing_item"   // tag lists an item that does not exist
	ProblemMissingTag    = "missing_tag"    // item lists a tag that does not exist
	ProblemOwnerMismatch = "owner_mismatch" // tag and item belong to different owners
	ProblemOneSided      = "one_sided"      // reference present on one side only
)

// Problem is one violation of the tag/item reference invariants.
type Problem struct {
	Kind   string
	ID     string // tag or item the problem was found on
	Detail string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s %s: %s", p.Kind, p.ID, p.Detail)
}

// CheckConsistency scans every tag and item in one snapshot and reports
// references that do not hold in both directions, cross-owner references,
// and orphan tags. An empty result means the store is consistent.
func (s *Store) CheckConsistency(ctx context.Context) ([]Problem, error) {
	var problems []Problem
	err := s.View(ctx, func(tx *Tx) error {
		tags := make(map[string]*domain.Tag)
		for t, err := range s.Tags.List(tx) {
			if err != nil {
				return fmt.Errorf("list tags: %w", err)
			}
			tags[t.ID] = t
		}
		items := make(map[string]*domain.Item)
		for it, err := range s.Items.List(tx) {
			if err != nil {
				return fmt.Errorf("list items: %w", err)
			}
			items[it.ID] = it
		}

		for _, t := range tags {
			if t.Items.Len() == 0 {
				problems = append(problems, Problem{ProblemOrphanTag, t.ID, "tag " + t.Name + " has no items"})
			}
			for _, itemID := range t.Items {
				it, ok := items[itemID]
				switch {
				case !ok:
					problems = append(problems, Problem{ProblemMissingItem, t.ID, "item " + itemID + " does not exist"})
				case it.OwnerID != t.OwnerID:
					problems = append(problems, Problem{ProblemOwnerMismatch, t.ID, "item " + itemID + " belongs to " + it.OwnerID})
				case !it.Tags.Contains(t.ID):
					problems = append(problems, Problem{ProblemOneSided, t.ID, "item " + itemID + " does not list this tag"})
				}
			}
		}

		for _, it := range items {
			for _, tagID := range it.Tags {
				t, ok := tags[tagID]
				switch {
				case !ok:
					problems = append(problems, Problem{ProblemMissingTag, it.ID, "tag " + tagID + " does not exist"})
				case !t.Items.Contains(it.ID):
					problems = append(problems, Problem{ProblemOneSided, it.ID, "tag " + tagID + " does not list this item"})
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(problems, func(a, b Problem) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.ID, b.ID), cmp.Compare(a.Detail, b.Detail))
	})
	return problems, nil
}
