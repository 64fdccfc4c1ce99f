package testutil

import (
	"testing"

	"github.com/cladeview/cladeview/pkg/hierarchy"
)

// AssertAggregation verifies the count invariants of a built forest:
// every node's total equals its own count plus its children's totals,
// the sample/internal partition sums to the total, and no count is
// negative.
func AssertAggregation(t testing.TB, f *hierarchy.Forest) {
	t.Helper()

	f.Walk(func(n *hierarchy.Node) bool {
		if n.OwnCount < 0 || n.TotalCount < 0 {
			t.Errorf("%s: negative counts own=%d total=%d", n.Name, n.OwnCount, n.TotalCount)
		}

		childSum := 0
		for _, c := range n.Children {
			childSum += c.TotalCount
		}
		if n.TotalCount != n.OwnCount+childSum {
			t.Errorf("%s: total=%d, want own %d + children %d", n.Name, n.TotalCount, n.OwnCount, childSum)
		}
		if n.SampleCount+n.InternalCount != n.TotalCount {
			t.Errorf("%s: sample %d + internal %d != total %d", n.Name, n.SampleCount, n.InternalCount, n.TotalCount)
		}

		if n.TotalTaxa != n.SampleCount+n.InternalCount {
			t.Errorf("%s: total_taxa=%d, want sample %d + internal %d", n.Name, n.TotalTaxa, n.SampleCount, n.InternalCount)
		}
		return true
	})
}

// AssertSiblingOrder verifies that every sibling list is sorted by total
// count descending, breaking ties by name.
func AssertSiblingOrder(t testing.TB, f *hierarchy.Forest) {
	t.Helper()

	check := func(nodes []*hierarchy.Node, parent string) {
		for i := 1; i < len(nodes); i++ {
			prev, cur := nodes[i-1], nodes[i]
			if prev.TotalCount < cur.TotalCount {
				t.Errorf("under %q: %s (total %d) sorted before %s (total %d)",
					parent, prev.Name, prev.TotalCount, cur.Name, cur.TotalCount)
			}
		}
	}

	check(f.Roots(), "(roots)")
	f.Walk(func(n *hierarchy.Node) bool {
		check(n.Children, n.Name)
		return true
	})
}

// AssertParentLinks verifies parent pointers and depths are mutually
// consistent.
func AssertParentLinks(t testing.TB, f *hierarchy.Forest) {
	t.Helper()

	f.Walk(func(n *hierarchy.Node) bool {
		for _, c := range n.Children {
			if c.Parent != n {
				t.Errorf("%s: child %s has parent %v", n.Name, c.Name, c.Parent)
			}
			if c.Depth <= n.Depth {
				t.Errorf("%s: child %s depth %d not below parent depth %d", n.Name, c.Name, c.Depth, n.Depth)
			}
		}
		return true
	})
}
