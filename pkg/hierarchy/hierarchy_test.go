package hierarchy_test

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/cladeview/cladeview/pkg/hierarchy"
	"github.com/cladeview/cladeview/pkg/model"
	"github.com/cladeview/cladeview/pkg/testutil"
)

func obs(name string, count int, kind model.NodeKind) model.Observation {
	return model.Observation{Lineage: name, Count: count, Kind: kind}
}

func TestBuildEmpty(t *testing.T) {
	f := hierarchy.Build(nil)
	if f.Len() != 0 || len(f.Roots()) != 0 || f.GrandTotal() != 0 {
		t.Errorf("empty input should build an empty forest, got %d nodes, %d roots, grand total %d",
			f.Len(), len(f.Roots()), f.GrandTotal())
	}
}

func TestBuildSimpleChain(t *testing.T) {
	// B=5, B.1=3, B.1.1=2: one root with total 10.
	f := hierarchy.Build([]model.Observation{
		obs("B", 5, model.KindSample),
		obs("B.1", 3, model.KindSample),
		obs("B.1.1", 2, model.KindSample),
	})

	roots := f.Roots()
	if len(roots) != 1 || roots[0].Name != "B" {
		t.Fatalf("expected single root B, got %v", roots)
	}
	b := roots[0]
	if b.OwnCount != 5 || b.TotalCount != 10 {
		t.Errorf("B: own=%d total=%d, want own=5 total=10", b.OwnCount, b.TotalCount)
	}
	b1 := f.Node("B.1")
	if b1 == nil || b1.OwnCount != 3 || b1.TotalCount != 5 {
		t.Errorf("B.1 = %+v, want own=3 total=5", b1)
	}
	b11 := f.Node("B.1.1")
	if b11 == nil || b11.OwnCount != 2 || b11.TotalCount != 2 {
		t.Errorf("B.1.1 = %+v, want own=2 total=2", b11)
	}
	if b11.Parent != b1 || b1.Parent != b {
		t.Error("parent links broken along the B chain")
	}
}

func TestBuildSynthesizesAncestors(t *testing.T) {
	// AY.4 alone must synthesize root AY with own=0, total=7.
	f := hierarchy.Build([]model.Observation{obs("AY.4", 7, model.KindSample)})

	roots := f.Roots()
	if len(roots) != 1 || roots[0].Name != "AY" {
		t.Fatalf("expected synthesized root AY, got %v", roots)
	}
	ay := roots[0]
	if !ay.Synthesized {
		t.Error("AY should be marked synthesized")
	}
	if ay.OwnCount != 0 || ay.TotalCount != 7 {
		t.Errorf("AY: own=%d total=%d, want own=0 total=7", ay.OwnCount, ay.TotalCount)
	}
	if len(ay.Children) != 1 || ay.Children[0].Name != "AY.4" {
		t.Fatalf("AY children = %v, want [AY.4]", ay.Children)
	}
	if ay.Children[0].OwnCount != 7 || ay.Children[0].TotalCount != 7 {
		t.Errorf("AY.4 = %+v, want own=7 total=7", ay.Children[0])
	}
}

func TestBuildDeepSynthesis(t *testing.T) {
	// A single deep name synthesizes the whole chain.
	f := hierarchy.Build([]model.Observation{obs("XBB.1.5.10", 4, model.KindSample)})
	for _, name := range []string{"XBB", "XBB.1", "XBB.1.5"} {
		n := f.Node(name)
		if n == nil {
			t.Fatalf("ancestor %s not synthesized", name)
		}
		if !n.Synthesized || n.OwnCount != 0 || n.TotalCount != 4 {
			t.Errorf("%s = synth=%v own=%d total=%d, want synth=true own=0 total=4",
				name, n.Synthesized, n.OwnCount, n.TotalCount)
		}
	}
}

func TestBuildSubtreeRoot(t *testing.T) {
	// Rooted at AY.4.2, no ancestor spine above it is synthesized.
	f := hierarchy.Build([]model.Observation{
		obs("AY.4.2", 3, model.KindSample),
		obs("AY.4.2.1", 2, model.KindSample),
	}, hierarchy.WithSubtreeRoot("AY.4.2"))

	roots := f.Roots()
	if len(roots) != 1 || roots[0].Name != "AY.4.2" {
		t.Fatalf("roots = %v, want exactly [AY.4.2]", roots)
	}
	if roots[0].TotalCount != 5 || roots[0].OwnCount != 3 {
		t.Errorf("AY.4.2 = own=%d total=%d, want own=3 total=5", roots[0].OwnCount, roots[0].TotalCount)
	}
	for _, above := range []string{"AY", "AY.4"} {
		if f.Node(above) != nil {
			t.Errorf("ancestor %s must not be synthesized above the subtree root", above)
		}
	}
	testutil.AssertAggregation(t, f)
	testutil.AssertParentLinks(t, f)
}

func TestBuildSubtreeRootSynthesizesWithin(t *testing.T) {
	// Gaps below the subtree root are still filled in.
	f := hierarchy.Build([]model.Observation{
		obs("XBB.1.5.10", 4, model.KindSample),
	}, hierarchy.WithSubtreeRoot("XBB.1"))

	if f.Node("XBB") != nil {
		t.Error("XBB must not be synthesized above the subtree root")
	}
	xbb1 := f.Node("XBB.1")
	if xbb1 == nil || !xbb1.Synthesized || xbb1.TotalCount != 4 {
		t.Fatalf("XBB.1 = %+v, want synthesized total=4", xbb1)
	}
	if f.Node("XBB.1.5") == nil {
		t.Error("XBB.1.5 should be synthesized inside the subtree")
	}
	roots := f.Roots()
	if len(roots) != 1 || roots[0].Name != "XBB.1" {
		t.Errorf("roots = %v, want [XBB.1]", roots)
	}
}

func TestBuildDuplicateNamesSum(t *testing.T) {
	f := hierarchy.Build([]model.Observation{
		obs("BA.2", 3, model.KindSample),
		obs("BA.2", 4, model.KindSample),
	})
	n := f.Node("BA.2")
	if n == nil || n.OwnCount != 7 {
		t.Errorf("duplicate counts must sum: got %+v", n)
	}
}

func TestBuildSampleInternalPartition(t *testing.T) {
	f := hierarchy.Build([]model.Observation{
		obs("B.1", 5, model.KindSample),
		obs("B.1", 2, model.KindInternal),
		obs("B.1.7", 3, model.KindSample),
	})
	b := f.Node("B")
	if b.SampleCount != 8 || b.InternalCount != 2 {
		t.Errorf("B: samples=%d internal=%d, want 8/2", b.SampleCount, b.InternalCount)
	}
	if b.TotalTaxa != b.SampleCount+b.InternalCount {
		t.Errorf("B: totalTaxa=%d != samples+internal=%d", b.TotalTaxa, b.SampleCount+b.InternalCount)
	}
	b1 := f.Node("B.1")
	if b1.SampleCount != 8 || b1.InternalCount != 2 || b1.TotalCount != 10 {
		t.Errorf("B.1 = %+v, want samples=8 internal=2 total=10", b1)
	}
}

func TestBuildUntaggedDefaultsToSample(t *testing.T) {
	f := hierarchy.Build([]model.Observation{{Lineage: "B", Count: 3}})
	if n := f.Node("B"); n.SampleCount != 3 || n.InternalCount != 0 {
		t.Errorf("untagged counts should land in samples: %+v", n)
	}
}

func TestBuildSkipsEmptyNames(t *testing.T) {
	f := hierarchy.Build([]model.Observation{
		{Lineage: "", Count: 9},
		{Lineage: "  ", Count: 2},
		obs("B", 1, model.KindSample),
	})
	if f.Len() != 1 || f.GrandTotal() != 1 {
		t.Errorf("empty lineages must be skipped: %d nodes, grand total %d", f.Len(), f.GrandTotal())
	}
}

func TestBuildChildSortOrder(t *testing.T) {
	f := hierarchy.Build([]model.Observation{
		obs("BA.1", 2, model.KindSample),
		obs("BA.2", 9, model.KindSample),
		obs("BA.5", 5, model.KindSample),
	})
	ba := f.Node("BA")
	want := []string{"BA.2", "BA.5", "BA.1"}
	for i, w := range want {
		if ba.Children[i].Name != w {
			t.Errorf("children[%d] = %s, want %s", i, ba.Children[i].Name, w)
		}
	}
	testutil.AssertSiblingOrder(t, f)
}

func TestBuildMultipleRootsSorted(t *testing.T) {
	f := hierarchy.Build([]model.Observation{
		obs("A.1", 3, model.KindSample),
		obs("B.1", 10, model.KindSample),
		obs("XBB.1", 6, model.KindSample),
	})
	roots := f.Roots()
	want := []string{"B", "XBB", "A"}
	if len(roots) != 3 {
		t.Fatalf("got %d roots, want 3", len(roots))
	}
	for i, w := range want {
		if roots[i].Name != w {
			t.Errorf("roots[%d] = %s, want %s", i, roots[i].Name, w)
		}
	}
}

func TestBuildMalformedSegmentStillPlaced(t *testing.T) {
	// "B.x" is an opaque segment: it parses, its parent is B, and the
	// hierarchy places it like any other child.
	f := hierarchy.Build([]model.Observation{obs("B.x", 2, model.KindSample)})
	n := f.Node("B.x")
	if n == nil {
		t.Fatal("B.x missing from forest")
	}
	if n.Parent == nil || n.Parent.Name != "B" {
		t.Errorf("B.x parent = %v, want B", n.Parent)
	}
}

func TestAggregationInvariant(t *testing.T) {
	f := hierarchy.Build([]model.Observation{
		obs("B", 5, model.KindSample),
		obs("B.1", 3, model.KindInternal),
		obs("B.1.1.7", 2, model.KindSample),
		obs("AY.4.2", 7, model.KindSample),
		obs("XBB.1.5", 1, model.KindSample),
		obs("XBB.1.9.1", 2, model.KindInternal),
	})
	testutil.AssertAggregation(t, f)
	testutil.AssertParentLinks(t, f)

	// Subtree sum: a root's total equals the sum of own counts below it.
	for _, r := range f.Roots() {
		sum := 0
		for _, n := range f.Subtree(r.Name) {
			sum += n.OwnCount
		}
		if r.TotalCount != sum {
			t.Errorf("root %s: total %d != subtree own-count sum %d", r.Name, r.TotalCount, sum)
		}
	}
}

func TestBuildDeterministicUnderPermutation(t *testing.T) {
	base := []model.Observation{
		obs("B", 5, model.KindSample),
		obs("B.1", 3, model.KindSample),
		obs("B.1.1", 2, model.KindInternal),
		obs("AY.4", 7, model.KindSample),
		obs("AY.4.2", 1, model.KindSample),
		obs("XBB.1.5", 4, model.KindSample),
		obs("BA.2", 4, model.KindSample),
		obs("BA.5", 4, model.KindSample), // tie with BA.2
	}

	ref := hierarchy.Build(base)
	g := testutil.New(testutil.GeneratorConfig{Seed: 1})
	for trial := 0; trial < 10; trial++ {
		got := hierarchy.Build(g.Shuffle(base))
		assertForestsEqual(t, ref, got)
	}
}

func assertForestsEqual(t *testing.T, a, b *hierarchy.Forest) {
	t.Helper()
	an, bn := a.All(), b.All()
	if len(an) != len(bn) {
		t.Fatalf("forest sizes differ: %d vs %d", len(an), len(bn))
	}
	for i := range an {
		x, y := an[i], bn[i]
		if x.Name != y.Name || x.OwnCount != y.OwnCount || x.TotalCount != y.TotalCount ||
			x.SampleCount != y.SampleCount || x.InternalCount != y.InternalCount ||
			x.Color != y.Color || x.Depth != y.Depth {
			t.Fatalf("node %d differs: %+v vs %+v", i, x, y)
		}
	}
}

func TestBuildGeneratedFixtures(t *testing.T) {
	g := testutil.New(testutil.GeneratorConfig{Seed: 7, InternalRatio: 25})

	for name, observations := range map[string][]model.Observation{
		"chain":        g.Chain("B", 6),
		"balanced":     g.BalancedTree("BA", 3, 3),
		"sparse":       g.SparseForest([]string{"A", "B", "AY"}, 40),
		"recombinants": g.Recombinants(25),
	} {
		f := hierarchy.Build(observations)
		testutil.AssertAggregation(t, f)
		testutil.AssertSiblingOrder(t, f)
		testutil.AssertParentLinks(t, f)
		if f.Len() == 0 {
			t.Errorf("%s: generated fixture built an empty forest", name)
		}
	}
}

func TestBuildPropertyInvariants(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		numObs := rapid.IntRange(0, 60).Draw(rt, "numObs")
		observations := make([]model.Observation, 0, numObs)
		for i := 0; i < numObs; i++ {
			root := rapid.SampledFrom([]string{"A", "B", "AY", "BA", "XBB"}).Draw(rt, "root")
			depth := rapid.IntRange(0, 4).Draw(rt, "depth")
			name := root
			for j := 0; j < depth; j++ {
				name += "." + rapid.SampledFrom([]string{"1", "2", "5", "7"}).Draw(rt, "seg")
			}
			kind := model.KindSample
			if rapid.Bool().Draw(rt, "internal") {
				kind = model.KindInternal
			}
			observations = append(observations, obs(name, rapid.IntRange(0, 50).Draw(rt, "count"), kind))
		}

		f := hierarchy.Build(observations)
		testutil.AssertAggregation(t, f)
		testutil.AssertSiblingOrder(t, f)
		testutil.AssertParentLinks(t, f)

		// Grand total equals the sum of all placed counts.
		want := 0
		for _, o := range observations {
			want += o.Count
		}
		if f.GrandTotal() != want {
			rt.Fatalf("grand total %d != placed observation sum %d", f.GrandTotal(), want)
		}

		// Every node's name is unique and reachable via lookup.
		seen := map[string]bool{}
		f.Walk(func(n *hierarchy.Node) bool {
			if seen[n.Name] {
				rt.Fatalf("duplicate node %s", n.Name)
			}
			seen[n.Name] = true
			if f.Node(n.Name) != n {
				rt.Fatalf("lookup mismatch for %s", n.Name)
			}
			return true
		})
	})
}

func TestWalkSkipsSubtree(t *testing.T) {
	f := hierarchy.Build([]model.Observation{
		obs("B.1.1", 1, model.KindSample),
		obs("A.1", 1, model.KindSample),
	})
	var visited []string
	f.Walk(func(n *hierarchy.Node) bool {
		visited = append(visited, n.Name)
		return n.Name != "B" // skip B's children
	})
	for _, name := range visited {
		if name == "B.1" || name == "B.1.1" {
			t.Errorf("walk visited %s despite subtree skip", name)
		}
	}
}

func TestNodeRoot(t *testing.T) {
	f := hierarchy.Build([]model.Observation{obs("AY.4.2", 1, model.KindSample)})
	if got := f.Node("AY.4.2").Root(); got.Name != "AY" {
		t.Errorf("Root() = %s, want AY", got.Name)
	}
}
