// Package hierarchy reconstructs a lineage forest from a flat multiset
// of (name, count) observations. Ancestors absent from the input are
// synthesized with zero own counts, counts are aggregated bottom-up in
// a single pass, and every node receives a deterministic display color.
//
// The forest is rebuilt from scratch on every call; once returned it is
// never mutated and is safe to share across concurrent readers.
package hierarchy

import (
	"sort"
	"strconv"
	"time"

	"github.com/cladeview/cladeview/pkg/debug"
	"github.com/cladeview/cladeview/pkg/lineage"
	"github.com/cladeview/cladeview/pkg/metrics"
	"github.com/cladeview/cladeview/pkg/model"
	"github.com/cladeview/cladeview/pkg/palette"
)

// Node is a single lineage in the built forest. All fields are
// read-only after Build returns.
type Node struct {
	Name string

	// OwnCount is the number of observations exactly matching Name;
	// zero for synthesized ancestors.
	OwnCount int
	// TotalCount is OwnCount plus the TotalCount of every child.
	TotalCount int
	// SampleCount and InternalCount partition TotalCount by the
	// observation's node kind. TotalTaxa is their sum.
	SampleCount   int
	InternalCount int
	TotalTaxa     int

	// Depth is the segment count minus one.
	Depth int
	// Synthesized marks ancestors that never appeared in the input.
	Synthesized bool
	// Color is the deterministic display color: name-only for
	// synthesized nodes, prevalence-weighted for observed ones.
	Color palette.RGB

	// Children are sorted descending by TotalCount (ties by natural
	// name order). Parent is a back-reference for relationship walks;
	// it never owns the node.
	Children []*Node
	Parent   *Node
}

// Root walks up to the node's root ancestor.
func (n *Node) Root() *Node {
	cur := n
	for cur.Parent != nil {
		cur = cur.Parent
	}
	return cur
}

// Options configures a Build call.
type Options struct {
	// Assigner supplies colors; nil uses the built-in palette.
	Assigner *palette.Assigner
	// SubtreeRoot, when non-empty, suppresses ancestor synthesis above
	// the named lineage so the forest is rooted at it instead of at its
	// natural root.
	SubtreeRoot string
}

// Option mutates Options.
type Option func(*Options)

// WithAssigner uses a custom color assigner (e.g. with config-driven
// root overrides).
func WithAssigner(a *palette.Assigner) Option {
	return func(o *Options) { o.Assigner = a }
}

// WithSubtreeRoot roots the forest at name: strict ancestors of name are
// never synthesized, so a build over a subtree's observations stays
// rooted at the focus lineage instead of growing a zero-count ancestor
// spine back to the natural root.
func WithSubtreeRoot(name string) Option {
	return func(o *Options) { o.SubtreeRoot = name }
}

// Build constructs the forest for the given observations. Observations
// with empty lineage names are skipped; duplicate names have their
// counts summed. The result is deterministic for a given observation
// multiset regardless of input order.
func Build(observations []model.Observation, opts ...Option) *Forest {
	defer metrics.Timer(metrics.BuildForest)()
	start := time.Now()

	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	assigner := o.Assigner
	if assigner == nil {
		assigner = palette.NewAssigner(nil)
	}

	byName := make(map[string]*Node)
	var all []*Node

	getNode := func(name string, depth int) *Node {
		if n, ok := byName[name]; ok {
			return n
		}
		n := &Node{Name: name, Depth: depth}
		byName[name] = n
		all = append(all, n)
		return n
	}

	// Accumulate observed counts.
	skipped := 0
	for _, obs := range observations {
		obs.Normalize()
		if obs.Lineage == "" {
			skipped++
			continue
		}
		d := lineage.Parse(obs.Lineage)
		n := getNode(obs.Lineage, d.Depth)
		n.OwnCount += obs.Count
		if obs.Kind == model.KindInternal {
			n.InternalCount += obs.Count
		} else {
			n.SampleCount += obs.Count
		}
	}
	debug.LogIf(skipped > 0, "hierarchy: skipped %d observations with empty lineage", skipped)
	observed := len(all)

	// Synthesize the ancestor closure. Any name's parent chain is
	// strictly shorter in segments, so this terminates and can never
	// introduce a cycle.
	for i := 0; i < observed; i++ {
		name := all[i].Name
		for parent := lineage.ParentOf(name); parent != ""; parent = lineage.ParentOf(parent) {
			if _, ok := byName[parent]; ok {
				break
			}
			if o.SubtreeRoot != "" && lineage.Relate(parent, o.SubtreeRoot) == lineage.RelationAncestor {
				break
			}
			n := getNode(parent, lineage.Parse(parent).Depth)
			n.Synthesized = true
			n.Color = assigner.ColorFor(parent)
		}
	}

	// Link parents. A node whose declared parent cannot be resolved
	// falls back to being a root; one malformed name must not break the
	// rest of the dataset.
	var roots []*Node
	for _, n := range all {
		parent := lineage.ParentOf(n.Name)
		if parent == "" {
			roots = append(roots, n)
			continue
		}
		p, ok := byName[parent]
		if !ok {
			roots = append(roots, n)
			continue
		}
		n.Parent = p
		p.Children = append(p.Children, n)
	}

	// Bottom-up aggregation: sweep nodes in order of decreasing depth
	// so every node is folded into its parent exactly once. Iterative
	// by construction; no recursion regardless of nesting.
	ordered := make([]*Node, len(all))
	copy(ordered, all)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Depth > ordered[j].Depth
	})
	for _, n := range ordered {
		n.TotalCount += n.OwnCount
		n.TotalTaxa = n.SampleCount + n.InternalCount
		if n.Parent != nil {
			n.Parent.TotalCount += n.TotalCount
			n.Parent.SampleCount += n.SampleCount
			n.Parent.InternalCount += n.InternalCount
		}
	}

	grand := 0
	for _, r := range roots {
		grand += r.TotalCount
	}

	// Prevalence-weighted colors for observed nodes. Synthesized nodes
	// keep their eager name-only color so they do not flicker as
	// descendant counts shift.
	stopColors := metrics.Timer(metrics.ColorAssignment)
	for _, n := range all {
		if n.Synthesized {
			continue
		}
		n.Color = assigner.ColorForWithPrevalence(n.Name, palette.Prevalence{
			OwnTotal:   float64(n.TotalCount),
			GrandTotal: float64(grand),
		})
	}
	stopColors()

	// Children and roots: descending by TotalCount, natural name order
	// breaking ties so permuted inputs build identical forests.
	for _, n := range all {
		sortSiblings(n.Children)
	}
	sortSiblings(roots)

	debug.Log("hierarchy: built %d nodes (%d observed, %d synthesized, %d roots) in %v",
		len(all), observed, len(all)-observed, len(roots), time.Since(start))

	return &Forest{
		roots:      roots,
		byName:     byName,
		grandTotal: grand,
	}
}

func sortSiblings(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].TotalCount != nodes[j].TotalCount {
			return nodes[i].TotalCount > nodes[j].TotalCount
		}
		return naturalLess(nodes[i].Name, nodes[j].Name)
	})
}

// naturalLess orders lineage names segment-wise, comparing numeric
// segments numerically. Non-numeric segments (malformed input) compare
// lexically; consistent, just not numeric.
func naturalLess(a, b string) bool {
	as := lineage.Parse(a).Segments
	bs := lineage.Parse(b).Segments
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		ai, aerr := strconv.Atoi(as[i])
		bi, berr := strconv.Atoi(bs[i])
		if aerr == nil && berr == nil {
			return ai < bi
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}
