package hierarchy

// Forest is the immutable result of Build: a set of lineage trees plus
// a name index. Safe for concurrent readers; never mutated after Build.
type Forest struct {
	roots      []*Node
	byName     map[string]*Node
	grandTotal int
}

// Roots returns the root nodes, sorted descending by TotalCount. The
// returned slice must not be modified.
func (f *Forest) Roots() []*Node {
	return f.roots
}

// Node looks up a lineage by exact name; nil if absent.
func (f *Forest) Node(name string) *Node {
	return f.byName[name]
}

// Len is the number of nodes in the forest, synthesized included.
func (f *Forest) Len() int {
	return len(f.byName)
}

// GrandTotal is the sum of TotalCount over all roots, i.e. the total
// number of placed observations.
func (f *Forest) GrandTotal() int {
	return f.grandTotal
}

// Walk visits every node in depth-first pre-order (each root's subtree
// in child sort order) using an explicit stack. Return false from visit
// to skip a node's children.
func (f *Forest) Walk(visit func(*Node) bool) {
	// Roots are pushed in reverse so the stack pops them in order.
	stack := make([]*Node, 0, len(f.roots))
	for i := len(f.roots) - 1; i >= 0; i-- {
		stack = append(stack, f.roots[i])
	}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visit(n) {
			continue
		}
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
}

// All returns every node in pre-order. The slice is freshly allocated.
func (f *Forest) All() []*Node {
	out := make([]*Node, 0, len(f.byName))
	f.Walk(func(n *Node) bool {
		out = append(out, n)
		return true
	})
	return out
}

// Subtree returns the named node and all its descendants in pre-order,
// or nil if the name is not in the forest.
func (f *Forest) Subtree(name string) []*Node {
	root := f.byName[name]
	if root == nil {
		return nil
	}
	var out []*Node
	stack := []*Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		for i := len(n.Children) - 1; i >= 0; i-- {
			stack = append(stack, n.Children[i])
		}
	}
	return out
}

// MaxDepth returns the deepest node's depth, or 0 for an empty forest.
func (f *Forest) MaxDepth() int {
	max := 0
	for _, n := range f.byName {
		if n.Depth > max {
			max = n.Depth
		}
	}
	return max
}
