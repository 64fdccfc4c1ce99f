package lineage

// Relation classifies how lineage a stands relative to lineage b as
// reported by Relate(a, b). The direction is fixed: RelationAncestor
// means a is a strict ancestor of b ("AY" vs "AY.4.2"), and
// RelationDescendant means a is a strict descendant of b. Callers that
// need the opposite perspective use Inverse.
type Relation int

const (
	RelationUnrelated Relation = iota
	RelationSelf
	RelationAncestor
	RelationDescendant
)

// String returns the lowercase label used in reports and robot output.
func (r Relation) String() string {
	switch r {
	case RelationSelf:
		return "self"
	case RelationAncestor:
		return "ancestor"
	case RelationDescendant:
		return "descendant"
	default:
		return "unrelated"
	}
}

// Inverse swaps ancestor and descendant; self and unrelated are symmetric.
func (r Relation) Inverse() Relation {
	switch r {
	case RelationAncestor:
		return RelationDescendant
	case RelationDescendant:
		return RelationAncestor
	default:
		return r
	}
}

// Relate classifies the relationship between two lineage names by pure
// segment-prefix comparison. It works directly off the strings and does
// not require a built forest. Empty names are unrelated to everything,
// including each other.
func Relate(a, b string) Relation {
	if a == "" || b == "" {
		return RelationUnrelated
	}
	if a == b {
		return RelationSelf
	}
	if len(b) > len(a) && b[:len(a)] == a && b[len(a)] == '.' {
		return RelationAncestor
	}
	if len(a) > len(b) && a[:len(b)] == b && a[len(b)] == '.' {
		return RelationDescendant
	}
	return RelationUnrelated
}

// IsAncestorOf reports whether a is a strict ancestor of b.
func IsAncestorOf(a, b string) bool {
	return Relate(a, b) == RelationAncestor
}
