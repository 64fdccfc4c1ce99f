// Package lineage implements parsing and relationship queries for dotted
// hierarchical lineage names (Pango-style: "B.1.1.7", "AY.4.2", "XBB.1.5").
//
// Three naming grammars are recognized, checked in order:
//
//  1. recombinant: leading "X" with more characters ("XBB", "XBB.1.5");
//     the root is everything before the first dot;
//  2. multi-letter root: two or more leading letters followed by a dot or
//     end-of-string ("AY.4", "BA.2.75");
//  3. single-letter root: plain dot-split ("B.1.1.7").
//
// All functions are pure and allocate only their results; they never
// require a built hierarchy.
package lineage

import (
	"regexp"
	"strings"
)

// Decomposition is the canonical breakdown of a lineage name.
type Decomposition struct {
	// Segments holds the ordered path, root first ("XBB.1.5" ->
	// ["XBB", "1", "5"]). Empty for an empty name.
	Segments []string
	// Parent is the name with the last segment removed, or "" for roots.
	Parent string
	// Depth is len(Segments)-1, or 0 for the degenerate empty name.
	Depth int
}

var (
	multiLetterRoot = regexp.MustCompile(`^[A-Za-z]{2,}(\.|$)`)
	strictLineage   = regexp.MustCompile(`^[A-Za-z](\.\d+)*$`)
)

// Parse decomposes a lineage name. The empty string yields the degenerate
// empty decomposition; it is never matched against real data.
func Parse(name string) Decomposition {
	if name == "" {
		return Decomposition{}
	}
	segments := splitSegments(name)
	d := Decomposition{
		Segments: segments,
		Depth:    len(segments) - 1,
	}
	if len(segments) > 1 {
		d.Parent = strings.Join(segments[:len(segments)-1], ".")
	}
	return d
}

// RootOf returns only the root component of a name ("AY.4.2" -> "AY").
// Returns "" for the empty name.
func RootOf(name string) string {
	if name == "" {
		return ""
	}
	if isPrefixRooted(name) {
		if dot := strings.IndexByte(name, '.'); dot >= 0 {
			return name[:dot]
		}
		return name
	}
	if dot := strings.IndexByte(name, '.'); dot >= 0 {
		return name[:dot]
	}
	return name
}

// ParentOf returns the parent name, or "" if name is a root or empty.
func ParentOf(name string) string {
	return Parse(name).Parent
}

// IsLineageLike reports whether name is a strict single-letter-root
// lineage with purely numeric sub-segments ("B.1.1.7" but not "AY.4" or
// "XBB.1.5"). This intentionally preserves the narrow historical check;
// callers that want all three grammars should use IsHierarchical.
func IsLineageLike(name string) bool {
	return strictLineage.MatchString(name)
}

// IsHierarchical reports whether name parses under any of the three
// grammars into a root followed by numeric sub-segments. This is the
// broadened companion to IsLineageLike.
func IsHierarchical(name string) bool {
	if name == "" {
		return false
	}
	segs := splitSegments(name)
	if segs[0] == "" {
		return false
	}
	for _, r := range segs[0] {
		if !isLetter(r) {
			return false
		}
	}
	for _, s := range segs[1:] {
		if s == "" {
			return false
		}
		for _, r := range s {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// splitSegments applies grammar classification and returns the ordered
// segment list, root first.
func splitSegments(name string) []string {
	if isPrefixRooted(name) {
		dot := strings.IndexByte(name, '.')
		if dot < 0 {
			return []string{name}
		}
		rest := strings.Split(name[dot+1:], ".")
		segs := make([]string, 0, len(rest)+1)
		segs = append(segs, name[:dot])
		return append(segs, rest...)
	}
	return strings.Split(name, ".")
}

// isPrefixRooted reports whether name uses the recombinant or
// multi-letter grammar, where the root is the prefix before the first dot.
func isPrefixRooted(name string) bool {
	if name[0] == 'X' && len(name) > 1 {
		return true
	}
	return multiLetterRoot.MatchString(name)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
