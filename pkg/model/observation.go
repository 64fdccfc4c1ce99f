// Package model defines the core data types shared across cladeview:
// lineage observations as loaded from disk, and the node-kind taxonomy
// used to partition counts during hierarchy aggregation.
package model

import (
	"fmt"
	"strings"
)

// NodeKind classifies where an observation comes from in the source
// phylogeny: a sampled leaf or an internal (ancestor-only) node.
type NodeKind string

const (
	KindSample   NodeKind = "sample"
	KindInternal NodeKind = "internal"
)

// Valid reports whether k is a recognized node kind.
func (k NodeKind) Valid() bool {
	return k == KindSample || k == KindInternal
}

// Observation is a single (lineage, count) record. Kind defaults to
// "sample" when untagged, matching how flat metadata exports usually
// omit the node-type column.
type Observation struct {
	Lineage string   `json:"lineage"`
	Count   int      `json:"count"`
	Kind    NodeKind `json:"kind,omitempty"`
	Source  string   `json:"source,omitempty"` // dataset or file the record came from
}

// Normalize trims whitespace and fills in the default kind.
func (o *Observation) Normalize() {
	o.Lineage = strings.TrimSpace(o.Lineage)
	if o.Kind == "" {
		o.Kind = KindSample
	}
}

// Validate checks structural validity. An empty lineage is allowed here
// (the hierarchy builder skips it); a negative count is not.
func (o *Observation) Validate() error {
	if o.Count < 0 {
		return fmt.Errorf("observation %q: negative count %d", o.Lineage, o.Count)
	}
	if o.Kind != "" && !o.Kind.Valid() {
		return fmt.Errorf("observation %q: unknown kind %q", o.Lineage, o.Kind)
	}
	return nil
}
