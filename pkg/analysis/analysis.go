// Package analysis computes prevalence statistics over a built lineage
// forest: diversity indices, per-root shares, depth distribution, and
// top lineages. It reads the forest; it never mutates it.
package analysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/cladeview/cladeview/pkg/hierarchy"
	"github.com/cladeview/cladeview/pkg/metrics"
)

// LineagePrevalence is one lineage's weight within the dataset.
type LineagePrevalence struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Share float64 `json:"share"` // fraction of the grand total
}

// RootShare is an entire root subtree's weight within the dataset.
type RootShare struct {
	Root  string  `json:"root"`
	Total int     `json:"total"`
	Share float64 `json:"share"`
}

// Summary holds the results of a forest analysis.
type Summary struct {
	NodeCount        int `json:"node_count"`
	ObservedCount    int `json:"observed_count"`
	SynthesizedCount int `json:"synthesized_count"`
	RootCount        int `json:"root_count"`
	MaxDepth         int `json:"max_depth"`
	GrandTotal       int `json:"grand_total"`

	// ShannonEntropy and SimpsonDiversity are computed over the
	// own-count distribution of observed lineages. Entropy is in nats;
	// SimpsonDiversity is 1 - sum(p_i^2), higher means more even.
	ShannonEntropy   float64 `json:"shannon_entropy"`
	SimpsonDiversity float64 `json:"simpson_diversity"`

	// TopLineages are the k most observed exact lineages, descending
	// by own count.
	TopLineages []LineagePrevalence `json:"top_lineages"`
	// RootShares covers every root, descending by total.
	RootShares []RootShare `json:"root_shares"`
	// DepthHistogram[d] is the number of nodes at depth d.
	DepthHistogram []int `json:"depth_histogram"`
}

// DefaultTopK is the number of top lineages reported when unspecified.
const DefaultTopK = 10

// Analyze summarizes a built forest. topK <= 0 uses DefaultTopK.
func Analyze(f *hierarchy.Forest, topK int) *Summary {
	defer metrics.Timer(metrics.AnalyzeForest)()

	if topK <= 0 {
		topK = DefaultTopK
	}

	s := &Summary{
		NodeCount:  f.Len(),
		RootCount:  len(f.Roots()),
		MaxDepth:   f.MaxDepth(),
		GrandTotal: f.GrandTotal(),
	}
	if s.NodeCount == 0 {
		return s
	}

	s.DepthHistogram = make([]int, s.MaxDepth+1)

	var observed []*hierarchy.Node
	f.Walk(func(n *hierarchy.Node) bool {
		s.DepthHistogram[n.Depth]++
		if n.Synthesized {
			s.SynthesizedCount++
		} else {
			s.ObservedCount++
			observed = append(observed, n)
		}
		return true
	})

	if s.GrandTotal > 0 {
		// Own-count distribution over observed lineages.
		probs := make([]float64, 0, len(observed))
		for _, n := range observed {
			if n.OwnCount > 0 {
				probs = append(probs, float64(n.OwnCount)/float64(s.GrandTotal))
			}
		}
		if len(probs) > 0 {
			s.ShannonEntropy = stat.Entropy(probs)
			sumSq := 0.0
			for _, p := range probs {
				sumSq += p * p
			}
			s.SimpsonDiversity = 1 - sumSq
		}
	}

	// Top lineages by own count.
	sort.SliceStable(observed, func(i, j int) bool {
		if observed[i].OwnCount != observed[j].OwnCount {
			return observed[i].OwnCount > observed[j].OwnCount
		}
		return observed[i].Name < observed[j].Name
	})
	for i := 0; i < len(observed) && i < topK; i++ {
		n := observed[i]
		share := 0.0
		if s.GrandTotal > 0 {
			share = float64(n.OwnCount) / float64(s.GrandTotal)
		}
		s.TopLineages = append(s.TopLineages, LineagePrevalence{
			Name:  n.Name,
			Count: n.OwnCount,
			Share: share,
		})
	}

	for _, r := range f.Roots() {
		share := 0.0
		if s.GrandTotal > 0 {
			share = float64(r.TotalCount) / float64(s.GrandTotal)
		}
		s.RootShares = append(s.RootShares, RootShare{
			Root:  r.Name,
			Total: r.TotalCount,
			Share: share,
		})
	}

	return s
}
