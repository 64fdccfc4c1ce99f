// Package testutil provides deterministic observation fixture generators
// and shared assertions for hierarchy tests.
package testutil

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/cladeview/cladeview/pkg/model"
)

// GeneratorConfig controls observation generation.
type GeneratorConfig struct {
	Seed     int64  // Random seed for determinism (default 42)
	MaxCount int    // Upper bound for generated counts (default 100)
	Source   string // Source tag applied to every observation
	// InternalRatio is the fraction of observations tagged internal,
	// in percent (0-100). Default 0.
	InternalRatio int
}

// DefaultConfig returns a config suitable for most tests.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:     42,
		MaxCount: 100,
	}
}

// Generator creates deterministic observation fixtures with various
// hierarchy shapes.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.MaxCount <= 0 {
		cfg.MaxCount = 100
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
}

func (g *Generator) observation(name string) model.Observation {
	kind := model.KindSample
	if g.cfg.InternalRatio > 0 && g.rng.Intn(100) < g.cfg.InternalRatio {
		kind = model.KindInternal
	}
	return model.Observation{
		Lineage: name,
		Count:   1 + g.rng.Intn(g.cfg.MaxCount),
		Kind:    kind,
		Source:  g.cfg.Source,
	}
}

// Chain generates observations along a single lineage chain:
// root, root.1, root.1.1, ... down to the given depth.
func (g *Generator) Chain(root string, depth int) []model.Observation {
	observations := make([]model.Observation, 0, depth+1)
	name := root
	observations = append(observations, g.observation(name))
	for i := 0; i < depth; i++ {
		name += ".1"
		observations = append(observations, g.observation(name))
	}
	return observations
}

// BalancedTree generates a complete tree of lineage names under root with
// the given depth and branching factor. Only leaves are observed, so
// building the forest exercises ancestor synthesis.
func (g *Generator) BalancedTree(root string, depth, branching int) []model.Observation {
	var observations []model.Observation
	var walk func(name string, level int)
	walk = func(name string, level int) {
		if level == depth {
			observations = append(observations, g.observation(name))
			return
		}
		for i := 1; i <= branching; i++ {
			walk(fmt.Sprintf("%s.%d", name, i), level+1)
		}
	}
	walk(root, 0)
	return observations
}

// SparseForest generates n observations scattered across the given roots
// at random depths, including gaps that force multi-level synthesis.
func (g *Generator) SparseForest(roots []string, n int) []model.Observation {
	observations := make([]model.Observation, 0, n)
	for i := 0; i < n; i++ {
		root := roots[g.rng.Intn(len(roots))]
		depth := g.rng.Intn(5)
		segments := make([]string, 0, depth+1)
		segments = append(segments, root)
		for d := 0; d < depth; d++ {
			segments = append(segments, fmt.Sprintf("%d", 1+g.rng.Intn(9)))
		}
		observations = append(observations, g.observation(strings.Join(segments, ".")))
	}
	return observations
}

// Recombinants generates n observations under X-prefixed recombinant roots.
func (g *Generator) Recombinants(n int) []model.Observation {
	return g.SparseForest([]string{"XBB", "XBC", "XD", "XE", "XAY"}, n)
}

// Shuffle returns a seeded permutation of the observations, leaving the
// input untouched. Useful for order-independence tests.
func (g *Generator) Shuffle(observations []model.Observation) []model.Observation {
	out := append([]model.Observation(nil), observations...)
	g.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// WriteJSONL writes observations as a JSONL file under dir and returns
// its path.
func WriteJSONL(t testing.TB, dir, name string, observations []model.Observation) string {
	t.Helper()

	var sb strings.Builder
	for _, obs := range observations {
		line, err := json.Marshal(obs)
		if err != nil {
			t.Fatalf("marshal observation: %v", err)
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}
