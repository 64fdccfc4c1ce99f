package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"syscall"

	json "github.com/goccy/go-json"

	"github.com/cladeview/cladeview/internal/datasource"
	"github.com/cladeview/cladeview/pkg/analysis"
	"github.com/cladeview/cladeview/pkg/config"
	"github.com/cladeview/cladeview/pkg/export"
	"github.com/cladeview/cladeview/pkg/hierarchy"
	"github.com/cladeview/cladeview/pkg/lineage"
	"github.com/cladeview/cladeview/pkg/loader"
	"github.com/cladeview/cladeview/pkg/metrics"
	"github.com/cladeview/cladeview/pkg/model"
	"github.com/cladeview/cladeview/pkg/palette"
	"github.com/cladeview/cladeview/pkg/report"
	"github.com/cladeview/cladeview/pkg/version"
	"github.com/cladeview/cladeview/pkg/watcher"
)

func main() {
	cpuProfile := flag.String("cpu-profile", "", "Write CPU profile to file")
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")

	input := flag.String("input", "", "Observation input: a .jsonl file, a .db file, or a clades directory (default: auto-discover)")
	dataset := flag.String("dataset", "", "Load a named dataset from the config file")
	allDatasets := flag.Bool("all-datasets", false, "Load and merge every dataset from the config file")

	format := flag.String("format", "", "Output format: tree, summary, or json (default from config)")
	topK := flag.Int("top", 0, "Number of top lineages in summaries (default from config)")
	maxDepth := flag.Int("max-depth", 0, "Deepest level to render (0 = unlimited)")
	noBars := flag.Bool("no-bars", false, "Disable prevalence bars in tree output")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	rootFilter := flag.String("root", "", "Restrict output to the subtree under this lineage")

	relate := flag.String("relate", "", "Print the relationship between two lineages given as 'A,B' and exit")

	snapshot := flag.String("snapshot", "", "Write an SVG or PNG tree snapshot to this path")
	exportDir := flag.String("export-sqlite", "", "Export observations and the built forest to a SQLite database in this directory")
	watch := flag.Bool("watch", false, "Re-render whenever the input file changes")
	flag.Parse()

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Could not create CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			fmt.Fprintf(os.Stderr, "Could not start CPU profile: %v\n", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
	}

	if *help {
		fmt.Println("Usage: cladeview [options]")
		fmt.Println("\nA lineage hierarchy viewer for dotted clade names.")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("cladeview %s\n", version.Version)
		os.Exit(0)
	}

	if *relate != "" {
		runRelate(*relate)
		os.Exit(0)
	}

	appCfg, cfgErr := config.Load()
	if cfgErr != nil {
		// Non-fatal: continue with defaults
		appCfg = config.DefaultConfig()
	}

	opts := renderSettings(appCfg, *format, *topK, *maxDepth, *noBars, *noColor)

	observations, inputPath, err := loadObservations(appCfg, *input, *dataset, *allDatasets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading observations: %v\n", err)
		fmt.Fprintln(os.Stderr, "Provide --input or run inside a directory with a .clades data dir.")
		os.Exit(1)
	}
	if len(observations) == 0 {
		fmt.Println("No observations found.")
		os.Exit(0)
	}

	assigner := assignerFromConfig(appCfg)

	render := func(observations []model.Observation) error {
		forest := hierarchy.Build(observations, hierarchy.WithAssigner(assigner))

		if *rootFilter != "" {
			var ok bool
			forest, ok = subtreeForest(forest, *rootFilter, assigner)
			if !ok {
				return fmt.Errorf("lineage %q not found", *rootFilter)
			}
		}

		if *snapshot != "" {
			err := export.SaveTreeSnapshot(export.TreeSnapshotOptions{
				Path:     *snapshot,
				Forest:   forest,
				DataHash: export.HashObservations(observations),
				MaxDepth: opts.maxDepth,
			})
			if err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Wrote snapshot to %s\n", *snapshot)
		}

		if *exportDir != "" {
			summary := analysis.Analyze(forest, opts.topK)
			exporter := export.NewSQLiteExporter(observations, forest, summary)
			if err := exporter.Export(*exportDir); err != nil {
				return fmt.Errorf("sqlite export: %w", err)
			}
			fmt.Fprintf(os.Stderr, "Exported database to %s\n", filepath.Join(*exportDir, "observations.db"))
		}

		return renderOutput(forest, opts)
	}

	if err := render(observations); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *watch {
		if inputPath == "" {
			fmt.Fprintln(os.Stderr, "Error: --watch requires a file input")
			os.Exit(2)
		}
		if err := watchAndRender(inputPath, render); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if metrics.ReportRequested() {
		metrics.WriteReport(os.Stderr)
	}
}

type settings struct {
	format   string
	topK     int
	maxDepth int
	bars     bool
	color    bool
}

func renderSettings(cfg config.Config, format string, topK, maxDepth int, noBars, noColor bool) settings {
	s := settings{
		format:   cfg.Report.Format,
		topK:     cfg.Report.TopK,
		maxDepth: cfg.Report.MaxDepth,
		bars:     cfg.ShowBars(),
		color:    true,
	}
	if s.format == "" {
		s.format = "tree"
	}
	if s.topK <= 0 {
		s.topK = analysis.DefaultTopK
	}
	if format != "" {
		s.format = format
	}
	if topK > 0 {
		s.topK = topK
	}
	if maxDepth > 0 {
		s.maxDepth = maxDepth
	}
	if noBars {
		s.bars = false
	}
	if noColor {
		s.color = false
	}
	return s
}

func (s settings) reportOptions() report.Options {
	return report.Options{
		MaxDepth: s.maxDepth,
		Color:    s.color,
		ShowBars: s.bars,
	}
}

// loadObservations resolves the input source. The returned path is the
// concrete file backing the data, when there is one, for --watch.
func loadObservations(cfg config.Config, input, dataset string, allDatasets bool) ([]model.Observation, string, error) {
	switch {
	case allDatasets:
		if len(cfg.Datasets) == 0 {
			return nil, "", fmt.Errorf("no datasets configured")
		}
		ml := loader.NewMultiLoader(loader.ParseOptions{})
		datasets := make([]loader.Dataset, 0, len(cfg.Datasets))
		for _, d := range cfg.Datasets {
			path := d.ResolvedPath()
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				if p, err := loader.FindJSONLPath(path); err == nil {
					path = p
				}
			}
			datasets = append(datasets, loader.Dataset{Name: d.Name, Path: path})
		}
		merged, results, err := ml.LoadAll(context.Background(), datasets)
		if err != nil {
			return nil, "", err
		}
		for _, r := range results {
			if r.Error != nil {
				fmt.Fprintf(os.Stderr, "Warning: dataset %s: %v\n", r.Name, r.Error)
			}
		}
		return merged, "", nil

	case dataset != "":
		d := cfg.FindDataset(dataset)
		if d == nil {
			return nil, "", fmt.Errorf("dataset %q not in config", dataset)
		}
		return loadFromPath(d.ResolvedPath())

	case input != "":
		return loadFromPath(input)

	default:
		observations, err := datasource.LoadObservations("")
		if err != nil {
			return nil, "", err
		}
		cladesDir, dirErr := loader.GetCladesDir("")
		path := ""
		if dirErr == nil {
			if p, err := loader.FindJSONLPath(cladesDir); err == nil {
				path = p
			}
		}
		return observations, path, nil
	}
}

func loadFromPath(path string) ([]model.Observation, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", err
	}

	if info.IsDir() {
		observations, err := datasource.LoadObservationsFromDir(path)
		if err != nil {
			return nil, "", err
		}
		filePath := ""
		if p, err := loader.FindJSONLPath(path); err == nil {
			filePath = p
		}
		return observations, filePath, nil
	}

	if strings.HasSuffix(path, ".db") || strings.HasSuffix(path, ".sqlite3") {
		observations, err := datasource.LoadFromSource(datasource.DataSource{
			Type: datasource.SourceTypeSQLite,
			Path: path,
		})
		return observations, path, err
	}

	observations, err := loader.LoadObservationsFromFile(path)
	return observations, path, err
}

func assignerFromConfig(cfg config.Config) *palette.Assigner {
	if len(cfg.Palette.RootOverrides) == 0 {
		return palette.NewAssigner(nil)
	}
	overrides := make(map[string]palette.RGB, len(cfg.Palette.RootOverrides))
	for root, hex := range cfg.Palette.RootOverrides {
		if c, ok := palette.ParseHex(hex); ok {
			overrides[root] = c
		}
	}
	return palette.NewAssigner(overrides)
}

// subtreeForest rebuilds a forest limited to the subtree under name so
// counts, sorting, and prevalence colors stay self-consistent.
func subtreeForest(f *hierarchy.Forest, name string, assigner *palette.Assigner) (*hierarchy.Forest, bool) {
	nodes := f.Subtree(name)
	if nodes == nil {
		return nil, false
	}

	observations := make([]model.Observation, 0, len(nodes))
	for _, n := range nodes {
		if n.OwnCount == 0 {
			continue
		}
		if n.SampleCount > sumChildField(n, func(c *hierarchy.Node) int { return c.SampleCount }) {
			observations = append(observations, model.Observation{
				Lineage: n.Name,
				Count:   n.SampleCount - sumChildField(n, func(c *hierarchy.Node) int { return c.SampleCount }),
				Kind:    model.KindSample,
			})
		}
		if own := n.InternalCount - sumChildField(n, func(c *hierarchy.Node) int { return c.InternalCount }); own > 0 {
			observations = append(observations, model.Observation{
				Lineage: n.Name,
				Count:   own,
				Kind:    model.KindInternal,
			})
		}
	}
	return hierarchy.Build(observations,
		hierarchy.WithAssigner(assigner),
		hierarchy.WithSubtreeRoot(name),
	), true
}

func sumChildField(n *hierarchy.Node, field func(*hierarchy.Node) int) int {
	sum := 0
	for _, c := range n.Children {
		sum += field(c)
	}
	return sum
}

func renderOutput(forest *hierarchy.Forest, opts settings) error {
	switch opts.format {
	case "tree":
		return report.RenderTree(os.Stdout, forest, opts.reportOptions())

	case "summary":
		summary := analysis.Analyze(forest, opts.topK)
		if err := report.RenderTree(os.Stdout, forest, opts.reportOptions()); err != nil {
			return err
		}
		fmt.Println()
		return report.RenderSummary(os.Stdout, summary, opts.reportOptions())

	case "json":
		summary := analysis.Analyze(forest, opts.topK)
		out := struct {
			Summary  *analysis.Summary `json:"summary"`
			Lineages []jsonNode        `json:"lineages"`
		}{
			Summary:  summary,
			Lineages: jsonNodes(forest),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)

	default:
		return fmt.Errorf("unknown format %q (want tree, summary, or json)", opts.format)
	}
}

type jsonNode struct {
	Name          string `json:"name"`
	Parent        string `json:"parent,omitempty"`
	Depth         int    `json:"depth"`
	OwnCount      int    `json:"own_count"`
	TotalCount    int    `json:"total_count"`
	SampleCount   int    `json:"sample_count"`
	InternalCount int    `json:"internal_count"`
	TotalTaxa     int    `json:"total_taxa"`
	Synthesized   bool   `json:"synthesized,omitempty"`
	Color         string `json:"color"`
}

func jsonNodes(f *hierarchy.Forest) []jsonNode {
	nodes := make([]jsonNode, 0, f.Len())
	f.Walk(func(n *hierarchy.Node) bool {
		jn := jsonNode{
			Name:          n.Name,
			Depth:         n.Depth,
			OwnCount:      n.OwnCount,
			TotalCount:    n.TotalCount,
			SampleCount:   n.SampleCount,
			InternalCount: n.InternalCount,
			TotalTaxa:     n.TotalTaxa,
			Synthesized:   n.Synthesized,
			Color:         n.Color.Hex(),
		}
		if n.Parent != nil {
			jn.Parent = n.Parent.Name
		}
		nodes = append(nodes, jn)
		return true
	})
	return nodes
}

func runRelate(arg string) {
	parts := strings.Split(arg, ",")
	if len(parts) != 2 {
		fmt.Fprintln(os.Stderr, "Error: --relate wants two lineages, e.g. --relate B.1,B.1.1.529")
		os.Exit(2)
	}
	a := strings.TrimSpace(parts[0])
	b := strings.TrimSpace(parts[1])

	rel := lineage.Relate(a, b)
	switch rel {
	case lineage.RelationSelf:
		fmt.Printf("%s and %s are the same lineage\n", a, b)
	case lineage.RelationAncestor:
		fmt.Printf("%s is an ancestor of %s\n", a, b)
	case lineage.RelationDescendant:
		fmt.Printf("%s is a descendant of %s\n", a, b)
	default:
		fmt.Printf("%s and %s are unrelated\n", a, b)
	}
}

func watchAndRender(path string, render func([]model.Observation) error) error {
	w, err := watcher.New(path)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	fmt.Fprintf(os.Stderr, "Watching %s (Ctrl-C to stop)\n", path)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-sigCh:
			return nil

		case <-w.Changed():
			observations, _, err := loadFromPath(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Reload error: %v\n", err)
				continue
			}
			// ANSI clear so each rebuild replaces the previous tree.
			fmt.Print("\033[2J\033[H")
			if err := render(observations); err != nil {
				fmt.Fprintf(os.Stderr, "Render error: %v\n", err)
			}
		}
	}
}
