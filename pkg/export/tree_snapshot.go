package export

import (
	"fmt"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cladeview/cladeview/pkg/hierarchy"
	"github.com/cladeview/cladeview/pkg/metrics"
	"github.com/cladeview/cladeview/pkg/palette"

	"git.sr.ht/~sbinet/gg"
	"github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"
)

// TreeSnapshotOptions controls tree snapshot export behaviour.
type TreeSnapshotOptions struct {
	Path     string            // Output path; format inferred from extension when Format empty
	Format   string            // "svg" or "png" (case-insensitive). If empty, inferred from Path.
	Title    string            // Optional title rendered in summary block
	Preset   string            // Layout preset: "compact" (default) or "roomy"
	Forest   *hierarchy.Forest // Built lineage forest to render
	DataHash string            // Hash of input observations for provenance
	MaxDepth int               // Deepest level below each root to draw, inclusive (0 = unlimited)
}

// SaveTreeSnapshot renders a static lineage tree snapshot (SVG or PNG) with a
// minimal summary block. Each node is filled with its assigned lineage color,
// so the snapshot doubles as a palette reference for the dataset.
func SaveTreeSnapshot(opts TreeSnapshotOptions) error {
	defer metrics.Timer(metrics.SnapshotRender)()

	if opts.Forest == nil || opts.Forest.Len() == 0 {
		return fmt.Errorf("no lineages to export")
	}

	format := strings.ToLower(strings.TrimPrefix(opts.Format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(opts.Path)) {
		case ".svg":
			format = "svg"
		case ".png":
			format = "png"
		default:
			format = "svg" // safe default
			if opts.Path != "" && filepath.Ext(opts.Path) == "" {
				opts.Path = opts.Path + ".svg"
			}
		}
	}
	if format != "svg" && format != "png" {
		return fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	if opts.Path == "" {
		return fmt.Errorf("output path is required")
	}

	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	layout := buildTreeLayout(opts)

	switch format {
	case "svg":
		return renderTreeSVG(opts, layout)
	case "png":
		return renderTreePNG(opts, layout)
	default:
		return fmt.Errorf("unhandled format %q", format)
	}
}

// --- layout computation ----------------------------------------------------

type treeLayoutNode struct {
	Name        string
	OwnCount    int
	TotalCount  int
	Depth       int
	Synthesized bool
	Fill        palette.RGB
	X, Y        float64
	NodeW       float64
	NodeH       float64
}

type treeLayoutEdge struct {
	From string
	To   string
}

type treeLayoutResult struct {
	Nodes   []treeLayoutNode
	Edges   []treeLayoutEdge
	Width   int
	Height  int
	Header  float64
	Summary treeSummaryInfo
}

type treeSummaryInfo struct {
	Title      string
	DataHash   string
	Lineages   int
	Roots      int
	GrandTotal int
	TopLineage string
}

func buildTreeLayout(opts TreeSnapshotOptions) treeLayoutResult {
	const (
		nodeWCompact  = 160.0
		nodeHCompact  = 52.0
		nodeWRoomy    = 185.0
		nodeHRoomy    = 64.0
		colGapCompact = 56.0
		rowGapCompact = 18.0
		colGapRoomy   = 80.0
		rowGapRoomy   = 28.0
		padding       = 36.0
		headerHeight  = 110.0
	)

	roomy := strings.EqualFold(opts.Preset, "roomy")
	nodeW := nodeWCompact
	nodeH := nodeHCompact
	colGap := colGapCompact
	rowGap := rowGapCompact
	if roomy {
		nodeW = nodeWRoomy
		nodeH = nodeHRoomy
		colGap = colGapRoomy
		rowGap = rowGapRoomy
	}

	// Pre-order walk assigns one row per node, giving an indented outline
	// shape where children sit below and right of their parent.
	var nodes []treeLayoutNode
	var edges []treeLayoutEdge
	maxDepth := 0
	row := 0
	opts.Forest.Walk(func(n *hierarchy.Node) bool {
		// Levels count from the rendered roots so focused subtrees start
		// at column zero despite their absolute lineage depth.
		level := n.Depth - n.Root().Depth
		if opts.MaxDepth > 0 && level > opts.MaxDepth {
			return false
		}
		nodes = append(nodes, treeLayoutNode{
			Name:        n.Name,
			OwnCount:    n.OwnCount,
			TotalCount:  n.TotalCount,
			Depth:       level,
			Synthesized: n.Synthesized,
			Fill:        n.Color,
			X:           padding + float64(level)*(nodeW+colGap),
			Y:           padding + headerHeight + float64(row)*(nodeH+rowGap),
			NodeW:       nodeW,
			NodeH:       nodeH,
		})
		if n.Parent != nil {
			edges = append(edges, treeLayoutEdge{From: n.Parent.Name, To: n.Name})
		}
		if level > maxDepth {
			maxDepth = level
		}
		row++
		return true
	})

	width := int(padding*2 + float64(maxDepth+1)*(nodeW+colGap) + nodeW)
	if width < 640 {
		width = 640
	}
	height := int(padding*2 + headerHeight + float64(row)*(nodeH+rowGap))
	if height < 480 {
		height = 480
	}

	top := "n/a"
	var topOwn int
	for _, n := range opts.Forest.All() {
		if n.OwnCount > topOwn || (n.OwnCount == topOwn && topOwn > 0 && n.Name < top) {
			top = n.Name
			topOwn = n.OwnCount
		}
	}
	if topOwn > 0 {
		top = fmt.Sprintf("%s (%d)", top, topOwn)
	}

	title := opts.Title
	if strings.TrimSpace(title) == "" {
		title = "Lineage Tree Snapshot"
	}

	return treeLayoutResult{
		Nodes:  nodes,
		Edges:  edges,
		Width:  width,
		Height: height,
		Header: headerHeight,
		Summary: treeSummaryInfo{
			Title:      title,
			DataHash:   opts.DataHash,
			Lineages:   opts.Forest.Len(),
			Roots:      len(opts.Forest.Roots()),
			GrandTotal: opts.Forest.GrandTotal(),
			TopLineage: top,
		},
	}
}

// --- rendering -------------------------------------------------------------

var (
	treeStroke      = color.RGBA{0x22, 0x22, 0x22, 0xff}
	treeSynthStroke = color.RGBA{0x88, 0x88, 0x88, 0xff}
	treeEdge        = color.RGBA{0x9a, 0x9a, 0x9a, 0xff}
	treeText        = color.RGBA{0x11, 0x11, 0x11, 0xff}
	treeTextLight   = color.RGBA{0xfa, 0xfa, 0xfa, 0xff}
	treeSubtle      = color.RGBA{0x66, 0x66, 0x66, 0xff}
	treeBackdrop    = color.RGBA{0xf9, 0xfa, 0xfb, 0xff}
	treeHeaderBG    = color.RGBA{0xf3, 0xf4, 0xf6, 0xff}
)

// labelColor picks dark or light text depending on fill luminance, so labels
// stay readable on both pale roots and prevalence-darkened leaves.
func labelColor(fill palette.RGB) color.RGBA {
	luma := 0.299*float64(fill.R) + 0.587*float64(fill.G) + 0.114*float64(fill.B)
	if luma < 128 {
		return treeTextLight
	}
	return treeText
}

func fillColor(fill palette.RGB) color.RGBA {
	return color.RGBA{fill.R, fill.G, fill.B, 0xff}
}

func renderTreePNG(opts TreeSnapshotOptions, layout treeLayoutResult) error {
	dc := gg.NewContext(layout.Width, layout.Height)
	dc.SetColor(treeBackdrop)
	dc.Clear()

	dc.SetColor(treeHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(layout.Width)-32, layout.Header-24, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)

	drawTreeSummaryBlock(dc, layout)

	// edges first so nodes overdraw the joints
	nodePos := make(map[string]treeLayoutNode, len(layout.Nodes))
	for _, n := range layout.Nodes {
		nodePos[n.Name] = n
	}
	dc.SetColor(treeEdge)
	dc.SetLineWidth(1.6)
	for _, e := range layout.Edges {
		from, okF := nodePos[e.From]
		to, okT := nodePos[e.To]
		if !okF || !okT {
			continue
		}
		x1 := from.X + from.NodeW/2
		y1 := from.Y + from.NodeH
		x2 := to.X
		y2 := to.Y + to.NodeH/2
		dc.DrawLine(x1, y1, x1, y2)
		dc.Stroke()
		dc.DrawLine(x1, y2, x2, y2)
		dc.Stroke()
	}

	for _, n := range layout.Nodes {
		drawTreeNode(dc, n)
	}

	return dc.SavePNG(opts.Path)
}

func renderTreeSVG(opts TreeSnapshotOptions, layout treeLayoutResult) error {
	file, err := os.Create(opts.Path)
	if err != nil {
		return err
	}
	defer file.Close()

	return renderTreeSVGToWriter(file, layout)
}

func renderTreeSVGToWriter(w io.Writer, layout treeLayoutResult) error {
	canvas := svg.New(w)
	canvas.Start(layout.Width, layout.Height)
	canvas.Rect(0, 0, layout.Width, layout.Height, fmt.Sprintf("fill:%s", cssColor(treeBackdrop)))
	canvas.Roundrect(16, 16, layout.Width-32, int(layout.Header-24), 10, 10, fmt.Sprintf("fill:%s", cssColor(treeHeaderBG)))

	drawTreeSummaryBlockSVG(canvas, layout)

	nodePos := make(map[string]treeLayoutNode, len(layout.Nodes))
	for _, n := range layout.Nodes {
		nodePos[n.Name] = n
	}

	for _, e := range layout.Edges {
		from, okF := nodePos[e.From]
		to, okT := nodePos[e.To]
		if !okF || !okT {
			continue
		}
		x1 := int(from.X + from.NodeW/2)
		y1 := int(from.Y + from.NodeH)
		x2 := int(to.X)
		y2 := int(to.Y + to.NodeH/2)
		style := fmt.Sprintf("stroke:%s;stroke-width:1.6;fill:none", cssColor(treeEdge))
		canvas.Line(x1, y1, x1, y2, style)
		canvas.Line(x1, y2, x2, y2, style)
	}

	for _, n := range layout.Nodes {
		x := int(n.X)
		y := int(n.Y)
		stroke := treeStroke
		dash := ""
		if n.Synthesized {
			stroke = treeSynthStroke
			dash = ";stroke-dasharray:4 3"
		}
		canvas.Roundrect(x, y, int(n.NodeW), int(n.NodeH), 8, 8,
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1.2%s", n.Fill.Hex(), cssColor(stroke), dash))
		text := cssColor(labelColor(n.Fill))
		canvas.Text(x+10, y+20, n.Name, fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", text))
		canvas.Text(x+10, y+38, countLabel(n), fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace", text))
	}

	canvas.End()
	return nil
}

func countLabel(n treeLayoutNode) string {
	if n.Synthesized && n.OwnCount == 0 {
		return fmt.Sprintf("total %d (inferred)", n.TotalCount)
	}
	return fmt.Sprintf("own %d  total %d", n.OwnCount, n.TotalCount)
}

func drawTreeNode(dc *gg.Context, n treeLayoutNode) {
	dc.SetColor(fillColor(n.Fill))
	dc.DrawRoundedRectangle(n.X, n.Y, n.NodeW, n.NodeH, 8)
	dc.Fill()
	stroke := treeStroke
	if n.Synthesized {
		stroke = treeSynthStroke
	}
	dc.SetColor(stroke)
	dc.SetLineWidth(1.2)
	dc.DrawRoundedRectangle(n.X, n.Y, n.NodeW, n.NodeH, 8)
	dc.Stroke()

	dc.SetColor(labelColor(n.Fill))
	dc.DrawStringAnchored(n.Name, n.X+10, n.Y+16, 0, 0.5)
	dc.DrawStringAnchored(countLabel(n), n.X+10, n.Y+34, 0, 0.5)
}

func drawTreeSummaryBlock(dc *gg.Context, layout treeLayoutResult) {
	dc.SetColor(treeText)
	dc.DrawStringAnchored(layout.Summary.Title, 32, 40, 0, 0.5)
	dc.SetColor(treeSubtle)
	dc.DrawStringAnchored(fmt.Sprintf("data_hash: %s", layout.Summary.DataHash), 32, 58, 0, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("lineages: %d  roots: %d  observations: %d",
		layout.Summary.Lineages, layout.Summary.Roots, layout.Summary.GrandTotal), 32, 76, 0, 0.5)
	dc.DrawStringAnchored(fmt.Sprintf("top lineage: %s", layout.Summary.TopLineage), 32, 94, 0, 0.5)
}

func drawTreeSummaryBlockSVG(canvas *svg.SVG, layout treeLayoutResult) {
	canvas.Text(32, 40, layout.Summary.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", cssColor(treeText)))
	canvas.Text(32, 58, fmt.Sprintf("data_hash: %s", layout.Summary.DataHash), fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", cssColor(treeSubtle)))
	canvas.Text(32, 76, fmt.Sprintf("lineages: %d  roots: %d  observations: %d",
		layout.Summary.Lineages, layout.Summary.Roots, layout.Summary.GrandTotal),
		fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", cssColor(treeSubtle)))
	canvas.Text(32, 94, fmt.Sprintf("top lineage: %s", layout.Summary.TopLineage),
		fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace", cssColor(treeSubtle)))
}

// --- helpers ---------------------------------------------------------------

func cssColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
