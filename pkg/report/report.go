// Package report renders built lineage forests and analysis summaries as
// static terminal output. Colors degrade with the detected terminal profile
// so piped output stays plain.
package report

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/cladeview/cladeview/pkg/analysis"
	"github.com/cladeview/cladeview/pkg/hierarchy"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Options controls tree and summary rendering.
type Options struct {
	// Width is the target line width; 0 auto-detects the terminal width
	// and falls back to 100 when not a terminal.
	Width int
	// MaxDepth is the deepest level below each root to draw, inclusive
	// (0 = unlimited). Levels count from the rendered roots, so focused
	// subtrees behave the same as full forests.
	MaxDepth int
	// Color enables ANSI-styled output. Off, output is plain text.
	Color bool
	// ShowBars draws proportional prevalence bars next to each node.
	ShowBars bool
}

// DefaultOptions returns rendering options suitable for an interactive
// terminal.
func DefaultOptions() Options {
	return Options{
		Color:    true,
		ShowBars: true,
	}
}

const fallbackWidth = 100

func (o Options) width() int {
	if o.Width > 0 {
		return o.Width
	}
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		return w
	}
	return fallbackWidth
}

// Tree glyphs matching the usual ls/tree conventions.
const (
	glyphBranch = "├── "
	glyphLast   = "└── "
	glyphPipe   = "│   "
	glyphSpace  = "    "
)

// RenderTree writes the forest as an indented tree, one node per line.
// Each lineage name is styled with its assigned color; synthesized
// ancestors are marked so inferred structure is distinguishable from
// observed data.
func RenderTree(w io.Writer, f *hierarchy.Forest, opts Options) error {
	if f == nil || f.Len() == 0 {
		_, err := fmt.Fprintln(w, "(no lineages)")
		return err
	}

	width := opts.width()
	grand := f.GrandTotal()

	for _, root := range f.Roots() {
		if err := renderNode(w, root, "", 0, true, true, opts, width, grand); err != nil {
			return err
		}
	}
	return nil
}

func renderNode(w io.Writer, n *hierarchy.Node, prefix string, level int, isLast, isRoot bool, opts Options, width, grand int) error {
	if opts.MaxDepth > 0 && level > opts.MaxDepth {
		return nil
	}

	branch := ""
	childPrefix := prefix
	if !isRoot {
		if isLast {
			branch = glyphLast
			childPrefix = prefix + glyphSpace
		} else {
			branch = glyphBranch
			childPrefix = prefix + glyphPipe
		}
	}

	name := n.Name
	if n.Synthesized {
		name += " *"
	}
	if opts.Color {
		style := lipgloss.NewStyle().Foreground(ThemeFg(n.Color.Hex()))
		if n.Synthesized {
			style = style.Faint(true)
		}
		name = style.Render(name)
	}

	counts := fmt.Sprintf("own %d  total %d", n.OwnCount, n.TotalCount)
	if n.Synthesized && n.OwnCount == 0 {
		counts = fmt.Sprintf("total %d", n.TotalCount)
	}

	bar := ""
	if opts.ShowBars && grand > 0 {
		bar = " " + prevalenceBar(n.TotalCount, grand, 12)
	}

	// Truncate the visible name so long lineages never wrap. Styled names
	// carry ANSI escapes, so measure against the raw name instead.
	avail := width - runewidth.StringWidth(prefix+branch) - runewidth.StringWidth(counts) - runewidth.StringWidth(bar) - 4
	raw := n.Name
	if n.Synthesized {
		raw += " *"
	}
	if avail > 8 && runewidth.StringWidth(raw) > avail {
		truncated := runewidth.Truncate(raw, avail, "…")
		if opts.Color {
			style := lipgloss.NewStyle().Foreground(ThemeFg(n.Color.Hex()))
			if n.Synthesized {
				style = style.Faint(true)
			}
			name = style.Render(truncated)
		} else {
			name = truncated
		}
	}

	pad := avail - runewidth.StringWidth(raw)
	if pad < 1 {
		pad = 1
	}

	if _, err := fmt.Fprintf(w, "%s%s%s%s%s%s\n", prefix, branch, name, strings.Repeat(" ", pad), counts, bar); err != nil {
		return err
	}

	for i, child := range n.Children {
		if err := renderNode(w, child, childPrefix, level+1, i == len(n.Children)-1, false, opts, width, grand); err != nil {
			return err
		}
	}
	return nil
}

// prevalenceBar renders a fixed-width proportional bar.
func prevalenceBar(part, whole, cells int) string {
	if whole <= 0 || cells <= 0 {
		return ""
	}
	filled := part * cells / whole
	if filled > cells {
		filled = cells
	}
	if part > 0 && filled == 0 {
		filled = 1
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("·", cells-filled) + "]"
}

// RenderSummary writes an analysis summary block: totals, diversity
// indices, top lineages, and per-root shares.
func RenderSummary(w io.Writer, s *analysis.Summary, opts Options) error {
	if s == nil {
		_, err := fmt.Fprintln(w, "(no summary)")
		return err
	}

	header := func(text string) string {
		if opts.Color {
			return lipgloss.NewStyle().Bold(true).Render(text)
		}
		return text
	}

	fmt.Fprintln(w, header("Summary"))
	fmt.Fprintf(w, "  lineages: %d (%d observed, %d inferred)\n", s.NodeCount, s.ObservedCount, s.SynthesizedCount)
	fmt.Fprintf(w, "  roots: %d  max depth: %d  observations: %d\n", s.RootCount, s.MaxDepth, s.GrandTotal)
	fmt.Fprintf(w, "  shannon entropy: %.3f  simpson diversity: %.3f\n", s.ShannonEntropy, s.SimpsonDiversity)

	if len(s.TopLineages) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, header("Top lineages"))
		for _, lp := range s.TopLineages {
			fmt.Fprintf(w, "  %-20s %7d  %5.1f%%\n", truncateName(lp.Name, 20), lp.Count, lp.Share*100)
		}
	}

	if len(s.RootShares) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, header("Roots"))
		shares := append([]analysis.RootShare(nil), s.RootShares...)
		sort.Slice(shares, func(i, j int) bool {
			if shares[i].Total != shares[j].Total {
				return shares[i].Total > shares[j].Total
			}
			return shares[i].Root < shares[j].Root
		})
		for _, rs := range shares {
			bar := prevalenceBar(rs.Total, s.GrandTotal, 20)
			fmt.Fprintf(w, "  %-8s %7d  %5.1f%% %s\n", truncateName(rs.Root, 8), rs.Total, rs.Share*100, bar)
		}
	}

	return nil
}

func truncateName(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	return runewidth.Truncate(s, max, "…")
}
