// Package palette deterministically assigns display colors to lineage
// names. Colors are pure functions of (name, prevalence): the same name
// always maps to the same color, children are perturbations of their
// root's color, deeper lineages trend lighter, and more prevalent
// lineages render darker and more saturated. Output is guaranteed to
// stay away from gray so every lineage remains legible against both
// light and dark backgrounds.
package palette

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/cladeview/cladeview/pkg/lineage"
)

// RGB is a display color with 8-bit channels.
type RGB struct {
	R, G, B uint8
}

// Hex returns the lowercase #rrggbb form.
func (c RGB) Hex() string {
	const hexdigits = "0123456789abcdef"
	out := []byte{'#', 0, 0, 0, 0, 0, 0}
	for i, v := range [3]uint8{c.R, c.G, c.B} {
		out[1+2*i] = hexdigits[v>>4]
		out[2+2*i] = hexdigits[v&0xf]
	}
	return string(out)
}

// ParseHex parses a #rrggbb string into an RGB. The leading '#' is
// optional.
func ParseHex(s string) (RGB, bool) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return RGB{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		hi, okH := hexNibble(s[2*i])
		lo, okL := hexNibble(s[2*i+1])
		if !okH || !okL {
			return RGB{}, false
		}
		ch[i] = hi<<4 | lo
	}
	return RGB{R: ch[0], G: ch[1], B: ch[2]}, true
}

func hexNibble(b byte) (uint8, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	}
	return 0, false
}

// Prevalence carries the aggregated weight of a lineage within a built
// forest, used to darken dominant lineages.
type Prevalence struct {
	OwnTotal   float64 // the lineage's total count (own + descendants)
	GrandTotal float64 // sum of totals across all roots
}

// Unknown is the neutral sentinel returned for the empty name only. It
// is the one legitimate gray; real names are always pushed away from it.
var Unknown = RGB{R: 128, G: 128, B: 128}

// Prevalence caps: the darkening term saturates once a lineage reaches
// this share of the grand total. Roots saturate earlier than sublineages
// so a dominant root does not blacken its whole subtree.
const (
	rootPrevalenceCap = 0.2
	deepPrevalenceCap = 0.3
)

// antiGrayStdDev is the minimum channel standard deviation a real name's
// color must have. Anything flatter is replaced by a hash-derived
// vibrant fallback.
const antiGrayStdDev = 14.0

// minSaturation is the legibility floor applied to root colors.
const minSaturation = 0.35

// Assigner computes colors, optionally consulting per-root overrides
// (e.g. from user configuration) before the built-in table. The zero
// value is usable and equivalent to the package-level functions.
type Assigner struct {
	overrides map[string]RGB
}

// NewAssigner returns an Assigner whose overrides take precedence over
// the curated base table. The map is keyed by root name ("BA", "XBB").
func NewAssigner(overrides map[string]RGB) *Assigner {
	return &Assigner{overrides: overrides}
}

var defaultAssigner Assigner

// ColorFor returns the deterministic color for a lineage name without
// prevalence emphasis.
func ColorFor(name string) RGB {
	return defaultAssigner.ColorFor(name)
}

// ColorForWithPrevalence returns the color for a lineage name, darkened
// and saturated in proportion to its share of the grand total.
func ColorForWithPrevalence(name string, p Prevalence) RGB {
	return defaultAssigner.ColorForWithPrevalence(name, p)
}

// ColorFor returns the deterministic color for a lineage name.
func (a *Assigner) ColorFor(name string) RGB {
	return a.colorFor(name, nil)
}

// ColorForWithPrevalence is ColorFor with prevalence emphasis applied.
func (a *Assigner) ColorForWithPrevalence(name string, p Prevalence) RGB {
	return a.colorFor(name, &p)
}

func (a *Assigner) colorFor(name string, p *Prevalence) RGB {
	if name == "" {
		return Unknown
	}

	d := lineage.Parse(name)
	root := d.Segments[0]
	h, s, l := a.baseHSL(root)

	if d.Depth > 0 {
		// Deeper lineages trend lighter, bounded so text stays readable.
		l = math.Min(0.80, l+0.05*float64(d.Depth))

		// Per-segment jitter so siblings differ visibly. Keyed off the
		// segment value and its position; purely deterministic.
		for i, seg := range d.Segments[1:] {
			hseg := weightedHash(seg) + uint32(i)*2654435761
			h += float64(hseg%29) - 14.0
			l += float64(hseg/29%9)/100.0 - 0.04
		}
	}

	if p != nil && p.GrandTotal > 0 {
		capShare := rootPrevalenceCap
		if d.Depth > 0 {
			capShare = deepPrevalenceCap
		}
		share := math.Min(1, p.OwnTotal/p.GrandTotal/capShare)
		l -= 0.18 * share
		s += 0.15 * share
	}

	if s < minSaturation {
		s = minSaturation
	}
	c := clampHSL(h, s, l)

	// Final legibility check: reject near-gray output.
	if channelStdDev(c) < antiGrayStdDev {
		return vibrantFallback(name)
	}
	return c
}

// baseHSL resolves the base color for a root name: override, curated
// table, first-letter perturbation, then pure hash fallback.
func (a *Assigner) baseHSL(root string) (h, s, l float64) {
	if c, ok := a.overrides[root]; ok {
		return rgbToHSL(c)
	}
	if hex, ok := baseTable[root]; ok {
		return hexToHSL(hex)
	}
	if len(root) > 1 {
		if hex, ok := baseTable[root[:1]]; ok {
			// Unknown multi-letter root: start from the first letter's
			// color and shift hue/lightness by the remaining letters.
			h, s, l = hexToHSL(hex)
			hs := weightedHash(root[1:])
			h += float64(hs%97) - 48.0
			l += float64(hs/97%11)/100.0 - 0.05
			return h, s, l
		}
	}
	hs := weightedHash(root)
	return float64(hs % 360), 0.72, 0.50
}

// vibrantFallback derives a high-saturation color from the full name.
func vibrantFallback(name string) RGB {
	hs := weightedHash(name)
	return clampHSL(float64(hs%360), 0.78, 0.52)
}

// weightedHash is a character-weighted string hash (position-sensitive,
// FNV-flavored) used for all deterministic color derivation.
func weightedHash(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i]) * uint32(i+1)
		h *= 16777619
	}
	return h
}

func clampHSL(h, s, l float64) RGB {
	h = math.Mod(math.Mod(h, 360)+360, 360)
	s = math.Max(0, math.Min(1, s))
	l = math.Max(0.08, math.Min(0.92, l))
	r, g, b := colorful.Hsl(h, s, l).Clamped().RGB255()
	return RGB{R: r, G: g, B: b}
}

func rgbToHSL(c RGB) (h, s, l float64) {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hsl()
}

func hexToHSL(hex string) (h, s, l float64) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return 0, 0.72, 0.50
	}
	return c.Hsl()
}

func channelStdDev(c RGB) float64 {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	mean := (r + g + b) / 3
	v := ((r-mean)*(r-mean) + (g-mean)*(g-mean) + (b-mean)*(b-mean)) / 3
	return math.Sqrt(v)
}
