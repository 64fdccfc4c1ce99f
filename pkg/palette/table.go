package palette

// baseTable maps well-known lineage roots to curated base colors. The
// single letters cover the original Pango roots; the multi-letter
// entries pin the widely reported SARS-CoV-2 families (Delta AY,
// Omicron BA and its aliases, recombinant X* lineages) to recognizable
// hues so they stay consistent across datasets. Unknown roots fall back
// to a hash-derived color, perturbed from the first letter's entry when
// one exists.
var baseTable = map[string]string{
	// Single-letter roots. Hues are spread around the wheel; no entry is
	// low-saturation.
	"A": "#e45756",
	"B": "#4c78a8",
	"C": "#f58518",
	"D": "#72b7b2",
	"E": "#54a24b",
	"F": "#eeca3b",
	"G": "#b279a2",
	"H": "#ff9da6",
	"I": "#9d755d",
	"J": "#6692ff",
	"K": "#d67195",
	"L": "#36b39c",
	"M": "#c47f29",
	"N": "#5ca453",
	"O": "#8a60c9",
	"P": "#2fa3c7",
	"Q": "#d9534f",
	"R": "#7aa644",
	"S": "#c964b8",
	"T": "#4db6ac",
	"U": "#e08e3c",
	"V": "#6f7bd9",
	"W": "#a3b83c",
	"X": "#e4572e",
	"Y": "#3f9bd0",
	"Z": "#bb6bd9",

	// Delta sublineages.
	"AY": "#d62728",

	// Omicron family and descendants.
	"BA": "#1f77b4",
	"BQ": "#17becf",
	"BF": "#3a86c8",
	"BE": "#2c6fbb",
	"CH": "#9467bd",
	"DV": "#8c564b",
	"EG": "#e377c2",
	"FL": "#bcbd22",
	"HK": "#ff7f0e",
	"HV": "#f4a259",
	"JN": "#2ca02c",
	"KP": "#41ab5d",
	"LB": "#7f3faf",
	"XEC": "#c2410c",

	// Recombinants.
	"XBB": "#e4572e",
	"XBC": "#f25c54",
	"XBF": "#ef6351",
	"XD":  "#d1495b",
	"XE":  "#c44536",
	"XF":  "#b5441f",
	"XAY": "#a63c06",
}
