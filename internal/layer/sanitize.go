package layer

import "math"

type clampRange struct {
	min, max float64
}

var numericClamps = map[string]clampRange{
	"x":           {-1000, 1000},
	"y":           {-1000, 1000},
	"scale":       {0.1, 10},
	"rotation":    {-360, 360},
	"zIndex":      {0, 100},
	"fontSize":    {8, 200},
	"strokeWidth": {0, 50},
}

var numericDefaults = map[string]float64{
	"x":        50,
	"y":        50,
	"scale":    1,
	"rotation": 0,
	"zIndex":   0,
	"fontSize": 24,
}

func sanitizeNumber(field string, v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return numericDefaults[field]
	}
	if r, ok := numericClamps[field]; ok {
		if v < r.min {
			return r.min
		}
		if v > r.max {
			return r.max
		}
	}
	return v
}

// Sanitize normalizes every numeric field of a layer before serialization:
// NaN/Inf values are replaced with safe defaults and finite values are
// clamped to their valid ranges. Non-numeric fields pass through unchanged.
func Sanitize(l Layer) Layer {
	l.X = sanitizeNumber("x", l.X)
	l.Y = sanitizeNumber("y", l.Y)
	l.Scale = sanitizeNumber("scale", l.Scale)
	l.Rotation = sanitizeNumber("rotation", l.Rotation)
	l.ZIndex = int(sanitizeNumber("zIndex", float64(l.ZIndex)))
	if l.Type == KindText {
		if l.FontSize != 0 {
			l.FontSize = sanitizeNumber("fontSize", l.FontSize)
		}
		if l.StrokeWidth != 0 {
			l.StrokeWidth = sanitizeNumber("strokeWidth", l.StrokeWidth)
		}
	}
	return l
}

// SanitizeAll sanitizes a whole collection, preserving order.
func SanitizeAll(layers []Layer) []Layer {
	out := make([]Layer, len(layers))
	for i, l := range layers {
		out[i] = Sanitize(l)
	}
	return out
}

// maxInlineContent bounds layer content carried in the save payload. Larger
// content (typically pasted data URLs) is replaced by a compact placeholder;
// the visual result is already baked into the exported image.
const maxInlineContent = 9800

const ContentPlaceholder = "uploaded_asset"

// CompactContent replaces oversized or data-URL content with a placeholder so
// the layers payload stays within backend bounds.
func CompactContent(layers []Layer) []Layer {
	out := make([]Layer, len(layers))
	for i, l := range layers {
		if len(l.Content) > maxInlineContent || hasDataURLPrefix(l.Content) {
			l.Content = ContentPlaceholder
		}
		out[i] = l
	}
	return out
}

func hasDataURLPrefix(s string) bool {
	const prefix = "data:image/"
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
