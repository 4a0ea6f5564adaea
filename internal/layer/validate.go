package layer

import (
	"encoding/json"
	"fmt"
	"math"

	"memeforge/internal/errs"
)

const (
	MaxLayers        = 50
	maxContentLength = 10_000
)

// Validate checks a single sanitized layer against the save contract bounds.
func Validate(l Layer) error {
	var details []string
	fail := func(format string, args ...any) {
		details = append(details, fmt.Sprintf(format, args...))
	}

	if l.ID == "" {
		fail("id: must not be empty")
	}
	if !l.Type.Valid() {
		fail("type: invalid layer type %q", l.Type)
	}
	if len(l.Content) > maxContentLength {
		fail("content: exceeds %d characters", maxContentLength)
	}
	checkNumber := func(name string, v, min, max float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			fail("%s: must be finite", name)
			return
		}
		if v < min || v > max {
			fail("%s: %v out of range [%v, %v]", name, v, min, max)
		}
	}
	checkNumber("x", l.X, -1000, 1000)
	checkNumber("y", l.Y, -1000, 1000)
	checkNumber("scale", math.Abs(l.Scale), 0.1, 10)
	checkNumber("rotation", l.Rotation, -360, 360)
	if l.ZIndex < 0 || l.ZIndex > 100 {
		fail("zIndex: %d out of range [0, 100]", l.ZIndex)
	}
	if l.Type == KindText {
		if l.FontSize != 0 {
			checkNumber("fontSize", l.FontSize, 8, 200)
		}
		if l.StrokeWidth != 0 {
			checkNumber("strokeWidth", l.StrokeWidth, 0, 50)
		}
		if len(l.FontFamily) > 100 {
			fail("fontFamily: too long")
		}
		if len(l.TextShadow) > 500 {
			fail("textShadow: too long")
		}
	}

	if len(details) > 0 {
		return errs.Validation("invalid layer", details...)
	}
	return nil
}

// ValidateAll validates a whole payload: 1-50 layers, each individually valid
// and JSON round-trippable. Failures name the offending layer index.
func ValidateAll(layers []Layer) error {
	if len(layers) == 0 {
		return errs.Validation("at least one layer is required")
	}
	if len(layers) > MaxLayers {
		return errs.Validation(fmt.Sprintf("too many layers (maximum %d)", MaxLayers))
	}
	for i, l := range layers {
		if err := Validate(l); err != nil {
			return errs.Wrap(errs.KindValidation, fmt.Sprintf("layer %d", i+1), err)
		}
		if _, err := json.Marshal(l); err != nil {
			return errs.Wrap(errs.KindSerialization, fmt.Sprintf("layer %d cannot be serialized", i+1), err)
		}
	}
	return nil
}
