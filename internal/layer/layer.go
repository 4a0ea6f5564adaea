// Package layer holds the serializable meme composition model: positioned,
// scaled, rotated visual or text elements ordered by z-index. The JSON shape
// of Layer is the wire format for save payloads and must survive the
// sanitize/validate round trip unchanged.
package layer

import (
	"encoding/json"

	"github.com/segmentio/ksuid"
)

type Kind string

const (
	KindBackground Kind = "background"
	KindBody       Kind = "body"
	KindHead       Kind = "head"
	KindProp       Kind = "prop"
	KindText       Kind = "text"
)

func (k Kind) Valid() bool {
	switch k {
	case KindBackground, KindBody, KindHead, KindProp, KindText:
		return true
	}
	return false
}

// Layer is one element of a meme composition. X and Y are percentage
// coordinates of the canvas (0-100 nominal, may exceed during drag). Scale is
// a pure user-intent multiplier on top of the engine's base scale; a negative
// sign encodes a horizontal flip. Text fields apply only when Type is text.
type Layer struct {
	ID       string  `json:"id"`
	Type     Kind    `json:"type"`
	Content  string  `json:"content"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Scale    float64 `json:"scale"`
	Rotation float64 `json:"rotation"`
	ZIndex   int     `json:"zIndex"`

	FontSize    float64 `json:"fontSize,omitempty"`
	FontFamily  string  `json:"fontFamily,omitempty"`
	FontWeight  string  `json:"fontWeight,omitempty"`
	FontStyle   string  `json:"fontStyle,omitempty"`
	TextColor   string  `json:"textColor,omitempty"`
	StrokeColor string  `json:"strokeColor,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
	TextAlign   string  `json:"textAlign,omitempty"`
	TextShadow  string  `json:"textShadow,omitempty"`
}

// NewID returns a collision-resistant id for a new layer.
func NewID() string {
	return ksuid.New().String()
}

// MaxZIndex returns the highest z-index in the collection, or -1 when empty.
func MaxZIndex(layers []Layer) int {
	max := -1
	for _, l := range layers {
		if l.ZIndex > max {
			max = l.ZIndex
		}
	}
	return max
}

// Shadow is the JSON-encoded text shadow configuration stored in
// Layer.TextShadow. An empty TextShadow string means no shadow.
type Shadow struct {
	Enabled bool    `json:"enabled"`
	Color   string  `json:"color"`
	Blur    float64 `json:"blur"`
	OffsetX float64 `json:"offsetX"`
	OffsetY float64 `json:"offsetY"`
}

func DefaultShadow() Shadow {
	return Shadow{Enabled: true, Color: "rgba(0,0,0,0.5)", Blur: 5, OffsetX: 2, OffsetY: 2}
}

// ParseShadow decodes a TextShadow config. Malformed input falls back to the
// default shadow, matching how legacy string-flag configs were handled.
func ParseShadow(raw string) (Shadow, bool) {
	if raw == "" {
		return Shadow{}, false
	}
	var s Shadow
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return DefaultShadow(), true
	}
	if !s.Enabled {
		return Shadow{}, false
	}
	if s.Color == "" {
		s.Color = "rgba(0,0,0,0.5)"
	}
	return s, true
}

func (s Shadow) Encode() string {
	if !s.Enabled {
		return ""
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(raw)
}
