package canvas

import (
	"image"

	"memeforge/internal/layer"
)

// Object is the engine-owned, mutable counterpart of a Layer: it carries the
// render state (pixel position, absolute scale, decoded bitmap) that the
// serializable model deliberately does not. The two representations are
// reconciled by explicit rebuild (model to objects) and extract (objects to
// model) passes, never shared.
type Object struct {
	LayerID string
	Kind    layer.Kind
	Content string

	// Transform in canvas pixels. Left/Top locate the anchor point:
	// horizontal center, and vertical center for backgrounds or bottom for
	// everything else.
	Left, Top      float64
	ScaleX, ScaleY float64
	Angle          float64

	BottomOrigin      bool
	Selectable        bool
	Visible           bool
	ExcludeFromExport bool

	// Image objects.
	Img image.Image

	// Text objects.
	Text        string
	FontSize    float64
	FontFamily  string
	FontWeight  string
	FontStyle   string
	TextColor   string
	StrokeColor string
	StrokeWidth float64
	TextAlign   string
	Shadow      layer.Shadow
	HasShadow   bool
}

func (o *Object) isText() bool { return o.Kind == layer.KindText }

// transform is a snapshot of the user-manipulable part of an object, keyed by
// layer id and by (kind, content) so in-progress drags survive id churn
// across rebuilds.
type transform struct {
	left, top      float64
	scaleX, scaleY float64
	angle          float64
}

func (o *Object) snapshot() transform {
	return transform{left: o.Left, top: o.Top, scaleX: o.ScaleX, scaleY: o.ScaleY, angle: o.Angle}
}

func (o *Object) apply(t transform) {
	o.Left = t.left
	o.Top = t.top
	o.ScaleX = t.scaleX
	o.ScaleY = t.scaleY
	o.Angle = t.angle
}

func contentKey(kind layer.Kind, content string) string {
	return string(kind) + ":" + content
}
