package canvas

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
)

// Rasterize flattens the object graph to an RGBA bitmap at canvas size.
// Objects flagged ExcludeFromExport are drawn only when includeGuides is set
// (interactive preview); exports always omit them.
func (e *Engine) Rasterize(includeGuides bool) *image.RGBA {
	e.mu.Lock()
	objects := make([]*Object, len(e.objects))
	copy(objects, e.objects)
	size := e.cfg.Size
	e.mu.Unlock()

	dc := gg.NewContext(size, size)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for _, o := range objects {
		if !o.Visible {
			continue
		}
		if o.ExcludeFromExport {
			if includeGuides {
				drawGuide(dc, size)
			}
			continue
		}
		if o.isText() {
			drawText(dc, o, e.fonts)
		} else if o.Img != nil {
			drawImage(dc, o)
		}
	}

	rendered := dc.Image()
	if rgba, ok := rendered.(*image.RGBA); ok {
		return rgba
	}
	out := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(out, out.Bounds(), rendered, image.Point{}, draw.Src)
	return out
}

func drawImage(dc *gg.Context, o *Object) {
	b := o.Img.Bounds()
	w := float64(b.Dx())
	h := float64(b.Dy())
	if w == 0 || h == 0 || o.ScaleX == 0 || o.ScaleY == 0 {
		return
	}

	ay := 0.5
	if o.BottomOrigin {
		ay = 1.0
	}

	dc.Push()
	dc.RotateAbout(gg.Radians(o.Angle), o.Left, o.Top)
	dc.ScaleAbout(o.ScaleX, o.ScaleY, o.Left, o.Top)
	dc.DrawImageAnchored(o.Img, int(o.Left), int(o.Top), 0.5, ay)
	dc.Pop()
}

func drawText(dc *gg.Context, o *Object, fonts *fontSet) {
	if o.Text == "" || o.ScaleX == 0 {
		return
	}

	face := fonts.face(o.FontWeight, o.FontStyle, o.FontSize)
	dc.SetFontFace(face)

	dc.Push()
	defer dc.Pop()
	dc.RotateAbout(gg.Radians(o.Angle), o.Left, o.Top)
	dc.ScaleAbout(o.ScaleX, o.ScaleY, o.Left, o.Top)

	// Shadow first, beneath stroke and fill.
	if o.HasShadow {
		dc.SetColor(parseColor(o.Shadow.Color, color.RGBA{A: 128}))
		dc.DrawStringAnchored(o.Text, o.Left+o.Shadow.OffsetX, o.Top+o.Shadow.OffsetY, 0.5, 1.0)
	}

	// Stroke as offset passes around the fill, the usual raster substitute
	// for true glyph outlining.
	if o.StrokeWidth > 0 {
		dc.SetColor(parseColor(o.StrokeColor, color.White))
		n := int(math.Ceil(o.StrokeWidth))
		for dy := -n; dy <= n; dy++ {
			for dx := -n; dx <= n; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				if math.Hypot(float64(dx), float64(dy)) > o.StrokeWidth {
					continue
				}
				dc.DrawStringAnchored(o.Text, o.Left+float64(dx), o.Top+float64(dy), 0.5, 1.0)
			}
		}
	}

	dc.SetColor(parseColor(o.TextColor, color.Black))
	dc.DrawStringAnchored(o.Text, o.Left, o.Top, 0.5, 1.0)
}

// drawGuide draws the dashed bottom alignment aid.
func drawGuide(dc *gg.Context, size int) {
	dc.Push()
	dc.SetRGBA(0, 1, 0, 0.35)
	dc.SetLineWidth(1)
	dc.SetDash(6, 4)
	y := float64(size) - 1
	dc.DrawLine(0, y, float64(size), y)
	dc.Stroke()
	dc.SetDash()
	dc.Pop()
}

// parseColor understands #rgb, #rrggbb, #rrggbbaa and rgba(r,g,b,a) notations.
func parseColor(s string, fallback color.Color) color.Color {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback
	}

	if strings.HasPrefix(s, "#") {
		hex := s[1:]
		switch len(hex) {
		case 3:
			hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
		case 6, 8:
		default:
			return fallback
		}
		v, err := strconv.ParseUint(hex, 16, 64)
		if err != nil {
			return fallback
		}
		if len(hex) == 8 {
			return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
		}
		return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
	}

	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "rgba(") || strings.HasPrefix(lower, "rgb(") {
		open := strings.Index(lower, "(")
		end := strings.Index(lower, ")")
		if end <= open {
			return fallback
		}
		parts := strings.Split(lower[open+1:end], ",")
		if len(parts) < 3 {
			return fallback
		}
		parse := func(s string) float64 {
			v, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
			return v
		}
		alpha := 1.0
		if len(parts) >= 4 {
			alpha = parse(parts[3])
		}
		return color.RGBA{
			R: uint8(clamp255(parse(parts[0]))),
			G: uint8(clamp255(parse(parts[1]))),
			B: uint8(clamp255(parse(parts[2]))),
			A: uint8(clamp255(alpha * 255)),
		}
	}

	return fallback
}

func clamp255(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}
