// Package export flattens a rendered canvas into a compressed raster image
// under a byte budget, walking a descending ladder of quality/size presets
// with format fallback.
package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	"github.com/chai2010/webp"
	"github.com/rs/zerolog"
	xdraw "golang.org/x/image/draw"

	"memeforge/internal/config"
	"memeforge/internal/errs"
)

// Rasterizer is the slice of the canvas engine the exporter needs.
type Rasterizer interface {
	Rasterize(includeGuides bool) *image.RGBA
	SetGuidesVisible(visible bool)
}

type Result struct {
	Data    []byte
	MIME    string
	Width   int
	Height  int
	Quality float64
}

// DataURL encodes the result as a base64 data URL, the wire format of the
// save payload's image field.
func (r *Result) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", r.MIME, base64.StdEncoding.EncodeToString(r.Data))
}

type encoderFunc func(img image.Image, quality float64) ([]byte, string, error)

type Exporter struct {
	cfg      config.ExportConfig
	log      zerolog.Logger
	encoders []encoderFunc
}

func New(cfg config.ExportConfig, log zerolog.Logger) *Exporter {
	return &Exporter{
		cfg: cfg,
		log: log.With().Str("component", "export").Logger(),
		// webp first for the better compression, classic jpeg as fallback.
		encoders: []encoderFunc{encodeWebP, encodeJPEG},
	}
}

// Export renders the canvas once without guides and walks the preset ladder,
// returning the first candidate within the byte budget. When every preset
// overshoots, an ultra-compressed fallback is emitted unconditionally rather
// than failing. Guide visibility is restored regardless of outcome.
func (e *Exporter) Export(ctx context.Context, src Rasterizer) (*Result, error) {
	src.SetGuidesVisible(false)
	defer src.SetGuidesVisible(true)

	base := src.Rasterize(false)

	for _, preset := range e.cfg.Presets {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.KindExport, "export cancelled", err)
		}

		scaled := scaleTo(base, preset.MaxDim)
		for _, encode := range e.encoders {
			data, mime, err := encode(scaled, preset.Quality)
			if err != nil {
				e.log.Warn().Err(err).Int("max_dim", preset.MaxDim).Msg("encode failed, trying next format")
				continue
			}
			if int64(len(data)) <= e.cfg.MaxBytes {
				e.log.Info().
					Str("mime", mime).
					Int("max_dim", preset.MaxDim).
					Float64("quality", preset.Quality).
					Int("bytes", len(data)).
					Msg("export candidate accepted")
				b := scaled.Bounds()
				return &Result{Data: data, MIME: mime, Width: b.Dx(), Height: b.Dy(), Quality: preset.Quality}, nil
			}
		}
	}

	// Last resort: emit the ultra-compressed candidate even if it exceeds
	// the budget; a degraded image beats a failed save.
	fallback := e.cfg.Fallback
	scaled := scaleTo(base, fallback.MaxDim)
	data, mime, err := encodeJPEG(scaled, fallback.Quality)
	if err != nil {
		return nil, errs.Wrap(errs.KindExport, "export failed after exhausting presets", err)
	}
	e.log.Warn().Int("bytes", len(data)).Msg("using ultra-compressed export fallback")
	b := scaled.Bounds()
	return &Result{Data: data, MIME: mime, Width: b.Dx(), Height: b.Dy(), Quality: fallback.Quality}, nil
}

// scaleTo resizes so the longest side is maxDim, never magnifying more than
// 2x the source.
func scaleTo(src *image.RGBA, maxDim int) *image.RGBA {
	b := src.Bounds()
	longest := b.Dx()
	if b.Dy() > longest {
		longest = b.Dy()
	}
	if longest == 0 {
		return src
	}

	mult := math.Min(float64(maxDim)/float64(longest), 2)
	if mult == 1 {
		return src
	}

	w := int(math.Round(float64(b.Dx()) * mult))
	h := int(math.Round(float64(b.Dy()) * mult))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
	return dst
}

func encodeWebP(img image.Image, quality float64) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality * 100)}); err != nil {
		return nil, "", fmt.Errorf("webp encode: %w", err)
	}
	return buf.Bytes(), "image/webp", nil
}

func encodeJPEG(img image.Image, quality float64) ([]byte, string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: int(quality * 100)}); err != nil {
		return nil, "", fmt.Errorf("jpeg encode: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}
