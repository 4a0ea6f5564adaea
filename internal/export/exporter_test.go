package export

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"memeforge/internal/config"
)

type fakeRasterizer struct {
	size          int
	guidesVisible bool
	rasterized    int
}

func newFakeRasterizer(size int) *fakeRasterizer {
	return &fakeRasterizer{size: size, guidesVisible: true}
}

func (f *fakeRasterizer) Rasterize(includeGuides bool) *image.RGBA {
	f.rasterized++
	return image.NewRGBA(image.Rect(0, 0, f.size, f.size))
}

func (f *fakeRasterizer) SetGuidesVisible(visible bool) { f.guidesVisible = visible }

// sizedEncoder emits payloads proportional to the image's longest side so
// tests can steer which ladder rung fits the budget.
func sizedEncoder(mime string, bytesPerDim int) encoderFunc {
	return func(img image.Image, quality float64) ([]byte, string, error) {
		dim := img.Bounds().Dx()
		if img.Bounds().Dy() > dim {
			dim = img.Bounds().Dy()
		}
		return bytes.Repeat([]byte{0xAB}, dim*bytesPerDim), mime, nil
	}
}

func failingEncoder() encoderFunc {
	return func(img image.Image, quality float64) ([]byte, string, error) {
		return nil, "", errors.New("encoder broken")
	}
}

func testExportConfig(maxBytes int64) config.ExportConfig {
	return config.ExportConfig{
		MaxBytes: maxBytes,
		Presets: []config.ExportPreset{
			{MaxDim: 600, Quality: 0.75},
			{MaxDim: 500, Quality: 0.65},
			{MaxDim: 400, Quality: 0.55},
		},
		Fallback: config.ExportPreset{MaxDim: 400, Quality: 0.5},
	}
}

func newTestExporter(maxBytes int64, encoders ...encoderFunc) *Exporter {
	return &Exporter{
		cfg:      testExportConfig(maxBytes),
		log:      zerolog.Nop(),
		encoders: encoders,
	}
}

func TestExportPicksFirstPresetWithinBudget(t *testing.T) {
	// 600 -> 6000 bytes, 500 -> 5000, 400 -> 4000. Budget admits 500 first.
	e := newTestExporter(5500, sizedEncoder("image/webp", 10))
	src := newFakeRasterizer(800)

	result, err := e.Export(context.Background(), src)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.Width != 500 || result.Height != 500 {
		t.Errorf("dimensions = %dx%d, want 500x500", result.Width, result.Height)
	}
	if result.Quality != 0.65 {
		t.Errorf("quality = %v, want 0.65", result.Quality)
	}
	if result.MIME != "image/webp" {
		t.Errorf("mime = %s, want image/webp", result.MIME)
	}
	if src.rasterized != 1 {
		t.Errorf("rasterized %d times, want 1", src.rasterized)
	}
}

func TestExportFormatFallback(t *testing.T) {
	e := newTestExporter(1<<20, failingEncoder(), sizedEncoder("image/jpeg", 1))
	src := newFakeRasterizer(800)

	result, err := e.Export(context.Background(), src)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("mime = %s, want jpeg after webp failure", result.MIME)
	}
}

func TestExportUltraCompressedFallback(t *testing.T) {
	// Nothing fits a 1-byte budget; the exporter must still produce output.
	e := newTestExporter(1, sizedEncoder("image/webp", 10))
	src := newFakeRasterizer(800)

	result, err := e.Export(context.Background(), src)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("fallback mime = %s, want image/jpeg", result.MIME)
	}
	if result.Width != 400 || result.Quality != 0.5 {
		t.Errorf("fallback = %dx@%v, want 400x@0.5", result.Width, result.Quality)
	}
	if len(result.Data) == 0 {
		t.Error("fallback produced no data")
	}
}

func TestExportRestoresGuides(t *testing.T) {
	e := newTestExporter(1<<20, sizedEncoder("image/webp", 1))
	src := newFakeRasterizer(800)

	if _, err := e.Export(context.Background(), src); err != nil {
		t.Fatalf("Export: %v", err)
	}
	if !src.guidesVisible {
		t.Error("guides not restored after export")
	}
}

func TestExportCancelled(t *testing.T) {
	e := newTestExporter(1, sizedEncoder("image/webp", 10))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Export(ctx, newFakeRasterizer(800)); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestScaleTo(t *testing.T) {
	tests := []struct {
		name   string
		w, h   int
		maxDim int
		wantW  int
		wantH  int
	}{
		{"downscale preserves ratio", 800, 400, 600, 600, 300},
		{"no-op at target", 500, 500, 500, 500, 500},
		{"magnification capped at 2x", 100, 50, 600, 200, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := image.NewRGBA(image.Rect(0, 0, tt.w, tt.h))
			got := scaleTo(src, tt.maxDim)
			b := got.Bounds()
			if b.Dx() != tt.wantW || b.Dy() != tt.wantH {
				t.Errorf("scaleTo = %dx%d, want %dx%d", b.Dx(), b.Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestDataURL(t *testing.T) {
	r := &Result{Data: []byte{1, 2, 3}, MIME: "image/webp"}
	url := r.DataURL()
	if !strings.HasPrefix(url, "data:image/webp;base64,") {
		t.Errorf("DataURL prefix wrong: %s", url)
	}
}
