package canvas

import (
	"context"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"memeforge/internal/assets"
	"memeforge/internal/config"
	"memeforge/internal/imagecache"
	"memeforge/internal/layer"
)

// opaqueLoader serves fully opaque 200x100 bitmaps so alpha cropping is a
// no-op and scale math stays predictable.
type opaqueLoader struct{}

func (opaqueLoader) Load(ctx context.Context, url string) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	return img, nil
}

func testConfig() config.CanvasConfig {
	return config.CanvasConfig{
		Size:                 400,
		FitRatio:             0.6,
		AlphaThreshold:       24,
		AlphaBottomThreshold: 180,
		SelectRadius:         25,
		RenderDebounce:       time.Millisecond,
		SyncDebounce:         time.Millisecond,
		CacheMaxEntries:      20,
		CacheMaxBytes:        50 * 1024 * 1024,
	}
}

func newTestEngine() *Engine {
	cache := imagecache.New(opaqueLoader{}, 20, 50*1024*1024)
	return NewEngine(testConfig(), zerolog.Nop(), cache, assets.NewResolver(""))
}

func renderable(id string, kind layer.Kind, content string, x, y, scale float64, z int) layer.Layer {
	return layer.Layer{ID: id, Type: kind, Content: content, X: x, Y: y, Scale: scale, ZIndex: z}
}

func find(objects []*Object, layerID string) *Object {
	for _, o := range objects {
		if o.LayerID == layerID {
			return o
		}
	}
	return nil
}

func almostEqual(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestRenderOrdersByZIndex(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	e.Render(context.Background(), []layer.Layer{
		renderable("top", layer.KindProp, "trophy", 50, 50, 1, 5),
		renderable("bg", layer.KindBackground, "meme", 50, 50, 1, 0),
		renderable("mid", layer.KindBody, "pop_body", 50, 60, 1, 2),
	})

	objects := e.Objects()
	if len(objects) != 4 { // 3 layers + guide
		t.Fatalf("got %d objects, want 4", len(objects))
	}
	wantOrder := []string{"bg", "mid", "top"}
	for i, id := range wantOrder {
		if objects[i].LayerID != id {
			t.Errorf("object %d = %s, want %s", i, objects[i].LayerID, id)
		}
	}
	if !objects[3].ExcludeFromExport {
		t.Error("last object should be the export-excluded guide")
	}
}

func TestBackgroundCoverScale(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	e.Render(context.Background(), []layer.Layer{
		renderable("bg", layer.KindBackground, "meme", 50, 50, 1, 0),
	})

	bg := find(e.Objects(), "bg")
	if bg == nil {
		t.Fatal("background missing")
	}
	// 200x100 source on a 400 canvas: cover scale is max(2, 4) = 4.
	if !almostEqual(bg.ScaleX, 4) || !almostEqual(bg.ScaleY, 4) {
		t.Errorf("background scale = %v/%v, want 4/4", bg.ScaleX, bg.ScaleY)
	}
	if !almostEqual(bg.Left, 200) || !almostEqual(bg.Top, 200) {
		t.Errorf("background anchored at %v/%v, want canvas center", bg.Left, bg.Top)
	}
	if bg.Selectable {
		t.Error("background must not be selectable")
	}
	if base, _ := e.BaseScale("bg"); !almostEqual(base, 4) {
		t.Errorf("base scale = %v, want 4", base)
	}
}

func TestImageFitScale(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	e.Render(context.Background(), []layer.Layer{
		renderable("body", layer.KindBody, "pop_body", 50, 65, 2, 1),
	})

	body := find(e.Objects(), "body")
	if body == nil {
		t.Fatal("body missing")
	}
	// Fit inside 60% of 400 = 240: min(240/200, 240/100) = 1.2, times the
	// user multiplier 2.
	if !almostEqual(body.ScaleX, 2.4) || !almostEqual(body.ScaleY, 2.4) {
		t.Errorf("body scale = %v/%v, want 2.4/2.4", body.ScaleX, body.ScaleY)
	}
	if !body.BottomOrigin || !body.Selectable {
		t.Error("foreground objects are bottom-anchored and selectable")
	}
}

func TestNegativeScaleEncodesFlip(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	e.Render(context.Background(), []layer.Layer{
		renderable("head", layer.KindHead, "pop_head", 50, 40, -1, 1),
	})

	head := find(e.Objects(), "head")
	if head == nil {
		t.Fatal("head missing")
	}
	if head.ScaleX >= 0 {
		t.Errorf("ScaleX = %v, want negative for flip", head.ScaleX)
	}
	if head.ScaleY <= 0 {
		t.Errorf("ScaleY = %v, want positive magnitude", head.ScaleY)
	}

	synced := e.SyncLayers()
	if len(synced) != 1 || !almostEqual(synced[0].Scale, -1) {
		t.Errorf("synced scale = %v, want -1", synced[0].Scale)
	}
}

func TestSyncRoundTrip(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	in := []layer.Layer{
		renderable("bg", layer.KindBackground, "meme", 50, 50, 1, 0),
		renderable("body", layer.KindBody, "pop_body", 30, 65, 1.5, 1),
		{ID: "cap", Type: layer.KindText, Content: "GG", X: 50, Y: 15, Scale: 1.2, ZIndex: 2, FontSize: 32, StrokeWidth: 3},
	}
	e.Render(context.Background(), in)

	out := e.SyncLayers()
	if len(out) != 3 {
		t.Fatalf("synced %d layers, want 3", len(out))
	}
	byID := map[string]layer.Layer{}
	for _, l := range out {
		byID[l.ID] = l
	}

	body := byID["body"]
	if !almostEqual(body.X, 30) || !almostEqual(body.Y, 65) {
		t.Errorf("body position = %v/%v, want 30/65", body.X, body.Y)
	}
	if !almostEqual(body.Scale, 1.5) {
		t.Errorf("body scale = %v, want 1.5", body.Scale)
	}

	caption := byID["cap"]
	if caption.Content != "GG" || !almostEqual(caption.FontSize, 32) {
		t.Errorf("caption round trip lost text props: %+v", caption)
	}

	// Z indexes are re-sequenced in render order.
	for i, id := range []string{"bg", "body", "cap"} {
		if byID[id].ZIndex != i {
			t.Errorf("%s zIndex = %d, want %d", id, byID[id].ZIndex, i)
		}
	}
}

func TestTransformSurvivesRebuild(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	layers := []layer.Layer{
		renderable("body", layer.KindBody, "pop_body", 50, 65, 1, 1),
	}
	e.Render(context.Background(), layers)

	if !e.SetTransform("body", 100, 300, 2, 2, 15) {
		t.Fatal("SetTransform missed the object")
	}
	// An unrelated edit triggers a rebuild.
	layers = append(layers, renderable("head", layer.KindHead, "pop_head", 50, 40, 1, 2))
	e.Render(context.Background(), layers)

	body := find(e.Objects(), "body")
	if body == nil {
		t.Fatal("body missing after rebuild")
	}
	if !almostEqual(body.Left, 100) || !almostEqual(body.Top, 300) || !almostEqual(body.Angle, 15) {
		t.Errorf("transform lost across rebuild: left=%v top=%v angle=%v", body.Left, body.Top, body.Angle)
	}
}

func TestSelectPrefersTopmost(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	var selected string
	e.OnSelect(func(id string) { selected = id })

	e.Render(context.Background(), []layer.Layer{
		renderable("bg", layer.KindBackground, "meme", 50, 50, 1, 0),
		renderable("under", layer.KindBody, "pop_body", 50, 50, 1, 1),
		renderable("over", layer.KindHead, "pop_head", 52, 52, 1, 2),
	})

	id, ok := e.Select(50, 50)
	if !ok || id != "over" {
		t.Errorf("Select = %q/%v, want over/true", id, ok)
	}
	if selected != "over" {
		t.Errorf("selection callback got %q, want over", selected)
	}

	id, ok = e.Select(99, 1)
	if ok || id != "" {
		t.Errorf("far click selected %q, want miss", id)
	}
	if selected != "" {
		t.Error("miss should publish an empty selection")
	}
}

func TestTextDraftAndCommit(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	var published []layer.Layer
	e.OnLayerUpdate(func(ls []layer.Layer) { published = ls })

	e.Render(context.Background(), []layer.Layer{
		{ID: "cap", Type: layer.KindText, Content: "before", X: 50, Y: 15, Scale: 1, ZIndex: 0},
	})

	if !e.SetTextDraft("cap", "after") {
		t.Fatal("SetTextDraft missed the object")
	}
	// Draft is visible on the object but not yet in the model.
	e.CommitSync()

	if len(published) != 1 || published[0].Content != "after" {
		t.Fatalf("committed layers = %+v, want content %q", published, "after")
	}
}

func TestGuidesHiddenForExport(t *testing.T) {
	e := newTestEngine()
	defer e.Close()

	e.Render(context.Background(), []layer.Layer{
		renderable("bg", layer.KindBackground, "meme", 50, 50, 1, 0),
	})

	e.SetGuidesVisible(false)
	for _, o := range e.Objects() {
		if o.ExcludeFromExport && o.Visible {
			t.Error("guide still visible after SetGuidesVisible(false)")
		}
	}
	e.SetGuidesVisible(true)
	for _, o := range e.Objects() {
		if o.ExcludeFromExport && !o.Visible {
			t.Error("guide not restored by SetGuidesVisible(true)")
		}
	}
}

func TestRenderAfterCloseIsNoop(t *testing.T) {
	e := newTestEngine()
	e.Close()
	e.Render(context.Background(), []layer.Layer{
		renderable("bg", layer.KindBackground, "meme", 50, 50, 1, 0),
	})
	if len(e.Objects()) != 0 {
		t.Error("closed engine rebuilt objects")
	}
}
