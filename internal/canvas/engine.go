// Package canvas synchronizes the serializable layer model with an
// engine-owned object graph, rendering it to bitmaps and serializing user
// manipulation back into layers.
package canvas

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"memeforge/internal/assets"
	"memeforge/internal/config"
	"memeforge/internal/imagecache"
	"memeforge/internal/layer"
)

// Engine owns the native object graph for one editing session. All caches,
// timers and guards are instance fields released by Close; an engine is never
// shared between sessions.
type Engine struct {
	cfg      config.CanvasConfig
	log      zerolog.Logger
	cache    *imagecache.Cache
	resolver *assets.Resolver
	fonts    *fontSet

	mu         sync.Mutex
	objects    []*Object
	baseScales map[string]float64
	closed     bool

	// syncing breaks the render-sync-render cycle: while an extract pass is
	// publishing layers, scheduled renders are suppressed.
	syncing atomic.Bool

	renderTimer *time.Timer
	syncTimer   *time.Timer

	onLayers func([]layer.Layer)
	onSelect func(layerID string)
}

func NewEngine(cfg config.CanvasConfig, log zerolog.Logger, cache *imagecache.Cache, resolver *assets.Resolver) *Engine {
	return &Engine{
		cfg:        cfg,
		log:        log.With().Str("component", "canvas").Logger(),
		cache:      cache,
		resolver:   resolver,
		fonts:      newFontSet(),
		baseScales: make(map[string]float64),
	}
}

// OnLayerUpdate registers the callback receiving the extracted layer
// collection after a reverse sync.
func (e *Engine) OnLayerUpdate(fn func([]layer.Layer)) { e.onLayers = fn }

// OnSelect registers the callback notified when the selection changes.
func (e *Engine) OnSelect(fn func(layerID string)) { e.onSelect = fn }

func (e *Engine) size() float64 { return float64(e.cfg.Size) }

// Render rebuilds the object graph from the layer collection. Transforms of
// existing objects are snapshotted by layer id and by (kind, content) and
// reapplied, so an in-progress manipulation survives rebuilds triggered by
// unrelated layer edits. A failed asset load skips that layer only.
func (e *Engine) Render(ctx context.Context, layers []layer.Layer) {
	if e.syncing.Load() {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}

	saved := make(map[string]transform, len(e.objects)*2)
	for _, o := range e.objects {
		if o.ExcludeFromExport {
			continue
		}
		saved[o.LayerID] = o.snapshot()
		key := contentKey(o.Kind, o.Content)
		if _, ok := saved[key]; !ok {
			saved[key] = o.snapshot()
		}
	}

	e.objects = e.objects[:0]
	e.baseScales = make(map[string]float64, len(layers))

	sorted := make([]layer.Layer, len(layers))
	copy(sorted, layers)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ZIndex < sorted[j].ZIndex })

	for _, l := range sorted {
		var obj *Object
		var err error
		if l.Type == layer.KindText {
			obj = e.buildTextObject(l)
		} else {
			obj, err = e.buildImageObject(ctx, l)
			if err != nil {
				e.log.Warn().Err(err).Str("layer", l.ID).Str("type", string(l.Type)).Msg("layer skipped")
				continue
			}
		}
		if t, ok := saved[l.ID]; ok {
			obj.apply(t)
		} else if t, ok := saved[contentKey(l.Type, l.Content)]; ok {
			obj.apply(t)
		}
		e.objects = append(e.objects, obj)
	}

	e.objects = append(e.objects, e.guideObject())
}

func (e *Engine) buildTextObject(l layer.Layer) *Object {
	o := &Object{
		LayerID:      l.ID,
		Kind:         l.Type,
		Content:      l.Content,
		Left:         l.X / 100 * e.size(),
		Top:          l.Y / 100 * e.size(),
		ScaleX:       l.Scale,
		ScaleY:       l.Scale,
		Angle:        l.Rotation,
		BottomOrigin: true,
		Selectable:   true,
		Visible:      true,
		Text:         l.Content,
		FontSize:     defaultNum(l.FontSize, 24),
		FontFamily:   defaultStr(l.FontFamily, "Arial, sans-serif"),
		FontWeight:   defaultStr(l.FontWeight, "bold"),
		FontStyle:    defaultStr(l.FontStyle, "normal"),
		TextColor:    defaultStr(l.TextColor, "#000000"),
		StrokeColor:  defaultStr(l.StrokeColor, "#ffffff"),
		StrokeWidth:  defaultNum(l.StrokeWidth, 2),
		TextAlign:    defaultStr(l.TextAlign, "center"),
	}
	o.Shadow, o.HasShadow = layer.ParseShadow(l.TextShadow)
	e.baseScales[l.ID] = 1
	return o
}

func (e *Engine) buildImageObject(ctx context.Context, l layer.Layer) (*Object, error) {
	url := e.resolver.URL(l.Type, l.Content)

	img, err := e.cache.GetOrLoad(ctx, url)
	if err != nil {
		return nil, err
	}

	// Trim transparent padding for non-background assets so differently
	// padded source art anchors consistently.
	if l.Type != layer.KindBackground {
		if bounds, ok := AlphaBounds(img, e.cfg.AlphaThreshold, e.cfg.AlphaBottomThreshold); ok {
			img = cropped(img, bounds)
		}
	}

	w := float64(img.Bounds().Dx())
	h := float64(img.Bounds().Dy())
	size := e.size()

	o := &Object{
		LayerID: l.ID,
		Kind:    l.Type,
		Content: l.Content,
		Angle:   l.Rotation,
		Visible: true,
		Img:     img,
	}

	var baseScale float64
	if l.Type == layer.KindBackground {
		baseScale = math.Max(size/w, size/h) // cover the whole canvas
		o.Left = size / 2
		o.Top = size / 2
		o.Selectable = false
	} else {
		maxSize := size * e.cfg.FitRatio
		baseScale = math.Min(maxSize/w, maxSize/h)
		o.Left = l.X / 100 * size
		o.Top = l.Y / 100 * size
		o.BottomOrigin = true
		o.Selectable = true
	}

	o.ScaleX = baseScale * l.Scale
	o.ScaleY = baseScale * math.Abs(l.Scale)
	e.baseScales[l.ID] = baseScale
	return o, nil
}

// guideObject is the dashed bottom alignment aid. It is excluded from export
// and from reverse sync.
func (e *Engine) guideObject() *Object {
	return &Object{
		LayerID:           "__guide_bottom",
		Visible:           true,
		ExcludeFromExport: true,
	}
}

// SyncLayers extracts the current object graph back into a layer collection:
// pixel positions become percentages, absolute scales are divided by the
// stored base scale so the persisted value stays a pure user multiplier, and
// text properties including the shadow config are re-serialized.
func (e *Engine) SyncLayers() []layer.Layer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.extractLocked()
}

func (e *Engine) extractLocked() []layer.Layer {
	size := e.size()
	layers := make([]layer.Layer, 0, len(e.objects))

	z := 0
	for _, o := range e.objects {
		if o.ExcludeFromExport || o.LayerID == "" {
			continue
		}
		baseScale := e.baseScales[o.LayerID]
		if baseScale == 0 {
			baseScale = 1
		}

		l := layer.Layer{
			ID:       o.LayerID,
			Type:     o.Kind,
			Content:  o.Content,
			X:        o.Left / size * 100,
			Y:        o.Top / size * 100,
			Scale:    o.ScaleX / baseScale,
			Rotation: o.Angle,
			ZIndex:   z,
		}
		z++

		if o.isText() {
			l.Content = o.Text
			l.FontSize = o.FontSize
			l.FontFamily = o.FontFamily
			l.FontWeight = o.FontWeight
			l.FontStyle = o.FontStyle
			l.TextColor = o.TextColor
			l.StrokeColor = o.StrokeColor
			l.StrokeWidth = o.StrokeWidth
			l.TextAlign = o.TextAlign
			if o.HasShadow {
				s := o.Shadow
				s.Enabled = true
				l.TextShadow = s.Encode()
			}
		}

		layers = append(layers, l)
	}
	return layers
}

// ScheduleRender coalesces rapid layer edits into one rebuild.
func (e *Engine) ScheduleRender(ctx context.Context, layers []layer.Layer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	snapshot := make([]layer.Layer, len(layers))
	copy(snapshot, layers)
	if e.renderTimer != nil {
		e.renderTimer.Stop()
	}
	e.renderTimer = time.AfterFunc(e.cfg.RenderDebounce, func() {
		e.Render(ctx, snapshot)
	})
}

// ObjectModified schedules a debounced reverse sync after user manipulation.
func (e *Engine) ObjectModified() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	if e.syncTimer != nil {
		e.syncTimer.Stop()
	}
	e.syncTimer = time.AfterFunc(e.cfg.SyncDebounce, e.publishLayers)
}

// CommitSync runs the reverse sync immediately, bypassing the debounce. Used
// on text edit commit and session teardown.
func (e *Engine) CommitSync() {
	e.mu.Lock()
	if e.syncTimer != nil {
		e.syncTimer.Stop()
		e.syncTimer = nil
	}
	e.mu.Unlock()
	e.publishLayers()
}

func (e *Engine) publishLayers() {
	if e.onLayers == nil {
		return
	}
	e.syncing.Store(true)
	defer e.syncing.Store(false)
	e.onLayers(e.SyncLayers())
}

// SetTransform applies a user-driven transform (drag, scale, rotate) to the
// object owning layerID. Coordinates are canvas pixels, scale is absolute.
func (e *Engine) SetTransform(layerID string, left, top, scaleX, scaleY, angle float64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.objects {
		if o.LayerID == layerID && !o.ExcludeFromExport {
			o.apply(transform{left: left, top: top, scaleX: scaleX, scaleY: scaleY, angle: angle})
			return true
		}
	}
	return false
}

// Select hit-tests the composition at a percentage position. Background and
// guide objects are not selectable; among candidates within SelectRadius the
// topmost z-order wins. The selection callback fires with the hit id, or ""
// when the click lands on nothing.
func (e *Engine) Select(xPct, yPct float64) (string, bool) {
	e.mu.Lock()
	best := ""
	// Objects are ordered by ascending z, so the last match is topmost.
	for _, o := range e.objects {
		if !o.Selectable || o.ExcludeFromExport {
			continue
		}
		ox := o.Left / e.size() * 100
		oy := o.Top / e.size() * 100
		if math.Hypot(xPct-ox, yPct-oy) <= e.cfg.SelectRadius {
			best = o.LayerID
		}
	}
	e.mu.Unlock()

	if e.onSelect != nil {
		e.onSelect(best)
	}
	return best, best != ""
}

// SetTextDraft updates the displayed string of a text object directly,
// bypassing the full rebuild so per-keystroke edits stay cheap. The draft is
// only persisted into the layer model by a later commit.
func (e *Engine) SetTextDraft(layerID, text string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.objects {
		if o.LayerID == layerID && o.isText() {
			o.Text = text
			return true
		}
	}
	return false
}

// Objects returns a snapshot of the current object list, for export and tests.
func (e *Engine) Objects() []*Object {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Object, len(e.objects))
	copy(out, e.objects)
	return out
}

// BaseScale reports the stored base scale for a layer id.
func (e *Engine) BaseScale(layerID string) (float64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.baseScales[layerID]
	return s, ok
}

// SetGuidesVisible toggles visibility of excluded helper objects.
func (e *Engine) SetGuidesVisible(visible bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.objects {
		if o.ExcludeFromExport {
			o.Visible = visible
		}
	}
}

// Close tears the session down: pending timers are cancelled, the object
// graph is dropped and the image cache is cleared. The engine must not be
// used afterwards.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	if e.renderTimer != nil {
		e.renderTimer.Stop()
		e.renderTimer = nil
	}
	if e.syncTimer != nil {
		e.syncTimer.Stop()
		e.syncTimer = nil
	}
	e.objects = nil
	e.baseScales = nil
	e.cache.Clear()
}

func defaultNum(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

func defaultStr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
