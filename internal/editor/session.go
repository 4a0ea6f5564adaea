// Package editor ties the layer collection, the render engine and the save
// pipeline into one editing session.
package editor

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"memeforge/internal/canvas"
	"memeforge/internal/errs"
	"memeforge/internal/layer"
	"memeforge/internal/pipeline"
)

type Session struct {
	id             string
	telegramUserID int64
	log            zerolog.Logger

	engine *canvas.Engine
	saver  *pipeline.Saver

	mu          sync.Mutex
	templateKey string
	layers      []layer.Layer
	selected    string
}

func NewSession(telegramUserID int64, engine *canvas.Engine, saver *pipeline.Saver, log zerolog.Logger) *Session {
	s := &Session{
		id:             layer.NewID(),
		telegramUserID: telegramUserID,
		log:            log.With().Str("component", "editor").Logger(),
		engine:         engine,
		saver:          saver,
	}

	// The engine pushes canvas edits (drags, scales) back into the layer
	// collection; the session is the single source of truth for saves.
	engine.OnLayerUpdate(func(updated []layer.Layer) {
		s.mu.Lock()
		s.layers = updated
		s.mu.Unlock()
	})
	engine.OnSelect(func(layerID string) {
		s.mu.Lock()
		s.selected = layerID
		s.mu.Unlock()
	})
	return s
}

func (s *Session) ID() string { return s.id }

// ApplyTemplate replaces the whole collection with the template's layers and
// renders them.
func (s *Session) ApplyTemplate(ctx context.Context, key string) []layer.Layer {
	layers := layer.BuildTemplate(key)

	s.mu.Lock()
	s.templateKey = key
	s.layers = layers
	s.selected = ""
	s.mu.Unlock()

	s.engine.Render(ctx, layers)
	return layers
}

// AddText appends a caption above everything else.
func (s *Session) AddText(ctx context.Context, content string) (layer.Layer, error) {
	l := layer.Layer{
		ID:       layer.NewID(),
		Type:     layer.KindText,
		Content:  content,
		X:        50,
		Y:        50,
		Scale:    1,
		FontSize: 24,
	}
	return s.add(ctx, l)
}

// AddProp appends a prop layer above everything else.
func (s *Session) AddProp(ctx context.Context, content string) (layer.Layer, error) {
	l := layer.Layer{
		ID:      layer.NewID(),
		Type:    layer.KindProp,
		Content: content,
		X:       50,
		Y:       50,
		Scale:   1,
	}
	return s.add(ctx, l)
}

func (s *Session) add(ctx context.Context, l layer.Layer) (layer.Layer, error) {
	s.mu.Lock()
	if len(s.layers) >= layer.MaxLayers {
		s.mu.Unlock()
		return layer.Layer{}, errs.Validation("layer limit reached")
	}
	l.ZIndex = layer.MaxZIndex(s.layers) + 1
	l = layer.Sanitize(l)
	s.layers = append(s.layers, l)
	layers := s.snapshotLocked()
	s.mu.Unlock()

	s.engine.ScheduleRender(ctx, layers)
	return l, nil
}

// UpdateLayer merges the given fields into an existing layer. Unknown ids
// are a no-op returning false.
func (s *Session) UpdateLayer(ctx context.Context, updated layer.Layer) bool {
	s.mu.Lock()
	found := false
	for i := range s.layers {
		if s.layers[i].ID == updated.ID {
			s.layers[i] = layer.Sanitize(updated)
			found = true
			break
		}
	}
	layers := s.snapshotLocked()
	s.mu.Unlock()

	if found {
		s.engine.ScheduleRender(ctx, layers)
	}
	return found
}

// DeleteLayer removes a layer; remaining ids and z order stay untouched.
func (s *Session) DeleteLayer(ctx context.Context, layerID string) bool {
	s.mu.Lock()
	found := false
	kept := s.layers[:0]
	for _, l := range s.layers {
		if l.ID == layerID {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	s.layers = kept
	if s.selected == layerID {
		s.selected = ""
	}
	layers := s.snapshotLocked()
	s.mu.Unlock()

	if found {
		s.engine.ScheduleRender(ctx, layers)
	}
	return found
}

// Select picks the topmost layer under the given canvas-percent point.
func (s *Session) Select(xPct, yPct float64) (string, bool) {
	return s.engine.Select(xPct, yPct)
}

// Layers returns a copy of the current collection.
func (s *Session) Layers() []layer.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Save pushes the current composition through the export-and-save pipeline.
func (s *Session) Save(ctx context.Context) (*pipeline.Outcome, error) {
	s.engine.CommitSync()

	s.mu.Lock()
	in := pipeline.Input{
		TelegramUserID: s.telegramUserID,
		TemplateKey:    s.templateKey,
		Layers:         s.snapshotLocked(),
	}
	s.mu.Unlock()

	return s.saver.Save(ctx, s.id, s.engine, in)
}

func (s *Session) Close() {
	s.engine.Close()
}

func (s *Session) snapshotLocked() []layer.Layer {
	out := make([]layer.Layer, len(s.layers))
	copy(out, s.layers)
	return out
}
