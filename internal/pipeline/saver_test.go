package pipeline

import (
	"context"
	"encoding/json"
	"image"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"memeforge/internal/client"
	"memeforge/internal/config"
	"memeforge/internal/errs"
	"memeforge/internal/export"
	"memeforge/internal/layer"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []client.SaveRequest
	err   error
	block chan struct{}
}

func (f *fakeBackend) SaveMeme(ctx context.Context, req client.SaveRequest) (client.SaveResponse, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	f.calls = append(f.calls, req)
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return client.SaveResponse{}, err
	}
	return client.SaveResponse{MemeID: "meme-1", IDShort: "1234"}, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeEnqueuer struct {
	mu    sync.Mutex
	items []string
	err   error
}

func (f *fakeEnqueuer) Enqueue(name string, body any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	raw, _ := json.Marshal(body)
	f.items = append(f.items, string(raw))
	return nil
}

type stubRasterizer struct{}

func newStubRasterizer() *stubRasterizer { return &stubRasterizer{} }

func (*stubRasterizer) Rasterize(includeGuides bool) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 100, 100))
}

func (*stubRasterizer) SetGuidesVisible(visible bool) {}

func testSaveConfig() config.SaveConfig {
	return config.SaveConfig{
		Endpoint:    "http://backend",
		Timeout:     time.Second,
		MaxAttempts: 1,
		BaseDelay:   time.Nanosecond,
	}
}

func testExporter() *export.Exporter {
	return export.New(config.ExportConfig{
		MaxBytes: 1 << 20,
		Presets:  []config.ExportPreset{{MaxDim: 100, Quality: 0.75}},
		Fallback: config.ExportPreset{MaxDim: 100, Quality: 0.5},
	}, zerolog.Nop())
}

func testInput() Input {
	return Input{
		TelegramUserID: 42,
		TemplateKey:    "yes_pop",
		Layers: []layer.Layer{
			{ID: "bg", Type: layer.KindBackground, Content: "meme", X: 50, Y: 50, Scale: 1},
		},
	}
}

func newTestSaver(backend Backend, queue Enqueuer) *Saver {
	return NewSaver(testSaveConfig(), testExporter(), backend, queue, zerolog.Nop())
}

func TestSaveSendsCanonicalRequest(t *testing.T) {
	backend := &fakeBackend{}
	queue := &fakeEnqueuer{}
	s := newTestSaver(backend, queue)

	out, err := s.Save(context.Background(), "sess-1", newStubRasterizer(), testInput())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if out.Status != StatusSaved || out.MemeID != "meme-1" || out.IDShort != "1234" {
		t.Errorf("outcome = %+v, want saved meme-1/1234", out)
	}

	backend.mu.Lock()
	req := backend.calls[0]
	backend.mu.Unlock()
	if req.TelegramUserID != 42 || req.TemplateKey != "yes_pop" {
		t.Errorf("request = %+v", req)
	}
	if req.IdempotencyKey == "" || req.IdempotencyKey != out.IdempotencyKey {
		t.Errorf("idempotency key missing or mismatched: %q vs %q", req.IdempotencyKey, out.IdempotencyKey)
	}
	if req.Image == "" {
		t.Error("request is missing the exported image")
	}
	if len(queue.items) != 0 {
		t.Error("successful save should not enqueue")
	}
}

func TestSaveRejectsInvalidLayers(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSaver(backend, &fakeEnqueuer{})

	in := testInput()
	in.Layers = nil
	if _, err := s.Save(context.Background(), "sess-1", newStubRasterizer(), in); err == nil {
		t.Fatal("expected validation error for empty layers")
	}
	if backend.callCount() != 0 {
		t.Error("invalid input must not reach the backend")
	}
}

func TestSaveQueuesOnNetworkFailure(t *testing.T) {
	backend := &fakeBackend{err: errs.New(errs.KindNetwork, "connection refused")}
	queue := &fakeEnqueuer{}
	s := newTestSaver(backend, queue)

	out, err := s.Save(context.Background(), "sess-1", newStubRasterizer(), testInput())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if out.Status != StatusQueued {
		t.Errorf("status = %s, want queued", out.Status)
	}
	if len(queue.items) != 1 {
		t.Fatalf("queued %d items, want 1", len(queue.items))
	}
	// The queued body must carry the key so the flush replays idempotently.
	var probe struct {
		IdempotencyKey string `json:"idempotencyKey"`
	}
	if err := json.Unmarshal([]byte(queue.items[0]), &probe); err != nil {
		t.Fatalf("decode queued body: %v", err)
	}
	if probe.IdempotencyKey != out.IdempotencyKey {
		t.Error("queued body lost the idempotency key")
	}
}

func TestSaveReturnsNonNetworkErrors(t *testing.T) {
	backend := &fakeBackend{err: errs.New(errs.KindOwnership, "not the owner")}
	queue := &fakeEnqueuer{}
	s := newTestSaver(backend, queue)

	if _, err := s.Save(context.Background(), "sess-1", newStubRasterizer(), testInput()); err == nil {
		t.Fatal("expected error")
	}
	if len(queue.items) != 0 {
		t.Error("non-network failure must not queue")
	}
}

func TestSaveRejectsConcurrentSessionSave(t *testing.T) {
	backend := &fakeBackend{block: make(chan struct{})}
	s := newTestSaver(backend, &fakeEnqueuer{})

	first := make(chan error, 1)
	go func() {
		_, err := s.Save(context.Background(), "sess-1", newStubRasterizer(), testInput())
		first <- err
	}()

	// Wait until the first save holds the in-flight slot.
	deadline := time.Now().Add(time.Second)
	for {
		s.mu.Lock()
		held := s.inFlight["sess-1"]
		s.mu.Unlock()
		if held {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first save never started")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := s.Save(context.Background(), "sess-1", newStubRasterizer(), testInput()); err == nil {
		t.Error("second save for the same session should be rejected")
	}

	close(backend.block)
	if err := <-first; err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	// The slot is released afterwards.
	if _, err := s.Save(context.Background(), "sess-1", newStubRasterizer(), testInput()); err != nil {
		t.Errorf("save after release failed: %v", err)
	}
}

func TestIdempotencyKeyDeterministic(t *testing.T) {
	layers := []layer.Layer{
		{ID: "bg", Type: layer.KindBackground, Content: "meme", X: 50, Y: 50, Scale: 1},
	}

	k1, err := IdempotencyKey(42, "yes_pop", layers, "data:image/webp;base64,AAAA")
	if err != nil {
		t.Fatalf("IdempotencyKey: %v", err)
	}
	k2, _ := IdempotencyKey(42, "yes_pop", layers, "data:image/webp;base64,AAAA")
	if k1 != k2 {
		t.Error("identical payloads produced different keys")
	}
	if len(k1) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(k1))
	}

	k3, _ := IdempotencyKey(43, "yes_pop", layers, "data:image/webp;base64,AAAA")
	if k1 == k3 {
		t.Error("different users produced the same key")
	}
	k4, _ := IdempotencyKey(42, "yes_pop", layers, "data:image/webp;base64,BBBB")
	if k1 == k4 {
		t.Error("different images produced the same key")
	}
}

func TestIdempotencyKeyRejectsUnserializable(t *testing.T) {
	layers := []layer.Layer{
		{ID: "bg", Type: layer.KindBackground, X: math.Inf(1), Y: 50, Scale: 1},
	}
	if _, err := IdempotencyKey(42, "yes_pop", layers, ""); err == nil {
		t.Error("expected serialization error for non-finite values")
	}
}
