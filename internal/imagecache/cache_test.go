package imagecache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"testing"
	"time"
)

type stubLoader struct {
	calls atomic.Int64
	size  int
	err   error
}

func (l *stubLoader) Load(ctx context.Context, url string) (image.Image, error) {
	l.calls.Add(1)
	if l.err != nil {
		return nil, l.err
	}
	side := l.size
	if side == 0 {
		side = 10
	}
	return image.NewRGBA(image.Rect(0, 0, side, side)), nil
}

// fakeClock hands out strictly increasing times so LRU ordering is
// deterministic.
func fakeClock() func() time.Time {
	base := time.Unix(0, 0)
	n := 0
	return func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
}

func TestGetOrLoadCachesResult(t *testing.T) {
	loader := &stubLoader{}
	c := New(loader, 20, 50*1024*1024)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.GetOrLoad(ctx, "asset://head"); err != nil {
			t.Fatalf("GetOrLoad: %v", err)
		}
	}
	if got := loader.calls.Load(); got != 1 {
		t.Errorf("loader called %d times, want 1", got)
	}
	if !c.Contains("asset://head") {
		t.Error("entry missing after load")
	}
}

func TestEntryCountBound(t *testing.T) {
	loader := &stubLoader{}
	c := New(loader, 5, 50*1024*1024)
	c.now = fakeClock()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if _, err := c.GetOrLoad(ctx, fmt.Sprintf("asset://%d", i)); err != nil {
			t.Fatalf("GetOrLoad: %v", err)
		}
	}

	if got := c.Len(); got != 5 {
		t.Fatalf("Len() = %d, want 5", got)
	}
	// Most recently loaded entries survive.
	for i := 5; i < 10; i++ {
		if !c.Contains(fmt.Sprintf("asset://%d", i)) {
			t.Errorf("recent entry %d evicted", i)
		}
	}
	for i := 0; i < 5; i++ {
		if c.Contains(fmt.Sprintf("asset://%d", i)) {
			t.Errorf("old entry %d retained", i)
		}
	}
}

func TestAccessRefreshesLRU(t *testing.T) {
	loader := &stubLoader{}
	c := New(loader, 3, 50*1024*1024)
	c.now = fakeClock()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := c.GetOrLoad(ctx, fmt.Sprintf("asset://%d", i)); err != nil {
			t.Fatalf("GetOrLoad: %v", err)
		}
	}
	// Touch the oldest so it becomes the newest.
	if _, err := c.GetOrLoad(ctx, "asset://0"); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	if _, err := c.GetOrLoad(ctx, "asset://3"); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}

	if !c.Contains("asset://0") {
		t.Error("touched entry was evicted")
	}
	if c.Contains("asset://1") {
		t.Error("least recently used entry was retained")
	}
}

func TestByteBudgetBound(t *testing.T) {
	// Each 100x100 RGBA image is estimated at 40000 bytes; a 100000-byte
	// budget holds two.
	loader := &stubLoader{size: 100}
	c := New(loader, 20, 100_000)
	c.now = fakeClock()

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		if _, err := c.GetOrLoad(ctx, fmt.Sprintf("asset://%d", i)); err != nil {
			t.Fatalf("GetOrLoad: %v", err)
		}
	}

	if got := c.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
	if c.totalBytes > 100_000 {
		t.Errorf("totalBytes = %d exceeds budget", c.totalBytes)
	}
}

func TestLoadErrorNotCached(t *testing.T) {
	loader := &stubLoader{err: errors.New("boom")}
	c := New(loader, 5, 1024)

	if _, err := c.GetOrLoad(context.Background(), "asset://bad"); err == nil {
		t.Fatal("expected load error")
	}
	if c.Len() != 0 {
		t.Error("failed load was cached")
	}

	loader.err = nil
	if _, err := c.GetOrLoad(context.Background(), "asset://bad"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestClear(t *testing.T) {
	loader := &stubLoader{}
	c := New(loader, 5, 1<<20)
	if _, err := c.GetOrLoad(context.Background(), "asset://x"); err != nil {
		t.Fatalf("GetOrLoad: %v", err)
	}
	c.Clear()
	if c.Len() != 0 || c.totalBytes != 0 {
		t.Errorf("Clear left %d entries, %d bytes", c.Len(), c.totalBytes)
	}
}
