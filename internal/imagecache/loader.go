package imagecache

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
)

const maxAssetBytes = 20 * 1024 * 1024

// URLLoader loads images over HTTP and understands data URLs and local file
// paths, so both catalog assets and pasted images resolve the same way.
type URLLoader struct {
	client *http.Client
}

func NewURLLoader(timeout time.Duration) *URLLoader {
	return &URLLoader{client: &http.Client{Timeout: timeout}}
}

func (l *URLLoader) Load(ctx context.Context, url string) (image.Image, error) {
	switch {
	case strings.HasPrefix(url, "data:"):
		return decodeDataURL(url)
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return l.fetch(ctx, url)
	default:
		return loadFile(url)
	}
}

func (l *URLLoader) fetch(ctx context.Context, url string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch asset: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, fmt.Errorf("read asset: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode asset: %w", err)
	}
	return img, nil
}

func decodeDataURL(url string) (image.Image, error) {
	idx := strings.Index(url, ",")
	if idx < 0 || !strings.Contains(url[:idx], ";base64") {
		return nil, fmt.Errorf("malformed data URL")
	}
	data, err := base64.StdEncoding.DecodeString(url[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("decode data URL: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode data URL image: %w", err)
	}
	return img, nil
}

func loadFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode asset: %w", err)
	}
	return img, nil
}
