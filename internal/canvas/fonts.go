package canvas

import (
	"strings"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
)

type faceKey struct {
	variant string
	size    float64
}

// fontSet caches parsed fonts and sized faces for one engine. Each Engine
// owns its own set, so rendering sessions never share mutable font state.
type fontSet struct {
	mu     sync.Mutex
	parsed map[string]*truetype.Font
	faces  map[faceKey]font.Face
}

func newFontSet() *fontSet {
	return &fontSet{
		parsed: make(map[string]*truetype.Font),
		faces:  make(map[faceKey]font.Face),
	}
}

func (fs *fontSet) parsedFont(variant string) *truetype.Font {
	if f, ok := fs.parsed[variant]; ok {
		return f
	}
	var ttf []byte
	switch variant {
	case "bold":
		ttf = gobold.TTF
	case "italic":
		ttf = goitalic.TTF
	case "bolditalic":
		ttf = gobolditalic.TTF
	default:
		ttf = goregular.TTF
	}
	f, err := truetype.Parse(ttf)
	if err != nil {
		// The bundled Go fonts always parse; fall back to regular.
		f, _ = truetype.Parse(goregular.TTF)
	}
	fs.parsed[variant] = f
	return f
}

// face resolves a layer's font request to a concrete face. Families are
// not shipped with the engine, so weight and style select among the bundled
// Go font variants.
func (fs *fontSet) face(weight, style string, size float64) font.Face {
	bold := strings.Contains(strings.ToLower(weight), "bold")
	italic := strings.Contains(strings.ToLower(style), "italic")

	variant := "regular"
	switch {
	case bold && italic:
		variant = "bolditalic"
	case bold:
		variant = "bold"
	case italic:
		variant = "italic"
	}

	if size <= 0 {
		size = 24
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	key := faceKey{variant: variant, size: size}
	if face, ok := fs.faces[key]; ok {
		return face
	}
	face := truetype.NewFace(fs.parsedFont(variant), &truetype.Options{Size: size})
	fs.faces[key] = face
	return face
}
