package canvas

import "testing"

func TestFontSetVariantSelection(t *testing.T) {
	fs := newFontSet()

	tests := []struct {
		name    string
		weight  string
		style   string
		variant string
	}{
		{"regular", "normal", "normal", "regular"},
		{"bold", "bold", "normal", "bold"},
		{"italic", "normal", "italic", "italic"},
		{"bold italic", "bold", "italic", "bolditalic"},
		{"numeric weight falls back", "700", "", "regular"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if fs.face(tt.weight, tt.style, 24) == nil {
				t.Fatal("expected a face")
			}
			if _, ok := fs.faces[faceKey{variant: tt.variant, size: 24}]; !ok {
				t.Errorf("variant %q not cached", tt.variant)
			}
		})
	}
}

func TestFontSetCachesFaces(t *testing.T) {
	fs := newFontSet()

	a := fs.face("bold", "", 32)
	b := fs.face("bold", "", 32)
	if a != b {
		t.Error("same weight and size should reuse the cached face")
	}
	if c := fs.face("bold", "", 48); c == a {
		t.Error("different sizes should not share a face")
	}
}

func TestEnginesOwnSeparateFontSets(t *testing.T) {
	one := newFontSet()
	two := newFontSet()

	one.face("bold", "italic", 24)
	if len(two.faces) != 0 {
		t.Error("font caches must not leak across sets")
	}
}

func TestFontSetDefaultSize(t *testing.T) {
	fs := newFontSet()
	fs.face("", "", 0)
	if _, ok := fs.faces[faceKey{variant: "regular", size: 24}]; !ok {
		t.Error("non-positive size should fall back to 24")
	}
}
