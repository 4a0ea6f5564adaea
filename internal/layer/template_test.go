package layer

import "testing"

func TestBuildTemplateYesPop(t *testing.T) {
	layers := BuildTemplate("yes_pop")
	if len(layers) != 4 {
		t.Fatalf("yes_pop has %d layers, want 4", len(layers))
	}

	wantOrder := []struct {
		kind Kind
		z    int
	}{
		{KindBackground, 0},
		{KindBody, 1},
		{KindHead, 2},
		{KindText, 3},
	}
	for i, want := range wantOrder {
		if layers[i].Type != want.kind {
			t.Errorf("layer %d type = %s, want %s", i, layers[i].Type, want.kind)
		}
		if layers[i].ZIndex != want.z {
			t.Errorf("layer %d zIndex = %d, want %d", i, layers[i].ZIndex, want.z)
		}
	}

	text := layers[3]
	if text.Content != "YES." {
		t.Errorf("caption content = %q, want %q", text.Content, "YES.")
	}
	if text.FontSize != 32 || text.StrokeWidth != 3 {
		t.Errorf("caption fontSize/strokeWidth = %v/%v, want 32/3", text.FontSize, text.StrokeWidth)
	}
}

func TestBuildTemplateAllKeysValid(t *testing.T) {
	for _, tpl := range Templates {
		t.Run(tpl.Key, func(t *testing.T) {
			layers := BuildTemplate(tpl.Key)
			if len(layers) == 0 {
				t.Fatal("template produced no layers")
			}
			if layers[0].Type != KindBackground {
				t.Errorf("first layer type = %s, want background", layers[0].Type)
			}
			if err := ValidateAll(layers); err != nil {
				t.Errorf("template layers invalid: %v", err)
			}
		})
	}
}

func TestBuildTemplateUnknownKey(t *testing.T) {
	layers := BuildTemplate("does_not_exist")
	if len(layers) != 1 || layers[0].Type != KindBackground {
		t.Fatalf("unknown key should yield a bare background, got %+v", layers)
	}
	if KnownTemplate("does_not_exist") {
		t.Error("KnownTemplate accepted an unknown key")
	}
}

func TestMaxZIndex(t *testing.T) {
	if got := MaxZIndex(nil); got != -1 {
		t.Errorf("MaxZIndex(nil) = %d, want -1", got)
	}
	layers := BuildTemplate("world_record")
	if got := MaxZIndex(layers); got != 4 {
		t.Errorf("MaxZIndex(world_record) = %d, want 4", got)
	}
}
