package layer

// Template is a named layer preset applied as a bulk replace of the session's
// layer collection.
type Template struct {
	Key  string
	Name string
}

var Templates = []Template{
	{Key: "pop_vs_closed", Name: "POP vs Closed"},
	{Key: "yes_pop", Name: "Yes POP"},
	{Key: "click_wars", Name: "Click Wars"},
	{Key: "pro_gamer", Name: "Pro Gamer"},
	{Key: "evolution", Name: "Evolution"},
	{Key: "world_record", Name: "World Record"},
}

func KnownTemplate(key string) bool {
	for _, t := range Templates {
		if t.Key == key {
			return true
		}
	}
	return false
}

func captionLayer(id, content string, x, y, scale float64, z int, fontSize float64, strokeWidth float64) Layer {
	return Layer{
		ID: id, Type: KindText, Content: content,
		X: x, Y: y, Scale: scale, Rotation: 0, ZIndex: z,
		FontSize: fontSize, FontFamily: "Impact, sans-serif",
		FontWeight: "bold", FontStyle: "normal",
		TextColor: "#000000", StrokeColor: "#ffffff", StrokeWidth: strokeWidth,
		TextAlign: "center",
	}
}

// BuildTemplate returns the layer preset for a template key. Unknown keys
// yield a bare background so the editor always has a canvas to draw on.
func BuildTemplate(key string) []Layer {
	baseBg := Layer{ID: "bg", Type: KindBackground, Content: "meme", X: 50, Y: 50, Scale: 1, Rotation: 0, ZIndex: 0}

	switch key {
	case "pop_vs_closed":
		return []Layer{
			baseBg,
			{ID: "body_left", Type: KindBody, Content: "closed_body", X: 30, Y: 65, Scale: 0.85, ZIndex: 1},
			{ID: "head_left", Type: KindHead, Content: "closed_head", X: 30, Y: 40, Scale: 0.75, ZIndex: 2},
			captionLayer("text_left", "CLOSED", 30, 18, 0.8, 3, 16, 2),
			{ID: "body_right", Type: KindBody, Content: "pop_body", X: 70, Y: 65, Scale: 0.9, ZIndex: 1},
			{ID: "head_right", Type: KindHead, Content: "pop_head", X: 70, Y: 40, Scale: 0.8, ZIndex: 2},
			captionLayer("text_right", "POP!", 70, 18, 0.9, 3, 18, 2),
		}
	case "yes_pop":
		return []Layer{
			baseBg,
			{ID: "body", Type: KindBody, Content: "pop_body", X: 50, Y: 65, Scale: 1.05, ZIndex: 1},
			{ID: "head", Type: KindHead, Content: "pop_head", X: 50, Y: 40, Scale: 0.9, ZIndex: 2},
			captionLayer("text", "YES.", 50, 15, 1.2, 3, 32, 3),
		}
	case "click_wars":
		return []Layer{
			{ID: "bg", Type: KindBackground, Content: "room", X: 50, Y: 50, Scale: 1, ZIndex: 0},
			{ID: "body", Type: KindBody, Content: "pop_body", X: 50, Y: 65, Scale: 1.05, ZIndex: 1},
			{ID: "head", Type: KindHead, Content: "pop_head", X: 50, Y: 40, Scale: 0.9, ZIndex: 2},
			captionLayer("text", "CLICK CHAMPION", 50, 15, 1.0, 3, 22, 3),
		}
	case "pro_gamer":
		return []Layer{
			{ID: "bg", Type: KindBackground, Content: "neon", X: 50, Y: 50, Scale: 1, ZIndex: 0},
			{ID: "body", Type: KindBody, Content: "pop_body", X: 50, Y: 68, Scale: 1.0, ZIndex: 1},
			{ID: "head", Type: KindHead, Content: "pop_head", X: 50, Y: 42, Scale: 0.85, ZIndex: 2},
			captionLayer("text", "PRO GAMER", 50, 15, 0.8, 3, 20, 2),
		}
	case "evolution":
		return []Layer{
			baseBg,
			captionLayer("text_before", "NOOB", 30, 12, 0.9, 3, 18, 2),
			{ID: "body_before", Type: KindBody, Content: "noob_body", X: 30, Y: 65, Scale: 0.85, ZIndex: 1},
			captionLayer("text_after", "PRO", 70, 12, 0.9, 3, 18, 2),
			{ID: "body_after", Type: KindBody, Content: "pro_body", X: 70, Y: 65, Scale: 0.9, ZIndex: 1},
			{ID: "head_after", Type: KindHead, Content: "pro_head", X: 70, Y: 38, Scale: 0.85, ZIndex: 2},
		}
	case "world_record":
		return []Layer{
			baseBg,
			{ID: "body", Type: KindBody, Content: "pop_body", X: 50, Y: 65, Scale: 1.0, ZIndex: 1},
			{ID: "head", Type: KindHead, Content: "pop_head", X: 50, Y: 40, Scale: 0.9, ZIndex: 2},
			{ID: "trophy", Type: KindProp, Content: "trophy", X: 75, Y: 25, Scale: 0.6, ZIndex: 3},
			captionLayer("text", "WORLD RECORD", 50, 10, 0.95, 4, 22, 2),
		}
	default:
		return []Layer{baseBg}
	}
}
