package layer

import (
	"math"
	"strings"
	"testing"
)

func TestSanitizeClamps(t *testing.T) {
	tests := []struct {
		name string
		in   Layer
		want Layer
	}{
		{
			name: "nan scale falls back to 1",
			in:   Layer{Type: KindProp, X: 50, Y: 50, Scale: math.NaN()},
			want: Layer{Type: KindProp, X: 50, Y: 50, Scale: 1},
		},
		{
			name: "inf x falls back to center",
			in:   Layer{Type: KindProp, X: math.Inf(1), Y: 40, Scale: 2},
			want: Layer{Type: KindProp, X: 50, Y: 40, Scale: 2},
		},
		{
			name: "oversized scale clamped",
			in:   Layer{Type: KindProp, X: 50, Y: 50, Scale: 9999},
			want: Layer{Type: KindProp, X: 50, Y: 50, Scale: 10},
		},
		{
			name: "tiny scale clamped up",
			in:   Layer{Type: KindProp, X: 50, Y: 50, Scale: 0.0001},
			want: Layer{Type: KindProp, X: 50, Y: 50, Scale: 0.1},
		},
		{
			name: "rotation clamped to full turn",
			in:   Layer{Type: KindProp, X: 50, Y: 50, Scale: 1, Rotation: 9999},
			want: Layer{Type: KindProp, X: 50, Y: 50, Scale: 1, Rotation: 360},
		},
		{
			name: "negative rotation clamped",
			in:   Layer{Type: KindProp, X: 50, Y: 50, Scale: 1, Rotation: -720},
			want: Layer{Type: KindProp, X: 50, Y: 50, Scale: 1, Rotation: -360},
		},
		{
			name: "position clamped to bounds",
			in:   Layer{Type: KindProp, X: -5000, Y: 5000, Scale: 1},
			want: Layer{Type: KindProp, X: -1000, Y: 1000, Scale: 1},
		},
		{
			name: "negative z index clamped",
			in:   Layer{Type: KindProp, X: 50, Y: 50, Scale: 1, ZIndex: -5},
			want: Layer{Type: KindProp, X: 50, Y: 50, Scale: 1, ZIndex: 0},
		},
		{
			name: "font size clamped for text",
			in:   Layer{Type: KindText, X: 50, Y: 50, Scale: 1, FontSize: 5},
			want: Layer{Type: KindText, X: 50, Y: 50, Scale: 1, FontSize: 8},
		},
		{
			name: "nan font size falls back",
			in:   Layer{Type: KindText, X: 50, Y: 50, Scale: 1, FontSize: math.NaN()},
			want: Layer{Type: KindText, X: 50, Y: 50, Scale: 1, FontSize: 24},
		},
		{
			name: "stroke width clamped",
			in:   Layer{Type: KindText, X: 50, Y: 50, Scale: 1, StrokeWidth: 300},
			want: Layer{Type: KindText, X: 50, Y: 50, Scale: 1, StrokeWidth: 50},
		},
		{
			name: "zero font size untouched for non-text",
			in:   Layer{Type: KindHead, X: 50, Y: 50, Scale: 1, FontSize: 5},
			want: Layer{Type: KindHead, X: 50, Y: 50, Scale: 1, FontSize: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Sanitize(tt.in)
			if got != tt.want {
				t.Errorf("Sanitize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestCompactContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"short content kept", "pop_body", "pop_body"},
		{"data url replaced", "data:image/png;base64,AAAA", ContentPlaceholder},
		{"oversized replaced", strings.Repeat("x", maxInlineContent+1), ContentPlaceholder},
		{"at limit kept", strings.Repeat("x", maxInlineContent), strings.Repeat("x", maxInlineContent)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := CompactContent([]Layer{{Type: KindProp, Content: tt.content}})
			if out[0].Content != tt.want {
				t.Errorf("CompactContent() content = %q, want %q", out[0].Content, tt.want)
			}
		})
	}
}

func TestCompactContentPreservesInput(t *testing.T) {
	in := []Layer{{Type: KindProp, Content: "data:image/png;base64,AAAA"}}
	_ = CompactContent(in)
	if in[0].Content != "data:image/png;base64,AAAA" {
		t.Error("CompactContent mutated its input")
	}
}
