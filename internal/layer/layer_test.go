package layer

import "testing"

func TestParseShadow(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   Shadow
		wantOK bool
	}{
		{"empty means no shadow", "", Shadow{}, false},
		{
			"valid config",
			`{"enabled":true,"color":"#112233","blur":3,"offsetX":1,"offsetY":-1}`,
			Shadow{Enabled: true, Color: "#112233", Blur: 3, OffsetX: 1, OffsetY: -1},
			true,
		},
		{"disabled config", `{"enabled":false,"color":"#112233"}`, Shadow{}, false},
		{"malformed falls back to default", "not-json", DefaultShadow(), true},
		{
			"missing color gets default",
			`{"enabled":true,"blur":2}`,
			Shadow{Enabled: true, Color: "rgba(0,0,0,0.5)", Blur: 2},
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseShadow(tt.raw)
			if ok != tt.wantOK {
				t.Fatalf("ParseShadow() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseShadow() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestShadowEncodeRoundTrip(t *testing.T) {
	in := Shadow{Enabled: true, Color: "#000000", Blur: 4, OffsetX: 2, OffsetY: 2}
	got, ok := ParseShadow(in.Encode())
	if !ok || got != in {
		t.Errorf("round trip = %+v (ok=%v), want %+v", got, ok, in)
	}

	if (Shadow{}).Encode() != "" {
		t.Error("disabled shadow should encode to empty string")
	}
}
