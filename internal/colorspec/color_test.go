package colorspec

import "testing"

func TestParseHexForms(t *testing.T) {
	cases := []struct {
		in   string
		want RGBA
	}{
		{"#fff", RGBA{1, 1, 1, 1}},
		{"#000", RGBA{0, 0, 0, 1}},
		{"#ff0000", RGBA{1, 0, 0, 1}},
		{"#00ff00ff", RGBA{0, 1, 0, 1}},
		{"#0000ff80", RGBA{0, 0, 1, float32(0x80) / 255}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", tc.in, err)
		}
		if !closeRGBA(got, tc.want) {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseFunctionalForms(t *testing.T) {
	cases := []struct {
		in   string
		want RGBA
	}{
		{"rgb(255, 0, 0)", RGBA{1, 0, 0, 1}},
		{"rgba(0, 255, 0, 0.5)", RGBA{0, 1, 0, 0.5}},
		{"rgb(100%, 0%, 0%)", RGBA{1, 0, 0, 1}},
		{"hsl(0, 100%, 50%)", RGBA{1, 0, 0, 1}},
		{"hsla(120, 100%, 50%, 0.25)", RGBA{0, 1, 0, 0.25}},
		{"hsl(240, 100%, 50%)", RGBA{0, 0, 1, 1}},
	}
	for _, tc := range cases {
		got, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): unexpected error: %v", tc.in, err)
		}
		if !closeRGBA(got, tc.want) {
			t.Fatalf("Parse(%q) = %+v, want %+v", tc.in, got, tc.want)
		}
	}
}

func TestParseInvalid(t *testing.T) {
	invalid := []string{
		"",
		"not-a-color",
		"#ff",
		"#gggggg",
		"rgb(1,2)",
		"rgba(1,2,3",
	}
	for _, in := range invalid {
		if _, err := Parse(in); err == nil {
			t.Fatalf("Parse(%q): expected error, got none", in)
		}
	}
}

func closeRGBA(a, b RGBA) bool {
	const tol = 1.0 / 255.0
	return closeF(a.R, b.R, tol) && closeF(a.G, b.G, tol) && closeF(a.B, b.B, tol) && closeF(a.A, b.A, tol)
}

func closeF(a, b, tol float32) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}
