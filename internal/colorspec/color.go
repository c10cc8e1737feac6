// Package colorspec parses the colour string grammar accepted at the
// loader and config boundary (spec §6.1): #rgb, #rrggbb, #rrggbbaa,
// rgb(...), rgba(...), hsl(...), hsla(...). There is no teacher or pack
// precedent for a CSS-style colour grammar parser (see DESIGN.md for the
// standard-library justification); the numeric conversions (hue/saturation/
// lightness to RGB) follow the standard formulas used by every CSS
// implementation.
package colorspec

import (
	"fmt"
	"strconv"
	"strings"
)

// RGBA is a straight-alpha colour with each channel in [0,1], the layout
// every render layer's vertex/uniform buffer expects.
type RGBA struct {
	R, G, B, A float32
}

// ParseError reports a malformed colour string. Callers at the public
// boundary translate this into heroinegraph.Error{Kind: KindInvalidColor}.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("colorspec: invalid colour %q: %s", e.Input, e.Reason)
}

// Parse converts one of the accepted colour string forms into an RGBA.
func Parse(s string) (RGBA, error) {
	trimmed := strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(trimmed, "#"):
		return parseHex(trimmed)
	case strings.HasPrefix(trimmed, "rgba("):
		return parseFunctional(trimmed, "rgba(", 4)
	case strings.HasPrefix(trimmed, "rgb("):
		return parseFunctional(trimmed, "rgb(", 3)
	case strings.HasPrefix(trimmed, "hsla("):
		return parseHSLFunctional(trimmed, "hsla(", 4)
	case strings.HasPrefix(trimmed, "hsl("):
		return parseHSLFunctional(trimmed, "hsl(", 3)
	default:
		return RGBA{}, &ParseError{Input: s, Reason: "unrecognised colour form"}
	}
}

func parseHex(s string) (RGBA, error) {
	hex := s[1:]
	var r, g, b, a uint64
	var err error
	switch len(hex) {
	case 3:
		r, err = strconv.ParseUint(dup(hex[0:1]), 16, 8)
		if err == nil {
			g, err = strconv.ParseUint(dup(hex[1:2]), 16, 8)
		}
		if err == nil {
			b, err = strconv.ParseUint(dup(hex[2:3]), 16, 8)
		}
		a = 255
	case 6:
		r, err = strconv.ParseUint(hex[0:2], 16, 8)
		if err == nil {
			g, err = strconv.ParseUint(hex[2:4], 16, 8)
		}
		if err == nil {
			b, err = strconv.ParseUint(hex[4:6], 16, 8)
		}
		a = 255
	case 8:
		r, err = strconv.ParseUint(hex[0:2], 16, 8)
		if err == nil {
			g, err = strconv.ParseUint(hex[2:4], 16, 8)
		}
		if err == nil {
			b, err = strconv.ParseUint(hex[4:6], 16, 8)
		}
		if err == nil {
			a, err = strconv.ParseUint(hex[6:8], 16, 8)
		}
	default:
		return RGBA{}, &ParseError{Input: s, Reason: "hex colour must have 3, 6, or 8 digits"}
	}
	if err != nil {
		return RGBA{}, &ParseError{Input: s, Reason: "invalid hex digit"}
	}
	return RGBA{
		R: float32(r) / 255,
		G: float32(g) / 255,
		B: float32(b) / 255,
		A: float32(a) / 255,
	}, nil
}

// dup doubles a single hex digit, e.g. "a" -> "aa", for the #rgb short form.
func dup(s string) string { return s + s }

func parseFunctional(s, prefix string, wantComponents int) (RGBA, error) {
	if !strings.HasSuffix(s, ")") {
		return RGBA{}, &ParseError{Input: s, Reason: "missing closing parenthesis"}
	}
	inner := s[len(prefix) : len(s)-1]
	parts := splitArgs(inner)
	if len(parts) != wantComponents {
		return RGBA{}, &ParseError{Input: s, Reason: fmt.Sprintf("expected %d components, got %d", wantComponents, len(parts))}
	}
	r, err := parseChannel(parts[0])
	if err != nil {
		return RGBA{}, &ParseError{Input: s, Reason: err.Error()}
	}
	g, err := parseChannel(parts[1])
	if err != nil {
		return RGBA{}, &ParseError{Input: s, Reason: err.Error()}
	}
	b, err := parseChannel(parts[2])
	if err != nil {
		return RGBA{}, &ParseError{Input: s, Reason: err.Error()}
	}
	a := float32(1)
	if wantComponents == 4 {
		a, err = parseAlpha(parts[3])
		if err != nil {
			return RGBA{}, &ParseError{Input: s, Reason: err.Error()}
		}
	}
	return RGBA{R: r, G: g, B: b, A: a}, nil
}

func parseChannel(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 32)
		if err != nil {
			return 0, fmt.Errorf("invalid percentage channel %q", s)
		}
		return clamp01(float32(v) / 100), nil
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid channel %q", s)
	}
	return clamp01(float32(v) / 255), nil
}

func parseAlpha(s string) (float32, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "%") {
		v, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 32)
		if err != nil {
			return 0, fmt.Errorf("invalid alpha %q", s)
		}
		return clamp01(float32(v) / 100), nil
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid alpha %q", s)
	}
	return clamp01(float32(v)), nil
}

func parseHSLFunctional(s, prefix string, wantComponents int) (RGBA, error) {
	if !strings.HasSuffix(s, ")") {
		return RGBA{}, &ParseError{Input: s, Reason: "missing closing parenthesis"}
	}
	inner := s[len(prefix) : len(s)-1]
	parts := splitArgs(inner)
	if len(parts) != wantComponents {
		return RGBA{}, &ParseError{Input: s, Reason: fmt.Sprintf("expected %d components, got %d", wantComponents, len(parts))}
	}
	hStr := strings.TrimSpace(parts[0])
	hStr = strings.TrimSuffix(hStr, "deg")
	h, err := strconv.ParseFloat(hStr, 32)
	if err != nil {
		return RGBA{}, &ParseError{Input: s, Reason: "invalid hue"}
	}
	satStr := strings.TrimSpace(strings.TrimSuffix(parts[1], "%"))
	sat, err := strconv.ParseFloat(satStr, 32)
	if err != nil {
		return RGBA{}, &ParseError{Input: s, Reason: "invalid saturation"}
	}
	lightStr := strings.TrimSpace(strings.TrimSuffix(parts[2], "%"))
	light, err := strconv.ParseFloat(lightStr, 32)
	if err != nil {
		return RGBA{}, &ParseError{Input: s, Reason: "invalid lightness"}
	}
	a := float32(1)
	if wantComponents == 4 {
		a, err = parseAlpha(parts[3])
		if err != nil {
			return RGBA{}, &ParseError{Input: s, Reason: err.Error()}
		}
	}
	r, g, b := hslToRGB(normalizeHue(float32(h)), clamp01(float32(sat)/100), clamp01(float32(light)/100))
	return RGBA{R: r, G: g, B: b, A: a}, nil
}

func normalizeHue(h float32) float32 {
	h = float32(int(h*1000)%360000) / 1000
	if h < 0 {
		h += 360
	}
	return h
}

// hslToRGB implements the standard CSS Color hue/chroma conversion.
func hslToRGB(h, s, l float32) (r, g, b float32) {
	if s == 0 {
		return l, l, l
	}
	c := (1 - absf(2*l-1)) * s
	hp := h / 60
	x := c * (1 - absf(modf(hp, 2)-1))
	var r1, g1, b1 float32
	switch {
	case hp < 1:
		r1, g1, b1 = c, x, 0
	case hp < 2:
		r1, g1, b1 = x, c, 0
	case hp < 3:
		r1, g1, b1 = 0, c, x
	case hp < 4:
		r1, g1, b1 = 0, x, c
	case hp < 5:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}
	m := l - c/2
	return r1 + m, g1 + m, b1 + m
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func modf(v, m float32) float32 {
	for v >= m {
		v -= m
	}
	for v < 0 {
		v += m
	}
	return v
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// splitArgs splits a comma-separated functional-colour argument list,
// tolerating the legacy "1 2 3 / 4" slash-alpha form's comma-free siblings
// by also accepting whitespace as a separator when no commas are present.
func splitArgs(inner string) []string {
	if strings.Contains(inner, ",") {
		inner = strings.ReplaceAll(inner, "/", ",")
		parts := strings.Split(inner, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	fields := strings.Fields(strings.ReplaceAll(inner, "/", " "))
	return fields
}
