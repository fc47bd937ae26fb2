// Package pixel defines the sink the frame stream is rendered to.
package pixel

import (
	"fmt"
	"math"
	"strings"

	"discoagent/internal/frame"
)

// Color is the sink-facing representation of a pixel.
type Color struct {
	R, G, B uint8
}

// Sink is an LED strip, physical or emulated.
type Sink interface {
	Begin() error
	// SetBrightness sets the global brightness, 0-100.
	SetBrightness(level uint8) error
	SetPixelColor(index int, c Color)
	// Show flushes all pending pixel writes to the output at once.
	Show() error
}

// AlphaPolicy decides how the alpha channel of a record is used.
type AlphaPolicy int

const (
	// WeightedAlpha multiplies every color channel by the alpha channel.
	WeightedAlpha AlphaPolicy = iota
	// FixedAlpha ignores the alpha channel.
	FixedAlpha
)

func (p AlphaPolicy) String() string {
	switch p {
	case WeightedAlpha:
		return "weighted"
	case FixedAlpha:
		return "fixed"
	default:
		return fmt.Sprintf("AlphaPolicy(%d)", int(p))
	}
}

// ParseAlphaPolicy parses "weighted" or "fixed".
func ParseAlphaPolicy(s string) (AlphaPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weighted", "":
		return WeightedAlpha, nil
	case "fixed":
		return FixedAlpha, nil
	default:
		return 0, fmt.Errorf("unknown alpha policy %q", s)
	}
}

// ToColor converts a record to a Color, truncating toward zero.
func (p AlphaPolicy) ToColor(px frame.RGBA) Color {
	alpha := float32(1)
	if p == WeightedAlpha {
		alpha = px.A
	}
	return Color{
		R: channel(px.R, alpha),
		G: channel(px.G, alpha),
		B: channel(px.B, alpha),
	}
}

func channel(v, alpha float32) uint8 {
	f := float64(v) * float64(alpha) * 255
	switch {
	case math.IsNaN(f), f <= 0:
		return 0
	case f >= 255:
		return 255
	}
	return uint8(f)
}

// ApplyFrame writes every pixel of f to sink in index order and shows it once.
func ApplyFrame(sink Sink, f *frame.Frame, policy AlphaPolicy) error {
	start := int(f.Header.StartIndex)
	for i, px := range f.Pixels {
		sink.SetPixelColor(start+i, policy.ToColor(px))
	}
	return sink.Show()
}
