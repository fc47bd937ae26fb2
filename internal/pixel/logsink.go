package pixel

import (
	"fmt"
	"strings"

	"discoagent/internal/logger"
)

// LogSink is an emulated strip that prints each shown frame to the log.
type LogSink struct {
	log        logger.Logger
	pixels     []Color
	brightness uint8
	frames     uint64
}

// NewLogSink creates an emulated strip of n pixels.
func NewLogSink(log logger.Logger, n int) *LogSink {
	return &LogSink{
		log:    log,
		pixels: make([]Color, n),
	}
}

func (s *LogSink) Begin() error {
	s.log.With(logger.Fields{"module": "sink"}).Infof("emulated strip with %d pixels", len(s.pixels))
	return nil
}

func (s *LogSink) SetBrightness(level uint8) error {
	if level > 100 {
		return fmt.Errorf("brightness %d out of range 0-100", level)
	}
	s.brightness = level
	return nil
}

// SetPixelColor ignores indexes outside the strip.
func (s *LogSink) SetPixelColor(index int, c Color) {
	if index < 0 || index >= len(s.pixels) {
		return
	}
	s.pixels[index] = c
}

func (s *LogSink) Show() error {
	s.frames++
	if s.log.GetLevel() != "debug" && s.log.GetLevel() != "trace" {
		return nil
	}
	var sb strings.Builder
	for _, c := range s.pixels {
		fmt.Fprintf(&sb, "%02x%02x%02x ", c.R, c.G, c.B)
	}
	s.log.With(logger.Fields{"module": "sink"}).Debugf("frame %d (brightness %d): %s", s.frames, s.brightness, sb.String())
	return nil
}

// Pixel returns the last color written at index.
func (s *LogSink) Pixel(index int) Color {
	return s.pixels[index]
}
