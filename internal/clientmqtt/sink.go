package clientmqtt

import (
	"encoding/json"
	"fmt"

	"discoagent/internal/logger"
	"discoagent/internal/pixel"
)

// Sink is a pixel.Sink that publishes every shown frame as JSON.
type Sink struct {
	log        logger.Logger
	pub        Publisher
	topic      string
	controller string
	pixels     [][3]uint8
	brightness uint8
	seq        uint64
}

var _ pixel.Sink = (*Sink)(nil)

// NewSink creates a sink for a strip of n pixels publishing to topic.
func NewSink(log logger.Logger, pub Publisher, controller, topic string, n int) *Sink {
	return &Sink{
		log:        log,
		pub:        pub,
		topic:      topic,
		controller: controller,
		pixels:     make([][3]uint8, n),
		brightness: 100,
	}
}

func (s *Sink) Begin() error {
	s.log.With(logger.Fields{"module": "mqtt"}).Infof("publishing frames to %s", s.topic)
	return nil
}

func (s *Sink) SetBrightness(level uint8) error {
	if level > 100 {
		return fmt.Errorf("brightness %d out of range 0-100", level)
	}
	s.brightness = level
	return nil
}

func (s *Sink) SetPixelColor(index int, c pixel.Color) {
	if index < 0 || index >= len(s.pixels) {
		return
	}
	s.pixels[index] = [3]uint8{c.R, c.G, c.B}
}

// Show publishes the whole strip as one message.
func (s *Sink) Show() error {
	s.seq++
	msg, err := json.Marshal(FramePayload{
		Controller: s.controller,
		Seq:        s.seq,
		Brightness: s.brightness,
		Pixels:     s.pixels,
	})
	if err != nil {
		return fmt.Errorf("frame payload: %w", err)
	}
	return s.pub.Publish(s.topic, msg)
}
