package artnet

import "discoagent/internal/pixel"

const (
	// channelsPerPixel is the DMX footprint of one RGB pixel.
	channelsPerPixel = 3
	// PixelsPerUniverse is how many RGB pixels fit in one 512 channel universe.
	PixelsPerUniverse = 512 / channelsPerPixel
)

// Universe wraps the 512 byte array for convenience.
type Universe [512]byte

// UniverseStateMap holds the state of all used universes.
type UniverseStateMap map[uint16]Universe

// state keeps the raw colors of the strip and the universes they land in.
type state struct {
	pixels   []pixel.Color
	base     uint16
	touched  map[uint16]bool
	universe UniverseStateMap
}

func newState(n int, base uint16) *state {
	return &state{
		pixels:   make([]pixel.Color, n),
		base:     base,
		touched:  map[uint16]bool{},
		universe: UniverseStateMap{},
	}
}

// set stores c and reports false when index is off the strip.
func (s *state) set(index int, c pixel.Color) bool {
	if index < 0 || index >= len(s.pixels) {
		return false
	}
	s.pixels[index] = c
	s.touched[s.base+uint16(index/PixelsPerUniverse)] = true
	return true
}

// flush renders touched universes with brightness (0-100) applied and resets
// the touched set.
func (s *state) flush(brightness uint8) UniverseStateMap {
	out := UniverseStateMap{}
	for u := range s.touched {
		dmx := s.universe[u]
		first := int(u-s.base) * PixelsPerUniverse
		for i := 0; i < PixelsPerUniverse && first+i < len(s.pixels); i++ {
			c := s.pixels[first+i]
			dmx[i*channelsPerPixel] = scale(c.R, brightness)
			dmx[i*channelsPerPixel+1] = scale(c.G, brightness)
			dmx[i*channelsPerPixel+2] = scale(c.B, brightness)
		}
		s.universe[u] = dmx
		out[u] = dmx
	}
	s.touched = map[uint16]bool{}
	return out
}

func scale(v, brightness uint8) uint8 {
	return uint8(uint16(v) * uint16(brightness) / 100)
}
