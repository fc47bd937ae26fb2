// Package frame implements the binary pixel-frame wire format.
//
// A datagram is a 12 byte little-endian header (start index, end index,
// frame count) followed by (end-start) RGBA records of four float32 each.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const (
	// HeaderSize is the size of the frame header in bytes.
	HeaderSize = 12
	// Channels is the number of channels in one pixel record.
	Channels = 4
	// PixelSize is the size of one pixel record in bytes.
	PixelSize = Channels * 4
)

var (
	// ErrMalformedHeader is returned when the header is short or inconsistent.
	ErrMalformedHeader = errors.New("malformed frame header")
	// ErrPayloadLengthMismatch is returned when the payload does not hold exactly
	// the number of pixels announced by the header.
	ErrPayloadLengthMismatch = errors.New("frame payload length mismatch")
	// ErrRangeOverflow is returned by Encode when the end index does not fit in
	// 32 bits.
	ErrRangeOverflow = errors.New("frame pixel range overflows uint32")
)

// Header is the fixed part of a data datagram.
type Header struct {
	StartIndex uint32
	EndIndex   uint32
	FrameCount uint32 // FrameCount is carried on the wire but currently unused.
}

// PixelCount returns the number of pixel records announced by the header.
func (h Header) PixelCount() int {
	return int(h.EndIndex - h.StartIndex)
}

// RGBA is a single pixel record, channels nominally in [0,1].
type RGBA struct {
	R, G, B, A float32
}

// Frame is a decoded datagram.
type Frame struct {
	Header Header
	Pixels []RGBA
}

// Decode validates and decodes a raw datagram. It never interprets the payload
// before checking its length against the header.
func Decode(b []byte) (*Frame, error) {
	if len(b) < HeaderSize {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", ErrMalformedHeader, len(b), HeaderSize)
	}

	h := Header{
		StartIndex: binary.LittleEndian.Uint32(b[0:4]),
		EndIndex:   binary.LittleEndian.Uint32(b[4:8]),
		FrameCount: binary.LittleEndian.Uint32(b[8:12]),
	}
	if h.StartIndex > h.EndIndex {
		return nil, fmt.Errorf("%w: start %d > end %d", ErrMalformedHeader, h.StartIndex, h.EndIndex)
	}

	payload := b[HeaderSize:]
	want := uint64(h.EndIndex-h.StartIndex) * PixelSize
	if uint64(len(payload)) != want {
		return nil, fmt.Errorf("%w: got %d bytes, header announces %d", ErrPayloadLengthMismatch, len(payload), want)
	}

	pixels := make([]RGBA, h.PixelCount())
	for i := range pixels {
		p := payload[i*PixelSize:]
		pixels[i] = RGBA{
			R: math.Float32frombits(binary.LittleEndian.Uint32(p[0:4])),
			G: math.Float32frombits(binary.LittleEndian.Uint32(p[4:8])),
			B: math.Float32frombits(binary.LittleEndian.Uint32(p[8:12])),
			A: math.Float32frombits(binary.LittleEndian.Uint32(p[12:16])),
		}
	}

	return &Frame{Header: h, Pixels: pixels}, nil
}

// Encode builds a datagram for pixels starting at startIndex.
func Encode(startIndex, frameCount uint32, pixels []RGBA) ([]byte, error) {
	end := uint64(startIndex) + uint64(len(pixels))
	if end > math.MaxUint32 {
		return nil, fmt.Errorf("%w: start %d, %d pixels", ErrRangeOverflow, startIndex, len(pixels))
	}
	buf := make([]byte, HeaderSize+len(pixels)*PixelSize)
	binary.LittleEndian.PutUint32(buf[0:4], startIndex)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(end))
	binary.LittleEndian.PutUint32(buf[8:12], frameCount)

	for i, px := range pixels {
		p := buf[HeaderSize+i*PixelSize:]
		binary.LittleEndian.PutUint32(p[0:4], math.Float32bits(px.R))
		binary.LittleEndian.PutUint32(p[4:8], math.Float32bits(px.G))
		binary.LittleEndian.PutUint32(p[8:12], math.Float32bits(px.B))
		binary.LittleEndian.PutUint32(p[12:16], math.Float32bits(px.A))
	}
	return buf, nil
}
