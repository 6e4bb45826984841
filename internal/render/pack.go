package render

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/woozymasta/windlayer/internal/feature"
)

// Slot locates one attribute inside an interleaved vertex.
type Slot struct {
	Name   string `json:"name"`
	Input  string `json:"input"`
	Offset int    `json:"offset"` // in floats
	Size   int    `json:"size"`
}

// Buffer is an interleaved float32 vertex buffer, one vertex per feature.
type Buffer struct {
	Layout []Slot
	Data   []float32
	Stride int // floats per vertex
	Count  int
}

// LayoutOf computes the interleaved layout for spec in declaration order.
func LayoutOf(spec feature.AttributeSpec) []Slot {
	slots := make([]Slot, len(spec))
	offset := 0
	for i, d := range spec {
		slots[i] = Slot{Name: d.Name, Input: d.ShaderInput(), Offset: offset, Size: d.Arity}
		offset += d.Arity
	}
	return slots
}

// Pack interleaves the attributes of every feature. A feature missing a
// declared attribute, or carrying one of the wrong length, fails the whole
// pack since the renderer cannot bind a partial vertex.
func Pack(features []feature.Feature, spec feature.AttributeSpec) (Buffer, error) {
	buf := Buffer{
		Layout: LayoutOf(spec),
		Stride: spec.Stride(),
		Count:  len(features),
	}
	buf.Data = make([]float32, 0, buf.Stride*len(features))

	for _, f := range features {
		for _, slot := range buf.Layout {
			v, ok := f.Attributes[slot.Name]
			if !ok {
				return Buffer{}, fmt.Errorf("feature %d: %w: %s", f.Index, feature.ErrMissingField, slot.Name)
			}
			if len(v) != slot.Size {
				return Buffer{}, fmt.Errorf("feature %d: %w: %s has %d values, layout %d", f.Index, feature.ErrArityMismatch, slot.Name, len(v), slot.Size)
			}
			for _, x := range v {
				buf.Data = append(buf.Data, float32(x))
			}
		}
	}

	return buf, nil
}

// Bytes encodes the buffer data as little-endian float32, the layout WebGL
// expects for a Float32Array.
func (b Buffer) Bytes() []byte {
	out := make([]byte, 4*len(b.Data))
	for i, x := range b.Data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(x))
	}
	return out
}
