package math

import (
	"encoding/binary"
	gomath "math"
)

/**
 * @brief Creates and returns a new 2-element vector using the supplied values.
 */
func NewVec2(x, y float32) Vec2 {
	return Vec2{X: x, Y: y}
}

/**
 * @brief Creates and returns a new 3-element vector using the supplied values.
 */
func NewVec3(x, y, z float32) Vec3 {
	return Vec3{x, y, z}
}

/**
 * @brief Creates and returns a new 4-element vector using the supplied values.
 */
func NewVec4(x, y, z, w float32) Vec4 {
	return Vec4{x, y, z, w}
}

/**
 * @brief Returns a new vec4 using vector as the x, y and z components and w for w.
 */
func (v Vec3) ToVec4(w float32) Vec4 {
	return Vec4{v.X, v.Y, v.Z, w}
}

func NewMat4Identity() Mat4 {
	var m Mat4
	m.Data[0] = 1
	m.Data[5] = 1
	m.Data[10] = 1
	m.Data[15] = 1
	return m
}

// PutFloats writes the values little endian into dst, which must hold
// 4*len(values) bytes.
func PutFloats(dst []byte, values ...float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(dst[i*4:], gomath.Float32bits(v))
	}
}

// Floats reads n little endian float32 values from src.
func Floats(src []byte, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return out
}

func (v Vec2) Floats() []float32 { return []float32{v.X, v.Y} }
func (v Vec3) Floats() []float32 { return []float32{v.X, v.Y, v.Z} }
func (v Vec4) Floats() []float32 { return []float32{v.X, v.Y, v.Z, v.W} }
func (m Mat4) Floats() []float32 { return m.Data[:] }
