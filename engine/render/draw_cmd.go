// Package render turns draw primitives into sorted, de-duplicated draw
// calls against a gfx.Ctx.
package render

import (
	"fmt"
	"math/bits"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
)

/** @brief Id of a rendering pass. Every pass owns one command queue per view. */
type DrawPass uint8

const (
	DrawPassDepth DrawPass = iota
	DrawPassColor
	DrawPassColorTransparent
	DrawPassOverlay2d
	DrawPassMax
)

var drawPassNames = [DrawPassMax]string{"depth", "color", "color_transparent", "overlay_2d"}

func (p DrawPass) String() string {
	if p < DrawPassMax {
		return drawPassNames[p]
	}
	return fmt.Sprintf("DrawPass(%d)", uint8(p))
}

// ParseDrawPass is the inverse of String.
func ParseDrawPass(name string) (DrawPass, error) {
	for i, n := range drawPassNames {
		if n == name {
			return DrawPass(i), nil
		}
	}
	return DrawPassMax, fmt.Errorf("unknown draw pass %q", name)
}

/** @brief Set of passes a primitive is drawn in. */
type DrawPassMask uint8

func NewDrawPassMask(passes ...DrawPass) DrawPassMask {
	var m DrawPassMask
	for _, p := range passes {
		m = m.Set(p)
	}
	return m
}

func (m DrawPassMask) Set(p DrawPass) DrawPassMask {
	return m | 1<<p
}

func (m DrawPassMask) Has(p DrawPass) bool {
	return m&(1<<p) != 0
}

func (m DrawPassMask) Count() int {
	return bits.OnesCount8(uint8(m))
}

// Passes lists the set passes in ascending order.
func (m DrawPassMask) Passes() []DrawPass {
	passes := make([]DrawPass, 0, m.Count())
	for p := DrawPass(0); p < DrawPassMax; p++ {
		if m.Has(p) {
			passes = append(passes, p)
		}
	}
	return passes
}

// Descriptor set indices used while executing commands.
const (
	DrawSetPerPass     = 0
	DrawSetPerMaterial = 1
	DrawSetPerDraw     = 2
)

// MaxVertexBuffers covers three per vertex streams and one per instance.
const MaxVertexBuffers = 4

type DrawParams struct {
	VertexCount   int
	IndexCount    int
	BaseVertex    int
	InstanceCount int
}

// NewDrawParams returns params with every count unset.
func NewDrawParams() DrawParams {
	return DrawParams{VertexCount: -1, IndexCount: -1, BaseVertex: -1, InstanceCount: -1}
}

type DrawVertexBuffers struct {
	Buffers [MaxVertexBuffers]gfx.VertBuffer
	Offsets [MaxVertexBuffers]int
}

type DrawIndexBuffer struct {
	Buffer    gfx.IndexBuffer
	Offset    int
	IndexType gfx.IndexType
}

type DrawUniformBuffer struct {
	Buffer   gfx.UniformBuffer
	Offset   int
	Range    int
	Location int
}

/** @brief Where the material resources start in the per material set. */
type DrawMaterialBindings struct {
	FirstTexture int
	FirstBuffer  int
}

/**
 * @brief Fully describes one draw call.
 *
 * A command references buffers, the material and the pipeline without owning
 * any of them. Commands are allocated from the render engine slab and are
 * expected to be cached by whoever compiled them.
 */
type DrawCmd struct {
	Params    DrawParams
	Vertices  DrawVertexBuffers
	Indices   DrawIndexBuffer
	Constants DrawUniformBuffer
	Bindings  DrawMaterialBindings
	Material  *RenderMaterial
	Pipeline  gfx.Pipeline
}

func (c *DrawCmd) Reset() {
	*c = DrawCmd{}
}

/**
 * @brief Packed sort key: reversed layer in the high 32 bits, material hash
 * in the low 32 bits. Ascending order puts higher layers first and groups
 * commands sharing a material.
 */
type DrawCmdSortingKey uint64

const maxLayer = 0xffffffff

func NewSortingKey(layer int, materialHash uint32) (DrawCmdSortingKey, error) {
	if layer < 0 {
		return 0, fmt.Errorf("%w: %d", core.ErrNegativeLayer, layer)
	}
	if uint64(layer) > maxLayer {
		return 0, fmt.Errorf("layer %d does not fit in 32 bits", layer)
	}
	return DrawCmdSortingKey(uint64(maxLayer-uint32(layer))<<32 | uint64(materialHash)), nil
}

func NewOverlaySortingKey(material *RenderMaterial, layer int) (DrawCmdSortingKey, error) {
	var hash uint32
	if material != nil {
		hash = material.Hash()
	}
	return NewSortingKey(layer, hash)
}

func (k DrawCmdSortingKey) Layer() int {
	return int(maxLayer - uint32(k>>32))
}

func (k DrawCmdSortingKey) MaterialHash() uint32 {
	return uint32(k)
}
