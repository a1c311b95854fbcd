package gfx

import "github.com/spaghettifunk/anima-gfx/engine/math"

// Resource is any object created by a Driver.
type Resource interface {
	Name() string
}

type Buffer interface {
	Resource
	Size() int
	Usage() MemUsage
}

type VertBuffer interface {
	Buffer
	isVertBuffer()
}

type IndexBuffer interface {
	Buffer
	isIndexBuffer()
}

type UniformBuffer interface {
	Buffer
	isUniformBuffer()
}

type StorageBuffer interface {
	Buffer
	isStorageBuffer()
}

// The marker types below let backends embed the buffer kind they implement.

type VertBufferKind struct{}

func (VertBufferKind) isVertBuffer() {}

type IndexBufferKind struct{}

func (IndexBufferKind) isIndexBuffer() {}

type UniformBufferKind struct{}

func (UniformBufferKind) isUniformBuffer() {}

type StorageBufferKind struct{}

func (StorageBufferKind) isStorageBuffer() {}

type TextureDesc struct {
	TexType TexType
	Width   int
	Height  int
	Array   int
	Mips    int
	Format  Format
	Usage   MemUsage
}

type Texture interface {
	Resource
	Desc() TextureDesc
}

type SamplerDesc struct {
	MinFilter     SamplerFilter
	MagFilter     SamplerFilter
	Address       SamplerAddress
	MaxAnisotropy float32
}

type Sampler interface {
	Resource
	Desc() SamplerDesc
}

/** @brief Opaque shader stages. Compilation and reflection are done offline. */
type ShaderDesc struct {
	Vertex   []byte
	Fragment []byte
}

type Shader interface {
	Resource
}

type VertElement struct {
	Attrib VertAttrib
	Buffer int
	Offset int
	Stride int
}

type VertElements []VertElement

// Attribs returns the mask of attributes present in the elements.
func (e VertElements) Attribs() VertAttribs {
	var mask VertAttribs
	for _, el := range e {
		mask = mask.With(el.Attrib)
	}
	return mask
}

// NewInterleavedElements lays out the attributes, in attribute order, in a
// single interleaved buffer.
func NewInterleavedElements(buffer int, attribs VertAttribs) VertElements {
	stride := attribs.Stride()
	var elements VertElements
	offset := 0
	for a := VertAttrib(0); a < VertAttribMax; a++ {
		if !attribs.Has(a) {
			continue
		}
		elements = append(elements, VertElement{Attrib: a, Buffer: buffer, Offset: offset, Stride: stride})
		offset += a.Size()
	}
	return elements
}

type VertFormat interface {
	Resource
	Elements() VertElements
}

type RenderPassDesc struct {
	ColorTargets int
	Depth        bool
	ClearColor   math.Vec4
	ClearDepth   float32
}

type RenderPass interface {
	Resource
	Desc() RenderPassDesc
}

type PipelineState struct {
	DepthEnable bool
	DepthWrite  bool
	Blending    bool
	CullBack    bool
}

type PipelineDesc struct {
	Shader     Shader
	VertFormat VertFormat
	PrimType   PrimType
	Pass       RenderPass
	Layouts    []DescSetLayout
	State      PipelineState
}

type Pipeline interface {
	Resource
	Status() PipelineStatus
	Desc() PipelineDesc
}
