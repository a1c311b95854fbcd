package gfx

import "fmt"

/** @brief Where the memory of a resource lives and who writes it. */
type MemUsage uint8

const (
	/** @brief Device local memory, written through staging updates. */
	MemUsageGpuLocal MemUsage = iota
	/** @brief Host visible memory written by the cpu and read by the gpu. */
	MemUsageCpuVisibleGpu
	/** @brief Memory written by the gpu and read back on the cpu. */
	MemUsageGpuVisibleCpu
)

type IndexType uint8

const (
	IndexTypeUint32 IndexType = iota
	IndexTypeUint16
)

// Size returns the width of one index in bytes.
func (t IndexType) Size() int {
	if t == IndexTypeUint16 {
		return 2
	}
	return 4
}

func (t IndexType) String() string {
	switch t {
	case IndexTypeUint16:
		return "Uint16"
	case IndexTypeUint32:
		return "Uint32"
	}
	return fmt.Sprintf("IndexType(%d)", uint8(t))
}

type PrimType uint8

const (
	PrimTypeTriangles PrimType = iota
	PrimTypeLines
	PrimTypePoints
)

func (t PrimType) String() string {
	switch t {
	case PrimTypeTriangles:
		return "Triangles"
	case PrimTypeLines:
		return "Lines"
	case PrimTypePoints:
		return "Points"
	}
	return fmt.Sprintf("PrimType(%d)", uint8(t))
}

type TexType uint8

const (
	TexType2d TexType = iota
	TexType2dArray
	TexTypeCube
)

func (t TexType) String() string {
	switch t {
	case TexType2d:
		return "Tex2d"
	case TexType2dArray:
		return "Tex2dArray"
	case TexTypeCube:
		return "TexCube"
	}
	return fmt.Sprintf("TexType(%d)", uint8(t))
}

type Format uint8

const (
	FormatRGBA8 Format = iota
	FormatRGBA16F
	FormatR32F
	FormatRG32F
	FormatRGB32F
	FormatRGBA32F
	FormatDepth24Stencil8
)

type SamplerFilter uint8

const (
	SamplerFilterNearest SamplerFilter = iota
	SamplerFilterLinear
)

type SamplerAddress uint8

const (
	SamplerAddressRepeat SamplerAddress = iota
	SamplerAddressClampToEdge
	SamplerAddressMirroredRepeat
)

/** @brief The status of an asynchronously created pipeline. */
type PipelineStatus uint8

const (
	PipelineStatusDefault PipelineStatus = iota
	PipelineStatusCreating
	PipelineStatusCreated
	PipelineStatusFailed
)

func (s PipelineStatus) String() string {
	switch s {
	case PipelineStatusDefault:
		return "Default"
	case PipelineStatusCreating:
		return "Creating"
	case PipelineStatusCreated:
		return "Created"
	case PipelineStatusFailed:
		return "Failed"
	}
	return fmt.Sprintf("PipelineStatus(%d)", uint8(s))
}

type VertAttrib uint8

const (
	VertAttribPos3f VertAttrib = iota
	VertAttribPos2f
	VertAttribNorm3f
	VertAttribTang3f
	VertAttribBoneIds4i
	VertAttribBoneWeights4f
	VertAttribCol04f
	VertAttribCol14f
	VertAttribUv02f
	VertAttribUv12f
	VertAttribMax
)

var vertAttribSizes = [VertAttribMax]int{12, 8, 12, 12, 16, 16, 16, 16, 8, 8}

var vertAttribNames = [VertAttribMax]string{
	"Pos3f", "Pos2f", "Norm3f", "Tang3f", "BoneIds4i",
	"BoneWeights4f", "Col04f", "Col14f", "Uv02f", "Uv12f",
}

// Size is the size of one element of the attribute in bytes.
func (a VertAttrib) Size() int {
	if a >= VertAttribMax {
		return 0
	}
	return vertAttribSizes[a]
}

func (a VertAttrib) String() string {
	if a >= VertAttribMax {
		return fmt.Sprintf("VertAttrib(%d)", uint8(a))
	}
	return vertAttribNames[a]
}

// VertAttribs is a bit mask of present vertex attributes.
type VertAttribs uint32

func NewVertAttribs(attribs ...VertAttrib) VertAttribs {
	var mask VertAttribs
	for _, a := range attribs {
		mask = mask.With(a)
	}
	return mask
}

func (m VertAttribs) With(a VertAttrib) VertAttribs {
	return m | 1<<a
}

func (m VertAttribs) Has(a VertAttrib) bool {
	return m&(1<<a) != 0
}

// Stride returns the interleaved size of all attributes in the mask.
func (m VertAttribs) Stride() int {
	stride := 0
	for a := VertAttrib(0); a < VertAttribMax; a++ {
		if m.Has(a) {
			stride += a.Size()
		}
	}
	return stride
}

type ShaderStage uint8

const (
	ShaderStageVertex ShaderStage = 1 << iota
	ShaderStageFragment
	ShaderStageCompute

	ShaderStageAll = ShaderStageVertex | ShaderStageFragment | ShaderStageCompute
)
