package render

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/math"
)

type ParamType uint8

const (
	ParamInt ParamType = iota
	ParamFloat
	ParamVec2
	ParamVec3
	ParamVec4
)

var paramTypeNames = []string{"int", "float", "vec2", "vec3", "vec4"}

func (t ParamType) String() string {
	if int(t) < len(paramTypeNames) {
		return paramTypeNames[t]
	}
	return fmt.Sprintf("ParamType(%d)", uint8(t))
}

func ParseParamType(name string) (ParamType, error) {
	for i, n := range paramTypeNames {
		if n == name {
			return ParamType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown param type %q", name)
}

func (t ParamType) Components() int {
	switch t {
	case ParamVec2:
		return 2
	case ParamVec3:
		return 3
	case ParamVec4:
		return 4
	}
	return 1
}

func (t ParamType) Size() int {
	return 4 * t.Components()
}

// every param gets its own slot so std140 vec3 padding never matters
const paramSlotSize = 16

type ShaderParamDesc struct {
	Name string
	Type ParamType
	// Default is parsed like Material.SetParam, empty means zero.
	Default string
}

type ShaderTextureDesc struct {
	Name    string
	TexType gfx.TexType
}

/** @brief Reflected description of a shader. Reflection itself happens offline. */
type ShaderDesc struct {
	Name    string
	Program gfx.Shader
	Params  []ShaderParamDesc
	// Textures are bound at StartTexturesSlot+i in the per material set.
	Textures []ShaderTextureDesc
	// Passes the shader has a variation for.
	Passes DrawPassMask
	// RequiredAttribs must all be present in a mesh to select this shader.
	RequiredAttribs gfx.VertAttribs
	// StartBuffersSlot is the binding of the params buffer.
	StartBuffersSlot  int
	StartTexturesSlot int
}

type ShaderParam struct {
	Name    string
	Type    ParamType
	Offset  int
	Size    int
	Default string
	ID      int
}

type ShaderTexture struct {
	Name    string
	TexType gfx.TexType
	ID      int
}

type Shader struct {
	desc           ShaderDesc
	params         []ShaderParam
	paramsByName   map[string]int
	paramsSize     int
	defaults       []byte
	textures       []ShaderTexture
	texturesByName map[string]int

	mutex  sync.Mutex
	layout gfx.DescSetLayout
}

// GenerateParamsLayout packs params in declaration order, one 16 byte slot each.
func GenerateParamsLayout(params []ShaderParamDesc) ([]ShaderParam, int) {
	out := make([]ShaderParam, 0, len(params))
	total := 0
	for i, p := range params {
		size := p.Type.Size()
		out = append(out, ShaderParam{
			Name:    p.Name,
			Type:    p.Type,
			Offset:  total,
			Size:    size,
			Default: p.Default,
			ID:      i,
		})
		total += math.Align(size, paramSlotSize)
	}
	return out, total
}

func NewShader(desc ShaderDesc) (*Shader, error) {
	s := &Shader{
		desc:           desc,
		paramsByName:   make(map[string]int, len(desc.Params)),
		texturesByName: make(map[string]int, len(desc.Textures)),
	}

	s.params, s.paramsSize = GenerateParamsLayout(desc.Params)
	s.defaults = make([]byte, s.paramsSize)
	for i, p := range s.params {
		if _, ok := s.paramsByName[p.Name]; ok {
			return nil, fmt.Errorf("shader %s: duplicate param %q", desc.Name, p.Name)
		}
		s.paramsByName[p.Name] = i
		if p.Default == "" {
			continue
		}
		value, err := encodeParam(p.Type, p.Default)
		if err != nil {
			return nil, fmt.Errorf("shader %s: default of %s: %w", desc.Name, p.Name, err)
		}
		copy(s.defaults[p.Offset:], value)
	}

	for i, t := range desc.Textures {
		if _, ok := s.texturesByName[t.Name]; ok {
			return nil, fmt.Errorf("shader %s: duplicate texture %q", desc.Name, t.Name)
		}
		s.texturesByName[t.Name] = i
		s.textures = append(s.textures, ShaderTexture{Name: t.Name, TexType: t.TexType, ID: i})
	}

	if len(s.params) > 0 && desc.StartBuffersSlot >= desc.StartTexturesSlot &&
		desc.StartBuffersSlot < desc.StartTexturesSlot+len(s.textures) {
		return nil, fmt.Errorf("shader %s: params slot %d overlaps the texture slots", desc.Name, desc.StartBuffersSlot)
	}
	return s, nil
}

func (s *Shader) Name() string              { return s.desc.Name }
func (s *Shader) Program() gfx.Shader       { return s.desc.Program }
func (s *Shader) Passes() DrawPassMask      { return s.desc.Passes }
func (s *Shader) Params() []ShaderParam     { return s.params }
func (s *Shader) Textures() []ShaderTexture { return s.textures }
func (s *Shader) ParamsSize() int           { return s.paramsSize }
func (s *Shader) TexturesCount() int        { return len(s.textures) }
func (s *Shader) StartBuffersSlot() int     { return s.desc.StartBuffersSlot }
func (s *Shader) StartTexturesSlot() int    { return s.desc.StartTexturesSlot }

func (s *Shader) Param(name string) (ShaderParam, bool) {
	i, ok := s.paramsByName[name]
	if !ok {
		return ShaderParam{}, false
	}
	return s.params[i], true
}

func (s *Shader) Texture(name string) (ShaderTexture, bool) {
	i, ok := s.texturesByName[name]
	if !ok {
		return ShaderTexture{}, false
	}
	return s.textures[i], true
}

// DefaultParams returns a fresh params buffer filled with the defaults.
func (s *Shader) DefaultParams() []byte {
	return append([]byte(nil), s.defaults...)
}

func (s *Shader) lookupParam(owner, name string, t ParamType) (ShaderParam, error) {
	p, ok := s.Param(name)
	if !ok {
		return p, fmt.Errorf("%s: %w %q in shader %s", owner, core.ErrUnknownParam, name, s.desc.Name)
	}
	if p.Type != t {
		return p, fmt.Errorf("%s: %w: %s is %s, got %s", owner, core.ErrParamType, name, p.Type, t)
	}
	return p, nil
}

func (s *Shader) lookupTexture(owner, name string, texture gfx.Texture, sampler gfx.Sampler) (ShaderTexture, error) {
	t, ok := s.Texture(name)
	if !ok {
		return t, fmt.Errorf("%s: %w %q in shader %s", owner, core.ErrUnknownParam, name, s.desc.Name)
	}
	if texture == nil {
		return t, fmt.Errorf("%s: %w: %s", owner, core.ErrNilTexture, name)
	}
	if sampler == nil {
		return t, fmt.Errorf("%s: %w: no sampler for %s", owner, core.ErrNilTexture, name)
	}
	if texture.Desc().TexType != t.TexType {
		return t, fmt.Errorf("%s: %w: %s is %s, got %s", owner, core.ErrParamType, name, t.TexType, texture.Desc().TexType)
	}
	return t, nil
}

/** @brief Layout of the per material set: the params buffer and one binding per texture. */
func (s *Shader) MaterialLayoutDesc() gfx.DescSetLayoutDesc {
	var layout gfx.DescSetLayoutDesc
	if s.paramsSize > 0 {
		layout = append(layout, gfx.DescBinding{
			Binding: s.desc.StartBuffersSlot,
			Type:    gfx.BindingTypeUniformBuffer,
			Count:   1,
			Name:    "params",
		})
	}
	for _, t := range s.textures {
		layout = append(layout, gfx.DescBinding{
			Binding: s.desc.StartTexturesSlot + t.ID,
			Type:    gfx.BindingTypeSampledTexture,
			Count:   1,
			Name:    t.Name,
		})
	}
	return layout
}

// MaterialLayout creates the per material layout on first use.
func (s *Shader) MaterialLayout(driver gfx.Driver) (gfx.DescSetLayout, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.layout != nil {
		return s.layout, nil
	}
	layout, err := driver.MakeDescSetLayout(s.MaterialLayoutDesc(), s.desc.Name+".material")
	if err != nil {
		return nil, err
	}
	s.layout = layout
	return layout, nil
}

// PassPipelineState is the fixed function state every shader uses in pass.
func PassPipelineState(pass DrawPass) gfx.PipelineState {
	switch pass {
	case DrawPassDepth:
		return gfx.PipelineState{DepthEnable: true, DepthWrite: true, CullBack: true}
	case DrawPassColor:
		return gfx.PipelineState{DepthEnable: true, DepthWrite: true, CullBack: true}
	case DrawPassColorTransparent:
		return gfx.PipelineState{DepthEnable: true, Blending: true}
	}
	return gfx.PipelineState{Blending: true}
}

/** @brief Builds the descriptor of the permutation used for pass and attribs. */
func (s *Shader) PipelineDesc(pass DrawPass, attribs gfx.VertAttribs, format gfx.VertFormat, prim gfx.PrimType, layouts ...gfx.DescSetLayout) (gfx.PipelineDesc, error) {
	if !s.desc.Passes.Has(pass) {
		return gfx.PipelineDesc{}, fmt.Errorf("%w: %s has no %s pass", core.ErrNoShaderVariation, s.desc.Name, pass)
	}
	if attribs&s.desc.RequiredAttribs != s.desc.RequiredAttribs {
		return gfx.PipelineDesc{}, fmt.Errorf("%w: %s needs attributes %#x, mesh has %#x", core.ErrNoShaderVariation, s.desc.Name, uint32(s.desc.RequiredAttribs), uint32(attribs))
	}
	return gfx.PipelineDesc{
		Shader:     s.desc.Program,
		VertFormat: format,
		PrimType:   prim,
		Layouts:    layouts,
		State:      PassPipelineState(pass),
	}, nil
}

// encodeParam parses text with the components separated by spaces or commas.
func encodeParam(t ParamType, text string) ([]byte, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
	if len(fields) != t.Components() {
		return nil, fmt.Errorf("%w: %s wants %d components, got %q", core.ErrParamType, t, t.Components(), text)
	}

	out := make([]byte, t.Size())
	if t == ParamInt {
		v, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", core.ErrParamType, err.Error())
		}
		binary.LittleEndian.PutUint32(out, uint32(int32(v)))
		return out, nil
	}

	values := make([]float32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", core.ErrParamType, err.Error())
		}
		values[i] = float32(v)
	}
	math.PutFloats(out, values...)
	return out, nil
}

func encodeInt(v int32) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, uint32(v))
	return out
}

func encodeFloats(values ...float32) []byte {
	out := make([]byte, 4*len(values))
	math.PutFloats(out, values...)
	return out
}
