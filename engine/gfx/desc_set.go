package gfx

import (
	"fmt"
)

type BindingType uint8

const (
	BindingTypeSampledTexture BindingType = iota
	BindingTypeUniformBuffer
	BindingTypeStorageBuffer
	BindingTypeStorageImage
	BindingTypeMax
)

func (t BindingType) String() string {
	switch t {
	case BindingTypeSampledTexture:
		return "SampledTexture"
	case BindingTypeUniformBuffer:
		return "UniformBuffer"
	case BindingTypeStorageBuffer:
		return "StorageBuffer"
	case BindingTypeStorageImage:
		return "StorageImage"
	}
	return fmt.Sprintf("BindingType(%d)", uint8(t))
}

// Location addresses a binding slot inside a set.
type Location struct {
	Set     int
	Binding int
}

/** @brief One binding of a descriptor set layout. */
type DescBinding struct {
	Binding int
	Type    BindingType
	Count   int
	Name    string
}

type DescSetLayoutDesc []DescBinding

// Find returns the binding declared for slot.
func (d DescSetLayoutDesc) Find(slot int) (DescBinding, bool) {
	for _, b := range d {
		if b.Binding == slot {
			return b, true
		}
	}
	return DescBinding{}, false
}

// DescSetLayout is immutable once created. ID is the identity used to
// recycle descriptor sets between layouts.
type DescSetLayout interface {
	Resource
	ID() uint64
	Desc() DescSetLayoutDesc
}

type DescSet interface {
	Resource
	Layout() DescSetLayout
}

// DescBindValue is one of SampledTextureBinding, UniformBufferBinding,
// StorageBufferBinding or StorageImageBinding.
type DescBindValue interface {
	BindingType() BindingType
	isDescBindValue()
}

type SampledTextureBinding struct {
	Texture Texture
	Sampler Sampler
}

type UniformBufferBinding struct {
	Buffer UniformBuffer
	Offset int
	Range  int
}

type StorageBufferBinding struct {
	Buffer StorageBuffer
	Offset int
	Range  int
}

type StorageImageBinding struct {
	Texture Texture
}

func (SampledTextureBinding) BindingType() BindingType { return BindingTypeSampledTexture }
func (UniformBufferBinding) BindingType() BindingType  { return BindingTypeUniformBuffer }
func (StorageBufferBinding) BindingType() BindingType  { return BindingTypeStorageBuffer }
func (StorageImageBinding) BindingType() BindingType   { return BindingTypeStorageImage }

func (SampledTextureBinding) isDescBindValue() {}
func (UniformBufferBinding) isDescBindValue()  {}
func (StorageBufferBinding) isDescBindValue()  {}
func (StorageImageBinding) isDescBindValue()   {}

type DescSetResource struct {
	Binding      int
	ArrayElement int
	Value        DescBindValue
}

type DescSetResources []DescSetResource

// LayoutDesc derives the layout a set of resources expects.
func (r DescSetResources) LayoutDesc() DescSetLayoutDesc {
	var desc DescSetLayoutDesc
	for _, res := range r {
		found := false
		for i := range desc {
			if desc[i].Binding == res.Binding {
				desc[i].Count = max(desc[i].Count, res.ArrayElement+1)
				found = true
				break
			}
		}
		if !found {
			desc = append(desc, DescBinding{
				Binding: res.Binding,
				Type:    res.Value.BindingType(),
				Count:   res.ArrayElement + 1,
			})
		}
	}
	return desc
}

// CountByType returns how many descriptors of each type the resources use.
func (r DescSetResources) CountByType() [BindingTypeMax]int {
	var counts [BindingTypeMax]int
	for _, res := range r {
		counts[res.Value.BindingType()]++
	}
	return counts
}

// ValidateResources checks every resource against the layout and the
// payload of its binding value.
func ValidateResources(layout DescSetLayoutDesc, resources DescSetResources) error {
	for _, res := range resources {
		if res.Value == nil {
			return fmt.Errorf("binding %d: no value", res.Binding)
		}
		decl, ok := layout.Find(res.Binding)
		if !ok {
			return fmt.Errorf("binding %d: not declared in layout", res.Binding)
		}
		if decl.Type != res.Value.BindingType() {
			return fmt.Errorf("binding %d: layout expects %s, got %s", res.Binding, decl.Type, res.Value.BindingType())
		}
		if res.ArrayElement < 0 || res.ArrayElement >= max(decl.Count, 1) {
			return fmt.Errorf("binding %d: array element %d out of range", res.Binding, res.ArrayElement)
		}

		switch v := res.Value.(type) {
		case SampledTextureBinding:
			if v.Texture == nil || v.Sampler == nil {
				return fmt.Errorf("binding %d: sampled texture needs a texture and a sampler", res.Binding)
			}
		case UniformBufferBinding:
			if v.Buffer == nil || v.Offset < 0 || v.Offset+v.Range > v.Buffer.Size() {
				return fmt.Errorf("binding %d: uniform buffer range out of bounds", res.Binding)
			}
		case StorageBufferBinding:
			if v.Buffer == nil || v.Offset < 0 || v.Offset+v.Range > v.Buffer.Size() {
				return fmt.Errorf("binding %d: storage buffer range out of bounds", res.Binding)
			}
		case StorageImageBinding:
			if v.Texture == nil {
				return fmt.Errorf("binding %d: storage image needs a texture", res.Binding)
			}
		default:
			panic(fmt.Sprintf("unhandled descriptor binding value %T", v))
		}
	}
	return nil
}
