package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
	"github.com/spaghettifunk/anima-gfx/engine/gfx/desc"
)

func BindingTypeToVk(t gfx.BindingType) vk.DescriptorType {
	switch t {
	case gfx.BindingTypeSampledTexture:
		return vk.DescriptorTypeCombinedImageSampler
	case gfx.BindingTypeUniformBuffer:
		return vk.DescriptorTypeUniformBuffer
	case gfx.BindingTypeStorageBuffer:
		return vk.DescriptorTypeStorageBuffer
	case gfx.BindingTypeStorageImage:
		return vk.DescriptorTypeStorageImage
	}
	panic(fmt.Sprintf("vulkan: unsupported binding type %s", t))
}

// PoolSizesToVk lists one pool size per binding type with a non zero capacity.
func PoolSizesToVk(sizes desc.PoolSizes) []vk.DescriptorPoolSize {
	var out []vk.DescriptorPoolSize
	for t := gfx.BindingType(0); t < gfx.BindingTypeMax; t++ {
		count := sizes.Count(t)
		if count <= 0 {
			continue
		}
		out = append(out, vk.DescriptorPoolSize{
			Type:            BindingTypeToVk(t),
			DescriptorCount: uint32(count),
		})
	}
	return out
}

// LayoutBindings maps a layout description, every binding is visible to all stages.
func LayoutBindings(layout gfx.DescSetLayoutDesc) []vk.DescriptorSetLayoutBinding {
	binds := make([]vk.DescriptorSetLayoutBinding, 0, len(layout))
	for _, b := range layout {
		count := b.Count
		if count < 1 {
			count = 1
		}
		binds = append(binds, vk.DescriptorSetLayoutBinding{
			Binding:         uint32(b.Binding),
			DescriptorType:  BindingTypeToVk(b.Type),
			DescriptorCount: uint32(count),
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
		})
	}
	return binds
}

type DescSetLayout struct {
	name   string
	id     uint64
	desc   gfx.DescSetLayoutDesc
	handle vk.DescriptorSetLayout
}

func NewDescSetLayout(device vk.Device, id uint64, layout gfx.DescSetLayoutDesc, name string) (*DescSetLayout, error) {
	binds := LayoutBindings(layout)
	var handle vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(binds)),
		PBindings:    binds,
	}, nil, &handle)
	if err := ResultError("create descriptor set layout "+name, ret); err != nil {
		return nil, err
	}
	return &DescSetLayout{name: name, id: id, desc: layout, handle: handle}, nil
}

func (l *DescSetLayout) Name() string                { return l.name }
func (l *DescSetLayout) ID() uint64                  { return l.id }
func (l *DescSetLayout) Desc() gfx.DescSetLayoutDesc { return l.desc }
func (l *DescSetLayout) Handle() vk.DescriptorSetLayout {
	return l.handle
}

func (l *DescSetLayout) Destroy(device vk.Device) {
	vk.DestroyDescriptorSetLayout(device, l.handle, nil)
}

// DescPoolAllocator owns the one descriptor pool of a device. Sets are
// never returned to Vulkan individually, desc.Manager recycles them.
type DescPoolAllocator struct {
	device vk.Device
	pool   vk.DescriptorPool
	alive  bool
}

func NewDescPoolAllocator(device vk.Device) *DescPoolAllocator {
	return &DescPoolAllocator{device: device}
}

func (a *DescPoolAllocator) CreatePool(sizes desc.PoolSizes) error {
	pools := PoolSizesToVk(sizes)
	var pool vk.DescriptorPool
	ret := vk.CreateDescriptorPool(a.device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       uint32(sizes.MaxSets),
		PoolSizeCount: uint32(len(pools)),
		PPoolSizes:    pools,
	}, nil, &pool)
	if err := ResultError("create descriptor pool", ret); err != nil {
		return err
	}
	a.pool = pool
	a.alive = true
	core.LogInfo("vulkan descriptor pool created (max sets %d)", sizes.MaxSets)
	return nil
}

func (a *DescPoolAllocator) AllocateSet(layout gfx.DescSetLayout) (vk.DescriptorSet, error) {
	var set vk.DescriptorSet
	if !a.alive {
		return set, fmt.Errorf("vulkan: descriptor pool destroyed")
	}
	l, ok := layout.(*DescSetLayout)
	if !ok {
		return set, fmt.Errorf("vulkan: layout %T does not belong to the vulkan backend", layout)
	}
	ret := vk.AllocateDescriptorSets(a.device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     a.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{l.handle},
	}, &set)
	if err := ResultError("allocate descriptor set "+l.name, ret); err != nil {
		return set, err
	}
	return set, nil
}

func (a *DescPoolAllocator) DestroyPool() {
	if !a.alive {
		return
	}
	vk.DestroyDescriptorPool(a.device, a.pool, nil)
	a.alive = false
}

// NewDescManager builds the descriptor manager for device. owner reports
// whether the caller is on the gfx thread.
func NewDescManager(device vk.Device, sizes desc.PoolSizes, owner func() bool) (*desc.Manager[vk.DescriptorSet], error) {
	return desc.NewManager[vk.DescriptorSet](sizes, NewDescPoolAllocator(device), owner)
}
