package desc

import (
	"fmt"

	"github.com/spaghettifunk/anima-gfx/engine/containers"
	"github.com/spaghettifunk/anima-gfx/engine/core"
	"github.com/spaghettifunk/anima-gfx/engine/gfx"
)

/**
 * @brief Capacities of the single descriptor pool created at startup. The
 * pool never grows, so size it generously.
 */
type PoolSizes struct {
	MaxSets        int `toml:"max_sets"`
	SampledImages  int `toml:"sampled_images"`
	UniformBuffers int `toml:"uniform_buffers"`
	StorageBuffers int `toml:"storage_buffers"`
	StorageImages  int `toml:"storage_images"`
}

func DefaultPoolSizes() PoolSizes {
	return PoolSizes{
		MaxSets:        8192,
		SampledImages:  16384,
		UniformBuffers: 8192,
		StorageBuffers: 8192,
		StorageImages:  1024,
	}
}

// Count returns the capacity configured for a binding type.
func (p PoolSizes) Count(t gfx.BindingType) int {
	switch t {
	case gfx.BindingTypeSampledTexture:
		return p.SampledImages
	case gfx.BindingTypeUniformBuffer:
		return p.UniformBuffers
	case gfx.BindingTypeStorageBuffer:
		return p.StorageBuffers
	case gfx.BindingTypeStorageImage:
		return p.StorageImages
	}
	return 0
}

// Allocator is the backend side of the manager. S is the native set handle.
type Allocator[S any] interface {
	CreatePool(sizes PoolSizes) error
	AllocateSet(layout gfx.DescSetLayout) (S, error)
	DestroyPool()
}

type Stats struct {
	// Sets carved out of the pool.
	Allocated int
	// Allocations served from a free bucket.
	Reused int
	// Sets currently waiting in free buckets.
	Free int
}

// fatal is swapped by tests, LogFatal exits the process.
var fatal = func(msg string, args ...interface{}) {
	core.LogFatal(msg, args...)
}

// Manager hands out descriptor sets and recycles freed ones per layout.
// It is confined to the gfx thread and takes no locks. When owner is set,
// every call checks it and panics with core.ErrWrongThread on violation.
type Manager[S any] struct {
	sizes     PoolSizes
	allocator Allocator[S]
	owner     func() bool
	buckets   map[uint64]*containers.Stack[S]
	stats     Stats
	destroyed bool
}

func NewManager[S any](sizes PoolSizes, allocator Allocator[S], owner func() bool) (*Manager[S], error) {
	if sizes.MaxSets <= 0 {
		err := fmt.Errorf("descriptor pool needs at least one set, got %d", sizes.MaxSets)
		core.LogError(err.Error())
		return nil, err
	}
	if err := allocator.CreatePool(sizes); err != nil {
		err = fmt.Errorf("failed to create descriptor pool: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	core.LogDebug("descriptor pool created: sets=%d images=%d ubo=%d ssbo=%d storage_images=%d",
		sizes.MaxSets, sizes.SampledImages, sizes.UniformBuffers, sizes.StorageBuffers, sizes.StorageImages)

	return &Manager[S]{
		sizes:     sizes,
		allocator: allocator,
		owner:     owner,
		buckets:   make(map[uint64]*containers.Stack[S]),
	}, nil
}

// Allocate returns a set for the layout, reusing a freed one when possible.
// Running out of pool space is fatal.
func (m *Manager[S]) Allocate(layout gfx.DescSetLayout) S {
	m.checkThread()

	if bucket, ok := m.buckets[layout.ID()]; ok {
		if set, ok := bucket.Pop(); ok {
			m.stats.Reused++
			m.stats.Free--
			return set
		}
	}

	if m.stats.Allocated >= m.sizes.MaxSets {
		fatal("%s: %d sets in use, layout %s", core.ErrPoolExhausted, m.stats.Allocated, layout.Name())
		var zero S
		return zero
	}

	set, err := m.allocator.AllocateSet(layout)
	if err != nil {
		fatal("%s: layout %s: %v", core.ErrPoolExhausted, layout.Name(), err)
		var zero S
		return zero
	}
	m.stats.Allocated++
	return set
}

// Free parks the set in its layout bucket. The pool memory is kept.
func (m *Manager[S]) Free(layout gfx.DescSetLayout, set S) {
	m.checkThread()

	bucket, ok := m.buckets[layout.ID()]
	if !ok {
		bucket = &containers.Stack[S]{}
		m.buckets[layout.ID()] = bucket
	}
	bucket.Push(set)
	m.stats.Free++
}

func (m *Manager[S]) Stats() Stats {
	return m.stats
}

func (m *Manager[S]) Sizes() PoolSizes {
	return m.sizes
}

// Destroy releases the pool and every set carved from it.
func (m *Manager[S]) Destroy() {
	m.checkThread()
	if m.destroyed {
		return
	}
	m.allocator.DestroyPool()
	m.buckets = make(map[uint64]*containers.Stack[S])
	m.stats = Stats{}
	m.destroyed = true
}

func (m *Manager[S]) checkThread() {
	if m.owner != nil && !m.owner() {
		panic(core.ErrWrongThread)
	}
}
