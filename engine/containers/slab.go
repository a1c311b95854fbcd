package containers

import "errors"

var ErrInvalidHandle = errors.New("invalid or stale slab handle")

// Handle addresses a slab slot. The generation changes every time the slot
// is freed, so handles kept past Free are detected as stale.
type Handle struct {
	index      uint32
	generation uint32
}

func (h Handle) Index() uint32 {
	return h.index
}

func (h Handle) Generation() uint32 {
	return h.generation
}

// IsZero reports whether h was never returned by Allocate. Generations
// start at 1 so the zero Handle is never valid.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

type slabSlot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Slab is a fixed-block pool. Elements live in blocks that never move, so
// pointers returned by Allocate stay valid until the slot is freed. It is
// not safe for concurrent use.
type Slab[T any] struct {
	blockSize int
	blocks    [][]slabSlot[T]
	free      Stack[uint32]
	live      int
}

func NewSlab[T any](blockSize int) *Slab[T] {
	if blockSize < 1 {
		blockSize = 64
	}
	return &Slab[T]{blockSize: blockSize}
}

// Allocate returns a zeroed element and its handle.
func (s *Slab[T]) Allocate() (Handle, *T) {
	index, ok := s.free.Pop()
	if !ok {
		index = uint32(len(s.blocks) * s.blockSize)
		s.blocks = append(s.blocks, make([]slabSlot[T], s.blockSize))
		// hand out the first slot of the new block, queue the rest
		for i := s.blockSize - 1; i >= 1; i-- {
			s.free.Push(index + uint32(i))
		}
	}

	slot := s.slot(index)
	var zero T
	slot.value = zero
	slot.live = true
	if slot.generation == 0 {
		slot.generation = 1
	}
	s.live++
	return Handle{index: index, generation: slot.generation}, &slot.value
}

// Get resolves a handle. ok is false for freed or foreign handles.
func (s *Slab[T]) Get(h Handle) (*T, bool) {
	slot := s.lookup(h)
	if slot == nil {
		return nil, false
	}
	return &slot.value, true
}

// Free releases the slot and invalidates every copy of h.
func (s *Slab[T]) Free(h Handle) error {
	slot := s.lookup(h)
	if slot == nil {
		return ErrInvalidHandle
	}
	var zero T
	slot.value = zero
	slot.live = false
	slot.generation++
	if slot.generation == 0 {
		slot.generation = 1
	}
	s.free.Push(h.index)
	s.live--
	return nil
}

// Len returns the number of live elements.
func (s *Slab[T]) Len() int {
	return s.live
}

// Cap returns the number of slots across all blocks.
func (s *Slab[T]) Cap() int {
	return len(s.blocks) * s.blockSize
}

func (s *Slab[T]) slot(index uint32) *slabSlot[T] {
	return &s.blocks[int(index)/s.blockSize][int(index)%s.blockSize]
}

func (s *Slab[T]) lookup(h Handle) *slabSlot[T] {
	if h.generation == 0 || int(h.index) >= s.Cap() {
		return nil
	}
	slot := s.slot(h.index)
	if !slot.live || slot.generation != h.generation {
		return nil
	}
	return slot
}
