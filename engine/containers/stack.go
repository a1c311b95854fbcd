package containers

// Stack is a LIFO over a slice. The zero value is ready to use.
type Stack[T any] struct {
	data []T
}

func (s *Stack[T]) Push(value T) {
	s.data = append(s.data, value)
}

// Pop removes the top element. ok is false when the stack is empty.
func (s *Stack[T]) Pop() (value T, ok bool) {
	if len(s.data) == 0 {
		return value, false
	}
	last := len(s.data) - 1
	value = s.data[last]
	var zero T
	s.data[last] = zero
	s.data = s.data[:last]
	return value, true
}

func (s *Stack[T]) Peek() (value T, ok bool) {
	if len(s.data) == 0 {
		return value, false
	}
	return s.data[len(s.data)-1], true
}

func (s *Stack[T]) Len() int {
	return len(s.data)
}

func (s *Stack[T]) Empty() bool {
	return len(s.data) == 0
}

// Data exposes the backing slice, bottom first.
func (s *Stack[T]) Data() []T {
	return s.data
}
