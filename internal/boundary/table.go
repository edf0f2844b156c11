package boundary

import (
	"errors"
	"fmt"
	"sync"
)

// ErrStaleHandle is returned for a zero handle, a handle that was already removed,
// or one whose slot has since been reused.
var ErrStaleHandle = errors.New("stale handle")

// Handle is an opaque reference handed across the boundary. The low 32 bits hold
// the slot index plus one, the high 32 bits the slot generation. Zero is never valid.
type Handle uint64

func makeHandle(index int, gen uint32) Handle {
	return Handle(uint64(gen)<<32 | uint64(index+1))
}

func (h Handle) index() int { return int(uint32(h)) - 1 }
func (h Handle) gen() uint32 { return uint32(h >> 32) }
func (h Handle) IsZero() bool { return h == 0 }
func (h Handle) String() string { return fmt.Sprintf("%d#%d", h.index(), h.gen()) }

type slot[T any] struct {
	gen  uint32
	live bool
	val  T
}

// Table maps generation-checked handles to values. Safe for concurrent use.
type Table[T any] struct {
	mu    sync.Mutex
	slots []slot[T]
	free  []int
	live  int
}

// Insert stores v and returns its handle.
func (t *Table[T]) Insert(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	var i int
	if n := len(t.free); n > 0 {
		i = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot[T]{})
		i = len(t.slots) - 1
	}
	s := &t.slots[i]
	s.gen++
	s.live = true
	s.val = v
	t.live++
	return makeHandle(i, s.gen)
}

func (t *Table[T]) lookup(h Handle) (*slot[T], error) {
	i := h.index()
	if h.IsZero() || i < 0 || i >= len(t.slots) {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	s := &t.slots[i]
	if !s.live || s.gen != h.gen() {
		return nil, fmt.Errorf("%w: %s", ErrStaleHandle, h)
	}
	return s, nil
}

// Get returns the value behind h.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, err := t.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.val, nil
}

// Remove invalidates h and returns the value it referenced.
func (t *Table[T]) Remove(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	s, err := t.lookup(h)
	if err != nil {
		return zero, err
	}
	v := s.val
	s.val = zero
	s.live = false
	t.free = append(t.free, h.index())
	t.live--
	return v, nil
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Drain removes every live value and returns them in slot order.
func (t *Table[T]) Drain() []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []T
	var zero T
	for i := range t.slots {
		s := &t.slots[i]
		if !s.live {
			continue
		}
		out = append(out, s.val)
		s.val = zero
		s.live = false
		t.free = append(t.free, i)
	}
	t.live = 0
	return out
}
