// Package memory provides the arena-style allocator the renderer uses for its
// host-side arrays. Go owns the actual memory; the arena enforces the budget,
// the stack discipline of scratch scopes and the per-tag accounting.
package memory

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unsafe"
)

var (
	ErrOutOfMemory   = errors.New("arena out of memory")
	ErrPopUnderflow  = errors.New("arena pop larger than the used size")
	ErrScopeReleased = errors.New("arena scope already released")
	ErrScopeOrder    = errors.New("arena scopes must be released in reverse order")
)

type Tag uint8

const (
	TagUnknown Tag = iota
	TagRenderer
	TagSwapchain
	TagScratch
	tagMaxTags
)

var tagNames = [tagMaxTags]string{
	"UNKNOWN",
	"RENDERER",
	"SWAPCHAIN",
	"SCRATCH",
}

func (t Tag) String() string {
	if t >= tagMaxTags {
		return tagNames[TagUnknown]
	}
	return tagNames[t]
}

// Arena is a bump allocator over a fixed byte budget. Push moves the watermark
// forward, Pop and scratch scopes move it back.
type Arena struct {
	mu       sync.Mutex
	capacity uint64
	used     uint64
	peak     uint64
	tagged   [tagMaxTags]uint64
	scopes   []*Scope
}

// Mark is a watermark returned by Push.
type Mark uint64

func NewArena(capacity uint64) *Arena {
	return &Arena{capacity: capacity}
}

// Push reserves size bytes and returns the watermark before the reservation.
func (a *Arena) Push(size uint64) (Mark, error) {
	return a.PushTagged(size, TagUnknown)
}

func (a *Arena) PushTagged(size uint64, tag Tag) (Mark, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.used+size > a.capacity {
		return Mark(a.used), fmt.Errorf("%w: requested %d bytes, %d of %d in use", ErrOutOfMemory, size, a.used, a.capacity)
	}
	mark := Mark(a.used)
	a.used += size
	if a.used > a.peak {
		a.peak = a.used
	}
	a.tagged[tag] += size
	return mark, nil
}

// Pop releases the last size bytes.
func (a *Arena) Pop(size uint64) error {
	return a.PopTagged(size, TagUnknown)
}

func (a *Arena) PopTagged(size uint64, tag Tag) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if size > a.used {
		return fmt.Errorf("%w: pop %d, used %d", ErrPopUnderflow, size, a.used)
	}
	a.used -= size
	if a.tagged[tag] >= size {
		a.tagged[tag] -= size
	} else {
		a.tagged[tag] = 0
	}
	return nil
}

// Clear resets the arena to empty, invalidating every open scope.
func (a *Arena) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.used = 0
	a.tagged = [tagMaxTags]uint64{}
	for _, s := range a.scopes {
		s.released = true
	}
	a.scopes = nil
}

func (a *Arena) Used() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}

func (a *Arena) Capacity() uint64 {
	return a.capacity
}

// Report returns a human readable summary of the usage per tag.
func (a *Arena) Report() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Arena usage: %d/%d bytes (peak %d)\n", a.used, a.capacity, a.peak)
	for t := Tag(0); t < tagMaxTags; t++ {
		fmt.Fprintf(&sb, "  %-10s: %d bytes\n", t, a.tagged[t])
	}
	return sb.String()
}

// Scope is a scratch region. Everything pushed after the scope was opened is
// released by Close.
type Scope struct {
	arena    *Arena
	mark     uint64
	tagged   [tagMaxTags]uint64
	released bool
}

// Scratch opens a temporary scope. Callers should `defer scope.Close()`.
func (a *Arena) Scratch() *Scope {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := &Scope{arena: a, mark: a.used, tagged: a.tagged}
	a.scopes = append(a.scopes, s)
	return s
}

// Close rolls the arena back to the watermark taken when the scope was opened.
func (s *Scope) Close() error {
	a := s.arena
	a.mu.Lock()
	defer a.mu.Unlock()

	if s.released {
		return ErrScopeReleased
	}
	if len(a.scopes) == 0 || a.scopes[len(a.scopes)-1] != s {
		return ErrScopeOrder
	}
	a.scopes = a.scopes[:len(a.scopes)-1]
	a.used = s.mark
	a.tagged = s.tagged
	s.released = true
	return nil
}

// Alloc reserves room for n values of T under tag and returns the slice.
func Alloc[T any](a *Arena, n int, tag Tag) ([]T, error) {
	var zero T
	if _, err := a.PushTagged(uint64(n)*uint64(unsafe.Sizeof(zero)), tag); err != nil {
		return nil, err
	}
	return make([]T, n), nil
}

// Free gives back the room reserved by Alloc for s.
func Free[T any](a *Arena, s []T, tag Tag) error {
	var zero T
	return a.PopTagged(uint64(len(s))*uint64(unsafe.Sizeof(zero)), tag)
}

// ScratchAlloc reserves room for n values of T inside the scope.
func ScratchAlloc[T any](s *Scope, n int) ([]T, error) {
	if s.released {
		return nil, ErrScopeReleased
	}
	return Alloc[T](s.arena, n, TagScratch)
}
