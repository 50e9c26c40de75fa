package emptybox

import (
	"unsafe"

	"github.com/vkngwrapper/emptybox/allocator"
)

// Box is the full state of a heap allocation: it owns the allocation and the live T inside it.
// The zero Box, and any Box that has been consumed, is dead; every method other than Drop, Alive,
// Addr, and TryTake panics on a dead Box.
type Box[T any] struct {
	_ noCopy

	ptr   *T
	alloc allocator.Allocator
}

// New moves value into a new allocation on the Go heap.
func New[T any](value T) Box[T] {
	ptr, err := allocate[T](allocator.System)
	if err != nil {
		panic(err)
	}

	*ptr = value
	return Box[T]{ptr: ptr, alloc: allocator.System}
}

// NewIn moves value into a new allocation from alloc. A failed allocation is returned wrapped and
// is not retried. If alloc is nil, allocator.System is used.
func NewIn[T any](alloc allocator.Allocator, value T) (Box[T], error) {
	if alloc == nil {
		alloc = allocator.System
	}

	ptr, err := allocate[T](alloc)
	if err != nil {
		return Box[T]{}, err
	}

	*ptr = value
	return Box[T]{ptr: ptr, alloc: alloc}, nil
}

// FromPointer adopts ptr, which must point to a live T on the Go heap that nothing else will
// access, as a Box. It is the way to take over storage that has already been allocated.
func FromPointer[T any](ptr *T) Box[T] {
	if ptr == nil {
		panic("emptybox: FromPointer called with a nil pointer")
	}

	return Box[T]{ptr: ptr, alloc: allocator.System}
}

func (b *Box[T]) consume() (*T, allocator.Allocator) {
	ptr, alloc := b.ptr, b.alloc
	if ptr == nil {
		panic(consumedBoxPanic)
	}

	b.ptr = nil
	b.alloc = nil
	return ptr, alloc
}

func (b *Box[T]) live() *T {
	if b.ptr == nil {
		panic(consumedBoxPanic)
	}
	return b.ptr
}

func (b *Box[T]) take() (T, *T, allocator.Allocator) {
	ptr, alloc := b.consume()
	value := *ptr
	vacate(ptr)

	return value, ptr, alloc
}

// Take consumes the Box, moving its value out. The returned EmptyBox owns the same allocation.
// No allocator calls are made.
func (b *Box[T]) Take() (T, EmptyBox[T]) {
	value, ptr, alloc := b.take()
	return value, EmptyBox[T]{ptr: ptr, alloc: alloc}
}

// TryTake behaves like Take, but reports false instead of panicking when the Box is dead.
func (b *Box[T]) TryTake() (T, EmptyBox[T], bool) {
	if b.ptr == nil {
		var zero T
		return zero, EmptyBox[T]{}, false
	}

	value, ptr, alloc := b.take()
	return value, EmptyBox[T]{ptr: ptr, alloc: alloc}, true
}

// Get returns a pointer to the live value. The pointer must not be used after the Box is consumed.
func (b *Box[T]) Get() *T {
	return b.live()
}

// Value returns a copy of the live value.
func (b *Box[T]) Value() T {
	return *b.live()
}

// Set overwrites the live value in place. The previous value is torn down first, the same way
// Drop would tear it down.
func (b *Box[T]) Set(value T) {
	ptr := b.live()
	teardown(ptr)
	*ptr = value
}

// Replace swaps value into the allocation and returns the value it displaced. The displaced value
// belongs to the caller and is not torn down.
func (b *Box[T]) Replace(value T) T {
	ptr := b.live()
	old := *ptr
	*ptr = value
	return old
}

// IntoInner consumes the Box, moving its value out and releasing the allocation. The value is the
// caller's and is not torn down.
func (b *Box[T]) IntoInner() T {
	ptr, alloc := b.consume()
	value := *ptr

	var zero T
	*ptr = zero
	free(alloc, ptr)

	return value
}

// Drop tears down the live value, if it implements Dropper, and then releases the allocation.
// The allocation is released even if teardown panics. Dropping a dead Box does nothing.
func (b *Box[T]) Drop() {
	if b.ptr == nil {
		return
	}

	ptr, alloc := b.consume()
	defer func() {
		var zero T
		*ptr = zero
		free(alloc, ptr)
	}()

	teardown(ptr)
}

// Alive reports whether the Box still owns its allocation.
func (b *Box[T]) Alive() bool {
	return b.ptr != nil
}

// Addr returns the address of the allocation, or 0 for a dead Box. It identifies the allocation
// and must not be converted back into a pointer.
func (b *Box[T]) Addr() uintptr {
	return uintptr(unsafe.Pointer(b.ptr))
}
