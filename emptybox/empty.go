package emptybox

import (
	"reflect"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/emptybox/allocator"
	"github.com/vkngwrapper/emptybox/memutils"
)

// EmptyBox is the empty state of a heap allocation: it owns storage reserved for one T, but no T
// lives in it. Its contents cannot be read or written. The only things that can be done with it
// are Put, which refills it, and Release, which gives the storage back.
type EmptyBox[T any] struct {
	_ noCopy

	ptr   *T
	alloc allocator.Allocator
}

func (e *EmptyBox[T]) consume() (*T, allocator.Allocator) {
	ptr, alloc := e.ptr, e.alloc
	if ptr == nil {
		panic(consumedEmptyPanic)
	}

	e.ptr = nil
	e.alloc = nil
	return ptr, alloc
}

func (e *EmptyBox[T]) put(value T) (*T, allocator.Allocator) {
	if e.ptr == nil {
		panic(consumedEmptyPanic)
	}
	checkVacant(e.ptr)

	ptr, alloc := e.consume()
	*ptr = value

	return ptr, alloc
}

// Put consumes the EmptyBox, moving value into its allocation. The returned Box owns the same
// allocation. No allocator calls are made.
func (e *EmptyBox[T]) Put(value T) Box[T] {
	ptr, alloc := e.put(value)
	return Box[T]{ptr: ptr, alloc: alloc}
}

// TryPut behaves like Put, but reports false instead of panicking when the EmptyBox is dead.
// value is left with the caller in that case.
func (e *EmptyBox[T]) TryPut(value T) (Box[T], bool) {
	if e.ptr == nil {
		return Box[T]{}, false
	}

	ptr, alloc := e.put(value)
	return Box[T]{ptr: ptr, alloc: alloc}, true
}

// Release gives the allocation back to its allocator. Nothing is torn down because nothing lives
// in it. Releasing a dead EmptyBox does nothing.
func (e *EmptyBox[T]) Release() {
	if e.ptr == nil {
		return
	}

	ptr, alloc := e.consume()
	free(alloc, ptr)
}

// Alive reports whether the EmptyBox still owns its allocation.
func (e *EmptyBox[T]) Alive() bool {
	return e.ptr != nil
}

// Addr returns the address of the allocation, or 0 for a dead EmptyBox.
func (e *EmptyBox[T]) Addr() uintptr {
	return uintptr(unsafe.Pointer(e.ptr))
}

// Retype consumes e and returns an EmptyBox for U over the same allocation. T and U must have the
// same size and alignment, and neither may contain pointers. If they are not compatible, an error
// wrapping memutils.ErrLayoutMismatch is returned and e is left untouched.
func Retype[T, U any](e *EmptyBox[T]) (EmptyBox[U], error) {
	if e.ptr == nil {
		panic(consumedEmptyPanic)
	}

	err := memutils.LayoutOf[T]().CompatibleWith(memutils.LayoutOf[U]())
	if err != nil {
		return EmptyBox[U]{}, errors.Wrapf(err, "emptybox: cannot store %s in storage reserved for %s",
			reflect.TypeOf((*U)(nil)).Elem().String(), reflect.TypeOf((*T)(nil)).Elem().String())
	}

	ptr, alloc := e.consume()
	return EmptyBox[U]{ptr: (*U)(unsafe.Pointer(ptr)), alloc: alloc}, nil
}
