// Package allocator provides the heap storage that emptybox handles live in, along with a
// tracking allocator that counts, budgets, and audits that storage.
package allocator

import (
	"reflect"
	"unsafe"
)

//go:generate mockgen -destination mocks/allocator.go -package mocks github.com/vkngwrapper/emptybox/allocator Allocator

// Allocator hands out storage for exactly one value of a given type and takes it back.
//
// Allocate must return memory that is sized, aligned, and typed (for the garbage collector) for t,
// holding t's zero value. Free receives a pointer previously returned by Allocate along with a type
// of the same layout; after Free returns the memory must not be used again.
type Allocator interface {
	Allocate(t reflect.Type) (unsafe.Pointer, error)
	Free(ptr unsafe.Pointer, t reflect.Type)
}

// System is the Go heap. It never fails, and Free clears the memory so the collector can reclaim
// anything it referenced.
var System Allocator = systemAllocator{}

type systemAllocator struct{}

func (systemAllocator) Allocate(t reflect.Type) (unsafe.Pointer, error) {
	return reflect.New(t).UnsafePointer(), nil
}

func (systemAllocator) Free(ptr unsafe.Pointer, t reflect.Type) {
	reflect.NewAt(t, ptr).Elem().SetZero()
}
