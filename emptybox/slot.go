package emptybox

import (
	"reflect"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/emptybox/allocator"
	"github.com/vkngwrapper/emptybox/memutils"
)

const (
	consumedBoxPanic   = "emptybox: use of consumed Box"
	consumedEmptyPanic = "emptybox: use of consumed EmptyBox"
)

// noCopy makes go vet's copylocks check report handles that are copied by value.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Dropper is implemented by values that need teardown logic to run when the Box holding them is
// dropped or overwritten. Either *T or T may implement it; for a Box[*Conn], a Drop method on *Conn
// is found. A nil pointer or nil interface value is never torn down.
type Dropper interface {
	Drop()
}

// teardown runs the value's Dropper, preferring the one on *T so that T is never torn down twice.
func teardown[T any](ptr *T) {
	if dropper, ok := any(ptr).(Dropper); ok {
		dropper.Drop()
		return
	}

	dropper, ok := any(*ptr).(Dropper)
	if !ok {
		return
	}

	value := reflect.ValueOf(dropper)
	switch value.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if value.IsNil() {
			return
		}
	}
	dropper.Drop()
}

func allocate[T any](alloc allocator.Allocator) (*T, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	ptr, err := alloc.Allocate(t)
	if err != nil {
		return nil, errors.Wrapf(err, "emptybox: failed to allocate storage for %s", t.String())
	}
	if ptr == nil {
		return nil, errors.Newf("emptybox: allocator returned nil storage for %s", t.String())
	}

	return (*T)(ptr), nil
}

func free[T any](alloc allocator.Allocator, ptr *T) {
	alloc.Free(unsafe.Pointer(ptr), reflect.TypeOf((*T)(nil)).Elem())
}

// vacate clears the slot so that the empty allocation keeps nothing reachable. Under debug builds,
// pointer-free slots are then poisoned.
func vacate[T any](ptr *T) {
	var zero T
	*ptr = zero

	if memutils.DebugChecks {
		layout := memutils.LayoutOf[T]()
		if layout.PointerFree {
			memutils.WriteMagicValue(unsafe.Pointer(ptr), layout.Size)
		}
	}
}

// checkVacant panics under debug builds if a poisoned slot was written while it was empty.
func checkVacant[T any](ptr *T) {
	if memutils.DebugChecks {
		layout := memutils.LayoutOf[T]()
		if layout.PointerFree && !memutils.ValidateMagicValue(unsafe.Pointer(ptr), layout.Size) {
			panic("MEMORY CORRUPTION DETECTED IN EMPTY BOX")
		}
	}
}
