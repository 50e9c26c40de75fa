package memutils

import (
	"reflect"

	cerrors "github.com/cockroachdb/errors"
)

// Layout describes the memory footprint of a single value: its size, its alignment, and whether
// the garbage collector needs to scan it for pointers.
type Layout struct {
	Size      int
	Alignment uint
	// PointerFree is true when no part of the value's representation is a pointer, meaning the
	// memory may be safely treated as plain bytes
	PointerFree bool
}

// LayoutOf returns the Layout of T
func LayoutOf[T any]() Layout {
	return LayoutOfType(reflect.TypeOf((*T)(nil)).Elem())
}

// LayoutOfType returns the Layout of the provided type
func LayoutOfType(t reflect.Type) Layout {
	return Layout{
		Size:        int(t.Size()),
		Alignment:   uint(t.Align()),
		PointerFree: pointerFree(t),
	}
}

// Validate returns an error if the layout could not describe a real type
func (l Layout) Validate() error {
	if l.Size < 0 {
		return cerrors.Newf("layout size %d is negative", l.Size)
	}
	err := CheckPow2(l.Alignment, "layout alignment")
	if err != nil {
		return err
	}
	if AlignUp(l.Size, l.Alignment) != l.Size {
		return cerrors.Newf("layout size %d is not a multiple of its alignment %d", l.Size, l.Alignment)
	}

	return nil
}

// CompatibleWith returns an error wrapping ErrLayoutMismatch unless memory reserved for l can hold
// a value of layout other. Both layouts must share size and alignment, and both must be
// pointer-free: memory allocated for a pointer-bearing type carries that type's pointer map and
// cannot be reinterpreted.
func (l Layout) CompatibleWith(other Layout) error {
	if l.Size != other.Size {
		return cerrors.Wrapf(ErrLayoutMismatch, "size %d does not match reserved size %d", other.Size, l.Size)
	}
	if l.Alignment != other.Alignment {
		return cerrors.Wrapf(ErrLayoutMismatch, "alignment %d does not match reserved alignment %d", other.Alignment, l.Alignment)
	}
	if !l.PointerFree || !other.PointerFree {
		return cerrors.WithHint(
			cerrors.Wrap(ErrLayoutMismatch, "pointer-bearing layouts cannot be reinterpreted"),
			"only types containing no pointers, strings, slices, maps, channels, funcs or interfaces can share storage",
		)
	}

	return nil
}

func pointerFree(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return t.Len() == 0 || pointerFree(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if !pointerFree(t.Field(i).Type) {
				return false
			}
		}
		return true
	}

	return false
}
