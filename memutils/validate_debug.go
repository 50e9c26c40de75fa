//go:build debug_emptybox

package memutils

import "unsafe"

const (
	// DebugChecks is true when the debug_emptybox build tag is present
	DebugChecks bool = true
	// corruptionDetectionMagicValue is a 4-byte pattern that is written across the storage of
	// pointer-free values while nothing lives in it
	corruptionDetectionMagicValue uint32 = 0x7F84E666
)

func magicByte(index int) byte {
	return byte(corruptionDetectionMagicValue >> (8 * (index % 4)))
}

// WriteMagicValue writes an easy-to-identify marker across size bytes at the provided pointer.
// The memory must not contain pointers.
// This method no-ops unless the debug_emptybox build tag is present.
func WriteMagicValue(data unsafe.Pointer, size int) {
	if size == 0 {
		return
	}
	dest := unsafe.Slice((*byte)(data), size)
	for i := range dest {
		dest[i] = magicByte(i)
	}
}

// ValidateMagicValue verifies that the easy-to-identify marker written by WriteMagicValue is still present.
// It returns true if the value is still present and false otherwise.
// This method no-ops unless the debug_emptybox build tag is present.
func ValidateMagicValue(data unsafe.Pointer, size int) bool {
	if size == 0 {
		return true
	}
	source := unsafe.Slice((*byte)(data), size)
	for i, b := range source {
		if b != magicByte(i) {
			return false
		}
	}

	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_emptybox build tag is present
func DebugValidate(validatable Validatable) {
	err := validatable.Validate()
	if err != nil {
		panic(err)
	}
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_emptybox build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
	err := CheckPow2[T](value, name)
	if err != nil {
		panic(err)
	}
}
