//go:build !debug_emptybox

package memutils

import "unsafe"

const (
	// DebugChecks is true when the debug_emptybox build tag is present
	DebugChecks bool = false
)

// WriteMagicValue writes an easy-to-identify marker across size bytes at the provided pointer.
// The memory must not contain pointers.
// This method no-ops unless the debug_emptybox build tag is present.
func WriteMagicValue(data unsafe.Pointer, size int) {
}

// ValidateMagicValue verifies that the easy-to-identify marker written by WriteMagicValue is still present.
// It returns true if the value is still present and false otherwise.
// This method no-ops unless the debug_emptybox build tag is present.
func ValidateMagicValue(data unsafe.Pointer, size int) bool {
	return true
}

// DebugValidate will call Validate on the provided object and panics if any errors are returned. This
// method no-ops unless the debug_emptybox build tag is present
func DebugValidate(validatable Validatable) {
}

// DebugCheckPow2 will verify that the numerical value passed in is a power of two, and panics if it is not.
// This method no-ops unless the debug_emptybox build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
}
