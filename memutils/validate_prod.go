//go:build !debug_mem_utils

package memutils

// DebugValidate no-ops unless the debug_mem_utils build tag is present.
func DebugValidate(validatable Validatable) {
}

// DebugCheckPow2 no-ops unless the debug_mem_utils build tag is present.
func DebugCheckPow2[T Number](value T, name string) {
}
