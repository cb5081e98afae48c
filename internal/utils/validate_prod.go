//go:build !debug_hearth

package utils

// DebugAssertions reports whether precondition violations panic
const DebugAssertions = false

func debugPanic(err error) {
}
