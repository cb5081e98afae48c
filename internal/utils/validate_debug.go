//go:build debug_hearth

package utils

// DebugAssertions reports whether precondition violations panic
const DebugAssertions = true

func debugPanic(err error) {
	panic(err)
}
