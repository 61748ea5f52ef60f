// Package failfast implements the engine's fail-fast policy: programmer
// and configuration errors (bad resolution, nil handles) abort immediately
// rather than limping on with a corrupt grid.
package failfast

import (
	"fmt"
	"runtime/debug"
)

// Err panics if err != nil (fail-fast principle)
// Includes stack trace for debugging
func Err(err error) {
	if err != nil {
		panic(fmt.Errorf("fail-fast: %w\n%s", err, debug.Stack()))
	}
}

// If panics if condition is false
// Allows formatted messages with args
func If(condition bool, message string, args ...interface{}) {
	if !condition {
		panic(fmt.Errorf("fail-fast: "+message, args...))
	}
}
