// Package debug is an opt-in verbose log for per-feature rendering detail.
package debug

import (
	"fmt"
	"io"
	"sync"
)

var (
	mu     sync.Mutex
	writer io.Writer = io.Discard
)

// SetOutput sets the debug output destination. io.Discard disables it.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	writer = w
}

// Log writes a debug message.
func Log(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if writer == io.Discard {
		return
	}
	fmt.Fprintf(writer, "[debug] "+format+"\n", args...)
}

// Enabled returns true if debug logging is enabled.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return writer != io.Discard
}
