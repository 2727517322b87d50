// Package safego provides a panic-recovering goroutine launcher for background work.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go launches fn in a new goroutine. A panic inside fn is recovered and logged
// under name instead of crashing the process. Use it for every fire-and-forget
// goroutine: audit writes after a response, cleanup sweeps, config reload hooks.
func Go(name string, fn func()) {
	go Run(name, fn)
}

// Run executes fn on the calling goroutine with the same panic boundary as Go.
// It reports whether fn returned normally.
func Run(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered panic in background task",
				"task", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			ok = false
		}
	}()
	fn()
	return true
}
