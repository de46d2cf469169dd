// Package hotkey delivers two global signals: toggle recording
// (Ctrl+Shift+Space) and show window (Ctrl+Shift+A). Signals arrive on
// their own goroutines; consumers redispatch onto the coordination loop.
package hotkey

type Source interface {
	Register() error
	Unregister()
	Toggles() <-chan struct{}
	ShowWindow() <-chan struct{}
}
