//go:build !linux

package hotkey

import (
	"golang.design/x/hotkey"
)

type xSource struct {
	toggleHK *hotkey.Hotkey
	showHK   *hotkey.Hotkey
	toggles  chan struct{}
	show     chan struct{}
}

func New() Source {
	mods := []hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}
	return &xSource{
		toggleHK: hotkey.New(mods, hotkey.KeySpace),
		showHK:   hotkey.New(mods, hotkey.KeyA),
		toggles:  make(chan struct{}, 1),
		show:     make(chan struct{}, 1),
	}
}

func (h *xSource) Register() error {
	if err := h.toggleHK.Register(); err != nil {
		return err
	}
	if err := h.showHK.Register(); err != nil {
		h.toggleHK.Unregister()
		return err
	}
	go forward(h.toggleHK, h.toggles)
	go forward(h.showHK, h.show)
	return nil
}

func forward(hk *hotkey.Hotkey, out chan struct{}) {
	for {
		<-hk.Keydown()
		select {
		case out <- struct{}{}:
		default:
		}
	}
}

func (h *xSource) Unregister() {
	h.toggleHK.Unregister()
	h.showHK.Unregister()
}

func (h *xSource) Toggles() <-chan struct{} {
	return h.toggles
}

func (h *xSource) ShowWindow() <-chan struct{} {
	return h.show
}
