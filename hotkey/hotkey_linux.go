//go:build linux

package hotkey

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
	keyLCtrl   = 29
	keyRCtrl   = 97
	keyLShift  = 42
	keyRShift  = 54
	keySpace   = 57
	keyA       = 30
)

const inputEventSize = 24

// linuxSource reads raw evdev key events. golang.design/x/hotkey needs an
// X11 event loop, which breaks on Wayland; reading /dev/input works on both.
type linuxSource struct {
	toggles chan struct{}
	show    chan struct{}
	files   []*os.File
	stop    chan struct{}
	once    sync.Once
}

func New() Source {
	return &linuxSource{
		toggles: make(chan struct{}, 1),
		show:    make(chan struct{}, 1),
	}
}

func (h *linuxSource) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return fmt.Errorf("no keyboard devices found (is user in 'input' group?)")
	}

	h.stop = make(chan struct{})

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}

	if len(h.files) == 0 {
		return fmt.Errorf("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}

	return nil
}

func (h *linuxSource) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	var ctrlHeld, shiftHeld bool

	for {
		select {
		case <-h.stop:
			return
		default:
		}

		n, err := f.Read(buf)
		if err != nil {
			return
		}

		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			evCode := binary.LittleEndian.Uint16(buf[i+18:])
			evValue := int32(binary.LittleEndian.Uint32(buf[i+20:]))

			if evType != evKey {
				continue
			}

			pressed := evValue == keyPress
			released := evValue == keyRelease

			switch evCode {
			case keyLCtrl, keyRCtrl:
				ctrlHeld = pressed || (!released && ctrlHeld)
			case keyLShift, keyRShift:
				shiftHeld = pressed || (!released && shiftHeld)
			case keySpace:
				if pressed && ctrlHeld && shiftHeld {
					select {
					case h.toggles <- struct{}{}:
					default:
					}
				}
			case keyA:
				if pressed && ctrlHeld && shiftHeld {
					select {
					case h.show <- struct{}{}:
					default:
					}
				}
			}
		}
	}
}

func (h *linuxSource) Unregister() {
	h.once.Do(func() {
		if h.stop != nil {
			close(h.stop)
		}
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *linuxSource) Toggles() <-chan struct{} {
	return h.toggles
}

func (h *linuxSource) ShowWindow() <-chan struct{} {
	return h.show
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		path := filepath.Join("/dev/input", e.Name())
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, path)
		}
	}
	return keyboards, nil
}

func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	caps := strings.TrimSpace(string(data))
	return len(caps) > 10
}
