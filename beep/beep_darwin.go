//go:build darwin

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	initOnce sync.Once

	// playback position, advanced from the device callback
	playBuf atomic.Pointer[[]byte]
	playPos atomic.Uint32
)

func initPlayback() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{
		Data: dataCallback,
	})
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
		return
	}
	device.Start()
}

func dataCallback(pOutput, _ []byte, frameCount uint32) {
	buf := playBuf.Load()
	if buf == nil {
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}

	pos := playPos.Load()
	total := uint32(len(*buf))
	want := frameCount * 2
	remaining := total - pos
	if remaining == 0 {
		playBuf.Store(nil)
		for i := range pOutput {
			pOutput[i] = 0
		}
		return
	}
	if want > remaining {
		want = remaining
	}

	copy(pOutput[:want], (*buf)[pos:pos+want])
	playPos.Store(pos + want)
	for i := want; i < frameCount*2; i++ {
		pOutput[i] = 0
	}
}

func play(samples []int16) {
	initOnce.Do(initPlayback)
	if device == nil || len(samples) == 0 {
		return
	}
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	playPos.Store(0)
	playBuf.Store(&buf)
}
