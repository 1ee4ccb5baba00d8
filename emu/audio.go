package emu

import (
	"github.com/veandco/go-sdl2/sdl"
)

const (
	beepRate = 48000 // samples per second
	beepHz   = 440
	beepAmp  = 0x20
)

// beeper plays a square wave through SDL while the sound timer is active.
type beeper struct {
	dev    sdl.AudioDeviceID
	active bool
	phase  int
	buf    []byte
}

func newBeeper() (*beeper, error) {
	if err := sdl.InitSubSystem(sdl.INIT_AUDIO); err != nil {
		return nil, err
	}
	spec := &sdl.AudioSpec{
		Freq:     beepRate,
		Format:   sdl.AUDIO_U8,
		Channels: 1,
		Samples:  1024,
	}
	dev, err := sdl.OpenAudioDevice("", false, spec, nil, 0)
	if err != nil {
		sdl.QuitSubSystem(sdl.INIT_AUDIO)
		return nil, err
	}
	return &beeper{
		dev: dev,
		buf: make([]byte, beepRate/frameRate),
	}, nil
}

// set is called once per frame with the sound timer's state. While active
// it keeps roughly three frames of square wave queued so playback never
// underruns between calls.
func (b *beeper) set(active bool) {
	if active != b.active {
		b.active = active
		if !active {
			sdl.PauseAudioDevice(b.dev, true)
			sdl.ClearQueuedAudio(b.dev)
			return
		}
		sdl.PauseAudioDevice(b.dev, false)
	}
	if !active {
		return
	}
	const half = beepRate / beepHz / 2
	for sdl.GetQueuedAudioSize(b.dev) < 3*uint32(len(b.buf)) {
		for i := range b.buf {
			if b.phase/half%2 == 0 {
				b.buf[i] = 0x80 + beepAmp
			} else {
				b.buf[i] = 0x80 - beepAmp
			}
			b.phase++
			if b.phase == half*2 {
				b.phase = 0
			}
		}
		if err := sdl.QueueAudio(b.dev, b.buf); err != nil {
			return
		}
	}
}

func (b *beeper) close() {
	sdl.CloseAudioDevice(b.dev)
	sdl.QuitSubSystem(sdl.INIT_AUDIO)
}
