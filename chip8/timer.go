package chip8

// Timers holds the delay and sound timers. Both count down to zero, one
// step per Tick; nothing else decrements them. The executor sets them
// directly via the FX15 and FX18 instructions.
type Timers struct {
	Delay byte
	Sound byte
}

// Tick decrements each nonzero timer by one. The driver calls it at 60Hz,
// independent of the instruction rate.
func (t *Timers) Tick() {
	if t.Delay > 0 {
		t.Delay--
	}
	if t.Sound > 0 {
		t.Sound--
	}
}

// SoundActive reports whether the buzzer should be sounding.
func (t *Timers) SoundActive() bool { return t.Sound > 0 }
