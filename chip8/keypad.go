package chip8

import "fmt"

// NumKeys is the size of the hex keypad.
const NumKeys = 16

// Keypad tracks which of the 16 keys are held down. The host input adapter
// mutates it between instruction executions; the executor only reads it.
type Keypad struct {
	keys uint16 // bit n set while key n is held
}

// SetKey records a key press or release. Keys are numbered 0x0 through 0xF.
func (k *Keypad) SetKey(key byte, down bool) error {
	if key >= NumKeys {
		return fmt.Errorf("no such key %#x", key)
	}
	if down {
		k.keys |= 1 << key
	} else {
		k.keys &^= 1 << key
	}
	return nil
}

// Pressed reports whether the given key is currently held. Keys outside
// 0x0-0xF are never pressed.
func (k *Keypad) Pressed(key byte) bool {
	return key < NumKeys && k.keys&(1<<key) != 0
}

// mask returns the pressed keys as a bitmask, for wait-for-key edge
// detection.
func (k *Keypad) mask() uint16 { return k.keys }
