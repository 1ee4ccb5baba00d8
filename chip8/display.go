package chip8

// Display dimensions in pixels.
const (
	DisplayWidth  = 64
	DisplayHeight = 32
)

// Frame is a snapshot of the monochrome pixel grid, indexed [row][column].
type Frame [DisplayHeight][DisplayWidth]bool

// Display is the 64x32 monochrome framebuffer. Sprites are blitted with XOR
// and coordinates wrap modulo the grid dimensions.
type Display struct {
	pix Frame
}

// Clear switches every pixel off.
func (d *Display) Clear() {
	d.pix = Frame{}
}

// Draw blits a sprite with its top-left corner at (x, y). Each byte is one
// row of 8 pixels, most significant bit leftmost. It reports whether any
// pixel was flipped from on to off.
func (d *Display) Draw(x, y byte, sprite []byte) (collided bool) {
	for r, b := range sprite {
		row := (int(y) + r) % DisplayHeight
		for c := 0; c < 8; c++ {
			if b&(0x80>>c) == 0 {
				continue
			}
			col := (int(x) + c) % DisplayWidth
			if d.pix[row][col] {
				collided = true
			}
			d.pix[row][col] = !d.pix[row][col]
		}
	}
	return collided
}

// Pixel reports whether the pixel at (x, y) is on. Coordinates wrap.
func (d *Display) Pixel(x, y int) bool {
	return d.pix[y%DisplayHeight][x%DisplayWidth]
}

// Frame returns a copy of the current pixel grid.
func (d *Display) Frame() Frame {
	return d.pix
}
