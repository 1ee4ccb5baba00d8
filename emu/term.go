package emu

import (
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/shwnchpl/chip8/chip8"
)

// Terminals report key presses but not releases, so each press latches the
// keypad key down for latchDuration. Auto-repeat refreshes the latch while
// a key is held.
const latchDuration = 200 * time.Millisecond

var termKeymap = map[rune]byte{
	'1': 0x1, '2': 0x2, '3': 0x3, '4': 0xc,
	'q': 0x4, 'w': 0x5, 'e': 0x6, 'r': 0xd,
	'a': 0x7, 's': 0x8, 'd': 0x9, 'f': 0xe,
	'z': 0xa, 'x': 0x0, 'c': 0xb, 'v': 0xf,
}

// runTerminal renders the runner's frames to the terminal, two pixels per
// cell using the upper half block, until Escape or Ctrl-C is pressed or
// the runner stops.
func runTerminal(r *Runner) error {
	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	defer s.Fini()
	s.Clear()

	events := make(chan tcell.Event, 16)
	go func() {
		for {
			e := s.PollEvent()
			if e == nil {
				return
			}
			events <- e
		}
	}()

	on := tcell.NewRGBColor(0xdc, 0xf5, 0xdc)
	off := tcell.NewRGBColor(0x10, 0x18, 0x10)

	var expiry [chip8.NumKeys]time.Time
	tick := time.NewTicker(time.Second / frameRate)
	defer tick.Stop()
	for {
		select {
		case e := <-events:
			switch e := e.(type) {
			case *tcell.EventKey:
				switch e.Key() {
				case tcell.KeyEscape, tcell.KeyCtrlC:
					return nil
				case tcell.KeyRune:
					if k, ok := termKeymap[e.Rune()]; ok {
						if expiry[k].IsZero() {
							r.Keys() <- KeyEvent{Key: k, Down: true}
						}
						expiry[k] = time.Now().Add(latchDuration)
					}
				}
			case *tcell.EventResize:
				s.Sync()
			}

		case <-tick.C:
			now := time.Now()
			for k := range expiry {
				if !expiry[k].IsZero() && now.After(expiry[k]) {
					expiry[k] = time.Time{}
					r.Keys() <- KeyEvent{Key: byte(k), Down: false}
				}
			}
			select {
			case f := <-r.Frames():
				drawTerm(s, &f.Pix, on, off)
			default:
			}

		case <-r.done:
			return nil
		}
	}
}

// drawTerm packs two vertically adjacent pixels into each cell: the upper
// half block glyph colored by the top pixel over a background colored by
// the bottom one.
func drawTerm(s tcell.Screen, f *chip8.Frame, on, off tcell.Color) {
	for y := 0; y < chip8.DisplayHeight; y += 2 {
		for x := 0; x < chip8.DisplayWidth; x++ {
			fg, bg := off, off
			if f[y][x] {
				fg = on
			}
			if f[y+1][x] {
				bg = on
			}
			st := tcell.StyleDefault.Foreground(fg).Background(bg)
			s.SetContent(x, y/2, '▀', nil, st)
		}
	}
	s.Show()
}
