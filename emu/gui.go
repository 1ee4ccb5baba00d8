package emu

import (
	"image"
	"image/color"
	"image/draw"
	"log"
	"time"

	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/shwnchpl/chip8/chip8"
)

// guiScale is the integer upscale factor for the 64x32 framebuffer.
const guiScale = 12

var (
	pixelOn  = color.RGBA{0xdc, 0xf5, 0xdc, 0xff}
	pixelOff = color.RGBA{0x10, 0x18, 0x10, 0xff}
)

// runGUI opens a window and renders the runner's frames into it until the
// window is closed, Escape is pressed, or the runner stops. It must be
// called from the main goroutine.
func runGUI(r *Runner) error {
	driver.Main(func(s screen.Screen) {
		texSize := image.Point{chip8.DisplayWidth * guiScale, chip8.DisplayHeight * guiScale}
		w, err := s.NewWindow(&screen.NewWindowOptions{
			Title:  "chip8",
			Width:  texSize.X,
			Height: texSize.Y,
		})
		if err != nil {
			log.Fatal(err)
		}
		defer w.Release()

		buf, err := s.NewBuffer(texSize)
		if err != nil {
			log.Fatal(err)
		}
		defer buf.Release()
		tex, err := s.NewTexture(texSize)
		if err != nil {
			log.Fatal(err)
		}
		defer tex.Release()

		small := image.NewRGBA(image.Rect(0, 0, chip8.DisplayWidth, chip8.DisplayHeight))

		type update struct{}
		go func() {
			t := time.NewTicker(time.Second / frameRate)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					w.Send(update{})
				case <-r.done:
					w.Send(lifecycle.Event{To: lifecycle.StageDead})
					return
				}
			}
		}()

		var sz size.Event
		dirty := false
		for {
			switch e := w.NextEvent().(type) {
			case size.Event:
				sz = e
				if sz.WidthPx+sz.HeightPx == 0 {
					return
				}

			case lifecycle.Event:
				if e.To == lifecycle.StageDead {
					return
				}

			case key.Event:
				if e.Code == key.CodeEscape && e.Direction == key.DirPress {
					return
				}
				if k, ok := guiKeymap[e.Code]; ok {
					switch e.Direction {
					case key.DirPress:
						r.Keys() <- KeyEvent{Key: k, Down: true}
					case key.DirRelease:
						r.Keys() <- KeyEvent{Key: k, Down: false}
					}
				}

			case update:
				select {
				case f := <-r.Frames():
					blit(small, &f.Pix)
					xdraw.NearestNeighbor.Scale(buf.RGBA(), buf.Bounds(), small, small.Bounds(), draw.Src, nil)
					dirty = true
				default:
					// no new frame
				}
				if dirty {
					tex.Upload(image.Point{}, buf, buf.Bounds())
					w.Scale(sz.Bounds(), tex, tex.Bounds(), draw.Src, nil)
					w.Publish()
					dirty = false
				}

			case paint.Event:
				dirty = true

			case error:
				log.Print(e)
			}
		}
	})
	return nil
}

func blit(img *image.RGBA, f *chip8.Frame) {
	for y := 0; y < chip8.DisplayHeight; y++ {
		for x := 0; x < chip8.DisplayWidth; x++ {
			c := pixelOff
			if f[y][x] {
				c = pixelOn
			}
			img.SetRGBA(x, y, c)
		}
	}
}

// guiKeymap maps the left-hand block of a QWERTY keyboard onto the 4x4
// hex keypad:
//
//	1 2 3 4        1 2 3 C
//	q w e r   ->   4 5 6 D
//	a s d f        7 8 9 E
//	z x c v        A 0 B F
var guiKeymap = map[key.Code]byte{
	key.Code1: 0x1, key.Code2: 0x2, key.Code3: 0x3, key.Code4: 0xc,
	key.CodeQ: 0x4, key.CodeW: 0x5, key.CodeE: 0x6, key.CodeR: 0xd,
	key.CodeA: 0x7, key.CodeS: 0x8, key.CodeD: 0x9, key.CodeF: 0xe,
	key.CodeZ: 0xa, key.CodeX: 0x0, key.CodeC: 0xb, key.CodeV: 0xf,
}
