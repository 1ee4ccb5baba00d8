// Package emu drives a chip8.Machine: it paces the CPU against the 60Hz
// timer clock and connects it to the host's renderer, keyboard, and buzzer.
package emu

import (
	"log"
	"sync"
	"time"

	"github.com/shwnchpl/chip8/chip8"
)

// DefaultIPF is the default number of instructions executed per 60Hz frame.
const DefaultIPF = 10

const frameRate = 60

// Frame is the per-frame state handed to the renderer and audio adapters.
type Frame struct {
	Pix  chip8.Frame
	Beep bool
}

// KeyEvent is a keypad transition pushed by an input adapter.
type KeyEvent struct {
	Key  byte
	Down bool
}

// StateKind describes why the runner is reporting machine state.
type StateKind int

const (
	// QuietState is a routine per-frame report; watches refresh but no
	// status message is shown.
	QuietState StateKind = iota
	ClearState
	PauseState
	BreakState
	HaltState
)

// StateFunc receives machine state reports from the runner goroutine.
// The machine may only be inspected for the duration of the call.
type StateFunc func(*chip8.Machine, StateKind)

// Runner owns a Machine and runs it at 60 frames per second, executing up
// to IPF instructions per frame and ticking the timers once per frame.
// Renderers consume Frames; input adapters send KeyEvents.
type Runner struct {
	// IPF is the instructions-per-frame budget. Set before Run.
	IPF int

	gui   bool
	dev   bool
	state StateFunc

	m *chip8.Machine

	frames chan Frame
	keys   chan KeyEvent
	swap   chan []byte
	debug  chan debugCmd

	haltOnce sync.Once
	haltc    chan struct{}
	done     chan struct{}

	beep *beeper

	// Debugger state, touched only by the runner goroutine.
	paused  bool
	stepReq bool
	brk     uint16
	hasBrk  bool
}

type debugCmd struct {
	cmd  string
	addr uint16
}

// NewRunner returns a Runner. If enableGUI is set, Run opens a window and
// renders into it; otherwise it renders to the terminal, except in dev
// mode where the terminal belongs to the debugger. The optional state
// callback receives machine state for the debugger.
func NewRunner(enableGUI, devMode bool, state StateFunc) *Runner {
	return &Runner{
		IPF:    DefaultIPF,
		gui:    enableGUI,
		dev:    devMode,
		state:  state,
		frames: make(chan Frame, 1),
		keys:   make(chan KeyEvent, 64),
		swap:   make(chan []byte),
		debug:  make(chan debugCmd, 8),
		haltc:  make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Frames returns the channel on which the runner publishes the latest
// frame. Slow consumers only ever see the most recent one.
func (r *Runner) Frames() <-chan Frame { return r.frames }

// Keys returns the channel into which input adapters push key transitions.
func (r *Runner) Keys() chan<- KeyEvent { return r.keys }

// Halt stops the runner. It is safe to call more than once.
func (r *Runner) Halt() {
	r.haltOnce.Do(func() { close(r.haltc) })
}

// Swap replaces the running machine with a fresh one loaded with rom.
// It may only be used in dev mode.
func (r *Runner) Swap(rom []byte) {
	if !r.dev {
		panic("Swap called while not running in dev mode")
	}
	select {
	case r.swap <- rom:
	case <-r.done:
	}
}

// Debug sends a debugger command to the runner: "pause", "cont", "step",
// "break" (with addr), "clear", or "exit".
func (r *Runner) Debug(cmd string, addr uint16) {
	select {
	case r.debug <- debugCmd{cmd, addr}:
	case <-r.done:
	}
}

// Run loads rom into a new machine and runs it until the program is halted
// or a fault occurs. It blocks, driving the GUI event loop if one is
// enabled, and returns the machine fault, if any.
func (r *Runner) Run(rom []byte) error {
	m := chip8.New()
	if err := m.Load(rom); err != nil {
		return err
	}
	r.m = m

	if b, err := newBeeper(); err != nil {
		log.Printf("audio disabled: %v", err)
	} else {
		r.beep = b
		defer b.close()
	}

	errc := make(chan error, 1)
	go r.loop(errc)

	var uiErr error
	switch {
	case r.gui:
		uiErr = runGUI(r)
		r.Halt()
	case !r.dev:
		uiErr = runTerminal(r)
		r.Halt()
	}
	if err := <-errc; err != nil {
		return err
	}
	return uiErr
}

// loop is the runner goroutine: it owns the machine exclusively.
func (r *Runner) loop(errc chan<- error) {
	defer close(r.done)
	tick := time.NewTicker(time.Second / frameRate)
	defer tick.Stop()

	faulted := false
	for {
		select {
		case <-tick.C:
			if err := r.frame(); err != nil {
				if !r.dev {
					errc <- err
					return
				}
				if !faulted {
					log.Printf("chip8: %v", err)
					r.report(HaltState)
					faulted = true
				}
			}
		case rom := <-r.swap:
			m := chip8.New()
			if err := m.Load(rom); err != nil {
				log.Printf("chip8: %v", err)
				break
			}
			r.m = m
			faulted = false
			r.paused = false
			r.report(ClearState)
		case c := <-r.debug:
			r.handleDebug(c)
		case <-r.haltc:
			errc <- nil
			return
		}
	}
}

// frame runs one 60Hz frame: apply pending input, execute up to IPF
// instructions (fewer if the machine suspends in wait-for-key, pauses, or
// faults), tick the timers, and publish the result.
func (r *Runner) frame() error {
	r.drainKeys()

	if r.m.Fault() != nil {
		r.publish()
		return nil
	}

	steps := r.IPF
	if r.paused {
		steps = 0
		if r.stepReq {
			steps = 1
		}
	}
	for i := 0; i < steps; i++ {
		if r.hasBrk && r.m.PC == r.brk && !r.stepReq {
			r.paused = true
			r.report(BreakState)
			break
		}
		if err := r.m.Step(); err != nil {
			r.publish()
			return err
		}
		if r.m.Waiting() {
			break
		}
	}
	if r.stepReq {
		r.stepReq = false
		r.report(PauseState)
	}

	// Timers freeze with the machine while paused.
	if steps > 0 {
		r.m.Timers.Tick()
	}
	r.publish()
	r.report(QuietState)
	return nil
}

func (r *Runner) drainKeys() {
	for {
		select {
		case e := <-r.keys:
			if err := r.m.Keys.SetKey(e.Key, e.Down); err != nil {
				log.Printf("input: %v", err)
			}
		default:
			return
		}
	}
}

// publish replaces the frame on the latest-value channel.
func (r *Runner) publish() {
	f := Frame{Pix: r.m.Display.Frame(), Beep: r.m.Timers.SoundActive()}
	if r.beep != nil {
		r.beep.set(f.Beep)
	}
	for {
		select {
		case r.frames <- f:
			return
		default:
			select {
			case <-r.frames: // discard the stale frame
			default:
			}
		}
	}
}

func (r *Runner) handleDebug(c debugCmd) {
	switch c.cmd {
	case "pause":
		r.paused = true
		r.report(PauseState)
	case "cont", "continue":
		r.paused = false
		r.report(ClearState)
	case "step":
		r.paused = true
		r.stepReq = true
	case "break":
		r.brk = c.addr
		r.hasBrk = true
	case "clear":
		r.hasBrk = false
	case "exit":
		r.Halt()
	default:
		log.Printf("debug: unknown command %q", c.cmd)
	}
}

func (r *Runner) report(k StateKind) {
	if r.state != nil {
		r.state(r.m, k)
	}
}
