package main

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/shwnchpl/chip8/chip8"
	"github.com/shwnchpl/chip8/emu"
)

type debugView struct {
	r *emu.Runner

	log   *tview.TextView
	watch *tview.TextView
	state *tview.TextView
	input *tview.InputField
	cols  *tview.Flex
	rows  *tview.Flex
	app   *tview.Application

	brk *uint16

	mu      sync.Mutex
	watches []watch
}

type watch struct {
	addr  uint16
	short bool
}

func newDebugView() *debugView {
	d := &debugView{
		log: tview.NewTextView().
			SetMaxLines(1000),
		watch: tview.NewTextView().
			SetWrap(false).
			SetTextAlign(tview.AlignRight),
		state: tview.NewTextView().
			SetWrap(false),
		input: tview.NewInputField(),
		cols:  tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app: tview.NewApplication(),
	}
	d.log.SetChangedFunc(func() { d.app.Draw() })
	d.watch.SetBackgroundColor(tcell.ColorDarkBlue)
	d.state.SetBackgroundColor(tcell.ColorDarkGrey)
	d.cols.
		AddItem(d.watch, 0, 1, false).
		AddItem(d.log, 0, 2, false)
	d.rows.
		AddItem(d.cols, 0, 1, false).
		AddItem(d.state, 4, 0, false).
		AddItem(d.input, 1, 0, true)
	d.app.SetRoot(d.rows, true)

	d.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		line := d.input.GetText()
		if line == "" {
			return
		}
		d.input.SetText("")
		d.command(line)
	})
	return d
}

func (d *debugView) command(line string) {
	cmd, arg, _ := strings.Cut(line, " ")
	switch cmd {
	case "exit":
		d.app.Stop()
	case "p", "pause":
		d.r.Debug("pause", 0)
	case "c", "cont", "continue":
		d.r.Debug("cont", 0)
	case "s", "step":
		d.r.Debug("step", 0)
	case "b", "break":
		if arg == "" {
			d.brk = nil
			d.r.Debug("clear", 0)
			log.Print("cleared break")
			return
		}
		addr, ok := parseAddr(arg)
		if !ok {
			log.Printf("invalid addr %q", arg)
			return
		}
		d.r.Debug("break", addr)
		d.brk = &addr
		log.Printf("set break %.3x", addr)
	case "w", "w2", "watch", "watch2":
		if arg == "" {
			d.mu.Lock()
			d.watches = nil
			d.mu.Unlock()
			log.Print("cleared watches")
			return
		}
		addr, ok := parseAddr(arg)
		if !ok {
			log.Printf("invalid addr %q", arg)
			return
		}
		d.mu.Lock()
		d.watches = append(d.watches,
			watch{addr: addr, short: strings.HasSuffix(cmd, "2")})
		d.mu.Unlock()
		log.Printf("watching %.3x", addr)
	default:
		log.Printf("unknown command %q", cmd)
	}
}

// parseAddr parses a hexadecimal machine address.
func parseAddr(s string) (uint16, bool) {
	n, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 16)
	if err != nil || n >= chip8.MemSize {
		return 0, false
	}
	return uint16(n), true
}

func (d *debugView) Run() error { return d.app.Run() }

func (d *debugView) StateFunc(m *chip8.Machine, k emu.StateKind) {
	var (
		watch = d.watchContent(m)
		state string
	)
	if k != emu.ClearState && k != emu.QuietState {
		state = stateMsg(m, k)
	}
	d.app.QueueUpdateDraw(func() {
		switch k {
		case emu.ClearState:
			d.state.SetTextColor(tcell.ColorBlack)
			d.state.SetBackgroundColor(tcell.ColorDarkGrey)
		case emu.BreakState:
			d.state.SetTextColor(tcell.ColorYellow)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case emu.PauseState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case emu.HaltState:
			d.state.SetTextColor(tcell.ColorWhite)
			d.state.SetBackgroundColor(tcell.ColorDarkRed)
		}
		d.watch.SetText(watch)
		if k != emu.QuietState {
			d.state.SetText(state)
		}
	})
}

func stateMsg(m *chip8.Machine, k emu.StateKind) string {
	kind := "       "
	switch k {
	case emu.BreakState:
		kind = "[break]"
	case emu.PauseState:
		kind = "[pause]"
	case emu.HaltState:
		kind = "[HALT!]"
	}
	if err := m.Fault(); err != nil {
		return fmt.Sprintf("%.3x %s %v\nV: [% x]\nstack: %v\n",
			m.PC, kind, err, m.V, m.Stack)
	}
	var code uint16
	if int(m.PC)+1 < chip8.MemSize {
		code = uint16(m.Mem[m.PC])<<8 | uint16(m.Mem[m.PC+1])
	}
	asm := "????"
	if in, ok := chip8.Decode(code); ok {
		asm = in.String()
	}
	return fmt.Sprintf("%.3x %.4x %s %s\nV: [% x]  I: %.3x  DT: %.2x  ST: %.2x\nstack: %v\n",
		m.PC, code, kind, asm, m.V, m.I, m.Timers.Delay, m.Timers.Sound, m.Stack)
}

func (d *debugView) watchContent(m *chip8.Machine) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var b strings.Builder
	if a := d.brk; a != nil {
		fmt.Fprintf(&b, "[%.3x] brk!\n", *a)
	}
	for _, w := range d.watches {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%.3x] ", w.addr)
		if w.short && int(w.addr)+1 < chip8.MemSize {
			fmt.Fprintf(&b, "%.2x%.2x", m.Mem[w.addr], m.Mem[w.addr+1])
		} else {
			fmt.Fprintf(&b, "  %.2x", m.Mem[w.addr])
		}
	}
	return b.String()
}
