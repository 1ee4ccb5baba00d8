package chip8

import (
	"bytes"
	"fmt"
	"testing"
)

func TestLoad(t *testing.T) {
	m := New()
	rom := []byte{0x12, 0x34, 0x56}
	if err := m.Load(rom); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if m.PC != LoadAddr {
		t.Errorf("PC = %.3x, want %.3x", m.PC, LoadAddr)
	}
	if got := m.Mem[LoadAddr : LoadAddr+3]; !bytes.Equal(got, rom) {
		t.Errorf("Mem[%.3x:] = %x, want %x", LoadAddr, got, rom)
	}
	if got := m.Mem[:5]; !bytes.Equal(got, fontSprites[:5]) {
		t.Errorf("font region = %x, want %x", got, fontSprites[:5])
	}
}

func TestLoadTooBig(t *testing.T) {
	m := New()
	if err := m.Load(make([]byte, MaxROMSize+1)); err != ErrROMTooBig {
		t.Errorf("Load returned %v, want %v", err, ErrROMTooBig)
	}
	if err := m.Load(make([]byte, MaxROMSize)); err != nil {
		t.Errorf("Load of max-size ROM returned %v", err)
	}
}

func TestStep(t *testing.T) {
	c := newStepTestCase
	for i, c := range []*stepTestCase{
		// Register loads and immediate arithmetic.
		c(0x6042).want().v(0, 0x42),
		c(0x7005).v(0, 0x10).want().v(0, 0x15),
		c(0x70ff).v(0, 0x02).v(0xf, 7).want().v(0, 0x01), // no carry flag
		c(0x8120).v(2, 0x99).want().v(1, 0x99),

		// Skips.
		c(0x3042).v(0, 0x42).want().pc(0x204),
		c(0x3042).v(0, 0x41).want(),
		c(0x4042).v(0, 0x41).want().pc(0x204),
		c(0x4042).v(0, 0x42).want(),
		c(0x5120).v(1, 7).v(2, 7).want().pc(0x204),
		c(0x5120).v(1, 7).v(2, 8).want(),
		c(0x9120).v(1, 7).v(2, 8).want().pc(0x204),
		c(0x9120).v(1, 7).v(2, 7).want(),

		// Register logic.
		c(0x8121).v(1, 0x36).v(2, 0x63).want().v(1, 0x77),
		c(0x8122).v(1, 0x99).v(2, 0xb8).want().v(1, 0x98),
		c(0x8123).v(1, 0x31).v(2, 0x13).want().v(1, 0x22),

		// ADD with carry.
		c(0x8124).v(1, 0x01).v(2, 0x02).want().v(1, 0x03).v(0xf, 0),
		c(0x8124).v(1, 0xff).v(2, 0x02).want().v(1, 0x01).v(0xf, 1),
		c(0x8f14).v(0xf, 0xff).v(1, 0x02).want().v(0xf, 1), // VF target: flag wins

		// SUB with not-borrow.
		c(0x8125).v(1, 5).v(2, 3).want().v(1, 2).v(0xf, 1),
		c(0x8125).v(1, 3).v(2, 5).want().v(1, 0xfe).v(0xf, 0),
		c(0x8125).v(1, 5).v(2, 5).want().v(1, 0).v(0xf, 1),
		c(0x8127).v(1, 3).v(2, 5).want().v(1, 2).v(0xf, 1),
		c(0x8127).v(1, 5).v(2, 3).want().v(1, 0xfe).v(0xf, 0),

		// Shifts; VF takes the shifted-out bit.
		c(0x8126).v(1, 0x05).want().v(1, 0x02).v(0xf, 1),
		c(0x8126).v(1, 0x04).want().v(1, 0x02).v(0xf, 0),
		c(0x812e).v(1, 0x81).want().v(1, 0x02).v(0xf, 1),
		c(0x812e).v(1, 0x41).want().v(1, 0x82).v(0xf, 0),
		c(0x8126).quirks(Quirks{ShiftY: true}).v(2, 0x05).want().v(1, 0x02).v(0xf, 1),
		c(0x812e).quirks(Quirks{ShiftY: true}).v(2, 0x81).want().v(1, 0x02).v(0xf, 1),

		// Flow control.
		c(0x1456).want().pc(0x456),
		c(0x2456).want().stack(0x202).pc(0x456),
		c(0x00ee).stack(0x246).want().stack().pc(0x246),
		c(0xb010).v(0, 5).want().pc(0x015),

		// Index register.
		c(0xacde).want().i(0xcde),
		c(0xf11e).v(1, 6).i(0x300).want().i(0x306),
		c(0xf529).v(5, 0xb).want().i(0x037),
		c(0xf529).v(5, 0x1b).want().i(0x037), // digit masked to a nibble

		// Keypad skips.
		c(0xe19e).v(1, 0xa).key(0xa).want().pc(0x204),
		c(0xe19e).v(1, 0xa).want(),
		c(0xe1a1).v(1, 0xa).want().pc(0x204),
		c(0xe1a1).v(1, 0xa).key(0xa).want(),

		// Timers.
		c(0xf107).delay(0x33).want().v(1, 0x33),
		c(0xf115).v(1, 0x44).want().delay(0x44),
		c(0xf118).v(1, 0x55).want().sound(0x55),

		// Wait-for-key suspends the machine.
		c(0xf30a).want().waiting(),

		// BCD.
		c(0xf233).v(2, 135).i(0x400).want().mem(0x400, 1, 3, 5),
		c(0xf233).v(2, 7).i(0x400).want().mem(0x400, 0, 0, 7),

		// Register range store/load; I is left unchanged.
		c(0xf255).v(0, 0xaa).v(1, 0xbb).v(2, 0xcc).v(3, 0xdd).i(0x400).
			want().mem(0x400, 0xaa, 0xbb, 0xcc),
		c(0xf055).v(0, 0x11).i(0x400).want().mem(0x400, 0x11),
		c(0xf265).mem(0x400, 0xaa, 0xbb, 0xcc, 0xdd).i(0x400).
			want().v(0, 0xaa).v(1, 0xbb).v(2, 0xcc),
		c(0xf255).quirks(Quirks{AdvanceI: true}).v(0, 1).v(1, 2).v(2, 3).i(0x400).
			want().mem(0x400, 1, 2, 3).i(0x403),
		c(0xf265).quirks(Quirks{AdvanceI: true}).mem(0x400, 9).i(0x400).
			want().v(0, 9).v(1, 0).v(2, 0).i(0x403),

		// Faults.
		c(0xffff).want().pc(0x200).
			fault(Fault{PC: 0x200, Opcode: 0xffff, Code: BadOpcode}),
		c(0x0123).want().
			fault(Fault{PC: 0x200, Opcode: 0x0123, Code: Unimplemented}),
		c(0x00ee).want().
			fault(Fault{PC: 0x200, Opcode: 0x00ee, Code: StackUnderflow}),
		c(0x2456).stack(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16).
			want().
			fault(Fault{PC: 0x200, Opcode: 0x2456, Code: StackOverflow}),
		c(0xf155).i(0x100).want().
			fault(Fault{PC: 0x200, Opcode: 0xf155, Code: WriteProtected}),
		c(0xf233).i(0x050).want().
			fault(Fault{PC: 0x200, Opcode: 0xf233, Code: WriteProtected}),
		c(0xf355).i(0xffe).want().
			fault(Fault{PC: 0x200, Opcode: 0xf355, Code: OutOfBounds}),
		c(0xf365).i(0xffe).want().
			fault(Fault{PC: 0x200, Opcode: 0xf365, Code: OutOfBounds}),
		c(0xd012).i(0xfff).want().
			fault(Fault{PC: 0x200, Opcode: 0xd012, Code: OutOfBounds}),
	} {
		name := fmt.Sprintf("%.4x_%d", c.code, i)
		t.Run(name, func(t *testing.T) {
			err := c.m.Step()
			if err != c.err {
				t.Fatalf("Step returned %v, want %v", err, c.err)
			}
			if got := c.m.Waiting(); got != c.wantWaiting {
				t.Errorf("Waiting() = %v, want %v", got, c.wantWaiting)
			}
			compareMachines(t, c.m, c.w)
		})
	}
}

func TestRand(t *testing.T) {
	// No distribution guarantees, but the immediate byte masks the result.
	for i := 0; i < 32; i++ {
		m := New()
		loadWords(m, 0xc10f)
		if err := m.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if m.V[1]&^0x0f != 0 {
			t.Fatalf("RAND V1, 0f produced %#x, want high nibble clear", m.V[1])
		}
	}
}

func TestStepAfterFault(t *testing.T) {
	m := New()
	loadWords(m, 0xffff)
	want := Fault{PC: 0x200, Opcode: 0xffff, Code: BadOpcode}
	if err := m.Step(); err != want {
		t.Fatalf("Step returned %v, want %v", err, want)
	}
	if err := m.Step(); err != want {
		t.Errorf("second Step returned %v, want the original fault", err)
	}
	if m.Fault() != error(want) {
		t.Errorf("Fault() = %v, want %v", m.Fault(), want)
	}
}

func TestFetchOutOfBounds(t *testing.T) {
	m := New()
	m.PC = 0xfff
	err := m.Step()
	want := Fault{PC: 0xfff, Code: OutOfBounds}
	if err != want {
		t.Errorf("Step returned %v, want %v", err, want)
	}
}

func TestWaitForKey(t *testing.T) {
	m := New()
	loadWords(m, 0xf30a, 0x6001) // KEY V3; LD V0, 1
	m.Keys.SetKey(0x7, true)     // held before the wait begins

	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if !m.Waiting() || m.PC != 0x202 {
		t.Fatalf("after KEY: waiting=%v PC=%.3x", m.Waiting(), m.PC)
	}

	// Polling without a new press stays suspended.
	for i := 0; i < 3; i++ {
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
		if !m.Waiting() || m.PC != 0x202 {
			t.Fatalf("poll %d: waiting=%v PC=%.3x", i, m.Waiting(), m.PC)
		}
	}

	// A key held since before the wait does not satisfy it, but a
	// release and re-press does.
	m.Keys.SetKey(0x7, false)
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if !m.Waiting() {
		t.Fatal("release resumed the machine")
	}
	m.Keys.SetKey(0x7, true)
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.Waiting() {
		t.Fatal("still waiting after key press")
	}
	if m.V[3] != 0x7 {
		t.Errorf("V3 = %#x, want 0x7", m.V[3])
	}

	// The next step executes normally.
	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.V[0] != 1 || m.PC != 0x204 {
		t.Errorf("after resume: V0=%d PC=%.3x", m.V[0], m.PC)
	}
}

func TestClearAndSpin(t *testing.T) {
	// 00E0 CLS; 1200 JMP 200: the clear blanks the display and the jump
	// loops back to the start, so PC cycles 200, 202, 200, ... forever.
	m := New()
	m.Load([]byte{0x00, 0xe0, 0x12, 0x00})
	m.Display.Draw(0, 0, []byte{0xff})

	if err := m.Step(); err != nil {
		t.Fatal(err)
	}
	if m.Display.Frame() != (Frame{}) {
		t.Error("display not cleared")
	}
	if m.PC != 0x202 {
		t.Fatalf("PC = %.3x, want 202", m.PC)
	}
	for i := 0; i < 3; i++ {
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
		want := uint16(0x200 + 2*(i%2))
		if m.PC != want {
			t.Fatalf("PC = %.3x, want %.3x", m.PC, want)
		}
	}
}

func TestFontScenario(t *testing.T) {
	// LD V0, 5 then LDSPR V0: I points at the canonical "5" glyph.
	m := New()
	loadWords(m, 0x6005, 0xf029)
	for i := 0; i < 2; i++ {
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if m.I != 25 {
		t.Fatalf("I = %d, want 25", m.I)
	}
	want := []byte{0xf0, 0x80, 0xf0, 0x10, 0xf0}
	if got := m.Mem[m.I : m.I+5]; !bytes.Equal(got, want) {
		t.Errorf("glyph = %x, want %x", got, want)
	}
}

func TestCallDepth(t *testing.T) {
	// Sixteen nested calls succeed; the seventeenth overflows.
	m := New()
	for i := 0; i < 17; i++ {
		addr := 0x200 + 2*i
		m.Mem[addr] = byte(0x20 | (addr+2)>>8)
		m.Mem[addr+1] = byte(addr + 2)
		// Each CALL targets the next slot, nesting one level deeper.
	}
	for i := 0; i < 16; i++ {
		if err := m.Step(); err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
	}
	if m.Stack.Ptr != 16 {
		t.Fatalf("stack depth = %d, want 16", m.Stack.Ptr)
	}
	err := m.Step()
	f, ok := err.(Fault)
	if !ok || f.Code != StackOverflow {
		t.Fatalf("17th call returned %v, want stack overflow", err)
	}
}

func TestBCDRoundTrip(t *testing.T) {
	// The original's bcd test: store digits, read them back into V0..V2.
	m := New()
	loadWords(m, 0x6087, 0xa400, 0xf033, 0xf265) // LD V0,135; LDI 400; BCD; READ V2
	for i := 0; i < 4; i++ {
		if err := m.Step(); err != nil {
			t.Fatal(err)
		}
	}
	if m.V[0] != 1 || m.V[1] != 3 || m.V[2] != 5 {
		t.Errorf("V0..V2 = %d %d %d, want 1 3 5", m.V[0], m.V[1], m.V[2])
	}
	if m.I != 0x400 {
		t.Errorf("I = %.3x, want 400 (no advance)", m.I)
	}
}

// loadWords loads big-endian instruction words as the machine's ROM.
func loadWords(m *Machine, words ...uint16) {
	rom := make([]byte, 0, 2*len(words))
	for _, w := range words {
		rom = append(rom, byte(w>>8), byte(w))
	}
	if err := m.Load(rom); err != nil {
		panic(err)
	}
}

type stepTestCase struct {
	code uint16
	m, w *Machine
	err  error
	set  *Machine

	wantWaiting bool
}

func newStepTestCase(code uint16) *stepTestCase {
	c := &stepTestCase{code: code}
	c.m = New()
	loadWords(c.m, code)
	c.w = New()
	loadWords(c.w, code)
	c.w.PC += 2
	c.set = c.m
	return c
}

// Setters apply to the input machine (and are mirrored into the expected
// machine) until want is called; after that they shape the expectation.

func (c *stepTestCase) both(f func(m *Machine)) *stepTestCase {
	f(c.set)
	if c.set == c.m {
		f(c.w)
	}
	return c
}

func (c *stepTestCase) v(reg int, val byte) *stepTestCase {
	return c.both(func(m *Machine) { m.V[reg] = val })
}

func (c *stepTestCase) i(addr uint16) *stepTestCase {
	return c.both(func(m *Machine) { m.I = addr })
}

func (c *stepTestCase) pc(addr uint16) *stepTestCase {
	c.set.PC = addr
	return c
}

func (c *stepTestCase) mem(addr uint16, bytes ...byte) *stepTestCase {
	return c.both(func(m *Machine) { copy(m.Mem[addr:], bytes) })
}

func (c *stepTestCase) stack(addrs ...uint16) *stepTestCase {
	return c.both(func(m *Machine) {
		m.Stack = Stack{}
		copy(m.Stack.Addrs[:], addrs)
		m.Stack.Ptr = byte(len(addrs))
	})
}

func (c *stepTestCase) key(k byte) *stepTestCase {
	return c.both(func(m *Machine) { m.Keys.SetKey(k, true) })
}

func (c *stepTestCase) delay(val byte) *stepTestCase {
	return c.both(func(m *Machine) { m.Timers.Delay = val })
}

func (c *stepTestCase) sound(val byte) *stepTestCase {
	return c.both(func(m *Machine) { m.Timers.Sound = val })
}

func (c *stepTestCase) quirks(q Quirks) *stepTestCase {
	c.m.Quirks = q
	c.w.Quirks = q
	return c
}

func (c *stepTestCase) want() *stepTestCase {
	c.set = c.w
	return c
}

func (c *stepTestCase) waiting() *stepTestCase {
	c.wantWaiting = true
	return c
}

func (c *stepTestCase) fault(f Fault) *stepTestCase {
	c.err = f
	return c
}

func compareMachines(t *testing.T, got, want *Machine) {
	t.Helper()
	if got.V != want.V {
		t.Errorf("V = %x, want %x", got.V, want.V)
	}
	if got.I != want.I {
		t.Errorf("I = %.3x, want %.3x", got.I, want.I)
	}
	if got.PC != want.PC {
		t.Errorf("PC = %.3x, want %.3x", got.PC, want.PC)
	}
	if !stackEq(got.Stack, want.Stack) {
		t.Errorf("stack is %v, want %v", got.Stack, want.Stack)
	}
	if got.Mem != want.Mem {
		for i := range got.Mem {
			if got.Mem[i] != want.Mem[i] {
				t.Errorf("Mem[%.3x] = %.2x, want %.2x", i, got.Mem[i], want.Mem[i])
			}
		}
	}
	if got.Display.Frame() != want.Display.Frame() {
		t.Errorf("display differs from expectation")
	}
	if got.Timers != want.Timers {
		t.Errorf("timers = %+v, want %+v", got.Timers, want.Timers)
	}
}

func stackEq(a, b Stack) bool {
	if a.Ptr != b.Ptr {
		return false
	}
	for i := byte(0); i < a.Ptr; i++ {
		if a.Addrs[i] != b.Addrs[i] {
			return false
		}
	}
	return true
}
