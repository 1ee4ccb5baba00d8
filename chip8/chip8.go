// Package chip8 provides an implementation of the CHIP-8 virtual machine,
// called Machine, that can be used to execute CHIP-8 ROMs.
//
// The package is the pure core: it owns memory, registers, the call stack,
// the framebuffer, the keypad state, and the timers, and it never performs
// I/O. A driver repeatedly calls Step to execute instructions and Tick (on
// the Timers) at 60Hz, and presents the framebuffer and sound flag to the
// host however it likes.
package chip8

import (
	"errors"
	"fmt"
	"math/rand"
)

const (
	// MemSize is the size of addressable memory.
	MemSize = 0x1000
	// LoadAddr is where programs are loaded and execution begins. Memory
	// below it belongs to the interpreter and is write-protected.
	LoadAddr = 0x200
	// MaxROMSize is the largest program that fits in memory.
	MaxROMSize = MemSize - LoadAddr

	numRegisters = 16
	flagReg      = 0xf
)

// ErrROMTooBig is returned by Load for programs over MaxROMSize bytes.
var ErrROMTooBig = errors.New("ROM too big for program memory")

// Quirks selects between historically divergent CHIP-8 behaviors. The zero
// value is the strict original interpretation.
type Quirks struct {
	// AdvanceI makes FX55/FX65 leave I pointing past the copied range,
	// as later interpreters did. The original leaves I unchanged.
	AdvanceI bool
	// ShiftY makes 8XY6/8XYE shift Vy into Vx, as the COSMAC VIP did.
	// By default Vx is shifted in place, which is what most ROMs expect.
	ShiftY bool
}

type runState byte

const (
	running runState = iota
	awaitingKey
)

// Machine is an implementation of a CHIP-8 virtual machine.
type Machine struct {
	Mem     [MemSize]byte
	V       [numRegisters]byte
	I       uint16
	PC      uint16
	Stack   Stack
	Display Display
	Keys    Keypad
	Timers  Timers
	Quirks  Quirks

	state    runState
	waitReg  byte   // destination register for wait-for-key
	waitKeys uint16 // keys held when the wait began, for edge detection
	fault    error
	rand     *rand.Rand
}

// New returns a Machine with the font loaded and PC at the program start.
func New() *Machine {
	m := &Machine{
		PC:   LoadAddr,
		rand: rand.New(rand.NewSource(rand.Int63())),
	}
	copy(m.Mem[fontAddr:], fontSprites[:])
	return m
}

// Load copies a ROM into program memory and resets PC to its start.
func (m *Machine) Load(rom []byte) error {
	if len(rom) > MaxROMSize {
		return ErrROMTooBig
	}
	copy(m.Mem[LoadAddr:], rom)
	m.PC = LoadAddr
	return nil
}

// Waiting reports whether the machine is suspended in wait-for-key. While
// waiting, Step does not fetch instructions; it polls the keypad and
// resumes on the first key that transitions to pressed.
func (m *Machine) Waiting() bool { return m.state == awaitingKey }

// Fault returns the fault that halted the machine, or nil.
func (m *Machine) Fault() error { return m.fault }

// Step executes one instruction: fetch at PC, decode, execute, advancing PC
// by 2 unless the instruction sets it. Decode and execution faults halt the
// machine; once halted, Step returns the same Fault forever. A machine in
// wait-for-key only polls the keypad and returns nil.
func (m *Machine) Step() (err error) {
	if m.fault != nil {
		return m.fault
	}
	if m.state == awaitingKey {
		m.pollWaitKey()
		return nil
	}

	opPC := m.PC
	var code uint16
	defer func() {
		if e := recover(); e != nil {
			c, ok := e.(FaultCode)
			if !ok {
				panic(e)
			}
			err = Fault{PC: opPC, Opcode: code, Code: c}
			m.fault = err
		}
	}()

	code = m.fetch()
	in, ok := Decode(code)
	if !ok {
		panic(BadOpcode)
	}
	m.PC += 2
	m.exec(in)
	return nil
}

// fetch reads the big-endian instruction word at PC.
func (m *Machine) fetch() uint16 {
	if m.PC > MemSize-2 {
		panic(OutOfBounds)
	}
	return uint16(m.Mem[m.PC])<<8 | uint16(m.Mem[m.PC+1])
}

func (m *Machine) pollWaitKey() {
	held := m.Keys.mask()
	if newly := held &^ m.waitKeys; newly != 0 {
		var key byte
		for newly&1 == 0 {
			newly >>= 1
			key++
		}
		m.V[m.waitReg] = key
		m.state = running
		return
	}
	// Track releases so that a release-then-press of a key that was
	// already held when the wait began still counts as a transition.
	m.waitKeys = held
}

func (m *Machine) exec(in Instr) {
	x, y := in.X, in.Y
	switch in.Kind {
	case SYS:
		// Native RCA 1802 calls are not a thing here.
		panic(Unimplemented)
	case CLS:
		m.Display.Clear()
	case RET:
		m.PC = m.Stack.pop()
	case JMP:
		m.PC = in.NNN
	case CALL:
		m.Stack.push(m.PC)
		m.PC = in.NNN
	case SE:
		if m.V[x] == in.NN {
			m.PC += 2
		}
	case SNE:
		if m.V[x] != in.NN {
			m.PC += 2
		}
	case SRE:
		if m.V[x] == m.V[y] {
			m.PC += 2
		}
	case LD:
		m.V[x] = in.NN
	case ADD:
		// Unlike 8XY4, immediate add does not set the carry flag.
		m.V[x] += in.NN
	case MOV:
		m.V[x] = m.V[y]
	case OR:
		m.V[x] |= m.V[y]
	case AND:
		m.V[x] &= m.V[y]
	case XOR:
		m.V[x] ^= m.V[y]
	case ADDR:
		sum := uint16(m.V[x]) + uint16(m.V[y])
		m.V[x] = byte(sum)
		m.V[flagReg] = byte(sum >> 8) // flag write last: VF may be the target
	case SUBR:
		noBorrow := b2i(m.V[x] >= m.V[y])
		m.V[x] -= m.V[y]
		m.V[flagReg] = noBorrow
	case SUBNR:
		noBorrow := b2i(m.V[y] >= m.V[x])
		m.V[x] = m.V[y] - m.V[x]
		m.V[flagReg] = noBorrow
	case SHR:
		src := x
		if m.Quirks.ShiftY {
			src = y
		}
		bit := m.V[src] & 0x01
		m.V[x] = m.V[src] >> 1
		m.V[flagReg] = bit
	case SHL:
		src := x
		if m.Quirks.ShiftY {
			src = y
		}
		bit := m.V[src] >> 7
		m.V[x] = m.V[src] << 1
		m.V[flagReg] = bit
	case SRNE:
		if m.V[x] != m.V[y] {
			m.PC += 2
		}
	case LDI:
		m.I = in.NNN
	case JMPI:
		m.PC = in.NNN + uint16(m.V[0])
	case RAND:
		m.V[x] = byte(m.rand.Uint32()) & in.NN
	case DRAW:
		if int(m.I)+int(in.N) > MemSize {
			panic(OutOfBounds)
		}
		sprite := m.Mem[m.I : m.I+uint16(in.N)]
		m.V[flagReg] = b2i(m.Display.Draw(m.V[x], m.V[y], sprite))
	case SKP:
		if m.Keys.Pressed(m.V[x] & 0xf) {
			m.PC += 2
		}
	case SKNP:
		if !m.Keys.Pressed(m.V[x] & 0xf) {
			m.PC += 2
		}
	case MOVD:
		m.V[x] = m.Timers.Delay
	case KEY:
		m.state = awaitingKey
		m.waitReg = x
		m.waitKeys = m.Keys.mask()
	case LDD:
		m.Timers.Delay = m.V[x]
	case LDS:
		m.Timers.Sound = m.V[x]
	case ADDI:
		m.I += uint16(m.V[x])
	case LDSPR:
		m.I = FontAddr(m.V[x] & 0xf)
	case BCD:
		m.checkWrite(m.I, 3)
		m.Mem[m.I] = m.V[x] / 100
		m.Mem[m.I+1] = m.V[x] / 10 % 10
		m.Mem[m.I+2] = m.V[x] % 10
	case STR:
		m.checkWrite(m.I, uint16(x)+1)
		copy(m.Mem[m.I:], m.V[:x+1])
		if m.Quirks.AdvanceI {
			m.I += uint16(x) + 1
		}
	case READ:
		if int(m.I)+int(x) >= MemSize {
			panic(OutOfBounds)
		}
		copy(m.V[:x+1], m.Mem[m.I:])
		if m.Quirks.AdvanceI {
			m.I += uint16(x) + 1
		}
	}
}

// checkWrite panics unless [addr, addr+n) lies in writable program memory.
func (m *Machine) checkWrite(addr, n uint16) {
	if int(addr)+int(n) > MemSize {
		panic(OutOfBounds)
	}
	if addr < LoadAddr {
		panic(WriteProtected)
	}
}

func b2i(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// Fault is returned by Step when execution is halted by a decode error or
// an execution fault.
type Fault struct {
	PC     uint16 // address of the faulting instruction
	Opcode uint16 // instruction word, zero if the fetch itself faulted
	Code   FaultCode
}

func (f Fault) Error() string {
	return fmt.Sprintf("%s executing %.4x at %.3x", f.Code, f.Opcode, f.PC)
}

// FaultCode signifies the type of condition that halted execution.
type FaultCode byte

const (
	BadOpcode FaultCode = iota
	Unimplemented
	StackOverflow
	StackUnderflow
	OutOfBounds
	WriteProtected
)

func (c FaultCode) String() string {
	if s, ok := map[FaultCode]string{
		BadOpcode:      "bad opcode",
		Unimplemented:  "unimplemented opcode",
		StackOverflow:  "stack overflow",
		StackUnderflow: "stack underflow",
		OutOfBounds:    "memory access out of bounds",
		WriteProtected: "write to protected memory",
	}[c]; ok {
		return s
	}
	return fmt.Sprintf("unknown (%.2x)", byte(c))
}
