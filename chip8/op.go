package chip8

import (
	"fmt"
	"strings"
)

// Kind identifies a decoded CHIP-8 instruction.
type Kind byte

const (
	CLS Kind = iota
	RET
	SYS
	JMP
	CALL
	SE
	SNE
	SRE
	LD
	ADD
	MOV
	OR
	AND
	XOR
	ADDR
	SUBR
	SHR
	SUBNR
	SHL
	SRNE
	LDI
	JMPI
	RAND
	DRAW
	SKP
	SKNP
	MOVD
	KEY
	LDD
	LDS
	ADDI
	LDSPR
	BCD
	STR
	READ
)

func (k Kind) String() string { return kindStrings[k] }

var kindStrings = strings.Fields(`
	CLS
	RET
	SYS
	JMP
	CALL
	SE
	SNE
	SRE
	LD
	ADD
	MOV
	OR
	AND
	XOR
	ADDR
	SUBR
	SHR
	SUBNR
	SHL
	SRNE
	LDI
	JMPI
	RAND
	DRAW
	SKP
	SKNP
	MOVD
	KEY
	LDD
	LDS
	ADDI
	LDSPR
	BCD
	STR
	READ
`)

// Instr is a decoded instruction: a Kind plus the operand fields extracted
// from the 16-bit instruction word. Only the fields meaningful for the Kind
// are populated; the rest are zero.
type Instr struct {
	Kind Kind
	X, Y byte   // register indices, second and third nibbles
	N    byte   // low nibble
	NN   byte   // low byte
	NNN  uint16 // low 12 bits
}

// Decode maps a 16-bit instruction word to its Instr.
// It reports false for bit patterns with no defined instruction.
func Decode(code uint16) (Instr, bool) {
	var (
		x   = byte(code >> 8 & 0xf)
		y   = byte(code >> 4 & 0xf)
		n   = byte(code & 0xf)
		nn  = byte(code)
		nnn = code & 0xfff
	)
	in := Instr{X: x, Y: y, N: n, NN: nn, NNN: nnn}
	ok := true
	switch code >> 12 {
	case 0x0:
		switch {
		case code == 0x00e0:
			in = Instr{Kind: CLS}
		case code == 0x00ee:
			in = Instr{Kind: RET}
		default:
			in.Kind = SYS
		}
	case 0x1:
		in.Kind = JMP
	case 0x2:
		in.Kind = CALL
	case 0x3:
		in.Kind = SE
	case 0x4:
		in.Kind = SNE
	case 0x5:
		in.Kind = SRE
		ok = n == 0
	case 0x6:
		in.Kind = LD
	case 0x7:
		in.Kind = ADD
	case 0x8:
		switch n {
		case 0x0:
			in.Kind = MOV
		case 0x1:
			in.Kind = OR
		case 0x2:
			in.Kind = AND
		case 0x3:
			in.Kind = XOR
		case 0x4:
			in.Kind = ADDR
		case 0x5:
			in.Kind = SUBR
		case 0x6:
			in.Kind = SHR
		case 0x7:
			in.Kind = SUBNR
		case 0xe:
			in.Kind = SHL
		default:
			ok = false
		}
	case 0x9:
		in.Kind = SRNE
		ok = n == 0
	case 0xa:
		in.Kind = LDI
	case 0xb:
		in.Kind = JMPI
	case 0xc:
		in.Kind = RAND
	case 0xd:
		in.Kind = DRAW
	case 0xe:
		switch nn {
		case 0x9e:
			in.Kind = SKP
		case 0xa1:
			in.Kind = SKNP
		default:
			ok = false
		}
	case 0xf:
		switch nn {
		case 0x07:
			in.Kind = MOVD
		case 0x0a:
			in.Kind = KEY
		case 0x15:
			in.Kind = LDD
		case 0x18:
			in.Kind = LDS
		case 0x1e:
			in.Kind = ADDI
		case 0x29:
			in.Kind = LDSPR
		case 0x33:
			in.Kind = BCD
		case 0x55:
			in.Kind = STR
		case 0x65:
			in.Kind = READ
		default:
			ok = false
		}
	}
	if !ok {
		return Instr{}, false
	}
	return in, true
}

// String renders the instruction in Cowgod-style assembly, for tracing
// and the debugger's state line.
func (in Instr) String() string {
	switch in.Kind {
	case CLS, RET:
		return in.Kind.String()
	case SYS, JMP, CALL, LDI:
		return fmt.Sprintf("%s %.3x", in.Kind, in.NNN)
	case JMPI:
		return fmt.Sprintf("%s V0+%.3x", in.Kind, in.NNN)
	case SE, SNE, LD, ADD, RAND:
		return fmt.Sprintf("%s V%X, %.2x", in.Kind, in.X, in.NN)
	case SRE, MOV, OR, AND, XOR, ADDR, SUBR, SHR, SUBNR, SHL, SRNE:
		return fmt.Sprintf("%s V%X, V%X", in.Kind, in.X, in.Y)
	case DRAW:
		return fmt.Sprintf("%s V%X, V%X, %x", in.Kind, in.X, in.Y, in.N)
	default:
		return fmt.Sprintf("%s V%X", in.Kind, in.X)
	}
}
