package chip8

import (
	"fmt"
	"strings"
)

// StackDepth is the maximum subroutine call nesting.
const StackDepth = 16

// Stack holds subroutine return addresses.
type Stack struct {
	Addrs [StackDepth]uint16
	Ptr   byte
}

func (s *Stack) push(addr uint16) {
	if s.Ptr == StackDepth {
		panic(StackOverflow)
	}
	s.Addrs[s.Ptr] = addr
	s.Ptr++
}

func (s *Stack) pop() uint16 {
	if s.Ptr == 0 {
		panic(StackUnderflow)
	}
	s.Ptr--
	return s.Addrs[s.Ptr]
}

func (s Stack) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, a := range s.Addrs[:s.Ptr] {
		fmt.Fprintf(&b, " %.3x", a)
	}
	b.WriteString(" )")
	return b.String()
}
