package vm

import (
	"github.com/kristofer/monkey/pkg/bytecode"
	"github.com/kristofer/monkey/pkg/object"
)

// Frame is one call record on the VM's call stack: the Closure being
// executed, its own instruction pointer, and the base stack pointer at
// which its local variable slots begin. OpCall pushes a Frame; OpReturnValue
// and OpReturnNull pop one.
type Frame struct {
	cl          *object.Closure
	ip          int
	basePointer int
}

// NewFrame builds a Frame for cl, with its locals starting at basePointer
// (the stack slot its first argument occupies).
func NewFrame(cl *object.Closure, basePointer int) *Frame {
	return &Frame{cl: cl, ip: -1, basePointer: basePointer}
}

// Instructions returns the bytecode the frame's closure executes.
func (f *Frame) Instructions() bytecode.Instructions {
	return f.cl.Fn.Instructions
}
