package object

import (
	"fmt"

	"github.com/kristofer/monkey/pkg/bytecode"
)

// CompiledFunction is the constant-pool entry the compiler emits for a
// FunctionLiteral: its body already lowered to bytecode, plus the two
// counts the VM needs to set up a call frame (how many stack slots to
// reserve for locals, and how many of those are parameters bound from the
// caller's arguments).
type CompiledFunction struct {
	Instructions  bytecode.Instructions
	NumLocals     int
	NumParameters int
}

func (cf *CompiledFunction) Type() Type { return CompiledFunctionObj }
func (cf *CompiledFunction) Inspect() string {
	return fmt.Sprintf("CompiledFunction[%p]", cf)
}

// Closure pairs a CompiledFunction with the free variables the VM captured
// when it executed the OpClosure for its function literal — the runtime
// counterpart of the tree-walking evaluator's Function.Env capture, with
// which names are free resolved ahead of time by the compiler instead of
// chasing an Environment chain at call time.
type Closure struct {
	Fn   *CompiledFunction
	Free []Object
}

func (c *Closure) Type() Type      { return ClosureObj }
func (c *Closure) Inspect() string { return fmt.Sprintf("Closure[%p]", c) }
