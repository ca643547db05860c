// Package vm executes compiled Monkey bytecode (pkg/compiler's Bytecode
// output) with a stack machine: a fixed-capacity value stack, a globals
// array of fixed size GlobalsSize (not sized to the compiler's symbol
// table), and a call-frame stack so
// function calls (including closures and recursion) nest without growing
// the Go call stack.
//
// The VM's fetch/decode/execute loop is the runtime twin of
// pkg/evaluator's tree walk: every well-formed program must produce the
// same LastPoppedStackElem() here as it produces from evaluator.Eval there.
// Where the two disagree is a bug in one of them, not an acceptable
// divergence.
package vm

import (
	"fmt"

	"github.com/kristofer/monkey/pkg/bytecode"
	"github.com/kristofer/monkey/pkg/compiler"
	"github.com/kristofer/monkey/pkg/object"
)

const (
	// StackSize is the VM's fixed value-stack capacity.
	StackSize = 2048
	// GlobalsSize bounds how many distinct global bindings a program may
	// define; the compiler's symbol table assigns indices below this.
	GlobalsSize = 65536
	// MaxFrames bounds call nesting depth (including recursion).
	MaxFrames = 1024
)

// Singletons shared with pkg/evaluator so the two backends agree on
// identity comparisons of booleans and null.
var (
	True  = object.TRUE
	False = object.FALSE
	Null  = object.NULL
)

// VM executes one compiled program. It is not reentrant: NewWithGlobalsStore
// lets a REPL reuse the globals slice across successive VM instances, one
// per input line, which is how state persists between REPL inputs despite
// each line getting its own VM/Compiler pair.
type VM struct {
	constants []object.Object

	stack []object.Object
	sp    int // stack[sp-1] is the top of stack; stack[sp] is the next free slot

	globals []object.Object

	frames      []*Frame
	framesIndex int
}

// New returns a VM ready to run bc, with a fresh zeroed globals array.
func New(bc *compiler.Bytecode) *VM {
	mainFn := &object.CompiledFunction{Instructions: bc.Instructions}
	mainClosure := &object.Closure{Fn: mainFn}
	mainFrame := NewFrame(mainClosure, 0)

	frames := make([]*Frame, MaxFrames)
	frames[0] = mainFrame

	return &VM{
		constants:   bc.Constants,
		stack:       make([]object.Object, StackSize),
		sp:          0,
		globals:     make([]object.Object, GlobalsSize),
		frames:      frames,
		framesIndex: 1,
	}
}

// NewWithGlobalsStore returns a VM like New, but sharing globals (typically
// reused across a REPL session's successive inputs) instead of allocating
// a fresh array.
func NewWithGlobalsStore(bc *compiler.Bytecode, globals []object.Object) *VM {
	v := New(bc)
	v.globals = globals
	return v
}

func (vm *VM) currentFrame() *Frame {
	return vm.frames[vm.framesIndex-1]
}

func (vm *VM) pushFrame(f *Frame) {
	vm.frames[vm.framesIndex] = f
	vm.framesIndex++
}

func (vm *VM) popFrame() *Frame {
	vm.framesIndex--
	return vm.frames[vm.framesIndex]
}

// stackTrace renders the current frame stack for a RuntimeError.
func (vm *VM) stackTrace() []StackFrame {
	trace := make([]StackFrame, 0, vm.framesIndex)
	for i := 0; i < vm.framesIndex; i++ {
		f := vm.frames[i]
		name := "<closure>"
		if i == 0 {
			name = "<program>"
		}
		trace = append(trace, StackFrame{Name: name, IP: f.ip})
	}
	return trace
}

// StackTop returns the value currently on top of the stack, or nil if the
// stack is empty. Mostly useful from tests and the debugger.
func (vm *VM) StackTop() object.Object {
	if vm.sp == 0 {
		return nil
	}
	return vm.stack[vm.sp-1]
}

// LastPoppedStackElem returns the slot a Pop most recently vacated. Stack
// slots are not zeroed on pop, so stack[sp] still holds that value — this
// is how tests and the REPL observe an expression statement's result after
// its trailing OpPop has already executed.
func (vm *VM) LastPoppedStackElem() object.Object {
	return vm.stack[vm.sp]
}

// Run executes the program to completion, or until a runtime error occurs.
func (vm *VM) Run() error {
	var ip int
	var ins bytecode.Instructions
	var op bytecode.Opcode

	for vm.currentFrame().ip < len(vm.currentFrame().Instructions())-1 {
		vm.currentFrame().ip++

		ip = vm.currentFrame().ip
		ins = vm.currentFrame().Instructions()
		op = bytecode.Opcode(ins[ip])

		switch op {
		case bytecode.OpConstant:
			constIndex := bytecode.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			if err := vm.push(vm.constants[constIndex]); err != nil {
				return err
			}

		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv:
			if err := vm.executeBinaryOperation(op); err != nil {
				return err
			}

		case bytecode.OpTrue:
			if err := vm.push(True); err != nil {
				return err
			}

		case bytecode.OpFalse:
			if err := vm.push(False); err != nil {
				return err
			}

		case bytecode.OpNull:
			if err := vm.push(Null); err != nil {
				return err
			}

		case bytecode.OpEqual, bytecode.OpNotEqual, bytecode.OpGreaterThan:
			if err := vm.executeComparison(op); err != nil {
				return err
			}

		case bytecode.OpBang:
			if err := vm.executeBangOperator(); err != nil {
				return err
			}

		case bytecode.OpMinus:
			if err := vm.executeMinusOperator(); err != nil {
				return err
			}

		case bytecode.OpJump:
			pos := int(bytecode.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip = pos - 1

		case bytecode.OpJumpNotTruthy:
			pos := int(bytecode.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2

			condition := vm.pop()
			if !isTruthy(condition) {
				vm.currentFrame().ip = pos - 1
			}

		case bytecode.OpSetGlobal:
			globalIndex := bytecode.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			vm.globals[globalIndex] = vm.pop()

		case bytecode.OpGetGlobal:
			globalIndex := bytecode.ReadUint16(ins[ip+1:])
			vm.currentFrame().ip += 2
			if err := vm.push(vm.globals[globalIndex]); err != nil {
				return err
			}

		case bytecode.OpSetLocal:
			localIndex := bytecode.ReadUint8(ins[ip+1:])
			vm.currentFrame().ip += 1
			frame := vm.currentFrame()
			vm.stack[frame.basePointer+int(localIndex)] = vm.pop()

		case bytecode.OpGetLocal:
			localIndex := bytecode.ReadUint8(ins[ip+1:])
			vm.currentFrame().ip += 1
			frame := vm.currentFrame()
			if err := vm.push(vm.stack[frame.basePointer+int(localIndex)]); err != nil {
				return err
			}

		case bytecode.OpGetBuiltin:
			builtinIndex := bytecode.ReadUint8(ins[ip+1:])
			vm.currentFrame().ip += 1
			definition := object.Builtins[builtinIndex]
			if err := vm.push(definition.Builtin); err != nil {
				return err
			}

		case bytecode.OpArray:
			numElements := int(bytecode.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2

			array := vm.buildArray(vm.sp-numElements, vm.sp)
			vm.sp = vm.sp - numElements

			if err := vm.push(array); err != nil {
				return err
			}

		case bytecode.OpHash:
			numElements := int(bytecode.ReadUint16(ins[ip+1:]))
			vm.currentFrame().ip += 2

			hash, err := vm.buildHash(vm.sp-numElements, vm.sp)
			if err != nil {
				return err
			}
			vm.sp = vm.sp - numElements

			if err := vm.push(hash); err != nil {
				return err
			}

		case bytecode.OpIndex:
			index := vm.pop()
			left := vm.pop()

			if err := vm.executeIndexExpression(left, index); err != nil {
				return err
			}

		case bytecode.OpCall:
			numArgs := int(bytecode.ReadUint8(ins[ip+1:]))
			vm.currentFrame().ip += 1

			if err := vm.executeCall(numArgs); err != nil {
				return err
			}

		case bytecode.OpReturnValue:
			returnValue := vm.pop()

			frame := vm.popFrame()
			vm.sp = frame.basePointer - 1

			if err := vm.push(returnValue); err != nil {
				return err
			}

		case bytecode.OpReturnNull:
			frame := vm.popFrame()
			vm.sp = frame.basePointer - 1

			if err := vm.push(Null); err != nil {
				return err
			}

		case bytecode.OpClosure:
			constIndex := bytecode.ReadUint16(ins[ip+1:])
			numFree := int(bytecode.ReadUint8(ins[ip+3:]))
			vm.currentFrame().ip += 3

			if err := vm.pushClosure(int(constIndex), numFree); err != nil {
				return err
			}

		case bytecode.OpGetFree:
			freeIndex := bytecode.ReadUint8(ins[ip+1:])
			vm.currentFrame().ip += 1

			currentClosure := vm.currentFrame().cl
			if err := vm.push(currentClosure.Free[freeIndex]); err != nil {
				return err
			}

		case bytecode.OpCurrentClosure:
			currentClosure := vm.currentFrame().cl
			if err := vm.push(currentClosure); err != nil {
				return err
			}

		default:
			return newRuntimeError(fmt.Sprintf("unknown opcode: %d", op), vm.stackTrace())
		}
	}

	return nil
}

func (vm *VM) push(o object.Object) error {
	if vm.sp >= StackSize {
		return newRuntimeError("stack overflow", vm.stackTrace())
	}
	vm.stack[vm.sp] = o
	vm.sp++
	return nil
}

func (vm *VM) pop() object.Object {
	o := vm.stack[vm.sp-1]
	vm.sp--
	return o
}

func (vm *VM) executeBinaryOperation(op bytecode.Opcode) error {
	right := vm.pop()
	left := vm.pop()

	leftType := left.Type()
	rightType := right.Type()

	switch {
	case leftType == object.IntegerObj && rightType == object.IntegerObj:
		return vm.executeBinaryIntegerOperation(op, left, right)
	default:
		return newRuntimeError(
			fmt.Sprintf("unsupported types for binary operation: %s, %s", leftType, rightType),
			vm.stackTrace())
	}
}

func (vm *VM) executeBinaryIntegerOperation(op bytecode.Opcode, left, right object.Object) error {
	leftValue := left.(*object.Integer).Value
	rightValue := right.(*object.Integer).Value

	var result int64

	switch op {
	case bytecode.OpAdd:
		result = leftValue + rightValue
	case bytecode.OpSub:
		result = leftValue - rightValue
	case bytecode.OpMul:
		result = leftValue * rightValue
	case bytecode.OpDiv:
		if rightValue == 0 {
			return newRuntimeError("division by zero", vm.stackTrace())
		}
		result = leftValue / rightValue
	default:
		return newRuntimeError(fmt.Sprintf("unknown integer operator: %d", op), vm.stackTrace())
	}

	return vm.push(&object.Integer{Value: result})
}

func (vm *VM) executeComparison(op bytecode.Opcode) error {
	right := vm.pop()
	left := vm.pop()

	if left.Type() == object.IntegerObj && right.Type() == object.IntegerObj {
		return vm.executeIntegerComparison(op, left, right)
	}

	switch op {
	case bytecode.OpEqual:
		return vm.push(nativeBoolToBooleanObject(right == left))
	case bytecode.OpNotEqual:
		return vm.push(nativeBoolToBooleanObject(right != left))
	default:
		return newRuntimeError(
			fmt.Sprintf("unknown operator: %d (%s %s)", op, left.Type(), right.Type()),
			vm.stackTrace())
	}
}

func (vm *VM) executeIntegerComparison(op bytecode.Opcode, left, right object.Object) error {
	leftValue := left.(*object.Integer).Value
	rightValue := right.(*object.Integer).Value

	switch op {
	case bytecode.OpEqual:
		return vm.push(nativeBoolToBooleanObject(rightValue == leftValue))
	case bytecode.OpNotEqual:
		return vm.push(nativeBoolToBooleanObject(rightValue != leftValue))
	case bytecode.OpGreaterThan:
		return vm.push(nativeBoolToBooleanObject(leftValue > rightValue))
	default:
		return newRuntimeError(fmt.Sprintf("unknown operator: %d", op), vm.stackTrace())
	}
}

func (vm *VM) executeBangOperator() error {
	operand := vm.pop()

	switch operand {
	case True:
		return vm.push(False)
	case False:
		return vm.push(True)
	case Null:
		return vm.push(True)
	default:
		return vm.push(False)
	}
}

func (vm *VM) executeMinusOperator() error {
	operand := vm.pop()

	if operand.Type() != object.IntegerObj {
		return newRuntimeError(fmt.Sprintf("unsupported type for negation: %s", operand.Type()), vm.stackTrace())
	}

	value := operand.(*object.Integer).Value
	return vm.push(&object.Integer{Value: -value})
}

func (vm *VM) buildArray(startIndex, endIndex int) object.Object {
	elements := make([]object.Object, endIndex-startIndex)
	for i := startIndex; i < endIndex; i++ {
		elements[i-startIndex] = vm.stack[i]
	}
	return &object.Array{Elements: elements}
}

func (vm *VM) buildHash(startIndex, endIndex int) (object.Object, error) {
	hashedPairs := make(map[object.HashKey]object.HashPair)

	for i := startIndex; i < endIndex; i += 2 {
		key := vm.stack[i]
		value := vm.stack[i+1]

		hashKey, ok := key.(object.Hashable)
		if !ok {
			return nil, newRuntimeError(fmt.Sprintf("unusable as hash key: %s", key.Type()), vm.stackTrace())
		}

		hashedPairs[hashKey.HashKey()] = object.HashPair{Key: key, Value: value}
	}

	return &object.Hash{Pairs: hashedPairs}, nil
}

func (vm *VM) executeIndexExpression(left, index object.Object) error {
	switch {
	case left.Type() == object.ArrayObj && index.Type() == object.IntegerObj:
		return vm.executeArrayIndex(left, index)
	case left.Type() == object.HashObj:
		return vm.executeHashIndex(left, index)
	default:
		return newRuntimeError(fmt.Sprintf("index operator not supported: %s", left.Type()), vm.stackTrace())
	}
}

func (vm *VM) executeArrayIndex(array, index object.Object) error {
	arrayObject := array.(*object.Array)
	i := index.(*object.Integer).Value
	max := int64(len(arrayObject.Elements) - 1)

	if i < 0 || i > max {
		return vm.push(Null)
	}

	return vm.push(arrayObject.Elements[i])
}

func (vm *VM) executeHashIndex(hash, index object.Object) error {
	hashObject := hash.(*object.Hash)

	key, ok := index.(object.Hashable)
	if !ok {
		return newRuntimeError(fmt.Sprintf("unusable as hash key: %s", index.Type()), vm.stackTrace())
	}

	pair, ok := hashObject.Pairs[key.HashKey()]
	if !ok {
		return vm.push(Null)
	}

	return vm.push(pair.Value)
}

func (vm *VM) executeCall(numArgs int) error {
	callee := vm.stack[vm.sp-1-numArgs]

	switch callee := callee.(type) {
	case *object.Closure:
		return vm.callClosure(callee, numArgs)
	case *object.Builtin:
		return vm.callBuiltin(callee, numArgs)
	default:
		return newRuntimeError(fmt.Sprintf("calling non-function and non-built-in: %s", callee.Type()), vm.stackTrace())
	}
}

func (vm *VM) callClosure(cl *object.Closure, numArgs int) error {
	if numArgs != cl.Fn.NumParameters {
		return newRuntimeError(
			fmt.Sprintf("wrong number of arguments: want=%d, got=%d", cl.Fn.NumParameters, numArgs),
			vm.stackTrace())
	}

	if vm.framesIndex >= MaxFrames {
		return newRuntimeError("stack overflow", vm.stackTrace())
	}

	frame := NewFrame(cl, vm.sp-numArgs)
	vm.pushFrame(frame)
	vm.sp = frame.basePointer + cl.Fn.NumLocals

	return nil
}

func (vm *VM) callBuiltin(builtin *object.Builtin, numArgs int) error {
	args := vm.stack[vm.sp-numArgs : vm.sp]

	result := builtin.Fn(args...)
	vm.sp = vm.sp - numArgs - 1

	if result != nil {
		return vm.push(result)
	}
	return vm.push(Null)
}

func (vm *VM) pushClosure(constIndex, numFree int) error {
	constant := vm.constants[constIndex]
	function, ok := constant.(*object.CompiledFunction)
	if !ok {
		return newRuntimeError(fmt.Sprintf("not a function: %+v", constant), vm.stackTrace())
	}

	free := make([]object.Object, numFree)
	for i := 0; i < numFree; i++ {
		free[i] = vm.stack[vm.sp-numFree+i]
	}
	vm.sp = vm.sp - numFree

	closure := &object.Closure{Fn: function, Free: free}
	return vm.push(closure)
}

func nativeBoolToBooleanObject(input bool) *object.Boolean {
	if input {
		return True
	}
	return False
}

func isTruthy(obj object.Object) bool {
	switch obj := obj.(type) {
	case *object.Boolean:
		return obj.Value
	case *object.Null:
		return false
	default:
		return true
	}
}
