// Package compiler lowers a parsed Monkey ast.Program into bytecode.Instructions
// plus a constant pool, ready for pkg/vm to execute.
//
// The compiler never folds constants or eliminates dead code: every
// observable behavior must come from the same source-level rules the
// tree-walking evaluator (pkg/evaluator) applies, so the two backends agree
// on every well-formed program.
//
// Compiling a function literal opens a new CompilationScope with its own
// instruction buffer and a SymbolTable enclosed by the outer scope's, the
// same nesting shape pkg/object.Environment uses for the tree-walking path.
// Closing the scope yields the accumulated instructions as a
// CompiledFunction constant; any names that scope resolved from an
// enclosing function's locals are recorded as free variables and threaded
// through OpGetFree/OpClosure.
package compiler

import (
	"fmt"

	"github.com/kristofer/monkey/pkg/ast"
	"github.com/kristofer/monkey/pkg/bytecode"
	"github.com/kristofer/monkey/pkg/object"
)

// Bytecode is a compiled program's two-part output: the lowered
// instruction stream and the constant pool it indexes into. It is defined
// here, not in pkg/bytecode, so that Constants can hold object.Object
// values without pkg/bytecode importing pkg/object (which itself imports
// pkg/bytecode for CompiledFunction.Instructions) — pkg/bytecode stays a
// leaf package with no knowledge of the value model.
type Bytecode struct {
	Instructions bytecode.Instructions
	Constants    []object.Object
}

// EmittedInstruction records one instruction's opcode and the byte offset
// it was emitted at, so the compiler can later inspect or overwrite it
// (eliding a trailing Pop, backpatching a jump target).
type EmittedInstruction struct {
	Opcode   bytecode.Opcode
	Position int
}

// CompilationScope holds the instruction buffer and last-two-emitted
// bookkeeping for one function body (or the top-level program, which is
// scope zero). Entering a function literal pushes a new scope; leaving it
// pops back to the enclosing one.
type CompilationScope struct {
	instructions        bytecode.Instructions
	lastInstruction     EmittedInstruction
	previousInstruction EmittedInstruction
}

// Compiler walks an AST and accumulates bytecode across possibly-nested
// CompilationScopes, sharing one constant pool and one symbol-table chain
// across the whole program.
type Compiler struct {
	constants []object.Object

	symbolTable *SymbolTable

	scopes     []CompilationScope
	scopeIndex int
}

// New returns a Compiler with an empty constant pool, a fresh global
// symbol table pre-populated with the builtin functions at their fixed
// indices, and a single top-level scope.
func New() *Compiler {
	mainScope := CompilationScope{
		instructions:        bytecode.Instructions{},
		lastInstruction:     EmittedInstruction{},
		previousInstruction: EmittedInstruction{},
	}

	symbolTable := NewSymbolTable()
	for i, b := range object.Builtins {
		symbolTable.DefineBuiltin(i, b.Name)
	}

	return &Compiler{
		constants:   []object.Object{},
		symbolTable: symbolTable,
		scopes:      []CompilationScope{mainScope},
		scopeIndex:  0,
	}
}

// NewWithState returns a Compiler sharing an existing symbol table and
// constant pool — used by the REPL so each line's let-bindings and
// constants accumulate across compilations instead of resetting.
func NewWithState(s *SymbolTable, constants []object.Object) *Compiler {
	compiler := New()
	compiler.symbolTable = s
	compiler.constants = constants
	return compiler
}

// Compile lowers node, appending to the current scope's instructions and
// the shared constant pool. It returns the first compile-time error
// encountered (an unresolved identifier is the only one currently
// possible); the compiler does not attempt to recover and continue the
// way the parser does.
func (c *Compiler) Compile(node ast.Node) error {
	switch node := node.(type) {
	case *ast.Program:
		for _, s := range node.Statements {
			if err := c.Compile(s); err != nil {
				return err
			}
		}

	case *ast.ExpressionStatement:
		if err := c.Compile(node.Expression); err != nil {
			return err
		}
		c.emit(bytecode.OpPop)

	case *ast.BlockStatement:
		for _, s := range node.Statements {
			if err := c.Compile(s); err != nil {
				return err
			}
		}

	case *ast.LetStatement:
		// Define before compiling the value so a recursive `let f = fn() {
		// ... f() ... }` can resolve its own name inside the body.
		symbol := c.symbolTable.Define(node.Name.Value)
		if err := c.Compile(node.Value); err != nil {
			return err
		}
		if symbol.Scope == GlobalScope {
			c.emit(bytecode.OpSetGlobal, symbol.Index)
		} else {
			c.emit(bytecode.OpSetLocal, symbol.Index)
		}

	case *ast.ReturnStatement:
		if node.ReturnValue != nil {
			if err := c.Compile(node.ReturnValue); err != nil {
				return err
			}
			c.emit(bytecode.OpReturnValue)
		} else {
			c.emit(bytecode.OpReturnNull)
		}

	case *ast.Identifier:
		symbol, ok := c.symbolTable.Resolve(node.Value)
		if !ok {
			return fmt.Errorf("undefined variable %s", node.Value)
		}
		c.loadSymbol(symbol)

	case *ast.IntegerLiteral:
		integer := &object.Integer{Value: node.Value}
		c.emit(bytecode.OpConstant, c.addConstant(integer))

	case *ast.StringLiteral:
		str := &object.String{Value: node.Value}
		c.emit(bytecode.OpConstant, c.addConstant(str))

	case *ast.Boolean:
		if node.Value {
			c.emit(bytecode.OpTrue)
		} else {
			c.emit(bytecode.OpFalse)
		}

	case *ast.PrefixExpression:
		if err := c.Compile(node.Right); err != nil {
			return err
		}
		switch node.Operator {
		case "!":
			c.emit(bytecode.OpBang)
		case "-":
			c.emit(bytecode.OpMinus)
		default:
			return fmt.Errorf("unknown operator %s", node.Operator)
		}

	case *ast.InfixExpression:
		// `<` has no dedicated opcode: swap compile order and emit
		// OpGreaterThan instead. Every other operator compiles
		// left-then-right as written.
		if node.Operator == "<" {
			if err := c.Compile(node.Right); err != nil {
				return err
			}
			if err := c.Compile(node.Left); err != nil {
				return err
			}
			c.emit(bytecode.OpGreaterThan)
			return nil
		}

		if err := c.Compile(node.Left); err != nil {
			return err
		}
		if err := c.Compile(node.Right); err != nil {
			return err
		}

		switch node.Operator {
		case "+":
			c.emit(bytecode.OpAdd)
		case "-":
			c.emit(bytecode.OpSub)
		case "*":
			c.emit(bytecode.OpMul)
		case "/":
			c.emit(bytecode.OpDiv)
		case ">":
			c.emit(bytecode.OpGreaterThan)
		case "==":
			c.emit(bytecode.OpEqual)
		case "!=":
			c.emit(bytecode.OpNotEqual)
		default:
			return fmt.Errorf("unknown operator %s", node.Operator)
		}

	case *ast.IfExpression:
		if err := c.Compile(node.Condition); err != nil {
			return err
		}

		// Bogus operand, backpatched once the consequence's end is known.
		jumpNotTruthyPos := c.emit(bytecode.OpJumpNotTruthy, 9999)

		if err := c.Compile(node.Consequence); err != nil {
			return err
		}
		if c.lastInstructionIs(bytecode.OpPop) {
			c.removeLastPop()
		}

		// Bogus operand, backpatched once the whole if-expression's end is
		// known.
		jumpPos := c.emit(bytecode.OpJump, 9999)

		afterConsequencePos := len(c.currentInstructions())
		c.changeOperand(jumpNotTruthyPos, afterConsequencePos)

		if node.Alternative == nil {
			c.emit(bytecode.OpNull)
		} else {
			if err := c.Compile(node.Alternative); err != nil {
				return err
			}
			if c.lastInstructionIs(bytecode.OpPop) {
				c.removeLastPop()
			}
		}

		afterAlternativePos := len(c.currentInstructions())
		c.changeOperand(jumpPos, afterAlternativePos)

	case *ast.FunctionLiteral:
		c.enterScope()

		if node.Name != "" {
			// Define the function's own name inside its own scope before
			// compiling the body, so a `let`-bound recursive call resolves
			// without depending on the enclosing let having finished yet
			// (see OpCurrentClosure).
			c.symbolTable.DefineFunctionName(node.Name)
		}

		for _, p := range node.Parameters {
			c.symbolTable.Define(p.Value)
		}

		if err := c.Compile(node.Body); err != nil {
			return err
		}

		if c.lastInstructionIs(bytecode.OpPop) {
			c.replaceLastPopWithReturn()
		}
		if !c.lastInstructionIs(bytecode.OpReturnValue) {
			c.emit(bytecode.OpReturnNull)
		}

		freeSymbols := c.symbolTable.FreeSymbols
		numLocals := c.symbolTable.numDefinitions
		instructions := c.leaveScope()

		for _, s := range freeSymbols {
			c.loadSymbol(s)
		}

		compiledFn := &object.CompiledFunction{
			Instructions:  instructions,
			NumLocals:     numLocals,
			NumParameters: len(node.Parameters),
		}
		fnIndex := c.addConstant(compiledFn)
		c.emit(bytecode.OpClosure, fnIndex, len(freeSymbols))

	case *ast.CallExpression:
		if err := c.Compile(node.Function); err != nil {
			return err
		}
		for _, a := range node.Arguments {
			if err := c.Compile(a); err != nil {
				return err
			}
		}
		c.emit(bytecode.OpCall, len(node.Arguments))

	case *ast.ArrayLiteral:
		for _, el := range node.Elements {
			if err := c.Compile(el); err != nil {
				return err
			}
		}
		c.emit(bytecode.OpArray, len(node.Elements))

	case *ast.HashLiteral:
		for _, k := range node.Order {
			if err := c.Compile(k); err != nil {
				return err
			}
			if err := c.Compile(node.Pairs[k]); err != nil {
				return err
			}
		}
		c.emit(bytecode.OpHash, len(node.Order)*2)

	case *ast.IndexExpression:
		if err := c.Compile(node.Left); err != nil {
			return err
		}
		if err := c.Compile(node.Index); err != nil {
			return err
		}
		c.emit(bytecode.OpIndex)
	}

	return nil
}

// Bytecode returns the top-level scope's accumulated instructions paired
// with the constant pool. Only meaningful once the whole program has been
// compiled (scopeIndex back to 0).
func (c *Compiler) Bytecode() *Bytecode {
	return &Bytecode{
		Instructions: c.currentInstructions(),
		Constants:    c.constants,
	}
}

func (c *Compiler) addConstant(obj object.Object) int {
	c.constants = append(c.constants, obj)
	return len(c.constants) - 1
}

func (c *Compiler) emit(op bytecode.Opcode, operands ...int) int {
	ins := bytecode.Make(op, operands...)
	pos := c.addInstruction(ins)
	c.setLastInstruction(op, pos)
	return pos
}

func (c *Compiler) addInstruction(ins []byte) int {
	posNewInstruction := len(c.currentInstructions())
	updated := append(c.currentInstructions(), ins...)
	c.scopes[c.scopeIndex].instructions = updated
	return posNewInstruction
}

func (c *Compiler) setLastInstruction(op bytecode.Opcode, pos int) {
	previous := c.scopes[c.scopeIndex].lastInstruction
	last := EmittedInstruction{Opcode: op, Position: pos}

	c.scopes[c.scopeIndex].previousInstruction = previous
	c.scopes[c.scopeIndex].lastInstruction = last
}

func (c *Compiler) lastInstructionIs(op bytecode.Opcode) bool {
	if len(c.currentInstructions()) == 0 {
		return false
	}
	return c.scopes[c.scopeIndex].lastInstruction.Opcode == op
}

func (c *Compiler) removeLastPop() {
	last := c.scopes[c.scopeIndex].lastInstruction
	previous := c.scopes[c.scopeIndex].previousInstruction

	old := c.currentInstructions()
	newIns := old[:last.Position]

	c.scopes[c.scopeIndex].instructions = newIns
	c.scopes[c.scopeIndex].lastInstruction = previous
}

// replaceInstruction overwrites the instruction at pos in place. newInstruction
// must be exactly as long as the one it replaces (used for backpatching a
// jump target and for swapping a one-byte OpPop for OpReturnValue, neither
// of which changes an instruction's width).
func (c *Compiler) replaceInstruction(pos int, newInstruction []byte) {
	ins := c.currentInstructions()
	for i := 0; i < len(newInstruction); i++ {
		ins[pos+i] = newInstruction[i]
	}
}

// replaceLastPopWithReturn turns a function body's final `expr;` (compiled
// as an OpPop-discarded ExpressionStatement) into an implicit return of
// that expression's value.
func (c *Compiler) replaceLastPopWithReturn() {
	lastPos := c.scopes[c.scopeIndex].lastInstruction.Position
	newInstruction := bytecode.Make(bytecode.OpReturnValue)

	c.replaceInstruction(lastPos, newInstruction)
	c.scopes[c.scopeIndex].lastInstruction.Opcode = bytecode.OpReturnValue
}

func (c *Compiler) changeOperand(opPos int, operand int) {
	op := bytecode.Opcode(c.currentInstructions()[opPos])
	newInstruction := bytecode.Make(op, operand)
	c.replaceInstruction(opPos, newInstruction)
}

func (c *Compiler) currentInstructions() bytecode.Instructions {
	return c.scopes[c.scopeIndex].instructions
}

// enterScope pushes a new CompilationScope for a function literal's body
// and encloses the symbol table in a fresh local scope.
func (c *Compiler) enterScope() {
	scope := CompilationScope{
		instructions:        bytecode.Instructions{},
		lastInstruction:     EmittedInstruction{},
		previousInstruction: EmittedInstruction{},
	}
	c.scopes = append(c.scopes, scope)
	c.scopeIndex++

	c.symbolTable = NewEnclosedSymbolTable(c.symbolTable)
}

// leaveScope pops the current CompilationScope, returning its accumulated
// instructions, and restores the enclosing symbol table.
func (c *Compiler) leaveScope() bytecode.Instructions {
	instructions := c.currentInstructions()

	c.scopes = c.scopes[:len(c.scopes)-1]
	c.scopeIndex--

	c.symbolTable = c.symbolTable.Outer

	return instructions
}

// loadSymbol emits the opcode matching symbol's scope.
func (c *Compiler) loadSymbol(s Symbol) {
	switch s.Scope {
	case GlobalScope:
		c.emit(bytecode.OpGetGlobal, s.Index)
	case LocalScope:
		c.emit(bytecode.OpGetLocal, s.Index)
	case BuiltinScope:
		c.emit(bytecode.OpGetBuiltin, s.Index)
	case FreeScope:
		c.emit(bytecode.OpGetFree, s.Index)
	case FunctionScope:
		c.emit(bytecode.OpCurrentClosure)
	}
}
