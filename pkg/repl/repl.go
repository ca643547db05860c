// Package repl implements the interactive prompt: read one line, run it
// through the pipeline, print either the parser's errors, a compile/runtime
// error, or the resulting value's Inspect(). It is a thin collaborator over
// the core front end and both back ends, not part of the core itself.
package repl

import (
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/kristofer/monkey/pkg/compiler"
	"github.com/kristofer/monkey/pkg/evaluator"
	"github.com/kristofer/monkey/pkg/object"
	"github.com/kristofer/monkey/pkg/parser"
	"github.com/kristofer/monkey/pkg/vm"
)

const Prompt = ">> "

var (
	promptColor = color.New(color.FgCyan)
	errorColor  = color.New(color.FgRed)
	resultColor = color.New(color.FgGreen)
)

// Backend selects which of the two execution strategies a Repl drives.
// Both must agree on every program; the REPL only ever runs one of them
// per session so a user can compare the two by starting the REPL twice.
type Backend int

const (
	// BackendEvaluator walks the AST directly (pkg/evaluator).
	BackendEvaluator Backend = iota
	// BackendVM compiles to bytecode and runs it on the stack VM.
	BackendVM
)

// Repl is a single interactive session. Banner/Version are printed once
// at startup; Backend picks the execution strategy; state persists across
// lines for the lifetime of the Repl (the evaluator's Environment, or the
// compiler's symbol table/constants plus the VM's globals store).
type Repl struct {
	Banner  string
	Version string
	Prompt  string
	Backend Backend

	env *object.Environment

	symbolTable *compiler.SymbolTable
	constants   []object.Object
	globals     []object.Object
}

// New creates a Repl ready to Start. Banner and version are cosmetic;
// backend picks the execution strategy for the whole session.
func New(banner, version string, backend Backend) *Repl {
	r := &Repl{
		Banner:  banner,
		Version: version,
		Prompt:  Prompt,
		Backend: backend,
	}

	switch backend {
	case BackendEvaluator:
		r.env = object.NewEnvironment()
	case BackendVM:
		symbolTable := compiler.NewSymbolTable()
		for i, b := range object.Builtins {
			symbolTable.DefineBuiltin(i, b.Name)
		}
		r.symbolTable = symbolTable
		r.constants = []object.Object{}
		r.globals = make([]object.Object, vm.GlobalsSize)
	}

	return r
}

// PrintBanner writes the startup banner and version line.
func (r *Repl) PrintBanner(writer io.Writer) {
	if r.Banner != "" {
		resultColor.Fprintf(writer, "%s\n", r.Banner)
	}
	if r.Version != "" {
		promptColor.Fprintf(writer, "Monkey %s\n", r.Version)
	}
}

// Start runs the read-eval-print loop against reader/writer until EOF.
// reader is accepted for interface symmetry with other collaborators in
// this module's corpus; input is actually read through readline so it has
// history and line editing.
func (r *Repl) Start(reader io.Reader, writer io.Writer) {
	r.PrintBanner(writer)

	rl, err := readline.New(promptColor.Sprint(r.Prompt))
	if err != nil {
		errorColor.Fprintf(writer, "could not start readline: %s\n", err)
		return
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF (Ctrl-D) or readline.ErrInterrupt
			writer.Write([]byte("\n"))
			return
		}

		line = strings.TrimRight(line, " \t\r\n")
		if line == "" {
			continue
		}
		rl.SaveHistory(line)

		r.executeLine(writer, line)
	}
}

func (r *Repl) executeLine(writer io.Writer, line string) {
	p := parser.New(line)
	program := p.ParseProgram()

	if errs := p.Errors(); len(errs) != 0 {
		for _, e := range errs {
			errorColor.Fprintf(writer, "parser error: %s\n", e)
		}
		return
	}

	switch r.Backend {
	case BackendEvaluator:
		result := evaluator.Eval(program, r.env)
		if result == nil {
			return
		}
		resultColor.Fprintf(writer, "%s\n", result.Inspect())

	case BackendVM:
		comp := compiler.NewWithState(r.symbolTable, r.constants)
		if err := comp.Compile(program); err != nil {
			errorColor.Fprintf(writer, "compilation failed: %s\n", err)
			return
		}

		code := comp.Bytecode()
		r.constants = code.Constants

		machine := vm.NewWithGlobalsStore(code, r.globals)
		if err := machine.Run(); err != nil {
			errorColor.Fprintf(writer, "executing bytecode failed: %s\n", err)
			return
		}

		result := machine.LastPoppedStackElem()
		if result == nil {
			return
		}
		resultColor.Fprintf(writer, "%s\n", result.Inspect())
	}
}
