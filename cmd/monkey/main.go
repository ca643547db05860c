// Command monkey is the CLI surface for the runtime: an interactive REPL,
// running source or compiled bytecode files, compiling source to the .mb
// format, and disassembling .mb files back to readable opcodes.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/kristofer/monkey/pkg/compiler"
	"github.com/kristofer/monkey/pkg/object"
	"github.com/kristofer/monkey/pkg/parser"
	"github.com/kristofer/monkey/pkg/repl"
	"github.com/kristofer/monkey/pkg/vm"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		runREPL(nil)
		return
	}

	switch os.Args[1] {
	case "version", "-v", "--version":
		fmt.Printf("monkey version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	case "repl":
		runREPL(os.Args[2:])
	case "run":
		if len(os.Args) < 3 {
			fmt.Println("Error: no file specified")
			printUsage()
			os.Exit(1)
		}
		runFile(os.Args[2])
	case "compile":
		if len(os.Args) < 3 {
			fmt.Println("Error: no file specified")
			fmt.Println("\nUsage: monkey compile <input.monkey> [output.mb]")
			os.Exit(1)
		}
		inputFile := os.Args[2]
		outputFile := ""
		if len(os.Args) >= 4 {
			outputFile = os.Args[3]
		}
		compileFile(inputFile, outputFile)
	case "disassemble", "disasm":
		if len(os.Args) < 3 {
			fmt.Println("Error: no file specified")
			fmt.Println("\nUsage: monkey disassemble <file.mb>")
			os.Exit(1)
		}
		disassembleFile(os.Args[2])
	default:
		runFile(os.Args[1])
	}
}

func printUsage() {
	fmt.Println("monkey - a small expression-oriented language runtime")
	fmt.Println("\nUsage:")
	fmt.Println("  monkey                       Start interactive REPL (bytecode VM backend)")
	fmt.Println("  monkey [file]                Run a .monkey or .mb file")
	fmt.Println("  monkey run [file]            Run a .monkey or .mb file")
	fmt.Println("  monkey compile <in> [out]    Compile .monkey to .mb bytecode")
	fmt.Println("  monkey disassemble <file>    Disassemble .mb bytecode file")
	fmt.Println("  monkey repl                  Start interactive REPL (bytecode VM backend)")
	fmt.Println("  monkey repl --eval           Start interactive REPL (tree-walking backend)")
	fmt.Println("  monkey version               Show version")
	fmt.Println("  monkey help                  Show this help")
	fmt.Println("\nFile Extensions:")
	fmt.Println("  .monkey   Source code files (text)")
	fmt.Println("  .mb       Compiled bytecode files (binary)")
}

// runFile runs a .monkey source file or a .mb compiled bytecode file,
// dispatching on the file extension.
func runFile(filename string) {
	if filepath.Ext(filename) == ".mb" {
		runBytecodeFile(filename)
		return
	}
	runSourceFile(filename)
}

func runSourceFile(filename string) {
	data, err := os.ReadFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	p := parser.New(string(data))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) != 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "parser error: %s\n", e)
		}
		os.Exit(1)
	}

	comp := compiler.New()
	if err := comp.Compile(program); err != nil {
		fmt.Fprintf(os.Stderr, "compilation failed: %s\n", err)
		os.Exit(1)
	}

	machine := vm.New(comp.Bytecode())
	if err := machine.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "executing bytecode failed: %s\n", err)
		os.Exit(1)
	}

	result := machine.LastPoppedStackElem()
	if result != nil && result != vm.Null {
		fmt.Println(result.Inspect())
	}
}

func runBytecodeFile(filename string) {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	bc, err := compiler.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding bytecode: %v\n", err)
		os.Exit(1)
	}

	machine := vm.New(bc)
	if err := machine.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "executing bytecode failed: %s\n", err)
		os.Exit(1)
	}

	result := machine.LastPoppedStackElem()
	if result != nil && result != vm.Null {
		fmt.Println(result.Inspect())
	}
}

func compileFile(inputFile, outputFile string) {
	data, err := os.ReadFile(inputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	p := parser.New(string(data))
	program := p.ParseProgram()
	if errs := p.Errors(); len(errs) != 0 {
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "parser error: %s\n", e)
		}
		os.Exit(1)
	}

	comp := compiler.New()
	if err := comp.Compile(program); err != nil {
		fmt.Fprintf(os.Stderr, "compilation failed: %s\n", err)
		os.Exit(1)
	}

	if outputFile == "" {
		outputFile = inputFile[:len(inputFile)-len(filepath.Ext(inputFile))] + ".mb"
	}

	out, err := os.Create(outputFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output file: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()

	if err := compiler.Encode(comp.Bytecode(), out); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding bytecode: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Compiled %s -> %s\n", inputFile, outputFile)
}

func disassembleFile(filename string) {
	f, err := os.Open(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening file: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	bc, err := compiler.Decode(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding bytecode: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(bc.Instructions.String())
	for i, c := range bc.Constants {
		fmt.Printf("CONSTANT %d: %s\n", i, formatConstant(c))
	}
}

func formatConstant(c object.Object) string {
	if cf, ok := c.(*object.CompiledFunction); ok {
		return fmt.Sprintf("CompiledFunction[%s]", cf.Instructions.String())
	}
	return c.Inspect()
}

func runREPL(args []string) {
	banner := `
  __  __             _
 |  \/  | ___  _ __ | | _____ _   _
 | |\/| |/ _ \| '_ \| |/ / _ \ | | |
 | |  | | (_) | | | |   <  __/ |_| |
 |_|  |_|\___/|_| |_|_|\_\___|\__, |
                              |___/
`
	backend := repl.BackendVM
	for _, a := range args {
		if a == "--eval" || a == "-eval" {
			backend = repl.BackendEvaluator
		}
	}

	r := repl.New(banner, version, backend)
	r.Start(os.Stdin, os.Stdout)
}
