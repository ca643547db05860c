// Package vm - debugger support
package vm

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kristofer/monkey/pkg/bytecode"
)

// Debugger is an optional inspector over a VM: it holds breakpoints and a
// step mode that ShouldPause reports on, and prints the stack, the active
// frame's locals, and the globals array. VM.Run does not consult a
// Debugger, so breakpoints and step mode do not pause Run by themselves.
// Useful for tracking down a disagreement between this VM and
// pkg/evaluator on the same program.
type Debugger struct {
	vm          *VM
	breakpoints map[int]bool
	stepMode    bool
	enabled     bool
}

// NewDebugger creates a debugger attached to vm. It starts disabled.
func NewDebugger(vm *VM) *Debugger {
	return &Debugger{vm: vm, breakpoints: make(map[int]bool)}
}

// Enable activates the debugger.
func (d *Debugger) Enable() { d.enabled = true }

// Disable deactivates the debugger.
func (d *Debugger) Disable() { d.enabled = false }

// SetStepMode makes ShouldPause report true at every instruction (or not).
func (d *Debugger) SetStepMode(enabled bool) { d.stepMode = enabled }

// AddBreakpoint marks byte offset ip so ShouldPause reports true there.
func (d *Debugger) AddBreakpoint(ip int) { d.breakpoints[ip] = true }

// RemoveBreakpoint clears a previously set breakpoint.
func (d *Debugger) RemoveBreakpoint(ip int) { delete(d.breakpoints, ip) }

// ClearBreakpoints clears every breakpoint.
func (d *Debugger) ClearBreakpoints() { d.breakpoints = make(map[int]bool) }

// ShouldPause reports whether the VM should pause before the instruction at
// its current frame's ip.
func (d *Debugger) ShouldPause() bool {
	if !d.enabled {
		return false
	}
	if d.stepMode {
		return true
	}
	return d.breakpoints[d.vm.currentFrame().ip]
}

// ShowCurrentInstruction prints the instruction at the active frame's ip.
func (d *Debugger) ShowCurrentInstruction() {
	frame := d.vm.currentFrame()
	ins := frame.Instructions()
	if frame.ip < 0 || frame.ip >= len(ins) {
		fmt.Println("no current instruction")
		return
	}

	def, err := bytecode.Lookup(ins[frame.ip])
	if err != nil {
		fmt.Printf("  %4d: %s\n", frame.ip, err)
		return
	}

	operands, _ := bytecode.ReadOperands(def, ins[frame.ip+1:])
	fmt.Printf("  %4d: %s", frame.ip, def.Name)
	for _, o := range operands {
		fmt.Printf(" %d", o)
	}
	fmt.Println()
}

// ShowStack prints the VM's value stack, top first.
func (d *Debugger) ShowStack() {
	fmt.Println("Stack (top to bottom):")
	if d.vm.sp == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i := d.vm.sp - 1; i >= 0; i-- {
		fmt.Printf("  [%d] %s\n", i, d.vm.stack[i].Inspect())
	}
}

// ShowLocals prints the active frame's local variable slots.
func (d *Debugger) ShowLocals() {
	frame := d.vm.currentFrame()
	numLocals := frame.cl.Fn.NumLocals
	fmt.Println("Local variables:")
	if numLocals == 0 {
		fmt.Println("  (none)")
		return
	}
	for i := 0; i < numLocals; i++ {
		slot := d.vm.stack[frame.basePointer+i]
		if slot == nil {
			continue
		}
		fmt.Printf("  [%d] %s\n", i, slot.Inspect())
	}
}

// ShowGlobals prints every defined slot of the globals array.
func (d *Debugger) ShowGlobals() {
	fmt.Println("Global variables:")
	any := false
	for i, v := range d.vm.globals {
		if v == nil {
			continue
		}
		any = true
		fmt.Printf("  [%d] %s\n", i, v.Inspect())
	}
	if !any {
		fmt.Println("  (none)")
	}
}

// ShowCallStack prints the active call frames, innermost first.
func (d *Debugger) ShowCallStack() {
	fmt.Println("Call stack (innermost first):")
	for _, frame := range d.vm.stackTrace() {
		fmt.Printf("  %s [IP: %d]\n", frame.Name, frame.IP)
	}
}

// InteractivePrompt reads debugger commands from stdin until the user
// resumes execution (continue/step/next) or quits.
func (d *Debugger) InteractivePrompt() (continueExecution bool) {
	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("\n=== Debugger Paused ===")
	d.ShowCurrentInstruction()

	for {
		fmt.Print("debug> ")
		if !scanner.Scan() {
			return false
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		switch parts[0] {
		case "help", "h", "?":
			d.printHelp()
		case "continue", "c":
			d.SetStepMode(false)
			return true
		case "step", "s", "next", "n":
			d.SetStepMode(true)
			return true
		case "stack", "st":
			d.ShowStack()
		case "locals", "l":
			d.ShowLocals()
		case "globals", "g":
			d.ShowGlobals()
		case "callstack", "cs":
			d.ShowCallStack()
		case "instruction", "i":
			d.ShowCurrentInstruction()
		case "breakpoint", "b":
			if len(parts) < 2 {
				fmt.Println("usage: breakpoint <byte offset>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid byte offset")
				continue
			}
			d.AddBreakpoint(ip)
			fmt.Printf("breakpoint added at %d\n", ip)
		case "delete", "d":
			if len(parts) < 2 {
				fmt.Println("usage: delete <byte offset>")
				continue
			}
			ip, err := strconv.Atoi(parts[1])
			if err != nil {
				fmt.Println("invalid byte offset")
				continue
			}
			d.RemoveBreakpoint(ip)
			fmt.Printf("breakpoint removed at %d\n", ip)
		case "quit", "q":
			return false
		default:
			fmt.Printf("unknown command: %s (type 'help' for commands)\n", parts[0])
		}
	}
}

func (d *Debugger) printHelp() {
	fmt.Println("Debugger commands:")
	fmt.Println("  help, h, ?           show this help")
	fmt.Println("  continue, c          resume to completion or next breakpoint")
	fmt.Println("  step, s, next, n     execute one instruction")
	fmt.Println("  stack, st            show the value stack")
	fmt.Println("  locals, l            show the active frame's locals")
	fmt.Println("  globals, g           show the globals array")
	fmt.Println("  callstack, cs        show the call frame stack")
	fmt.Println("  instruction, i       show the current instruction")
	fmt.Println("  breakpoint <n>, b    pause before byte offset n")
	fmt.Println("  delete <n>, d        remove a breakpoint")
	fmt.Println("  quit, q              abort execution")
}
