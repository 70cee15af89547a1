// Command limvm is the thin driver binary that exercises the
// VirtualMachine end to end: it assembles a small hand-built bytecode
// program (this repo carries no front-end compiler) and runs it to
// completion, printing the result.
package main

import (
	"fmt"
	"os"

	"github.com/limitly-lang/limvm/internal/cli"
	"github.com/limitly-lang/limvm/internal/opcode"
	"github.com/limitly-lang/limvm/internal/types"
	"github.com/limitly-lang/limvm/internal/value"
	"github.com/limitly-lang/limvm/internal/vm"
)

func main() {
	var (
		showVersion bool
		jsonOutput  bool
		debug       bool
		program     = "arithmetic"
	)

	for _, a := range os.Args[1:] {
		switch a {
		case "--version", "-v":
			showVersion = true
		case "--json":
			jsonOutput = true
		case "--debug":
			debug = true
		case "--help", "-h":
			printUsage()
			return
		default:
			program = a
		}
	}

	if showVersion {
		cli.PrintVersion("limvm", jsonOutput)
		return
	}

	machine, err := build(program)
	if err != nil {
		cli.ExitWithError("%v", err)
	}

	if debug {
		machine.SetDebugOutput(os.Stderr)
	}

	result, err := machine.Run(machine.NewContext(0))
	if err != nil {
		cli.ExitWithError("%v", err)
	}

	fmt.Println(result.String())
}

func printUsage() {
	cli.PrintUsage("limvm", []cli.CommandInfo{
		{Name: "arithmetic", Description: "numeric widening on Add (3 + 2.5)"},
		{Name: "division-by-zero", Description: "PushInt 10; PushInt 0; Div raises a runtime error"},
		{Name: "try-catch", Description: "Throw unwinds to a handler"},
	})
}

// build assembles one of a handful of named hand-built demo programs and
// returns a fresh VirtualMachine ready to run from instruction 0.
func build(name string) (*vm.VirtualMachine, error) {
	switch name {
	case "arithmetic":
		machine := vm.New([]opcode.Instruction{
			{Op: opcode.PushInt, IntOp: 3},
			{Op: opcode.LoadConst, IntOp: 0},
			{Op: opcode.Add},
			{Op: opcode.Return},
		})
		machine.Constants = []value.Value{value.Float(types.TagFloat64, 2.5)}

		return machine, nil

	case "division-by-zero":
		return vm.New([]opcode.Instruction{
			{Op: opcode.PushInt, IntOp: 10, Line: 1},
			{Op: opcode.PushInt, IntOp: 0, Line: 1},
			{Op: opcode.Div, Line: 1},
			{Op: opcode.Return},
		}), nil

	case "try-catch":
		return vm.New([]opcode.Instruction{
			{Op: opcode.BeginTry, IntOp: 5},
			{Op: opcode.PushInt, IntOp: 1},
			{Op: opcode.PushInt, IntOp: 2},
			{Op: opcode.Throw, StrOp: "Boom"},
			{Op: opcode.Jump},
			{Op: opcode.Pop},
			{Op: opcode.StoreException, StrOp: "e"},
			{Op: opcode.LoadVar, StrOp: "e"},
			{Op: opcode.Return},
		}), nil

	default:
		return nil, fmt.Errorf("limvm: unknown program %q", name)
	}
}
