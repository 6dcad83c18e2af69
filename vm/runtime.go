// Copyright 2024 The ProbeChain Authors
// This file is part of the ProbeChain.
//
// The ProbeChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The ProbeChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the ProbeChain. If not, see <http://www.gnu.org/licenses/>.

package vm

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// DefaultMaxInstructions bounds a single Run call, guarding against
// accidental infinite loops in a loaded program.
const DefaultMaxInstructions uint64 = 1_000_000

// VM is the fetch-execute runtime: an operand stack, a call stack, a
// dispatcher, a loaded Program, a heap, and an optional Profiler observer.
// A VM that returns an error from Run or Step is faulted — callers may
// inspect its state, then must call Reset before running again.
type VM struct {
	id           uuid.UUID
	operandStack *OperandStack
	callStack    *CallStack
	dispatcher   *InstructionDispatcher
	program      *Program
	heap         *Heap
	profiler     Profiler
	halted       bool
	faulted      bool
	maxInstr     uint64
}

// New returns a VM with default stack/call-depth/instruction ceilings and
// an unbounded heap.
func New() *VM {
	return NewWithMaxInstructions(DefaultMaxInstructions)
}

// NewWithMaxInstructions returns a VM whose Run loop aborts once
// maxInstructions have executed without halting.
func NewWithMaxInstructions(maxInstructions uint64) *VM {
	return &VM{
		id:           uuid.New(),
		operandStack: NewOperandStack(),
		callStack:    NewCallStack(),
		dispatcher:   NewInstructionDispatcher(),
		heap:         NewHeap(),
		maxInstr:     maxInstructions,
	}
}

// ID returns the VM instance's identity, stable for its lifetime.
func (v *VM) ID() uuid.UUID { return v.id }

// WithProfiler attaches a Profiler observer, replacing any previous one.
func (v *VM) WithProfiler(p Profiler) *VM {
	v.profiler = p
	return v
}

// DisableProfiler detaches the current Profiler observer, if any.
func (v *VM) DisableProfiler() { v.profiler = nil }

// IsProfilingEnabled reports whether a Profiler observer is attached.
func (v *VM) IsProfilingEnabled() bool { return v.profiler != nil }

// LoadProgram installs program and resets all execution state.
func (v *VM) LoadProgram(program *Program) {
	v.program = program
	v.Reset()
}

// LoadBytecodeModule validates and installs instructions/constants in one
// step, rejecting an empty instruction list.
func (v *VM) LoadBytecodeModule(instructions []Instruction, constants []Value) error {
	program, err := NewProgram(instructions, constants)
	if err != nil {
		return err
	}
	v.LoadProgram(program)
	return nil
}

// Reset clears the operand stack, call stack, and dispatcher, and un-faults
// the VM. The loaded program and heap are left intact.
func (v *VM) Reset() {
	v.operandStack.Clear()
	v.callStack.Clear()
	v.dispatcher = NewInstructionDispatcher()
	v.halted = false
	v.faulted = false
}

// Run executes instructions until the program halts, faults, or the
// instruction quota is exhausted. The quota case returns
// ErrInvalidProgramState wrapped with a capture-time stack trace.
func (v *VM) Run() error {
	if v.program == nil {
		return errors.WithStack(ErrNoProgram)
	}

	for !v.halted && v.dispatcher.InstructionCount() < v.maxInstr {
		if err := v.Step(); err != nil {
			v.faulted = true
			return err
		}
	}

	if !v.halted && v.dispatcher.InstructionCount() >= v.maxInstr {
		v.faulted = true
		return errors.WithStack(fmt.Errorf("%w: maximum instruction count exceeded", ErrInvalidProgramState))
	}

	return nil
}

// Step executes a single instruction. It is a no-op returning nil once the
// VM has halted. Every step implements the documented fetch-execute
// algorithm: fetch at PC, special-case Halt, profile, dispatch, then advance
// PC unless the opcode manages its own PC (Jump family, Call, Return).
func (v *VM) Step() error {
	if v.halted {
		return nil
	}
	if v.program == nil {
		return errors.WithStack(ErrNoProgram)
	}

	pc := v.dispatcher.CurrentPC()
	if pc >= v.program.Len() {
		v.faulted = true
		return errors.WithStack(fmt.Errorf("%w: pc %d, program length %d", ErrProgramCounterOutOfBounds, pc, v.program.Len()))
	}

	instr := v.program.Instructions[pc]
	v.dispatcher.Tick()

	if instr.Opcode() == OpHalt {
		v.halted = true
		return nil
	}

	if v.profiler != nil {
		v.profiler.RecordInstructionExecution(pc, instr.Opcode())
	}

	if err := v.dispatcher.ExecuteWithConstants(instr, v.operandStack, v.callStack, v.program.Constants, v.heap); err != nil {
		v.faulted = true
		return errors.WithStack(err)
	}

	switch instr.Opcode() {
	case OpJump, OpJumpIfTrue, OpJumpIfFalse, OpCall, OpReturn:
		// Control flow instructions manage their own PC.
	default:
		v.dispatcher.SetPC(pc + 1)
	}

	return nil
}

// StackSize reports the operand stack's current height.
func (v *VM) StackSize() int { return v.operandStack.Size() }

// CallDepth reports the call stack's current depth.
func (v *VM) CallDepth() int { return v.callStack.Depth() }

// ProgramCounter reports the next instruction address to be fetched.
func (v *VM) ProgramCounter() int { return v.dispatcher.CurrentPC() }

// IsHalted reports whether the VM has executed a Halt instruction.
func (v *VM) IsHalted() bool { return v.halted }

// IsFaulted reports whether the VM's last Run/Step returned an error.
func (v *VM) IsFaulted() bool { return v.faulted }

// StackTop returns the value on top of the operand stack without removing
// it, or ErrStackUnderflow if empty.
func (v *VM) StackTop() (Value, error) { return v.operandStack.Peek() }

// InstructionCount reports how many instructions have executed so far.
func (v *VM) InstructionCount() uint64 { return v.dispatcher.InstructionCount() }

// ProgramLength reports the loaded program's instruction count, or 0 if
// none is loaded.
func (v *VM) ProgramLength() int {
	if v.program == nil {
		return 0
	}
	return v.program.Len()
}

// ConstantsPoolSize reports the loaded program's constants pool size, or 0
// if none is loaded.
func (v *VM) ConstantsPoolSize() int {
	if v.program == nil {
		return 0
	}
	return len(v.program.Constants)
}

// GetConstant returns the constant at index, or ErrInvalidProgramState if
// out of range.
func (v *VM) GetConstant(index int) (Value, error) {
	if v.program == nil || index < 0 || index >= len(v.program.Constants) {
		return Value{}, fmt.Errorf("%w: constant index %d out of bounds", ErrInvalidProgramState, index)
	}
	return v.program.Constants[index], nil
}

// CurrentInstruction returns the instruction at the current PC, if any.
func (v *VM) CurrentInstruction() (Instruction, bool) {
	if v.program == nil {
		return Instruction{}, false
	}
	pc := v.dispatcher.CurrentPC()
	if pc < 0 || pc >= v.program.Len() {
		return Instruction{}, false
	}
	return v.program.Instructions[pc], true
}

// Heap returns the VM's managed heap.
func (v *VM) Heap() *Heap { return v.heap }

// TriggerGC runs one simulated garbage-collection pass over the heap and
// reports how many objects it reclaimed.
func (v *VM) TriggerGC() int { return v.heap.CollectGarbage() }

// Dump renders a summary of the VM's state (identity, PC, instruction count,
// stack size, call depth, halted/faulted flags, heap object count) with
// github.com/davecgh/go-spew for fault diagnostics and test failure output.
func (v *VM) Dump() string {
	return spew.Sdump(struct {
		ID               uuid.UUID
		ProgramCounter   int
		InstructionCount uint64
		StackSize        int
		CallDepth        int
		Halted           bool
		Faulted          bool
		HeapObjects      uint64
	}{
		ID:               v.id,
		ProgramCounter:   v.dispatcher.CurrentPC(),
		InstructionCount: v.dispatcher.InstructionCount(),
		StackSize:        v.operandStack.Size(),
		CallDepth:        v.callStack.Depth(),
		Halted:           v.halted,
		Faulted:          v.faulted,
		HeapObjects:      v.heap.AllocatedObjects(),
	})
}
