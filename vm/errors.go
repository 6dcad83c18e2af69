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

import "errors"

// Sentinel errors for the fault categories a faulted VM can report. Wrap
// with fmt.Errorf("%w: ...", ErrX) for context; unwrap with errors.Is.
var (
	// ErrStackUnderflow is returned when an opcode pops more values than the
	// operand stack holds.
	ErrStackUnderflow = errors.New("vm: operand stack underflow")
	// ErrStackOverflow is returned when a push would exceed the operand
	// stack's configured or absolute ceiling.
	ErrStackOverflow = errors.New("vm: operand stack overflow")
	// ErrCallFrameError covers local-index-out-of-range and call-stack
	// underflow/overflow violations.
	ErrCallFrameError = errors.New("vm: call frame error")
	// ErrTypeError is returned when operand tags are incompatible with the
	// opcode being executed.
	ErrTypeError = errors.New("vm: type error")
	// ErrDivisionByZero is returned by Div/Mod when the divisor is zero,
	// integer or float.
	ErrDivisionByZero = errors.New("vm: division by zero")
	// ErrInvalidJumpAddress is returned when a jump/call target is negative.
	ErrInvalidJumpAddress = errors.New("vm: invalid jump address")
	// ErrUnknownOpcode is returned when a byte does not decode to a known
	// opcode.
	ErrUnknownOpcode = errors.New("vm: unknown opcode")
	// ErrInsufficientOperands is returned when an opcode requires an operand
	// that is absent from the instruction.
	ErrInsufficientOperands = errors.New("vm: insufficient operands")
	// ErrInvalidOperand is returned when an operand is present but the wrong
	// shape: non-integer where an integer is required, an out-of-range
	// constant index, a failed heap allocation, or the SetField limitation.
	ErrInvalidOperand = errors.New("vm: invalid operand")
	// ErrProgramCounterOutOfBounds is returned when the PC reaches or passes
	// the end of the program without a prior Halt.
	ErrProgramCounterOutOfBounds = errors.New("vm: program counter out of bounds")
	// ErrNoProgram is returned when Run/Step is called before a program is
	// loaded.
	ErrNoProgram = errors.New("vm: no program loaded")
	// ErrInvalidProgramState covers loader rejection and the quota-exceeded
	// case.
	ErrInvalidProgramState = errors.New("vm: invalid program state")
)
