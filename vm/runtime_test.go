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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScenarioArithmetic(t *testing.T) {
	v := New()
	program, err := NewProgram([]Instruction{
		NewInstructionWithOperand(OpPush, IntegerValue(5)),
		NewInstructionWithOperand(OpPush, IntegerValue(3)),
		NewInstruction(OpAdd),
		NewInstructionWithOperand(OpPush, IntegerValue(2)),
		NewInstruction(OpMul),
		NewInstruction(OpHalt),
	}, nil)
	require.NoError(t, err)
	v.LoadProgram(program)

	require.NoError(t, v.Run())
	top, err := v.StackTop()
	require.NoError(t, err)
	require.Equal(t, int64(16), top.Integer())
	require.EqualValues(t, 6, v.InstructionCount())
}

func TestScenarioMixedExpressionWithConstantsPool(t *testing.T) {
	v := New()
	constants := []Value{IntegerValue(15), IntegerValue(25), IntegerValue(2)}
	program, err := NewProgram([]Instruction{
		NewInstructionWithOperand(OpPush, IntegerValue(0)),
		NewInstructionWithOperand(OpPush, IntegerValue(1)),
		NewInstruction(OpAdd),
		NewInstructionWithOperand(OpPush, IntegerValue(2)),
		NewInstruction(OpDiv),
		NewInstruction(OpHalt),
	}, constants)
	require.NoError(t, err)
	v.LoadProgram(program)

	require.NoError(t, v.Run())
	top, err := v.StackTop()
	require.NoError(t, err)
	require.Equal(t, int64(20), top.Integer())
}

func TestScenarioConditionalBranch(t *testing.T) {
	v := New()
	program, err := NewProgram([]Instruction{
		NewInstructionWithOperand(OpPush, IntegerValue(3)),
		NewInstructionWithOperand(OpPush, IntegerValue(5)),
		NewInstruction(OpLessThan),
		NewInstructionWithOperand(OpJumpIfTrue, IntegerValue(6)),
		NewInstructionWithOperand(OpPush, IntegerValue(100)),
		NewInstruction(OpHalt),
		NewInstructionWithOperand(OpPush, IntegerValue(200)),
		NewInstruction(OpHalt),
	}, nil)
	require.NoError(t, err)
	v.LoadProgram(program)

	require.NoError(t, v.Run())
	top, err := v.StackTop()
	require.NoError(t, err)
	require.Equal(t, int64(200), top.Integer())
}

func TestScenarioCallReturn(t *testing.T) {
	v := New()
	program, err := NewProgram([]Instruction{
		NewInstructionWithOperand(OpCall, IntegerValue(2)),
		NewInstruction(OpHalt),
		NewInstructionWithOperand(OpPush, IntegerValue(42)),
		NewInstruction(OpReturn),
	}, nil)
	require.NoError(t, err)
	v.LoadProgram(program)

	require.NoError(t, v.Run())
	top, err := v.StackTop()
	require.NoError(t, err)
	require.Equal(t, int64(42), top.Integer())
	require.Equal(t, 0, v.CallDepth())
}

func TestScenarioQuota(t *testing.T) {
	v := NewWithMaxInstructions(5)
	program, err := NewProgram([]Instruction{
		NewInstructionWithOperand(OpJump, IntegerValue(0)),
	}, nil)
	require.NoError(t, err)
	v.LoadProgram(program)

	err = v.Run()
	require.ErrorIs(t, err, ErrInvalidProgramState)
	require.GreaterOrEqual(t, v.InstructionCount(), uint64(5))
}

func TestVMEmptyProgramRejected(t *testing.T) {
	_, err := NewProgram(nil, nil)
	require.ErrorIs(t, err, ErrInvalidProgramState)
}

func TestVMRunWithoutProgram(t *testing.T) {
	v := New()
	require.ErrorIs(t, v.Run(), ErrNoProgram)
}

func TestVMProgramCounterOutOfBounds(t *testing.T) {
	v := New()
	program, err := NewProgram([]Instruction{
		NewInstructionWithOperand(OpPush, IntegerValue(1)),
	}, nil)
	require.NoError(t, err)
	v.LoadProgram(program)

	require.NoError(t, v.Step())
	require.ErrorIs(t, v.Step(), ErrProgramCounterOutOfBounds)
}

func TestVMResetClearsStateButKeepsProgram(t *testing.T) {
	v := New()
	program, err := NewProgram([]Instruction{
		NewInstructionWithOperand(OpPush, IntegerValue(1)),
		NewInstruction(OpHalt),
	}, nil)
	require.NoError(t, err)
	v.LoadProgram(program)
	require.NoError(t, v.Run())
	require.True(t, v.IsHalted())

	v.Reset()
	require.False(t, v.IsHalted())
	require.Equal(t, 0, v.StackSize())
	require.Equal(t, 2, v.ProgramLength())
}

func TestVMFaultsOnTypeError(t *testing.T) {
	v := New()
	program, err := NewProgram([]Instruction{
		NewInstructionWithOperand(OpPush, IntegerValue(1)),
		NewInstructionWithOperand(OpPush, StringValue("x")),
		NewInstruction(OpDiv),
		NewInstruction(OpHalt),
	}, nil)
	require.NoError(t, err)
	v.LoadProgram(program)

	require.Error(t, v.Run())
	require.True(t, v.IsFaulted())
}

func TestVMDumpIncludesIdentity(t *testing.T) {
	v := New()
	dump := v.Dump()
	require.Contains(t, dump, v.ID().String())
}

func TestVMTriggerGC(t *testing.T) {
	v := New()
	_, err := v.Heap().AllocateString("x")
	require.NoError(t, err)
	require.Equal(t, 1, v.TriggerGC())
}
