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

// Instruction is an immutable (Opcode, optional operand) pair. A nil
// Operand means the instruction was decoded without one; Opcode.HasOperand
// reports which opcodes take one, and the dispatcher's handlers for those
// opcodes return an error when it is absent.
type Instruction struct {
	opcode  Opcode
	operand *Value
}

// NewInstruction returns an Instruction with no operand.
func NewInstruction(opcode Opcode) Instruction {
	return Instruction{opcode: opcode}
}

// NewInstructionWithOperand returns an Instruction carrying operand.
func NewInstructionWithOperand(opcode Opcode, operand Value) Instruction {
	return Instruction{opcode: opcode, operand: &operand}
}

// Opcode returns the instruction's opcode.
func (i Instruction) Opcode() Opcode { return i.opcode }

// Operand returns the instruction's operand and whether one is present.
func (i Instruction) Operand() (Value, bool) {
	if i.operand == nil {
		return Value{}, false
	}
	return *i.operand, true
}
