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

// Opcode identifies an instruction. Byte values are part of the stable wire
// contract in the table below — never renumber an existing opcode.
type Opcode uint8

const (
	OpAdd Opcode = 0x01
	OpSub Opcode = 0x02
	OpMul Opcode = 0x03
	OpDiv Opcode = 0x04
	OpMod Opcode = 0x05

	OpPush Opcode = 0x10
	OpPop  Opcode = 0x11
	OpDup  Opcode = 0x12
	OpSwap Opcode = 0x13

	OpJump        Opcode = 0x20
	OpJumpIfTrue  Opcode = 0x21
	OpJumpIfFalse Opcode = 0x22
	OpCall        Opcode = 0x23
	OpReturn      Opcode = 0x24

	OpEqual        Opcode = 0x30
	OpNotEqual     Opcode = 0x31
	OpLessThan     Opcode = 0x32
	OpLessEqual    Opcode = 0x33
	OpGreaterThan  Opcode = 0x34
	OpGreaterEqual Opcode = 0x35

	OpAnd Opcode = 0x40
	OpOr  Opcode = 0x41
	OpNot Opcode = 0x42
	OpXor Opcode = 0x43

	OpLoad      Opcode = 0x50
	OpStore     Opcode = 0x51
	OpNewObject Opcode = 0x52
	OpGetField  Opcode = 0x53
	OpSetField  Opcode = 0x54

	OpHalt Opcode = 0xFF
)

// opcodeNames gives every defined opcode's mnemonic, keyed by byte value.
var opcodeNames = map[Opcode]string{
	OpAdd: "ADD", OpSub: "SUB", OpMul: "MUL", OpDiv: "DIV", OpMod: "MOD",
	OpPush: "PUSH", OpPop: "POP", OpDup: "DUP", OpSwap: "SWAP",
	OpJump: "JUMP", OpJumpIfTrue: "JUMP_IF_TRUE", OpJumpIfFalse: "JUMP_IF_FALSE",
	OpCall: "CALL", OpReturn: "RETURN",
	OpEqual: "EQUAL", OpNotEqual: "NOT_EQUAL", OpLessThan: "LESS_THAN",
	OpLessEqual: "LESS_EQUAL", OpGreaterThan: "GREATER_THAN", OpGreaterEqual: "GREATER_EQUAL",
	OpAnd: "AND", OpOr: "OR", OpNot: "NOT", OpXor: "XOR",
	OpLoad: "LOAD", OpStore: "STORE", OpNewObject: "NEW_OBJECT",
	OpGetField: "GET_FIELD", OpSetField: "SET_FIELD",
	OpHalt: "HALT",
}

// ParseOpcode is total over the opcode byte map: it reports ok=false for any
// byte not listed in the table above, mirroring the original's
// `Opcode::from_u8`.
func ParseOpcode(b byte) (Opcode, bool) {
	op := Opcode(b)
	_, ok := opcodeNames[op]
	return op, ok
}

// String returns the opcode's mnemonic, or "UNKNOWN" for an out-of-table
// value (which should not occur for a validly-decoded Opcode).
func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}

// Byte returns the stable wire byte for the opcode.
func (o Opcode) Byte() byte { return byte(o) }

// HasOperand reports whether the opcode's instruction carries an operand
// Value in its second slot.
func (o Opcode) HasOperand() bool {
	switch o {
	case OpPush, OpJump, OpJumpIfTrue, OpJumpIfFalse, OpCall, OpLoad, OpStore, OpGetField, OpSetField:
		return true
	default:
		return false
	}
}
