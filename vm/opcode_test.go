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

func TestOpcodeByteMap(t *testing.T) {
	cases := []struct {
		op   Opcode
		byte byte
	}{
		{OpAdd, 0x01}, {OpSub, 0x02}, {OpMul, 0x03}, {OpDiv, 0x04}, {OpMod, 0x05},
		{OpPush, 0x10}, {OpPop, 0x11}, {OpDup, 0x12}, {OpSwap, 0x13},
		{OpJump, 0x20}, {OpJumpIfTrue, 0x21}, {OpJumpIfFalse, 0x22}, {OpCall, 0x23}, {OpReturn, 0x24},
		{OpEqual, 0x30}, {OpNotEqual, 0x31}, {OpLessThan, 0x32}, {OpLessEqual, 0x33}, {OpGreaterThan, 0x34}, {OpGreaterEqual, 0x35},
		{OpAnd, 0x40}, {OpOr, 0x41}, {OpNot, 0x42}, {OpXor, 0x43},
		{OpLoad, 0x50}, {OpStore, 0x51}, {OpNewObject, 0x52}, {OpGetField, 0x53}, {OpSetField, 0x54},
		{OpHalt, 0xFF},
	}
	for _, tc := range cases {
		require.Equal(t, tc.byte, tc.op.Byte())
	}
}

func TestParseOpcodeRoundTrip(t *testing.T) {
	all := []Opcode{
		OpAdd, OpSub, OpMul, OpDiv, OpMod,
		OpPush, OpPop, OpDup, OpSwap,
		OpJump, OpJumpIfTrue, OpJumpIfFalse, OpCall, OpReturn,
		OpEqual, OpNotEqual, OpLessThan, OpLessEqual, OpGreaterThan, OpGreaterEqual,
		OpAnd, OpOr, OpNot, OpXor,
		OpLoad, OpStore, OpNewObject, OpGetField, OpSetField,
		OpHalt,
	}
	for _, op := range all {
		restored, ok := ParseOpcode(op.Byte())
		require.True(t, ok)
		require.Equal(t, op, restored)
	}
}

func TestParseOpcodeUnknownByte(t *testing.T) {
	_, ok := ParseOpcode(0x99)
	require.False(t, ok)
}
