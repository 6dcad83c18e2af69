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

// Program is a loaded unit of instructions plus its read-only constants
// pool. No on-disk format is implied — a host builds one by appending
// Instructions directly.
type Program struct {
	Instructions []Instruction
	Constants    []Value
}

// NewProgram validates and returns a Program. An empty instruction sequence
// is rejected.
func NewProgram(instructions []Instruction, constants []Value) (*Program, error) {
	if len(instructions) == 0 {
		return nil, ErrInvalidProgramState
	}
	return &Program{Instructions: instructions, Constants: constants}, nil
}

// Len reports the number of instructions in the program.
func (p *Program) Len() int { return len(p.Instructions) }
