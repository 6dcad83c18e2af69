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

package profiler

import (
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/probechain/probevm/vm"
)

// TestExportJSONShape pins the exported document's field layout so a
// change to function_counts/loop_counts/type_profiles/branch_profiles
// fails a snapshot diff instead of drifting silently.
func TestExportJSONShape(t *testing.T) {
	p := WithThresholds(1000, 10000)
	p.RecordFunctionEntry(1)
	p.RecordLoopIteration(4)
	p.RecordTypeObservation(5, vm.IntegerValue(1))
	p.RecordBranchTaken(6, true)

	data, err := p.ExportJSON()
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	snaps.MatchJSON(t, data)
}
