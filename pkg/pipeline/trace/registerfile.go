package trace

import (
	"github.com/Manu343726/pipetrace/pkg/utils"
)

// Register File Tracking
//
// The simulator reports register file contents in two ways:
//   - Full register file dumps, printed after a cycle when the simulator is asked to.
//     A dump is taken as the ground truth for its cycle.
//   - Writeback lines ("x5 = 0x00000004"), from which a single register change can
//     be inferred. These are provisional: a dump in the same cycle overrides them.
//
// The tracker collects both while the trace is parsed and resolves the register file
// of every cycle afterwards in a single forward pass, starting from an all zero
// register file. Register updates attached to the cycles come only from that pass.

type registerValues map[int]uint32

// Collects register file evidence per cycle and resolves the register updates of
// every cycle once parsing is done
type RegisterFileTracker struct {
	dumps       map[int]registerValues
	provisional map[int]registerValues
}

func NewRegisterFileTracker() *RegisterFileTracker {
	return &RegisterFileTracker{
		dumps:       map[int]registerValues{},
		provisional: map[int]registerValues{},
	}
}

// Records a register value read from the register file dump of a cycle
func (t *RegisterFileTracker) RecordDump(cycle int, register int, value uint32) error {
	return record(t.dumps, cycle, register, value)
}

// Records a register write inferred from a writeback line of a cycle. If the same
// register is written more than once in a cycle the last write wins.
func (t *RegisterFileTracker) RecordWriteback(cycle int, register int, value uint32) error {
	return record(t.provisional, cycle, register, value)
}

func record(evidence map[int]registerValues, cycle int, register int, value uint32) error {
	if !ValidRegisterIndex(register) {
		return utils.MakeError(ErrRegisterIndexOutOfRange, "x%d in cycle %d", register, cycle)
	}

	values, ok := evidence[cycle]
	if !ok {
		values = registerValues{}
		evidence[cycle] = values
	}

	values[register] = value
	return nil
}

// Resolves the register file of every cycle, in order, and replaces the register
// updates of each cycle with the registers whose value changed from the previous
// cycle. Returns the resolved register file of each cycle.
func (t *RegisterFileTracker) Finalize(cycles []CycleSnapshot) []RegisterFile {
	resolved := make([]RegisterFile, len(cycles))
	var previous RegisterFile

	for i := range cycles {
		current := previous

		// A dump overrides any writeback of the same cycle. Registers missing from a
		// partial dump keep their previous value.
		evidence, ok := t.dumps[cycles[i].CycleNumber]
		if !ok {
			evidence = t.provisional[cycles[i].CycleNumber]
		}

		for register, value := range evidence {
			current[register] = value
		}

		cycles[i].RegisterUpdates = diffRegisterFiles(previous, current)
		resolved[i] = current
		previous = current
	}

	return resolved
}

// Returns the registers whose value differs between two register files, ordered by
// register index
func diffRegisterFiles(before RegisterFile, after RegisterFile) []RegisterUpdate {
	updates := []RegisterUpdate{}

	for register := range after {
		if after[register] != before[register] {
			updates = append(updates, RegisterUpdate{RegisterIndex: register, Value: after[register]})
		}
	}

	return updates
}

// Applies the register updates of a sequence of cycles, in order, to an all zero
// register file
func ReplayRegisterUpdates(cycles []CycleSnapshot) RegisterFile {
	files := replayRegisterFiles(cycles)
	if len(files) == 0 {
		return RegisterFile{}
	}

	return files[len(files)-1]
}

// Returns the register file after each cycle, applying the register updates of the
// cycles in order to an all zero register file
func replayRegisterFiles(cycles []CycleSnapshot) []RegisterFile {
	files := make([]RegisterFile, len(cycles))
	var file RegisterFile

	for i, cycle := range cycles {
		for _, update := range cycle.RegisterUpdates {
			if ValidRegisterIndex(update.RegisterIndex) {
				file[update.RegisterIndex] = update.Value
			}
		}

		files[i] = file
	}

	return files
}
