package trace

import (
	"github.com/Manu343726/pipetrace/pkg/utils"
)

// A program instruction as loaded by the simulator
type Instruction struct {
	// Instruction address (0x%08X)
	Address string
	// Instruction encoding (0x%08X)
	Encoding string
	// Assembly text
	Mnemonic string
}

// Returns an instruction from its address, encoding and assembly text
func NewInstruction(address uint32, encoding uint32, mnemonic string) Instruction {
	return Instruction{
		Address:  utils.FormatHex32(address),
		Encoding: utils.FormatHex32(encoding),
		Mnemonic: mnemonic,
	}
}

// Trace is the read only view of a parsed simulation trace.
// All methods are pure functions of the parsed trace and safe for concurrent use.
type Trace interface {
	// Instructions returns the program instructions, in program order
	Instructions() []Instruction

	// CycleCount returns the number of cycles in the trace
	CycleCount() int

	// Cycles returns all cycles, in increasing cycle number order
	Cycles() []CycleSnapshot

	// CycleAt returns the cycle with the given number, or ErrOutOfRange
	CycleAt(cycleNumber int) (CycleSnapshot, error)

	// RegisterFileAt returns the resolved register file at the end of the given
	// cycle, or ErrOutOfRange
	RegisterFileAt(cycleNumber int) (RegisterFile, error)

	// Statistics returns the simulation statistics summary
	Statistics() map[string]Statistic

	// StatisticNames returns the statistic names in the order they were reported
	StatisticNames() []string
}

// TraceContents stores everything a parser extracted from a trace.
type TraceContents struct {
	Instructions []Instruction
	Cycles       []CycleSnapshot
	// Resolved register file of each cycle, as returned by RegisterFileTracker.Finalize.
	// When it does not cover every cycle, the files are rebuilt from the register
	// updates of the cycles.
	RegisterFiles  []RegisterFile
	Statistics     map[string]Statistic
	StatisticNames []string
}

// SimulationTrace is the immutable trace model. It implements the Trace interface.
type SimulationTrace struct {
	instructions   []Instruction
	cycles         []CycleSnapshot
	statistics     map[string]Statistic
	statisticNames []string

	// Resolved register file of each cycle, same indices as cycles
	registerFiles []RegisterFile
	// Cycle number -> index into cycles
	cycleIndex map[int]int
}

var _ Trace = (*SimulationTrace)(nil)

// Builds the trace model from parsed contents. The register file of each cycle is
// resolved by replaying the register updates of the cycles, so the contents must
// already have their register updates finalized.
func NewSimulationTrace(contents TraceContents) *SimulationTrace {
	t := &SimulationTrace{
		instructions:   utils.Clone(contents.Instructions),
		cycles:         utils.Map(contents.Cycles, CycleSnapshot.clone),
		statistics:     utils.CopyMap(contents.Statistics),
		statisticNames: utils.Clone(contents.StatisticNames),
		registerFiles:  utils.Clone(contents.RegisterFiles),
		cycleIndex:     make(map[int]int, len(contents.Cycles)),
	}

	if t.statistics == nil {
		t.statistics = map[string]Statistic{}
	}

	if len(t.registerFiles) != len(t.cycles) {
		t.registerFiles = replayRegisterFiles(t.cycles)
	}

	for i, cycle := range t.cycles {
		t.cycleIndex[cycle.CycleNumber] = i
	}

	return t
}

func (t *SimulationTrace) Instructions() []Instruction {
	return utils.Clone(t.instructions)
}

func (t *SimulationTrace) CycleCount() int {
	return len(t.cycles)
}

func (t *SimulationTrace) Cycles() []CycleSnapshot {
	return utils.Map(t.cycles, CycleSnapshot.clone)
}

func (t *SimulationTrace) CycleAt(cycleNumber int) (CycleSnapshot, error) {
	i, err := t.indexOf(cycleNumber)
	if err != nil {
		return CycleSnapshot{}, err
	}

	return t.cycles[i].clone(), nil
}

func (t *SimulationTrace) RegisterFileAt(cycleNumber int) (RegisterFile, error) {
	i, err := t.indexOf(cycleNumber)
	if err != nil {
		return RegisterFile{}, err
	}

	return t.registerFiles[i], nil
}

func (t *SimulationTrace) Statistics() map[string]Statistic {
	return utils.CopyMap(t.statistics)
}

func (t *SimulationTrace) StatisticNames() []string {
	return utils.Clone(t.statisticNames)
}

func (t *SimulationTrace) indexOf(cycleNumber int) (int, error) {
	i, ok := t.cycleIndex[cycleNumber]
	if !ok {
		return 0, utils.MakeError(ErrOutOfRange, "cycle %d is not in the trace (%d cycles)", cycleNumber, len(t.cycles))
	}

	return i, nil
}
