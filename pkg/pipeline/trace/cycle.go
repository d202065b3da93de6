package trace

import (
	"fmt"

	"github.com/Manu343726/pipetrace/pkg/utils"
)

// Total architectural registers (x0-x31)
const NumRegisters = 32

// Full register file contents, indexed by register number
type RegisterFile [NumRegisters]uint32

// Records that a register took a value as of a cycle
type RegisterUpdate struct {
	RegisterIndex int
	Value         uint32
}

func (u RegisterUpdate) String() string {
	return fmt.Sprintf("%s = 0x%08x", registerName(u.RegisterIndex), u.Value)
}

// Returns whether a register index names one of the architectural registers
func ValidRegisterIndex(index int) bool {
	return index >= 0 && index < NumRegisters
}

func registerName(index int) string {
	return fmt.Sprintf("x%d", index)
}

// Branch prediction report for a cycle. ProgramCounter is empty when the simulator
// only printed a free text message. Correct and Update are nil when unknown.
type PredictionInfo struct {
	ProgramCounter string
	Message        string
	Correct        *bool
	Update         *string
}

func (p *PredictionInfo) String() string {
	if p.ProgramCounter == "" {
		return p.Message
	}

	result := fmt.Sprintf("PC=%s, %s", p.ProgramCounter, p.Message)

	if p.Correct != nil {
		result += fmt.Sprintf(", correct=%v", *p.Correct)
	}
	if p.Update != nil {
		result += fmt.Sprintf(", update=%s", *p.Update)
	}

	return result
}

// Everything the trace reports about one clock cycle
type CycleSnapshot struct {
	CycleNumber int

	Fetch     StageState
	Decode    StageState
	Execute   StageState
	Memory    StageState
	Writeback StageState

	Latches Latches

	// Branch target buffer description
	BTB string

	// nil when the cycle reported no prediction
	Prediction *PredictionInfo

	// Registers that changed value in this cycle, ordered by register index
	RegisterUpdates []RegisterUpdate
}

// Returns the snapshot of a freshly opened cycle: all stages inactive, all pipeline
// registers invalid, no prediction and no register updates.
func NewCycleSnapshot(cycleNumber int) CycleSnapshot {
	c := CycleSnapshot{
		CycleNumber: cycleNumber,
	}

	for _, stage := range Stages {
		c.SetStage(stage, Inactive(DefaultInactiveReason))
	}

	for _, kind := range LatchKinds {
		c.Latches.Set(kind, InvalidLatch())
	}

	return c
}

// Returns the state of a pipeline stage in this cycle
func (c *CycleSnapshot) Stage(stage Stage) StageState {
	switch stage {
	case StageFetch:
		return c.Fetch
	case StageDecode:
		return c.Decode
	case StageExecute:
		return c.Execute
	case StageMemory:
		return c.Memory
	case StageWriteback:
		return c.Writeback
	default:
		panic(fmt.Errorf("unknown pipeline stage %v", int(stage)))
	}
}

// Sets the state of a pipeline stage in this cycle
func (c *CycleSnapshot) SetStage(stage Stage, state StageState) {
	switch stage {
	case StageFetch:
		c.Fetch = state
	case StageDecode:
		c.Decode = state
	case StageExecute:
		c.Execute = state
	case StageMemory:
		c.Memory = state
	case StageWriteback:
		c.Writeback = state
	default:
		panic(fmt.Errorf("unknown pipeline stage %v", int(stage)))
	}
}

// Returns a copy of the snapshot that shares no mutable state with the original
func (c CycleSnapshot) clone() CycleSnapshot {
	c.RegisterUpdates = utils.Clone(c.RegisterUpdates)
	c.Decode = c.Decode.clone()
	c.Execute = c.Execute.clone()

	if c.Prediction != nil {
		prediction := *c.Prediction
		prediction.Correct = clonePtr(prediction.Correct)
		prediction.Update = clonePtr(prediction.Update)
		c.Prediction = &prediction
	}

	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}

	value := *p
	return &value
}
