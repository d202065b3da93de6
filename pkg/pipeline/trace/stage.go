package trace

import (
	"fmt"
	"strings"

	"github.com/Manu343726/pipetrace/pkg/utils"
)

// Identifies one of the five pipeline stages
type Stage int

const (
	StageFetch Stage = iota
	StageDecode
	StageExecute
	StageMemory
	StageWriteback
)

// Stages in pipeline order
var Stages = []Stage{StageFetch, StageDecode, StageExecute, StageMemory, StageWriteback}

func (s Stage) String() string {
	switch s {
	case StageFetch:
		return "Fetch"
	case StageDecode:
		return "Decode"
	case StageExecute:
		return "Execute"
	case StageMemory:
		return "Memory"
	case StageWriteback:
		return "Writeback"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// A register operand as reported by the simulator: the register index and the value read from it
type RegisterOperand struct {
	Index int
	Value int64
}

func (r RegisterOperand) String() string {
	return fmt.Sprintf("x%d(%d)", r.Index, r.Value)
}

// Branch comparison details attached to an active decode stage
type BranchInfo struct {
	// Branch kind as printed by the simulator (BEQ, BNE, ...)
	Kind   string
	Rs1    RegisterOperand
	Rs2    RegisterOperand
	Taken  bool
	Target string
}

func (b *BranchInfo) String() string {
	return fmt.Sprintf("%s %v, %v, taken=%v, target=%s", b.Kind, b.Rs1, b.Rs2, b.Taken, b.Target)
}

// StageFields is the payload of an active stage. It is implemented only by the
// field types of this package, consumers are expected to type switch over them.
type StageFields interface {
	// Pairs returns the fields as ordered name/value pairs, using the names of the
	// output document
	Pairs() []utils.Pair[string, any]

	stageFields()
}

// Fields of an active fetch stage
type FetchFields struct {
	ProgramCounter      string
	InstructionRegister string
	InstructionNumber   int
	NextProgramCounter  string
}

// Fields of an active decode stage
type DecodeFields struct {
	ProgramCounter      string
	InstructionRegister string
	Rs1                 RegisterOperand
	Rs2                 RegisterOperand
	Rd                  int
	// Present only when the decode line carried a branch comparison
	Branch *BranchInfo
}

// Fields of an active execute stage
type ExecuteFields struct {
	ProgramCounter      string
	InstructionRegister string
	// Free text ALU description (e.g. "ALU=ADD")
	ALU string
	// Present only when the simulator reported an explicit result
	Result *int64
}

// Fields of an active memory stage accessing memory for an instruction
type MemoryFields struct {
	ProgramCounter    string
	InstructionNumber int
}

// Fields of an active writeback stage that did not report a register assignment
type WritebackFields struct {
	ProgramCounter    string
	InstructionNumber int
}

// An active stage described only by a message, such as a memory bypass or a
// writeback register assignment
type MessageFields struct {
	Message string
}

func (FetchFields) stageFields()     {}
func (DecodeFields) stageFields()    {}
func (ExecuteFields) stageFields()   {}
func (MemoryFields) stageFields()    {}
func (WritebackFields) stageFields() {}
func (MessageFields) stageFields()   {}

func (f FetchFields) Pairs() []utils.Pair[string, any] {
	return []utils.Pair[string, any]{
		field("pc", f.ProgramCounter),
		field("ir", f.InstructionRegister),
		field("instrNum", f.InstructionNumber),
		field("nextPc", f.NextProgramCounter),
	}
}

func (f DecodeFields) Pairs() []utils.Pair[string, any] {
	pairs := []utils.Pair[string, any]{
		field("pc", f.ProgramCounter),
		field("ir", f.InstructionRegister),
		field("rs1", f.Rs1.String()),
		field("rs2", f.Rs2.String()),
		field("rd", registerName(f.Rd)),
	}

	if f.Branch != nil {
		taken := 0
		if f.Branch.Taken {
			taken = 1
		}

		pairs = append(pairs, field("branchInfo", Object{
			field("type", f.Branch.Kind),
			field("rs1", f.Branch.Rs1.String()),
			field("rs2", f.Branch.Rs2.String()),
			field("taken", taken),
			field("target", f.Branch.Target),
		}))
	}

	return pairs
}

func (f ExecuteFields) Pairs() []utils.Pair[string, any] {
	pairs := []utils.Pair[string, any]{
		field("pc", f.ProgramCounter),
		field("ir", f.InstructionRegister),
		field("alu", f.ALU),
	}

	if f.Result != nil {
		pairs = append(pairs, field("result", *f.Result))
	}

	return pairs
}

func (f MemoryFields) Pairs() []utils.Pair[string, any] {
	return []utils.Pair[string, any]{
		field("pc", f.ProgramCounter),
		field("instrNum", f.InstructionNumber),
	}
}

func (f WritebackFields) Pairs() []utils.Pair[string, any] {
	return []utils.Pair[string, any]{
		field("pc", f.ProgramCounter),
		field("instrNum", f.InstructionNumber),
	}
}

func (f MessageFields) Pairs() []utils.Pair[string, any] {
	return []utils.Pair[string, any]{
		field("message", f.Message),
	}
}

// State of a pipeline stage in one cycle. Inactive stages carry the reason reported
// by the simulator, active stages carry their fields.
type StageState struct {
	Active bool
	Reason string
	Fields StageFields
}

// Default state of every stage when a cycle opens
const DefaultInactiveReason = "Inactive"

// Returns an inactive stage state
func Inactive(reason string) StageState {
	return StageState{Reason: reason}
}

// Returns an active stage state with the given fields
func Active(fields StageFields) StageState {
	return StageState{Active: true, Fields: fields}
}

func (s StageState) String() string {
	if !s.Active {
		return "inactive: " + s.Reason
	}

	return formatPairs(s.Fields.Pairs())
}

// Returns a copy of the state that shares no pointers with s
func (s StageState) clone() StageState {
	switch fields := s.Fields.(type) {
	case DecodeFields:
		if fields.Branch != nil {
			branch := *fields.Branch
			fields.Branch = &branch
		}
		s.Fields = fields
	case ExecuteFields:
		fields.Result = clonePtr(fields.Result)
		s.Fields = fields
	}

	return s
}

func formatPairs(pairs []utils.Pair[string, any]) string {
	return strings.Join(utils.Map(pairs, utils.Pair[string, any].String), ", ")
}
