package trace

import (
	"fmt"

	"github.com/Manu343726/pipetrace/pkg/utils"
)

// Identifies one of the four pipeline registers between adjacent stages
type LatchKind int

const (
	LatchIFID LatchKind = iota
	LatchIDEX
	LatchEXMEM
	LatchMEMWB
)

// Pipeline registers in pipeline order
var LatchKinds = []LatchKind{LatchIFID, LatchIDEX, LatchEXMEM, LatchMEMWB}

// Returns the label the simulator prints for the pipeline register (IF/ID, ID/EX, ...)
func (k LatchKind) String() string {
	switch k {
	case LatchIFID:
		return "IF/ID"
	case LatchIDEX:
		return "ID/EX"
	case LatchEXMEM:
		return "EX/MEM"
	case LatchMEMWB:
		return "MEM/WB"
	default:
		return fmt.Sprintf("Latch(%d)", int(k))
	}
}

// Returns the key of the pipeline register in the output document
func (k LatchKind) DocumentKey() string {
	switch k {
	case LatchIFID:
		return "ifId"
	case LatchIDEX:
		return "idEx"
	case LatchEXMEM:
		return "exMem"
	case LatchMEMWB:
		return "memWb"
	default:
		return k.String()
	}
}

// LatchFields is the payload of a valid pipeline register. Implemented only by the
// per kind field types of this package.
type LatchFields interface {
	// Pairs returns the fields as ordered name/value pairs, using the names of the
	// output document
	Pairs() []utils.Pair[string, any]

	latchFields()
}

type IFIDFields struct {
	ProgramCounter      string
	InstructionRegister string
	InstructionNumber   int
}

type IDEXFields struct {
	ProgramCounter    string
	Rs1               RegisterOperand
	Rs2               RegisterOperand
	Rd                int
	Immediate         int64
	ALUOperation      string
	InstructionNumber int
}

type EXMEMFields struct {
	ProgramCounter string
	ALUResult      int64
	Rs2Value       int64
	Rd             int
	// Control signals, space separated (e.g. "MemRead RegWrite")
	Control           string
	InstructionNumber int
}

type MEMWBFields struct {
	ProgramCounter    string
	WriteData         int64
	Rd                int
	Control           string
	InstructionNumber int
}

func (IFIDFields) latchFields()  {}
func (IDEXFields) latchFields()  {}
func (EXMEMFields) latchFields() {}
func (MEMWBFields) latchFields() {}

func (f IFIDFields) Pairs() []utils.Pair[string, any] {
	return []utils.Pair[string, any]{
		field("pc", f.ProgramCounter),
		field("ir", f.InstructionRegister),
		field("instrNum", f.InstructionNumber),
	}
}

func (f IDEXFields) Pairs() []utils.Pair[string, any] {
	return []utils.Pair[string, any]{
		field("pc", f.ProgramCounter),
		field("rs1", f.Rs1.String()),
		field("rs2", f.Rs2.String()),
		field("rd", registerName(f.Rd)),
		field("imm", f.Immediate),
		field("alu", f.ALUOperation),
		field("instrNum", f.InstructionNumber),
	}
}

func (f EXMEMFields) Pairs() []utils.Pair[string, any] {
	return []utils.Pair[string, any]{
		field("pc", f.ProgramCounter),
		field("alu", f.ALUResult),
		field("rs2Val", f.Rs2Value),
		field("rd", registerName(f.Rd)),
		field("ctrl", f.Control),
		field("instrNum", f.InstructionNumber),
	}
}

func (f MEMWBFields) Pairs() []utils.Pair[string, any] {
	return []utils.Pair[string, any]{
		field("pc", f.ProgramCounter),
		field("wData", f.WriteData),
		field("rd", registerName(f.Rd)),
		field("ctrl", f.Control),
		field("instrNum", f.InstructionNumber),
	}
}

// State of a pipeline register in one cycle
type LatchState struct {
	Valid  bool
	Fields LatchFields
}

// Returns an invalid pipeline register state
func InvalidLatch() LatchState {
	return LatchState{}
}

// Returns a valid pipeline register state holding the given fields
func ValidLatch(fields LatchFields) LatchState {
	return LatchState{Valid: true, Fields: fields}
}

func (l LatchState) String() string {
	if !l.Valid {
		return "INVALID"
	}

	return formatPairs(l.Fields.Pairs())
}

// The four pipeline registers of a cycle
type Latches struct {
	IFID  LatchState
	IDEX  LatchState
	EXMEM LatchState
	MEMWB LatchState
}

// Returns the state of the given pipeline register
func (l *Latches) Get(kind LatchKind) LatchState {
	switch kind {
	case LatchIFID:
		return l.IFID
	case LatchIDEX:
		return l.IDEX
	case LatchEXMEM:
		return l.EXMEM
	case LatchMEMWB:
		return l.MEMWB
	default:
		panic(fmt.Errorf("unknown pipeline register kind %v", int(kind)))
	}
}

// Sets the state of the given pipeline register
func (l *Latches) Set(kind LatchKind, state LatchState) {
	switch kind {
	case LatchIFID:
		l.IFID = state
	case LatchIDEX:
		l.IDEX = state
	case LatchEXMEM:
		l.EXMEM = state
	case LatchMEMWB:
		l.MEMWB = state
	default:
		panic(fmt.Errorf("unknown pipeline register kind %v", int(kind)))
	}
}
