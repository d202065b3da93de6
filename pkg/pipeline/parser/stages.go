package parser

import (
	"github.com/Manu343726/pipetrace/pkg/pipeline/trace"
	"github.com/Manu343726/pipetrace/pkg/riscv"
)

// Branch kind reported for a branch clause found on the decode line of an
// instruction that does not disassemble to a branch
const genericBranchKind = "BRANCH"

// Parses the text after "Fetch:". Every stage parser returns false when the text
// matched neither a marker nor the stage grammar.
func parseFetch(text string) (trace.StageState, bool) {
	if containsAny(text, "stalled") {
		return trace.Inactive(text), true
	}

	m := match(fetchPattern, text)
	if m == nil {
		return trace.Inactive(text), false
	}

	fields := trace.FetchFields{
		ProgramCounter:      m.str(1),
		InstructionRegister: m.str(2),
		InstructionNumber:   m.int(3),
		NextProgramCounter:  m.str(4),
	}

	if !m.ok() {
		return trace.Inactive(text), false
	}

	return trace.Active(fields), true
}

// Parses the text after "Decode:"
func parseDecode(text string) (trace.StageState, bool) {
	if containsAny(text, "stalled", "invalid") {
		return trace.Inactive(text), true
	}

	m := match(decodePattern, text)
	if m == nil {
		return trace.Inactive(text), false
	}

	fields := trace.DecodeFields{
		ProgramCounter:      m.str(1),
		InstructionRegister: m.str(2),
		Rs1:                 m.operand(3),
		Rs2:                 m.operand(5),
		Rd:                  m.int(7),
	}
	encoding := m.hex32(2)

	if !m.ok() {
		return trace.Inactive(text), false
	}

	if b := match(branchPattern, text); b != nil {
		fields.Branch = &trace.BranchInfo{
			Kind:   branchKind(encoding),
			Rs1:    fields.Rs1,
			Rs2:    fields.Rs2,
			Taken:  b.flag(1),
			Target: b.str(2),
		}
	}

	return trace.Active(fields), true
}

// Returns the mnemonic of a branch instruction word, or a generic kind if the word
// is not a conditional branch
func branchKind(encoding uint32) string {
	if op, ok := riscv.Decode(encoding); ok && op.Format == riscv.FormatB {
		return op.Mnemonic
	}

	return genericBranchKind
}

// Parses a "Decode <KIND>: ..." detail line into the branch it describes. Operands
// missing from the detail line are taken from the decode stage, if active.
func parseDecodeDetail(line string, decode trace.StageState) (*trace.BranchInfo, bool) {
	d := match(decodeDetailPattern, line)
	if d == nil {
		return nil, false
	}

	kind, text := d.str(1), d.str(2)

	b := match(branchPattern, text)
	if b == nil {
		return nil, false
	}

	branch := &trace.BranchInfo{
		Kind:   kind,
		Taken:  b.flag(1),
		Target: b.str(2),
	}

	if fields, ok := decode.Fields.(trace.DecodeFields); ok && decode.Active {
		branch.Rs1 = fields.Rs1
		branch.Rs2 = fields.Rs2
	}

	if rs1 := match(rs1Pattern, text); rs1 != nil {
		branch.Rs1 = rs1.operand(1)
		if !rs1.ok() {
			return nil, false
		}
	}

	if rs2 := match(rs2Pattern, text); rs2 != nil {
		branch.Rs2 = rs2.operand(1)
		if !rs2.ok() {
			return nil, false
		}
	}

	return branch, true
}

// Parses the text after "Execute:"
func parseExecute(text string) (trace.StageState, bool) {
	if containsAny(text, "skipping") {
		return trace.Inactive(text), true
	}

	m := match(executePattern, text)
	if m == nil {
		return trace.Inactive(text), false
	}

	fields := trace.ExecuteFields{
		ProgramCounter:      m.str(1),
		InstructionRegister: m.str(2),
		ALU:                 m.str(3),
	}

	if m.has(4) {
		result := m.int64(4)
		fields.Result = &result
	}

	if !m.ok() {
		return trace.Inactive(text), false
	}

	return trace.Active(fields), true
}

// Parses the text after "Memory:". Memory stages without a memory access are still
// reported as active, carrying the simulator message. An invalid EX/MEM register
// leaves the stage inactive.
func parseMemory(text string) (trace.StageState, bool) {
	if containsAny(text, "no memory operation", "bypassing") {
		return trace.Active(trace.MessageFields{Message: text}), true
	}

	if containsAny(text, "skipping") {
		return trace.Inactive(text), true
	}

	m := match(instructionRefPattern, text)
	if m == nil {
		return trace.Inactive(text), false
	}

	fields := trace.MemoryFields{
		ProgramCounter:    m.str(1),
		InstructionNumber: m.int(2),
	}

	if !m.ok() {
		return trace.Inactive(text), false
	}

	return trace.Active(fields), true
}

// Parses the text after "Writeback:". A register assignment is returned along with
// the stage state so the caller can record it as a provisional register update.
func parseWriteback(text string) (trace.StageState, *trace.RegisterUpdate, bool) {
	if containsAny(text, "no writeback", "skipping") {
		return trace.Inactive(text), nil, true
	}

	if m := match(writebackRegisterPattern, text); m != nil {
		update := &trace.RegisterUpdate{
			RegisterIndex: m.int(1),
			Value:         m.hex32(2),
		}

		// The decimal value, when printed, is the value written
		if m.has(3) {
			update.Value = uint32(m.int64(3))
		}

		if m.ok() {
			return trace.Active(trace.MessageFields{Message: update.String()}), update, true
		}
	}

	m := match(instructionRefPattern, text)
	if m == nil {
		return trace.Inactive(text), nil, false
	}

	fields := trace.WritebackFields{
		ProgramCounter:    m.str(1),
		InstructionNumber: m.int(2),
	}

	if !m.ok() {
		return trace.Inactive(text), nil, false
	}

	return trace.Active(fields), nil, true
}
