package parser

import (
	"strings"

	"github.com/Manu343726/pipetrace/pkg/pipeline/trace"
)

// Extracts the fields of a valid pipeline register from the text after its label.
// Returns false if the text does not match the register grammar.
type latchExtractor func(text string) (trace.LatchFields, bool)

var latchExtractors = map[trace.LatchKind]latchExtractor{
	trace.LatchIFID:  extractIFID,
	trace.LatchIDEX:  extractIDEX,
	trace.LatchEXMEM: extractEXMEM,
	trace.LatchMEMWB: extractMEMWB,
}

// Parses the text after a pipeline register label. An INVALID marker, or text that
// does not match the register grammar, gives an invalid register.
func parseLatch(kind trace.LatchKind, text string) (state trace.LatchState, matched bool) {
	if strings.Contains(text, "INVALID") {
		return trace.InvalidLatch(), true
	}

	extract, ok := latchExtractors[kind]
	if !ok {
		return trace.InvalidLatch(), false
	}

	fields, ok := extract(text)
	if !ok {
		return trace.InvalidLatch(), false
	}

	return trace.ValidLatch(fields), true
}

func extractIFID(text string) (trace.LatchFields, bool) {
	m := match(ifIdPattern, text)
	if m == nil {
		return nil, false
	}

	fields := trace.IFIDFields{
		ProgramCounter:      m.str(1),
		InstructionRegister: m.str(2),
		InstructionNumber:   m.int(3),
	}

	return fields, m.ok()
}

func extractIDEX(text string) (trace.LatchFields, bool) {
	m := match(idExPattern, text)
	if m == nil {
		return nil, false
	}

	fields := trace.IDEXFields{
		ProgramCounter:    m.str(1),
		Rs1:               m.operand(2),
		Rs2:               m.operand(4),
		Rd:                m.int(6),
		Immediate:         m.int64(7),
		ALUOperation:      m.str(8),
		InstructionNumber: m.int(9),
	}

	return fields, m.ok()
}

func extractEXMEM(text string) (trace.LatchFields, bool) {
	m := match(exMemPattern, text)
	if m == nil {
		return nil, false
	}

	fields := trace.EXMEMFields{
		ProgramCounter:    m.str(1),
		ALUResult:         m.int64(2),
		Rs2Value:          m.int64(3),
		Rd:                m.int(4),
		Control:           strings.TrimSpace(m.str(5)),
		InstructionNumber: m.int(6),
	}

	return fields, m.ok()
}

func extractMEMWB(text string) (trace.LatchFields, bool) {
	m := match(memWbPattern, text)
	if m == nil {
		return nil, false
	}

	fields := trace.MEMWBFields{
		ProgramCounter:    m.str(1),
		WriteData:         m.int64(2),
		Rd:                m.int(3),
		Control:           strings.TrimSpace(m.str(4)),
		InstructionNumber: m.int(5),
	}

	return fields, m.ok()
}
