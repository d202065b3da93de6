package riscv

import (
	"fmt"

	"github.com/Manu343726/pipetrace/pkg/utils"
)

// Instruction encoding format
type Format int

const (
	FormatR Format = iota
	FormatI
	// I-type loads, printed as "rd, imm(rs1)"
	FormatILoad
	// I-type shifts by immediate, printed with the 5 bit shift amount
	FormatIShift
	FormatS
	FormatB
	FormatU
	FormatJ
	// No operands (ECALL, EBREAK)
	FormatSystem
)

var formatNames = [...]string{"R", "I", "I (load)", "I (shift)", "S", "B", "U", "J", "system"}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}

	return formatNames[f]
}

// Describes one RV32IM operation: the bits that identify it and how to print it.
// A word encodes the operation when word&Mask == Match.
type Operation struct {
	Mnemonic string
	Format   Format
	Match    uint32
	Mask     uint32
}

const (
	maskOpcode      uint32 = 0x0000007F
	maskFunct3      uint32 = 0x0000707F
	maskFunct7      uint32 = 0xFE00707F
	maskWholeWord   uint32 = 0xFFFFFFFF
	opcodeLoad      uint32 = 0x03
	opcodeOpImm     uint32 = 0x13
	opcodeAuipc     uint32 = 0x17
	opcodeStore     uint32 = 0x23
	opcodeOp        uint32 = 0x33
	opcodeLui       uint32 = 0x37
	opcodeBranch    uint32 = 0x63
	opcodeJalr      uint32 = 0x67
	opcodeJal       uint32 = 0x6F
	opcodeSystem    uint32 = 0x73
	funct7Alternate uint32 = 0x20
	funct7MulDiv    uint32 = 0x01
)

const unknownMnemonic = "unknown"

func encodeMatch(opcode uint32, funct3 uint32, funct7 uint32) uint32 {
	return opcode | funct3<<12 | funct7<<25
}

func rType(mnemonic string, funct3 uint32, funct7 uint32) Operation {
	return Operation{mnemonic, FormatR, encodeMatch(opcodeOp, funct3, funct7), maskFunct7}
}

func withFunct3(mnemonic string, format Format, opcode uint32, funct3 uint32) Operation {
	return Operation{mnemonic, format, encodeMatch(opcode, funct3, 0), maskFunct3}
}

// All operations known to the disassembler, RV32I base plus the M extension
var Operations = []Operation{
	{"LUI", FormatU, opcodeLui, maskOpcode},
	{"AUIPC", FormatU, opcodeAuipc, maskOpcode},
	{"JAL", FormatJ, opcodeJal, maskOpcode},
	withFunct3("JALR", FormatILoad, opcodeJalr, 0),

	withFunct3("BEQ", FormatB, opcodeBranch, 0),
	withFunct3("BNE", FormatB, opcodeBranch, 1),
	withFunct3("BLT", FormatB, opcodeBranch, 4),
	withFunct3("BGE", FormatB, opcodeBranch, 5),
	withFunct3("BLTU", FormatB, opcodeBranch, 6),
	withFunct3("BGEU", FormatB, opcodeBranch, 7),

	withFunct3("LB", FormatILoad, opcodeLoad, 0),
	withFunct3("LH", FormatILoad, opcodeLoad, 1),
	withFunct3("LW", FormatILoad, opcodeLoad, 2),
	withFunct3("LBU", FormatILoad, opcodeLoad, 4),
	withFunct3("LHU", FormatILoad, opcodeLoad, 5),

	withFunct3("SB", FormatS, opcodeStore, 0),
	withFunct3("SH", FormatS, opcodeStore, 1),
	withFunct3("SW", FormatS, opcodeStore, 2),

	withFunct3("ADDI", FormatI, opcodeOpImm, 0),
	withFunct3("SLTI", FormatI, opcodeOpImm, 2),
	withFunct3("SLTIU", FormatI, opcodeOpImm, 3),
	withFunct3("XORI", FormatI, opcodeOpImm, 4),
	withFunct3("ORI", FormatI, opcodeOpImm, 6),
	withFunct3("ANDI", FormatI, opcodeOpImm, 7),
	{"SLLI", FormatIShift, encodeMatch(opcodeOpImm, 1, 0), maskFunct7},
	{"SRLI", FormatIShift, encodeMatch(opcodeOpImm, 5, 0), maskFunct7},
	{"SRAI", FormatIShift, encodeMatch(opcodeOpImm, 5, funct7Alternate), maskFunct7},

	rType("ADD", 0, 0),
	rType("SUB", 0, funct7Alternate),
	rType("SLL", 1, 0),
	rType("SLT", 2, 0),
	rType("SLTU", 3, 0),
	rType("XOR", 4, 0),
	rType("SRL", 5, 0),
	rType("SRA", 5, funct7Alternate),
	rType("OR", 6, 0),
	rType("AND", 7, 0),

	rType("MUL", 0, funct7MulDiv),
	rType("MULH", 1, funct7MulDiv),
	rType("MULHSU", 2, funct7MulDiv),
	rType("MULHU", 3, funct7MulDiv),
	rType("DIV", 4, funct7MulDiv),
	rType("DIVU", 5, funct7MulDiv),
	rType("REM", 6, funct7MulDiv),
	rType("REMU", 7, funct7MulDiv),

	{"ECALL", FormatSystem, opcodeSystem, maskWholeWord},
	{"EBREAK", FormatSystem, 0x00100000 | opcodeSystem, maskWholeWord},
}

// Returns the operation encoded by a word, or false if the word is not a known encoding
func Decode(word uint32) (Operation, bool) {
	for _, op := range Operations {
		if word&op.Mask == op.Match {
			return op, true
		}
	}

	return Operation{}, false
}

// Fields of an encoded instruction word
type fields struct {
	rd, rs1, rs2 uint32
	word         utils.BitView[uint32]
}

func decodeFields(word uint32) fields {
	view := utils.CreateBitView(word)

	return fields{
		rd:   view.Read(7, 5),
		rs1:  view.Read(15, 5),
		rs2:  view.Read(20, 5),
		word: view,
	}
}

func (f fields) immI() int32 {
	return utils.SignExtend(f.word.Read(20, 12), 12)
}

func (f fields) immS() int32 {
	return utils.SignExtend(f.word.Read(25, 7)<<5|f.word.Read(7, 5), 12)
}

func (f fields) immB() int32 {
	imm := f.word.Bit(31)<<12 |
		f.word.Bit(7)<<11 |
		f.word.Read(25, 6)<<5 |
		f.word.Read(8, 4)<<1
	return utils.SignExtend(imm, 13)
}

func (f fields) immU() uint32 {
	return f.word.Read(12, 20)
}

func (f fields) immJ() int32 {
	imm := f.word.Bit(31)<<20 |
		f.word.Read(12, 8)<<12 |
		f.word.Bit(20)<<11 |
		f.word.Read(21, 10)<<1
	return utils.SignExtend(imm, 21)
}

// Returns the assembly text of an instruction word, as in "ADDI x5, x0, 4".
// Words that do not encode a known operation disassemble to "unknown".
func Disassemble(word uint32) string {
	op, ok := Decode(word)
	if !ok {
		return unknownMnemonic
	}

	f := decodeFields(word)

	switch op.Format {
	case FormatR:
		return fmt.Sprintf("%s x%d, x%d, x%d", op.Mnemonic, f.rd, f.rs1, f.rs2)
	case FormatI:
		return fmt.Sprintf("%s x%d, x%d, %d", op.Mnemonic, f.rd, f.rs1, f.immI())
	case FormatILoad:
		return fmt.Sprintf("%s x%d, %d(x%d)", op.Mnemonic, f.rd, f.immI(), f.rs1)
	case FormatIShift:
		return fmt.Sprintf("%s x%d, x%d, %d", op.Mnemonic, f.rd, f.rs1, f.rs2)
	case FormatS:
		return fmt.Sprintf("%s x%d, %d(x%d)", op.Mnemonic, f.rs2, f.immS(), f.rs1)
	case FormatB:
		return fmt.Sprintf("%s x%d, x%d, %d", op.Mnemonic, f.rs1, f.rs2, f.immB())
	case FormatU:
		return fmt.Sprintf("%s x%d, 0x%x", op.Mnemonic, f.rd, f.immU())
	case FormatJ:
		return fmt.Sprintf("%s x%d, %d", op.Mnemonic, f.rd, f.immJ())
	default:
		return op.Mnemonic
	}
}
