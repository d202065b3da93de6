package parser

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Manu343726/pipetrace/pkg/pipeline/trace"
	"github.com/Manu343726/pipetrace/pkg/riscv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NOTE: Always write tests with testify (assert/require packages)

func parseLines(t *testing.T, text string, opts ...Option) *trace.SimulationTrace {
	t.Helper()

	result, err := NewTraceParser(opts...).Parse(strings.Split(text, "\n"))
	require.NoError(t, err)
	return result
}

func TestParseFile_SimulatorOutput(t *testing.T) {
	result, err := ParseFile(filepath.Join("testdata", "sim_output.txt"))
	require.NoError(t, err)

	// ==========================================
	// 1. Instructions come from the loaded text segment
	// ==========================================
	assert.Equal(t, []trace.Instruction{
		{Address: "0x00000000", Encoding: "0x00400293", Mnemonic: "ADDI x5, x0, 4"},
		{Address: "0x00000004", Encoding: "0x00100313", Mnemonic: "ADDI x6, x0, 1"},
		{Address: "0x00000008", Encoding: "0x00028863", Mnemonic: "BEQ x5, x0, 16"},
	}, result.Instructions())

	// ==========================================
	// 2. One cycle per cycle marker, in order
	// ==========================================
	require.Equal(t, 6, result.CycleCount())
	for i, cycle := range result.Cycles() {
		assert.Equal(t, i+1, cycle.CycleNumber)
	}

	// ==========================================
	// 3. First cycle: only fetch is active
	// ==========================================
	cycle, err := result.CycleAt(1)
	require.NoError(t, err)
	assert.Equal(t, trace.Active(trace.FetchFields{
		ProgramCounter:      "0x00000000",
		InstructionRegister: "0x00400293",
		InstructionNumber:   1,
		NextProgramCounter:  "0x00000004",
	}), cycle.Fetch)
	assert.Equal(t, trace.Inactive("IF/ID invalid, inserting bubble"), cycle.Decode)
	assert.Equal(t, trace.Inactive("ID/EX invalid, skipping"), cycle.Execute)
	assert.Equal(t, trace.Inactive("EX/MEM invalid, skipping"), cycle.Memory)
	assert.Equal(t, trace.Inactive("MEM/WB invalid, skipping"), cycle.Writeback)
	assert.True(t, cycle.Latches.IFID.Valid)
	assert.False(t, cycle.Latches.IDEX.Valid)
	assert.False(t, cycle.Latches.EXMEM.Valid)
	assert.False(t, cycle.Latches.MEMWB.Valid)
	assert.Equal(t, "BTB is empty", cycle.BTB)
	assert.Equal(t, &trace.PredictionInfo{ProgramCounter: "0x00000000", Message: "No BTB entry, predict not taken"}, cycle.Prediction)
	assert.Empty(t, cycle.RegisterUpdates)

	// ==========================================
	// 4. Branch resolution in decode
	// ==========================================
	cycle, err = result.CycleAt(4)
	require.NoError(t, err)
	decode, ok := cycle.Decode.Fields.(trace.DecodeFields)
	require.True(t, ok)
	require.NotNil(t, decode.Branch)
	assert.Equal(t, "BEQ", decode.Branch.Kind)
	assert.True(t, decode.Branch.Taken)
	assert.Equal(t, "0x00000018", decode.Branch.Target)
	assert.Equal(t, 16, decode.Rd)
	assert.Equal(t, trace.Inactive("Stalled, keeping IF/ID unchanged"), cycle.Fetch)
	assert.Equal(t, "BTB[0]: PC=0x00000008, Target=0x00000018, Prediction=1", cycle.BTB)
	require.NotNil(t, cycle.Prediction)
	require.NotNil(t, cycle.Prediction.Correct, "the resolved prediction follows the fetch time prediction")
	assert.False(t, *cycle.Prediction.Correct)
	assert.Equal(t, trace.ValidLatch(trace.MEMWBFields{
		ProgramCounter:    "0x00000000",
		WriteData:         4,
		Rd:                5,
		Control:           "RegWrite",
		InstructionNumber: 1,
	}), cycle.Latches.MEMWB)

	// ==========================================
	// 5. Register updates
	// ==========================================
	cycle, err = result.CycleAt(5)
	require.NoError(t, err)
	assert.Equal(t, []trace.RegisterUpdate{{RegisterIndex: 5, Value: 4}}, cycle.RegisterUpdates)
	assert.Equal(t, trace.Active(trace.WritebackFields{ProgramCounter: "0x00000000", InstructionNumber: 1}), cycle.Writeback,
		"the last writeback line of a cycle wins")

	cycle, err = result.CycleAt(6)
	require.NoError(t, err)
	assert.Equal(t, []trace.RegisterUpdate{{RegisterIndex: 6, Value: 1}}, cycle.RegisterUpdates)

	file, err := result.RegisterFileAt(6)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), file[5])
	assert.Equal(t, uint32(1), file[6])

	file, err = result.RegisterFileAt(4)
	require.NoError(t, err)
	assert.Equal(t, trace.RegisterFile{}, file)

	// ==========================================
	// 6. Statistics block, ended by the knob settings
	// ==========================================
	statistics := result.Statistics()
	assert.Len(t, statistics, 12)
	assert.Equal(t, trace.IntStatistic(6), statistics["Total Cycles"])
	assert.Equal(t, trace.FloatStatistic(3.0), statistics["CPI"])
	assert.Equal(t, trace.IntStatistic(2), statistics["Total Stalls/Bubbles"])
	assert.NotContains(t, statistics, "Pipelining")
	assert.Equal(t, "Total Cycles", result.StatisticNames()[0])
}

func TestParse_ScenarioFetch(t *testing.T) {
	result := parseLines(t, `=== Cycle 1 ===
Fetch: PC=0x00000000, IR=0x00400293, Instr#=1, NextPC=0x00000004`)

	cycle, err := result.CycleAt(1)
	require.NoError(t, err)
	assert.Equal(t, trace.Active(trace.FetchFields{
		ProgramCounter:      "0x00000000",
		InstructionRegister: "0x00400293",
		InstructionNumber:   1,
		NextProgramCounter:  "0x00000004",
	}), cycle.Fetch)
}

func TestParse_ScenarioWritebackUpdate(t *testing.T) {
	result := parseLines(t, `=== Cycle 1 ===
=== Cycle 2 ===
=== Cycle 3 ===
=== Cycle 4 ===
=== Cycle 5 ===
Writeback: x5 = 0x00000004 (4)`)

	cycle, err := result.CycleAt(5)
	require.NoError(t, err)
	assert.Equal(t, []trace.RegisterUpdate{{RegisterIndex: 5, Value: 4}}, cycle.RegisterUpdates)
	assert.Equal(t, trace.Active(trace.MessageFields{Message: "x5 = 0x00000004"}), cycle.Writeback)

	file, err := result.RegisterFileAt(5)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), file[5])

	file, err = result.RegisterFileAt(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), file[5])
}

func TestParse_ScenarioInvalidLatch(t *testing.T) {
	result := parseLines(t, `=== Cycle 1 ===
Pipeline Registers:
IF/ID: INVALID
ID/EX: PC=0x00000000, rs1=x0(0), rs2=x4(0), rd=x5, imm=4, ALU=ADD, Instr#=1
EX/MEM: PC=0x00000000, ALU=4, rs2_val=0, rd=x5, Ctrl=RegWrite Instr#=1
MEM/WB: PC=0x00000000, WData=4, rd=x5, Ctrl=RegWrite Instr#=1`)

	cycle, err := result.CycleAt(1)
	require.NoError(t, err)
	assert.Equal(t, trace.InvalidLatch(), cycle.Latches.IFID)
	assert.True(t, cycle.Latches.IDEX.Valid)
	assert.True(t, cycle.Latches.EXMEM.Valid)
	assert.True(t, cycle.Latches.MEMWB.Valid)
}

func TestParse_ScenarioStatistics(t *testing.T) {
	result := parseLines(t, `Simulation Statistics:
Total Cycles: 33
CPI: 1.737`)

	assert.Equal(t, map[string]trace.Statistic{
		"Total Cycles": trace.IntStatistic(33),
		"CPI":          trace.FloatStatistic(1.737),
	}, result.Statistics())
	assert.Equal(t, 0, result.CycleCount())
}

func TestParse_StatisticsBlockEndsOnFirstMismatch(t *testing.T) {
	result := parseLines(t, `Simulation Statistics:
Total Cycles: 2
Total Cycles: 3
Knob Settings:
Data Hazards: 7`)

	assert.Equal(t, map[string]trace.Statistic{"Total Cycles": trace.IntStatistic(3)}, result.Statistics(),
		"repeated names overwrite, rows after the block are ignored")
	assert.Equal(t, []string{"Total Cycles"}, result.StatisticNames())
}

func TestParse_EmptyTrace(t *testing.T) {
	result := parseLines(t, "Starting simulation...\nnothing to see here")

	assert.Equal(t, 0, result.CycleCount())
	assert.Empty(t, result.Cycles())
	assert.Empty(t, result.Instructions())
	assert.Empty(t, result.Statistics())

	_, err := result.CycleAt(1)
	assert.ErrorIs(t, err, trace.ErrOutOfRange)
}

func TestParse_CycleNumbersIncrease(t *testing.T) {
	result := parseLines(t, `=== Cycle 1 ===
=== Cycle 2 ===
===== Cycle 7 =====
=== Cycle 8 ===`)

	numbers := []int{}
	for _, cycle := range result.Cycles() {
		numbers = append(numbers, cycle.CycleNumber)
	}
	assert.Equal(t, []int{1, 2, 7, 8}, numbers)
}

func TestParse_FreshCycleDefaults(t *testing.T) {
	result := parseLines(t, `=== Cycle 1 ===
Fetch: PC=0x00000000, IR=0x00400293, Instr#=1, NextPC=0x00000004
BTB: 1 entry
Prediction: PC=0x00000000, not taken
=== Cycle 2 ===`)

	cycle, err := result.CycleAt(2)
	require.NoError(t, err)
	assert.Equal(t, trace.NewCycleSnapshot(2).Fetch, cycle.Fetch)
	for _, stage := range trace.Stages {
		assert.Equal(t, trace.Inactive(trace.DefaultInactiveReason), cycle.Stage(stage), "stage %v", stage)
	}
	for _, kind := range trace.LatchKinds {
		assert.False(t, cycle.Latches.Get(kind).Valid, "latch %v", kind)
	}
	assert.Empty(t, cycle.BTB)
	assert.Nil(t, cycle.Prediction)
	assert.Empty(t, cycle.RegisterUpdates)

	cycle, err = result.CycleAt(1)
	require.NoError(t, err)
	assert.Equal(t, "1 entry", cycle.BTB)
	require.NotNil(t, cycle.Prediction)
	assert.Equal(t, "not taken", cycle.Prediction.Message)
}

func TestParse_MalformedCycleHeaderIsFatal(t *testing.T) {
	for _, text := range []string{
		"=== Cycle 1 ===\n=== Cycle x ===",
		"=== Cycle ===",
		"=== Cycle 99999999999999999999999 ===",
	} {
		_, err := NewTraceParser().Parse(strings.Split(text, "\n"))
		assert.ErrorIs(t, err, ErrMalformedCycleHeader, text)
	}
}

func TestParse_OutOfOrderCycleIsSkipped(t *testing.T) {
	result := parseLines(t, `=== Cycle 0 ===
Fetch: PC=0x00000010, IR=0x00000013, Instr#=9, NextPC=0x00000014
=== Cycle 1 ===
Fetch: PC=0x00000000, IR=0x00400293, Instr#=1, NextPC=0x00000004
Writeback: x5 = 0x00000004
=== Cycle 2 ===
=== Cycle 1 ===
Fetch: PC=0x00000020, IR=0x00000013, Instr#=5, NextPC=0x00000024
Writeback: x6 = 0x00000009
Pipeline Registers:
IF/ID: PC=0x00000020, IR=0x00000013, Instr#=5
=== Cycle 3 ===
Fetch: Stalled, keeping IF/ID unchanged
=== Cycle 4 ===
Memory: EX/MEM invalid, skipping`)

	numbers := []int{}
	for _, cycle := range result.Cycles() {
		numbers = append(numbers, cycle.CycleNumber)
	}
	assert.Equal(t, []int{1, 2, 3, 4}, numbers)

	cycle, err := result.CycleAt(1)
	require.NoError(t, err)
	fetch, ok := cycle.Fetch.Fields.(trace.FetchFields)
	require.True(t, ok)
	assert.Equal(t, "0x00000000", fetch.ProgramCounter, "the skipped block does not overwrite earlier cycles")

	cycle, err = result.CycleAt(2)
	require.NoError(t, err)
	assert.Equal(t, trace.Inactive(trace.DefaultInactiveReason), cycle.Fetch, "the skipped block does not leak into the previous cycle")
	assert.False(t, cycle.Latches.IFID.Valid)

	cycle, err = result.CycleAt(3)
	require.NoError(t, err)
	assert.Equal(t, trace.Inactive("Stalled, keeping IF/ID unchanged"), cycle.Fetch)

	file, err := result.RegisterFileAt(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), file[5])
	assert.Equal(t, uint32(0), file[6], "writebacks of a skipped block are dropped")

	cycle, err = result.CycleAt(4)
	require.NoError(t, err)
	assert.Equal(t, trace.Inactive("EX/MEM invalid, skipping"), cycle.Memory)
}

func TestParse_InvalidMemoryRegisterIsInactive(t *testing.T) {
	result := parseLines(t, "=== Cycle 1 ===\nMemory: EX/MEM invalid, skipping")

	cycle, err := result.CycleAt(1)
	require.NoError(t, err)
	assert.False(t, cycle.Memory.Active)
	assert.Equal(t, "EX/MEM invalid, skipping", cycle.Memory.Reason)
	assert.Nil(t, cycle.Memory.Fields)
}

func TestParse_FetchTimePrediction(t *testing.T) {
	result := parseLines(t, `=== Cycle 1 ===
Predict: PC=0x00000000, No BTB entry, predict not taken
Fetch: PC=0x00000000, IR=0x00400293, Instr#=1, NextPC=0x00000004
=== Cycle 2 ===
Predict: PC=0x00000008, BTB hit, predict taken
Prediction: PC=0x00000008, Predicted taken, Correct=1, Update=Taken`)

	cycle, err := result.CycleAt(1)
	require.NoError(t, err)
	assert.Equal(t, &trace.PredictionInfo{ProgramCounter: "0x00000000", Message: "No BTB entry, predict not taken"}, cycle.Prediction)
	assert.True(t, cycle.Fetch.Active, "a prediction line does not end the cycle")

	cycle, err = result.CycleAt(2)
	require.NoError(t, err)
	require.NotNil(t, cycle.Prediction)
	assert.Equal(t, "Predicted taken", cycle.Prediction.Message, "the last prediction line of a cycle wins")
	require.NotNil(t, cycle.Prediction.Correct)
	assert.True(t, *cycle.Prediction.Correct)
}

func TestParse_DumpOverridesWriteback(t *testing.T) {
	result := parseLines(t, `=== Cycle 1 ===
Writeback: x5 = 0x00000004 (4)
Register File:
x04:          0 (0x00000000)  x05:          9 (0x00000009)  x06:          0 (0x00000000)  x07:         -1 (0xffffffff)
=== Cycle 2 ===
Writeback: x8 = 0x00000002
=== Cycle 3 ===
Register File:
x05:          9 (0x00000009)  x07:         -1 (0xffffffff)  x08:          2 (0x00000002)
=== Cycle 4 ===
Register File:
x05:          1 (0x00000001)`)

	cycles := result.Cycles()
	require.Len(t, cycles, 4)
	assert.Equal(t, []trace.RegisterUpdate{{RegisterIndex: 5, Value: 9}, {RegisterIndex: 7, Value: 0xFFFFFFFF}}, cycles[0].RegisterUpdates)
	assert.Equal(t, []trace.RegisterUpdate{{RegisterIndex: 8, Value: 2}}, cycles[1].RegisterUpdates)
	assert.Empty(t, cycles[2].RegisterUpdates, "a dump equal to the previous file changes nothing")
	assert.Equal(t, []trace.RegisterUpdate{{RegisterIndex: 5, Value: 1}}, cycles[3].RegisterUpdates)

	// Replaying the updates reproduces every dump
	for _, n := range []int{1, 3, 4} {
		file, err := result.RegisterFileAt(n)
		require.NoError(t, err)
		assert.Equal(t, trace.ReplayRegisterUpdates(cycles[:n]), file, "cycle %d", n)
	}

	file, err := result.RegisterFileAt(4)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), file[5])
	assert.Equal(t, uint32(0xFFFFFFFF), file[7])
	assert.Equal(t, uint32(2), file[8])
}

func TestParse_RegisterIndexOutOfRangeIsSkipped(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	result := parseLines(t, `=== Cycle 1 ===
Writeback: x40 = 0x00000004
Register File:
x32:          7 (0x00000007)  x03:          3 (0x00000003)`, WithLogger(logger))

	cycle, err := result.CycleAt(1)
	require.NoError(t, err)
	assert.Equal(t, []trace.RegisterUpdate{{RegisterIndex: 3, Value: 3}}, cycle.RegisterUpdates)
	assert.Contains(t, logs.String(), "register index out of range")
}

func TestParse_DecodeDetailAttachesBranch(t *testing.T) {
	result := parseLines(t, `=== Cycle 1 ===
Decode: PC=0x00000008, IR=0x00029463, rs1=x5(3), rs2=x0(0), rd=x8
Decode BNE: rs1=x5(3), rs2=x0(0), Taken=1, Target=0x00000010
=== Cycle 2 ===
Decode: Pipeline stalled, keeping ID/EX unchanged
Decode BNE: rs1=x5(3), rs2=x0(0), Taken=1, Target=0x00000010`)

	cycle, err := result.CycleAt(1)
	require.NoError(t, err)
	fields := cycle.Decode.Fields.(trace.DecodeFields)
	require.NotNil(t, fields.Branch)
	assert.Equal(t, "BNE", fields.Branch.Kind)
	assert.Equal(t, trace.RegisterOperand{Index: 5, Value: 3}, fields.Branch.Rs1)

	cycle, err = result.CycleAt(2)
	require.NoError(t, err)
	assert.False(t, cycle.Decode.Active)
}

func TestParse_BlocksAreScopedToTheirHeader(t *testing.T) {
	result := parseLines(t, `IF/ID: PC=0x00000000, IR=0x00400293, Instr#=1
=== Cycle 1 ===
IF/ID: PC=0x00000000, IR=0x00400293, Instr#=1
Pipeline Registers:
IF/ID: PC=0x00000004, IR=0x00100313, Instr#=2
Register File:
ID/EX: PC=0x00000000, rs1=x0(0), rs2=x4(0), rd=x5, imm=4, ALU=ADD, Instr#=1
x05:          4 (0x00000004)
Tracing Instruction #1:
EX/MEM: PC=0x00000000, ALU=4, rs2_val=0, rd=x5, Ctrl=RegWrite Instr#=1
=== Cycle 2 ===
x06:          1 (0x00000001)`)

	cycles := result.Cycles()
	require.Len(t, cycles, 2)
	assert.Equal(t, trace.ValidLatch(trace.IFIDFields{
		ProgramCounter:      "0x00000004",
		InstructionRegister: "0x00100313",
		InstructionNumber:   2,
	}), cycles[0].Latches.IFID)
	assert.False(t, cycles[0].Latches.IDEX.Valid, "latch lines in the register file block are ignored")
	assert.False(t, cycles[0].Latches.EXMEM.Valid, "latch lines in an instruction trace are ignored")
	assert.Equal(t, []trace.RegisterUpdate{{RegisterIndex: 5, Value: 4}}, cycles[0].RegisterUpdates)
	assert.Empty(t, cycles[1].RegisterUpdates, "register rows need a register file header in the same cycle")
}

func TestParse_BranchPredictorBlock(t *testing.T) {
	result := parseLines(t, `=== Cycle 1 ===
Branch Predictor State:
BTB[0]: PC=0x00000008, Target=0x00000018, Prediction=1
BTB[1]: PC=0x00000014, Target=0x00000008, Prediction=1
Fetch: PC=0x00000018, IR=0x00000000, Instr#=7, NextPC=0x0000001C
BTB is empty`)

	cycle, err := result.CycleAt(1)
	require.NoError(t, err)
	assert.Equal(t, "BTB[0]: PC=0x00000008, Target=0x00000018, Prediction=1; BTB[1]: PC=0x00000014, Target=0x00000008, Prediction=1", cycle.BTB)
	assert.True(t, cycle.Fetch.Active, "the line ending the block is parsed")
}

func TestParse_ExplicitInstructionsOverrideTrace(t *testing.T) {
	program, err := riscv.LoadProgram(strings.NewReader("0x0 0x02530333\n"))
	require.NoError(t, err)

	result := parseLines(t, "Loaded text: Addr=0x00000000, Instr=0x00400293", WithProgram(program))
	assert.Equal(t, []trace.Instruction{
		{Address: "0x00000000", Encoding: "0x02530333", Mnemonic: "MUL x6, x6, x5"},
	}, result.Instructions())
}

func TestParse_Idempotent(t *testing.T) {
	first, err := ParseFile(filepath.Join("testdata", "sim_output.txt"))
	require.NoError(t, err)
	second, err := ParseFile(filepath.Join("testdata", "sim_output.txt"))
	require.NoError(t, err)

	assert.Equal(t, first, second)

	a, err := first.RegisterFileAt(5)
	require.NoError(t, err)
	b, err := first.RegisterFileAt(5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestParse_QueryBoundaries(t *testing.T) {
	result, err := ParseFile(filepath.Join("testdata", "sim_output.txt"))
	require.NoError(t, err)

	for _, n := range []int{0, -1, result.CycleCount() + 1} {
		_, err := result.CycleAt(n)
		assert.ErrorIs(t, err, trace.ErrOutOfRange, "cycle %d", n)

		_, err = result.RegisterFileAt(n)
		assert.ErrorIs(t, err, trace.ErrOutOfRange, "cycle %d", n)
	}
}

func TestParseFile_MissingInput(t *testing.T) {
	_, err := ParseFile(filepath.Join("testdata", "does_not_exist.txt"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.Contains(t, err.Error(), "does_not_exist.txt")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("disk on fire")
}

func TestParseReader(t *testing.T) {
	result, err := NewTraceParser().ParseReader(strings.NewReader("=== Cycle 1 ===\r\nFetch: Stalled\r\n"))
	require.NoError(t, err)
	cycle, err := result.CycleAt(1)
	require.NoError(t, err)
	assert.Equal(t, trace.Inactive("Stalled"), cycle.Fetch)

	_, err = NewTraceParser().ParseReader(failingReader{})
	assert.ErrorIs(t, err, ErrMissingInput)
}
