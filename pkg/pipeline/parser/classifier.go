package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Manu343726/pipetrace/pkg/pipeline/trace"
)

// Kind of a trace line
type LineKind int

const (
	LineUnclassified LineKind = iota
	LineCycleMarker
	LineFetch
	LineDecode
	LineDecodeDetail
	LineExecute
	LineMemory
	LineWriteback
	LineBTB
	LineBranchPredictorHeader
	LineBTBEntry
	LinePrediction
	LineRegisterFileHeader
	LineRegisterFileRow
	LinePipelineRegisterHeader
	LineLatch
	LineStatisticsHeader
	LineStatisticsRow
	LineLoadedInstruction
	LineInstructionTraceHeader
)

func (k LineKind) String() string {
	switch k {
	case LineUnclassified:
		return "Unclassified"
	case LineCycleMarker:
		return "CycleMarker"
	case LineFetch:
		return "Fetch"
	case LineDecode:
		return "Decode"
	case LineDecodeDetail:
		return "DecodeDetail"
	case LineExecute:
		return "Execute"
	case LineMemory:
		return "Memory"
	case LineWriteback:
		return "Writeback"
	case LineBTB:
		return "BTB"
	case LineBranchPredictorHeader:
		return "BranchPredictorHeader"
	case LineBTBEntry:
		return "BTBEntry"
	case LinePrediction:
		return "Prediction"
	case LineRegisterFileHeader:
		return "RegisterFileHeader"
	case LineRegisterFileRow:
		return "RegisterFileRow"
	case LinePipelineRegisterHeader:
		return "PipelineRegisterHeader"
	case LineLatch:
		return "Latch"
	case LineStatisticsHeader:
		return "StatisticsHeader"
	case LineStatisticsRow:
		return "StatisticsRow"
	case LineLoadedInstruction:
		return "LoadedInstruction"
	case LineInstructionTraceHeader:
		return "InstructionTraceHeader"
	default:
		return fmt.Sprintf("LineKind(%d)", int(k))
	}
}

// Block the parser is in. Some lines are only meaningful right after their block
// header, e.g. register file rows or pipeline register lines.
type BlockMode int

const (
	ModeNone BlockMode = iota
	ModeRegisterFile
	ModeLatches
	ModeStatistics
	ModeBranchPredictor
	ModeInstructionTrace
)

func (m BlockMode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeRegisterFile:
		return "register file"
	case ModeLatches:
		return "pipeline registers"
	case ModeStatistics:
		return "statistics"
	case ModeBranchPredictor:
		return "branch predictor"
	case ModeInstructionTrace:
		return "instruction trace"
	default:
		return fmt.Sprintf("BlockMode(%d)", int(m))
	}
}

// Returns whether the block ends at the first line that is not one of its rows.
// Other blocks last until the next block header or cycle marker.
func (m BlockMode) endsOnMismatch() bool {
	return m == ModeStatistics || m == ModeBranchPredictor
}

// Result of classifying a line
type Classification struct {
	Kind LineKind
	// Pipeline register named by a LineLatch line
	Latch trace.LatchKind
	// The line matched a rule that only applies inside the current block
	InBlock bool
}

// A classifier rule: lines matching the rule, in the rule's block mode if it has
// one, get the rule's kind
type classifierRule struct {
	kind  LineKind
	latch trace.LatchKind
	// Block mode the rule applies in. ModeNone rules apply everywhere.
	mode BlockMode
	// Human readable line shape, for documentation
	shape string
	// Field grammar of the line, for documentation
	grammar string
	match   func(line string) bool
}

func prefixRule(kind LineKind, prefix string, grammar string) classifierRule {
	return classifierRule{
		kind:    kind,
		shape:   prefix + " ...",
		grammar: grammar,
		match:   func(line string) bool { return strings.HasPrefix(line, prefix) },
	}
}

func exactRule(kind LineKind, text string) classifierRule {
	return classifierRule{
		kind:  kind,
		shape: text,
		match: func(line string) bool { return line == text },
	}
}

func patternRule(kind LineKind, pattern *regexp.Regexp, shape string, grammar string) classifierRule {
	return classifierRule{
		kind:    kind,
		shape:   shape,
		grammar: grammar,
		match:   pattern.MatchString,
	}
}

func latchRule(kind trace.LatchKind, grammar string) classifierRule {
	rule := prefixRule(LineLatch, kind.String()+":", grammar).inMode(ModeLatches)
	rule.latch = kind
	return rule
}

func (r classifierRule) inMode(mode BlockMode) classifierRule {
	r.mode = mode
	return r
}

var (
	cycleMarkerPattern      = regexp.MustCompile(`^=+\s*Cycle\b`)
	decodeDetailLinePattern = regexp.MustCompile(`^Decode \w+:`)
	btbEntryPattern         = regexp.MustCompile(`^(BTB is empty|BTB\[\d+\]:)`)
	registerFileRowPattern  = regexp.MustCompile(`^x\d+:\s*-?\d+`)
	instructionTracePattern = regexp.MustCompile(`^Tracing Instruction #\d+`)
)

// Classifier rules, in priority order. The first matching rule wins.
var classifierRules = []classifierRule{
	patternRule(LineCycleMarker, cycleMarkerPattern, "=== Cycle <n> ===", "<n>: integer, blocks that do not increase the cycle number are skipped"),

	exactRule(LineStatisticsHeader, "Simulation Statistics:"),
	patternRule(LineStatisticsRow, statisticPattern, "<name>: <number>", "number with a decimal point is a float, otherwise an integer").inMode(ModeStatistics),

	exactRule(LineRegisterFileHeader, "Register File:"),
	exactRule(LinePipelineRegisterHeader, "Pipeline Registers:"),
	exactRule(LineBranchPredictorHeader, "Branch Predictor State:"),
	patternRule(LineInstructionTraceHeader, instructionTracePattern, "Tracing Instruction #<n>:", ""),

	patternRule(LineRegisterFileRow, registerFileRowPattern, "x<r>: <dec> (<hex>) ...", "one or more x<r>: <signed dec> (<hex>) entries").inMode(ModeRegisterFile),

	latchRule(trace.LatchIFID, "INVALID | PC=<hex>, IR=<hex>, Instr#=<int>"),
	latchRule(trace.LatchIDEX, "INVALID | PC=<hex>, rs1=x<r>(<v>), rs2=x<r>(<v>), rd=x<r>, imm=<int>, ALU=<op>, Instr#=<int>"),
	latchRule(trace.LatchEXMEM, "INVALID | PC=<hex>, ALU=<int>, rs2_val=<int>, rd=x<r>, Ctrl=<signals> Instr#=<int>"),
	latchRule(trace.LatchMEMWB, "INVALID | PC=<hex>, WData=<int>, rd=x<r>, Ctrl=<signals> Instr#=<int>"),

	patternRule(LineBTBEntry, btbEntryPattern, "BTB is empty | BTB[<i>]: ...", "free text").inMode(ModeBranchPredictor),

	prefixRule(LineFetch, "Fetch:", "Stalled ... | PC=<hex>, IR=<hex>, Instr#=<int>, NextPC=<hex>"),
	prefixRule(LineDecode, "Decode:", "stalled/invalid ... | PC=<hex>, IR=<hex>, rs1=x<r>(<v>), rs2=x<r>(<v>), rd=x<r>[, Taken=<0|1>, Target=<hex>]"),
	patternRule(LineDecodeDetail, decodeDetailLinePattern, "Decode <KIND>: ...", "[rs1=x<r>(<v>), rs2=x<r>(<v>), ]Taken=<0|1>, Target=<hex>"),
	prefixRule(LineExecute, "Execute:", "... skipping | PC=<hex>, IR=<hex>, <alu>[, Result=<int>]"),
	prefixRule(LineMemory, "Memory:", "No memory operation | Bypassing ... | ... skipping | PC=<hex>, Instr#=<int>"),
	prefixRule(LineWriteback, "Writeback:", "No writeback | ... skipping | x<r> = <hex> [(<dec>)] | PC=<hex>, Instr#=<int>"),
	prefixRule(LineBTB, "BTB:", "free text"),
	prefixRule(LinePrediction, "Prediction:", "<message> | PC=<hex>, <message>[, Correct=<0|1>, Update=<text>]"),
	prefixRule(LinePrediction, "Predict:", "<message> | PC=<hex>, <message>"),
	patternRule(LineLoadedInstruction, loadedInstructionPattern, "Loaded text: Addr=<hex>, Instr=<hex>", ""),
}

// Classifies a trimmed trace line given the block the parser is in
func Classify(line string, mode BlockMode) Classification {
	for _, rule := range classifierRules {
		if rule.mode != ModeNone && rule.mode != mode {
			continue
		}

		if rule.match(line) {
			return Classification{
				Kind:    rule.kind,
				Latch:   rule.latch,
				InBlock: rule.mode != ModeNone,
			}
		}
	}

	return Classification{Kind: LineUnclassified}
}

// Describes one classifier rule
type RuleDescription struct {
	Kind    LineKind
	Mode    BlockMode
	Shape   string
	Grammar string
}

// Returns the classifier rules in priority order
func Rules() []RuleDescription {
	rules := make([]RuleDescription, len(classifierRules))

	for i, rule := range classifierRules {
		rules[i] = RuleDescription{
			Kind:    rule.kind,
			Mode:    rule.mode,
			Shape:   rule.shape,
			Grammar: rule.grammar,
		}
	}

	return rules
}

// Returns the documentation of the trace grammar: one entry per classifier rule, in
// priority order
func GrammarDocString() string {
	var builder strings.Builder

	builder.WriteString("Trace lines are trimmed and classified by the first matching rule.\n")
	builder.WriteString("Rules with a block only apply right after the block header.\n\n")

	for i, rule := range Rules() {
		builder.WriteString(fmt.Sprintf("%2d. %-24s %s\n", i+1, rule.Kind, rule.Shape))

		if rule.Mode != ModeNone {
			builder.WriteString(fmt.Sprintf("    %-24s block: %s\n", "", rule.Mode))
		}
		if rule.Grammar != "" {
			builder.WriteString(fmt.Sprintf("    %-24s fields: %s\n", "", rule.Grammar))
		}
	}

	builder.WriteString("\nAny other line is ignored.\n")
	return builder.String()
}
